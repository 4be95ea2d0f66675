package pyannote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeTempMedia(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(path, []byte("RIFF fake wav"), 0o644); err != nil {
		t.Fatalf("write temp media: %v", err)
	}
	return path
}

func TestNew(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty serverURL")
	}

	p, err := New("http://localhost:9090/")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.serverURL != "http://localhost:9090" {
		t.Errorf("serverURL = %q, want trailing slash stripped", p.serverURL)
	}
	if got := p.ModelID(); got != DefaultModel {
		t.Errorf("ModelID() = %q, want %q", got, DefaultModel)
	}
}

func TestDiarize(t *testing.T) {
	var gotPath, gotModel, gotSpeakers string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotModel = r.FormValue("model")
		gotSpeakers = r.FormValue("num_speakers")
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file field: %v", err)
		}
		w.Write([]byte(`{
			"segments": [
				{"start": 0.0, "end": 2.5, "speaker": "SPEAKER_00"},
				{"start": 2.5, "end": 4.0, "speaker": "SPEAKER_01"},
				{"start": 4.0, "end": 5.5, "speaker": "SPEAKER_00"}
			]
		}`))
	}))
	defer srv.Close()

	p, err := New(srv.URL, WithNumSpeakers(2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	turns, err := p.Diarize(context.Background(), writeTempMedia(t))
	if err != nil {
		t.Fatalf("Diarize: %v", err)
	}

	if gotPath != "/diarize" {
		t.Errorf("request path = %q, want /diarize", gotPath)
	}
	if gotModel != DefaultModel {
		t.Errorf("model field = %q, want %q", gotModel, DefaultModel)
	}
	if gotSpeakers != "2" {
		t.Errorf("num_speakers field = %q, want 2", gotSpeakers)
	}

	if len(turns) != 3 {
		t.Fatalf("len(turns) = %d, want 3", len(turns))
	}
	if turns[0].SpeakerID != "SPEAKER_00" {
		t.Errorf("turns[0].SpeakerID = %q", turns[0].SpeakerID)
	}
	if turns[1].Interval.Start != 2.5 || turns[1].Interval.End != 4.0 {
		t.Errorf("turns[1] interval = %+v", turns[1].Interval)
	}
	// Same upstream speaker ID may recur; order is preserved as-is.
	if turns[2].SpeakerID != "SPEAKER_00" {
		t.Errorf("turns[2].SpeakerID = %q", turns[2].SpeakerID)
	}
}

func TestDiarizeEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"segments": []}`))
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	turns, err := p.Diarize(context.Background(), writeTempMedia(t))
	if err != nil {
		t.Fatalf("Diarize: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("len(turns) = %d, want 0", len(turns))
	}
}

func TestDiarizeErrors(t *testing.T) {
	t.Run("missing media file", func(t *testing.T) {
		p, err := New("http://localhost:9090")
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, err := p.Diarize(context.Background(), "/nonexistent/audio.wav"); err == nil {
			t.Fatal("expected error for missing media file")
		}
	})

	t.Run("sidecar error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "pipeline not loaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		p, err := New(srv.URL)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, err := p.Diarize(context.Background(), writeTempMedia(t)); err == nil {
			t.Fatal("expected error on HTTP 503")
		}
	})
}
