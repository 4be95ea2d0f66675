package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeStub creates an executable shell script standing in for an external
// tool.
func writeStub(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

func TestNew(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "work")
	p, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.workDir != dir {
		t.Errorf("workDir = %q, want %q", p.workDir, dir)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("work dir not created: %v", err)
	}
}

func TestExtractAudio(t *testing.T) {
	work := t.TempDir()
	bin := t.TempDir()

	t.Run("success", func(t *testing.T) {
		// The stub touches its last argument, like ffmpeg writing the output.
		ffmpeg := writeStub(t, bin, "ffmpeg", `
for last; do :; done
echo "$@" > "$0.args"
touch "$last"
`)
		p, err := New(work, WithFFmpegPath(ffmpeg))
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		out, err := p.ExtractAudio(context.Background(), "/uploads/talk.mp4")
		if err != nil {
			t.Fatalf("ExtractAudio: %v", err)
		}
		if filepath.Base(out) != "talk_audio_16k.wav" {
			t.Errorf("output = %q, want talk_audio_16k.wav basename", out)
		}
		if _, err := os.Stat(out); err != nil {
			t.Errorf("output file missing: %v", err)
		}

		args, err := os.ReadFile(ffmpeg + ".args")
		if err != nil {
			t.Fatalf("read recorded args: %v", err)
		}
		for _, want := range []string{"-ac 1", "-ar 16000", "-f wav", "/uploads/talk.mp4"} {
			if !strings.Contains(string(args), want) {
				t.Errorf("ffmpeg args %q missing %q", strings.TrimSpace(string(args)), want)
			}
		}
	})

	t.Run("ffmpeg failure surfaces stderr", func(t *testing.T) {
		ffmpeg := writeStub(t, bin, "ffmpeg-fail", `
echo "talk.mp4: Invalid data found when processing input" >&2
exit 1
`)
		p, err := New(work, WithFFmpegPath(ffmpeg))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		_, err = p.ExtractAudio(context.Background(), "/uploads/talk.mp4")
		if err == nil {
			t.Fatal("expected error from failing ffmpeg")
		}
		if !strings.Contains(err.Error(), "Invalid data") {
			t.Errorf("error %q does not carry ffmpeg stderr", err)
		}
	})
}

func TestDownload(t *testing.T) {
	work := t.TempDir()
	bin := t.TempDir()

	t.Run("success", func(t *testing.T) {
		outFile := filepath.Join(work, "dQw4w9WgXcQ.mp3")
		ytdlp := writeStub(t, bin, "yt-dlp", fmt.Sprintf(`
echo "$@" > "$0.args"
touch %q
echo %q
echo "Never Gonna Give You Up"
`, outFile, outFile))
		p, err := New(work, WithYtDlpPath(ytdlp))
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		path, title, err := p.Download(context.Background(), "https://example.com/watch?v=x")
		if err != nil {
			t.Fatalf("Download: %v", err)
		}
		if path != outFile {
			t.Errorf("path = %q, want %q", path, outFile)
		}
		if title != "Never Gonna Give You Up" {
			t.Errorf("title = %q", title)
		}

		args, err := os.ReadFile(ytdlp + ".args")
		if err != nil {
			t.Fatalf("read recorded args: %v", err)
		}
		for _, want := range []string{"--extract-audio", "--audio-format mp3", "https://example.com/watch?v=x"} {
			if !strings.Contains(string(args), want) {
				t.Errorf("yt-dlp args %q missing %q", strings.TrimSpace(string(args)), want)
			}
		}
	})

	t.Run("missing title falls back", func(t *testing.T) {
		outFile := filepath.Join(work, "abc.mp3")
		ytdlp := writeStub(t, bin, "yt-dlp-notitle", fmt.Sprintf(`
touch %q
echo %q
`, outFile, outFile))
		p, err := New(work, WithYtDlpPath(ytdlp))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		_, title, err := p.Download(context.Background(), "https://example.com/a")
		if err != nil {
			t.Fatalf("Download: %v", err)
		}
		if title != "Unknown Title" {
			t.Errorf("title = %q, want fallback", title)
		}
	})

	t.Run("tool failure", func(t *testing.T) {
		ytdlp := writeStub(t, bin, "yt-dlp-fail", `
echo "ERROR: unsupported URL" >&2
exit 1
`)
		p, err := New(work, WithYtDlpPath(ytdlp))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, _, err := p.Download(context.Background(), "https://bad"); err == nil {
			t.Fatal("expected error from failing yt-dlp")
		}
	})

	t.Run("reported file missing", func(t *testing.T) {
		ytdlp := writeStub(t, bin, "yt-dlp-ghost", `
echo "/nonexistent/ghost.mp3"
echo "Ghost"
`)
		p, err := New(work, WithYtDlpPath(ytdlp))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, _, err := p.Download(context.Background(), "https://example.com/g"); err == nil {
			t.Fatal("expected error for missing output file")
		}
	})

	t.Run("cookie file forwarded", func(t *testing.T) {
		outFile := filepath.Join(work, "ck.mp3")
		ytdlp := writeStub(t, bin, "yt-dlp-ck", fmt.Sprintf(`
echo "$@" > "$0.args"
touch %q
echo %q
echo "t"
`, outFile, outFile))
		p, err := New(work, WithYtDlpPath(ytdlp), WithCookieFile("/etc/cookies.txt"))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, _, err := p.Download(context.Background(), "https://example.com/c"); err != nil {
			t.Fatalf("Download: %v", err)
		}
		args, _ := os.ReadFile(ytdlp + ".args")
		if !strings.Contains(string(args), "--cookies /etc/cookies.txt") {
			t.Errorf("args %q missing cookie flag", strings.TrimSpace(string(args)))
		}
	})
}
