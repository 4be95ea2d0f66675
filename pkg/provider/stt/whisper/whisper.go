// Package whisper provides local whisper.cpp-backed transcribers.
//
// Provider connects to a running whisper-server binary (which exposes a REST
// API at POST /inference) and submits the whole media file as one batch
// inference request, asking for verbose JSON so that segment and word
// timestamps come back alongside the text. NativeProvider skips the server
// entirely and runs inference in-process through the whisper.cpp CGO
// bindings.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080", whisper.WithLanguage("en"))
//	res, err := p.Transcribe(ctx, "/tmp/job-1234/audio.wav")
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/soundscribe/soundscribe/pkg/provider/stt"
	"github.com/soundscribe/soundscribe/pkg/timeline"
	"github.com/soundscribe/soundscribe/pkg/types"
)

const (
	defaultLanguage = "en"

	// defaultTimeout bounds one inference request. Batch transcription of
	// long recordings is slow, so this is deliberately generous.
	defaultTimeout = 30 * time.Minute
)

// Compile-time assertion that Provider implements stt.Transcriber.
var _ stt.Transcriber = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper-server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with — this is the default.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code sent to the whisper-server
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 minutes.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.httpClient.Timeout = d
		}
	}
}

// Provider implements stt.Transcriber backed by a local whisper-server.
// Multiple transcriptions may run simultaneously; the provider itself holds
// no per-request state.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a new Provider that connects to the whisper-server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
// Functional options may be provided to override defaults.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  serverURL,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ModelID implements stt.Transcriber.
func (p *Provider) ModelID() string {
	if p.model == "" {
		return "whisper-server"
	}
	return p.model
}

// verboseResponse mirrors the verbose_json shape of the whisper-server
// /inference endpoint. Times are in seconds.
type verboseResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Segments []verboseSegment `json:"segments"`
}

type verboseSegment struct {
	Start float64       `json:"start"`
	End   float64       `json:"end"`
	Text  string        `json:"text"`
	Words []verboseWord `json:"words"`
}

type verboseWord struct {
	Word        string  `json:"word"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Probability float64 `json:"probability"`
}

// Transcribe implements stt.Transcriber. It uploads the file at mediaPath to
// the whisper-server /inference endpoint as multipart/form-data and parses
// the verbose JSON response into segments with word timestamps.
func (p *Provider) Transcribe(ctx context.Context, mediaPath string) (*stt.Result, error) {
	f, err := os.Open(mediaPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: open media: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filepath.Base(mediaPath))
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, fmt.Errorf("whisper: copy media data: %w", err)
	}

	fields := map[string]string{
		"response_format": "verbose_json",
	}
	if p.language != "" {
		fields["language"] = p.language
	}
	if p.model != "" {
		fields["model"] = p.model
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("whisper: write %s field: %w", name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	endpoint := p.serverURL + "/inference"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whisper: read response body: %w", err)
	}

	var vr verboseResponse
	if err := json.Unmarshal(data, &vr); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	return resultFromVerbose(&vr), nil
}

// resultFromVerbose converts a verbose_json payload into an stt.Result with
// normalised word spacing, so raw concatenation of word texts reproduces the
// transcript.
func resultFromVerbose(vr *verboseResponse) *stt.Result {
	res := &stt.Result{
		Text:     vr.Text,
		Language: vr.Language,
	}
	for _, seg := range vr.Segments {
		s := types.Segment{
			Interval: timeline.Interval{Start: seg.Start, End: seg.End},
			Text:     seg.Text,
		}
		for _, w := range seg.Words {
			s.Words = append(s.Words, types.Word{
				Interval:   timeline.Interval{Start: w.Start, End: w.End},
				Text:       w.Word,
				Confidence: w.Probability,
			})
		}
		s.Words = stt.NormalizeWordSpacing(s.Words)
		res.Segments = append(res.Segments, s)
	}
	return res
}
