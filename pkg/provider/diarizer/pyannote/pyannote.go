// Package pyannote provides a diarizer.Provider backed by a pyannote.audio
// sidecar service.
//
// The sidecar wraps a pyannote speaker-diarization pipeline behind a small
// REST API: POST /diarize accepts the audio file as multipart/form-data and
// returns the speaker turns as JSON. Running the model out of process keeps
// the Python/PyTorch dependency out of this binary.
//
// Usage:
//
//	p, err := pyannote.New("http://localhost:9090")
//	turns, err := p.Diarize(ctx, "/tmp/job-1234/audio.wav")
package pyannote

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
	"strings"
	"time"

	"github.com/soundscribe/soundscribe/pkg/provider/diarizer"
	"github.com/soundscribe/soundscribe/pkg/timeline"
	"github.com/soundscribe/soundscribe/pkg/types"
)

const (
	// DefaultModel is the pipeline the sidecar loads unless told otherwise.
	DefaultModel = "pyannote/speaker-diarization-3.1"

	// defaultTimeout bounds one diarization request. Diarization of long
	// recordings on CPU is slow, so this is deliberately generous.
	defaultTimeout = 30 * time.Minute
)

// Compile-time assertion that Provider implements diarizer.Provider.
var _ diarizer.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the pipeline identifier forwarded to the sidecar. When empty
// the sidecar uses whichever pipeline it was started with.
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithNumSpeakers pins the expected speaker count. Zero (the default) lets
// the pipeline estimate it.
func WithNumSpeakers(n int) Option {
	return func(p *Provider) { p.numSpeakers = n }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 minutes.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.httpClient.Timeout = d
		}
	}
}

// Provider implements diarizer.Provider against a pyannote sidecar service.
type Provider struct {
	serverURL   string
	model       string
	numSpeakers int
	httpClient  *http.Client
}

// New creates a new Provider that connects to the pyannote sidecar at
// serverURL (e.g., "http://localhost:9090"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("pyannote: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		model:      DefaultModel,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ModelID implements diarizer.Provider.
func (p *Provider) ModelID() string {
	return p.model
}

// diarizeResponse mirrors the sidecar's JSON shape. Times are in seconds.
type diarizeResponse struct {
	Segments []diarizeSegment `json:"segments"`
}

type diarizeSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// Diarize implements diarizer.Provider. It uploads the file at mediaPath to
// the sidecar /diarize endpoint and returns the raw turns in response order.
func (p *Provider) Diarize(ctx context.Context, mediaPath string) ([]types.RawTurn, error) {
	f, err := os.Open(mediaPath)
	if err != nil {
		return nil, fmt.Errorf("pyannote: open media: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filepath.Base(mediaPath))
	if err != nil {
		return nil, fmt.Errorf("pyannote: create form file: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, fmt.Errorf("pyannote: copy media data: %w", err)
	}
	if p.model != "" {
		if err := mw.WriteField("model", p.model); err != nil {
			return nil, fmt.Errorf("pyannote: write model field: %w", err)
		}
	}
	if p.numSpeakers > 0 {
		if err := mw.WriteField("num_speakers", fmt.Sprint(p.numSpeakers)); err != nil {
			return nil, fmt.Errorf("pyannote: write num_speakers field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("pyannote: close multipart writer: %w", err)
	}

	endpoint := p.serverURL + "/diarize"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("pyannote: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pyannote: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("pyannote: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pyannote: sidecar returned HTTP %d: %s",
			resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var dr diarizeResponse
	if err := json.Unmarshal(data, &dr); err != nil {
		return nil, fmt.Errorf("pyannote: parse JSON response: %w", err)
	}

	turns := make([]types.RawTurn, 0, len(dr.Segments))
	for _, s := range dr.Segments {
		turns = append(turns, types.RawTurn{
			Interval:  timeline.Interval{Start: s.Start, End: s.End},
			SpeakerID: s.Speaker,
		})
	}
	return turns, nil
}
