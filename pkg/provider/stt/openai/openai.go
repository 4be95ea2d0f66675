// Package openai provides an stt.Transcriber backed by the OpenAI audio
// transcription API (or any server exposing the same endpoint, such as a
// whisper-server started with --convert in OpenAI-compatible mode).
//
// The provider requests verbose JSON with word-level timestamp granularity.
// OpenAI reports words as a flat list with bare text, so the provider
// distributes them into their segments by midpoint containment and
// re-synthesises the leading-space convention used throughout the pipeline.
package openai

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

	"github.com/soundscribe/soundscribe/pkg/provider/stt"
	"github.com/soundscribe/soundscribe/pkg/timeline"
	"github.com/soundscribe/soundscribe/pkg/types"
)

const (
	// DefaultBaseURL is the OpenAI API root.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is the default transcription model.
	DefaultModel = "whisper-1"

	defaultTimeout = 30 * time.Minute
)

// Compile-time assertion that Provider implements stt.Transcriber.
var _ stt.Transcriber = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API root, e.g. to point at an OpenAI-compatible
// local server. A trailing slash is stripped.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		if url != "" {
			p.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithLanguage sets the ISO-639-1 language hint (e.g., "en"). Empty lets the
// API auto-detect.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 minutes.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.httpClient.Timeout = d
		}
	}
}

// Provider implements stt.Transcriber against the OpenAI audio API.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a new Provider. apiKey must be non-empty. If model is empty,
// DefaultModel (whisper-1) is used.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai stt: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		model:      model,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ModelID implements stt.Transcriber.
func (p *Provider) ModelID() string {
	return p.model
}

// transcriptionResponse mirrors the verbose_json shape of the OpenAI
// /audio/transcriptions endpoint. Words are a flat top-level list.
type transcriptionResponse struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []segment `json:"segments"`
	Words    []word    `json:"words"`
}

type segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcribe implements stt.Transcriber.
func (p *Provider) Transcribe(ctx context.Context, mediaPath string) (*stt.Result, error) {
	f, err := os.Open(mediaPath)
	if err != nil {
		return nil, fmt.Errorf("openai stt: open media: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filepath.Base(mediaPath))
	if err != nil {
		return nil, fmt.Errorf("openai stt: create form file: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, fmt.Errorf("openai stt: copy media data: %w", err)
	}

	writeField := func(name, value string) {
		if err == nil {
			err = mw.WriteField(name, value)
		}
	}
	writeField("model", p.model)
	writeField("response_format", "verbose_json")
	writeField("timestamp_granularities[]", "word")
	writeField("timestamp_granularities[]", "segment")
	if p.language != "" {
		writeField("language", p.language)
	}
	if err != nil {
		return nil, fmt.Errorf("openai stt: write form field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("openai stt: close multipart writer: %w", err)
	}

	endpoint := p.baseURL + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("openai stt: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai stt: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai stt: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai stt: server returned HTTP %d: %s",
			resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var tr transcriptionResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("openai stt: parse JSON response: %w", err)
	}

	return resultFromTranscription(&tr), nil
}

// resultFromTranscription converts the flat-word API shape into segments with
// nested words. Each word lands in the first segment whose interval contains
// the word's midpoint; words outside all segments go to the nearest one by
// start time. When the API returns no segments a single synthetic segment
// spans all words.
func resultFromTranscription(tr *transcriptionResponse) *stt.Result {
	res := &stt.Result{
		Text:     tr.Text,
		Language: tr.Language,
	}

	if len(tr.Segments) == 0 {
		if len(tr.Words) == 0 {
			return res
		}
		seg := types.Segment{
			Interval: timeline.Interval{
				Start: tr.Words[0].Start,
				End:   tr.Words[len(tr.Words)-1].End,
			},
			Text: tr.Text,
		}
		seg.Words = stt.NormalizeWordSpacing(wordsToTypes(tr.Words))
		res.Segments = []types.Segment{seg}
		return res
	}

	segs := make([]types.Segment, len(tr.Segments))
	for i, s := range tr.Segments {
		segs[i] = types.Segment{
			Interval: timeline.Interval{Start: s.Start, End: s.End},
			Text:     s.Text,
		}
	}
	for _, w := range tr.Words {
		idx := segmentFor(segs, (w.Start+w.End)/2)
		segs[idx].Words = append(segs[idx].Words, types.Word{
			Interval:   timeline.Interval{Start: w.Start, End: w.End},
			Text:       w.Word,
			Confidence: 1.0,
		})
	}
	for i := range segs {
		segs[i].Words = stt.NormalizeWordSpacing(segs[i].Words)
	}
	res.Segments = segs
	return res
}

func wordsToTypes(words []word) []types.Word {
	out := make([]types.Word, len(words))
	for i, w := range words {
		out[i] = types.Word{
			Interval:   timeline.Interval{Start: w.Start, End: w.End},
			Text:       w.Word,
			Confidence: 1.0,
		}
	}
	return out
}

// segmentFor returns the index of the segment containing midpoint, falling
// back to the last segment starting at or before it, then to 0.
func segmentFor(segs []types.Segment, midpoint float64) int {
	for i, s := range segs {
		if s.Interval.Contains(midpoint) {
			return i
		}
	}
	best := 0
	for i, s := range segs {
		if s.Interval.Start <= midpoint {
			best = i
		}
	}
	return best
}
