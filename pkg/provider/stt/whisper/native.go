// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/soundscribe/soundscribe/pkg/provider/stt"
	"github.com/soundscribe/soundscribe/pkg/timeline"
	"github.com/soundscribe/soundscribe/pkg/types"
)

// nativeSampleRate is the sample rate whisper.cpp models are trained on.
const nativeSampleRate = 16000

// Compile-time assertion that NativeProvider satisfies stt.Transcriber.
var _ stt.Transcriber = (*NativeProvider)(nil)

// NativeProvider implements stt.Transcriber using whisper.cpp Go bindings
// (CGO), eliminating HTTP overhead entirely. The model is loaded once at
// startup and shared across all transcriptions; each Transcribe call creates
// its own whisper context, so calls may run concurrently.
type NativeProvider struct {
	model      whisperlib.Model
	modelPath  string
	language   string
	ffmpegPath string

	// Each whisper context is single-threaded; guard creation against
	// concurrent model access quirks in older binding versions.
	mu sync.Mutex
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the BCP-47 language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// WithFFmpegPath overrides the ffmpeg binary used to decode media into PCM.
// Defaults to "ffmpeg" resolved via PATH.
func WithFFmpegPath(path string) NativeOption {
	return func(p *NativeProvider) {
		if path != "" {
			p.ffmpegPath = path
		}
	}
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The model is loaded once and shared across all
// concurrent transcriptions. The caller must call Close when the provider is
// no longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{
		model:      model,
		modelPath:  modelPath,
		language:   defaultLanguage,
		ffmpegPath: "ffmpeg",
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model. Must be called when the provider is no
// longer needed.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// ModelID implements stt.Transcriber.
func (p *NativeProvider) ModelID() string {
	return p.modelPath
}

// Transcribe implements stt.Transcriber. It decodes the media file to 16 kHz
// mono PCM through ffmpeg, runs whisper.cpp inference with token timestamps
// enabled, and assembles segments whose words preserve whisper's token
// spacing (tokens carry their leading space).
func (p *NativeProvider) Transcribe(ctx context.Context, mediaPath string) (*stt.Result, error) {
	pcm, err := p.decodePCM(ctx, mediaPath)
	if err != nil {
		return nil, err
	}
	samples := pcmToFloat32(pcm)
	if len(samples) == 0 {
		return &stt.Result{}, nil
	}

	wctx, err := p.newContext()
	if err != nil {
		return nil, err
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	res := &stt.Result{Language: p.language}
	var full strings.Builder
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("whisper: context cancelled: %w", err)
		}

		seg := types.Segment{
			Interval: timeline.Interval{
				Start: segment.Start.Seconds(),
				End:   segment.End.Seconds(),
			},
			Text: segment.Text,
		}
		for _, tok := range segment.Tokens {
			if !wctx.IsText(tok) {
				continue
			}
			seg.Words = append(seg.Words, types.Word{
				Interval: timeline.Interval{
					Start: tok.Start.Seconds(),
					End:   tok.End.Seconds(),
				},
				Text:       tok.Text,
				Confidence: float64(tok.P),
			})
		}
		full.WriteString(segment.Text)
		res.Segments = append(res.Segments, seg)
	}
	res.Text = full.String()

	return res, nil
}

// newContext creates a fresh whisper context configured for this provider.
// Contexts are not thread-safe, so each transcription gets its own.
func (p *NativeProvider) newContext() (whisperlib.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	wctx, err := p.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(p.language); err != nil {
		slog.Warn("whisper: failed to set language, using default",
			"language", p.language, "error", err)
	}
	wctx.SetTokenTimestamps(true)
	return wctx, nil
}

// decodePCM shells out to ffmpeg to decode any supported media container into
// raw 16-bit signed little-endian mono PCM at 16 kHz, the only input format
// whisper.cpp accepts.
func (p *NativeProvider) decodePCM(ctx context.Context, mediaPath string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, p.ffmpegPath,
		"-nostdin",
		"-i", mediaPath,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprint(nativeSampleRate),
		"-ac", "1",
		"-",
	)
	var errBuf strings.Builder
	cmd.Stderr = &errBuf

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("whisper: ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("whisper: start ffmpeg: %w", err)
	}
	pcm, readErr := io.ReadAll(stdout)
	waitErr := cmd.Wait()
	if readErr != nil {
		return nil, fmt.Errorf("whisper: read ffmpeg output: %w", readErr)
	}
	if waitErr != nil {
		return nil, fmt.Errorf("whisper: ffmpeg decode %q: %w (stderr: %s)",
			mediaPath, waitErr, strings.TrimSpace(errBuf.String()))
	}
	return pcm, nil
}
