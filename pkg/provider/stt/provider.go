// Package stt defines the Transcriber interface for speech-to-text backends.
//
// A transcriber wraps a batch transcription engine (e.g., a local
// whisper-server, the whisper.cpp bindings, or the OpenAI audio API) and
// exposes a uniform file-in, transcript-out interface. The central output is
// Result: the full transcript text plus time-coded segments whose words carry
// start/end timestamps used by the speaker aligner.
//
// Implementations must be safe for concurrent use. Multiple transcriptions
// may run simultaneously (one per pipeline worker).
package stt

import (
	"context"

	"github.com/soundscribe/soundscribe/pkg/types"
)

// Result is the outcome of one batch transcription.
type Result struct {
	// Text is the full transcript, the concatenation of all segment texts.
	Text string

	// Segments are the time-coded transcript segments in temporal order.
	// Word-level timestamps are populated when the backend provides them;
	// callers that need words regardless should fall back to pseudo-words
	// derived from segment boundaries.
	Segments []types.Segment

	// Language is the detected or configured language code (e.g., "en"),
	// empty when the backend does not report one.
	Language string
}

// Transcriber is the abstraction over any batch speech-to-text backend.
//
// Transcribe reads the media file at mediaPath and returns the transcript.
// The file must be in a format the backend accepts; the media preparation
// step converts uploads to 16 kHz mono WAV before transcription.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaPath string) (*Result, error)

	// ModelID returns the backend-specific model identifier
	// (e.g., "base.en", "whisper-1").
	ModelID() string
}
