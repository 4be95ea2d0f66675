// Package diarizer defines the Provider interface for speaker diarization
// backends.
//
// A diarizer answers "who spoke when": given a media file it returns raw
// speaker turns with opaque model-internal speaker IDs. Raw turns may
// overlap, may be fragmentary, and carry no stable labels; the diarization
// normalizer cleans them before alignment.
//
// Implementations must be safe for concurrent use.
package diarizer

import (
	"context"

	"github.com/soundscribe/soundscribe/pkg/types"
)

// Provider is the abstraction over any speaker diarization backend.
type Provider interface {
	// Diarize analyses the media file at mediaPath and returns the raw
	// speaker turns in the order the backend emitted them. An empty slice
	// with a nil error means the backend found no speech.
	Diarize(ctx context.Context, mediaPath string) ([]types.RawTurn, error)

	// ModelID returns the backend-specific model identifier
	// (e.g., "pyannote/speaker-diarization-3.1").
	ModelID() string
}
