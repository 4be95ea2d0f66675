// Package mock provides a test double for the stt.Transcriber interface.
//
// Use Transcriber to feed controlled transcripts into the pipeline and to
// inspect which media paths were submitted.
//
// Example:
//
//	tr := &mock.Transcriber{
//	    TranscribeResult: &stt.Result{Text: "hello world"},
//	}
//	res, err := tr.Transcribe(ctx, "/tmp/audio.wav")
package mock

import (
	"context"
	"sync"

	"github.com/soundscribe/soundscribe/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// MediaPath is the path passed to Transcribe.
	MediaPath string
}

// Transcriber is a mock implementation of stt.Transcriber. Zero values for
// response fields cause methods to return zero values and nil errors; set Err
// fields to inject failures.
type Transcriber struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// TranscribeResult is returned by Transcribe. May be nil (returns an
	// empty result).
	TranscribeResult *stt.Result

	// TranscribeErr, if non-nil, is returned as the error from Transcribe.
	TranscribeErr error

	// TranscribeFunc, if non-nil, overrides all of the above.
	TranscribeFunc func(ctx context.Context, mediaPath string) (*stt.Result, error)

	// ModelIDValue is returned by ModelID.
	ModelIDValue string

	// --- Call records (read after test) ---

	// TranscribeCalls records every invocation of Transcribe in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns the configured result.
func (t *Transcriber) Transcribe(ctx context.Context, mediaPath string) (*stt.Result, error) {
	t.mu.Lock()
	t.TranscribeCalls = append(t.TranscribeCalls, TranscribeCall{Ctx: ctx, MediaPath: mediaPath})
	fn := t.TranscribeFunc
	res, err := t.TranscribeResult, t.TranscribeErr
	t.mu.Unlock()

	if fn != nil {
		return fn(ctx, mediaPath)
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &stt.Result{}, nil
	}
	return res, nil
}

// ModelID returns ModelIDValue.
func (t *Transcriber) ModelID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ModelIDValue
}

// Reset clears all recorded calls. Thread-safe.
func (t *Transcriber) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.TranscribeCalls = nil
}

// Ensure Transcriber implements stt.Transcriber at compile time.
var _ stt.Transcriber = (*Transcriber)(nil)
