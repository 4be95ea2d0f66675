// Package mock provides a test double for the diarizer.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/soundscribe/soundscribe/pkg/provider/diarizer"
	"github.com/soundscribe/soundscribe/pkg/types"
)

// DiarizeCall records a single invocation of Diarize.
type DiarizeCall struct {
	// Ctx is the context passed to Diarize.
	Ctx context.Context
	// MediaPath is the path passed to Diarize.
	MediaPath string
}

// Provider is a mock implementation of diarizer.Provider. Zero values for
// response fields cause methods to return zero values and nil errors; set Err
// fields to inject failures.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// DiarizeTurns is returned by Diarize.
	DiarizeTurns []types.RawTurn

	// DiarizeErr, if non-nil, is returned as the error from Diarize.
	DiarizeErr error

	// DiarizeFunc, if non-nil, overrides all of the above.
	DiarizeFunc func(ctx context.Context, mediaPath string) ([]types.RawTurn, error)

	// ModelIDValue is returned by ModelID.
	ModelIDValue string

	// --- Call records (read after test) ---

	// DiarizeCalls records every invocation of Diarize in order.
	DiarizeCalls []DiarizeCall
}

// Diarize records the call and returns the configured turns.
func (p *Provider) Diarize(ctx context.Context, mediaPath string) ([]types.RawTurn, error) {
	p.mu.Lock()
	p.DiarizeCalls = append(p.DiarizeCalls, DiarizeCall{Ctx: ctx, MediaPath: mediaPath})
	fn := p.DiarizeFunc
	turns, err := p.DiarizeTurns, p.DiarizeErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, mediaPath)
	}
	if err != nil {
		return nil, err
	}
	return turns, nil
}

// ModelID returns ModelIDValue.
func (p *Provider) ModelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ModelIDValue
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DiarizeCalls = nil
}

// Ensure Provider implements diarizer.Provider at compile time.
var _ diarizer.Provider = (*Provider)(nil)
