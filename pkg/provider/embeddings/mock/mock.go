// Package mock provides a test double for the embeddings.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/soundscribe/soundscribe/pkg/provider/embeddings"
)

// Provider is a mock implementation of embeddings.Provider. Zero values for
// response fields cause methods to return zero values and nil errors; set Err
// fields to inject failures.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// EmbedResponse is returned by Embed.
	EmbedResponse []float32

	// EmbedErr, if non-nil, is returned as the error from Embed.
	EmbedErr error

	// EmbedBatchResponse is returned by EmbedBatch.
	EmbedBatchResponse [][]float32

	// EmbedBatchErr, if non-nil, is returned as the error from EmbedBatch.
	EmbedBatchErr error

	// EmbedBatchFunc, if non-nil, overrides EmbedBatchResponse/EmbedBatchErr.
	EmbedBatchFunc func(ctx context.Context, texts []string) ([][]float32, error)

	// DimensionsValue is returned by Dimensions.
	DimensionsValue int

	// ModelIDValue is returned by ModelID.
	ModelIDValue string

	// --- Call records (read after test) ---

	// EmbedCalls records the text of every Embed invocation in order.
	EmbedCalls []string

	// EmbedBatchCalls records the texts of every EmbedBatch invocation in order.
	EmbedBatchCalls [][]string
}

// Embed records the call and returns the configured response.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.EmbedCalls = append(p.EmbedCalls, text)
	resp, err := p.EmbedResponse, p.EmbedErr
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return resp, nil
}

// EmbedBatch records the call and returns the configured response.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	p.EmbedBatchCalls = append(p.EmbedBatchCalls, texts)
	fn := p.EmbedBatchFunc
	resp, err := p.EmbedBatchResponse, p.EmbedBatchErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, texts)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Dimensions returns DimensionsValue.
func (p *Provider) Dimensions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.DimensionsValue
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
	p.EmbedCalls = nil
	p.EmbedBatchCalls = nil
}

// Ensure Provider implements embeddings.Provider at compile time.
var _ embeddings.Provider = (*Provider)(nil)
