// Package llm defines the Provider interface for text-generation backends.
//
// An LLM provider wraps a remote or local model API (e.g., OpenAI, Anthropic,
// or a local Ollama instance) and exposes a uniform completion interface for
// chapter titling and transcript summarization, without coupling to any
// specific SDK.
//
// The pipeline is a batch system: it never streams completions, so the
// interface is deliberately a single blocking call. Implementations must be
// safe for concurrent use and must honour context cancellation — titling in
// particular runs every completion under a per-request timeout, and a
// timed-out call must return promptly so the caller can substitute its
// placeholder.
package llm

import "context"

// Message is a single message in a completion conversation.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// CompletionRequest carries everything the model needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. The last message is typically
	// from the "user" role and drives the response.
	Messages []Message

	// SystemPrompt is an optional high-priority instruction injected before
	// the conversation. Providers without native system-prompt support must
	// prepend it as a "system"-role message.
	SystemPrompt string

	// Temperature controls output randomness in [0.0, 2.0]. Zero requests
	// near-greedy decoding, which suits titling and summarization.
	Temperature float64

	// MaxTokens caps completion length. Zero means the provider default.
	MaxTokens int
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	// Content is the full text of the completion. Callers must treat an
	// empty or whitespace-only Content as "no output produced".
	Content string

	// PromptTokens and CompletionTokens hold token accounting when the
	// backend reports it; both are zero otherwise.
	PromptTokens     int
	CompletionTokens int
}

// Provider is the abstraction over any text-generation backend.
//
// Implementations must be safe for concurrent use and must return promptly
// when ctx is cancelled or its deadline passes.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// ModelID returns the backing model identifier (e.g., "gpt-4o-mini",
	// "llama3.2"), for logging and result provenance.
	ModelID() string
}
