// Package summary produces a whole-transcript summary through the
// text-generation collaborator.
//
// The pipeline treats summarisation as best-effort: an error from Summarise
// degrades the job to an empty summary instead of failing it.
package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/soundscribe/soundscribe/pkg/provider/llm"
)

// TooShortMessage is returned instead of a generated summary when the
// transcript carries too little text to summarise.
const TooShortMessage = "Text too short to summarize."

// minTextChars is the minimum trimmed transcript length worth summarising.
const minTextChars = 50

// completionTimeout bounds the summary completion. Whole-transcript prompts
// are large, so the window is generous, but a hung backend still surfaces as
// a degraded (empty) summary rather than a stuck worker.
const completionTimeout = 2 * time.Minute

// summaryPrompt asks for a direct, objective summary. The tone guidelines
// stop the model from narrating the transcript ("the speaker discusses...").
const summaryPrompt = `You are an expert summarizer. Summarize the following content directly and concisely.

Guidelines:
- Write in a direct, objective tone.
- Do NOT use phrases like "The transcript says", "The speaker discusses", or "The text mentions".
- Focus purely on the Information and Actionable Insights.
- Organize with clear headings or bullet points if appropriate.`

// Summariser produces a concise summary of transcript text.
type Summariser interface {
	// Summarise returns a condensed summary of text.
	Summarise(ctx context.Context, text string) (string, error)
}

// LLMSummariser uses a text-generation provider to summarise transcripts.
type LLMSummariser struct {
	llm llm.Provider
}

// NewLLMSummariser creates a new [LLMSummariser] backed by the given provider.
func NewLLMSummariser(provider llm.Provider) *LLMSummariser {
	return &LLMSummariser{llm: provider}
}

// Summarise sends the transcript to the LLM with the summarisation prompt.
// Transcripts below the minimum length return TooShortMessage without a
// provider call. An empty completion is an error so the caller can tell a
// degraded summary from a real one.
func (s *LLMSummariser) Summarise(ctx context.Context, text string) (string, error) {
	if len(strings.TrimSpace(text)) < minTextChars {
		return TooShortMessage, nil
	}

	ctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: summaryPrompt,
		Messages: []llm.Message{
			{
				Role:    "user",
				Content: fmt.Sprintf("Content:\n%s\n\nSummary:", text),
			},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("summary: %w", err)
	}

	out := strings.TrimSpace(resp.Content)
	if out == "" {
		return "", fmt.Errorf("summary: provider returned an empty summary")
	}
	return out, nil
}

// Compile-time assertion that LLMSummariser implements Summariser.
var _ Summariser = (*LLMSummariser)(nil)
