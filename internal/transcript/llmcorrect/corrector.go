// Package llmcorrect implements a language-model-based correction stage that
// resolves vocabulary misspellings not caught by the phonetic matcher.
//
// The [Corrector] sends the transcript text to an [llm.Provider] along with
// the list of known vocabulary terms. The model is instructed (via a
// conservative system prompt) to identify words that look like misheard
// vocabulary terms and to return a structured JSON list of substitutions.
// The corrector never accepts a rewritten transcript from the model: callers
// apply the returned substitutions token-wise themselves, so a model that
// invents unrelated changes cannot corrupt the transcript.
//
// When the LLM response cannot be parsed, the corrector returns no
// substitutions and a nil error rather than surfacing a failure, ensuring
// pipeline robustness.
package llmcorrect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/soundscribe/soundscribe/pkg/provider/llm"
)

const (
	defaultTemperature = 0.1

	// completionTimeout bounds the review call; past it the caller keeps the
	// phonetic result.
	completionTimeout = time.Minute
)

// systemPromptTemplate is the base system prompt. The vocabulary list is
// appended at call time so each request carries the current job's terms.
const systemPromptTemplate = `You are a transcript correction assistant.

Your task: identify vocabulary term misspellings in the provided transcript text.

Rules:
- ONLY report words that appear to be misheard versions of the known vocabulary terms listed below.
- Do NOT report ordinary English words, grammar, punctuation, or phrasing issues.
- Be conservative: if you are not confident a word is a misheard vocabulary term, do not report it.
- The corrected spelling must match the canonical spelling from the vocabulary list exactly.

Known vocabulary:
%s

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "corrections": [
    {"original": "<original word>", "corrected": "<vocabulary term>", "confidence": <0.0-1.0>}
  ]
}

If no corrections are needed, return an empty corrections array.`

// Correction captures a single word-level substitution proposed by the model.
type Correction struct {
	// Original is the word as it appeared in the input transcript.
	Original string

	// Corrected is the canonical vocabulary term the word should become.
	Corrected string

	// Confidence is the model's reported confidence for this substitution
	// (0.0-1.0).
	Confidence float64
}

// llmResponse is the expected JSON structure returned by the LLM.
type llmResponse struct {
	Corrections []struct {
		Original   string  `json:"original"`
		Corrected  string  `json:"corrected"`
		Confidence float64 `json:"confidence"`
	} `json:"corrections"`
}

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithTemperature sets the LLM sampling temperature. Lower values produce
// more deterministic corrections. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(c *Corrector) {
		c.temperature = temp
	}
}

// Corrector uses an [llm.Provider] to find vocabulary misspellings in
// transcript text. It is safe for concurrent use.
type Corrector struct {
	llm         llm.Provider
	temperature float64
}

// New returns a new [Corrector] backed by the given [llm.Provider].
func New(provider llm.Provider, opts ...Option) *Corrector {
	c := &Corrector{
		llm:         provider,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Correct sends text to the LLM with the vocabulary list as context and asks
// for a list of misheard terms. suspects are words flagged by the caller as
// low-confidence transcriptions; they are highlighted in the user message.
//
// Substitutions whose corrected form is not one of the known terms are
// discarded. When the LLM response is unparseable, Correct returns a nil
// corrections slice and a nil error (graceful degradation).
//
// Context cancellation and network errors are returned as non-nil errors.
func (c *Corrector) Correct(
	ctx context.Context,
	text string,
	terms []string,
	suspects []string,
) ([]Correction, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	userMsg := text
	if len(suspects) > 0 {
		userMsg = fmt.Sprintf(
			"Transcript: %s\n\nLow-confidence words that may be misheard: %s",
			text,
			strings.Join(suspects, ", "),
		)
	}

	req := llm.CompletionRequest{
		SystemPrompt: buildSystemPrompt(terms),
		Temperature:  c.temperature,
		Messages: []llm.Message{
			{Role: "user", Content: userMsg},
		},
	}

	cctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	resp, err := c.llm.Complete(cctx, req)
	if err != nil {
		return nil, fmt.Errorf("llm corrector: complete: %w", err)
	}

	corrections, parseErr := parseResponse(resp.Content)
	if parseErr != nil {
		// Unparseable response: no substitutions, no error.
		return nil, nil
	}

	return filterKnownTerms(corrections, terms), nil
}

// buildSystemPrompt formats the system prompt template with the term list.
func buildSystemPrompt(terms []string) string {
	var sb strings.Builder
	for _, t := range terms {
		sb.WriteString("- ")
		sb.WriteString(t)
		sb.WriteByte('\n')
	}
	return fmt.Sprintf(systemPromptTemplate, sb.String())
}

// parseResponse attempts to unmarshal the LLM output into an [llmResponse].
// It strips markdown code fences before parsing.
func parseResponse(content string) ([]Correction, error) {
	cleaned := stripMarkdown(content)

	var r llmResponse
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return nil, fmt.Errorf("llm corrector: parse response: %w", err)
	}

	corrections := make([]Correction, 0, len(r.Corrections))
	for _, c := range r.Corrections {
		if c.Original == "" || strings.EqualFold(c.Original, c.Corrected) {
			continue
		}
		corrections = append(corrections, Correction{
			Original:   c.Original,
			Corrected:  c.Corrected,
			Confidence: c.Confidence,
		})
	}
	return corrections, nil
}

// filterKnownTerms drops substitutions whose corrected form does not match a
// known vocabulary term. The model may only map words onto the vocabulary,
// never onto spellings of its own invention.
func filterKnownTerms(corrections []Correction, terms []string) []Correction {
	known := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		known[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}

	kept := corrections[:0]
	for _, c := range corrections {
		if _, ok := known[strings.ToLower(strings.TrimSpace(c.Corrected))]; ok {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models prepend and append to JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
