package transcript

import (
	"context"
	"strings"

	"github.com/soundscribe/soundscribe/internal/transcript/llmcorrect"
	"github.com/soundscribe/soundscribe/pkg/types"
)

const defaultLLMConfidenceThreshold = 0.5

// Correction captures a single word-level substitution made by the corrector.
type Correction struct {
	// Original is the text as produced by the transcriber.
	Original string

	// Corrected is the canonical vocabulary term that replaced it.
	Corrected string

	// Confidence is the corrector's confidence in this substitution (0.0-1.0).
	Confidence float64

	// Method is "phonetic" or "llm" depending on which stage produced the
	// substitution.
	Method string
}

// Matcher resolves a word or phrase to a vocabulary term based on
// pronunciation similarity. It is the first correction stage and must be fast:
// no network calls, no LLM round-trips.
//
// When matched is false, corrected must equal word unchanged and confidence
// must be 0. Implementations must be safe for concurrent use.
type Matcher interface {
	Match(word string, terms []string) (corrected string, confidence float64, matched bool)
}

// CorrectorOption is a functional option for configuring a [Corrector].
type CorrectorOption func(*Corrector)

// WithLLMCorrector attaches an [llmcorrect.Corrector] as the second correction
// stage. When nil (the default), the LLM stage is skipped entirely.
func WithLLMCorrector(c *llmcorrect.Corrector) CorrectorOption {
	return func(cr *Corrector) {
		cr.llm = c
	}
}

// WithLLMOnLowConfidence sets the word-confidence threshold below which a
// word is flagged as a suspect and passed to the LLM corrector (when one is
// configured). Default: 0.5.
//
// Words below this confidence that were not already corrected by the phonetic
// stage are submitted to the LLM for review. When the transcript carries no
// per-word confidence data at all, the LLM stage always runs.
func WithLLMOnLowConfidence(threshold float64) CorrectorOption {
	return func(cr *Corrector) {
		cr.llmThreshold = threshold
	}
}

// Corrector fixes misheard vocabulary terms in a transcript. Stages are
// applied in order:
//
//  1. [Matcher]: in-process phonetic alignment of tokens and n-grams against
//     the vocabulary.
//  2. [llmcorrect.Corrector]: LLM review of low-confidence words the phonetic
//     stage left untouched.
//
// Substitutions are applied token-wise so segment and word timings are never
// disturbed. Corrector is safe for concurrent use.
type Corrector struct {
	matcher      Matcher
	llm          *llmcorrect.Corrector
	llmThreshold float64
}

// NewCorrector constructs a [Corrector] around the given phonetic matcher.
// The LLM stage is disabled unless [WithLLMCorrector] is applied.
func NewCorrector(matcher Matcher, opts ...CorrectorOption) *Corrector {
	c := &Corrector{
		matcher:      matcher,
		llmThreshold: defaultLLMConfidenceThreshold,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Correct applies the configured stages to segments and returns the corrected
// segments plus an itemised record of every substitution. The input slice is
// not modified.
//
// The returned segments are valid even when err is non-nil: an LLM stage
// failure leaves the phonetic-stage output intact, so callers can degrade by
// keeping the partial result.
func (c *Corrector) Correct(ctx context.Context, segments []types.Segment, terms []string) ([]types.Segment, []Correction, error) {
	if len(segments) == 0 || len(terms) == 0 {
		return segments, nil, nil
	}

	out := cloneSegments(segments)
	var corrections []Correction

	if c.matcher != nil {
		corrections = c.applyPhonetic(out, terms)
	}

	if c.llm == nil {
		return out, corrections, nil
	}

	corrected := make(map[string]struct{}, len(corrections))
	for _, corr := range corrections {
		corrected[strings.ToLower(corr.Original)] = struct{}{}
	}

	suspects, haveWordData := collectSuspects(out, c.llmThreshold, corrected)
	if haveWordData && len(suspects) == 0 {
		return out, corrections, nil
	}

	llmCorrs, err := c.llm.Correct(ctx, FullText(out), terms, suspects)
	if err != nil {
		return out, corrections, err
	}
	for _, lc := range llmCorrs {
		if applySubstitution(out, lc.Original, lc.Corrected) {
			corrections = append(corrections, Correction{
				Original:   lc.Original,
				Corrected:  lc.Corrected,
				Confidence: lc.Confidence,
				Method:     "llm",
			})
		}
	}

	return out, corrections, nil
}

// applyPhonetic runs the phonetic stage over every segment. At each token
// position it tries n-gram windows from the widest vocabulary term down to a
// single token, so multi-word terms take precedence over partial single-word
// matches.
func (c *Corrector) applyPhonetic(segments []types.Segment, terms []string) []Correction {
	maxTermWords := maxWordCount(terms)
	var corrections []Correction

	for si := range segments {
		tokens := segmentTokens(&segments[si])
		if len(tokens) == 0 {
			continue
		}

		changed := false
		i := 0
		for i < len(tokens) {
			maxN := maxTermWords
			if i+maxN > len(tokens) {
				maxN = len(tokens) - i
			}

			matched := false
			for n := maxN; n >= 1; n-- {
				window := joinCores(tokens[i : i+n])
				term, conf, ok := c.matcher.Match(window, terms)
				if !ok {
					continue
				}

				replaceWindow(tokens[i:i+n], term)
				corrections = append(corrections, Correction{
					Original:   window,
					Corrected:  term,
					Confidence: conf,
					Method:     "phonetic",
				})
				i += n
				matched = true
				changed = true
				break
			}

			if !matched {
				i++
			}
		}

		if changed {
			rebuildSegment(&segments[si], tokens)
		}
	}

	return corrections
}

// token is one whitespace-delimited unit of segment text, split so that
// substitutions preserve the transcriber's spacing and punctuation. wordIdx
// points back into the segment's Words slice, or -1 when the segment carries
// no word detail.
type token struct {
	lead    string // leading whitespace as emitted by the transcriber
	core    string // the matchable text
	trail   string // trailing punctuation
	wordIdx int
}

// trailingPunct is the set of characters split off token ends before
// matching, mirroring how the transcriber attaches punctuation to words.
const trailingPunct = ".,;:!?\"')"

func splitToken(raw string, wordIdx int) token {
	rest := strings.TrimLeft(raw, " \t")
	lead := raw[:len(raw)-len(rest)]
	core := strings.TrimRight(rest, trailingPunct)
	return token{
		lead:    lead,
		core:    core,
		trail:   rest[len(core):],
		wordIdx: wordIdx,
	}
}

// segmentTokens splits a segment into tokens. Segments with word detail yield
// one token per word; segments without degrade to whitespace splitting of the
// text.
func segmentTokens(seg *types.Segment) []token {
	if len(seg.Words) > 0 {
		tokens := make([]token, 0, len(seg.Words))
		for wi, w := range seg.Words {
			tokens = append(tokens, splitToken(w.Text, wi))
		}
		return tokens
	}

	fields := strings.Fields(seg.Text)
	tokens := make([]token, 0, len(fields))
	for fi, f := range fields {
		t := splitToken(f, -1)
		if fi > 0 {
			t.lead = " "
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// joinCores space-joins the core texts of tokens, skipping emptied ones.
func joinCores(tokens []token) string {
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t.core != "" {
			parts = append(parts, t.core)
		}
	}
	return strings.Join(parts, " ")
}

// replaceWindow writes term over a matched token window. The full term lands
// on the first token; the remainder of the window is emptied, leading
// whitespace included, so rebuilt text never double-spaces. Trailing
// punctuation of the window's last token survives on the term.
func replaceWindow(window []token, term string) {
	trail := window[len(window)-1].trail
	for i := 1; i < len(window); i++ {
		window[i] = token{wordIdx: window[i].wordIdx}
	}
	window[0].core = term
	window[0].trail = trail
}

// rebuildSegment writes the token list back into the segment's words and text.
func rebuildSegment(seg *types.Segment, tokens []token) {
	var sb strings.Builder
	for _, t := range tokens {
		text := t.lead + t.core + t.trail
		if t.wordIdx >= 0 {
			seg.Words[t.wordIdx].Text = text
		}
		sb.WriteString(text)
	}
	seg.Text = strings.TrimSpace(sb.String())
}

// collectSuspects returns words whose confidence is below threshold and that
// were not already corrected. haveWordData reports whether any segment
// carried per-word confidence at all.
func collectSuspects(segments []types.Segment, threshold float64, alreadyCorrected map[string]struct{}) (suspects []string, haveWordData bool) {
	for _, seg := range segments {
		for _, w := range seg.Words {
			haveWordData = true
			core := splitToken(w.Text, -1).core
			if core == "" {
				continue
			}
			if _, done := alreadyCorrected[strings.ToLower(core)]; done {
				continue
			}
			if w.Confidence < threshold {
				suspects = append(suspects, core)
			}
		}
	}
	return suspects, haveWordData
}

// applySubstitution replaces every token whose core matches original
// (case-insensitive) with corrected, across all segments. Reports whether at
// least one replacement was made.
func applySubstitution(segments []types.Segment, original, corrected string) bool {
	want := strings.ToLower(strings.TrimSpace(original))
	if want == "" {
		return false
	}

	applied := false
	for si := range segments {
		tokens := segmentTokens(&segments[si])
		changed := false
		for ti := range tokens {
			if strings.ToLower(tokens[ti].core) == want {
				tokens[ti].core = corrected
				changed = true
			}
		}
		if changed {
			rebuildSegment(&segments[si], tokens)
			applied = true
		}
	}
	return applied
}

// cloneSegments deep-copies segments so corrections never mutate the caller's
// transcript.
func cloneSegments(segments []types.Segment) []types.Segment {
	out := make([]types.Segment, len(segments))
	copy(out, segments)
	for i := range out {
		if len(out[i].Words) > 0 {
			words := make([]types.Word, len(out[i].Words))
			copy(words, out[i].Words)
			out[i].Words = words
		}
	}
	return out
}

// maxWordCount returns the maximum number of whitespace-separated words in
// any term. Returns 1 when terms is empty.
func maxWordCount(terms []string) int {
	max := 1
	for _, t := range terms {
		if n := len(strings.Fields(t)); n > max {
			max = n
		}
	}
	return max
}
