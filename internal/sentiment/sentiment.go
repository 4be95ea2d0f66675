// Package sentiment scores transcript polarity with VADER.
//
// Scoring is delegated to govader, a Go port of the VADER model, so the
// {positive, negative, neutral, compound} breakdown matches the reference
// implementation including negation handling, intensifiers, contractions,
// and punctuation emphasis.
package sentiment

import (
	"strings"
	"sync"

	"github.com/jonreiter/govader"

	"github.com/soundscribe/soundscribe/pkg/types"
)

// Scorer computes polarity scores over free text. The zero value is not
// usable; construct with New. Safe for concurrent use.
type Scorer struct {
	mu       sync.Mutex
	analyzer *govader.SentimentIntensityAnalyzer
}

// New returns a Scorer backed by the VADER lexicon.
func New() *Scorer {
	return &Scorer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Score returns the polarity breakdown for text. Empty or blank text scores
// fully neutral. Calls are serialized; the underlying analyzer makes no
// concurrency guarantees.
func (s *Scorer) Score(text string) types.SentimentScore {
	if strings.TrimSpace(text) == "" {
		return types.SentimentScore{Neutral: 1}
	}

	s.mu.Lock()
	res := s.analyzer.PolarityScores(text)
	s.mu.Unlock()

	return types.SentimentScore{
		Positive: res.Positive,
		Negative: res.Negative,
		Neutral:  res.Neutral,
		Compound: res.Compound,
	}
}
