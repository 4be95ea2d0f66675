package sentiment

import "testing"

func TestScore(t *testing.T) {
	s := New()

	t.Run("empty text is neutral", func(t *testing.T) {
		got := s.Score("")
		if got.Neutral != 1 || got.Compound != 0 {
			t.Errorf("Score(\"\") = %+v, want fully neutral", got)
		}
	})

	t.Run("positive text", func(t *testing.T) {
		got := s.Score("This was a great talk, I really enjoyed the excellent examples.")
		if got.Compound <= 0 {
			t.Errorf("Compound = %v, want > 0", got.Compound)
		}
		if got.Positive <= got.Negative {
			t.Errorf("Positive = %v, Negative = %v, want positive dominant", got.Positive, got.Negative)
		}
	})

	t.Run("negative text", func(t *testing.T) {
		got := s.Score("The rollout was a disaster, a terrible failure with painful problems.")
		if got.Compound >= 0 {
			t.Errorf("Compound = %v, want < 0", got.Compound)
		}
		if got.Negative <= got.Positive {
			t.Errorf("Negative = %v, Positive = %v, want negative dominant", got.Negative, got.Positive)
		}
	})

	t.Run("negation flips polarity", func(t *testing.T) {
		plain := s.Score("the results were good")
		negated := s.Score("the results were not good")
		if plain.Compound <= 0 {
			t.Fatalf("plain Compound = %v, want > 0", plain.Compound)
		}
		if negated.Compound >= 0 {
			t.Errorf("negated Compound = %v, want < 0", negated.Compound)
		}
	})

	t.Run("intensifier raises magnitude", func(t *testing.T) {
		plain := s.Score("the talk was good")
		boosted := s.Score("the talk was extremely good")
		if boosted.Compound <= plain.Compound {
			t.Errorf("boosted Compound = %v, plain = %v, want boost", boosted.Compound, plain.Compound)
		}
	})

	t.Run("unknown-only text is neutral", func(t *testing.T) {
		got := s.Score("the meeting covered quarterly logistics and scheduling")
		if got.Compound != 0 {
			t.Errorf("Compound = %v, want 0", got.Compound)
		}
		if got.Neutral != 1 {
			t.Errorf("Neutral = %v, want 1", got.Neutral)
		}
	})

	t.Run("proportions sum to one", func(t *testing.T) {
		got := s.Score("great results but terrible planning and a boring ending")
		sum := got.Positive + got.Negative + got.Neutral
		if sum < 0.99 || sum > 1.01 {
			t.Errorf("proportions sum = %v, want 1 (±rounding): %+v", sum, got)
		}
	})

	t.Run("compound stays within bounds", func(t *testing.T) {
		got := s.Score("amazing amazing amazing fantastic excellent wonderful perfect best")
		if got.Compound <= 0.5 || got.Compound > 1.0 {
			t.Errorf("Compound = %v, want strong positive within (0.5, 1]", got.Compound)
		}
	})

	t.Run("exclamation raises emphasis", func(t *testing.T) {
		plain := s.Score("the talk was good")
		emphatic := s.Score("the talk was good!!!")
		if emphatic.Compound <= plain.Compound {
			t.Errorf("emphatic Compound = %v, plain = %v, want punctuation boost",
				emphatic.Compound, plain.Compound)
		}
	})

	t.Run("contractions negate", func(t *testing.T) {
		got := s.Score("the demo wasn't good")
		if got.Compound >= 0 {
			t.Errorf("Compound = %v, want < 0", got.Compound)
		}
	})
}
