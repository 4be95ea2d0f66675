package align

import (
	"strings"
	"testing"

	"github.com/soundscribe/soundscribe/pkg/timeline"
	"github.com/soundscribe/soundscribe/pkg/types"
)

func word(text string, start, end float64) types.Word {
	return types.Word{
		Interval:   timeline.Interval{Start: start, End: end},
		Text:       text,
		Confidence: 0.9,
	}
}

func turn(start, end float64, label string) types.NormalizedTurn {
	return types.NormalizedTurn{
		Interval:     timeline.Interval{Start: start, End: end},
		SpeakerLabel: label,
	}
}

func TestAlign(t *testing.T) {
	t.Run("empty words returns nil", func(t *testing.T) {
		if got := Align([]types.NormalizedTurn{turn(0, 1, "Speaker 1")}, nil); got != nil {
			t.Fatalf("expected nil, got %v", got)
		}
	})

	t.Run("groups words by speaker via midpoint", func(t *testing.T) {
		words := []types.Word{
			word("Hello", 0.0, 0.5),
			word(" world", 0.6, 1.0),
			word(" here", 1.5, 2.0),
		}
		turns := []types.NormalizedTurn{
			turn(0.0, 1.2, "Speaker 1"),
			turn(1.4, 3.0, "Speaker 2"),
		}
		got := Align(turns, words)
		if len(got) != 2 {
			t.Fatalf("expected 2 spans, got %d: %v", len(got), got)
		}
		if got[0].SpeakerLabel != "Speaker 1" || got[0].Text != "Hello world" {
			t.Errorf("span 0 = %q %q", got[0].SpeakerLabel, got[0].Text)
		}
		if got[1].SpeakerLabel != "Speaker 2" || got[1].Text != "here" {
			t.Errorf("span 1 = %q %q", got[1].SpeakerLabel, got[1].Text)
		}
		if got[0].Interval.Start != 0.0 || got[0].Interval.End != 1.0 {
			t.Errorf("span 0 interval = %+v", got[0].Interval)
		}
		if got[1].Interval.Start != 1.5 || got[1].Interval.End != 2.0 {
			t.Errorf("span 1 interval = %+v", got[1].Interval)
		}
	})

	t.Run("word outside every turn gets sentinel label", func(t *testing.T) {
		words := []types.Word{word("lost", 10.0, 11.0)}
		turns := []types.NormalizedTurn{turn(0.0, 1.0, "Speaker 1")}
		got := Align(turns, words)
		if len(got) != 1 {
			t.Fatalf("expected 1 span, got %d", len(got))
		}
		if got[0].SpeakerLabel != UnknownSpeaker {
			t.Errorf("label = %q, want %q", got[0].SpeakerLabel, UnknownSpeaker)
		}
	})

	t.Run("no turns at all yields one sentinel span", func(t *testing.T) {
		words := []types.Word{
			word("a", 0.0, 0.5),
			word(" b", 0.6, 1.0),
		}
		got := Align(nil, words)
		if len(got) != 1 {
			t.Fatalf("expected 1 span, got %d", len(got))
		}
		if got[0].Text != "a b" {
			t.Errorf("text = %q", got[0].Text)
		}
	})

	t.Run("word_text_concatenation_preserves_upstream_spacing", func(t *testing.T) {
		// Tokens carry their own leading space; the join must not insert more.
		words := []types.Word{
			word(" It's", 0.0, 0.4),
			word(" a", 0.4, 0.5),
			word(" test.", 0.5, 1.0),
		}
		got := Align([]types.NormalizedTurn{turn(0, 2, "Speaker 1")}, words)
		if got[0].Text != "It's a test." {
			t.Errorf("text = %q, want %q", got[0].Text, "It's a test.")
		}
	})

	t.Run("consecutive spans never share a label", func(t *testing.T) {
		words := []types.Word{
			word("one", 0.0, 0.5),
			word(" two", 1.0, 1.5),
			word(" three", 2.0, 2.5),
			word(" four", 3.0, 3.5),
		}
		turns := []types.NormalizedTurn{
			turn(0.0, 0.6, "Speaker 1"),
			turn(0.9, 1.6, "Speaker 2"),
			turn(1.9, 3.6, "Speaker 1"),
		}
		got := Align(turns, words)
		for i := 1; i < len(got); i++ {
			if got[i].SpeakerLabel == got[i-1].SpeakerLabel {
				t.Errorf("spans %d and %d share label %q", i-1, i, got[i].SpeakerLabel)
			}
		}
	})
}

// TestAlignCoverage checks that no word text is dropped or duplicated: the
// whitespace-stripped concatenation of span texts equals that of the inputs.
func TestAlignCoverage(t *testing.T) {
	words := []types.Word{
		word(" The", 0.0, 0.2),
		word(" quick", 0.2, 0.5),
		word(" brown", 0.6, 0.9),
		word(" fox", 1.3, 1.6),
		word(" jumps", 1.7, 2.2),
		word(" over", 4.0, 4.4),
	}
	turns := []types.NormalizedTurn{
		turn(0.0, 1.0, "Speaker 1"),
		turn(1.2, 2.4, "Speaker 2"),
	}
	got := Align(turns, words)

	strip := func(s string) string {
		return strings.Join(strings.Fields(s), "")
	}
	var in, out strings.Builder
	for _, w := range words {
		in.WriteString(strip(w.Text))
	}
	for _, s := range got {
		out.WriteString(strip(s.Text))
	}
	if in.String() != out.String() {
		t.Errorf("coverage mismatch:\n in: %q\nout: %q", in.String(), out.String())
	}
}

func TestWordsFromSegments(t *testing.T) {
	t.Run("segment without words becomes pseudo-word", func(t *testing.T) {
		segs := []types.Segment{
			{Interval: timeline.Interval{Start: 0, End: 2}, Text: "Hello there."},
		}
		got := WordsFromSegments(segs)
		if len(got) != 1 {
			t.Fatalf("expected 1 word, got %d", len(got))
		}
		if got[0].Confidence != 1.0 {
			t.Errorf("confidence = %v, want 1.0", got[0].Confidence)
		}
		if got[0].Text != "Hello there." || got[0].Interval.End != 2 {
			t.Errorf("unexpected pseudo-word: %+v", got[0])
		}
	})

	t.Run("segment words pass through", func(t *testing.T) {
		segs := []types.Segment{
			{
				Interval: timeline.Interval{Start: 0, End: 1},
				Text:     " a b",
				Words: []types.Word{
					word(" a", 0.0, 0.4),
					word(" b", 0.5, 1.0),
				},
			},
		}
		got := WordsFromSegments(segs)
		if len(got) != 2 {
			t.Fatalf("expected 2 words, got %d", len(got))
		}
		if got[0].Text != " a" || got[1].Text != " b" {
			t.Errorf("unexpected words: %+v", got)
		}
	})
}
