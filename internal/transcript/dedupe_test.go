package transcript

import (
	"testing"

	"github.com/soundscribe/soundscribe/pkg/timeline"
	"github.com/soundscribe/soundscribe/pkg/types"
)

func seg(start, end float64, text string) types.Segment {
	return types.Segment{
		Interval: timeline.Interval{Start: start, End: end},
		Text:     text,
	}
}

func texts(segments []types.Segment) []string {
	out := make([]string, len(segments))
	for i, s := range segments {
		out[i] = s.Text
	}
	return out
}

func TestDedupeSegments(t *testing.T) {
	t.Run("short inputs pass through", func(t *testing.T) {
		if got := DedupeSegments(nil); got != nil {
			t.Errorf("DedupeSegments(nil) = %v", got)
		}
		one := []types.Segment{seg(0, 1, "only line")}
		if got := DedupeSegments(one); len(got) != 1 {
			t.Errorf("len = %d, want 1", len(got))
		}
	})

	t.Run("consecutive identical lines are dropped", func(t *testing.T) {
		in := []types.Segment{
			seg(0, 1, " Thanks for watching."),
			seg(1, 2, " Thanks for watching."),
			seg(2, 3, " Thanks for watching."),
			seg(3, 4, " And now something else."),
		}
		got := DedupeSegments(in)
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2: %v", len(got), texts(got))
		}
		if got[0].Interval.Start != 0 || got[1].Text != " And now something else." {
			t.Errorf("kept wrong segments: %v", texts(got))
		}
	})

	t.Run("case and whitespace insensitive", func(t *testing.T) {
		in := []types.Segment{
			seg(0, 1, "Hello there"),
			seg(1, 2, "  hello THERE  "),
		}
		if got := DedupeSegments(in); len(got) != 1 {
			t.Errorf("len = %d, want 1: %v", len(got), texts(got))
		}
	})

	t.Run("near-identical lines are dropped", func(t *testing.T) {
		in := []types.Segment{
			seg(0, 1, "so let's move on to the next chapter"),
			seg(1, 2, "so let's move on to the next chapters"),
		}
		if got := DedupeSegments(in); len(got) != 1 {
			t.Errorf("len = %d, want 1: %v", len(got), texts(got))
		}
	})

	t.Run("similar but length-divergent lines survive", func(t *testing.T) {
		in := []types.Segment{
			seg(0, 1, "so let's move on"),
			seg(1, 2, "so let's move on to the next chapter of the talk"),
		}
		if got := DedupeSegments(in); len(got) != 2 {
			t.Errorf("len = %d, want 2: %v", len(got), texts(got))
		}
	})

	t.Run("distinct lines survive", func(t *testing.T) {
		in := []types.Segment{
			seg(0, 1, "welcome to the show"),
			seg(1, 2, "today we talk about databases"),
			seg(2, 3, "starting with indexing"),
		}
		if got := DedupeSegments(in); len(got) != 3 {
			t.Errorf("len = %d, want 3: %v", len(got), texts(got))
		}
	})

	t.Run("empty segments are never repeats", func(t *testing.T) {
		in := []types.Segment{
			seg(0, 1, ""),
			seg(1, 2, ""),
			seg(2, 3, "content"),
		}
		if got := DedupeSegments(in); len(got) != 3 {
			t.Errorf("len = %d, want 3: %v", len(got), texts(got))
		}
	})

	t.Run("non-consecutive repeats survive", func(t *testing.T) {
		in := []types.Segment{
			seg(0, 1, "the chorus line"),
			seg(1, 2, "a verse in between"),
			seg(2, 3, "the chorus line"),
		}
		if got := DedupeSegments(in); len(got) != 3 {
			t.Errorf("len = %d, want 3: %v", len(got), texts(got))
		}
	})

	t.Run("input slice is not modified", func(t *testing.T) {
		in := []types.Segment{
			seg(0, 1, "same line"),
			seg(1, 2, "same line"),
			seg(2, 3, "other line"),
		}
		DedupeSegments(in)
		if in[1].Text != "same line" {
			t.Error("input slice was modified")
		}
	})
}

func TestFullText(t *testing.T) {
	in := []types.Segment{
		seg(0, 1, " Hello world."),
		seg(1, 2, " Second line. "),
	}
	if got := FullText(in); got != "Hello world. Second line." {
		t.Errorf("FullText = %q", got)
	}
}
