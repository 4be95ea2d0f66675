// Package align maps transcribed words onto normalized speaker turns and
// regroups contiguous same-speaker words into aligned spans.
//
// Assignment is by word midpoint: a word belongs to the first turn whose
// interval contains the word's temporal midpoint. Words outside every turn
// get the sentinel label [UnknownSpeaker]. The lookup is a linear scan per
// word, which is fine at conversational transcript scale; long-form input
// would want a binary search over the sorted turns, but that is a throughput
// concern, not a correctness one.
package align

import (
	"strings"

	"github.com/soundscribe/soundscribe/pkg/types"
)

// UnknownSpeaker is the label assigned to words whose midpoint falls outside
// every normalized turn.
const UnknownSpeaker = "Speaker"

// Align assigns each word to a speaker turn and groups maximal runs of
// same-speaker words into spans. Words must be in time order, turns must be
// the output of the diarization normalizer (sorted, non-overlapping).
//
// Span text is built by raw concatenation of word texts followed by a trim of
// the whole span — NOT a space-inserted join. Whisper-family transcribers
// emit tokens that carry their own leading whitespace; inserting spaces here
// would double-space well-formed input. Providers that return bare words are
// responsible for synthesizing the leading space (see pkg/provider/stt).
//
// Returns nil for empty words. Malformed intervals from upstream are accepted
// as-is; validating them is the transcriber's job.
func Align(turns []types.NormalizedTurn, words []types.Word) []types.AlignedSpan {
	if len(words) == 0 {
		return nil
	}

	spans := make([]types.AlignedSpan, 0, len(turns)+1)

	var (
		cur   []types.Word
		label string
	)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		var sb strings.Builder
		for _, w := range cur {
			sb.WriteString(w.Text)
		}
		span := types.AlignedSpan{
			SpeakerLabel: label,
			Text:         strings.TrimSpace(sb.String()),
		}
		span.Interval.Start = cur[0].Interval.Start
		span.Interval.End = cur[len(cur)-1].Interval.End
		spans = append(spans, span)
	}

	for _, w := range words {
		speaker := speakerAt(turns, w.Interval.Midpoint())
		if len(cur) == 0 {
			label = speaker
			cur = append(cur, w)
			continue
		}
		if speaker != label {
			flush()
			cur = cur[:0]
			label = speaker
		}
		cur = append(cur, w)
	}
	flush()

	return spans
}

// WordsFromSegments degrades a segment-level transcript to the word shape:
// each segment with no word detail becomes one pseudo-word spanning its own
// interval with confidence 1.0. Segments that do carry words contribute them
// directly.
func WordsFromSegments(segments []types.Segment) []types.Word {
	words := make([]types.Word, 0, len(segments))
	for _, seg := range segments {
		if len(seg.Words) > 0 {
			words = append(words, seg.Words...)
			continue
		}
		words = append(words, types.Word{
			Interval:   seg.Interval,
			Text:       seg.Text,
			Confidence: 1.0,
		})
	}
	return words
}

// speakerAt returns the label of the first turn containing t, or
// UnknownSpeaker when none does.
func speakerAt(turns []types.NormalizedTurn, t float64) string {
	for _, turn := range turns {
		if turn.Interval.Contains(t) {
			return turn.SpeakerLabel
		}
	}
	return UnknownSpeaker
}
