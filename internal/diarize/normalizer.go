// Package diarize normalizes raw speaker turns from the diarization
// collaborator into a clean, gap-merged, stably relabeled turn list.
//
// Raw diarization output is noisy: turns overlap, tiny fragments appear at
// speaker changes, and the model's internal speaker IDs ("SPEAKER_00", …)
// carry no stable meaning across runs. [Normalize] resolves all of that with
// two merge passes and a first-appearance relabeling. It is pure and total
// over well-formed input — upstream unavailability is signaled by an empty
// raw turn list, which produces an empty output, not an error.
package diarize

import (
	"fmt"

	"github.com/soundscribe/soundscribe/pkg/timeline"
	"github.com/soundscribe/soundscribe/pkg/types"
)

// turn is the mutable accumulator shape used inside the merge passes. The
// original speaker ID is carried through both passes so relabeling can happen
// on the final time order.
type turn struct {
	iv        timeline.Interval
	speakerID string
}

// Normalize turns a raw, possibly overlapping list of speaker turns into a
// sorted, non-overlapping, short-segment-free list with stable labels.
//
// The passes, in order:
//
//  1. Sort by start and round every timestamp to millisecond precision.
//  2. Merge adjacent same-speaker turns whose gap is at most mergeGap, and
//     absorb turns shorter than minSegmentDuration into the running turn when
//     the gap allows — regardless of speaker. The cross-speaker absorb is a
//     deliberate precision/recall trade-off: it can reassign a genuinely short
//     utterance to the neighbouring speaker when timing is tight, but it
//     removes the spurious fragments diarization models emit at turn
//     boundaries. Tune minSegmentDuration and mergeGap per deployment rather
//     than treating this as a fixed policy.
//  3. Merge any turn still shorter than minSegmentDuration into its
//     predecessor. A short turn with no predecessor survives unchanged — it
//     may be the entire input.
//  4. Relabel speakers "Speaker 1", "Speaker 2", … by first temporal
//     appearance among the merged turns, reusing labels on repeat.
//
// Every output turn except a lone survivor of rule 3 has duration at least
// minSegmentDuration, and adjacent output turns never overlap. Normalize is
// idempotent: applying it to its own output changes nothing.
func Normalize(raw []types.RawTurn, minSegmentDuration, mergeGap float64) []types.NormalizedTurn {
	if len(raw) == 0 {
		return nil
	}

	sorted := make([]turn, 0, len(raw))
	for _, r := range raw {
		sorted = append(sorted, turn{iv: r.Interval.Round(), speakerID: r.SpeakerID})
	}
	timeline.SortByStart(sorted, func(t turn) timeline.Interval { return t.iv })

	merged := mergePass(sorted, minSegmentDuration, mergeGap)
	final := absorbShort(merged, minSegmentDuration)

	out := relabel(final)
	timeline.SortByStart(out, func(t types.NormalizedTurn) timeline.Interval { return t.Interval })
	return out
}

// mergePass is the linear accumulator pass (rule 2). It consumes the sorted
// input and produces a new list; the input slice is not modified.
func mergePass(sorted []turn, minSegmentDuration, mergeGap float64) []turn {
	merged := make([]turn, 0, len(sorted))
	for _, t := range sorted {
		if len(merged) == 0 {
			merged = append(merged, t)
			continue
		}
		cur := &merged[len(merged)-1]
		gap := cur.iv.Gap(t.iv)
		switch {
		case t.speakerID == cur.speakerID && gap <= mergeGap:
			cur.iv.End = max(cur.iv.End, t.iv.End)
		case t.iv.Duration() < minSegmentDuration && gap <= mergeGap:
			// Tiny fragment: treat as noise and extend the running turn
			// regardless of speaker.
			cur.iv.End = max(cur.iv.End, t.iv.End)
		default:
			// Cross-speaker overlap: clip the incoming turn so the output
			// stays a non-overlapping partition. A turn fully covered by the
			// running one contributes nothing.
			if t.iv.Start < cur.iv.End {
				if t.iv.End <= cur.iv.End {
					continue
				}
				t.iv.Start = cur.iv.End
			}
			merged = append(merged, t)
		}
	}
	return merged
}

// absorbShort is the second pass (rule 3): turns still shorter than the
// minimum are merged into the immediately preceding turn. A short head turn
// has no predecessor and is kept as-is.
func absorbShort(merged []turn, minSegmentDuration float64) []turn {
	final := make([]turn, 0, len(merged))
	for _, t := range merged {
		if t.iv.Duration() < minSegmentDuration && len(final) > 0 {
			prev := &final[len(final)-1]
			prev.iv.End = max(prev.iv.End, t.iv.End)
			continue
		}
		final = append(final, t)
	}
	return final
}

// relabel maps original speaker IDs to "Speaker k" by first appearance in
// time order, reusing the same label when an ID recurs.
func relabel(final []turn) []types.NormalizedTurn {
	labels := make(map[string]string, 4)
	out := make([]types.NormalizedTurn, 0, len(final))
	for _, t := range final {
		label, ok := labels[t.speakerID]
		if !ok {
			label = fmt.Sprintf("Speaker %d", len(labels)+1)
			labels[t.speakerID] = label
		}
		out = append(out, types.NormalizedTurn{Interval: t.iv, SpeakerLabel: label})
	}
	return out
}
