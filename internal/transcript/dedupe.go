// Package transcript post-processes raw transcription output before the
// downstream stages see it.
//
// Whisper-family models sometimes emit the same line several times in a row
// on repetitive or low-energy audio. DedupeSegments drops those consecutive
// repeats so they do not distort alignment, summaries, or chapter text.
package transcript

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/soundscribe/soundscribe/pkg/types"
)

const (
	// similarityThreshold is the Jaro-Winkler score above which two
	// consecutive segment texts count as the same line.
	similarityThreshold = 0.95

	// maxLengthDelta guards the similarity check: near-identical scores on
	// texts of clearly different lengths are coincidence, not repetition.
	maxLengthDelta = 5
)

// DedupeSegments removes consecutive identical or near-identical segments,
// always keeping the first occurrence. Comparison is case-insensitive on
// trimmed text; empty segments are never treated as repeats. The input slice
// is not modified.
func DedupeSegments(segments []types.Segment) []types.Segment {
	if len(segments) <= 1 {
		return segments
	}

	filtered := segments[:1:1]
	for _, seg := range segments[1:] {
		current := strings.ToLower(strings.TrimSpace(seg.Text))
		previous := strings.ToLower(strings.TrimSpace(filtered[len(filtered)-1].Text))

		if current != "" && current == previous {
			continue
		}
		if current != "" && previous != "" && isNearRepeat(current, previous) {
			continue
		}
		filtered = append(filtered, seg)
	}
	return filtered
}

func isNearRepeat(current, previous string) bool {
	delta := len(current) - len(previous)
	if delta < 0 {
		delta = -delta
	}
	if delta >= maxLengthDelta {
		return false
	}
	return matchr.JaroWinkler(current, previous, false) >= similarityThreshold
}

// FullText rebuilds the transcript text from segments, space-joined.
func FullText(segments []types.Segment) string {
	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = strings.TrimSpace(seg.Text)
	}
	return strings.Join(texts, " ")
}
