// Package types defines the shared records that flow between soundscribe
// pipeline stages.
//
// These types form the lingua franca between providers, the timeline engine,
// the persistence layer, and the HTTP surface. Each package defines its own
// internal types, but cross-stage data structures live here to avoid circular
// imports. All relations between records are positional (established by
// comparing intervals), never by pointer or ID — each stage owns its output
// list exclusively.
package types

import "github.com/soundscribe/soundscribe/pkg/timeline"

// Word is a single transcribed token with timing, as produced by the
// speech-to-text collaborator. Immutable once produced.
//
// Text carries the token exactly as the transcriber emitted it, including any
// leading whitespace. Downstream span reconstruction relies on that: spans are
// built by raw concatenation, not space-joined (see internal/align).
type Word struct {
	Interval timeline.Interval `json:"interval"`

	// Text is the token text with upstream spacing preserved.
	Text string `json:"text"`

	// Confidence is the transcriber's probability for this token in [0, 1].
	Confidence float64 `json:"confidence"`
}

// Segment is a sentence-level transcript unit. Words may be empty when the
// transcriber degraded to segment-level timing only.
type Segment struct {
	Interval timeline.Interval `json:"interval"`
	Text     string            `json:"text"`

	// Words holds per-word detail when the transcriber supports it.
	Words []Word `json:"words,omitempty"`
}

// RawTurn is an unprocessed speaker turn from the diarization collaborator.
// Turns may overlap, may be noisy or very short, and SpeakerID carries no
// stable meaning across runs.
type RawTurn struct {
	Interval timeline.Interval `json:"interval"`

	// SpeakerID is the diarization model's opaque internal label.
	SpeakerID string `json:"speaker_id"`
}

// NormalizedTurn is a cleaned, merged, stably relabeled speaker turn produced
// by the diarization normalizer. The normalizer guarantees that a normalized
// list is sorted by start, non-overlapping, and free of sub-minimum-duration
// entries (except when a single short turn is the entire input).
type NormalizedTurn struct {
	Interval timeline.Interval `json:"interval"`

	// SpeakerLabel is "Speaker 1", "Speaker 2", … assigned by first temporal
	// appearance among normalized turns.
	SpeakerLabel string `json:"speaker_label"`
}

// AlignedSpan is a maximal run of consecutive words attributed to the same
// speaker. Spans are ordered by non-decreasing start and replace the raw
// transcript segments when diarization succeeded.
type AlignedSpan struct {
	// SpeakerLabel is the normalized turn label, or the sentinel "Speaker"
	// when no turn contained the words.
	SpeakerLabel string `json:"speaker_label"`

	Interval timeline.Interval `json:"interval"`
	Text     string            `json:"text"`
}

// Chapter is a named, non-overlapping time range of the transcript. A chapter
// list is contiguous, covers the full transcript duration, is ordered by
// start, and contains at least one entry.
type Chapter struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Title   string  `json:"title"`
	Summary string  `json:"summary"`
}

// SentimentScore is the polarity breakdown for a body of text. Positive,
// Negative, and Neutral are proportions in [0, 1]; Compound is the normalized
// aggregate in [-1, 1].
type SentimentScore struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
	Compound float64 `json:"compound"`
}

// Result is the persisted output of one completed pipeline job. The pipeline
// always produces a Result even under partial failure: missing diarization
// yields spans without speaker labels, a failed chapter stage is recorded in
// ChapterError with the rest of the result intact.
type Result struct {
	JobID string `json:"job_id"`

	// Title is the media title (from the downloader) or the uploaded filename.
	Title string `json:"title"`

	// Transcript is the final aligned transcript in strictly time-ordered,
	// non-overlapping form. SpeakerLabel is empty on every span when
	// diarization was unavailable.
	Transcript []AlignedSpan `json:"transcript"`

	// FullText is the concatenated transcript text.
	FullText string `json:"full_text"`

	Summary   string          `json:"summary"`
	Sentiment *SentimentScore `json:"sentiment,omitempty"`
	Chapters  []Chapter       `json:"chapters"`

	// ChapterError holds the chapter-stage failure message when chaptering
	// aborted (embedding collaborator failure). Empty on success.
	ChapterError string `json:"chapter_error,omitempty"`

	// MediaPath is the local path of the processed audio file.
	MediaPath string `json:"media_path"`
}
