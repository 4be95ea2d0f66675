// Package export renders pipeline results into downloadable formats.
//
// Two formats are supported: SubRip subtitles (SRT) built from the aligned
// transcript, and a Markdown report carrying the title, summary, sentiment,
// chapter list, and the full speaker-attributed transcript.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/soundscribe/soundscribe/pkg/types"
)

// WriteSRT renders the aligned transcript as SubRip subtitles. Cues are
// numbered from 1; spans with a speaker label get a "Label: " prefix so the
// subtitles carry attribution.
func WriteSRT(w io.Writer, spans []types.AlignedSpan) error {
	for i, span := range spans {
		text := strings.TrimSpace(span.Text)
		if span.SpeakerLabel != "" {
			text = span.SpeakerLabel + ": " + text
		}
		_, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n",
			i+1,
			FormatTimestamp(span.Interval.Start),
			FormatTimestamp(span.Interval.End),
			text,
		)
		if err != nil {
			return fmt.Errorf("export: write srt cue %d: %w", i+1, err)
		}
	}
	return nil
}

// FormatTimestamp converts seconds to the SRT HH:MM:SS,mmm form. Negative
// inputs clamp to zero.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	whole := int(seconds)
	millis := int((seconds - float64(whole)) * 1000)
	hours := whole / 3600
	minutes := whole % 3600 / 60
	secs := whole % 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// WriteMarkdownReport renders the full result as a Markdown document.
func WriteMarkdownReport(w io.Writer, result *types.Result) error {
	var b strings.Builder

	title := result.Title
	if title == "" {
		title = "Transcription Report"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	if result.Summary != "" {
		b.WriteString("## Summary\n\n")
		b.WriteString(result.Summary)
		b.WriteString("\n\n")
	}

	if result.Sentiment != nil {
		s := result.Sentiment
		b.WriteString("## Sentiment\n\n")
		fmt.Fprintf(&b, "| Positive | Negative | Neutral | Compound |\n")
		fmt.Fprintf(&b, "|---|---|---|---|\n")
		fmt.Fprintf(&b, "| %.3f | %.3f | %.3f | %.3f |\n\n",
			s.Positive, s.Negative, s.Neutral, s.Compound)
	}

	if len(result.Chapters) > 0 {
		b.WriteString("## Chapters\n\n")
		for _, ch := range result.Chapters {
			fmt.Fprintf(&b, "- **[%s] %s**: %s\n",
				FormatTimestamp(ch.Start), ch.Title, ch.Summary)
		}
		b.WriteString("\n")
	} else if result.ChapterError != "" {
		fmt.Fprintf(&b, "## Chapters\n\n_Chapter detection failed: %s_\n\n", result.ChapterError)
	}

	if len(result.Transcript) > 0 {
		b.WriteString("## Transcript\n\n")
		for _, span := range result.Transcript {
			speaker := span.SpeakerLabel
			if speaker == "" {
				speaker = "Unknown"
			}
			fmt.Fprintf(&b, "[%.2fs] %s: %s\n\n",
				span.Interval.Start, speaker, strings.TrimSpace(span.Text))
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("export: write markdown report: %w", err)
	}
	return nil
}
