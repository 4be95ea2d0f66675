// Package chapter segments a transcript into titled chapters.
//
// The transcript is grouped into fixed-size chunks for embedding context,
// each chunk is embedded, and the chunk vectors are clustered with a
// temporally-constrained agglomerative clustering (Ward linkage on a path
// graph, so only adjacent chunks can merge — an intro can never land in the
// same chapter as an outro). Contiguous label runs become chapter ranges and
// a separate post-pass asks the text-generation collaborator for titles.
package chapter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/soundscribe/soundscribe/pkg/provider/embeddings"
	"github.com/soundscribe/soundscribe/pkg/provider/llm"
	"github.com/soundscribe/soundscribe/pkg/types"
)

// ErrEmbedding reports that the embedding collaborator failed or returned an
// inconsistent batch. It is fatal for the chapter stage only; callers keep
// the rest of the pipeline result intact.
var ErrEmbedding = errors.New("chapter: embedding failed")

// defaultWindowSize is the number of transcript units grouped into one chunk.
// Single sentences are too short for robust topic detection.
const defaultWindowSize = 3

// Progress receives coarse progress updates while chaptering runs. Percent is
// an absolute job percentage. May be nil.
type Progress func(percent int, message string)

// Unit is one transcript unit (an aligned span or a raw segment) as the
// chapterizer sees it.
type Unit struct {
	Start float64
	End   float64
	Text  string
}

// UnitsFromSpans converts the aligned transcript into chapterizer units.
func UnitsFromSpans(spans []types.AlignedSpan) []Unit {
	units := make([]Unit, len(spans))
	for i, s := range spans {
		units[i] = Unit{Start: s.Interval.Start, End: s.Interval.End, Text: s.Text}
	}
	return units
}

// chunk is a window of consecutive units joined for embedding.
type chunk struct {
	start float64
	end   float64
	text  string
}

// draft is an untitled chapter range produced by clustering.
type draft struct {
	start float64
	end   float64
	text  string
}

// Option is a functional option for Chapterizer.
type Option func(*Chapterizer)

// WithWindowSize overrides the chunking window (units per chunk). Values
// below 1 are ignored.
func WithWindowSize(n int) Option {
	return func(c *Chapterizer) {
		if n >= 1 {
			c.windowSize = n
		}
	}
}

// WithTitleConcurrency bounds how many title completions run in parallel.
// Defaults to 3. Values below 1 are ignored.
func WithTitleConcurrency(n int) Option {
	return func(c *Chapterizer) {
		if n >= 1 {
			c.titleConcurrency = n
		}
	}
}

// Chapterizer runs the full chapter stage: chunk, embed, cluster, title.
type Chapterizer struct {
	embedder         embeddings.Provider
	completer        llm.Provider
	windowSize       int
	titleConcurrency int
}

// New constructs a Chapterizer. embedder must be non-nil; completer may be
// nil, in which case every chapter receives the error placeholder title.
func New(embedder embeddings.Provider, completer llm.Provider, opts ...Option) (*Chapterizer, error) {
	if embedder == nil {
		return nil, errors.New("chapter: embedder must not be nil")
	}
	c := &Chapterizer{
		embedder:         embedder,
		completer:        completer,
		windowSize:       defaultWindowSize,
		titleConcurrency: 3,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Chapterize segments units into titled chapters. It never returns an empty
// chapter list together with a nil error unless units itself is empty.
//
// Fewer than two chunks short-circuits to a single untitled overview chapter
// without touching the embedding or text-generation collaborators. Embedding
// failure (error, count mismatch, dimension mismatch) returns ErrEmbedding;
// title failures degrade to placeholder titles and never fail the stage.
func (c *Chapterizer) Chapterize(ctx context.Context, units []Unit, report Progress) ([]types.Chapter, error) {
	if len(units) == 0 {
		return nil, nil
	}
	if report == nil {
		report = func(int, string) {}
	}

	report(82, "Generating embeddings for segmentation...")
	chunks := chunkUnits(units, c.windowSize)
	if len(chunks) < 2 {
		// Too short to segment.
		return []types.Chapter{{
			Start:   units[0].Start,
			End:     units[len(units)-1].End,
			Title:   "Overview",
			Summary: "Full Content",
		}}, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.text
	}
	vectors, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks",
			ErrEmbedding, len(vectors), len(texts))
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d",
				ErrEmbedding, i, len(v), dim)
		}
	}

	report(85, "identifying topic boundaries...")
	k := optimalClusters(len(chunks))
	labels := clusterAdjacentWard(vectors, k)
	drafts := labelsToDrafts(labels, chunks)

	report(88, "Generating chapter titles...")
	return c.titleDrafts(ctx, drafts, report), nil
}

// chunkUnits groups consecutive units into windows of windowSize, joining
// their texts with single spaces. The final window may be shorter.
func chunkUnits(units []Unit, windowSize int) []chunk {
	var chunks []chunk
	var texts []string
	currentStart := units[0].Start

	for i, u := range units {
		texts = append(texts, u.Text)
		if (i+1)%windowSize == 0 || i == len(units)-1 {
			chunks = append(chunks, chunk{
				start: currentStart,
				end:   u.End,
				text:  strings.Join(texts, " "),
			})
			texts = nil
			if i+1 < len(units) {
				currentStart = units[i+1].Start
			}
		}
	}
	return chunks
}

// optimalClusters guesses a good chapter count for n chunks. Short inputs
// collapse to a single chapter; otherwise the heuristic grows with sqrt(n).
func optimalClusters(n int) int {
	if n < 5 {
		return 1
	}
	k := int(math.Sqrt(float64(n)) * 0.6)
	if k < 2 {
		return 2
	}
	return k
}

// labelsToDrafts converts per-chunk cluster labels into contiguous chapter
// ranges. A new chapter starts wherever the label changes.
func labelsToDrafts(labels []int, chunks []chunk) []draft {
	var drafts []draft
	currentLabel := labels[0]
	start := chunks[0].start
	texts := []string{chunks[0].text}

	for i := 1; i < len(labels); i++ {
		if labels[i] != currentLabel {
			drafts = append(drafts, draft{
				start: start,
				end:   chunks[i-1].end,
				text:  strings.Join(texts, " "),
			})
			currentLabel = labels[i]
			start = chunks[i].start
			texts = []string{chunks[i].text}
		} else {
			texts = append(texts, chunks[i].text)
		}
	}
	drafts = append(drafts, draft{
		start: start,
		end:   chunks[len(chunks)-1].end,
		text:  strings.Join(texts, " "),
	})
	return drafts
}
