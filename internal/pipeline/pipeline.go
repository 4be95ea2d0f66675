// Package pipeline orchestrates the full processing chain for one job:
// media preparation, transcription, deduplication, diarization, alignment,
// summarization, sentiment, chaptering, search indexing, and persistence.
//
// The pipeline degrades instead of failing wherever a stage is best-effort.
// Diarization errors produce an unlabeled transcript, summary and sentiment
// errors produce empty values, and an embedding failure aborts only the
// chapter stage with the error recorded on the result. Transcription and
// persistence failures fail the job; everything else flows forward.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/soundscribe/soundscribe/internal/align"
	"github.com/soundscribe/soundscribe/internal/chapter"
	"github.com/soundscribe/soundscribe/internal/diarize"
	"github.com/soundscribe/soundscribe/internal/job"
	"github.com/soundscribe/soundscribe/internal/observe"
	"github.com/soundscribe/soundscribe/internal/sentiment"
	"github.com/soundscribe/soundscribe/internal/store"
	"github.com/soundscribe/soundscribe/internal/summary"
	"github.com/soundscribe/soundscribe/internal/transcript"
	"github.com/soundscribe/soundscribe/internal/transcript/llmcorrect"
	"github.com/soundscribe/soundscribe/internal/transcript/phonetic"
	"github.com/soundscribe/soundscribe/pkg/provider/diarizer"
	"github.com/soundscribe/soundscribe/pkg/provider/embeddings"
	"github.com/soundscribe/soundscribe/pkg/provider/llm"
	"github.com/soundscribe/soundscribe/pkg/provider/stt"
	"github.com/soundscribe/soundscribe/pkg/types"
)

// searchWindow is the number of transcript spans joined into one search
// chunk, matching the chapterizer's embedding window.
const searchWindow = 3

// MediaPreparer converts job sources into audio files the transcriber can
// consume. *media.Processor is the production implementation.
type MediaPreparer interface {
	// ExtractAudio converts the media file at inputPath to 16 kHz mono WAV.
	ExtractAudio(ctx context.Context, inputPath string) (string, error)

	// Download fetches the media behind url and returns the local path and
	// the media title.
	Download(ctx context.Context, url string) (path, title string, err error)
}

// Config carries the pipeline's collaborators. Media, Transcriber, and Store
// are required; the rest are optional and their stages degrade when absent.
type Config struct {
	Media       MediaPreparer
	Transcriber stt.Transcriber
	Store       store.Store

	// Diarizer may be nil ("none" in the configuration); the transcript is
	// then persisted without speaker labels.
	Diarizer diarizer.Provider

	// Embedder may be nil; chaptering and search indexing are then skipped.
	Embedder embeddings.Provider

	// LLM may be nil; the summary is then empty and chapter titles fall back
	// to placeholders.
	LLM llm.Provider

	// MinSegmentDuration and MergeGap tune the diarization normalizer.
	MinSegmentDuration float64
	MergeGap           float64

	// Vocabulary lists domain terms (names, products, jargon) the corrector
	// fixes in the transcript. Empty disables the correction stage.
	Vocabulary []string

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Pipeline runs jobs end to end. Safe for concurrent use; one Run per worker.
type Pipeline struct {
	media       MediaPreparer
	transcriber stt.Transcriber
	diarizer    diarizer.Provider
	embedder    embeddings.Provider
	summariser  summary.Summariser
	chapterer   *chapter.Chapterizer
	corrector   *transcript.Corrector
	vocabulary  []string
	scorer      *sentiment.Scorer
	store       store.Store
	metrics     *observe.Metrics

	// The normalizer thresholds are hot-reloadable, so reads go through
	// thresholds() rather than the fields directly.
	mu                 sync.RWMutex
	minSegmentDuration float64
	mergeGap           float64
}

// New validates cfg and builds a Pipeline. The chapterizer is constructed
// here so it shares the embedding provider with the search indexer.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Media == nil {
		return nil, errors.New("pipeline: media preparer must not be nil")
	}
	if cfg.Transcriber == nil {
		return nil, errors.New("pipeline: transcriber must not be nil")
	}
	if cfg.Store == nil {
		return nil, errors.New("pipeline: store must not be nil")
	}

	p := &Pipeline{
		media:              cfg.Media,
		transcriber:        cfg.Transcriber,
		diarizer:           cfg.Diarizer,
		embedder:           cfg.Embedder,
		store:              cfg.Store,
		scorer:             sentiment.New(),
		metrics:            cfg.Metrics,
		minSegmentDuration: cfg.MinSegmentDuration,
		mergeGap:           cfg.MergeGap,
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	if cfg.LLM != nil {
		p.summariser = summary.NewLLMSummariser(cfg.LLM)
	}
	if len(cfg.Vocabulary) > 0 {
		p.vocabulary = cfg.Vocabulary
		var copts []transcript.CorrectorOption
		if cfg.LLM != nil {
			copts = append(copts, transcript.WithLLMCorrector(llmcorrect.New(cfg.LLM)))
		}
		p.corrector = transcript.NewCorrector(phonetic.New(), copts...)
	}
	if cfg.Embedder != nil {
		ch, err := chapter.New(cfg.Embedder, cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		p.chapterer = ch
	}
	return p, nil
}

// Run processes one job end to end and persists the result. The signature
// matches [job.Runner] so a Pipeline plugs straight into the job manager.
func (p *Pipeline) Run(ctx context.Context, jb store.JobRecord, report job.ProgressFunc) error {
	ctx, span := observe.StartSpan(ctx, "pipeline.run")
	defer span.End()
	log := observe.Logger(ctx).With("job_id", jb.ID)

	report(10, "Initializing...")

	// ── Media preparation ────────────────────────────────────────────────

	var (
		mediaPath string
		title     string
	)
	err := p.stage(ctx, "prepare", func(ctx context.Context) error {
		var err error
		switch jb.SourceType {
		case "url":
			report(15, "Downloading media...")
			mediaPath, title, err = p.media.Download(ctx, jb.Source)
			if err != nil {
				return fmt.Errorf("download %q: %w", jb.Source, err)
			}
		default:
			mediaPath = jb.Source
			title = filepath.Base(jb.Source)
		}
		mediaPath, err = p.media.ExtractAudio(ctx, mediaPath)
		if err != nil {
			return fmt.Errorf("extract audio: %w", err)
		}
		return nil
	})
	if err != nil {
		return p.fail(span, err)
	}

	// ── Transcription ────────────────────────────────────────────────────

	report(30, "Transcribing audio...")
	var res *stt.Result
	err = p.stage(ctx, "transcribe", func(ctx context.Context) error {
		var err error
		res, err = p.transcriber.Transcribe(ctx, mediaPath)
		p.metrics.RecordProviderRequest(ctx, p.transcriber.ModelID(), "stt", statusOf(err))
		if err != nil {
			return fmt.Errorf("transcribe: %w", err)
		}
		return nil
	})
	if err != nil {
		return p.fail(span, err)
	}

	segments := transcript.DedupeSegments(res.Segments)

	// ── Vocabulary correction ────────────────────────────────────────────

	_ = p.stage(ctx, "correct", func(ctx context.Context) error {
		if p.corrector == nil {
			return nil
		}
		corrected, corrections, err := p.corrector.Correct(ctx, segments, p.vocabulary)
		if err != nil {
			// The phonetic pass already landed in corrected; only the LLM
			// review is lost.
			log.Warn("llm correction unavailable", "err", err)
		}
		segments = corrected
		if len(corrections) > 0 {
			log.Info("vocabulary corrections applied", "count", len(corrections))
		}
		return nil
	})

	fullText := transcript.FullText(segments)

	// ── Diarization ──────────────────────────────────────────────────────

	report(50, "Attributing speakers...")
	var turns []types.NormalizedTurn
	_ = p.stage(ctx, "diarize", func(ctx context.Context) error {
		if p.diarizer == nil {
			return nil
		}
		raw, err := p.diarizer.Diarize(ctx, mediaPath)
		p.metrics.RecordProviderRequest(ctx, p.diarizer.ModelID(), "diarizer", statusOf(err))
		if err != nil {
			// Degrade to an unlabeled transcript.
			log.Warn("diarization unavailable, transcript will be unlabeled", "err", err)
			p.metrics.RecordProviderError(ctx, p.diarizer.ModelID(), "diarizer")
			return nil
		}
		minDuration, gap := p.thresholds()
		turns = diarize.Normalize(raw, minDuration, gap)
		return nil
	})

	// ── Alignment ────────────────────────────────────────────────────────

	report(55, "Aligning transcript...")
	var spans []types.AlignedSpan
	_ = p.stage(ctx, "align", func(context.Context) error {
		if len(turns) > 0 {
			spans = align.Align(turns, align.WordsFromSegments(segments))
		} else {
			spans = unlabeledSpans(segments)
		}
		return nil
	})

	result := &types.Result{
		JobID:      jb.ID,
		Title:      title,
		Transcript: spans,
		FullText:   fullText,
		MediaPath:  mediaPath,
	}

	// ── Summary ──────────────────────────────────────────────────────────

	report(70, "Generating summary...")
	_ = p.stage(ctx, "summarize", func(ctx context.Context) error {
		if p.summariser == nil {
			return nil
		}
		s, err := p.summariser.Summarise(ctx, fullText)
		if err != nil {
			log.Warn("summary unavailable", "err", err)
			return nil
		}
		result.Summary = s
		return nil
	})

	// ── Sentiment ────────────────────────────────────────────────────────

	report(80, "Scoring sentiment...")
	_ = p.stage(ctx, "sentiment", func(context.Context) error {
		score := p.scorer.Score(fullText)
		result.Sentiment = &score
		return nil
	})

	// ── Chapters ─────────────────────────────────────────────────────────

	_ = p.stage(ctx, "chapters", func(ctx context.Context) error {
		if p.chapterer == nil {
			return nil
		}
		chapters, err := p.chapterer.Chapterize(ctx, chapter.UnitsFromSpans(spans), chapter.Progress(report))
		if err != nil {
			// Fatal for the chapter stage only; the rest of the result
			// is persisted intact.
			log.Warn("chapter stage failed", "err", err)
			result.ChapterError = err.Error()
			return nil
		}
		result.Chapters = chapters
		return nil
	})

	// ── Search index ─────────────────────────────────────────────────────

	_ = p.stage(ctx, "index", func(ctx context.Context) error {
		if p.embedder == nil {
			return nil
		}
		if err := p.indexChunks(ctx, jb.ID, spans); err != nil {
			log.Warn("search indexing skipped", "err", err)
		}
		return nil
	})

	// ── Persist ──────────────────────────────────────────────────────────

	err = p.stage(ctx, "persist", func(ctx context.Context) error {
		if err := p.store.SaveResult(ctx, result); err != nil {
			return fmt.Errorf("persist result: %w", err)
		}
		return nil
	})
	if err != nil {
		return p.fail(span, err)
	}
	return nil
}

// indexChunks embeds windows of transcript spans and stores them for
// semantic search. Backends without vector support reject the write with
// [store.ErrSearchUnsupported], which the caller logs and ignores.
func (p *Pipeline) indexChunks(ctx context.Context, jobID string, spans []types.AlignedSpan) error {
	units := chapter.UnitsFromSpans(spans)
	if len(units) == 0 {
		return nil
	}

	var (
		chunks []store.Chunk
		texts  []string
	)
	start := units[0].Start
	var buf []string
	for i, u := range units {
		buf = append(buf, u.Text)
		if (i+1)%searchWindow == 0 || i == len(units)-1 {
			text := strings.Join(buf, " ")
			chunks = append(chunks, store.Chunk{
				ID:    fmt.Sprintf("%s-%d", jobID, len(chunks)),
				JobID: jobID,
				Text:  text,
				Start: start,
				End:   u.End,
			})
			texts = append(texts, text)
			buf = nil
			if i+1 < len(units) {
				start = units[i+1].Start
			}
		}
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	return p.store.IndexChunks(ctx, jobID, chunks)
}

// SetThresholds updates the diarization normalizer thresholds. Jobs already
// past the diarize stage keep the values they started with.
func (p *Pipeline) SetThresholds(minSegmentDuration, mergeGap float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minSegmentDuration = minSegmentDuration
	p.mergeGap = mergeGap
}

func (p *Pipeline) thresholds() (minSegmentDuration, mergeGap float64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.minSegmentDuration, p.mergeGap
}

// stage runs fn inside a named span and records its duration.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := observe.StartSpan(ctx, "pipeline."+name)
	defer span.End()

	started := time.Now()
	err := fn(ctx)
	p.metrics.RecordStage(ctx, name, time.Since(started).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// fail marks the root span failed and returns err unchanged.
func (p *Pipeline) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// unlabeledSpans converts raw segments into transcript spans with empty
// speaker labels, used when diarization is unavailable.
func unlabeledSpans(segments []types.Segment) []types.AlignedSpan {
	spans := make([]types.AlignedSpan, len(segments))
	for i, seg := range segments {
		spans[i] = types.AlignedSpan{
			Interval: seg.Interval,
			Text:     strings.TrimSpace(seg.Text),
		}
	}
	return spans
}

// statusOf maps an error to the provider request status attribute.
func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
