// Package store defines the persistence interface for soundscribe jobs,
// results, and the semantic transcript index.
//
// Two implementations exist: [postgres] backed by pgx + pgvector with cosine
// similarity search, and [badger] backed by an embedded key-value database
// for single-node deployments without semantic search.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/soundscribe/soundscribe/pkg/types"
)

// ErrNotFound is returned when the requested job or result does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrSearchUnsupported is returned by backends that cannot perform vector
// similarity search.
var ErrSearchUnsupported = errors.New("store: semantic search unsupported by this backend")

// JobStatus is the lifecycle state of a transcription job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// JobRecord is the persisted snapshot of a job's state. Progress and Message
// are overwritten on every pipeline stage transition.
type JobRecord struct {
	ID string `json:"id"`

	Status JobStatus `json:"status"`

	// Progress is a percentage in [0, 100].
	Progress int `json:"progress"`

	// Message is a human-readable description of the current stage.
	Message string `json:"message"`

	// SourceType is "upload" or "url".
	SourceType string `json:"source_type"`

	// Source is the uploaded filename or the submitted URL.
	Source string `json:"source"`

	// Error carries the failure reason when Status is JobFailed.
	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Chunk is one embedded transcript slice stored in the semantic index.
type Chunk struct {
	ID    string `json:"id"`
	JobID string `json:"job_id"`

	// Text is the chunk's transcript content.
	Text string `json:"text"`

	// Start and End are the chunk's time range in seconds.
	Start float64 `json:"start"`
	End   float64 `json:"end"`

	// Embedding is the chunk's vector, with the dimensionality the store was
	// created with.
	Embedding []float32 `json:"embedding,omitempty"`
}

// SearchResult pairs a matched chunk with its cosine distance to the query
// vector. Lower distance means more similar.
type SearchResult struct {
	Chunk    Chunk   `json:"chunk"`
	Distance float64 `json:"distance"`
}

// Store is the persistence abstraction used by the job manager, the pipeline,
// and the HTTP surface. All methods are safe for concurrent use.
type Store interface {
	// SaveJob inserts or fully replaces the record for job.ID.
	SaveJob(ctx context.Context, job JobRecord) error

	// GetJob returns the record for id, or [ErrNotFound].
	GetJob(ctx context.Context, id string) (JobRecord, error)

	// ListJobs returns all job records ordered by creation time, newest first.
	ListJobs(ctx context.Context) ([]JobRecord, error)

	// SaveResult persists the completed pipeline output for result.JobID,
	// replacing any previous result for that job.
	SaveResult(ctx context.Context, result *types.Result) error

	// GetResult returns the result for jobID, or [ErrNotFound].
	GetResult(ctx context.Context, jobID string) (*types.Result, error)

	// IndexChunks stores the embedded transcript chunks for jobID, replacing
	// any previously indexed chunks for that job.
	IndexChunks(ctx context.Context, jobID string, chunks []Chunk) error

	// SearchChunks returns the topK indexed chunks closest to embedding by
	// cosine distance, most similar first. Backends without vector support
	// return [ErrSearchUnsupported].
	SearchChunks(ctx context.Context, embedding []float32, topK int) ([]SearchResult, error)

	// Close releases the backend's resources.
	Close() error
}
