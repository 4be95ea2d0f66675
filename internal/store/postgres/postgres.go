package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/soundscribe/soundscribe/internal/store"
	"github.com/soundscribe/soundscribe/pkg/types"
)

var _ store.Store = (*Store)(nil)

// Store is the PostgreSQL-backed [store.Store]. It holds a single
// [pgxpool.Pool]; all operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store, establishes a connection pool to the PostgreSQL
// database at dsn, registers pgvector types on every connection, and runs
// [Migrate] to ensure all required tables and extensions exist.
//
// embeddingDimensions must match the output dimension of the embedding model
// used to produce [store.Chunk.Embedding] values. Changing this value after
// the first migration requires a manual schema change.
func New(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so that vector columns
	// can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// SaveJob implements [store.Store]. It upserts the job record keyed by ID.
func (s *Store) SaveJob(ctx context.Context, job store.JobRecord) error {
	const q = `
		INSERT INTO jobs
		    (id, status, progress, message, source_type, source, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
		    status      = EXCLUDED.status,
		    progress    = EXCLUDED.progress,
		    message     = EXCLUDED.message,
		    source_type = EXCLUDED.source_type,
		    source      = EXCLUDED.source,
		    error       = EXCLUDED.error,
		    updated_at  = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, q,
		job.ID,
		string(job.Status),
		job.Progress,
		job.Message,
		job.SourceType,
		job.Source,
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres store: save job: %w", err)
	}
	return nil
}

// GetJob implements [store.Store].
func (s *Store) GetJob(ctx context.Context, id string) (store.JobRecord, error) {
	const q = `
		SELECT id, status, progress, message, source_type, source, error, created_at, updated_at
		FROM   jobs
		WHERE  id = $1`

	var job store.JobRecord
	var status string
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&job.ID,
		&status,
		&job.Progress,
		&job.Message,
		&job.SourceType,
		&job.Source,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.JobRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.JobRecord{}, fmt.Errorf("postgres store: get job: %w", err)
	}
	job.Status = store.JobStatus(status)
	return job, nil
}

// ListJobs implements [store.Store]. Records are ordered newest first.
func (s *Store) ListJobs(ctx context.Context) ([]store.JobRecord, error) {
	const q = `
		SELECT id, status, progress, message, source_type, source, error, created_at, updated_at
		FROM   jobs
		ORDER  BY created_at DESC`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list jobs: %w", err)
	}

	jobs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.JobRecord, error) {
		var job store.JobRecord
		var status string
		if err := row.Scan(
			&job.ID,
			&status,
			&job.Progress,
			&job.Message,
			&job.SourceType,
			&job.Source,
			&job.Error,
			&job.CreatedAt,
			&job.UpdatedAt,
		); err != nil {
			return store.JobRecord{}, err
		}
		job.Status = store.JobStatus(status)
		return job, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan jobs: %w", err)
	}
	if jobs == nil {
		jobs = []store.JobRecord{}
	}
	return jobs, nil
}

// SaveResult implements [store.Store]. The result is stored as a single JSONB
// document keyed by job ID.
func (s *Store) SaveResult(ctx context.Context, result *types.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("postgres store: marshal result: %w", err)
	}

	const q = `
		INSERT INTO results (job_id, data)
		VALUES ($1, $2)
		ON CONFLICT (job_id) DO UPDATE SET data = EXCLUDED.data`

	if _, err := s.pool.Exec(ctx, q, result.JobID, data); err != nil {
		return fmt.Errorf("postgres store: save result: %w", err)
	}
	return nil
}

// GetResult implements [store.Store].
func (s *Store) GetResult(ctx context.Context, jobID string) (*types.Result, error) {
	const q = `SELECT data FROM results WHERE job_id = $1`

	var data []byte
	err := s.pool.QueryRow(ctx, q, jobID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get result: %w", err)
	}

	result := &types.Result{}
	if err := json.Unmarshal(data, result); err != nil {
		return nil, fmt.Errorf("postgres store: unmarshal result: %w", err)
	}
	return result, nil
}

// IndexChunks implements [store.Store]. Previously indexed chunks for the job
// are removed so re-running a job never leaves stale vectors behind.
func (s *Store) IndexChunks(ctx context.Context, jobID string, chunks []store.Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres store: begin index chunks: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM transcript_chunks WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("postgres store: clear chunks: %w", err)
	}

	const q = `
		INSERT INTO transcript_chunks (id, job_id, content, start_secs, end_secs, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for _, chunk := range chunks {
		vec := pgvector.NewVector(chunk.Embedding)
		if _, err := tx.Exec(ctx, q, chunk.ID, jobID, chunk.Text, chunk.Start, chunk.End, vec); err != nil {
			return fmt.Errorf("postgres store: index chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres store: commit index chunks: %w", err)
	}
	return nil
}

// SearchChunks implements [store.Store]. Results are ordered by ascending
// cosine distance (most similar first). Stored embeddings are not returned.
func (s *Store) SearchChunks(ctx context.Context, embedding []float32, topK int) ([]store.SearchResult, error) {
	const q = `
		SELECT id, job_id, content, start_secs, end_secs,
		       embedding <=> $1 AS distance
		FROM   transcript_chunks
		ORDER  BY distance
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("postgres store: search chunks: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.SearchResult, error) {
		var sr store.SearchResult
		if err := row.Scan(
			&sr.Chunk.ID,
			&sr.Chunk.JobID,
			&sr.Chunk.Text,
			&sr.Chunk.Start,
			&sr.Chunk.End,
			&sr.Distance,
		); err != nil {
			return store.SearchResult{}, err
		}
		return sr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan search rows: %w", err)
	}
	if results == nil {
		results = []store.SearchResult{}
	}
	return results, nil
}

// Ping verifies connectivity to the database. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres store: ping: %w", err)
	}
	return nil
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
