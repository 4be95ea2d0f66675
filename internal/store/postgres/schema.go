// Package postgres provides the PostgreSQL-backed implementation of
// [store.Store].
//
// Jobs and results live in plain relational tables; transcript chunks carry a
// pgvector embedding column with an HNSW index for cosine similarity search.
// [Migrate] installs the vector extension and all tables idempotently, so it
// is safe to run on every application start.
//
// Usage:
//
//	st, err := postgres.New(ctx, dsn, 768)
//	if err != nil { … }
//	defer st.Close()
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlJobs = `
CREATE TABLE IF NOT EXISTS jobs (
    id          TEXT         PRIMARY KEY,
    status      TEXT         NOT NULL,
    progress    INT          NOT NULL DEFAULT 0,
    message     TEXT         NOT NULL DEFAULT '',
    source_type TEXT         NOT NULL DEFAULT '',
    source      TEXT         NOT NULL DEFAULT '',
    error       TEXT         NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_jobs_status
    ON jobs (status);

CREATE INDEX IF NOT EXISTS idx_jobs_created_at
    ON jobs (created_at);
`

const ddlResults = `
CREATE TABLE IF NOT EXISTS results (
    job_id      TEXT         PRIMARY KEY REFERENCES jobs (id) ON DELETE CASCADE,
    data        JSONB        NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// ddlChunks returns the transcript chunk DDL with the embedding dimension
// substituted. The vector dimension is baked into the column type at schema
// creation time.
func ddlChunks(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS transcript_chunks (
    id          TEXT         PRIMARY KEY,
    job_id      TEXT         NOT NULL REFERENCES jobs (id) ON DELETE CASCADE,
    content     TEXT         NOT NULL,
    start_secs  DOUBLE PRECISION NOT NULL DEFAULT 0,
    end_secs    DOUBLE PRECISION NOT NULL DEFAULT 0,
    embedding   vector(%d)
);

CREATE INDEX IF NOT EXISTS idx_transcript_chunks_job_id
    ON transcript_chunks (job_id);

CREATE INDEX IF NOT EXISTS idx_transcript_chunks_embedding
    ON transcript_chunks USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures all required database tables and extensions exist.
// It is idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS)
// and safe to call on every application start.
//
// embeddingDimensions must match the vector model configured for your
// deployment (e.g., 768 for nomic-embed-text, 1536 for OpenAI
// text-embedding-3-small). Changing this value after the first migration
// requires a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlJobs,
		ddlResults,
		ddlChunks(embeddingDimensions),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
