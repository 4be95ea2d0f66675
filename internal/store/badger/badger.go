// Package badger provides an embedded single-node implementation of
// [store.Store] backed by Badger.
//
// Records are stored as JSON values under prefixed keys ("job:", "result:",
// "chunks:"). Vector similarity search is not available with this backend;
// [Store.SearchChunks] returns [store.ErrSearchUnsupported].
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	badgerdb "github.com/dgraph-io/badger/v3"

	"github.com/soundscribe/soundscribe/internal/store"
	"github.com/soundscribe/soundscribe/pkg/types"
)

var _ store.Store = (*Store)(nil)

const (
	jobPrefix    = "job:"
	resultPrefix = "result:"
	chunksPrefix = "chunks:"
)

// Store is the Badger-backed [store.Store]. All methods are safe for
// concurrent use; Badger handles its own transaction isolation.
type Store struct {
	db *badgerdb.DB
}

// New opens (or creates) a Badger database at path.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("badger store: create directory: %w", err)
	}

	opts := badgerdb.DefaultOptions(path)
	opts.Logger = nil // badger's own logger is too chatty for slog setups

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger store: open: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveJob implements [store.Store].
func (s *Store) SaveJob(_ context.Context, job store.JobRecord) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("badger store: marshal job: %w", err)
	}
	err = s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(jobPrefix+job.ID), data)
	})
	if err != nil {
		return fmt.Errorf("badger store: save job: %w", err)
	}
	return nil
}

// GetJob implements [store.Store].
func (s *Store) GetJob(_ context.Context, id string) (store.JobRecord, error) {
	var job store.JobRecord
	err := s.get(jobPrefix+id, &job)
	if err != nil {
		return store.JobRecord{}, err
	}
	return job, nil
}

// ListJobs implements [store.Store]. Records are ordered newest first.
func (s *Store) ListJobs(_ context.Context) ([]store.JobRecord, error) {
	jobs := []store.JobRecord{}
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(jobPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var job store.JobRecord
				if err := json.Unmarshal(val, &job); err != nil {
					return err
				}
				jobs = append(jobs, job)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger store: list jobs: %w", err)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// SaveResult implements [store.Store].
func (s *Store) SaveResult(_ context.Context, result *types.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("badger store: marshal result: %w", err)
	}
	err = s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(resultPrefix+result.JobID), data)
	})
	if err != nil {
		return fmt.Errorf("badger store: save result: %w", err)
	}
	return nil
}

// GetResult implements [store.Store].
func (s *Store) GetResult(_ context.Context, jobID string) (*types.Result, error) {
	result := &types.Result{}
	if err := s.get(resultPrefix+jobID, result); err != nil {
		return nil, err
	}
	return result, nil
}

// IndexChunks implements [store.Store]. Chunks are stored as one JSON value
// per job so they can be re-indexed atomically, but without vector support
// they serve only as a record of what was embedded.
func (s *Store) IndexChunks(_ context.Context, jobID string, chunks []store.Chunk) error {
	data, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("badger store: marshal chunks: %w", err)
	}
	err = s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(chunksPrefix+jobID), data)
	})
	if err != nil {
		return fmt.Errorf("badger store: index chunks: %w", err)
	}
	return nil
}

// SearchChunks implements [store.Store]. Badger has no vector index, so this
// always returns [store.ErrSearchUnsupported].
func (s *Store) SearchChunks(_ context.Context, _ []float32, _ int) ([]store.SearchResult, error) {
	return nil, store.ErrSearchUnsupported
}

// Close implements [store.Store].
func (s *Store) Close() error {
	return s.db.Close()
}

// get unmarshals the JSON value under key into out, mapping a missing key to
// [store.ErrNotFound].
func (s *Store) get(key string, out any) error {
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("badger store: get %q: %w", key, err)
	}
	return nil
}
