// Package mock provides an in-memory [store.Store] for tests.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/soundscribe/soundscribe/internal/store"
	"github.com/soundscribe/soundscribe/pkg/types"
)

var _ store.Store = (*Store)(nil)

// Store is a map-backed [store.Store]. Error fields, when set, are returned
// by the corresponding method so tests can exercise failure paths. Safe for
// concurrent use.
type Store struct {
	mu      sync.Mutex
	jobs    map[string]store.JobRecord
	results map[string]*types.Result
	chunks  map[string][]store.Chunk

	SaveJobErr     error
	SaveResultErr  error
	IndexChunksErr error

	// SearchResponse is returned by SearchChunks when SearchErr is nil.
	SearchResponse []store.SearchResult
	SearchErr      error
	SearchCalls    [][]float32
}

// New returns an empty mock store.
func New() *Store {
	return &Store{
		jobs:    make(map[string]store.JobRecord),
		results: make(map[string]*types.Result),
		chunks:  make(map[string][]store.Chunk),
	}
}

func (s *Store) SaveJob(_ context.Context, job store.JobRecord) error {
	if s.SaveJobErr != nil {
		return s.SaveJobErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *Store) GetJob(_ context.Context, id string) (store.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.JobRecord{}, store.ErrNotFound
	}
	return job, nil
}

func (s *Store) ListJobs(_ context.Context) ([]store.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]store.JobRecord, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (s *Store) SaveResult(_ context.Context, result *types.Result) error {
	if s.SaveResultErr != nil {
		return s.SaveResultErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.JobID] = result
	return nil
}

func (s *Store) GetResult(_ context.Context, jobID string) (*types.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.results[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return result, nil
}

func (s *Store) IndexChunks(_ context.Context, jobID string, chunks []store.Chunk) error {
	if s.IndexChunksErr != nil {
		return s.IndexChunksErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[jobID] = chunks
	return nil
}

func (s *Store) SearchChunks(_ context.Context, embedding []float32, _ int) ([]store.SearchResult, error) {
	s.mu.Lock()
	s.SearchCalls = append(s.SearchCalls, embedding)
	s.mu.Unlock()
	if s.SearchErr != nil {
		return nil, s.SearchErr
	}
	return s.SearchResponse, nil
}

func (s *Store) Close() error { return nil }

// Chunks returns the chunks indexed for jobID, for test assertions.
func (s *Store) Chunks(jobID string) []store.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks[jobID]
}
