// Package proxypool owns the shared set of candidate egress endpoints,
// each carrying a reliability score, and refills it on demand from
// pluggable providers.
package proxypool

import (
	"context"
	"sync"
)

// Store is the synchronized endpoint→score mapping behind one pool.
// Scores are updated atomically through Adjust, never read-then-written
// by callers, so concurrent fetchers cannot lose updates. A Redis-backed
// Store makes the pool survive restarts and lets processes share it.
type Store interface {
	// Count returns the number of stored endpoints.
	Count(ctx context.Context) (int, error)

	// GetAll returns every endpoint with its score.
	GetAll(ctx context.Context) (map[string]int, error)

	// Set writes an endpoint score unconditionally.
	Set(ctx context.Context, endpoint string, score int) error

	// Adjust adds delta to the endpoint's score, clamps the result to
	// [0,100], and returns it. Missing endpoints report ok=false and
	// are not created.
	Adjust(ctx context.Context, endpoint string, delta int) (score int, ok bool, err error)

	// Delete removes an endpoint; removing an absent one is a no-op.
	Delete(ctx context.Context, endpoint string) error
}

// MemoryStore is the in-process Store used in tests and single-shot
// runs without Redis.
type MemoryStore struct {
	mu     sync.Mutex
	scores map[string]int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scores: make(map[string]int)}
}

// Count implements Store.
func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scores), nil
}

// GetAll implements Store.
func (s *MemoryStore) GetAll(context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.scores))
	for endpoint, score := range s.scores {
		out[endpoint] = score
	}
	return out, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, endpoint string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[endpoint] = clampScore(score)
	return nil
}

// Adjust implements Store.
func (s *MemoryStore) Adjust(_ context.Context, endpoint string, delta int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.scores[endpoint]
	if !ok {
		return 0, false, nil
	}
	next := clampScore(current + delta)
	s.scores[endpoint] = next
	return next, true, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scores, endpoint)
	return nil
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
