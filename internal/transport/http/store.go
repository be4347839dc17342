// Package http serves a completed run's outputs over a small read-only JSON
// API.
package http

import (
	"sync"

	"bondtape/internal/operations"
)

// ResultStore holds the most recent completed run. Writes replace the whole
// result; handlers only ever read.
type ResultStore struct {
	mu     sync.RWMutex
	latest *operations.RunResult
}

// NewResultStore creates an empty store.
func NewResultStore() *ResultStore {
	return &ResultStore{}
}

// Set replaces the stored run.
func (s *ResultStore) Set(result *operations.RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = result
}

// Latest returns the stored run, or nil when no run has completed yet.
func (s *ResultStore) Latest() *operations.RunResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}
