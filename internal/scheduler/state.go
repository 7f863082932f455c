package scheduler

import (
	"sync"

	"simdispatch/internal/worker"
)

// poolState tracks per-worker in-flight counts with thread-safe access.
// Reservations and releases happen on completion events that can race, so
// every mutation holds the lock.
type poolState struct {
	mu       sync.Mutex
	inflight map[string]int
	limits   map[string]int
}

// newPoolState creates pool state for a set of workers.
func newPoolState(pool []worker.Worker) *poolState {
	s := &poolState{
		inflight: make(map[string]int, len(pool)),
		limits:   make(map[string]int, len(pool)),
	}
	for _, w := range pool {
		s.limits[w.ID()] = worker.MaxConcurrent(w)
	}
	return s
}

// reserve claims a slot on the worker. Returns false when the worker is full.
func (s *poolState) reserve(workerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight[workerID] >= s.limits[workerID] {
		return false
	}
	s.inflight[workerID]++
	return true
}

// release frees a previously reserved slot.
func (s *poolState) release(workerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight[workerID] > 0 {
		s.inflight[workerID]--
	}
}

// active returns the current in-flight count for a worker.
func (s *poolState) active(workerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight[workerID]
}

// totalActive returns the in-flight count across the pool.
func (s *poolState) totalActive() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.inflight {
		n += c
	}
	return n
}
