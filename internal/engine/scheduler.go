// Package engine generates schedule assignments for a date window, honoring
// availability, configuration, capacity, continuity, and fallback rules.
//
// A run is a single synchronous computation over an immutable snapshot.
// Capacity consumption is strictly date-ordered, so runs never parallelize
// internally; the Scheduler serializes concurrent callers behind one lock
// because independent runs sharing a preceptor would double-book capacity.
package engine

import (
	"sync"

	"github.com/clinrota/clinrota/internal/snapshot"
)

// Scheduler is the engine's entry point. The zero value is not usable; use
// NewScheduler.
type Scheduler struct {
	mu sync.Mutex
}

// NewScheduler returns a scheduler ready to serve generation requests.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Generate produces assignments for the request window. Existing assignments
// are immutable inputs: they keep their (student, date) slots, consume
// capacity, and credit requirement days, which makes repeated calls with the
// same inputs idempotent and incremental.
func (s *Scheduler) Generate(snap *snapshot.Snapshot, req snapshot.Request) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req.RegenerateFrom = nil
	r, err := newRun(snap, req)
	if err != nil {
		return nil, err
	}
	return r.execute()
}

// Regenerate re-plans the window from the cutover date forward. Assignments
// dated before the cutover are preserved untouched and credit their
// requirement days; assignments on or after it are discarded and rebuilt.
// Calling Regenerate twice with identical inputs produces an identical
// future set.
func (s *Scheduler) Regenerate(snap *snapshot.Snapshot, req snapshot.Request) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.RegenerateFrom == nil {
		start := req.Start
		req.RegenerateFrom = &start
	}
	r, err := newRun(snap, req)
	if err != nil {
		return nil, err
	}
	return r.execute()
}
