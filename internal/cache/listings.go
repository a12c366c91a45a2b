// Package cache keeps assignment listings per class subject in memory.
package cache

import (
	"sync"
	"time"

	"github.com/pavelanni/gradebook/internal/model"
)

type entry struct {
	rows    []model.AssignmentSummary
	expires time.Time
}

// Listings is a TTL cache of assignment listings keyed by class subject.
// Writers invalidate the affected key; the TTL bounds staleness from writes
// made by other processes. Each key carries a generation bumped by
// Invalidate, and a Set made with an older generation is dropped.
type Listings struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[int64]entry
	gens    map[int64]uint64
	now     func() time.Time
}

// NewListings creates a cache. A zero ttl disables caching.
func NewListings(ttl time.Duration) *Listings {
	return &Listings{
		ttl:     ttl,
		entries: make(map[int64]entry),
		gens:    make(map[int64]uint64),
		now:     time.Now,
	}
}

// Get returns the cached listing if present and fresh, along with the
// key's generation to pass back to Set after a miss.
func (l *Listings) Get(classSubjectID int64) ([]model.AssignmentSummary, uint64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	gen := l.gens[classSubjectID]
	e, ok := l.entries[classSubjectID]
	if !ok || l.now().After(e.expires) {
		return nil, gen, false
	}
	return e.rows, gen, true
}

// Set stores a listing read at generation gen. It is a no-op when the key
// was invalidated since.
func (l *Listings) Set(classSubjectID int64, gen uint64, rows []model.AssignmentSummary) {
	if l.ttl <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gens[classSubjectID] != gen {
		return
	}
	l.entries[classSubjectID] = entry{rows: rows, expires: l.now().Add(l.ttl)}
}

// Invalidate drops the listing of one class subject.
func (l *Listings) Invalidate(classSubjectID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, classSubjectID)
	l.gens[classSubjectID]++
}
