// Package store holds the client-side set of known markers and answers
// queries against the domain Expiry Policy.
// Expiry is computed on read; nothing is scheduled and expired markers are
// kept (for Get and audit) until Prune drops them.
package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dhconnelly/rtreego"
	"github.com/google/uuid"

	"github.com/pkordes/markerwatch/internal/domain"
)

// maxIDAttempts bounds how often Create asks the generator for an unused id.
const maxIDAttempts = 8

// ErrIDExhausted is returned by Create when the id generator keeps producing
// ids that are already stored.
var ErrIDExhausted = errors.New("no unused marker id")

// entry is one stored marker plus its node in the spatial index.
type entry struct {
	marker domain.Marker
	item   *spatialItem
}

// Store is a concurrency-safe, insertion-ordered marker set.
// Construct it once per process with New and share the pointer.
type Store struct {
	mu    sync.RWMutex
	order []uuid.UUID
	byID  map[uuid.UUID]*entry
	tree  *rtreego.Rtree

	now   func() time.Time
	newID func() uuid.UUID
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp CreatedAt in Create.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides the id generator used by Create.
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(s *Store) { s.newID = gen }
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		byID:  make(map[uuid.UUID]*entry),
		tree:  newTree(),
		now:   time.Now,
		newID: uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates d, assigns an id and CreatedAt, and stores the marker.
// Returns domain.ErrInvalidCategory or domain.ErrInvalidLocation without
// storing anything when d is invalid.
func (s *Store) Create(d domain.Draft) (domain.Marker, error) {
	if err := d.Validate(); err != nil {
		return domain.Marker{}, fmt.Errorf("store.Store.Create: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	for attempt := 1; s.byID[id] != nil; attempt++ {
		if attempt >= maxIDAttempts {
			return domain.Marker{}, fmt.Errorf("store.Store.Create: %w", ErrIDExhausted)
		}
		id = s.newID()
	}
	m := domain.NewMarker(id, d, s.now())
	s.insertLocked(m)
	return m, nil
}

// Add stores a marker that already carries its canonical id and timestamps,
// such as one returned by the remote source. If the id is already known the
// record with the later CreatedAt is kept. Invalid records are ignored.
func (s *Store) Add(m domain.Marker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(m)
}

// Merge folds a remote marker set into the store by id; for each id the
// record with the later CreatedAt wins. Markers not present in ms are left
// alone. Returns how many records were inserted or replaced.
func (s *Store) Merge(ms []domain.Marker) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for _, m := range ms {
		if s.upsertLocked(m) {
			changed++
		}
	}
	return changed
}

// Get returns the marker with the given id, active or not.
func (s *Store) Get(id uuid.UUID) (domain.Marker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byID[id]
	if !ok {
		return domain.Marker{}, fmt.Errorf("store.Store.Get: %w", domain.ErrNotFound)
	}
	return e.marker, nil
}

// ListActive returns every marker active at now, in insertion order.
// The result is never nil.
func (s *Store) ListActive(now time.Time) []domain.Marker {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Marker, 0, len(s.order))
	for _, id := range s.order {
		m := s.byID[id].marker
		if domain.IsActive(m, now) {
			out = append(out, m)
		}
	}
	return out
}

// Active is ListActive at the store's clock.
func (s *Store) Active() []domain.Marker {
	return s.ListActive(s.now())
}

// Len returns the number of stored markers, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Prune removes markers that expired more than retain before now and
// returns how many were removed.
func (s *Store) Prune(now time.Time, retain time.Duration) int {
	cutoff := now.Add(-retain)

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	removed := 0
	for _, id := range s.order {
		e := s.byID[id]
		if e.marker.ExpiresAt.Before(cutoff) {
			s.tree.Delete(e.item)
			delete(s.byID, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return removed
}

func (s *Store) insertLocked(m domain.Marker) {
	item := newSpatialItem(m)
	s.byID[m.ID] = &entry{marker: m, item: item}
	s.order = append(s.order, m.ID)
	s.tree.Insert(item)
}

// upsertLocked reports whether m was inserted or replaced an older record.
// Records that fail validation are skipped.
func (s *Store) upsertLocked(m domain.Marker) bool {
	if m.ID == uuid.Nil || !m.Category.Valid() || m.Location().Validate() != nil {
		return false
	}
	// ExpiresAt is derived; never trust a supplied value.
	m.ExpiresAt = domain.ExpiresAt(m.Category, m.CreatedAt)

	e, ok := s.byID[m.ID]
	if !ok {
		s.insertLocked(m)
		return true
	}
	if m.CreatedAt.Before(e.marker.CreatedAt) {
		return false
	}
	if e.marker.Location() != m.Location() {
		s.tree.Delete(e.item)
		e.item = newSpatialItem(m)
		s.tree.Insert(e.item)
	}
	e.marker = m
	return true
}
