package store

import (
	"errors"
	"sync"
	"time"

	"github.com/forecastjournal/forecast-dashboard/internal/forecast"
)

var (
	// ErrNotFound is returned when no view has been committed yet.
	ErrNotFound = errors.New("no dashboard view available")
	// ErrStale is returned when a newer request was started after the one committing.
	ErrStale = errors.New("result superseded by a newer request")
)

// Source tells whether a view was built from live records or generated.
type Source string

const (
	SourceLive Source = "live"
	SourceMock Source = "mock"
)

// View is everything the charts need for one render.
type View struct {
	Filter      forecast.Filter      `json:"filter"`
	Source      Source               `json:"source"`
	Records     int                  `json:"records"`
	Projections forecast.Projections `json:"projections"`
	UpdatedAt   time.Time            `json:"updatedAt"` // always UTC
}

// Generation identifies one request against the store.
type Generation uint64

// ViewStore is a concurrency-safe holder of the current dashboard view.
// Every request takes a generation from Begin; only the newest generation may commit.
type ViewStore struct {
	mu sync.RWMutex

	current   View
	committed bool

	latest Generation
}

// NewViewStore creates an empty ViewStore.
func NewViewStore() *ViewStore {
	return &ViewStore{}
}

// Begin issues a new generation, superseding any request still in flight.
func (s *ViewStore) Begin() Generation {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest++
	return s.latest
}

// IsLatest reports whether gen is the most recently issued generation.
func (s *ViewStore) IsLatest(gen Generation) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return gen == s.latest
}

// Commit replaces the current view if gen is still the latest generation.
func (s *ViewStore) Commit(gen Generation, view View) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.latest {
		return ErrStale
	}
	if view.UpdatedAt.IsZero() {
		view.UpdatedAt = time.Now().UTC()
	}
	view.Projections = view.Projections.Clone()

	s.current = view
	s.committed = true
	return nil
}

// Current returns a copy of the committed view.
func (s *ViewStore) Current() (View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.committed {
		return View{}, ErrNotFound
	}
	v := s.current
	v.Projections = v.Projections.Clone()
	return v, nil
}
