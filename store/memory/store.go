// Package memory provides an in-memory Store implementation for tests and
// single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/deadletter"
	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/route"
	"github.com/xraph/conduit/run"
	conduitstore "github.com/xraph/conduit/store"
)

// compile-time interface check.
var _ conduitstore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store. Reads return copies
// so callers can mutate results without holding a lock.
type Store struct {
	mu sync.RWMutex

	routes      map[string]*route.Route // keyed by ID string
	routeOrder  []string                // insertion order
	runs        map[string]*run.Run     // keyed by ID string
	runsByKey   map[string]string       // route ID + idempotency key -> run ID
	deadLetters map[string]*deadletter.Entry

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		routes:      make(map[string]*route.Route),
		runs:        make(map[string]*run.Run),
		runsByKey:   make(map[string]string),
		deadLetters: make(map[string]*deadletter.Entry),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate has nothing to create for the in-memory store.
func (s *Store) Migrate(ctx context.Context) error { return s.Ping(ctx) }

// Ping reports ErrStoreClosed after Close. Every other method does the same.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return conduit.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// route.Store
// ──────────────────────────────────────────────────

// CreateRoute persists a new route.
func (s *Store) CreateRoute(_ context.Context, r *route.Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return conduit.ErrStoreClosed
	}

	cp := *r
	s.routes[r.ID.String()] = &cp
	s.routeOrder = append(s.routeOrder, r.ID.String())
	return nil
}

// GetRoute returns a copy of the route.
func (s *Store) GetRoute(_ context.Context, routeID id.ID) (*route.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, conduit.ErrStoreClosed
	}

	r, ok := s.routes[routeID.String()]
	if !ok {
		return nil, conduit.ErrRouteNotFound
	}
	cp := *r
	return &cp, nil
}

// UpdateRoute replaces an existing route.
func (s *Store) UpdateRoute(_ context.Context, r *route.Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return conduit.ErrStoreClosed
	}

	if _, ok := s.routes[r.ID.String()]; !ok {
		return conduit.ErrRouteNotFound
	}
	cp := *r
	s.routes[r.ID.String()] = &cp
	return nil
}

// DeleteRoute removes a route.
func (s *Store) DeleteRoute(_ context.Context, routeID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return conduit.ErrStoreClosed
	}

	key := routeID.String()
	if _, ok := s.routes[key]; !ok {
		return conduit.ErrRouteNotFound
	}
	delete(s.routes, key)
	for i, k := range s.routeOrder {
		if k == key {
			s.routeOrder = append(s.routeOrder[:i], s.routeOrder[i+1:]...)
			break
		}
	}
	return nil
}

// ListRoutes returns routes oldest first. Routes created in the same
// instant keep insertion order.
func (s *Store) ListRoutes(_ context.Context, opts route.ListOpts) ([]*route.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, conduit.ErrStoreClosed
	}

	result := make([]*route.Route, 0, len(s.routes))
	for _, key := range s.routeOrder {
		r := s.routes[key]
		if opts.Enabled != nil && r.Enabled != *opts.Enabled {
			continue
		}
		cp := *r
		result = append(result, &cp)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// run.Store
// ──────────────────────────────────────────────────

func idempotencyKey(routeID id.ID, key string) string {
	return routeID.String() + "\x00" + key
}

// CreateRun persists a new run. A second run with the same route and
// idempotency key is rejected with ErrDuplicateIdempotencyKey.
func (s *Store) CreateRun(_ context.Context, r *run.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return conduit.ErrStoreClosed
	}

	if r.IdempotencyKey != "" {
		k := idempotencyKey(r.RouteID, r.IdempotencyKey)
		if _, dup := s.runsByKey[k]; dup {
			return conduit.ErrDuplicateIdempotencyKey
		}
		s.runsByKey[k] = r.ID.String()
	}

	cp := *r
	s.runs[r.ID.String()] = &cp
	return nil
}

// UpdateRun replaces a stored run.
func (s *Store) UpdateRun(_ context.Context, r *run.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return conduit.ErrStoreClosed
	}

	if _, ok := s.runs[r.ID.String()]; !ok {
		return conduit.ErrRunNotFound
	}
	cp := *r
	s.runs[r.ID.String()] = &cp
	return nil
}

// GetRun returns a copy of the run.
func (s *Store) GetRun(_ context.Context, runID id.ID) (*run.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, conduit.ErrStoreClosed
	}

	r, ok := s.runs[runID.String()]
	if !ok {
		return nil, conduit.ErrRunNotFound
	}
	cp := *r
	return &cp, nil
}

// ListRuns returns runs, most recently started first.
func (s *Store) ListRuns(_ context.Context, opts run.ListOpts) ([]*run.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, conduit.ErrStoreClosed
	}

	result := make([]*run.Run, 0, len(s.runs))
	for _, r := range s.runs {
		if opts.RouteID != nil && r.RouteID != *opts.RouteID {
			continue
		}
		if opts.Status != "" && r.Status != opts.Status {
			continue
		}
		cp := *r
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].ID.String() > result[j].ID.String()
		}
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// CountRuns counts runs in a status, or all runs when st is empty.
func (s *Store) CountRuns(_ context.Context, st run.Status) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, conduit.ErrStoreClosed
	}

	var n int64
	for _, r := range s.runs {
		if st == "" || r.Status == st {
			n++
		}
	}
	return n, nil
}

// GetRunByIdempotencyKey returns the run for a route and idempotency key.
func (s *Store) GetRunByIdempotencyKey(_ context.Context, routeID id.ID, key string) (*run.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, conduit.ErrStoreClosed
	}

	runID, ok := s.runsByKey[idempotencyKey(routeID, key)]
	if !ok {
		return nil, conduit.ErrRunNotFound
	}
	cp := *s.runs[runID]
	return &cp, nil
}

// ──────────────────────────────────────────────────
// deadletter.Store
// ──────────────────────────────────────────────────

// PushDeadLetter persists a new entry.
func (s *Store) PushDeadLetter(_ context.Context, e *deadletter.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return conduit.ErrStoreClosed
	}

	cp := *e
	s.deadLetters[e.ID.String()] = &cp
	return nil
}

// GetDeadLetter returns a copy of the entry.
func (s *Store) GetDeadLetter(_ context.Context, entryID id.ID) (*deadletter.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, conduit.ErrStoreClosed
	}

	e, ok := s.deadLetters[entryID.String()]
	if !ok {
		return nil, conduit.ErrDeadLetterNotFound
	}
	cp := *e
	return &cp, nil
}

// UpdateDeadLetter replaces a stored entry.
func (s *Store) UpdateDeadLetter(_ context.Context, e *deadletter.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return conduit.ErrStoreClosed
	}

	if _, ok := s.deadLetters[e.ID.String()]; !ok {
		return conduit.ErrDeadLetterNotFound
	}
	cp := *e
	s.deadLetters[e.ID.String()] = &cp
	return nil
}

// ListDeadLetters returns entries, newest first.
func (s *Store) ListDeadLetters(_ context.Context, opts deadletter.ListOpts) ([]*deadletter.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, conduit.ErrStoreClosed
	}

	result := make([]*deadletter.Entry, 0, len(s.deadLetters))
	for _, e := range s.deadLetters {
		if opts.Status != "" && e.Status != opts.Status {
			continue
		}
		if opts.RouteID != nil && e.RouteID != *opts.RouteID {
			continue
		}
		if opts.From != nil && e.CreatedAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && e.CreatedAt.After(*opts.To) {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() > result[j].ID.String()
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// CountDeadLetters counts entries in a status, or all entries when st is
// empty.
func (s *Store) CountDeadLetters(_ context.Context, st deadletter.Status) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, conduit.ErrStoreClosed
	}

	var n int64
	for _, e := range s.deadLetters {
		if st == "" || e.Status == st {
			n++
		}
	}
	return n, nil
}

// PurgeDeadLetters deletes REPLAYED entries created before the given time.
func (s *Store) PurgeDeadLetters(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, conduit.ErrStoreClosed
	}

	var n int64
	for key, e := range s.deadLetters {
		if e.Status == deadletter.StatusReplayed && e.CreatedAt.Before(before) {
			delete(s.deadLetters, key)
			n++
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func applyPagination[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
