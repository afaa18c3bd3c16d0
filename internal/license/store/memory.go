// Package store persists licenses. The license key is the unique credential;
// a domain may hold several licenses (one per admin contact).
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"clearshift/internal/license/models"
	"clearshift/pkg/platform/sentinel"
)

// InMemory is a map-backed license store for tests and local runs.
type InMemory struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]*models.License
	byKey map[string]uuid.UUID
}

// NewInMemory constructs an empty in-memory license store.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:  make(map[uuid.UUID]*models.License),
		byKey: make(map[string]uuid.UUID),
	}
}

func (s *InMemory) Create(ctx context.Context, l *models.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byKey[l.Key]; ok {
		return sentinel.ErrConflict
	}
	clone := *l
	s.byID[l.ID] = &clone
	s.byKey[l.Key] = l.ID
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, id uuid.UUID) (*models.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *l
	return &clone, nil
}

func (s *InMemory) FindByKey(ctx context.Context, key string) (*models.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.byID[id]
	return &clone, nil
}

// Update replaces the stored record, re-keying the key index on rotation.
func (s *InMemory) Update(ctx context.Context, l *models.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[l.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if l.Key != current.Key {
		if other, taken := s.byKey[l.Key]; taken && other != l.ID {
			return sentinel.ErrConflict
		}
		delete(s.byKey, current.Key)
		s.byKey[l.Key] = l.ID
	}
	clone := *l
	s.byID[l.ID] = &clone
	return nil
}

func (s *InMemory) ListByDomain(ctx context.Context, domain string) ([]*models.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.License
	for _, l := range s.byID {
		if l.Domain == domain {
			clone := *l
			out = append(out, &clone)
		}
	}
	sortByIssued(out)
	return out, nil
}

func (s *InMemory) List(ctx context.Context, f models.ListFilter) ([]*models.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.License, 0, len(s.byID))
	for _, l := range s.byID {
		if !f.Matches(l) {
			continue
		}
		clone := *l
		out = append(out, &clone)
	}
	sortByIssued(out)
	return f.Paginate(out), nil
}

// ActiveDomains returns the distinct domains holding at least one active
// license, sorted for deterministic dispatch order.
func (s *InMemory) ActiveDomains(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	for _, l := range s.byID {
		if l.Active() {
			seen[l.Domain] = true
		}
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

func sortByIssued(ls []*models.License) {
	sort.Slice(ls, func(i, j int) bool { return ls[i].IssuedAt.Before(ls[j].IssuedAt) })
}
