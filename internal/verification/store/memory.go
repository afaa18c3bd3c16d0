// Package store persists domain verifications. Both implementations keep
// the one-record-per-domain invariant: Create on an occupied domain returns
// sentinel.ErrConflict.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"clearshift/internal/verification/models"
	"clearshift/pkg/platform/sentinel"
)

// InMemory is a map-backed verification store for tests and local runs.
type InMemory struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]*models.Verification
	byDomain map[string]uuid.UUID
}

// NewInMemory constructs an empty in-memory verification store.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:     make(map[uuid.UUID]*models.Verification),
		byDomain: make(map[string]uuid.UUID),
	}
}

func (s *InMemory) Create(ctx context.Context, v *models.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byDomain[v.Domain]; ok {
		return sentinel.ErrConflict
	}
	clone := *v
	s.byID[v.ID] = &clone
	s.byDomain[v.Domain] = v.ID
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, id uuid.UUID) (*models.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *v
	return &clone, nil
}

func (s *InMemory) FindByDomain(ctx context.Context, domain string) (*models.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byDomain[domain]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.byID[id]
	return &clone, nil
}

// Update replaces the stored record. Domain changes re-key the domain index;
// a change onto a domain already held by another record is a conflict.
func (s *InMemory) Update(ctx context.Context, v *models.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[v.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if v.Domain != current.Domain {
		if other, taken := s.byDomain[v.Domain]; taken && other != v.ID {
			return sentinel.ErrConflict
		}
		delete(s.byDomain, current.Domain)
		s.byDomain[v.Domain] = v.ID
	}
	clone := *v
	s.byID[v.ID] = &clone
	return nil
}

func (s *InMemory) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byDomain, v.Domain)
	delete(s.byID, id)
	return nil
}

func (s *InMemory) List(ctx context.Context, f models.ListFilter) ([]*models.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Verification, 0, len(s.byID))
	for _, v := range s.byID {
		if !f.Matches(v) {
			continue
		}
		clone := *v
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return f.Paginate(out), nil
}
