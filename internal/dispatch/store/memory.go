// Package store persists dispatch receipts.
package store

import (
	"context"
	"sort"
	"sync"

	"clearshift/internal/dispatch/models"
	"clearshift/pkg/platform/sentinel"
)

type weekKey struct {
	domain     string
	weekEnding string
}

// InMemory is a map-backed receipt store for tests and local runs.
type InMemory struct {
	mu     sync.RWMutex
	byWeek map[weekKey]*models.Receipt
}

// NewInMemory constructs an empty in-memory receipt store.
func NewInMemory() *InMemory {
	return &InMemory{byWeek: make(map[weekKey]*models.Receipt)}
}

// Create records a receipt. A second receipt for the same (domain, week
// ending) is a conflict; dispatch treats that as already sent.
func (s *InMemory) Create(ctx context.Context, r *models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := weekKey{domain: r.Domain, weekEnding: r.WeekEnding}
	if _, ok := s.byWeek[key]; ok {
		return sentinel.ErrConflict
	}
	s.byWeek[key] = cloneReceipt(r)
	return nil
}

func (s *InMemory) FindByDomainWeek(ctx context.Context, domain, weekEnding string) (*models.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byWeek[weekKey{domain: domain, weekEnding: weekEnding}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneReceipt(r), nil
}

// ListByDomain returns a domain's receipts, most recent week first.
func (s *InMemory) ListByDomain(ctx context.Context, domain string) ([]*models.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Receipt
	for _, r := range s.byWeek {
		if r.Domain == domain {
			out = append(out, cloneReceipt(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekEnding > out[j].WeekEnding })
	return out, nil
}

func cloneReceipt(r *models.Receipt) *models.Receipt {
	clone := *r
	clone.Recipients = append([]string(nil), r.Recipients...)
	return &clone
}
