// Package question persists the check-in question bank. Question text is
// unique per domain so the bank stays deduplicated.
package question

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"clearshift/internal/checkin/models"
	"clearshift/pkg/platform/sentinel"
)

// InMemory is a map-backed question store for tests and local runs.
type InMemory struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*models.Question
}

// NewInMemory constructs an empty in-memory question store.
func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[uuid.UUID]*models.Question)}
}

func (s *InMemory) Create(ctx context.Context, q *models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.byID {
		if existing.Domain == q.Domain && sameText(existing.Question, q.Question) {
			return sentinel.ErrConflict
		}
	}
	clone := cloneQuestion(q)
	s.byID[q.ID] = clone
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneQuestion(q), nil
}

func (s *InMemory) Update(ctx context.Context, q *models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[q.ID]; !ok {
		return sentinel.ErrNotFound
	}
	for _, existing := range s.byID {
		if existing.ID != q.ID && existing.Domain == q.Domain && sameText(existing.Question, q.Question) {
			return sentinel.ErrConflict
		}
	}
	s.byID[q.ID] = cloneQuestion(q)
	return nil
}

func (s *InMemory) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

// ListByDomain returns a domain's questions in creation order. activeOnly
// filters to the questions currently presented to employees.
func (s *InMemory) ListByDomain(ctx context.Context, domain string, activeOnly bool) ([]*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Question
	for _, q := range s.byID {
		if q.Domain != domain {
			continue
		}
		if activeOnly && !q.IsActive {
			continue
		}
		out = append(out, cloneQuestion(q))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func sameText(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func cloneQuestion(q *models.Question) *models.Question {
	clone := *q
	clone.Options = append([]string(nil), q.Options...)
	return &clone
}
