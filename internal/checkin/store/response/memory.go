// Package response persists employee check-in submissions.
package response

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"clearshift/internal/checkin/models"
	"clearshift/pkg/platform/sentinel"
)

// InMemory is a map-backed response store for tests and local runs.
type InMemory struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*models.Response
}

// NewInMemory constructs an empty in-memory response store.
func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[uuid.UUID]*models.Response)}
}

func (s *InMemory) Create(ctx context.Context, r *models.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[r.ID]; ok {
		return sentinel.ErrConflict
	}
	s.byID[r.ID] = cloneResponse(r)
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, id uuid.UUID) (*models.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneResponse(r), nil
}

func (s *InMemory) Update(ctx context.Context, r *models.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[r.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.byID[r.ID] = cloneResponse(r)
	return nil
}

// ListByDomain returns a domain's responses matching the filter, newest
// first.
func (s *InMemory) ListByDomain(ctx context.Context, domain string, f models.ResponseFilter) ([]*models.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Response
	for _, r := range s.byID {
		if r.Domain == domain && f.Matches(r) {
			out = append(out, cloneResponse(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// ListByDomainWindow returns responses submitted in [start, end], oldest
// first. This is the aggregation read path.
func (s *InMemory) ListByDomainWindow(ctx context.Context, domain string, start, end time.Time) ([]models.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Response
	for _, r := range s.byID {
		if r.Domain != domain {
			continue
		}
		if r.SubmittedAt.Before(start) || r.SubmittedAt.After(end) {
			continue
		}
		out = append(out, *cloneResponse(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func cloneResponse(r *models.Response) *models.Response {
	clone := *r
	clone.Answers = append([]models.Answer(nil), r.Answers...)
	return &clone
}
