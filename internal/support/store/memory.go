// Package store persists support requests and support tool content.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"clearshift/internal/support/models"
	"clearshift/pkg/platform/sentinel"
)

// InMemory is a map-backed support store for tests and local runs.
type InMemory struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]*models.Request
	byDomain map[string]*models.Content
}

// NewInMemory constructs an empty in-memory support store.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:     make(map[uuid.UUID]*models.Request),
		byDomain: make(map[string]*models.Content),
	}
}

func (s *InMemory) CreateRequest(ctx context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[r.ID]; ok {
		return sentinel.ErrConflict
	}
	s.byID[r.ID] = cloneRequest(r)
	return nil
}

func (s *InMemory) FindRequestByID(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRequest(r), nil
}

func (s *InMemory) UpdateRequest(ctx context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[r.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.byID[r.ID] = cloneRequest(r)
	return nil
}

// ListRequests returns matching requests newest first.
func (s *InMemory) ListRequests(ctx context.Context, filter models.Filter) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Request
	for _, r := range s.byID {
		if filter.Domain != "" && !strings.EqualFold(r.Domain, filter.Domain) {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.SupportType != "" && r.SupportType != filter.SupportType {
			continue
		}
		out = append(out, cloneRequest(r))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out, nil
}

// UpsertContent replaces a domain's support content, bumping the version.
func (s *InMemory) UpsertContent(ctx context.Context, c *models.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(c.Domain)
	if existing, ok := s.byDomain[key]; ok {
		c.Version = existing.Version + 1
	} else {
		c.Version = 1
	}
	s.byDomain[key] = cloneContent(c)
	return nil
}

func (s *InMemory) FindContentByDomain(ctx context.Context, domain string) (*models.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byDomain[strings.ToLower(domain)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneContent(c), nil
}

func cloneRequest(r *models.Request) *models.Request {
	clone := *r
	if r.CheckinID != nil {
		id := *r.CheckinID
		clone.CheckinID = &id
	}
	if r.ResolvedAt != nil {
		ts := *r.ResolvedAt
		clone.ResolvedAt = &ts
	}
	return &clone
}

func cloneContent(c *models.Content) *models.Content {
	clone := *c
	clone.Tips = append([]string(nil), c.Tips...)
	clone.EAP = append([]string(nil), c.EAP...)
	clone.HR = append([]string(nil), c.HR...)
	clone.Crisis = append([]string(nil), c.Crisis...)
	return &clone
}
