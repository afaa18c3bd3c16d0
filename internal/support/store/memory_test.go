package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"clearshift/internal/support/models"
	"clearshift/pkg/platform/sentinel"
)

type SupportStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *SupportStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestSupportStoreSuite(t *testing.T) {
	suite.Run(t, new(SupportStoreSuite))
}

func (s *SupportStoreSuite) newRequest(domain string, st models.SupportType, at time.Time) *models.Request {
	return &models.Request{
		ID:              uuid.New(),
		Domain:          domain,
		EmployeeID:      "emp-1",
		SupportType:     st,
		Status:          models.StatusNew,
		StatusUpdatedAt: at,
		RoutedTo:        1,
		SubmittedAt:     at,
	}
}

func (s *SupportStoreSuite) TestRequestLifecycle() {
	now := time.Date(2025, time.July, 16, 10, 0, 0, 0, time.UTC)
	r := s.newRequest("example.com", models.TypeHR, now)
	s.Require().NoError(s.store.CreateRequest(s.ctx, r))

	found, err := s.store.FindRequestByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Require().Equal(models.StatusNew, found.Status)

	found.Status = models.StatusResolved
	resolvedAt := now.Add(time.Hour)
	found.ResolvedAt = &resolvedAt
	s.Require().NoError(s.store.UpdateRequest(s.ctx, found))

	again, err := s.store.FindRequestByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Require().Equal(models.StatusResolved, again.Status)
	s.Require().NotNil(again.ResolvedAt)

	_, err = s.store.FindRequestByID(s.ctx, uuid.New())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *SupportStoreSuite) TestListFiltersAndOrder() {
	base := time.Date(2025, time.July, 16, 10, 0, 0, 0, time.UTC)
	first := s.newRequest("example.com", models.TypeHR, base)
	second := s.newRequest("example.com", models.TypeCrisis, base.Add(time.Minute))
	other := s.newRequest("other.example", models.TypeHR, base.Add(2*time.Minute))
	for _, r := range []*models.Request{first, second, other} {
		s.Require().NoError(s.store.CreateRequest(s.ctx, r))
	}

	byDomain, err := s.store.ListRequests(s.ctx, models.Filter{Domain: "example.com"})
	s.Require().NoError(err)
	s.Require().Len(byDomain, 2)
	s.Require().Equal(second.ID, byDomain[0].ID)

	byType, err := s.store.ListRequests(s.ctx, models.Filter{SupportType: models.TypeCrisis})
	s.Require().NoError(err)
	s.Require().Len(byType, 1)
	s.Require().Equal(second.ID, byType[0].ID)
}

func (s *SupportStoreSuite) TestContentUpsertBumpsVersion() {
	c := &models.Content{
		Domain:   "Example.com",
		Tips:     []string{"Take breaks."},
		IsActive: true,
	}
	s.Require().NoError(s.store.UpsertContent(s.ctx, c))
	s.Require().Equal(1, c.Version)

	c2 := &models.Content{
		Domain:   "example.com",
		Tips:     []string{"Take breaks.", "Log off on time."},
		IsActive: true,
	}
	s.Require().NoError(s.store.UpsertContent(s.ctx, c2))
	s.Require().Equal(2, c2.Version)

	found, err := s.store.FindContentByDomain(s.ctx, "EXAMPLE.COM")
	s.Require().NoError(err)
	s.Require().Equal(2, found.Version)
	s.Require().Len(found.Tips, 2)

	_, err = s.store.FindContentByDomain(s.ctx, "missing.example")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
