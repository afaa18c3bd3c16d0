package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"clearshift/internal/dispatch/models"
	"clearshift/pkg/platform/sentinel"
)

type ReceiptStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *ReceiptStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestReceiptStoreSuite(t *testing.T) {
	suite.Run(t, new(ReceiptStoreSuite))
}

func (s *ReceiptStoreSuite) newReceipt(domain, weekEnding string) *models.Receipt {
	return &models.Receipt{
		ID:         uuid.New(),
		Domain:     domain,
		WeekEnding: weekEnding,
		Recipients: []string{"admin@" + domain},
		SentAt:     time.Now(),
	}
}

// TestWeekUniqueness verifies one receipt per (domain, week ending).
func (s *ReceiptStoreSuite) TestWeekUniqueness() {
	s.Require().NoError(s.store.Create(s.ctx, s.newReceipt("example.com", "2025-07-20")))

	err := s.store.Create(s.ctx, s.newReceipt("example.com", "2025-07-20"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	// Same week on another domain, and another week on the same domain,
	// are both fine.
	s.Require().NoError(s.store.Create(s.ctx, s.newReceipt("other.example", "2025-07-20")))
	s.Require().NoError(s.store.Create(s.ctx, s.newReceipt("example.com", "2025-07-27")))
}

// TestLookups verifies retrieval and listing order.
func (s *ReceiptStoreSuite) TestLookups() {
	s.Require().NoError(s.store.Create(s.ctx, s.newReceipt("example.com", "2025-07-13")))
	s.Require().NoError(s.store.Create(s.ctx, s.newReceipt("example.com", "2025-07-20")))

	found, err := s.store.FindByDomainWeek(s.ctx, "example.com", "2025-07-20")
	s.Require().NoError(err)
	s.Equal([]string{"admin@example.com"}, found.Recipients)

	_, err = s.store.FindByDomainWeek(s.ctx, "example.com", "2025-08-03")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	all, err := s.store.ListByDomain(s.ctx, "example.com")
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal("2025-07-20", all[0].WeekEnding)
}
