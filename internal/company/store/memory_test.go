package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"clearshift/internal/company/models"
	"clearshift/pkg/platform/sentinel"
)

type UserStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *UserStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestUserStoreSuite(t *testing.T) {
	suite.Run(t, new(UserStoreSuite))
}

func (s *UserStoreSuite) newUser(domain, name, email string) *models.User {
	now := time.Date(2025, time.July, 16, 10, 0, 0, 0, time.UTC)
	return &models.User{
		ID:        uuid.New(),
		Domain:    domain,
		Name:      name,
		Email:     email,
		Role:      models.RoleEmployee,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TestEmailUniqueness verifies one address identifies one user platform-wide.
func (s *UserStoreSuite) TestEmailUniqueness() {
	s.Require().NoError(s.store.Create(s.ctx, s.newUser("example.com", "Ann", "ann@example.com")))

	err := s.store.Create(s.ctx, s.newUser("other.example", "Ann Again", "Ann@Example.com"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *UserStoreSuite) TestUpdateRekeysEmail() {
	u := s.newUser("example.com", "Ann", "ann@example.com")
	s.Require().NoError(s.store.Create(s.ctx, u))

	u.Email = "ann.smith@example.com"
	s.Require().NoError(s.store.Update(s.ctx, u))

	found, err := s.store.FindByEmail(s.ctx, "ann.smith@example.com")
	s.Require().NoError(err)
	s.Require().Equal(u.ID, found.ID)

	_, err = s.store.FindByEmail(s.ctx, "ann@example.com")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *UserStoreSuite) TestListFiltersAndSorts() {
	s.Require().NoError(s.store.Create(s.ctx, s.newUser("example.com", "Bob", "bob@example.com")))
	s.Require().NoError(s.store.Create(s.ctx, s.newUser("example.com", "Ann", "ann@example.com")))
	s.Require().NoError(s.store.Create(s.ctx, s.newUser("other.example", "Cid", "cid@other.example")))

	users, err := s.store.List(s.ctx, models.Filter{Domain: "example.com"})
	s.Require().NoError(err)
	s.Require().Len(users, 2)
	s.Require().Equal("Ann", users[0].Name)

	byQ, err := s.store.List(s.ctx, models.Filter{Q: "bob@"})
	s.Require().NoError(err)
	s.Require().Len(byQ, 1)
}

func (s *UserStoreSuite) TestCountAndDelete() {
	u := s.newUser("example.com", "Ann", "ann@example.com")
	s.Require().NoError(s.store.Create(s.ctx, u))

	n, err := s.store.CountByDomain(s.ctx, "EXAMPLE.com")
	s.Require().NoError(err)
	s.Require().Equal(1, n)

	s.Require().NoError(s.store.Delete(s.ctx, u.ID))
	n, err = s.store.CountByDomain(s.ctx, "example.com")
	s.Require().NoError(err)
	s.Require().Zero(n)

	// Deleting frees the email for reuse.
	s.Require().NoError(s.store.Create(s.ctx, s.newUser("example.com", "Ann", "ann@example.com")))
}
