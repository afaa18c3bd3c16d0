//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"clearshift/internal/license/models"
	"clearshift/internal/license/store"
	"clearshift/pkg/platform/sentinel"
	"clearshift/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "admin_users"))
}

func newLicense(domain, key string) *models.License {
	now := time.Now().UTC().Truncate(time.Microsecond)
	seats := 10
	return &models.License{
		ID:        uuid.New(),
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@" + domain,
		Domain:    domain,
		Key:       key,
		Status:    models.LicenseActive,
		IssuedAt:  now,
		SeatLimit: &seats,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	l := newLicense("example.com", "csw-lic-AAAA-BBBB-CCCC-DDDD")
	s.Require().NoError(s.store.Create(ctx, l))

	found, err := s.store.FindByKey(ctx, l.Key)
	s.Require().NoError(err)
	s.Equal(l.ID, found.ID)
	s.Require().NotNil(found.SeatLimit)
	s.Equal(10, *found.SeatLimit)

	found.Status = models.LicenseRevoked
	s.Require().NoError(s.store.Update(ctx, found))

	again, err := s.store.FindByID(ctx, l.ID)
	s.Require().NoError(err)
	s.Equal(models.LicenseRevoked, again.Status)
}

func (s *PostgresStoreSuite) TestKeyUniqueness() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, newLicense("a.example", "csw-lic-1111-2222-3333-4444")))
	err := s.store.Create(ctx, newLicense("b.example", "csw-lic-1111-2222-3333-4444"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestActiveDomains() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, newLicense("b.example", "csw-lic-AAAA-AAAA-AAAA-AAA1")))
	s.Require().NoError(s.store.Create(ctx, newLicense("a.example", "csw-lic-AAAA-AAAA-AAAA-AAA2")))
	revoked := newLicense("c.example", "csw-lic-AAAA-AAAA-AAAA-AAA3")
	revoked.Status = models.LicenseRevoked
	s.Require().NoError(s.store.Create(ctx, revoked))

	domains, err := s.store.ActiveDomains(ctx)
	s.Require().NoError(err)
	s.Equal([]string{"a.example", "b.example"}, domains)
}
