package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"clearshift/internal/company/models"
	"clearshift/internal/company/store"
	"clearshift/internal/notify"
	dErrors "clearshift/pkg/domain-errors"
)

var testNow = time.Date(2025, time.July, 16, 10, 0, 0, 0, time.UTC)

type stubVerifier map[string]bool

func (v stubVerifier) IsVerified(ctx context.Context, domain string) (bool, error) {
	return v[domain], nil
}

type stubSeatGate struct {
	full bool
}

func (g *stubSeatGate) EnsureSeatAvailable(ctx context.Context, domain string) error {
	if g.full {
		return dErrors.Newf(dErrors.CodePrecondition, "all 2 seats for %s are taken", domain)
	}
	return nil
}

type captureEnqueuer struct {
	messages []notify.Message
}

func (c *captureEnqueuer) Enqueue(msg notify.Message) {
	c.messages = append(c.messages, msg)
}

func newService() (*Service, *stubSeatGate, *captureEnqueuer) {
	seats := &stubSeatGate{}
	mail := &captureEnqueuer{}
	svc := New(store.NewInMemory(),
		stubVerifier{"example.com": true},
		seats,
		WithNotifier(mail))
	return svc, seats, mail
}

func TestCreateRequiresVerifiedDomain(t *testing.T) {
	svc, _, _ := newService()

	_, err := svc.Create(context.Background(), "unverified.example",
		models.CreateRequest{Email: "a@unverified.example"}, testNow)
	if !dErrors.HasCode(err, dErrors.CodePrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestCreateEnforcesSeatLimit(t *testing.T) {
	svc, seats, _ := newService()
	seats.full = true

	_, err := svc.Create(context.Background(), "example.com",
		models.CreateRequest{Email: "a@example.com"}, testNow)
	if !dErrors.HasCode(err, dErrors.CodePrecondition) {
		t.Fatalf("expected seat precondition, got %v", err)
	}
}

func TestCreateSendsInviteAndDerivesName(t *testing.T) {
	svc, _, mail := newService()

	u, err := svc.Create(context.Background(), "example.com",
		models.CreateRequest{Email: "jane.doe@example.com"}, testNow)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Name != "Jane Doe" {
		t.Fatalf("expected derived name, got %q", u.Name)
	}
	if u.Role != models.RoleEmployee {
		t.Fatalf("expected default role employee, got %s", u.Role)
	}
	if len(mail.messages) != 1 || mail.messages[0].To[0] != "jane.doe@example.com" {
		t.Fatalf("expected invite email, got %+v", mail.messages)
	}
	if !strings.Contains(mail.messages[0].Body, "Jane Doe") {
		t.Fatalf("invite should greet by name:\n%s", mail.messages[0].Body)
	}
}

func TestCreateDuplicateEmailConflicts(t *testing.T) {
	svc, _, _ := newService()

	if _, err := svc.Create(context.Background(), "example.com",
		models.CreateRequest{Email: "a@example.com"}, testNow); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.Create(context.Background(), "example.com",
		models.CreateRequest{Email: "A@Example.com "}, testNow)
	if !dErrors.HasCode(err, dErrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateRejectsBadEmailAndRole(t *testing.T) {
	svc, _, _ := newService()

	_, err := svc.Create(context.Background(), "example.com",
		models.CreateRequest{Email: "not-an-address"}, testNow)
	if !dErrors.HasCode(err, dErrors.CodeValidation) {
		t.Fatalf("expected validation error for email, got %v", err)
	}
	_, err = svc.Create(context.Background(), "example.com",
		models.CreateRequest{Email: "a@example.com", Role: "owner"}, testNow)
	if !dErrors.HasCode(err, dErrors.CodeValidation) {
		t.Fatalf("expected validation error for role, got %v", err)
	}
}

func TestListAndCount(t *testing.T) {
	svc, _, _ := newService()

	for _, email := range []string{"ann@example.com", "bob@example.com"} {
		if _, err := svc.Create(context.Background(), "example.com",
			models.CreateRequest{Email: email}, testNow); err != nil {
			t.Fatalf("create %s: %v", email, err)
		}
	}
	if _, err := svc.Create(context.Background(), "example.com",
		models.CreateRequest{Email: "carla@example.com", Role: models.RoleManager}, testNow); err != nil {
		t.Fatalf("create manager: %v", err)
	}

	all, err := svc.List(context.Background(), models.Filter{Domain: "example.com"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 users, got %d", len(all))
	}

	managers, err := svc.List(context.Background(), models.Filter{Domain: "example.com", Role: models.RoleManager})
	if err != nil {
		t.Fatalf("list managers: %v", err)
	}
	if len(managers) != 1 || managers[0].Email != "carla@example.com" {
		t.Fatalf("unexpected managers: %+v", managers)
	}

	byQ, err := svc.List(context.Background(), models.Filter{Domain: "example.com", Q: "bob"})
	if err != nil {
		t.Fatalf("list by q: %v", err)
	}
	if len(byQ) != 1 {
		t.Fatalf("expected 1 match for q, got %d", len(byQ))
	}

	n, err := svc.CountByDomain(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected count 3, got %d", n)
	}
}

func TestRemoveFreesSeat(t *testing.T) {
	svc, _, _ := newService()

	u, err := svc.Create(context.Background(), "example.com",
		models.CreateRequest{Email: "a@example.com"}, testNow)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Remove(context.Background(), "example.com", u.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	n, err := svc.CountByDomain(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty roster, got %d", n)
	}
	if err := svc.Remove(context.Background(), "example.com", u.ID); !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatalf("expected not found on second remove, got %v", err)
	}
}

func TestMarkEmailVerifiedIdempotent(t *testing.T) {
	svc, _, _ := newService()

	u, err := svc.Create(context.Background(), "example.com",
		models.CreateRequest{Email: "a@example.com"}, testNow)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	v1, err := svc.MarkEmailVerified(context.Background(), "example.com", u.ID, testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !v1.EmailVerified {
		t.Fatalf("expected verified")
	}
	v2, err := svc.MarkEmailVerified(context.Background(), "example.com", u.ID, testNow.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("re-verify: %v", err)
	}
	if !v2.UpdatedAt.Equal(v1.UpdatedAt) {
		t.Fatalf("second verification must be a no-op")
	}
}

func TestGetCrossDomainNotFound(t *testing.T) {
	svc, _, _ := newService()

	u, err := svc.Create(context.Background(), "example.com",
		models.CreateRequest{Email: "a@example.com"}, testNow)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Get(context.Background(), "other.example", u.ID); !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatalf("expected not found across domains, got %v", err)
	}
	if _, err := svc.Get(context.Background(), "example.com", uuid.New()); !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatalf("expected not found for unknown id, got %v", err)
	}
}
