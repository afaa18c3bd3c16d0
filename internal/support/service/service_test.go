package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"clearshift/internal/notify"
	"clearshift/internal/support/models"
	"clearshift/internal/support/store"
	dErrors "clearshift/pkg/domain-errors"
)

var testNow = time.Date(2025, time.July, 16, 10, 0, 0, 0, time.UTC)

type stubRecipients map[string][]string

func (r stubRecipients) ActiveRecipients(ctx context.Context, domain string) ([]string, error) {
	return r[domain], nil
}

type captureEnqueuer struct {
	messages []notify.Message
}

func (c *captureEnqueuer) Enqueue(msg notify.Message) {
	c.messages = append(c.messages, msg)
}

func newService(recipients stubRecipients, cfg Config) (*Service, *captureEnqueuer) {
	mail := &captureEnqueuer{}
	return New(store.NewInMemory(), recipients, mail, cfg), mail
}

func submitReq() models.SubmitRequest {
	return models.SubmitRequest{
		EmployeeID:  "emp-7",
		SupportType: models.TypeHR,
		Message:     "I would like to talk to someone about my workload.",
		Contact:     models.Contact{Email: "me@example.com"},
	}
}

func TestSubmitRoutesToContentEmails(t *testing.T) {
	svc, mail := newService(stubRecipients{}, Config{})

	_, err := svc.PublishContent(context.Background(), "example.com", models.Content{
		HR:       []string{"Reach the HR team at hr@example.com or people@example.com"},
		Crisis:   []string{"24/7 line: crisis@example.com"},
		IsActive: true,
	}, testNow)
	if err != nil {
		t.Fatalf("publish content: %v", err)
	}

	r, err := svc.Submit(context.Background(), "example.com", submitReq(), testNow)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if len(mail.messages) != 1 {
		t.Fatalf("expected one email, got %d", len(mail.messages))
	}
	to := mail.messages[0].To
	if len(to) != 3 {
		t.Fatalf("expected 3 routing targets, got %v", to)
	}
	// hr is the preferred list for an hr request, so its addresses lead.
	if to[0] != "hr@example.com" || to[1] != "people@example.com" {
		t.Fatalf("preferred list should lead: %v", to)
	}
	if r.RoutedTo != 3 {
		t.Fatalf("expected routed_to 3, got %d", r.RoutedTo)
	}
	if r.Status != models.StatusNew {
		t.Fatalf("expected status new, got %s", r.Status)
	}
}

func TestSubmitIncludesLicenseHoldersAndFallback(t *testing.T) {
	svc, mail := newService(
		stubRecipients{"example.com": {"owner@example.com"}},
		Config{FallbackEmail: "support@clearshift.io"},
	)

	if _, err := svc.Submit(context.Background(), "example.com", submitReq(), testNow); err != nil {
		t.Fatalf("submit: %v", err)
	}

	to := mail.messages[0].To
	if len(to) != 2 || to[0] != "owner@example.com" || to[1] != "support@clearshift.io" {
		t.Fatalf("unexpected targets: %v", to)
	}
}

func TestSubmitFailsWithoutAnyRoute(t *testing.T) {
	svc, mail := newService(stubRecipients{}, Config{})

	_, err := svc.Submit(context.Background(), "example.com", submitReq(), testNow)
	if !dErrors.HasCode(err, dErrors.CodePrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if len(mail.messages) != 0 {
		t.Fatalf("no email expected, got %d", len(mail.messages))
	}
}

func TestSubmitIgnoresInactiveContent(t *testing.T) {
	svc, _ := newService(stubRecipients{}, Config{})

	_, err := svc.PublishContent(context.Background(), "example.com", models.Content{
		HR: []string{"hr@example.com"},
	}, testNow)
	if err != nil {
		t.Fatalf("publish content: %v", err)
	}

	_, err = svc.Submit(context.Background(), "example.com", submitReq(), testNow)
	if !dErrors.HasCode(err, dErrors.CodePrecondition) {
		t.Fatalf("inactive content must not route, got %v", err)
	}
}

func TestSubmitEmailCarriesMessageAndContact(t *testing.T) {
	svc, mail := newService(stubRecipients{"example.com": {"owner@example.com"}}, Config{})

	if _, err := svc.Submit(context.Background(), "example.com", submitReq(), testNow); err != nil {
		t.Fatalf("submit: %v", err)
	}

	msg := mail.messages[0]
	if !strings.Contains(msg.Subject, "hr") {
		t.Fatalf("subject missing support type: %q", msg.Subject)
	}
	for _, want := range []string{"workload", "me@example.com"} {
		if !strings.Contains(msg.Body, want) {
			t.Fatalf("body missing %q:\n%s", want, msg.Body)
		}
	}
}

func TestSubmitRejectsUnknownType(t *testing.T) {
	svc, _ := newService(stubRecipients{"example.com": {"owner@example.com"}}, Config{})

	req := submitReq()
	req.SupportType = "priest"
	_, err := svc.Submit(context.Background(), "example.com", req, testNow)
	if !dErrors.HasCode(err, dErrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateStatusSetsResolvedAtOnce(t *testing.T) {
	svc, _ := newService(stubRecipients{"example.com": {"owner@example.com"}}, Config{})

	r, err := svc.Submit(context.Background(), "example.com", submitReq(), testNow)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	later := testNow.Add(2 * time.Hour)
	r, err = svc.UpdateStatus(context.Background(), "example.com", r.ID, models.StatusResolved, later)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.ResolvedAt == nil || !r.ResolvedAt.Equal(later) {
		t.Fatalf("expected resolved_at %v, got %v", later, r.ResolvedAt)
	}

	// Reopening and resolving again keeps the original resolution time.
	muchLater := later.Add(24 * time.Hour)
	if _, err := svc.UpdateStatus(context.Background(), "example.com", r.ID, models.StatusInProgress, muchLater); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	r, err = svc.UpdateStatus(context.Background(), "example.com", r.ID, models.StatusResolved, muchLater.Add(time.Hour))
	if err != nil {
		t.Fatalf("re-resolve: %v", err)
	}
	if !r.ResolvedAt.Equal(later) {
		t.Fatalf("resolved_at must record the first resolution, got %v", r.ResolvedAt)
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc, _ := newService(stubRecipients{"example.com": {"owner@example.com"}}, Config{})

	r, err := svc.Submit(context.Background(), "example.com", submitReq(), testNow)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), "example.com", r.ID, "done", testNow); !dErrors.HasCode(err, dErrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateStatusCrossDomainNotFound(t *testing.T) {
	svc, _ := newService(stubRecipients{"example.com": {"owner@example.com"}}, Config{})

	r, err := svc.Submit(context.Background(), "example.com", submitReq(), testNow)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, err = svc.UpdateStatus(context.Background(), "other.example", r.ID, models.StatusResolved, testNow)
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatalf("expected not found across domains, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	svc, _ := newService(stubRecipients{
		"example.com":    {"owner@example.com"},
		"second.example": {"owner@second.example"},
	}, Config{})

	mk := func(domain string, st models.SupportType, at time.Time) *models.Request {
		t.Helper()
		req := submitReq()
		req.SupportType = st
		r, err := svc.Submit(context.Background(), domain, req, at)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		return r
	}

	mk("example.com", models.TypeHR, testNow)
	crisis := mk("example.com", models.TypeCrisis, testNow.Add(time.Minute))
	mk("second.example", models.TypeHR, testNow.Add(2*time.Minute))

	byDomain, err := svc.List(context.Background(), models.Filter{Domain: "example.com"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(byDomain) != 2 {
		t.Fatalf("expected 2 for domain, got %d", len(byDomain))
	}
	if byDomain[0].ID != crisis.ID {
		t.Fatalf("expected newest first")
	}

	byType, err := svc.List(context.Background(), models.Filter{Domain: "example.com", SupportType: models.TypeCrisis})
	if err != nil {
		t.Fatalf("list by type: %v", err)
	}
	if len(byType) != 1 || byType[0].ID != crisis.ID {
		t.Fatalf("unexpected type filter result: %+v", byType)
	}
}

func TestContentVersionBumpsOnPublish(t *testing.T) {
	svc, _ := newService(stubRecipients{}, Config{})

	c1, err := svc.PublishContent(context.Background(), "example.com", models.Content{
		Tips:     []string{"Take breaks."},
		IsActive: true,
	}, testNow)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if c1.Version != 1 {
		t.Fatalf("expected version 1, got %d", c1.Version)
	}

	c2, err := svc.PublishContent(context.Background(), "example.com", models.Content{
		Tips:     []string{"Take breaks.", "Talk to your manager."},
		IsActive: true,
	}, testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("republish: %v", err)
	}
	if c2.Version != 2 {
		t.Fatalf("expected version 2, got %d", c2.Version)
	}

	got, err := svc.GetContent(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("get content: %v", err)
	}
	if got.Version != 2 || len(got.Tips) != 2 {
		t.Fatalf("unexpected stored content: %+v", got)
	}
}

func TestGetUnknownRequest(t *testing.T) {
	svc, _ := newService(stubRecipients{}, Config{})

	_, err := svc.Get(context.Background(), "example.com", uuid.New())
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
