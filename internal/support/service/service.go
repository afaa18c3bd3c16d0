// Package service routes employee support requests. Routing targets come
// from the email addresses embedded in the domain's support tool content,
// widened with the domain's active license holders and an optional global
// fallback inbox.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"clearshift/internal/notify"
	"clearshift/internal/support/models"
	dErrors "clearshift/pkg/domain-errors"
	"clearshift/pkg/email"
	"clearshift/pkg/platform/sentinel"
	platformstrings "clearshift/pkg/platform/strings"
)

// Store persists support requests and content.
type Store interface {
	CreateRequest(ctx context.Context, r *models.Request) error
	FindRequestByID(ctx context.Context, id uuid.UUID) (*models.Request, error)
	UpdateRequest(ctx context.Context, r *models.Request) error
	ListRequests(ctx context.Context, filter models.Filter) ([]*models.Request, error)
	UpsertContent(ctx context.Context, c *models.Content) error
	FindContentByDomain(ctx context.Context, domain string) (*models.Content, error)
}

// RecipientSource resolves a domain's license holder emails.
type RecipientSource interface {
	ActiveRecipients(ctx context.Context, domain string) ([]string, error)
}

// Enqueuer hands outbound mail to the notification queue.
type Enqueuer interface {
	Enqueue(msg notify.Message)
}

// Config holds the routing knobs.
type Config struct {
	// FallbackEmail is appended to every routing list when set, so a
	// request is never silently dropped for a sparsely configured domain.
	FallbackEmail string
}

type Service struct {
	store      Store
	recipients RecipientSource
	queue      Enqueuer
	cfg        Config
	logger     *slog.Logger
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, recipients RecipientSource, queue Enqueuer, cfg Config, opts ...Option) *Service {
	s := &Service{
		store:      store,
		recipients: recipients,
		queue:      queue,
		cfg:        cfg,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit records a support request and emails the routing targets. The
// request is rejected when no target can be resolved; a support request
// that nobody would see must fail loudly at submission time.
func (s *Service) Submit(ctx context.Context, domain string, req models.SubmitRequest, now time.Time) (*models.Request, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	targets, err := s.routingTargets(ctx, domain, req.SupportType)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, dErrors.Newf(dErrors.CodePrecondition,
			"no support routing configured for %s", domain)
	}

	r := &models.Request{
		ID:              uuid.New(),
		Domain:          strings.ToLower(domain),
		EmployeeID:      req.EmployeeID,
		SupportType:     req.SupportType,
		Message:         strings.TrimSpace(req.Message),
		Contact:         req.Contact,
		CheckinID:       req.CheckinID,
		Status:          models.StatusNew,
		StatusUpdatedAt: now,
		RoutedTo:        len(targets),
		SubmittedAt:     now,
	}
	if err := s.store.CreateRequest(ctx, r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "storing support request")
	}

	s.queue.Enqueue(notify.Message{
		To:      targets,
		Subject: fmt.Sprintf("Support request (%s) from an employee at %s", r.SupportType, r.Domain),
		Body:    renderRequestEmail(r),
	})
	s.logger.InfoContext(ctx, "support request routed",
		slog.String("domain", r.Domain),
		slog.String("support_type", string(r.SupportType)),
		slog.Int("routed_to", r.RoutedTo))
	return r, nil
}

// routingTargets walks the preferred content list first, then the rest, so
// a crisis request reaches the crisis contacts even when other lists also
// carry addresses.
func (s *Service) routingTargets(ctx context.Context, domain string, preferred models.SupportType) ([]string, error) {
	var targets []string

	content, err := s.store.FindContentByDomain(ctx, domain)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		// No published content; license holders and fallback still apply.
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "loading support content")
	case content.IsActive:
		targets = append(targets, email.Extract(content.ListFor(preferred))...)
		for _, list := range content.AllLists() {
			targets = append(targets, email.Extract(list)...)
		}
	}

	holders, err := s.recipients.ActiveRecipients(ctx, domain)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "resolving license holders")
	}
	targets = append(targets, holders...)

	if s.cfg.FallbackEmail != "" {
		targets = append(targets, s.cfg.FallbackEmail)
	}
	return platformstrings.DedupeAndTrimLower(targets), nil
}

// UpdateStatus moves a request through triage. resolvedAt records the first
// transition into resolved and is preserved afterwards.
func (s *Service) UpdateStatus(ctx context.Context, domain string, id uuid.UUID, status models.Status, now time.Time) (*models.Request, error) {
	if !status.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown status %q", status)
	}
	r, err := s.loadRequest(ctx, domain, id)
	if err != nil {
		return nil, err
	}
	if r.Status == status {
		return r, nil
	}
	if status == models.StatusResolved && r.ResolvedAt == nil {
		ts := now
		r.ResolvedAt = &ts
	}
	r.Status = status
	r.StatusUpdatedAt = now
	if err := s.store.UpdateRequest(ctx, r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "updating support request")
	}
	return r, nil
}

// Get returns one request, scoped to the caller's domain.
func (s *Service) Get(ctx context.Context, domain string, id uuid.UUID) (*models.Request, error) {
	return s.loadRequest(ctx, domain, id)
}

// List returns the requests matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter models.Filter) ([]*models.Request, error) {
	out, err := s.store.ListRequests(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "listing support requests")
	}
	return out, nil
}

// PublishContent upserts a domain's support tool content. The store bumps
// the version on every publish.
func (s *Service) PublishContent(ctx context.Context, domain string, c models.Content, now time.Time) (*models.Content, error) {
	if domain == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "domain is required")
	}
	c.Domain = strings.ToLower(domain)
	c.UpdatedAt = now
	if err := s.store.UpsertContent(ctx, &c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "storing support content")
	}
	return &c, nil
}

// GetContent returns a domain's support tool content.
func (s *Service) GetContent(ctx context.Context, domain string) (*models.Content, error) {
	c, err := s.store.FindContentByDomain(ctx, domain)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no support content for %s", domain)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "loading support content")
	}
	return c, nil
}

func (s *Service) loadRequest(ctx context.Context, domain string, id uuid.UUID) (*models.Request, error) {
	r, err := s.store.FindRequestByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "support request %s not found", id)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "loading support request")
	}
	if domain != "" && !strings.EqualFold(r.Domain, domain) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "support request %s not found", id)
	}
	return r, nil
}

func renderRequestEmail(r *models.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A %s support request was submitted at %s.\n\n", r.SupportType, r.Domain)
	if r.Message != "" {
		fmt.Fprintf(&b, "Message:\n%s\n\n", r.Message)
	}
	if r.Contact.Name != "" || r.Contact.Email != "" || r.Contact.Phone != "" {
		b.WriteString("Preferred contact:\n")
		if r.Contact.Name != "" {
			fmt.Fprintf(&b, "  Name:  %s\n", r.Contact.Name)
		}
		if r.Contact.Email != "" {
			fmt.Fprintf(&b, "  Email: %s\n", r.Contact.Email)
		}
		if r.Contact.Phone != "" {
			fmt.Fprintf(&b, "  Phone: %s\n", r.Contact.Phone)
		}
	}
	return b.String()
}
