// Package service manages the company user roster. Creation is the seat
// accounting chokepoint: every new user passes the verification gate and the
// license seat check before touching storage.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"clearshift/internal/company/models"
	"clearshift/internal/notify"
	dErrors "clearshift/pkg/domain-errors"
	"clearshift/pkg/platform/sentinel"
)

// Store persists company users.
type Store interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter models.Filter) ([]*models.User, error)
	CountByDomain(ctx context.Context, domain string) (int, error)
}

// DomainVerifier reports whether a domain has proven ownership.
type DomainVerifier interface {
	IsVerified(ctx context.Context, domain string) (bool, error)
}

// SeatGate enforces the license seat limit before a user is added.
type SeatGate interface {
	EnsureSeatAvailable(ctx context.Context, domain string) error
}

// Enqueuer hands outbound mail to the notification queue.
type Enqueuer interface {
	Enqueue(msg notify.Message)
}

type Service struct {
	store    Store
	verifier DomainVerifier
	seats    SeatGate
	logger   *slog.Logger
	queue    Enqueuer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithNotifier enables invite emails for new users.
func WithNotifier(queue Enqueuer) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

func New(store Store, verifier DomainVerifier, seats SeatGate, opts ...Option) *Service {
	s := &Service{
		store:    store,
		verifier: verifier,
		seats:    seats,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create adds a user to the roster and enqueues an invite email. The
// domain must be verified and have a free seat.
func (s *Service) Create(ctx context.Context, domain string, req models.CreateRequest, now time.Time) (*models.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "domain is required")
	}

	verified, err := s.verifier.IsVerified(ctx, domain)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "checking domain verification")
	}
	if !verified {
		return nil, dErrors.Newf(dErrors.CodePrecondition,
			"domain %s has not completed verification", domain)
	}
	if err := s.seats.EnsureSeatAvailable(ctx, domain); err != nil {
		return nil, err
	}

	u := &models.User{
		ID:        uuid.New(),
		Domain:    domain,
		Name:      req.Name,
		Email:     req.Email,
		Role:      req.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "a user with email %s already exists", u.Email)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "storing company user")
	}

	s.sendInvite(u)
	s.logger.InfoContext(ctx, "company user created",
		slog.String("domain", u.Domain),
		slog.String("role", string(u.Role)))
	return u, nil
}

// Get returns one user, scoped to the caller's domain.
func (s *Service) Get(ctx context.Context, domain string, id uuid.UUID) (*models.User, error) {
	return s.loadUser(ctx, domain, id)
}

// List returns the roster entries matching the filter.
func (s *Service) List(ctx context.Context, filter models.Filter) ([]*models.User, error) {
	users, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "listing company users")
	}
	return users, nil
}

// Remove deletes a user, freeing their seat.
func (s *Service) Remove(ctx context.Context, domain string, id uuid.UUID) error {
	u, err := s.loadUser(ctx, domain, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, u.ID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "deleting company user")
	}
	return nil
}

// MarkEmailVerified records that the user confirmed their address.
func (s *Service) MarkEmailVerified(ctx context.Context, domain string, id uuid.UUID, now time.Time) (*models.User, error) {
	u, err := s.loadUser(ctx, domain, id)
	if err != nil {
		return nil, err
	}
	if u.EmailVerified {
		return u, nil
	}
	u.EmailVerified = true
	u.UpdatedAt = now
	if err := s.store.Update(ctx, u); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "updating company user")
	}
	return u, nil
}

// CountByDomain reports the roster size. The license registry calls this
// when computing seat usage.
func (s *Service) CountByDomain(ctx context.Context, domain string) (int, error) {
	n, err := s.store.CountByDomain(ctx, domain)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "counting company users")
	}
	return n, nil
}

func (s *Service) loadUser(ctx context.Context, domain string, id uuid.UUID) (*models.User, error) {
	u, err := s.store.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "user %s not found", id)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "loading company user")
	}
	if domain != "" && !strings.EqualFold(u.Domain, domain) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "user %s not found", id)
	}
	return u, nil
}

func (s *Service) sendInvite(u *models.User) {
	if s.queue == nil {
		return
	}
	s.queue.Enqueue(notify.Message{
		To:      []string{u.Email},
		Subject: fmt.Sprintf("You have been invited to wellbeing check-ins at %s", u.Domain),
		Body: fmt.Sprintf("Hi %s,\n\nYour workplace %s has set you up for weekly wellbeing check-ins.\n"+
			"You will receive a short anonymous questionnaire each week.\n", u.Name, u.Domain),
	})
}
