// Package service implements the license registry: issuing keys for verified
// domains, rotation and revocation, and the seat accounting the roster
// endpoints rely on.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"clearshift/internal/license/keygen"
	"clearshift/internal/license/models"
	"clearshift/internal/notify"
	dErrors "clearshift/pkg/domain-errors"
	"clearshift/pkg/platform/sentinel"
	platformstrings "clearshift/pkg/platform/strings"
	"clearshift/pkg/requestcontext"
)

// Store persists licenses.
type Store interface {
	Create(ctx context.Context, l *models.License) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.License, error)
	FindByKey(ctx context.Context, key string) (*models.License, error)
	Update(ctx context.Context, l *models.License) error
	ListByDomain(ctx context.Context, domain string) ([]*models.License, error)
	List(ctx context.Context, f models.ListFilter) ([]*models.License, error)
	ActiveDomains(ctx context.Context) ([]string, error)
}

// DomainVerifier gates issuance on domain ownership.
type DomainVerifier interface {
	IsVerified(ctx context.Context, domain string) (bool, error)
}

// SeatCounter reports current roster occupancy for a domain.
type SeatCounter interface {
	CountByDomain(ctx context.Context, domain string) (int, error)
}

// Enqueuer hands notification messages to the async delivery worker.
type Enqueuer interface {
	Enqueue(msg notify.Message)
}

// Service orchestrates the license registry.
type Service struct {
	store    Store
	verifier DomainVerifier
	seats    SeatCounter
	logger   *slog.Logger
	enqueuer Enqueuer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithNotifier enables the license email sent to the admin on issue and
// rotation.
func WithNotifier(e Enqueuer) Option {
	return func(s *Service) {
		s.enqueuer = e
	}
}

// New constructs a Service. seats may be nil when roster enforcement is not
// wired; EnsureSeatAvailable then always admits.
func New(store Store, verifier DomainVerifier, seats SeatCounter, opts ...Option) *Service {
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

// Issue creates a license for a verified domain. An unverified domain is a
// precondition failure, not a validation error: the request is well formed,
// the domain just has not earned a proof yet.
func (s *Service) Issue(ctx context.Context, req models.IssueRequest) (*models.License, error) {
	now := requestcontext.Now(ctx)

	if err := req.Validate(); err != nil {
		return nil, err
	}

	verified, err := s.verifier.IsVerified(ctx, req.Domain)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve domain verification")
	}
	if !verified {
		return nil, dErrors.New(dErrors.CodePrecondition, "domain must be verified before a license can be issued")
	}

	key, err := keygen.New(req.Domain, req.Email)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate license key")
	}

	l := &models.License{
		ID:        uuid.New(),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Domain:    req.Domain,
		Key:       key,
		Status:    models.LicenseActive,
		IssuedAt:  now,
		SeatLimit: req.SeatLimit,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, l); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "license key collision, retry the request")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create license")
	}

	s.logger.InfoContext(ctx, "license issued", "domain", l.Domain, "license_id", l.ID)
	s.sendKeyEmail(l, "Your ClearShift license",
		"A license for %s has been issued to you.\n\nLicense key: %s\n\nKeep this key private; it authorizes check-in submissions for your domain.")
	return l, nil
}

// Rotate replaces the license key. The old key stops working immediately,
// the issue timestamp restarts, and the license returns to active.
func (s *Service) Rotate(ctx context.Context, id uuid.UUID) (*models.License, error) {
	now := requestcontext.Now(ctx)

	l, err := s.loadByID(ctx, id)
	if err != nil {
		return nil, err
	}
	key, err := keygen.New(l.Domain, l.Email)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate license key")
	}
	l.Key = key
	l.Status = models.LicenseActive
	l.IssuedAt = now
	l.UpdatedAt = now
	if err := s.store.Update(ctx, l); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to rotate license key")
	}

	s.logger.InfoContext(ctx, "license key rotated", "domain", l.Domain, "license_id", l.ID)
	s.sendKeyEmail(l, "Your ClearShift license key was rotated",
		"The license key for %s has been rotated. The previous key no longer works.\n\nNew license key: %s")
	return l, nil
}

// Revoke deactivates a license. Revocation is terminal; re-activation means
// issuing a new license.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID) (*models.License, error) {
	now := requestcontext.Now(ctx)

	l, err := s.loadByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.Status == models.LicenseRevoked {
		return l, nil
	}
	l.Status = models.LicenseRevoked
	l.UpdatedAt = now
	if err := s.store.Update(ctx, l); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke license")
	}
	s.logger.InfoContext(ctx, "license revoked", "domain", l.Domain, "license_id", l.ID)
	return l, nil
}

// Update patches holder details, status or seat limit.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch models.Patch) (*models.License, error) {
	now := requestcontext.Now(ctx)

	l, err := s.loadByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := l.Apply(patch, now); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, l); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update license")
	}
	return l, nil
}

// Get returns one license by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.License, error) {
	return s.loadByID(ctx, id)
}

// GetByKey resolves a license from its key.
func (s *Service) GetByKey(ctx context.Context, key string) (*models.License, error) {
	l, err := s.store.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "license not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load license")
	}
	return l, nil
}

// List returns licenses matching the filter, oldest first.
func (s *Service) List(ctx context.Context, f models.ListFilter) ([]*models.License, error) {
	all, err := s.store.List(ctx, f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list licenses")
	}
	return all, nil
}

// SeatUsage reports roster occupancy against the seat limit of the domain's
// most recently issued active license.
func (s *Service) SeatUsage(ctx context.Context, domain string) (*models.SeatUsage, error) {
	limit, err := s.seatLimit(ctx, domain)
	if err != nil {
		return nil, err
	}

	used := 0
	if s.seats != nil {
		used, err = s.seats.CountByDomain(ctx, domain)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count roster")
		}
	}

	usage := &models.SeatUsage{Domain: domain, Used: used, SeatLimit: limit}
	if limit != nil {
		available := *limit - used
		if available < 0 {
			available = 0
		}
		usage.Available = &available
	}
	return usage, nil
}

// EnsureSeatAvailable admits one more roster member or fails with a
// precondition error when the domain is at its seat limit.
func (s *Service) EnsureSeatAvailable(ctx context.Context, domain string) error {
	usage, err := s.SeatUsage(ctx, domain)
	if err != nil {
		return err
	}
	if usage.SeatLimit != nil && usage.Used >= *usage.SeatLimit {
		return dErrors.Newf(dErrors.CodePrecondition,
			"all %d seats for %s are taken", *usage.SeatLimit, domain)
	}
	return nil
}

// ActiveRecipients returns the deduplicated emails of a domain's active
// license holders. This is the weekly report audience and the default
// support routing list.
func (s *Service) ActiveRecipients(ctx context.Context, domain string) ([]string, error) {
	all, err := s.store.ListByDomain(ctx, domain)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list licenses")
	}
	var emails []string
	for _, l := range all {
		if l.Active() {
			emails = append(emails, l.Email)
		}
	}
	return platformstrings.DedupeAndTrimLower(emails), nil
}

// ActiveDomains returns the domains with at least one active license, the
// dispatch population for the weekly report run.
func (s *Service) ActiveDomains(ctx context.Context) ([]string, error) {
	domains, err := s.store.ActiveDomains(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list active domains")
	}
	return domains, nil
}

// HasActiveLicense reports whether a domain currently holds an active
// license. Unknown domains simply have none.
func (s *Service) HasActiveLicense(ctx context.Context, domain string) (bool, error) {
	all, err := s.store.ListByDomain(ctx, domain)
	if err != nil {
		return false, err
	}
	for _, l := range all {
		if l.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) loadByID(ctx context.Context, id uuid.UUID) (*models.License, error) {
	l, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "license not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load license")
	}
	return l, nil
}

// seatLimit resolves the seat limit of the domain's most recently issued
// active license. Nil means unlimited; no active license also means nil
// because the tenant guard already blocks unlicensed traffic.
func (s *Service) seatLimit(ctx context.Context, domain string) (*int, error) {
	all, err := s.store.ListByDomain(ctx, domain)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list licenses")
	}
	var newest *models.License
	for _, l := range all {
		if !l.Active() {
			continue
		}
		if newest == nil || l.IssuedAt.After(newest.IssuedAt) {
			newest = l
		}
	}
	if newest == nil {
		return nil, nil
	}
	return newest.SeatLimit, nil
}

func (s *Service) sendKeyEmail(l *models.License, subject, bodyFormat string) {
	if s.enqueuer == nil {
		return
	}
	s.enqueuer.Enqueue(notify.Message{
		To:      []string{l.Email},
		Subject: subject,
		Body:    fmt.Sprintf(bodyFormat, l.Domain, l.Key),
	})
}
