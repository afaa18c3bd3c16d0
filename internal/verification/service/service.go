// Package service implements the domain ownership verification flow: issue a
// TXT challenge, check DNS for it, and keep proofs invalidated when their
// essentials change.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"clearshift/internal/verification/metrics"
	"clearshift/internal/verification/models"
	"clearshift/internal/verification/resolver"
	dErrors "clearshift/pkg/domain-errors"
	"clearshift/pkg/platform/sentinel"
	"clearshift/pkg/requestcontext"
)

// Store persists verifications, one record per domain.
type Store interface {
	Create(ctx context.Context, v *models.Verification) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Verification, error)
	FindByDomain(ctx context.Context, domain string) (*models.Verification, error)
	Update(ctx context.Context, v *models.Verification) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f models.ListFilter) ([]*models.Verification, error)
}

// Config carries the challenge parameters.
type Config struct {
	HostPrefix        string
	DefaultTTLSeconds int
	Window            time.Duration
}

// CheckResult is the outcome of a single DNS check. Found carries the
// normalized TXT values observed at the challenge host so callers can show
// what DNS actually served when the token did not match.
type CheckResult struct {
	Verification *models.Verification `json:"verification"`
	Verified     bool                 `json:"verified"`
	Found        []string             `json:"found_records,omitempty"`
	Reason       string               `json:"reason,omitempty"`
}

// Service orchestrates verification lifecycle and DNS checks.
type Service struct {
	store    Store
	resolver resolver.TXTResolver
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(store Store, txt resolver.TXTResolver, cfg Config, opts ...Option) *Service {
	if cfg.HostPrefix == "" {
		cfg.HostPrefix = "_gp-verify"
	}
	if cfg.DefaultTTLSeconds <= 0 {
		cfg.DefaultTTLSeconds = 3600
	}
	if cfg.Window <= 0 {
		cfg.Window = 7 * 24 * time.Hour
	}
	s := &Service{
		store:    store,
		resolver: txt,
		cfg:      cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initiate issues a challenge for a domain. Re-initiating an existing domain
// keeps the record identity but resets the proof with a fresh token, so a
// tenant who lost the old token can always start over.
func (s *Service) Initiate(ctx context.Context, domain string, ttlSeconds int) (*models.Verification, error) {
	now := requestcontext.Now(ctx)

	domain = models.NormalizeDomain(domain)
	if !models.ValidDomain(domain) {
		return nil, dErrors.New(dErrors.CodeValidation, "enter a valid domain like example.com")
	}
	if ttlSeconds <= 0 {
		ttlSeconds = s.cfg.DefaultTTLSeconds
	}

	existing, err := s.store.FindByDomain(ctx, domain)
	switch {
	case err == nil:
		existing.TTLSeconds = ttlSeconds
		existing.ResetProof(now, s.cfg.Window)
		if err := s.store.Update(ctx, existing); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reissue challenge")
		}
		s.incrementInitiated()
		s.logger.InfoContext(ctx, "verification challenge reissued", "domain", domain)
		return existing, nil
	case errors.Is(err, sentinel.ErrNotFound):
		// fall through to create
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification")
	}

	v := &models.Verification{
		ID:         uuid.New(),
		Domain:     domain,
		Host:       s.cfg.HostPrefix,
		TTLSeconds: ttlSeconds,
		Token:      models.NewToken(now),
		Status:     models.StatusPending,
		ExpiresAt:  now.Add(s.cfg.Window),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Create(ctx, v); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a verification already exists for this domain")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create verification")
	}
	s.incrementInitiated()
	s.logger.InfoContext(ctx, "verification challenge issued", "domain", domain)
	return v, nil
}

// Preview renders the DNS record a tenant would have to publish without
// persisting anything. If the domain already has a challenge, the stored
// instruction is returned so the preview matches what Check expects.
func (s *Service) Preview(ctx context.Context, domain string, ttlSeconds int) (*models.Instruction, error) {
	now := requestcontext.Now(ctx)

	domain = models.NormalizeDomain(domain)
	if !models.ValidDomain(domain) {
		return nil, dErrors.New(dErrors.CodeValidation, "enter a valid domain like example.com")
	}
	if ttlSeconds <= 0 {
		ttlSeconds = s.cfg.DefaultTTLSeconds
	}

	existing, err := s.store.FindByDomain(ctx, domain)
	if err == nil {
		inst := existing.Instruction()
		return &inst, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification")
	}

	draft := models.Verification{
		Domain:     domain,
		Host:       s.cfg.HostPrefix,
		TTLSeconds: ttlSeconds,
		Token:      models.NewToken(now),
	}
	inst := draft.Instruction()
	return &inst, nil
}

// Check performs one DNS lookup for the challenge token. A verified proof is
// returned as-is without touching DNS. A lookup miss or failure records the
// attempt but never demotes an already earned proof.
func (s *Service) Check(ctx context.Context, id uuid.UUID) (*CheckResult, error) {
	start := time.Now()
	now := requestcontext.Now(ctx)

	v, err := s.loadByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if v.Status == models.StatusVerified {
		return &CheckResult{Verification: v, Verified: true}, nil
	}
	if v.Expired(now) {
		return nil, dErrors.New(dErrors.CodeExpired, "verification window has closed; re-initiate to get a fresh token")
	}

	values, lookupErr := s.resolver.LookupTXT(ctx, v.FQDN())
	v.RecordCheck(now)

	if lookupErr != nil {
		if err := s.store.Update(ctx, v); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record check")
		}
		s.observeCheck("lookup_error", start)
		s.logger.WarnContext(ctx, "verification lookup failed",
			"domain", v.Domain, "fqdn", v.FQDN(), "error", lookupErr)
		return &CheckResult{
			Verification: v,
			Verified:     false,
			Reason:       "dns lookup failed: " + lookupErr.Error(),
		}, nil
	}

	normalized := resolver.Normalize(values)
	if resolver.Matches(v.Token, normalized) {
		v.MarkVerified(now)
		if err := s.store.Update(ctx, v); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist verified status")
		}
		s.observeCheck("verified", start)
		s.logger.InfoContext(ctx, "domain verified", "domain", v.Domain, "attempts", v.Attempts)
		return &CheckResult{Verification: v, Verified: true, Found: normalized}, nil
	}

	if err := s.store.Update(ctx, v); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record check")
	}
	s.observeCheck("miss", start)
	return &CheckResult{
		Verification: v,
		Verified:     false,
		Found:        normalized,
		Reason:       "challenge token not found in TXT records",
	}, nil
}

// Rotate replaces the challenge token, dropping any earned proof.
func (s *Service) Rotate(ctx context.Context, id uuid.UUID) (*models.Verification, error) {
	now := requestcontext.Now(ctx)

	v, err := s.loadByID(ctx, id)
	if err != nil {
		return nil, err
	}
	v.ResetProof(now, s.cfg.Window)
	if err := s.store.Update(ctx, v); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to rotate token")
	}
	s.logger.InfoContext(ctx, "verification token rotated", "domain", v.Domain)
	return v, nil
}

// Update patches the mutable fields. Changing the domain, host or ttl resets
// the proof; the response reports whether re-verification is required.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch models.Patch) (*models.Verification, bool, error) {
	now := requestcontext.Now(ctx)

	v, err := s.loadByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	changed, err := v.ApplyChange(patch, now, s.cfg.Window)
	if err != nil {
		return nil, false, err
	}
	if err := s.store.Update(ctx, v); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, false, dErrors.New(dErrors.CodeConflict, "a verification already exists for this domain")
		}
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update verification")
	}
	if changed {
		s.logger.InfoContext(ctx, "verification reset by update", "domain", v.Domain)
	}
	return v, changed, nil
}

// Get returns one verification by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Verification, error) {
	return s.loadByID(ctx, id)
}

// GetByDomain returns the verification for a domain.
func (s *Service) GetByDomain(ctx context.Context, domain string) (*models.Verification, error) {
	v, err := s.store.FindByDomain(ctx, models.NormalizeDomain(domain))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "verification not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification")
	}
	return v, nil
}

// List returns verifications matching the filter in creation order.
func (s *Service) List(ctx context.Context, f models.ListFilter) ([]*models.Verification, error) {
	all, err := s.store.List(ctx, f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verifications")
	}
	return all, nil
}

// Delete removes a verification. Licensed tenants keep working until their
// license is revoked; deleting the proof only blocks new tenant-guarded
// traffic for the domain.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "verification not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete verification")
	}
	return nil
}

// IsVerified reports whether a domain currently holds a verified proof.
// Unknown domains are simply not verified, never an error.
func (s *Service) IsVerified(ctx context.Context, domain string) (bool, error) {
	v, err := s.store.FindByDomain(ctx, models.NormalizeDomain(domain))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return v.Status == models.StatusVerified, nil
}

func (s *Service) loadByID(ctx context.Context, id uuid.UUID) (*models.Verification, error) {
	v, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "verification not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification")
	}
	return v, nil
}

func (s *Service) incrementInitiated() {
	if s.metrics != nil {
		s.metrics.IncrementInitiated()
	}
}

func (s *Service) observeCheck(result string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveCheck(result, start)
	}
}
