// Package service runs the weekly report dispatch. A run fans out over the
// domains with active licenses, builds each domain's previous-week summary,
// and emails it to that domain's active license holders. The dispatch
// receipt is written before the email is enqueued, so under concurrent or
// repeated runs a week is delivered at most once per domain.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"clearshift/internal/dispatch/metrics"
	"clearshift/internal/dispatch/models"
	"clearshift/internal/notify"
	"clearshift/internal/report"
	"clearshift/pkg/platform/sentinel"

	dErrors "clearshift/pkg/domain-errors"

	"github.com/google/uuid"
)

// DomainSource lists the domains eligible for a weekly report.
type DomainSource interface {
	ActiveDomains(ctx context.Context) ([]string, error)
}

// RecipientSource resolves the report recipients for a domain.
type RecipientSource interface {
	ActiveRecipients(ctx context.Context, domain string) ([]string, error)
}

// SummaryBuilder produces the weekly aggregation for one domain.
type SummaryBuilder interface {
	BuildSummary(ctx context.Context, domain string, window report.Window, now time.Time) (*report.Summary, error)
}

// ReceiptStore persists dispatch receipts. Create must fail with
// sentinel.ErrConflict when a receipt for the same (domain, week ending)
// already exists.
type ReceiptStore interface {
	Create(ctx context.Context, r *models.Receipt) error
	FindByDomainWeek(ctx context.Context, domain, weekEnding string) (*models.Receipt, error)
	ListByDomain(ctx context.Context, domain string) ([]*models.Receipt, error)
}

// Enqueuer hands outbound mail to the notification queue.
type Enqueuer interface {
	Enqueue(msg notify.Message)
}

// Config controls a dispatch run.
type Config struct {
	// MaxParallel bounds how many domains are processed concurrently.
	MaxParallel int
}

// Outcome describes what happened for one domain during a run.
type Outcome struct {
	Domain     string `json:"domain"`
	WeekEnding string `json:"week_ending"`
	Sent       bool   `json:"sent"`
	SkipReason string `json:"skip_reason,omitempty"`
	Err        error  `json:"-"`
}

// RunResult summarizes a full dispatch run.
type RunResult struct {
	Outcomes []Outcome `json:"outcomes"`
	Sent     int       `json:"sent"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
}

type Service struct {
	receipts   ReceiptStore
	domains    DomainSource
	recipients RecipientSource
	summaries  SummaryBuilder
	queue      Enqueuer
	cfg        Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
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

func New(receipts ReceiptStore, domains DomainSource, recipients RecipientSource, summaries SummaryBuilder, queue Enqueuer, cfg Config, opts ...Option) *Service {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}
	s := &Service{
		receipts:   receipts,
		domains:    domains,
		recipients: recipients,
		summaries:  summaries,
		queue:      queue,
		cfg:        cfg,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce dispatches the previous week's report to every eligible domain.
// Per-domain failures are recorded in the result but never abort the run;
// the only hard error is failing to list the domains at all.
func (s *Service) RunOnce(ctx context.Context, now time.Time) (*RunResult, error) {
	start := time.Now()
	domains, err := s.domains.ActiveDomains(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "listing dispatch domains")
	}

	window := report.PreviousWeekWindow(now)
	weekEnding := window.End.Format("2006-01-02")

	outcomes := make([]Outcome, len(domains))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxParallel)
	for i, domain := range domains {
		g.Go(func() error {
			outcomes[i] = s.dispatchDomain(gctx, domain, window, weekEnding, now)
			return nil
		})
	}
	// Goroutines only record outcomes, so Wait cannot fail.
	_ = g.Wait()

	result := &RunResult{Outcomes: outcomes}
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			result.Failed++
		case o.Sent:
			result.Sent++
		default:
			result.Skipped++
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveRun(start)
	}
	s.logger.InfoContext(ctx, "dispatch run finished",
		slog.String("week_ending", weekEnding),
		slog.Int("domains", len(domains)),
		slog.Int("sent", result.Sent),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed))
	return result, nil
}

func (s *Service) dispatchDomain(ctx context.Context, domain string, window report.Window, weekEnding string, now time.Time) Outcome {
	out := Outcome{Domain: domain, WeekEnding: weekEnding}

	existing, err := s.receipts.FindByDomainWeek(ctx, domain, weekEnding)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		out.Err = err
		s.observe(ctx, out)
		return out
	}
	if existing != nil {
		out.SkipReason = models.SkipAlreadySent
		s.observe(ctx, out)
		return out
	}

	recipients, err := s.recipients.ActiveRecipients(ctx, domain)
	if err != nil {
		out.Err = err
		s.observe(ctx, out)
		return out
	}
	if len(recipients) == 0 {
		// No receipt: the domain stays eligible if a license is issued
		// before the window closes.
		out.SkipReason = models.SkipNoRecipients
		s.observe(ctx, out)
		return out
	}

	summary, err := s.summaries.BuildSummary(ctx, domain, window, now)
	if err != nil {
		out.Err = err
		s.observe(ctx, out)
		return out
	}

	receipt := &models.Receipt{
		ID:         uuid.New(),
		Domain:     domain,
		WeekEnding: weekEnding,
		Recipients: recipients,
		SentAt:     now,
	}
	if err := s.receipts.Create(ctx, receipt); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost the race to a concurrent run.
			out.SkipReason = models.SkipAlreadySent
		} else {
			out.Err = err
		}
		s.observe(ctx, out)
		return out
	}

	s.queue.Enqueue(notify.Message{
		To:      recipients,
		Subject: fmt.Sprintf("Weekly wellbeing report for %s (week ending %s)", domain, weekEnding),
		Body:    renderSummaryEmail(summary),
	})
	out.Sent = true
	s.observe(ctx, out)
	return out
}

func (s *Service) observe(ctx context.Context, out Outcome) {
	result := "sent"
	switch {
	case out.Err != nil:
		result = "error"
		s.logger.ErrorContext(ctx, "domain dispatch failed",
			slog.String("domain", out.Domain),
			slog.String("week_ending", out.WeekEnding),
			slog.String("error", out.Err.Error()))
	case out.SkipReason != "":
		result = out.SkipReason
		s.logger.InfoContext(ctx, "domain dispatch skipped",
			slog.String("domain", out.Domain),
			slog.String("week_ending", out.WeekEnding),
			slog.String("reason", out.SkipReason))
	default:
		s.logger.InfoContext(ctx, "weekly report dispatched",
			slog.String("domain", out.Domain),
			slog.String("week_ending", out.WeekEnding))
	}
	if s.metrics != nil {
		s.metrics.ObserveDomain(result)
	}
}

// History returns a domain's dispatch receipts, most recent week first.
func (s *Service) History(ctx context.Context, domain string) ([]*models.Receipt, error) {
	if domain == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "domain is required")
	}
	receipts, err := s.receipts.ListByDomain(ctx, domain)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "listing dispatch receipts")
	}
	return receipts, nil
}

func renderSummaryEmail(s *report.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Wellbeing check-in summary for %s\n", s.Domain)
	fmt.Fprintf(&b, "Week ending %s\n\n", s.WeekEnding)
	fmt.Fprintf(&b, "Responses: %d\n", s.Total)
	fmt.Fprintf(&b, "  Red:   %d\n", s.Red)
	fmt.Fprintf(&b, "  Amber: %d\n", s.Amber)
	fmt.Fprintf(&b, "  Green: %d\n", s.Green)
	if len(s.Themes) > 0 {
		b.WriteString("\nTop themes:\n")
		for _, t := range s.Themes {
			fmt.Fprintf(&b, "  %s (%d)\n", t.Topic, t.Count)
		}
	}
	return b.String()
}
