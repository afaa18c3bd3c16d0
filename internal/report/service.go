package report

import (
	"context"
	"log/slog"
	"time"

	checkin "clearshift/internal/checkin/models"
	dErrors "clearshift/pkg/domain-errors"
)

// ResponseReader is the slice of the check-in store the aggregator needs.
type ResponseReader interface {
	ListByDomainWindow(ctx context.Context, domain string, start, end time.Time) ([]checkin.Response, error)
}

// SummaryCache fronts BuildSummary with a short-TTL cache. Implementations
// must be transparent: a hit returns exactly what a rebuild would.
type SummaryCache interface {
	Get(ctx context.Context, key string) (*Summary, bool)
	Set(ctx context.Context, key string, summary *Summary)
}

// Window bounds a summary. Zero values fall back to the most recent ISO week
// (Monday through Sunday) containing the evaluation time.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Summary is the weekly aggregation result. It backs the JSON endpoint, the
// dispatch email, and the PDF rendering, so it must be deterministic for a
// given (domain, window, stored data).
type Summary struct {
	Domain     string  `json:"domain"`
	WeekEnding string  `json:"week_ending"`
	Window     Window  `json:"window"`
	Total      int     `json:"total"`
	Red        int     `json:"red"`
	Amber      int     `json:"amber"`
	Green      int     `json:"green"`
	Themes     []Theme `json:"themes"`
}

// topThemeCount is how many themes a summary carries.
const topThemeCount = 4

// Service builds weekly summaries. Read-only by contract: it never mutates
// stored responses.
type Service struct {
	responses ResponseReader
	cache     SummaryCache
	logger    *slog.Logger
}

type Option func(*Service)

func WithCache(cache SummaryCache) Option {
	return func(s *Service) { s.cache = cache }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(responses ResponseReader, opts ...Option) *Service {
	s := &Service{responses: responses, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildSummary aggregates a domain's check-in responses over the window.
// now anchors the default window so schedulers and tests control time
// explicitly.
func (s *Service) BuildSummary(ctx context.Context, domain string, window Window, now time.Time) (*Summary, error) {
	if domain == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "domain is required")
	}

	window = resolveWindow(window, now)
	weekEnding := window.End.UTC().Format("2006-01-02")

	cacheKey := summaryCacheKey(domain, window)
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, cacheKey); ok {
			return cached, nil
		}
	}

	rows, err := s.responses.ListByDomainWindow(ctx, domain, window.Start, window.End)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load responses")
	}

	summary := &Summary{
		Domain:     domain,
		WeekEnding: weekEnding,
		Window:     window,
		Themes:     []Theme{},
	}
	themeCounts := make(map[string]int)

	for _, r := range rows {
		summary.Total++
		switch ResponseSeverity(r.Answers) {
		case SeverityRed:
			summary.Red++
		case SeverityGreen:
			summary.Green++
		default:
			summary.Amber++
		}
		CountThemes(themeCounts, r.Answers)
	}
	summary.Themes = TopThemes(themeCounts, topThemeCount)

	if s.cache != nil {
		s.cache.Set(ctx, cacheKey, summary)
	}
	return summary, nil
}

func summaryCacheKey(domain string, w Window) string {
	return domain + "|" + w.Start.UTC().Format(time.RFC3339) + "|" + w.End.UTC().Format(time.RFC3339)
}

// resolveWindow fills in missing bounds. Default: the ISO week containing
// now (Monday start, Sunday end), inclusive day boundaries in UTC. An
// explicit bound overrides its side only.
func resolveWindow(w Window, now time.Time) Window {
	if w.Start.IsZero() || w.End.IsZero() {
		end := endOfISOWeek(now.UTC())
		start := startOfDay(end.AddDate(0, 0, -6))
		if w.End.IsZero() {
			w.End = end
		}
		if w.Start.IsZero() {
			w.Start = start
		}
	}
	return w
}

// endOfISOWeek returns the last instant of the ISO week (Sunday) containing t.
func endOfISOWeek(t time.Time) time.Time {
	daysUntilSunday := (7 - int(t.Weekday())) % 7
	sunday := t.AddDate(0, 0, daysUntilSunday)
	return endOfDay(sunday)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// PreviousWeekWindow is the dispatch window: yesterday end-of-day back six
// days, in UTC.
func PreviousWeekWindow(now time.Time) Window {
	end := endOfDay(now.UTC().AddDate(0, 0, -1))
	start := startOfDay(end.AddDate(0, 0, -6))
	return Window{Start: start, End: end}
}
