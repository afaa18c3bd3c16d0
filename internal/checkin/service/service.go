// Package service implements the check-in flow: a per-tenant question bank
// and employee submissions with answer snapshots and support escalation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"clearshift/internal/checkin/models"
	"clearshift/internal/notify"
	dErrors "clearshift/pkg/domain-errors"
	"clearshift/pkg/platform/sentinel"
)

// QuestionStore persists the question bank.
type QuestionStore interface {
	Create(ctx context.Context, q *models.Question) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Question, error)
	Update(ctx context.Context, q *models.Question) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDomain(ctx context.Context, domain string, activeOnly bool) ([]*models.Question, error)
}

// ResponseStore persists submissions.
type ResponseStore interface {
	Create(ctx context.Context, r *models.Response) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Response, error)
	Update(ctx context.Context, r *models.Response) error
	ListByDomain(ctx context.Context, domain string, f models.ResponseFilter) ([]*models.Response, error)
	ListByDomainWindow(ctx context.Context, domain string, start, end time.Time) ([]models.Response, error)
}

// RecipientSource resolves who gets escalation emails for a domain.
type RecipientSource interface {
	ActiveRecipients(ctx context.Context, domain string) ([]string, error)
}

// Enqueuer hands notification messages to the async delivery worker.
type Enqueuer interface {
	Enqueue(msg notify.Message)
}

// QuestionInput carries the editable fields of a question.
type QuestionInput struct {
	Question   string   `json:"question"`
	Options    []string `json:"options"`
	IsPositive bool     `json:"is_positive"`
	IsSupport  bool     `json:"is_support"`
	IsActive   bool     `json:"is_active"`
}

// AnswerInput is one submitted answer before validation.
type AnswerInput struct {
	QuestionID uuid.UUID `json:"question_id"`
	Option     string    `json:"option"`
	Note       string    `json:"note,omitempty"`
}

// SubmitRequest is one employee check-in. SupportRequested, when set,
// overrides whatever the answers imply.
type SubmitRequest struct {
	EmployeeID       string        `json:"employee_id"`
	Answers          []AnswerInput `json:"answers"`
	SupportRequested *bool         `json:"support_requested,omitempty"`
}

// Service orchestrates questions and submissions for tenant domains.
type Service struct {
	questions  QuestionStore
	responses  ResponseStore
	recipients RecipientSource
	logger     *slog.Logger
	enqueuer   Enqueuer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithNotifier enables the admin notification email queued after every
// stored submission.
func WithNotifier(e Enqueuer) Option {
	return func(s *Service) {
		s.enqueuer = e
	}
}

// New constructs a Service. recipients may be nil when escalation email is
// not wired.
func New(questions QuestionStore, responses ResponseStore, recipients RecipientSource, opts ...Option) *Service {
	s := &Service{
		questions:  questions,
		responses:  responses,
		recipients: recipients,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateQuestion adds a question to the domain's bank.
func (s *Service) CreateQuestion(ctx context.Context, domain string, input QuestionInput, now time.Time) (*models.Question, error) {
	q := &models.Question{
		ID:         uuid.New(),
		Domain:     domain,
		Question:   strings.TrimSpace(input.Question),
		Options:    trimOptions(input.Options),
		IsPositive: input.IsPositive,
		IsSupport:  input.IsSupport,
		IsActive:   input.IsActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := s.questions.Create(ctx, q); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "this question already exists for the domain")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create question")
	}
	return q, nil
}

// UpdateQuestion edits a question. Responses keep their snapshots, so edits
// never rewrite submitted history.
func (s *Service) UpdateQuestion(ctx context.Context, domain string, id uuid.UUID, input QuestionInput, now time.Time) (*models.Question, error) {
	q, err := s.loadQuestion(ctx, domain, id)
	if err != nil {
		return nil, err
	}
	q.Question = strings.TrimSpace(input.Question)
	q.Options = trimOptions(input.Options)
	q.IsPositive = input.IsPositive
	q.IsSupport = input.IsSupport
	q.IsActive = input.IsActive
	q.UpdatedAt = now
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := s.questions.Update(ctx, q); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "this question already exists for the domain")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update question")
	}
	return q, nil
}

// DeleteQuestion removes a question from the bank.
func (s *Service) DeleteQuestion(ctx context.Context, domain string, id uuid.UUID) error {
	if _, err := s.loadQuestion(ctx, domain, id); err != nil {
		return err
	}
	if err := s.questions.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "question not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete question")
	}
	return nil
}

// GetQuestion returns one question, scoped to the domain.
func (s *Service) GetQuestion(ctx context.Context, domain string, id uuid.UUID) (*models.Question, error) {
	return s.loadQuestion(ctx, domain, id)
}

// ListQuestions returns the domain's bank, oldest first.
func (s *Service) ListQuestions(ctx context.Context, domain string, activeOnly bool) ([]*models.Question, error) {
	all, err := s.questions.ListByDomain(ctx, domain, activeOnly)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list questions")
	}
	return all, nil
}

// Submit records one employee check-in. Every answer is validated against the
// active bank and snapshotted. A support-flagged answer that actually asks
// for help marks the response, unless the request carries an explicit
// SupportRequested value, which wins. Admins are notified of every stored
// submission.
func (s *Service) Submit(ctx context.Context, domain string, req SubmitRequest, now time.Time) (*models.Response, error) {
	if strings.TrimSpace(req.EmployeeID) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "employee_id is required")
	}
	if len(req.Answers) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one answer is required")
	}

	response := &models.Response{
		ID:          uuid.New(),
		Domain:      domain,
		EmployeeID:  strings.TrimSpace(req.EmployeeID),
		SubmittedAt: now,
		Answers:     make([]models.Answer, 0, len(req.Answers)),
	}

	for _, in := range req.Answers {
		q, err := s.loadQuestion(ctx, domain, in.QuestionID)
		if err != nil {
			return nil, err
		}
		if !q.IsActive {
			return nil, dErrors.Newf(dErrors.CodeValidation, "question %s is no longer active", q.ID)
		}
		option := strings.TrimSpace(in.Option)
		if option == "" {
			return nil, dErrors.Newf(dErrors.CodeValidation, "an option is required for question %s", q.ID)
		}
		if !q.AllowsOption(option) {
			return nil, dErrors.Newf(dErrors.CodeValidation, "option %q is not offered by question %s", option, q.ID)
		}

		answer := models.Answer{
			QuestionID: q.ID,
			Question:   q.Question,
			Option:     option,
			Note:       strings.TrimSpace(in.Note),
			IsPositive: q.IsPositive,
			IsSupport:  q.IsSupport,
		}
		if q.IsSupport && models.OptionMeansSupport(option) {
			response.SupportRequested = true
		}
		response.Answers = append(response.Answers, answer)
	}
	if req.SupportRequested != nil {
		response.SupportRequested = *req.SupportRequested
	}

	if err := s.responses.Create(ctx, response); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save response")
	}

	s.notifySubmission(ctx, response)
	return response, nil
}

// ListResponses returns the domain's submissions matching the filter,
// newest first.
func (s *Service) ListResponses(ctx context.Context, domain string, f models.ResponseFilter) ([]*models.Response, error) {
	all, err := s.responses.ListByDomain(ctx, domain, f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list responses")
	}
	return all, nil
}

// Ack marks a support-requesting response as handled. Acking twice keeps the
// first timestamp.
func (s *Service) Ack(ctx context.Context, domain string, id uuid.UUID, now time.Time) (*models.Response, error) {
	r, err := s.responses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "response not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load response")
	}
	if r.Domain != domain {
		return nil, dErrors.New(dErrors.CodeNotFound, "response not found")
	}
	if r.Acked {
		return r, nil
	}
	r.Acked = true
	t := now
	r.AckedAt = &t
	if err := s.responses.Update(ctx, r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to ack response")
	}
	return r, nil
}

func (s *Service) loadQuestion(ctx context.Context, domain string, id uuid.UUID) (*models.Question, error) {
	q, err := s.questions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "question not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load question")
	}
	if q.Domain != domain {
		return nil, dErrors.New(dErrors.CodeNotFound, "question not found")
	}
	return q, nil
}

// notifySubmission emails the domain's active license holders about a stored
// submission. Delivery is best effort; the submission has already been
// stored.
func (s *Service) notifySubmission(ctx context.Context, r *models.Response) {
	if s.enqueuer == nil || s.recipients == nil {
		return
	}
	to, err := s.recipients.ActiveRecipients(ctx, r.Domain)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to resolve notification recipients",
			"domain", r.Domain, "error", err)
		return
	}
	if len(to) == 0 {
		s.logger.WarnContext(ctx, "submission stored but no recipients", "domain", r.Domain)
		return
	}
	subject := fmt.Sprintf("New check-in submitted (%s)", r.Domain)
	body := fmt.Sprintf("An employee submitted a check-in on %s.\n\nResponse ID: %s",
		r.SubmittedAt.Format("2 January 2006"), r.ID)
	if r.SupportRequested {
		subject = fmt.Sprintf("Support requested in a check-in (%s)", r.Domain)
		body += "\n\nThe employee asked for support. Please follow up and acknowledge the response."
	}
	s.enqueuer.Enqueue(notify.Message{To: to, Subject: subject, Body: body})
	s.logger.InfoContext(ctx, "submission notification queued",
		"domain", r.Domain, "response_id", r.ID, "support", r.SupportRequested, "recipients", len(to))
}

func trimOptions(options []string) []string {
	out := make([]string, 0, len(options))
	for _, o := range options {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
