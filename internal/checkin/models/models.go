// Package models holds the check-in question bank and the submitted
// responses. Answers snapshot question fields at submission time so later
// edits to the bank never rewrite history.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "clearshift/pkg/domain-errors"
)

// Question is a configurable check-in prompt scoped to a tenant domain.
// An empty Options slice means the answer is free-form.
type Question struct {
	ID         uuid.UUID `json:"id"`
	Domain     string    `json:"domain"`
	Question   string    `json:"question"`
	Options    []string  `json:"options"`
	IsPositive bool      `json:"is_positive"`
	IsSupport  bool      `json:"is_support"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks construction invariants.
func (q *Question) Validate() error {
	if strings.TrimSpace(q.Domain) == "" {
		return dErrors.New(dErrors.CodeValidation, "domain is required")
	}
	if strings.TrimSpace(q.Question) == "" {
		return dErrors.New(dErrors.CodeValidation, "question text is required")
	}
	return nil
}

// AllowsOption reports whether a chosen option is acceptable for this
// question. Free-form questions accept anything.
func (q *Question) AllowsOption(option string) bool {
	if len(q.Options) == 0 {
		return true
	}
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}

// Answer is a snapshot of one answered question inside a response.
type Answer struct {
	QuestionID uuid.UUID `json:"question_id"`
	Question   string    `json:"question"`
	Option     string    `json:"option"`
	Note       string    `json:"note,omitempty"`
	IsPositive bool      `json:"is_positive"`
	IsSupport  bool      `json:"is_support"`
}

// Response is one employee check-in submission.
type Response struct {
	ID               uuid.UUID `json:"id"`
	Domain           string    `json:"domain"`
	EmployeeID       string    `json:"employee_id"`
	SubmittedAt      time.Time `json:"submitted_at"`
	Answers          []Answer  `json:"answers"`
	SupportRequested bool      `json:"support_requested"`
	Acked            bool      `json:"acked"`
	AckedAt          *time.Time `json:"acked_at,omitempty"`
}

// ResponseFilter narrows a response listing. Zero time bounds are
// unbounded and a zero Limit returns everything.
type ResponseFilter struct {
	EmployeeID string
	Start      time.Time
	End        time.Time
	Limit      int
}

// Matches reports whether a response satisfies the filter. Limit is not
// applied here.
func (f ResponseFilter) Matches(r *Response) bool {
	if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
		return false
	}
	if !f.Start.IsZero() && r.SubmittedAt.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && r.SubmittedAt.After(f.End) {
		return false
	}
	return true
}

// OptionMeansSupport decides whether a support-flagged answer actually asks
// for help. Substring heuristic preserved from the product behavior: declines
// ("no", "prefer not") never count, affirmatives and help-seeking words do.
func OptionMeansSupport(option string) bool {
	text := strings.ToLower(strings.TrimSpace(option))
	if text == "" {
		return false
	}
	if strings.Contains(text, "prefer not") {
		return false
	}
	if strings.Contains(text, "no") {
		return false
	}
	return strings.Contains(text, "yes") ||
		strings.Contains(text, "help") ||
		strings.Contains(text, "support") ||
		strings.Contains(text, "need") ||
		strings.Contains(text, "contact")
}
