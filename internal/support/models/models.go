// Package models defines support requests and the per-domain support tool
// content that drives their routing.
package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "clearshift/pkg/domain-errors"
)

// SupportType classifies what kind of help an employee is asking for.
type SupportType string

const (
	TypeHR     SupportType = "hr"
	TypeEAP    SupportType = "eap"
	TypeCrisis SupportType = "crisis"
	TypeOther  SupportType = "other"
)

// Valid reports whether t is a known support type.
func (t SupportType) Valid() bool {
	switch t {
	case TypeHR, TypeEAP, TypeCrisis, TypeOther:
		return true
	}
	return false
}

// Status tracks a request through triage.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// Contact is how the employee wants to be reached. All fields optional.
type Contact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Request is one support request from an employee.
type Request struct {
	ID              uuid.UUID   `json:"id"`
	Domain          string      `json:"domain"`
	EmployeeID      string      `json:"employee_id"`
	SupportType     SupportType `json:"support_type"`
	Message         string      `json:"message,omitempty"`
	Contact         Contact     `json:"contact"`
	CheckinID       *uuid.UUID  `json:"checkin_id,omitempty"`
	Status          Status      `json:"status"`
	StatusUpdatedAt time.Time   `json:"status_updated_at"`
	ResolvedAt      *time.Time  `json:"resolved_at,omitempty"`
	RoutedTo        int         `json:"routed_to"`
	SubmittedAt     time.Time   `json:"submitted_at"`
}

// SubmitRequest is the payload for submitting a support request.
type SubmitRequest struct {
	EmployeeID  string      `json:"employee_id"`
	SupportType SupportType `json:"support_type"`
	Message     string      `json:"message,omitempty"`
	Contact     Contact     `json:"contact"`
	CheckinID   *uuid.UUID  `json:"checkin_id,omitempty"`
}

// Validate checks the payload. The zero support type defaults to other.
func (r *SubmitRequest) Validate() error {
	if r.EmployeeID == "" {
		return dErrors.New(dErrors.CodeValidation, "employee_id is required")
	}
	if r.SupportType == "" {
		r.SupportType = TypeOther
	}
	if !r.SupportType.Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown support type %q", r.SupportType)
	}
	return nil
}

// Filter narrows request listings.
type Filter struct {
	Domain      string
	Status      Status
	SupportType SupportType
}

// Content is a domain's support tool content. The free-text lists carry
// whatever the company publishes to employees; any email addresses inside
// them double as routing targets for incoming requests.
type Content struct {
	Domain    string    `json:"domain"`
	Tips      []string  `json:"tips"`
	EAP       []string  `json:"eap"`
	HR        []string  `json:"hr"`
	Crisis    []string  `json:"crisis"`
	Version   int       `json:"version"`
	IsActive  bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListFor returns the content list matching a support type, or nil when the
// type has no dedicated list.
func (c *Content) ListFor(t SupportType) []string {
	switch t {
	case TypeHR:
		return c.HR
	case TypeEAP:
		return c.EAP
	case TypeCrisis:
		return c.Crisis
	}
	return nil
}

// AllLists returns every content list in routing order.
func (c *Content) AllLists() [][]string {
	return [][]string{c.Crisis, c.HR, c.EAP, c.Tips}
}
