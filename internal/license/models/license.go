// Package models defines the license registry entities. A license binds an
// administrator contact to a verified domain; the key is the credential the
// tenant's integration presents.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "clearshift/pkg/domain-errors"
	"clearshift/pkg/email"
)

// LicenseStatus is the registry state of a license.
type LicenseStatus string

const (
	LicenseActive  LicenseStatus = "active"
	LicenseRevoked LicenseStatus = "revoked"
)

// ValidStatus reports whether s is a recognized license status.
func ValidStatus(s LicenseStatus) bool {
	switch s {
	case LicenseActive, LicenseRevoked:
		return true
	}
	return false
}

// License is one issued license: the admin holder, the domain it covers and
// the seat allowance for that domain's roster.
type License struct {
	ID        uuid.UUID     `json:"id"`
	FirstName string        `json:"first_name"`
	LastName  string        `json:"last_name"`
	Email     string        `json:"email"`
	Phone     string        `json:"phone,omitempty"`
	Domain    string        `json:"domain"`
	Key       string        `json:"license_key"`
	Status    LicenseStatus `json:"status"`
	IssuedAt  time.Time     `json:"issued_at"`
	// SeatLimit caps the company roster for this domain. Nil means
	// unlimited.
	SeatLimit *int      `json:"seat_limit,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the license currently authorizes the domain.
func (l *License) Active() bool {
	return l.Status == LicenseActive
}

// IssueRequest carries the fields needed to issue a license.
type IssueRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Domain    string `json:"domain"`
	SeatLimit *int   `json:"seat_limit,omitempty"`
}

// Validate normalizes and checks an issue request.
func (r *IssueRequest) Validate() error {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Domain = strings.ToLower(strings.TrimSpace(r.Domain))

	if r.FirstName == "" || r.LastName == "" {
		return dErrors.New(dErrors.CodeValidation, "first and last name are required")
	}
	if !email.Valid(r.Email) {
		return dErrors.New(dErrors.CodeValidation, "enter a valid email address")
	}
	if r.Domain == "" {
		return dErrors.New(dErrors.CodeValidation, "domain is required")
	}
	if r.SeatLimit != nil && *r.SeatLimit <= 0 {
		return dErrors.New(dErrors.CodeValidation, "seat limit must be a positive number")
	}
	return nil
}

// ListFilter narrows a license listing. Query matches holder name, email
// and domain case-insensitively. Page numbering starts at 1; a zero
// PerPage disables pagination.
type ListFilter struct {
	Query   string
	Domain  string
	Status  LicenseStatus
	Page    int
	PerPage int
}

// Matches reports whether a license satisfies the filter. Pagination is
// applied by the store, not here.
func (f ListFilter) Matches(l *License) bool {
	if f.Domain != "" && l.Domain != f.Domain {
		return false
	}
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.Query != "" {
		haystack := strings.ToLower(l.FirstName + " " + l.LastName + " " + l.Email + " " + l.Domain)
		if !strings.Contains(haystack, strings.ToLower(f.Query)) {
			return false
		}
	}
	return true
}

// Paginate returns the slice of licenses for the filter's page.
func (f ListFilter) Paginate(all []*License) []*License {
	if f.PerPage <= 0 {
		return all
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	start := (page - 1) * f.PerPage
	if start >= len(all) {
		return nil
	}
	end := start + f.PerPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

// Patch carries optional updates to a license. Nil fields are untouched.
type Patch struct {
	FirstName *string        `json:"first_name,omitempty"`
	LastName  *string        `json:"last_name,omitempty"`
	Email     *string        `json:"email,omitempty"`
	Phone     *string        `json:"phone,omitempty"`
	Status    *LicenseStatus `json:"status,omitempty"`
	SeatLimit *int           `json:"seat_limit,omitempty"`
}

// Apply mutates the license with the patch fields.
func (l *License) Apply(p Patch, now time.Time) error {
	if p.FirstName != nil {
		if strings.TrimSpace(*p.FirstName) == "" {
			return dErrors.New(dErrors.CodeValidation, "first name cannot be empty")
		}
		l.FirstName = strings.TrimSpace(*p.FirstName)
	}
	if p.LastName != nil {
		if strings.TrimSpace(*p.LastName) == "" {
			return dErrors.New(dErrors.CodeValidation, "last name cannot be empty")
		}
		l.LastName = strings.TrimSpace(*p.LastName)
	}
	if p.Email != nil {
		addr := strings.ToLower(strings.TrimSpace(*p.Email))
		if !email.Valid(addr) {
			return dErrors.New(dErrors.CodeValidation, "enter a valid email address")
		}
		l.Email = addr
	}
	if p.Phone != nil {
		l.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.Status != nil {
		if !ValidStatus(*p.Status) {
			return dErrors.New(dErrors.CodeValidation, "unknown license status")
		}
		l.Status = *p.Status
	}
	if p.SeatLimit != nil {
		if *p.SeatLimit <= 0 {
			return dErrors.New(dErrors.CodeValidation, "seat limit must be a positive number")
		}
		l.SeatLimit = p.SeatLimit
	}
	l.UpdatedAt = now
	return nil
}

// SeatUsage reports roster occupancy against the seat limit for one domain.
type SeatUsage struct {
	Domain    string `json:"domain"`
	Used      int    `json:"used"`
	SeatLimit *int   `json:"seat_limit,omitempty"`
	Available *int   `json:"available,omitempty"`
}
