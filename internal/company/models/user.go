// Package models defines company users, the employee roster behind seat
// accounting.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "clearshift/pkg/domain-errors"
	"clearshift/pkg/email"
)

// Role is a user's function inside the company.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// User is one company roster entry. Email is unique across all domains.
type User struct {
	ID            uuid.UUID `json:"id"`
	Domain        string    `json:"domain"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          Role      `json:"role"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateRequest is the payload for adding a user to the roster.
type CreateRequest struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
	Role  Role   `json:"role,omitempty"`
}

// Validate normalizes and checks the payload. A missing name is derived
// from the email address; a missing role defaults to employee.
func (r *CreateRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if !email.Valid(r.Email) {
		return dErrors.Newf(dErrors.CodeValidation, "invalid email %q", r.Email)
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		first, last := email.DeriveNameFromEmail(r.Email)
		r.Name = first + " " + last
	}
	if r.Role == "" {
		r.Role = RoleEmployee
	}
	if !r.Role.Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown role %q", r.Role)
	}
	return nil
}

// Filter narrows roster listings. Q matches name or email, case-insensitive
// substring.
type Filter struct {
	Domain string
	Q      string
	Role   Role
}
