// Package models holds the domain ownership proof and its state transitions.
//
// Lifecycle: a proof is issued pending with a challenge token, flips to
// verified when the token is observed in DNS, and any change to the essentials
// (domain, host, ttl) invalidates it back to pending with a fresh token. A
// transient lookup miss never demotes a verified proof; only ApplyChange or
// ResetProof do.
package models

import (
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "clearshift/pkg/domain-errors"
)

// Status is the stored verification state. Expiry is derived from ExpiresAt
// at read time, never stored.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
)

// TokenPrefix tags challenge tokens so extra TXT records at the same host
// are recognizable.
const TokenPrefix = "gp-verify="

// domainRe matches label(.label)*.tld with a 2+ character TLD. The leading
// hyphen rule is checked separately (RE2 has no lookahead).
var domainRe = regexp.MustCompile(`^(?:[a-zA-Z0-9-]{1,63}\.)+[A-Za-z]{2,}$`)

// ValidDomain reports whether s is an acceptable bare domain like
// "example.com".
func ValidDomain(s string) bool {
	return s != "" && !strings.HasPrefix(s, "-") && domainRe.MatchString(s)
}

// NormalizeDomain lowercases and trims a user-supplied domain.
func NormalizeDomain(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NewToken builds a challenge token: prefix plus a base-36 random fragment
// and a base-36 timestamp fragment. This is a possession proof, not a
// secret, so uniqueness matters more than unpredictability.
func NewToken(now time.Time) string {
	return TokenPrefix +
		strconv.FormatUint(rand.Uint64(), 36) +
		strconv.FormatInt(now.UnixMilli(), 36)
}

// Verification is the ownership proof for one domain. At most one record
// exists per domain; the store enforces that.
type Verification struct {
	ID            uuid.UUID  `json:"id"`
	Domain        string     `json:"domain"`
	Host          string     `json:"host"`
	TTLSeconds    int        `json:"ttl"`
	Token         string     `json:"token"`
	Status        Status     `json:"status"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
	ExpiresAt     time.Time  `json:"expires_at"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	Attempts      int        `json:"attempts"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// FQDN is where the TXT record must live.
func (v *Verification) FQDN() string {
	return v.Host + "." + v.Domain
}

// Expired reports whether the challenge window has closed.
func (v *Verification) Expired(now time.Time) bool {
	return !v.ExpiresAt.IsZero() && v.ExpiresAt.Before(now)
}

// ResetProof invalidates the current proof: fresh token, status back to
// pending, verification evidence cleared, window restarted.
func (v *Verification) ResetProof(now time.Time, window time.Duration) {
	v.Token = NewToken(now)
	v.Status = StatusPending
	v.VerifiedAt = nil
	v.LastCheckedAt = nil
	v.Attempts = 0
	v.ExpiresAt = now.Add(window)
	v.UpdatedAt = now
}

// MarkVerified records a successful DNS match.
func (v *Verification) MarkVerified(now time.Time) {
	v.Status = StatusVerified
	t := now
	v.VerifiedAt = &t
	v.UpdatedAt = now
}

// RecordCheck bumps the attempt bookkeeping. Called on every check outcome,
// match or miss.
func (v *Verification) RecordCheck(now time.Time) {
	v.Attempts++
	t := now
	v.LastCheckedAt = &t
	v.UpdatedAt = now
}

// ListFilter narrows a verification listing. Query matches the domain and
// host case-insensitively. Page numbering starts at 1; a zero PerPage
// disables pagination.
type ListFilter struct {
	Query   string
	Domain  string
	Status  Status
	Page    int
	PerPage int
}

// Matches reports whether a verification satisfies the filter. Pagination
// is applied by the store, not here.
func (f ListFilter) Matches(v *Verification) bool {
	if f.Domain != "" && v.Domain != f.Domain {
		return false
	}
	if f.Status != "" && v.Status != f.Status {
		return false
	}
	if f.Query != "" {
		haystack := strings.ToLower(v.Domain + " " + v.Host)
		if !strings.Contains(haystack, strings.ToLower(f.Query)) {
			return false
		}
	}
	return true
}

// Paginate returns the slice of verifications for the filter's page.
func (f ListFilter) Paginate(all []*Verification) []*Verification {
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

// Patch carries the mutable essentials of a verification. Nil fields are
// left untouched.
type Patch struct {
	Domain     *string
	Host       *string
	TTLSeconds *int
}

// ApplyChange applies a patch and resets the proof when any essential
// actually changed. Centralizing the reset here keeps "what invalidates a
// proof" in one place. Returns whether re-verification is now required.
func (v *Verification) ApplyChange(p Patch, now time.Time, window time.Duration) (bool, error) {
	changed := false

	if p.Domain != nil {
		domain := NormalizeDomain(*p.Domain)
		if !ValidDomain(domain) {
			return false, dErrors.New(dErrors.CodeValidation, "enter a valid domain like example.com")
		}
		if domain != v.Domain {
			v.Domain = domain
			changed = true
		}
	}

	if p.Host != nil && *p.Host != "" && *p.Host != v.Host {
		v.Host = *p.Host
		changed = true
	}

	if p.TTLSeconds != nil {
		if *p.TTLSeconds <= 0 {
			return false, dErrors.New(dErrors.CodeValidation, "ttl must be a positive number")
		}
		if *p.TTLSeconds != v.TTLSeconds {
			v.TTLSeconds = *p.TTLSeconds
			changed = true
		}
	}

	if changed {
		v.ResetProof(now, window)
	}
	return changed, nil
}

// Instruction is the DNS record a tenant must publish.
type Instruction struct {
	RecordType string    `json:"record_type"`
	Host       string    `json:"host"`
	Value      string    `json:"value"`
	TTL        int       `json:"ttl"`
	FQDN       string    `json:"fqdn"`
	Domain     string    `json:"domain"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
}

// Instruction renders the record a tenant has to create for this proof.
func (v *Verification) Instruction() Instruction {
	return Instruction{
		RecordType: "TXT",
		Host:       v.Host,
		Value:      v.Token,
		TTL:        v.TTLSeconds,
		FQDN:       v.FQDN(),
		Domain:     v.Domain,
		ExpiresAt:  v.ExpiresAt,
	}
}
