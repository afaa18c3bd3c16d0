// Package email holds small address helpers shared by licensing, support
// routing, and company user invites.
package email

import (
	"regexp"
	"strings"
	"unicode"
)

var addressRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Valid reports whether s looks like a deliverable address. Deliberately
// loose; the notifier is the final arbiter.
func Valid(s string) bool {
	return addressRe.MatchString(s)
}

var extractRe = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)

// Extract pulls every address out of free-form text values, lowercased and
// deduplicated, preserving first-seen order. Support content stores contacts
// as prose ("HR team: hr@acme.com"), so routing scans rather than parses.
func Extract(values []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, v := range values {
		for _, m := range extractRe.FindAllString(v, -1) {
			addr := strings.ToLower(m)
			if _, ok := seen[addr]; ok {
				continue
			}
			seen[addr] = struct{}{}
			out = append(out, addr)
		}
	}
	return out
}

// DeriveNameFromEmail splits the local part of an address into a plausible
// first/last name pair for invite emails when no name was supplied.
func DeriveNameFromEmail(email string) (string, string) {
	localPart := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		localPart = email[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	if len(parts) == 0 {
		return "User", "User"
	}

	first := capitalize(parts[0])
	last := "User"
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}

	return first, last
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
