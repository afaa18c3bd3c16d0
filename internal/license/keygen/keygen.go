// Package keygen derives license keys. Keys are opaque credentials shown to
// an admin once per issue or rotation; they are stored as-is and looked up
// verbatim, so the only requirements are uniqueness and a stable shape.
package keygen

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Prefix tags every issued key.
const Prefix = "csw-lic-"

const (
	groupCount = 4
	groupSize  = 4
)

// New derives a key of the form csw-lic-XXXX-XXXX-XXXX-XXXX from the domain,
// the admin email and fresh randomness. The hash input includes random bytes
// so rotation always yields a new key for the same holder.
func New(domain, email string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate key nonce: %w", err)
	}

	sum := sha256.Sum256([]byte(domain + ":" + email + ":" + hex.EncodeToString(nonce)))
	encoded := base64.RawURLEncoding.EncodeToString(sum[:])

	// Keep only alphanumerics so the key stays copy-paste safe, then
	// uppercase for the grouped display form.
	var b strings.Builder
	for _, r := range encoded {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	alnum := strings.ToUpper(b.String())
	if len(alnum) < groupCount*groupSize {
		// 43 base64url chars minus at most a handful of '-'/'_' always
		// leaves 16; this guards a future alphabet change.
		return "", fmt.Errorf("key material too short: %d chars", len(alnum))
	}

	groups := make([]string, 0, groupCount)
	for i := 0; i < groupCount; i++ {
		groups = append(groups, alnum[i*groupSize:(i+1)*groupSize])
	}
	return Prefix + strings.Join(groups, "-"), nil
}

// Valid reports whether s has the issued key shape.
func Valid(s string) bool {
	if !strings.HasPrefix(s, Prefix) {
		return false
	}
	body := strings.TrimPrefix(s, Prefix)
	groups := strings.Split(body, "-")
	if len(groups) != groupCount {
		return false
	}
	for _, g := range groups {
		if len(g) != groupSize {
			return false
		}
		for _, r := range g {
			if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
				return false
			}
		}
	}
	return true
}
