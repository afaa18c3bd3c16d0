// Package resolver performs TXT lookups against pinned public resolvers.
// Local and ISP caches routinely serve stale answers during verification, so
// lookups deliberately bypass the system resolver.
package resolver

import (
	"context"
	"net"
	"strings"
	"time"
)

// TXTResolver is the DNS collaborator used by the verification service.
// Implementations return one string per TXT record with chunks already
// concatenated, or an error (NXDOMAIN, timeout, SERVFAIL).
type TXTResolver interface {
	LookupTXT(ctx context.Context, fqdn string) ([]string, error)
}

// Pinned resolves through a fixed list of resolver addresses, trying each in
// order until one answers. Every lookup is bounded by timeout so a dead
// resolver cannot stall the caller.
type Pinned struct {
	servers []string
	timeout time.Duration
}

func NewPinned(servers []string, timeout time.Duration) *Pinned {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Pinned{servers: servers, timeout: timeout}
}

func (p *Pinned) LookupTXT(ctx context.Context, fqdn string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var lastErr error
	for _, server := range p.servers {
		r := &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
				d := net.Dialer{Timeout: p.timeout}
				return d.DialContext(ctx, network, server)
			},
		}
		values, err := r.LookupTXT(ctx, fqdn)
		if err == nil {
			return values, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// Normalize cleans raw TXT values for matching: trims whitespace and strips
// one layer of wrapping quotes some providers add around record values.
func Normalize(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		v = strings.TrimPrefix(v, `"`)
		v = strings.TrimSuffix(v, `"`)
		out = append(out, strings.TrimSpace(v))
	}
	return out
}

// Matches reports whether the expected token appears in any normalized
// value, either exactly or as a substring (some providers prepend or append
// their own text).
func Matches(token string, normalized []string) bool {
	for _, v := range normalized {
		if v == token || strings.Contains(v, token) {
			return true
		}
	}
	return false
}
