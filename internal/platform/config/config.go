// Package config builds the explicit configuration passed to each component at
// construction. Components never read the process environment themselves, so
// tests construct Config values directly and stay deterministic.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the root configuration for the server binary.
type Config struct {
	Addr          string
	PostgresURL   string
	JWTSigningKey string
	OTLPEndpoint  string

	Redis        RedisConfig
	Verification VerificationConfig
	Dispatch     DispatchConfig
	Notify       NotifyConfig

	// SummaryCacheTTL bounds how long a cached weekly summary may serve
	// reads before it is recomputed from the store.
	SummaryCacheTTL time.Duration
}

// RedisConfig configures the optional summary cache. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// VerificationConfig drives the domain verification state machine.
type VerificationConfig struct {
	// HostPrefix is the TXT host label presented to tenants.
	HostPrefix string
	// DefaultTTLSeconds is the suggested DNS record TTL when the caller
	// does not pick one.
	DefaultTTLSeconds int
	// Window is how long an issued challenge stays checkable before the
	// tenant must re-initiate.
	Window time.Duration
	// Resolvers are the pinned public resolvers used for TXT lookups,
	// bypassing any local or ISP cache.
	Resolvers []string
	// LookupTimeout bounds a single TXT lookup so a stalled resolver
	// cannot stall the check endpoint.
	LookupTimeout time.Duration
}

// DispatchConfig drives the weekly report scheduler.
type DispatchConfig struct {
	Enabled  bool
	Interval time.Duration
	// The window is evaluated in UTC: dispatch only happens on WindowDay
	// between WindowStartHour (inclusive) and WindowEndHour (exclusive).
	WindowDay       time.Weekday
	WindowStartHour int
	WindowEndHour   int
	// MaxParallel bounds concurrent per-domain dispatches in one cycle.
	MaxParallel int
}

// NotifyConfig configures outbound email.
type NotifyConfig struct {
	SendGridAPIKey string
	FromAddress    string
	// QueueSize is the notification queue depth; enqueue drops (and logs)
	// when full rather than blocking a submission.
	QueueSize int
	// SupportFallbackEmail, if set, is always appended to support routing
	// recipients.
	SupportFallbackEmail string
}

// FromEnv builds a Config from environment variables so main stays lean.
// Every default is spelled out here rather than inside components.
func FromEnv() Config {
	return Config{
		Addr:          getenv("CSW_ADDR", ":8080"),
		PostgresURL:   os.Getenv("DATABASE_URL"),
		JWTSigningKey: getenv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		OTLPEndpoint:  os.Getenv("OTLP_ENDPOINT"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getint("REDIS_POOL_SIZE", 10),
			MinIdleConns: getint("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getdur("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getdur("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getdur("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Verification: VerificationConfig{
			HostPrefix:        getenv("VERIFY_HOST_PREFIX", "_gp-verify"),
			DefaultTTLSeconds: getint("VERIFY_DEFAULT_TTL", 3600),
			Window:            getdur("VERIFICATION_WINDOW", 7*24*time.Hour),
			Resolvers:         []string{"8.8.8.8:53", "1.1.1.1:53"},
			LookupTimeout:     getdur("VERIFY_LOOKUP_TIMEOUT", 5*time.Second),
		},
		Dispatch: DispatchConfig{
			Enabled:         getenv("ENABLE_WEEKLY_REPORT_JOB", "true") == "true",
			Interval:        getdur("WEEKLY_REPORT_DISPATCH_INTERVAL", 30*time.Minute),
			WindowDay:       time.Monday,
			WindowStartHour: getint("WEEKLY_REPORT_WINDOW_START_HOUR", 8),
			WindowEndHour:   getint("WEEKLY_REPORT_WINDOW_END_HOUR", 12),
			MaxParallel:     getint("WEEKLY_REPORT_MAX_PARALLEL", 4),
		},
		Notify: NotifyConfig{
			SendGridAPIKey:       os.Getenv("SENDGRID_API_KEY"),
			FromAddress:          getenv("MAIL_FROM", "no-reply@clearshift.app"),
			QueueSize:            getint("NOTIFY_QUEUE_SIZE", 64),
			SupportFallbackEmail: os.Getenv("SUPPORT_FALLBACK_EMAIL"),
		},
		SummaryCacheTTL: getdur("SUMMARY_CACHE_TTL", 5*time.Minute),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getdur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
