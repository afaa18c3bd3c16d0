// Package postgres opens the shared database handle and applies the schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open connects to PostgreSQL and verifies the connection. Returns nil if
// url is empty (stores fall back to in-memory implementations).
func Open(url string) (*sql.DB, error) {
	if url == "" {
		return nil, nil
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables this service owns. Statements are
// idempotent; single-entity tables with the uniqueness constraints the
// services rely on as idempotency and identity gates.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS domain_verifications (
			id UUID PRIMARY KEY,
			domain TEXT NOT NULL UNIQUE,
			host TEXT NOT NULL,
			ttl_seconds INTEGER NOT NULL,
			token TEXT NOT NULL,
			status TEXT NOT NULL,
			verified_at TIMESTAMPTZ,
			expires_at TIMESTAMPTZ NOT NULL,
			last_checked_at TIMESTAMPTZ,
			attempts INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS admin_users (
			id UUID PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			domain TEXT NOT NULL,
			license_key TEXT NOT NULL UNIQUE,
			license_status TEXT NOT NULL,
			issued_at TIMESTAMPTZ NOT NULL,
			seat_limit INTEGER,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS admin_users_domain_idx ON admin_users (domain)`,
		`CREATE TABLE IF NOT EXISTS checkin_questions (
			id UUID PRIMARY KEY,
			domain TEXT NOT NULL,
			question TEXT NOT NULL,
			options JSONB NOT NULL DEFAULT '[]',
			is_positive BOOLEAN NOT NULL DEFAULT TRUE,
			is_support BOOLEAN NOT NULL DEFAULT FALSE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (domain, question)
		)`,
		`CREATE TABLE IF NOT EXISTS checkin_responses (
			id UUID PRIMARY KEY,
			domain TEXT NOT NULL,
			employee_id TEXT NOT NULL,
			submitted_at TIMESTAMPTZ NOT NULL,
			answers JSONB NOT NULL,
			support_requested BOOLEAN NOT NULL DEFAULT FALSE,
			acked BOOLEAN NOT NULL DEFAULT FALSE,
			acked_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS checkin_responses_domain_time_idx
			ON checkin_responses (domain, submitted_at)`,
		`CREATE TABLE IF NOT EXISTS weekly_report_dispatches (
			id UUID PRIMARY KEY,
			domain TEXT NOT NULL,
			week_ending TEXT NOT NULL,
			recipients JSONB NOT NULL,
			sent_at TIMESTAMPTZ NOT NULL,
			UNIQUE (domain, week_ending)
		)`,
		`CREATE TABLE IF NOT EXISTS support_requests (
			id UUID PRIMARY KEY,
			domain TEXT NOT NULL,
			employee_id TEXT NOT NULL,
			support_type TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			contact_name TEXT NOT NULL DEFAULT '',
			contact_email TEXT NOT NULL DEFAULT '',
			contact_phone TEXT NOT NULL DEFAULT '',
			checkin_id UUID,
			status TEXT NOT NULL,
			status_updated_at TIMESTAMPTZ NOT NULL,
			resolved_at TIMESTAMPTZ,
			routed_to INTEGER NOT NULL DEFAULT 0,
			submitted_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS support_requests_domain_idx
			ON support_requests (domain, submitted_at)`,
		`CREATE TABLE IF NOT EXISTS support_content (
			domain TEXT PRIMARY KEY,
			tips JSONB NOT NULL DEFAULT '[]',
			eap JSONB NOT NULL DEFAULT '[]',
			hr JSONB NOT NULL DEFAULT '[]',
			crisis JSONB NOT NULL DEFAULT '[]',
			version INTEGER NOT NULL DEFAULT 1,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS company_users (
			id UUID PRIMARY KEY,
			domain TEXT NOT NULL,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			role TEXT NOT NULL,
			email_verified BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS company_users_domain_idx ON company_users (domain)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
