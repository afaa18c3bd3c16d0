package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"clearshift/internal/dispatch/models"
	"clearshift/pkg/platform/sentinel"
)

// Postgres persists receipts in the weekly_report_dispatches table. The
// UNIQUE (domain, week_ending) constraint is the idempotency gate.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed receipt store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const receiptColumns = `id, domain, week_ending, recipients, sent_at`

func (s *Postgres) Create(ctx context.Context, r *models.Receipt) error {
	recipients, err := json.Marshal(r.Recipients)
	if err != nil {
		return fmt.Errorf("encode recipients: %w", err)
	}
	query := `
		INSERT INTO weekly_report_dispatches (` + receiptColumns + `)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = s.db.ExecContext(ctx, query, r.ID, r.Domain, r.WeekEnding, recipients, r.SentAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create dispatch receipt: %w", err)
	}
	return nil
}

func (s *Postgres) FindByDomainWeek(ctx context.Context, domain, weekEnding string) (*models.Receipt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+receiptColumns+` FROM weekly_report_dispatches
		 WHERE domain = $1 AND week_ending = $2`, domain, weekEnding)
	return scanReceipt(row, "find dispatch receipt")
}

func (s *Postgres) ListByDomain(ctx context.Context, domain string) ([]*models.Receipt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+receiptColumns+` FROM weekly_report_dispatches
		 WHERE domain = $1 ORDER BY week_ending DESC`, domain)
	if err != nil {
		return nil, fmt.Errorf("list dispatch receipts: %w", err)
	}
	defer rows.Close()

	var out []*models.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows, "list dispatch receipts")
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list dispatch receipts: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner, op string) (*models.Receipt, error) {
	var (
		r          models.Receipt
		recipients []byte
	)
	err := row.Scan(&r.ID, &r.Domain, &r.WeekEnding, &recipients, &r.SentAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(recipients, &r.Recipients); err != nil {
		return nil, fmt.Errorf("%s: decode recipients: %w", op, err)
	}
	return &r, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
