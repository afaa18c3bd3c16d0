package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"clearshift/internal/verification/models"
	"clearshift/pkg/platform/sentinel"
)

// Postgres persists verifications in the domain_verifications table.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed verification store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const verificationColumns = `id, domain, host, ttl_seconds, token, status,
	verified_at, expires_at, last_checked_at, attempts, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, v *models.Verification) error {
	query := `
		INSERT INTO domain_verifications (` + verificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		v.ID, v.Domain, v.Host, v.TTLSeconds, v.Token, string(v.Status),
		v.VerifiedAt, v.ExpiresAt, v.LastCheckedAt, v.Attempts, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create verification: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.Verification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+verificationColumns+` FROM domain_verifications WHERE id = $1`, id)
	return scanVerification(row, "find verification by id")
}

func (s *Postgres) FindByDomain(ctx context.Context, domain string) (*models.Verification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+verificationColumns+` FROM domain_verifications WHERE domain = $1`, domain)
	return scanVerification(row, "find verification by domain")
}

func (s *Postgres) Update(ctx context.Context, v *models.Verification) error {
	query := `
		UPDATE domain_verifications SET
			domain = $2, host = $3, ttl_seconds = $4, token = $5, status = $6,
			verified_at = $7, expires_at = $8, last_checked_at = $9,
			attempts = $10, updated_at = $11
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		v.ID, v.Domain, v.Host, v.TTLSeconds, v.Token, string(v.Status),
		v.VerifiedAt, v.ExpiresAt, v.LastCheckedAt, v.Attempts, v.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update verification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update verification: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM domain_verifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete verification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete verification: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, f models.ListFilter) ([]*models.Verification, error) {
	query := `SELECT ` + verificationColumns + ` FROM domain_verifications WHERE 1=1`
	var args []any
	if f.Domain != "" {
		args = append(args, f.Domain)
		query += fmt.Sprintf(` AND domain = $%d`, len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		query += fmt.Sprintf(` AND (domain || ' ' || host) ILIKE $%d`, len(args))
	}
	query += ` ORDER BY created_at`
	if f.PerPage > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		args = append(args, f.PerPage)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
		args = append(args, (page-1)*f.PerPage)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Verification
	for rows.Next() {
		v, err := scanVerification(rows, "list verifications")
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVerification(row rowScanner, op string) (*models.Verification, error) {
	var (
		v      models.Verification
		status string
	)
	err := row.Scan(&v.ID, &v.Domain, &v.Host, &v.TTLSeconds, &v.Token, &status,
		&v.VerifiedAt, &v.ExpiresAt, &v.LastCheckedAt, &v.Attempts, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	v.Status = models.Status(status)
	return &v, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
