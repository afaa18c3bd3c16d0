package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"clearshift/internal/license/models"
	"clearshift/pkg/platform/sentinel"
)

// Postgres persists licenses in the admin_users table.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed license store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const licenseColumns = `id, first_name, last_name, email, phone, domain,
	license_key, license_status, issued_at, seat_limit, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, l *models.License) error {
	query := `
		INSERT INTO admin_users (` + licenseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		l.ID, l.FirstName, l.LastName, l.Email, l.Phone, l.Domain,
		l.Key, string(l.Status), l.IssuedAt, l.SeatLimit, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create license: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.License, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+licenseColumns+` FROM admin_users WHERE id = $1`, id)
	return scanLicense(row, "find license by id")
}

func (s *Postgres) FindByKey(ctx context.Context, key string) (*models.License, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+licenseColumns+` FROM admin_users WHERE license_key = $1`, key)
	return scanLicense(row, "find license by key")
}

func (s *Postgres) Update(ctx context.Context, l *models.License) error {
	query := `
		UPDATE admin_users SET
			first_name = $2, last_name = $3, email = $4, phone = $5,
			domain = $6, license_key = $7, license_status = $8,
			issued_at = $9, seat_limit = $10, updated_at = $11
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		l.ID, l.FirstName, l.LastName, l.Email, l.Phone,
		l.Domain, l.Key, string(l.Status), l.IssuedAt, l.SeatLimit, l.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update license: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update license: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListByDomain(ctx context.Context, domain string) ([]*models.License, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+licenseColumns+` FROM admin_users WHERE domain = $1 ORDER BY issued_at`, domain)
	if err != nil {
		return nil, fmt.Errorf("list licenses by domain: %w", err)
	}
	return collectLicenses(rows, "list licenses by domain")
}

func (s *Postgres) List(ctx context.Context, f models.ListFilter) ([]*models.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM admin_users WHERE 1=1`
	var args []any
	if f.Domain != "" {
		args = append(args, f.Domain)
		query += fmt.Sprintf(` AND domain = $%d`, len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(` AND license_status = $%d`, len(args))
	}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		query += fmt.Sprintf(
			` AND (first_name || ' ' || last_name || ' ' || email || ' ' || domain) ILIKE $%d`,
			len(args))
	}
	query += ` ORDER BY issued_at`
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
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	return collectLicenses(rows, "list licenses")
}

func (s *Postgres) ActiveDomains(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT domain FROM admin_users WHERE license_status = $1 ORDER BY domain`,
		string(models.LicenseActive))
	if err != nil {
		return nil, fmt.Errorf("list active domains: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("list active domains: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active domains: %w", err)
	}
	return out, nil
}

func collectLicenses(rows *sql.Rows, op string) ([]*models.License, error) {
	defer rows.Close()

	var out []*models.License
	for rows.Next() {
		l, err := scanLicense(rows, op)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLicense(row rowScanner, op string) (*models.License, error) {
	var (
		l      models.License
		status string
	)
	err := row.Scan(&l.ID, &l.FirstName, &l.LastName, &l.Email, &l.Phone, &l.Domain,
		&l.Key, &status, &l.IssuedAt, &l.SeatLimit, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	l.Status = models.LicenseStatus(status)
	return &l, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
