package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"clearshift/internal/support/models"
	"clearshift/pkg/platform/sentinel"
)

// Postgres persists support requests and content.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed support store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const requestColumns = `id, domain, employee_id, support_type, message,
	contact_name, contact_email, contact_phone, checkin_id, status,
	status_updated_at, resolved_at, routed_to, submitted_at`

func (s *Postgres) CreateRequest(ctx context.Context, r *models.Request) error {
	query := `
		INSERT INTO support_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Domain, r.EmployeeID, r.SupportType, r.Message,
		r.Contact.Name, r.Contact.Email, r.Contact.Phone, r.CheckinID, r.Status,
		r.StatusUpdatedAt, r.ResolvedAt, r.RoutedTo, r.SubmittedAt)
	if err != nil {
		return fmt.Errorf("create support request: %w", err)
	}
	return nil
}

func (s *Postgres) FindRequestByID(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM support_requests WHERE id = $1`, id)
	return scanRequest(row, "find support request")
}

func (s *Postgres) UpdateRequest(ctx context.Context, r *models.Request) error {
	query := `
		UPDATE support_requests
		SET support_type = $2, message = $3, status = $4,
			status_updated_at = $5, resolved_at = $6
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		r.ID, r.SupportType, r.Message, r.Status, r.StatusUpdatedAt, r.ResolvedAt)
	if err != nil {
		return fmt.Errorf("update support request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update support request: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListRequests(ctx context.Context, filter models.Filter) ([]*models.Request, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Domain != "" {
		args = append(args, strings.ToLower(filter.Domain))
		conds = append(conds, fmt.Sprintf("LOWER(domain) = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.SupportType != "" {
		args = append(args, filter.SupportType)
		conds = append(conds, fmt.Sprintf("support_type = $%d", len(args)))
	}
	query := `SELECT ` + requestColumns + ` FROM support_requests`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY submitted_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list support requests: %w", err)
	}
	defer rows.Close()

	var out []*models.Request
	for rows.Next() {
		r, err := scanRequest(rows, "list support requests")
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list support requests: %w", err)
	}
	return out, nil
}

// UpsertContent replaces a domain's support content, bumping the stored
// version on conflict.
func (s *Postgres) UpsertContent(ctx context.Context, c *models.Content) error {
	tips, eap, hr, crisis, err := encodeContentLists(c)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO support_content (domain, tips, eap, hr, crisis, version, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, 1, $6, $7)
		ON CONFLICT (domain) DO UPDATE
		SET tips = EXCLUDED.tips, eap = EXCLUDED.eap, hr = EXCLUDED.hr,
			crisis = EXCLUDED.crisis, version = support_content.version + 1,
			is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at
		RETURNING version
	`
	err = s.db.QueryRowContext(ctx, query,
		strings.ToLower(c.Domain), tips, eap, hr, crisis, c.IsActive, c.UpdatedAt).
		Scan(&c.Version)
	if err != nil {
		return fmt.Errorf("upsert support content: %w", err)
	}
	return nil
}

func (s *Postgres) FindContentByDomain(ctx context.Context, domain string) (*models.Content, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT domain, tips, eap, hr, crisis, version, is_active, updated_at
		 FROM support_content WHERE domain = $1`, strings.ToLower(domain))

	var (
		c                     models.Content
		tips, eap, hr, crisis []byte
	)
	err := row.Scan(&c.Domain, &tips, &eap, &hr, &crisis, &c.Version, &c.IsActive, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find support content: %w", err)
	}
	for _, col := range []struct {
		raw []byte
		dst *[]string
	}{{tips, &c.Tips}, {eap, &c.EAP}, {hr, &c.HR}, {crisis, &c.Crisis}} {
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			return nil, fmt.Errorf("decode support content: %w", err)
		}
	}
	return &c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner, op string) (*models.Request, error) {
	var (
		r          models.Request
		checkinID  sql.NullString
		resolvedAt sql.NullTime
	)
	err := row.Scan(&r.ID, &r.Domain, &r.EmployeeID, &r.SupportType, &r.Message,
		&r.Contact.Name, &r.Contact.Email, &r.Contact.Phone, &checkinID, &r.Status,
		&r.StatusUpdatedAt, &resolvedAt, &r.RoutedTo, &r.SubmittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if checkinID.Valid {
		id, err := uuid.Parse(checkinID.String)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		r.CheckinID = &id
	}
	if resolvedAt.Valid {
		r.ResolvedAt = &resolvedAt.Time
	}
	return &r, nil
}

func encodeContentLists(c *models.Content) (tips, eap, hr, crisis []byte, err error) {
	encode := func(v []string) ([]byte, error) {
		if v == nil {
			v = []string{}
		}
		return json.Marshal(v)
	}
	if tips, err = encode(c.Tips); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode support content: %w", err)
	}
	if eap, err = encode(c.EAP); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode support content: %w", err)
	}
	if hr, err = encode(c.HR); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode support content: %w", err)
	}
	if crisis, err = encode(c.Crisis); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode support content: %w", err)
	}
	return tips, eap, hr, crisis, nil
}
