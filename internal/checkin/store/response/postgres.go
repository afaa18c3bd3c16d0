package response

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"clearshift/internal/checkin/models"
	"clearshift/pkg/platform/sentinel"
)

// Postgres persists responses in the checkin_responses table. Answer
// snapshots are a JSONB document; the aggregator reads them back whole.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed response store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const responseColumns = `id, domain, employee_id, submitted_at, answers,
	support_requested, acked, acked_at`

func (s *Postgres) Create(ctx context.Context, r *models.Response) error {
	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	query := `
		INSERT INTO checkin_responses (` + responseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.db.ExecContext(ctx, query,
		r.ID, r.Domain, r.EmployeeID, r.SubmittedAt, answers,
		r.SupportRequested, r.Acked, r.AckedAt)
	if err != nil {
		return fmt.Errorf("create response: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.Response, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+responseColumns+` FROM checkin_responses WHERE id = $1`, id)
	return scanResponse(row, "find response by id")
}

func (s *Postgres) Update(ctx context.Context, r *models.Response) error {
	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	query := `
		UPDATE checkin_responses SET
			domain = $2, employee_id = $3, submitted_at = $4, answers = $5,
			support_requested = $6, acked = $7, acked_at = $8
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		r.ID, r.Domain, r.EmployeeID, r.SubmittedAt, answers,
		r.SupportRequested, r.Acked, r.AckedAt)
	if err != nil {
		return fmt.Errorf("update response: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update response: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListByDomain(ctx context.Context, domain string, f models.ResponseFilter) ([]*models.Response, error) {
	query := `SELECT ` + responseColumns + ` FROM checkin_responses WHERE domain = $1`
	args := []any{domain}
	if f.EmployeeID != "" {
		args = append(args, f.EmployeeID)
		query += fmt.Sprintf(` AND employee_id = $%d`, len(args))
	}
	if !f.Start.IsZero() {
		args = append(args, f.Start)
		query += fmt.Sprintf(` AND submitted_at >= $%d`, len(args))
	}
	if !f.End.IsZero() {
		args = append(args, f.End)
		query += fmt.Sprintf(` AND submitted_at <= $%d`, len(args))
	}
	query += ` ORDER BY submitted_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var out []*models.Response
	for rows.Next() {
		r, err := scanResponse(rows, "list responses")
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	return out, nil
}

func (s *Postgres) ListByDomainWindow(ctx context.Context, domain string, start, end time.Time) ([]models.Response, error) {
	query := `SELECT ` + responseColumns + ` FROM checkin_responses
		WHERE domain = $1 AND submitted_at BETWEEN $2 AND $3
		ORDER BY submitted_at`

	rows, err := s.db.QueryContext(ctx, query, domain, start, end)
	if err != nil {
		return nil, fmt.Errorf("list responses in window: %w", err)
	}
	defer rows.Close()

	var out []models.Response
	for rows.Next() {
		r, err := scanResponse(rows, "list responses in window")
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list responses in window: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResponse(row rowScanner, op string) (*models.Response, error) {
	var (
		r       models.Response
		answers []byte
	)
	err := row.Scan(&r.ID, &r.Domain, &r.EmployeeID, &r.SubmittedAt, &answers,
		&r.SupportRequested, &r.Acked, &r.AckedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(answers, &r.Answers); err != nil {
		return nil, fmt.Errorf("%s: decode answers: %w", op, err)
	}
	return &r, nil
}
