package question

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"clearshift/internal/checkin/models"
	"clearshift/pkg/platform/sentinel"
)

// Postgres persists questions in the checkin_questions table. Options are a
// JSONB array.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed question store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const questionColumns = `id, domain, question, options, is_positive, is_support,
	is_active, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, q *models.Question) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("encode question options: %w", err)
	}
	query := `
		INSERT INTO checkin_questions (` + questionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.db.ExecContext(ctx, query,
		q.ID, q.Domain, q.Question, options, q.IsPositive, q.IsSupport,
		q.IsActive, q.CreatedAt, q.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create question: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+questionColumns+` FROM checkin_questions WHERE id = $1`, id)
	return scanQuestion(row, "find question by id")
}

func (s *Postgres) Update(ctx context.Context, q *models.Question) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("encode question options: %w", err)
	}
	query := `
		UPDATE checkin_questions SET
			domain = $2, question = $3, options = $4, is_positive = $5,
			is_support = $6, is_active = $7, updated_at = $8
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		q.ID, q.Domain, q.Question, options, q.IsPositive, q.IsSupport,
		q.IsActive, q.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update question: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM checkin_questions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListByDomain(ctx context.Context, domain string, activeOnly bool) ([]*models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM checkin_questions WHERE domain = $1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, domain)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var out []*models.Question
	for rows.Next() {
		q, err := scanQuestion(rows, "list questions")
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner, op string) (*models.Question, error) {
	var (
		q       models.Question
		options []byte
	)
	err := row.Scan(&q.ID, &q.Domain, &q.Question, &options, &q.IsPositive,
		&q.IsSupport, &q.IsActive, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(options, &q.Options); err != nil {
		return nil, fmt.Errorf("%s: decode options: %w", op, err)
	}
	return &q, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
