package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/keen-violet-ibis/rfphub/internal/models"
)

type sqliteQuestionRepo struct {
	db *sql.DB
}

const questionColumns = `id, rfp_id, asker_id, body, answer, status, published_at, created_at, updated_at`

func scanQuestion(row interface{ Scan(...any) error }) (*models.Question, error) {
	q := &models.Question{}
	var publishedAt sql.NullTime
	err := row.Scan(
		&q.ID, &q.RFPID, &q.AskerID, &q.Body, &q.Answer, &q.Status,
		&publishedAt, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if publishedAt.Valid {
		q.PublishedAt = &publishedAt.Time
	}
	return q, nil
}

func (r *sqliteQuestionRepo) Create(ctx context.Context, q *models.Question) error {
	query := `
		INSERT INTO questions (id, rfp_id, asker_id, body, answer, status, published_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		q.ID, q.RFPID, q.AskerID, q.Body, q.Answer, q.Status, q.PublishedAt,
		q.CreatedAt, q.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func (r *sqliteQuestionRepo) GetByID(ctx context.Context, id string) (*models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE id = ?`
	q, err := scanQuestion(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	return q, nil
}

func (r *sqliteQuestionRepo) ListByRFP(ctx context.Context, rfpID string, publishedOnly bool) ([]*models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE rfp_id = ?`
	args := []any{rfpID}
	if publishedOnly {
		query += ` AND status = ?`
		args = append(args, models.QuestionPublished)
	}
	query += ` ORDER BY created_at ASC`
	return r.queryQuestions(ctx, query, args...)
}

func (r *sqliteQuestionRepo) ListForUser(ctx context.Context, userID string) ([]*models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE asker_id = ? ORDER BY created_at DESC`
	return r.queryQuestions(ctx, query, userID)
}

func (r *sqliteQuestionRepo) queryQuestions(ctx context.Context, query string, args ...any) ([]*models.Question, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []*models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Publish races concurrent answer submissions to one winner the same way
// RFP status transitions do.
func (r *sqliteQuestionRepo) Publish(ctx context.Context, id, answer string, now time.Time) (bool, error) {
	query := `
		UPDATE questions SET answer = ?, status = ?, published_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	res, err := r.db.ExecContext(ctx, query,
		answer, models.QuestionPublished, now, now, id, models.QuestionPending,
	)
	if err != nil {
		return false, fmt.Errorf("publish question: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("publish question: %w", err)
	}
	return n > 0, nil
}
