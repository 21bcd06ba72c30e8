package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/keen-violet-ibis/rfphub/internal/models"
)

type sqliteRFPRepo struct {
	db *sql.DB
}

const rfpColumns = `id, title, description, client_id, visibility, status, closing_date, created_at, updated_at`

func scanRFP(row interface{ Scan(...any) error }) (*models.RFP, error) {
	rfp := &models.RFP{}
	err := row.Scan(
		&rfp.ID, &rfp.Title, &rfp.Description, &rfp.ClientID,
		&rfp.Visibility, &rfp.Status, &rfp.ClosingDate,
		&rfp.CreatedAt, &rfp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rfp, nil
}

func (r *sqliteRFPRepo) Create(ctx context.Context, rfp *models.RFP) error {
	query := `
		INSERT INTO rfps (id, title, description, client_id, visibility, status, closing_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		rfp.ID, rfp.Title, rfp.Description, rfp.ClientID,
		rfp.Visibility, rfp.Status, rfp.ClosingDate,
		rfp.CreatedAt, rfp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert rfp: %w", err)
	}
	return nil
}

func (r *sqliteRFPRepo) GetByID(ctx context.Context, id string) (*models.RFP, error) {
	query := `SELECT ` + rfpColumns + ` FROM rfps WHERE id = ?`
	rfp, err := scanRFP(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rfp by id: %w", err)
	}
	return rfp, nil
}

// Update writes the RFP's mutable fields. Status is deliberately not
// written here; all status changes go through TransitionStatus or
// CloseExpired so the lifecycle stays monotonic.
func (r *sqliteRFPRepo) Update(ctx context.Context, rfp *models.RFP) error {
	query := `
		UPDATE rfps
		SET title = ?, description = ?, visibility = ?, closing_date = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		rfp.Title, rfp.Description, rfp.Visibility, rfp.ClosingDate,
		rfp.UpdatedAt, rfp.ID,
	)
	if err != nil {
		return fmt.Errorf("update rfp: %w", err)
	}
	return nil
}

func (r *sqliteRFPRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM rfps WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rfp: %w", err)
	}
	return nil
}

func (r *sqliteRFPRepo) List(ctx context.Context, filter RFPFilter) ([]*models.RFP, error) {
	query := `SELECT ` + rfpColumns + ` FROM rfps WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Visibility != "" {
		query += ` AND visibility = ?`
		args = append(args, filter.Visibility)
	}
	if filter.ClientID != "" {
		query += ` AND client_id = ?`
		args = append(args, filter.ClientID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rfps: %w", err)
	}
	defer rows.Close()

	var rfps []*models.RFP
	for rows.Next() {
		rfp, err := scanRFP(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rfp: %w", err)
		}
		rfps = append(rfps, rfp)
	}
	return rfps, rows.Err()
}

// TransitionStatus is the single write path for status changes. The
// conditional WHERE makes concurrent transitions race to one winner
// instead of double-applying.
func (r *sqliteRFPRepo) TransitionStatus(ctx context.Context, id string, from, to models.RFPStatus) (bool, error) {
	query := `UPDATE rfps SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, query, to, time.Now(), id, from)
	if err != nil {
		return false, fmt.Errorf("transition rfp status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition rfp status: %w", err)
	}
	return n > 0, nil
}

// CloseExpired closes all active RFPs past their closing date in one
// atomic statement. Repeated calls with nothing eligible return an empty
// slice, which is what makes lazy read-path reconciliation safe.
func (r *sqliteRFPRepo) CloseExpired(ctx context.Context, now time.Time) ([]string, error) {
	query := `
		UPDATE rfps SET status = ?, updated_at = ?
		WHERE status = ? AND closing_date < ?
		RETURNING id
	`
	rows, err := r.db.QueryContext(ctx, query, models.StatusClosed, now, models.StatusActive, now)
	if err != nil {
		return nil, fmt.Errorf("close expired rfps: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan closed rfp id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *sqliteRFPRepo) ReplaceMilestones(ctx context.Context, rfpID string, ms []models.Milestone) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin milestones tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM milestones WHERE rfp_id = ?`, rfpID); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear milestones: %w", err)
	}
	for i, m := range ms {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO milestones (id, rfp_id, title, date, timezone, has_time, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, m.ID, rfpID, m.Title, m.Date, m.Timezone, m.HasTime, i)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert milestone: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit milestones: %w", err)
	}
	return nil
}

func (r *sqliteRFPRepo) GetMilestones(ctx context.Context, rfpID string) ([]models.Milestone, error) {
	query := `
		SELECT id, rfp_id, title, date, timezone, has_time, position
		FROM milestones WHERE rfp_id = ? ORDER BY position ASC
	`
	rows, err := r.db.QueryContext(ctx, query, rfpID)
	if err != nil {
		return nil, fmt.Errorf("get milestones: %w", err)
	}
	defer rows.Close()

	var ms []models.Milestone
	for rows.Next() {
		var m models.Milestone
		if err := rows.Scan(&m.ID, &m.RFPID, &m.Title, &m.Date, &m.Timezone, &m.HasTime, &m.Position); err != nil {
			return nil, fmt.Errorf("scan milestone: %w", err)
		}
		ms = append(ms, m)
	}
	return ms, rows.Err()
}

func (r *sqliteRFPRepo) CreateComponent(ctx context.Context, c *models.Component) error {
	query := `
		INSERT INTO components (id, rfp_id, title, body, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.RFPID, c.Title, c.Body, c.Position, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert component: %w", err)
	}
	return nil
}

func (r *sqliteRFPRepo) GetComponent(ctx context.Context, id string) (*models.Component, error) {
	query := `
		SELECT id, rfp_id, title, body, position, created_at, updated_at
		FROM components WHERE id = ?
	`
	c := &models.Component{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.RFPID, &c.Title, &c.Body, &c.Position, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get component: %w", err)
	}
	return c, nil
}

func (r *sqliteRFPRepo) ListComponents(ctx context.Context, rfpID string) ([]*models.Component, error) {
	query := `
		SELECT id, rfp_id, title, body, position, created_at, updated_at
		FROM components WHERE rfp_id = ? ORDER BY position ASC
	`
	rows, err := r.db.QueryContext(ctx, query, rfpID)
	if err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}
	defer rows.Close()

	var cs []*models.Component
	for rows.Next() {
		c := &models.Component{}
		if err := rows.Scan(&c.ID, &c.RFPID, &c.Title, &c.Body, &c.Position, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan component: %w", err)
		}
		cs = append(cs, c)
	}
	return cs, rows.Err()
}

func (r *sqliteRFPRepo) DeleteComponent(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM components WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete component: %w", err)
	}
	return nil
}
