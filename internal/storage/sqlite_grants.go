package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/keen-violet-ibis/rfphub/internal/models"
)

type sqliteNDARepo struct {
	db *sql.DB
}

const ndaColumns = `id, rfp_id, user_id, company_id, status, signed_at, decided_at, created_at, updated_at`

func scanNDA(row interface{ Scan(...any) error }) (*models.NDAGrant, error) {
	g := &models.NDAGrant{}
	var userID, companyID sql.NullString
	var signedAt, decidedAt sql.NullTime
	err := row.Scan(
		&g.ID, &g.RFPID, &userID, &companyID, &g.Status,
		&signedAt, &decidedAt, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	g.UserID = userID.String
	g.CompanyID = companyID.String
	if signedAt.Valid {
		g.SignedAt = &signedAt.Time
	}
	if decidedAt.Valid {
		g.DecidedAt = &decidedAt.Time
	}
	return g, nil
}

func (r *sqliteNDARepo) Create(ctx context.Context, g *models.NDAGrant) error {
	query := `
		INSERT INTO nda_grants (id, rfp_id, user_id, company_id, status, signed_at, decided_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		g.ID, g.RFPID, nullable(g.UserID), nullable(g.CompanyID), g.Status,
		g.SignedAt, g.DecidedAt, g.CreatedAt, g.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert nda grant: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert nda grant: %w", err)
	}
	return nil
}

func (r *sqliteNDARepo) GetByID(ctx context.Context, id string) (*models.NDAGrant, error) {
	query := `SELECT ` + ndaColumns + ` FROM nda_grants WHERE id = ?`
	g, err := scanNDA(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get nda grant: %w", err)
	}
	return g, nil
}

func (r *sqliteNDARepo) GetForUser(ctx context.Context, rfpID, userID string) (*models.NDAGrant, error) {
	query := `SELECT ` + ndaColumns + ` FROM nda_grants WHERE rfp_id = ? AND user_id = ?`
	g, err := scanNDA(r.db.QueryRowContext(ctx, query, rfpID, userID))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get nda for user: %w", err)
	}
	return g, nil
}

func (r *sqliteNDARepo) GetForCompany(ctx context.Context, rfpID, companyID string) (*models.NDAGrant, error) {
	query := `SELECT ` + ndaColumns + ` FROM nda_grants WHERE rfp_id = ? AND company_id = ?`
	g, err := scanNDA(r.db.QueryRowContext(ctx, query, rfpID, companyID))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get nda for company: %w", err)
	}
	return g, nil
}

// SetStatus decides a pending grant. The conditional WHERE makes
// concurrent decisions race to a single winner: the loser's update
// matches no row and returns nil, and the stored decision never flips.
func (r *sqliteNDARepo) SetStatus(ctx context.Context, id string, status models.GrantStatus, decidedAt time.Time) (*models.NDAGrant, error) {
	query := `
		UPDATE nda_grants SET status = ?, decided_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	res, err := r.db.ExecContext(ctx, query, status, decidedAt, decidedAt, id, models.GrantPending)
	if err != nil {
		return nil, fmt.Errorf("set nda status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("set nda status: %w", err)
	}
	if n == 0 {
		//nolint:nilnil
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *sqliteNDARepo) ListByRFP(ctx context.Context, rfpID string) ([]*models.NDAGrant, error) {
	query := `SELECT ` + ndaColumns + ` FROM nda_grants WHERE rfp_id = ? ORDER BY created_at ASC`
	return r.queryNDAs(ctx, query, rfpID)
}

func (r *sqliteNDARepo) ListForUser(ctx context.Context, userID string) ([]*models.NDAGrant, error) {
	query := `SELECT ` + ndaColumns + ` FROM nda_grants WHERE user_id = ? ORDER BY created_at DESC`
	return r.queryNDAs(ctx, query, userID)
}

func (r *sqliteNDARepo) queryNDAs(ctx context.Context, query string, args ...any) ([]*models.NDAGrant, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list nda grants: %w", err)
	}
	defer rows.Close()

	var grants []*models.NDAGrant
	for rows.Next() {
		g, err := scanNDA(rows)
		if err != nil {
			return nil, fmt.Errorf("scan nda grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (r *sqliteNDARepo) HasApproved(ctx context.Context, rfpID, userID, companyID string) (bool, error) {
	query := `
		SELECT COUNT(*) FROM nda_grants
		WHERE rfp_id = ? AND status = ?
		AND (user_id = ? OR (company_id IS NOT NULL AND company_id = ?))
	`
	var count int
	err := r.db.QueryRowContext(ctx, query, rfpID, models.GrantApproved, userID, companyID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check approved nda: %w", err)
	}
	return count > 0, nil
}

type sqliteAccessRepo struct {
	db *sql.DB
}

const accessColumns = `id, rfp_id, user_id, status, decided_at, created_at, updated_at`

func scanAccess(row interface{ Scan(...any) error }) (*models.AccessGrant, error) {
	g := &models.AccessGrant{}
	var decidedAt sql.NullTime
	err := row.Scan(
		&g.ID, &g.RFPID, &g.UserID, &g.Status, &decidedAt, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if decidedAt.Valid {
		g.DecidedAt = &decidedAt.Time
	}
	return g, nil
}

func (r *sqliteAccessRepo) Create(ctx context.Context, g *models.AccessGrant) error {
	query := `
		INSERT INTO rfp_access (id, rfp_id, user_id, status, decided_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		g.ID, g.RFPID, g.UserID, g.Status, g.DecidedAt, g.CreatedAt, g.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert access grant: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert access grant: %w", err)
	}
	return nil
}

func (r *sqliteAccessRepo) GetByID(ctx context.Context, id string) (*models.AccessGrant, error) {
	query := `SELECT ` + accessColumns + ` FROM rfp_access WHERE id = ?`
	g, err := scanAccess(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get access grant: %w", err)
	}
	return g, nil
}

func (r *sqliteAccessRepo) GetForUser(ctx context.Context, rfpID, userID string) (*models.AccessGrant, error) {
	query := `SELECT ` + accessColumns + ` FROM rfp_access WHERE rfp_id = ? AND user_id = ?`
	g, err := scanAccess(r.db.QueryRowContext(ctx, query, rfpID, userID))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get access for user: %w", err)
	}
	return g, nil
}

// SetStatus decides a pending access request with the same
// single-winner conditional update as the NDA repository.
func (r *sqliteAccessRepo) SetStatus(ctx context.Context, id string, status models.GrantStatus, decidedAt time.Time) (*models.AccessGrant, error) {
	query := `
		UPDATE rfp_access SET status = ?, decided_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	res, err := r.db.ExecContext(ctx, query, status, decidedAt, decidedAt, id, models.GrantPending)
	if err != nil {
		return nil, fmt.Errorf("set access status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("set access status: %w", err)
	}
	if n == 0 {
		//nolint:nilnil
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *sqliteAccessRepo) ListByRFP(ctx context.Context, rfpID string) ([]*models.AccessGrant, error) {
	query := `SELECT ` + accessColumns + ` FROM rfp_access WHERE rfp_id = ? ORDER BY created_at ASC`
	return r.queryGrants(ctx, query, rfpID)
}

func (r *sqliteAccessRepo) ListForUser(ctx context.Context, userID string) ([]*models.AccessGrant, error) {
	query := `SELECT ` + accessColumns + ` FROM rfp_access WHERE user_id = ? ORDER BY created_at DESC`
	return r.queryGrants(ctx, query, userID)
}

func (r *sqliteAccessRepo) queryGrants(ctx context.Context, query string, args ...any) ([]*models.AccessGrant, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list access grants: %w", err)
	}
	defer rows.Close()

	var grants []*models.AccessGrant
	for rows.Next() {
		g, err := scanAccess(rows)
		if err != nil {
			return nil, fmt.Errorf("scan access grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (r *sqliteAccessRepo) HasApproved(ctx context.Context, rfpID, userID string) (bool, error) {
	query := `SELECT COUNT(*) FROM rfp_access WHERE rfp_id = ? AND user_id = ? AND status = ?`
	var count int
	err := r.db.QueryRowContext(ctx, query, rfpID, userID, models.GrantApproved).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check approved access: %w", err)
	}
	return count > 0, nil
}

func (r *sqliteAccessRepo) ApprovedUserIDs(ctx context.Context, rfpID string) ([]string, error) {
	query := `SELECT user_id FROM rfp_access WHERE rfp_id = ? AND status = ? ORDER BY user_id`
	rows, err := r.db.QueryContext(ctx, query, rfpID, models.GrantApproved)
	if err != nil {
		return nil, fmt.Errorf("approved user ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan approved user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
