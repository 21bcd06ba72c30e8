package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/keen-violet-ibis/rfphub/internal/models"
)

type sqliteClaimRepo struct {
	db *sql.DB
}

func (r *sqliteClaimRepo) Get(ctx context.Context, userID string) (*models.RoleClaim, error) {
	query := `SELECT user_id, role, synced_at FROM auth_claims WHERE user_id = ?`
	c := &models.RoleClaim{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&c.UserID, &c.Role, &c.SyncedAt)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get role claim: %w", err)
	}
	return c, nil
}

func (r *sqliteClaimRepo) Upsert(ctx context.Context, userID string, role models.Role, syncedAt time.Time) error {
	query := `
		INSERT INTO auth_claims (user_id, role, synced_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET role = excluded.role, synced_at = excluded.synced_at
	`
	_, err := r.db.ExecContext(ctx, query, userID, role, syncedAt)
	if err != nil {
		return fmt.Errorf("upsert role claim: %w", err)
	}
	return nil
}
