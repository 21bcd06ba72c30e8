package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// migrations holds all database migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
			-- Users table
			CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				email TEXT UNIQUE NOT NULL,
				full_name TEXT NOT NULL DEFAULT '',
				password_hash TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'bidder',
				company_id TEXT REFERENCES companies(id) ON DELETE SET NULL,
				company_role TEXT,
				company_name TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			-- Companies table
			CREATE TABLE IF NOT EXISTS companies (
				id TEXT PRIMARY KEY,
				name TEXT UNIQUE NOT NULL,
				creator_id TEXT NOT NULL,
				auto_join_domain TEXT NOT NULL DEFAULT '',
				domain_verified INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			-- Company-User secondary memberships (many-to-many)
			CREATE TABLE IF NOT EXISTS company_members (
				company_id TEXT NOT NULL,
				user_id TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'member',
				created_at DATETIME NOT NULL,
				PRIMARY KEY (company_id, user_id),
				FOREIGN KEY (company_id) REFERENCES companies(id) ON DELETE CASCADE,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);

			-- Company linkage audit trail
			CREATE TABLE IF NOT EXISTS company_link_audit (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				text TEXT NOT NULL,
				company_id TEXT,
				outcome TEXT NOT NULL,
				detail TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL
			);

			-- RFPs table
			CREATE TABLE IF NOT EXISTS rfps (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				client_id TEXT NOT NULL,
				visibility TEXT NOT NULL DEFAULT 'public',
				status TEXT NOT NULL DEFAULT 'draft',
				closing_date DATETIME NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			-- RFP milestones
			CREATE TABLE IF NOT EXISTS milestones (
				id TEXT PRIMARY KEY,
				rfp_id TEXT NOT NULL,
				title TEXT NOT NULL,
				date DATETIME NOT NULL,
				timezone TEXT NOT NULL DEFAULT '',
				has_time INTEGER NOT NULL DEFAULT 0,
				position INTEGER NOT NULL DEFAULT 0,
				FOREIGN KEY (rfp_id) REFERENCES rfps(id) ON DELETE CASCADE
			);

			-- RFP content components
			CREATE TABLE IF NOT EXISTS components (
				id TEXT PRIMARY KEY,
				rfp_id TEXT NOT NULL,
				title TEXT NOT NULL,
				body TEXT NOT NULL DEFAULT '',
				position INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				FOREIGN KEY (rfp_id) REFERENCES rfps(id) ON DELETE CASCADE
			);

			-- Documents (tree via parent_id)
			CREATE TABLE IF NOT EXISTS documents (
				id TEXT PRIMARY KEY,
				rfp_id TEXT NOT NULL,
				parent_id TEXT REFERENCES documents(id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				file_path TEXT NOT NULL DEFAULT '',
				is_folder INTEGER NOT NULL DEFAULT 0,
				requires_nda INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				FOREIGN KEY (rfp_id) REFERENCES rfps(id) ON DELETE CASCADE
			);

			-- NDA grants: at most one per (rfp, user) and per (rfp, company)
			CREATE TABLE IF NOT EXISTS nda_grants (
				id TEXT PRIMARY KEY,
				rfp_id TEXT NOT NULL,
				user_id TEXT,
				company_id TEXT,
				status TEXT NOT NULL DEFAULT 'pending',
				signed_at DATETIME,
				decided_at DATETIME,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				FOREIGN KEY (rfp_id) REFERENCES rfps(id) ON DELETE CASCADE
			);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_nda_rfp_user
				ON nda_grants(rfp_id, user_id) WHERE user_id IS NOT NULL;
			CREATE UNIQUE INDEX IF NOT EXISTS idx_nda_rfp_company
				ON nda_grants(rfp_id, company_id) WHERE company_id IS NOT NULL;

			-- Access grants gating confidential RFPs
			CREATE TABLE IF NOT EXISTS rfp_access (
				id TEXT PRIMARY KEY,
				rfp_id TEXT NOT NULL,
				user_id TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending',
				decided_at DATETIME,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				UNIQUE (rfp_id, user_id),
				FOREIGN KEY (rfp_id) REFERENCES rfps(id) ON DELETE CASCADE,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);

			-- Notifications (append-only; read_at null -> timestamp once)
			CREATE TABLE IF NOT EXISTS notifications (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				type TEXT NOT NULL,
				title TEXT NOT NULL,
				message TEXT NOT NULL DEFAULT '',
				reference_id TEXT NOT NULL DEFAULT '',
				read_at DATETIME,
				created_at DATETIME NOT NULL,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);

			-- Bidder questions
			CREATE TABLE IF NOT EXISTS questions (
				id TEXT PRIMARY KEY,
				rfp_id TEXT NOT NULL,
				asker_id TEXT NOT NULL,
				body TEXT NOT NULL,
				answer TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'pending',
				published_at DATETIME,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				FOREIGN KEY (rfp_id) REFERENCES rfps(id) ON DELETE CASCADE
			);

			-- Role claims mirrored from the auth layer
			CREATE TABLE IF NOT EXISTS auth_claims (
				user_id TEXT PRIMARY KEY,
				role TEXT NOT NULL,
				synced_at DATETIME NOT NULL
			);

			-- Indexes
			CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
			CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
			CREATE INDEX IF NOT EXISTS idx_users_company ON users(company_id);
			CREATE INDEX IF NOT EXISTS idx_rfps_status ON rfps(status);
			CREATE INDEX IF NOT EXISTS idx_rfps_closing ON rfps(status, closing_date);
			CREATE INDEX IF NOT EXISTS idx_documents_rfp ON documents(rfp_id);
			CREATE INDEX IF NOT EXISTS idx_components_rfp ON components(rfp_id);
			CREATE INDEX IF NOT EXISTS idx_milestones_rfp ON milestones(rfp_id);
			CREATE INDEX IF NOT EXISTS idx_access_rfp ON rfp_access(rfp_id, status);
			CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, read_at);
			CREATE INDEX IF NOT EXISTS idx_questions_rfp ON questions(rfp_id, status);
		`,
	},
}

// runMigrations applies all pending migrations.
func runMigrations(db *sql.DB) error {
	// Create migrations table if not exists
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	// Apply pending migrations
	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		// Run migration in transaction
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		_, err = tx.Exec(m.Up)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d (%s): %w", m.Version, m.Name, err)
		}

		_, err = tx.Exec(
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, time.Now(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
