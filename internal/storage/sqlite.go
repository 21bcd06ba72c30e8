package storage

import (
	"context"
	"database/sql"
	"fmt"

	// Pure-Go SQLite driver.
	_ "modernc.org/sqlite"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	path string
	db   *sql.DB

	users         *sqliteUserRepo
	companies     *sqliteCompanyRepo
	rfps          *sqliteRFPRepo
	documents     *sqliteDocumentRepo
	ndas          *sqliteNDARepo
	access        *sqliteAccessRepo
	notifications *sqliteNotificationRepo
	questions     *sqliteQuestionRepo
	claims        *sqliteClaimRepo
}

// NewSQLiteStorage creates a new SQLite storage.
func NewSQLiteStorage(path string) *SQLiteStorage {
	return &SQLiteStorage{path: path}
}

// Open initializes the database connection.
func (s *SQLiteStorage) Open() error {
	ctx := context.Background()

	db, err := sql.Open("sqlite", "file:"+s.path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // Keep connection alive

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	// Enable foreign keys and WAL mode
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	s.db = db

	// Initialize repositories
	s.users = &sqliteUserRepo{db: db}
	s.companies = &sqliteCompanyRepo{db: db}
	s.rfps = &sqliteRFPRepo{db: db}
	s.documents = &sqliteDocumentRepo{db: db}
	s.ndas = &sqliteNDARepo{db: db}
	s.access = &sqliteAccessRepo{db: db}
	s.notifications = &sqliteNotificationRepo{db: db}
	s.questions = &sqliteQuestionRepo{db: db}
	s.claims = &sqliteClaimRepo{db: db}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying database connection for health checks.
func (s *SQLiteStorage) DB() *sql.DB {
	return s.db
}

// Migrate runs database migrations.
func (s *SQLiteStorage) Migrate() error {
	return runMigrations(s.db)
}

// Users returns the user repository.
func (s *SQLiteStorage) Users() UserRepository { return s.users }

// Companies returns the company repository.
func (s *SQLiteStorage) Companies() CompanyRepository { return s.companies }

// RFPs returns the RFP repository.
func (s *SQLiteStorage) RFPs() RFPRepository { return s.rfps }

// Documents returns the document repository.
func (s *SQLiteStorage) Documents() DocumentRepository { return s.documents }

// NDAs returns the NDA grant repository.
func (s *SQLiteStorage) NDAs() NDARepository { return s.ndas }

// Access returns the access grant repository.
func (s *SQLiteStorage) Access() AccessRepository { return s.access }

// Notifications returns the notification repository.
func (s *SQLiteStorage) Notifications() NotificationRepository { return s.notifications }

// Questions returns the question repository.
func (s *SQLiteStorage) Questions() QuestionRepository { return s.questions }

// Claims returns the role claim repository.
func (s *SQLiteStorage) Claims() ClaimRepository { return s.claims }
