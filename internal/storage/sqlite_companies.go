package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/keen-violet-ibis/rfphub/internal/models"
)

type sqliteCompanyRepo struct {
	db *sql.DB
}

const companyColumns = `id, name, creator_id, auto_join_domain, domain_verified, created_at, updated_at`

func scanCompany(row interface{ Scan(...any) error }) (*models.Company, error) {
	c := &models.Company{}
	err := row.Scan(
		&c.ID, &c.Name, &c.CreatorID, &c.AutoJoinDomain, &c.DomainVerified,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *sqliteCompanyRepo) Create(ctx context.Context, company *models.Company) error {
	query := `
		INSERT INTO companies (id, name, creator_id, auto_join_domain, domain_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		company.ID, company.Name, company.CreatorID, company.AutoJoinDomain,
		company.DomainVerified, company.CreatedAt, company.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert company: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

func (r *sqliteCompanyRepo) GetByID(ctx context.Context, id string) (*models.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE id = ?`
	c, err := scanCompany(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get company by id: %w", err)
	}
	return c, nil
}

func (r *sqliteCompanyRepo) GetByAutoJoinDomain(ctx context.Context, domain string) (*models.Company, error) {
	query := `
		SELECT ` + companyColumns + ` FROM companies
		WHERE auto_join_domain = ? AND domain_verified = 1
		ORDER BY created_at ASC LIMIT 1
	`
	c, err := scanCompany(r.db.QueryRowContext(ctx, query, domain))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get company by domain: %w", err)
	}
	return c, nil
}

func (r *sqliteCompanyRepo) Update(ctx context.Context, company *models.Company) error {
	query := `
		UPDATE companies
		SET name = ?, auto_join_domain = ?, domain_verified = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		company.Name, company.AutoJoinDomain, company.DomainVerified,
		company.UpdatedAt, company.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("update company: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("update company: %w", err)
	}
	return nil
}

func (r *sqliteCompanyRepo) List(ctx context.Context) ([]*models.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var companies []*models.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

func (r *sqliteCompanyRepo) AddMember(ctx context.Context, m *models.CompanyMember) error {
	query := `
		INSERT INTO company_members (company_id, user_id, role, created_at)
		VALUES (?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, m.CompanyID, m.UserID, m.Role, m.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("add company member: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("add company member: %w", err)
	}
	return nil
}

func (r *sqliteCompanyRepo) RemoveMember(ctx context.Context, companyID, userID string) error {
	query := `DELETE FROM company_members WHERE company_id = ? AND user_id = ?`
	_, err := r.db.ExecContext(ctx, query, companyID, userID)
	if err != nil {
		return fmt.Errorf("remove company member: %w", err)
	}
	return nil
}

func (r *sqliteCompanyRepo) ListMembers(ctx context.Context, companyID string) ([]*models.CompanyMember, error) {
	query := `
		SELECT company_id, user_id, role, created_at FROM company_members
		WHERE company_id = ? ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("list company members: %w", err)
	}
	defer rows.Close()

	var members []*models.CompanyMember
	for rows.Next() {
		m := &models.CompanyMember{}
		if err := rows.Scan(&m.CompanyID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan company member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// MemberIDs deduplicates across the three linkage paths: users whose
// company_id FK points here, users whose free-text company name matches
// this company's name case-insensitively, and secondary membership rows.
// FK linkage takes precedence, so a user linked both ways counts once.
func (r *sqliteCompanyRepo) MemberIDs(ctx context.Context, companyID string) ([]string, error) {
	query := `
		SELECT id FROM users WHERE company_id = ?
		UNION
		SELECT u.id FROM users u
		JOIN companies c ON LOWER(u.company_name) = LOWER(c.name)
		WHERE c.id = ? AND u.company_id IS NULL
		UNION
		SELECT user_id FROM company_members WHERE company_id = ?
		ORDER BY 1
	`
	rows, err := r.db.QueryContext(ctx, query, companyID, companyID, companyID)
	if err != nil {
		return nil, fmt.Errorf("company member ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *sqliteCompanyRepo) CreateLinkAudit(ctx context.Context, a *models.LinkAudit) error {
	query := `
		INSERT INTO company_link_audit (id, user_id, text, company_id, outcome, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.UserID, a.Text, nullable(a.CompanyID), a.Outcome, a.Detail, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert link audit: %w", err)
	}
	return nil
}

func (r *sqliteCompanyRepo) ListLinkAudits(ctx context.Context, limit int) ([]*models.LinkAudit, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, user_id, text, company_id, outcome, detail, created_at
		FROM company_link_audit ORDER BY created_at DESC LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list link audits: %w", err)
	}
	defer rows.Close()

	var audits []*models.LinkAudit
	for rows.Next() {
		a := &models.LinkAudit{}
		var companyID sql.NullString
		if err := rows.Scan(&a.ID, &a.UserID, &a.Text, &companyID, &a.Outcome, &a.Detail, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan link audit: %w", err)
		}
		a.CompanyID = companyID.String
		audits = append(audits, a)
	}
	return audits, rows.Err()
}
