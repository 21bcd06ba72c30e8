package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/keen-violet-ibis/rfphub/internal/models"
)

type sqliteDocumentRepo struct {
	db *sql.DB
}

const documentColumns = `id, rfp_id, parent_id, name, file_path, is_folder, requires_nda, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (*models.Document, error) {
	doc := &models.Document{}
	var parentID sql.NullString
	err := row.Scan(
		&doc.ID, &doc.RFPID, &parentID, &doc.Name, &doc.FilePath,
		&doc.IsFolder, &doc.RequiresNDA, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.ParentID = parentID.String
	return doc, nil
}

func (r *sqliteDocumentRepo) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (id, rfp_id, parent_id, name, file_path, is_folder, requires_nda, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		doc.ID, doc.RFPID, nullable(doc.ParentID), doc.Name, doc.FilePath,
		doc.IsFolder, doc.RequiresNDA, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *sqliteDocumentRepo) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = ?`
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document by id: %w", err)
	}
	return doc, nil
}

func (r *sqliteDocumentRepo) Update(ctx context.Context, doc *models.Document) error {
	query := `
		UPDATE documents
		SET parent_id = ?, name = ?, file_path = ?, requires_nda = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		nullable(doc.ParentID), doc.Name, doc.FilePath, doc.RequiresNDA,
		doc.UpdatedAt, doc.ID,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

func (r *sqliteDocumentRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (r *sqliteDocumentRepo) ListByRFP(ctx context.Context, rfpID string) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE rfp_id = ? ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, query, rfpID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Ancestors walks parent links from the document up to the root. The
// walk is bounded by the number of visited nodes, so a corrupted cycle
// in the table terminates with an error instead of spinning.
func (r *sqliteDocumentRepo) Ancestors(ctx context.Context, id string) ([]string, error) {
	seen := map[string]bool{id: true}
	var chain []string

	current := id
	for {
		var parentID sql.NullString
		err := r.db.QueryRowContext(ctx,
			`SELECT parent_id FROM documents WHERE id = ?`, current,
		).Scan(&parentID)
		if err == sql.ErrNoRows {
			return chain, nil
		}
		if err != nil {
			return nil, fmt.Errorf("walk document ancestors: %w", err)
		}
		if !parentID.Valid || parentID.String == "" {
			return chain, nil
		}
		if seen[parentID.String] {
			return nil, fmt.Errorf("document %s: cycle detected in folder tree", id)
		}
		seen[parentID.String] = true
		chain = append(chain, parentID.String)
		current = parentID.String
	}
}
