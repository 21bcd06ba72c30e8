package models

import (
	"time"
)

// Document is a file attached to an RFP. Documents form a tree through
// ParentID; cycles are rejected at write time. Effective visibility is
// always derived from RequiresNDA plus the owning RFP, never stored.
type Document struct {
	ID          string    `json:"id"`
	RFPID       string    `json:"rfp_id"`
	ParentID    string    `json:"parent_id,omitempty"` // parent folder, empty at root
	Name        string    `json:"name"`
	FilePath    string    `json:"file_path,omitempty"`
	IsFolder    bool      `json:"is_folder"`
	RequiresNDA bool      `json:"requires_nda"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewDocument creates a Document with initialized timestamps.
func NewDocument(rfpID, name, filePath string, requiresNDA bool) *Document {
	now := time.Now()
	return &Document{
		RFPID:       rfpID,
		Name:        name,
		FilePath:    filePath,
		RequiresNDA: requiresNDA,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewFolder creates a folder Document under the given parent.
func NewFolder(rfpID, parentID, name string) *Document {
	now := time.Now()
	return &Document{
		RFPID:     rfpID,
		ParentID:  parentID,
		Name:      name,
		IsFolder:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
