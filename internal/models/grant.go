package models

import (
	"time"
)

// GrantStatus is the shared state enum for NDA and access grants.
type GrantStatus string

const (
	GrantPending  GrantStatus = "pending"
	GrantApproved GrantStatus = "approved"
	GrantRejected GrantStatus = "rejected"
)

// NDAGrant asserts that a user or a whole company has accepted the
// confidentiality terms of one RFP. Exactly one of UserID / CompanyID is
// set; the store enforces at most one grant per (rfp, user) and per
// (rfp, company) pair.
type NDAGrant struct {
	ID        string      `json:"id"`
	RFPID     string      `json:"rfp_id"`
	UserID    string      `json:"user_id,omitempty"`
	CompanyID string      `json:"company_id,omitempty"`
	Status    GrantStatus `json:"status"`
	SignedAt  *time.Time  `json:"signed_at,omitempty"`
	DecidedAt *time.Time  `json:"decided_at,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewUserNDA creates a pending individual NDA grant.
func NewUserNDA(rfpID, userID string) *NDAGrant {
	now := time.Now()
	return &NDAGrant{
		RFPID:     rfpID,
		UserID:    userID,
		Status:    GrantPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewCompanyNDA creates a pending company-level NDA grant.
func NewCompanyNDA(rfpID, companyID string) *NDAGrant {
	now := time.Now()
	return &NDAGrant{
		RFPID:     rfpID,
		CompanyID: companyID,
		Status:    GrantPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AccessGrant permits one client reviewer to view a confidential RFP.
// Only admins write these; the target must hold the client_reviewer role.
type AccessGrant struct {
	ID        string      `json:"id"`
	RFPID     string      `json:"rfp_id"`
	UserID    string      `json:"user_id"`
	Status    GrantStatus `json:"status"`
	DecidedAt *time.Time  `json:"decided_at,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewAccessGrant creates a pending access grant request.
func NewAccessGrant(rfpID, userID string) *AccessGrant {
	now := time.Now()
	return &AccessGrant{
		RFPID:     rfpID,
		UserID:    userID,
		Status:    GrantPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
