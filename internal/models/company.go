package models

import (
	"time"
)

// Company aggregates users. Users reference a company either by ID
// (authoritative FK) or by free-text name from signup; the linkage
// resolver reconciles the latter into the former.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatorID string    `json:"creator_id"`
	// AutoJoinDomain, when set and verified, links users whose email
	// domain matches at signup time.
	AutoJoinDomain string    `json:"auto_join_domain,omitempty"`
	DomainVerified bool      `json:"domain_verified"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewCompany creates a Company with initialized timestamps.
func NewCompany(name, creatorID string) *Company {
	now := time.Now()
	return &Company{
		Name:      name,
		CreatorID: creatorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CompanyMember is a secondary membership record linking a user to a
// company beyond the user's primary CompanyID field.
type CompanyMember struct {
	CompanyID string      `json:"company_id"`
	UserID    string      `json:"user_id"`
	Role      CompanyRole `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// LinkAudit records one company linkage attempt, success or failure.
type LinkAudit struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CompanyID string    `json:"company_id,omitempty"`
	Outcome   string    `json:"outcome"` // linked | no_match | error
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	LinkOutcomeLinked  = "linked"
	LinkOutcomeNoMatch = "no_match"
	LinkOutcomeError   = "error"
)
