package models

import (
	"time"
)

// Role represents a user's permission level.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleClientReviewer Role = "client_reviewer"
	RoleBidder         Role = "bidder"
)

// CompanyRole represents a user's role within their company.
type CompanyRole string

const (
	CompanyRoleAdmin        CompanyRole = "admin"
	CompanyRoleMember       CompanyRole = "member"
	CompanyRoleCollaborator CompanyRole = "collaborator"
)

// User represents a system user with RBAC and optional company affiliation.
type User struct {
	ID           string      `json:"id"`
	Email        string      `json:"email"`
	FullName     string      `json:"full_name"`
	PasswordHash string      `json:"-"` // Never expose in JSON
	Role         Role        `json:"role"`
	CompanyID    string      `json:"company_id,omitempty"`
	CompanyRole  CompanyRole `json:"company_role,omitempty"`
	// CompanyName is the free-text company field from signup. It stays set
	// until the linkage resolver reconciles it to a CompanyID.
	CompanyName string    `json:"company_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewUser creates a new User with initialized timestamps.
func NewUser(email, fullName string, role Role) *User {
	now := time.Now()
	return &User{
		Email:     email,
		FullName:  fullName,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsAdmin returns true if user has admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ParseRole converts a string to Role.
func ParseRole(s string) Role {
	switch s {
	case "admin":
		return RoleAdmin
	case "client_reviewer":
		return RoleClientReviewer
	default:
		return RoleBidder
	}
}

// ValidRole reports whether s is one of the three enumerated roles.
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleAdmin, RoleClientReviewer, RoleBidder:
		return true
	}
	return false
}

// RoleClaim mirrors the role the auth layer embeds in identity tokens.
// It can drift from the profile's Role; the persisted profile wins and
// SyncRole pushes the profile value back here.
type RoleClaim struct {
	UserID   string    `json:"user_id"`
	Role     Role      `json:"role"`
	SyncedAt time.Time `json:"synced_at"`
}

// ValidCompanyRole reports whether s is an allowed company role.
func ValidCompanyRole(s string) bool {
	switch CompanyRole(s) {
	case CompanyRoleAdmin, CompanyRoleMember, CompanyRoleCollaborator:
		return true
	}
	return false
}
