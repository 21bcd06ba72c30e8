// Package authz resolves acting principals from authenticated identities.
//
// Role facts come from two independent sources: the role claim embedded
// in the identity token at authentication time, and the persisted user
// profile. The profile is the source of truth; the claim is accepted
// only as corroboration and drift is logged. The resolved Principal is
// a value object materialized once per request so that policy decisions
// never re-query the users table to establish privilege.
package authz

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/keen-violet-ibis/rfphub/internal/models"
	"github.com/keen-violet-ibis/rfphub/internal/storage"
)

// ErrPrincipalNotFound is returned when an identity authenticates but no
// profile has been provisioned for it. Provisioning is a separate write
// path; the resolver never creates profiles.
var ErrPrincipalNotFound = errors.New("principal not found")

// Identity is what the auth layer hands the resolver: the verified token
// subject plus the role claim minted at authentication time.
type Identity struct {
	UserID string
	Email  string
	Role   models.Role
}

// Principal is the materialized actor for one request. It is passed by
// value into policy decisions and never re-derived mid-decision.
type Principal struct {
	ID          string
	Email       string
	Role        models.Role
	CompanyID   string
	CompanyRole models.CompanyRole
	// ClaimRole is the role the token carried. Kept for observability;
	// authorization always uses Role.
	ClaimRole models.Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

// Anonymous is the zero principal used for unauthenticated requests.
func Anonymous() Principal {
	return Principal{}
}

// IsAnonymous reports whether the principal is unauthenticated.
func (p Principal) IsAnonymous() bool {
	return p.ID == ""
}

// Resolver reconciles identity claims with persisted profiles.
type Resolver struct {
	users  storage.UserRepository
	claims storage.ClaimRepository
}

// NewResolver creates a Resolver over the given repositories.
func NewResolver(users storage.UserRepository, claims storage.ClaimRepository) *Resolver {
	return &Resolver{users: users, claims: claims}
}

// Resolve returns the Principal for an authenticated identity. It is a
// pure read: the persisted profile wins on any disagreement with the
// token claim, and drift is logged but never patched here (SyncRole is
// the one-way repair path).
func (r *Resolver) Resolve(ctx context.Context, ident Identity) (Principal, error) {
	if ident.UserID == "" {
		return Principal{}, fmt.Errorf("resolve principal: %w", ErrPrincipalNotFound)
	}

	user, err := r.users.GetByID(ctx, ident.UserID)
	if err != nil {
		return Principal{}, fmt.Errorf("resolve principal: %w", err)
	}
	if user == nil {
		return Principal{}, fmt.Errorf("resolve principal %s: %w", ident.UserID, ErrPrincipalNotFound)
	}

	if ident.Role != "" && ident.Role != user.Role {
		log.Printf("role drift for user %s: claim=%s profile=%s (profile wins)",
			user.ID, ident.Role, user.Role)
	}

	return Principal{
		ID:          user.ID,
		Email:       user.Email,
		Role:        user.Role,
		CompanyID:   user.CompanyID,
		CompanyRole: user.CompanyRole,
		ClaimRole:   ident.Role,
	}, nil
}

// SyncRole pushes the persisted profile role into the claim store so the
// next issued token carries the right role. Idempotent and safe to retry.
func (r *Resolver) SyncRole(ctx context.Context, userID string) error {
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("sync role: %w", err)
	}
	if user == nil {
		return fmt.Errorf("sync role %s: %w", userID, ErrPrincipalNotFound)
	}
	if err := r.claims.Upsert(ctx, user.ID, user.Role, time.Now()); err != nil {
		return fmt.Errorf("sync role: %w", err)
	}
	return nil
}
