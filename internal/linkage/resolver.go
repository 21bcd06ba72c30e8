package linkage

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keen-violet-ibis/rfphub/internal/models"
	"github.com/keen-violet-ibis/rfphub/internal/storage"
)

// ReconcileResult reports one reconciliation batch.
type ReconcileResult struct {
	LinkedCount int `json:"linked_count"`
	NoMatch     int `json:"no_match"`
	Failures    int `json:"failures"`
}

// Resolver links users carrying only a free-text company name to real
// company records. It runs off the request hot path (batch or
// administrative call) and only writes facts the policy engine later
// reads.
type Resolver struct {
	store storage.Storage
}

// NewResolver creates a Resolver.
func NewResolver(store storage.Storage) *Resolver {
	return &Resolver{store: store}
}

// LinkByName returns the ID of the company best matching the given text,
// or "" when nothing matches.
func (r *Resolver) LinkByName(ctx context.Context, text string) (string, error) {
	companies, err := r.store.Companies().List(ctx)
	if err != nil {
		return "", fmt.Errorf("link by name: %w", err)
	}
	if c := Match(text, companies); c != nil {
		return c.ID, nil
	}
	return "", nil
}

// LinkByEmailDomain returns the company with a verified auto-join domain
// matching the email's domain, or "" when there is none.
func (r *Resolver) LinkByEmailDomain(ctx context.Context, email string) (string, error) {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return "", nil
	}
	domain := strings.ToLower(email[at+1:])
	c, err := r.store.Companies().GetByAutoJoinDomain(ctx, domain)
	if err != nil {
		return "", fmt.Errorf("link by email domain: %w", err)
	}
	if c == nil {
		return "", nil
	}
	return c.ID, nil
}

// ReconcileAll walks every user with a free-text company but no FK,
// links matches, and records an audit entry per attempt. Per-item
// failures are recorded and skipped, never fatal to the batch.
func (r *Resolver) ReconcileAll(ctx context.Context) (ReconcileResult, error) {
	var result ReconcileResult

	users, err := r.store.Users().ListUnlinked(ctx)
	if err != nil {
		return result, fmt.Errorf("reconcile: %w", err)
	}
	companies, err := r.store.Companies().List(ctx)
	if err != nil {
		return result, fmt.Errorf("reconcile: %w", err)
	}

	for _, user := range users {
		match := Match(user.CompanyName, companies)
		if match == nil {
			result.NoMatch++
			r.audit(ctx, user.ID, user.CompanyName, "", models.LinkOutcomeNoMatch, "")
			continue
		}

		if err := r.store.Users().SetCompany(ctx, user.ID, match.ID, user.CompanyRole); err != nil {
			result.Failures++
			log.Printf("reconcile user %s -> company %s: %v", user.ID, match.ID, err)
			r.audit(ctx, user.ID, user.CompanyName, match.ID, models.LinkOutcomeError, err.Error())
			continue
		}

		result.LinkedCount++
		r.audit(ctx, user.ID, user.CompanyName, match.ID, models.LinkOutcomeLinked, match.Name)
	}

	return result, nil
}

// MemberCount returns the deduplicated member count for a company. A
// principal reachable via FK, text match, and secondary membership at
// once still counts exactly once.
func (r *Resolver) MemberCount(ctx context.Context, companyID string) (int, error) {
	ids, err := r.store.Companies().MemberIDs(ctx, companyID)
	if err != nil {
		return 0, fmt.Errorf("member count: %w", err)
	}
	return len(ids), nil
}

// audit records one linkage attempt. Audit failures are logged only;
// they never fail the batch.
func (r *Resolver) audit(ctx context.Context, userID, text, companyID, outcome, detail string) {
	a := &models.LinkAudit{
		ID:        uuid.New().String(),
		UserID:    userID,
		Text:      text,
		CompanyID: companyID,
		Outcome:   outcome,
		Detail:    detail,
		CreatedAt: time.Now(),
	}
	if err := r.store.Companies().CreateLinkAudit(ctx, a); err != nil {
		log.Printf("link audit for user %s: %v", userID, err)
	}
}
