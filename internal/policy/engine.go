package policy

import (
	"context"
	"fmt"

	"github.com/keen-violet-ibis/rfphub/internal/authz"
	"github.com/keen-violet-ibis/rfphub/internal/metrics"
	"github.com/keen-violet-ibis/rfphub/internal/models"
	"github.com/keen-violet-ibis/rfphub/internal/storage"
)

// Engine loads resource facts and evaluates the pure rules against them.
// Fact loading touches grant tables only, never the resource type whose
// privilege is being established, so decisions cannot recurse.
type Engine struct {
	store storage.Storage
}

// NewEngine creates an Engine over the given storage.
func NewEngine(store storage.Storage) *Engine {
	return &Engine{store: store}
}

func observe(resource string, d Decision) Decision {
	outcome := "deny"
	if d.Allow {
		outcome = "allow"
	}
	metrics.AuthzDecisions.WithLabelValues(resource, outcome).Inc()
	return d
}

// rfpFacts loads the RFP snapshot plus the principal-specific grant
// facts. A missing RFP yields zero-valued facts, which every rule
// resolves to the same not-visible deny as a forbidden one.
func (e *Engine) rfpFacts(ctx context.Context, p authz.Principal, rfpID string) (RFPFacts, *models.RFP, error) {
	rfp, err := e.store.RFPs().GetByID(ctx, rfpID)
	if err != nil {
		return RFPFacts{}, nil, fmt.Errorf("load rfp facts: %w", err)
	}
	if rfp == nil {
		return RFPFacts{}, nil, nil
	}

	facts := RFPFacts{
		ID:         rfp.ID,
		ClientID:   rfp.ClientID,
		Visibility: rfp.Visibility,
		Status:     rfp.Status,
	}
	if !p.IsAnonymous() && !p.IsAdmin() {
		approved, err := e.store.Access().HasApproved(ctx, rfpID, p.ID)
		if err != nil {
			return RFPFacts{}, nil, fmt.Errorf("load access facts: %w", err)
		}
		facts.HasApprovedAccess = approved
	}
	return facts, rfp, nil
}

// AuthorizeRFPRead decides read access and returns the RFP when allowed.
// Denied and missing resolve to the same (deny, nil) shape.
func (e *Engine) AuthorizeRFPRead(ctx context.Context, p authz.Principal, rfpID string) (Decision, *models.RFP, error) {
	facts, rfp, err := e.rfpFacts(ctx, p, rfpID)
	if err != nil {
		return Deny(), nil, err
	}
	if rfp == nil {
		return observe("rfp", Deny()), nil, nil
	}
	d := EvaluateRFPRead(p, facts)
	if !d.Allow {
		return observe("rfp", d), nil, nil
	}
	return observe("rfp", d), rfp, nil
}

// AuthorizeRFPWrite decides create/update/delete on RFPs.
func (e *Engine) AuthorizeRFPWrite(ctx context.Context, p authz.Principal, rfpID string, action Action) (Decision, error) {
	// Write rules need no per-resource facts; admin-ness comes from the
	// materialized principal.
	d := EvaluateRFPWrite(p, RFPFacts{ID: rfpID}, action)
	return observe("rfp", d), nil
}

// AuthorizeDocumentRead decides read access to one document and returns
// it when allowed.
func (e *Engine) AuthorizeDocumentRead(ctx context.Context, p authz.Principal, docID string) (Decision, *models.Document, error) {
	doc, err := e.store.Documents().GetByID(ctx, docID)
	if err != nil {
		return Deny(), nil, fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return observe("document", Deny()), nil, nil
	}

	facts, rfp, err := e.rfpFacts(ctx, p, doc.RFPID)
	if err != nil {
		return Deny(), nil, err
	}
	if rfp == nil {
		return observe("document", Deny()), nil, nil
	}

	docFacts := DocumentFacts{RFP: facts, RequiresNDA: doc.RequiresNDA}
	if !p.IsAnonymous() && !p.IsAdmin() {
		approved, err := e.store.NDAs().HasApproved(ctx, doc.RFPID, p.ID, p.CompanyID)
		if err != nil {
			return Deny(), nil, fmt.Errorf("load nda facts: %w", err)
		}
		docFacts.HasApprovedNDA = approved
	}

	d := EvaluateDocumentRead(p, docFacts)
	if !d.Allow {
		return observe("document", d), nil, nil
	}
	return observe("document", d), doc, nil
}

// AuthorizeComponentRead decides read access to one RFP component.
func (e *Engine) AuthorizeComponentRead(ctx context.Context, p authz.Principal, componentID string) (Decision, *models.Component, error) {
	comp, err := e.store.RFPs().GetComponent(ctx, componentID)
	if err != nil {
		return Deny(), nil, fmt.Errorf("load component: %w", err)
	}
	if comp == nil {
		return observe("component", Deny()), nil, nil
	}

	facts, rfp, err := e.rfpFacts(ctx, p, comp.RFPID)
	if err != nil {
		return Deny(), nil, err
	}
	if rfp == nil {
		return observe("component", Deny()), nil, nil
	}

	d := EvaluateComponentRead(p, facts)
	if !d.Allow {
		return observe("component", d), nil, nil
	}
	return observe("component", d), comp, nil
}

// AuthorizeComponentList decides whether the principal may list the
// components of one RFP. Facts are loaded once for the whole listing.
func (e *Engine) AuthorizeComponentList(ctx context.Context, p authz.Principal, rfpID string) (Decision, error) {
	facts, rfp, err := e.rfpFacts(ctx, p, rfpID)
	if err != nil {
		return Deny(), err
	}
	if rfp == nil {
		return observe("component", Deny()), nil
	}
	return observe("component", EvaluateComponentRead(p, facts)), nil
}

// VisibleDocuments returns the documents of one RFP the principal may
// see. RFP and NDA facts are loaded once and shared across the listing.
// A forbidden RFP returns the same nil as a missing one, so the caller
// cannot tell an existing-but-hidden ID from a nonexistent one.
func (e *Engine) VisibleDocuments(ctx context.Context, p authz.Principal, rfpID string) ([]*models.Document, error) {
	facts, rfp, err := e.rfpFacts(ctx, p, rfpID)
	if err != nil {
		return nil, err
	}
	if rfp == nil {
		return nil, nil
	}
	if d := observe("rfp", EvaluateRFPRead(p, facts)); !d.Allow {
		return nil, nil
	}

	var hasNDA bool
	if !p.IsAnonymous() && !p.IsAdmin() {
		hasNDA, err = e.store.NDAs().HasApproved(ctx, rfpID, p.ID, p.CompanyID)
		if err != nil {
			return nil, fmt.Errorf("load nda facts: %w", err)
		}
	}

	docs, err := e.store.Documents().ListByRFP(ctx, rfpID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	visible := make([]*models.Document, 0, len(docs))
	for _, doc := range docs {
		docFacts := DocumentFacts{RFP: facts, RequiresNDA: doc.RequiresNDA, HasApprovedNDA: hasNDA}
		if d := observe("document", EvaluateDocumentRead(p, docFacts)); d.Allow {
			visible = append(visible, doc)
		}
	}
	return visible, nil
}

// VisibleRFPs filters a listing down to what the principal may read.
// Access-grant facts are loaded per confidential RFP only.
func (e *Engine) VisibleRFPs(ctx context.Context, p authz.Principal, rfps []*models.RFP) ([]*models.RFP, error) {
	visible := make([]*models.RFP, 0, len(rfps))
	for _, rfp := range rfps {
		facts := RFPFacts{
			ID:         rfp.ID,
			ClientID:   rfp.ClientID,
			Visibility: rfp.Visibility,
			Status:     rfp.Status,
		}
		if rfp.Visibility == models.VisibilityConfidential && !p.IsAnonymous() && !p.IsAdmin() {
			approved, err := e.store.Access().HasApproved(ctx, rfp.ID, p.ID)
			if err != nil {
				return nil, fmt.Errorf("load access facts: %w", err)
			}
			facts.HasApprovedAccess = approved
		}
		if d := observe("rfp", EvaluateRFPRead(p, facts)); d.Allow {
			visible = append(visible, rfp)
		}
	}
	return visible, nil
}

// AuthorizeProfile decides access to a user profile.
func (e *Engine) AuthorizeProfile(p authz.Principal, ownerID string, action Action) Decision {
	return observe("profile", EvaluateProfile(p, ownerID, action))
}

// AuthorizeNotification decides access to a notification.
func (e *Engine) AuthorizeNotification(p authz.Principal, ownerID string, action Action) Decision {
	return observe("notification", EvaluateNotification(p, ownerID, action))
}

// AuthorizeCompanyWrite decides company create/update.
func (e *Engine) AuthorizeCompanyWrite(p authz.Principal, companyID string, action Action) Decision {
	return observe("company", EvaluateCompanyWrite(p, companyID, action))
}

// AuthorizeOwnedRead decides read access to a principal-owned record
// (submission, NDA grant, access grant).
func (e *Engine) AuthorizeOwnedRead(p authz.Principal, ownerID string) Decision {
	return observe("owned", EvaluateOwnedRecordRead(p, ownerID))
}
