package policy

import (
	"github.com/keen-violet-ibis/rfphub/internal/authz"
	"github.com/keen-violet-ibis/rfphub/internal/models"
)

// RFPFacts is the snapshot of one RFP plus the per-principal facts the
// rules need, loaded before evaluation.
type RFPFacts struct {
	ID         string
	ClientID   string
	Visibility models.Visibility
	Status     models.RFPStatus
	// HasApprovedAccess is true when an approved access grant exists for
	// (rfp, principal).
	HasApprovedAccess bool
}

// DocumentFacts is the snapshot for document visibility checks.
type DocumentFacts struct {
	RFP         RFPFacts
	RequiresNDA bool
	// HasApprovedNDA is true when an approved individual or company NDA
	// grant exists for (rfp, principal or principal's company).
	HasApprovedNDA bool
}

// EvaluateRFPRead: public RFPs are readable by anyone; confidential RFPs
// require admin or an approved access grant.
func EvaluateRFPRead(p authz.Principal, f RFPFacts) Decision {
	if p.IsAdmin() {
		return allow(ReasonAdmin)
	}
	if f.Visibility == models.VisibilityPublic {
		return allow(ReasonPublic)
	}
	if !p.IsAnonymous() && f.HasApprovedAccess {
		return allow(ReasonApprovedAccess)
	}
	return deny(ReasonNotVisible)
}

// EvaluateRFPWrite: create/update/delete on RFPs is admin only.
func EvaluateRFPWrite(p authz.Principal, _ RFPFacts, _ Action) Decision {
	if p.IsAdmin() {
		return allow(ReasonAdmin)
	}
	return deny(ReasonDenied)
}

// EvaluateDocumentRead: anonymous/public access requires the document to
// carry no NDA flag AND the owning RFP to be public and past draft.
// Otherwise an approved NDA grant (individual or company) or admin is
// required. Note the draft exclusion: components deliberately do not
// have it.
func EvaluateDocumentRead(p authz.Principal, f DocumentFacts) Decision {
	if p.IsAdmin() {
		return allow(ReasonAdmin)
	}
	if !f.RequiresNDA && f.RFP.Visibility == models.VisibilityPublic && f.RFP.Status != models.StatusDraft {
		return allow(ReasonPublic)
	}
	if !p.IsAnonymous() && f.HasApprovedNDA {
		return allow(ReasonApprovedNDA)
	}
	return deny(ReasonNotVisible)
}

// EvaluateComponentRead: components are visible whenever the owning RFP
// is public, regardless of lifecycle state. This is intentionally
// narrower than the document rule and must not be unified with it.
func EvaluateComponentRead(p authz.Principal, f RFPFacts) Decision {
	if p.IsAdmin() {
		return allow(ReasonAdmin)
	}
	if f.Visibility == models.VisibilityPublic {
		return allow(ReasonPublic)
	}
	if !p.IsAnonymous() && f.HasApprovedAccess {
		return allow(ReasonApprovedAccess)
	}
	return deny(ReasonNotVisible)
}

// EvaluateProfile: users read and update their own profile; admins
// everything. Self-update is limited to profile fields at the handler
// level (role changes are a separate admin-only path).
func EvaluateProfile(p authz.Principal, ownerID string, action Action) Decision {
	if p.IsAdmin() {
		return allow(ReasonAdmin)
	}
	if action != ActionRead && action != ActionUpdate {
		return deny(ReasonDenied)
	}
	if !p.IsAnonymous() && p.ID == ownerID {
		return allow(ReasonOwner)
	}
	return deny(ReasonNotVisible)
}

// EvaluateOwnedRecordRead covers a principal reading their own
// submissions, NDA grants, and access grants.
func EvaluateOwnedRecordRead(p authz.Principal, ownerID string) Decision {
	if p.IsAdmin() {
		return allow(ReasonAdmin)
	}
	if !p.IsAnonymous() && p.ID == ownerID {
		return allow(ReasonOwner)
	}
	return deny(ReasonNotVisible)
}

// EvaluateNotification: owner-only for both read and update; the only
// permitted update is setting read_at, which the store enforces as a
// null-to-timestamp transition.
func EvaluateNotification(p authz.Principal, ownerID string, action Action) Decision {
	if action != ActionRead && action != ActionUpdate {
		return deny(ReasonDenied)
	}
	if !p.IsAnonymous() && p.ID == ownerID {
		return allow(ReasonOwner)
	}
	// Admins do not read other users' notifications.
	return deny(ReasonNotVisible)
}

// EvaluateCompanyWrite: any authenticated principal may create a company
// with themselves as creator; updates require a company-admin role for
// that company (or admin).
func EvaluateCompanyWrite(p authz.Principal, companyID string, action Action) Decision {
	if action == ActionCreate {
		if p.IsAnonymous() {
			return deny(ReasonDenied)
		}
		return allow(ReasonOwner)
	}
	if p.IsAdmin() {
		return allow(ReasonAdmin)
	}
	if !p.IsAnonymous() && p.CompanyID == companyID && p.CompanyRole == models.CompanyRoleAdmin {
		return allow(ReasonCompanyAdmin)
	}
	return deny(ReasonDenied)
}
