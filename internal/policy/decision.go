// Package policy implements the authorization decision engine.
//
// Decisions are pure functions of (principal snapshot, resource facts,
// action). Facts are loaded up front by the Engine; no rule ever queries
// the resource type it is protecting to establish privilege, and
// admin-ness always comes from the already-materialized principal.
// A deny is a normal result, never an error.
package policy

// Action is the operation being authorized.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Decision is the allow/deny outcome with a short machine-readable reason.
type Decision struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason"`
}

// Decision reasons. Deny reasons never distinguish "missing" from
// "forbidden": confidential resources resolve to the same not-visible
// outcome either way.
const (
	ReasonAdmin          = "admin"
	ReasonOwner          = "owner"
	ReasonPublic         = "public"
	ReasonApprovedAccess = "approved_access"
	ReasonApprovedNDA    = "approved_nda"
	ReasonCompanyAdmin   = "company_admin"
	ReasonNotVisible     = "not_visible"
	ReasonDenied         = "denied"
)

func allow(reason string) Decision {
	return Decision{Allow: true, Reason: reason}
}

func deny(reason string) Decision {
	return Decision{Allow: false, Reason: reason}
}

// Deny is the canonical not-visible decision.
func Deny() Decision {
	return deny(ReasonNotVisible)
}
