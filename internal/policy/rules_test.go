package policy

import (
	"testing"

	"github.com/keen-violet-ibis/rfphub/internal/authz"
	"github.com/keen-violet-ibis/rfphub/internal/models"
)

func admin() authz.Principal {
	return authz.Principal{ID: "admin-1", Role: models.RoleAdmin}
}

func bidder() authz.Principal {
	return authz.Principal{ID: "bidder-1", Role: models.RoleBidder}
}

func reviewer() authz.Principal {
	return authz.Principal{ID: "reviewer-1", Role: models.RoleClientReviewer}
}

func TestEvaluateRFPRead(t *testing.T) {
	tests := []struct {
		name  string
		p     authz.Principal
		facts RFPFacts
		allow bool
	}{
		{"anonymous reads public", authz.Anonymous(), RFPFacts{Visibility: models.VisibilityPublic, Status: models.StatusActive}, true},
		{"anonymous denied confidential", authz.Anonymous(), RFPFacts{Visibility: models.VisibilityConfidential, Status: models.StatusActive}, false},
		{"bidder reads public", bidder(), RFPFacts{Visibility: models.VisibilityPublic, Status: models.StatusActive}, true},
		{"bidder denied confidential without grant", bidder(), RFPFacts{Visibility: models.VisibilityConfidential}, false},
		{"reviewer denied confidential without grant", reviewer(), RFPFacts{Visibility: models.VisibilityConfidential}, false},
		{"reviewer reads confidential with approved grant", reviewer(), RFPFacts{Visibility: models.VisibilityConfidential, HasApprovedAccess: true}, true},
		{"admin reads confidential", admin(), RFPFacts{Visibility: models.VisibilityConfidential}, true},
		{"anonymous never benefits from access flag", authz.Anonymous(), RFPFacts{Visibility: models.VisibilityConfidential, HasApprovedAccess: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := EvaluateRFPRead(tt.p, tt.facts)
			if d.Allow != tt.allow {
				t.Errorf("allow = %v (%s), want %v", d.Allow, d.Reason, tt.allow)
			}
		})
	}
}

func TestEvaluateRFPWrite(t *testing.T) {
	if d := EvaluateRFPWrite(admin(), RFPFacts{}, ActionCreate); !d.Allow {
		t.Errorf("admin create denied: %s", d.Reason)
	}
	for _, p := range []authz.Principal{authz.Anonymous(), bidder(), reviewer()} {
		if d := EvaluateRFPWrite(p, RFPFacts{}, ActionUpdate); d.Allow {
			t.Errorf("principal %q should not write RFPs", p.ID)
		}
	}
}

func TestEvaluateDocumentRead(t *testing.T) {
	publicActive := RFPFacts{Visibility: models.VisibilityPublic, Status: models.StatusActive}
	publicDraft := RFPFacts{Visibility: models.VisibilityPublic, Status: models.StatusDraft}
	confidential := RFPFacts{Visibility: models.VisibilityConfidential, Status: models.StatusActive}

	tests := []struct {
		name  string
		p     authz.Principal
		facts DocumentFacts
		allow bool
	}{
		{"anonymous reads open document on active public rfp", authz.Anonymous(), DocumentFacts{RFP: publicActive}, true},
		{"draft excludes even open documents", authz.Anonymous(), DocumentFacts{RFP: publicDraft}, false},
		{"draft excludes bidders too", bidder(), DocumentFacts{RFP: publicDraft}, false},
		{"nda document hidden without grant", bidder(), DocumentFacts{RFP: publicActive, RequiresNDA: true}, false},
		{"nda document visible with approved grant", bidder(), DocumentFacts{RFP: publicActive, RequiresNDA: true, HasApprovedNDA: true}, true},
		{"nda grant does not help anonymous", authz.Anonymous(), DocumentFacts{RFP: publicActive, RequiresNDA: true, HasApprovedNDA: true}, false},
		{"confidential rfp hides open documents", bidder(), DocumentFacts{RFP: confidential}, false},
		{"admin reads anything", admin(), DocumentFacts{RFP: publicDraft, RequiresNDA: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := EvaluateDocumentRead(tt.p, tt.facts)
			if d.Allow != tt.allow {
				t.Errorf("allow = %v (%s), want %v", d.Allow, d.Reason, tt.allow)
			}
		})
	}
}

// Components stay visible on public draft RFPs while documents do not.
// The two rules look similar but must not converge.
func TestComponentAndDocumentDraftAsymmetry(t *testing.T) {
	publicDraft := RFPFacts{Visibility: models.VisibilityPublic, Status: models.StatusDraft}

	if d := EvaluateComponentRead(bidder(), publicDraft); !d.Allow {
		t.Errorf("component on public draft denied: %s", d.Reason)
	}
	if d := EvaluateDocumentRead(bidder(), DocumentFacts{RFP: publicDraft}); d.Allow {
		t.Error("document on public draft should be hidden")
	}
}

func TestEvaluateComponentRead(t *testing.T) {
	confidential := RFPFacts{Visibility: models.VisibilityConfidential}

	if d := EvaluateComponentRead(authz.Anonymous(), confidential); d.Allow {
		t.Error("anonymous should not see confidential components")
	}
	if d := EvaluateComponentRead(reviewer(), confidential); d.Allow {
		t.Error("reviewer without grant should not see confidential components")
	}
	withAccess := confidential
	withAccess.HasApprovedAccess = true
	if d := EvaluateComponentRead(reviewer(), withAccess); !d.Allow {
		t.Errorf("reviewer with approved access denied: %s", d.Reason)
	}
}

func TestEvaluateProfile(t *testing.T) {
	owner := bidder()

	if d := EvaluateProfile(owner, owner.ID, ActionRead); !d.Allow {
		t.Errorf("self read denied: %s", d.Reason)
	}
	if d := EvaluateProfile(owner, owner.ID, ActionUpdate); !d.Allow {
		t.Errorf("self update denied: %s", d.Reason)
	}
	if d := EvaluateProfile(owner, "someone-else", ActionRead); d.Allow {
		t.Error("foreign profile read should be denied")
	}
	if d := EvaluateProfile(owner, owner.ID, ActionDelete); d.Allow {
		t.Error("self delete is not a profile operation")
	}
	if d := EvaluateProfile(admin(), "someone-else", ActionDelete); !d.Allow {
		t.Errorf("admin delete denied: %s", d.Reason)
	}
}

func TestEvaluateNotification(t *testing.T) {
	owner := bidder()

	if d := EvaluateNotification(owner, owner.ID, ActionRead); !d.Allow {
		t.Errorf("owner read denied: %s", d.Reason)
	}
	if d := EvaluateNotification(owner, owner.ID, ActionUpdate); !d.Allow {
		t.Errorf("owner mark-read denied: %s", d.Reason)
	}
	if d := EvaluateNotification(owner, "someone-else", ActionRead); d.Allow {
		t.Error("foreign notification should read as missing")
	}
	// Notifications are private even from admins.
	if d := EvaluateNotification(admin(), "someone-else", ActionRead); d.Allow {
		t.Error("admin should not read other users' notifications")
	}
	if d := EvaluateNotification(owner, owner.ID, ActionDelete); d.Allow {
		t.Error("notifications are never deleted through policy")
	}
}

func TestEvaluateCompanyWrite(t *testing.T) {
	member := authz.Principal{ID: "u1", Role: models.RoleBidder, CompanyID: "c1", CompanyRole: models.CompanyRoleMember}
	companyAdmin := authz.Principal{ID: "u2", Role: models.RoleBidder, CompanyID: "c1", CompanyRole: models.CompanyRoleAdmin}

	if d := EvaluateCompanyWrite(authz.Anonymous(), "", ActionCreate); d.Allow {
		t.Error("anonymous should not create companies")
	}
	if d := EvaluateCompanyWrite(member, "", ActionCreate); !d.Allow {
		t.Errorf("authenticated create denied: %s", d.Reason)
	}
	if d := EvaluateCompanyWrite(member, "c1", ActionUpdate); d.Allow {
		t.Error("plain member should not update the company")
	}
	if d := EvaluateCompanyWrite(companyAdmin, "c1", ActionUpdate); !d.Allow {
		t.Errorf("company admin update denied: %s", d.Reason)
	}
	if d := EvaluateCompanyWrite(companyAdmin, "other-company", ActionUpdate); d.Allow {
		t.Error("company admin of a different company should be denied")
	}
	if d := EvaluateCompanyWrite(admin(), "c1", ActionUpdate); !d.Allow {
		t.Errorf("admin update denied: %s", d.Reason)
	}
}

func TestDenyReasonsDoNotLeakExistence(t *testing.T) {
	// A confidential RFP denies with the same reason whether or not a
	// pending (unapproved) grant exists; only approval changes anything.
	noGrant := EvaluateRFPRead(reviewer(), RFPFacts{Visibility: models.VisibilityConfidential})
	pendingGrant := EvaluateRFPRead(reviewer(), RFPFacts{Visibility: models.VisibilityConfidential, HasApprovedAccess: false})
	if noGrant != pendingGrant {
		t.Errorf("deny decisions differ: %+v vs %+v", noGrant, pendingGrant)
	}
	if noGrant.Reason != ReasonNotVisible {
		t.Errorf("reason = %s, want %s", noGrant.Reason, ReasonNotVisible)
	}
}
