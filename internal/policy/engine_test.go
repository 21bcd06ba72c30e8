package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/keen-violet-ibis/rfphub/internal/authz"
	"github.com/keen-violet-ibis/rfphub/internal/models"
	"github.com/keen-violet-ibis/rfphub/internal/storage"
)

func setupEngine(t *testing.T) (*Engine, storage.Storage, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "rfphub-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}

	store := storage.NewSQLiteStorage(filepath.Join(tmpDir, "test.db"))
	if err := store.Open(); err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("open database: %v", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		os.RemoveAll(tmpDir)
		t.Fatalf("migrate database: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}
	return NewEngine(store), store, cleanup
}

func seedUser(t *testing.T, store storage.Storage, email string, role models.Role) *models.User {
	t.Helper()
	u := models.NewUser(email, "Test User", role)
	u.ID = uuid.New().String()
	u.PasswordHash = "x"
	if err := store.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func seedRFP(t *testing.T, store storage.Storage, clientID string, vis models.Visibility, status models.RFPStatus) *models.RFP {
	t.Helper()
	ctx := context.Background()
	r := models.NewRFP("Test RFP", clientID, vis, time.Now().Add(24*time.Hour))
	r.ID = uuid.New().String()
	if err := store.RFPs().Create(ctx, r); err != nil {
		t.Fatalf("create rfp: %v", err)
	}
	if status != models.StatusDraft {
		if _, err := store.RFPs().TransitionStatus(ctx, r.ID, models.StatusDraft, models.StatusActive); err != nil {
			t.Fatalf("activate rfp: %v", err)
		}
		r.Status = models.StatusActive
	}
	if status == models.StatusClosed {
		if _, err := store.RFPs().TransitionStatus(ctx, r.ID, models.StatusActive, models.StatusClosed); err != nil {
			t.Fatalf("close rfp: %v", err)
		}
		r.Status = models.StatusClosed
	}
	return r
}

func principalFor(u *models.User) authz.Principal {
	return authz.Principal{ID: u.ID, Email: u.Email, Role: u.Role, CompanyID: u.CompanyID, CompanyRole: u.CompanyRole}
}

// Missing and forbidden RFPs produce byte-identical outcomes, so a
// prober cannot use the decision shape to learn whether an ID exists.
func TestEngine_MissingAndForbiddenIndistinguishable(t *testing.T) {
	engine, store, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	admin := seedUser(t, store, "admin@example.com", models.RoleAdmin)
	bidder := seedUser(t, store, "bidder@example.com", models.RoleBidder)
	confidential := seedRFP(t, store, admin.ID, models.VisibilityConfidential, models.StatusActive)

	p := principalFor(bidder)

	dForbidden, rfpForbidden, err := engine.AuthorizeRFPRead(ctx, p, confidential.ID)
	if err != nil {
		t.Fatalf("authorize forbidden: %v", err)
	}
	dMissing, rfpMissing, err := engine.AuthorizeRFPRead(ctx, p, uuid.New().String())
	if err != nil {
		t.Fatalf("authorize missing: %v", err)
	}

	if dForbidden != dMissing {
		t.Errorf("decisions differ: %+v vs %+v", dForbidden, dMissing)
	}
	if rfpForbidden != nil || rfpMissing != nil {
		t.Error("neither outcome should carry the resource")
	}
}

func TestEngine_AuthorizeRFPRead(t *testing.T) {
	engine, store, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	admin := seedUser(t, store, "admin@example.com", models.RoleAdmin)
	reviewer := seedUser(t, store, "reviewer@example.com", models.RoleClientReviewer)
	confidential := seedRFP(t, store, admin.ID, models.VisibilityConfidential, models.StatusActive)

	p := principalFor(reviewer)

	d, rfp, err := engine.AuthorizeRFPRead(ctx, p, confidential.ID)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if d.Allow || rfp != nil {
		t.Fatal("reviewer without grant should be denied")
	}

	// Approve an access grant; the same read now succeeds.
	grant := models.NewAccessGrant(confidential.ID, reviewer.ID)
	grant.ID = uuid.New().String()
	if err := store.Access().Create(ctx, grant); err != nil {
		t.Fatalf("create grant: %v", err)
	}
	if _, err := store.Access().SetStatus(ctx, grant.ID, models.GrantApproved, time.Now()); err != nil {
		t.Fatalf("approve grant: %v", err)
	}

	d, rfp, err = engine.AuthorizeRFPRead(ctx, p, confidential.ID)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !d.Allow || rfp == nil {
		t.Fatalf("reviewer with approved grant denied: %+v", d)
	}
}

func TestEngine_VisibleDocuments(t *testing.T) {
	engine, store, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	admin := seedUser(t, store, "admin@example.com", models.RoleAdmin)
	bidder := seedUser(t, store, "bidder@example.com", models.RoleBidder)
	rfp := seedRFP(t, store, admin.ID, models.VisibilityPublic, models.StatusActive)

	open := models.NewDocument(rfp.ID, "overview.pdf", "/files/overview.pdf", false)
	open.ID = uuid.New().String()
	gated := models.NewDocument(rfp.ID, "pricing.xlsx", "/files/pricing.xlsx", true)
	gated.ID = uuid.New().String()
	for _, d := range []*models.Document{open, gated} {
		if err := store.Documents().Create(ctx, d); err != nil {
			t.Fatalf("create document: %v", err)
		}
	}

	p := principalFor(bidder)

	// Without an NDA only the open document is listed.
	docs, err := engine.VisibleDocuments(ctx, p, rfp.ID)
	if err != nil {
		t.Fatalf("visible documents: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != open.ID {
		t.Fatalf("docs = %v, want just the open one", docs)
	}

	// An approved NDA reveals the gated document too.
	nda := models.NewUserNDA(rfp.ID, bidder.ID)
	nda.ID = uuid.New().String()
	if err := store.NDAs().Create(ctx, nda); err != nil {
		t.Fatalf("create nda: %v", err)
	}
	if _, err := store.NDAs().SetStatus(ctx, nda.ID, models.GrantApproved, time.Now()); err != nil {
		t.Fatalf("approve nda: %v", err)
	}

	docs, err = engine.VisibleDocuments(ctx, p, rfp.ID)
	if err != nil {
		t.Fatalf("visible documents: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("docs = %d, want 2", len(docs))
	}

	// A missing RFP lists as empty, same as a hidden one.
	docs, err = engine.VisibleDocuments(ctx, p, uuid.New().String())
	if err != nil {
		t.Fatalf("visible documents: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("missing rfp listed %d documents", len(docs))
	}
}

// A confidential RFP the caller may not read lists exactly like a
// missing one: nil, never an empty slice, so the HTTP layer cannot leak
// existence through a 200-with-[] versus 404 split.
func TestEngine_VisibleDocumentsHiddenRFPIndistinguishable(t *testing.T) {
	engine, store, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	admin := seedUser(t, store, "admin@example.com", models.RoleAdmin)
	bidder := seedUser(t, store, "bidder@example.com", models.RoleBidder)
	confidential := seedRFP(t, store, admin.ID, models.VisibilityConfidential, models.StatusActive)

	doc := models.NewDocument(confidential.ID, "overview.pdf", "/files/overview.pdf", false)
	doc.ID = uuid.New().String()
	if err := store.Documents().Create(ctx, doc); err != nil {
		t.Fatalf("create document: %v", err)
	}

	p := principalFor(bidder)

	hidden, err := engine.VisibleDocuments(ctx, p, confidential.ID)
	if err != nil {
		t.Fatalf("visible documents: %v", err)
	}
	missing, err := engine.VisibleDocuments(ctx, p, uuid.New().String())
	if err != nil {
		t.Fatalf("visible documents: %v", err)
	}

	if hidden != nil {
		t.Errorf("hidden rfp listed %v, want nil", hidden)
	}
	if missing != nil {
		t.Errorf("missing rfp listed %v, want nil", missing)
	}

	// nil is the denial shape only; an allowed caller gets the listing.
	docs, err := engine.VisibleDocuments(ctx, principalFor(admin), confidential.ID)
	if err != nil {
		t.Fatalf("visible documents: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("admin docs = %d, want 1", len(docs))
	}
}

func TestEngine_VisibleDocumentsCompanyNDA(t *testing.T) {
	engine, store, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	admin := seedUser(t, store, "admin@example.com", models.RoleAdmin)
	member := seedUser(t, store, "member@example.com", models.RoleBidder)
	rfp := seedRFP(t, store, admin.ID, models.VisibilityPublic, models.StatusActive)

	company := models.NewCompany("Acme Corporation", member.ID)
	company.ID = uuid.New().String()
	if err := store.Companies().Create(ctx, company); err != nil {
		t.Fatalf("create company: %v", err)
	}
	if err := store.Users().SetCompany(ctx, member.ID, company.ID, models.CompanyRoleMember); err != nil {
		t.Fatalf("set company: %v", err)
	}

	gated := models.NewDocument(rfp.ID, "pricing.xlsx", "/files/pricing.xlsx", true)
	gated.ID = uuid.New().String()
	if err := store.Documents().Create(ctx, gated); err != nil {
		t.Fatalf("create document: %v", err)
	}

	nda := models.NewCompanyNDA(rfp.ID, company.ID)
	nda.ID = uuid.New().String()
	if err := store.NDAs().Create(ctx, nda); err != nil {
		t.Fatalf("create nda: %v", err)
	}
	if _, err := store.NDAs().SetStatus(ctx, nda.ID, models.GrantApproved, time.Now()); err != nil {
		t.Fatalf("approve nda: %v", err)
	}

	// The member never signed individually; the company grant covers them.
	reloaded, _ := store.Users().GetByID(ctx, member.ID)
	docs, err := engine.VisibleDocuments(ctx, principalFor(reloaded), rfp.ID)
	if err != nil {
		t.Fatalf("visible documents: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != gated.ID {
		t.Fatalf("docs = %v, want the gated document via company nda", docs)
	}
}

func TestEngine_VisibleRFPs(t *testing.T) {
	engine, store, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	admin := seedUser(t, store, "admin@example.com", models.RoleAdmin)
	reviewer := seedUser(t, store, "reviewer@example.com", models.RoleClientReviewer)

	public := seedRFP(t, store, admin.ID, models.VisibilityPublic, models.StatusActive)
	granted := seedRFP(t, store, admin.ID, models.VisibilityConfidential, models.StatusActive)
	hidden := seedRFP(t, store, admin.ID, models.VisibilityConfidential, models.StatusActive)

	grant := models.NewAccessGrant(granted.ID, reviewer.ID)
	grant.ID = uuid.New().String()
	if err := store.Access().Create(ctx, grant); err != nil {
		t.Fatalf("create grant: %v", err)
	}
	if _, err := store.Access().SetStatus(ctx, grant.ID, models.GrantApproved, time.Now()); err != nil {
		t.Fatalf("approve grant: %v", err)
	}

	all := []*models.RFP{public, granted, hidden}

	visible, err := engine.VisibleRFPs(ctx, principalFor(reviewer), all)
	if err != nil {
		t.Fatalf("visible rfps: %v", err)
	}
	ids := map[string]bool{}
	for _, r := range visible {
		ids[r.ID] = true
	}
	if len(visible) != 2 || !ids[public.ID] || !ids[granted.ID] {
		t.Fatalf("visible = %v, want public and granted only", ids)
	}

	// Anonymous sees public only; admin sees everything.
	visible, _ = engine.VisibleRFPs(ctx, authz.Anonymous(), all)
	if len(visible) != 1 || visible[0].ID != public.ID {
		t.Fatalf("anonymous visible = %d, want just the public rfp", len(visible))
	}
	visible, _ = engine.VisibleRFPs(ctx, principalFor(admin), all)
	if len(visible) != 3 {
		t.Fatalf("admin visible = %d, want all 3", len(visible))
	}
}

func TestEngine_AuthorizeComponentList(t *testing.T) {
	engine, store, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	admin := seedUser(t, store, "admin@example.com", models.RoleAdmin)
	bidder := seedUser(t, store, "bidder@example.com", models.RoleBidder)

	// Components on a public draft are listable; this is where the
	// component rule diverges from the document rule.
	draft := seedRFP(t, store, admin.ID, models.VisibilityPublic, models.StatusDraft)
	d, err := engine.AuthorizeComponentList(ctx, principalFor(bidder), draft.ID)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !d.Allow {
		t.Fatalf("component list on public draft denied: %s", d.Reason)
	}

	confidential := seedRFP(t, store, admin.ID, models.VisibilityConfidential, models.StatusActive)
	d, err = engine.AuthorizeComponentList(ctx, principalFor(bidder), confidential.ID)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if d.Allow {
		t.Fatal("component list on confidential rfp should be denied")
	}
}
