package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/keen-violet-ibis/rfphub/internal/models"
)

func setupTestDB(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "rfphub-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")

	store := NewSQLiteStorage(dbPath)
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

	return store, cleanup
}

func newTestUser(t *testing.T, store *SQLiteStorage, email string, role models.Role) *models.User {
	t.Helper()

	user := models.NewUser(email, "Test User", role)
	user.ID = uuid.New().String()
	user.PasswordHash = "hashed-password"
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return user
}

func newTestRFP(t *testing.T, store *SQLiteStorage, clientID string, vis models.Visibility, closing time.Time) *models.RFP {
	t.Helper()

	rfp := models.NewRFP("Test RFP", clientID, vis, closing)
	rfp.ID = uuid.New().String()
	if err := store.RFPs().Create(context.Background(), rfp); err != nil {
		t.Fatalf("create rfp: %v", err)
	}
	return rfp
}

func TestSQLiteStorage_Migrate(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	tables := []string{
		"users", "companies", "company_members", "company_link_audit",
		"rfps", "milestones", "components", "documents",
		"nda_grants", "rfp_access", "notifications", "questions",
		"auth_claims", "schema_migrations",
	}
	for _, table := range tables {
		var count int
		err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s should exist: %v", table, err)
		}
	}
}

func TestUserRepository_CRUD(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := newTestUser(t, store, "crud@example.com", models.RoleBidder)

	got, err := store.Users().GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user by id: %v", err)
	}
	if got == nil || got.Email != "crud@example.com" {
		t.Fatalf("got %+v, want email crud@example.com", got)
	}

	got.FullName = "Renamed"
	if err := store.Users().Update(ctx, got); err != nil {
		t.Fatalf("update user: %v", err)
	}

	byEmail, err := store.Users().GetByEmail(ctx, "crud@example.com")
	if err != nil {
		t.Fatalf("get user by email: %v", err)
	}
	if byEmail.FullName != "Renamed" {
		t.Errorf("full name = %q, want Renamed", byEmail.FullName)
	}

	if err := store.Users().Delete(ctx, user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	gone, err := store.Users().GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get deleted user: %v", err)
	}
	if gone != nil {
		t.Error("user should be gone after delete")
	}
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	newTestUser(t, store, "dup@example.com", models.RoleBidder)

	second := models.NewUser("dup@example.com", "Other", models.RoleBidder)
	second.ID = uuid.New().String()
	second.PasswordHash = "x"
	err := store.Users().Create(ctx, second)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestUserRepository_ListUnlinked(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	linked := newTestUser(t, store, "linked@example.com", models.RoleBidder)
	_ = linked

	unlinked := models.NewUser("pending@example.com", "Pending", models.RoleBidder)
	unlinked.ID = uuid.New().String()
	unlinked.PasswordHash = "x"
	unlinked.CompanyName = "Acme Corp"
	if err := store.Users().Create(ctx, unlinked); err != nil {
		t.Fatalf("create user: %v", err)
	}

	got, err := store.Users().ListUnlinked(ctx)
	if err != nil {
		t.Fatalf("list unlinked: %v", err)
	}
	if len(got) != 1 || got[0].ID != unlinked.ID {
		t.Fatalf("unlinked = %v, want exactly the pending user", got)
	}
}

func TestRFPRepository_TransitionStatus(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	client := newTestUser(t, store, "client@example.com", models.RoleAdmin)
	rfp := newTestRFP(t, store, client.ID, models.VisibilityPublic, time.Now().Add(24*time.Hour))

	moved, err := store.RFPs().TransitionStatus(ctx, rfp.ID, models.StatusDraft, models.StatusActive)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !moved {
		t.Fatal("draft -> active should succeed")
	}

	// Second identical transition loses the race: already active.
	moved, err = store.RFPs().TransitionStatus(ctx, rfp.ID, models.StatusDraft, models.StatusActive)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if moved {
		t.Fatal("draft -> active should not apply twice")
	}

	got, err := store.RFPs().GetByID(ctx, rfp.ID)
	if err != nil {
		t.Fatalf("get rfp: %v", err)
	}
	if got.Status != models.StatusActive {
		t.Errorf("status = %s, want active", got.Status)
	}
}

func TestRFPRepository_CloseExpired(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	client := newTestUser(t, store, "client@example.com", models.RoleAdmin)
	now := time.Now()

	expired := newTestRFP(t, store, client.ID, models.VisibilityPublic, now.Add(-time.Hour))
	future := newTestRFP(t, store, client.ID, models.VisibilityPublic, now.Add(time.Hour))

	for _, r := range []*models.RFP{expired, future} {
		if _, err := store.RFPs().TransitionStatus(ctx, r.ID, models.StatusDraft, models.StatusActive); err != nil {
			t.Fatalf("activate rfp: %v", err)
		}
	}

	ids, err := store.RFPs().CloseExpired(ctx, now)
	if err != nil {
		t.Fatalf("close expired: %v", err)
	}
	if len(ids) != 1 || ids[0] != expired.ID {
		t.Fatalf("closed ids = %v, want [%s]", ids, expired.ID)
	}

	// A repeated sweep finds nothing: the transition is one-way and
	// already-closed rows never match again.
	ids, err = store.RFPs().CloseExpired(ctx, now)
	if err != nil {
		t.Fatalf("close expired again: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("second sweep closed %v, want none", ids)
	}

	got, _ := store.RFPs().GetByID(ctx, future.ID)
	if got.Status != models.StatusActive {
		t.Errorf("future rfp status = %s, want active", got.Status)
	}
}

func TestRFPRepository_UpdateDoesNotTouchStatus(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	client := newTestUser(t, store, "client@example.com", models.RoleAdmin)
	rfp := newTestRFP(t, store, client.ID, models.VisibilityPublic, time.Now().Add(time.Hour))

	// Attempt to smuggle a status change through a content update.
	rfp.Status = models.StatusActive
	rfp.Title = "Edited"
	if err := store.RFPs().Update(ctx, rfp); err != nil {
		t.Fatalf("update rfp: %v", err)
	}

	got, _ := store.RFPs().GetByID(ctx, rfp.ID)
	if got.Status != models.StatusDraft {
		t.Errorf("status = %s, want draft (updates never change status)", got.Status)
	}
	if got.Title != "Edited" {
		t.Errorf("title = %q, want Edited", got.Title)
	}
}

func TestRFPRepository_Milestones(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	client := newTestUser(t, store, "client@example.com", models.RoleAdmin)
	rfp := newTestRFP(t, store, client.ID, models.VisibilityPublic, time.Now().Add(time.Hour))

	ms := []models.Milestone{
		{ID: uuid.New().String(), RFPID: rfp.ID, Title: "Q&A deadline", Date: time.Now().Add(12 * time.Hour)},
		{ID: uuid.New().String(), RFPID: rfp.ID, Title: "Submission", Date: time.Now().Add(24 * time.Hour)},
	}
	if err := store.RFPs().ReplaceMilestones(ctx, rfp.ID, ms); err != nil {
		t.Fatalf("replace milestones: %v", err)
	}

	got, err := store.RFPs().GetMilestones(ctx, rfp.ID)
	if err != nil {
		t.Fatalf("get milestones: %v", err)
	}
	if len(got) != 2 || got[0].Title != "Q&A deadline" || got[1].Position != 1 {
		t.Fatalf("milestones = %+v", got)
	}

	// Replacement is total, not additive.
	if err := store.RFPs().ReplaceMilestones(ctx, rfp.ID, ms[:1]); err != nil {
		t.Fatalf("replace milestones: %v", err)
	}
	got, _ = store.RFPs().GetMilestones(ctx, rfp.ID)
	if len(got) != 1 {
		t.Fatalf("milestones after replace = %d, want 1", len(got))
	}
}

func TestNDARepository_UniquePerPrincipal(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	client := newTestUser(t, store, "client@example.com", models.RoleAdmin)
	bidder := newTestUser(t, store, "bidder@example.com", models.RoleBidder)
	rfp := newTestRFP(t, store, client.ID, models.VisibilityPublic, time.Now().Add(time.Hour))

	first := models.NewUserNDA(rfp.ID, bidder.ID)
	first.ID = uuid.New().String()
	if err := store.NDAs().Create(ctx, first); err != nil {
		t.Fatalf("create nda: %v", err)
	}

	second := models.NewUserNDA(rfp.ID, bidder.ID)
	second.ID = uuid.New().String()
	if err := store.NDAs().Create(ctx, second); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestNDARepository_HasApproved(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	client := newTestUser(t, store, "client@example.com", models.RoleAdmin)
	bidder := newTestUser(t, store, "bidder@example.com", models.RoleBidder)
	rfp := newTestRFP(t, store, client.ID, models.VisibilityPublic, time.Now().Add(time.Hour))

	company := models.NewCompany("Acme Corporation", client.ID)
	company.ID = uuid.New().String()
	if err := store.Companies().Create(ctx, company); err != nil {
		t.Fatalf("create company: %v", err)
	}

	// Pending grants do not count.
	grant := models.NewUserNDA(rfp.ID, bidder.ID)
	grant.ID = uuid.New().String()
	if err := store.NDAs().Create(ctx, grant); err != nil {
		t.Fatalf("create nda: %v", err)
	}
	ok, err := store.NDAs().HasApproved(ctx, rfp.ID, bidder.ID, "")
	if err != nil {
		t.Fatalf("has approved: %v", err)
	}
	if ok {
		t.Fatal("pending grant should not count as approved")
	}

	if _, err := store.NDAs().SetStatus(ctx, grant.ID, models.GrantApproved, time.Now()); err != nil {
		t.Fatalf("approve nda: %v", err)
	}
	ok, _ = store.NDAs().HasApproved(ctx, rfp.ID, bidder.ID, "")
	if !ok {
		t.Fatal("approved individual grant should count")
	}

	// Company-level grant covers members who never signed individually.
	other := newTestUser(t, store, "member@example.com", models.RoleBidder)
	companyGrant := models.NewCompanyNDA(rfp.ID, company.ID)
	companyGrant.ID = uuid.New().String()
	if err := store.NDAs().Create(ctx, companyGrant); err != nil {
		t.Fatalf("create company nda: %v", err)
	}
	if _, err := store.NDAs().SetStatus(ctx, companyGrant.ID, models.GrantApproved, time.Now()); err != nil {
		t.Fatalf("approve company nda: %v", err)
	}

	ok, _ = store.NDAs().HasApproved(ctx, rfp.ID, other.ID, company.ID)
	if !ok {
		t.Fatal("approved company grant should cover members")
	}
}

// A decided grant never flips: the second decision loses the
// conditional update, gets nil back, and the stored status stands.
func TestNDARepository_SetStatusSingleWinner(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	client := newTestUser(t, store, "client@example.com", models.RoleAdmin)
	bidder := newTestUser(t, store, "bidder@example.com", models.RoleBidder)
	rfp := newTestRFP(t, store, client.ID, models.VisibilityPublic, time.Now().Add(time.Hour))

	grant := models.NewUserNDA(rfp.ID, bidder.ID)
	grant.ID = uuid.New().String()
	if err := store.NDAs().Create(ctx, grant); err != nil {
		t.Fatalf("create nda: %v", err)
	}

	approved, err := store.NDAs().SetStatus(ctx, grant.ID, models.GrantApproved, time.Now())
	if err != nil {
		t.Fatalf("approve nda: %v", err)
	}
	if approved == nil || approved.Status != models.GrantApproved {
		t.Fatalf("winner = %+v, want approved grant", approved)
	}

	lost, err := store.NDAs().SetStatus(ctx, grant.ID, models.GrantRejected, time.Now())
	if err != nil {
		t.Fatalf("second decision: %v", err)
	}
	if lost != nil {
		t.Fatalf("second decision returned %+v, want nil", lost)
	}

	got, err := store.NDAs().GetByID(ctx, grant.ID)
	if err != nil {
		t.Fatalf("reload grant: %v", err)
	}
	if got.Status != models.GrantApproved {
		t.Fatalf("status = %s, want approved to stand", got.Status)
	}
}

func TestAccessRepository_SetStatusSingleWinner(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	client := newTestUser(t, store, "client@example.com", models.RoleAdmin)
	reviewer := newTestUser(t, store, "reviewer@example.com", models.RoleClientReviewer)
	rfp := newTestRFP(t, store, client.ID, models.VisibilityConfidential, time.Now().Add(time.Hour))

	grant := models.NewAccessGrant(rfp.ID, reviewer.ID)
	grant.ID = uuid.New().String()
	if err := store.Access().Create(ctx, grant); err != nil {
		t.Fatalf("create grant: %v", err)
	}

	rejected, err := store.Access().SetStatus(ctx, grant.ID, models.GrantRejected, time.Now())
	if err != nil {
		t.Fatalf("reject grant: %v", err)
	}
	if rejected == nil || rejected.Status != models.GrantRejected {
		t.Fatalf("winner = %+v, want rejected grant", rejected)
	}

	lost, err := store.Access().SetStatus(ctx, grant.ID, models.GrantApproved, time.Now())
	if err != nil {
		t.Fatalf("second decision: %v", err)
	}
	if lost != nil {
		t.Fatalf("second decision returned %+v, want nil", lost)
	}

	got, err := store.Access().GetByID(ctx, grant.ID)
	if err != nil {
		t.Fatalf("reload grant: %v", err)
	}
	if got.Status != models.GrantRejected {
		t.Fatalf("status = %s, want rejected to stand", got.Status)
	}
}

func TestNotificationRepository_MarkReadMonotonic(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := newTestUser(t, store, "reader@example.com", models.RoleBidder)

	n := models.NewNotification(user.ID, models.NotifyRFPPublished, "New RFP", "msg", "ref")
	n.ID = uuid.New().String()
	if err := store.Notifications().Create(ctx, n); err != nil {
		t.Fatalf("create notification: %v", err)
	}

	count, err := store.Notifications().CountUnread(ctx, user.ID)
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if count != 1 {
		t.Fatalf("unread = %d, want 1", count)
	}

	first := time.Now()
	marked, err := store.Notifications().MarkRead(ctx, n.ID, user.ID, first)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !marked {
		t.Fatal("first mark should apply")
	}

	// Second mark is a no-op: read_at never moves.
	marked, err = store.Notifications().MarkRead(ctx, n.ID, user.ID, first.Add(time.Hour))
	if err != nil {
		t.Fatalf("mark read again: %v", err)
	}
	if marked {
		t.Fatal("second mark should not apply")
	}

	got, _ := store.Notifications().GetByID(ctx, n.ID)
	if got.ReadAt == nil {
		t.Fatal("read_at should be set")
	}
	if got.ReadAt.Sub(first) > time.Second {
		t.Errorf("read_at = %v, want the first mark time", got.ReadAt)
	}

	// A different user cannot mark someone else's notification.
	other := newTestUser(t, store, "other@example.com", models.RoleBidder)
	marked, _ = store.Notifications().MarkRead(ctx, n.ID, other.ID, time.Now())
	if marked {
		t.Fatal("foreign mark should not apply")
	}
}

func TestCompanyRepository_MemberIDsDeduplicates(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	creator := newTestUser(t, store, "creator@example.com", models.RoleBidder)
	company := models.NewCompany("Acme Corporation", creator.ID)
	company.ID = uuid.New().String()
	if err := store.Companies().Create(ctx, company); err != nil {
		t.Fatalf("create company: %v", err)
	}

	// One user reachable three ways: FK, text match, and membership row.
	tripled := newTestUser(t, store, "tripled@example.com", models.RoleBidder)
	if err := store.Users().SetCompany(ctx, tripled.ID, company.ID, models.CompanyRoleMember); err != nil {
		t.Fatalf("set company: %v", err)
	}
	loaded, _ := store.Users().GetByID(ctx, tripled.ID)
	loaded.CompanyName = "acme corporation"
	if err := store.Users().Update(ctx, loaded); err != nil {
		t.Fatalf("update user: %v", err)
	}
	if err := store.Companies().AddMember(ctx, &models.CompanyMember{
		CompanyID: company.ID, UserID: tripled.ID, Role: models.CompanyRoleMember,
	}); err != nil {
		t.Fatalf("add member: %v", err)
	}

	// One user reachable only by text match.
	texty := models.NewUser("texty@example.com", "Texty", models.RoleBidder)
	texty.ID = uuid.New().String()
	texty.PasswordHash = "x"
	texty.CompanyName = "Acme Corporation"
	if err := store.Users().Create(ctx, texty); err != nil {
		t.Fatalf("create user: %v", err)
	}

	ids, err := store.Companies().MemberIDs(ctx, company.ID)
	if err != nil {
		t.Fatalf("member ids: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("member ids = %v, want 2 distinct users", ids)
	}
}

func TestQuestionRepository_PublishOnce(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	client := newTestUser(t, store, "client@example.com", models.RoleAdmin)
	asker := newTestUser(t, store, "asker@example.com", models.RoleBidder)
	rfp := newTestRFP(t, store, client.ID, models.VisibilityPublic, time.Now().Add(time.Hour))

	q := models.NewQuestion(rfp.ID, asker.ID, "What is the budget?")
	q.ID = uuid.New().String()
	if err := store.Questions().Create(ctx, q); err != nil {
		t.Fatalf("create question: %v", err)
	}

	ok, err := store.Questions().Publish(ctx, q.ID, "Ten units.", time.Now())
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !ok {
		t.Fatal("first publish should win")
	}

	ok, err = store.Questions().Publish(ctx, q.ID, "Different answer.", time.Now())
	if err != nil {
		t.Fatalf("publish again: %v", err)
	}
	if ok {
		t.Fatal("second publish should lose")
	}

	got, _ := store.Questions().GetByID(ctx, q.ID)
	if got.Answer != "Ten units." {
		t.Errorf("answer = %q, want the winning answer", got.Answer)
	}
	if got.Status != models.QuestionPublished {
		t.Errorf("status = %s, want published", got.Status)
	}

	// Published listing excludes pending questions.
	pending := models.NewQuestion(rfp.ID, asker.ID, "Second question")
	pending.ID = uuid.New().String()
	if err := store.Questions().Create(ctx, pending); err != nil {
		t.Fatalf("create question: %v", err)
	}
	published, _ := store.Questions().ListByRFP(ctx, rfp.ID, true)
	if len(published) != 1 {
		t.Fatalf("published questions = %d, want 1", len(published))
	}
	all, _ := store.Questions().ListByRFP(ctx, rfp.ID, false)
	if len(all) != 2 {
		t.Fatalf("all questions = %d, want 2", len(all))
	}
}

func TestClaimRepository_Upsert(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := newTestUser(t, store, "claims@example.com", models.RoleBidder)

	if err := store.Claims().Upsert(ctx, user.ID, models.RoleBidder, time.Now()); err != nil {
		t.Fatalf("upsert claim: %v", err)
	}
	if err := store.Claims().Upsert(ctx, user.ID, models.RoleClientReviewer, time.Now()); err != nil {
		t.Fatalf("upsert claim again: %v", err)
	}

	claim, err := store.Claims().Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("get claim: %v", err)
	}
	if claim == nil || claim.Role != models.RoleClientReviewer {
		t.Fatalf("claim = %+v, want client_reviewer", claim)
	}
}

func TestDocumentRepository_Ancestors(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	client := newTestUser(t, store, "client@example.com", models.RoleAdmin)
	rfp := newTestRFP(t, store, client.ID, models.VisibilityPublic, time.Now().Add(time.Hour))

	root := models.NewFolder(rfp.ID, "", "root")
	root.ID = uuid.New().String()
	child := models.NewFolder(rfp.ID, root.ID, "child")
	child.ID = uuid.New().String()
	leaf := models.NewDocument(rfp.ID, "spec.pdf", "/files/spec.pdf", false)
	leaf.ID = uuid.New().String()
	leaf.ParentID = child.ID

	for _, d := range []*models.Document{root, child, leaf} {
		if err := store.Documents().Create(ctx, d); err != nil {
			t.Fatalf("create document: %v", err)
		}
	}

	ancestors, err := store.Documents().Ancestors(ctx, leaf.ID)
	if err != nil {
		t.Fatalf("ancestors: %v", err)
	}
	if len(ancestors) != 2 || ancestors[0] != child.ID || ancestors[1] != root.ID {
		t.Fatalf("ancestors = %v, want [%s %s]", ancestors, child.ID, root.ID)
	}
}
