package notify

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/keen-violet-ibis/rfphub/internal/models"
	"github.com/keen-violet-ibis/rfphub/internal/storage"
)

func setupDispatcher(t *testing.T) (*Dispatcher, storage.Storage, func()) {
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
	return NewDispatcher(store), store, cleanup
}

func addUser(t *testing.T, store storage.Storage, email string, role models.Role) *models.User {
	t.Helper()
	u := models.NewUser(email, "Test User", role)
	u.ID = uuid.New().String()
	u.PasswordHash = "x"
	if err := store.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func notificationsOf(t *testing.T, store storage.Storage, userID string) []*models.Notification {
	t.Helper()
	ns, err := store.Notifications().ListForUser(context.Background(), userID, 100, 0)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	return ns
}

func TestDispatcher_UnknownKind(t *testing.T) {
	d, _, cleanup := setupDispatcher(t)
	defer cleanup()

	if err := d.OnTransition(context.Background(), Event{Kind: "no_such_kind"}); err == nil {
		t.Fatal("unknown kind should error")
	}
}

func TestDispatcher_RFPPublishedFansOutToBidders(t *testing.T) {
	d, store, cleanup := setupDispatcher(t)
	defer cleanup()
	ctx := context.Background()

	b1 := addUser(t, store, "b1@example.com", models.RoleBidder)
	b2 := addUser(t, store, "b2@example.com", models.RoleBidder)
	admin := addUser(t, store, "admin@example.com", models.RoleAdmin)

	err := d.OnTransition(ctx, Event{Kind: EventRFPPublished, RFPID: "rfp-1", RFPTitle: "Fleet Refresh"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	for _, b := range []*models.User{b1, b2} {
		ns := notificationsOf(t, store, b.ID)
		if len(ns) != 1 {
			t.Fatalf("bidder %s got %d notifications, want 1", b.Email, len(ns))
		}
		if ns[0].Type != models.NotifyRFPPublished || ns[0].ReferenceID != "rfp-1" {
			t.Fatalf("notification = %+v", ns[0])
		}
	}
	if ns := notificationsOf(t, store, admin.ID); len(ns) != 0 {
		t.Fatalf("admin got %d notifications, want 0", len(ns))
	}
}

func TestDispatcher_NDADecidedIndividual(t *testing.T) {
	d, store, cleanup := setupDispatcher(t)
	defer cleanup()
	ctx := context.Background()

	signer := addUser(t, store, "signer@example.com", models.RoleBidder)

	err := d.OnTransition(ctx, Event{
		Kind:     EventNDADecided,
		RFPID:    "rfp-1",
		RFPTitle: "Fleet Refresh",
		GrantID:  "grant-1",
		UserID:   signer.ID,
		Status:   models.GrantRejected,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	ns := notificationsOf(t, store, signer.ID)
	if len(ns) != 1 || ns[0].Type != models.NotifyNDARejected {
		t.Fatalf("notifications = %+v, want one nda_rejected", ns)
	}
}

func TestDispatcher_NDADecidedCompanyFansOutToMembers(t *testing.T) {
	d, store, cleanup := setupDispatcher(t)
	defer cleanup()
	ctx := context.Background()

	creator := addUser(t, store, "creator@example.com", models.RoleBidder)
	company := models.NewCompany("Acme Corporation", creator.ID)
	company.ID = uuid.New().String()
	if err := store.Companies().Create(ctx, company); err != nil {
		t.Fatalf("create company: %v", err)
	}

	m1 := addUser(t, store, "m1@example.com", models.RoleBidder)
	m2 := addUser(t, store, "m2@example.com", models.RoleBidder)
	outsider := addUser(t, store, "outsider@example.com", models.RoleBidder)
	for _, m := range []*models.User{m1, m2} {
		if err := store.Users().SetCompany(ctx, m.ID, company.ID, models.CompanyRoleMember); err != nil {
			t.Fatalf("set company: %v", err)
		}
	}

	err := d.OnTransition(ctx, Event{
		Kind:      EventNDADecided,
		RFPID:     "rfp-1",
		RFPTitle:  "Fleet Refresh",
		GrantID:   "grant-1",
		CompanyID: company.ID,
		Status:    models.GrantApproved,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	for _, m := range []*models.User{m1, m2} {
		ns := notificationsOf(t, store, m.ID)
		if len(ns) != 1 || ns[0].Type != models.NotifyNDAApproved {
			t.Fatalf("member %s notifications = %+v, want one nda_approved", m.Email, ns)
		}
	}
	if ns := notificationsOf(t, store, outsider.ID); len(ns) != 0 {
		t.Fatalf("outsider got %d notifications, want 0", len(ns))
	}
}

func TestDispatcher_QuestionAnswered(t *testing.T) {
	d, store, cleanup := setupDispatcher(t)
	defer cleanup()
	ctx := context.Background()

	asker := addUser(t, store, "asker@example.com", models.RoleBidder)

	err := d.OnTransition(ctx, Event{
		Kind:       EventQuestionAnswered,
		RFPTitle:   "Fleet Refresh",
		QuestionID: "q-1",
		AskerID:    asker.ID,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	ns := notificationsOf(t, store, asker.ID)
	if len(ns) != 1 || ns[0].Type != models.NotifyQuestionAnswered || ns[0].ReferenceID != "q-1" {
		t.Fatalf("notifications = %+v, want one question_answered for q-1", ns)
	}
}

func TestDispatcher_AccessDecided(t *testing.T) {
	d, store, cleanup := setupDispatcher(t)
	defer cleanup()
	ctx := context.Background()

	reviewer := addUser(t, store, "reviewer@example.com", models.RoleClientReviewer)

	for _, tt := range []struct {
		status models.GrantStatus
		want   models.NotificationType
	}{
		{models.GrantApproved, models.NotifyAccessGranted},
		{models.GrantRejected, models.NotifyAccessDenied},
	} {
		err := d.OnTransition(ctx, Event{
			Kind:     EventAccessDecided,
			RFPTitle: "Fleet Refresh",
			GrantID:  "grant-" + string(tt.status),
			UserID:   reviewer.ID,
			Status:   tt.status,
		})
		if err != nil {
			t.Fatalf("dispatch %s: %v", tt.status, err)
		}
	}

	ns := notificationsOf(t, store, reviewer.ID)
	if len(ns) != 2 {
		t.Fatalf("notifications = %d, want 2", len(ns))
	}
	seen := map[models.NotificationType]bool{}
	for _, n := range ns {
		seen[n.Type] = true
	}
	if !seen[models.NotifyAccessGranted] || !seen[models.NotifyAccessDenied] {
		t.Fatalf("types = %v, want granted and denied", seen)
	}
}

func TestDispatcher_FanOutSkipsEmptyRecipients(t *testing.T) {
	d, _, cleanup := setupDispatcher(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// An NDA decision with no principal at all writes nothing and does
	// not error.
	err := d.OnTransition(ctx, Event{
		Kind:     EventNDADecided,
		RFPTitle: "Fleet Refresh",
		Status:   models.GrantApproved,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
}
