package companies

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/keen-violet-ibis/rfphub/internal/api/auth"
	"github.com/keen-violet-ibis/rfphub/internal/api/middleware"
	"github.com/keen-violet-ibis/rfphub/internal/authz"
	"github.com/keen-violet-ibis/rfphub/internal/linkage"
	"github.com/keen-violet-ibis/rfphub/internal/models"
	"github.com/keen-violet-ibis/rfphub/internal/policy"
	"github.com/keen-violet-ibis/rfphub/internal/storage"
)

type testEnv struct {
	store    storage.Storage
	engine   *policy.Engine
	resolver *authz.Resolver
	jwt      *auth.JWTService
	router   chi.Router
}

func setupHandler(t *testing.T) (*testEnv, func()) {
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

	engine := policy.NewEngine(store)
	resolver := authz.NewResolver(store.Users(), store.Claims())
	jwtSvc := auth.NewJWTService([]byte("test-secret-at-least-32-bytes-long"), time.Hour)
	h := NewHandler(store, engine, linkage.NewResolver(store))

	r := chi.NewRouter()
	r.With(middleware.JWTAuth(jwtSvc, resolver)).
		Post("/companies/{id}/members", h.AddMember)

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}
	return &testEnv{store: store, engine: engine, resolver: resolver, jwt: jwtSvc, router: r}, cleanup
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

func seedCompany(t *testing.T, store storage.Storage, name string) *models.Company {
	t.Helper()
	c := models.NewCompany(name, "")
	c.ID = uuid.New().String()
	if err := store.Companies().Create(context.Background(), c); err != nil {
		t.Fatalf("create company: %v", err)
	}
	return c
}

// Assigning a user to a company as its admin must make subsequent
// company updates by that user authorize: the membership has to reach
// the principal the auth middleware materializes, not just the
// membership table.
func TestAddMember_AssignedRoleReachesAuthorization(t *testing.T) {
	env, cleanup := setupHandler(t)
	defer cleanup()
	ctx := context.Background()

	admin := seedUser(t, env.store, "admin@example.com", models.RoleAdmin)
	assignee := seedUser(t, env.store, "assignee@example.com", models.RoleBidder)
	outsider := seedUser(t, env.store, "outsider@example.com", models.RoleBidder)
	company := seedCompany(t, env.store, "Acme Corporation")

	token, err := env.jwt.GenerateToken(admin)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	body := bytes.NewBufferString(`{"user_id":"` + assignee.ID + `","role":"admin"}`)
	req := httptest.NewRequest(http.MethodPost, "/companies/"+company.ID+"/members", body)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Resolve the assignee the way the middleware does on their next
	// request; the company-write rule must now allow.
	p, err := env.resolver.Resolve(ctx, authz.Identity{UserID: assignee.ID, Email: assignee.Email, Role: assignee.Role})
	if err != nil {
		t.Fatalf("resolve assignee: %v", err)
	}
	if p.CompanyID != company.ID || p.CompanyRole != models.CompanyRoleAdmin {
		t.Fatalf("principal affiliation = %q/%q, want company admin", p.CompanyID, p.CompanyRole)
	}
	if d := env.engine.AuthorizeCompanyWrite(p, company.ID, policy.ActionUpdate); !d.Allow {
		t.Fatalf("assignee update denied: %s", d.Reason)
	}

	// A user never assigned stays denied.
	q, err := env.resolver.Resolve(ctx, authz.Identity{UserID: outsider.ID, Email: outsider.Email, Role: outsider.Role})
	if err != nil {
		t.Fatalf("resolve outsider: %v", err)
	}
	if d := env.engine.AuthorizeCompanyWrite(q, company.ID, policy.ActionUpdate); d.Allow {
		t.Fatal("outsider update should be denied")
	}
}

// A user whose primary affiliation is already set keeps it; a secondary
// membership elsewhere never rewrites the users-table link.
func TestAddMember_KeepsExistingPrimaryAffiliation(t *testing.T) {
	env, cleanup := setupHandler(t)
	defer cleanup()
	ctx := context.Background()

	admin := seedUser(t, env.store, "admin@example.com", models.RoleAdmin)
	member := seedUser(t, env.store, "member@example.com", models.RoleBidder)
	home := seedCompany(t, env.store, "Acme Corporation")
	other := seedCompany(t, env.store, "Globex")

	if err := env.store.Users().SetCompany(ctx, member.ID, home.ID, models.CompanyRoleMember); err != nil {
		t.Fatalf("set company: %v", err)
	}

	token, err := env.jwt.GenerateToken(admin)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	body := bytes.NewBufferString(`{"user_id":"` + member.ID + `","role":"collaborator"}`)
	req := httptest.NewRequest(http.MethodPost, "/companies/"+other.ID+"/members", body)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	got, err := env.store.Users().GetByID(ctx, member.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if got.CompanyID != home.ID || got.CompanyRole != models.CompanyRoleMember {
		t.Fatalf("affiliation = %q/%q, want the original one", got.CompanyID, got.CompanyRole)
	}
}

func TestAddMember_UnknownTargetRejected(t *testing.T) {
	env, cleanup := setupHandler(t)
	defer cleanup()

	admin := seedUser(t, env.store, "admin@example.com", models.RoleAdmin)
	company := seedCompany(t, env.store, "Acme Corporation")

	token, err := env.jwt.GenerateToken(admin)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	body := bytes.NewBufferString(`{"user_id":"` + uuid.New().String() + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/companies/"+company.ID+"/members", body)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
