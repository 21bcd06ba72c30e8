// Package companies provides company, membership, and linkage
// endpoints.
package companies

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/keen-violet-ibis/rfphub/internal/api/middleware"
	"github.com/keen-violet-ibis/rfphub/internal/linkage"
	"github.com/keen-violet-ibis/rfphub/internal/models"
	"github.com/keen-violet-ibis/rfphub/internal/policy"
	"github.com/keen-violet-ibis/rfphub/internal/storage"
)

// Handler handles company endpoints.
type Handler struct {
	storage storage.Storage
	engine  *policy.Engine
	linker  *linkage.Resolver
}

// NewHandler creates a new companies handler.
func NewHandler(store storage.Storage, engine *policy.Engine, linker *linkage.Resolver) *Handler {
	return &Handler{storage: store, engine: engine, linker: linker}
}

// Response helpers (local to avoid import cycle with api package)

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type dataResponse struct {
	Data any `json:"data"`
}

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func jsonCreated(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func jsonNotFound(w http.ResponseWriter) {
	jsonError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
}

func jsonInternal(w http.ResponseWriter) {
	jsonError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

// CreateRequest is the body for creating a company.
type CreateRequest struct {
	Name           string `json:"name"`
	AutoJoinDomain string `json:"auto_join_domain"`
}

// UpdateRequest is the body for updating a company. DomainVerified is
// settable by admins only.
type UpdateRequest struct {
	Name           *string `json:"name"`
	AutoJoinDomain *string `json:"auto_join_domain"`
	DomainVerified *bool   `json:"domain_verified"`
}

// MemberRequest adds a secondary membership.
type MemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Create registers a company with the caller as creator and company
// admin.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	if d := h.engine.AuthorizeCompanyWrite(p, "", policy.ActionCreate); !d.Allow {
		jsonError(w, http.StatusForbidden, "FORBIDDEN", "access denied")
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "name is required")
		return
	}

	company := models.NewCompany(req.Name, p.ID)
	company.ID = uuid.New().String()
	company.AutoJoinDomain = strings.ToLower(strings.TrimSpace(req.AutoJoinDomain))

	if err := h.storage.Companies().Create(r.Context(), company); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			jsonError(w, http.StatusConflict, "CONFLICT", "company name already taken")
			return
		}
		log.Printf("create company: %v", err)
		jsonInternal(w)
		return
	}

	// The creator becomes the company's first admin.
	if err := h.storage.Users().SetCompany(r.Context(), p.ID, company.ID, models.CompanyRoleAdmin); err != nil {
		log.Printf("create company %s: link creator: %v", company.ID, err)
	}

	jsonCreated(w, company)
}

// Get returns one company.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	company, err := h.storage.Companies().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("get company %s: %v", id, err)
		jsonInternal(w)
		return
	}
	if company == nil {
		jsonNotFound(w)
		return
	}

	jsonOK(w, company)
}

// Update modifies a company. Company admins update name and domain;
// marking the domain verified is reserved for admins.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := middleware.GetPrincipal(r.Context())

	if d := h.engine.AuthorizeCompanyWrite(p, id, policy.ActionUpdate); !d.Allow {
		jsonError(w, http.StatusForbidden, "FORBIDDEN", "access denied")
		return
	}

	company, err := h.storage.Companies().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("update company %s: %v", id, err)
		jsonInternal(w)
		return
	}
	if company == nil {
		jsonNotFound(w)
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "name cannot be empty")
			return
		}
		company.Name = name
	}
	if req.AutoJoinDomain != nil {
		company.AutoJoinDomain = strings.ToLower(strings.TrimSpace(*req.AutoJoinDomain))
		// A changed domain needs re-verification.
		company.DomainVerified = false
	}
	if req.DomainVerified != nil {
		if !p.IsAdmin() {
			jsonError(w, http.StatusForbidden, "FORBIDDEN", "domain verification is admin only")
			return
		}
		company.DomainVerified = *req.DomainVerified
	}

	if err := h.storage.Companies().Update(r.Context(), company); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			jsonError(w, http.StatusConflict, "CONFLICT", "company name already taken")
			return
		}
		log.Printf("update company %s: %v", id, err)
		jsonInternal(w)
		return
	}

	jsonOK(w, company)
}

// MemberCount returns the deduplicated member count: FK-linked users,
// text-matched users, and secondary memberships counted once each.
func (h *Handler) MemberCount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	company, err := h.storage.Companies().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("member count %s: %v", id, err)
		jsonInternal(w)
		return
	}
	if company == nil {
		jsonNotFound(w)
		return
	}

	count, err := h.linker.MemberCount(r.Context(), id)
	if err != nil {
		log.Printf("member count %s: %v", id, err)
		jsonInternal(w)
		return
	}

	jsonOK(w, map[string]int{"member_count": count})
}

// AddMember records a secondary membership. Company admin or admin.
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := middleware.GetPrincipal(r.Context())

	if d := h.engine.AuthorizeCompanyWrite(p, id, policy.ActionUpdate); !d.Allow {
		jsonError(w, http.StatusForbidden, "FORBIDDEN", "access denied")
		return
	}

	var req MemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "user_id is required")
		return
	}
	if req.Role == "" {
		req.Role = string(models.CompanyRoleMember)
	}
	if !models.ValidCompanyRole(req.Role) {
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "role must be admin, member, or collaborator")
		return
	}

	target, err := h.storage.Users().GetByID(r.Context(), req.UserID)
	if err != nil {
		log.Printf("add member to %s: %v", id, err)
		jsonInternal(w)
		return
	}
	if target == nil {
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "target user not found")
		return
	}

	m := &models.CompanyMember{CompanyID: id, UserID: req.UserID, Role: models.CompanyRole(req.Role)}
	if err := h.storage.Companies().AddMember(r.Context(), m); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			jsonError(w, http.StatusConflict, "CONFLICT", "user is already a member")
			return
		}
		log.Printf("add member to %s: %v", id, err)
		jsonInternal(w)
		return
	}

	// A user without a primary affiliation adopts this one, so the
	// assigned company role reaches the resolved principal and the
	// company-write rule.
	if target.CompanyID == "" {
		if err := h.storage.Users().SetCompany(r.Context(), target.ID, id, m.Role); err != nil {
			log.Printf("add member to %s: set primary affiliation: %v", id, err)
			jsonInternal(w)
			return
		}
	}

	jsonCreated(w, m)
}

// RemoveMember drops a secondary membership. Company admin or admin.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := chi.URLParam(r, "userID")
	p := middleware.GetPrincipal(r.Context())

	if d := h.engine.AuthorizeCompanyWrite(p, id, policy.ActionUpdate); !d.Allow {
		jsonError(w, http.StatusForbidden, "FORBIDDEN", "access denied")
		return
	}

	if err := h.storage.Companies().RemoveMember(r.Context(), id, userID); err != nil {
		log.Printf("remove member %s from %s: %v", userID, id, err)
		jsonInternal(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Reconcile runs the free-text company linkage batch. Admin only.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	result, err := h.linker.ReconcileAll(r.Context())
	if err != nil {
		log.Printf("reconcile companies: %v", err)
		jsonInternal(w)
		return
	}

	jsonOK(w, result)
}

// LinkAudits lists recent linkage audit entries. Admin only.
func (h *Handler) LinkAudits(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	audits, err := h.storage.Companies().ListLinkAudits(r.Context(), limit)
	if err != nil {
		log.Printf("list link audits: %v", err)
		jsonInternal(w)
		return
	}

	jsonOK(w, audits)
}
