// Package users provides the user profile and administration endpoints.
package users

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/keen-violet-ibis/rfphub/internal/api/auth"
	"github.com/keen-violet-ibis/rfphub/internal/api/middleware"
	"github.com/keen-violet-ibis/rfphub/internal/authz"
	"github.com/keen-violet-ibis/rfphub/internal/models"
	"github.com/keen-violet-ibis/rfphub/internal/policy"
	"github.com/keen-violet-ibis/rfphub/internal/storage"
)

// Handler handles user endpoints.
type Handler struct {
	storage  storage.Storage
	engine   *policy.Engine
	resolver *authz.Resolver
}

// NewHandler creates a new users handler.
func NewHandler(store storage.Storage, engine *policy.Engine, resolver *authz.Resolver) *Handler {
	return &Handler{storage: store, engine: engine, resolver: resolver}
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

func jsonNotFound(w http.ResponseWriter) {
	jsonError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
}

func jsonInternal(w http.ResponseWriter) {
	jsonError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

// UpdateProfileRequest is the body for self-service profile updates.
// Role is deliberately absent: role changes are a separate admin path.
type UpdateProfileRequest struct {
	FullName    *string `json:"full_name"`
	CompanyName *string `json:"company_name"`
}

// ChangePasswordRequest is the body for changing the caller's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// RoleRequest is the body for the admin role change endpoint.
type RoleRequest struct {
	Role string `json:"role"`
}

// Me returns the caller's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	user, err := h.storage.Users().GetByID(r.Context(), p.ID)
	if err != nil || user == nil {
		log.Printf("get profile %s: %v", p.ID, err)
		jsonInternal(w)
		return
	}

	jsonOK(w, user)
}

// UpdateMe updates the caller's own profile fields.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	if d := h.engine.AuthorizeProfile(p, p.ID, policy.ActionUpdate); !d.Allow {
		jsonError(w, http.StatusForbidden, "FORBIDDEN", "access denied")
		return
	}

	user, err := h.storage.Users().GetByID(r.Context(), p.ID)
	if err != nil || user == nil {
		log.Printf("update profile %s: %v", p.ID, err)
		jsonInternal(w)
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "full_name cannot be empty")
			return
		}
		user.FullName = name
	}
	if req.CompanyName != nil {
		user.CompanyName = strings.TrimSpace(*req.CompanyName)
	}

	if err := h.storage.Users().Update(r.Context(), user); err != nil {
		log.Printf("update profile %s: %v", p.ID, err)
		jsonInternal(w)
		return
	}

	jsonOK(w, user)
}

// ChangePassword verifies the current password and sets a new one.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	user, err := h.storage.Users().GetByID(r.Context(), p.ID)
	if err != nil || user == nil {
		log.Printf("change password %s: %v", p.ID, err)
		jsonInternal(w)
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		jsonError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials")
		return
	}
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		log.Printf("change password %s: %v", p.ID, err)
		jsonInternal(w)
		return
	}
	user.PasswordHash = hash

	if err := h.storage.Users().Update(r.Context(), user); err != nil {
		log.Printf("change password %s: %v", p.ID, err)
		jsonInternal(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List returns all users. Admin only.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.storage.Users().List(r.Context())
	if err != nil {
		log.Printf("list users: %v", err)
		jsonInternal(w)
		return
	}

	jsonOK(w, users)
}

// GetByID returns one user. Admin or self.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := middleware.GetPrincipal(r.Context())

	if d := h.engine.AuthorizeProfile(p, id, policy.ActionRead); !d.Allow {
		jsonNotFound(w)
		return
	}

	user, err := h.storage.Users().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("get user %s: %v", id, err)
		jsonInternal(w)
		return
	}
	if user == nil {
		jsonNotFound(w)
		return
	}

	jsonOK(w, user)
}

// UpdateRole changes a user's role and syncs the claim store so the
// next issued token matches the profile. Admin only.
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req RoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if !models.ValidRole(req.Role) {
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "role must be admin, client_reviewer, or bidder")
		return
	}

	user, err := h.storage.Users().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("update role %s: %v", id, err)
		jsonInternal(w)
		return
	}
	if user == nil {
		jsonNotFound(w)
		return
	}

	if err := h.storage.Users().UpdateRole(r.Context(), id, models.Role(req.Role)); err != nil {
		log.Printf("update role %s: %v", id, err)
		jsonInternal(w)
		return
	}

	if err := h.resolver.SyncRole(r.Context(), id); err != nil {
		log.Printf("update role %s: claim sync: %v", id, err)
	}

	user.Role = models.Role(req.Role)
	jsonOK(w, user)
}

// Delete removes a user. Admin only.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := middleware.GetPrincipal(r.Context())

	if id == p.ID {
		jsonError(w, http.StatusConflict, "CONFLICT", "cannot delete your own account")
		return
	}

	user, err := h.storage.Users().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("delete user %s: %v", id, err)
		jsonInternal(w)
		return
	}
	if user == nil {
		jsonNotFound(w)
		return
	}

	if err := h.storage.Users().Delete(r.Context(), id); err != nil {
		log.Printf("delete user %s: %v", id, err)
		jsonInternal(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
