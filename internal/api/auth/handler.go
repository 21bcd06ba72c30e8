package auth

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/keen-violet-ibis/rfphub/internal/authz"
	"github.com/keen-violet-ibis/rfphub/internal/linkage"
	"github.com/keen-violet-ibis/rfphub/internal/models"
	"github.com/keen-violet-ibis/rfphub/internal/storage"
)

// Handler handles authentication endpoints.
type Handler struct {
	storage    storage.Storage
	jwtService *JWTService
	resolver   *authz.Resolver
	linker     *linkage.Resolver
}

// NewHandler creates a new auth handler.
func NewHandler(store storage.Storage, jwt *JWTService, resolver *authz.Resolver, linker *linkage.Resolver) *Handler {
	return &Handler{
		storage:    store,
		jwtService: jwt,
		resolver:   resolver,
		linker:     linker,
	}
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

// LoginRequest is the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresIn   int          `json:"expires_in"` // seconds
	TokenType   string       `json:"token_type"`
	User        *models.User `json:"user"`
}

// SignupRequest is the self-service registration body. CompanyName is
// free text; linkage to a real company record happens via auto-join
// domain at signup or via the reconciliation batch later.
type SignupRequest struct {
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	Password    string `json:"password"`
	CompanyName string `json:"company_name"`
}

// Login authenticates a user and issues an access token. The role claim
// embedded in the token is synced to the claim store so the resolver can
// detect later drift.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	user, err := h.storage.Users().GetByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		log.Printf("login lookup failed: %v", err)
		jsonError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	// Same response for unknown email and wrong password.
	if user == nil || !CheckPassword(user.PasswordHash, req.Password) {
		jsonError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials")
		return
	}

	token, err := h.jwtService.GenerateToken(user)
	if err != nil {
		log.Printf("token generation failed for %s: %v", user.ID, err)
		jsonError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	if err := h.resolver.SyncRole(r.Context(), user.ID); err != nil {
		// Token still carries the profile role; the sync is repair state.
		log.Printf("role claim sync for %s: %v", user.ID, err)
	}

	jsonOK(w, LoginResponse{
		AccessToken: token,
		ExpiresIn:   h.jwtService.TTLSeconds(),
		TokenType:   "Bearer",
		User:        user,
	})
}

// Signup registers a new bidder account. If the email domain matches a
// company's verified auto-join domain the account is linked immediately;
// otherwise the free-text company name is kept for batch reconciliation.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "valid email is required")
		return
	}
	if strings.TrimSpace(req.FullName) == "" {
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "full name is required")
		return
	}
	if err := ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		log.Printf("signup hash failed: %v", err)
		jsonError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	user := models.NewUser(email, strings.TrimSpace(req.FullName), models.RoleBidder)
	user.ID = uuid.New().String()
	user.PasswordHash = hash
	user.CompanyName = strings.TrimSpace(req.CompanyName)

	companyID, err := h.linker.LinkByEmailDomain(r.Context(), email)
	if err != nil {
		log.Printf("signup auto-join lookup for %s: %v", email, err)
	} else if companyID != "" {
		user.CompanyID = companyID
		user.CompanyRole = models.CompanyRoleMember
		user.CompanyName = ""
	}

	if err := h.storage.Users().Create(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			jsonError(w, http.StatusConflict, "CONFLICT", "email already registered")
			return
		}
		log.Printf("signup create failed: %v", err)
		jsonError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	if err := h.resolver.SyncRole(r.Context(), user.ID); err != nil {
		log.Printf("role claim sync for %s: %v", user.ID, err)
	}

	jsonCreated(w, user)
}
