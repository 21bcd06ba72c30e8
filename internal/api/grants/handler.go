// Package grants provides the NDA and confidential-access endpoints.
//
// Both grant kinds share the pending/approved/rejected state machine.
// Decisions fire notifications through the dispatcher only after the
// status change committed.
package grants

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/keen-violet-ibis/rfphub/internal/api/middleware"
	"github.com/keen-violet-ibis/rfphub/internal/models"
	"github.com/keen-violet-ibis/rfphub/internal/notify"
	"github.com/keen-violet-ibis/rfphub/internal/policy"
	"github.com/keen-violet-ibis/rfphub/internal/storage"
)

// Handler handles NDA and access grant endpoints.
type Handler struct {
	storage    storage.Storage
	engine     *policy.Engine
	dispatcher *notify.Dispatcher
}

// NewHandler creates a new grants handler.
func NewHandler(store storage.Storage, engine *policy.Engine, dispatcher *notify.Dispatcher) *Handler {
	return &Handler{storage: store, engine: engine, dispatcher: dispatcher}
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

// SignNDARequest is the body for signing an NDA on an RFP. Scope is
// "user" for an individual signature or "company" to sign on behalf of
// the caller's company.
type SignNDARequest struct {
	Scope string `json:"scope"`
}

// SignNDA records a pending NDA signature for the caller or the
// caller's company. The store enforces at most one grant per principal
// per RFP.
func (h *Handler) SignNDA(w http.ResponseWriter, r *http.Request) {
	rfpID := chi.URLParam(r, "id")
	p := middleware.GetPrincipal(r.Context())

	// Signing requires the RFP itself to be visible to the caller.
	d, rfp, err := h.engine.AuthorizeRFPRead(r.Context(), p, rfpID)
	if err != nil {
		log.Printf("sign nda on %s: %v", rfpID, err)
		jsonInternal(w)
		return
	}
	if !d.Allow {
		jsonNotFound(w)
		return
	}
	if rfp.Status == models.StatusClosed {
		jsonError(w, http.StatusConflict, "RFP_CLOSED", "RFP is closed and no longer accepts changes")
		return
	}

	var req SignNDARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	var grant *models.NDAGrant
	switch req.Scope {
	case "", "user":
		grant = models.NewUserNDA(rfpID, p.ID)
	case "company":
		if p.CompanyID == "" {
			jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "caller has no linked company")
			return
		}
		if p.CompanyRole != models.CompanyRoleAdmin {
			jsonError(w, http.StatusForbidden, "FORBIDDEN", "only company admins sign for the company")
			return
		}
		grant = models.NewCompanyNDA(rfpID, p.CompanyID)
	default:
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "scope must be user or company")
		return
	}

	grant.ID = uuid.New().String()
	now := time.Now()
	grant.SignedAt = &now

	if err := h.storage.NDAs().Create(r.Context(), grant); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			jsonError(w, http.StatusConflict, "CONFLICT", "NDA already signed for this RFP")
			return
		}
		log.Printf("sign nda on %s: %v", rfpID, err)
		jsonInternal(w)
		return
	}

	jsonCreated(w, grant)
}

// MyNDAs lists the caller's NDA grants.
func (h *Handler) MyNDAs(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	grants, err := h.storage.NDAs().ListForUser(r.Context(), p.ID)
	if err != nil {
		log.Printf("list ndas for %s: %v", p.ID, err)
		jsonInternal(w)
		return
	}

	jsonOK(w, grants)
}

// ListNDAsByRFP lists every NDA grant on an RFP. Admin only.
func (h *Handler) ListNDAsByRFP(w http.ResponseWriter, r *http.Request) {
	rfpID := chi.URLParam(r, "id")

	grants, err := h.storage.NDAs().ListByRFP(r.Context(), rfpID)
	if err != nil {
		log.Printf("list ndas on %s: %v", rfpID, err)
		jsonInternal(w)
		return
	}

	jsonOK(w, grants)
}

// ApproveNDA approves a pending NDA grant and notifies its principal.
func (h *Handler) ApproveNDA(w http.ResponseWriter, r *http.Request) {
	h.decideNDA(w, r, models.GrantApproved)
}

// RejectNDA rejects a pending NDA grant and notifies its principal.
func (h *Handler) RejectNDA(w http.ResponseWriter, r *http.Request) {
	h.decideNDA(w, r, models.GrantRejected)
}

func (h *Handler) decideNDA(w http.ResponseWriter, r *http.Request, status models.GrantStatus) {
	id := chi.URLParam(r, "grantID")

	grant, err := h.storage.NDAs().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("decide nda %s: %v", id, err)
		jsonInternal(w)
		return
	}
	if grant == nil {
		jsonNotFound(w)
		return
	}
	if grant.Status != models.GrantPending {
		jsonError(w, http.StatusConflict, "CONFLICT", "grant already decided")
		return
	}

	updated, err := h.storage.NDAs().SetStatus(r.Context(), id, status, time.Now())
	if err != nil {
		log.Printf("decide nda %s: %v", id, err)
		jsonInternal(w)
		return
	}
	// A concurrent decision won the conditional update; only the winner
	// fires the fan-out.
	if updated == nil {
		jsonError(w, http.StatusConflict, "CONFLICT", "grant already decided")
		return
	}

	rfp, err := h.storage.RFPs().GetByID(r.Context(), grant.RFPID)
	if err != nil || rfp == nil {
		log.Printf("decide nda %s: reload rfp %s: %v", id, grant.RFPID, err)
		jsonOK(w, updated)
		return
	}

	if err := h.dispatcher.OnTransition(r.Context(), notify.Event{
		Kind:      notify.EventNDADecided,
		RFPID:     rfp.ID,
		RFPTitle:  rfp.Title,
		GrantID:   grant.ID,
		UserID:    grant.UserID,
		CompanyID: grant.CompanyID,
		Status:    status,
	}); err != nil {
		log.Printf("decide nda %s: notification fan-out: %v", id, err)
	}

	jsonOK(w, updated)
}

// AccessRequest is the body for an access grant. UserID is honored for
// admin callers granting directly; reviewers request for themselves.
type AccessRequest struct {
	UserID string `json:"user_id"`
}

// RequestAccess creates a pending access request for a confidential RFP.
// Only client reviewers hold access grants; admins do not need them.
func (h *Handler) RequestAccess(w http.ResponseWriter, r *http.Request) {
	rfpID := chi.URLParam(r, "id")
	p := middleware.GetPrincipal(r.Context())

	if p.Role != models.RoleClientReviewer {
		jsonError(w, http.StatusForbidden, "FORBIDDEN", "only client reviewers request access")
		return
	}

	rfp, err := h.storage.RFPs().GetByID(r.Context(), rfpID)
	if err != nil {
		log.Printf("request access on %s: %v", rfpID, err)
		jsonInternal(w)
		return
	}
	// Requests target confidential RFPs; public ones need no grant. The
	// RFP is not required to be visible to the requester yet, but a
	// missing one still reads as not found.
	if rfp == nil {
		jsonNotFound(w)
		return
	}
	if rfp.Visibility != models.VisibilityConfidential {
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "access grants apply to confidential RFPs only")
		return
	}

	grant := models.NewAccessGrant(rfpID, p.ID)
	grant.ID = uuid.New().String()

	if err := h.storage.Access().Create(r.Context(), grant); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			jsonError(w, http.StatusConflict, "CONFLICT", "access already requested for this RFP")
			return
		}
		log.Printf("request access on %s: %v", rfpID, err)
		jsonInternal(w)
		return
	}

	jsonCreated(w, grant)
}

// GrantAccess creates an approved access grant directly. Admin only;
// the target user must hold the client_reviewer role.
func (h *Handler) GrantAccess(w http.ResponseWriter, r *http.Request) {
	rfpID := chi.URLParam(r, "id")

	var req AccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "user_id is required")
		return
	}

	rfp, err := h.storage.RFPs().GetByID(r.Context(), rfpID)
	if err != nil {
		log.Printf("grant access on %s: %v", rfpID, err)
		jsonInternal(w)
		return
	}
	if rfp == nil {
		jsonNotFound(w)
		return
	}

	target, err := h.storage.Users().GetByID(r.Context(), req.UserID)
	if err != nil {
		log.Printf("grant access on %s: %v", rfpID, err)
		jsonInternal(w)
		return
	}
	if target == nil {
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "target user not found")
		return
	}
	if target.Role != models.RoleClientReviewer {
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "access grants target client reviewers only")
		return
	}

	grant := models.NewAccessGrant(rfpID, target.ID)
	grant.ID = uuid.New().String()
	if err := h.storage.Access().Create(r.Context(), grant); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			jsonError(w, http.StatusConflict, "CONFLICT", "grant already exists for this user and RFP")
			return
		}
		log.Printf("grant access on %s: %v", rfpID, err)
		jsonInternal(w)
		return
	}

	updated, err := h.storage.Access().SetStatus(r.Context(), grant.ID, models.GrantApproved, time.Now())
	if err != nil {
		log.Printf("grant access on %s: %v", rfpID, err)
		jsonInternal(w)
		return
	}
	if updated == nil {
		jsonError(w, http.StatusConflict, "CONFLICT", "grant already decided")
		return
	}

	h.notifyAccess(r, rfp, updated)
	jsonCreated(w, updated)
}

// MyAccess lists the caller's access grants.
func (h *Handler) MyAccess(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	grants, err := h.storage.Access().ListForUser(r.Context(), p.ID)
	if err != nil {
		log.Printf("list access for %s: %v", p.ID, err)
		jsonInternal(w)
		return
	}

	jsonOK(w, grants)
}

// ListAccessByRFP lists every access grant on an RFP. Admin only.
func (h *Handler) ListAccessByRFP(w http.ResponseWriter, r *http.Request) {
	rfpID := chi.URLParam(r, "id")

	grants, err := h.storage.Access().ListByRFP(r.Context(), rfpID)
	if err != nil {
		log.Printf("list access on %s: %v", rfpID, err)
		jsonInternal(w)
		return
	}

	jsonOK(w, grants)
}

// ApproveAccess approves a pending access request and notifies the
// requester.
func (h *Handler) ApproveAccess(w http.ResponseWriter, r *http.Request) {
	h.decideAccess(w, r, models.GrantApproved)
}

// RejectAccess rejects a pending access request and notifies the
// requester.
func (h *Handler) RejectAccess(w http.ResponseWriter, r *http.Request) {
	h.decideAccess(w, r, models.GrantRejected)
}

func (h *Handler) decideAccess(w http.ResponseWriter, r *http.Request, status models.GrantStatus) {
	id := chi.URLParam(r, "grantID")

	grant, err := h.storage.Access().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("decide access %s: %v", id, err)
		jsonInternal(w)
		return
	}
	if grant == nil {
		jsonNotFound(w)
		return
	}
	if grant.Status != models.GrantPending {
		jsonError(w, http.StatusConflict, "CONFLICT", "grant already decided")
		return
	}

	updated, err := h.storage.Access().SetStatus(r.Context(), id, status, time.Now())
	if err != nil {
		log.Printf("decide access %s: %v", id, err)
		jsonInternal(w)
		return
	}
	// A concurrent decision won the conditional update; only the winner
	// fires the fan-out.
	if updated == nil {
		jsonError(w, http.StatusConflict, "CONFLICT", "grant already decided")
		return
	}

	rfp, err := h.storage.RFPs().GetByID(r.Context(), grant.RFPID)
	if err != nil || rfp == nil {
		log.Printf("decide access %s: reload rfp %s: %v", id, grant.RFPID, err)
		jsonOK(w, updated)
		return
	}

	h.notifyAccess(r, rfp, updated)
	jsonOK(w, updated)
}

func (h *Handler) notifyAccess(r *http.Request, rfp *models.RFP, grant *models.AccessGrant) {
	if err := h.dispatcher.OnTransition(r.Context(), notify.Event{
		Kind:     notify.EventAccessDecided,
		RFPID:    rfp.ID,
		RFPTitle: rfp.Title,
		GrantID:  grant.ID,
		UserID:   grant.UserID,
		Status:   grant.Status,
	}); err != nil {
		log.Printf("access grant %s: notification fan-out: %v", grant.ID, err)
	}
}
