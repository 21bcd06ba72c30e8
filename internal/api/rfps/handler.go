// Package rfps provides the RFP endpoints: CRUD, lifecycle transitions,
// milestones, and components.
package rfps

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/keen-violet-ibis/rfphub/internal/api/middleware"
	"github.com/keen-violet-ibis/rfphub/internal/lifecycle"
	"github.com/keen-violet-ibis/rfphub/internal/models"
	"github.com/keen-violet-ibis/rfphub/internal/policy"
	"github.com/keen-violet-ibis/rfphub/internal/storage"
)

// Handler handles RFP endpoints.
type Handler struct {
	storage   storage.Storage
	engine    *policy.Engine
	lifecycle *lifecycle.Manager
}

// NewHandler creates a new RFP handler.
func NewHandler(store storage.Storage, engine *policy.Engine, lc *lifecycle.Manager) *Handler {
	return &Handler{storage: store, engine: engine, lifecycle: lc}
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

// Create creates a draft RFP. Admin only (enforced by routing, rechecked
// against the policy engine).
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if d, err := h.engine.AuthorizeRFPWrite(r.Context(), p, "", policy.ActionCreate); err != nil || !d.Allow {
		jsonError(w, http.StatusForbidden, "FORBIDDEN", "access denied")
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if msg := req.Validate(); msg != "" {
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", msg)
		return
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = p.ID
	}

	rfp := models.NewRFP(req.Title, clientID, models.Visibility(req.Visibility), req.ClosingDate)
	rfp.ID = uuid.New().String()
	rfp.Description = req.Description

	if err := h.storage.RFPs().Create(r.Context(), rfp); err != nil {
		log.Printf("create rfp: %v", err)
		jsonInternal(w)
		return
	}

	jsonCreated(w, rfp)
}

// List returns the RFPs visible to the caller. When the listing is
// filtered by status, expired-but-active RFPs are closed first so the
// result never shows a stale active row.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	filter := storage.RFPFilter{
		ClientID: r.URL.Query().Get("client_id"),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		filter.Status = models.RFPStatus(s)
		if err := h.lifecycle.Reconcile(r.Context()); err != nil {
			log.Printf("list rfps: reconcile: %v", err)
			jsonInternal(w)
			return
		}
	}
	if v := r.URL.Query().Get("visibility"); v != "" {
		filter.Visibility = models.Visibility(v)
	}

	rfps, err := h.storage.RFPs().List(r.Context(), filter)
	if err != nil {
		log.Printf("list rfps: %v", err)
		jsonInternal(w)
		return
	}

	visible, err := h.engine.VisibleRFPs(r.Context(), p, rfps)
	if err != nil {
		log.Printf("list rfps: %v", err)
		jsonInternal(w)
		return
	}

	jsonOK(w, visible)
}

// Get returns one RFP. The effective status is recomputed first so a
// just-expired RFP reads as closed.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := middleware.GetPrincipal(r.Context())

	if _, err := h.lifecycle.CurrentStatus(r.Context(), id); err != nil {
		// Missing RFPs fall through to the same not-visible deny below.
		log.Printf("get rfp %s: status guard: %v", id, err)
	}

	d, rfp, err := h.engine.AuthorizeRFPRead(r.Context(), p, id)
	if err != nil {
		log.Printf("get rfp %s: %v", id, err)
		jsonInternal(w)
		return
	}
	if !d.Allow {
		jsonNotFound(w)
		return
	}

	ms, err := h.storage.RFPs().GetMilestones(r.Context(), rfp.ID)
	if err != nil {
		log.Printf("get rfp %s: milestones: %v", id, err)
		jsonInternal(w)
		return
	}
	rfp.Milestones = ms

	jsonOK(w, rfp)
}

// Update modifies a draft or active RFP's content fields. Admin only.
// The effective status is recomputed first: an update racing with
// deadline passage lands on a closed RFP and is rejected.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := middleware.GetPrincipal(r.Context())

	if d, err := h.engine.AuthorizeRFPWrite(r.Context(), p, id, policy.ActionUpdate); err != nil || !d.Allow {
		jsonError(w, http.StatusForbidden, "FORBIDDEN", "access denied")
		return
	}

	status, err := h.lifecycle.CurrentStatus(r.Context(), id)
	if err != nil {
		jsonNotFound(w)
		return
	}
	if status == models.StatusClosed {
		jsonError(w, http.StatusConflict, "RFP_CLOSED", "RFP is closed and no longer accepts changes")
		return
	}

	rfp, err := h.storage.RFPs().GetByID(r.Context(), id)
	if err != nil || rfp == nil {
		jsonNotFound(w)
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if msg := req.Validate(); msg != "" {
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", msg)
		return
	}
	req.Apply(rfp)

	if err := h.storage.RFPs().Update(r.Context(), rfp); err != nil {
		log.Printf("update rfp %s: %v", id, err)
		jsonInternal(w)
		return
	}

	jsonOK(w, rfp)
}

// Delete removes a draft RFP. Published RFPs are closed, never deleted.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := middleware.GetPrincipal(r.Context())

	if d, err := h.engine.AuthorizeRFPWrite(r.Context(), p, id, policy.ActionDelete); err != nil || !d.Allow {
		jsonError(w, http.StatusForbidden, "FORBIDDEN", "access denied")
		return
	}

	rfp, err := h.storage.RFPs().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("delete rfp %s: %v", id, err)
		jsonInternal(w)
		return
	}
	if rfp == nil {
		jsonNotFound(w)
		return
	}
	if rfp.Status != models.StatusDraft {
		jsonError(w, http.StatusConflict, "CONFLICT", "only draft RFPs can be deleted")
		return
	}

	if err := h.storage.RFPs().Delete(r.Context(), id); err != nil {
		log.Printf("delete rfp %s: %v", id, err)
		jsonInternal(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Publish moves a draft RFP to active and notifies bidders.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.lifecycle.Publish)
}

// Close moves an active RFP to closed and notifies approved access
// holders.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.lifecycle.Close)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) (*models.RFP, error)) {
	id := chi.URLParam(r, "id")
	p := middleware.GetPrincipal(r.Context())

	if d, err := h.engine.AuthorizeRFPWrite(r.Context(), p, id, policy.ActionUpdate); err != nil || !d.Allow {
		jsonError(w, http.StatusForbidden, "FORBIDDEN", "access denied")
		return
	}

	rfp, err := fn(r.Context(), id)
	if err != nil {
		if errors.Is(err, lifecycle.ErrInvalidTransition) {
			jsonError(w, http.StatusConflict, "CONFLICT", "invalid lifecycle transition")
			return
		}
		log.Printf("transition rfp %s: %v", id, err)
		jsonInternal(w)
		return
	}

	jsonOK(w, rfp)
}

// GetMilestones returns the milestones of a readable RFP in position
// order.
func (h *Handler) GetMilestones(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := middleware.GetPrincipal(r.Context())

	d, _, err := h.engine.AuthorizeRFPRead(r.Context(), p, id)
	if err != nil {
		log.Printf("get milestones %s: %v", id, err)
		jsonInternal(w)
		return
	}
	if !d.Allow {
		jsonNotFound(w)
		return
	}

	ms, err := h.storage.RFPs().GetMilestones(r.Context(), id)
	if err != nil {
		log.Printf("get milestones %s: %v", id, err)
		jsonInternal(w)
		return
	}

	jsonOK(w, ms)
}

// ReplaceMilestones swaps the full milestone timeline of an RFP. Admin
// only; rejected once the RFP is closed.
func (h *Handler) ReplaceMilestones(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := middleware.GetPrincipal(r.Context())

	if d, err := h.engine.AuthorizeRFPWrite(r.Context(), p, id, policy.ActionUpdate); err != nil || !d.Allow {
		jsonError(w, http.StatusForbidden, "FORBIDDEN", "access denied")
		return
	}

	status, err := h.lifecycle.CurrentStatus(r.Context(), id)
	if err != nil {
		jsonNotFound(w)
		return
	}
	if status == models.StatusClosed {
		jsonError(w, http.StatusConflict, "RFP_CLOSED", "RFP is closed and no longer accepts changes")
		return
	}

	var req MilestonesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if msg := req.Validate(); msg != "" {
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", msg)
		return
	}

	ms := req.Milestones(id)
	if err := h.storage.RFPs().ReplaceMilestones(r.Context(), id, ms); err != nil {
		log.Printf("replace milestones %s: %v", id, err)
		jsonInternal(w)
		return
	}

	jsonOK(w, ms)
}

// ListComponents returns the RFP's components in position order.
// Components follow the component visibility rule: public RFPs expose
// them in every lifecycle state, drafts included.
func (h *Handler) ListComponents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := middleware.GetPrincipal(r.Context())

	d, err := h.engine.AuthorizeComponentList(r.Context(), p, id)
	if err != nil {
		log.Printf("list components %s: %v", id, err)
		jsonInternal(w)
		return
	}
	if !d.Allow {
		jsonNotFound(w)
		return
	}

	comps, err := h.storage.RFPs().ListComponents(r.Context(), id)
	if err != nil {
		log.Printf("list components %s: %v", id, err)
		jsonInternal(w)
		return
	}

	jsonOK(w, comps)
}

// GetComponent returns one component under the component visibility
// rule.
func (h *Handler) GetComponent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "componentID")
	p := middleware.GetPrincipal(r.Context())

	d, comp, err := h.engine.AuthorizeComponentRead(r.Context(), p, id)
	if err != nil {
		log.Printf("get component %s: %v", id, err)
		jsonInternal(w)
		return
	}
	if !d.Allow {
		jsonNotFound(w)
		return
	}

	jsonOK(w, comp)
}

// CreateComponent appends a content section to an RFP. Admin only.
func (h *Handler) CreateComponent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := middleware.GetPrincipal(r.Context())

	if d, err := h.engine.AuthorizeRFPWrite(r.Context(), p, id, policy.ActionUpdate); err != nil || !d.Allow {
		jsonError(w, http.StatusForbidden, "FORBIDDEN", "access denied")
		return
	}

	rfp, err := h.storage.RFPs().GetByID(r.Context(), id)
	if err != nil || rfp == nil {
		jsonNotFound(w)
		return
	}

	var req ComponentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if msg := req.Validate(); msg != "" {
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", msg)
		return
	}

	comp := req.Component(id)
	comp.ID = uuid.New().String()
	if err := h.storage.RFPs().CreateComponent(r.Context(), comp); err != nil {
		log.Printf("create component on %s: %v", id, err)
		jsonInternal(w)
		return
	}

	jsonCreated(w, comp)
}

// DeleteComponent removes a content section. Admin only.
func (h *Handler) DeleteComponent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "componentID")
	p := middleware.GetPrincipal(r.Context())

	if d, err := h.engine.AuthorizeRFPWrite(r.Context(), p, "", policy.ActionDelete); err != nil || !d.Allow {
		jsonError(w, http.StatusForbidden, "FORBIDDEN", "access denied")
		return
	}

	comp, err := h.storage.RFPs().GetComponent(r.Context(), id)
	if err != nil {
		log.Printf("delete component %s: %v", id, err)
		jsonInternal(w)
		return
	}
	if comp == nil {
		jsonNotFound(w)
		return
	}

	if err := h.storage.RFPs().DeleteComponent(r.Context(), id); err != nil {
		log.Printf("delete component %s: %v", id, err)
		jsonInternal(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
