// Package notifications provides the per-user notification endpoints.
// Notifications are strictly owner-scoped: admins do not read other
// users' feeds.
package notifications

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keen-violet-ibis/rfphub/internal/api/middleware"
	"github.com/keen-violet-ibis/rfphub/internal/policy"
	"github.com/keen-violet-ibis/rfphub/internal/storage"
)

// Handler handles notification endpoints.
type Handler struct {
	storage storage.Storage
	engine  *policy.Engine
}

// NewHandler creates a new notifications handler.
func NewHandler(store storage.Storage, engine *policy.Engine) *Handler {
	return &Handler{storage: store, engine: engine}
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

// List returns the caller's notifications, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	ns, err := h.storage.Notifications().ListForUser(r.Context(), p.ID, limit, offset)
	if err != nil {
		log.Printf("list notifications for %s: %v", p.ID, err)
		jsonInternal(w)
		return
	}

	jsonOK(w, ns)
}

// UnreadCount returns the caller's count of unread notifications.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	count, err := h.storage.Notifications().CountUnread(r.Context(), p.ID)
	if err != nil {
		log.Printf("count unread for %s: %v", p.ID, err)
		jsonInternal(w)
		return
	}

	jsonOK(w, map[string]int64{"unread": count})
}

// MarkRead sets read_at on one of the caller's notifications. read_at
// is monotonic: marking an already-read notification is an idempotent
// no-op, never a reset.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := middleware.GetPrincipal(r.Context())

	n, err := h.storage.Notifications().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("mark read %s: %v", id, err)
		jsonInternal(w)
		return
	}
	if n == nil {
		jsonNotFound(w)
		return
	}

	// Someone else's notification reads as missing.
	if d := h.engine.AuthorizeNotification(p, n.UserID, policy.ActionUpdate); !d.Allow {
		jsonNotFound(w)
		return
	}

	if n.ReadAt == nil {
		if _, err := h.storage.Notifications().MarkRead(r.Context(), id, p.ID, time.Now()); err != nil {
			log.Printf("mark read %s: %v", id, err)
			jsonInternal(w)
			return
		}
	}

	updated, err := h.storage.Notifications().GetByID(r.Context(), id)
	if err != nil || updated == nil {
		jsonOK(w, n)
		return
	}
	jsonOK(w, updated)
}
