// Package questions provides bidder question endpoints. Publishing an
// answer is a conditional pending-to-published transition; the asker is
// notified only by the request that won it.
package questions

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/keen-violet-ibis/rfphub/internal/api/middleware"
	"github.com/keen-violet-ibis/rfphub/internal/models"
	"github.com/keen-violet-ibis/rfphub/internal/notify"
	"github.com/keen-violet-ibis/rfphub/internal/policy"
	"github.com/keen-violet-ibis/rfphub/internal/storage"
)

// Handler handles question endpoints.
type Handler struct {
	storage    storage.Storage
	engine     *policy.Engine
	dispatcher *notify.Dispatcher
}

// NewHandler creates a new questions handler.
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

// AskRequest is the body for asking a question on an RFP.
type AskRequest struct {
	Body string `json:"body"`
}

// AnswerRequest is the body for publishing an answer.
type AnswerRequest struct {
	Answer string `json:"answer"`
}

// Ask creates a pending question on an active, caller-visible RFP.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	rfpID := chi.URLParam(r, "id")
	p := middleware.GetPrincipal(r.Context())

	d, rfp, err := h.engine.AuthorizeRFPRead(r.Context(), p, rfpID)
	if err != nil {
		log.Printf("ask on %s: %v", rfpID, err)
		jsonInternal(w)
		return
	}
	if !d.Allow {
		jsonNotFound(w)
		return
	}
	if rfp.Status != models.StatusActive {
		jsonError(w, http.StatusConflict, "CONFLICT", "questions are open on active RFPs only")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" {
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "body is required")
		return
	}

	q := models.NewQuestion(rfpID, p.ID, req.Body)
	q.ID = uuid.New().String()

	if err := h.storage.Questions().Create(r.Context(), q); err != nil {
		log.Printf("ask on %s: %v", rfpID, err)
		jsonInternal(w)
		return
	}

	jsonCreated(w, q)
}

// ListByRFP returns an RFP's questions: published ones for everyone who
// can read the RFP, pending ones included for admins.
func (h *Handler) ListByRFP(w http.ResponseWriter, r *http.Request) {
	rfpID := chi.URLParam(r, "id")
	p := middleware.GetPrincipal(r.Context())

	d, _, err := h.engine.AuthorizeRFPRead(r.Context(), p, rfpID)
	if err != nil {
		log.Printf("list questions on %s: %v", rfpID, err)
		jsonInternal(w)
		return
	}
	if !d.Allow {
		jsonNotFound(w)
		return
	}

	qs, err := h.storage.Questions().ListByRFP(r.Context(), rfpID, !p.IsAdmin())
	if err != nil {
		log.Printf("list questions on %s: %v", rfpID, err)
		jsonInternal(w)
		return
	}

	jsonOK(w, qs)
}

// Mine lists the caller's own questions, pending included.
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	qs, err := h.storage.Questions().ListForUser(r.Context(), p.ID)
	if err != nil {
		log.Printf("list questions for %s: %v", p.ID, err)
		jsonInternal(w)
		return
	}

	jsonOK(w, qs)
}

// Answer publishes an answer to a pending question and notifies the
// asker. Admin only. A question already published is a conflict; the
// losing side of a concurrent answer gets the same.
func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "questionID")

	q, err := h.storage.Questions().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("answer question %s: %v", id, err)
		jsonInternal(w)
		return
	}
	if q == nil {
		jsonNotFound(w)
		return
	}

	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	req.Answer = strings.TrimSpace(req.Answer)
	if req.Answer == "" {
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "answer is required")
		return
	}

	published, err := h.storage.Questions().Publish(r.Context(), id, req.Answer, time.Now())
	if err != nil {
		log.Printf("answer question %s: %v", id, err)
		jsonInternal(w)
		return
	}
	if !published {
		jsonError(w, http.StatusConflict, "CONFLICT", "question already answered")
		return
	}

	rfp, err := h.storage.RFPs().GetByID(r.Context(), q.RFPID)
	title := ""
	if err == nil && rfp != nil {
		title = rfp.Title
	}

	if err := h.dispatcher.OnTransition(r.Context(), notify.Event{
		Kind:       notify.EventQuestionAnswered,
		RFPID:      q.RFPID,
		RFPTitle:   title,
		QuestionID: q.ID,
		AskerID:    q.AskerID,
	}); err != nil {
		log.Printf("answer question %s: notification fan-out: %v", id, err)
	}

	updated, err := h.storage.Questions().GetByID(r.Context(), id)
	if err != nil || updated == nil {
		jsonOK(w, q)
		return
	}
	jsonOK(w, updated)
}
