// Package documents provides the RFP document and folder endpoints.
//
// Effective visibility of a document is always derived at read time
// from its NDA flag plus the owning RFP's visibility and status; nothing
// is precomputed or stored. Unlike components, public document access
// excludes draft RFPs.
package documents

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/keen-violet-ibis/rfphub/internal/api/middleware"
	"github.com/keen-violet-ibis/rfphub/internal/models"
	"github.com/keen-violet-ibis/rfphub/internal/policy"
	"github.com/keen-violet-ibis/rfphub/internal/storage"
)

// Handler handles document endpoints.
type Handler struct {
	storage storage.Storage
	engine  *policy.Engine
}

// NewHandler creates a new document handler.
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

// CreateRequest is the body for attaching a document or folder to an RFP.
type CreateRequest struct {
	Name        string `json:"name"`
	ParentID    string `json:"parent_id"`
	FilePath    string `json:"file_path"`
	IsFolder    bool   `json:"is_folder"`
	RequiresNDA bool   `json:"requires_nda"`
}

// UpdateRequest renames a document or moves it to another folder.
type UpdateRequest struct {
	Name        *string `json:"name"`
	ParentID    *string `json:"parent_id"`
	RequiresNDA *bool   `json:"requires_nda"`
}

// ListByRFP returns the documents of one RFP the caller may see. A
// hidden or missing RFP yields the same empty not-found response.
func (h *Handler) ListByRFP(w http.ResponseWriter, r *http.Request) {
	rfpID := chi.URLParam(r, "id")
	p := middleware.GetPrincipal(r.Context())

	docs, err := h.engine.VisibleDocuments(r.Context(), p, rfpID)
	if err != nil {
		log.Printf("list documents for rfp %s: %v", rfpID, err)
		jsonInternal(w)
		return
	}
	if docs == nil {
		jsonNotFound(w)
		return
	}

	jsonOK(w, docs)
}

// Get returns one document under the document visibility rule.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := middleware.GetPrincipal(r.Context())

	d, doc, err := h.engine.AuthorizeDocumentRead(r.Context(), p, id)
	if err != nil {
		log.Printf("get document %s: %v", id, err)
		jsonInternal(w)
		return
	}
	if !d.Allow {
		jsonNotFound(w)
		return
	}

	jsonOK(w, doc)
}

// Create attaches a document or folder to an RFP. Admin only.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	rfpID := chi.URLParam(r, "id")

	rfp, err := h.storage.RFPs().GetByID(r.Context(), rfpID)
	if err != nil {
		log.Printf("create document on %s: %v", rfpID, err)
		jsonInternal(w)
		return
	}
	if rfp == nil {
		jsonNotFound(w)
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
	if !req.IsFolder && req.FilePath == "" {
		jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "file_path is required for files")
		return
	}

	if req.ParentID != "" {
		parent, err := h.storage.Documents().GetByID(r.Context(), req.ParentID)
		if err != nil {
			log.Printf("create document on %s: parent lookup: %v", rfpID, err)
			jsonInternal(w)
			return
		}
		if parent == nil || !parent.IsFolder || parent.RFPID != rfpID {
			jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", "parent_id must be a folder on the same RFP")
			return
		}
	}

	var doc *models.Document
	if req.IsFolder {
		doc = models.NewFolder(rfpID, req.ParentID, req.Name)
	} else {
		doc = models.NewDocument(rfpID, req.Name, req.FilePath, req.RequiresNDA)
		doc.ParentID = req.ParentID
	}
	doc.ID = uuid.New().String()

	if err := h.storage.Documents().Create(r.Context(), doc); err != nil {
		log.Printf("create document on %s: %v", rfpID, err)
		jsonInternal(w)
		return
	}

	jsonCreated(w, doc)
}

// Update renames a document, toggles its NDA flag, or moves it to a
// different folder. A move that would make the document its own
// ancestor is rejected. Admin only.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, err := h.storage.Documents().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("update document %s: %v", id, err)
		jsonInternal(w)
		return
	}
	if doc == nil {
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
		doc.Name = name
	}
	if req.RequiresNDA != nil {
		doc.RequiresNDA = *req.RequiresNDA
	}
	if req.ParentID != nil && *req.ParentID != doc.ParentID {
		if err := h.checkMove(r, doc, *req.ParentID); err != nil {
			jsonError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
			return
		}
		doc.ParentID = *req.ParentID
	}

	if err := h.storage.Documents().Update(r.Context(), doc); err != nil {
		log.Printf("update document %s: %v", id, err)
		jsonInternal(w)
		return
	}

	jsonOK(w, doc)
}

// Delete removes a document. Admin only.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, err := h.storage.Documents().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("delete document %s: %v", id, err)
		jsonInternal(w)
		return
	}
	if doc == nil {
		jsonNotFound(w)
		return
	}

	if err := h.storage.Documents().Delete(r.Context(), id); err != nil {
		log.Printf("delete document %s: %v", id, err)
		jsonInternal(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// checkMove validates a parent change: the target must be a folder on
// the same RFP, must not be the document itself, and must not sit below
// the document in the tree.
func (h *Handler) checkMove(r *http.Request, doc *models.Document, newParentID string) error {
	if newParentID == "" {
		return nil // moving to root
	}
	if newParentID == doc.ID {
		return errDocumentCycle
	}

	parent, err := h.storage.Documents().GetByID(r.Context(), newParentID)
	if err != nil {
		return err
	}
	if parent == nil || !parent.IsFolder || parent.RFPID != doc.RFPID {
		return errBadParent
	}

	ancestors, err := h.storage.Documents().Ancestors(r.Context(), newParentID)
	if err != nil {
		return err
	}
	for _, a := range ancestors {
		if a == doc.ID {
			return errDocumentCycle
		}
	}
	return nil
}
