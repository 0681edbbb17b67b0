package api

import (
	"net/http"

	"github.com/ashureev/voxgate/internal/domain"
	"github.com/go-chi/chi/v5"
)

type createHistoryRequest struct {
	Title        string `json:"title"`
	SystemPrompt string `json:"system_prompt"`
}

// CreateHistory creates a record in the file-backed history log.
func (h *Handler) CreateHistory(w http.ResponseWriter, r *http.Request) {
	var req createHistoryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	conv, err := h.history.Create(req.Title, req.SystemPrompt)
	if err != nil {
		storageError(w, "history.create", err)
		return
	}
	JSON(w, http.StatusCreated, conv)
}

// ListHistory returns a page of history previews.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 20)
	JSON(w, http.StatusOK, h.history.List(limit, offset))
}

// GetHistory returns one history record with its messages.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	conv := h.history.Get(chi.URLParam(r, "id"))
	if conv == nil {
		Error(w, http.StatusNotFound, "conversation not found")
		return
	}
	JSON(w, http.StatusOK, conv)
}

// DeleteHistory removes one history record.
func (h *Handler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.history.Delete(chi.URLParam(r, "id"))
	if err != nil {
		storageError(w, "history.delete", err)
		return
	}
	if !deleted {
		Error(w, http.StatusNotFound, "conversation not found")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// AddHistoryMessage appends a message to a history record.
func (h *Handler) AddHistoryMessage(w http.ResponseWriter, r *http.Request) {
	var req addMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		Error(w, http.StatusBadRequest, "role must be one of user, assistant, system")
		return
	}
	if !validContent(req.Content) {
		Error(w, http.StatusBadRequest, "content is required and must be at most 10000 characters")
		return
	}

	msg, err := h.history.AddMessage(chi.URLParam(r, "id"), role, req.Content, req.TokenCount)
	if err != nil {
		storageError(w, "history.add_message", err)
		return
	}
	if msg == nil {
		Error(w, http.StatusNotFound, "conversation not found")
		return
	}
	JSON(w, http.StatusCreated, msg)
}

// ExportHistory renders one history record as JSON or a text transcript.
func (h *Handler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "text" {
		Error(w, http.StatusBadRequest, "format must be json or text")
		return
	}

	out, err := h.history.Export(chi.URLParam(r, "id"), format)
	if err != nil {
		storageError(w, "history.export", err)
		return
	}
	if out == "" {
		Error(w, http.StatusNotFound, "conversation not found")
		return
	}

	if format == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	_, _ = w.Write([]byte(out))
}

// HistoryStats summarizes the history file.
func (h *Handler) HistoryStats(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.history.Statistics())
}

// ClearHistory removes every history record, backing up the file first.
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	removed, err := h.history.ClearAll()
	if err != nil {
		storageError(w, "history.clear", err)
		return
	}
	JSON(w, http.StatusOK, map[string]int{"removed": removed})
}
