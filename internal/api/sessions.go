package api

import (
	"net/http"

	"github.com/ashureev/voxgate/internal/domain"
	"github.com/go-chi/chi/v5"
)

type createSessionRequest struct {
	SessionID    string `json:"session_id"`
	SystemPrompt string `json:"system_prompt"`
}

// CreateSession creates (or recreates) an in-memory session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SessionID != "" && !validID(req.SessionID) {
		Error(w, http.StatusBadRequest, "invalid session id")
		return
	}

	sess := h.sessions.Create(req.SessionID, req.SystemPrompt)
	JSON(w, http.StatusCreated, sess)
}

// ListSessions returns summaries of every live session.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"sessions": h.sessions.List(),
	})
}

// GetSession returns a session by id. Reading refreshes its TTL.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(chi.URLParam(r, "id"))
	if sess == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	JSON(w, http.StatusOK, sess)
}

// DeleteSession removes a session.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Delete(chi.URLParam(r, "id")) {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// SessionMessages returns the session's message window. Pass
// ?include_system_prompt=true to prepend the synthetic system message.
func (h *Handler) SessionMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.sessions.Get(id) == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}

	includePrompt := r.URL.Query().Get("include_system_prompt") == "true"
	JSON(w, http.StatusOK, map[string]interface{}{
		"session_id": id,
		"messages":   h.sessions.Messages(id, includePrompt),
	})
}

type addMessageRequest struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	TokenCount int    `json:"token_count"`
}

// AddSessionMessage appends a message to the session window directly,
// bypassing the model. Used by clients that track their own exchanges.
func (h *Handler) AddSessionMessage(w http.ResponseWriter, r *http.Request) {
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

	msg := h.sessions.AddMessage(chi.URLParam(r, "id"), role, req.Content, req.TokenCount)
	if msg == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	JSON(w, http.StatusCreated, msg)
}

type updatePromptRequest struct {
	SystemPrompt string `json:"system_prompt"`
}

// UpdateSessionPrompt replaces the session's system prompt.
func (h *Handler) UpdateSessionPrompt(w http.ResponseWriter, r *http.Request) {
	var req updatePromptRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if !h.sessions.UpdateSystemPrompt(chi.URLParam(r, "id"), req.SystemPrompt) {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// SessionStats reports aggregate counts over live sessions.
func (h *Handler) SessionStats(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.sessions.Statistics())
}

// ClearSessions removes every live session.
func (h *Handler) ClearSessions(w http.ResponseWriter, r *http.Request) {
	removed := h.sessions.ClearAll()
	JSON(w, http.StatusOK, map[string]int{"removed": removed})
}
