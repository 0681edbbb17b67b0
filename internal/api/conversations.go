package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/voxgate/internal/domain"
	"github.com/go-chi/chi/v5"
)

// ListConversations returns a page of stored conversations, newest first.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 20)

	if sessionID := r.URL.Query().Get("session_id"); sessionID != "" {
		if !validID(sessionID) {
			Error(w, http.StatusBadRequest, "invalid session id")
			return
		}
		convs, err := h.conversations.BySession(r.Context(), sessionID)
		if err != nil {
			storageError(w, "conversations.by_session", err)
			return
		}
		JSON(w, http.StatusOK, map[string]interface{}{"conversations": convs, "total": len(convs)})
		return
	}

	convs, err := h.conversations.Recent(r.Context(), limit, offset)
	if err != nil {
		storageError(w, "conversations.recent", err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"conversations": convs,
		"limit":         limit,
		"offset":        offset,
	})
}

// GetConversation returns one stored conversation.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validID(id) {
		Error(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	conv, err := h.conversations.Get(r.Context(), id)
	if err != nil {
		storageError(w, "conversations.get", err)
		return
	}
	if conv == nil {
		Error(w, http.StatusNotFound, "conversation not found")
		return
	}
	JSON(w, http.StatusOK, conv)
}

// DeleteConversation removes one stored conversation.
func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validID(id) {
		Error(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	deleted, err := h.conversations.Delete(r.Context(), id)
	if err != nil {
		storageError(w, "conversations.delete", err)
		return
	}
	if !deleted {
		Error(w, http.StatusNotFound, "conversation not found")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// SearchConversations searches stored conversations. The default mode is a
// case-sensitive keyword match over titles, prompts and serialized messages;
// ?in=content switches to a case-insensitive per-message search.
func (h *Handler) SearchConversations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		Error(w, http.StatusBadRequest, "q parameter is required")
		return
	}
	limit, _ := pagination(r, 20)

	if r.URL.Query().Get("in") == "content" {
		matches, err := h.conversations.SearchByContent(r.Context(), query, limit)
		if err != nil {
			storageError(w, "conversations.search_content", err)
			return
		}
		JSON(w, http.StatusOK, map[string]interface{}{"matches": matches, "total": len(matches)})
		return
	}

	convs, err := h.conversations.Search(r.Context(), query, limit)
	if err != nil {
		storageError(w, "conversations.search", err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"conversations": convs, "total": len(convs)})
}

// ConversationStats reports aggregate counts over the conversations table.
func (h *Handler) ConversationStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.conversations.Statistics(r.Context())
	if err != nil {
		storageError(w, "conversations.stats", err)
		return
	}
	JSON(w, http.StatusOK, stats)
}

// ExportConversation renders one stored conversation as JSON or a plain-text
// transcript, depending on ?format=.
func (h *Handler) ExportConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validID(id) {
		Error(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	conv, err := h.conversations.Get(r.Context(), id)
	if err != nil {
		storageError(w, "conversations.export_one", err)
		return
	}
	if conv == nil {
		Error(w, http.StatusNotFound, "conversation not found")
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(renderTranscript(conv)))
		return
	}
	JSON(w, http.StatusOK, conv)
}

// renderTranscript produces the human-readable export shape: a header block
// followed by one paragraph per message.
func renderTranscript(conv *domain.Conversation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", conv.Title)
	fmt.Fprintf(&b, "Created: %s\n", conv.CreatedAt)
	fmt.Fprintf(&b, "Updated: %s\n", conv.UpdatedAt)
	b.WriteString(strings.Repeat("-", 40) + "\n")

	for _, msg := range conv.Messages {
		fmt.Fprintf(&b, "**%s** (%s):\n", msg.Role.Label(), msg.Timestamp.UTC().Format(time.RFC3339))
		fmt.Fprintf(&b, "%s\n\n", msg.Content)
	}
	return b.String()
}

type exportRequest struct {
	IDs    []string `json:"ids"`
	Format string   `json:"format"`
}

// ExportConversations writes an export file (json or jsonl) to the export
// directory and returns its path.
func (h *Handler) ExportConversations(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Format == "" {
		req.Format = "json"
	}
	if req.Format != "json" && req.Format != "jsonl" {
		Error(w, http.StatusBadRequest, "format must be json or jsonl")
		return
	}
	for _, id := range req.IDs {
		if !validID(id) {
			Error(w, http.StatusBadRequest, "invalid conversation id")
			return
		}
	}

	path, err := h.conversations.ExportJSON(r.Context(), req.IDs, req.Format)
	if err != nil {
		storageError(w, "conversations.export", err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"path": path})
}

type importRequest struct {
	Path string `json:"path"`
}

// ImportConversations upserts records from an export file.
func (h *Handler) ImportConversations(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		Error(w, http.StatusBadRequest, "path is required")
		return
	}

	imported, failed, err := h.conversations.ImportJSON(r.Context(), req.Path)
	if err != nil {
		storageError(w, "conversations.import", err)
		return
	}
	JSON(w, http.StatusOK, map[string]int{"imported": imported, "failed": failed})
}

// BackupConversations snapshots the database file.
func (h *Handler) BackupConversations(w http.ResponseWriter, r *http.Request) {
	path, err := h.conversations.CreateBackup()
	if err != nil {
		storageError(w, "conversations.backup", err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"path": path})
}

type restoreRequest struct {
	Path string `json:"path"`
}

// RestoreConversations replaces the live database with a backup file.
func (h *Handler) RestoreConversations(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		Error(w, http.StatusBadRequest, "path is required")
		return
	}

	if err := h.conversations.RestoreFromBackup(req.Path); err != nil {
		storageError(w, "conversations.restore", err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

// CleanupConversations deletes conversations older than ?days= and compacts
// the database.
func (h *Handler) CleanupConversations(w http.ResponseWriter, r *http.Request) {
	days := queryDays(r, h.cfg.Retention.ConversationDays)
	removed, err := h.conversations.CleanupOld(r.Context(), days)
	if err != nil {
		storageError(w, "conversations.cleanup", err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"removed": removed, "days": days})
}
