package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/voxgate/internal/domain"
	"github.com/ashureev/voxgate/internal/llm"
	"github.com/ashureev/voxgate/internal/store"
	"github.com/google/uuid"
)

// Health reports service and database liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbOK := true
	if err := h.db.Ping(r.Context()); err != nil {
		slog.Error("Database health check failed", "error", err)
		status = "degraded"
		dbOK = false
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":   status,
		"database": dbOK,
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

type chatRequest struct {
	Message      string  `json:"message"`
	SessionID    string  `json:"session_id"`
	SystemPrompt string  `json:"system_prompt"`
	Model        string  `json:"model"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	Model     string `json:"model"`
	TaskID    string `json:"task_id"`
	Usage     struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// Chat is the main gateway operation: resolve the session, assemble its
// message window, call the upstream model, then record both sides of the
// exchange in the session and the durable conversation store.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validContent(req.Message) {
		Error(w, http.StatusBadRequest, "message is required and must be at most 10000 characters")
		return
	}
	if req.SessionID != "" && !validID(req.SessionID) {
		Error(w, http.StatusBadRequest, "invalid session id")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" || h.sessions.Get(sessionID) == nil {
		created := h.sessions.Create(sessionID, req.SystemPrompt)
		sessionID = created.ID
	} else if req.SystemPrompt != "" {
		h.sessions.UpdateSystemPrompt(sessionID, req.SystemPrompt)
	}

	task := h.tasks.Create("chat", map[string]any{"session_id": sessionID})
	h.tasks.Start(task.ID, "calling model")

	window := h.sessions.Messages(sessionID, true)
	window = append(window, domain.ChatMessage{Role: domain.RoleUser, Content: req.Message})

	result, err := h.llm.Chat(r.Context(), window, llm.ChatOptions{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		h.tasks.Fail(task.ID, "model call failed")
		slog.Error("Upstream chat call failed", "session_id", sessionID, "error", err)
		Error(w, http.StatusBadGateway, "upstream model call failed")
		return
	}

	h.sessions.AddMessage(sessionID, domain.RoleUser, req.Message, result.Usage.Input)
	h.sessions.AddMessage(sessionID, domain.RoleAssistant, result.Content, result.Usage.Output)
	h.tasks.Complete(task.ID, "done")

	// Durable persistence is best-effort: a storage hiccup must not lose
	// the reply the user already paid tokens for.
	if err := h.persistConversation(r, sessionID); err != nil {
		slog.Error("Failed to persist conversation", "session_id", sessionID, "error", err)
	}

	resp := chatResponse{
		Response:  result.Content,
		SessionID: sessionID,
		Model:     result.Model,
		TaskID:    task.ID,
	}
	resp.Usage.InputTokens = result.Usage.Input
	resp.Usage.OutputTokens = result.Usage.Output
	resp.Usage.TotalTokens = result.Usage.Total()
	JSON(w, http.StatusOK, resp)
}

// persistConversation mirrors the session window into the SQLite store,
// one conversation per session.
func (h *Handler) persistConversation(r *http.Request, sessionID string) error {
	sess := h.sessions.Get(sessionID)
	if sess == nil {
		return nil
	}

	existing, err := h.conversations.BySession(r.Context(), sessionID)
	if err != nil {
		return err
	}

	if len(existing) > 0 {
		messages := sess.Messages
		usage := sess.TokenUsage
		_, err = h.conversations.Update(r.Context(), existing[0].ID, store.ConversationUpdate{
			Messages:   &messages,
			TokenUsage: &usage,
		})
		return err
	}

	title := "Conversation " + time.Now().UTC().Format("2006-01-02 15:04")
	return h.conversations.Create(r.Context(), &domain.Conversation{
		ID:           uuid.NewString()[:8],
		SessionID:    sessionID,
		Title:        title,
		SystemPrompt: sess.SystemPrompt,
		Messages:     sess.Messages,
		TokenUsage:   sess.TokenUsage,
	})
}

type embeddingsRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model"`
}

// Embeddings proxies a batch embedding request upstream.
func (h *Handler) Embeddings(w http.ResponseWriter, r *http.Request) {
	var req embeddingsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Texts) == 0 || len(req.Texts) > 25 {
		Error(w, http.StatusBadRequest, "texts must contain between 1 and 25 entries")
		return
	}
	for _, text := range req.Texts {
		if !validContent(text) {
			Error(w, http.StatusBadRequest, "each text must be non-empty and at most 10000 characters")
			return
		}
	}

	vectors, err := h.llm.Embeddings(r.Context(), req.Texts, req.Model)
	if err != nil {
		slog.Error("Upstream embeddings call failed", "error", err)
		Error(w, http.StatusBadGateway, "upstream model call failed")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"embeddings": vectors})
}

// Models lists the chat models this gateway will accept.
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"default": h.cfg.LLM.Model,
		"models":  []string{"qwen-turbo", "qwen-plus", "qwen-max"},
	})
}

// GetConfig exposes the non-secret runtime configuration.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"model":                h.cfg.LLM.Model,
		"session_max_messages": h.cfg.Session.MaxMessages,
		"session_timeout_sec":  int(h.cfg.Session.Timeout.Seconds()),
		"auth_required":        h.cfg.Auth.Required,
	})
}
