// Package api provides HTTP handlers for the gateway API.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ashureev/voxgate/internal/auth"
	"github.com/ashureev/voxgate/internal/config"
	"github.com/ashureev/voxgate/internal/history"
	"github.com/ashureev/voxgate/internal/llm"
	"github.com/ashureev/voxgate/internal/session"
	"github.com/ashureev/voxgate/internal/shared"
	"github.com/ashureev/voxgate/internal/store"
	"github.com/ashureev/voxgate/internal/tasks"
)

// maxContentLength bounds a single chat message.
const maxContentLength = 10000

// Handler provides common handler utilities and holds every collaborator
// the route handlers need. All dependencies are passed in explicitly.
type Handler struct {
	cfg           *config.Config
	sessions      *session.Store
	conversations *store.ConversationStore
	wake          *store.WakeEventStore
	history       *history.Store
	llm           *llm.Client
	keys          *auth.Keystore
	tasks         *tasks.Tracker
	db            *store.DB
}

// Deps bundles the Handler's collaborators.
type Deps struct {
	Config        *config.Config
	Sessions      *session.Store
	Conversations *store.ConversationStore
	Wake          *store.WakeEventStore
	History       *history.Store
	LLM           *llm.Client
	Keys          *auth.Keystore
	Tasks         *tasks.Tracker
	DB            *store.DB
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(d Deps) *Handler {
	return &Handler{
		cfg:           d.Config,
		sessions:      d.Sessions,
		conversations: d.Conversations,
		wake:          d.Wake,
		history:       d.History,
		llm:           d.LLM,
		keys:          d.Keys,
		tasks:         d.Tasks,
		db:            d.DB,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// storageError logs a store failure and writes the appropriate status.
// Conflict errors from concurrent writers map to 503 so clients retry.
func storageError(w http.ResponseWriter, op string, err error) {
	slog.Error("Storage operation failed", "op", op, "error", err)
	if shared.IsSQLiteConflictError(err) {
		Error(w, http.StatusServiceUnavailable, "storage busy, retry")
		return
	}
	Error(w, http.StatusInternalServerError, "storage error")
}

// decodeBody decodes a JSON request body into v, rejecting oversized bodies.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// pagination reads limit/offset query params, clamping limit to [1, 100]
// and offset to >= 0.
func pagination(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// validContent checks a chat message body: non-empty, bounded, valid UTF-8.
func validContent(content string) bool {
	return content != "" &&
		utf8.RuneCountInString(content) <= maxContentLength &&
		utf8.ValidString(content)
}

// validID accepts the short ids this service generates: hex, dashes,
// alphanumerics. Keeps path-derived ids out of file names and SQL text.
func validID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}

// queryDays reads a ?days= parameter with a default and a sane ceiling.
func queryDays(r *http.Request, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get("days"))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	if n > 365 {
		return 365
	}
	return n
}
