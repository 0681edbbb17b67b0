package api

import (
	"net/http"

	"github.com/ashureev/voxgate/internal/tasks"
	"github.com/go-chi/chi/v5"
)

// ListTasks returns recent tasks, optionally filtered by ?status=.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	limit, _ := pagination(r, 10)
	status := tasks.Status(r.URL.Query().Get("status"))

	JSON(w, http.StatusOK, map[string]interface{}{
		"tasks": h.tasks.List(limit, status),
	})
}

// GetTask returns one tracked task.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	task := h.tasks.Get(chi.URLParam(r, "id"))
	if task == nil {
		Error(w, http.StatusNotFound, "task not found")
		return
	}
	JSON(w, http.StatusOK, task)
}

// TaskStats counts tasks per status.
func (h *Handler) TaskStats(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.tasks.Statistics())
}

// ClearTasks drops completed tasks, or every task with ?all=true.
func (h *Handler) ClearTasks(w http.ResponseWriter, r *http.Request) {
	var removed int
	if r.URL.Query().Get("all") == "true" {
		removed = h.tasks.ClearAll()
	} else {
		removed = h.tasks.ClearCompleted()
	}
	JSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// ListKeys returns every API key record.
func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"keys": h.keys.List(),
	})
}

type createKeyRequest struct {
	Name string `json:"name"`
}

// CreateKey issues a new API key. The plaintext secret is returned once.
func (h *Handler) CreateKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		Error(w, http.StatusBadRequest, "name is required")
		return
	}

	secret, key, err := h.keys.Generate(req.Name)
	if err != nil {
		storageError(w, "keys.generate", err)
		return
	}
	JSON(w, http.StatusCreated, map[string]interface{}{
		"key":    key,
		"secret": secret,
	})
}

// DeleteKey removes an API key.
func (h *Handler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.keys.Delete(chi.URLParam(r, "id"))
	if err != nil {
		storageError(w, "keys.delete", err)
		return
	}
	if !deleted {
		Error(w, http.StatusNotFound, "key not found")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ToggleKey flips an API key's enabled flag.
func (h *Handler) ToggleKey(w http.ResponseWriter, r *http.Request) {
	enabled, ok, err := h.keys.Toggle(chi.URLParam(r, "id"))
	if err != nil {
		storageError(w, "keys.toggle", err)
		return
	}
	if !ok {
		Error(w, http.StatusNotFound, "key not found")
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}
