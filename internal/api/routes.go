package api

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the gateway routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.Chat)
		r.Post("/embeddings", h.Embeddings)
		r.Get("/models", h.Models)
		r.Get("/config", h.GetConfig)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.CreateSession)
			r.Get("/", h.ListSessions)
			r.Get("/stats", h.SessionStats)
			r.Delete("/", h.ClearSessions)
			r.Get("/{id}", h.GetSession)
			r.Delete("/{id}", h.DeleteSession)
			r.Get("/{id}/messages", h.SessionMessages)
			r.Post("/{id}/messages", h.AddSessionMessage)
			r.Put("/{id}/prompt", h.UpdateSessionPrompt)
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", h.ListConversations)
			r.Get("/search", h.SearchConversations)
			r.Get("/stats", h.ConversationStats)
			r.Post("/export", h.ExportConversations)
			r.Post("/import", h.ImportConversations)
			r.Post("/backup", h.BackupConversations)
			r.Post("/restore", h.RestoreConversations)
			r.Post("/cleanup", h.CleanupConversations)
			r.Get("/{id}", h.GetConversation)
			r.Delete("/{id}", h.DeleteConversation)
			r.Get("/{id}/export", h.ExportConversation)
		})

		r.Route("/history", func(r chi.Router) {
			r.Post("/", h.CreateHistory)
			r.Get("/", h.ListHistory)
			r.Get("/stats", h.HistoryStats)
			r.Delete("/", h.ClearHistory)
			r.Get("/{id}", h.GetHistory)
			r.Delete("/{id}", h.DeleteHistory)
			r.Post("/{id}/messages", h.AddHistoryMessage)
			r.Get("/{id}/export", h.ExportHistory)
		})

		r.Route("/wake-events", func(r chi.Router) {
			r.Post("/", h.RecordWakeEvent)
			r.Get("/", h.ListWakeEvents)
			r.Get("/stats", h.WakeEventStats)
			r.Post("/cleanup", h.CleanupWakeEvents)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", h.ListTasks)
			r.Get("/stats", h.TaskStats)
			r.Delete("/", h.ClearTasks)
			r.Get("/{id}", h.GetTask)
		})

		r.Route("/keys", func(r chi.Router) {
			r.Get("/", h.ListKeys)
			r.Post("/", h.CreateKey)
			r.Delete("/{id}", h.DeleteKey)
			r.Post("/{id}/toggle", h.ToggleKey)
		})
	})
}
