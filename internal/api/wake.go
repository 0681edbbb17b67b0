package api

import (
	"net/http"
	"time"

	"github.com/ashureev/voxgate/internal/domain"
)

type wakeEventRequest struct {
	SessionID     string         `json:"session_id"`
	EventTime     string         `json:"event_time"`
	TriggerType   string         `json:"trigger_type"`
	Success       bool           `json:"success"`
	AudioDuration *float64       `json:"audio_duration"`
	Metadata      map[string]any `json:"metadata"`
}

// RecordWakeEvent appends a wake event to the telemetry log.
func (h *Handler) RecordWakeEvent(w http.ResponseWriter, r *http.Request) {
	var req wakeEventRequest
	if !decodeBody(w, r, &req) {
		return
	}

	trigger, err := domain.ParseTriggerType(req.TriggerType)
	if err != nil {
		Error(w, http.StatusBadRequest, "trigger_type must be wake_word or manual")
		return
	}
	if req.SessionID != "" && !validID(req.SessionID) {
		Error(w, http.StatusBadRequest, "invalid session id")
		return
	}
	if req.AudioDuration != nil && (*req.AudioDuration < 0 || *req.AudioDuration > 3600) {
		Error(w, http.StatusBadRequest, "audio_duration must be between 0 and 3600 seconds")
		return
	}

	event := &domain.WakeEvent{
		SessionID:     req.SessionID,
		TriggerType:   trigger,
		Success:       req.Success,
		AudioDuration: req.AudioDuration,
		Metadata:      req.Metadata,
	}
	if req.EventTime != "" {
		ts, err := time.Parse(time.RFC3339, req.EventTime)
		if err != nil {
			Error(w, http.StatusBadRequest, "event_time must be RFC3339")
			return
		}
		event.EventTime = ts
	}

	id, err := h.wake.Record(r.Context(), event)
	if err != nil {
		storageError(w, "wake.record", err)
		return
	}
	JSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// ListWakeEvents returns recent wake events, optionally for one session.
func (h *Handler) ListWakeEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 20)

	if sessionID := r.URL.Query().Get("session_id"); sessionID != "" {
		if !validID(sessionID) {
			Error(w, http.StatusBadRequest, "invalid session id")
			return
		}
		events, err := h.wake.BySession(r.Context(), sessionID, limit)
		if err != nil {
			storageError(w, "wake.by_session", err)
			return
		}
		JSON(w, http.StatusOK, map[string]interface{}{"events": events, "total": len(events)})
		return
	}

	events, err := h.wake.Recent(r.Context(), limit, offset)
	if err != nil {
		storageError(w, "wake.recent", err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"limit":  limit,
		"offset": offset,
	})
}

// WakeEventStats aggregates wake events over a trailing ?days= window.
func (h *Handler) WakeEventStats(w http.ResponseWriter, r *http.Request) {
	days := queryDays(r, 7)
	stats, err := h.wake.Stats(r.Context(), days)
	if err != nil {
		storageError(w, "wake.stats", err)
		return
	}
	JSON(w, http.StatusOK, stats)
}

// CleanupWakeEvents deletes wake events older than ?days=.
func (h *Handler) CleanupWakeEvents(w http.ResponseWriter, r *http.Request) {
	days := queryDays(r, h.cfg.Retention.WakeEventDays)
	removed, err := h.wake.CleanupOld(r.Context(), days)
	if err != nil {
		storageError(w, "wake.cleanup", err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"removed": removed, "days": days})
}
