package domain

import (
	"fmt"
	"strings"
	"time"
)

// TriggerType categorizes how the assistant was activated.
type TriggerType string

const (
	// TriggerWakeWord indicates activation by the spoken wake word.
	TriggerWakeWord TriggerType = "wake_word"
	// TriggerManual indicates activation by an explicit user action.
	TriggerManual TriggerType = "manual"
)

// ParseTriggerType validates a trigger type string.
func ParseTriggerType(s string) (TriggerType, error) {
	switch TriggerType(strings.ToLower(strings.TrimSpace(s))) {
	case TriggerWakeWord:
		return TriggerWakeWord, nil
	case TriggerManual:
		return TriggerManual, nil
	default:
		return "", fmt.Errorf("invalid trigger type %q", s)
	}
}

// WakeEvent records a single assistant-activation trigger. Events are
// immutable once inserted; corrections require a compensating event.
type WakeEvent struct {
	ID            int64          `json:"id"`
	SessionID     string         `json:"session_id,omitempty"`
	EventTime     time.Time      `json:"event_time"`
	TriggerType   TriggerType    `json:"trigger_type"`
	Success       bool           `json:"success"`
	AudioDuration *float64       `json:"audio_duration,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// WakeStats aggregates wake events over a trailing window.
type WakeStats struct {
	PeriodDays       int             `json:"period_days"`
	TotalEvents      int             `json:"total_events"`
	SuccessfulEvents int             `json:"successful_events"`
	SuccessRate      float64         `json:"success_rate"`
	TodayEvents      int             `json:"today_events"`
	TodaySuccess     int             `json:"today_success"`
	TodaySuccessRate float64         `json:"today_success_rate"`
	ByTriggerType    map[string]int  `json:"by_trigger_type"`
	AvgAudioDuration float64         `json:"avg_audio_duration"`
	DailyStats       []WakeDailyStat `json:"daily_stats"`
	DatabaseSize     int64           `json:"database_size_bytes"`
}

// WakeDailyStat is the per-day bucket of WakeStats.
type WakeDailyStat struct {
	Date        string  `json:"date"`
	Count       int     `json:"count"`
	SuccessRate float64 `json:"success_rate"`
}
