package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ashureev/voxgate/internal/domain"
)

// WakeEventStore is the append-only telemetry log of assistant activations.
// There is deliberately no update operation: corrections require a new
// compensating event, keeping the audit trail intact.
type WakeEventStore struct {
	mu sync.Mutex
	db *DB
}

// NewWakeEventStore creates a wake-event store over the shared database.
func NewWakeEventStore(db *DB) *WakeEventStore {
	return &WakeEventStore{db: db}
}

const wakeEventColumns = `id, session_id, event_time, trigger_type, success, audio_duration, metadata`

// Record inserts a wake event and returns its assigned id.
func (s *WakeEventStore) Record(ctx context.Context, event *domain.WakeEvent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.EventTime.IsZero() {
		event.EventTime = time.Now()
	}

	var duration any
	if event.AudioDuration != nil {
		duration = *event.AudioDuration
	}

	res, err := s.db.sql.ExecContext(ctx, `
		INSERT INTO wake_events
		(session_id, event_time, trigger_type, success, audio_duration, metadata)
		VALUES (?, ?, ?, ?, ?, ?)`,
		nullable(event.SessionID),
		event.EventTime.UTC().Format(timeFormat),
		string(event.TriggerType),
		boolToInt(event.Success),
		duration,
		encodeJSON(event.Metadata),
	)
	if err != nil {
		return 0, fmt.Errorf("insert wake event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("wake event last insert id: %w", err)
	}
	event.ID = id
	return id, nil
}

// Get retrieves a wake event by id, or (nil, nil) when absent.
func (s *WakeEventStore) Get(ctx context.Context, id int64) (*domain.WakeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.sql.QueryRowContext(ctx,
		`SELECT `+wakeEventColumns+` FROM wake_events WHERE id = ?`, id)

	event, err := scanWakeEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan wake event: %w", err)
	}
	return event, nil
}

// BySession returns up to limit wake events for a session, newest first.
func (s *WakeEventStore) BySession(ctx context.Context, sessionID string, limit int) ([]*domain.WakeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queryWakeEvents(ctx, `
		SELECT `+wakeEventColumns+` FROM wake_events
		WHERE session_id = ?
		ORDER BY event_time DESC, id DESC
		LIMIT ?`, sessionID, limit)
}

// Recent returns wake events ordered by event time, newest first.
func (s *WakeEventStore) Recent(ctx context.Context, limit, offset int) ([]*domain.WakeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queryWakeEvents(ctx, `
		SELECT `+wakeEventColumns+` FROM wake_events
		ORDER BY event_time DESC, id DESC
		LIMIT ? OFFSET ?`, limit, offset)
}

// Stats aggregates wake events over the trailing days window. Rates are
// percentages rounded to two decimals; empty denominators yield zero.
func (s *WakeEventStore) Stats(ctx context.Context, days int) (*domain.WakeStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := daysAgo(days)
	stats := &domain.WakeStats{
		PeriodDays:    days,
		ByTriggerType: map[string]int{},
		DailyStats:    []domain.WakeDailyStat{},
	}

	if err := s.db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM wake_events WHERE event_time >= ?`,
		threshold).Scan(&stats.TotalEvents); err != nil {
		return nil, fmt.Errorf("count wake events: %w", err)
	}
	if err := s.db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM wake_events WHERE event_time >= ? AND success = 1`,
		threshold).Scan(&stats.SuccessfulEvents); err != nil {
		return nil, fmt.Errorf("count successful wake events: %w", err)
	}
	stats.SuccessRate = percentage(stats.SuccessfulEvents, stats.TotalEvents)

	if err := s.db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM wake_events WHERE substr(event_time, 1, 10) = ?`,
		today()).Scan(&stats.TodayEvents); err != nil {
		return nil, fmt.Errorf("count today wake events: %w", err)
	}
	if err := s.db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM wake_events WHERE substr(event_time, 1, 10) = ? AND success = 1`,
		today()).Scan(&stats.TodaySuccess); err != nil {
		return nil, fmt.Errorf("count today successful wake events: %w", err)
	}
	stats.TodaySuccessRate = percentage(stats.TodaySuccess, stats.TodayEvents)

	typeRows, err := s.db.sql.QueryContext(ctx, `
		SELECT trigger_type, COUNT(*)
		FROM wake_events
		WHERE event_time >= ?
		GROUP BY trigger_type`, threshold)
	if err != nil {
		return nil, fmt.Errorf("query trigger type counts: %w", err)
	}
	defer closeRows(typeRows)
	for typeRows.Next() {
		var trigger string
		var count int
		if err := typeRows.Scan(&trigger, &count); err != nil {
			return nil, fmt.Errorf("scan trigger type count: %w", err)
		}
		stats.ByTriggerType[trigger] = count
	}
	if err := typeRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trigger type counts: %w", err)
	}

	var avgDuration sql.NullFloat64
	if err := s.db.sql.QueryRowContext(ctx, `
		SELECT AVG(audio_duration) FROM wake_events
		WHERE event_time >= ? AND audio_duration IS NOT NULL`,
		threshold).Scan(&avgDuration); err != nil {
		return nil, fmt.Errorf("average audio duration: %w", err)
	}
	stats.AvgAudioDuration = round2(avgDuration.Float64)

	dailyRows, err := s.db.sql.QueryContext(ctx, `
		SELECT substr(event_time, 1, 10) AS day, COUNT(*), AVG(success)
		FROM wake_events
		WHERE event_time >= ?
		GROUP BY day
		ORDER BY day DESC
		LIMIT ?`, threshold, days)
	if err != nil {
		return nil, fmt.Errorf("query daily stats: %w", err)
	}
	defer closeRows(dailyRows)
	for dailyRows.Next() {
		var day domain.WakeDailyStat
		var successRate float64
		if err := dailyRows.Scan(&day.Date, &day.Count, &successRate); err != nil {
			return nil, fmt.Errorf("scan daily stat: %w", err)
		}
		day.SuccessRate = round2(successRate * 100)
		stats.DailyStats = append(stats.DailyStats, day)
	}
	if err := dailyRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily stats: %w", err)
	}

	stats.DatabaseSize = s.db.Size()
	return stats, nil
}

// CleanupOld deletes wake events older than the given number of days.
func (s *WakeEventStore) CleanupOld(ctx context.Context, days int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.sql.ExecContext(ctx,
		`DELETE FROM wake_events WHERE event_time < ?`, daysAgo(days))
	if err != nil {
		return 0, fmt.Errorf("cleanup old wake events: %w", err)
	}
	return res.RowsAffected()
}

// ClearAll deletes every wake event and returns the number removed.
func (s *WakeEventStore) ClearAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.sql.ExecContext(ctx, `DELETE FROM wake_events`)
	if err != nil {
		return 0, fmt.Errorf("clear wake events: %w", err)
	}
	return res.RowsAffected()
}

// SessionIDs returns every distinct non-null session id, newest first.
func (s *WakeEventStore) SessionIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.sql.QueryContext(ctx, `
		SELECT DISTINCT session_id FROM wake_events
		WHERE session_id IS NOT NULL
		ORDER BY event_time DESC`)
	if err != nil {
		return nil, fmt.Errorf("query wake session ids: %w", err)
	}
	defer closeRows(rows)

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan wake session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wake session ids: %w", err)
	}
	return ids, nil
}

func (s *WakeEventStore) queryWakeEvents(ctx context.Context, query string, args ...any) ([]*domain.WakeEvent, error) {
	rows, err := s.db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query wake events: %w", err)
	}
	defer closeRows(rows)

	var out []*domain.WakeEvent
	for rows.Next() {
		event, err := scanWakeEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wake event: %w", err)
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wake events: %w", err)
	}
	return out, nil
}

func scanWakeEvent(row scanner) (*domain.WakeEvent, error) {
	var event domain.WakeEvent
	var sessionID, metadata sql.NullString
	var eventTime string
	var success int
	var duration sql.NullFloat64

	err := row.Scan(&event.ID, &sessionID, &eventTime, &event.TriggerType,
		&success, &duration, &metadata)
	if err != nil {
		return nil, err
	}

	event.SessionID = sessionID.String
	event.Success = success != 0
	if duration.Valid {
		event.AudioDuration = &duration.Float64
	}
	event.Metadata = decodeMetadata(metadata.String)

	if ts, err := time.Parse(timeFormat, eventTime); err == nil {
		event.EventTime = ts
	}

	return &event, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// percentage returns part/total as a percentage rounded to two decimals,
// guarding the zero denominator.
func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
