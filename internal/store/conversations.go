package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ashureev/voxgate/internal/domain"
)

// ConversationStore persists full conversation logs for durability across
// restarts. Every operation acquires the store mutex for its full duration,
// so read-modify-write sequences never interleave.
type ConversationStore struct {
	mu        sync.Mutex
	db        *DB
	exportDir string
}

// ConversationStats is a snapshot of store-wide counters.
type ConversationStats struct {
	TotalConversations int   `json:"total_conversations"`
	TodayConversations int   `json:"today_conversations"`
	TotalMessages      int   `json:"total_messages"`
	UniqueSessions     int   `json:"unique_sessions"`
	DatabaseSize       int64 `json:"database_size_bytes"`
}

// ContentMatch pairs a conversation with the index of its first message
// matching a content search.
type ContentMatch struct {
	Conversation *domain.Conversation `json:"conversation"`
	MessageIndex int                  `json:"message_index"`
}

// ConversationUpdate describes a partial update. Nil fields are left unchanged.
type ConversationUpdate struct {
	Messages     *[]domain.Message
	SystemPrompt *string
	TokenUsage   *domain.TokenUsage
	Metadata     map[string]any
}

// NewConversationStore creates a conversation store over the shared database.
// Exports are written to exportDir; empty means the working directory.
func NewConversationStore(db *DB, exportDir string) *ConversationStore {
	if exportDir == "" {
		exportDir = "."
	}
	return &ConversationStore{db: db, exportDir: exportDir}
}

const conversationColumns = `id, session_id, title, system_prompt, messages, message_count, token_usage, created_at, updated_at, metadata`

// Create inserts a new conversation record. The caller supplies the id;
// inserting a duplicate id is an error.
func (s *ConversationStore) Create(ctx context.Context, conv *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := now()
	if conv.CreatedAt == "" {
		conv.CreatedAt = ts
	}
	conv.UpdatedAt = ts
	conv.MessageCount = len(conv.Messages)

	query := `
		INSERT INTO conversations
		(` + conversationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.sql.ExecContext(ctx, query,
		conv.ID, conv.SessionID, nullable(conv.Title), nullable(conv.SystemPrompt),
		encodeJSON(conv.Messages), conv.MessageCount, encodeJSON(conv.TokenUsage),
		conv.CreatedAt, conv.UpdatedAt, encodeJSON(conv.Metadata),
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// Get retrieves a conversation by id, or (nil, nil) when absent.
func (s *ConversationStore) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.sql.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)

	conv, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	return conv, nil
}

// Update applies a partial update. message_count is recomputed whenever
// messages are supplied; updated_at is always refreshed. Returns true iff a
// row was modified.
func (s *ConversationStore) Update(ctx context.Context, id string, upd ConversationUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sets []string
	var args []any

	if upd.Messages != nil {
		sets = append(sets, "messages = ?", "message_count = ?")
		args = append(args, encodeJSON(*upd.Messages), len(*upd.Messages))
	}
	if upd.SystemPrompt != nil {
		sets = append(sets, "system_prompt = ?")
		args = append(args, *upd.SystemPrompt)
	}
	if upd.TokenUsage != nil {
		sets = append(sets, "token_usage = ?")
		args = append(args, encodeJSON(*upd.TokenUsage))
	}
	if upd.Metadata != nil {
		sets = append(sets, "metadata = ?")
		args = append(args, encodeJSON(upd.Metadata))
	}
	if len(sets) == 0 {
		return false, nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, now(), id)

	query := "UPDATE conversations SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	res, err := s.db.sql.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update conversation: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update conversation rows affected: %w", err)
	}
	return rows > 0, nil
}

// Delete removes a conversation. Returns true iff a row was removed.
func (s *ConversationStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.sql.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete conversation: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete conversation rows affected: %w", err)
	}
	return rows > 0, nil
}

// BySession returns all conversations grouped under a session id, newest first.
func (s *ConversationStore) BySession(ctx context.Context, sessionID string) ([]*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queryConversations(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE session_id = ?
		 ORDER BY created_at DESC, rowid DESC`, sessionID)
}

// Recent returns conversations ordered by last update, newest first.
func (s *ConversationStore) Recent(ctx context.Context, limit, offset int) ([]*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queryConversations(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 ORDER BY updated_at DESC, rowid DESC
		 LIMIT ? OFFSET ?`, limit, offset)
}

// Search returns up to limit conversations whose serialized message content
// or system prompt contains keyword. The match is a case-sensitive substring
// test; SearchByContent is the case-insensitive variant. The asymmetry is
// load-bearing for existing callers, so the two are kept distinct.
func (s *ConversationStore) Search(ctx context.Context, keyword string, limit int) ([]*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 ORDER BY updated_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer closeRows(rows)

	var out []*domain.Conversation
	for rows.Next() {
		conv, raw, err := scanConversationRaw(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		if strings.Contains(raw.messages, keyword) || strings.Contains(raw.systemPrompt, keyword) {
			out = append(out, conv)
			if len(out) >= limit {
				break
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return out, nil
}

// SearchByContent scans the most recently updated limit conversations and
// returns the first case-insensitive match per conversation. Note the limit
// bounds conversations scanned, not matches returned.
func (s *ConversationStore) SearchByContent(ctx context.Context, text string, limit int) ([]ContentMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs, err := s.queryConversations(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 ORDER BY updated_at DESC, rowid DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(text)
	var out []ContentMatch
	for _, conv := range convs {
		for idx, msg := range conv.Messages {
			if strings.Contains(strings.ToLower(msg.Content), needle) {
				out = append(out, ContentMatch{Conversation: conv, MessageIndex: idx})
				break
			}
		}
	}
	return out, nil
}

// Statistics returns store-wide counters.
func (s *ConversationStore) Statistics(ctx context.Context) (ConversationStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats ConversationStats

	if err := s.db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations`).Scan(&stats.TotalConversations); err != nil {
		return stats, fmt.Errorf("count conversations: %w", err)
	}
	if err := s.db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE substr(created_at, 1, 10) = ?`,
		today()).Scan(&stats.TodayConversations); err != nil {
		return stats, fmt.Errorf("count today conversations: %w", err)
	}
	if err := s.db.sql.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(message_count), 0) FROM conversations`).Scan(&stats.TotalMessages); err != nil {
		return stats, fmt.Errorf("sum message counts: %w", err)
	}
	if err := s.db.sql.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT session_id) FROM conversations`).Scan(&stats.UniqueSessions); err != nil {
		return stats, fmt.Errorf("count unique sessions: %w", err)
	}
	stats.DatabaseSize = s.db.Size()

	return stats, nil
}

// AllSessionIDs returns every distinct session id, newest first.
func (s *ConversationStore) AllSessionIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT DISTINCT session_id FROM conversations ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query session ids: %w", err)
	}
	defer closeRows(rows)

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session ids: %w", err)
	}
	return ids, nil
}

// CleanupOld deletes conversations created strictly before today minus the
// given number of days, then compacts the database.
func (s *ConversationStore) CleanupOld(ctx context.Context, days int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.sql.ExecContext(ctx,
		`DELETE FROM conversations WHERE substr(created_at, 1, 10) < ?`, dateDaysAgo(days))
	if err != nil {
		return 0, fmt.Errorf("cleanup old conversations: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cleanup rows affected: %w", err)
	}

	if _, err := s.db.sql.ExecContext(ctx, `VACUUM`); err != nil {
		slog.Warn("Database vacuum failed", "error", err)
	}

	return deleted, nil
}

// ExportJSON writes the given conversations (all when ids is empty) to a
// timestamped file in the export directory. Supported formats are "json"
// (single array) and "jsonl" (one object per line). Returns the file path.
func (s *ConversationStore) ExportJSON(ctx context.Context, ids []string, format string) (string, error) {
	if format != "json" && format != "jsonl" {
		return "", fmt.Errorf("unsupported export format %q", format)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var convs []*domain.Conversation
	var err error
	if len(ids) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
		args := make([]any, len(ids))
		for i, id := range ids {
			args[i] = id
		}
		convs, err = s.queryConversations(ctx,
			`SELECT `+conversationColumns+` FROM conversations WHERE id IN (`+placeholders+`)`, args...)
	} else {
		convs, err = s.queryConversations(ctx,
			`SELECT `+conversationColumns+` FROM conversations ORDER BY created_at DESC, rowid DESC`)
	}
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.exportDir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	name := fmt.Sprintf("conversations_export_%s.%s", fileTimestamp(), format)
	path := filepath.Join(s.exportDir, name)

	var data []byte
	switch format {
	case "json":
		data, err = json.MarshalIndent(convs, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal export: %w", err)
		}
	case "jsonl":
		var b strings.Builder
		for _, conv := range convs {
			line, err := json.Marshal(conv)
			if err != nil {
				return "", fmt.Errorf("marshal export record: %w", err)
			}
			b.Write(line)
			b.WriteByte('\n')
		}
		data = []byte(b.String())
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return path, nil
}

// ImportJSON loads conversation records from a JSON array (or single object)
// file, upserting by primary key. A malformed record is counted as a failure
// without aborting the batch. Returns (imported, failed).
func (s *ConversationStore) ImportJSON(ctx context.Context, path string) (int, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("read import file: %w", err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		// Tolerate a single top-level object.
		var single json.RawMessage
		if err2 := json.Unmarshal(data, &single); err2 != nil {
			return 0, 0, fmt.Errorf("parse import file: %w", err)
		}
		records = []json.RawMessage{single}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT OR REPLACE INTO conversations
		(` + conversationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	imported, failed := 0, 0
	for _, raw := range records {
		var conv domain.Conversation
		if err := json.Unmarshal(raw, &conv); err != nil || conv.ID == "" {
			failed++
			continue
		}
		_, err := s.db.sql.ExecContext(ctx, query,
			conv.ID, conv.SessionID, nullable(conv.Title), nullable(conv.SystemPrompt),
			encodeJSON(conv.Messages), len(conv.Messages), encodeJSON(conv.TokenUsage),
			conv.CreatedAt, conv.UpdatedAt, encodeJSON(conv.Metadata),
		)
		if err != nil {
			slog.Warn("Import record failed", "conversation_id", conv.ID, "error", err)
			failed++
			continue
		}
		imported++
	}

	return imported, failed, nil
}

// queryConversations runs a query returning full conversation rows.
// Callers hold the store mutex.
func (s *ConversationStore) queryConversations(ctx context.Context, query string, args ...any) ([]*domain.Conversation, error) {
	rows, err := s.db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer closeRows(rows)

	var out []*domain.Conversation
	for rows.Next() {
		conv, _, err := scanConversationRaw(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return out, nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// rawConversationFields keeps the undecoded text columns for search.
type rawConversationFields struct {
	messages     string
	systemPrompt string
}

func scanConversation(row scanner) (*domain.Conversation, error) {
	conv, _, err := scanConversationRaw(row)
	return conv, err
}

func scanConversationRaw(row scanner) (*domain.Conversation, rawConversationFields, error) {
	var conv domain.Conversation
	var title, systemPrompt, tokenUsage, metadata sql.NullString
	var messages string

	err := row.Scan(
		&conv.ID, &conv.SessionID, &title, &systemPrompt, &messages,
		&conv.MessageCount, &tokenUsage, &conv.CreatedAt, &conv.UpdatedAt, &metadata,
	)
	if err != nil {
		return nil, rawConversationFields{}, err
	}

	conv.Title = title.String
	conv.SystemPrompt = systemPrompt.String
	conv.Messages = decodeMessages(messages)
	conv.TokenUsage = decodeTokenUsage(tokenUsage.String)
	conv.Metadata = decodeMetadata(metadata.String)

	return &conv, rawConversationFields{messages: messages, systemPrompt: systemPrompt.String}, nil
}

// decodeMessages parses a persisted message list. A corrupt blob yields an
// empty list rather than failing the whole read.
func decodeMessages(raw string) []domain.Message {
	if raw == "" {
		return []domain.Message{}
	}
	var msgs []domain.Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		slog.Warn("Corrupt messages blob, returning empty list", "error", err)
		return []domain.Message{}
	}
	return msgs
}

func decodeTokenUsage(raw string) domain.TokenUsage {
	if raw == "" {
		return domain.TokenUsage{}
	}
	var usage domain.TokenUsage
	if err := json.Unmarshal([]byte(raw), &usage); err != nil {
		slog.Warn("Corrupt token_usage blob, returning zero usage", "error", err)
		return domain.TokenUsage{}
	}
	return usage
}

func decodeMetadata(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		slog.Warn("Corrupt metadata blob, returning empty map", "error", err)
		return map[string]any{}
	}
	if meta == nil {
		meta = map[string]any{}
	}
	return meta
}

// encodeJSON marshals v for storage. Marshal failures cannot occur for the
// domain types stored here; an empty string is stored otherwise.
func encodeJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Failed to encode column value", "error", err)
		return ""
	}
	return string(data)
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		slog.Warn("Failed to close rows", "error", err)
	}
}
