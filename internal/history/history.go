// Package history provides the legacy JSON-file conversation log.
//
// It is a lower-durability sibling of the SQLite conversation store: a single
// global list persisted to one file, rewritten in full on every mutation.
// The write rate is low enough that the simplicity wins.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/voxgate/internal/domain"
	"github.com/google/uuid"
)

const historyFileName = "conversations.json"

// Store persists conversation records to a JSON array file.
type Store struct {
	mu   sync.Mutex
	dir  string
	file string
}

// Page is a listing slice with pagination echo.
type Page struct {
	Conversations []domain.ConversationPreview `json:"conversations"`
	Total         int                          `json:"total"`
	Limit         int                          `json:"limit"`
	Offset        int                          `json:"offset"`
}

// Stats summarizes the history file contents.
type Stats struct {
	TotalConversations int                 `json:"total_conversations"`
	TotalMessages      int                 `json:"total_messages"`
	TotalTokens        int                 `json:"total_tokens"`
	StorageDir         string              `json:"storage_dir"`
	StorageFile        string              `json:"storage_file"`
	DateStats          map[string]DateStat `json:"date_stats"`
}

// DateStat is the per-day bucket of Stats.
type DateStat struct {
	Conversations int `json:"conversations"`
	Messages      int `json:"messages"`
}

// NewStore creates a history store rooted at dir, initializing an empty
// history file if none exists.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	s := &Store{dir: dir, file: filepath.Join(dir, historyFileName)}

	if _, err := os.Stat(s.file); os.IsNotExist(err) {
		if err := s.save([]*domain.Conversation{}); err != nil {
			return nil, fmt.Errorf("initialize history file: %w", err)
		}
	}

	return s, nil
}

// load reads the full history list. A missing or corrupt file yields an
// empty list; history is best-effort by design.
func (s *Store) load() []*domain.Conversation {
	data, err := os.ReadFile(s.file)
	if err != nil {
		return []*domain.Conversation{}
	}
	var convs []*domain.Conversation
	if err := json.Unmarshal(data, &convs); err != nil {
		return []*domain.Conversation{}
	}
	return convs
}

func (s *Store) save(convs []*domain.Conversation) error {
	data, err := json.MarshalIndent(convs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := os.WriteFile(s.file, data, 0644); err != nil {
		return fmt.Errorf("write history file: %w", err)
	}
	return nil
}

// Create prepends a new conversation record. The title defaults to a
// timestamped placeholder.
func (s *Store) Create(title, systemPrompt string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := time.Now().UTC().Format(time.RFC3339)
	if title == "" {
		title = "Conversation " + ts
	}

	conv := &domain.Conversation{
		ID:           uuid.NewString()[:8],
		Title:        title,
		SystemPrompt: systemPrompt,
		Messages:     []domain.Message{},
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}

	convs := s.load()
	convs = append([]*domain.Conversation{conv}, convs...)
	if err := s.save(convs); err != nil {
		return nil, err
	}

	return conv, nil
}

// AddMessage appends a message to a conversation and returns the stored
// message, or (nil, nil) when the conversation does not exist.
func (s *Store) AddMessage(id string, role domain.Role, content string, tokenCount int) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs := s.load()
	for _, conv := range convs {
		if conv.ID != id {
			continue
		}

		msg := domain.Message{
			ID:         uuid.NewString()[:8],
			Role:       role,
			Content:    content,
			Timestamp:  time.Now(),
			TokenCount: tokenCount,
		}
		conv.Messages = append(conv.Messages, msg)
		conv.MessageCount = len(conv.Messages)
		conv.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
		conv.TokenUsage.Add(role, tokenCount)

		if err := s.save(convs); err != nil {
			return nil, err
		}
		return &msg, nil
	}

	return nil, nil
}

// Get returns a conversation by id, or nil when absent.
func (s *Store) Get(id string) *domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conv := range s.load() {
		if conv.ID == id {
			return conv
		}
	}
	return nil
}

// List returns a page of conversation previews, newest first (insertion order).
func (s *Store) List(limit, offset int) Page {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs := s.load()
	page := Page{Total: len(convs), Limit: limit, Offset: offset, Conversations: []domain.ConversationPreview{}}

	if offset >= len(convs) {
		return page
	}
	end := offset + limit
	if end > len(convs) {
		end = len(convs)
	}

	for _, conv := range convs[offset:end] {
		page.Conversations = append(page.Conversations, domain.ConversationPreview{
			ID:           conv.ID,
			Title:        conv.Title,
			MessageCount: len(conv.Messages),
			TokenUsage:   conv.TokenUsage,
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
		})
	}

	return page
}

// Delete removes a conversation. Returns false when it did not exist.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs := s.load()
	kept := convs[:0]
	for _, conv := range convs {
		if conv.ID != id {
			kept = append(kept, conv)
		}
	}
	if len(kept) == len(convs) {
		return false, nil
	}
	if err := s.save(kept); err != nil {
		return false, err
	}
	return true, nil
}

// ClearAll removes every conversation after copying the current file to a
// timestamped backup. Returns the number removed.
func (s *Store) ClearAll() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs := s.load()
	if len(convs) == 0 {
		return 0, nil
	}

	backup := filepath.Join(s.dir,
		fmt.Sprintf("conversations_backup_%s.json", time.Now().Format("20060102_150405.000000000")))
	if data, err := os.ReadFile(s.file); err == nil {
		if err := os.WriteFile(backup, data, 0644); err != nil {
			return 0, fmt.Errorf("backup history file: %w", err)
		}
	}

	if err := s.save([]*domain.Conversation{}); err != nil {
		return 0, err
	}
	return len(convs), nil
}

// Export renders a conversation as JSON or a plain-text transcript.
// Returns ("", nil) when the conversation does not exist.
func (s *Store) Export(id, format string) (string, error) {
	conv := s.Get(id)
	if conv == nil {
		return "", nil
	}

	if format != "text" {
		data, err := json.MarshalIndent(conv, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal conversation: %w", err)
		}
		return string(data), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", conv.Title)
	fmt.Fprintf(&b, "Created: %s\n", conv.CreatedAt)
	fmt.Fprintf(&b, "Updated: %s\n", conv.UpdatedAt)
	b.WriteString(strings.Repeat("-", 40) + "\n")

	for _, msg := range conv.Messages {
		fmt.Fprintf(&b, "**%s** (%s):\n", msg.Role.Label(), msg.Timestamp.UTC().Format(time.RFC3339))
		fmt.Fprintf(&b, "%s\n\n", msg.Content)
	}

	return b.String(), nil
}

// Statistics summarizes the history file.
func (s *Store) Statistics() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs := s.load()
	stats := Stats{
		TotalConversations: len(convs),
		StorageDir:         s.dir,
		StorageFile:        s.file,
		DateStats:          map[string]DateStat{},
	}

	for _, conv := range convs {
		stats.TotalMessages += len(conv.Messages)
		stats.TotalTokens += conv.TokenUsage.Total()

		if len(conv.CreatedAt) >= 10 {
			date := conv.CreatedAt[:10]
			day := stats.DateStats[date]
			day.Conversations++
			day.Messages += len(conv.Messages)
			stats.DateStats[date] = day
		}
	}

	return stats
}
