// Package session provides the in-memory conversational window store.
//
// Sessions are bounded (sliding window over the most recent messages),
// expire after a period of inactivity, and are safe for concurrent use by
// multiple request goroutines. A background sweeper removes expired entries.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/voxgate/internal/domain"
	"github.com/google/uuid"
)

const (
	// DefaultMaxMessages bounds the window per session.
	DefaultMaxMessages = 20
	// DefaultTimeout is the inactivity TTL before a session is swept.
	DefaultTimeout = time.Hour
	// DefaultSweepInterval is how often the background sweeper runs.
	DefaultSweepInterval = time.Minute

	// activeWindow is the reporting threshold for "active" sessions in
	// Statistics. It is deliberately independent of the eviction timeout.
	activeWindow = 5 * time.Minute

	// closeTimeout bounds how long Close waits for the sweeper to exit.
	closeTimeout = 5 * time.Second
)

// Options configures a Store. Zero fields fall back to defaults.
type Options struct {
	MaxMessages   int
	Timeout       time.Duration
	SweepInterval time.Duration
}

// Store holds live sessions keyed by session ID.
//
// Every public operation takes the store mutex for its full duration; reads
// also lock because Get refreshes the session's UpdatedAt (reading a session
// extends its TTL).
type Store struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session

	maxMessages   int
	timeout       time.Duration
	sweepInterval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Statistics is a point-in-time snapshot of store-wide counters.
type Statistics struct {
	TotalSessions         int `json:"total_sessions"`
	TotalMessages         int `json:"total_messages"`
	TotalTokens           int `json:"total_tokens"`
	ActiveSessions        int `json:"active_sessions"`
	MaxMessagesPerSession int `json:"max_messages_per_session"`
	SessionTimeoutSeconds int `json:"session_timeout_seconds"`
}

// NewStore creates a session store and starts its background sweeper.
// The caller owns the store and must call Close on shutdown.
func NewStore(opts Options) *Store {
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = DefaultMaxMessages
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}

	s := &Store{
		sessions:      make(map[string]*domain.Session),
		maxMessages:   opts.MaxMessages,
		timeout:       opts.Timeout,
		sweepInterval: opts.SweepInterval,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}

	go s.sweepLoop()

	return s
}

// sweepLoop periodically removes expired sessions until Close is called.
// A failing iteration must not terminate the loop.
func (s *Store) sweepLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.CleanupExpired(); n > 0 {
				slog.Info("Session sweeper removed expired sessions", "count", n)
			}
		case <-s.stop:
			return
		}
	}
}

// Close stops the background sweeper, waiting up to five seconds for it to exit.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })

	select {
	case <-s.done:
	case <-time.After(closeTimeout):
		slog.Warn("Session sweeper did not stop within timeout", "timeout", closeTimeout)
	}
}

// newShortID returns a short opaque identifier.
func newShortID() string {
	return uuid.NewString()[:8]
}

// Create registers a new session. If id is empty a short unique id is
// generated. Creating with an existing id replaces the previous entry
// (map-assignment semantics; creation is not idempotent).
func (s *Store) Create(id, systemPrompt string) domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = newShortID()
	}
	now := time.Now()

	sess := &domain.Session{
		ID:           id,
		SystemPrompt: systemPrompt,
		Messages:     []domain.Message{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.sessions[id] = sess

	return snapshot(sess)
}

// Get returns a snapshot of the session, or nil if it does not exist.
// Reading refreshes UpdatedAt, extending the session's TTL.
func (s *Store) Get(id string) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	sess.UpdatedAt = time.Now()

	snap := snapshot(sess)
	return &snap
}

// AddMessage appends a message to the session window and returns the stored
// message, or nil if the session does not exist. The window is trimmed to the
// most recent maxMessages entries afterwards.
func (s *Store) AddMessage(id string, role domain.Role, content string, tokenCount int) *domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}

	msg := domain.Message{
		ID:         newShortID(),
		Role:       role,
		Content:    content,
		Timestamp:  time.Now(),
		TokenCount: tokenCount,
	}

	sess.Messages = append(sess.Messages, msg)
	sess.TokenUsage.Add(role, tokenCount)

	// Sliding window: keep only the tail. The system prompt lives outside the
	// window and is re-prepended at read time, so it is never trimmed.
	if len(sess.Messages) > s.maxMessages {
		kept := make([]domain.Message, s.maxMessages)
		copy(kept, sess.Messages[len(sess.Messages)-s.maxMessages:])
		sess.Messages = kept
	}

	sess.MessageCount = len(sess.Messages)
	sess.UpdatedAt = time.Now()

	return &msg
}

// Messages returns the session window as LLM call input, prepending a
// synthetic system message when the session has a system prompt and
// includeSystemPrompt is set. Missing sessions yield an empty slice.
func (s *Store) Messages(id string, includeSystemPrompt bool) []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return []domain.ChatMessage{}
	}

	msgs := make([]domain.ChatMessage, 0, len(sess.Messages)+1)
	if includeSystemPrompt && sess.SystemPrompt != "" {
		msgs = append(msgs, domain.ChatMessage{Role: domain.RoleSystem, Content: sess.SystemPrompt})
	}
	for _, m := range sess.Messages {
		msgs = append(msgs, domain.ChatMessage{Role: m.Role, Content: m.Content})
	}

	return msgs
}

// History returns a copy of the session's full message window.
func (s *Store) History(id string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return []domain.Message{}
	}

	out := make([]domain.Message, len(sess.Messages))
	copy(out, sess.Messages)
	return out
}

// UpdateSystemPrompt replaces the session's system prompt.
// Returns false if the session does not exist.
func (s *Store) UpdateSystemPrompt(id, prompt string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	sess.SystemPrompt = prompt
	sess.UpdatedAt = time.Now()
	return true
}

// Delete removes a session. Returns false if it did not exist.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// CleanupExpired removes sessions idle longer than the store timeout and
// returns the number removed. The background sweeper calls this on a fixed
// interval; tests may call it synchronously.
func (s *Store) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.UpdatedAt) > s.timeout {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// ClearAll removes every session and returns the number removed.
func (s *Store) ClearAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := len(s.sessions)
	s.sessions = make(map[string]*domain.Session)
	return count
}

// Statistics returns store-wide counters.
func (s *Store) Statistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Statistics{
		TotalSessions:         len(s.sessions),
		MaxMessagesPerSession: s.maxMessages,
		SessionTimeoutSeconds: int(s.timeout.Seconds()),
	}

	now := time.Now()
	for _, sess := range s.sessions {
		stats.TotalMessages += len(sess.Messages)
		stats.TotalTokens += sess.TokenUsage.Total()
		if now.Sub(sess.UpdatedAt) < activeWindow {
			stats.ActiveSessions++
		}
	}

	return stats
}

// List returns basic information about every live session.
func (s *Store) List() []domain.SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.SessionSummary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, domain.SessionSummary{
			ID:           sess.ID,
			MessageCount: sess.MessageCount,
			TokenUsage:   sess.TokenUsage,
			CreatedAt:    sess.CreatedAt,
			UpdatedAt:    sess.UpdatedAt,
		})
	}
	return out
}

// snapshot returns a deep copy so callers never share the live slice.
func snapshot(sess *domain.Session) domain.Session {
	cp := *sess
	cp.Messages = make([]domain.Message, len(sess.Messages))
	copy(cp.Messages, sess.Messages)
	cp.MessageCount = len(cp.Messages)
	return cp
}
