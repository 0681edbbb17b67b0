package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/ashureev/voxgate/internal/domain"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s := NewStore(opts)
	t.Cleanup(s.Close)
	return s
}

func TestCreateGeneratesID(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Options{})

	sess := s.Create("", "you are helpful")
	if sess.ID == "" {
		t.Fatal("expected generated session id")
	}
	if sess.SystemPrompt != "you are helpful" {
		t.Errorf("system prompt = %q", sess.SystemPrompt)
	}
	if len(sess.Messages) != 0 {
		t.Errorf("new session has %d messages", len(sess.Messages))
	}
}

func TestGetMissingSession(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Options{})

	if got := s.Get("nope"); got != nil {
		t.Errorf("Get(missing) = %+v, want nil", got)
	}
	if msg := s.AddMessage("nope", domain.RoleUser, "hi", 0); msg != nil {
		t.Errorf("AddMessage(missing) = %+v, want nil", msg)
	}
	if msgs := s.Messages("nope", true); len(msgs) != 0 {
		t.Errorf("Messages(missing) = %v, want empty", msgs)
	}
}

func TestSlidingWindow(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Options{MaxMessages: 5})

	sess := s.Create("", "")
	for i := 0; i < 8; i++ {
		s.AddMessage(sess.ID, domain.RoleUser, fmt.Sprintf("message %d", i), 0)
	}

	history := s.History(sess.ID)
	if len(history) != 5 {
		t.Fatalf("window holds %d messages, want 5", len(history))
	}
	// Only the most recent messages survive.
	if history[0].Content != "message 3" {
		t.Errorf("oldest kept message = %q, want %q", history[0].Content, "message 3")
	}
	if history[4].Content != "message 7" {
		t.Errorf("newest message = %q, want %q", history[4].Content, "message 7")
	}
}

func TestSystemPromptSurvivesTrim(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Options{MaxMessages: 3})

	sess := s.Create("", "be terse")
	for i := 0; i < 10; i++ {
		s.AddMessage(sess.ID, domain.RoleUser, fmt.Sprintf("m%d", i), 0)
	}

	msgs := s.Messages(sess.ID, true)
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 3 + system prompt", len(msgs))
	}
	if msgs[0].Role != domain.RoleSystem || msgs[0].Content != "be terse" {
		t.Errorf("first message = %+v, want system prompt", msgs[0])
	}

	without := s.Messages(sess.ID, false)
	if len(without) != 3 {
		t.Errorf("got %d messages without prompt, want 3", len(without))
	}
}

func TestTokenAccounting(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Options{})

	sess := s.Create("", "")
	s.AddMessage(sess.ID, domain.RoleUser, "hi", 5)
	s.AddMessage(sess.ID, domain.RoleAssistant, "hello", 7)

	got := s.Get(sess.ID)
	if got.TokenUsage.Input != 5 {
		t.Errorf("input tokens = %d, want 5", got.TokenUsage.Input)
	}
	if got.TokenUsage.Output != 7 {
		t.Errorf("output tokens = %d, want 7", got.TokenUsage.Output)
	}
	if got.TokenUsage.Total() != 12 {
		t.Errorf("total tokens = %d, want 12", got.TokenUsage.Total())
	}
}

func TestMessageWindowContents(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Options{})

	sess := s.Create("", "")
	s.AddMessage(sess.ID, domain.RoleUser, "hi", 0)
	s.AddMessage(sess.ID, domain.RoleAssistant, "hello", 0)

	msgs := s.Messages(sess.ID, true)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2 (no system prompt was set)", len(msgs))
	}
	if msgs[0].Role != domain.RoleUser || msgs[0].Content != "hi" {
		t.Errorf("first message = %+v", msgs[0])
	}
	if msgs[1].Role != domain.RoleAssistant || msgs[1].Content != "hello" {
		t.Errorf("second message = %+v", msgs[1])
	}
}

func TestExpiryAndReadExtendsTTL(t *testing.T) {
	t.Parallel()
	// Sweep interval is long so only explicit CleanupExpired runs.
	s := newTestStore(t, Options{Timeout: 50 * time.Millisecond, SweepInterval: time.Hour})

	stale := s.Create("stale", "")
	fresh := s.Create("fresh", "")

	time.Sleep(80 * time.Millisecond)
	// Reading refreshes UpdatedAt, so this one must survive the cleanup.
	s.Get(fresh.ID)

	if removed := s.CleanupExpired(); removed != 1 {
		t.Fatalf("CleanupExpired removed %d, want 1", removed)
	}
	if s.Get(stale.ID) != nil {
		t.Error("stale session survived cleanup")
	}
	if s.Get(fresh.ID) == nil {
		t.Error("recently read session was evicted")
	}
}

func TestBackgroundSweeper(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Options{Timeout: 20 * time.Millisecond, SweepInterval: 20 * time.Millisecond})

	s.Create("doomed", "")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		_, alive := s.sessions["doomed"]
		s.mu.Unlock()
		if !alive {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("sweeper never removed the expired session")
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()
	s := NewStore(Options{})
	s.Close()
	s.Close()
}

func TestDeleteAndClearAll(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Options{})

	sess := s.Create("", "")
	if !s.Delete(sess.ID) {
		t.Error("Delete returned false for existing session")
	}
	if s.Delete(sess.ID) {
		t.Error("Delete returned true for missing session")
	}

	s.Create("", "")
	s.Create("", "")
	if removed := s.ClearAll(); removed != 2 {
		t.Errorf("ClearAll removed %d, want 2", removed)
	}
}

func TestStatistics(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Options{MaxMessages: 7, Timeout: 90 * time.Second})

	a := s.Create("", "")
	s.Create("", "")
	s.AddMessage(a.ID, domain.RoleUser, "hi", 3)
	s.AddMessage(a.ID, domain.RoleAssistant, "hello", 4)

	stats := s.Statistics()
	if stats.TotalSessions != 2 {
		t.Errorf("total sessions = %d, want 2", stats.TotalSessions)
	}
	if stats.TotalMessages != 2 {
		t.Errorf("total messages = %d, want 2", stats.TotalMessages)
	}
	if stats.TotalTokens != 7 {
		t.Errorf("total tokens = %d, want 7", stats.TotalTokens)
	}
	if stats.ActiveSessions != 2 {
		t.Errorf("active sessions = %d, want 2", stats.ActiveSessions)
	}
	if stats.MaxMessagesPerSession != 7 {
		t.Errorf("max messages = %d, want 7", stats.MaxMessagesPerSession)
	}
	if stats.SessionTimeoutSeconds != 90 {
		t.Errorf("timeout seconds = %d, want 90", stats.SessionTimeoutSeconds)
	}
}

func TestUpdateSystemPrompt(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Options{})

	sess := s.Create("", "old")
	if !s.UpdateSystemPrompt(sess.ID, "new") {
		t.Fatal("UpdateSystemPrompt returned false")
	}
	if got := s.Get(sess.ID); got.SystemPrompt != "new" {
		t.Errorf("system prompt = %q, want %q", got.SystemPrompt, "new")
	}
	if s.UpdateSystemPrompt("missing", "x") {
		t.Error("UpdateSystemPrompt returned true for missing session")
	}
}

func TestSnapshotIsolation(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Options{})

	sess := s.Create("", "")
	s.AddMessage(sess.ID, domain.RoleUser, "original", 0)

	snap := s.Get(sess.ID)
	snap.Messages[0].Content = "mutated"

	if got := s.Get(sess.ID); got.Messages[0].Content != "original" {
		t.Error("mutating a snapshot leaked into the store")
	}
}
