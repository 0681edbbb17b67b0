package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ashureev/voxgate/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestNewStoreInitializesFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if _, err := NewStore(dir); err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, historyFileName))
	if err != nil {
		t.Fatalf("read history file: %v", err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("initial file = %q, want empty array", data)
	}
}

func TestCreateAndGet(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	conv, err := s.Create("morning chat", "be brief")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if conv.ID == "" || conv.Title != "morning chat" {
		t.Errorf("created = %+v", conv)
	}

	got := s.Get(conv.ID)
	if got == nil {
		t.Fatal("Get returned nil for created conversation")
	}
	if got.SystemPrompt != "be brief" {
		t.Errorf("system prompt = %q", got.SystemPrompt)
	}

	if s.Get("missing") != nil {
		t.Error("Get(missing) != nil")
	}
}

func TestCreateDefaultTitle(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	conv, err := s.Create("", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(conv.Title, "Conversation ") {
		t.Errorf("default title = %q", conv.Title)
	}
}

func TestAddMessagePersists(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	conv, err := s.Create("chat", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	msg, err := s.AddMessage(conv.ID, domain.RoleUser, "hi", 5)
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if msg == nil || msg.Content != "hi" {
		t.Fatalf("message = %+v", msg)
	}

	// A second store over the same directory sees the write.
	reopened, err := NewStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got := reopened.Get(conv.ID)
	if got == nil || len(got.Messages) != 1 {
		t.Fatalf("reloaded conversation = %+v", got)
	}
	if got.MessageCount != 1 || got.TokenUsage.Input != 5 {
		t.Errorf("count=%d usage=%+v", got.MessageCount, got.TokenUsage)
	}
}

func TestAddMessageMissingConversation(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	msg, err := s.AddMessage("nope", domain.RoleUser, "hi", 0)
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if msg != nil {
		t.Errorf("AddMessage(missing) = %+v, want nil", msg)
	}
}

func TestListPagination(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		if _, err := s.Create("", ""); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	page := s.List(2, 0)
	if page.Total != 5 || len(page.Conversations) != 2 {
		t.Errorf("page = total %d, %d entries", page.Total, len(page.Conversations))
	}

	tail := s.List(10, 4)
	if len(tail.Conversations) != 1 {
		t.Errorf("tail page has %d entries, want 1", len(tail.Conversations))
	}

	empty := s.List(10, 99)
	if len(empty.Conversations) != 0 {
		t.Errorf("out-of-range page has %d entries", len(empty.Conversations))
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	conv, err := s.Create("", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	deleted, err := s.Delete(conv.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Error("Delete returned false for existing conversation")
	}

	deleted, err = s.Delete(conv.ID)
	if err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if deleted {
		t.Error("Delete returned true for missing conversation")
	}
}

func TestClearAllBacksUpFirst(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if _, err := s.Create("", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Create("", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}

	removed, err := s.ClearAll()
	if err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	backups := 0
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "conversations_backup_") {
			backups++
		}
	}
	if backups != 1 {
		t.Errorf("found %d backup files, want 1", backups)
	}

	if again, err := s.ClearAll(); err != nil || again != 0 {
		t.Errorf("second ClearAll = %d, %v", again, err)
	}
}

func TestExportText(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	conv, err := s.Create("daily check", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.AddMessage(conv.ID, domain.RoleUser, "what's the weather", 0); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if _, err := s.AddMessage(conv.ID, domain.RoleAssistant, "sunny", 0); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	out, err := s.Export(conv.ID, "text")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.HasPrefix(out, "# daily check\n") {
		t.Errorf("transcript header = %q", strings.SplitN(out, "\n", 2)[0])
	}
	if !strings.Contains(out, strings.Repeat("-", 40)) {
		t.Error("transcript missing divider")
	}
	if !strings.Contains(out, "**User**") || !strings.Contains(out, "**Assistant**") {
		t.Error("transcript missing role labels")
	}
	if !strings.Contains(out, "sunny") {
		t.Error("transcript missing message content")
	}
}

func TestExportJSONAndMissing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	conv, err := s.Create("x", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	out, err := s.Export(conv.ID, "json")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.Contains(out, `"id"`) {
		t.Errorf("json export = %q", out)
	}

	out, err = s.Export("missing", "json")
	if err != nil {
		t.Fatalf("Export(missing): %v", err)
	}
	if out != "" {
		t.Errorf("Export(missing) = %q, want empty", out)
	}
}

func TestStatistics(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	a, err := s.Create("", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.AddMessage(a.ID, domain.RoleUser, "hi", 3); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if _, err := s.AddMessage(a.ID, domain.RoleAssistant, "hey", 4); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if _, err := s.Create("", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}

	stats := s.Statistics()
	if stats.TotalConversations != 2 {
		t.Errorf("conversations = %d, want 2", stats.TotalConversations)
	}
	if stats.TotalMessages != 2 {
		t.Errorf("messages = %d, want 2", stats.TotalMessages)
	}
	if stats.TotalTokens != 7 {
		t.Errorf("tokens = %d, want 7", stats.TotalTokens)
	}
	if len(stats.DateStats) != 1 {
		t.Errorf("date buckets = %d, want 1", len(stats.DateStats))
	}
}
