package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBackupRotation(t *testing.T) {
	t.Parallel()
	s := newTestConversationStore(t)

	if err := s.Create(context.Background(), sampleConversation("c1", "s")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	var last string
	for i := 0; i < 7; i++ {
		path, err := s.CreateBackup()
		if err != nil {
			t.Fatalf("CreateBackup #%d: %v", i, err)
		}
		last = path
	}

	dir := s.backupDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read backup dir: %v", err)
	}

	count := 0
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".db") {
			count++
		}
	}
	if count != maxBackups {
		t.Errorf("retained %d backups, want %d", count, maxBackups)
	}

	// The newest backup must be among the survivors.
	if _, err := os.Stat(last); err != nil {
		t.Errorf("latest backup was pruned: %v", err)
	}
}

func TestRestoreFromBackup(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	s := NewConversationStore(db, t.TempDir())
	ctx := context.Background()

	if err := s.Create(ctx, sampleConversation("keep", "s")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	backup, err := s.CreateBackup()
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}

	if err := s.Create(ctx, sampleConversation("after-backup", "s")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.RestoreFromBackup(backup); err != nil {
		t.Fatalf("RestoreFromBackup: %v", err)
	}

	// Reopen to read the restored file without pooled pre-restore pages.
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	reopened, err := Open(db.Path())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	restored := NewConversationStore(reopened, t.TempDir())

	got, err := restored.Get(ctx, "keep")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Error("pre-backup conversation missing after restore")
	}

	gone, err := restored.Get(ctx, "after-backup")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gone != nil {
		t.Error("post-backup conversation survived restore")
	}
}

func TestRestoreMissingBackup(t *testing.T) {
	t.Parallel()
	s := newTestConversationStore(t)

	if err := s.RestoreFromBackup(filepath.Join(t.TempDir(), "nope.db")); err == nil {
		t.Error("restore from missing file did not fail")
	}
}
