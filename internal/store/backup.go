package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// backupDirName is the sibling directory holding database backups.
	backupDirName = "backups"
	// maxBackups is how many backups are retained; older ones are deleted
	// by file modification time.
	maxBackups = 5
)

// fileTimestamp returns a filename-safe timestamp with nanosecond precision
// so rapid successive backups never collide.
func fileTimestamp() string {
	return time.Now().Format("20060102_150405.000000000")
}

// backupDir returns the directory where backups live.
func (s *ConversationStore) backupDir() string {
	return filepath.Join(filepath.Dir(s.db.path), backupDirName)
}

// CreateBackup copies the database file into the backup directory with a
// timestamped name and prunes old backups. Returns the backup file path.
func (s *ConversationStore) CreateBackup() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createBackupLocked()
}

func (s *ConversationStore) createBackupLocked() (string, error) {
	dir := s.backupDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	// Fold WAL content into the main file so the copy is self-contained.
	if _, err := s.db.sql.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		slog.Warn("WAL checkpoint before backup failed", "error", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("conversations_backup_%s.db", fileTimestamp()))
	if err := copyFile(s.db.path, path); err != nil {
		return "", fmt.Errorf("copy database file: %w", err)
	}

	if err := pruneBackups(dir); err != nil {
		slog.Warn("Failed to prune old backups", "error", err)
	}

	return path, nil
}

// RestoreFromBackup overwrites the live database with the backup file's
// bytes, after backing up the current state first.
func (s *ConversationStore) RestoreFromBackup(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("backup file not accessible: %w", err)
	}

	if _, err := s.createBackupLocked(); err != nil {
		return fmt.Errorf("backup current database: %w", err)
	}

	if err := copyFile(path, s.db.path); err != nil {
		return fmt.Errorf("restore database file: %w", err)
	}
	return nil
}

// pruneBackups keeps the maxBackups most recently modified .db files.
func pruneBackups(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read backup directory: %w", err)
	}

	type backupFile struct {
		name    string
		modTime time.Time
	}

	var backups []backupFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".db") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, backupFile{name: entry.Name(), modTime: info.ModTime()})
	}

	sort.Slice(backups, func(i, j int) bool {
		if backups[i].modTime.Equal(backups[j].modTime) {
			return backups[i].name > backups[j].name
		}
		return backups[i].modTime.After(backups[j].modTime)
	})

	for _, old := range backups[min(len(backups), maxBackups):] {
		if err := os.Remove(filepath.Join(dir, old.name)); err != nil {
			slog.Warn("Failed to remove old backup", "name", old.name, "error", err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}
