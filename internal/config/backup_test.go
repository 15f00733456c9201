package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBackupFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	t.Run("no config exists", func(t *testing.T) {
		backupPath, err := BackupFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if backupPath != "" {
			t.Errorf("expected empty backup path for non-existent config, got %s", backupPath)
		}
	})

	t.Run("backup existing config", func(t *testing.T) {
		content := "version: 1\nsearch:\n  workers: 8\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		backupPath, err := BackupFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(filepath.Base(backupPath), "config.yaml"+BackupSuffix+".") {
			t.Errorf("unexpected backup name: %s", backupPath)
		}

		got, err := os.ReadFile(backupPath)
		if err != nil {
			t.Fatalf("failed to read backup: %v", err)
		}
		if string(got) != content {
			t.Errorf("backup content mismatch:\ngot: %s\nwant: %s", got, content)
		}
	})
}

func TestListBackups_PrunesToMax(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	var newest string
	for range MaxBackups + 2 {
		b, err := BackupFile(path)
		if err != nil {
			t.Fatalf("backup failed: %v", err)
		}
		newest = b
	}

	backups, err := ListBackups(path)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(backups) != MaxBackups {
		t.Fatalf("expected %d backups, got %d: %v", MaxBackups, len(backups), backups)
	}
	if backups[0] != newest {
		t.Errorf("expected newest backup first, got %s want %s", backups[0], newest)
	}
}

func TestListBackups_MissingDir(t *testing.T) {
	backups, err := ListBackups(filepath.Join(t.TempDir(), "nope", "config.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backups) != 0 {
		t.Errorf("expected no backups, got %v", backups)
	}
}

func TestRestoreFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	backupPath, err := BackupFile(path)
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("version: 2\n"), 0o644); err != nil {
		t.Fatalf("failed to overwrite config: %v", err)
	}

	if err := RestoreFile(path, backupPath); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read restored config: %v", err)
	}
	if string(got) != "version: 1\n" {
		t.Errorf("restored content mismatch: %q", got)
	}

	// The overwritten version was itself backed up before the restore.
	backups, err := ListBackups(path)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(backups) != 2 {
		t.Errorf("expected 2 backups, got %d", len(backups))
	}
}
