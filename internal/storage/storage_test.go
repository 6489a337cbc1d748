package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func TestOpen_CreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "taskpad.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	for _, table := range []string{"projects", "project_members", "tasks", "scratchpads", "subagent_runs"} {
		if !db.Gorm().Migrator().HasTable(table) {
			t.Errorf("table %s missing", table)
		}
	}

	var mode string
	if err := db.SQL().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %s, want wal", mode)
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskpad.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if err := db.Gorm().Create(&Project{ProjectID: "p1", OwnerID: "u1", CreatedAt: Now()}).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}
	_ = db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer db.Close()

	var count int64
	if err := db.Gorm().Model(&Project{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("projects = %d, want 1 after reopen", count)
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2025, 3, 4, 5, 6, 7, 0, time.FixedZone("X", 3600))
	if got := FormatTime(ts); got != "2025-03-04T04:06:07Z" {
		t.Errorf("FormatTime = %s", got)
	}
}
