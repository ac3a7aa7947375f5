package store

import (
	"os"
	"path/filepath"
	"testing"
)

// newTestStore creates a new Store backed by a database in a temporary directory.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "moods.db")

	// Verify the database file doesn't exist yet
	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Fatal("database file should not exist before creating store")
	}

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file should exist after creating store")
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	checks := []struct {
		kind  string
		names []string
	}{
		{"table", []string{"sessions", "mood_transitions", "actions", "settings"}},
		{"index", []string{"idx_mood_transitions_session_id", "idx_sessions_started_at"}},
	}
	for _, c := range checks {
		for _, name := range c.names {
			var got string
			err := s.DB().QueryRow(
				"SELECT name FROM sqlite_master WHERE type=? AND name=?",
				c.kind, name,
			).Scan(&got)
			if err != nil {
				t.Errorf("%s %q should exist after migrations: %v", c.kind, name, err)
			}
		}
	}
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "moods.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := s.Settings().Set("enabled", "false"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	s.Close()

	// Migrations are idempotent.
	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s.Close()

	if got, _ := s.Settings().Get("enabled"); got != "false" {
		t.Errorf("setting after reopen = %q, want false", got)
	}
}

func TestStore_Close(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("close should not return error: %v", err)
	}

	// After closing, DB operations should fail
	if _, err := s.DB().Exec("SELECT 1"); err == nil {
		t.Error("DB operations should fail after close")
	}
}

func TestStore_ForeignKeysEnabled(t *testing.T) {
	s := newTestStore(t)

	var fkEnabled int
	if err := s.DB().QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Fatalf("failed to check foreign keys pragma: %v", err)
	}
	if fkEnabled != 1 {
		t.Error("foreign keys should be enabled")
	}
}

func TestSettingsRepository(t *testing.T) {
	repo := newTestStore(t).Settings()

	if _, err := repo.Get("missing"); err != ErrNotFound {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
	if !repo.Bool("missing", true) {
		t.Error("Bool should fall back to the default")
	}

	if err := repo.SetBool("enabled", false); err != nil {
		t.Fatalf("SetBool() error: %v", err)
	}
	if repo.Bool("enabled", true) {
		t.Error("Bool(enabled) = true, want false")
	}

	if err := repo.Set("enabled", "yes please"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if !repo.Bool("enabled", true) {
		t.Error("unparsable value should fall back to the default")
	}
}
