package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"physkey/internal/shortcuts"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenAndClose(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestPing(t *testing.T) {
	s := openTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	s.Close()
	if err := s.Ping(context.Background()); err == nil {
		t.Error("Ping succeeded on a closed store")
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	info, err := os.Stat(dbPath)
	if err != nil {
		t.Fatalf("stat database: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected mode 0600, got %o", perm)
	}
}

func TestCloseNilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close on nil db should not error: %v", err)
	}
}

func TestInsertAndGetShortcut(t *testing.T) {
	s := openTestStore(t)

	sc := &shortcuts.Shortcut{
		Trigger:       "API",
		Replacement:   "application programming interface",
		Language:      "en",
		CaseSensitive: true,
	}
	id, err := s.InsertShortcut(sc)
	if err != nil {
		t.Fatalf("InsertShortcut failed: %v", err)
	}
	if id <= 0 || sc.ID != id {
		t.Fatalf("expected positive ID set on shortcut, got id=%d sc.ID=%d", id, sc.ID)
	}

	got, err := s.GetShortcut(id)
	if err != nil {
		t.Fatalf("GetShortcut failed: %v", err)
	}
	if *got != *sc {
		t.Errorf("round trip mismatch: expected %+v, got %+v", *sc, *got)
	}
}

func TestGetShortcutNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetShortcut(42)
	if !errors.Is(err, shortcuts.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertDuplicate(t *testing.T) {
	s := openTestStore(t)

	sc := shortcuts.Shortcut{Trigger: "brb", Replacement: "be right back", Language: "en"}
	if _, err := s.InsertShortcut(&sc); err != nil {
		t.Fatalf("InsertShortcut failed: %v", err)
	}
	dup := sc
	dup.ID = 0
	_, err := s.InsertShortcut(&dup)
	if !errors.Is(err, shortcuts.ErrDuplicateTrigger) {
		t.Errorf("expected ErrDuplicateTrigger, got %v", err)
	}

	other := sc
	other.Language = "de"
	if _, err := s.InsertShortcut(&other); err != nil {
		t.Errorf("same trigger in another language should insert: %v", err)
	}
}

func TestInsertShortcutsBatch(t *testing.T) {
	s := openTestStore(t)

	batch := []shortcuts.Shortcut{
		{Trigger: "dont", Replacement: "don't", Language: "en", IsDefault: true},
		{Trigger: "teh", Replacement: "the", Language: "en", IsDefault: true},
		{Trigger: "qqch", Replacement: "quelque chose", Language: "fr", IsDefault: true},
	}
	if err := s.InsertShortcuts(batch); err != nil {
		t.Fatalf("InsertShortcuts failed: %v", err)
	}
	for i, sc := range batch {
		if sc.ID == 0 {
			t.Errorf("batch[%d] has no ID", i)
		}
	}

	all, err := s.ListShortcuts()
	if err != nil {
		t.Fatalf("ListShortcuts failed: %v", err)
	}
	if len(all) != len(batch) {
		t.Fatalf("expected %d shortcuts, got %d", len(batch), len(all))
	}
	for i := range all {
		if all[i] != batch[i] {
			t.Errorf("row %d: expected %+v, got %+v", i, batch[i], all[i])
		}
	}
}

func TestInsertShortcutsRollsBack(t *testing.T) {
	s := openTestStore(t)

	batch := []shortcuts.Shortcut{
		{Trigger: "dont", Replacement: "don't", Language: "en"},
		{Trigger: "dont", Replacement: "do not", Language: "en"},
	}
	err := s.InsertShortcuts(batch)
	if !errors.Is(err, shortcuts.ErrDuplicateTrigger) {
		t.Fatalf("expected ErrDuplicateTrigger, got %v", err)
	}

	all, err := s.ListShortcuts()
	if err != nil {
		t.Fatalf("ListShortcuts failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected failed batch to roll back, found %d rows", len(all))
	}
}

func TestListByLanguage(t *testing.T) {
	s := openTestStore(t)

	for _, sc := range []shortcuts.Shortcut{
		{Trigger: "zz", Replacement: "z", Language: "en"},
		{Trigger: "Bb", Replacement: "b", Language: "en"},
		{Trigger: "aa", Replacement: "a", Language: "en"},
		{Trigger: "mm", Replacement: "m", Language: "de"},
	} {
		if _, err := s.InsertShortcut(&sc); err != nil {
			t.Fatalf("InsertShortcut failed: %v", err)
		}
	}

	en, err := s.ListByLanguage("en")
	if err != nil {
		t.Fatalf("ListByLanguage failed: %v", err)
	}
	var got []string
	for _, sc := range en {
		got = append(got, sc.Trigger)
	}
	want := []string{"aa", "Bb", "zz"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestUpdateShortcut(t *testing.T) {
	s := openTestStore(t)

	sc := shortcuts.Shortcut{Trigger: "brb", Replacement: "be right back", Language: "en"}
	if _, err := s.InsertShortcut(&sc); err != nil {
		t.Fatalf("InsertShortcut failed: %v", err)
	}

	sc.Replacement = "be right back!"
	if err := s.UpdateShortcut(&sc); err != nil {
		t.Fatalf("UpdateShortcut failed: %v", err)
	}
	got, err := s.GetShortcut(sc.ID)
	if err != nil {
		t.Fatalf("GetShortcut failed: %v", err)
	}
	if got.Replacement != "be right back!" {
		t.Errorf("expected updated replacement, got %q", got.Replacement)
	}

	missing := sc
	missing.ID = 999
	if err := s.UpdateShortcut(&missing); !errors.Is(err, shortcuts.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteShortcut(t *testing.T) {
	s := openTestStore(t)

	sc := shortcuts.Shortcut{Trigger: "brb", Replacement: "be right back", Language: "en"}
	if _, err := s.InsertShortcut(&sc); err != nil {
		t.Fatalf("InsertShortcut failed: %v", err)
	}
	if err := s.DeleteShortcut(sc.ID); err != nil {
		t.Fatalf("DeleteShortcut failed: %v", err)
	}
	if err := s.DeleteShortcut(sc.ID); !errors.Is(err, shortcuts.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestStats(t *testing.T) {
	s := openTestStore(t)

	if err := s.InsertShortcuts([]shortcuts.Shortcut{
		{Trigger: "dont", Replacement: "don't", Language: "en", IsDefault: true},
		{Trigger: "teh", Replacement: "the", Language: "en", IsDefault: true},
		{Trigger: "brb", Replacement: "be right back", Language: "en"},
		{Trigger: "qqch", Replacement: "quelque chose", Language: "fr", IsDefault: true},
	}); err != nil {
		t.Fatalf("InsertShortcuts failed: %v", err)
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 4 || stats.Defaults != 3 {
		t.Errorf("expected 4 total / 3 defaults, got %d / %d", stats.Total, stats.Defaults)
	}
	if stats.ByLanguage["en"] != 3 || stats.ByLanguage["fr"] != 1 {
		t.Errorf("unexpected per-language counts: %v", stats.ByLanguage)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	sc := shortcuts.Shortcut{Trigger: "omw", Replacement: "on my way", Language: "en"}
	if _, err := s.InsertShortcut(&sc); err != nil {
		t.Fatalf("InsertShortcut failed: %v", err)
	}
	s.Close()

	s, err = Open(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	got, err := s.GetShortcut(sc.ID)
	if err != nil {
		t.Fatalf("GetShortcut after reopen failed: %v", err)
	}
	if got.Replacement != "on my way" {
		t.Errorf("expected persisted replacement, got %q", got.Replacement)
	}
}

func TestMigrations(t *testing.T) {
	s := openTestStore(t)

	status, err := s.MigrationStatus()
	if err != nil {
		t.Fatalf("MigrationStatus failed: %v", err)
	}
	if status.CurrentVersion != status.LatestVersion {
		t.Errorf("expected fully migrated, at %d of %d", status.CurrentVersion, status.LatestVersion)
	}
	if len(status.Pending) != 0 {
		t.Errorf("expected no pending migrations, got %d", len(status.Pending))
	}
	if len(status.Applied) != len(migrations) {
		t.Errorf("expected %d applied migrations, got %d", len(migrations), len(status.Applied))
	}

	if err := ValidateSchema(s.db); err != nil {
		t.Fatalf("ValidateSchema failed: %v", err)
	}

	// Migrating again is a no-op.
	if err := MigrateDB(s.db); err != nil {
		t.Fatalf("second MigrateDB failed: %v", err)
	}
}

func TestRollbackMigration(t *testing.T) {
	s := openTestStore(t)

	for range migrations {
		if err := RollbackMigration(s.db); err != nil {
			t.Fatalf("RollbackMigration failed: %v", err)
		}
	}
	if err := RollbackMigration(s.db); err == nil {
		t.Error("expected error rolling back an empty schema")
	}
	if err := ValidateSchema(s.db); err == nil {
		t.Error("expected missing shortcuts table after full rollback")
	}

	status, err := GetMigrationStatus(s.db)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if status.CurrentVersion != 0 || len(status.Pending) != len(migrations) {
		t.Errorf("expected all migrations pending, got current=%d pending=%d", status.CurrentVersion, len(status.Pending))
	}

	if err := MigrateDB(s.db); err != nil {
		t.Fatalf("re-migrate failed: %v", err)
	}
	if err := ValidateSchema(s.db); err != nil {
		t.Errorf("ValidateSchema after re-migrate failed: %v", err)
	}
}

func TestStoreBacksRepository(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "shortcuts.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	repo, err := shortcuts.NewRepository(s, nil)
	if err != nil {
		t.Fatalf("NewRepository failed: %v", err)
	}
	n, err := repo.InitializeDefaults()
	if err != nil {
		t.Fatalf("InitializeDefaults failed: %v", err)
	}
	if n == 0 {
		t.Fatal("expected defaults to be installed")
	}
	if _, err := repo.Add(shortcuts.Shortcut{Trigger: "physk", Replacement: "physkey", Language: "en"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	s.Close()

	s, err = Open(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	repo, err = shortcuts.NewRepository(s, nil)
	if err != nil {
		t.Fatalf("NewRepository failed: %v", err)
	}
	if repo.Len() != n+1 {
		t.Errorf("expected %d shortcuts after reopen, got %d", n+1, repo.Len())
	}
	if repl, _, ok := repo.Resolve("en", "Physk"); !ok || repl != "physkey" {
		t.Errorf("expected user shortcut to resolve, got %q %v", repl, ok)
	}
	if n, _ := repo.InitializeDefaults(); n != 0 {
		t.Errorf("defaults must not be installed twice, added %d", n)
	}
}
