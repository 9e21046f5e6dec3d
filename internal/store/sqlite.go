// Package store keeps user shortcuts in SQLite. Store implements
// shortcuts.Storage and migrates its schema on Open.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"physkey/internal/shortcuts"
)

// Store is the SQLite shortcut store. It implements shortcuts.Storage.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ shortcuts.Storage = (*Store)(nil)

// Open opens or creates the SQLite database at the given path and runs migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; WAL lets readers proceed.
	db.SetMaxOpenConns(1)

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	// Shortcuts may hold personal text.
	if err := os.Chmod(path, 0600); err != nil {
		db.Close()
		return nil, fmt.Errorf("set database permissions: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// MigrationStatus reports the schema version of the open database.
func (s *Store) MigrationStatus() (*MigrationStatus, error) {
	return GetMigrationStatus(s.db)
}

const shortcutColumns = `id, language, trigger_text, replacement, case_sensitive, is_default`

// ListShortcuts returns every shortcut ordered by ID.
func (s *Store) ListShortcuts() ([]shortcuts.Shortcut, error) {
	rows, err := s.db.Query(`SELECT ` + shortcutColumns + ` FROM shortcuts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list shortcuts: %w", err)
	}
	defer rows.Close()
	return scanShortcuts(rows)
}

// ListByLanguage returns the shortcuts of one language ordered by trigger.
func (s *Store) ListByLanguage(language string) ([]shortcuts.Shortcut, error) {
	rows, err := s.db.Query(`
		SELECT `+shortcutColumns+` FROM shortcuts
		WHERE language = ?
		ORDER BY trigger_text COLLATE NOCASE, trigger_text`, language)
	if err != nil {
		return nil, fmt.Errorf("list shortcuts for %s: %w", language, err)
	}
	defer rows.Close()
	return scanShortcuts(rows)
}

// GetShortcut returns the shortcut with id, or shortcuts.ErrNotFound.
func (s *Store) GetShortcut(id int64) (*shortcuts.Shortcut, error) {
	var sc shortcuts.Shortcut
	err := s.db.QueryRow(`SELECT `+shortcutColumns+` FROM shortcuts WHERE id = ?`, id).
		Scan(&sc.ID, &sc.Language, &sc.Trigger, &sc.Replacement, &sc.CaseSensitive, &sc.IsDefault)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get shortcut %d: %w", id, shortcuts.ErrNotFound)
		}
		return nil, fmt.Errorf("get shortcut: %w", err)
	}
	return &sc, nil
}

// InsertShortcut inserts a shortcut and returns its ID.
func (s *Store) InsertShortcut(sc *shortcuts.Shortcut) (int64, error) {
	now := s.now().UnixNano()
	result, err := s.db.Exec(`
		INSERT INTO shortcuts (language, trigger_text, replacement, case_sensitive, is_default, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sc.Language, sc.Trigger, sc.Replacement, sc.CaseSensitive, sc.IsDefault, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert shortcut: %w", mapConstraint(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	sc.ID = id
	return id, nil
}

// InsertShortcuts inserts scs in one transaction and sets their IDs.
func (s *Store) InsertShortcuts(scs []shortcuts.Shortcut) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO shortcuts (language, trigger_text, replacement, case_sensitive, is_default, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	now := s.now().UnixNano()
	for i := range scs {
		sc := &scs[i]
		result, err := stmt.Exec(sc.Language, sc.Trigger, sc.Replacement, sc.CaseSensitive, sc.IsDefault, now, now)
		if err != nil {
			return fmt.Errorf("insert shortcut %q: %w", sc.Trigger, mapConstraint(err))
		}
		if sc.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("get last insert id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// UpdateShortcut rewrites the row with sc.ID.
func (s *Store) UpdateShortcut(sc *shortcuts.Shortcut) error {
	result, err := s.db.Exec(`
		UPDATE shortcuts
		SET language = ?, trigger_text = ?, replacement = ?, case_sensitive = ?, is_default = ?, updated_at = ?
		WHERE id = ?`,
		sc.Language, sc.Trigger, sc.Replacement, sc.CaseSensitive, sc.IsDefault, s.now().UnixNano(), sc.ID,
	)
	if err != nil {
		return fmt.Errorf("update shortcut: %w", mapConstraint(err))
	}
	return requireRow(result, sc.ID)
}

// DeleteShortcut removes the row with id.
func (s *Store) DeleteShortcut(id int64) error {
	result, err := s.db.Exec(`DELETE FROM shortcuts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete shortcut: %w", err)
	}
	return requireRow(result, id)
}

// Stats summarizes the stored shortcuts.
type Stats struct {
	Total      int
	Defaults   int
	ByLanguage map[string]int
}

// Stats counts shortcuts in total, by origin and by language.
func (s *Store) Stats() (*Stats, error) {
	rows, err := s.db.Query(`
		SELECT language, COUNT(*), COALESCE(SUM(is_default), 0)
		FROM shortcuts GROUP BY language`)
	if err != nil {
		return nil, fmt.Errorf("shortcut stats: %w", err)
	}
	defer rows.Close()

	stats := &Stats{ByLanguage: make(map[string]int)}
	for rows.Next() {
		var lang string
		var count, defaults int
		if err := rows.Scan(&lang, &count, &defaults); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats.ByLanguage[lang] = count
		stats.Total += count
		stats.Defaults += defaults
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read stats: %w", err)
	}
	return stats, nil
}

func requireRow(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("shortcut %d: %w", id, shortcuts.ErrNotFound)
	}
	return nil
}

// mapConstraint turns a unique-constraint violation into
// shortcuts.ErrDuplicateTrigger.
func mapConstraint(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %v", shortcuts.ErrDuplicateTrigger, err)
	}
	return err
}

func scanShortcuts(rows *sql.Rows) ([]shortcuts.Shortcut, error) {
	var out []shortcuts.Shortcut
	for rows.Next() {
		var sc shortcuts.Shortcut
		if err := rows.Scan(&sc.ID, &sc.Language, &sc.Trigger, &sc.Replacement, &sc.CaseSensitive, &sc.IsDefault); err != nil {
			return nil, fmt.Errorf("scan shortcut: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shortcuts: %w", err)
	}
	return out, nil
}
