package shortcuts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"physkey/internal/schemavalidation"
)

const exportVersion = 1

type exportDocument struct {
	Version    int           `json:"version"`
	ExportedAt string        `json:"exported_at,omitempty"`
	Shortcuts  []exportEntry `json:"shortcuts"`
}

type exportEntry struct {
	Trigger       string `json:"trigger"`
	Replacement   string `json:"replacement"`
	Language      string `json:"language"`
	CaseSensitive bool   `json:"case_sensitive,omitempty"`
	IsDefault     bool   `json:"is_default,omitempty"`
}

// Export writes shortcuts as an indented export document. IDs are not
// exported; they belong to the local store.
func Export(w io.Writer, list []Shortcut, at time.Time) error {
	doc := exportDocument{
		Version:   exportVersion,
		Shortcuts: make([]exportEntry, 0, len(list)),
	}
	if !at.IsZero() {
		doc.ExportedAt = at.UTC().Format(time.RFC3339)
	}
	for _, sc := range list {
		doc.Shortcuts = append(doc.Shortcuts, exportEntry{
			Trigger:       sc.Trigger,
			Replacement:   sc.Replacement,
			Language:      sc.Language,
			CaseSensitive: sc.CaseSensitive,
			IsDefault:     sc.IsDefault,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode shortcuts: %w", err)
	}
	return nil
}

// Decode validates an export document against its schema and returns the
// shortcuts it holds.
func Decode(data []byte) ([]Shortcut, error) {
	if err := schemavalidation.ValidateShortcuts(data); err != nil {
		return nil, err
	}

	var doc exportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode shortcuts: %w", err)
	}

	out := make([]Shortcut, 0, len(doc.Shortcuts))
	for i, e := range doc.Shortcuts {
		sc := Shortcut{
			Trigger:       e.Trigger,
			Replacement:   e.Replacement,
			Language:      e.Language,
			CaseSensitive: e.CaseSensitive,
			IsDefault:     e.IsDefault,
		}
		if err := sc.Validate(); err != nil {
			return nil, fmt.Errorf("shortcut %d: %w", i, err)
		}
		out = append(out, sc)
	}
	return out, nil
}

// ImportMode selects what Import does with an entry that conflicts with an
// existing shortcut.
type ImportMode int

const (
	// ImportSkipExisting keeps the existing shortcut.
	ImportSkipExisting ImportMode = iota
	// ImportReplaceExisting overwrites the existing shortcut in place.
	ImportReplaceExisting
)

// ImportResult counts what an import did.
type ImportResult struct {
	Added    int
	Replaced int
	Skipped  int
}

// Import reads an export document and merges it into the repository. The
// whole document is validated before anything is stored.
func (r *Repository) Import(rd io.Reader, mode ImportMode) (ImportResult, error) {
	var res ImportResult

	data, err := io.ReadAll(rd)
	if err != nil {
		return res, fmt.Errorf("read shortcuts: %w", err)
	}
	list, err := Decode(data)
	if err != nil {
		return res, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sc := range list {
		_, err := r.addLocked(sc)
		if err == nil {
			res.Added++
			continue
		}
		if !errors.Is(err, ErrDuplicateTrigger) {
			return res, err
		}
		if mode == ImportSkipExisting {
			res.Skipped++
			continue
		}

		existing, _ := r.conflictLocked(sc)
		sc.ID = existing.ID
		if err := r.updateLocked(sc); err != nil {
			if errors.Is(err, ErrDuplicateTrigger) {
				res.Skipped++
				continue
			}
			return res, err
		}
		res.Replaced++
	}

	r.logger.Info("shortcuts imported", "added", res.Added, "replaced", res.Replaced, "skipped", res.Skipped)
	return res, nil
}

// Export writes the shortcuts of lang, or all shortcuts when lang is empty.
func (r *Repository) Export(w io.Writer, lang string) error {
	return Export(w, r.List(lang), time.Now())
}
