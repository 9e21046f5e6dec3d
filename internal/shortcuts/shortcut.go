// Package shortcuts manages text shortcuts: the built-in defaults for each
// language, user additions persisted through a Storage, and JSON
// import/export. Repository satisfies ime.ShortcutLookup.
package shortcuts

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// ErrNotFound is returned when no shortcut has the requested ID.
	ErrNotFound = errors.New("shortcut not found")
	// ErrDuplicateTrigger is returned when a language already has a
	// shortcut that would match the same typed word.
	ErrDuplicateTrigger = errors.New("duplicate shortcut trigger")
	// ErrInvalidShortcut wraps field-level validation failures.
	ErrInvalidShortcut = errors.New("invalid shortcut")
)

// Characters that end a word while typing. A trigger containing one of
// them could never be matched.
const boundaryChars = ".!?,;:\"'()[]{}"

// Shortcut maps a typed trigger word to its replacement in one language.
type Shortcut struct {
	ID            int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Trigger       string `json:"trigger" yaml:"trigger"`
	Replacement   string `json:"replacement" yaml:"replacement"`
	CaseSensitive bool   `json:"case_sensitive,omitempty" yaml:"case_sensitive,omitempty"`
	Language      string `json:"language" yaml:"language"`
	IsDefault     bool   `json:"is_default,omitempty" yaml:"is_default,omitempty"`
}

// Validate checks that the shortcut can ever match and expand.
func (s Shortcut) Validate() error {
	switch {
	case s.Trigger == "":
		return fmt.Errorf("%w: trigger is required", ErrInvalidShortcut)
	case strings.IndexFunc(s.Trigger, isBoundary) >= 0:
		return fmt.Errorf("%w: trigger %q contains a word boundary", ErrInvalidShortcut, s.Trigger)
	case s.Replacement == "":
		return fmt.Errorf("%w: replacement is required", ErrInvalidShortcut)
	case s.Language == "":
		return fmt.Errorf("%w: language is required", ErrInvalidShortcut)
	}
	if _, err := language.Parse(s.Language); err != nil {
		return fmt.Errorf("%w: language %q: %v", ErrInvalidShortcut, s.Language, err)
	}
	return nil
}

// Conflicts reports whether s and o would both match some typed word in
// the same language. Two case-sensitive shortcuts conflict only on an
// exact trigger match.
func (s Shortcut) Conflicts(o Shortcut) bool {
	if s.Language != o.Language {
		return false
	}
	if s.CaseSensitive && o.CaseSensitive {
		return s.Trigger == o.Trigger
	}
	return fold(s.Trigger) == fold(o.Trigger)
}

func (s Shortcut) String() string {
	flags := ""
	if s.CaseSensitive {
		flags += " [case-sensitive]"
	}
	if s.IsDefault {
		flags += " [default]"
	}
	return fmt.Sprintf("%s: %s -> %s%s", s.Language, s.Trigger, s.Replacement, flags)
}

func isBoundary(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(boundaryChars, r)
}

// fold returns the case-insensitive lookup key for a word. Casers carry
// state, so each call builds its own.
func fold(s string) string {
	return cases.Fold().String(s)
}
