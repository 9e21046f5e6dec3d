// Package accents provides the per-language accent variants used by
// long-press accent cycling.
package accents

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
)

//go:embed data/accents.toml
var builtinData string

// Table maps a language and base letter to its accent cycle.
// A Table is immutable after construction and safe for concurrent use.
type Table struct {
	langs map[string]map[rune][]string
}

// Builtin returns the table compiled into the binary.
func Builtin() *Table {
	t, err := Parse(builtinData)
	if err != nil {
		// The embedded data is covered by tests; a failure here is a build defect.
		panic(fmt.Sprintf("accents: builtin table: %v", err))
	}
	return t
}

// Parse decodes a TOML accent table. Each top-level table is a language
// tag whose keys are single base letters and whose values are the accent
// variants in cycle order.
func Parse(data string) (*Table, error) {
	var raw map[string]map[string][]string
	if _, err := toml.Decode(data, &raw); err != nil {
		return nil, fmt.Errorf("decode accents: %w", err)
	}

	t := &Table{langs: make(map[string]map[rune][]string, len(raw))}
	for lang, letters := range raw {
		m := make(map[rune][]string, len(letters)*2)
		for key, variants := range letters {
			base, size := utf8.DecodeRuneInString(key)
			if base == utf8.RuneError || size != len(key) {
				return nil, fmt.Errorf("language %q: key %q is not a single letter", lang, key)
			}
			if len(variants) == 0 {
				continue
			}
			m[base] = variants
		}
		deriveUpper(m)
		t.langs[strings.ToLower(lang)] = m
	}
	return t, nil
}

// deriveUpper fills in upper-case cycles for letters that only list a
// lower-case one. Variants without a distinct upper-case form are dropped
// (German ß), and a letter left with no variants gets no entry.
func deriveUpper(m map[rune][]string) {
	for base, variants := range m {
		if !unicode.IsLower(base) {
			continue
		}
		upperBase := unicode.ToUpper(base)
		if _, explicit := m[upperBase]; explicit || upperBase == base {
			continue
		}
		var up []string
		for _, v := range variants {
			u := strings.ToUpper(v)
			if u != v {
				up = append(up, u)
			}
		}
		if len(up) > 0 {
			m[upperBase] = up
		}
	}
}

// Lookup returns the accent cycle for base in language: the base letter
// followed by its variants. Regional tags fall back to their primary
// language ("fr-CA" uses "fr"). Unknown languages or letters return nil.
func (t *Table) Lookup(language string, base rune) []string {
	if t == nil {
		return nil
	}
	variants := t.variants(language, base)
	if len(variants) == 0 {
		return nil
	}
	cycle := make([]string, 0, len(variants)+1)
	cycle = append(cycle, string(base))
	return append(cycle, variants...)
}

// HasAccents reports whether base has accent variants in language.
func (t *Table) HasAccents(language string, base rune) bool {
	return len(t.variants(language, base)) > 0
}

// Languages returns the language tags present in the table.
func (t *Table) Languages() []string {
	out := make([]string, 0, len(t.langs))
	for lang := range t.langs {
		out = append(out, lang)
	}
	return out
}

func (t *Table) variants(language string, base rune) []string {
	if t == nil {
		return nil
	}
	lang := strings.ToLower(language)
	if m, ok := t.langs[lang]; ok {
		if v := m[base]; len(v) > 0 {
			return v
		}
	}
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		if m, ok := t.langs[lang[:i]]; ok {
			return m[base]
		}
	}
	return nil
}
