package ime

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ShortcutLookup resolves a typed word to its shortcut replacement in a
// language. caseSensitive reports whether the matching entry is
// case-sensitive; such entries only match their exact trigger.
type ShortcutLookup interface {
	Resolve(language, word string) (replacement string, caseSensitive bool, ok bool)
}

// ReplacementRecord remembers the last shortcut expansion so Backspace
// can undo it.
type ReplacementRecord struct {
	Original         string
	Replacement      string
	HadTrailingSpace bool
}

// expected is the text an undo must find right before the cursor.
func (r *ReplacementRecord) expected() string {
	if r.HadTrailingSpace {
		return r.Replacement + " "
	}
	return r.Replacement
}

const (
	lookbehind     = 100
	wordBoundaries = ".!?,;:\"'()[]{}"
)

// replacer expands shortcuts in the word before the cursor.
type replacer struct {
	lookup ShortcutLookup
	upper  map[string]cases.Caser
}

func newReplacer(lookup ShortcutLookup) *replacer {
	return &replacer{lookup: lookup, upper: make(map[string]cases.Caser)}
}

// lastWord returns the run of non-boundary characters ending text.
func lastWord(text string) string {
	i := len(text)
	for i > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:i])
		if unicode.IsSpace(r) || strings.ContainsRune(wordBoundaries, r) {
			break
		}
		i -= size
	}
	return text[i:]
}

// tryReplace expands the word before the cursor and appends the boundary
// key's trailing character. It returns the record of the expansion.
func (p *replacer) tryReplace(s Surface, boundary KeyCode, lang string) (*ReplacementRecord, bool) {
	if p.lookup == nil {
		return nil, false
	}
	before, ok := s.TextBeforeCursor(lookbehind)
	if !ok || before == "" {
		return nil, false
	}
	word := lastWord(before)
	if word == "" {
		return nil, false
	}

	replacement, _, ok := p.lookup.Resolve(lang, word)
	if !ok {
		return nil, false
	}
	replacement = p.preserveCase(word, replacement, lang)

	trailing := boundary.trailingText()
	s.DeleteSurroundingText(utf8.RuneCountInString(word), 0)
	s.CommitText(replacement + trailing)

	return &ReplacementRecord{
		Original:         word,
		Replacement:      replacement,
		HadTrailingSpace: trailing == " ",
	}, true
}

// preserveCase carries the typed word's capitalization onto replacement:
// an all-caps word (with at least one letter) upper-cases everything and a
// leading capital capitalizes the first character.
func (p *replacer) preserveCase(word, replacement, lang string) string {
	if replacement == "" {
		return replacement
	}
	if isAllCaps(word) {
		return p.caser(lang).String(replacement)
	}
	first, _ := utf8.DecodeRuneInString(word)
	if unicode.IsUpper(first) {
		r, size := utf8.DecodeRuneInString(replacement)
		return p.caser(lang).String(string(r)) + replacement[size:]
	}
	return replacement
}

func (p *replacer) caser(lang string) cases.Caser {
	if c, ok := p.upper[lang]; ok {
		return c
	}
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.Und
	}
	c := cases.Upper(tag)
	p.upper[lang] = c
	return c
}

func isAllCaps(word string) bool {
	letters := 0
	for _, r := range word {
		if !unicode.IsLetter(r) {
			continue
		}
		if !unicode.IsUpper(r) {
			return false
		}
		letters++
	}
	return letters > 0
}
