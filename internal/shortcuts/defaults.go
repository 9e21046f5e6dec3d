package shortcuts

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/*.yaml
var defaultsFS embed.FS

type defaultsFile struct {
	Language  string     `yaml:"language"`
	Shortcuts []Shortcut `yaml:"shortcuts"`
}

// DefaultLanguages lists the languages that ship default shortcuts.
func DefaultLanguages() []string {
	entries, err := defaultsFS.ReadDir("defaults")
	if err != nil {
		return nil
	}
	langs := make([]string, 0, len(entries))
	for _, e := range entries {
		langs = append(langs, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(langs)
	return langs
}

// DefaultsFor returns the built-in shortcuts for one language tag. Regional
// tags such as en-GB have their own tables; an unknown language has none.
func DefaultsFor(lang string) ([]Shortcut, error) {
	data, err := defaultsFS.ReadFile(path.Join("defaults", lang+".yaml"))
	if err != nil {
		return nil, nil
	}

	var f defaultsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse defaults for %s: %w", lang, err)
	}
	if f.Language != lang {
		return nil, fmt.Errorf("defaults file %s.yaml declares language %q", lang, f.Language)
	}

	out := make([]Shortcut, 0, len(f.Shortcuts))
	for _, sc := range f.Shortcuts {
		sc.Language = lang
		sc.IsDefault = true
		if err := sc.Validate(); err != nil {
			return nil, fmt.Errorf("defaults for %s: %w", lang, err)
		}
		out = append(out, sc)
	}
	return out, nil
}

// Defaults returns the built-in shortcuts for every language.
func Defaults() ([]Shortcut, error) {
	var all []Shortcut
	for _, lang := range DefaultLanguages() {
		scs, err := DefaultsFor(lang)
		if err != nil {
			return nil, err
		}
		all = append(all, scs...)
	}
	return all, nil
}
