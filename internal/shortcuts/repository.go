package shortcuts

import (
	"fmt"
	"sort"
	"sync"

	"physkey/internal/logging"
)

// Repository caches every shortcut in memory, indexed per language, so
// lookups while typing never touch storage. Mutations go to storage first
// and then refresh the cache.
type Repository struct {
	storage Storage
	logger  *logging.Logger

	mu    sync.RWMutex
	all   []Shortcut
	index map[string]*languageIndex
}

type languageIndex struct {
	exact  map[string]Shortcut
	folded map[string]Shortcut
}

// NewRepository loads all shortcuts from storage. A nil logger discards.
func NewRepository(storage Storage, logger *logging.Logger) (*Repository, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	r := &Repository{
		storage: storage,
		logger:  logger.WithComponent("shortcuts"),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload replaces the cache with the contents of storage.
func (r *Repository) Reload() error {
	all, err := r.storage.ListShortcuts()
	if err != nil {
		return fmt.Errorf("load shortcuts: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.setLocked(all)
	r.logger.Debug("shortcut cache loaded", "count", len(all), "languages", len(r.index))
	return nil
}

func (r *Repository) setLocked(all []Shortcut) {
	index := make(map[string]*languageIndex)
	for _, sc := range all {
		idx, ok := index[sc.Language]
		if !ok {
			idx = &languageIndex{
				exact:  make(map[string]Shortcut),
				folded: make(map[string]Shortcut),
			}
			index[sc.Language] = idx
		}
		if sc.CaseSensitive {
			idx.exact[sc.Trigger] = sc
		} else {
			idx.folded[fold(sc.Trigger)] = sc
		}
	}
	r.all = all
	r.index = index
}

// Resolve implements ime.ShortcutLookup. Case-sensitive entries match the
// word exactly and take precedence over case-insensitive ones.
func (r *Repository) Resolve(language, word string) (string, bool, bool) {
	if r == nil || word == "" {
		return "", false, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.index[language]
	if !ok {
		return "", false, false
	}
	if sc, ok := idx.exact[word]; ok {
		return sc.Replacement, true, true
	}
	if sc, ok := idx.folded[fold(word)]; ok {
		return sc.Replacement, false, true
	}
	return "", false, false
}

// List returns the shortcuts for one language, or for all languages when
// lang is empty, ordered by language and then trigger.
func (r *Repository) List(lang string) []Shortcut {
	r.mu.RLock()
	out := make([]Shortcut, 0, len(r.all))
	for _, sc := range r.all {
		if lang == "" || sc.Language == lang {
			out = append(out, sc)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Language != out[j].Language {
			return out[i].Language < out[j].Language
		}
		fi, fj := fold(out[i].Trigger), fold(out[j].Trigger)
		if fi != fj {
			return fi < fj
		}
		return out[i].Trigger < out[j].Trigger
	})
	return out
}

// Languages returns every language with at least one shortcut.
func (r *Repository) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	langs := make([]string, 0, len(r.index))
	for lang := range r.index {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Len returns the number of cached shortcuts.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.all)
}

// Get returns the shortcut with id.
func (r *Repository) Get(id int64) (Shortcut, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.find(id); i >= 0 {
		return r.all[i], nil
	}
	return Shortcut{}, fmt.Errorf("get shortcut %d: %w", id, ErrNotFound)
}

func (r *Repository) find(id int64) int {
	for i, sc := range r.all {
		if sc.ID == id {
			return i
		}
	}
	return -1
}

// conflictLocked returns the existing shortcut that sc would shadow,
// ignoring the entry with sc's own ID.
func (r *Repository) conflictLocked(sc Shortcut) (Shortcut, bool) {
	for _, existing := range r.all {
		if existing.ID != 0 && existing.ID == sc.ID {
			continue
		}
		if existing.Conflicts(sc) {
			return existing, true
		}
	}
	return Shortcut{}, false
}

// Add validates and stores a new shortcut and returns it with its ID.
func (r *Repository) Add(sc Shortcut) (Shortcut, error) {
	if err := sc.Validate(); err != nil {
		return Shortcut{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(sc)
}

func (r *Repository) addLocked(sc Shortcut) (Shortcut, error) {
	sc.ID = 0
	if existing, ok := r.conflictLocked(sc); ok {
		return Shortcut{}, fmt.Errorf("add %q in %s: conflicts with shortcut %d: %w",
			sc.Trigger, sc.Language, existing.ID, ErrDuplicateTrigger)
	}

	id, err := r.storage.InsertShortcut(&sc)
	if err != nil {
		return Shortcut{}, fmt.Errorf("insert shortcut: %w", err)
	}
	sc.ID = id

	all := make([]Shortcut, len(r.all), len(r.all)+1)
	copy(all, r.all)
	r.setLocked(append(all, sc))

	r.logger.Info("shortcut added", "id", id, "language", sc.Language)
	return sc, nil
}

// Update replaces an existing shortcut, matched by ID.
func (r *Repository) Update(sc Shortcut) error {
	if err := sc.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateLocked(sc)
}

func (r *Repository) updateLocked(sc Shortcut) error {
	i := r.find(sc.ID)
	if i < 0 {
		return fmt.Errorf("update shortcut %d: %w", sc.ID, ErrNotFound)
	}
	if existing, ok := r.conflictLocked(sc); ok {
		return fmt.Errorf("update shortcut %d: conflicts with shortcut %d: %w",
			sc.ID, existing.ID, ErrDuplicateTrigger)
	}

	if err := r.storage.UpdateShortcut(&sc); err != nil {
		return fmt.Errorf("update shortcut %d: %w", sc.ID, err)
	}

	all := make([]Shortcut, len(r.all))
	copy(all, r.all)
	all[i] = sc
	r.setLocked(all)

	r.logger.Info("shortcut updated", "id", sc.ID, "language", sc.Language)
	return nil
}

// Delete removes the shortcut with id.
func (r *Repository) Delete(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.find(id)
	if i < 0 {
		return fmt.Errorf("delete shortcut %d: %w", id, ErrNotFound)
	}
	if err := r.storage.DeleteShortcut(id); err != nil {
		return fmt.Errorf("delete shortcut %d: %w", id, err)
	}

	all := make([]Shortcut, 0, len(r.all)-1)
	all = append(all, r.all[:i]...)
	all = append(all, r.all[i+1:]...)
	r.setLocked(all)

	r.logger.Info("shortcut deleted", "id", id)
	return nil
}

// InitializeDefaults seeds storage with the built-in shortcuts for every
// language. It does nothing once any shortcut exists, so deleted defaults
// stay deleted. It returns the number of shortcuts added.
func (r *Repository) InitializeDefaults() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.all) > 0 {
		return 0, nil
	}

	defaults, err := Defaults()
	if err != nil {
		return 0, err
	}
	if err := r.storage.InsertShortcuts(defaults); err != nil {
		return 0, fmt.Errorf("insert default shortcuts: %w", err)
	}

	all, err := r.storage.ListShortcuts()
	if err != nil {
		return 0, fmt.Errorf("load shortcuts: %w", err)
	}
	r.setLocked(all)

	r.logger.Info("default shortcuts installed", "count", len(defaults))
	return len(defaults), nil
}
