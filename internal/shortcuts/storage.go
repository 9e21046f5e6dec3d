package shortcuts

import (
	"sort"
	"sync"
)

// Storage persists shortcuts. internal/store provides the SQLite
// implementation; MemoryStorage serves tests and one-shot CLI runs.
type Storage interface {
	ListShortcuts() ([]Shortcut, error)
	InsertShortcut(sc *Shortcut) (int64, error)
	InsertShortcuts(scs []Shortcut) error
	UpdateShortcut(sc *Shortcut) error
	DeleteShortcut(id int64) error
}

// MemoryStorage is a Storage held in memory.
type MemoryStorage struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]Shortcut
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{nextID: 1, rows: make(map[int64]Shortcut)}
}

// ListShortcuts returns all rows ordered by ID.
func (m *MemoryStorage) ListShortcuts() ([]Shortcut, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Shortcut, 0, len(m.rows))
	for _, sc := range m.rows {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// InsertShortcut assigns sc an ID and stores it.
func (m *MemoryStorage) InsertShortcut(sc *Shortcut) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(sc), nil
}

// InsertShortcuts stores every shortcut in scs.
func (m *MemoryStorage) InsertShortcuts(scs []Shortcut) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range scs {
		m.insertLocked(&scs[i])
	}
	return nil
}

func (m *MemoryStorage) insertLocked(sc *Shortcut) int64 {
	sc.ID = m.nextID
	m.nextID++
	m.rows[sc.ID] = *sc
	return sc.ID
}

// UpdateShortcut replaces the row with sc.ID.
func (m *MemoryStorage) UpdateShortcut(sc *Shortcut) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[sc.ID]; !ok {
		return ErrNotFound
	}
	m.rows[sc.ID] = *sc
	return nil
}

// DeleteShortcut removes the row with id.
func (m *MemoryStorage) DeleteShortcut(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}
