package ime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"physkey/internal/accents"
	"physkey/internal/config"
	"physkey/internal/symbols"
)

// Mobile support via gomobile. The Android InputMethodService wraps a
// MobileEngine and implements MobileSurface over its InputConnection:
//
//	gomobile bind -target=android -o physkey.aar ./internal/ime
//
// gomobile only exports basic types, so key codes, meta state and
// settings cross the boundary as ints and JSON.

// MobileSurface is the InputConnection seen from Go. Implementations
// return an error when the connection is gone.
type MobileSurface interface {
	TextBeforeCursor(n int) (string, error)
	TextAfterCursor(n int) (string, error)
	DeleteSurroundingText(before, after int)
	CommitText(text string)
	SendRawKeyEvent(code, meta int)
}

// MobileListener receives engine effects on the calling goroutine.
type MobileListener interface {
	// OnModifierState reports shift and alt as 0 (off), 1 (one-shot) or
	// 2 (locked), plus the picker visibility and category id.
	OnModifierState(shift, alt int, pickerVisible bool, category string)
	OnSymKeyPressed()
	OnSymPickerDismissRequested()
}

// MobileEngine is the gomobile entry point.
type MobileEngine struct {
	engine    *Engine
	shortcuts *shortcutMap
	listener  MobileListener
}

// NewMobileEngine creates an engine from a settings JSON object. An empty
// string means defaults. Unknown keys are rejected.
func NewMobileEngine(settingsJSON string) (*MobileEngine, error) {
	settings, err := decodeMobileSettings(settingsJSON)
	if err != nil {
		return nil, err
	}
	sm := newShortcutMap()
	return &MobileEngine{
		engine:    NewEngine(sm, accents.Builtin(), settings),
		shortcuts: sm,
	}, nil
}

func decodeMobileSettings(data string) (*config.KeyboardSettings, error) {
	settings := config.DefaultKeyboardSettings()
	if strings.TrimSpace(data) == "" {
		return settings, nil
	}
	dec := json.NewDecoder(strings.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if errs := config.ValidateKeyboard(settings); len(errs) > 0 {
		return nil, errs
	}
	return settings, nil
}

// SetListener registers the effect listener. nil disables delivery.
func (m *MobileEngine) SetListener(l MobileListener) {
	m.listener = l
}

// UpdateSettings replaces the settings with a full JSON object.
func (m *MobileEngine) UpdateSettings(settingsJSON string) error {
	settings, err := decodeMobileSettings(settingsJSON)
	if err != nil {
		return err
	}
	m.engine.UpdateSettings(settings)
	return nil
}

// SettingsJSON returns the current settings.
func (m *MobileEngine) SettingsJSON() string {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(m.engine.Settings()); err != nil {
		return "{}"
	}
	return strings.TrimSpace(buf.String())
}

// AddShortcut registers a shortcut loaded by the wrapper.
func (m *MobileEngine) AddShortcut(language, trigger, replacement string, caseSensitive bool) {
	m.shortcuts.add(language, trigger, replacement, caseSensitive)
}

// ClearShortcuts drops all registered shortcuts.
func (m *MobileEngine) ClearShortcuts() {
	m.shortcuts.clear()
}

// StartInput begins editing a field described by EditorInfo.inputType.
func (m *MobileEngine) StartInput(inputType int) {
	info := FieldInfoFromInputType(inputType)
	m.deliver(m.engine.StartInput(&info))
}

// StartInputWithoutField begins input with no EditorInfo.
func (m *MobileEngine) StartInputWithoutField() {
	m.deliver(m.engine.StartInput(nil))
}

// FinishInput ends the current field.
func (m *MobileEngine) FinishInput() {
	m.deliver(m.engine.FinishInput())
}

// OnKeyDown handles onKeyDown and reports whether the key was consumed.
func (m *MobileEngine) OnKeyDown(s MobileSurface, code int, downTime, eventTime int64, repeatCount int) (bool, error) {
	if s == nil {
		return false, ErrNoSurface
	}
	res, effects := m.engine.KeyDown(mobileSurface{s}, mobileEvent(code, downTime, eventTime, repeatCount))
	m.deliver(effects)
	return res == Handled, nil
}

// OnKeyUp handles onKeyUp.
func (m *MobileEngine) OnKeyUp(s MobileSurface, code int, downTime, eventTime int64, repeatCount int) (bool, error) {
	if s == nil {
		return false, ErrNoSurface
	}
	res, effects := m.engine.KeyUp(mobileSurface{s}, mobileEvent(code, downTime, eventTime, repeatCount))
	m.deliver(effects)
	return res == Handled, nil
}

func mobileEvent(code int, downTime, eventTime int64, repeatCount int) KeyEvent {
	return KeyEvent{Code: KeyCode(code), DownTime: downTime, EventTime: eventTime, RepeatCount: repeatCount}
}

// InsertSymbol commits a symbol chosen in the picker.
func (m *MobileEngine) InsertSymbol(s MobileSurface, text string) error {
	if s == nil {
		return ErrNoSurface
	}
	m.deliver(m.engine.InsertSymbol(mobileSurface{s}, text))
	return nil
}

// SetSymPickerVisible syncs the picker visibility from the UI.
func (m *MobileEngine) SetSymPickerVisible(visible bool) {
	m.deliver(m.engine.SetSymPickerVisible(visible))
}

// SelectSymCategory switches the picker to a category id such as "math".
func (m *MobileEngine) SelectSymCategory(id string) error {
	c, ok := symbols.ParseCategory(id)
	if !ok {
		return fmt.Errorf("unknown symbol category %q", id)
	}
	m.deliver(m.engine.SelectSymCategory(c))
	return nil
}

// Symbols returns the symbols of a category joined by newlines.
func (m *MobileEngine) Symbols(id, locale string) (string, error) {
	c, ok := symbols.ParseCategory(id)
	if !ok {
		return "", fmt.Errorf("unknown symbol category %q", id)
	}
	return strings.Join(symbols.Symbols(c, m.engine.Settings().PreferredCurrency, locale), "\n"), nil
}

func (m *MobileEngine) deliver(effects []Effect) {
	l := m.listener
	if l == nil {
		return
	}
	for _, e := range effects {
		switch e := e.(type) {
		case ModifierStateChanged:
			l.OnModifierState(int(e.State.Shift), int(e.State.Alt), e.State.SymPickerVisible, e.State.SymCategory.String())
		case SymKeyPressed:
			l.OnSymKeyPressed()
		case SymPickerDismissRequested:
			l.OnSymPickerDismissRequested()
		}
	}
}

// mobileSurface adapts MobileSurface to Surface.
type mobileSurface struct {
	s MobileSurface
}

func (a mobileSurface) TextBeforeCursor(n int) (string, bool) {
	text, err := a.s.TextBeforeCursor(n)
	return text, err == nil
}

func (a mobileSurface) TextAfterCursor(n int) (string, bool) {
	text, err := a.s.TextAfterCursor(n)
	return text, err == nil
}

func (a mobileSurface) DeleteSurroundingText(before, after int) {
	a.s.DeleteSurroundingText(before, after)
}

func (a mobileSurface) CommitText(text string) {
	a.s.CommitText(text)
}

func (a mobileSurface) SendRawKeyEvent(code KeyCode, meta MetaState) {
	a.s.SendRawKeyEvent(int(code), int(meta))
}

// shortcutMap is a ShortcutLookup fed entry by entry from a host that
// keeps its own store.
type shortcutMap struct {
	mu      sync.RWMutex
	entries map[string][]mapEntry
}

type mapEntry struct {
	trigger       string
	replacement   string
	caseSensitive bool
}

func newShortcutMap() *shortcutMap {
	return &shortcutMap{entries: make(map[string][]mapEntry)}
}

func (m *shortcutMap) add(language, trigger, replacement string, caseSensitive bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[language] = append(m.entries[language], mapEntry{trigger, replacement, caseSensitive})
}

func (m *shortcutMap) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
}

// Resolve prefers an exact match over a case-insensitive one.
func (m *shortcutMap) Resolve(language, word string) (string, bool, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.entries[language]
	for _, e := range list {
		if e.trigger == word {
			return e.replacement, e.caseSensitive, true
		}
	}
	for _, e := range list {
		if !e.caseSensitive && strings.EqualFold(e.trigger, word) {
			return e.replacement, false, true
		}
	}
	return "", false, false
}
