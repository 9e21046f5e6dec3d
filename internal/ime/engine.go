package ime

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"physkey/internal/config"
	"physkey/internal/logging"
	"physkey/internal/metrics"
	"physkey/internal/symbols"
)

// ErrNoSurface is returned by hosts that have no focused field to edit.
var ErrNoSurface = errors.New("ime: no input surface")

// Engine is the host-facing wrapper around a Dispatcher. It serialises
// calls, holds the current settings snapshot and reports each event to
// the logger and metrics. Unlike Dispatcher it is safe for concurrent use.
type Engine struct {
	mu         sync.Mutex
	dispatcher *Dispatcher
	settings   atomic.Pointer[config.KeyboardSettings]

	logger  *logging.Logger
	metrics *metrics.EngineMetrics
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Records use the "ime" component.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l.WithComponent("ime")
		}
	}
}

// WithMetrics enables metric collection.
func WithMetrics(m *metrics.EngineMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates an engine. nil settings means defaults.
func NewEngine(shortcuts ShortcutLookup, accents AccentTable, settings *config.KeyboardSettings, opts ...Option) *Engine {
	e := &Engine{
		dispatcher: NewDispatcher(shortcuts, accents),
		logger:     logging.Discard(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.settings.Store(snapshot(settings))
	return e
}

func snapshot(s *config.KeyboardSettings) *config.KeyboardSettings {
	if s == nil {
		return config.DefaultKeyboardSettings()
	}
	return s.Clone()
}

// UpdateSettings swaps in a new settings snapshot. The next event sees it;
// an event already in progress keeps the old one.
func (e *Engine) UpdateSettings(s *config.KeyboardSettings) {
	s = snapshot(s)
	e.settings.Store(s)
	if e.metrics != nil {
		e.metrics.SettingsReloads.Inc()
	}
	e.logger.Debug("settings updated",
		"language", s.SelectedLanguage,
		"alt_backspace", string(s.AltBackspaceBehavior),
		"sticky_shift", s.StickyShift,
		"sticky_alt", s.StickyAlt)
}

// Settings returns the current snapshot. Callers must not modify it.
func (e *Engine) Settings() *config.KeyboardSettings {
	return e.settings.Load()
}

// KeyDown processes a key press or repeat.
func (e *Engine) KeyDown(s Surface, ev KeyEvent) (KeyEventResult, []Effect) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	res, effects := e.dispatcher.HandleKeyDown(s, ev, e.settings.Load())
	e.observe("down", ev, res, effects, start)
	return res, effects
}

// KeyUp processes a key release.
func (e *Engine) KeyUp(s Surface, ev KeyEvent) (KeyEventResult, []Effect) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	res, effects := e.dispatcher.HandleKeyUp(s, ev, e.settings.Load())
	e.observe("up", ev, res, effects, start)
	return res, effects
}

// InsertSymbol commits a symbol picked in the symbol picker.
func (e *Engine) InsertSymbol(s Surface, text string) []Effect {
	e.mu.Lock()
	defer e.mu.Unlock()

	effects := e.dispatcher.InsertSymbol(s, text)
	e.record(effects)
	return effects
}

// SetSymPickerVisible shows or hides the symbol picker.
func (e *Engine) SetSymPickerVisible(visible bool) []Effect {
	e.mu.Lock()
	defer e.mu.Unlock()

	effects := e.dispatcher.SetSymPickerVisible(visible)
	e.record(effects)
	return effects
}

// SelectSymCategory switches the symbol picker category.
func (e *Engine) SelectSymCategory(c symbols.Category) []Effect {
	e.mu.Lock()
	defer e.mu.Unlock()

	effects := e.dispatcher.SelectSymCategory(c)
	e.record(effects)
	return effects
}

// StartInput begins editing a field.
func (e *Engine) StartInput(field *FieldInfo) []Effect {
	e.mu.Lock()
	defer e.mu.Unlock()

	effects := e.dispatcher.StartInput(field)
	if e.metrics != nil {
		e.metrics.InputStarted()
	}
	e.record(effects)
	return effects
}

// FinishInput ends editing of the current field.
func (e *Engine) FinishInput() []Effect {
	e.mu.Lock()
	defer e.mu.Unlock()

	effects := e.dispatcher.FinishInput()
	if e.metrics != nil {
		e.metrics.InputFinished()
	}
	e.record(effects)
	return effects
}

// Modifiers returns the current modifier and picker state.
func (e *Engine) Modifiers() ModifiersState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dispatcher.Modifiers()
}

// Replacement returns the live shortcut expansion record, or nil.
func (e *Engine) Replacement() *ReplacementRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dispatcher.Replacement()
}

// LastActions returns what the most recent call did.
func (e *Engine) LastActions() []Action {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Action(nil), e.dispatcher.LastActions()...)
}

func (e *Engine) observe(dir string, ev KeyEvent, res KeyEventResult, effects []Effect, start time.Time) {
	actions := e.dispatcher.LastActions()
	if e.metrics != nil {
		e.metrics.RecordKeyEvent(res == Handled, e.now().Sub(start))
	}
	e.record(effects)

	if len(actions) == 0 && res == NotHandled {
		return
	}
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.String()
	}
	e.logger.Debug("key",
		"dir", dir,
		"code", ev.Code.String(),
		"repeat", ev.RepeatCount,
		"result", res.String(),
		"actions", names)
}

// record updates metrics for the actions and effects of the last call.
func (e *Engine) record(effects []Effect) {
	if e.metrics == nil {
		return
	}
	for _, a := range e.dispatcher.LastActions() {
		e.metrics.RecordAction(a.String())
	}
	for _, eff := range effects {
		switch eff.(type) {
		case ModifierStateChanged:
			e.metrics.ModifierChanges.Inc()
		case SymKeyPressed:
			e.metrics.SymKeyTaps.Inc()
		}
	}
}
