package metrics

import (
	"sync"
	"time"
)

// EngineMetrics holds the key-processing metrics of one input engine.
type EngineMetrics struct {
	registry *Registry

	KeyEventsHandled    *Counter
	KeyEventsPassed     *Counter
	ModifierChanges     *Counter
	SymKeyTaps          *Counter
	SettingsReloads     *Counter
	Errors              *Counter
	ActiveInputSessions *Gauge
	DispatchDuration    *Histogram

	mu      sync.Mutex
	actions map[string]*Counter
}

var startTime = time.Now()

// NewEngineMetrics registers the engine metrics in registry, or in the
// default registry when registry is nil.
func NewEngineMetrics(registry *Registry) *EngineMetrics {
	if registry == nil {
		registry = Default()
	}

	return &EngineMetrics{
		registry: registry,

		KeyEventsHandled: registry.RegisterCounter(
			"key_events_total",
			"Key events processed by the engine",
			Labels{"result": "handled"},
		),
		KeyEventsPassed: registry.RegisterCounter(
			"key_events_total",
			"Key events processed by the engine",
			Labels{"result": "not_handled"},
		),
		ModifierChanges: registry.RegisterCounter(
			"modifier_changes_total",
			"Shift, Alt or picker state changes",
			nil,
		),
		SymKeyTaps: registry.RegisterCounter(
			"sym_key_taps_total",
			"Short taps of the Sym key",
			nil,
		),
		SettingsReloads: registry.RegisterCounter(
			"settings_reloads_total",
			"Keyboard settings snapshots applied",
			nil,
		),
		Errors: registry.RegisterCounter(
			"errors_total",
			"Host-side errors",
			nil,
		),
		ActiveInputSessions: registry.RegisterGauge(
			"active_input_sessions",
			"Focused input fields",
			nil,
		),
		DispatchDuration: registry.RegisterHistogram(
			"dispatch_duration_seconds",
			"Time spent processing one key event",
			nil,
			LatencyBuckets,
		),
		actions: make(map[string]*Counter),
	}
}

// RecordKeyEvent counts one key event and its processing time.
func (m *EngineMetrics) RecordKeyEvent(handled bool, d time.Duration) {
	if handled {
		m.KeyEventsHandled.Inc()
	} else {
		m.KeyEventsPassed.Inc()
	}
	m.DispatchDuration.ObserveDuration(d)
}

// RecordAction counts one text operation such as "shortcut_expanded".
func (m *EngineMetrics) RecordAction(action string) {
	m.mu.Lock()
	c, ok := m.actions[action]
	if !ok {
		c = m.registry.RegisterCounter(
			"actions_total",
			"Text operations performed by the engine",
			Labels{"action": action},
		)
		m.actions[action] = c
	}
	m.mu.Unlock()
	c.Inc()
}

// ActionCount returns how many times action was recorded.
func (m *EngineMetrics) ActionCount(action string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.actions[action]; ok {
		return c.Value()
	}
	return 0
}

// InputStarted records a newly focused field.
func (m *EngineMetrics) InputStarted() {
	m.ActiveInputSessions.Set(1)
}

// InputFinished records that no field is focused.
func (m *EngineMetrics) InputFinished() {
	m.ActiveInputSessions.Set(0)
}

// Snapshot returns the headline engine numbers.
func (m *EngineMetrics) Snapshot() map[string]any {
	return map[string]any{
		"key_events_handled":     m.KeyEventsHandled.Value(),
		"key_events_not_handled": m.KeyEventsPassed.Value(),
		"modifier_changes":       m.ModifierChanges.Value(),
		"sym_key_taps":           m.SymKeyTaps.Value(),
		"settings_reloads":       m.SettingsReloads.Value(),
		"errors":                 m.Errors.Value(),
		"dispatch_mean_seconds":  m.DispatchDuration.Mean(),
		"uptime_seconds":         int64(time.Since(startTime).Seconds()),
	}
}
