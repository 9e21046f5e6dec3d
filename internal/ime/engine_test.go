package ime

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"physkey/internal/config"
	"physkey/internal/logging"
	"physkey/internal/metrics"
)

func newTestEngine(t *testing.T, st *config.KeyboardSettings) (*Engine, *metrics.EngineMetrics, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := logging.New(&logging.Config{Level: logging.LevelDebug, Writer: &buf})
	require.NoError(t, err)

	m := metrics.NewEngineMetrics(metrics.NewRegistry("test"))
	return NewEngine(testShortcuts, testAccents, st, WithLogger(logger), WithMetrics(m)), m, &buf
}

func TestEngineKeyFlow(t *testing.T) {
	e, m, logs := newTestEngine(t, nil)
	s := NewBufferSurface("dont")

	res, _ := e.KeyDown(s, KeyEvent{Code: KeySpace, EventTime: 100})
	assert.Equal(t, Handled, res)
	res, _ = e.KeyUp(s, KeyEvent{Code: KeySpace, EventTime: 120})
	assert.Equal(t, NotHandled, res)
	assert.Equal(t, "don't ", s.Text())
	require.NotNil(t, e.Replacement())

	assert.Equal(t, uint64(1), m.KeyEventsHandled.Value())
	assert.Equal(t, uint64(1), m.KeyEventsPassed.Value())
	assert.Equal(t, uint64(1), m.ActionCount("shortcut_expanded"))

	out := logs.String()
	assert.Contains(t, out, "component=ime")
	assert.Contains(t, out, "shortcut_expanded")
	assert.NotContains(t, out, "don't", "typed text must not be logged")
}

func TestEngineSettingsSnapshot(t *testing.T) {
	st := config.DefaultKeyboardSettings()
	st.TextShortcutsEnabled = false
	e, m, _ := newTestEngine(t, st)
	assert.Equal(t, uint64(0), m.SettingsReloads.Value(), "construction is not a reload")

	// The engine keeps its own copy.
	st.TextShortcutsEnabled = true
	assert.False(t, e.Settings().TextShortcutsEnabled)

	s := NewBufferSurface("dont")
	res, _ := e.KeyDown(s, KeyEvent{Code: KeySpace, EventTime: 1})
	assert.Equal(t, NotHandled, res)

	e.UpdateSettings(st)
	s.Reset("dont")
	res, _ = e.KeyDown(s, KeyEvent{Code: KeySpace, EventTime: 5000})
	assert.Equal(t, Handled, res)
	assert.Equal(t, uint64(1), m.SettingsReloads.Value())

	e.UpdateSettings(nil)
	assert.Equal(t, config.DefaultKeyboardSettings(), e.Settings())
}

func TestEngineModifierMetrics(t *testing.T) {
	st := config.DefaultKeyboardSettings()
	st.StickyShift = true
	e, m, _ := newTestEngine(t, st)
	s := NewBufferSurface("")

	e.KeyDown(s, KeyEvent{Code: KeyShiftLeft, EventTime: 0})
	_, effects := e.KeyUp(s, KeyEvent{Code: KeyShiftLeft, EventTime: 50})
	require.Len(t, effects, 1)
	assert.Equal(t, ModifierOneShot, e.Modifiers().Shift)

	e.KeyDown(s, KeyEvent{Code: KeySym, EventTime: 1000})
	e.KeyUp(s, KeyEvent{Code: KeySym, EventTime: 1050})

	assert.Equal(t, uint64(2), m.ModifierChanges.Value())
	assert.Equal(t, uint64(1), m.SymKeyTaps.Value())

	e.SelectSymCategory(2)
	e.InsertSymbol(s, "€")
	assert.Equal(t, "€", s.Text())
	assert.Equal(t, uint64(1), m.ActionCount("symbol_inserted"))
}

func TestEngineInputLifecycle(t *testing.T) {
	e, m, _ := newTestEngine(t, nil)

	e.StartInput(&FieldInfo{Kind: FieldText})
	assert.Equal(t, int64(1), m.ActiveInputSessions.Value())

	s := NewBufferSurface("")
	res, _ := e.KeyDown(s, KeyEvent{Code: KeyA, EventTime: 10})
	assert.Equal(t, Handled, res)
	assert.Equal(t, "A", s.Text())

	e.SetSymPickerVisible(true)
	effects := e.FinishInput()
	assert.NotEmpty(t, effects)
	assert.Equal(t, int64(0), m.ActiveInputSessions.Value())
}

func TestEngineConcurrentUse(t *testing.T) {
	e := NewEngine(testShortcuts, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := NewBufferSurface("")
			for j := 0; j < 100; j++ {
				at := int64(i*100_000 + j*10)
				e.KeyDown(s, KeyEvent{Code: KeyB, EventTime: at})
				e.KeyUp(s, KeyEvent{Code: KeyB, EventTime: at + 1})
				if j%10 == 0 {
					e.UpdateSettings(config.DefaultKeyboardSettings())
				}
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, ModifiersState{}, e.Modifiers())
}
