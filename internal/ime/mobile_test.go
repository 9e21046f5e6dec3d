package ime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"physkey/internal/config"
)

// fakeConnection plays the Android InputConnection.
type fakeConnection struct {
	buf  *BufferSurface
	gone bool
}

func (f *fakeConnection) TextBeforeCursor(n int) (string, error) {
	if f.gone {
		return "", errors.New("connection closed")
	}
	text, _ := f.buf.TextBeforeCursor(n)
	return text, nil
}

func (f *fakeConnection) TextAfterCursor(n int) (string, error) {
	if f.gone {
		return "", errors.New("connection closed")
	}
	text, _ := f.buf.TextAfterCursor(n)
	return text, nil
}

func (f *fakeConnection) DeleteSurroundingText(before, after int) {
	f.buf.DeleteSurroundingText(before, after)
}

func (f *fakeConnection) CommitText(text string) { f.buf.CommitText(text) }

func (f *fakeConnection) SendRawKeyEvent(code, meta int) {
	f.buf.SendRawKeyEvent(KeyCode(code), MetaState(meta))
}

type modifierCall struct {
	shift, alt int
	visible    bool
	category   string
}

type recordingListener struct {
	modifiers []modifierCall
	symTaps   int
	dismisses int
}

func (l *recordingListener) OnModifierState(shift, alt int, visible bool, category string) {
	l.modifiers = append(l.modifiers, modifierCall{shift, alt, visible, category})
}

func (l *recordingListener) OnSymKeyPressed()             { l.symTaps++ }
func (l *recordingListener) OnSymPickerDismissRequested() { l.dismisses++ }

// tap mimics the service: an unconsumed key falls through to the default.
func tap(t *testing.T, m *MobileEngine, c *fakeConnection, code KeyCode, at int64) {
	t.Helper()
	handled, err := m.OnKeyDown(c, int(code), at, at, 0)
	require.NoError(t, err)
	if !handled {
		c.buf.ApplyDefault(code, false)
	}
	_, err = m.OnKeyUp(c, int(code), at, at+30, 0)
	require.NoError(t, err)
}

func TestMobileEngineShortcuts(t *testing.T) {
	m, err := NewMobileEngine("")
	require.NoError(t, err)
	m.AddShortcut("en", "brb", "be right back", false)

	c := &fakeConnection{buf: NewBufferSurface("")}
	m.StartInputWithoutField()
	at := int64(1000)
	for _, k := range []KeyCode{KeyO, KeyK, KeySpace, KeyB, KeyR, KeyB, KeySpace} {
		tap(t, m, c, k, at)
		at += 100
	}
	assert.Equal(t, "ok be right back ", c.buf.Text())

	m.ClearShortcuts()
	tap(t, m, c, KeyB, at)
	tap(t, m, c, KeyR, at+100)
	tap(t, m, c, KeyB, at+200)
	tap(t, m, c, KeySpace, at+300)
	assert.Equal(t, "ok be right back brb ", c.buf.Text())
}

func TestMobileEngineAutoCapFromInputType(t *testing.T) {
	m, err := NewMobileEngine("")
	require.NoError(t, err)
	c := &fakeConnection{buf: NewBufferSurface("")}

	m.StartInput(0x1) // TYPE_CLASS_TEXT
	tap(t, m, c, KeyH, 1000)
	assert.Equal(t, "H", c.buf.Text())

	c.buf.Reset("")
	m.StartInputWithoutField()
	tap(t, m, c, KeyH, 2000)
	assert.Equal(t, "h", c.buf.Text())
}

func TestMobileEngineUnreadableConnection(t *testing.T) {
	m, err := NewMobileEngine("")
	require.NoError(t, err)
	c := &fakeConnection{buf: NewBufferSurface(""), gone: true}

	m.StartInput(0x1)
	handled, err := m.OnKeyDown(c, int(KeyH), 1000, 1000, 0)
	require.NoError(t, err)
	assert.False(t, handled, "unreadable field is not a sentence start")
	assert.Empty(t, c.buf.Text())
}

func TestMobileEngineNoSurface(t *testing.T) {
	m, err := NewMobileEngine("")
	require.NoError(t, err)

	_, err = m.OnKeyDown(nil, int(KeyA), 0, 0, 0)
	assert.ErrorIs(t, err, ErrNoSurface)
	_, err = m.OnKeyUp(nil, int(KeyA), 0, 0, 0)
	assert.ErrorIs(t, err, ErrNoSurface)
	assert.ErrorIs(t, m.InsertSymbol(nil, "€"), ErrNoSurface)
}

func TestMobileEngineSettings(t *testing.T) {
	m, err := NewMobileEngine(`{"sticky_shift": true, "selected_language": "fr"}`)
	require.NoError(t, err)
	assert.True(t, m.engine.Settings().StickyShift)
	assert.Equal(t, "fr", m.engine.Settings().SelectedLanguage)
	assert.Contains(t, m.SettingsJSON(), `"sticky_shift":true`)

	require.NoError(t, m.UpdateSettings(`{"sticky_alt": true}`))
	assert.False(t, m.engine.Settings().StickyShift, "update replaces the whole object")
	assert.True(t, m.engine.Settings().StickyAlt)

	_, err = NewMobileEngine(`{"no_such_setting": 1}`)
	assert.Error(t, err)

	err = m.UpdateSettings(`{"alt_backspace_behavior": "explode"}`)
	var verrs config.ValidationErrors
	assert.ErrorAs(t, err, &verrs)
	assert.True(t, m.engine.Settings().StickyAlt, "rejected update keeps the old settings")
}

func TestMobileEngineListener(t *testing.T) {
	m, err := NewMobileEngine(`{"sticky_shift": true}`)
	require.NoError(t, err)
	l := &recordingListener{}
	m.SetListener(l)
	c := &fakeConnection{buf: NewBufferSurface("x")}

	tap(t, m, c, KeyShiftLeft, 1000)
	require.Len(t, l.modifiers, 1)
	assert.Equal(t, modifierCall{shift: int(ModifierOneShot), category: "common"}, l.modifiers[0])

	tap(t, m, c, KeySym, 2000)
	assert.Equal(t, 1, l.symTaps)
	assert.True(t, l.modifiers[len(l.modifiers)-1].visible)

	require.NoError(t, m.SelectSymCategory("math"))
	assert.Equal(t, "math", l.modifiers[len(l.modifiers)-1].category)
	assert.Error(t, m.SelectSymCategory("emoji"))

	m.SetListener(nil)
	m.SetSymPickerVisible(false)
}

func TestMobileEngineSymbols(t *testing.T) {
	m, err := NewMobileEngine("")
	require.NoError(t, err)

	list, err := m.Symbols("currency", "en-US")
	require.NoError(t, err)
	assert.Contains(t, list, "€")

	_, err = m.Symbols("nope", "")
	assert.Error(t, err)
}

func TestShortcutMapPrefersExactMatch(t *testing.T) {
	sm := newShortcutMap()
	sm.add("en", "Api", "first", false)
	sm.add("en", "api", "second", true)

	r, cs, ok := sm.Resolve("en", "api")
	require.True(t, ok)
	assert.Equal(t, "second", r)
	assert.True(t, cs)

	r, _, ok = sm.Resolve("en", "API")
	require.True(t, ok)
	assert.Equal(t, "first", r)

	_, _, ok = sm.Resolve("de", "api")
	assert.False(t, ok)
}
