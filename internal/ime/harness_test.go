package ime

import (
	"strings"
	"testing"

	"physkey/internal/config"
)

type fakeShortcut struct {
	trigger       string
	replacement   string
	caseSensitive bool
}

type fakeShortcuts map[string][]fakeShortcut

func (f fakeShortcuts) Resolve(language, word string) (string, bool, bool) {
	for _, sc := range f[language] {
		if sc.caseSensitive {
			if sc.trigger == word {
				return sc.replacement, true, true
			}
			continue
		}
		if strings.EqualFold(sc.trigger, word) {
			return sc.replacement, false, true
		}
	}
	return "", false, false
}

type fakeAccents map[rune][]string

func (f fakeAccents) Lookup(_ string, base rune) []string {
	return f[base]
}

var testShortcuts = fakeShortcuts{
	"en": {
		{trigger: "dont", replacement: "don't"},
		{trigger: "brb", replacement: "be right back"},
		{trigger: "API", replacement: "application programming interface", caseSensitive: true},
	},
	"tr": {
		{trigger: "ist", replacement: "istanbul"},
	},
}

var testAccents = fakeAccents{
	'e': {"e", "é", "è", "ê", "ë"},
	'a': {"a", "à", "á"},
}

// harness drives a Dispatcher against a BufferSurface the way a host
// does: keys the dispatcher does not handle get their default effect.
type harness struct {
	t       *testing.T
	d       *Dispatcher
	s       *BufferSurface
	st      *config.KeyboardSettings
	now     int64
	effects []Effect
}

func newHarness(t *testing.T, text string) *harness {
	t.Helper()
	return &harness{
		t:   t,
		d:   NewDispatcher(testShortcuts, testAccents),
		s:   NewBufferSurface(text),
		st:  config.DefaultKeyboardSettings(),
		now: 10_000,
	}
}

// downAt sends a key-down without applying any default.
func (h *harness) downAt(code KeyCode, repeat int, at int64) KeyEventResult {
	res, eff := h.d.HandleKeyDown(h.s, KeyEvent{Code: code, DownTime: at, EventTime: at, RepeatCount: repeat}, h.st)
	h.effects = eff
	return res
}

func (h *harness) upAt(code KeyCode, repeat int, at int64) KeyEventResult {
	res, eff := h.d.HandleKeyUp(h.s, KeyEvent{Code: code, DownTime: at, EventTime: at, RepeatCount: repeat}, h.st)
	h.effects = append(h.effects, eff...)
	return res
}

// tapAt presses and releases code, applying the default on NotHandled.
// effects holds everything emitted by both halves.
func (h *harness) tapAt(code KeyCode, down, up int64) KeyEventResult {
	res := h.downAt(code, 0, down)
	if res == NotHandled {
		h.s.ApplyDefault(code, false)
	}
	h.upAt(code, 0, up)
	return res
}

// press taps code at the harness clock and advances it by 100ms.
func (h *harness) press(code KeyCode) KeyEventResult {
	res := h.tapAt(code, h.now, h.now+20)
	h.now += 100
	return res
}

// hold presses code for longer than a long press.
func (h *harness) hold(code KeyCode) {
	h.tapAt(code, h.now, h.now+600)
	h.now += 700
}

func (h *harness) typeText(text string) {
	h.t.Helper()
	for _, r := range text {
		h.press(codeFor(h.t, r))
	}
}

func codeFor(t *testing.T, r rune) KeyCode {
	t.Helper()
	switch r {
	case ' ':
		return KeySpace
	case '\n':
		return KeyEnter
	case '\t':
		return KeyTab
	case '.':
		return KeyPeriod
	case ',':
		return KeyComma
	}
	k, ok := LetterKey(r)
	if !ok {
		t.Fatalf("no key for %q", r)
	}
	return k
}

func stateChanges(effects []Effect) []ModifiersState {
	var out []ModifiersState
	for _, e := range effects {
		if c, ok := e.(ModifierStateChanged); ok {
			out = append(out, c.State)
		}
	}
	return out
}
