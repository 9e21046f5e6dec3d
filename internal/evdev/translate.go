package evdev

import "physkey/internal/ime"

// KeyAction is the direction of a translated key event.
type KeyAction int

const (
	ActionDown KeyAction = iota
	ActionUp
)

func (a KeyAction) String() string {
	if a == ActionUp {
		return "up"
	}
	return "down"
}

// Translated is a key event ready for the engine.
type Translated struct {
	Action KeyAction
	Event  ime.KeyEvent
}

// Translator turns raw key events into engine events. It remembers when
// each key went down and counts kernel autorepeats. Not safe for
// concurrent use.
type Translator struct {
	held map[ime.KeyCode]*heldKey
}

type heldKey struct {
	downTime int64
	repeats  int
}

// NewTranslator returns a Translator with no keys held.
func NewTranslator() *Translator {
	return &Translator{held: make(map[ime.KeyCode]*heldKey)}
}

// Translate converts one input event. It returns false for non-key events,
// unmapped keys and releases of keys it never saw go down.
func (t *Translator) Translate(ev InputEvent) (Translated, bool) {
	if ev.Type != EvKey {
		return Translated{}, false
	}
	code, ok := KeyCode(ev.Code)
	if !ok {
		return Translated{}, false
	}
	now := ev.Millis()

	switch ev.Value {
	case KeyPressed:
		t.held[code] = &heldKey{downTime: now}
		return Translated{Action: ActionDown, Event: ime.KeyEvent{
			Code: code, DownTime: now, EventTime: now,
		}}, true

	case KeyRepeated:
		h, ok := t.held[code]
		if !ok {
			// Repeat of a key held before capture started.
			h = &heldKey{downTime: now}
			t.held[code] = h
		}
		h.repeats++
		return Translated{Action: ActionDown, Event: ime.KeyEvent{
			Code: code, DownTime: h.downTime, EventTime: now, RepeatCount: h.repeats,
		}}, true

	case KeyReleased:
		h, ok := t.held[code]
		if !ok {
			return Translated{}, false
		}
		delete(t.held, code)
		return Translated{Action: ActionUp, Event: ime.KeyEvent{
			Code: code, DownTime: h.downTime, EventTime: now,
		}}, true
	}
	return Translated{}, false
}

// Held reports how many keys are currently down.
func (t *Translator) Held() int {
	return len(t.held)
}

// Reset forgets all held keys.
func (t *Translator) Reset() {
	clear(t.held)
}
