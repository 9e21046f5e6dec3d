package ime

import (
	"fmt"

	"physkey/internal/symbols"
)

// Timing thresholds in milliseconds of event time.
const (
	longPressMs      = 500
	doubleTapMs      = 300
	doubleSpaceMs    = 500
	accentStartMs    = 500
	accentIntervalMs = 450
)

// ModifierState is the activation level of Shift or Alt.
type ModifierState int

const (
	ModifierNone ModifierState = iota
	// ModifierOneShot applies to the next character only.
	ModifierOneShot
	// ModifierLocked stays on until toggled off.
	ModifierLocked
)

func (s ModifierState) String() string {
	switch s {
	case ModifierNone:
		return "none"
	case ModifierOneShot:
		return "one-shot"
	case ModifierLocked:
		return "locked"
	default:
		return fmt.Sprintf("ModifierState(%d)", int(s))
	}
}

// Modifier selects Shift or Alt.
type Modifier int

const (
	Shift Modifier = iota
	Alt
)

func (m Modifier) String() string {
	if m == Alt {
		return "alt"
	}
	return "shift"
}

// ModifiersState is the modifier and symbol picker state shown to the UI.
// At most one of Shift and Alt is non-None.
type ModifiersState struct {
	Shift            ModifierState
	Alt              ModifierState
	SymPickerVisible bool
	SymCategory      symbols.Category
}

// ShiftActive reports whether Shift is one-shot or locked.
func (m ModifiersState) ShiftActive() bool { return m.Shift != ModifierNone }

// AltActive reports whether Alt is one-shot or locked.
func (m ModifiersState) AltActive() bool { return m.Alt != ModifierNone }

// AnyActive reports whether Shift or Alt is active.
func (m ModifiersState) AnyActive() bool { return m.ShiftActive() || m.AltActive() }

// HasOneShot reports whether either modifier is one-shot.
func (m ModifiersState) HasOneShot() bool {
	return m.Shift == ModifierOneShot || m.Alt == ModifierOneShot
}

func (m ModifiersState) get(which Modifier) ModifierState {
	if which == Alt {
		return m.Alt
	}
	return m.Shift
}

func (m *ModifiersState) set(which Modifier, s ModifierState) {
	if which == Alt {
		m.Alt = s
	} else {
		m.Shift = s
	}
}

// Toggle advances which after a tap. shouldLock is the long-press or
// double-tap outcome and sticky is the modifier's sticky setting.
// Activating one modifier clears the other. Toggle reports whether the
// state changed.
func (m *ModifiersState) Toggle(which Modifier, shouldLock, sticky bool) bool {
	old := *m
	cur := m.get(which)

	var next ModifierState
	switch cur {
	case ModifierLocked:
		next = ModifierNone
	case ModifierOneShot:
		if shouldLock {
			next = ModifierLocked
		} else {
			next = ModifierNone
		}
	default:
		switch {
		case shouldLock:
			next = ModifierLocked
		case sticky:
			next = ModifierOneShot
		default:
			next = cur
		}
	}

	m.set(which, next)
	if next != ModifierNone {
		other := Alt
		if which == Alt {
			other = Shift
		}
		m.set(other, ModifierNone)
	}
	return *m != old
}

// ClearOneShot drops one-shot modifiers and leaves locked ones.
// It reports whether anything changed.
func (m *ModifiersState) ClearOneShot() bool {
	if !m.HasOneShot() {
		return false
	}
	if m.Shift == ModifierOneShot {
		m.Shift = ModifierNone
	}
	if m.Alt == ModifierOneShot {
		m.Alt = ModifierNone
	}
	return true
}

// tapTracker classifies presses of one modifier key.
type tapTracker struct {
	downTime int64
	down     bool
	lastTap  int64
	tapped   bool
}

func (t *tapTracker) press(eventTime int64) {
	t.downTime = eventTime
	t.down = true
}

// release classifies the press ending at eventTime. ok is false when no
// press was recorded.
func (t *tapTracker) release(eventTime int64) (longPress, doubleTap, ok bool) {
	if !t.down {
		return false, false, false
	}
	t.down = false

	longPress = eventTime-t.downTime >= longPressMs
	if !longPress {
		doubleTap = t.tapped && eventTime-t.lastTap < doubleTapMs
		t.lastTap = eventTime
		t.tapped = true
	}
	return longPress, doubleTap, true
}

// forgetTap stops the next tap from counting as a double tap.
func (t *tapTracker) forgetTap() {
	t.lastTap = 0
	t.tapped = false
}

func (t *tapTracker) reset() {
	*t = tapTracker{}
}
