package ime

// KeyCode identifies a physical key. Values follow the Android KeyEvent
// numbering; hosts on other platforms translate into it.
type KeyCode int

const (
	KeyUnknown KeyCode = 0
	KeyBack    KeyCode = 4

	KeyA KeyCode = 29
	KeyB KeyCode = 30
	KeyC KeyCode = 31
	KeyD KeyCode = 32
	KeyE KeyCode = 33
	KeyF KeyCode = 34
	KeyG KeyCode = 35
	KeyH KeyCode = 36
	KeyI KeyCode = 37
	KeyJ KeyCode = 38
	KeyK KeyCode = 39
	KeyL KeyCode = 40
	KeyM KeyCode = 41
	KeyN KeyCode = 42
	KeyO KeyCode = 43
	KeyP KeyCode = 44
	KeyQ KeyCode = 45
	KeyR KeyCode = 46
	KeyS KeyCode = 47
	KeyT KeyCode = 48
	KeyU KeyCode = 49
	KeyV KeyCode = 50
	KeyW KeyCode = 51
	KeyX KeyCode = 52
	KeyY KeyCode = 53
	KeyZ KeyCode = 54

	KeyComma      KeyCode = 55
	KeyPeriod     KeyCode = 56
	KeyAltLeft    KeyCode = 57
	KeyAltRight   KeyCode = 58
	KeyShiftLeft  KeyCode = 59
	KeyShiftRight KeyCode = 60
	KeyTab        KeyCode = 61
	KeySpace      KeyCode = 62
	KeySym        KeyCode = 63
	KeyEnter      KeyCode = 66
	KeyDel        KeyCode = 67
	KeyForwardDel KeyCode = 112
)

// MetaState is the modifier bit mask carried by raw key events.
type MetaState int

const (
	MetaShiftOn   MetaState = 0x01
	MetaAltOn     MetaState = 0x02
	MetaAltLeftOn MetaState = 0x10
)

// IsLetter reports whether k is one of A..Z.
func (k KeyCode) IsLetter() bool {
	return k >= KeyA && k <= KeyZ
}

// IsShift reports whether k is either Shift key.
func (k KeyCode) IsShift() bool {
	return k == KeyShiftLeft || k == KeyShiftRight
}

// IsAlt reports whether k is either Alt key.
func (k KeyCode) IsAlt() bool {
	return k == KeyAltLeft || k == KeyAltRight
}

// IsWordBoundary reports whether k triggers shortcut evaluation.
func (k KeyCode) IsWordBoundary() bool {
	switch k {
	case KeySpace, KeyEnter, KeyTab, KeyPeriod, KeyComma:
		return true
	}
	return false
}

// Letter returns the lower-case letter for a letter key.
func (k KeyCode) Letter() (rune, bool) {
	if !k.IsLetter() {
		return 0, false
	}
	return 'a' + rune(k-KeyA), true
}

// LetterKey returns the key code for an ASCII letter of either case.
func LetterKey(r rune) (KeyCode, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return KeyA + KeyCode(r-'a'), true
	case r >= 'A' && r <= 'Z':
		return KeyA + KeyCode(r-'A'), true
	}
	return KeyUnknown, false
}

// trailingText is what a boundary key leaves after an expanded shortcut.
func (k KeyCode) trailingText() string {
	switch k {
	case KeySpace:
		return " "
	case KeyEnter:
		return "\n"
	case KeyTab:
		return "\t"
	case KeyPeriod:
		return "."
	case KeyComma:
		return ","
	default:
		return " "
	}
}

var keyNames = map[KeyCode]string{
	KeyBack:       "BACK",
	KeyComma:      "COMMA",
	KeyPeriod:     "PERIOD",
	KeyAltLeft:    "ALT_LEFT",
	KeyAltRight:   "ALT_RIGHT",
	KeyShiftLeft:  "SHIFT_LEFT",
	KeyShiftRight: "SHIFT_RIGHT",
	KeyTab:        "TAB",
	KeySpace:      "SPACE",
	KeySym:        "SYM",
	KeyEnter:      "ENTER",
	KeyDel:        "DEL",
	KeyForwardDel: "FORWARD_DEL",
}

func (k KeyCode) String() string {
	if r, ok := k.Letter(); ok {
		return string(r - 'a' + 'A')
	}
	if name, ok := keyNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseKeyCode accepts the names produced by String, case-sensitively.
func ParseKeyCode(name string) (KeyCode, bool) {
	if len(name) == 1 {
		if k, ok := LetterKey(rune(name[0])); ok && name[0] >= 'A' && name[0] <= 'Z' {
			return k, true
		}
	}
	for k, n := range keyNames {
		if n == name {
			return k, true
		}
	}
	return KeyUnknown, false
}
