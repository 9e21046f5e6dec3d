package evdev

import "physkey/internal/ime"

// Linux key codes from linux/input-event-codes.h.
const (
	linuxKeyEsc        = 1
	linuxKeyBackspace  = 14
	linuxKeyTab        = 15
	linuxKeyEnter      = 28
	linuxKeyLeftShift  = 42
	linuxKeyComma      = 51
	linuxKeyDot        = 52
	linuxKeyRightShift = 54
	linuxKeyLeftAlt    = 56
	linuxKeySpace      = 57
	linuxKeyRightAlt   = 100
	linuxKeyDelete     = 111
	linuxKeyCompose    = 127
)

// Letter rows of a QWERTY keyboard, by Linux code.
var linuxLetters = map[uint16]rune{
	16: 'q', 17: 'w', 18: 'e', 19: 'r', 20: 't', 21: 'y', 22: 'u', 23: 'i', 24: 'o', 25: 'p',
	30: 'a', 31: 's', 32: 'd', 33: 'f', 34: 'g', 35: 'h', 36: 'j', 37: 'k', 38: 'l',
	44: 'z', 45: 'x', 46: 'c', 47: 'v', 48: 'b', 49: 'n', 50: 'm',
}

// The compose (menu) key stands in for the Sym key.
var linuxKeys = map[uint16]ime.KeyCode{
	linuxKeyEsc:        ime.KeyBack,
	linuxKeyBackspace:  ime.KeyDel,
	linuxKeyTab:        ime.KeyTab,
	linuxKeyEnter:      ime.KeyEnter,
	linuxKeyLeftShift:  ime.KeyShiftLeft,
	linuxKeyComma:      ime.KeyComma,
	linuxKeyDot:        ime.KeyPeriod,
	linuxKeyRightShift: ime.KeyShiftRight,
	linuxKeyLeftAlt:    ime.KeyAltLeft,
	linuxKeySpace:      ime.KeySpace,
	linuxKeyRightAlt:   ime.KeyAltRight,
	linuxKeyDelete:     ime.KeyForwardDel,
	linuxKeyCompose:    ime.KeySym,
}

var imeToLinux = func() map[ime.KeyCode]uint16 {
	m := make(map[ime.KeyCode]uint16, len(linuxKeys)+len(linuxLetters))
	for code, k := range linuxKeys {
		m[k] = code
	}
	for code, r := range linuxLetters {
		k, _ := ime.LetterKey(r)
		m[k] = code
	}
	return m
}()

// KeyCode maps a Linux key code to the engine's key code.
func KeyCode(linux uint16) (ime.KeyCode, bool) {
	if r, ok := linuxLetters[linux]; ok {
		return ime.LetterKey(r)
	}
	k, ok := linuxKeys[linux]
	return k, ok
}

// LinuxCode maps an engine key code back to its Linux key code.
func LinuxCode(k ime.KeyCode) (uint16, bool) {
	code, ok := imeToLinux[k]
	return code, ok
}
