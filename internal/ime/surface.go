package ime

import (
	"fmt"
	"strings"
)

// Surface is the cursor-relative text editing API of the focused field.
// Lengths count runes.
type Surface interface {
	// TextBeforeCursor returns up to n runes before the cursor. ok is false
	// when the host cannot read the field.
	TextBeforeCursor(n int) (text string, ok bool)

	// TextAfterCursor returns up to n runes after the cursor.
	TextAfterCursor(n int) (text string, ok bool)

	// DeleteSurroundingText removes before runes before and after runes
	// after the cursor.
	DeleteSurroundingText(before, after int)

	// CommitText inserts text at the cursor and moves the cursor past it.
	CommitText(text string)

	// SendRawKeyEvent delivers a full press (down then up) of code with the
	// given meta state through the host's key event channel.
	SendRawKeyEvent(code KeyCode, meta MetaState)
}

// RawKey is a key press forwarded through SendRawKeyEvent.
type RawKey struct {
	Code KeyCode
	Meta MetaState
}

// BufferSurface is an in-memory Surface holding a single text field.
// It backs replay and tests, and lets hosts without a readable field
// (evdev, IBus without surrounding text) mirror what was typed.
type BufferSurface struct {
	text   []rune
	cursor int

	// RawKeys records every SendRawKeyEvent call.
	RawKeys []RawKey

	// PassThrough, when set, is called for RawKeys instead of only recording.
	PassThrough func(code KeyCode, meta MetaState)
}

// NewBufferSurface returns a surface holding text with the cursor at its end.
func NewBufferSurface(text string) *BufferSurface {
	r := []rune(text)
	return &BufferSurface{text: r, cursor: len(r)}
}

// Text returns the whole field.
func (b *BufferSurface) Text() string {
	return string(b.text)
}

// Cursor returns the cursor position in runes.
func (b *BufferSurface) Cursor() int {
	return b.cursor
}

// SetCursor moves the cursor, clamped to the field.
func (b *BufferSurface) SetCursor(pos int) {
	b.cursor = clamp(pos, 0, len(b.text))
}

// Reset replaces the field contents and puts the cursor at the end.
func (b *BufferSurface) Reset(text string) {
	b.text = []rune(text)
	b.cursor = len(b.text)
	b.RawKeys = nil
}

func (b *BufferSurface) TextBeforeCursor(n int) (string, bool) {
	if n <= 0 {
		return "", true
	}
	start := max(b.cursor-n, 0)
	return string(b.text[start:b.cursor]), true
}

func (b *BufferSurface) TextAfterCursor(n int) (string, bool) {
	if n <= 0 {
		return "", true
	}
	end := min(b.cursor+n, len(b.text))
	return string(b.text[b.cursor:end]), true
}

func (b *BufferSurface) DeleteSurroundingText(before, after int) {
	start := clamp(b.cursor-before, 0, b.cursor)
	end := clamp(b.cursor+after, b.cursor, len(b.text))
	b.text = append(b.text[:start], b.text[end:]...)
	b.cursor = start
}

func (b *BufferSurface) CommitText(text string) {
	ins := []rune(text)
	out := make([]rune, 0, len(b.text)+len(ins))
	out = append(out, b.text[:b.cursor]...)
	out = append(out, ins...)
	out = append(out, b.text[b.cursor:]...)
	b.text = out
	b.cursor += len(ins)
}

func (b *BufferSurface) SendRawKeyEvent(code KeyCode, meta MetaState) {
	b.RawKeys = append(b.RawKeys, RawKey{Code: code, Meta: meta})
	if b.PassThrough != nil {
		b.PassThrough(code, meta)
	}
}

// ApplyDefault performs what a host does with a key the engine did not
// handle: letters, Space, Enter, Tab, Period and Comma insert their
// character (upper case when shift is set) and Backspace deletes one rune.
func (b *BufferSurface) ApplyDefault(code KeyCode, shift bool) {
	switch code {
	case KeyDel:
		b.DeleteSurroundingText(1, 0)
	case KeyForwardDel:
		b.DeleteSurroundingText(0, 1)
	case KeySpace, KeyEnter, KeyTab, KeyPeriod, KeyComma:
		b.CommitText(code.trailingText())
	default:
		if r, ok := code.Letter(); ok {
			if shift {
				r -= 'a' - 'A'
			}
			b.CommitText(string(r))
		}
	}
}

// String shows the field with a caret at the cursor, for test failures.
func (b *BufferSurface) String() string {
	var sb strings.Builder
	sb.WriteString(string(b.text[:b.cursor]))
	sb.WriteRune('|')
	sb.WriteString(string(b.text[b.cursor:]))
	return fmt.Sprintf("%q", sb.String())
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
