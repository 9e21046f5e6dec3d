// Package evdev reads Linux input devices and turns their key events into
// ime.KeyEvent values.
package evdev

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Event types and key values from linux/input-event-codes.h.
const (
	EvSyn uint16 = 0x00
	EvKey uint16 = 0x01
	EvMsc uint16 = 0x04

	KeyReleased int32 = 0
	KeyPressed  int32 = 1
	KeyRepeated int32 = 2
)

// EventSize is sizeof(struct input_event) on 64-bit Linux.
const EventSize = 24

// InputEvent is a decoded struct input_event.
type InputEvent struct {
	Time  time.Duration // since the epoch, from the kernel timeval
	Type  uint16
	Code  uint16
	Value int32
}

// Millis returns the event time in milliseconds.
func (e InputEvent) Millis() int64 {
	return e.Time.Milliseconds()
}

func (e InputEvent) String() string {
	return fmt.Sprintf("type=%d code=%d value=%d t=%dms", e.Type, e.Code, e.Value, e.Millis())
}

// Decode parses one input_event in host byte order.
func Decode(b []byte) (InputEvent, error) {
	if len(b) < EventSize {
		return InputEvent{}, fmt.Errorf("short input event: %d bytes", len(b))
	}
	sec := int64(binary.NativeEndian.Uint64(b[0:8]))
	usec := int64(binary.NativeEndian.Uint64(b[8:16]))
	return InputEvent{
		Time:  time.Duration(sec)*time.Second + time.Duration(usec)*time.Microsecond,
		Type:  binary.NativeEndian.Uint16(b[16:18]),
		Code:  binary.NativeEndian.Uint16(b[18:20]),
		Value: int32(binary.NativeEndian.Uint32(b[20:24])),
	}, nil
}

// Encode writes e into b, which must hold EventSize bytes.
func Encode(b []byte, e InputEvent) {
	sec := int64(e.Time / time.Second)
	usec := int64((e.Time % time.Second) / time.Microsecond)
	binary.NativeEndian.PutUint64(b[0:8], uint64(sec))
	binary.NativeEndian.PutUint64(b[8:16], uint64(usec))
	binary.NativeEndian.PutUint16(b[16:18], e.Type)
	binary.NativeEndian.PutUint16(b[18:20], e.Code)
	binary.NativeEndian.PutUint32(b[20:24], uint32(e.Value))
}

// DecodeAll parses a buffer of back-to-back events. Trailing bytes that do
// not form a whole event are an error.
func DecodeAll(b []byte) ([]InputEvent, error) {
	if len(b)%EventSize != 0 {
		return nil, fmt.Errorf("input buffer of %d bytes is not a multiple of %d", len(b), EventSize)
	}
	out := make([]InputEvent, 0, len(b)/EventSize)
	for off := 0; off < len(b); off += EventSize {
		ev, err := Decode(b[off : off+EventSize])
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}
