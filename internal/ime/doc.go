// Package ime is the key event engine behind physkey, an input method for
// physical keyboards.
//
// # Architecture
//
// A host such as the IBus engine or the replay runner turns
// its native key events into KeyEvent values and hands them to an Engine
// together with a Surface, the cursor-relative editing API of the focused
// field. The Engine forwards each event to a Dispatcher, which decides
// whether the key is consumed and edits the Surface:
//
//	host key event ──→ Engine ──→ Dispatcher ──→ Surface edits
//	                      │            │
//	                      │            └──→ []Effect (modifier state, picker)
//	                      └──→ logging, metrics
//
// A key the Dispatcher does not handle is left to the host, which applies
// its default behaviour (typing the letter, moving the cursor).
//
// # Features
//
//   - Shortcut expansion at word boundaries, with case carried from the
//     typed word, and Backspace undo of the last expansion.
//   - Sticky and locked Shift and Alt, by double tap or long press.
//   - Sentence auto-capitalization driven by the text before the cursor.
//   - Double space to period.
//   - Long-press accent cycling from an AccentTable.
//   - The Sym key: a symbol picker, currency on double tap or long press.
//   - Alt+Backspace deletes the line or the word before the cursor.
//
// # Timing
//
// All time decisions use the timestamps carried by the events, never the
// wall clock, so a recorded event log replays identically.
//
// # Hosts
//
// On Linux the IBus host (IBusHost) exports an IBus engine factory over
// D-Bus and mirrors the client's surrounding text. On Android the
// service binds MobileEngine through gomobile:
//
//	gomobile bind -target=android -o physkey.aar ./internal/ime
package ime
