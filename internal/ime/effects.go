package ime

// KeyEventResult tells the host whether the engine consumed a key event.
type KeyEventResult int

const (
	// NotHandled lets the host process the key normally.
	NotHandled KeyEventResult = iota
	// Handled means the engine consumed the key.
	Handled
)

func (r KeyEventResult) String() string {
	if r == Handled {
		return "handled"
	}
	return "not-handled"
}

// Effect is a side effect for the UI layer, returned in emission order.
type Effect interface {
	effect()
}

// ModifierStateChanged carries the new modifier and picker state.
type ModifierStateChanged struct {
	State ModifiersState
}

// SymKeyPressed reports a short Sym tap (picker shown or category cycled).
type SymKeyPressed struct{}

// SymPickerDismissRequested asks the UI to close the symbol picker.
type SymPickerDismissRequested struct{}

func (ModifierStateChanged) effect()      {}
func (SymKeyPressed) effect()             {}
func (SymPickerDismissRequested) effect() {}

// EffectName returns a short stable name for logs and replay output.
func EffectName(e Effect) string {
	switch e.(type) {
	case ModifierStateChanged:
		return "modifier_state_changed"
	case SymKeyPressed:
		return "sym_key_pressed"
	case SymPickerDismissRequested:
		return "sym_picker_dismiss_requested"
	default:
		return "unknown"
	}
}
