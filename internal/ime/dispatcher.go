package ime

import (
	"unicode/utf8"

	"physkey/internal/config"
	"physkey/internal/symbols"
)

// KeyEvent is a physical key transition. Times are monotonic milliseconds.
type KeyEvent struct {
	Code        KeyCode
	DownTime    int64
	EventTime   int64
	RepeatCount int
	MetaState   MetaState
}

// Action names a text operation the dispatcher performed for an event.
type Action int

const (
	ActionAutoCapitalize Action = iota + 1
	ActionShortcutExpanded
	ActionShortcutUndone
	ActionDoubleSpacePeriod
	ActionAccentSubstituted
	ActionLongPressCapital
	ActionAltPassthrough
	ActionDeleteLine
	ActionDeleteForward
	ActionCurrencyInserted
	ActionShiftedLetter
	ActionSymbolInserted
)

var actionNames = map[Action]string{
	ActionAutoCapitalize:    "auto_capitalize",
	ActionShortcutExpanded:  "shortcut_expanded",
	ActionShortcutUndone:    "shortcut_undone",
	ActionDoubleSpacePeriod: "double_space_period",
	ActionAccentSubstituted: "accent_substituted",
	ActionLongPressCapital:  "long_press_capital",
	ActionAltPassthrough:    "alt_passthrough",
	ActionDeleteLine:        "delete_line",
	ActionDeleteForward:     "delete_forward",
	ActionCurrencyInserted:  "currency_inserted",
	ActionShiftedLetter:     "shifted_letter",
	ActionSymbolInserted:    "symbol_inserted",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return "unknown"
}

// deleteLineLookbehind bounds how far back Alt+Backspace looks for a newline.
const deleteLineLookbehind = 1000

var defaultSettings = config.DefaultKeyboardSettings()

// Dispatcher turns key events into edits on a Surface. It owns all engine
// state and is not safe for concurrent use.
type Dispatcher struct {
	accents  AccentTable
	replacer *replacer

	mods  ModifiersState
	field *FieldInfo

	shiftTap tapTracker
	altTap   tapTracker
	symTap   tapTracker

	lastSpace  int64
	spaceArmed bool

	skipNextShortcut bool
	record           *ReplacementRecord
	accent           *AccentSession

	effects []Effect
	actions []Action
}

// NewDispatcher returns a dispatcher using the given lookups. Either may be
// nil, which disables shortcuts or accents.
func NewDispatcher(shortcuts ShortcutLookup, accents AccentTable) *Dispatcher {
	return &Dispatcher{
		accents:  accents,
		replacer: newReplacer(shortcuts),
	}
}

// Modifiers returns the current modifier and picker state.
func (d *Dispatcher) Modifiers() ModifiersState {
	return d.mods
}

// Replacement returns a copy of the live replacement record, or nil.
func (d *Dispatcher) Replacement() *ReplacementRecord {
	if d.record == nil {
		return nil
	}
	r := *d.record
	return &r
}

// AccentSession returns a copy of the live accent session, or nil.
func (d *Dispatcher) AccentSession() *AccentSession {
	if d.accent == nil {
		return nil
	}
	a := *d.accent
	return &a
}

// LastActions returns the operations performed by the most recent call.
func (d *Dispatcher) LastActions() []Action {
	return d.actions
}

// HandleKeyDown processes a key press or auto-repeat. A nil surface is not
// handled; nil settings mean defaults.
func (d *Dispatcher) HandleKeyDown(s Surface, ev KeyEvent, st *config.KeyboardSettings) (KeyEventResult, []Effect) {
	d.begin()
	if s == nil {
		return NotHandled, nil
	}
	if st == nil {
		st = defaultSettings
	}
	res := d.keyDown(s, ev, st)
	return res, d.drain()
}

// HandleKeyUp processes a key release.
func (d *Dispatcher) HandleKeyUp(s Surface, ev KeyEvent, st *config.KeyboardSettings) (KeyEventResult, []Effect) {
	d.begin()
	if s == nil {
		return NotHandled, nil
	}
	if st == nil {
		st = defaultSettings
	}
	res := d.keyUp(s, ev, st)
	return res, d.drain()
}

// InsertSymbol commits a symbol chosen in the picker, clears one-shot
// modifiers and hides the picker.
func (d *Dispatcher) InsertSymbol(s Surface, text string) []Effect {
	d.begin()
	if s == nil {
		return nil
	}
	s.CommitText(text)
	d.act(ActionSymbolInserted)

	changed := d.mods.ClearOneShot()
	if d.mods.SymPickerVisible {
		d.mods.SymPickerVisible = false
		changed = true
	}
	if changed {
		d.emitState()
	}
	return d.drain()
}

// SetSymPickerVisible shows the picker on its first category or hides it.
func (d *Dispatcher) SetSymPickerVisible(visible bool) []Effect {
	d.begin()
	if d.mods.SymPickerVisible == visible {
		return nil
	}
	d.mods.SymPickerVisible = visible
	if visible {
		d.mods.SymCategory = symbols.CategoryCommon
	}
	d.emitState()
	return d.drain()
}

// SelectSymCategory switches the picker to c.
func (d *Dispatcher) SelectSymCategory(c symbols.Category) []Effect {
	d.begin()
	if d.mods.SymCategory == c {
		return nil
	}
	d.mods.SymCategory = c
	d.emitState()
	return d.drain()
}

// StartInput begins editing a new field. Modifiers and transient state are
// reset; field may be nil when the host cannot describe the field.
func (d *Dispatcher) StartInput(field *FieldInfo) []Effect {
	d.begin()
	d.resetTransient()
	if field != nil {
		f := *field
		d.field = &f
	} else {
		d.field = nil
	}
	if d.mods != (ModifiersState{}) {
		d.mods = ModifiersState{}
		d.emitState()
	}
	return d.drain()
}

// FinishInput ends editing of the current field. Locked modifiers survive.
func (d *Dispatcher) FinishInput() []Effect {
	d.begin()
	d.resetTransient()
	d.field = nil
	if d.mods.SymPickerVisible {
		d.emit(SymPickerDismissRequested{})
		d.mods.SymPickerVisible = false
		d.mods.ClearOneShot()
		d.emitState()
	} else if d.mods.ClearOneShot() {
		d.emitState()
	}
	return d.drain()
}

func (d *Dispatcher) resetTransient() {
	d.record = nil
	d.accent = nil
	d.skipNextShortcut = false
	d.spaceArmed = false
	d.lastSpace = 0
	d.shiftTap.reset()
	d.altTap.reset()
	d.symTap.reset()
}

func (d *Dispatcher) keyDown(s Surface, ev KeyEvent, st *config.KeyboardSettings) KeyEventResult {
	if d.mods.SymPickerVisible && ev.Code != KeySym {
		d.dismissPicker()
		if ev.Code == KeyBack {
			return Handled
		}
	}

	if d.accent != nil && (ev.RepeatCount == 0 || ev.Code != d.accent.Code) {
		d.accent = nil
	}

	if ev.RepeatCount > 0 {
		return d.repeat(s, ev, st)
	}
	return d.firstPress(s, ev, st)
}

func (d *Dispatcher) repeat(s Surface, ev KeyEvent, st *config.KeyboardSettings) KeyEventResult {
	if ev.Code == KeyDel {
		return NotHandled
	}

	if st.LongPressAccents && ev.Code.IsLetter() && d.accent != nil {
		if variant, changed := d.accent.advance(ev.EventTime); changed {
			s.DeleteSurroundingText(1, 0)
			s.CommitText(variant)
			d.act(ActionAccentSubstituted)
		}
		return Handled
	}

	if st.LongPressCapitalize {
		if r, ok := ev.Code.Letter(); ok {
			upper := d.upper(r, st.SelectedLanguage)
			if st.KeyRepeatEnabled {
				s.CommitText(upper)
				d.act(ActionLongPressCapital)
				return Handled
			}
			if ev.RepeatCount == 1 {
				s.DeleteSurroundingText(1, 0)
				s.CommitText(upper)
				d.act(ActionLongPressCapital)
			}
			return Handled
		}
	}

	if !st.KeyRepeatEnabled {
		return Handled
	}
	return NotHandled
}

func (d *Dispatcher) firstPress(s Surface, ev KeyEvent, st *config.KeyboardSettings) KeyEventResult {
	lang := st.SelectedLanguage

	if st.AutoCapitalize && !d.mods.AnyActive() && shouldAutoCapitalize(s, d.field) {
		d.mods.Shift = ModifierOneShot
		d.act(ActionAutoCapitalize)
		d.emitState()
	}

	switch {
	case ev.Code.IsShift():
		d.shiftTap.press(ev.EventTime)
		return Handled
	case ev.Code.IsAlt():
		d.altTap.press(ev.EventTime)
		return Handled
	case ev.Code == KeySym:
		d.symTap.press(ev.EventTime)
		return Handled
	}

	if ev.Code == KeyDel && d.mods.AltActive() {
		return d.altBackspace(s, st.AltBackspaceBehavior)
	}

	if ev.Code == KeyDel && d.record != nil {
		rec := d.record
		d.record = nil
		want := rec.expected()
		n := utf8.RuneCountInString(want)
		if before, ok := s.TextBeforeCursor(n); ok && before == want {
			s.DeleteSurroundingText(n, 0)
			s.CommitText(rec.Original)
			d.skipNextShortcut = true
			d.act(ActionShortcutUndone)
			return Handled
		}
	}

	if ev.Code != KeyDel {
		d.record = nil
	}

	if st.TextShortcutsEnabled && ev.Code.IsWordBoundary() {
		if d.skipNextShortcut {
			d.skipNextShortcut = false
			return NotHandled
		}
		if rec, ok := d.replacer.tryReplace(s, ev.Code, lang); ok {
			d.record = rec
			d.act(ActionShortcutExpanded)
			if ev.Code == KeySpace && st.DoubleSpacePeriod {
				if d.doubleSpace(ev.EventTime) {
					s.DeleteSurroundingText(1, 0)
					s.CommitText(". ")
					rec.HadTrailingSpace = false
					d.spaceArmed = false
					d.act(ActionDoubleSpacePeriod)
					return Handled
				}
				d.armSpace(ev.EventTime)
			}
			return Handled
		}
	}

	if ev.Code == KeySpace && st.DoubleSpacePeriod {
		if d.doubleSpace(ev.EventTime) {
			s.DeleteSurroundingText(1, 0)
			s.CommitText(". ")
			d.spaceArmed = false
			d.act(ActionDoubleSpacePeriod)
			return Handled
		}
		d.armSpace(ev.EventTime)
		return NotHandled
	}

	if ev.Code != KeySpace {
		d.spaceArmed = false
	}
	if !ev.Code.IsWordBoundary() {
		d.skipNextShortcut = false
	}

	if d.mods.AltActive() {
		s.SendRawKeyEvent(ev.Code, MetaAltOn|MetaAltLeftOn)
		d.act(ActionAltPassthrough)
		d.clearOneShot()
		return Handled
	}

	if r, ok := ev.Code.Letter(); ok {
		if d.mods.ShiftActive() {
			s.CommitText(d.upper(r, lang))
			d.act(ActionShiftedLetter)
			d.clearOneShot()
			return Handled
		}
		if st.LongPressAccents && d.accents != nil {
			if cycle := d.accents.Lookup(lang, r); len(cycle) > 0 {
				d.accent = newAccentSession(ev.Code, r, cycle, ev.EventTime)
			}
		}
	}

	return NotHandled
}

func (d *Dispatcher) altBackspace(s Surface, behavior config.AltBackspaceBehavior) KeyEventResult {
	switch behavior {
	case config.AltBackspaceRegular:
		d.clearOneShot()
		return NotHandled

	case config.AltBackspaceDeleteForward:
		if after, ok := s.TextAfterCursor(1); ok && after != "" {
			s.DeleteSurroundingText(0, 1)
			d.act(ActionDeleteForward)
		}
		d.clearOneShot()
		return Handled

	default:
		if before, ok := s.TextBeforeCursor(deleteLineLookbehind); ok && before != "" {
			r := []rune(before)
			n := len(r)
			for i := len(r) - 1; i >= 0; i-- {
				if r[i] == '\n' {
					n = len(r) - i - 1
					break
				}
			}
			if n > 0 {
				s.DeleteSurroundingText(n, 0)
				d.act(ActionDeleteLine)
			}
		}
		d.clearOneShot()
		return Handled
	}
}

func (d *Dispatcher) keyUp(s Surface, ev KeyEvent, st *config.KeyboardSettings) KeyEventResult {
	switch {
	case ev.Code.IsShift():
		if long, double, ok := d.shiftTap.release(ev.EventTime); ok {
			d.toggle(Shift, long || double, st.StickyShift)
			return Handled
		}
	case ev.Code.IsAlt():
		if long, double, ok := d.altTap.release(ev.EventTime); ok {
			d.toggle(Alt, long || double, st.StickyAlt)
			return Handled
		}
	case ev.Code == KeySym:
		if long, double, ok := d.symTap.release(ev.EventTime); ok {
			if long || double {
				s.CommitText(preferredCurrency(st))
				d.act(ActionCurrencyInserted)
				if d.mods.SymPickerVisible {
					d.dismissPicker()
				}
				d.symTap.forgetTap()
			} else {
				d.emit(SymKeyPressed{})
				if d.mods.SymPickerVisible {
					d.mods.SymCategory = d.mods.SymCategory.Next()
				} else {
					d.mods.SymPickerVisible = true
					d.mods.SymCategory = symbols.CategoryCommon
				}
				d.emitState()
			}
			return Handled
		}
	}

	if d.accent != nil && ev.Code == d.accent.Code {
		d.accent = nil
	}

	if ev.RepeatCount > 0 && !st.KeyRepeatEnabled && ev.Code != KeyDel &&
		!(st.LongPressCapitalize && ev.Code.IsLetter()) {
		return Handled
	}
	return NotHandled
}

func preferredCurrency(st *config.KeyboardSettings) string {
	if st.PreferredCurrency != "" {
		return st.PreferredCurrency
	}
	return symbols.DefaultCurrencySymbol(st.Locale)
}

func (d *Dispatcher) upper(r rune, lang string) string {
	return d.replacer.caser(lang).String(string(r))
}

func (d *Dispatcher) doubleSpace(eventTime int64) bool {
	return d.spaceArmed && eventTime-d.lastSpace <= doubleSpaceMs
}

func (d *Dispatcher) armSpace(eventTime int64) {
	d.lastSpace = eventTime
	d.spaceArmed = true
}

func (d *Dispatcher) toggle(which Modifier, shouldLock, sticky bool) {
	if d.mods.Toggle(which, shouldLock, sticky) {
		d.emitState()
	}
}

func (d *Dispatcher) clearOneShot() {
	if d.mods.ClearOneShot() {
		d.emitState()
	}
}

func (d *Dispatcher) dismissPicker() {
	d.emit(SymPickerDismissRequested{})
	if d.mods.SymPickerVisible {
		d.mods.SymPickerVisible = false
		d.emitState()
	}
}

func (d *Dispatcher) emitState() {
	d.emit(ModifierStateChanged{State: d.mods})
}

func (d *Dispatcher) emit(e Effect) {
	d.effects = append(d.effects, e)
}

func (d *Dispatcher) act(a Action) {
	d.actions = append(d.actions, a)
}

func (d *Dispatcher) begin() {
	d.effects = nil
	d.actions = nil
}

func (d *Dispatcher) drain() []Effect {
	out := d.effects
	d.effects = nil
	return out
}
