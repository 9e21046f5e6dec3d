//go:build linux

package ime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"physkey/internal/config"
	"physkey/internal/logging"
	"physkey/internal/metrics"
	"physkey/internal/symbols"
)

// IBus D-Bus names.
const (
	IBusFactoryInterface = "org.freedesktop.IBus.Factory"
	IBusEngineInterface  = "org.freedesktop.IBus.Engine"
	IBusFactoryPath      = dbus.ObjectPath("/org/freedesktop/IBus/Factory")
	IBusEnginePathPrefix = "/org/freedesktop/IBus/Engine/"

	PhyskeyBusName    = "org.freedesktop.IBus.Physkey"
	PhyskeyEngineName = "physkey"
)

// IBus key event state masks.
const (
	IBusShiftMask   uint32 = 1 << 0
	IBusLockMask    uint32 = 1 << 1
	IBusControlMask uint32 = 1 << 2
	IBusMod1Mask    uint32 = 1 << 3 // Alt
	IBusMod4Mask    uint32 = 1 << 6 // Super
	IBusReleaseMask uint32 = 1 << 30
)

// X keysyms the engine cares about.
const (
	xkBackSpace      = 0xff08
	xkTab            = 0xff09
	xkReturn         = 0xff0d
	xkEscape         = 0xff1b
	xkMenu           = 0xff67
	xkKPEnter        = 0xff8d
	xkShiftL         = 0xffe1
	xkShiftR         = 0xffe2
	xkAltL           = 0xffe9
	xkAltR           = 0xffea
	xkISOLevel3Shift = 0xfe03
	xkDelete         = 0xffff
	xkSpace          = 0x0020
	xkComma          = 0x002c
	xkPeriod         = 0x002e
)

var keyvalCodes = map[uint32]KeyCode{
	xkBackSpace:      KeyDel,
	xkTab:            KeyTab,
	xkReturn:         KeyEnter,
	xkKPEnter:        KeyEnter,
	xkEscape:         KeyBack,
	xkMenu:           KeySym,
	xkShiftL:         KeyShiftLeft,
	xkShiftR:         KeyShiftRight,
	xkAltL:           KeyAltLeft,
	xkAltR:           KeyAltRight,
	xkISOLevel3Shift: KeyAltRight,
	xkDelete:         KeyForwardDel,
	xkSpace:          KeySpace,
	xkComma:          KeyComma,
	xkPeriod:         KeyPeriod,
}

// KeyvalToKeyCode maps an X keysym to a key code. Both cases of a letter
// map to the same key.
func KeyvalToKeyCode(keyval uint32) (KeyCode, bool) {
	if keyval >= 'a' && keyval <= 'z' || keyval >= 'A' && keyval <= 'Z' {
		return LetterKey(rune(keyval))
	}
	k, ok := keyvalCodes[keyval]
	return k, ok
}

// keyvalFor is the keysym forwarded for a raw key.
func keyvalFor(code KeyCode, meta MetaState) (uint32, bool) {
	if r, ok := code.Letter(); ok {
		if meta&MetaShiftOn != 0 {
			r -= 'a' - 'A'
		}
		return uint32(r), true
	}
	switch code {
	case KeyAltRight:
		return xkAltR, true
	case KeyEnter:
		return xkReturn, true
	case KeyBack:
		return xkEscape, true
	}
	for kv, k := range keyvalCodes {
		if k == code && kv != xkKPEnter && kv != xkISOLevel3Shift {
			return kv, true
		}
	}
	return 0, false
}

func ibusState(meta MetaState) uint32 {
	var state uint32
	if meta&MetaShiftOn != 0 {
		state |= IBusShiftMask
	}
	if meta&MetaAltOn != 0 {
		state |= IBusMod1Mask
	}
	return state
}

// ibusText encodes text as the IBusText serializable.
func ibusText(text string) dbus.Variant {
	attrs := dbus.MakeVariant(struct {
		Name  string
		Attrs map[string]dbus.Variant
		List  []dbus.Variant
	}{"IBusAttrList", map[string]dbus.Variant{}, []dbus.Variant{}})

	return dbus.MakeVariant(struct {
		Name  string
		Attrs map[string]dbus.Variant
		Text  string
		List  dbus.Variant
	}{"IBusText", map[string]dbus.Variant{}, text, attrs})
}

// textFromVariant extracts the string of an IBusText serializable.
func textFromVariant(v dbus.Variant) (string, error) {
	fields, ok := v.Value().([]any)
	if !ok || len(fields) < 3 {
		return "", fmt.Errorf("unexpected IBusText signature %s", v.Signature())
	}
	if name, _ := fields[0].(string); name != "IBusText" {
		return "", fmt.Errorf("unexpected serializable %v", fields[0])
	}
	text, ok := fields[2].(string)
	if !ok {
		return "", errors.New("IBusText without text")
	}
	return text, nil
}

// IBus input purposes and hints from ibustypes.h.
const (
	ibusPurposeDigits   = 2
	ibusPurposeNumber   = 3
	ibusPurposePhone    = 4
	ibusPurposeURL      = 5
	ibusPurposeEmail    = 6
	ibusPurposePassword = 8
	ibusPurposePIN      = 9
	ibusPurposeTerminal = 10

	ibusHintNoSpellcheck = 1 << 1
	ibusHintLowercase    = 1 << 3
)

// FieldInfoFromContentType maps SetContentType arguments to field info.
func FieldInfoFromContentType(purpose, hints uint32) FieldInfo {
	info := FieldInfo{NoSuggestions: hints&(ibusHintNoSpellcheck|ibusHintLowercase) != 0}
	switch purpose {
	case ibusPurposeDigits, ibusPurposeNumber:
		info.Kind = FieldNumber
	case ibusPurposePhone:
		info.Kind = FieldPhone
	case ibusPurposeURL:
		info.Kind = FieldURI
	case ibusPurposeEmail:
		info.Kind = FieldEmail
	case ibusPurposePassword, ibusPurposePIN:
		info.Kind = FieldPassword
	case ibusPurposeTerminal:
		info.NoSuggestions = true
	}
	return info
}

// signalEmitter is the part of *dbus.Conn the engine needs.
type signalEmitter interface {
	Emit(path dbus.ObjectPath, name string, values ...any) error
}

// ibusSurface mirrors the client's surrounding text and turns edits into
// engine signals.
type ibusSurface struct {
	conn signalEmitter
	path dbus.ObjectPath

	known  bool
	text   []rune
	cursor int
}

func (s *ibusSurface) emit(member string, values ...any) {
	_ = s.conn.Emit(s.path, IBusEngineInterface+"."+member, values...)
}

func (s *ibusSurface) set(text string, cursor uint32) {
	s.known = true
	s.text = []rune(text)
	s.cursor = clamp(int(cursor), 0, len(s.text))
}

func (s *ibusSurface) forget() {
	s.known = false
	s.text = nil
	s.cursor = 0
}

func (s *ibusSurface) TextBeforeCursor(n int) (string, bool) {
	if !s.known {
		return "", false
	}
	return string(s.text[max(0, s.cursor-n):s.cursor]), true
}

func (s *ibusSurface) TextAfterCursor(n int) (string, bool) {
	if !s.known {
		return "", false
	}
	return string(s.text[s.cursor:min(len(s.text), s.cursor+n)]), true
}

func (s *ibusSurface) DeleteSurroundingText(before, after int) {
	s.emit("DeleteSurroundingText", int32(-before), uint32(before+after))
	if s.known {
		start := max(0, s.cursor-before)
		end := min(len(s.text), s.cursor+after)
		s.text = append(s.text[:start:start], s.text[end:]...)
		s.cursor = start
	}
}

func (s *ibusSurface) CommitText(text string) {
	s.emit("CommitText", ibusText(text))
	if s.known {
		r := []rune(text)
		tail := append([]rune(nil), s.text[s.cursor:]...)
		s.text = append(append(s.text[:s.cursor], r...), tail...)
		s.cursor += len(r)
	}
}

// SendRawKeyEvent forwards a press and release. The keyval identifies the
// key, so no hardware keycode is sent.
func (s *ibusSurface) SendRawKeyEvent(code KeyCode, meta MetaState) {
	keyval, ok := keyvalFor(code, meta)
	if !ok {
		return
	}
	state := ibusState(meta)
	s.emit("ForwardKeyEvent", keyval, uint32(0), state)
	s.emit("ForwardKeyEvent", keyval, uint32(0), state|IBusReleaseMask)
}

// IBusEngine is one engine object created by the IBus factory. IBus calls
// its methods from the connection's goroutine.
type IBusEngine struct {
	path    dbus.ObjectPath
	engine  *Engine
	logger  *logging.Logger
	crash   *logging.CrashHandler
	started time.Time
	now     func() time.Time

	mu      sync.Mutex
	surface *ibusSurface
	field   *FieldInfo
	enabled bool
	held    map[KeyCode]*heldKey
	state   ModifiersState
}

type heldKey struct {
	down    int64
	repeats int
}

func newIBusEngine(conn signalEmitter, path dbus.ObjectPath, engine *Engine, logger *logging.Logger, crash *logging.CrashHandler) *IBusEngine {
	text := FieldInfo{Kind: FieldText}
	return &IBusEngine{
		path:    path,
		engine:  engine,
		logger:  logger,
		crash:   crash,
		started: time.Now(),
		now:     time.Now,
		surface: &ibusSurface{conn: conn, path: path},
		field:   &text,
		held:    make(map[KeyCode]*heldKey),
	}
}

// millis is the engine clock. IBus key events carry no timestamps.
func (e *IBusEngine) millis() int64 {
	return e.now().Sub(e.started).Milliseconds()
}

// guard runs fn under the crash handler. A panic leaves the key unhandled.
func (e *IBusEngine) guard(op string, fn func()) {
	if e.crash == nil {
		fn()
		return
	}
	if err := e.crash.Guard(op, fn); err != nil {
		e.logger.Error("callback failed", "op", op, "error", err)
	}
}

// ProcessKeyEvent reports whether the key was consumed.
func (e *IBusEngine) ProcessKeyEvent(keyval, keycode, state uint32) (bool, *dbus.Error) {
	if state&(IBusControlMask|IBusMod4Mask) != 0 {
		return false, nil
	}
	code, ok := KeyvalToKeyCode(keyval)
	if !ok {
		return false, nil
	}

	var handled bool
	e.guard("ProcessKeyEvent", func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if !e.enabled {
			return
		}
		handled = e.processLocked(code, state&IBusReleaseMask != 0)
	})
	return handled, nil
}

func (e *IBusEngine) processLocked(code KeyCode, release bool) bool {
	now := e.millis()
	var (
		res     KeyEventResult
		effects []Effect
	)
	if release {
		h, ok := e.held[code]
		if !ok {
			return false
		}
		delete(e.held, code)
		res, effects = e.engine.KeyUp(e.surface, KeyEvent{Code: code, DownTime: h.down, EventTime: now, RepeatCount: h.repeats})
	} else {
		h, ok := e.held[code]
		if ok {
			h.repeats++
		} else {
			h = &heldKey{down: now}
			e.held[code] = h
		}
		res, effects = e.engine.KeyDown(e.surface, KeyEvent{Code: code, DownTime: h.down, EventTime: now, RepeatCount: h.repeats})
	}
	e.showEffectsLocked(effects)
	return res == Handled
}

// showEffectsLocked renders modifier and picker state as auxiliary text.
func (e *IBusEngine) showEffectsLocked(effects []Effect) {
	for _, eff := range effects {
		switch eff := eff.(type) {
		case ModifierStateChanged:
			e.state = eff.State
		case SymPickerDismissRequested:
			e.state.SymPickerVisible = false
		}
	}
	if len(effects) == 0 {
		return
	}
	label := auxLabel(e.state, e.engine.Settings())
	e.surface.emit("UpdateAuxiliaryText", ibusText(label), label != "")
}

func auxLabel(st ModifiersState, settings *config.KeyboardSettings) string {
	var parts []string
	switch st.Shift {
	case ModifierOneShot:
		parts = append(parts, "⇧")
	case ModifierLocked:
		parts = append(parts, "⇪")
	}
	switch st.Alt {
	case ModifierOneShot:
		parts = append(parts, "Alt")
	case ModifierLocked:
		parts = append(parts, "ALT")
	}
	if st.SymPickerVisible {
		syms := symbols.Symbols(st.SymCategory, settings.PreferredCurrency, settings.Locale)
		parts = append(parts, st.SymCategory.DisplayName()+": "+strings.Join(syms, " "))
	}
	return strings.Join(parts, " ")
}

// FocusIn starts input in the focused client and asks it for surrounding
// text.
func (e *IBusEngine) FocusIn() *dbus.Error {
	e.guard("FocusIn", func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		clear(e.held)
		e.showEffectsLocked(e.engine.StartInput(e.field))
		e.surface.emit("RequireSurroundingText")
	})
	return nil
}

// FocusOut finishes input. Locked modifiers survive.
func (e *IBusEngine) FocusOut() *dbus.Error {
	e.guard("FocusOut", func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		clear(e.held)
		e.surface.forget()
		e.showEffectsLocked(e.engine.FinishInput())
	})
	return nil
}

func (e *IBusEngine) Enable() *dbus.Error {
	e.mu.Lock()
	e.enabled = true
	e.mu.Unlock()
	e.logger.Debug("engine enabled", "path", e.path)
	return nil
}

func (e *IBusEngine) Disable() *dbus.Error {
	e.mu.Lock()
	e.enabled = false
	clear(e.held)
	e.mu.Unlock()
	e.logger.Debug("engine disabled", "path", e.path)
	return nil
}

// Reset is sent when the client moves the cursor or clears the field.
func (e *IBusEngine) Reset() *dbus.Error {
	e.mu.Lock()
	e.surface.forget()
	e.mu.Unlock()
	return nil
}

// SetContentType describes the field; it takes effect at the next FocusIn.
func (e *IBusEngine) SetContentType(purpose, hints uint32) *dbus.Error {
	info := FieldInfoFromContentType(purpose, hints)
	e.mu.Lock()
	e.field = &info
	e.mu.Unlock()
	return nil
}

func (e *IBusEngine) SetSurroundingText(text dbus.Variant, cursorPos, anchorPos uint32) *dbus.Error {
	s, err := textFromVariant(text)
	if err != nil {
		e.logger.Warn("bad surrounding text", "error", err)
		return nil
	}
	e.mu.Lock()
	e.surface.set(s, cursorPos)
	e.mu.Unlock()
	return nil
}

func (e *IBusEngine) SetCapabilities(caps uint32) *dbus.Error                  { return nil }
func (e *IBusEngine) SetCursorLocation(x, y, w, h int32) *dbus.Error           { return nil }
func (e *IBusEngine) PropertyActivate(name string, state uint32) *dbus.Error   { return nil }
func (e *IBusEngine) PageUp() *dbus.Error                                      { return nil }
func (e *IBusEngine) PageDown() *dbus.Error                                    { return nil }
func (e *IBusEngine) CursorUp() *dbus.Error                                    { return nil }
func (e *IBusEngine) CursorDown() *dbus.Error                                  { return nil }
func (e *IBusEngine) CandidateClicked(index, button, state uint32) *dbus.Error { return nil }

// IBusConfig wires an IBusHost.
type IBusConfig struct {
	Shortcuts ShortcutLookup
	Accents   AccentTable
	Settings  *config.KeyboardSettings
	Logger    *logging.Logger
	Metrics   *metrics.EngineMetrics
	Crash     *logging.CrashHandler

	// Address of the IBus bus. Empty means IBUS_ADDRESS or `ibus address`.
	Address string
}

// IBusHost owns the bus connection and the engines IBus creates through
// the factory.
type IBusHost struct {
	cfg    IBusConfig
	logger *logging.Logger
	conn   *dbus.Conn

	mu      sync.Mutex
	engines map[dbus.ObjectPath]*IBusEngine
	nextID  int
}

// NewIBusHost creates a host. Call Start to connect.
func NewIBusHost(cfg IBusConfig) *IBusHost {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &IBusHost{
		cfg:     cfg,
		logger:  logger.WithComponent("ibus"),
		engines: make(map[dbus.ObjectPath]*IBusEngine),
	}
}

// BusAddress finds the address of the running IBus daemon.
func BusAddress(ctx context.Context) (string, error) {
	if addr := os.Getenv("IBUS_ADDRESS"); addr != "" {
		return addr, nil
	}
	out, err := exec.CommandContext(ctx, "ibus", "address").Output()
	if err != nil {
		return "", fmt.Errorf("locate ibus daemon: %w", err)
	}
	addr := strings.TrimSpace(string(out))
	if addr == "" || addr == "(null)" {
		return "", errors.New("ibus daemon is not running")
	}
	return addr, nil
}

// Start connects to IBus, claims the bus name and exports the factory.
func (h *IBusHost) Start(ctx context.Context) error {
	addr := h.cfg.Address
	if addr == "" {
		var err error
		if addr, err = BusAddress(ctx); err != nil {
			return err
		}
	}
	conn, err := dbus.Connect(addr, dbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("connect to ibus: %w", err)
	}

	if err := conn.Export(&ibusFactory{host: h}, IBusFactoryPath, IBusFactoryInterface); err != nil {
		conn.Close()
		return fmt.Errorf("export factory: %w", err)
	}
	reply, err := conn.RequestName(PhyskeyBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return fmt.Errorf("request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return fmt.Errorf("bus name %s already taken", PhyskeyBusName)
	}

	h.mu.Lock()
	h.conn = conn
	h.mu.Unlock()
	h.logger.Info("ibus engine started", "bus", PhyskeyBusName)
	return nil
}

// Done is closed when the bus connection goes away.
func (h *IBusHost) Done() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return h.conn.Context().Done()
}

// Connected reports whether the bus connection is up.
func (h *IBusHost) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn != nil && h.conn.Connected()
}

// UpdateSettings pushes new settings to every live engine.
func (h *IBusHost) UpdateSettings(s *config.KeyboardSettings) {
	h.mu.Lock()
	h.cfg.Settings = s
	engines := make([]*IBusEngine, 0, len(h.engines))
	for _, e := range h.engines {
		engines = append(engines, e)
	}
	h.mu.Unlock()

	for _, e := range engines {
		e.engine.UpdateSettings(s)
	}
}

// Engines returns how many engine objects are live.
func (h *IBusHost) Engines() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.engines)
}

func (h *IBusHost) createEngine(conn signalEmitter) *IBusEngine {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	path := dbus.ObjectPath(fmt.Sprintf("%s%d", IBusEnginePathPrefix, h.nextID))
	engine := NewEngine(h.cfg.Shortcuts, h.cfg.Accents, h.cfg.Settings,
		WithLogger(h.logger), WithMetrics(h.cfg.Metrics))
	e := newIBusEngine(conn, path, engine, h.logger, h.cfg.Crash)
	h.engines[path] = e
	return e
}

func (h *IBusHost) destroyEngine(path dbus.ObjectPath) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.engines, path)
	if h.conn != nil {
		_ = h.conn.Export(nil, path, IBusEngineInterface)
	}
}

// Close releases the bus connection.
func (h *IBusHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return nil
	}
	err := h.conn.Close()
	h.conn = nil
	return err
}

// ibusFactory implements org.freedesktop.IBus.Factory.
type ibusFactory struct {
	host *IBusHost
}

// CreateEngine exports a fresh engine object for an input context.
func (f *ibusFactory) CreateEngine(name string) (dbus.ObjectPath, *dbus.Error) {
	if name != PhyskeyEngineName {
		return "", dbus.NewError("org.freedesktop.IBus.NoEngine", []any{"unknown engine: " + name})
	}

	f.host.mu.Lock()
	conn := f.host.conn
	f.host.mu.Unlock()
	if conn == nil {
		return "", dbus.MakeFailedError(errors.New("not connected"))
	}

	e := f.host.createEngine(conn)
	if err := conn.Export(&engineObject{IBusEngine: e, host: f.host}, e.path, IBusEngineInterface); err != nil {
		f.host.destroyEngine(e.path)
		return "", dbus.MakeFailedError(err)
	}
	f.host.logger.Debug("engine created", "path", e.path)
	return e.path, nil
}

// engineObject adds Destroy, which needs the host.
type engineObject struct {
	*IBusEngine
	host *IBusHost
}

func (o *engineObject) Destroy() *dbus.Error {
	o.host.destroyEngine(o.path)
	return nil
}
