package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"physkey/internal/config"
	"physkey/internal/ime"
)

// Step records what one event did.
type Step struct {
	Index   int
	Op      Op
	Key     string
	Result  string
	Actions []string
	Effects []string
	Field   string
}

// Result is the outcome of a replay.
type Result struct {
	Text    string
	Cursor  int
	Steps   []Step
	RawKeys []ime.RawKey
}

// Runner feeds events to an engine and applies the default behaviour of
// unhandled keys to its surface, as a host would.
type Runner struct {
	engine  *ime.Engine
	surface *ime.BufferSurface
}

// NewRunner creates a runner whose field starts with text.
func NewRunner(engine *ime.Engine, text string) *Runner {
	return &Runner{engine: engine, surface: ime.NewBufferSurface(text)}
}

// Surface returns the runner's text field.
func (r *Runner) Surface() *ime.BufferSurface {
	return r.surface
}

// Run applies every event in order and stops at the first error or when
// ctx is cancelled.
func (r *Runner) Run(ctx context.Context, events []Event) (*Result, error) {
	res := &Result{Steps: make([]Step, 0, len(events))}
	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		step, err := r.Step(ev)
		if err != nil {
			return nil, fmt.Errorf("event %d (%s): %w", i, ev.Op, err)
		}
		step.Index = i
		res.Steps = append(res.Steps, step)
	}
	res.Text = r.surface.Text()
	res.Cursor = r.surface.Cursor()
	res.RawKeys = append(res.RawKeys, r.surface.RawKeys...)
	return res, nil
}

// Step applies a single event.
func (r *Runner) Step(ev Event) (Step, error) {
	step := Step{Op: ev.Op, Key: ev.Key}
	var effects []ime.Effect

	switch ev.Op {
	case OpDown, OpUp, OpTap:
		code, ok := ime.ParseKeyCode(ev.Key)
		if !ok {
			return step, fmt.Errorf("unknown key %q", ev.Key)
		}
		var res ime.KeyEventResult
		switch ev.Op {
		case OpDown:
			res, effects = r.down(code, ev)
		case OpUp:
			res, effects = r.up(code, ev)
		case OpTap:
			res, effects = r.down(code, ev)
			step.Actions = actionNames(r.engine.LastActions())
			hold := ev.Hold
			if hold == 0 {
				hold = DefaultHold
			}
			up := Event{T: ev.T + hold, DownT: ev.T}
			_, upEffects := r.up(code, up)
			effects = append(effects, upEffects...)
			step.Actions = append(step.Actions, actionNames(r.engine.LastActions())...)
		}
		step.Result = res.String()

	case OpStart:
		r.surface.Reset(ev.Text)
		field := ime.FieldInfo{Kind: ime.FieldText}
		if ev.InputType != nil {
			field = ime.FieldInfoFromInputType(*ev.InputType)
		}
		effects = r.engine.StartInput(&field)

	case OpFinish:
		effects = r.engine.FinishInput()

	case OpSymbol:
		effects = r.engine.InsertSymbol(r.surface, ev.Text)

	case OpPicker:
		effects = r.engine.SetSymPickerVisible(ev.Visible)

	case OpSettings:
		st, err := applySettings(r.engine.Settings(), ev.Settings)
		if err != nil {
			return step, err
		}
		r.engine.UpdateSettings(st)

	default:
		return step, fmt.Errorf("unknown op %q", ev.Op)
	}

	if ev.Op != OpTap && ev.Op != OpSettings {
		step.Actions = actionNames(r.engine.LastActions())
	}
	for _, e := range effects {
		step.Effects = append(step.Effects, ime.EffectName(e))
	}
	step.Field = r.surface.String()
	return step, nil
}

func (r *Runner) down(code ime.KeyCode, ev Event) (ime.KeyEventResult, []ime.Effect) {
	downT := ev.DownT
	if downT == 0 {
		downT = ev.T
	}
	res, effects := r.engine.KeyDown(r.surface, ime.KeyEvent{
		Code:        code,
		DownTime:    downT,
		EventTime:   ev.T,
		RepeatCount: ev.Repeat,
	})
	if res == ime.NotHandled {
		r.surface.ApplyDefault(code, false)
	}
	return res, effects
}

func (r *Runner) up(code ime.KeyCode, ev Event) (ime.KeyEventResult, []ime.Effect) {
	downT := ev.DownT
	if downT == 0 {
		downT = ev.T
	}
	return r.engine.KeyUp(r.surface, ime.KeyEvent{
		Code:        code,
		DownTime:    downT,
		EventTime:   ev.T,
		RepeatCount: ev.Repeat,
	})
}

func actionNames(actions []ime.Action) []string {
	if len(actions) == 0 {
		return nil
	}
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.String()
	}
	return names
}

// applySettings overlays overrides, keyed by json field name, on a copy of
// base and validates the result.
func applySettings(base *config.KeyboardSettings, overrides map[string]any) (*config.KeyboardSettings, error) {
	st := base.Clone()
	if len(overrides) == 0 {
		return st, nil
	}
	raw, err := json.Marshal(overrides)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(st); err != nil {
		return nil, fmt.Errorf("apply settings: %w", err)
	}
	if errs := config.ValidateKeyboard(st); len(errs) > 0 {
		return nil, errs
	}
	return st, nil
}

// Write prints the steps and the final field. Verbose output includes
// every step; otherwise only the text is written.
func (res *Result) Write(w io.Writer, verbose bool) error {
	if verbose {
		for _, s := range res.Steps {
			line := fmt.Sprintf("%4d  %-8s %-12s %-12s %s", s.Index, s.Op, s.Key, s.Result, s.Field)
			if len(s.Actions) > 0 {
				line += "  actions=" + strings.Join(s.Actions, ",")
			}
			if len(s.Effects) > 0 {
				line += "  effects=" + strings.Join(s.Effects, ",")
			}
			if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintln(w, res.Text)
	return err
}
