package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"physkey/internal/config"
	"physkey/internal/evdev"
	"physkey/internal/replay"
)

func cmdRecord(args []string) {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	device := fs.String("device", "", "Event device (default: first keyboard)")
	grab := fs.Bool("grab", false, "Grab the device so keys do not reach other programs (requires -duration)")
	duration := fs.Duration("duration", 0, "Stop after this long (default: until interrupted)")
	output := fs.String("o", "", "Output file (default: stdout)")
	text := fs.String("text", "", "Initial field content written to the start event")
	repeat := fs.Bool("repeat", false, "Set the device autorepeat from key_repeat_delay_ms and key_repeat_rate_ms while recording")
	cfgPath := fs.String("config", "", "Settings file")
	fs.Parse(args)

	if *grab && *duration <= 0 {
		fatalf("-grab needs -duration: a grabbed keyboard cannot send Ctrl-C")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	var w io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fatalf("%v", err)
		}
		defer f.Close()
		w = f
	}

	opts := captureOptions{grab: *grab}
	if *repeat {
		r := repeatFromSettings(loadConfig(*cfgPath).KeyboardSnapshot())
		opts.repeat = &r
	}

	rec := newRecorder(w)
	if err := rec.start(*text); err != nil {
		fatalf("%v", err)
	}
	name, err := captureKeys(ctx, *device, opts, rec.add)
	if err != nil && ctx.Err() == nil {
		fatalf("recording: %v", err)
	}
	if err := rec.finish(); err != nil {
		fatalf("%v", err)
	}
	fmt.Fprintf(os.Stderr, "Recorded %d key events from %s\n", rec.count, name)
}

type captureOptions struct {
	grab bool
	// repeat is applied to the device for the capture and then restored.
	repeat *evdev.Repeat
}

func repeatFromSettings(kb *config.KeyboardSettings) evdev.Repeat {
	return evdev.Repeat{Delay: kb.KeyRepeatDelay(), Period: kb.KeyRepeatRate()}
}

// recordStart is the time given to the first recorded key event. Zero
// would read as unset in down_t.
const recordStart = 1000

// recorder turns evdev events into replay events and streams them as
// JSON lines. Times are relative to the first key event.
type recorder struct {
	w      io.Writer
	tr     *evdev.Translator
	origin int64
	seen   bool
	count  int
}

func newRecorder(w io.Writer) *recorder {
	return &recorder{w: w, tr: evdev.NewTranslator()}
}

func (r *recorder) start(text string) error {
	return replay.EncodeJSONL(r.w, []replay.Event{{Op: replay.OpStart, Text: text}})
}

func (r *recorder) add(ev evdev.InputEvent) error {
	out, ok := r.convert(ev)
	if !ok {
		return nil
	}
	r.count++
	return replay.EncodeJSONL(r.w, []replay.Event{out})
}

func (r *recorder) convert(ev evdev.InputEvent) (replay.Event, bool) {
	t, ok := r.tr.Translate(ev)
	if !ok {
		return replay.Event{}, false
	}
	if !r.seen {
		r.origin = t.Event.EventTime - recordStart
		r.seen = true
	}
	out := replay.Event{
		Op:     replay.OpDown,
		Key:    t.Event.Code.String(),
		T:      t.Event.EventTime - r.origin,
		Repeat: t.Event.RepeatCount,
	}
	if t.Action == evdev.ActionUp {
		out.Op = replay.OpUp
	}
	if out.Repeat > 0 || out.Op == replay.OpUp {
		out.DownT = t.Event.DownTime - r.origin
	}
	return out, true
}

func (r *recorder) finish() error {
	return replay.EncodeJSONL(r.w, []replay.Event{{Op: replay.OpFinish}})
}
