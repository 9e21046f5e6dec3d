package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"physkey/internal/accents"
	"physkey/internal/config"
	"physkey/internal/ime"
	"physkey/internal/logging"
	"physkey/internal/metrics"
	"physkey/internal/replay"
)

func cmdReplay(args []string) {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	verbose := fs.Bool("v", false, "Print every step with its result, actions and effects")
	text := fs.String("text", "", "Initial field content")
	builtin := fs.Bool("builtin", false, "Use the built-in shortcuts instead of the shortcut database")
	showMetrics := fs.Bool("metrics", false, "Print engine metrics to stderr afterwards")
	cfgPath := fs.String("config", "", "Settings file")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: physkey replay [-v] [-text s] [-builtin] [-metrics] <log.jsonl|log.yaml>")
		os.Exit(1)
	}

	events, err := replay.ReadFile(fs.Arg(0))
	if err != nil {
		fatalf("%v", err)
	}

	cfg := loadConfig(*cfgPath)
	logger := newLogger(cfg)
	defer logger.Close()

	var lookup ime.ShortcutLookup
	if *builtin {
		repo, err := builtinRepository(logger)
		if err != nil {
			fatalf("loading built-in shortcuts: %v", err)
		}
		lookup = repo
	} else {
		repo, db := openRepository(cfg, logger)
		defer db.Close()
		lookup = repo
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	reg := metrics.NewRegistry("physkey")
	res, err := runReplay(ctx, events, replayOptions{
		text:     *text,
		lookup:   lookup,
		settings: cfg.KeyboardSnapshot(),
		logger:   logger,
		metrics:  metrics.NewEngineMetrics(reg),
	})
	if err != nil {
		fatalf("replay: %v", err)
	}
	if err := res.Write(os.Stdout, *verbose); err != nil {
		fatalf("%v", err)
	}
	if *showMetrics {
		writeMetrics(os.Stderr, reg)
	}
}

type replayOptions struct {
	text     string
	lookup   ime.ShortcutLookup
	settings *config.KeyboardSettings
	logger   *logging.Logger
	metrics  *metrics.EngineMetrics
}

func runReplay(ctx context.Context, events []replay.Event, opts replayOptions) (*replay.Result, error) {
	engine := ime.NewEngine(opts.lookup, accents.Builtin(), opts.settings,
		ime.WithLogger(opts.logger), ime.WithMetrics(opts.metrics))
	return replay.NewRunner(engine, opts.text).Run(ctx, events)
}

func writeMetrics(w io.Writer, reg *metrics.Registry) {
	if err := reg.WritePrometheus(w); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: writing metrics: %v\n", err)
	}
}
