// physkey is the command-line companion of the physkey input method.
//
//	physkey replay <log>       Run a recorded key log through the engine
//	physkey record             Capture a hardware keyboard into a key log
//	physkey shortcuts <action> Manage text shortcuts
//	physkey config <action>    Create, show or validate the settings file
package main

import (
	"fmt"
	"os"

	"physkey/internal/config"
	"physkey/internal/logging"
	"physkey/internal/shortcuts"
	"physkey/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "replay":
		cmdReplay(os.Args[2:])
	case "record":
		cmdRecord(os.Args[2:])
	case "shortcuts":
		cmdShortcuts(os.Args[2:])
	case "config":
		cmdConfig(os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`physkey - physical keyboard input method tools

USAGE:
    physkey <command> [options]

COMMANDS:
    replay <log>            Replay a JSON lines or YAML key log
    record                  Record an evdev keyboard as a JSON lines key log
    shortcuts <action>      list, add, remove, import, export, validate, stats, defaults
    config <action>         init, show, path, validate
    help                    Show this help message

Every command accepts -config <file> to use a settings file other than
the platform default.`)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fatalf("loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		fatalf("invalid config: %v", err)
	}
	return cfg
}

// newLogger builds the CLI logger. Commands log to stderr regardless of
// the configured output so that stdout stays clean for data.
func newLogger(cfg *config.Config) *logging.Logger {
	lc, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		fatalf("logging config: %v", err)
	}
	lc.Output = "stderr"
	lc.Component = "cli"
	logger, err := logging.New(lc)
	if err != nil {
		fatalf("creating logger: %v", err)
	}
	return logger
}

// openRepository opens the shortcut database, seeding the built-in
// shortcuts when the config asks for it.
func openRepository(cfg *config.Config, logger *logging.Logger) (*shortcuts.Repository, *store.Store) {
	db, err := store.Open(cfg.Shortcuts.DatabasePath)
	if err != nil {
		fatalf("opening shortcut database: %v", err)
	}
	repo, err := shortcuts.NewRepository(db, logger)
	if err != nil {
		db.Close()
		fatalf("loading shortcuts: %v", err)
	}
	if cfg.Shortcuts.SeedDefaults {
		if _, err := repo.InitializeDefaults(); err != nil {
			db.Close()
			fatalf("installing default shortcuts: %v", err)
		}
	}
	return repo, db
}

// builtinRepository holds only the built-in shortcuts, in memory.
func builtinRepository(logger *logging.Logger) (*shortcuts.Repository, error) {
	repo, err := shortcuts.NewRepository(shortcuts.NewMemoryStorage(), logger)
	if err != nil {
		return nil, err
	}
	if _, err := repo.InitializeDefaults(); err != nil {
		return nil, err
	}
	return repo, nil
}
