//go:build linux

// physkey-ibus runs the physkey engine as an IBus input method.
//
// Installation:
//  1. Copy the binary to /usr/local/bin/physkey-ibus
//  2. Run physkey-ibus -install
//  3. Restart IBus: ibus restart
//  4. Enable via ibus-setup or GNOME Settings > Keyboard > Input Sources
//
// IBus starts the binary with -ibus when the engine is selected. Settings
// and the shortcut database are reloaded while it runs: edits to the
// settings file are picked up by the file watcher, and SIGHUP re-reads both
// the settings and the shortcuts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"physkey/internal/accents"
	"physkey/internal/config"
	"physkey/internal/health"
	"physkey/internal/ime"
	"physkey/internal/logging"
	"physkey/internal/metrics"
	"physkey/internal/shortcuts"
	"physkey/internal/store"
)

func main() {
	ibusMode := flag.Bool("ibus", false, "Run as an engine started by the IBus daemon")
	installFlag := flag.Bool("install", false, "Install the IBus component file")
	uninstallFlag := flag.Bool("uninstall", false, "Remove the IBus component file")
	cfgPath := flag.String("config", "", "Settings file")
	flag.Parse()

	switch {
	case *installFlag:
		if err := install(*cfgPath); err != nil {
			fatalf("install: %v", err)
		}
		return
	case *uninstallFlag:
		dir, err := ime.ComponentDir()
		if err != nil {
			fatalf("%v", err)
		}
		if err := ime.UninstallComponent(dir); err != nil {
			fatalf("uninstall: %v", err)
		}
		fmt.Println("Uninstalled. Run 'ibus restart' to unload the engine.")
		return
	}

	if !*ibusMode {
		fmt.Fprintln(os.Stderr, "physkey-ibus is started by IBus. Use -install to register it.")
	}

	if err := run(*cfgPath); err != nil {
		fatalf("%v", err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func install(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	dir, err := ime.ComponentDir()
	if err != nil {
		return err
	}
	path, err := ime.InstallComponent(dir, exe, cfg.Keyboard.SelectedLanguage)
	if err != nil {
		return err
	}
	fmt.Printf("Installed %s. Run 'ibus restart' to load the engine.\n", path)
	return nil
}

func run(cfgPath string) error {
	if cfgPath == "" {
		cfgPath = config.ConfigPath()
	}
	loader := config.NewLoader(cfgPath)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	defer loader.Close()

	lc, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	lc.Component = "ibus"
	logger, err := logging.New(lc)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Close()
	if err := cfg.EnsureDirectories(); err != nil {
		logger.Warn("could not create data directories", "error", err)
	}

	db, err := store.Open(cfg.Shortcuts.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening shortcut database: %w", err)
	}
	defer db.Close()
	repo, err := shortcuts.NewRepository(db, logger)
	if err != nil {
		return err
	}
	if cfg.Shortcuts.SeedDefaults {
		n, err := repo.InitializeDefaults()
		if err != nil {
			return fmt.Errorf("installing default shortcuts: %w", err)
		}
		if n > 0 {
			logger.Info("installed default shortcuts", "count", n)
		}
	}

	reg := metrics.Default()
	crash := logging.NewCrashHandler("", "ibus", logger)
	host := ime.NewIBusHost(ime.IBusConfig{
		Shortcuts: repo,
		Accents:   accents.Builtin(),
		Settings:  cfg.KeyboardSnapshot(),
		Logger:    logger,
		Metrics:   metrics.NewEngineMetrics(reg),
		Crash:     crash,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := host.Start(ctx); err != nil {
		return err
	}
	defer host.Close()

	loader.OnChange(func(c *config.Config) {
		host.UpdateSettings(c.KeyboardSnapshot())
		logger.Info("settings reloaded")
	})
	if err := loader.Watch(); err != nil {
		logger.Warn("settings file will not be watched", "error", err)
	}

	checker := newChecker(db, host, crash)
	checker.SetReady(true)

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.ListenAddr, reg, checker.Routes()...); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			checker.SetReady(false)
			logger.Info("shutting down", "engines", host.Engines())
			return nil
		case <-host.Done():
			logger.Info("ibus connection closed")
			return nil
		case <-hup:
			if err := loader.Reload(); err != nil {
				logger.Warn("settings reload failed", "error", err)
			}
			if err := repo.Reload(); err != nil {
				logger.Error("reloading shortcuts", "error", err)
				continue
			}
			logger.Info("shortcuts reloaded", "count", repo.Len())
		case err := <-loader.Errors():
			logger.Warn("settings reload failed", "error", err)
		}
	}
}

func newChecker(db *store.Store, host *ime.IBusHost, crash *logging.CrashHandler) *health.Checker {
	started := time.Now()
	c := health.NewChecker()
	c.Register("shortcut_db", true, health.PingCheck(db.Ping))
	c.Register("ibus", true, health.FuncCheck("not connected to ibus", host.Connected))
	c.Register("crashes", false, health.CountCheck("crash reports since start", 0, func() (int, error) {
		reports, err := crash.Reports()
		if err != nil {
			return 0, err
		}
		n := 0
		for _, r := range reports {
			if r.Timestamp.After(started) {
				n++
			}
		}
		return n, nil
	}))
	return c
}
