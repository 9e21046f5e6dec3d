package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"physkey/internal/config"
)

func cmdConfig(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: physkey config <init|show|path|validate> [options]")
		os.Exit(1)
	}

	action, rest := args[0], args[1:]
	fs := flag.NewFlagSet("config "+action, flag.ExitOnError)
	cfgPath := fs.String("config", "", "Settings file")
	format := fs.String("format", "", "Output format for show: toml, json or yaml")
	force := fs.Bool("force", false, "Overwrite an existing file (init)")
	fs.Parse(rest)

	path := *cfgPath
	if path == "" {
		path = config.FindConfigFile()
	}
	if path == "" {
		path = config.ConfigPath()
	}

	switch action {
	case "path":
		fmt.Println(path)

	case "init":
		if _, err := os.Stat(path); err == nil && !*force {
			fatalf("%s already exists (use -force to overwrite)", path)
		}
		cfg := config.DefaultConfig()
		if err := config.SaveConfig(cfg, path); err != nil {
			fatalf("writing config: %v", err)
		}
		if err := cfg.EnsureDirectories(); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("Wrote %s\n", path)

	case "show":
		cfg := loadConfig(path)
		ext := *format
		if ext == "" {
			ext = strings.TrimPrefix(filepath.Ext(path), ".")
		}
		data, err := config.EncodeConfig(cfg, "."+ext)
		if err != nil {
			fatalf("%v", err)
		}
		os.Stdout.Write(data)

	case "validate":
		cfg, err := config.Load(path)
		if err != nil {
			fatalf("%v", err)
		}
		if err := cfg.Validate(); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s: OK (version %d)\n", path, cfg.Version)

	default:
		fatalf("unknown config action %q", action)
	}
}
