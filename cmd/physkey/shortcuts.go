package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"physkey/internal/schemavalidation"
	"physkey/internal/shortcuts"
)

func cmdShortcuts(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: physkey shortcuts <list|add|remove|import|export|validate|stats|defaults> [options]")
		os.Exit(1)
	}

	action, rest := args[0], args[1:]
	fs := flag.NewFlagSet("shortcuts "+action, flag.ExitOnError)
	cfgPath := fs.String("config", "", "Settings file")
	lang := fs.String("lang", "", "Language tag (default: all, or the selected language for add)")
	caseSensitive := fs.Bool("case-sensitive", false, "Match the trigger exactly (add)")
	replace := fs.Bool("replace", false, "Overwrite existing shortcuts (import)")
	output := fs.String("o", "", "Output file (export, default: stdout)")
	fs.Parse(rest)

	if action == "validate" {
		if fs.NArg() < 1 {
			fatalf("usage: physkey shortcuts validate <file>")
		}
		data, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			fatalf("%v", err)
		}
		if err := schemavalidation.ValidateShortcuts(data); err != nil {
			fatalf("%v", err)
		}
		fmt.Println("OK")
		return
	}

	cfg := loadConfig(*cfgPath)
	logger := newLogger(cfg)
	defer logger.Close()
	repo, db := openRepository(cfg, logger)
	defer db.Close()

	switch action {
	case "list":
		printShortcuts(os.Stdout, repo.List(*lang))

	case "add":
		if fs.NArg() < 2 {
			fatalf("usage: physkey shortcuts add [-lang xx] [-case-sensitive] <trigger> <replacement>")
		}
		language := *lang
		if language == "" {
			language = cfg.Keyboard.SelectedLanguage
		}
		sc, err := repo.Add(shortcuts.Shortcut{
			Trigger:       fs.Arg(0),
			Replacement:   fs.Arg(1),
			Language:      language,
			CaseSensitive: *caseSensitive,
		})
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("Added %d: %s\n", sc.ID, sc)

	case "remove":
		if fs.NArg() < 1 {
			fatalf("usage: physkey shortcuts remove <id>")
		}
		id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
		if err != nil {
			fatalf("invalid id %q", fs.Arg(0))
		}
		if err := repo.Delete(id); err != nil {
			if errors.Is(err, shortcuts.ErrNotFound) {
				fatalf("no shortcut with id %d", id)
			}
			fatalf("%v", err)
		}
		fmt.Printf("Removed %d\n", id)

	case "import":
		if fs.NArg() < 1 {
			fatalf("usage: physkey shortcuts import [-replace] <file>")
		}
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			fatalf("%v", err)
		}
		defer f.Close()
		mode := shortcuts.ImportSkipExisting
		if *replace {
			mode = shortcuts.ImportReplaceExisting
		}
		res, err := repo.Import(f, mode)
		if err != nil {
			fatalf("import: %v", err)
		}
		fmt.Printf("Added %d, replaced %d, skipped %d\n", res.Added, res.Replaced, res.Skipped)

	case "export":
		var w io.Writer = os.Stdout
		if *output != "" {
			f, err := os.Create(*output)
			if err != nil {
				fatalf("%v", err)
			}
			defer f.Close()
			w = f
		}
		if err := repo.Export(w, *lang); err != nil {
			fatalf("export: %v", err)
		}

	case "stats":
		stats, err := db.Stats()
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("Shortcuts: %d (%d built-in)\n", stats.Total, stats.Defaults)
		for _, l := range repo.Languages() {
			fmt.Printf("  %-6s %d\n", l, stats.ByLanguage[l])
		}

	case "defaults":
		n, err := repo.InitializeDefaults()
		if err != nil {
			fatalf("%v", err)
		}
		if n == 0 {
			fmt.Println("Shortcut database is not empty; defaults not installed.")
			return
		}
		fmt.Printf("Installed %d default shortcuts\n", n)

	default:
		fatalf("unknown shortcuts action %q", action)
	}
}

func printShortcuts(w io.Writer, list []shortcuts.Shortcut) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLANG\tTRIGGER\tREPLACEMENT\tFLAGS")
	for _, sc := range list {
		flags := ""
		if sc.CaseSensitive {
			flags += "case "
		}
		if sc.IsDefault {
			flags += "default"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", sc.ID, sc.Language, sc.Trigger, sc.Replacement, flags)
	}
	tw.Flush()
}
