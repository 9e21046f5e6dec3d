//go:build linux

package ime

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ComponentFile is the file name of the IBus component description.
const ComponentFile = "physkey.xml"

type ibusComponent struct {
	XMLName     xml.Name          `xml:"component"`
	Name        string            `xml:"name"`
	Description string            `xml:"description"`
	Exec        string            `xml:"exec"`
	Version     string            `xml:"version"`
	License     string            `xml:"license"`
	TextDomain  string            `xml:"textdomain"`
	Engines     []ibusEngineEntry `xml:"engines>engine"`
}

type ibusEngineEntry struct {
	Name        string `xml:"name"`
	Language    string `xml:"language"`
	LongName    string `xml:"longname"`
	Description string `xml:"description"`
	Layout      string `xml:"layout"`
	Rank        int    `xml:"rank"`
	Symbol      string `xml:"symbol"`
}

// ComponentDir is where a user-level IBus component is installed.
func ComponentDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "ibus", "component"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "ibus", "component"), nil
}

// ComponentXML renders the component that tells ibus-daemon to start
// execPath with --ibus.
func ComponentXML(execPath, language string) ([]byte, error) {
	if language == "" {
		language = "en"
	}
	c := ibusComponent{
		Name:        PhyskeyBusName,
		Description: "Physical keyboard input method",
		Exec:        execPath + " --ibus",
		Version:     "1.0",
		License:     "MIT",
		TextDomain:  PhyskeyEngineName,
		Engines: []ibusEngineEntry{{
			Name:        PhyskeyEngineName,
			Language:    language,
			LongName:    "Physkey",
			Description: "Shortcuts, accents and sticky modifiers for hardware keyboards",
			Layout:      "us",
			Rank:        50,
			Symbol:      "P",
		}},
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode component: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// InstallComponent writes the component into dir (ComponentDir when empty)
// and returns its path. IBus picks it up after `ibus restart`.
func InstallComponent(dir, execPath, language string) (string, error) {
	if execPath == "" {
		return "", errors.New("engine executable path is required")
	}
	if dir == "" {
		var err error
		if dir, err = ComponentDir(); err != nil {
			return "", err
		}
	}
	data, err := ComponentXML(execPath, language)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, ComponentFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// UninstallComponent removes the component. A missing file is not an error.
func UninstallComponent(dir string) error {
	if dir == "" {
		var err error
		if dir, err = ComponentDir(); err != nil {
			return err
		}
	}
	err := os.Remove(filepath.Join(dir, ComponentFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// IsComponentInstalled reports whether the component file exists in dir.
func IsComponentInstalled(dir string) bool {
	if dir == "" {
		var err error
		if dir, err = ComponentDir(); err != nil {
			return false
		}
	}
	_, err := os.Stat(filepath.Join(dir, ComponentFile))
	return err == nil
}

// RestartIBus asks the daemon to rescan components.
func RestartIBus() error {
	out, err := exec.Command("ibus", "restart").CombinedOutput()
	if err != nil {
		return fmt.Errorf("ibus restart: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// IsActive reports whether physkey is the current IBus engine.
func IsActive() bool {
	out, err := exec.Command("ibus", "engine").Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == PhyskeyEngineName
}

// Activate switches IBus to the physkey engine.
func Activate() error {
	if out, err := exec.Command("ibus", "engine", PhyskeyEngineName).CombinedOutput(); err != nil {
		return fmt.Errorf("ibus engine %s: %w: %s", PhyskeyEngineName, err, strings.TrimSpace(string(out)))
	}
	return nil
}
