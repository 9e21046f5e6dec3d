package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// MigrationResult records one upgrade of a settings file.
type MigrationResult struct {
	FromVersion int
	ToVersion   int
	Backup      string
	Changes     []string
	Warnings    []string
}

// migrationStep upgrades a Config from version from to from+1.
type migrationStep struct {
	from  int
	apply func(kb *KeyboardSettings, res *MigrationResult)
}

var migrations = []migrationStep{
	{from: 1, apply: altBackspaceEnum},
}

// MigrateConfig upgrades cfg to Version in place and returns nil when it is
// already current. With configPath set the file is copied aside first.
//
// A file that still carries the v1 alt_backspace_delete_line flag is v1
// whatever its version field says.
func MigrateConfig(cfg *Config, configPath string) (*MigrationResult, error) {
	if cfg.Keyboard.AltBackspaceDeleteLine != nil {
		cfg.Version = min(cfg.Version, 1)
	}
	if cfg.Version == 0 {
		// Files written before versioning.
		cfg.Version = 1
	}
	if cfg.Version >= Version {
		return nil, nil
	}

	res := &MigrationResult{FromVersion: cfg.Version, ToVersion: Version}
	if configPath != "" {
		backup, err := backupFile(configPath, time.Now())
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("no backup written: %v", err))
		}
		res.Backup = backup
	}

	for _, step := range migrations {
		if step.from != cfg.Version {
			continue
		}
		step.apply(&cfg.Keyboard, res)
		cfg.Version++
	}
	if cfg.Version != Version {
		return res, fmt.Errorf("no migration from version %d", cfg.Version)
	}
	return res, nil
}

// altBackspaceEnum replaces the alt_backspace_delete_line boolean with the
// alt_backspace_behavior enum.
func altBackspaceEnum(kb *KeyboardSettings, res *MigrationResult) {
	if flag := kb.AltBackspaceDeleteLine; flag != nil {
		kb.AltBackspaceBehavior = AltBackspaceFromBool(*flag)
		kb.AltBackspaceDeleteLine = nil
		res.Changes = append(res.Changes, fmt.Sprintf("alt_backspace_delete_line=%t is now alt_backspace_behavior=%s", *flag, kb.AltBackspaceBehavior))
	}

	switch {
	case kb.AltBackspaceBehavior == "":
		kb.AltBackspaceBehavior = AltBackspaceDeleteLine
		res.Changes = append(res.Changes, "alt_backspace_behavior defaulted to delete_line")
	case !kb.AltBackspaceBehavior.Valid():
		res.Warnings = append(res.Warnings, fmt.Sprintf("unknown alt_backspace_behavior %q replaced by delete_line", kb.AltBackspaceBehavior))
		kb.AltBackspaceBehavior = AltBackspaceDeleteLine
	}
}

// backupFile copies path to path.backup-<timestamp>. A missing file needs
// no backup.
func backupFile(path string, at time.Time) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	backup := path + ".backup-" + at.Format("20060102-150405")
	if err := os.WriteFile(backup, data, 0o600); err != nil {
		return "", err
	}
	return backup, nil
}

// SaveConfig writes cfg to path in the format its extension names.
func SaveConfig(cfg *Config, path string) error {
	data, err := EncodeConfig(cfg, filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// EncodeConfig renders cfg in the format named by ext (".toml", ".json",
// ".yaml" or ".yml"). Anything else is TOML.
func EncodeConfig(cfg *Config, ext string) ([]byte, error) {
	switch ext {
	case ".json":
		return json.MarshalIndent(cfg, "", "  ")
	case ".yaml", ".yml":
		return yaml.Marshal(cfg)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# physkey configuration\n# Version %d\n\n", cfg.Version)
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func historyPath() string {
	return filepath.Join(PhyskeyDir(), "migration_history.json")
}

// GetMigrationHistory returns every recorded migration, oldest first.
func GetMigrationHistory() ([]MigrationResult, error) {
	data, err := os.ReadFile(historyPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read migration history: %w", err)
	}

	var history []MigrationResult
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("parse migration history: %w", err)
	}
	return history, nil
}

// SaveMigrationHistory appends result to the history. An unreadable
// history is replaced.
func SaveMigrationHistory(result *MigrationResult) error {
	history, _ := GetMigrationHistory()
	history = append(history, *result)

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("encode migration history: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(historyPath()), 0o700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	return os.WriteFile(historyPath(), data, 0o600)
}
