// Package config handles configuration loading, validation, and management for physkey.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Version is the current configuration schema version.
const Version = 2

// Config holds the complete engine and host configuration.
type Config struct {
	// Version is the configuration schema version for migrations.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Keyboard holds the settings the input engine reads on every event.
	Keyboard KeyboardSettings `toml:"keyboard" json:"keyboard" yaml:"keyboard"`

	// Shortcuts configures the text shortcut store.
	Shortcuts ShortcutsConfig `toml:"shortcuts" json:"shortcuts" yaml:"shortcuts"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Metrics configuration.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`
}

// AltBackspaceBehavior selects what Alt+Backspace does.
type AltBackspaceBehavior string

const (
	// AltBackspaceRegular deletes like a plain Backspace; Alt is not forwarded.
	AltBackspaceRegular AltBackspaceBehavior = "regular"
	// AltBackspaceDeleteLine deletes from the start of the line to the cursor.
	AltBackspaceDeleteLine AltBackspaceBehavior = "delete_line"
	// AltBackspaceDeleteForward deletes the character after the cursor.
	AltBackspaceDeleteForward AltBackspaceBehavior = "delete_forward"
)

// Valid reports whether b is a known behaviour.
func (b AltBackspaceBehavior) Valid() bool {
	switch b {
	case AltBackspaceRegular, AltBackspaceDeleteLine, AltBackspaceDeleteForward:
		return true
	}
	return false
}

// AltBackspaceFromBool maps the schema v1 alt_backspace_delete_line flag.
func AltBackspaceFromBool(deleteLine bool) AltBackspaceBehavior {
	if deleteLine {
		return AltBackspaceDeleteLine
	}
	return AltBackspaceRegular
}

// KeyboardSettings is an immutable snapshot of user preferences. The engine
// holds a pointer to one snapshot and never mutates it; a reload publishes a
// fresh value.
type KeyboardSettings struct {
	AutoCapitalize       bool `toml:"auto_capitalize" json:"auto_capitalize" yaml:"auto_capitalize"`
	KeyRepeatEnabled     bool `toml:"key_repeat_enabled" json:"key_repeat_enabled" yaml:"key_repeat_enabled"`
	LongPressCapitalize  bool `toml:"long_press_capitalize" json:"long_press_capitalize" yaml:"long_press_capitalize"`
	DoubleSpacePeriod    bool `toml:"double_space_period" json:"double_space_period" yaml:"double_space_period"`
	TextShortcutsEnabled bool `toml:"text_shortcuts_enabled" json:"text_shortcuts_enabled" yaml:"text_shortcuts_enabled"`
	StickyShift          bool `toml:"sticky_shift" json:"sticky_shift" yaml:"sticky_shift"`
	StickyAlt            bool `toml:"sticky_alt" json:"sticky_alt" yaml:"sticky_alt"`
	LongPressAccents     bool `toml:"long_press_accents" json:"long_press_accents" yaml:"long_press_accents"`

	AltBackspaceBehavior AltBackspaceBehavior `toml:"alt_backspace_behavior" json:"alt_backspace_behavior" yaml:"alt_backspace_behavior"`

	// KeyRepeatDelayMs and KeyRepeatRateMs set the kernel autorepeat of an
	// evdev keyboard (physkey record -repeat). The engine only reads
	// KeyRepeatEnabled.
	KeyRepeatDelayMs int `toml:"key_repeat_delay_ms" json:"key_repeat_delay_ms" yaml:"key_repeat_delay_ms"`
	KeyRepeatRateMs  int `toml:"key_repeat_rate_ms" json:"key_repeat_rate_ms" yaml:"key_repeat_rate_ms"`

	// PreferredCurrency is committed by a Sym double tap. Empty means the
	// locale default.
	PreferredCurrency string `toml:"preferred_currency" json:"preferred_currency" yaml:"preferred_currency"`

	// SelectedLanguage is a BCP 47 tag that selects shortcuts and accents.
	SelectedLanguage string `toml:"selected_language" json:"selected_language" yaml:"selected_language"`

	// Locale is used for the default currency. Empty reads LANG.
	Locale string `toml:"locale" json:"locale" yaml:"locale"`

	// AltBackspaceDeleteLine is the schema v1 flag. Migration folds it into
	// AltBackspaceBehavior and clears it.
	AltBackspaceDeleteLine *bool `toml:"alt_backspace_delete_line,omitempty" json:"alt_backspace_delete_line,omitempty" yaml:"alt_backspace_delete_line,omitempty"`
}

// DefaultKeyboardSettings returns the settings used when nothing is configured.
func DefaultKeyboardSettings() *KeyboardSettings {
	return &KeyboardSettings{
		AutoCapitalize:       true,
		KeyRepeatEnabled:     true,
		LongPressCapitalize:  false,
		DoubleSpacePeriod:    true,
		TextShortcutsEnabled: true,
		StickyShift:          false,
		StickyAlt:            false,
		LongPressAccents:     false,
		AltBackspaceBehavior: AltBackspaceDeleteLine,
		KeyRepeatDelayMs:     400,
		KeyRepeatRateMs:      50,
		SelectedLanguage:     "en",
	}
}

// KeyRepeatDelay returns the repeat delay as a duration.
func (k *KeyboardSettings) KeyRepeatDelay() time.Duration {
	return time.Duration(k.KeyRepeatDelayMs) * time.Millisecond
}

// KeyRepeatRate returns the repeat interval as a duration.
func (k *KeyboardSettings) KeyRepeatRate() time.Duration {
	return time.Duration(k.KeyRepeatRateMs) * time.Millisecond
}

// Clone returns a copy of the snapshot.
func (k *KeyboardSettings) Clone() *KeyboardSettings {
	c := *k
	if k.AltBackspaceDeleteLine != nil {
		v := *k.AltBackspaceDeleteLine
		c.AltBackspaceDeleteLine = &v
	}
	return &c
}

// ShortcutsConfig holds text shortcut store configuration.
type ShortcutsConfig struct {
	// DatabasePath is the SQLite file holding user shortcuts.
	DatabasePath string `toml:"database_path" json:"database_path" yaml:"database_path"`

	// SeedDefaults installs the built-in shortcuts on first open.
	SeedDefaults bool `toml:"seed_defaults" json:"seed_defaults" yaml:"seed_defaults"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log output: "stdout", "stderr", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file (when Output is "file" or "both").
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of old log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
}

// MetricsConfig holds metrics exposition configuration.
type MetricsConfig struct {
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// ListenAddr is the HTTP address serving /metrics.
	ListenAddr string `toml:"listen_addr" json:"listen_addr" yaml:"listen_addr"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := PhyskeyDir()

	return &Config{
		Version:  Version,
		Keyboard: *DefaultKeyboardSettings(),
		Shortcuts: ShortcutsConfig{
			DatabasePath: filepath.Join(dir, "shortcuts.db"),
			SeedDefaults: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "physkey.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:9464",
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
// Older schema versions are migrated in memory; the file is left alone.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	if _, err := MigrateConfig(cfg, ""); err != nil {
		return nil, fmt.Errorf("migrate config: %w", err)
	}

	cfg.ApplyEnvOverrides()

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories the configured files live in.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Shortcuts.DatabasePath),
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// PhyskeyDir returns the base data directory.
// Uses platform-specific paths or the PHYSKEY_DATA_DIR environment override.
func PhyskeyDir() string {
	if envDir := os.Getenv("PHYSKEY_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with PHYSKEY_ and use underscores.
// Unparseable boolean values are ignored.
func (c *Config) ApplyEnvOverrides() {
	// Keyboard overrides
	if v := os.Getenv("PHYSKEY_LANGUAGE"); v != "" {
		c.Keyboard.SelectedLanguage = v
	}
	if v := os.Getenv("PHYSKEY_LOCALE"); v != "" {
		c.Keyboard.Locale = v
	}
	if v := os.Getenv("PHYSKEY_CURRENCY"); v != "" {
		c.Keyboard.PreferredCurrency = v
	}
	if v := os.Getenv("PHYSKEY_ALT_BACKSPACE"); v != "" {
		c.Keyboard.AltBackspaceBehavior = AltBackspaceBehavior(v)
	}
	envBool("PHYSKEY_STICKY_SHIFT", &c.Keyboard.StickyShift)
	envBool("PHYSKEY_STICKY_ALT", &c.Keyboard.StickyAlt)
	envBool("PHYSKEY_LONG_PRESS_ACCENTS", &c.Keyboard.LongPressAccents)
	envBool("PHYSKEY_TEXT_SHORTCUTS", &c.Keyboard.TextShortcutsEnabled)

	// Shortcut store overrides
	if v := os.Getenv("PHYSKEY_SHORTCUTS_DB"); v != "" {
		c.Shortcuts.DatabasePath = v
	}

	// Logging overrides
	if v := os.Getenv("PHYSKEY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PHYSKEY_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}

	// Metrics overrides
	if v := os.Getenv("PHYSKEY_METRICS_ADDR"); v != "" {
		c.Metrics.Enabled = true
		c.Metrics.ListenAddr = v
	}
}

func envBool(key string, dst *bool) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if b, err := strconv.ParseBool(v); err == nil {
		*dst = b
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Keyboard = *c.Keyboard.Clone()
	return &clone
}

// KeyboardSnapshot returns a fresh immutable copy of the keyboard settings
// suitable for handing to the engine.
func (c *Config) KeyboardSnapshot() *KeyboardSettings {
	return c.Keyboard.Clone()
}
