package config

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
)

// ErrInvalidConfig matches every validation failure via errors.Is.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError is one rejected field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors collects every rejected field of one validation.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i := range e {
		msgs[i] = e[i].Error()
	}
	return strings.Join(msgs, "; ")
}

func (e ValidationErrors) Unwrap() error {
	return ErrInvalidConfig
}

func (e *ValidationErrors) add(field, format string, args ...any) {
	*e = append(*e, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidationErrors) between(field string, v, lo, hi int) {
	if v < lo || v > hi {
		e.add(field, "%d is outside %d..%d", v, lo, hi)
	}
}

func (e ValidationErrors) err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// ValidateConfig checks the whole file. The result is nil or a
// ValidationErrors.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors
	if c.Version < 1 || c.Version > Version {
		errs.add("version", "unsupported version %d (current: %d)", c.Version, Version)
	}
	errs = append(errs, ValidateKeyboard(&c.Keyboard)...)

	if c.Shortcuts.DatabasePath == "" {
		errs.add("shortcuts.database_path", "required")
	}
	validateLogging(&c.Logging, &errs)
	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		errs.add("metrics.listen_addr", "required when metrics are enabled")
	}
	return errs.err()
}

// ValidateKeyboard checks a settings snapshot. Hosts that take settings
// from outside the config file, like the mobile bridge, call it directly.
func ValidateKeyboard(k *KeyboardSettings) ValidationErrors {
	var errs ValidationErrors

	switch _, err := language.Parse(k.SelectedLanguage); {
	case k.SelectedLanguage == "":
		errs.add("keyboard.selected_language", "required")
	case err != nil:
		errs.add("keyboard.selected_language", "invalid language tag %q: %v", k.SelectedLanguage, err)
	}

	if k.Locale != "" {
		// POSIX form: ll_CC.encoding
		tag := strings.ReplaceAll(strings.SplitN(k.Locale, ".", 2)[0], "_", "-")
		if _, err := language.Parse(tag); err != nil {
			errs.add("keyboard.locale", "invalid locale %q", k.Locale)
		}
	}

	if !k.AltBackspaceBehavior.Valid() {
		errs.add("keyboard.alt_backspace_behavior", "unknown behavior %q (valid: regular, delete_line, delete_forward)", k.AltBackspaceBehavior)
	}
	errs.between("keyboard.key_repeat_delay_ms", k.KeyRepeatDelayMs, 100, 2000)
	errs.between("keyboard.key_repeat_rate_ms", k.KeyRepeatRateMs, 10, 500)

	if n := utf8.RuneCountInString(k.PreferredCurrency); n > 4 {
		errs.add("keyboard.preferred_currency", "%d characters, at most 4", n)
	}
	return errs
}

func validateLogging(l *LoggingConfig, errs *ValidationErrors) {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs.add("logging.level", "invalid level %q (valid: debug, info, warn, error)", l.Level)
	}

	switch l.Format {
	case "text", "json":
	default:
		errs.add("logging.format", "invalid format %q (valid: text, json)", l.Format)
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs.add("logging.file_path", "required when output is %q", l.Output)
		}
	default:
		errs.add("logging.output", "invalid output %q (valid: stdout, stderr, file, both)", l.Output)
	}

	if l.MaxSizeMB < 1 {
		errs.add("logging.max_size_mb", "must be at least 1")
	}
	if l.MaxBackups < 0 {
		errs.add("logging.max_backups", "cannot be negative")
	}
}
