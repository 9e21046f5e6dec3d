// Package replay reads and writes recorded key event logs and runs them
// through an ime.Engine against an in-memory text field. Logs are JSON
// lines or YAML lists; every event is checked against the replay-event
// schema before it is used.
package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"physkey/internal/schemavalidation"
)

// Op is the kind of a replay event.
type Op string

const (
	OpDown     Op = "down"
	OpUp       Op = "up"
	OpTap      Op = "tap"
	OpStart    Op = "start"
	OpFinish   Op = "finish"
	OpSymbol   Op = "symbol"
	OpPicker   Op = "picker"
	OpSettings Op = "settings"
)

// DefaultHold is how long a tap holds its key when Hold is unset, in ms.
const DefaultHold = 20

// Event is one line of a replay log. Times are milliseconds on the
// recording's clock.
type Event struct {
	Op     Op     `json:"op" yaml:"op"`
	Key    string `json:"key,omitempty" yaml:"key,omitempty"`
	T      int64  `json:"t,omitempty" yaml:"t,omitempty"`
	DownT  int64  `json:"down_t,omitempty" yaml:"down_t,omitempty"`
	Repeat int    `json:"repeat,omitempty" yaml:"repeat,omitempty"`
	Hold   int64  `json:"hold,omitempty" yaml:"hold,omitempty"`

	// Text is the initial field content for start and the committed
	// text for symbol.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// InputType is an Android EditorInfo.inputType for start. Unset
	// means a plain text field.
	InputType *int `json:"input_type,omitempty" yaml:"input_type,omitempty"`

	Visible bool `json:"visible,omitempty" yaml:"visible,omitempty"`

	// Settings overrides keyboard settings fields by their json names.
	Settings map[string]any `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// Format is a replay log encoding.
type Format int

const (
	FormatJSONL Format = iota
	FormatYAML
)

// FormatForPath picks the format from a file extension. Anything that is
// not .yaml or .yml is read as JSON lines.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSONL
	}
}

// ReadFile decodes the replay log at path.
func ReadFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay log: %w", err)
	}
	defer f.Close()
	return Decode(f, FormatForPath(path))
}

// Decode reads a replay log in the given format.
func Decode(r io.Reader, format Format) ([]Event, error) {
	if format == FormatYAML {
		return DecodeYAML(r)
	}
	return DecodeJSONL(r)
}

// DecodeJSONL reads one JSON event per line. Blank lines and lines
// starting with # are skipped.
func DecodeJSONL(r io.Reader) ([]Event, error) {
	var events []Event
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}
		if err := schemavalidation.ValidateReplayEvent(raw); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read replay log: %w", err)
	}
	return events, nil
}

// DecodeYAML reads a YAML list of events.
func DecodeYAML(r io.Reader) ([]Event, error) {
	var events []Event
	if err := yaml.NewDecoder(r).Decode(&events); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode replay yaml: %w", err)
	}
	for i, ev := range events {
		raw, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		if err := schemavalidation.ValidateReplayEvent(raw); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
	}
	return events, nil
}

// EncodeJSONL writes events one per line.
func EncodeJSONL(w io.Writer, events []Event) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			return fmt.Errorf("encode event %d: %w", i, err)
		}
	}
	return nil
}

// EncodeYAML writes events as a YAML list.
func EncodeYAML(w io.Writer, events []Event) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(events); err != nil {
		return fmt.Errorf("encode replay yaml: %w", err)
	}
	return enc.Close()
}
