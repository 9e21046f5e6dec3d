package schemavalidation

import (
	"bufio"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedSchemasCompile(t *testing.T) {
	names := Names()
	want := []string{ReplayEvent, Shortcuts}
	if len(names) != len(want) {
		t.Fatalf("expected schemas %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("schema %d: expected %s, got %s", i, want[i], names[i])
		}
	}
}

func TestFixturesValidate(t *testing.T) {
	data := readFixture(t, "shortcuts-export.json")
	if err := ValidateShortcuts(data); err != nil {
		t.Fatalf("shortcut export fixture failed validation: %v", err)
	}

	sc := bufio.NewScanner(bytes.NewReader(readFixture(t, "replay.jsonl")))
	line := 0
	for sc.Scan() {
		line++
		if err := ValidateReplayEvent(sc.Bytes()); err != nil {
			t.Errorf("replay line %d: %v", line, err)
		}
	}
	if line == 0 {
		t.Fatal("replay fixture is empty")
	}
}

func TestShortcutsRejected(t *testing.T) {
	cases := []struct {
		name    string
		doc     string
		problem string
	}{
		{
			name:    "missing version",
			doc:     `{"shortcuts": []}`,
			problem: "version",
		},
		{
			name:    "wrong version",
			doc:     `{"version": 2, "shortcuts": []}`,
			problem: "/version",
		},
		{
			name:    "trigger with space",
			doc:     `{"version": 1, "shortcuts": [{"trigger": "a b", "replacement": "x", "language": "en"}]}`,
			problem: "/shortcuts/0/trigger",
		},
		{
			name:    "trigger with boundary",
			doc:     `{"version": 1, "shortcuts": [{"trigger": "e.g", "replacement": "x", "language": "en"}]}`,
			problem: "/shortcuts/0/trigger",
		},
		{
			name:    "empty replacement",
			doc:     `{"version": 1, "shortcuts": [{"trigger": "brb", "replacement": "", "language": "en"}]}`,
			problem: "/shortcuts/0/replacement",
		},
		{
			name:    "bad language",
			doc:     `{"version": 1, "shortcuts": [{"trigger": "brb", "replacement": "x", "language": "english!"}]}`,
			problem: "/shortcuts/0/language",
		},
		{
			name:    "unknown field",
			doc:     `{"version": 1, "shortcuts": [{"trigger": "brb", "replacement": "x", "language": "en", "id": 4}]}`,
			problem: "/shortcuts/0",
		},
		{
			name:    "bad timestamp",
			doc:     `{"version": 1, "exported_at": "yesterday", "shortcuts": []}`,
			problem: "/exported_at",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateShortcuts([]byte(tc.doc))
			if err == nil {
				t.Fatal("expected validation error")
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %T: %v", err, err)
			}
			if ve.Schema != Shortcuts {
				t.Errorf("expected schema %s, got %s", Shortcuts, ve.Schema)
			}
			if !strings.Contains(err.Error(), tc.problem) {
				t.Errorf("expected %q in %q", tc.problem, err.Error())
			}
		})
	}
}

func TestReplayEventRejected(t *testing.T) {
	cases := map[string]string{
		"unknown op":          `{"op": "jump"}`,
		"key op without key":  `{"op": "tap", "t": 5}`,
		"symbol without text": `{"op": "symbol"}`,
		"negative time":       `{"op": "down", "key": "A", "t": -1}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if err := ValidateReplayEvent([]byte(doc)); err == nil {
				t.Errorf("expected %s to be rejected", doc)
			}
		})
	}
}

func TestValidateNotJSON(t *testing.T) {
	err := ValidateShortcuts([]byte("version = 1"))
	if err == nil {
		t.Fatal("expected error for non-JSON input")
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		t.Errorf("decode failure should not be a ValidationError: %v", err)
	}
}

func TestValidateUnknownSchema(t *testing.T) {
	if err := Validate("nope", []byte(`{}`)); err == nil {
		t.Fatal("expected error for unknown schema")
	}
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return data
}
