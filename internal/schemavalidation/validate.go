// Package schemavalidation validates physkey JSON documents against the
// schemas embedded in the binary.
package schemavalidation

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema names.
const (
	Shortcuts   = "shortcuts-v1"
	ReplayEvent = "replay-event-v1"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func schemaURL(name string) string {
	return "https://physkey.dev/schemas/" + name + ".schema.json"
}

func compileAll() {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		compileErr = fmt.Errorf("read embedded schemas: %w", err)
		return
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	compiler.AssertFormat = true

	var names []string
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".schema.json")
		data, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			compileErr = fmt.Errorf("read schema %s: %w", name, err)
			return
		}
		if err := compiler.AddResource(schemaURL(name), bytes.NewReader(data)); err != nil {
			compileErr = fmt.Errorf("add schema %s: %w", name, err)
			return
		}
		names = append(names, name)
	}

	compiled = make(map[string]*jsonschema.Schema, len(names))
	for _, name := range names {
		s, err := compiler.Compile(schemaURL(name))
		if err != nil {
			compileErr = fmt.Errorf("compile schema %s: %w", name, err)
			return
		}
		compiled[name] = s
	}
}

// Names lists the embedded schemas.
func Names() []string {
	compileOnce.Do(compileAll)
	names := make([]string, 0, len(compiled))
	for name := range compiled {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks a JSON document against the named schema. A document
// that is not JSON at all is reported as a decode error rather than a
// ValidationError.
func Validate(name string, data []byte) error {
	compileOnce.Do(compileAll)
	if compileErr != nil {
		return compileErr
	}
	s, ok := compiled[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode %s document: %w", name, err)
	}
	if err := s.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return &ValidationError{Schema: name, Problems: flatten(ve)}
		}
		return fmt.Errorf("validate %s: %w", name, err)
	}
	return nil
}

// ValidateShortcuts checks a shortcut export document.
func ValidateShortcuts(data []byte) error {
	return Validate(Shortcuts, data)
}

// ValidateReplayEvent checks a single replay log event.
func ValidateReplayEvent(data []byte) error {
	return Validate(ReplayEvent, data)
}

// Problem is one failed assertion in a document.
type Problem struct {
	Location string
	Message  string
}

// ValidationError lists every leaf failure of a schema validation.
type ValidationError struct {
	Schema   string
	Problems []Problem
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return fmt.Sprintf("%s: document is invalid", e.Schema)
	}
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		loc := p.Location
		if loc == "" {
			loc = "/"
		}
		msgs[i] = fmt.Sprintf("%s: %s", loc, p.Message)
	}
	return fmt.Sprintf("%s: %s", e.Schema, strings.Join(msgs, "; "))
}

func flatten(ve *jsonschema.ValidationError) []Problem {
	if len(ve.Causes) == 0 {
		return []Problem{{Location: ve.InstanceLocation, Message: ve.Message}}
	}
	var out []Problem
	for _, c := range ve.Causes {
		out = append(out, flatten(c)...)
	}
	return out
}
