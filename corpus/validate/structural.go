package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/theimaginaryfoundation/persona-o-bot/corpus/fileutils"
)

// Structural checks a document against an example-shaped template: every
// template key must be present with the same JSON kind. Values are ignored and
// null template leaves mark optional keys.
type Structural struct {
	template any
}

// NewStructural builds a template from schema description text. The text may
// be a bare JSON example or prose with one embedded.
func NewStructural(schemaText string) (*Structural, error) {
	var tmpl any
	if err := fileutils.DecodeModelJSON(schemaText, &tmpl); err != nil {
		return nil, fmt.Errorf("NewStructural: %w", err)
	}
	if _, ok := tmpl.(map[string]any); !ok {
		return nil, errors.New("NewStructural: template is not a JSON object")
	}
	return &Structural{template: tmpl}, nil
}

func (s *Structural) Validate(doc []byte) Report {
	v, bad := decodeInstance(doc)
	if bad != nil {
		return *bad
	}
	var diags []Diagnostic
	var walk func(tmpl, val any, segs []string)
	walk = func(tmpl, val any, segs []string) {
		want, got := kindOf(tmpl), kindOf(val)
		if want != got {
			diags = append(diags, locate(v, segs, fmt.Sprintf("expected %s, but got %s", want, got)))
			return
		}
		switch t := tmpl.(type) {
		case map[string]any:
			obj := val.(map[string]any)
			for _, k := range slices.Sorted(maps.Keys(t)) {
				if t[k] == nil {
					continue
				}
				child, ok := obj[k]
				path := append(append([]string(nil), segs...), k)
				if !ok {
					diags = append(diags, locate(v, path, "missing property"))
					continue
				}
				walk(t[k], child, path)
			}
		case []any:
			if len(t) == 0 {
				return
			}
			for i, item := range val.([]any) {
				walk(t[0], item, append(append([]string(nil), segs...), strconv.Itoa(i)))
			}
		}
	}
	walk(s.template, v, nil)
	if len(diags) > 0 {
		return Report{Diagnostics: diags}
	}
	return Report{Valid: true}
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// ForSchemaFile picks a validator for a schema file. A missing or blank file
// yields the built-in Strict schema; a file holding a JSON Schema is compiled;
// anything else is treated as an example template.
func ForSchemaFile(path string) (Validator, error) {
	if path == "" || !fileutils.FileExists(path) {
		return NewStrict()
	}
	text, err := fileutils.ReadText(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %q: %w", path, err)
	}
	if strings.TrimSpace(text) == "" {
		return NewStrict()
	}
	var m map[string]any
	if err := fileutils.DecodeModelJSON(text, &m); err == nil && isJSONSchema(m) {
		b, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		return NewStrictFromSchema(b)
	}
	return NewStructural(text)
}

func isJSONSchema(m map[string]any) bool {
	if _, ok := m["$schema"]; ok {
		return true
	}
	_, props := m["properties"].(map[string]any)
	typ, _ := m["type"].(string)
	return props && typ == "object"
}
