package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/theimaginaryfoundation/persona-o-bot/corpus"
	"github.com/theimaginaryfoundation/persona-o-bot/corpus/provider"
)

// Diagnostic is one reason a document failed validation.
type Diagnostic struct {
	// Location is the instance path joined with "->", e.g.
	// "interaction_units->0->trigger->type". The document root is "(root)".
	Location string
	Message  string

	// UnitID and GlobalID identify the interaction unit the problem sits in,
	// when the unit carries them.
	UnitID   *string
	GlobalID *int
}

func (d Diagnostic) String() string {
	s := d.Location + ": " + d.Message
	var parts []string
	if d.UnitID != nil {
		parts = append(parts, "id="+*d.UnitID)
	}
	if d.GlobalID != nil {
		parts = append(parts, "global_id="+strconv.Itoa(*d.GlobalID))
	}
	if len(parts) > 0 {
		s += " (Data: " + strings.Join(parts, ", ") + ")"
	}
	return s
}

// Report is the result of validating one document.
type Report struct {
	Valid       bool
	Diagnostics []Diagnostic
}

// Validator checks raw document bytes.
type Validator interface {
	Validate(doc []byte) Report
}

const rootLocation = "(root)"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeInstance parses raw bytes into a generic JSON value, reporting syntax
// problems as a failed Report.
func decodeInstance(doc []byte) (any, *Report) {
	doc = bytes.TrimSpace(bytes.TrimPrefix(doc, utf8BOM))
	if len(doc) == 0 {
		return nil, &Report{Diagnostics: []Diagnostic{{Location: rootLocation, Message: "document is empty"}}}
	}
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return nil, &Report{Diagnostics: []Diagnostic{{Location: rootLocation, Message: "invalid JSON: " + err.Error()}}}
	}
	return v, nil
}

// Strict validates documents against a compiled JSON Schema.
type Strict struct {
	schema *jsonschema.Schema
}

// NewStrict compiles the schema reflected from corpus.Document.
func NewStrict() (*Strict, error) {
	m, err := provider.GenerateSchema[corpus.Document]()
	if err != nil {
		return nil, fmt.Errorf("NewStrict: %w", err)
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("NewStrict: %w", err)
	}
	return NewStrictFromSchema(b)
}

// NewStrictFromSchema compiles a JSON Schema document.
func NewStrictFromSchema(schema []byte) (*Strict, error) {
	if len(bytes.TrimSpace(schema)) == 0 {
		return nil, errors.New("NewStrictFromSchema: schema is empty")
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Strict{schema: compiled}, nil
}

func (s *Strict) Validate(doc []byte) Report {
	v, bad := decodeInstance(doc)
	if bad != nil {
		return *bad
	}
	err := s.schema.Validate(v)
	if err == nil {
		return Report{Valid: true}
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return Report{Diagnostics: []Diagnostic{{Location: rootLocation, Message: err.Error()}}}
	}

	var diags []Diagnostic
	for _, leaf := range leafErrors(ve) {
		segs := pointerSegments(leaf.InstanceLocation)
		diags = append(diags, locate(v, segs, leaf.Message))
	}
	if len(diags) == 0 {
		diags = append(diags, Diagnostic{Location: rootLocation, Message: ve.Message})
	}
	return Report{Diagnostics: diags}
}

func leafErrors(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		if ve.Message == "" {
			return nil
		}
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, c := range ve.Causes {
		out = append(out, leafErrors(c)...)
	}
	return out
}

// pointerSegments splits a JSON pointer into unescaped reference tokens.
func pointerSegments(ptr string) []string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return nil
	}
	segs := strings.Split(ptr, "/")
	for i, s := range segs {
		segs[i] = strings.NewReplacer("~1", "/", "~0", "~").Replace(s)
	}
	return segs
}

// locate builds a Diagnostic for the instance at segs, attaching the id and
// global_id of the enclosing interaction unit when there is one.
func locate(doc any, segs []string, msg string) Diagnostic {
	d := Diagnostic{Location: rootLocation, Message: msg}
	if len(segs) > 0 {
		d.Location = strings.Join(segs, "->")
	}
	if len(segs) < 2 || segs[0] != "interaction_units" {
		return d
	}
	idx, err := strconv.Atoi(segs[1])
	if err != nil {
		return d
	}
	root, ok := doc.(map[string]any)
	if !ok {
		return d
	}
	units, ok := root["interaction_units"].([]any)
	if !ok || idx < 0 || idx >= len(units) {
		return d
	}
	unit, ok := units[idx].(map[string]any)
	if !ok {
		return d
	}
	switch id := unit["id"].(type) {
	case string:
		d.UnitID = &id
	case float64:
		s := strconv.FormatFloat(id, 'f', -1, 64)
		d.UnitID = &s
	}
	if gid, ok := unit["global_id"].(float64); ok && gid == float64(int(gid)) {
		n := int(gid)
		d.GlobalID = &n
	}
	return d
}
