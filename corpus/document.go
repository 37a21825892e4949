package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/theimaginaryfoundation/persona-o-bot/corpus/fileutils"
)

// ErrBadShape is returned when a response parses as JSON but is not a chapter document.
var ErrBadShape = errors.New("document is missing meta_info or interaction_units")

// documentShape keeps the two top-level keys as pointers so a missing key can be
// told apart from an empty value.
type documentShape struct {
	MetaInfo         *MetaInfo          `json:"meta_info"`
	InteractionUnits *[]InteractionUnit `json:"interaction_units"`
}

// ParseDocument extracts a chapter document from model output. Code fences and
// surrounding prose are tolerated; the result must carry a meta_info object and
// an interaction_units array.
func ParseDocument(text string) (Document, error) {
	var shape documentShape
	if err := fileutils.DecodeModelJSON(text, &shape); err != nil {
		return Document{}, fmt.Errorf("ParseDocument: %w", err)
	}
	return shape.document()
}

// DecodeDocument parses a document file strictly: the whole input must be one
// JSON document.
func DecodeDocument(b []byte) (Document, error) {
	var shape documentShape
	if err := json.Unmarshal(b, &shape); err != nil {
		return Document{}, fmt.Errorf("DecodeDocument: %w", err)
	}
	return shape.document()
}

func (s documentShape) document() (Document, error) {
	if s.MetaInfo == nil || s.InteractionUnits == nil {
		return Document{}, ErrBadShape
	}
	return Document{MetaInfo: *s.MetaInfo, InteractionUnits: *s.InteractionUnits}, nil
}

// UnmarshalJSON reads id and global_id leniently. Both are restamped after
// every run, so a model that emits them with the wrong JSON type must not
// fail the chapter: a numeric id keeps its literal text and anything that is
// not an integer global_id is dropped.
func (u *InteractionUnit) UnmarshalJSON(b []byte) error {
	type unit InteractionUnit
	var aux struct {
		unit
		ID       json.RawMessage `json:"id"`
		GlobalID json.RawMessage `json:"global_id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*u = InteractionUnit(aux.unit)
	u.ID = lenientID(aux.ID)
	u.GlobalID = lenientGlobalID(aux.GlobalID)
	return nil
}

func lenientID(raw json.RawMessage) *string {
	if isNull(raw) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		s = n.String()
		return &s
	}
	return nil
}

func lenientGlobalID(raw json.RawMessage) *int {
	if isNull(raw) {
		return nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil
	}
	return &n
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// MarshalDocument renders the canonical on-disk form shared by output files and cache entries.
func MarshalDocument(doc Document) ([]byte, error) {
	if doc.InteractionUnits == nil {
		doc.InteractionUnits = []InteractionUnit{}
	}
	return fileutils.MarshalJSON(doc, true)
}

// ReadDocument loads a document file with DecodeDocument.
func ReadDocument(path string) (Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	doc, err := DecodeDocument(b)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// WriteDocument writes doc atomically in canonical form.
func WriteDocument(path string, doc Document) error {
	b, err := MarshalDocument(doc)
	if err != nil {
		return err
	}
	return fileutils.WriteFileAtomicSameDir(path, b, 0o644)
}
