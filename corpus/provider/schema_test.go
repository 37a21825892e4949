package provider

import (
	"strings"
	"testing"

	"github.com/theimaginaryfoundation/persona-o-bot/corpus"
)

func TestGenerateSchema_Document(t *testing.T) {
	t.Parallel()

	m, err := GenerateSchema[corpus.Document]()
	if err != nil {
		t.Fatalf("GenerateSchema: %v", err)
	}
	props, ok := m["properties"].(map[string]any)
	if !ok {
		t.Fatalf("no properties: %v", m)
	}
	for _, k := range []string{"meta_info", "interaction_units"} {
		if _, ok := props[k]; !ok {
			t.Fatalf("missing %q", k)
		}
	}

	s, err := SchemaJSON[corpus.Document]()
	if err != nil {
		t.Fatalf("SchemaJSON: %v", err)
	}
	for _, want := range []string{"Daily_Life", "environment", "inner_monologue"} {
		if !strings.Contains(s, want) {
			t.Fatalf("schema text missing %q", want)
		}
	}
}
