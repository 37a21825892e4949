// Package prompt builds the system prompt sent with every extraction call.
package prompt

import (
	"os"
	"strings"

	"github.com/theimaginaryfoundation/persona-o-bot/corpus/fileutils"
)

// Fallback is used when no instruction text is available.
const Fallback = "You are a professional novel data cleaner. Output JSON."

const (
	schemaPlaceholder    = "{output_schema}"
	characterPlaceholder = "{character_name}"
	novelPlaceholder     = "{source_novel}"
	schemaHeading        = "\n\n### Output Schema\n"
)

// Vars are the per-run placeholder values.
type Vars struct {
	CharacterName string
	SourceNovel   string
}

// Compose joins an instruction template with the output schema description.
func Compose(instruction, schema string) string {
	if instruction == "" {
		return Fallback
	}
	if strings.Contains(instruction, schemaPlaceholder) {
		return strings.ReplaceAll(instruction, schemaPlaceholder, schema)
	}
	return instruction + schemaHeading + schema
}

// LoadComposed reads both template files and composes them. Unreadable files
// count as empty; it never fails.
func LoadComposed(instructionPath, schemaPath string) string {
	return Compose(readOptional(instructionPath), readOptional(schemaPath))
}

// LoadComposedWithDefault is LoadComposed, with defaultSchema used when the
// schema file is missing or empty.
func LoadComposedWithDefault(instructionPath, schemaPath, defaultSchema string) string {
	schema := readOptional(schemaPath)
	if strings.TrimSpace(schema) == "" {
		schema = defaultSchema
	}
	return Compose(readOptional(instructionPath), schema)
}

// Render substitutes the per-run placeholders. An empty SourceNovel leaves
// {source_novel} in place.
func Render(prompt string, v Vars) string {
	pairs := []string{characterPlaceholder, v.CharacterName}
	if v.SourceNovel != "" {
		pairs = append(pairs, novelPlaceholder, v.SourceNovel)
	}
	return strings.NewReplacer(pairs...).Replace(prompt)
}

func readOptional(path string) string {
	if path == "" {
		return ""
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return fileutils.DecodeText(b)
}
