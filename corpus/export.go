package corpus

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/theimaginaryfoundation/persona-o-bot/corpus/fileutils"
)

// Record is one instruction-tuning example.
type Record struct {
	ID          *int   `json:"id"`
	Instruction string `json:"instruction"`
	Input       string `json:"input"`
	Output      string `json:"output"`
}

// ExportStats summarizes an export.
type ExportStats struct {
	Files       int // documents read
	FilesUsed   int // documents that produced at least one record
	Unreadable  int // .json/.txt files that were not chapter documents
	Records     int
	DroppedUnit int // units without trigger content or inner monologue
}

type moodPair struct{ zh, en string }

// moodTable is checked in order; substring matches take the first hit.
var moodTable = []moodPair{
	{"愤怒", "angry"},
	{"开心", "happy"},
	{"悲伤", "sad"},
	{"恐惧", "fearful"},
	{"惊讶", "surprised"},
	{"厌恶", "disgusted"},
	{"中性", "neutral"},
	{"平静", "calm"},
	{"期待", "expectant"},
	{"焦虑", "anxious"},
	{"羞涩", "shy"},
	{"害羞", "shy"},
	{"尴尬", "awkward"},
	{"惘然", "dazed"},
	{"不知所措", "overwhelmed"},
	{"失落", "lost"},
	{"绝望", "hopeless"},
	{"兴奋", "excited"},
	{"疲惫", "tired"},
	{"疑惑", "confused"},
	{"坚定", "determined"},
	{"痛苦", "painful"},
	{"温柔", "gentle"},
	{"冷漠", "indifferent"},
	{"得意", "proud"},
	{"无奈", "helpless"},
	{"紧张", "nervous"},
	{"警惕", "vigilant"},
	{"愧疚", "guilty"},
	{"感动", "touched"},
	{"委屈", "aggrieved"},
}

// MoodTag maps a mood description to an English tag: exact match, then the
// first known mood contained in it, then ASCII text as-is, else "neutral".
func MoodTag(mood string) string {
	mood = strings.TrimSpace(mood)
	if mood == "" {
		return "neutral"
	}
	for _, p := range moodTable {
		if p.zh == mood {
			return p.en
		}
	}
	for _, p := range moodTable {
		if strings.Contains(mood, p.zh) {
			return p.en
		}
	}
	if isASCII(mood) {
		return mood
	}
	return "neutral"
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// BuildRecord projects one unit into a training record. ok is false when the
// unit has no trigger content or no inner monologue.
func BuildRecord(character string, meta MetaInfo, u InteractionUnit) (Record, bool) {
	input := strings.TrimSpace(u.Trigger.Content)
	if input == "" {
		return Record{}, false
	}
	output, ok := responseText(u.CharacterResponse)
	if !ok {
		return Record{}, false
	}
	return Record{
		ID:          u.GlobalID,
		Instruction: instructionText(character, meta, u),
		Input:       input,
		Output:      output,
	}, true
}

func instructionText(character string, meta MetaInfo, u InteractionUnit) string {
	scene := orDefault(u.SceneSnapshot, "Unknown")
	sceneType := orDefault(string(meta.GlobalSceneType), "Unknown")
	persona := orDefault(u.CharacterResponse.ActivePersona, "Default")
	name := orDefault(u.InterlocutorInfo.Name, "Unknown")
	tag := orDefault(u.InterlocutorInfo.RelationshipTag, "Unknown")
	return fmt.Sprintf("你现在是%s。\n当前场景：%s (类型：%s)。\n当前状态：[%s]。\n对话对象：%s (关系：[%s])。\n请基于人设和当前局势进行回应。",
		character, scene, sceneType, persona, name, tag)
}

// responseText renders "<think>…</think> *action* speech <mood:tag>".
func responseText(r CharacterResponse) (string, bool) {
	mono := strings.TrimSpace(strings.ReplaceAll(r.InnerMonologue, "\n", " "))
	if mono == "" {
		return "", false
	}
	parts := []string{"<think>" + mono + "</think>"}
	if r.ExternalAction != nil && strings.TrimSpace(*r.ExternalAction) != "" {
		parts = append(parts, "*"+strings.TrimSpace(*r.ExternalAction)+"*")
	}
	if r.SpeechText != nil && strings.TrimSpace(*r.SpeechText) != "" {
		parts = append(parts, strings.TrimSpace(*r.SpeechText))
	}
	parts = append(parts, "<mood:"+MoodTag(r.MoodState)+">")
	return strings.Join(parts, " "), true
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// CollectDocumentFiles lists .json and .txt files under path (or path itself
// when it is a file), skipping hidden directories and the run manifest, in
// output order.
func CollectDocumentFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Dir(p) == filepath.Clean(path) && d.Name() == ManifestFileName {
			return nil
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".json", ".txt":
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return SortOutputPaths(files), nil
}

// ExportRecords turns every chapter document under path into training records.
// Files that are not chapter documents are counted and skipped.
func ExportRecords(path, character string) ([]Record, ExportStats, error) {
	if character == "" {
		return nil, ExportStats{}, errors.New("ExportRecords: character is empty")
	}
	files, err := CollectDocumentFiles(path)
	if err != nil {
		return nil, ExportStats{}, fmt.Errorf("ExportRecords: %w", err)
	}

	var (
		records []Record
		st      ExportStats
	)
	for _, f := range files {
		doc, err := ReadDocument(f)
		if err != nil {
			st.Unreadable++
			continue
		}
		st.Files++
		used := false
		for _, u := range doc.InteractionUnits {
			r, ok := BuildRecord(character, doc.MetaInfo, u)
			if !ok {
				st.DroppedUnit++
				continue
			}
			records = append(records, r)
			used = true
		}
		if used {
			st.FilesUsed++
		}
	}
	st.Records = len(records)
	return records, st, nil
}

// WriteRecordsJSONL writes records one per line, atomically.
func WriteRecordsJSONL(path string, records []Record, overwrite bool) error {
	if path == "" {
		return errors.New("WriteRecordsJSONL: path is empty")
	}
	if !overwrite && fileutils.FileExists(path) {
		return fmt.Errorf("WriteRecordsJSONL: file exists: %s", path)
	}
	var b strings.Builder
	for _, r := range records {
		line, err := fileutils.MarshalJSON(r, false)
		if err != nil {
			return err
		}
		b.Write(line)
	}
	return fileutils.WriteFileAtomicSameDir(path, []byte(b.String()), 0o644)
}
