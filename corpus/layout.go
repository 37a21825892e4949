package corpus

import (
	"fmt"
	"path/filepath"
	"regexp"
	"time"
)

// TimestampLayout is used in generated directory and file names.
const TimestampLayout = "20060102_150405"

const (
	// ManifestFileName is the run summary written at the top of an output root.
	ManifestFileName = "run.json"

	// PromptDirName holds the prompt files a run was made with. Hidden, so
	// validation and export walks skip it.
	PromptDirName = ".prompt"
)

var (
	outputDirRe      = regexp.MustCompile(`^cleaned_(.+)_[^_]+_\d{8}_\d{6}$`)
	looseOutputDirRe = regexp.MustCompile(`^cleaned_([^_]+)_`)
)

// OutputDirName names a run's output root: cleaned_<character>_<prefix|full>_<timestamp>.
func OutputDirName(character, volumePrefix string, at time.Time) string {
	if volumePrefix == "" {
		volumePrefix = "full"
	}
	return fmt.Sprintf("cleaned_%s_%s_%s", character, volumePrefix, at.Format(TimestampLayout))
}

// CharacterFromOutputDir recovers the character from an output root name, or "".
// Names are matched against the <prefix|full>_<timestamp> suffix first, so a
// character may contain underscores; other cleaned_ names yield the first field.
func CharacterFromOutputDir(path string) string {
	base := filepath.Base(filepath.Clean(path))
	for _, re := range []*regexp.Regexp{outputDirRe, looseOutputDirRe} {
		if m := re.FindStringSubmatch(base); m != nil {
			return m[1]
		}
	}
	return ""
}

// DatasetFileName names an exported training set.
func DatasetFileName(character string, at time.Time) string {
	return fmt.Sprintf("lora_dataset_%s_%s.jsonl", character, at.Format(TimestampLayout))
}
