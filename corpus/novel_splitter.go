package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/theimaginaryfoundation/persona-o-bot/corpus/fileutils"
)

const cnNumerals = `[一二三四五六七八九十百千万]+`

var (
	// sectionStartRe matches a line that opens a new section of the novel.
	sectionStartRe = regexp.MustCompile(`^(?:第` + cnNumerals + `[卷章节]|--外篇--|外篇\s+第` + cnNumerals + `节|--后篇--|后篇\s+第` + cnNumerals + `[章节])`)
	volumeTitleRe  = regexp.MustCompile(`^(第` + cnNumerals + `卷)`)
)

const (
	introVolume   = "00_Introduction"
	introFileName = "000_Intro.txt"
	outerSuffix   = "Outer_Chapters"
	postSuffix    = "Post_Chapters"
	maxTitleRunes = 50
)

// NovelSplitOptions controls SplitNovel.
type NovelSplitOptions struct {
	// Overwrite removes an existing output directory before writing. If false
	// and outputDir exists, SplitNovel returns an error.
	Overwrite bool

	// DirMode is used when creating output directories (defaults to 0o755).
	DirMode fs.FileMode

	// FileMode is used when creating chapter files (defaults to 0o644).
	FileMode fs.FileMode
}

// NovelSplitResult contains basic stats from a split run.
type NovelSplitResult struct {
	Volumes         []string
	ChaptersWritten int
	BytesWritten    int64
}

// SplitNovel cuts a raw novel into the volume/chapter layout that extraction reads.
//
// The text before the first section marker goes to 00_Introduction/000_Intro.txt.
// Each "第X卷" heading selects (or allocates) an "NN_第X卷" volume directory, the
// first 外篇 and 后篇 markers allocate "NN_Outer_Chapters" and "NN_Post_Chapters",
// and every section is written as "NNN_<title>.txt" with a counter that runs
// across the whole book. Input may be UTF-8 or GBK; output is UTF-8.
func SplitNovel(ctx context.Context, inputPath, outputDir string, opts NovelSplitOptions) (NovelSplitResult, error) {
	if ctx == nil {
		return NovelSplitResult{}, errors.New("SplitNovel: ctx is nil")
	}
	if inputPath == "" {
		return NovelSplitResult{}, errors.New("SplitNovel: inputPath is empty")
	}
	if outputDir == "" {
		return NovelSplitResult{}, errors.New("SplitNovel: outputDir is empty")
	}
	if opts.DirMode == 0 {
		opts.DirMode = 0o755
	}
	if opts.FileMode == 0 {
		opts.FileMode = 0o644
	}

	text, err := fileutils.ReadText(inputPath)
	if err != nil {
		return NovelSplitResult{}, fmt.Errorf("SplitNovel: read input: %w", err)
	}

	if _, err := os.Stat(outputDir); err == nil {
		if !opts.Overwrite {
			return NovelSplitResult{}, fmt.Errorf("SplitNovel: output directory already exists: %s", outputDir)
		}
		if err := os.RemoveAll(outputDir); err != nil {
			return NovelSplitResult{}, fmt.Errorf("SplitNovel: remove outputDir: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return NovelSplitResult{}, fmt.Errorf("SplitNovel: stat outputDir: %w", err)
	}

	header, sections := splitSections(text)

	var res NovelSplitResult
	seenVolumes := make(map[string]struct{})
	write := func(volume, name, body string) error {
		dir := filepath.Join(outputDir, volume)
		if err := os.MkdirAll(dir, opts.DirMode); err != nil {
			return fmt.Errorf("SplitNovel: mkdir %s: %w", volume, err)
		}
		if err := fileutils.WriteFileAtomicSameDir(filepath.Join(dir, name), []byte(body), opts.FileMode); err != nil {
			return fmt.Errorf("SplitNovel: write %s/%s: %w", volume, name, err)
		}
		if _, ok := seenVolumes[volume]; !ok {
			seenVolumes[volume] = struct{}{}
			res.Volumes = append(res.Volumes, volume)
		}
		res.BytesWritten += int64(len(body))
		return nil
	}

	if err := write(introVolume, introFileName, header); err != nil {
		return NovelSplitResult{}, err
	}

	var (
		volIdx     int
		volume     = introVolume
		volIndexes = make(map[string]int)
		chapter    = 1
	)
	for _, section := range sections {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		title := sectionTitle(section)
		if title == "" {
			continue
		}

		isOuter := strings.Contains(title, "--外篇--") || strings.HasPrefix(title, "外篇")
		isPost := strings.Contains(title, "--后篇--") || strings.HasPrefix(title, "后篇")
		switch m := volumeTitleRe.FindStringSubmatch(title); {
		case m != nil:
			idx, ok := volIndexes[m[1]]
			if !ok {
				volIdx++
				idx = volIdx
				volIndexes[m[1]] = idx
			}
			volume = safeFileComponent(fmt.Sprintf("%02d_%s", idx, m[1]))
		case isOuter && !strings.Contains(volume, outerSuffix):
			volIdx++
			volume = fmt.Sprintf("%02d_%s", volIdx, outerSuffix)
		case isPost && !strings.Contains(volume, postSuffix):
			volIdx++
			volume = fmt.Sprintf("%02d_%s", volIdx, postSuffix)
		}

		name := fmt.Sprintf("%03d.txt", chapter)
		if safe := truncateRunes(safeFileComponent(title), maxTitleRunes); safe != "" {
			name = fmt.Sprintf("%03d_%s.txt", chapter, safe)
		}
		if err := write(volume, name, section); err != nil {
			return res, err
		}
		res.ChaptersWritten++
		chapter++
	}
	return res, nil
}

// splitSections breaks text at every line (other than the first) that opens a section.
func splitSections(text string) (string, []string) {
	var (
		parts []string
		cur   strings.Builder
	)
	for i, line := range strings.SplitAfter(text, "\n") {
		if i > 0 && sectionStartRe.MatchString(line) {
			parts = append(parts, strings.TrimSuffix(cur.String(), "\n"))
			cur.Reset()
		}
		cur.WriteString(line)
	}
	parts = append(parts, cur.String())
	return parts[0], parts[1:]
}

func sectionTitle(section string) string {
	s := strings.TrimSpace(section)
	if s == "" {
		return ""
	}
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}

// safeFileComponent keeps non-ASCII runes, ASCII letters and digits, spaces, '-' and '_'.
func safeFileComponent(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r > unicode.MaxASCII || unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
