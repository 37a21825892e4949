package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var volumeDirRe = regexp.MustCompile(`^\d{2}_`)

// ChapterRange is an inclusive filter on the leading numeric chapter index.
// A nil bound is open.
type ChapterRange struct {
	Start *int
	End   *int
}

// Bounded reports whether either side of the range is set.
func (r ChapterRange) Bounded() bool {
	return r.Start != nil || r.End != nil
}

// Contains reports whether idx passes the filter. Chapters without a numeric
// index (-1) only pass an unbounded range.
func (r ChapterRange) Contains(idx int) bool {
	if idx < 0 {
		return !r.Bounded()
	}
	if r.Start != nil && idx < *r.Start {
		return false
	}
	if r.End != nil && idx > *r.End {
		return false
	}
	return true
}

func (r ChapterRange) String() string {
	start, end := "Start", "End"
	if r.Start != nil {
		start = strconv.Itoa(*r.Start)
	}
	if r.End != nil {
		end = strconv.Itoa(*r.End)
	}
	return start + " ~ " + end
}

// DiscoverVolumes lists volume directories ("NN_label") under root, sorted by
// name. A non-empty prefix keeps only volumes whose name starts with it.
func DiscoverVolumes(root, prefix string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read input root: %w", err)
	}
	var vols []string
	for _, e := range entries {
		if !e.IsDir() || !volumeDirRe.MatchString(e.Name()) {
			continue
		}
		if prefix != "" && !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		vols = append(vols, e.Name())
	}
	sort.Strings(vols)
	return vols, nil
}

// DiscoverChapters lists the *.txt chapter files of one volume that fall within r.
func DiscoverChapters(root, volume string, r ChapterRange) ([]ChapterSource, error) {
	volDir := filepath.Join(root, volume)
	entries, err := os.ReadDir(volDir)
	if err != nil {
		return nil, fmt.Errorf("read volume %s: %w", volume, err)
	}
	var out []ChapterSource
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			continue
		}
		idx := ChapterIndex(e.Name())
		if !r.Contains(idx) {
			continue
		}
		out = append(out, ChapterSource{
			VolumeDir: volDir,
			Volume:    volume,
			Index:     idx,
			FileName:  e.Name(),
			Path:      filepath.Join(volDir, e.Name()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	return out, nil
}

// ChapterIndex parses the number before the first underscore of a chapter file
// name ("012_title.txt" -> 12). It returns -1 when there is none.
func ChapterIndex(name string) int {
	head, _, _ := strings.Cut(name, "_")
	n, err := strconv.Atoi(head)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// ChapterPrefix is the part of a chapter file name used in unit ids.
func ChapterPrefix(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	head, _, _ := strings.Cut(base, "_")
	return head
}
