package corpus

import (
	"fmt"
	"path/filepath"
	"sort"
)

// StampSequence assigns unit ids after a run. Paths are walked in base-filename
// order (full path breaks ties), so numbering never depends on completion order.
// Each unit gets id "<chapter prefix>_NNN", restarting per file, and a global_id
// that counts up from 1 across the walk. Files without units are left untouched.
// It returns the number of units stamped.
func StampSequence(paths []string) (int, error) {
	sorted := SortOutputPaths(paths)

	global := 0
	for _, p := range sorted {
		doc, err := ReadDocument(p)
		if err != nil {
			return global, fmt.Errorf("StampSequence: %w", err)
		}
		if !doc.HasUnits() {
			continue
		}
		prefix := ChapterPrefix(p)
		for i := range doc.InteractionUnits {
			global++
			id := fmt.Sprintf("%s_%03d", prefix, i+1)
			gid := global
			doc.InteractionUnits[i].ID = &id
			doc.InteractionUnits[i].GlobalID = &gid
		}
		if err := WriteDocument(p, doc); err != nil {
			return global, fmt.Errorf("StampSequence: write %s: %w", p, err)
		}
	}
	return global, nil
}

// SortOutputPaths returns a copy of paths ordered by base filename, then full path.
func SortOutputPaths(paths []string) []string {
	sorted := append([]string(nil), paths...)
	sort.SliceStable(sorted, func(i, j int) bool {
		bi, bj := filepath.Base(sorted[i]), filepath.Base(sorted[j])
		if bi != bj {
			return bi < bj
		}
		return sorted[i] < sorted[j]
	})
	return sorted
}
