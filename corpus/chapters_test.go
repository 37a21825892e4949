package corpus

import (
	"os"
	"path/filepath"
	"testing"
)

func intp(n int) *int { return &n }

func mkChapterTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, body := range files {
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return root
}

func TestDiscoverVolumes_PatternAndPrefix(t *testing.T) {
	t.Parallel()

	root := mkChapterTree(t, map[string]string{
		"02_第二卷/001_a.txt": "",
		"01_第一卷/001_a.txt": "",
		"notes/readme.txt":  "",
		"3_bad/001_a.txt":   "",
	})
	if err := os.WriteFile(filepath.Join(root, "05_file.txt"), nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	vols, err := DiscoverVolumes(root, "")
	if err != nil {
		t.Fatalf("DiscoverVolumes: %v", err)
	}
	if len(vols) != 2 || vols[0] != "01_第一卷" || vols[1] != "02_第二卷" {
		t.Fatalf("vols=%v", vols)
	}

	vols, err = DiscoverVolumes(root, "02")
	if err != nil {
		t.Fatalf("DiscoverVolumes: %v", err)
	}
	if len(vols) != 1 || vols[0] != "02_第二卷" {
		t.Fatalf("vols=%v", vols)
	}

	vols, _ = DiscoverVolumes(root, "09")
	if len(vols) != 0 {
		t.Fatalf("vols=%v, want none", vols)
	}
}

func TestDiscoverChapters_RangeAndSentinel(t *testing.T) {
	t.Parallel()

	root := mkChapterTree(t, map[string]string{
		"01_v/001_a.txt":  "",
		"01_v/002_b.txt":  "",
		"01_v/010_c.txt":  "",
		"01_v/intro.txt":  "",
		"01_v/003_d.json": "",
	})

	all, err := DiscoverChapters(root, "01_v", ChapterRange{})
	if err != nil {
		t.Fatalf("DiscoverChapters: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("all=%d, want 4 (sentinel included when unbounded)", len(all))
	}

	got, err := DiscoverChapters(root, "01_v", ChapterRange{Start: intp(2), End: intp(10)})
	if err != nil {
		t.Fatalf("DiscoverChapters: %v", err)
	}
	if len(got) != 2 || got[0].FileName != "002_b.txt" || got[1].FileName != "010_c.txt" {
		t.Fatalf("got=%+v", got)
	}
	if got[1].Index != 10 || got[1].Volume != "01_v" {
		t.Fatalf("got[1]=%+v", got[1])
	}

	got, _ = DiscoverChapters(root, "01_v", ChapterRange{End: intp(1)})
	if len(got) != 1 || got[0].FileName != "001_a.txt" {
		t.Fatalf("end-only range should exclude sentinel: %+v", got)
	}
}

func TestChapterIndexAndPrefix(t *testing.T) {
	t.Parallel()

	if n := ChapterIndex("012_第十二章.txt"); n != 12 {
		t.Fatalf("ChapterIndex=%d", n)
	}
	if n := ChapterIndex("intro.txt"); n != -1 {
		t.Fatalf("ChapterIndex=%d, want -1", n)
	}
	if p := ChapterPrefix("/x/01_v/012_第十二章.txt"); p != "012" {
		t.Fatalf("ChapterPrefix=%q", p)
	}
	if p := ChapterPrefix("intro.txt"); p != "intro" {
		t.Fatalf("ChapterPrefix=%q", p)
	}
}
