package corpus

import (
	"path/filepath"
	"testing"
)

func unitDoc(n int) Document {
	d := Document{MetaInfo: MetaInfo{GlobalSceneType: SceneDailyLife}}
	for i := 0; i < n; i++ {
		d.InteractionUnits = append(d.InteractionUnits, InteractionUnit{SceneSnapshot: "s"})
	}
	return d
}

func TestStampSequence_FilenameOrderNotInputOrder(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	a := filepath.Join(root, "01_v", "001_a.txt")
	b := filepath.Join(root, "01_v", "002_b.txt")
	c := filepath.Join(root, "02_w", "003_c.txt")
	for p, d := range map[string]Document{a: unitDoc(2), b: EmptyDocument(), c: unitDoc(1)} {
		if err := WriteDocument(p, d); err != nil {
			t.Fatalf("WriteDocument: %v", err)
		}
	}

	n, err := StampSequence([]string{c, b, a})
	if err != nil {
		t.Fatalf("StampSequence: %v", err)
	}
	if n != 3 {
		t.Fatalf("stamped=%d, want 3", n)
	}

	da, _ := ReadDocument(a)
	dc, _ := ReadDocument(c)
	if *da.InteractionUnits[0].ID != "001_001" || *da.InteractionUnits[1].ID != "001_002" {
		t.Fatalf("ids=%q,%q", *da.InteractionUnits[0].ID, *da.InteractionUnits[1].ID)
	}
	if *da.InteractionUnits[0].GlobalID != 1 || *da.InteractionUnits[1].GlobalID != 2 {
		t.Fatalf("a global ids wrong")
	}
	if *dc.InteractionUnits[0].ID != "003_001" || *dc.InteractionUnits[0].GlobalID != 3 {
		t.Fatalf("c id=%q gid=%d", *dc.InteractionUnits[0].ID, *dc.InteractionUnits[0].GlobalID)
	}

	db, _ := ReadDocument(b)
	if db.HasUnits() {
		t.Fatalf("empty doc gained units")
	}
}

func TestStampSequence_IsIdempotent(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "001_a.txt")
	if err := WriteDocument(p, unitDoc(1)); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := StampSequence([]string{p}); err != nil {
			t.Fatalf("StampSequence: %v", err)
		}
	}
	d, _ := ReadDocument(p)
	if *d.InteractionUnits[0].GlobalID != 1 {
		t.Fatalf("gid=%d", *d.InteractionUnits[0].GlobalID)
	}
}
