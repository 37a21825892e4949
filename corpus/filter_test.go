package corpus

import "testing"

func TestCharacterFilter_ShortNameAndNicknames(t *testing.T) {
	t.Parallel()

	f := CharacterFilter("顾家明", true, []string{"家明哥", " ", "顾家明"})
	if got := f.Keywords(); len(got) != 3 || got[1] != "家明" {
		t.Fatalf("keywords=%v", got)
	}
	if !f.Match("……家明笑了笑") {
		t.Fatalf("short name should match")
	}
	if f.Match("灵静走进了教室") {
		t.Fatalf("unrelated text should not match")
	}

	strict := CharacterFilter("顾家明", false, nil)
	if strict.Match("……家明笑了笑") {
		t.Fatalf("short name disabled but matched")
	}
}

func TestShortName_SingleRune(t *testing.T) {
	t.Parallel()

	if s := ShortName("明"); s != "" {
		t.Fatalf("ShortName=%q", s)
	}
	f := CharacterFilter("明", true, nil)
	if len(f.Keywords()) != 1 {
		t.Fatalf("empty short name must not become a keyword: %v", f.Keywords())
	}
}

func TestKeywordFilter_EmptyMatchesAll(t *testing.T) {
	t.Parallel()

	if !NewKeywordFilter().Match("anything") {
		t.Fatalf("empty filter should match")
	}
}
