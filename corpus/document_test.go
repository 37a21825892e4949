package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleDoc = `{"meta_info":{"global_scene_type":"Daily_Life"},"interaction_units":[{"scene_snapshot":"客厅","interlocutor_info":{"name":"李四","relationship_tag":"朋友"},"trigger":{"sender":"李四","content":"你来了？","type":"dialogue"},"character_response":{"active_persona":"轻松","inner_monologue":"他今天怎么这么早","external_action":null,"speech_text":"嗯。","mood_state":"平静"}}]}`

func TestParseDocument_AcceptsFencedJSON(t *testing.T) {
	t.Parallel()

	doc, err := ParseDocument("```json\n" + sampleDoc + "\n```")
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if doc.MetaInfo.GlobalSceneType != SceneDailyLife {
		t.Fatalf("scene=%q", doc.MetaInfo.GlobalSceneType)
	}
	if len(doc.InteractionUnits) != 1 {
		t.Fatalf("units=%d", len(doc.InteractionUnits))
	}
	u := doc.InteractionUnits[0]
	if u.CharacterResponse.ExternalAction != nil {
		t.Fatalf("external_action should be nil")
	}
	if u.CharacterResponse.SpeechText == nil || *u.CharacterResponse.SpeechText != "嗯。" {
		t.Fatalf("speech_text=%v", u.CharacterResponse.SpeechText)
	}
}

func TestParseDocument_RejectsWrongShape(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		`{"meta_info":{"global_scene_type":"Other"}}`,
		`{"interaction_units":[]}`,
		`{"meta_info":{"global_scene_type":"Other"},"interaction_units":null}`,
	} {
		if _, err := ParseDocument(in); !errors.Is(err, ErrBadShape) {
			t.Fatalf("ParseDocument(%s) err=%v, want ErrBadShape", in, err)
		}
	}
	if _, err := ParseDocument("sorry, I can't help with that"); err == nil {
		t.Fatalf("expected error for prose")
	}
	if _, err := ParseDocument(`{"meta_info":"x","interaction_units":[]}`); err == nil {
		t.Fatalf("expected error for non-object meta_info")
	}
}

func TestParseDocument_ToleratesMistypedUnitIDs(t *testing.T) {
	t.Parallel()

	in := strings.Replace(sampleDoc, `{"scene_snapshot"`, `{"id":7,"global_id":"x","scene_snapshot"`, 1)
	doc, err := ParseDocument(in)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	u := doc.InteractionUnits[0]
	if u.ID == nil || *u.ID != "7" {
		t.Fatalf("id=%v, want literal 7", u.ID)
	}
	if u.GlobalID != nil {
		t.Fatalf("global_id=%d, want dropped", *u.GlobalID)
	}
	if u.Trigger.Content != "你来了？" {
		t.Fatalf("trigger=%+v", u.Trigger)
	}

	in = strings.Replace(sampleDoc, `{"scene_snapshot"`, `{"id":"001_002","global_id":9,"scene_snapshot"`, 1)
	doc, err = ParseDocument(in)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	u = doc.InteractionUnits[0]
	if u.ID == nil || *u.ID != "001_002" || u.GlobalID == nil || *u.GlobalID != 9 {
		t.Fatalf("stamped ids not kept: id=%v global_id=%v", u.ID, u.GlobalID)
	}

	in = strings.Replace(sampleDoc, `{"scene_snapshot"`, `{"id":null,"global_id":null,"scene_snapshot"`, 1)
	doc, err = ParseDocument(in)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if u := doc.InteractionUnits[0]; u.ID != nil || u.GlobalID != nil {
		t.Fatalf("null ids should stay nil: id=%v global_id=%v", u.ID, u.GlobalID)
	}

	in = strings.Replace(sampleDoc, `"trigger":{"sender":"李四","content":"你来了？","type":"dialogue"}`, `"trigger":"dialogue"`, 1)
	if _, err := ParseDocument(in); err == nil {
		t.Fatalf("expected error for non-object trigger")
	}
}

func TestMarshalDocument_EmptyDocumentIsCanonical(t *testing.T) {
	t.Parallel()

	b, err := MarshalDocument(Document{MetaInfo: MetaInfo{GlobalSceneType: SceneOther}})
	if err != nil {
		t.Fatalf("MarshalDocument: %v", err)
	}
	want, _ := MarshalDocument(EmptyDocument())
	if string(b) != string(want) {
		t.Fatalf("got %q want %q", b, want)
	}
	if !strings.Contains(string(b), `"interaction_units": []`) {
		t.Fatalf("units not rendered as empty array: %s", b)
	}
}

func TestWriteReadDocument_RoundTripKeepsCJK(t *testing.T) {
	t.Parallel()

	doc, err := ParseDocument(sampleDoc)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	p := filepath.Join(t.TempDir(), "01_v", "001_a.txt")
	if err := WriteDocument(p, doc); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	raw, _ := os.ReadFile(p)
	if !strings.Contains(string(raw), "他今天怎么这么早") {
		t.Fatalf("CJK text escaped on disk: %s", raw)
	}
	got, err := ReadDocument(p)
	if err != nil {
		t.Fatalf("ReadDocument: %v", err)
	}
	if got.InteractionUnits[0].Trigger.Content != "你来了？" {
		t.Fatalf("trigger=%q", got.InteractionUnits[0].Trigger.Content)
	}
}
