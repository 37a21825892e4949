package corpus

// SceneType classifies the overall scene of a chapter.
type SceneType string

const (
	SceneCombat      SceneType = "Combat"
	SceneDailyLife   SceneType = "Daily_Life"
	SceneNegotiation SceneType = "Negotiation"
	SceneRomance     SceneType = "Romance"
	SceneSuspense    SceneType = "Suspense"
	SceneOther       SceneType = "Other"
)

// SceneTypes lists every accepted global_scene_type value.
var SceneTypes = []SceneType{SceneCombat, SceneDailyLife, SceneNegotiation, SceneRomance, SceneSuspense, SceneOther}

// Document is the per-chapter extraction artifact. The same shape is used for
// output files and cache entries.
type Document struct {
	MetaInfo         MetaInfo          `json:"meta_info"`
	InteractionUnits []InteractionUnit `json:"interaction_units"`
}

// MetaInfo describes the chapter as a whole.
type MetaInfo struct {
	GlobalSceneType SceneType `json:"global_scene_type" jsonschema:"enum=Combat,enum=Daily_Life,enum=Negotiation,enum=Romance,enum=Suspense,enum=Other"`
}

// InteractionUnit is one trigger/response pair for the target character.
type InteractionUnit struct {
	// ID is "<chapter prefix>_<NNN>", stamped after the run completes.
	ID *string `json:"id,omitempty" jsonschema:"nullable"`

	// GlobalID is the corpus-wide sequence number, stamped after the run completes.
	GlobalID *int `json:"global_id,omitempty" jsonschema:"nullable"`

	SceneSnapshot     string            `json:"scene_snapshot"`
	InterlocutorInfo  InterlocutorInfo  `json:"interlocutor_info"`
	Trigger           Trigger           `json:"trigger"`
	CharacterResponse CharacterResponse `json:"character_response"`
}

// InterlocutorInfo names who the character is responding to.
type InterlocutorInfo struct {
	Name            string `json:"name"`
	RelationshipTag string `json:"relationship_tag"`
}

// Trigger is the event the character reacts to.
type Trigger struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
	Type    string `json:"type" jsonschema:"enum=dialogue,enum=action,enum=environment"`
}

// CharacterResponse is the character's reaction to a Trigger.
type CharacterResponse struct {
	ActivePersona  string  `json:"active_persona"`
	InnerMonologue string  `json:"inner_monologue"`
	ExternalAction *string `json:"external_action,omitempty" jsonschema:"nullable"`
	SpeechText     *string `json:"speech_text,omitempty" jsonschema:"nullable"`
	MoodState      string  `json:"mood_state"`
}

// EmptyDocument is the placeholder written for chapters that never reach the model.
func EmptyDocument() Document {
	return Document{
		MetaInfo:         MetaInfo{GlobalSceneType: SceneOther},
		InteractionUnits: []InteractionUnit{},
	}
}

// HasUnits reports whether the document carries at least one interaction unit.
func (d Document) HasUnits() bool {
	return len(d.InteractionUnits) > 0
}

// ChapterSource identifies one chapter file on disk.
type ChapterSource struct {
	VolumeDir string
	Volume    string
	Index     int // -1 when the filename has no numeric prefix
	FileName  string
	Path      string
}

// Outcome is the terminal classification of one chapter.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeEmpty   Outcome = "empty"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)
