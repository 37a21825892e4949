package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/theimaginaryfoundation/persona-o-bot/corpus"
	"github.com/theimaginaryfoundation/persona-o-bot/corpus/fileutils"
	"github.com/theimaginaryfoundation/persona-o-bot/corpus/tracker"
)

// Manifest records what one extraction run did. It is written to
// <output root>/run.json once the run ends.
type Manifest struct {
	RunID       string `json:"run_id"`
	Character   string `json:"character"`
	SourceNovel string `json:"source_novel,omitempty"`
	Model       string `json:"model,omitempty"`

	VolumePrefix string   `json:"volume_prefix,omitempty"`
	Range        string   `json:"range"`
	Keywords     []string `json:"keywords"`
	ForceRefresh bool     `json:"force_refresh"`

	InputRoot  string `json:"input_root"`
	OutputRoot string `json:"output_root"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Outputs int              `json:"outputs"`
	Stats   tracker.RunStats `json:"stats"`
	Pricing tracker.Pricing  `json:"pricing"`
	Cost    float64          `json:"cost"`
	Error   string           `json:"error,omitempty"`
}

// NewRunID returns a sortable unique run identifier.
func NewRunID() string {
	return ksuid.New().String()
}

// Manifest snapshots the scheduler's configuration and counters.
func (s *Scheduler) Manifest(runID string, f Filter, started, finished time.Time, outputs int, runErr error) Manifest {
	m := Manifest{
		RunID:        runID,
		Character:    s.cfg.Character,
		SourceNovel:  s.cfg.SourceNovel,
		VolumePrefix: f.VolumePrefix,
		Range:        f.Range.String(),
		Keywords:     s.cfg.Filter.Keywords(),
		ForceRefresh: s.cfg.ForceRefresh,
		InputRoot:    s.cfg.InputRoot,
		OutputRoot:   s.cfg.OutputRoot,
		StartedAt:    started.UTC(),
		FinishedAt:   finished.UTC(),
		Outputs:      outputs,
		Stats:        s.Stats(),
		Pricing:      s.cfg.Pricing,
		Cost:         s.Cost(),
	}
	if mc, ok := s.client.(interface{ Model() string }); ok {
		m.Model = mc.Model()
	}
	if runErr != nil {
		m.Error = runErr.Error()
	}
	return m
}

// WriteManifest writes m to dir/run.json atomically.
func WriteManifest(dir string, m Manifest) (string, error) {
	if m.RunID == "" {
		return "", errors.New("WriteManifest: RunID is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, corpus.ManifestFileName)
	if err := fileutils.WriteJSONFileAtomic(path, m, true); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return m, nil
}
