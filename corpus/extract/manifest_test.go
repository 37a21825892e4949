package extract

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theimaginaryfoundation/persona-o-bot/corpus"
	"github.com/theimaginaryfoundation/persona-o-bot/corpus/tracker"
)

func TestManifest_RoundTrip(t *testing.T) {
	t.Parallel()

	input := writeInput(t, map[string]string{
		"01_卷一/001_a.txt": "张三来了。",
		"01_卷一/002_b.txt": "张三又来了。",
	})
	client := &fakeCompleter{respond: func(user string) (string, error) {
		if chapterNumber(user) == 2 {
			return "", errors.New("boom")
		}
		return docJSON(t, 2), nil
	}}
	cfg := testConfig(t, input, t.TempDir())
	cfg.Pricing = tracker.DefaultPricing
	s, err := NewScheduler(cfg, client)
	require.NoError(t, err)

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f := Filter{VolumePrefix: "01", Range: corpus.ChapterRange{}}
	paths, err := s.Run(context.Background(), f)
	require.NoError(t, err)

	id := NewRunID()
	require.Len(t, id, 27)
	m := s.Manifest(id, f, started, started.Add(time.Minute), len(paths), nil)
	path, err := WriteManifest(cfg.OutputRoot, m)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.OutputRoot, corpus.ManifestFileName), path)

	got, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, id, got.RunID)
	assert.Equal(t, "张三", got.Character)
	assert.Equal(t, "01", got.VolumePrefix)
	assert.Equal(t, []string{"张三"}, got.Keywords)
	assert.Equal(t, 1, got.Outputs)
	assert.Equal(t, 1, got.Stats.Success)
	assert.Equal(t, 1, got.Stats.Failed)
	assert.Equal(t, []string{filepath.Join("01_卷一", "002_b.txt")}, got.Stats.Failures)
	assert.True(t, got.StartedAt.Equal(started))
	assert.InDelta(t, m.Cost, got.Cost, 1e-12)
	assert.Empty(t, got.Error)

	// The manifest is not a chapter document.
	files, err := corpus.CollectDocumentFiles(cfg.OutputRoot)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	_, err = WriteManifest(cfg.OutputRoot, Manifest{})
	assert.Error(t, err)
}
