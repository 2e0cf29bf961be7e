package snapshot

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketingops/sfmc-inventory/pkg/types"
)

func testSnapshot() *Snapshot {
	started := time.Date(2026, 8, 24, 9, 30, 15, 0, time.UTC)
	return &Snapshot{
		Metadata: types.Metadata{
			ToolVersion:        "test",
			RunID:              "run-1",
			AccountID:          "510001234",
			Started:            started,
			Completed:          started.Add(time.Minute),
			SelectedExtractors: []string{"automations", "queries"},
			Status:             types.RunSucceeded,
		},
		Statistics: types.Statistics{TotalObjects: 3},
		Objects: map[string][]types.Object{
			"automations": {
				{ID: "a-1", Type: types.TypeAutomation, Name: "Nightly"},
				{ID: "a-2", Type: types.TypeAutomation, Name: "Weekly"},
			},
			"queries": {
				{ID: "q-1", Type: types.TypeQuery, Name: "Dedupe",
					Properties: map[string]any{"queryText": "SELECT 1"}},
			},
		},
		Edges: []types.Edge{
			{SourceType: types.TypeAutomation, SourceID: "a-1",
				Kind:       types.EdgeAutomationContainsQuery,
				TargetType: types.TypeQuery, TargetID: "q-1"},
		},
		Orphans: []types.OrphanedObject{
			{ID: "a-2", ObjectType: types.TypeAutomation, Name: "Weekly",
				Reason: "not referenced by any other object"},
		},
	}
}

func TestWriteLayout(t *testing.T) {
	base := t.TempDir()
	dir, err := NewWriter(base, nil).Write(testSnapshot())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "inventory_510001234_20260824_093015"), dir)

	for _, rel := range []string{
		"manifest.json",
		"statistics.json",
		filepath.Join("objects", "automations.ndjson"),
		filepath.Join("objects", "queries.ndjson"),
		filepath.Join("relationships", "graph.json"),
		filepath.Join("relationships", "orphans.json"),
	} {
		_, err := os.Stat(filepath.Join(dir, rel))
		assert.NoError(t, err, rel)
	}

	// No temp files may survive.
	matches, err := filepath.Glob(filepath.Join(dir, "*", "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestWriteManifest(t *testing.T) {
	dir, err := NewWriter(t.TempDir(), nil).Write(testSnapshot())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)

	var manifest types.Manifest
	require.NoError(t, json.Unmarshal(data, &manifest))

	assert.Equal(t, "run-1", manifest.Metadata.RunID)
	assert.Equal(t, types.RunSucceeded, manifest.Metadata.Status)
	assert.Equal(t, filepath.Join("objects", "automations.ndjson"), manifest.Files["automations"])
	assert.Equal(t, filepath.Join("relationships", "graph.json"), manifest.Files["relationships"])
	assert.Equal(t, filepath.Join("relationships", "orphans.json"), manifest.Files["orphans"])
}

func TestWriteNDJSONFlattensProperties(t *testing.T) {
	dir, err := NewWriter(t.TempDir(), nil).Write(testSnapshot())
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(dir, "objects", "queries.ndjson"))
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())

	var line map[string]any
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
	assert.Equal(t, "q-1", line["id"])
	assert.Equal(t, "SELECT 1", line["queryText"])
	assert.False(t, scanner.Scan(), "one query object means one line")
}

func TestWriteSkipsEmptySections(t *testing.T) {
	snap := testSnapshot()
	snap.Metadata.AccountID = ""
	snap.Edges = nil
	snap.Orphans = nil
	snap.Objects["empty"] = nil

	dir, err := NewWriter(t.TempDir(), nil).Write(snap)
	require.NoError(t, err)

	assert.Equal(t, "inventory_20260824_093015", filepath.Base(dir))

	_, err = os.Stat(filepath.Join(dir, "relationships", "graph.json"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "objects", "empty.ndjson"))
	assert.True(t, os.IsNotExist(err))

	var manifest types.Manifest
	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.NotContains(t, manifest.Files, "relationships")
	assert.NotContains(t, manifest.Files, "empty")
}

func TestWriteFailureCode(t *testing.T) {
	base := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(base, []byte("file, not a dir"), 0o644))

	_, err := NewWriter(base, nil).Write(testSnapshot())
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrWriteFailed))
}
