package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/marketingops/sfmc-inventory/pkg/events"
	"github.com/marketingops/sfmc-inventory/pkg/log"
	"github.com/marketingops/sfmc-inventory/pkg/types"
)

// dirTimestampLayout names snapshot directories by extraction start time.
const dirTimestampLayout = "20060102_150405"

// Snapshot is everything one run produced, ready to be written to disk.
type Snapshot struct {
	Metadata   types.Metadata
	Statistics types.Statistics

	// Objects is keyed by extractor name; each list lands in its own
	// objects/<name>.ndjson file.
	Objects map[string][]types.Object
	Edges   []types.Edge
	Orphans []types.OrphanedObject
	Errors  []*types.ExtractError
}

// Writer writes snapshots under a base directory, one timestamped
// subdirectory per run.
type Writer struct {
	baseDir string
	events  *events.Broker
}

// NewWriter creates a Writer rooted at baseDir. The events broker may be nil.
func NewWriter(baseDir string, broker *events.Broker) *Writer {
	return &Writer{baseDir: baseDir, events: broker}
}

// Write persists the snapshot and returns the directory it was written to.
// Every file goes through a temp file and rename so a crashed run never
// leaves a half-written JSON document behind.
func (w *Writer) Write(snap *Snapshot) (string, error) {
	dir := filepath.Join(w.baseDir, dirName(snap.Metadata))
	for _, sub := range []string{"", "objects", "relationships"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return "", types.WrapError(types.ErrWriteFailed, "creating snapshot directory", err)
		}
	}

	files := make(map[string]string)

	for _, name := range extractorNames(snap.Objects) {
		objects := snap.Objects[name]
		if len(objects) == 0 {
			continue
		}
		rel := filepath.Join("objects", name+".ndjson")
		if err := writeNDJSON(filepath.Join(dir, rel), objects); err != nil {
			return "", err
		}
		files[name] = rel
	}

	if len(snap.Edges) > 0 {
		rel := filepath.Join("relationships", "graph.json")
		payload := map[string]any{
			"edges": snap.Edges,
			"stats": snap.Statistics.Graph,
		}
		if err := writeJSON(filepath.Join(dir, rel), payload); err != nil {
			return "", err
		}
		files["relationships"] = rel
	}

	if len(snap.Orphans) > 0 {
		rel := filepath.Join("relationships", "orphans.json")
		if err := writeJSON(filepath.Join(dir, rel), snap.Orphans); err != nil {
			return "", err
		}
		files["orphans"] = rel
	}

	if err := writeJSON(filepath.Join(dir, "statistics.json"), snap.Statistics); err != nil {
		return "", err
	}

	manifest := types.Manifest{
		Metadata:   snap.Metadata,
		Statistics: snap.Statistics,
		Files:      files,
		Errors:     snap.Errors,
	}
	if err := writeJSON(filepath.Join(dir, "manifest.json"), manifest); err != nil {
		return "", err
	}

	logger := log.WithRunID(snap.Metadata.RunID)
	logger.Info().
		Str("dir", dir).
		Int("files", len(files)).
		Msg("snapshot written")
	if w.events != nil {
		w.events.Publish(&events.Event{
			Type:     events.EventSnapshotWritten,
			Message:  dir,
			Metadata: map[string]string{"runId": snap.Metadata.RunID},
		})
	}
	return dir, nil
}

// dirName builds the per-run directory name. The account ID is included when
// known so snapshots from different business units sort side by side.
func dirName(meta types.Metadata) string {
	ts := meta.Started.Format(dirTimestampLayout)
	if meta.AccountID != "" {
		return fmt.Sprintf("inventory_%s_%s", meta.AccountID, ts)
	}
	return "inventory_" + ts
}

func extractorNames(objects map[string][]types.Object) []string {
	names := make([]string, 0, len(objects))
	for name := range objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return types.WrapError(types.ErrWriteFailed, "encoding "+filepath.Base(path), err)
	}
	return atomicWrite(path, append(data, '\n'))
}

func writeNDJSON(path string, objects []types.Object) error {
	var buf []byte
	for i := range objects {
		line, err := json.Marshal(&objects[i])
		if err != nil {
			return types.WrapError(types.ErrWriteFailed, "encoding "+filepath.Base(path), err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	return atomicWrite(path, buf)
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return types.WrapError(types.ErrWriteFailed, "writing "+filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return types.WrapError(types.ErrWriteFailed, "renaming "+filepath.Base(path), err)
	}
	return nil
}
