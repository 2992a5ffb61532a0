package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/provreport/config"
	"github.com/c360/provreport/provenance"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeEvents(t *testing.T, path string, ids ...int64) {
	t.Helper()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	require.NoError(t, err)
	defer f.Close()

	for _, id := range ids {
		event := provenance.Raw{
			EventID:       id,
			EventType:     "SEND",
			ComponentID:   "comp-1",
			ComponentType: "PutSFTP",
		}
		data, err := json.Marshal(event)
		require.NoError(t, err)
		_, err = fmt.Fprintf(f, "%s\n", data)
		require.NoError(t, err)
	}
}

func newTestSource(t *testing.T, cfg config.SourceConfig) *Source {
	t.Helper()
	src, err := NewSource(cfg, "", testLogger())
	require.NoError(t, err)
	return src
}

func eventIDs(batch *provenance.Batch) []int64 {
	if batch == nil {
		return nil
	}
	ids := make([]int64, len(batch.Events))
	for i, e := range batch.Events {
		ids[i] = e.EventID
	}
	return ids
}

func TestNewSource_RequiresPath(t *testing.T) {
	_, err := NewSource(config.SourceConfig{}, "", testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source path is required")
}

func TestNextBatch_ReadsFromBeginning(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")
	writeEvents(t, path, 1, 2, 3)

	src := newTestSource(t, config.SourceConfig{
		Path:          path,
		StartPosition: config.StartBeginning,
	})

	batch, err := src.NextBatch(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, eventIDs(batch))

	// Nothing new on the next call.
	batch, err = src.NextBatch(context.Background(), 100)
	require.NoError(t, err)
	assert.Nil(t, batch)
}

func TestNextBatch_StartAtEndSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")
	writeEvents(t, path, 1, 2, 3)

	src := newTestSource(t, config.SourceConfig{
		Path:          path,
		StartPosition: config.StartEnd,
	})

	batch, err := src.NextBatch(context.Background(), 100)
	require.NoError(t, err)
	assert.Nil(t, batch)

	// Events appended after startup are picked up.
	writeEvents(t, path, 4, 5)
	batch, err = src.NextBatch(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5}, eventIDs(batch))
}

func TestNextBatch_RespectsLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")
	writeEvents(t, path, 1, 2, 3, 4, 5)

	src := newTestSource(t, config.SourceConfig{
		Path:          path,
		StartPosition: config.StartBeginning,
	})

	batch, err := src.NextBatch(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, eventIDs(batch))

	batch, err = src.NextBatch(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, eventIDs(batch))
}

func TestNextBatch_PositionSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")
	posFile := filepath.Join(dir, "position.json")
	writeEvents(t, path, 1, 2, 3)

	cfg := config.SourceConfig{
		Path:          path,
		StartPosition: config.StartBeginning,
		PositionFile:  posFile,
	}

	src := newTestSource(t, cfg)
	batch, err := src.NextBatch(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, eventIDs(batch))

	// A fresh source resumes from the persisted watermark, not zero.
	restarted := newTestSource(t, cfg)
	batch, err = restarted.NextBatch(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, eventIDs(batch))
}

func TestNextBatch_SkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")
	writeEvents(t, path, 1)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	writeEvents(t, path, 2)

	src := newTestSource(t, config.SourceConfig{
		Path:          path,
		StartPosition: config.StartBeginning,
	})

	batch, err := src.NextBatch(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, eventIDs(batch))
}

func TestNextBatch_MissingFileIsEmpty(t *testing.T) {
	src := newTestSource(t, config.SourceConfig{
		Path:          filepath.Join(t.TempDir(), "absent.jsonl"),
		StartPosition: config.StartBeginning,
	})

	batch, err := src.NextBatch(context.Background(), 100)
	require.NoError(t, err)
	assert.Nil(t, batch)
}

func TestNextBatch_LoadsDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")
	writeEvents(t, path, 1)

	dirPath := filepath.Join(dir, "directory.json")
	require.NoError(t, os.WriteFile(dirPath, []byte(`{
		"names": {"comp-1": "Upload Results", "pg-1": "Ingest"},
		"groups": {"comp-1": "pg-1"}
	}`), 0o600))

	src, err := NewSource(config.SourceConfig{
		Path:          path,
		StartPosition: config.StartBeginning,
	}, dirPath, testLogger())
	require.NoError(t, err)

	batch, err := src.NextBatch(context.Background(), 100)
	require.NoError(t, err)
	require.NotNil(t, batch)
	require.NotNil(t, batch.Directory)
	assert.Equal(t, "Upload Results", batch.Directory.ComponentName("comp-1"))
	assert.Equal(t, "pg-1", batch.Directory.ProcessGroupID("comp-1", "PROCESSOR"))
}
