package rawlog

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSink_AppendsDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.jsonl")

	sink, err := NewFileSink(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Store(ctx, "a@example.org", map[string]any{"ExecUnitID": "1"}))
	require.NoError(t, sink.Store(ctx, "b@example.org", []any{map[string]any{"ExecUnitID": "2"}}))
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, sc.Err())
	require.Len(t, records, 2)

	assert.Equal(t, "a@example.org", records[0]["publisher_email"])
	assert.NotEmpty(t, records[0]["timestamp"])
	body, ok := records[0]["body"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1", body["ExecUnitID"])

	assert.Equal(t, "b@example.org", records[1]["publisher_email"])
}

func TestFileSink_ReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.jsonl")
	ctx := context.Background()

	sink, err := NewFileSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Store(ctx, "a@example.org", map[string]any{}))
	require.NoError(t, sink.Close())

	sink, err = NewFileSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Store(ctx, "a@example.org", map[string]any{}))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, len(splitNonEmpty(string(data))))
}

func splitNonEmpty(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '\n' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func TestNoOpSink(t *testing.T) {
	assert.NoError(t, NoOpSink{}.Store(context.Background(), "", nil))
}
