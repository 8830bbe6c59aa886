package analytics

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_Record(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(&buf)
	sink.loc = time.UTC

	require.NoError(t, sink.Record(Event{
		ChatID:    7,
		Model:     "scamper",
		Prompt:    "How do I rope?",
		Response:  "Swing flat.",
		Timestamp: 1717243200123,
	}, "203.0.113.9"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, float64(7), got["chatId"])
	assert.Equal(t, "scamper", got["model"])
	assert.Equal(t, "How do I rope?", got["prompt"])
	assert.Equal(t, "Swing flat.", got["response"])
	assert.Equal(t, float64(1717243200123), got["timestamp"])
	assert.Equal(t, "203.0.113.9", got["ip"])
	assert.Equal(t, "2024-06-01T12:00:00.123", got["ts_readable"])
	assert.Len(t, got, 7, "no logger metadata leaks into the record")
	assert.Equal(t, byte('\n'), buf.Bytes()[buf.Len()-1])
}

func TestSink_RecordRejectsMissingChat(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(&buf)

	assert.ErrorIs(t, sink.Record(Event{Model: "scamper"}, "127.0.0.1"), ErrMissingChatID)
	assert.Zero(t, buf.Len())
}

func TestFileSink_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analytics.log")

	for i := 1; i <= 2; i++ {
		sink, err := NewFileSink(path)
		require.NoError(t, err)
		require.NoError(t, sink.Record(Event{ChatID: int64(i), Timestamp: 1}, "127.0.0.1"))
		require.NoError(t, sink.Close())
	}

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var ids []float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		ids = append(ids, line["chatId"].(float64))
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []float64{1, 2}, ids)
}

func TestNewFileSink_BadPath(t *testing.T) {
	_, err := NewFileSink(filepath.Join(t.TempDir(), "missing", "dir", "analytics.log"))
	assert.Error(t, err)
}
