package output

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []Record {
	t.Helper()
	var records []Record
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec Record
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		records = append(records, rec)
	}
	return records
}

func TestJSONLWriter_Envelope(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-1", "s3")

	require.NoError(t, w.WriteObject(context.Background(), &ObjectRecord{
		Key:          "data/a.txt",
		Size:         42,
		LastModified: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, w.WriteSummary(context.Background(), &SummaryRecord{Objects: 1, BytesTotal: 42}))

	records := decodeLines(t, &buf)
	require.Len(t, records, 2)

	assert.Equal(t, TypeObject, records[0].Type)
	assert.Equal(t, "job-1", records[0].JobID)
	assert.Equal(t, "s3", records[0].Provider)
	assert.False(t, records[0].TS.IsZero())

	var obj ObjectRecord
	require.NoError(t, json.Unmarshal(records[0].Data, &obj))
	assert.Equal(t, "data/a.txt", obj.Key)
	assert.Equal(t, int64(42), obj.Size)

	assert.Equal(t, TypeSummary, records[1].Type)
}

func TestJSONLWriter_TransferRecord(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-2", "gcs")

	require.NoError(t, w.WriteTransfer(context.Background(), &TransferRecord{
		Op:            "upload",
		Key:           "models/weights.bin",
		LocalPath:     "/tmp/weights.bin",
		Bytes:         1 << 30,
		Chunked:       true,
		Duration:      3 * time.Second,
		DurationHuman: "3s",
	}))

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)
	require.Equal(t, TypeTransfer, records[0].Type)

	var tr TransferRecord
	require.NoError(t, json.Unmarshal(records[0].Data, &tr))
	assert.Equal(t, "upload", tr.Op)
	assert.True(t, tr.Chunked)
	assert.Equal(t, int64(1<<30), tr.Bytes)
}

func TestJSONLWriter_ClosedRejectsWrites(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job", "s3")
	require.NoError(t, w.Close())

	err := w.WriteObject(context.Background(), &ObjectRecord{Key: "k"})
	assert.ErrorIs(t, err, ErrWriterClosed)
}

func TestJSONLWriter_CancelledContext(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job", "s3")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := w.WriteObject(ctx, &ObjectRecord{Key: "k"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, buf.Len())
}

// shortWriter writes one byte at a time to exercise the short-write loop.
type shortWriter struct {
	buf bytes.Buffer
}

func (s *shortWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return s.buf.Write(p[:1])
}

func TestJSONLWriter_ShortWrites(t *testing.T) {
	sw := &shortWriter{}
	w := NewJSONLWriter(sw, "job", "s3")

	require.NoError(t, w.WriteError(context.Background(), &ErrorRecord{Message: "boom", Key: "k"}))

	var rec Record
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(sw.buf.Bytes()), &rec))
	assert.Equal(t, TypeError, rec.Type)
}

func TestJSONLWriter_ConcurrentLinesDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job", "s3")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.WriteObject(context.Background(), &ObjectRecord{Key: "concurrent", Size: 1})
		}()
	}
	wg.Wait()

	records := decodeLines(t, &buf)
	assert.Len(t, records, 16)
}
