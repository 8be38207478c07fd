package output

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Writer emits JSONL records. Implementations must be safe for concurrent
// use; each method writes one complete line.
type Writer interface {
	WriteObject(ctx context.Context, obj *ObjectRecord) error
	WriteTransfer(ctx context.Context, tr *TransferRecord) error
	WriteSummary(ctx context.Context, sum *SummaryRecord) error
	WriteError(ctx context.Context, rec *ErrorRecord) error

	// Close flushes buffered output. The underlying io.Writer is the
	// caller's to close.
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON. Writes are serialized
// under a mutex so lines never interleave.
type JSONLWriter struct {
	w        io.Writer
	jobID    string
	provider string

	mu     sync.Mutex
	closed bool
}

// NewJSONLWriter creates a writer stamping each record with the given job ID
// and provider name.
func NewJSONLWriter(w io.Writer, jobID, provider string) *JSONLWriter {
	return &JSONLWriter{w: w, jobID: jobID, provider: provider}
}

func (jw *JSONLWriter) WriteObject(ctx context.Context, obj *ObjectRecord) error {
	return jw.writeRecord(ctx, TypeObject, obj)
}

func (jw *JSONLWriter) WriteTransfer(ctx context.Context, tr *TransferRecord) error {
	return jw.writeRecord(ctx, TypeTransfer, tr)
}

func (jw *JSONLWriter) WriteSummary(ctx context.Context, sum *SummaryRecord) error {
	return jw.writeRecord(ctx, TypeSummary, sum)
}

func (jw *JSONLWriter) WriteError(ctx context.Context, rec *ErrorRecord) error {
	return jw.writeRecord(ctx, TypeError, rec)
}

func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	jw.closed = true
	return nil
}

func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Marshal the payload outside the lock.
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}

	record := Record{
		Type:     recordType,
		TS:       time.Now().UTC(),
		JobID:    jw.jobID,
		Provider: jw.provider,
		Data:     dataBytes,
	}
	recordBytes, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

// writeAll loops until all bytes are written. io.Writer may return n < len(p)
// with a nil error, which would truncate a JSONL line.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

var _ Writer = (*JSONLWriter)(nil)
