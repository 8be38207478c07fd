// Package output emits machine-readable JSONL records for CLI results.
//
// Each line is a self-contained envelope with a versioned type tag, so
// downstream consumers can parse a mixed stream record by record.
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants. The pattern is objstream.<type>.v<version>.
const (
	// TypeObject identifies object listing records.
	TypeObject = "objstream.object.v1"

	// TypeTransfer identifies completed transfer records.
	TypeTransfer = "objstream.transfer.v1"

	// TypeSummary identifies end-of-run summary records.
	TypeSummary = "objstream.summary.v1"

	// TypeError identifies error records.
	TypeError = "objstream.error.v1"
)

// Record is the envelope for all JSONL output. The Type field determines how
// to interpret the Data payload.
type Record struct {
	Type string `json:"type"`

	// TS is when the record was created.
	TS time.Time `json:"ts"`

	// JobID correlates records from one CLI invocation.
	JobID string `json:"job_id"`

	// Provider identifies the storage provider (e.g., "s3", "gcs").
	Provider string `json:"provider"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// ObjectRecord is the data payload for a listed object or directory.
type ObjectRecord struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified,omitzero"`

	// Dir is true for common-prefix (directory) entries.
	Dir bool `json:"dir,omitempty"`
}

// TransferRecord is the data payload for one completed transfer.
type TransferRecord struct {
	// Op is the transfer direction: "upload" or "download".
	Op string `json:"op"`

	Key       string `json:"key"`
	LocalPath string `json:"local_path,omitempty"`
	Bytes     int64  `json:"bytes"`

	// Chunked is true when the transfer used the multipart engine.
	Chunked bool `json:"chunked"`

	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`
}

// SummaryRecord is the data payload emitted at the end of a listing run.
type SummaryRecord struct {
	Objects     int64         `json:"objects"`
	Directories int64         `json:"directories"`
	BytesTotal  int64         `json:"bytes_total"`
	Duration    time.Duration `json:"duration_ns"`
}

// ErrorRecord is the data payload for errors surfaced mid-stream.
type ErrorRecord struct {
	Message string `json:"message"`
	Key     string `json:"key,omitempty"`
}

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = errors.New("writer is closed")

// WriteError wraps errors from write operations with the failed stage.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
