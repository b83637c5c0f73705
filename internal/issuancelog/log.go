// Package issuancelog is the durable, append-only local record of every issuance.
// Records are newline-delimited JSON; the file is created on first append and
// never rotated, truncated or rewritten.
package issuancelog

import (
	"context"
	"errors"

	"pdftrack/internal/tracking"
	dErrors "pdftrack/pkg/domain-errors"
	"pdftrack/pkg/platform/ndjson"
	"pdftrack/pkg/platform/sentinel"
)

// DefaultPath is the log location used when none is configured.
const DefaultPath = "tracking_log.txt"

// Log appends and reads issuance records.
type Log struct {
	file *ndjson.File
}

// New returns a Log backed by path.
func New(path string) *Log {
	if path == "" {
		path = DefaultPath
	}
	return &Log{file: ndjson.Open(path)}
}

// Path returns the backing file path.
func (l *Log) Path() string {
	return l.file.Path()
}

// Append writes rec as one atomic line. Any failure is a LogWriteFailure and
// must fail the issuance.
func (l *Log) Append(ctx context.Context, rec tracking.IssuanceRecord) error {
	if err := l.file.Append(ctx, rec); err != nil {
		return dErrors.Wrap(err, dErrors.CodeLogWriteFailed, "append issuance record")
	}
	return nil
}

// ReadAll returns every record in append order. A missing log is empty; a
// malformed line fails the read rather than being skipped.
func (l *Log) ReadAll(ctx context.Context) ([]tracking.IssuanceRecord, error) {
	recs, err := ndjson.ReadAll[tracking.IssuanceRecord](ctx, l.file)
	if err != nil {
		if errors.Is(err, sentinel.ErrCorrupt) {
			return nil, dErrors.Wrap(err, dErrors.CodeStoreCorrupt, "parse issuance log")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read issuance log")
	}
	return recs, nil
}
