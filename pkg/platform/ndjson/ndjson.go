// Package ndjson implements an append-only newline-delimited JSON file shared by
// concurrent writers. Every record is written with a single write(2) on an
// O_APPEND descriptor while holding an exclusive advisory lock, so lines from
// different goroutines or processes never interleave.
package ndjson

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"pdftrack/pkg/platform/sentinel"
)

const (
	lockRetryDelay = 10 * time.Millisecond
	maxLineBytes   = 4 << 20
)

// File is a handle on one NDJSON file. Opening a File performs no I/O; the
// backing file is created on first append.
type File struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// Open returns a handle for path. The advisory lock lives next to the data in
// "<path>.lock".
func Open(path string) *File {
	return &File{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the data file path.
func (f *File) Path() string {
	return f.path
}

// Append encodes v as one line and appends it. Encoding happens before the file
// is touched, so an unencodable value leaves existing records intact.
func (f *File) Append(ctx context.Context, v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	line = append(line, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()

	locked, err := f.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", f.path, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: %w", f.path, sentinel.ErrUnavailable)
	}
	defer func() { _ = f.lock.Unlock() }()

	fd, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.path, err)
	}

	n, err := fd.Write(line)
	if err == nil && n < len(line) {
		err = io.ErrShortWrite
	}
	if err == nil {
		err = fd.Sync()
	}
	if cerr := fd.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	return nil
}

// Exists reports whether the data file has been created.
func (f *File) Exists() (bool, error) {
	_, err := os.Stat(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Read opens the data file under a shared lock and passes it to fn. A missing
// file yields sentinel.ErrNotFound without creating anything.
//
// Taking the shared lock creates the "<path>.lock" sidecar when it is absent.
// When the sidecar cannot be opened at all, for example because the log sits
// in a read-only directory, the data file is read without the lock.
func (f *File) Read(ctx context.Context, fn func(r io.Reader) error) error {
	ok, err := f.Exists()
	if err != nil {
		return fmt.Errorf("stat %s: %w", f.path, err)
	}
	if !ok {
		return sentinel.ErrNotFound
	}

	locked, err := f.lock.TryRLockContext(ctx, lockRetryDelay)
	var openErr *fs.PathError
	switch {
	case err != nil && errors.As(err, &openErr):
		// sidecar unavailable; read unlocked
	case err != nil:
		return fmt.Errorf("lock %s: %w", f.path, err)
	case !locked:
		return fmt.Errorf("lock %s: %w", f.path, sentinel.ErrUnavailable)
	default:
		defer func() { _ = f.lock.Unlock() }()
	}

	fd, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.path, err)
	}
	defer fd.Close()
	return fn(fd)
}

// ReadAll decodes every line of f into T in file order. A missing file reads as
// an empty slice; a line that does not decode fails the whole read with an
// error wrapping sentinel.ErrCorrupt.
func ReadAll[T any](ctx context.Context, f *File) ([]T, error) {
	var out []T
	err := f.Read(ctx, func(r io.Reader) error {
		var err error
		out, err = Decode[T](r)
		return err
	})
	if errors.Is(err, sentinel.ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Decode reads newline-delimited records from r. Blank lines are ignored.
func Decode[T any](r io.Reader) ([]T, error) {
	out := []T{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var rec T
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", sentinel.ErrCorrupt, lineNo, err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", sentinel.ErrCorrupt, err)
	}
	return out, nil
}
