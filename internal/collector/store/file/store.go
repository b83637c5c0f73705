// Package file stores collector events as newline-delimited JSON on local disk.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"pdftrack/internal/collector/models"
	"pdftrack/pkg/platform/ndjson"
	"pdftrack/pkg/platform/sentinel"
)

// DefaultPath is the store location used when none is configured.
const DefaultPath = "pdf_access_log.jsonl"

// Store appends one event per line under an exclusive file lock, so concurrent
// POSTs never lose each other's writes. It also reads files written in the
// older single JSON array format; new events are then appended as lines after
// the array.
type Store struct {
	file *ndjson.File
}

func New(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{file: ndjson.Open(path)}
}

func (s *Store) Path() string {
	return s.file.Path()
}

func (s *Store) Append(ctx context.Context, event models.Event) error {
	if err := s.file.Append(ctx, event); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// List returns every stored event in append order. A missing file is empty.
func (s *Store) List(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	err := s.file.Read(ctx, func(r io.Reader) error {
		var err error
		events, err = decode(r)
		return err
	})
	if errors.Is(err, sentinel.ErrNotFound) {
		return []models.Event{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// decode accepts an optional leading JSON array followed by NDJSON lines.
func decode(r io.Reader) ([]models.Event, error) {
	br := bufio.NewReader(r)
	first, err := firstNonSpace(br)
	if errors.Is(err, io.EOF) {
		return []models.Event{}, nil
	}
	if err != nil {
		return nil, err
	}
	if first != '[' {
		return ndjson.Decode[models.Event](br)
	}

	dec := json.NewDecoder(br)
	var legacy []models.Event
	if err := dec.Decode(&legacy); err != nil {
		return nil, fmt.Errorf("%w: legacy array: %v", sentinel.ErrCorrupt, err)
	}
	rest, err := ndjson.Decode[models.Event](io.MultiReader(dec.Buffered(), br))
	if err != nil {
		return nil, err
	}
	return append(legacy, rest...), nil
}

func firstNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}
