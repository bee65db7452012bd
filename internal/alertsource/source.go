// Package alertsource fetches alert documents and decodes them into records.
package alertsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/tinytelemetry/alertscope/internal/model"
)

// ErrExhausted is returned by one-shot sources (stdin) on a second fetch.
var ErrExhausted = errors.New("alert source already consumed")

// Source supplies the raw alert sequence for one dashboard load.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.AlertRecord, error)
}

// FileSource reads alerts from a local JSON file on every fetch.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return s.path }

// Fetch opens and decodes the file.
func (s *FileSource) Fetch(ctx context.Context) ([]model.AlertRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("alertsource: open %s: %w", s.path, err)
	}
	defer f.Close()

	records, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("alertsource: decode %s: %w", s.path, err)
	}
	return records, nil
}

// ReaderSource decodes a single stream such as stdin. The stream can only be
// consumed once; later fetches return ErrExhausted.
type ReaderSource struct {
	name string
	mu   sync.Mutex
	r    io.Reader
}

// NewReaderSource wraps r as a one-shot source.
func NewReaderSource(name string, r io.Reader) *ReaderSource {
	return &ReaderSource{name: name, r: r}
}

func (s *ReaderSource) Name() string { return s.name }

// Fetch decodes the stream on first call.
func (s *ReaderSource) Fetch(ctx context.Context) ([]model.AlertRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.r == nil {
		return nil, fmt.Errorf("alertsource: %s: %w", s.name, ErrExhausted)
	}
	r := s.r
	s.r = nil

	records, err := Decode(r)
	if err != nil {
		return nil, fmt.Errorf("alertsource: decode %s: %w", s.name, err)
	}
	return records, nil
}

// Open picks a source for location: "-" reads stdin, http(s) URLs are
// fetched over HTTP, anything else (optionally file://) is a local path.
func Open(location string, conf ...HTTPConfig) (Source, error) {
	location = strings.TrimSpace(location)
	switch {
	case location == "":
		return nil, fmt.Errorf("alertsource: empty source location")
	case location == "-":
		return NewReaderSource("stdin", os.Stdin), nil
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return NewHTTPSource(location, conf...), nil
	case strings.HasPrefix(location, "file://"):
		return NewFileSource(strings.TrimPrefix(location, "file://")), nil
	default:
		return NewFileSource(location), nil
	}
}
