// Package transfer exports the record collection to a portable JSON file and
// imports such a file back, replacing the whole collection.
//
// The file is a JSON array of {"id", "completed", "timestamp"} objects written
// with two-space indentation. Import tolerates extra fields and skips entries
// that fail validation; it rejects the file outright only when its overall
// shape is wrong, before anything is written.
package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/idilsaglam/tracker/internal/model"
	"github.com/idilsaglam/tracker/internal/syncer"
)

// ErrNothingToExport is returned by Export when the collection is empty.
var ErrNothingToExport = errors.New("nothing to export")

// FormatError reports a file whose overall shape is not importable.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return "invalid progress file: " + e.Reason }

// Syncer is the part of the synchronizer the transfer needs.
type Syncer interface {
	Snapshot(ctx context.Context) ([]model.Record, error)
	Replace(ctx context.Context, recs []model.Record) (syncer.LoadReport, error)
}

// Result of an import.
type Result struct {
	Imported int
	Invalid  int
	Refresh  syncer.LoadReport
}

// Service runs exports and imports through a Syncer.
type Service struct {
	sync Syncer
	log  *slog.Logger
	now  func() time.Time
}

// New returns a Service. A nil logger uses slog.Default().
func New(s Syncer, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{sync: s, log: log.With("component", "transfer"), now: time.Now}
}

// DefaultFileName is the export file name for day t.
func DefaultFileName(t time.Time) string {
	return "progress-" + t.Format("2006-01-02") + ".json"
}

// Encode writes recs in the portable format.
func Encode(w io.Writer, recs []model.Record) error {
	if recs == nil {
		recs = []model.Record{}
	}
	b, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	b = append(b, '\n')
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Export writes the whole collection to w and returns how many records it wrote.
func (s *Service) Export(ctx context.Context, w io.Writer) (int, error) {
	recs, err := s.sync.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("read records: %w", err)
	}
	if len(recs) == 0 {
		return 0, ErrNothingToExport
	}
	if err := Encode(w, recs); err != nil {
		return 0, err
	}
	s.log.Info("exported", "records", len(recs))
	return len(recs), nil
}

// ExportFile writes the collection to path, or to DefaultFileName in the
// working directory when path is empty. Nothing is created when there is
// nothing to export.
func (s *Service) ExportFile(ctx context.Context, path string) (string, int, error) {
	if path == "" {
		path = DefaultFileName(s.now())
	}
	var buf bytes.Buffer
	n, err := s.Export(ctx, &buf)
	if err != nil {
		return path, 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".progress-*.json")
	if err != nil {
		return path, 0, fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return path, 0, fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return path, 0, fmt.Errorf("write file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return path, 0, fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return path, 0, fmt.Errorf("rename: %w", err)
	}
	return path, n, nil
}

// Decode parses a progress file. It returns a *FormatError when the file holds
// anything besides one JSON value, when the top level is not a non-empty array or when its first element lacks id or completed.
// Entries without a non-empty string id or a boolean completed are counted in
// invalid and left out. A missing or non-integer timestamp is replaced by now.
func Decode(r io.Reader, now time.Time) (recs []model.Record, invalid int, err error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var top any
	if err := dec.Decode(&top); err != nil {
		return nil, 0, &FormatError{Reason: "not valid JSON: " + err.Error()}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, 0, &FormatError{Reason: "unexpected data after the record list"}
	}
	entries, ok := top.([]any)
	if !ok {
		return nil, 0, &FormatError{Reason: "expected a list of records"}
	}
	if len(entries) == 0 {
		return nil, 0, &FormatError{Reason: "the file contains no records"}
	}
	first, ok := entries[0].(map[string]any)
	if !ok {
		return nil, 0, &FormatError{Reason: "first record is not an object"}
	}
	for _, field := range []string{"id", "completed"} {
		if _, ok := first[field]; !ok {
			return nil, 0, &FormatError{Reason: "first record has no " + field + " field"}
		}
	}

	recs = make([]model.Record, 0, len(entries))
	for _, e := range entries {
		rec, ok := decodeRecord(e, now)
		if !ok {
			invalid++
			continue
		}
		recs = append(recs, rec)
	}
	return recs, invalid, nil
}

func decodeRecord(e any, now time.Time) (model.Record, bool) {
	m, ok := e.(map[string]any)
	if !ok {
		return model.Record{}, false
	}
	id, ok := m["id"].(string)
	if !ok || id == "" {
		return model.Record{}, false
	}
	completed, ok := m["completed"].(bool)
	if !ok {
		return model.Record{}, false
	}
	rec := model.NewRecord(id, completed, now)
	if n, ok := m["timestamp"].(json.Number); ok {
		if ts, err := n.Int64(); err == nil {
			rec.Timestamp = ts
		}
	}
	return rec, true
}

// Import replaces the collection with the valid records read from r and
// refreshes the checklist from the store. Nothing is written when the file's
// shape is invalid.
func (s *Service) Import(ctx context.Context, r io.Reader) (Result, error) {
	recs, invalid, err := Decode(r, s.now())
	if err != nil {
		return Result{}, err
	}
	if invalid > 0 {
		s.log.Debug("skipped invalid records", "count", invalid)
	}

	rep, err := s.sync.Replace(ctx, recs)
	if err != nil {
		return Result{Invalid: invalid}, fmt.Errorf("import: %w", err)
	}
	s.log.Info("imported", "records", len(recs), "invalid", invalid)
	return Result{Imported: len(recs), Invalid: invalid, Refresh: rep}, nil
}

// ImportFile imports the file at path.
func (s *Service) ImportFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return s.Import(ctx, f)
}

// Peek decodes the file at path without importing it; used to describe an
// import before confirming it.
func Peek(path string) (valid, invalid int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	recs, invalid, err := Decode(f, time.Now())
	return len(recs), invalid, err
}
