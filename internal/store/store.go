// Package store persists per-gage time series as flat text files, one
// reading per line. The <id>.cfs format is consumed directly by the dashboard
// and must stay comma-separated value,date,time.
package store

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/river-gage-etl/internal/domain"
)

// Store reads and writes gage data files under one base directory. Files are
// opened, fully read or appended, and closed per operation; the single batch
// process is the only writer.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New creates a store rooted at dir, creating it if needed.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// DataPath returns the gage's data file path.
func (s *Store) DataPath(g domain.Gage) string {
	return filepath.Join(s.dir, g.DataFile())
}

// ImagePath returns the gage's hydrograph image path.
func (s *Store) ImagePath(g domain.Gage) string {
	return filepath.Join(s.dir, g.ImageFile())
}

// Replace rewrites the gage's whole data file with the given readings.
// Window-fetch sources return the full plot window every run, so the previous
// contents are superseded. Unknown (sentinel) readings are not persisted.
func (s *Store) Replace(g domain.Gage, readings domain.Series) error {
	var b strings.Builder
	for _, r := range readings {
		if !r.Known {
			continue
		}
		b.WriteString(r.Encode(g.Units))
		b.WriteByte('\n')
	}

	if err := os.WriteFile(s.DataPath(g), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("replace series for %s: %w", g.ID, err)
	}
	return nil
}

// Append adds one reading to the end of the gage's data file. The caller is
// responsible for de-duplication; Append always appends. Unknown (sentinel)
// readings are not persisted: their placeholder value would read back as a
// real number.
func (s *Store) Append(g domain.Gage, r domain.Reading) error {
	if !r.Known {
		s.logger.Warn("not appending unknown reading", "gage", g.ID)
		return nil
	}

	f, err := os.OpenFile(s.DataPath(g), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open data file for %s: %w", g.ID, err)
	}
	defer f.Close()

	if _, err := f.WriteString(r.Encode(g.Units) + "\n"); err != nil {
		return fmt.Errorf("append reading for %s: %w", g.ID, err)
	}
	return nil
}

// WriteImage stores an upstream-rendered hydrograph image for the gage.
func (s *Store) WriteImage(g domain.Gage, img []byte) error {
	if err := os.WriteFile(s.ImagePath(g), img, 0o644); err != nil {
		return fmt.Errorf("write image for %s: %w", g.ID, err)
	}
	return nil
}

// Latest reads only the last stored line. An absent or malformed file yields
// a sentinel reading and a logged diagnostic, never an error: the dashboard
// must render with whatever exists.
func (s *Store) Latest(g domain.Gage) domain.Reading {
	line, ok := s.LastLine(g)
	if !ok {
		s.logger.Warn("no stored data for gage", "gage", g.ID)
		return domain.SentinelReading()
	}

	r, err := domain.ParseStoredLine(line)
	if err != nil {
		s.logger.Warn("malformed last line for gage", "gage", g.ID, "line", line, "error", err)
		return domain.SentinelReading()
	}
	return r
}

// LastLine returns the final non-empty line of the gage's data file, used by
// the rock-report client for duplicate suppression.
func (s *Store) LastLine(g domain.Gage) (string, bool) {
	f, err := os.Open(s.DataPath(g))
	if err != nil {
		return "", false
	}
	defer f.Close()

	var last string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			last = line
		}
	}
	if scanner.Err() != nil || last == "" {
		return "", false
	}
	return last, true
}

// Series reads the full stored series. Lines whose value field fails to parse
// are skipped with one corruption diagnostic each; one bad historical line
// must not block rendering of the rest. A missing file is an empty series.
func (s *Store) Series(g domain.Gage) (domain.Series, error) {
	path := s.DataPath(g)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open data file for %s: %w", g.ID, err)
	}
	defer f.Close()

	var series domain.Series
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		r, err := domain.ParseStoredLine(line)
		if err != nil {
			corrupt := &domain.CorruptRecordError{File: path, Line: lineNo, Text: line, Err: err}
			s.logger.Warn("skipping corrupt record", "gage", g.ID, "error", corrupt)
			continue
		}
		series = append(series, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read data file for %s: %w", g.ID, err)
	}

	return series, nil
}
