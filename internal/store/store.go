// Package store maintains the append-only position log. The log is a flat
// CSV file with a fixed header; rows are never modified or removed once
// appended, and it is the single source of truth for latest-position queries.
package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/oceanlab/driftwatch/internal/models"
)

var header = []string{"D_number", "date_UTC", "Latitude", "Longitude", "batteryState"}

// StorageError reports an I/O failure against the log. Fatal for the run:
// no further batches may be processed against an inconsistent store.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("record store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// RecordStore is the append-only log handle. Not safe for concurrent
// writers; single-instance execution is the orchestration layer's job.
type RecordStore struct {
	path string
}

func New(path string) *RecordStore {
	return &RecordStore{path: path}
}

func (s *RecordStore) Path() string { return s.path }

// Exists reports whether the log file has been created.
func (s *RecordStore) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && info.Size() > 0
}

// Append durably records a whole batch or nothing. The batch is written to a
// temp copy of the log which then replaces the original via rename, so an
// interruption mid-write can never leave a partial batch behind. The first
// append to an empty store establishes the header.
func (s *RecordStore) Append(batch []models.BuoyRecord) error {
	if len(batch) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".drifters-append-*")
	if err != nil {
		return &StorageError{Op: "append", Path: s.path, Err: err}
	}
	defer os.Remove(tmp.Name())

	writeHeader := true
	if s.Exists() {
		writeHeader = false
		src, err := os.Open(s.path)
		if err != nil {
			tmp.Close()
			return &StorageError{Op: "append", Path: s.path, Err: err}
		}
		_, err = io.Copy(tmp, src)
		src.Close()
		if err != nil {
			tmp.Close()
			return &StorageError{Op: "append", Path: s.path, Err: err}
		}
	}

	w := csv.NewWriter(tmp)
	if writeHeader {
		if err := w.Write(header); err != nil {
			tmp.Close()
			return &StorageError{Op: "append", Path: s.path, Err: err}
		}
	}
	for _, rec := range batch {
		row := []string{
			rec.ID,
			models.FormatTime(rec.Time),
			strconv.FormatFloat(rec.Latitude, 'f', -1, 64),
			strconv.FormatFloat(rec.Longitude, 'f', -1, 64),
			string(rec.Battery),
		}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return &StorageError{Op: "append", Path: s.path, Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return &StorageError{Op: "append", Path: s.path, Err: err}
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &StorageError{Op: "append", Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &StorageError{Op: "append", Path: s.path, Err: err}
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return &StorageError{Op: "append", Path: s.path, Err: err}
	}
	return nil
}

// Scan returns the full log in storage order. An empty or absent store scans
// to an empty slice. A row the store itself cannot parse means the log is
// corrupt, which is a storage failure, not a parse failure.
func (s *RecordStore) Scan() ([]models.BuoyRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &StorageError{Op: "scan", Path: s.path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, &StorageError{Op: "scan", Path: s.path, Err: err}
	}
	if len(rows) == 0 {
		return nil, nil
	}

	records := make([]models.BuoyRecord, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if len(row) < len(header) {
			return nil, &StorageError{Op: "scan", Path: s.path, Err: fmt.Errorf("row %d: expected %d fields, got %d", n+2, len(header), len(row))}
		}
		ts, err := models.ParseTime(row[1])
		if err != nil {
			return nil, &StorageError{Op: "scan", Path: s.path, Err: fmt.Errorf("row %d: bad date_UTC: %w", n+2, err)}
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return nil, &StorageError{Op: "scan", Path: s.path, Err: fmt.Errorf("row %d: bad Latitude: %w", n+2, err)}
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
		if err != nil {
			return nil, &StorageError{Op: "scan", Path: s.path, Err: fmt.Errorf("row %d: bad Longitude: %w", n+2, err)}
		}
		records = append(records, models.BuoyRecord{
			ID:        models.NormalizeID(row[0]),
			Time:      ts,
			Latitude:  lat,
			Longitude: lon,
			Battery:   models.BatteryState(row[4]),
		})
	}
	return records, nil
}
