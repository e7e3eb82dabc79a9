// Package registry loads and holds the home positions of the buoy fleet.
// Reference data only: loaded once per run, never mutated by the pipeline.
package registry

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/oceanlab/driftwatch/internal/models"
)

// ConfigurationError reports absent or malformed home reference data. It is
// fatal for the run: no batch may be touched without a usable registry.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("home registry %s: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Registry maps normalized buoy IDs to their home positions.
type Registry map[string]models.HomePosition

// IDs returns the set of all known buoy IDs.
func (r Registry) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(r))
	for id := range r {
		ids[id] = struct{}{}
	}
	return ids
}

// Load reads the home positions CSV. Expected header columns are D_number,
// Latitude and Longitude; the last column carries the activation timestamp.
// A UTF-8 BOM and incidental whitespace are tolerated, matching the files
// operators actually hand over.
func Load(path string) (Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}
	if len(rows) < 1 {
		return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("empty file")}
	}

	header := rows[0]
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	if len(header) < 4 {
		return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("expected at least 4 columns, got %d", len(header))}
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"D_number", "Latitude", "Longitude"} {
		if _, ok := idx[required]; !ok {
			return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("missing column %q", required)}
		}
	}
	activationCol := len(header) - 1

	reg := make(Registry, len(rows)-1)
	for n, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("row %d: expected %d fields, got %d", n+2, len(header), len(row))}
		}

		id := models.NormalizeID(row[idx["D_number"]])
		if id == "" {
			return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("row %d: empty D_number", n+2)}
		}
		if _, dup := reg[id]; dup {
			return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("row %d: duplicate D_number %q", n+2, id)}
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(row[idx["Latitude"]]), 64)
		if err != nil {
			return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("row %d: bad Latitude: %w", n+2, err)}
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(row[idx["Longitude"]]), 64)
		if err != nil {
			return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("row %d: bad Longitude: %w", n+2, err)}
		}
		activated, err := models.ParseTime(row[activationCol])
		if err != nil {
			return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("row %d: bad activation time: %w", n+2, err)}
		}

		reg[id] = models.HomePosition{
			ID:          id,
			Latitude:    lat,
			Longitude:   lon,
			ActivatedAt: activated,
		}
	}

	return reg, nil
}
