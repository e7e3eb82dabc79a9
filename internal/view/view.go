// Package view materializes the latest-position projection: one most-recent
// record per buoy, annotated with distance from home and transmission
// status. The view is a pure, full reduction of the log, never updated
// incrementally, so it self-heals from any inconsistency in the store.
package view

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/oceanlab/driftwatch/internal/geo"
	"github.com/oceanlab/driftwatch/internal/models"
	"github.com/oceanlab/driftwatch/internal/registry"
)

type TransmissionStatus string

const (
	StatusReporting TransmissionStatus = "reporting"
	StatusMissing   TransmissionStatus = "missing"
)

type Entry struct {
	Record    models.BuoyRecord
	DistanceM float64
	Status    TransmissionStatus
}

type View map[string]Entry

var header = []string{"D_number", "date_UTC", "Latitude", "Longitude", "batteryState", "distance_m", "status"}

// Build reduces the full log to the latest record per buoy. Ties on
// timestamp resolve to the later record in storage order. Buoys without a
// home entry are excluded; buoys known to the registry but absent from
// reporting are flagged missing, last known record left unchanged.
func Build(records []models.BuoyRecord, reg registry.Registry, reporting map[string]struct{}) View {
	latest := make(map[string]models.BuoyRecord, len(reg))
	for _, rec := range records {
		if _, known := reg[rec.ID]; !known {
			continue
		}
		prev, ok := latest[rec.ID]
		if !ok || !rec.Time.Before(prev.Time) {
			latest[rec.ID] = rec
		}
	}

	v := make(View, len(latest))
	for id, rec := range latest {
		home := reg[id]
		status := StatusReporting
		if _, ok := reporting[id]; !ok {
			status = StatusMissing
		}
		v[id] = Entry{
			Record:    rec,
			DistanceM: geo.Haversine(home.Latitude, home.Longitude, rec.Latitude, rec.Longitude),
			Status:    status,
		}
	}
	return v
}

// Write regenerates the latest-positions CSV wholesale, atomically, sorted
// by buoy ID so rebuilding an unchanged store yields identical bytes.
func Write(path string, v View) error {
	ids := make([]string, 0, len(v))
	for id := range v {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".latest-*")
	if err != nil {
		return fmt.Errorf("writing latest view %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("writing latest view %s: %w", path, err)
	}
	for _, id := range ids {
		entry := v[id]
		row := []string{
			id,
			models.FormatTime(entry.Record.Time),
			strconv.FormatFloat(entry.Record.Latitude, 'f', -1, 64),
			strconv.FormatFloat(entry.Record.Longitude, 'f', -1, 64),
			string(entry.Record.Battery),
			strconv.FormatFloat(entry.DistanceM, 'f', 1, 64),
			string(entry.Status),
		}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("writing latest view %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("writing latest view %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing latest view %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing latest view %s: %w", path, err)
	}
	return nil
}

// Load reads a previously written latest-positions CSV, for consumers that
// only see the artifact (the API server).
func Load(path string) (View, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading latest view %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading latest view %s: %w", path, err)
	}
	if len(rows) == 0 {
		return View{}, nil
	}

	v := make(View, len(rows)-1)
	for n, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("latest view %s row %d: expected %d fields, got %d", path, n+2, len(header), len(row))
		}
		ts, err := models.ParseTime(row[1])
		if err != nil {
			return nil, fmt.Errorf("latest view %s row %d: %w", path, n+2, err)
		}
		lat, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("latest view %s row %d: %w", path, n+2, err)
		}
		lon, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return nil, fmt.Errorf("latest view %s row %d: %w", path, n+2, err)
		}
		dist, err := strconv.ParseFloat(row[5], 64)
		if err != nil {
			return nil, fmt.Errorf("latest view %s row %d: %w", path, n+2, err)
		}
		id := models.NormalizeID(row[0])
		v[id] = Entry{
			Record: models.BuoyRecord{
				ID:        id,
				Time:      ts,
				Latitude:  lat,
				Longitude: lon,
				Battery:   models.BatteryState(strings.TrimSpace(row[4])),
			},
			DistanceM: dist,
			Status:    TransmissionStatus(row[6]),
		}
	}
	return v, nil
}
