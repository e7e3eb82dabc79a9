package alert

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/oceanlab/driftwatch/internal/geo"
	"github.com/oceanlab/driftwatch/internal/ingest"
	"github.com/oceanlab/driftwatch/internal/models"
	"github.com/oceanlab/driftwatch/internal/registry"
)

// Engine is the per-buoy alert state machine. Each buoy carries two
// independent condition slots (drift, silence); a condition emits exactly one
// event per continuous excursion and clears when the triggering condition
// resolves. State is persisted after every batch so a crash mid-run does not
// re-notify already-handled buoys on restart.
type Engine struct {
	threshold float64
	reg       registry.Registry
	store     *StateStore
	state     State
	now       func() time.Time
}

func NewEngine(reg registry.Registry, store *StateStore, thresholdM float64) (*Engine, error) {
	state, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading alert state: %w", err)
	}
	return &Engine{
		threshold: thresholdM,
		reg:       reg,
		store:     store,
		state:     state,
		now:       time.Now,
	}, nil
}

// State returns the engine's current view of unresolved conditions.
func (e *Engine) State() State { return e.state }

// Evaluate runs one cleaned batch through the state machine and returns the
// events whose transitions it caused. The updated state has been persisted
// by the time Evaluate returns.
func (e *Engine) Evaluate(batchID string, batchTime time.Time, cleaned []models.BuoyRecord) ([]Event, error) {
	now := e.now().UTC()
	var events []Event

	latest := latestPerBuoy(cleaned)

	// Drift: latest in-batch position vs home position.
	for _, buoyID := range sortedKeys(latest) {
		rec := latest[buoyID]
		home, ok := e.reg[buoyID]
		if !ok {
			continue
		}
		dist := geo.Haversine(home.Latitude, home.Longitude, rec.Latitude, rec.Longitude)
		switch {
		case dist > e.threshold && !e.state.active(buoyID, CondDrift):
			e.state.arm(buoyID, CondDrift, now)
			current := rec
			events = append(events, Event{
				ID:        uuid.NewString(),
				Kind:      CondDrift,
				BuoyID:    buoyID,
				Home:      home,
				Current:   &current,
				DistanceM: dist,
				BatchID:   batchID,
				BatchTime: batchTime,
				At:        now,
			})
		case dist <= e.threshold:
			e.state.clear(buoyID, CondDrift)
		}
	}

	// Silence: every known buoy absent from the batch's reporting set.
	reporting := ingest.ReportingIDs(cleaned)
	for _, buoyID := range sortedKeys(e.reg.IDs()) {
		if _, present := reporting[buoyID]; present {
			e.state.clear(buoyID, CondSilence)
			continue
		}
		if e.state.active(buoyID, CondSilence) {
			continue
		}
		e.state.arm(buoyID, CondSilence, now)
		events = append(events, Event{
			ID:        uuid.NewString(),
			Kind:      CondSilence,
			BuoyID:    buoyID,
			Home:      e.reg[buoyID],
			BatchID:   batchID,
			BatchTime: batchTime,
			At:        now,
		})
	}

	if err := e.store.Save(e.state); err != nil {
		return nil, err
	}
	return events, nil
}

// latestPerBuoy picks each buoy's most recent record within the batch, by
// timestamp, last-in-batch winning ties.
func latestPerBuoy(records []models.BuoyRecord) map[string]models.BuoyRecord {
	latest := make(map[string]models.BuoyRecord, len(records))
	for _, rec := range records {
		prev, ok := latest[rec.ID]
		if !ok || !rec.Time.Before(prev.Time) {
			latest[rec.ID] = rec
		}
	}
	return latest
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
