package alert

import (
	"fmt"
	"time"

	"github.com/oceanlab/driftwatch/internal/models"
)

// Event is one notification-worthy state transition. The engine only emits
// events; delivery is the dispatcher's problem, so the state machine stays
// testable without a live notification channel.
type Event struct {
	ID        string
	Kind      Condition
	BuoyID    string
	Home      models.HomePosition
	Current   *models.BuoyRecord // nil for silence events
	DistanceM float64
	BatchID   string
	BatchTime time.Time
	At        time.Time
}

// Subject renders the notification subject line.
func (e Event) Subject() string {
	switch e.Kind {
	case CondSilence:
		return fmt.Sprintf("Alert: Buoy %s missing in batch %s", e.BuoyID, e.BatchTime.Format(models.TimeLayout))
	default:
		return fmt.Sprintf("Alert: Buoy %s moved %.1f m", e.BuoyID, e.DistanceM)
	}
}

// Body renders the notification body.
func (e Event) Body() string {
	if e.Kind == CondSilence {
		return fmt.Sprintf(
			"Buoy %s did not transmit this batch.\nBatch time: %s",
			e.BuoyID, e.BatchTime.Format(models.TimeLayout))
	}
	return fmt.Sprintf(
		"Buoy ID: %s\nDistance moved: %.1f m\nHome pos: (%.5f,%.5f)\nCurrent: (%.5f,%.5f)",
		e.BuoyID, e.DistanceM,
		e.Home.Latitude, e.Home.Longitude,
		e.Current.Latitude, e.Current.Longitude)
}
