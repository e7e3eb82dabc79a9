package models

import (
	"strings"
	"time"
)

// TimeLayout is the textual timestamp pattern used by every CSV the pipeline
// reads or writes (date_UTC columns). All timestamps are UTC.
const TimeLayout = "2006-01-02 15:04:05"

type BatteryState string

const (
	BatteryGood    BatteryState = "GOOD"
	BatteryLow     BatteryState = "LOW"
	BatteryUnknown BatteryState = "UNKNOWN"
)

// ParseBatteryState normalizes a raw batteryState column value. Values other
// than GOOD/LOW are kept verbatim (upper-cased) so the raw reading survives
// the round trip through the log.
func ParseBatteryState(raw string) BatteryState {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return BatteryUnknown
	}
	return BatteryState(s)
}

// BuoyRecord is one position report. Immutable once appended to the log.
type BuoyRecord struct {
	ID        string // D_number
	Time      time.Time
	Latitude  float64
	Longitude float64
	Battery   BatteryState
}

// NormalizeID canonicalizes a buoy identifier so that lookups between
// ingested rows and the home registry cannot miss on incidental whitespace.
// IDs stay strings end to end; numeric coercion is a known failure class.
func NormalizeID(raw string) string {
	return strings.TrimSpace(raw)
}

func ParseTime(raw string) (time.Time, error) {
	return time.ParseInLocation(TimeLayout, strings.TrimSpace(raw), time.UTC)
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
