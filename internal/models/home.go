package models

import "time"

// HomePosition is the reference deployment coordinate for one buoy, plus the
// activation timestamp before which position reports are treated as noise.
// Provisioned out of band; read-only at runtime.
type HomePosition struct {
	ID          string
	Latitude    float64
	Longitude   float64
	ActivatedAt time.Time
}
