package api

import (
	"sort"

	"github.com/oceanlab/driftwatch/internal/models"
	"github.com/oceanlab/driftwatch/internal/view"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

func toGeoJSON(v view.View) FeatureCollection {
	ids := make([]string, 0, len(v))
	for id := range v {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	features := make([]Feature, 0, len(v))
	for _, id := range ids {
		entry := v[id]
		f := Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{entry.Record.Longitude, entry.Record.Latitude},
			},
			Properties: map[string]any{
				"buoy":          id,
				"date_utc":      models.FormatTime(entry.Record.Time),
				"battery_state": string(entry.Record.Battery),
				"distance_m":    entry.DistanceM,
				"status":        string(entry.Status),
			},
		}
		features = append(features, f)
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
