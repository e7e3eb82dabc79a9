// Package render regenerates the fleet map artifact consumed by operators:
// a self-contained Leaflet page with home positions and the latest reported
// position per buoy. Regenerated wholesale after every run, like the view.
package render

import (
	"fmt"
	"html/template"
	"os"
	"sort"

	"github.com/oceanlab/driftwatch/internal/models"
	"github.com/oceanlab/driftwatch/internal/registry"
	"github.com/oceanlab/driftwatch/internal/view"
)

type marker struct {
	ID        string
	Lat       float64
	Lon       float64
	Color     string
	Battery   string
	Time      string
	DistanceM float64
}

type homeMarker struct {
	ID  string
	Lat float64
	Lon float64
}

type mapData struct {
	CenterLat float64
	CenterLon float64
	Markers   []marker
	Homes     []homeMarker
}

// batteryColor mirrors the classification used on the operator map:
// GOOD green, LOW orange, anything else (incl. UNKNOWN) red.
func batteryColor(b models.BatteryState) string {
	switch b {
	case models.BatteryGood:
		return "green"
	case models.BatteryLow:
		return "orange"
	default:
		return "red"
	}
}

// WriteMap renders the map HTML for the given view and registry.
func WriteMap(path string, v view.View, reg registry.Registry) error {
	data := mapData{}

	var sumLat, sumLon float64
	var count int
	for _, home := range reg {
		sumLat += home.Latitude
		sumLon += home.Longitude
		count++
	}

	ids := make([]string, 0, len(v))
	for id := range v {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		entry := v[id]
		sumLat += entry.Record.Latitude
		sumLon += entry.Record.Longitude
		count++
		data.Markers = append(data.Markers, marker{
			ID:        id,
			Lat:       entry.Record.Latitude,
			Lon:       entry.Record.Longitude,
			Color:     batteryColor(entry.Record.Battery),
			Battery:   string(entry.Record.Battery),
			Time:      models.FormatTime(entry.Record.Time),
			DistanceM: entry.DistanceM,
		})
	}

	homeIDs := make([]string, 0, len(reg))
	for id := range reg {
		homeIDs = append(homeIDs, id)
	}
	sort.Strings(homeIDs)
	for _, id := range homeIDs {
		home := reg[id]
		data.Homes = append(data.Homes, homeMarker{ID: id, Lat: home.Latitude, Lon: home.Longitude})
	}

	if count > 0 {
		data.CenterLat = sumLat / float64(count)
		data.CenterLon = sumLon / float64(count)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing map %s: %w", path, err)
	}
	defer f.Close()

	if err := mapTemplate.Execute(f, data); err != nil {
		return fmt.Errorf("rendering map %s: %w", path, err)
	}
	return nil
}

var mapTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Drifter positions</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>html, body, #map { height: 100%; margin: 0; }</style>
</head>
<body>
<div id="map"></div>
<script>
var map = L.map('map').setView([{{.CenterLat}}, {{.CenterLon}}], 10);
L.tileLayer('https://tile.openstreetmap.org/{z}/{x}/{y}.png', {
  attribution: '&copy; OpenStreetMap contributors'
}).addTo(map);
{{range .Homes}}
L.circleMarker([{{.Lat}}, {{.Lon}}], {
  radius: 6, color: 'black', fillColor: 'black', fillOpacity: 0.5
}).addTo(map).bindPopup({{printf "%s (home)" .ID}});
{{end}}
{{range .Markers}}
L.circleMarker([{{.Lat}}, {{.Lon}}], {
  radius: 8, color: {{.Color}}, fillColor: {{.Color}}, fillOpacity: 0.8
}).addTo(map).bindPopup({{printf "<b>%s</b><br>Status: %s<br>DateTime: %s<br>Distance: %.1f m" .ID .Battery .Time .DistanceM}});
{{end}}
</script>
</body>
</html>
`))
