package geo

import "math"

// Earth radius in meters (spherical model).
const earthRadiusM = 6371000.0

// Haversine returns the great-circle distance in meters between two
// latitude/longitude points. This is the canonical distance metric for the
// whole pipeline; drift evaluation and the latest view must both use it.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(a))
}
