// Package geo holds geographic helpers for spatial attributes: coordinate
// validation, great-circle distance and the unit-sphere embedding used in pivot space.
package geo

import "math"

// EarthRadiusMeters is the mean radius of Earth used for Haversine distance.
const EarthRadiusMeters = 6_371_000.0

// ECEFDim is the dimension of the unit-sphere embedding.
const ECEFDim = 3

// ToECEF converts longitude/latitude (degrees) to a unit-sphere ECEF vector.
// Euclidean distance between such vectors grows monotonically with great-circle distance.
func ToECEF(lonDeg, latDeg float64) []float64 {
	lat := latDeg * math.Pi / 180
	lon := lonDeg * math.Pi / 180
	return []float64{
		math.Cos(lat) * math.Cos(lon),
		math.Cos(lat) * math.Sin(lon),
		math.Sin(lat),
	}
}

// Haversine returns the great-circle distance in meters between two points
// given as longitude/latitude in degrees.
func Haversine(lon1, lat1, lon2, lat2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// ValidateCoordinates checks that longitude is in [-180,180] and latitude in [-90,90].
func ValidateCoordinates(lon, lat float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
