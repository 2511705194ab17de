package geo

import (
	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the mean sphere radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// NearbyRadiusKm is the inclusion radius for proximity-filtered report listings.
const NearbyRadiusKm = 1.0

type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DistanceKm returns the great-circle distance in kilometers between two
// points given in decimal degrees. s2 computes the angle with the haversine
// formula; we scale it by the mean earth radius.
func DistanceKm(from, to Point) float64 {
	a := s2.LatLngFromDegrees(from.Latitude, from.Longitude)
	b := s2.LatLngFromDegrees(to.Latitude, to.Longitude)
	return a.Distance(b).Radians() * EarthRadiusKm
}

// WithinRadius reports whether to lies within radiusKm of from.
func WithinRadius(from, to Point, radiusKm float64) bool {
	return DistanceKm(from, to) <= radiusKm
}
