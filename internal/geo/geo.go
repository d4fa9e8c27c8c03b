// Package geo provides the distance and bounding-box arithmetic used for
// nearby-coordinate conflict checks.
//
// Distances are great-circle distances on a spherical earth computed with
// the s2 geometry library.
package geo

import (
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the mean earth radius.
const EarthRadiusKm = 6371.0088

// DistanceKm returns the great-circle distance between two points given in degrees.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	a := s2.LatLngFromDegrees(lat1, lon1)
	b := s2.LatLngFromDegrees(lat2, lon2)
	return a.Distance(b).Radians() * EarthRadiusKm
}

// Within reports whether the two points are strictly closer than radiusKm.
func Within(lat1, lon1, lat2, lon2, radiusKm float64) bool {
	return DistanceKm(lat1, lon1, lat2, lon2) < radiusKm
}

// Box is a latitude/longitude rectangle in degrees.
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Contains reports whether the point lies inside the box, edges included.
func (b Box) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// BoundingBox returns a rectangle containing every point within radiusKm of
// the center. A circle crossing the antimeridian yields the full longitude band.
func BoundingBox(lat, lon, radiusKm float64) Box {
	center := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))
	circle := s2.CapFromCenterAngle(center, s1.Angle(radiusKm/EarthRadiusKm))
	rect := circle.RectBound()

	box := Box{
		MinLat: rect.Lo().Lat.Degrees(),
		MaxLat: rect.Hi().Lat.Degrees(),
		MinLon: rect.Lo().Lng.Degrees(),
		MaxLon: rect.Hi().Lng.Degrees(),
	}
	if rect.Lng.IsInverted() || rect.Lng.IsFull() {
		box.MinLon, box.MaxLon = -180, 180
	}
	return box
}
