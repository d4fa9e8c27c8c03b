package core

import (
	"fmt"

	"github.com/JonMunkholm/stationinbox/internal/geo"
)

// DefaultNearbyRadiusKm is the distance under which an upload or station
// counts as being at the same place.
const DefaultNearbyRadiusKm = 0.5

// Coordinates is a latitude/longitude pair in degrees.
// The (0,0) pair is the "absent" sentinel.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// IsZero reports whether c is the absent sentinel.
func (c Coordinates) IsZero() bool {
	return c.Lat == 0 && c.Lon == 0
}

// IsValid reports whether c is a usable position: inside
// [-90,90] x [-180,180] and not the zero sentinel.
func (c Coordinates) IsValid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180 && !c.IsZero()
}

// Within reports whether o lies closer than radiusKm to c.
func (c Coordinates) Within(o Coordinates, radiusKm float64) bool {
	return geo.Within(c.Lat, c.Lon, o.Lat, o.Lon, radiusKm)
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%g,%g", c.Lat, c.Lon)
}

// present returns the coordinates if the pointer is set and not the zero sentinel.
func present(c *Coordinates) (Coordinates, bool) {
	if c == nil || c.IsZero() {
		return Coordinates{}, false
	}
	return *c, true
}
