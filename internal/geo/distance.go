// Package geo holds the great-circle helpers used by kitchen proximity searches.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// EarthRadiusKm is the mean radius used by the haversine formula.
const EarthRadiusKm = 6371.0

var ErrInvalidCoordinates = errors.New("invalid coordinates")

// DistanceKm returns the haversine distance between two points in kilometers.
func DistanceKm(a, b orb.Point) float64 {
	lat1 := a.Lat() * math.Pi / 180
	lat2 := b.Lat() * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Lon() - a.Lon()) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	// rounding can push h slightly outside [0,1] near antipodes
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// orb bounds use the equatorial radius, so pad them to stay a superset of the haversine circle.
const boundPadding = 1.01

// RadiusBound is a cheap rectangular prefilter for points within km of center.
func RadiusBound(center orb.Point, km float64) orb.Bound {
	return orbgeo.NewBoundAroundPoint(center, km*1000*boundPadding)
}

// WithinKm reports whether p lies within km of center.
func WithinKm(center, p orb.Point, km float64) bool {
	if !RadiusBound(center, km).Contains(p) {
		return false
	}
	return DistanceKm(center, p) <= km
}

// ParseCoordinate parses decimal latitude/longitude strings into a point.
func ParseCoordinate(lat, lon string) (orb.Point, error) {
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("%w: latitude %q", ErrInvalidCoordinates, lat)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("%w: longitude %q", ErrInvalidCoordinates, lon)
	}
	p := orb.Point{lo, la}
	if err := ValidatePoint(p); err != nil {
		return orb.Point{}, err
	}
	return p, nil
}

// ValidatePoint rejects non-finite or out-of-range coordinates.
func ValidatePoint(p orb.Point) error {
	for _, v := range []float64{p.Lat(), p.Lon()} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrInvalidCoordinates)
		}
	}
	if p.Lat() < -90 || p.Lat() > 90 {
		return fmt.Errorf("%w: latitude %.6f is out of range [-90, 90]", ErrInvalidCoordinates, p.Lat())
	}
	if p.Lon() < -180 || p.Lon() > 180 {
		return fmt.Errorf("%w: longitude %.6f is out of range [-180, 180]", ErrInvalidCoordinates, p.Lon())
	}
	return nil
}
