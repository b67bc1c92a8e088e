package trajectory

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/s2"

	"ais-trajectory/internal/ais"
)

// EarthRadiusKm is the sphere radius used for every segment length.
const EarthRadiusKm = 6371.0

// domainTolerance bounds the rounding drift of the haversine term that is
// clamped back into [0, 1] instead of being reported.
const domainTolerance = 1e-12

// ErrNumericDomain is returned when the haversine term leaves [0, 1],
// which only happens for non-finite coordinates.
var ErrNumericDomain = errors.New("haversine term outside [0, 1]")

// DomainError identifies the segment whose distance could not be computed.
type DomainError struct {
	VesselID int64
	From     time.Time
	To       time.Time
	A        float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("vessel %d segment %s -> %s: %v (a=%v)",
		e.VesselID, e.From.Format(time.RFC3339), e.To.Format(time.RFC3339), ErrNumericDomain, e.A)
}

func (e *DomainError) Unwrap() error { return ErrNumericDomain }

// Haversine returns the great-circle distance in kilometers from one fix to
// the next on a sphere of radius EarthRadiusKm.
func Haversine(from, to ais.Fix) (float64, error) {
	p1 := s2.LatLngFromDegrees(from.Latitude, from.Longitude)
	p2 := s2.LatLngFromDegrees(to.Latitude, to.Longitude)

	lat1 := p1.Lat.Radians()
	lat2 := p2.Lat.Radians()
	dLat := lat2 - lat1
	dLon := p2.Lng.Radians() - p1.Lng.Radians()

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	a := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	a, ok := clampHaversine(a)
	if !ok {
		return 0, &DomainError{VesselID: to.VesselID, From: from.Time, To: to.Time, A: a}
	}
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a)), nil
}

func clampHaversine(a float64) (float64, bool) {
	switch {
	case math.IsNaN(a), math.IsInf(a, 0):
		return a, false
	case a < -domainTolerance, a > 1+domainTolerance:
		return a, false
	case a < 0:
		return 0, true
	case a > 1:
		return 1, true
	}
	return a, true
}
