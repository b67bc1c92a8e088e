package trajectory

import "ais-trajectory/internal/ais"

const (
	MinLatitude = -90.0
	MaxLatitude = 90.0
)

// ValidLatitude reports whether lat lies in [-90, 90]. NaN is never valid.
// Longitude is intentionally not range-checked.
func ValidLatitude(lat float64) bool {
	return lat >= MinLatitude && lat <= MaxLatitude
}

// FilterLatitude returns the fixes with a valid latitude, in input order.
// The input slice is not modified.
func FilterLatitude(fixes []ais.Fix) []ais.Fix {
	out := make([]ais.Fix, 0, len(fixes))
	for _, f := range fixes {
		if ValidLatitude(f.Latitude) {
			out = append(out, f)
		}
	}
	return out
}
