package trajectory

import (
	"cmp"
	"slices"

	"ais-trajectory/internal/ais"
)

// Segment is a pair of temporally adjacent fixes of the same vessel.
type Segment struct {
	VesselID int64
	From     ais.Fix
	To       ais.Fix
}

// Totals maps a vessel ID to its trajectory length in kilometers.
// Vessels without any segment are absent.
type Totals map[int64]float64

// SortFixes returns a copy of fixes ordered by vessel ID, then time.
// Fixes of one vessel sharing a timestamp keep their input order.
func SortFixes(fixes []ais.Fix) []ais.Fix {
	sorted := slices.Clone(fixes)
	slices.SortStableFunc(sorted, func(a, b ais.Fix) int {
		if c := cmp.Compare(a.VesselID, b.VesselID); c != 0 {
			return c
		}
		return a.Time.Compare(b.Time)
	})
	return sorted
}

// Segments pairs every fix with its predecessor in sorted when both belong
// to the same vessel. The first fix of each vessel opens no segment.
func Segments(sorted []ais.Fix) []Segment {
	var segs []Segment
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.VesselID != cur.VesselID {
			continue
		}
		segs = append(segs, Segment{VesselID: cur.VesselID, From: prev, To: cur})
	}
	return segs
}

// VesselDistances computes the total great-circle length of every vessel
// trajectory in fixes. The input order does not matter.
func VesselDistances(fixes []ais.Fix) (Totals, error) {
	return accumulate(Segments(SortFixes(fixes)))
}

func accumulate(segs []Segment) (Totals, error) {
	totals := make(Totals)
	for _, s := range segs {
		d, err := Haversine(s.From, s.To)
		if err != nil {
			return nil, err
		}
		totals[s.VesselID] += d
	}
	return totals, nil
}
