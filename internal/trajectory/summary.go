package trajectory

import "ais-trajectory/internal/ais"

// Thresholds are the open bounds of the trajectory length buckets.
type Thresholds struct {
	ShortKm float64 // lengths strictly below are short
	LongKm  float64 // lengths strictly above are long
}

func DefaultThresholds() Thresholds {
	return Thresholds{ShortKm: 1, LongKm: 10}
}

type VesselCounts struct {
	Original int
	Filtered int
}

type LengthCounts struct {
	Short int
	Long  int
}

// Summary is the result of one category run.
type Summary struct {
	Vessels    VesselCounts
	Lengths    LengthCounts
	Thresholds Thresholds
	Totals     Totals
	Segments   int
	Dropped    int // fixes outside the latitude range
}

// UniqueVessels counts the distinct vessel IDs in fixes.
func UniqueVessels(fixes []ais.Fix) int {
	seen := make(map[int64]struct{})
	for _, f := range fixes {
		seen[f.VesselID] = struct{}{}
	}
	return len(seen)
}

// CountLengths buckets totals. Lengths equal to a threshold fall in neither bucket.
func CountLengths(totals Totals, th Thresholds) LengthCounts {
	var c LengthCounts
	for _, km := range totals {
		switch {
		case km < th.ShortKm:
			c.Short++
		case km > th.LongKm:
			c.Long++
		}
	}
	return c
}

// Summarize runs the filter, distance and bucketing steps over the fixes of
// one category. Empty input yields a zero summary.
func Summarize(fixes []ais.Fix, th Thresholds) (Summary, error) {
	valid := FilterLatitude(fixes)
	segs := Segments(SortFixes(valid))
	totals, err := accumulate(segs)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Vessels: VesselCounts{
			Original: UniqueVessels(fixes),
			Filtered: UniqueVessels(valid),
		},
		Lengths:    CountLengths(totals, th),
		Thresholds: th,
		Totals:     totals,
		Segments:   len(segs),
		Dropped:    len(fixes) - len(valid),
	}, nil
}
