package trajectory

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/golang/geo/s2"

	"ais-trajectory/internal/ais"
)

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func fix(id int64, minute int, lat, lon float64) ais.Fix {
	return ais.Fix{
		Time:      t0.Add(time.Duration(minute) * time.Minute),
		ShipType:  "Cargo",
		VesselID:  id,
		Latitude:  lat,
		Longitude: lon,
	}
}

func almostEqual(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestValidLatitude(t *testing.T) {
	tests := []struct {
		lat  float64
		want bool
	}{
		{0, true},
		{90, true},
		{-90, true},
		{90.0001, false},
		{-90.0001, false},
		{91, false},
		{math.NaN(), false},
		{math.Inf(1), false},
	}
	for _, tt := range tests {
		if got := ValidLatitude(tt.lat); got != tt.want {
			t.Errorf("ValidLatitude(%v) = %v, want %v", tt.lat, got, tt.want)
		}
	}
}

func TestFilterLatitudeKeepsOrderAndInput(t *testing.T) {
	in := []ais.Fix{
		fix(1, 0, 90, 0),
		fix(2, 0, 90.0001, 0),
		fix(3, 0, -90, 0),
		fix(4, 0, -120, 0),
	}
	out := FilterLatitude(in)
	if len(out) != 2 || out[0].VesselID != 1 || out[1].VesselID != 3 {
		t.Fatalf("unexpected filtered fixes: %+v", out)
	}
	if len(in) != 4 || in[1].VesselID != 2 {
		t.Fatalf("input was modified: %+v", in)
	}
}

func TestHaversineKnownValues(t *testing.T) {
	oneDegree := EarthRadiusKm * math.Pi / 180

	tests := []struct {
		name     string
		from, to ais.Fix
		want     float64
	}{
		{"one degree of longitude at the equator", fix(1, 0, 0, 0), fix(1, 1, 0, 1), oneDegree},
		{"one degree of latitude", fix(1, 0, 10, 20), fix(1, 1, 11, 20), oneDegree},
		{"coincident fixes", fix(1, 0, 43.5, 7.25), fix(1, 1, 43.5, 7.25), 0},
		{"antipodes", fix(1, 0, 0, 0), fix(1, 1, 0, 180), EarthRadiusKm * math.Pi},
		{"pole to pole", fix(1, 0, 90, 0), fix(1, 1, -90, 0), EarthRadiusKm * math.Pi},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Haversine(tt.from, tt.to)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !almostEqual(got, tt.want, 1e-9) {
				t.Errorf("got %.12f km, want %.12f km", got, tt.want)
			}
		})
	}

	d, _ := Haversine(fix(1, 0, 0, 0), fix(1, 1, 0, 1))
	if !almostEqual(d, 111.19, 0.005) {
		t.Errorf("equator degree = %.4f km, want about 111.19", d)
	}
}

func TestHaversineMatchesS2(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		from := fix(1, 0, rng.Float64()*180-90, rng.Float64()*360-180)
		to := fix(1, 1, rng.Float64()*180-90, rng.Float64()*360-180)

		got, err := Haversine(from, to)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		p1 := s2.LatLngFromDegrees(from.Latitude, from.Longitude)
		p2 := s2.LatLngFromDegrees(to.Latitude, to.Longitude)
		want := p1.Distance(p2).Radians() * EarthRadiusKm
		if !almostEqual(got, want, 1e-6) {
			t.Fatalf("(%v,%v)->(%v,%v): got %v, s2 %v", from.Latitude, from.Longitude, to.Latitude, to.Longitude, got, want)
		}
	}
}

func TestHaversineIsSymmetric(t *testing.T) {
	a, b := fix(1, 0, 51.5, -0.12), fix(1, 1, 48.85, 2.35)
	ab, _ := Haversine(a, b)
	ba, _ := Haversine(b, a)
	if !almostEqual(ab, ba, 1e-9) {
		t.Errorf("asymmetric distance: %v vs %v", ab, ba)
	}
}

func TestHaversineRejectsNonFinite(t *testing.T) {
	tests := []struct {
		name     string
		from, to ais.Fix
	}{
		{"NaN longitude", fix(7, 0, 10, math.NaN()), fix(7, 1, 10, 20)},
		{"NaN latitude", fix(7, 0, 10, 20), fix(7, 1, math.NaN(), 20)},
		{"infinite longitude", fix(7, 0, 10, math.Inf(1)), fix(7, 1, 10, 20)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Haversine(tt.from, tt.to)
			if !errors.Is(err, ErrNumericDomain) {
				t.Fatalf("expected ErrNumericDomain, got %v (d=%v)", err, d)
			}
			var de *DomainError
			if !errors.As(err, &de) || de.VesselID != 7 {
				t.Fatalf("expected DomainError for vessel 7, got %#v", err)
			}
			if d != 0 {
				t.Errorf("distance must be zero on error, got %v", d)
			}
		})
	}
}

func TestClampHaversine(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
		ok   bool
	}{
		{0, 0, true},
		{0.5, 0.5, true},
		{1, 1, true},
		{1 + 1e-15, 1, true},
		{-1e-17, 0, true},
		{1 + 1e-9, 1 + 1e-9, false},
		{-1e-9, -1e-9, false},
		{1.5, 1.5, false},
		{math.Inf(-1), math.Inf(-1), false},
	}
	for _, tt := range tests {
		got, ok := clampHaversine(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("clampHaversine(%v) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
	if _, ok := clampHaversine(math.NaN()); ok {
		t.Error("clampHaversine(NaN) accepted")
	}
}

func TestSortFixesIsStableOnEqualTimestamps(t *testing.T) {
	in := []ais.Fix{
		fix(2, 5, 1, 1),
		fix(1, 3, 10, 0),
		fix(1, 3, 20, 0),
		fix(1, 1, 30, 0),
		fix(1, 3, 40, 0),
	}
	sorted := SortFixes(in)

	wantLat := []float64{30, 10, 20, 40, 1}
	for i, f := range sorted {
		if f.Latitude != wantLat[i] {
			t.Fatalf("position %d: latitude %v, want %v (sorted=%+v)", i, f.Latitude, wantLat[i], sorted)
		}
	}
	if in[0].VesselID != 2 {
		t.Fatal("SortFixes modified its input")
	}
}

func TestSegmentsNeverCrossVessels(t *testing.T) {
	sorted := []ais.Fix{
		fix(1, 1, 0, 0),
		fix(1, 2, 0, 0.01),
		fix(2, 3, 5, 5),
	}
	segs := Segments(sorted)
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1: %+v", len(segs), segs)
	}
	s := segs[0]
	if s.VesselID != 1 || !s.From.Time.Equal(sorted[0].Time) || !s.To.Time.Equal(sorted[1].Time) {
		t.Errorf("unexpected segment %+v", s)
	}
}

func TestSegmentsEdgeCases(t *testing.T) {
	if segs := Segments(nil); len(segs) != 0 {
		t.Errorf("nil input produced %d segments", len(segs))
	}
	if segs := Segments([]ais.Fix{fix(1, 0, 0, 0)}); len(segs) != 0 {
		t.Errorf("single fix produced %d segments", len(segs))
	}
	three := []ais.Fix{fix(1, 0, 0, 0), fix(1, 1, 0, 1), fix(1, 2, 0, 2)}
	if segs := Segments(three); len(segs) != 2 {
		t.Errorf("three fixes produced %d segments, want 2", len(segs))
	}
}

func TestVesselDistancesSingleFixVesselIsAbsent(t *testing.T) {
	totals, err := VesselDistances([]ais.Fix{
		fix(1, 0, 0, 0),
		fix(2, 0, 0, 0),
		fix(2, 1, 0, 1),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := totals[1]; ok {
		t.Errorf("vessel with a single fix must be absent, got %v", totals[1])
	}
	if !almostEqual(totals[2], EarthRadiusKm*math.Pi/180, 1e-9) {
		t.Errorf("vessel 2 total = %v", totals[2])
	}
}

func TestVesselDistancesTwoFixesIndependentOfOrder(t *testing.T) {
	a, b := fix(9, 0, 45, 9), fix(9, 10, 45.1, 9.2)
	want, _ := Haversine(a, b)

	for _, in := range [][]ais.Fix{{a, b}, {b, a}} {
		totals, err := VesselDistances(in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if totals[9] != want {
			t.Errorf("total %v, want %v", totals[9], want)
		}
	}
}

func TestVesselDistancesPermutationInvariant(t *testing.T) {
	base := []ais.Fix{
		fix(3, 0, 60.0, 10.0),
		fix(3, 1, 60.01, 10.02),
		fix(3, 2, 60.03, 10.01),
		fix(3, 3, 60.02, 10.05),
		fix(4, 0, 59.9, 10.7),
		fix(4, 4, 59.95, 10.75),
	}
	want, err := VesselDistances(base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]ais.Fix(nil), base...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got, err := VesselDistances(shuffled)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for id, km := range want {
			if got[id] != km {
				t.Fatalf("vessel %d: got %v, want %v", id, got[id], km)
			}
		}
	}
}

func TestVesselDistancesPropagatesDomainError(t *testing.T) {
	_, err := VesselDistances([]ais.Fix{
		fix(5, 0, 0, 0),
		fix(5, 1, 0, math.NaN()),
	})
	if !errors.Is(err, ErrNumericDomain) {
		t.Fatalf("expected ErrNumericDomain, got %v", err)
	}
}

func TestCountLengthsOpenBoundaries(t *testing.T) {
	totals := Totals{
		1: 0.999,
		2: 1.0,
		3: 5,
		4: 10.0,
		5: 10.001,
		6: 0,
	}
	got := CountLengths(totals, DefaultThresholds())
	if got.Short != 2 || got.Long != 1 {
		t.Errorf("got %+v, want {Short:2 Long:1}", got)
	}
}

func TestUniqueVessels(t *testing.T) {
	fixes := []ais.Fix{fix(1, 0, 0, 0), fix(1, 1, 0, 0), fix(2, 0, 0, 0), fix(3, 0, 0, 0)}
	if n := UniqueVessels(fixes); n != 3 {
		t.Errorf("UniqueVessels = %d, want 3", n)
	}
	if n := UniqueVessels(nil); n != 0 {
		t.Errorf("UniqueVessels(nil) = %d, want 0", n)
	}
}

func TestSummarize(t *testing.T) {
	fixes := []ais.Fix{
		// vessel 1: one degree along the equator, long
		fix(1, 0, 0, 0),
		fix(1, 1, 0, 1),
		// vessel 2: a few hundred meters, short
		fix(2, 0, 10, 10),
		fix(2, 1, 10, 10.001),
		fix(2, 2, 10, 10.002),
		// vessel 3: only invalid latitudes
		fix(3, 0, 95, 0),
		fix(3, 1, 96, 0),
		// vessel 4: a single valid fix, absent from the buckets
		fix(4, 0, 20, 20),
		fix(4, 1, -91, 20),
	}

	s, err := Summarize(fixes, DefaultThresholds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Vessels != (VesselCounts{Original: 4, Filtered: 3}) {
		t.Errorf("vessels = %+v", s.Vessels)
	}
	if s.Lengths != (LengthCounts{Short: 1, Long: 1}) {
		t.Errorf("lengths = %+v", s.Lengths)
	}
	if s.Segments != 3 {
		t.Errorf("segments = %d, want 3", s.Segments)
	}
	if s.Dropped != 3 {
		t.Errorf("dropped = %d, want 3", s.Dropped)
	}
	if len(s.Totals) != 2 {
		t.Errorf("totals = %v, want vessels 1 and 2 only", s.Totals)
	}
}

func TestSummarizeEmptyCategory(t *testing.T) {
	for name, fixes := range map[string][]ais.Fix{
		"no fixes":          nil,
		"all invalid fixes": {fix(1, 0, 100, 0), fix(1, 1, -100, 0)},
	} {
		t.Run(name, func(t *testing.T) {
			s, err := Summarize(fixes, DefaultThresholds())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Vessels.Filtered != 0 || s.Lengths != (LengthCounts{}) || s.Segments != 0 || len(s.Totals) != 0 {
				t.Errorf("expected empty summary, got %+v", s)
			}
		})
	}
}

func TestSummarizeFilteredNeverExceedsOriginal(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		var fixes []ais.Fix
		for i := 0; i < 40; i++ {
			fixes = append(fixes, fix(int64(rng.Intn(8)), i, rng.Float64()*240-120, rng.Float64()*360-180))
		}
		s, err := Summarize(fixes, DefaultThresholds())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.Vessels.Filtered > s.Vessels.Original {
			t.Fatalf("filtered %d > original %d", s.Vessels.Filtered, s.Vessels.Original)
		}
		if len(s.Totals) > s.Vessels.Filtered {
			t.Fatalf("%d vessels with a total but only %d filtered vessels", len(s.Totals), s.Vessels.Filtered)
		}
	}
}

func TestSummarizeNaNLongitudeFails(t *testing.T) {
	_, err := Summarize([]ais.Fix{fix(1, 0, 0, 0), fix(1, 1, 0, math.NaN())}, DefaultThresholds())
	if !errors.Is(err, ErrNumericDomain) {
		t.Fatalf("expected ErrNumericDomain, got %v", err)
	}
}
