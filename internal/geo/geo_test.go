// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package geo

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/paulmach/orb"
)

var (
	whiteHouse = Point{Lat: 38.895, Lon: -77.035} // inside P-56A
	navalObs   = Point{Lat: 38.922, Lon: -77.075} // inside P-56B
	frzOnly    = Point{Lat: 38.800, Lon: -77.100}
	sfraOnly   = Point{Lat: 39.200, Lon: -77.500}
	outside    = Point{Lat: 40.000, Lon: -78.000}
)

func loadTestZones(t *testing.T) Zones {
	t.Helper()
	z, err := LoadZones("testdata/zones.geojson")
	if err != nil {
		t.Fatalf("LoadZones: %v", err)
	}
	return z
}

func newTestClassifier(t *testing.T, zones Zones, prio Priority) *Classifier {
	t.Helper()
	c, err := NewClassifier(ClassifierConfig{
		Zones:             zones,
		Priority:          prio,
		Ground:            CascadeGround,
		AltitudeCeilingFt: 18000,
		Center:            Point{Lat: 38.8977, Lon: -77.0365},
		RadiusNM:          300,
	})
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	return c
}

func square(minLon, minLat, maxLon, maxLat float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}}
}

func TestLoadZones(t *testing.T) {
	t.Parallel()
	zones := loadTestZones(t)

	if len(zones) != 3 {
		t.Fatalf("got %d zones, want 3 (unknown R-4009 ignored)", len(zones))
	}
	p56 := zones[LabelP56]
	for _, p := range []Point{whiteHouse, navalObs} {
		in, err := p56.Contains(p)
		if err != nil || !in {
			t.Errorf("P56 Contains(%v) = %v, %v; want true (both P-56 features unioned)", p, in, err)
		}
	}
}

func TestParseZonesMalformed(t *testing.T) {
	t.Parallel()
	data := []byte(`{"type":"FeatureCollection","features":[
	  {"type":"Feature","properties":{"zone":"P56"},
	   "geometry":{"type":"Polygon","coordinates":[[[-77.04,38.89],[-77.03,38.89],[-77.03,38.90]]]}},
	  {"type":"Feature","properties":{"zone":"SFRA"},
	   "geometry":{"type":"Polygon","coordinates":[[[-77.6,38.5],[-76.5,38.5],[-76.5,39.3],[-77.6,39.3],[-77.6,38.5]]]}}
	]}`)
	zones, err := ParseZones(data)
	if err != nil {
		t.Fatalf("ParseZones: %v", err)
	}
	_, err = zones[LabelP56].Contains(whiteHouse)
	if !errors.Is(err, ErrMalformedPolygon) {
		t.Errorf("broken P56 Contains err = %v, want ErrMalformedPolygon", err)
	}

	c := newTestClassifier(t, zones, PriorityRestrictive)
	got := c.Classify(whiteHouse, 1500, 120)
	if got.Label != LabelVicinity || got.Err == nil {
		t.Errorf("Classify with broken P56 = %+v, want Vicinity with error", got)
	}
}

func TestParseZonesEmpty(t *testing.T) {
	t.Parallel()
	if _, err := ParseZones([]byte(`{"type":"FeatureCollection","features":[]}`)); err == nil {
		t.Error("expected error for a collection without restricted zones")
	}
	if _, err := ParseZones([]byte(`not json`)); err == nil {
		t.Error("expected decode error")
	}
}

func TestNewPolygonRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		g    orb.Geometry
	}{
		{"nil", nil},
		{"point", orb.Point{1, 2}},
		{"open ring", orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}},
		{"short ring", orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {0, 0}}}},
		{"nan", orb.Polygon{orb.Ring{{0, 0}, {math.NaN(), 0}, {1, 1}, {0, 0}}}},
		{"empty multipolygon", orb.MultiPolygon{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewPolygon(tt.g); !errors.Is(err, ErrMalformedPolygon) {
				t.Errorf("NewPolygon() err = %v, want ErrMalformedPolygon", err)
			}
		})
	}
}

func TestPolygonHole(t *testing.T) {
	t.Parallel()
	donut := square(0, 0, 10, 10)
	hole := square(4, 4, 6, 6)[0]
	donut = append(donut, hole)
	p, err := NewPolygon(donut)
	if err != nil {
		t.Fatalf("NewPolygon: %v", err)
	}
	if in, _ := p.Contains(Point{Lat: 5, Lon: 5}); in {
		t.Error("point in hole reported inside")
	}
	if in, _ := p.Contains(Point{Lat: 2, Lon: 2}); !in {
		t.Error("point in ring body reported outside")
	}
}

func TestSegmentCrosses(t *testing.T) {
	t.Parallel()
	p, err := NewPolygon(square(-77.04, 38.89, -77.03, 38.90))
	if err != nil {
		t.Fatalf("NewPolygon: %v", err)
	}

	tests := []struct {
		name string
		a, b Point
		want bool
	}{
		{"pass through west to east", Point{38.895, -77.05}, Point{38.895, -77.02}, true},
		{"ends inside", Point{38.895, -77.05}, Point{38.895, -77.035}, true},
		{"starts inside", Point{38.895, -77.035}, Point{38.895, -77.05}, true},
		{"parallel miss", Point{38.91, -77.05}, Point{38.91, -77.02}, false},
		{"diagonal through east edge", Point{38.885, -77.035}, Point{38.897, -77.025}, true},
		{"degenerate outside", Point{38.91, -77.05}, Point{38.91, -77.05}, false},
		{"degenerate inside", whiteHouse, whiteHouse, true},
		// The boundary belongs to the zone: touching or running along it crosses.
		{"touching edge", Point{38.88, -77.04}, Point{38.89, -77.04}, true},
		{"along west edge", Point{38.885, -77.04}, Point{38.905, -77.04}, true},
		{"stops short of edge", Point{38.88, -77.04}, Point{38.889, -77.04}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := p.SegmentCrosses(tt.a, tt.b)
			if err != nil {
				t.Fatalf("SegmentCrosses err = %v", err)
			}
			if got != tt.want {
				t.Errorf("SegmentCrosses(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}

	if _, err := p.SegmentCrosses(Point{Lat: 95}, whiteHouse); !errors.Is(err, ErrInvalidPoint) {
		t.Errorf("invalid start err = %v, want ErrInvalidPoint", err)
	}
}

func TestClassifyPriority(t *testing.T) {
	t.Parallel()
	zones := loadTestZones(t)
	restrictive := newTestClassifier(t, zones, PriorityRestrictive)
	frzFirst := newTestClassifier(t, zones, PriorityFRZFirst)

	tests := []struct {
		name       string
		p          Point
		wantRestr  Label
		wantFRZFst Label
	}{
		{"white house", whiteHouse, LabelP56, LabelFRZ},
		{"naval observatory", navalObs, LabelP56, LabelFRZ},
		{"frz only", frzOnly, LabelFRZ, LabelFRZ},
		{"sfra only", sfraOnly, LabelSFRA, LabelSFRA},
		{"outside everything", outside, LabelVicinity, LabelVicinity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := restrictive.Classify(tt.p, 2000, 150).Label; got != tt.wantRestr {
				t.Errorf("restrictive = %s, want %s", got, tt.wantRestr)
			}
			if got := frzFirst.Classify(tt.p, 2000, 150).Label; got != tt.wantFRZFst {
				t.Errorf("frz_first = %s, want %s", got, tt.wantFRZFst)
			}
		})
	}
}

func TestClassifyCeilingAndGround(t *testing.T) {
	t.Parallel()
	c := newTestClassifier(t, loadTestZones(t), PriorityRestrictive)

	high := c.Classify(whiteHouse, 25000, 450)
	if high.Label != LabelVicinity || high.Display != LabelVicinity {
		t.Errorf("above ceiling = %+v, want Vicinity", high)
	}

	parked := c.Classify(whiteHouse, 50, 0)
	if parked.Label != LabelP56 {
		t.Errorf("parked geometric label = %s, want P56", parked.Label)
	}
	if parked.Display != LabelGround {
		t.Errorf("parked display = %s, want Ground", parked.Display)
	}

	approach := c.Classify(frzOnly, 1200, 140)
	if approach.Display != LabelFRZ {
		t.Errorf("approach display = %s, want FRZ", approach.Display)
	}
}

func TestClassifyTotalAndDeterministic(t *testing.T) {
	t.Parallel()
	c := newTestClassifier(t, loadTestZones(t), PriorityRestrictive)
	valid := map[Label]bool{}
	for _, l := range AllLabels {
		valid[l] = true
	}

	r := rand.New(rand.NewPCG(56, 56))
	for i := 0; i < 2000; i++ {
		p := Point{Lat: 38.4 + r.Float64(), Lon: -77.7 + 1.3*r.Float64()}
		alt := r.Float64() * 30000
		gs := r.Float64() * 500
		a := c.Classify(p, alt, gs)
		b := c.Classify(p, alt, gs)
		if a != b {
			t.Fatalf("Classify not deterministic at %v: %+v vs %+v", p, a, b)
		}
		if !valid[a.Label] || !valid[a.Display] {
			t.Fatalf("Classify(%v) = %+v, outside the label set", p, a)
		}
		if a.Label == LabelGround {
			t.Fatalf("geometric label must never be Ground")
		}
	}
}

func TestGroundPolicies(t *testing.T) {
	t.Parallel()
	tests := []struct {
		alt, gs        float64
		simple, cascad bool
	}{
		{0, 0, true, true},
		{3000, 2, false, true},
		{1000, 30, false, true},
		{400, 45, true, false},
		{200, 70, false, true},
		{200, 120, false, false},
	}
	for _, tt := range tests {
		if got := SimpleGround(tt.alt, tt.gs); got != tt.simple {
			t.Errorf("SimpleGround(%v, %v) = %v, want %v", tt.alt, tt.gs, got, tt.simple)
		}
		if got := CascadeGround(tt.alt, tt.gs); got != tt.cascad {
			t.Errorf("CascadeGround(%v, %v) = %v, want %v", tt.alt, tt.gs, got, tt.cascad)
		}
	}
	if _, err := ParseGroundPolicy("never"); err == nil {
		t.Error("ParseGroundPolicy accepted an unknown name")
	}
	if _, err := ParsePriority("alphabetical"); err == nil {
		t.Error("ParsePriority accepted an unknown name")
	}
}

func TestDistanceAndRadius(t *testing.T) {
	t.Parallel()
	if d := DistanceNM(Point{0, 0}, Point{1, 0}); math.Abs(d-60.04) > 0.1 {
		t.Errorf("one degree of latitude = %.3f nm, want about 60.04", d)
	}
	c := newTestClassifier(t, loadTestZones(t), PriorityRestrictive)
	if !c.InRadius(sfraOnly) {
		t.Error("SFRA point should be within 300 nm")
	}
	if c.InRadius(Point{Lat: 45, Lon: -90}) {
		t.Error("Wisconsin should be outside 300 nm")
	}
	if c.InRadius(Point{Lat: math.NaN()}) {
		t.Error("NaN position reported in radius")
	}
}

func TestParseLabel(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Label{"p56": LabelP56, "P-56B": LabelP56, " frz ": LabelFRZ, "SFRA": LabelSFRA} {
		if got, ok := ParseLabel(in); !ok || got != want {
			t.Errorf("ParseLabel(%q) = %s, %v", in, got, ok)
		}
	}
	if _, ok := ParseLabel("R-4009"); ok {
		t.Error("R-4009 should not parse")
	}
}
