// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package geo

import (
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/tomtom215/p56watch/internal/logging"
)

// Label is the zone assigned to an aircraft for one cycle.
type Label string

const (
	LabelP56      Label = "P56"
	LabelFRZ      Label = "FRZ"
	LabelSFRA     Label = "SFRA"
	LabelVicinity Label = "Vicinity"
	LabelGround   Label = "Ground"
)

// AllLabels lists every label in display order.
var AllLabels = []Label{LabelP56, LabelFRZ, LabelSFRA, LabelVicinity, LabelGround}

// Restricted reports whether l is one of the boundary-backed zones.
func (l Label) Restricted() bool {
	return l == LabelP56 || l == LabelFRZ || l == LabelSFRA
}

// ParseLabel maps a zone property value such as "p56", "P-56" or "frz" to a
// restricted label.
func ParseLabel(s string) (Label, bool) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
	switch norm {
	case "P56", "P56A", "P56B":
		return LabelP56, true
	case "FRZ":
		return LabelFRZ, true
	case "SFRA":
		return LabelSFRA, true
	}
	return "", false
}

// Zones maps a restricted label to its boundary.
type Zones map[Label]Shape

// LoadZones reads a GeoJSON FeatureCollection from path.
func LoadZones(path string) (Zones, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read zones file: %w", err)
	}
	return ParseZones(data)
}

// ParseZones builds Zones from a FeatureCollection. Each feature names its
// zone in the "zone" property (falling back to "name"). Features sharing a
// zone are unioned, which is how P-56A and P-56B form one P56 zone. A feature
// with a bad boundary poisons its zone with a shape that returns the build
// error on every test; unknown zone names are ignored.
func ParseZones(data []byte) (Zones, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode zones: %w", err)
	}

	parts := make(map[Label][]*Polygon)
	broken := make(map[Label]error)

	for i, f := range fc.Features {
		name := f.Properties.MustString("zone", f.Properties.MustString("name", ""))
		label, ok := ParseLabel(name)
		if !ok {
			logging.Warn().Int("feature", i).Str("zone", name).Msg("Ignoring feature with unknown zone")
			continue
		}
		poly, err := NewPolygon(f.Geometry)
		if err != nil {
			logging.Error().Err(err).Int("feature", i).Str("zone", string(label)).
				Msg("Zone boundary is malformed; aircraft tested against it will be labelled Vicinity")
			broken[label] = fmt.Errorf("zone %s feature %d: %w", label, i, err)
			continue
		}
		parts[label] = append(parts[label], poly)
	}

	zones := make(Zones, len(parts)+len(broken))
	for label, polys := range parts {
		zones[label] = union(polys)
	}
	for label, err := range broken {
		zones[label] = brokenShape{err: err}
	}
	if len(zones) == 0 {
		return nil, fmt.Errorf("zones file contains no P56, FRZ or SFRA features")
	}
	return zones, nil
}

func union(polys []*Polygon) *Polygon {
	if len(polys) == 1 {
		return polys[0]
	}
	out := &Polygon{}
	for i, p := range polys {
		out.mp = append(out.mp, p.mp...)
		if i == 0 {
			out.bound = p.bound
		} else {
			out.bound = out.bound.Union(p.bound)
		}
	}
	return out
}
