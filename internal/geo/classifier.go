// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package geo

import (
	"fmt"
)

// Priority orders restricted zones for labelling; the first containing zone wins.
type Priority []Label

var (
	// PriorityRestrictive tests the innermost zone first.
	PriorityRestrictive = Priority{LabelP56, LabelFRZ, LabelSFRA}
	// PriorityFRZFirst lets FRZ shadow P56 for display.
	PriorityFRZFirst = Priority{LabelFRZ, LabelP56, LabelSFRA}
)

// ParsePriority accepts "restrictive" or "frz_first".
func ParsePriority(name string) (Priority, error) {
	switch name {
	case "", "restrictive":
		return PriorityRestrictive, nil
	case "frz_first":
		return PriorityFRZFirst, nil
	}
	return nil, fmt.Errorf("unknown zone priority %q", name)
}

// GroundPolicy decides whether an aircraft is on the ground from altitude
// (ft) and ground speed (kt). It only affects the display label.
type GroundPolicy func(altFt, gsKt float64) bool

// SimpleGround treats slow and low aircraft as on the ground.
func SimpleGround(altFt, gsKt float64) bool {
	return gsKt < 50 && altFt < 500
}

// CascadeGround widens the altitude allowance as ground speed drops, so a
// taxiing aircraft at a high-elevation field is still caught while a slow
// approach is not.
func CascadeGround(altFt, gsKt float64) bool {
	switch {
	case gsKt < 5:
		return true
	case gsKt < 40:
		return altFt < 1500
	case gsKt < 80:
		return altFt < 300
	}
	return false
}

// ParseGroundPolicy accepts "cascade" or "simple".
func ParseGroundPolicy(name string) (GroundPolicy, error) {
	switch name {
	case "", "cascade":
		return CascadeGround, nil
	case "simple":
		return SimpleGround, nil
	}
	return nil, fmt.Errorf("unknown ground policy %q", name)
}

// Classification is the classifier's answer for one aircraft.
type Classification struct {
	// Label is the geometric label after the altitude ceiling: a restricted
	// zone or Vicinity.
	Label Label
	// Display is Label, or Ground when the ground heuristic fires.
	Display Label
	// Err is set when a containment test failed and Label fell back to Vicinity.
	Err error
}

// ClassifierConfig configures NewClassifier.
type ClassifierConfig struct {
	Zones             Zones
	Priority          Priority
	Ground            GroundPolicy
	AltitudeCeilingFt float64
	Center            Point
	RadiusNM          float64
}

// Classifier labels positions. It holds no mutable state and is safe for
// concurrent use.
type Classifier struct {
	zones    Zones
	order    Priority
	ground   GroundPolicy
	ceiling  float64
	center   Point
	radiusNM float64
}

// NewClassifier validates cfg and returns a Classifier.
func NewClassifier(cfg ClassifierConfig) (*Classifier, error) {
	if len(cfg.Zones) == 0 {
		return nil, fmt.Errorf("classifier needs at least one zone")
	}
	if cfg.Priority == nil {
		cfg.Priority = PriorityRestrictive
	}
	if cfg.Ground == nil {
		cfg.Ground = CascadeGround
	}
	if cfg.AltitudeCeilingFt <= 0 {
		return nil, fmt.Errorf("altitude ceiling must be positive, got %v", cfg.AltitudeCeilingFt)
	}
	if cfg.RadiusNM <= 0 {
		return nil, fmt.Errorf("monitoring radius must be positive, got %v", cfg.RadiusNM)
	}
	if !cfg.Center.Valid() {
		return nil, fmt.Errorf("monitoring center %v is not a valid position", cfg.Center)
	}
	return &Classifier{
		zones:    cfg.Zones,
		order:    cfg.Priority,
		ground:   cfg.Ground,
		ceiling:  cfg.AltitudeCeilingFt,
		center:   cfg.Center,
		radiusNM: cfg.RadiusNM,
	}, nil
}

// Classify returns exactly one label for the position. Zones are tested in
// priority order; a zone missing from the boundary set is skipped. Any
// geometry error yields Vicinity with Err set.
func (c *Classifier) Classify(p Point, altFt, gsKt float64) Classification {
	label := LabelVicinity
	var gerr error

	for _, z := range c.order {
		shape, ok := c.zones[z]
		if !ok {
			continue
		}
		in, err := shape.Contains(p)
		if err != nil {
			label, gerr = LabelVicinity, err
			break
		}
		if in {
			label = z
			break
		}
	}

	if altFt > c.ceiling {
		label = LabelVicinity
	}

	display := label
	if gerr == nil && c.ground(altFt, gsKt) {
		display = LabelGround
	}
	return Classification{Label: label, Display: display, Err: gerr}
}

// Zone returns the boundary for a restricted label.
func (c *Classifier) Zone(l Label) (Shape, bool) {
	s, ok := c.zones[l]
	return s, ok
}

// InRadius reports whether p is within the monitoring radius of the center.
func (c *Classifier) InRadius(p Point) bool {
	if !p.Valid() {
		return false
	}
	return DistanceNM(c.center, p) <= c.radiusNM
}

// AboveCeiling reports whether altFt exceeds the altitude ceiling.
func (c *Classifier) AboveCeiling(altFt float64) bool {
	return altFt > c.ceiling
}
