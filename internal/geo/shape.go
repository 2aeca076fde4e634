// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

var (
	// ErrMalformedPolygon is returned for rings that are open, too short or
	// carry non-finite coordinates.
	ErrMalformedPolygon = errors.New("malformed polygon")

	// ErrInvalidPoint is returned when a tested position is not a usable coordinate.
	ErrInvalidPoint = errors.New("invalid point")
)

// Shape is the geometry contract used by the classifier and the tracker.
type Shape interface {
	// Contains reports whether p lies within the shape.
	Contains(p Point) (bool, error)
	// SegmentCrosses reports whether any part of the segment a-b lies within
	// or touches the shape. A zero-length segment degenerates to Contains.
	SegmentCrosses(a, b Point) (bool, error)
}

// Polygon is a Shape backed by an orb.MultiPolygon. Holes are honored.
type Polygon struct {
	mp    orb.MultiPolygon
	bound orb.Bound
}

// NewPolygon accepts an orb.Polygon or orb.MultiPolygon.
func NewPolygon(g orb.Geometry) (*Polygon, error) {
	var mp orb.MultiPolygon
	switch v := g.(type) {
	case orb.Polygon:
		mp = orb.MultiPolygon{v}
	case orb.MultiPolygon:
		mp = v
	case nil:
		return nil, fmt.Errorf("%w: no geometry", ErrMalformedPolygon)
	default:
		return nil, fmt.Errorf("%w: unsupported geometry %s", ErrMalformedPolygon, g.GeoJSONType())
	}
	if len(mp) == 0 {
		return nil, fmt.Errorf("%w: empty multipolygon", ErrMalformedPolygon)
	}
	for i, poly := range mp {
		if len(poly) == 0 {
			return nil, fmt.Errorf("%w: polygon %d has no rings", ErrMalformedPolygon, i)
		}
		for j, ring := range poly {
			if err := checkRing(ring); err != nil {
				return nil, fmt.Errorf("polygon %d ring %d: %w", i, j, err)
			}
		}
	}
	return &Polygon{mp: mp, bound: mp.Bound()}, nil
}

func checkRing(r orb.Ring) error {
	if len(r) < 4 {
		return fmt.Errorf("%w: ring has %d points, need at least 4", ErrMalformedPolygon, len(r))
	}
	if !r.Closed() {
		return fmt.Errorf("%w: ring is not closed", ErrMalformedPolygon)
	}
	for _, p := range r {
		if !finite(p[0]) || !finite(p[1]) {
			return fmt.Errorf("%w: non-finite coordinate", ErrMalformedPolygon)
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Contains implements Shape.
func (p *Polygon) Contains(pt Point) (bool, error) {
	if !pt.Valid() {
		return false, fmt.Errorf("%w: %v", ErrInvalidPoint, pt)
	}
	op := pt.orb()
	if !p.bound.Contains(op) {
		return false, nil
	}
	return planar.MultiPolygonContains(p.mp, op), nil
}

// SegmentCrosses implements Shape.
func (p *Polygon) SegmentCrosses(a, b Point) (bool, error) {
	if !a.Valid() {
		return false, fmt.Errorf("%w: %v", ErrInvalidPoint, a)
	}
	if in, err := p.Contains(b); err != nil || in {
		return in, err
	}
	if a == b {
		return false, nil
	}
	if in, _ := p.Contains(a); in {
		return true, nil
	}

	oa, ob := a.orb(), b.orb()
	seg := orb.Bound{Min: oa, Max: oa}.Extend(ob)
	if !seg.Intersects(p.bound) {
		return false, nil
	}
	for _, poly := range p.mp {
		for _, ring := range poly {
			for i := 0; i+1 < len(ring); i++ {
				if segmentsIntersect(oa, ob, ring[i], ring[i+1]) {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

// segmentsIntersect tests closed segments p1-p2 and q1-q2 in the plane.
// Touching endpoints and collinear overlap count as an intersection, so a
// track that only grazes the boundary crosses the zone.
func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return true
	case d2 == 0 && onSegment(q1, q2, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, q1):
		return true
	case d4 == 0 && onSegment(p1, p2, q2):
		return true
	}
	return false
}

// cross is the z component of (b-a) x (c-a).
func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// onSegment assumes c is collinear with a-b.
func onSegment(a, b, c orb.Point) bool {
	return math.Min(a[0], b[0]) <= c[0] && c[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= c[1] && c[1] <= math.Max(a[1], b[1])
}

// brokenShape stands in for a zone whose boundary could not be built. Every
// test reports the original error so callers fall back per aircraft.
type brokenShape struct {
	err error
}

func (b brokenShape) Contains(Point) (bool, error)              { return false, b.err }
func (b brokenShape) SegmentCrosses(Point, Point) (bool, error) { return false, b.err }
