// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

// Package models defines the data structures shared by the feed, the
// detection engine, the event store and the API.
package models

import (
	"time"

	"github.com/tomtom215/p56watch/internal/geo"
)

// Snapshot is one poll of the data feed.
type Snapshot struct {
	// Timestamp is the feed's own update time. Every sample taken from this
	// snapshot carries it.
	Timestamp time.Time          `json:"timestamp"`
	Aircraft  []AircraftSnapshot `json:"aircraft"`
	// Skipped counts records rejected at the ingestion boundary.
	Skipped int `json:"skipped"`
}

// AircraftSnapshot is a validated, strongly-typed feed record. It is never
// modified after the feed produces it.
//
// ID identifies the tracked aircraft (the pilot's network session). PilotID
// identifies the person and is what the leaderboard groups by; on the VATSIM
// network both are the CID.
type AircraftSnapshot struct {
	ID            string      `json:"id"`
	PilotID       string      `json:"pilot_id"`
	PilotName     string      `json:"pilot_name"`
	Callsign      string      `json:"callsign"`
	Position      geo.Point   `json:"position"`
	AltitudeFt    float64     `json:"altitude_ft"`
	GroundSpeedKt float64     `json:"groundspeed_kt"`
	HeadingDeg    float64     `json:"heading_deg"`
	Transponder   string      `json:"transponder,omitempty"`
	FlightPlan    *FlightPlan `json:"flight_plan,omitempty"`
	LastUpdated   time.Time   `json:"last_updated,omitempty"`
}

// FlightPlan carries the optional filed-plan fields of a feed record.
type FlightPlan struct {
	FlightRules   string `json:"flight_rules,omitempty"`
	AircraftShort string `json:"aircraft_short,omitempty"`
	Departure     string `json:"departure,omitempty"`
	Arrival       string `json:"arrival,omitempty"`
	Altitude      string `json:"altitude,omitempty"`
	Route         string `json:"route,omitempty"`
}

// Sample converts the snapshot into a position sample stamped with at.
func (a *AircraftSnapshot) Sample(at time.Time) PositionSample {
	return PositionSample{
		Lat:           a.Position.Lat,
		Lon:           a.Position.Lon,
		AltitudeFt:    a.AltitudeFt,
		HeadingDeg:    a.HeadingDeg,
		GroundSpeedKt: a.GroundSpeedKt,
		Timestamp:     at,
	}
}

// PositionSample is one stored point of a track.
type PositionSample struct {
	Lat           float64   `json:"lat"`
	Lon           float64   `json:"lon"`
	AltitudeFt    float64   `json:"alt"`
	HeadingDeg    float64   `json:"hdg"`
	GroundSpeedKt float64   `json:"gs"`
	Timestamp     time.Time `json:"ts"`
}

// Point returns the sample's position.
func (s PositionSample) Point() geo.Point {
	return geo.Point{Lat: s.Lat, Lon: s.Lon}
}

// AircraftView is the per-cycle display row for one aircraft inside the
// monitoring radius.
type AircraftView struct {
	ID            string    `json:"id"`
	Callsign      string    `json:"callsign"`
	Position      geo.Point `json:"position"`
	AltitudeFt    float64   `json:"altitude_ft"`
	GroundSpeedKt float64   `json:"groundspeed_kt"`
	HeadingDeg    float64   `json:"heading_deg"`
	Zone          geo.Label `json:"zone"`
	Buster        bool      `json:"buster"`
}
