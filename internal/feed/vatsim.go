// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package feed

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/p56watch/internal/geo"
	"github.com/tomtom215/p56watch/internal/logging"
	"github.com/tomtom215/p56watch/internal/models"
	"github.com/tomtom215/p56watch/internal/validation"
)

// rawFeed is the envelope of the data feed. Pilots stay raw so each record
// can fail on its own.
type rawFeed struct {
	General struct {
		UpdateTimestamp time.Time `json:"update_timestamp"`
	} `json:"general"`
	Pilots []json.RawMessage `json:"pilots"`
}

// rawPilot is one feed record as published. Pointers distinguish a missing
// coordinate from a zero one.
type rawPilot struct {
	CID         int64          `json:"cid" validate:"required,gt=0"`
	Name        string         `json:"name"`
	Callsign    string         `json:"callsign" validate:"required,callsign"`
	Latitude    *float64       `json:"latitude" validate:"required,latitude"`
	Longitude   *float64       `json:"longitude" validate:"required,longitude"`
	Altitude    float64        `json:"altitude" validate:"gte=-2000,lte=100000"`
	Groundspeed float64        `json:"groundspeed" validate:"gte=0,lte=2000"`
	Heading     float64        `json:"heading" validate:"gte=0,lte=360"`
	Transponder string         `json:"transponder" validate:"omitempty,squawk"`
	FlightPlan  *rawFlightPlan `json:"flight_plan"`
	LastUpdated time.Time      `json:"last_updated"`
}

type rawFlightPlan struct {
	FlightRules   string `json:"flight_rules"`
	AircraftShort string `json:"aircraft_short"`
	Departure     string `json:"departure"`
	Arrival       string `json:"arrival"`
	Altitude      string `json:"altitude"`
	Route         string `json:"route"`
}

// Decode parses one feed document. The envelope must be valid and carry an
// update timestamp; pilot records that fail to decode or validate are
// skipped and counted in Snapshot.Skipped.
func Decode(data []byte) (*models.Snapshot, error) {
	var raw rawFeed
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}
	if raw.General.UpdateTimestamp.IsZero() {
		return nil, fmt.Errorf("%w: missing general.update_timestamp", ErrMalformedFeed)
	}

	snap := &models.Snapshot{
		Timestamp: raw.General.UpdateTimestamp.UTC(),
		Aircraft:  make([]models.AircraftSnapshot, 0, len(raw.Pilots)),
	}
	for i, msg := range raw.Pilots {
		a, err := convertPilot(msg)
		if err != nil {
			snap.Skipped++
			logging.Debug().Err(err).Int("index", i).Msg("Skipping feed record")
			continue
		}
		snap.Aircraft = append(snap.Aircraft, a)
	}
	return snap, nil
}

func convertPilot(msg json.RawMessage) (models.AircraftSnapshot, error) {
	var p rawPilot
	if err := json.Unmarshal(msg, &p); err != nil {
		return models.AircraftSnapshot{}, fmt.Errorf("decode pilot: %w", err)
	}
	p.Callsign = strings.ToUpper(strings.TrimSpace(p.Callsign))
	if verr := validation.ValidateStruct(&p); verr != nil {
		return models.AircraftSnapshot{}, verr
	}

	id := strconv.FormatInt(p.CID, 10)
	a := models.AircraftSnapshot{
		ID:            id,
		PilotID:       id,
		PilotName:     strings.TrimSpace(p.Name),
		Callsign:      p.Callsign,
		Position:      geo.Point{Lat: *p.Latitude, Lon: *p.Longitude},
		AltitudeFt:    p.Altitude,
		GroundSpeedKt: p.Groundspeed,
		HeadingDeg:    p.Heading,
		Transponder:   p.Transponder,
		LastUpdated:   p.LastUpdated,
	}
	if fp := p.FlightPlan; fp != nil {
		a.FlightPlan = &models.FlightPlan{
			FlightRules:   fp.FlightRules,
			AircraftShort: fp.AircraftShort,
			Departure:     fp.Departure,
			Arrival:       fp.Arrival,
			Altitude:      fp.Altitude,
			Route:         fp.Route,
		}
	}
	return a, nil
}
