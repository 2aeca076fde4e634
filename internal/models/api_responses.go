// P56 Watch - Restricted Airspace Intrusion Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/p56watch

package models

import "time"

// APIResponse wraps every JSON body returned by the HTTP API.
//
//	{"status":"success","data":{...},"metadata":{"timestamp":"..."}}
//	{"status":"error","error":{"code":"UNAUTHORIZED","message":"..."},"metadata":{...}}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data,omitempty"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata describes the response.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	// ViewTime is when the engine published the view being served.
	ViewTime *time.Time `json:"view_time,omitempty"`
	Count    int        `json:"count,omitempty"`
}

// APIError is the error half of APIResponse.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ClearResult is returned by the admin clear endpoint.
type ClearResult struct {
	Cleared int `json:"cleared"`
}
