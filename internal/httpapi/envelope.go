// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package httpapi implements the thin HTTP query surface described in
// spec.md §6: a small, closed set of endpoints, each a parameterized
// Datalog query (or, for the reindex trigger, a direct call into
// pkg/reindex) wrapped in a uniform response envelope.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/corvid-labs/isg/internal/output"
)

// envelope is the response shape every endpoint shares, bit-exact per
// spec.md §6: {success, endpoint, data?, error?, tokens}.
type envelope struct {
	Success  bool   `json:"success"`
	Endpoint string `json:"endpoint"`
	Data     any    `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`
	Tokens   int    `json:"tokens"`
}

// tokenEstimate approximates the token cost of an HTTP response using the
// common four-bytes-per-token rule of thumb. It is a best-effort estimate
// for a human or agent client deciding whether to page a result set, not a
// billed or exact count.
func tokenEstimate(data any) int {
	if data == nil {
		return 0
	}
	b, err := json.Marshal(data)
	if err != nil {
		return 0
	}
	return len(b) / 4
}

func writeOK(w http.ResponseWriter, endpoint string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = output.JSONTo(w, envelope{
		Success:  true,
		Endpoint: endpoint,
		Data:     data,
		Tokens:   tokenEstimate(data),
	})
}

func writeError(w http.ResponseWriter, endpoint string, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = output.JSONTo(w, envelope{
		Success:  false,
		Endpoint: endpoint,
		Error:    err.Error(),
	})
}
