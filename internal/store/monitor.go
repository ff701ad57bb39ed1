// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Necrotome Contributors

package store

import (
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/event"
)

// healthMonitor tracks server heartbeat events emitted by the driver's
// topology monitor. It answers "is the client still connected" from state
// the driver already maintains, without issuing a round-trip of its own.
type healthMonitor struct {
	lastSuccess atomic.Int64 // unix nanos of the last successful heartbeat
	lastFailure atomic.Int64 // unix nanos of the last failed heartbeat
}

// ServerMonitor returns the driver hook that feeds this monitor.
func (h *healthMonitor) ServerMonitor() *event.ServerMonitor {
	return &event.ServerMonitor{
		ServerHeartbeatSucceeded: func(_ *event.ServerHeartbeatSucceededEvent) {
			h.lastSuccess.Store(time.Now().UnixNano())
		},
		ServerHeartbeatFailed: func(_ *event.ServerHeartbeatFailedEvent) {
			h.lastFailure.Store(time.Now().UnixNano())
		},
	}
}

// Healthy reports whether a heartbeat succeeded within the window and no
// failure has been observed since.
func (h *healthMonitor) Healthy(now time.Time, window time.Duration) bool {
	success := h.lastSuccess.Load()
	if success == 0 {
		return false
	}
	if now.Sub(time.Unix(0, success)) > window {
		return false
	}
	return h.lastFailure.Load() <= success
}

// Reset clears recorded heartbeats. Called when the client is discarded so
// a stale success cannot vouch for a future client.
func (h *healthMonitor) Reset() {
	h.lastSuccess.Store(0)
	h.lastFailure.Store(0)
}
