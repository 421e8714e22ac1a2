// Copyright (C) 2025 DocQuay Contributors (maintainers@docquay.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stream

import (
	"errors"
	"time"
)

// ErrStreamIdle is returned when the gap between network reads exceeds
// the reader's idle timeout. The backend has stalled without closing the
// connection.
var ErrStreamIdle = errors.New("stream idle timeout exceeded")

// StreamResult aggregates a complete answer stream.
//
// Timestamps are Unix milliseconds. FirstDeltaAt is zero when the stream
// produced no delta events.
type StreamResult struct {
	Id              string   `json:"id"`
	CreatedAt       int64    `json:"created_at"`
	FirstDeltaAt    int64    `json:"first_delta_at,omitempty"`
	CompletedAt     int64    `json:"completed_at"`
	Answer          string   `json:"answer"`
	Sources         []Source `json:"sources,omitempty"`
	SessionID       string   `json:"session_id,omitempty"`
	Completed       bool     `json:"completed"` // True when a terminal frame arrived
	TotalEvents     int      `json:"total_events"`
	TotalDeltas     int      `json:"total_deltas"`
	MalformedFrames int      `json:"malformed_frames,omitempty"`
}

// Duration returns the total stream duration.
func (r *StreamResult) Duration() time.Duration {
	return time.Duration(r.CompletedAt-r.CreatedAt) * time.Millisecond
}

// TimeToFirstDelta returns the latency before the first answer text
// arrived, or zero if no deltas arrived.
func (r *StreamResult) TimeToFirstDelta() time.Duration {
	if r.FirstDeltaAt == 0 {
		return 0
	}
	return time.Duration(r.FirstDeltaAt-r.CreatedAt) * time.Millisecond
}

// DeltasPerSecond returns the delta arrival rate over the stream
// duration, or zero for an instantaneous or empty stream.
func (r *StreamResult) DeltasPerSecond() float64 {
	d := r.Duration().Seconds()
	if d <= 0 || r.TotalDeltas == 0 {
		return 0
	}
	return float64(r.TotalDeltas) / d
}
