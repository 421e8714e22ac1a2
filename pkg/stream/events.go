// Copyright (C) 2025 DocQuay Contributors (maintainers@docquay.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stream

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of streaming event.
type EventType string

const (
	// EventTextDelta carries an incremental text fragment of the answer.
	EventTextDelta EventType = "text_delta"

	// EventTerminal is the final frame of a stream. It carries completion
	// metadata (sources, session id) and may carry trailing answer text.
	EventTerminal EventType = "terminal"

	// EventMalformed marks a frame whose payload could not be decoded.
	// Malformed frames are logged and skipped; they never end the stream.
	EventMalformed EventType = "malformed"
)

// String returns the wire name of the event type.
func (t EventType) String() string {
	return string(t)
}

// IsTerminal reports whether this event type ends the stream.
func (t EventType) IsTerminal() bool {
	return t == EventTerminal
}

// Source represents a citation attached to an assistant answer.
//
// URL is the only required field. Web-search citations carry a title and
// a content excerpt; document citations arrive as bare names and are
// promoted to URL-only sources.
type Source struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
}

// DisplayTitle returns the title for rendering, falling back to the URL
// when the backend did not provide one.
func (s Source) DisplayTitle() string {
	if s.Title != "" {
		return s.Title
	}
	return s.URL
}

// Event is a single decoded frame from the answer stream.
//
// Events are transient: they are produced by the StreamReader, consumed
// immediately by the caller's callback, and never persisted.
type Event struct {
	Id        string    `json:"id"`
	CreatedAt int64     `json:"created_at"` // Unix milliseconds
	Index     int       `json:"index"`      // Arrival order within the stream
	Type      EventType `json:"type"`
	Text      string    `json:"text,omitempty"`       // Delta text, or trailing text on terminal
	Sources   []Source  `json:"sources,omitempty"`    // Terminal only
	SessionID string    `json:"session_id,omitempty"` // Terminal only
	Raw       string    `json:"raw,omitempty"`        // Original payload of a malformed frame
}

// IsTerminal reports whether this event ends the stream.
func (e Event) IsTerminal() bool {
	return e.Type.IsTerminal()
}

// CreatedAtTime returns CreatedAt as a time.Time.
func (e Event) CreatedAtTime() time.Time {
	return time.UnixMilli(e.CreatedAt)
}

// NewTextDeltaEvent creates a text delta event.
func NewTextDeltaEvent(text string) Event {
	return Event{
		Id:        uuid.New().String(),
		CreatedAt: time.Now().UnixMilli(),
		Type:      EventTextDelta,
		Text:      text,
	}
}

// NewTerminalEvent creates a terminal event. Trailing text, sources, and
// the session id are all optional.
func NewTerminalEvent(text string, sources []Source, sessionID string) Event {
	return Event{
		Id:        uuid.New().String(),
		CreatedAt: time.Now().UnixMilli(),
		Type:      EventTerminal,
		Text:      text,
		Sources:   sources,
		SessionID: sessionID,
	}
}

// NewMalformedEvent creates a malformed-frame event carrying the raw
// payload for diagnostics.
func NewMalformedEvent(raw string) Event {
	return Event{
		Id:        uuid.New().String(),
		CreatedAt: time.Now().UnixMilli(),
		Type:      EventMalformed,
		Raw:       raw,
	}
}
