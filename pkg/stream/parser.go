// Copyright (C) 2025 DocQuay Contributors (maintainers@docquay.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package stream decodes the backend's Server-Sent Events answer stream
// into typed events.
//
// This file contains the frame parser. Parsers are responsible for
// converting a single SSE frame payload into an Event struct.
//
// Single Responsibility:
//
//	Parsers ONLY parse. They do not perform I/O, rendering, or state
//	management. Framing (splitting the byte stream into frames) is the
//	StreamReader's job; this separation enables easy testing.
//
// Wire Format:
//
//	Each frame is a "data: " line followed by a blank line. The payload
//	is a JSON object:
//
//	  {"text": "Hello"}
//	  {"text": "", "done": true, "sources": ["report.pdf"], "history_id": "abc"}
//	  {"done": true, "web_sources": [{"url": "...", "title": "...", "content": "..."}]}
package stream

import (
	"encoding/json"
	"strings"
)

// =============================================================================
// Frame Parser Interface
// =============================================================================

// FrameParser converts a single SSE frame payload into an Event.
//
// The parser never fails the stream: payloads that are not valid JSON
// produce an EventMalformed carrying the raw text, so one corrupt frame
// cannot take down an otherwise healthy stream.
//
// Thread Safety:
//
//	FrameParser implementations must be safe for concurrent use.
//	The default implementation is stateless and inherently thread-safe.
//
// Example:
//
//	parser := NewFrameParser()
//	event := parser.ParseFrame(`data: {"text":"Hi"}`)
//	if event != nil {
//	    fmt.Println(event.Text) // "Hi"
//	}
type FrameParser interface {
	// ParseFrame parses a complete SSE frame (delimiter already stripped).
	//
	// Parameters:
	//   - frame: The frame text, with or without the "data: " prefix
	//
	// Returns:
	//   - *Event: The parsed event, or nil for empty/comment frames and
	//     for valid payloads that carry neither text nor a done flag
	ParseFrame(frame string) *Event

	// ParsePayload parses a raw JSON payload without the "data: " prefix.
	//
	// Automatically generates Id and sets CreatedAt.
	ParsePayload(payload []byte) *Event
}

// =============================================================================
// Frame Parser Implementation
// =============================================================================

// frameParser implements FrameParser for the backend's SSE format.
//
// This implementation is stateless and safe for concurrent use.
type frameParser struct{}

// NewFrameParser creates a new frame parser.
//
// The returned parser is stateless and can be safely shared across
// goroutines.
func NewFrameParser() FrameParser {
	return &frameParser{}
}

// ParseFrame parses a complete SSE frame.
//
// Handles the following frame types:
//   - Empty: Returns nil
//   - Comment (starts with ":"): Returns nil (ignored)
//   - Data (starts with "data:"): Parses JSON after prefix
//   - Other: Parsed as a bare JSON payload
func (p *frameParser) ParseFrame(frame string) *Event {
	frame = strings.TrimSpace(frame)

	if frame == "" {
		return nil
	}

	// Comments start with ":"
	if strings.HasPrefix(frame, ":") {
		return nil
	}

	if strings.HasPrefix(frame, "data: ") {
		return p.ParsePayload([]byte(strings.TrimPrefix(frame, "data: ")))
	}

	// Also handle "data:" without space (some servers do this)
	if strings.HasPrefix(frame, "data:") {
		return p.ParsePayload([]byte(strings.TrimPrefix(frame, "data:")))
	}

	return p.ParsePayload([]byte(frame))
}

// ParsePayload parses a JSON payload into an Event.
//
// Classification rules:
//   - done is truthy: terminal event. Web citations win over document
//     citations when both are present; document citations arrive as bare
//     strings and are promoted to URL-only sources.
//   - text is present (even empty) and done is falsy: text delta.
//   - invalid JSON: malformed event carrying the raw payload.
//   - valid JSON with neither text nor done: nil (unknown frame, skipped).
func (p *frameParser) ParsePayload(payload []byte) *Event {
	var raw struct {
		Text       *string  `json:"text"`
		Done       bool     `json:"done"`
		WebSources []Source `json:"web_sources"`
		Sources    []string `json:"sources"`
		HistoryID  string   `json:"history_id"`
	}

	if err := json.Unmarshal(payload, &raw); err != nil {
		event := NewMalformedEvent(string(payload))
		return &event
	}

	if raw.Done {
		text := ""
		if raw.Text != nil {
			text = *raw.Text
		}
		sources := raw.WebSources
		if len(sources) == 0 {
			for _, name := range raw.Sources {
				sources = append(sources, Source{URL: name})
			}
		}
		event := NewTerminalEvent(text, sources, raw.HistoryID)
		return &event
	}

	if raw.Text != nil {
		event := NewTextDeltaEvent(*raw.Text)
		return &event
	}

	// Valid JSON but nothing we understand. Skip rather than guess.
	return nil
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ FrameParser = (*frameParser)(nil)
