// Copyright (C) 2025 DocQuay Contributors (maintainers@docquay.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/docquay/docquay/pkg/stream"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// QueryMode selects the backend question endpoint family. Modes share
// identical wire semantics; only the URL path differs.
type QueryMode string

const (
	ModeDocumentQA QueryMode = "document-qa"
	ModeTourGuide  QueryMode = "tour-guide"
)

// String returns the mode name.
func (m QueryMode) String() string {
	return string(m)
}

// QuestionPath returns the non-streaming question endpoint path for
// the mode, without a leading slash. The tour guide family omits the
// question segment.
func (m QueryMode) QuestionPath() string {
	if m == ModeTourGuide {
		return "tour-guide"
	}
	return string(m) + "/question"
}

// StreamPath returns the streaming question endpoint path for the
// mode, without a leading slash.
func (m QueryMode) StreamPath() string {
	if m == ModeTourGuide {
		return "tour-guide/stream"
	}
	return string(m) + "/question/stream"
}

// Message is one committed transcript entry.
//
// Assistant messages carry the sources cited by the answer. User
// messages never have sources.
type Message struct {
	Id        string          `json:"id"`
	CreatedAt int64           `json:"created_at"` // Unix milliseconds
	Role      Role            `json:"role"`
	Text      string          `json:"text"`
	Sources   []stream.Source `json:"sources,omitempty"`
}

// NewMessage creates a transcript message with a fresh id and timestamp.
func NewMessage(role Role, text string) Message {
	return Message{
		Id:        uuid.New().String(),
		CreatedAt: time.Now().UnixMilli(),
		Role:      role,
		Text:      text,
	}
}

// questionRequest is the wire body for both the streaming and the
// non-streaming question endpoints.
type questionRequest struct {
	Question     string   `json:"question"`
	HistoryID    string   `json:"history_id,omitempty"`
	Model        string   `json:"model,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	UseWebSearch bool     `json:"use_web_search"`
}

// AnswerResponse is the non-streaming question endpoint's reply.
type AnswerResponse struct {
	Answer     string          `json:"answer"`
	Sources    []string        `json:"sources,omitempty"`
	WebSources []stream.Source `json:"web_sources,omitempty"`
	HistoryID  string          `json:"history_id,omitempty"`
}

// AllSources merges the response citations the same way the stream
// decoder does: web citations win, document names are promoted to
// URL-only sources.
func (r *AnswerResponse) AllSources() []stream.Source {
	if len(r.WebSources) > 0 {
		return r.WebSources
	}
	sources := make([]stream.Source, 0, len(r.Sources))
	for _, name := range r.Sources {
		sources = append(sources, stream.Source{URL: name})
	}
	return sources
}

// StatusResponse describes the backend's health and configuration.
type StatusResponse struct {
	Status           string `json:"status"`
	LLMModel         string `json:"llm_model,omitempty"`
	WebSearchEnabled bool   `json:"web_search_enabled,omitempty"`
	ActiveSessions   int    `json:"active_sessions,omitempty"`
	Message          string `json:"message,omitempty"`
}

// sessionResponse is the session creation endpoint's reply.
type sessionResponse struct {
	SessionID string `json:"session_id"`
}
