// Copyright (C) 2025 DocQuay Contributors (maintainers@docquay.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/docquay/docquay/pkg/logging"
	"github.com/docquay/docquay/pkg/stream"
)

// =============================================================================
// Conversation State
// =============================================================================

// State is the conversation's lifecycle phase.
type State int

const (
	// StateIdle means no exchange is in flight; Submit is accepted.
	StateIdle State = iota

	// StateSubmitting means a question was accepted but no answer text
	// has arrived yet.
	StateSubmitting

	// StateStreaming means answer text is arriving.
	StateStreaming
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// errAbandoned stops the stream reader when a new chat discarded the
// in-flight exchange. Never returned to callers.
var errAbandoned = errors.New("exchange abandoned")

// =============================================================================
// Conversation
// =============================================================================

// Conversation is the state machine driving one chat transcript.
//
// # Description
//
// A Conversation owns the committed transcript, the pending answer
// buffer, and the Idle/Submitting/Streaming lifecycle. It submits
// questions through a QAService, buffers streamed answer text, and
// commits the assistant message atomically when the completion frame
// arrives. A failed exchange never commits partial answer text; it
// commits an error notice instead, and the user's question stays in
// the transcript.
//
// One Conversation serves any query mode; the mode lives in the
// QAService it wraps.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Only one exchange runs at a
// time: Submit returns ErrAlreadyBusy when called while another
// Submit is in flight. StartNew may be called at any time, including
// mid-stream, and wins over the in-flight exchange.
//
// # Examples
//
//	conv := NewConversation(ConversationConfig{
//	    Service:  service,
//	    Sessions: manager,
//	})
//
//	msg, err := conv.Submit(ctx, "Summarize the report", func(delta string) {
//	    fmt.Print(delta)
//	})
//	if errors.Is(err, ErrAlreadyBusy) { ... }
//
// # Limitations
//
//   - The delta callback runs with internal state held; it must not
//     call back into the Conversation.
//   - The transcript is in-memory only and lost on process exit.
type Conversation struct {
	service  QAService
	sessions SessionManager
	logger   *logging.Logger

	mu         sync.Mutex
	state      State
	generation int
	cancel     context.CancelFunc
	transcript []Message
	pending    strings.Builder
}

// ConversationConfig configures a Conversation.
type ConversationConfig struct {
	Service  QAService      // Transport for exchanges (required)
	Sessions SessionManager // Session owner, rotated by StartNew (required)
	Logger   *logging.Logger
}

// NewConversation creates an idle conversation with an empty transcript.
func NewConversation(config ConversationConfig) *Conversation {
	logger := config.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Conversation{
		service:  config.Service,
		sessions: config.Sessions,
		logger:   logger,
		state:    StateIdle,
	}
}

// Submit sends a question and blocks until the exchange finishes.
//
// The trimmed question is appended to the transcript immediately.
// onDelta (optional) receives each answer fragment as it arrives.
// On success the committed assistant message is returned. On failure
// the pending answer is discarded, an error notice is committed in its
// place, and the error is returned.
//
// Guards, checked synchronously before any network call:
//   - ErrEmptyInput: question is empty after trimming; no state change.
//   - ErrAlreadyBusy: another exchange is in flight; no state change.
func (c *Conversation) Submit(ctx context.Context, question string, onDelta func(text string)) (*Message, error) {
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return nil, ErrEmptyInput
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, ErrAlreadyBusy
	}
	c.state = StateSubmitting
	c.generation++
	gen := c.generation

	streamCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	defer cancel()

	c.transcript = append(c.transcript, NewMessage(RoleUser, trimmed))
	c.pending.Reset()
	c.mu.Unlock()

	result, err := c.service.StreamQuestion(streamCtx, trimmed, func(event stream.Event) error {
		return c.onEvent(gen, event, onDelta)
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	// A newer chat discarded this exchange; its transcript is gone and
	// nothing may be committed.
	if c.generation != gen {
		return nil, errorOrDefault(err, errAbandoned)
	}

	c.state = StateIdle
	c.cancel = nil

	if err == nil && !result.Completed {
		err = ErrStreamIncomplete
	}
	if err != nil {
		c.pending.Reset()
		notice := NewMessage(RoleAssistant, fmt.Sprintf("The answer could not be completed: %v", err))
		c.transcript = append(c.transcript, notice)
		c.logger.Warn("exchange failed",
			"state", c.state.String(),
			"error", err,
		)
		return nil, err
	}

	msg := NewMessage(RoleAssistant, result.Answer)
	msg.Sources = result.Sources
	c.transcript = append(c.transcript, msg)
	c.pending.Reset()

	return &msg, nil
}

// onEvent routes one stream event into the pending buffer.
func (c *Conversation) onEvent(gen int, event stream.Event, onDelta func(string)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen {
		return errAbandoned
	}

	switch event.Type {
	case stream.EventTextDelta:
		c.state = StateStreaming
		c.pending.WriteString(event.Text)
		if onDelta != nil {
			onDelta(event.Text)
		}

	case stream.EventTerminal:
		// Trailing text on the completion frame still belongs to the
		// answer.
		if event.Text != "" {
			c.pending.WriteString(event.Text)
			if onDelta != nil {
				onDelta(event.Text)
			}
		}

	case stream.EventMalformed:
		// Already counted and logged by the service; nothing to buffer.
	}

	return nil
}

// StartNew abandons any in-flight exchange, clears the transcript and
// pending buffer, and rotates the session. The next Submit runs
// against a fresh backend session.
func (c *Conversation) StartNew() {
	c.mu.Lock()
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.transcript = nil
	c.pending.Reset()
	c.state = StateIdle
	c.mu.Unlock()

	c.sessions.Rotate()
	c.logger.Info("conversation reset")
}

// State returns the current lifecycle phase.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transcript returns a snapshot of the committed messages.
func (c *Conversation) Transcript() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// Pending returns the answer text buffered so far for the in-flight
// exchange, or "" when idle.
func (c *Conversation) Pending() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.String()
}

// SessionID returns the backend session id, or "" before the first
// exchange.
func (c *Conversation) SessionID() string {
	return c.sessions.Current()
}

// errorOrDefault returns err when non-nil, otherwise fallback.
func errorOrDefault(err, fallback error) error {
	if err != nil {
		return err
	}
	return fallback
}
