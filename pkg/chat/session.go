// Copyright (C) 2025 DocQuay Contributors (maintainers@docquay.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/docquay/docquay/pkg/logging"
)

// =============================================================================
// Session Manager Interface
// =============================================================================

// SessionManager owns the backend session id for a conversation.
//
// # Description
//
// The backend keys chat history by a server-assigned session id. The
// manager creates sessions lazily, caches the current id, and accepts
// migrations when the backend reports a different id on a completed
// answer (the terminal frame's history_id wins).
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
//
// # Examples
//
//	manager := NewSessionManager(SessionManagerConfig{
//	    BaseURL: "http://localhost:8000",
//	    Logger:  logging.Default(),
//	})
//
//	id, err := manager.Ensure(ctx)
//	if err != nil {
//	    var scErr *SessionCreateError
//	    if errors.As(err, &scErr) { ... }
//	}
type SessionManager interface {
	// Current returns the cached session id, or "" when no session
	// exists yet. Never performs network I/O.
	Current() string

	// Ensure returns the cached session id, creating one on the
	// backend first if none exists.
	//
	// Returns *SessionCreateError when the backend refuses or the
	// request fails; the cached id stays empty in that case.
	Ensure(ctx context.Context) (string, error)

	// Adopt replaces the cached id with one reported by the backend.
	// Empty ids are ignored.
	Adopt(sessionID string)

	// Rotate discards the cached id. The next Ensure creates a fresh
	// backend session. Used when the user starts a new chat.
	Rotate()
}

// =============================================================================
// Configuration
// =============================================================================

// SessionManagerConfig configures the HTTP session manager.
type SessionManagerConfig struct {
	// BaseURL is the backend root, without trailing slash. Required.
	BaseURL string

	// SessionID seeds the manager with an existing session. Optional.
	SessionID string

	// Logger for session lifecycle events. Defaults to logging.Default().
	Logger *logging.Logger
}

// =============================================================================
// HTTP Session Manager
// =============================================================================

// httpSessionManager implements SessionManager against the backend's
// POST /session endpoint.
type httpSessionManager struct {
	client    HTTPClient
	baseURL   string
	logger    *logging.Logger
	mu        sync.Mutex
	sessionID string
}

// NewSessionManager creates a session manager with the production HTTP
// client.
func NewSessionManager(config SessionManagerConfig) SessionManager {
	return NewSessionManagerWithClient(NewHTTPClient(defaultRequestTimeout), config)
}

// NewSessionManagerWithClient creates a session manager with an
// injected HTTP client. Use this constructor for testing.
func NewSessionManagerWithClient(client HTTPClient, config SessionManagerConfig) SessionManager {
	logger := config.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &httpSessionManager{
		client:    client,
		baseURL:   config.BaseURL,
		logger:    logger,
		sessionID: config.SessionID,
	}
}

// Current returns the cached session id.
func (m *httpSessionManager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Ensure returns the cached session id, creating one if needed.
//
// Concurrent callers serialize on the lock, so at most one backend
// session is ever created per rotation.
func (m *httpSessionManager) Ensure(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessionID != "" {
		return m.sessionID, nil
	}

	id, err := m.create(ctx)
	if err != nil {
		return "", err
	}

	m.sessionID = id
	m.logger.Info("session created", "session_id", id)
	return id, nil
}

// create calls POST /session. Caller holds the lock.
func (m *httpSessionManager) create(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/session", m.baseURL)

	resp, err := m.client.Post(ctx, url, "application/json", nil)
	if err != nil {
		m.logger.Error("session create request failed", "url", url, "error", err)
		return "", &SessionCreateError{Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			m.logger.Error("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		m.logger.Error("session create rejected",
			"url", url,
			"status_code", resp.StatusCode,
		)
		return "", &SessionCreateError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &SessionCreateError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.SessionID == "" {
		return "", &SessionCreateError{Err: fmt.Errorf("backend returned empty session id")}
	}

	return parsed.SessionID, nil
}

// Adopt replaces the cached id with a backend-reported one.
func (m *httpSessionManager) Adopt(sessionID string) {
	if sessionID == "" {
		return
	}

	m.mu.Lock()
	old := m.sessionID
	m.sessionID = sessionID
	m.mu.Unlock()

	if old != sessionID {
		m.logger.Info("session id adopted from backend",
			"old_session_id", old,
			"new_session_id", sessionID,
		)
	}
}

// Rotate discards the cached id.
func (m *httpSessionManager) Rotate() {
	m.mu.Lock()
	old := m.sessionID
	m.sessionID = ""
	m.mu.Unlock()

	if old != "" {
		m.logger.Info("session rotated", "old_session_id", old)
	}
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ SessionManager = (*httpSessionManager)(nil)
