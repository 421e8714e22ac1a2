// Copyright (C) 2025 DocQuay Contributors (maintainers@docquay.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/docquay/docquay/pkg/logging"
	"github.com/docquay/docquay/pkg/stream"
)

// defaultRequestTimeout bounds backend requests including the streamed
// body read.
const defaultRequestTimeout = 5 * time.Minute

// defaultIdleTimeout is the maximum gap between stream reads before a
// stalled answer is abandoned.
const defaultIdleTimeout = 90 * time.Second

// =============================================================================
// QA Service Interface
// =============================================================================

// QAService is the transport layer for question-answer exchanges.
//
// # Description
//
// The service talks to the backend's question endpoints for one query
// mode. It owns session wiring: questions are sent with the current
// session id, and the session id reported on completed answers is
// adopted. It performs no transcript management; that is the
// Conversation's job.
//
// # Inputs
//
// Methods accept context.Context for cancellation and timeout control.
// Question inputs must be non-empty; callers validate.
//
// # Outputs
//
// StreamQuestion returns *stream.StreamResult containing:
//   - Answer: Complete concatenated response
//   - Sources: Citations from the terminal frame
//   - SessionID: Backend session id for this exchange
//   - Completed: Whether a terminal frame arrived
//
// # Examples
//
//	service := NewQAService(QAServiceConfig{
//	    BaseURL:  "http://localhost:8000",
//	    Mode:     ModeDocumentQA,
//	    Sessions: manager,
//	})
//
//	result, err := service.StreamQuestion(ctx, "What is in chapter 3?",
//	    func(event stream.Event) error {
//	        if event.Type == stream.EventTextDelta {
//	            fmt.Print(event.Text)
//	        }
//	        return nil
//	    })
//
// # Limitations
//
//   - Does not retry on transient errors
//   - Context cancellation discards any partially streamed result; the
//     callback has already seen the delivered events
//
// # Assumptions
//
//   - Backend speaks the blank-line-delimited SSE format
//   - Caller handles context lifecycle
type QAService interface {
	// StreamQuestion sends a question and streams the answer.
	//
	// onEvent is invoked for every decoded event in arrival order; pass
	// nil to collect silently. The returned result aggregates the full
	// exchange even when events were streamed to the callback.
	//
	// Returns *TransportError on HTTP failures and *SessionCreateError
	// when no session could be established.
	StreamQuestion(ctx context.Context, question string, onEvent stream.Callback) (*stream.StreamResult, error)

	// Ask sends a question to the non-streaming endpoint and returns
	// the complete answer.
	Ask(ctx context.Context, question string) (*AnswerResponse, error)

	// Status fetches the backend's health and configuration.
	Status(ctx context.Context) (*StatusResponse, error)

	// Close releases resources held by the service.
	Close() error
}

// =============================================================================
// Configuration
// =============================================================================

// QAServiceConfig holds configuration for the QA service.
//
// Only BaseURL, Mode, and Sessions are required.
type QAServiceConfig struct {
	BaseURL      string         // Backend root without trailing slash (required)
	Mode         QueryMode      // Question endpoint family (required)
	Sessions     SessionManager // Session id owner (required)
	Model        string         // Backend model override (optional)
	Temperature  *float64       // Sampling temperature override (optional)
	UseWebSearch bool           // Enable web search augmentation (optional)
	Timeout      time.Duration  // HTTP timeout (optional, default 5m)
	IdleTimeout  time.Duration  // Stream idle timeout (optional, default 90s)
	Logger       *logging.Logger
}

// =============================================================================
// HTTP QA Service
// =============================================================================

// httpQAService implements QAService over the backend's HTTP API.
type httpQAService struct {
	client       HTTPClient
	reader       stream.StreamReader
	sessions     SessionManager
	logger       *logging.Logger
	baseURL      string
	mode         QueryMode
	model        string
	temperature  *float64
	useWebSearch bool
}

// NewQAService creates a QA service with the production HTTP client.
func NewQAService(config QAServiceConfig) QAService {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}
	return NewQAServiceWithClient(NewHTTPClient(timeout), config)
}

// NewQAServiceWithClient creates a QA service with an injected HTTP
// client. Use this constructor for testing with mock transports.
func NewQAServiceWithClient(client HTTPClient, config QAServiceConfig) QAService {
	logger := config.Logger
	if logger == nil {
		logger = logging.Default()
	}

	idle := config.IdleTimeout
	if idle == 0 {
		idle = defaultIdleTimeout
	}

	return &httpQAService{
		client:       client,
		reader:       stream.NewSSEStreamReader(stream.NewFrameParser(), idle),
		sessions:     config.Sessions,
		logger:       logger,
		baseURL:      config.BaseURL,
		mode:         config.Mode,
		model:        config.Model,
		temperature:  config.Temperature,
		useWebSearch: config.UseWebSearch,
	}
}

// StreamQuestion sends a question and streams the answer.
//
// Flow: ensure session → POST question → validate status → decode SSE
// stream → adopt the terminal frame's session id.
func (s *httpQAService) StreamQuestion(ctx context.Context, question string, onEvent stream.Callback) (*stream.StreamResult, error) {
	requestID := uuid.New().String()

	sessionID, err := s.sessions.Ensure(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("sending streaming question",
		"request_id", requestID,
		"session_id", sessionID,
		"mode", s.mode,
		"question_length", len(question),
		"web_search", s.useWebSearch,
	)

	url := fmt.Sprintf("%s/%s", s.baseURL, s.mode.StreamPath())
	resp, err := s.postQuestion(ctx, requestID, url, question, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.logger.Error("failed to close response body", "error", err)
		}
	}()

	if err := s.validateResponse(requestID, "stream", url, resp); err != nil {
		return nil, err
	}

	result, err := s.processStream(ctx, requestID, resp.Body, onEvent)
	if err != nil {
		return nil, err
	}

	s.sessions.Adopt(result.SessionID)

	s.logger.Debug("streaming question completed",
		"request_id", requestID,
		"session_id", result.SessionID,
		"total_deltas", result.TotalDeltas,
		"malformed_frames", result.MalformedFrames,
		"duration_ms", result.Duration().Milliseconds(),
		"sources_count", len(result.Sources),
	)

	return result, nil
}

// Ask sends a question to the non-streaming endpoint.
func (s *httpQAService) Ask(ctx context.Context, question string) (*AnswerResponse, error) {
	requestID := uuid.New().String()

	sessionID, err := s.sessions.Ensure(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("sending question",
		"request_id", requestID,
		"session_id", sessionID,
		"mode", s.mode,
		"question_length", len(question),
	)

	url := fmt.Sprintf("%s/%s", s.baseURL, s.mode.QuestionPath())
	resp, err := s.postQuestion(ctx, requestID, url, question, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.logger.Error("failed to close response body", "error", err)
		}
	}()

	if err := s.validateResponse(requestID, "ask", url, resp); err != nil {
		return nil, err
	}

	var answer AnswerResponse
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, &TransportError{Op: "ask", URL: url, Err: fmt.Errorf("decode response: %w", err)}
	}

	s.sessions.Adopt(answer.HistoryID)

	return &answer, nil
}

// Status fetches the backend's health and configuration.
func (s *httpQAService) Status(ctx context.Context) (*StatusResponse, error) {
	url := fmt.Sprintf("%s/status", s.baseURL)

	resp, err := s.client.Get(ctx, url)
	if err != nil {
		return nil, &TransportError{Op: "status", URL: url, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.logger.Error("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &TransportError{Op: "status", URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, &TransportError{Op: "status", URL: url, Err: fmt.Errorf("decode response: %w", err)}
	}

	return &status, nil
}

// Close releases resources. No-op for the HTTP implementation.
func (s *httpQAService) Close() error {
	return nil
}

// postQuestion marshals and sends the question request body.
func (s *httpQAService) postQuestion(ctx context.Context, requestID, url, question, sessionID string) (*http.Response, error) {
	reqBody := questionRequest{
		Question:     question,
		HistoryID:    sessionID,
		Model:        s.model,
		Temperature:  s.temperature,
		UseWebSearch: s.useWebSearch,
	}

	postBody, err := json.Marshal(reqBody)
	if err != nil {
		s.logger.Error("failed to marshal question request",
			"request_id", requestID,
			"error", err,
		)
		return nil, &TransportError{Op: "stream", URL: url, Err: fmt.Errorf("marshal request: %w", err)}
	}

	resp, err := s.client.Post(ctx, url, "application/json", bytes.NewBuffer(postBody))
	if err != nil {
		s.logger.Error("question HTTP request failed",
			"request_id", requestID,
			"url", url,
			"error", err,
		)
		return nil, &TransportError{Op: "stream", URL: url, Err: err}
	}

	return resp, nil
}

// validateResponse checks for 200 OK, consuming the body on error.
func (s *httpQAService) validateResponse(requestID, op, url string, resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		s.logger.Error("backend returned error (failed to read body)",
			"request_id", requestID,
			"status_code", resp.StatusCode,
			"read_error", err,
		)
		return &TransportError{Op: op, URL: url, StatusCode: resp.StatusCode}
	}

	s.logger.Error("backend returned error",
		"request_id", requestID,
		"status_code", resp.StatusCode,
		"response_body", string(body),
	)
	return &TransportError{Op: op, URL: url, StatusCode: resp.StatusCode, Body: string(body)}
}

// processStream decodes the SSE body, forwarding events to onEvent
// while aggregating the result.
func (s *httpQAService) processStream(ctx context.Context, requestID string, body io.Reader, onEvent stream.Callback) (*stream.StreamResult, error) {
	result := &stream.StreamResult{
		Id:        uuid.New().String(),
		CreatedAt: time.Now().UnixMilli(),
	}

	var answer bytes.Buffer

	err := s.reader.Read(ctx, body, func(event stream.Event) error {
		result.TotalEvents++

		switch event.Type {
		case stream.EventTextDelta:
			if result.FirstDeltaAt == 0 {
				result.FirstDeltaAt = time.Now().UnixMilli()
			}
			answer.WriteString(event.Text)
			result.TotalDeltas++

		case stream.EventTerminal:
			answer.WriteString(event.Text)
			result.Sources = append(result.Sources, event.Sources...)
			result.SessionID = event.SessionID
			result.Completed = true
			result.CompletedAt = time.Now().UnixMilli()

		case stream.EventMalformed:
			result.MalformedFrames++
			s.logger.Warn("skipping malformed stream frame",
				"request_id", requestID,
				"frame_length", len(event.Raw),
			)
		}

		if onEvent != nil {
			return onEvent(event)
		}
		return nil
	})

	result.Answer = answer.String()
	if result.CompletedAt == 0 {
		result.CompletedAt = time.Now().UnixMilli()
	}

	if err != nil {
		s.logger.Error("stream reading failed",
			"request_id", requestID,
			"error", err,
		)
		return nil, fmt.Errorf("read stream: %w", err)
	}

	return result, nil
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ QAService = (*httpQAService)(nil)
