// Copyright (C) 2025 DocQuay Contributors (maintainers@docquay.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package chat implements the client-side chat session layer for the
// DocQuay backend: session management, the question-answer transport,
// and the conversation state machine that CLI frontends drive.
//
// # Architecture
//
//	CLI Loop → Conversation → QAService Interface → HTTPClient Interface → http.Client
//	                               ↓
//	                    stream.FrameParser → stream.StreamReader
//
// This file contains the HTTP client abstraction. Injecting HTTPClient
// instead of using *http.Client directly enables testing every layer
// above it with mock transports.
package chat

import (
	"context"
	"io"
	"net/http"
	"time"
)

// =============================================================================
// HTTP Client Interface
// =============================================================================

// HTTPClient abstracts the HTTP operations the chat layer needs.
//
// Implementations must honor context cancellation: an in-flight request
// is aborted when ctx is cancelled.
type HTTPClient interface {
	// Get performs an HTTP GET. Caller must close the response body.
	Get(ctx context.Context, url string) (*http.Response, error)

	// Post performs an HTTP POST. Caller must close the response body.
	Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error)
}

// =============================================================================
// Default Implementation
// =============================================================================

// defaultHTTPClient wraps the standard http.Client.
type defaultHTTPClient struct {
	client *http.Client
}

// NewHTTPClient creates the production HTTP client.
//
// The timeout bounds the entire request including the streamed body
// read; pass a generous value for streaming endpoints. Zero means no
// timeout (cancellation then comes only from ctx).
func NewHTTPClient(timeout time.Duration) HTTPClient {
	return &defaultHTTPClient{
		client: &http.Client{Timeout: timeout},
	}
}

func (c *defaultHTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.client.Do(req)
}

func (c *defaultHTTPClient) Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.client.Do(req)
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ HTTPClient = (*defaultHTTPClient)(nil)
