// Copyright (C) 2025 DocQuay Contributors (maintainers@docquay.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package chat

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned when a submitted question is empty or
// whitespace-only. The conversation state does not change.
var ErrEmptyInput = errors.New("question is empty")

// ErrAlreadyBusy is returned when a question is submitted while a
// previous exchange is still in flight. The caller should wait for the
// current exchange to finish or start a new chat.
var ErrAlreadyBusy = errors.New("a response is already in progress")

// ErrStreamIncomplete is returned when the backend closed the stream
// without sending a completion frame. The partial answer is discarded.
var ErrStreamIncomplete = errors.New("stream ended before completion")

// SessionCreateError reports a failure to create a backend session.
type SessionCreateError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *SessionCreateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("create session: %v", e.Err)
	}
	return fmt.Sprintf("create session: backend returned %d: %s", e.StatusCode, e.Body)
}

func (e *SessionCreateError) Unwrap() error {
	return e.Err
}

// TransportError reports an HTTP-level failure while talking to the
// backend: connection errors, non-200 statuses, or a broken stream.
type TransportError struct {
	Op         string // "stream", "ask", "status"
	URL        string
	StatusCode int // 0 when the request never completed
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s: backend returned %d: %s", e.Op, e.URL, e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
