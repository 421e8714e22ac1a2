// Copyright (C) 2025 DocQuay Contributors (maintainers@docquay.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package stream decodes the backend's Server-Sent Events answer stream
// into typed events.
//
// This file contains the stream reader, which consumes an io.Reader and
// emits parsed events via a callback.
//
// Single Responsibility:
//
//	The reader handles I/O, framing, and event sequencing. It uses a
//	FrameParser to convert frames to events, but does not render output.
//
// Framing:
//
//	SSE frames are delimited by blank lines. Network chunk boundaries do
//	not align with frame boundaries, so the reader keeps a carry buffer:
//	bytes after the last complete delimiter are held until the next chunk
//	arrives. A frame split across two chunks is decoded exactly once and
//	never dropped.
package stream

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Callback is invoked for each decoded event. Returning an error stops
// the read and propagates the error to the caller.
type Callback func(event Event) error

// frameDelimiter separates SSE frames on the wire.
const frameDelimiter = "\n\n"

// readChunkSize is the size of the buffer handed to each network read.
const readChunkSize = 4096

// =============================================================================
// Stream Reader Interface
// =============================================================================

// StreamReader reads an SSE answer stream and invokes callbacks.
//
// Thread Safety:
//
//	StreamReader implementations must be safe for concurrent use.
//	However, a single Read/ReadAll operation should not be called
//	concurrently on the same reader instance.
//
// Example:
//
//	reader := NewSSEStreamReader(NewFrameParser(), 0)
//
//	err := reader.Read(ctx, httpResp.Body, func(event stream.Event) error {
//	    if event.Type == stream.EventTextDelta {
//	        fmt.Print(event.Text)
//	    }
//	    return nil
//	})
type StreamReader interface {
	// Read processes a stream, invoking callback for each event.
	//
	// Parameters:
	//   - ctx: Context for cancellation. When cancelled, stops reading.
	//   - r: The source to read from. Caller is responsible for closing.
	//   - callback: Invoked for each parsed event. Return error to stop.
	//
	// Returns:
	//   - error: nil on successful completion, otherwise the error that
	//     stopped reading (context cancellation, idle timeout, transport
	//     error, or callback error)
	//
	// The stream is considered complete when:
	//   - A terminal event is received (at most one is ever emitted;
	//     anything after it is discarded)
	//   - EOF is reached
	//   - Context is cancelled or the idle timeout elapses
	//   - Callback returns an error
	Read(ctx context.Context, r io.Reader, callback Callback) error

	// ReadAll reads the entire stream and returns an aggregated result.
	//
	// This is a convenience method that collects all events into a
	// StreamResult. Use Read() when you need real-time event processing.
	ReadAll(ctx context.Context, r io.Reader) (*StreamResult, error)
}

// =============================================================================
// SSE Stream Reader
// =============================================================================

// sseStreamReader implements StreamReader for the blank-line-delimited
// SSE format.
type sseStreamReader struct {
	parser      FrameParser
	idleTimeout time.Duration
}

// NewSSEStreamReader creates a new SSE stream reader.
//
// Parameters:
//   - parser: The frame parser to use.
//   - idleTimeout: Maximum gap between network reads before the stream
//     is abandoned with ErrStreamIdle. Zero disables the timeout.
//
// Example:
//
//	reader := NewSSEStreamReader(NewFrameParser(), 60*time.Second)
func NewSSEStreamReader(parser FrameParser, idleTimeout time.Duration) StreamReader {
	return &sseStreamReader{
		parser:      parser,
		idleTimeout: idleTimeout,
	}
}

// chunk is one network read handed from the feeder goroutine to Read.
type chunk struct {
	data []byte
	err  error
}

// Read processes an SSE stream, invoking callback for each event.
//
// Network reads happen on a feeder goroutine so that a stalled backend
// cannot block cancellation. The framing buffer carries partial frames
// across chunk boundaries.
func (r *sseStreamReader) Read(ctx context.Context, reader io.Reader, callback Callback) error {
	// The feeder blocks on the chunks send once Read has returned, so
	// every return path must release it, not just caller cancellation.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan chunk)
	go func() {
		defer close(chunks)
		for {
			buf := make([]byte, readChunkSize)
			n, err := reader.Read(buf)
			select {
			case chunks <- chunk{data: buf[:n], err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var idle *time.Timer
	var idleC <-chan time.Time
	if r.idleTimeout > 0 {
		idle = time.NewTimer(r.idleTimeout)
		defer idle.Stop()
		idleC = idle.C
	}

	var carry bytes.Buffer
	eventIndex := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-idleC:
			return ErrStreamIdle

		case c, ok := <-chunks:
			if !ok {
				return nil
			}
			if idle != nil {
				if !idle.Stop() {
					<-idle.C
				}
				idle.Reset(r.idleTimeout)
			}

			carry.Write(c.data)

			// Drain every complete frame in the buffer; the tail after
			// the last delimiter stays in carry for the next chunk.
			for {
				buffered := carry.String()
				end := strings.Index(buffered, frameDelimiter)
				if end < 0 {
					break
				}
				frame := buffered[:end]
				carry.Reset()
				carry.WriteString(buffered[end+len(frameDelimiter):])

				done, err := r.dispatch(frame, &eventIndex, callback)
				if err != nil {
					return err
				}
				if done {
					return nil
				}
			}

			if c.err != nil {
				if c.err == io.EOF {
					// A final frame may end at EOF without a trailing
					// delimiter; flush it before finishing.
					if carry.Len() > 0 {
						if done, err := r.dispatch(carry.String(), &eventIndex, callback); err != nil {
							return err
						} else if done {
							return nil
						}
					}
					return nil
				}
				return c.err
			}
		}
	}
}

// dispatch parses one frame and invokes the callback. Returns done=true
// when a terminal event ended the stream.
func (r *sseStreamReader) dispatch(frame string, eventIndex *int, callback Callback) (bool, error) {
	event := r.parser.ParseFrame(frame)
	if event == nil {
		return false, nil
	}

	event.Index = *eventIndex
	*eventIndex++

	if err := callback(*event); err != nil {
		return false, err
	}

	return event.IsTerminal(), nil
}

// ReadAll reads the entire stream and returns an aggregated result.
//
// Collects all delta text into Answer, captures sources and session ID
// from the terminal frame, and counts malformed frames.
func (r *sseStreamReader) ReadAll(ctx context.Context, reader io.Reader) (*StreamResult, error) {
	result := &StreamResult{
		Id:        uuid.New().String(),
		CreatedAt: time.Now().UnixMilli(),
	}

	var answer strings.Builder

	err := r.Read(ctx, reader, func(event Event) error {
		result.TotalEvents++

		switch event.Type {
		case EventTextDelta:
			if result.FirstDeltaAt == 0 {
				result.FirstDeltaAt = time.Now().UnixMilli()
			}
			answer.WriteString(event.Text)
			result.TotalDeltas++

		case EventTerminal:
			answer.WriteString(event.Text)
			result.Sources = append(result.Sources, event.Sources...)
			result.SessionID = event.SessionID
			result.Completed = true
			result.CompletedAt = time.Now().UnixMilli()

		case EventMalformed:
			result.MalformedFrames++
		}

		return nil
	})

	result.Answer = answer.String()

	if result.CompletedAt == 0 {
		result.CompletedAt = time.Now().UnixMilli()
	}

	return result, err
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ StreamReader = (*sseStreamReader)(nil)
