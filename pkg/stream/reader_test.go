// Copyright (C) 2025 DocQuay Contributors (maintainers@docquay.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stream

import (
	"context"
	"errors"
	"io"
	"runtime"
	"strings"
	"testing"
	"time"
)

// chunkedReader yields its chunks one Read call at a time, simulating
// arbitrary network chunk boundaries.
type chunkedReader struct {
	chunks []string
	pos    int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.chunks) {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[r.pos])
	r.pos++
	return n, nil
}

// slowReader blocks for delay before every Read.
type slowReader struct {
	delay time.Duration
	inner io.Reader
}

func (r *slowReader) Read(p []byte) (int, error) {
	time.Sleep(r.delay)
	return r.inner.Read(p)
}

func collect(t *testing.T, reader StreamReader, src io.Reader) []Event {
	t.Helper()
	var events []Event
	err := reader.Read(context.Background(), src, func(e Event) error {
		events = append(events, e)
		return nil
	})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	return events
}

func TestRead_BasicStream(t *testing.T) {
	body := "data: {\"text\":\"Hel\"}\n\n" +
		"data: {\"text\":\"lo\"}\n\n" +
		"data: {\"text\":\"\",\"done\":true,\"history_id\":\"sess-1\"}\n\n"

	reader := NewSSEStreamReader(NewFrameParser(), 0)
	events := collect(t, reader, strings.NewReader(body))

	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Text+events[1].Text != "Hello" {
		t.Errorf("concatenated deltas = %q, want %q", events[0].Text+events[1].Text, "Hello")
	}
	if !events[2].IsTerminal() {
		t.Error("last event should be terminal")
	}
	for i, e := range events {
		if e.Index != i {
			t.Errorf("event %d has Index %d", i, e.Index)
		}
	}
}

func TestRead_FrameSplitAcrossChunks(t *testing.T) {
	// The frame boundary falls mid-payload and mid-delimiter. Every
	// frame must still be decoded exactly once.
	src := &chunkedReader{chunks: []string{
		"data: {\"te",
		"xt\":\"Hello\"}\n",
		"\ndata: {\"text\":\" world\"}",
		"\n\ndata: {\"done\":true}\n\n",
	}}

	reader := NewSSEStreamReader(NewFrameParser(), 0)
	events := collect(t, reader, src)

	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if got := events[0].Text + events[1].Text; got != "Hello world" {
		t.Errorf("concatenated deltas = %q, want %q", got, "Hello world")
	}
	if !events[2].IsTerminal() {
		t.Error("expected terminal event last")
	}
}

func TestRead_ManyFramesInOneChunk(t *testing.T) {
	src := &chunkedReader{chunks: []string{
		"data: {\"text\":\"a\"}\n\ndata: {\"text\":\"b\"}\n\ndata: {\"text\":\"c\"}\n\ndata: {\"done\":true}\n\n",
	}}

	reader := NewSSEStreamReader(NewFrameParser(), 0)
	events := collect(t, reader, src)

	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
}

// The terminal short-circuit returns before the feeder goroutine
// finishes draining the source. With an undying parent context the
// feeder must still exit rather than block on its next send forever.
func TestRead_TerminalReleasesFeederGoroutine(t *testing.T) {
	reader := NewSSEStreamReader(NewFrameParser(), 0)
	body := "data: {\"done\":true}\n\n"

	before := runtime.NumGoroutine()

	for i := 0; i < 20; i++ {
		src := &chunkedReader{chunks: []string{body, "data: ignored"}}
		err := reader.Read(context.Background(), src, func(Event) error { return nil })
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
	}

	// Feeders exit asynchronously after Read returns.
	var after int
	for i := 0; i < 50; i++ {
		after = runtime.NumGoroutine()
		if after <= before+1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if after > before+1 {
		t.Errorf("goroutines grew from %d to %d after terminal-terminated reads", before, after)
	}
}

func TestRead_StopsAtFirstTerminal(t *testing.T) {
	body := "data: {\"done\":true}\n\n" +
		"data: {\"text\":\"after the end\"}\n\n" +
		"data: {\"done\":true}\n\n"

	reader := NewSSEStreamReader(NewFrameParser(), 0)
	events := collect(t, reader, strings.NewReader(body))

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if !events[0].IsTerminal() {
		t.Error("expected terminal event")
	}
}

func TestRead_MalformedFrameDoesNotStopStream(t *testing.T) {
	body := "data: {\"text\":\"ok\"}\n\n" +
		"data: {broken\n\n" +
		"data: {\"text\":\" still ok\"}\n\n" +
		"data: {\"done\":true}\n\n"

	reader := NewSSEStreamReader(NewFrameParser(), 0)
	events := collect(t, reader, strings.NewReader(body))

	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if events[1].Type != EventMalformed {
		t.Errorf("events[1].Type = %v, want %v", events[1].Type, EventMalformed)
	}
	if events[2].Text != " still ok" {
		t.Errorf("stream did not continue past malformed frame")
	}
}

func TestRead_FinalFrameWithoutTrailingDelimiter(t *testing.T) {
	// Backend closed the connection right after the terminal payload.
	body := "data: {\"text\":\"hi\"}\n\ndata: {\"done\":true,\"history_id\":\"sess-9\"}"

	reader := NewSSEStreamReader(NewFrameParser(), 0)
	events := collect(t, reader, strings.NewReader(body))

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[1].SessionID != "sess-9" {
		t.Errorf("SessionID = %q, want %q", events[1].SessionID, "sess-9")
	}
}

func TestRead_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	pr, pw := io.Pipe()
	defer pw.Close()

	reader := NewSSEStreamReader(NewFrameParser(), 0)

	done := make(chan error, 1)
	go func() {
		done <- reader.Read(ctx, pr, func(Event) error { return nil })
	}()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Read() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read() did not return after cancellation")
	}
}

func TestRead_IdleTimeout(t *testing.T) {
	src := &slowReader{
		delay: 200 * time.Millisecond,
		inner: strings.NewReader("data: {\"text\":\"late\"}\n\n"),
	}

	reader := NewSSEStreamReader(NewFrameParser(), 20*time.Millisecond)
	err := reader.Read(context.Background(), src, func(Event) error { return nil })

	if !errors.Is(err, ErrStreamIdle) {
		t.Errorf("Read() error = %v, want ErrStreamIdle", err)
	}
}

func TestRead_CallbackErrorStopsStream(t *testing.T) {
	body := "data: {\"text\":\"a\"}\n\ndata: {\"text\":\"b\"}\n\n"
	wantErr := errors.New("renderer failed")

	reader := NewSSEStreamReader(NewFrameParser(), 0)
	calls := 0
	err := reader.Read(context.Background(), strings.NewReader(body), func(Event) error {
		calls++
		return wantErr
	})

	if !errors.Is(err, wantErr) {
		t.Errorf("Read() error = %v, want %v", err, wantErr)
	}
	if calls != 1 {
		t.Errorf("callback called %d times, want 1", calls)
	}
}

func TestReadAll_Aggregates(t *testing.T) {
	body := "data: {\"text\":\"Hel\"}\n\n" +
		"data: {broken\n\n" +
		"data: {\"text\":\"lo\"}\n\n" +
		"data: {\"text\":\"\",\"done\":true,\"sources\":[\"doc.pdf\"],\"history_id\":\"sess-3\"}\n\n"

	reader := NewSSEStreamReader(NewFrameParser(), 0)
	result, err := reader.ReadAll(context.Background(), strings.NewReader(body))
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}

	if result.Answer != "Hello" {
		t.Errorf("Answer = %q, want %q", result.Answer, "Hello")
	}
	if !result.Completed {
		t.Error("expected Completed")
	}
	if result.SessionID != "sess-3" {
		t.Errorf("SessionID = %q, want %q", result.SessionID, "sess-3")
	}
	if result.TotalDeltas != 2 {
		t.Errorf("TotalDeltas = %d, want 2", result.TotalDeltas)
	}
	if result.MalformedFrames != 1 {
		t.Errorf("MalformedFrames = %d, want 1", result.MalformedFrames)
	}
	if len(result.Sources) != 1 || result.Sources[0].URL != "doc.pdf" {
		t.Errorf("Sources = %v, want promoted doc.pdf", result.Sources)
	}
}

func TestReadAll_NoTerminal(t *testing.T) {
	body := "data: {\"text\":\"partial\"}\n\n"

	reader := NewSSEStreamReader(NewFrameParser(), 0)
	result, err := reader.ReadAll(context.Background(), strings.NewReader(body))
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}

	if result.Completed {
		t.Error("Completed should be false without a terminal frame")
	}
	if result.Answer != "partial" {
		t.Errorf("Answer = %q, want %q", result.Answer, "partial")
	}
	if result.CompletedAt == 0 {
		t.Error("CompletedAt should be set even without a terminal frame")
	}
}
