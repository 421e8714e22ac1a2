// Copyright (C) 2025 DocQuay Contributors (maintainers@docquay.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/docquay/docquay/pkg/chat"
	"github.com/docquay/docquay/pkg/stream"
	"github.com/docquay/docquay/pkg/ux"
)

// =============================================================================
// Mock Implementations
// =============================================================================

// mockChatSession implements ChatSession for testing.
//
// Allows configuring responses and tracking calls for verification.
type mockChatSession struct {
	submitFunc func(ctx context.Context, question string, onDelta func(string)) (*chat.Message, error)
	sessionID  string

	questionsSent []string
	startNewCalls int
}

func (m *mockChatSession) Submit(ctx context.Context, question string, onDelta func(string)) (*chat.Message, error) {
	m.questionsSent = append(m.questionsSent, question)
	if m.submitFunc != nil {
		return m.submitFunc(ctx, question, onDelta)
	}
	if onDelta != nil {
		onDelta("mock answer")
	}
	msg := chat.NewMessage(chat.RoleAssistant, "mock answer")
	return &msg, nil
}

func (m *mockChatSession) StartNew() {
	m.startNewCalls++
}

func (m *mockChatSession) SessionID() string {
	return m.sessionID
}

func newTestRunner(session ChatSession, inputs []string) (*QAChatRunner, *bytes.Buffer) {
	var buf bytes.Buffer
	ui := ux.NewChatUIWithWriter(&buf, ux.PersonalityMachine)
	runner := NewQAChatRunnerWithDeps(session, ui, NewMockInputReader(inputs), chat.ModeDocumentQA)
	return runner, &buf
}

// =============================================================================
// InputReader Tests
// =============================================================================

func TestStdinReader_ImplementsInterface(t *testing.T) {
	// StdinReader wraps os.Stdin which we can't easily mock
	var _ InputReader = &StdinReader{}
}

func TestMockInputReader_ReadLine_ReturnsInputsInOrder(t *testing.T) {
	inputs := []string{"first", "second", "third"}
	reader := NewMockInputReader(inputs)

	for i, expected := range inputs {
		got, err := reader.ReadLine()
		if err != nil {
			t.Fatalf("ReadLine() %d: unexpected error: %v", i, err)
		}
		if got != expected {
			t.Errorf("ReadLine() %d: got %q, want %q", i, got, expected)
		}
	}
}

func TestMockInputReader_ReadLine_ReturnsEOFWhenExhausted(t *testing.T) {
	reader := NewMockInputReader([]string{"only"})

	if _, err := reader.ReadLine(); err != nil {
		t.Fatalf("first ReadLine(): unexpected error: %v", err)
	}

	if _, err := reader.ReadLine(); err != io.EOF {
		t.Errorf("second ReadLine(): got error %v, want io.EOF", err)
	}
}

// =============================================================================
// Command Helper Tests
// =============================================================================

func TestIsExitCommand(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"exit", true},
		{"quit", true},
		{"EXIT", false}, // Case-sensitive
		{"Exit", false},
		{"hello", false},
		{"", false},
		{"exit please", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := isExitCommand(tt.input); got != tt.want {
				t.Errorf("isExitCommand(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsNewChatCommand(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"new", true},
		{"/new", true},
		{"NEW", false},
		{"new chat", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := isNewChatCommand(tt.input); got != tt.want {
				t.Errorf("isNewChatCommand(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// =============================================================================
// QAChatRunner Tests
// =============================================================================

func TestRun_SendsQuestionAndExits(t *testing.T) {
	session := &mockChatSession{sessionID: "sess-1"}
	runner, buf := newTestRunner(session, []string{"what is chapter 3?", "exit"})

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(session.questionsSent) != 1 || session.questionsSent[0] != "what is chapter 3?" {
		t.Errorf("unexpected questions sent: %v", session.questionsSent)
	}

	output := buf.String()
	if !strings.Contains(output, "mock answer") {
		t.Errorf("output missing streamed answer: %q", output)
	}
	if !strings.Contains(output, "CHAT_END") {
		t.Errorf("output missing session end marker: %q", output)
	}
}

func TestRun_EOFEndsSession(t *testing.T) {
	session := &mockChatSession{}
	runner, buf := newTestRunner(session, []string{"one question"})

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !strings.Contains(buf.String(), "CHAT_END") {
		t.Errorf("expected session end after input exhaustion: %q", buf.String())
	}
}

func TestRun_SkipsEmptyInput(t *testing.T) {
	session := &mockChatSession{}
	runner, _ := newTestRunner(session, []string{"", "", "real question", "exit"})

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(session.questionsSent) != 1 {
		t.Errorf("empty inputs should be skipped, sent: %v", session.questionsSent)
	}
}

func TestRun_NewCommandResetsConversation(t *testing.T) {
	session := &mockChatSession{}
	runner, buf := newTestRunner(session, []string{"first", "new", "second", "exit"})

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if session.startNewCalls != 1 {
		t.Errorf("StartNew calls = %d, want 1", session.startNewCalls)
	}
	if len(session.questionsSent) != 2 {
		t.Errorf("questions sent = %v, want two", session.questionsSent)
	}
	if !strings.Contains(buf.String(), "CHAT_RESET") {
		t.Errorf("output missing reset marker: %q", buf.String())
	}
}

func TestRun_ErrorDisplayedAndLoopContinues(t *testing.T) {
	failures := 0
	session := &mockChatSession{
		submitFunc: func(ctx context.Context, question string, onDelta func(string)) (*chat.Message, error) {
			if question == "bad" {
				failures++
				return nil, errors.New("backend exploded")
			}
			msg := chat.NewMessage(chat.RoleAssistant, "fine")
			return &msg, nil
		},
	}
	runner, buf := newTestRunner(session, []string{"bad", "good", "exit"})

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if failures != 1 {
		t.Errorf("expected one failed exchange, got %d", failures)
	}
	output := buf.String()
	if !strings.Contains(output, "CHAT_ERROR") {
		t.Errorf("output missing error marker: %q", output)
	}
	// The loop continued past the failure
	if len(session.questionsSent) != 2 {
		t.Errorf("questions sent = %v, want two", session.questionsSent)
	}
}

func TestRun_SourcesDisplayedAfterAnswer(t *testing.T) {
	session := &mockChatSession{
		submitFunc: func(ctx context.Context, question string, onDelta func(string)) (*chat.Message, error) {
			msg := chat.NewMessage(chat.RoleAssistant, "sourced answer")
			msg.Sources = []stream.Source{{URL: "https://example.com/doc", Title: "Doc"}}
			return &msg, nil
		},
	}
	runner, buf := newTestRunner(session, []string{"cite me", "exit"})

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !strings.Contains(buf.String(), "https://example.com/doc") {
		t.Errorf("output missing source citation: %q", buf.String())
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session := &mockChatSession{}
	runner, _ := newTestRunner(session, []string{"never read"})

	err := runner.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run with cancelled context: got %v, want context.Canceled", err)
	}
	if len(session.questionsSent) != 0 {
		t.Errorf("no questions should be sent after cancellation: %v", session.questionsSent)
	}
}

func TestClose_Idempotent(t *testing.T) {
	runner, _ := newTestRunner(&mockChatSession{}, nil)

	if err := runner.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := runner.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestSessionStats_Accumulated(t *testing.T) {
	session := &mockChatSession{
		sessionID: "sess-stats",
		submitFunc: func(ctx context.Context, question string, onDelta func(string)) (*chat.Message, error) {
			onDelta("a ")
			onDelta("b")
			msg := chat.NewMessage(chat.RoleAssistant, "a b")
			msg.Sources = []stream.Source{{URL: "https://example.com/1"}}
			return &msg, nil
		},
	}
	runner, buf := newTestRunner(session, []string{"q1", "q2", "exit"})

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if runner.sessionStats.MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", runner.sessionStats.MessageCount)
	}
	if runner.sessionStats.TotalDeltas != 4 {
		t.Errorf("TotalDeltas = %d, want 4", runner.sessionStats.TotalDeltas)
	}
	if runner.sessionStats.SourcesSeen != 2 {
		t.Errorf("SourcesSeen = %d, want 2", runner.sessionStats.SourcesSeen)
	}
	if !strings.Contains(buf.String(), "sess-stats") {
		t.Errorf("session end missing session id: %q", buf.String())
	}
}
