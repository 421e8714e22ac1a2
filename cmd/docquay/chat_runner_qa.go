// Copyright (C) 2025 DocQuay Contributors (maintainers@docquay.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package main contains the QAChatRunner implementation.
//
// This file implements the ChatRunner interface for streaming
// question-answer chat. It coordinates between the Conversation
// (pkg/chat), the ChatUI (pkg/ux), and user input.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/docquay/docquay/pkg/chat"
	"github.com/docquay/docquay/pkg/logging"
	"github.com/docquay/docquay/pkg/ux"
)

// =============================================================================
// QAChatRunner Implementation
// =============================================================================

// QAChatRunner implements ChatRunner for streaming document-QA chat.
//
// # Description
//
// QAChatRunner manages the interactive chat loop. It coordinates
// between the conversation (state machine and transport), the UI
// (headers, prompts, errors), and user input.
//
// The runner follows a single-responsibility pattern:
//   - Input reading is delegated to InputReader
//   - Exchange semantics are delegated to ChatSession
//   - Display formatting is delegated to ux.ChatUI
//   - Runner only handles coordination and control flow
//
// # Thread Safety
//
// The runner is not designed for concurrent Run() calls. Close() is
// thread-safe and can be called from any goroutine.
//
// # Limitations
//
//   - Single use: cannot restart after Run() completes
//   - Stdin reads cannot be interrupted mid-line (OS limitation)
type QAChatRunner struct {
	session ChatSession
	ui      ux.ChatUI
	input   InputReader
	closer  io.Closer // Underlying service, closed on Close (may be nil)
	logger  *logging.Logger

	mode      chat.QueryMode
	model     string
	webSearch bool

	sessionStartTime time.Time
	sessionStats     ux.SessionStats

	closed bool
	mu     sync.Mutex
}

// QAChatRunnerConfig holds configuration for creating a QAChatRunner.
//
// Only BaseURL is required. Mode defaults to document-qa; the
// remaining fields default to the backend's behavior.
type QAChatRunnerConfig struct {
	BaseURL      string         // Backend URL, no trailing slash (required)
	Mode         chat.QueryMode // Question endpoint family (optional)
	SessionID    string         // Session id to resume (optional)
	Model        string         // Backend model override (optional)
	Temperature  *float64       // Sampling temperature override (optional)
	UseWebSearch bool           // Enable web search augmentation (optional)
	Logger       *logging.Logger
}

// NewQAChatRunner creates a chat runner with production dependencies.
//
// Wires a session manager, QA service, and conversation against the
// configured backend, a terminal UI, and an interactive input reader
// with history.
func NewQAChatRunner(config QAChatRunnerConfig) ChatRunner {
	mode := config.Mode
	if mode == "" {
		mode = chat.ModeDocumentQA
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.Default()
	}

	sessions := chat.NewSessionManager(chat.SessionManagerConfig{
		BaseURL:   config.BaseURL,
		SessionID: config.SessionID,
		Logger:    logger,
	})

	service := chat.NewQAService(chat.QAServiceConfig{
		BaseURL:      config.BaseURL,
		Mode:         mode,
		Sessions:     sessions,
		Model:        config.Model,
		Temperature:  config.Temperature,
		UseWebSearch: config.UseWebSearch,
		Logger:       logger,
	})

	conversation := chat.NewConversation(chat.ConversationConfig{
		Service:  service,
		Sessions: sessions,
		Logger:   logger,
	})

	return &QAChatRunner{
		session:   conversation,
		ui:        ux.NewChatUI(),
		input:     NewInteractiveInputReader(50), // Keep last 50 prompts in history
		closer:    service,
		logger:    logger,
		mode:      mode,
		model:     config.Model,
		webSearch: config.UseWebSearch,
	}
}

// NewQAChatRunnerWithDeps creates a chat runner with injected
// dependencies for testing.
func NewQAChatRunnerWithDeps(session ChatSession, ui ux.ChatUI, input InputReader, mode chat.QueryMode) *QAChatRunner {
	return &QAChatRunner{
		session: session,
		ui:      ui,
		input:   input,
		logger:  logging.New(logging.Config{Quiet: true}),
		mode:    mode,
	}
}

// Run executes the interactive chat loop.
//
// # Description
//
// The loop:
//  1. Displays the chat header with mode and session info
//  2. Prompts for user input
//  3. Checks for control commands ("exit", "quit", "new")
//  4. Submits the question, rendering answer fragments as they arrive
//  5. Displays sources after the answer completes
//  6. Repeats until exit or context cancellation
//
// On context cancellation the session end summary is displayed and
// the context error returned.
func (r *QAChatRunner) Run(ctx context.Context) error {
	r.sessionStartTime = time.Now()

	r.ui.Header(ux.HeaderConfig{
		Mode:      r.mode.String(),
		SessionID: r.session.SessionID(),
		Model:     r.model,
		WebSearch: r.webSearch,
	})

	for {
		// Check for cancellation before blocking on input
		select {
		case <-ctx.Done():
			return r.handleShutdown(ctx)
		default:
		}

		// If the reader handles prompts (interactive mode), set it;
		// otherwise print manually
		if p, ok := r.input.(PromptingInputReader); ok {
			p.SetPrompt(r.ui.Prompt())
		} else {
			fmt.Print(r.ui.Prompt())
		}
		input, err := r.input.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Input exhausted (e.g., piped input ended)
				r.displaySessionEndWithStats()
				return nil
			}
			r.logger.Error("failed to read input", "error", err)
			return fmt.Errorf("read input: %w", err)
		}

		if input == "" {
			continue
		}

		// Bubbletea clears its rendering area on exit, so restore the
		// visual line for interactive readers
		if _, isInteractive := r.input.(*InteractiveInputReader); isInteractive {
			fmt.Printf("%s%s\n", r.ui.Prompt(), input)
		}

		if isExitCommand(input) {
			r.displaySessionEndWithStats()
			return nil
		}

		if isNewChatCommand(input) {
			r.session.StartNew()
			r.ui.NewChatStarted()
			continue
		}

		if err := r.handleMessage(ctx, input); err != nil {
			if ctx.Err() != nil {
				return r.handleShutdown(ctx)
			}
			// Non-fatal: display and continue
			r.ui.Error(err)
			continue
		}
	}
}

// handleMessage submits one question and renders the streamed answer.
func (r *QAChatRunner) handleMessage(ctx context.Context, question string) error {
	submittedAt := time.Now()
	deltas := 0
	var firstDelta time.Duration

	msg, err := r.session.Submit(ctx, question, func(text string) {
		if deltas == 0 {
			firstDelta = time.Since(submittedAt)
		}
		deltas++
		r.ui.Delta(text)
	})
	if err != nil {
		fmt.Println()
		return err
	}

	fmt.Println()
	if len(msg.Sources) > 0 {
		r.ui.Sources(msg.Sources)
	} else {
		r.ui.NoSources()
	}

	r.accumulateStats(deltas, len(msg.Sources), firstDelta)
	return nil
}

// accumulateStats updates session statistics from one exchange.
func (r *QAChatRunner) accumulateStats(deltas, sources int, firstDelta time.Duration) {
	r.sessionStats.MessageCount++
	r.sessionStats.TotalDeltas += deltas
	r.sessionStats.SourcesSeen += sources

	// First response latency is only meaningful for the first message
	if r.sessionStats.MessageCount == 1 {
		r.sessionStats.FirstResponseLatency = firstDelta
	}
}

// displaySessionEndWithStats finalizes and displays the session summary.
func (r *QAChatRunner) displaySessionEndWithStats() {
	r.sessionStats.Duration = time.Since(r.sessionStartTime)
	r.ui.SessionEndRich(r.session.SessionID(), &r.sessionStats)
}

// handleShutdown performs graceful shutdown after context cancellation.
func (r *QAChatRunner) handleShutdown(ctx context.Context) error {
	r.logger.Info("graceful shutdown initiated",
		"session_id", r.session.SessionID(),
	)

	fmt.Println() // New line after interrupted input
	r.displaySessionEndWithStats()

	return ctx.Err()
}

// Close releases all resources held by the runner. Idempotent.
func (r *QAChatRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

var _ ChatRunner = (*QAChatRunner)(nil)
