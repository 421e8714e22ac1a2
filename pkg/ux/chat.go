// Copyright (C) 2025 DocQuay Contributors (maintainers@docquay.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/docquay/docquay/pkg/stream"
)

// HeaderConfig contains configuration for displaying the chat header.
//
// # Description
//
// HeaderConfig groups all optional parameters for the chat header display.
// This allows extending the header with new fields without breaking
// existing callers.
//
// # Fields
//
//   - Mode: Required. Query mode name (e.g. "document-qa", "tour-guide").
//   - SessionID: Session identifier. May be empty before the first exchange.
//   - Model: Backend model identifier. Empty uses the backend default.
//   - WebSearch: True when web search augmentation is enabled.
type HeaderConfig struct {
	Mode      string
	SessionID string
	Model     string
	WebSearch bool
}

// SessionStats aggregates metrics from a chat session for display.
//
// # Description
//
// SessionStats captures accumulated metrics across all exchanges in a
// chat session. It is displayed when the session ends, giving users
// visibility into their session's usage.
//
// # Fields
//
//   - MessageCount: Number of user messages sent
//   - TotalDeltas: Total text fragments received across all answers
//   - SourcesSeen: Number of source citations across all answers
//   - Duration: Total session duration
//   - FirstResponseLatency: Time to first text of the first answer
type SessionStats struct {
	MessageCount         int
	TotalDeltas          int
	SourcesSeen          int
	Duration             time.Duration
	FirstResponseLatency time.Duration
}

// ChatUI defines the interface for chat user interface operations.
// Implementations handle rendering chat elements to different outputs.
type ChatUI interface {
	// Header displays the chat session header with mode and configuration.
	Header(config HeaderConfig)

	// Prompt returns the styled input prompt string
	Prompt() string

	// Delta writes one streamed answer fragment without a trailing newline
	Delta(text string)

	// Response displays a complete (non-streamed) assistant answer
	Response(answer string)

	// Sources displays the citations attached to an answer
	Sources(sources []stream.Source)

	// NoSources displays a message when an answer cites nothing
	NoSources()

	// Error displays a chat error message
	Error(err error)

	// NewChatStarted displays confirmation that the transcript was cleared
	NewChatStarted()

	// SessionEnd displays session end information
	SessionEnd(sessionID string)

	// SessionEndRich displays session end information with stats.
	// Falls back to SessionEnd when stats is nil.
	SessionEndRich(sessionID string, stats *SessionStats)
}

// terminalChatUI implements ChatUI for terminal output
type terminalChatUI struct {
	writer      io.Writer
	personality PersonalityLevel
}

// NewChatUI creates a new terminal-based ChatUI
func NewChatUI() ChatUI {
	return &terminalChatUI{
		writer:      os.Stdout,
		personality: GetPersonality().Level,
	}
}

// NewChatUIWithWriter creates a ChatUI with a custom writer (for testing)
func NewChatUIWithWriter(w io.Writer, personality PersonalityLevel) ChatUI {
	return &terminalChatUI{
		writer:      w,
		personality: personality,
	}
}

// write is a helper that writes formatted output and handles errors.
// Terminal write errors are non-recoverable and silently ignored.
func (u *terminalChatUI) write(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(u.writer, format, args...); err != nil {
		return
	}
}

// writeln is a helper that writes a line and handles errors.
func (u *terminalChatUI) writeln(args ...interface{}) {
	if _, err := fmt.Fprintln(u.writer, args...); err != nil {
		return
	}
}

// Header displays the chat session header.
func (u *terminalChatUI) Header(config HeaderConfig) {
	if u.personality == PersonalityMachine {
		parts := []string{fmt.Sprintf("mode=%s", config.Mode)}
		if config.SessionID != "" {
			parts = append(parts, fmt.Sprintf("session=%s", config.SessionID))
		}
		if config.Model != "" {
			parts = append(parts, fmt.Sprintf("model=%s", config.Model))
		}
		if config.WebSearch {
			parts = append(parts, "web_search=on")
		}
		u.write("CHAT_START: %s\n", strings.Join(parts, " "))
		return
	}

	if u.personality == PersonalityMinimal {
		u.write("Chat (%s)\n", config.Mode)
		if config.WebSearch {
			u.writeln("Web search: on")
		}
		u.writeln("Type 'exit' to end.")
		return
	}

	var content strings.Builder
	content.WriteString(Styles.Highlight.Render("DocQuay Chat"))
	content.WriteString("\n")
	content.WriteString(fmt.Sprintf("Mode: %s", Styles.Success.Render(config.Mode)))
	if config.Model != "" {
		content.WriteString(fmt.Sprintf(" | Model: %s", Styles.Success.Render(config.Model)))
	}
	if config.WebSearch {
		content.WriteString("\n")
		content.WriteString(fmt.Sprintf("%s Web search enabled", string(IconGlobe)))
	}
	if config.SessionID != "" {
		content.WriteString("\n")
		content.WriteString(fmt.Sprintf("Session: %s", Styles.Muted.Render(config.SessionID)))
	}

	boxStyle := Styles.Box.Width(60)
	u.writeln(boxStyle.Render(content.String()))
	u.writeln()
	u.writeln(Styles.Muted.Render("Type 'exit' to end, 'new' to clear the conversation."))
	u.writeln()
}

// Prompt returns the styled input prompt string
func (u *terminalChatUI) Prompt() string {
	if u.personality == PersonalityMachine {
		return "> "
	}
	return Styles.Highlight.Render("> ")
}

// Delta writes one streamed answer fragment.
func (u *terminalChatUI) Delta(text string) {
	u.write("%s", text)
}

// Response displays a complete assistant answer
func (u *terminalChatUI) Response(answer string) {
	if u.personality == PersonalityMachine {
		u.write("RESPONSE: %s\n", answer)
		return
	}
	u.writeln()
	u.writeln(answer)
}

// Sources displays the citations attached to an answer
func (u *terminalChatUI) Sources(sources []stream.Source) {
	if len(sources) == 0 {
		return
	}

	if u.personality == PersonalityMachine {
		for _, src := range sources {
			u.write("SOURCE: %s\n", src.URL)
		}
		return
	}

	u.writeln()
	if u.personality == PersonalityMinimal {
		u.writeln("Sources:")
		for i, src := range sources {
			u.write("  %d. %s\n", i+1, src.DisplayTitle())
		}
		return
	}

	var content strings.Builder
	for i, src := range sources {
		content.WriteString(fmt.Sprintf("%d. %s", i+1, src.DisplayTitle()))
		if src.Title != "" && src.URL != src.Title {
			content.WriteString(Styles.Muted.Render(fmt.Sprintf(" (%s)", src.URL)))
		}
		if i < len(sources)-1 {
			content.WriteString("\n")
		}
	}

	boxStyle := Styles.InfoBox.Width(60)
	titleLine := Styles.Subtitle.Render("Sources")
	u.writeln(boxStyle.Render(titleLine + "\n" + content.String()))
}

// NoSources displays a message when an answer cites nothing
func (u *terminalChatUI) NoSources() {
	if u.personality == PersonalityMachine {
		u.writeln("SOURCES: none")
		return
	}
	if u.personality != PersonalityMinimal {
		u.writeln(Styles.Muted.Render("(No sources cited)"))
	}
}

// Error displays a chat error message
func (u *terminalChatUI) Error(err error) {
	if u.personality == PersonalityMachine {
		u.write("CHAT_ERROR: %v\n", err)
		return
	}
	u.write("%s %s\n", IconError.Render(), Styles.Error.Render(fmt.Sprintf("Chat error: %v", err)))
}

// NewChatStarted displays confirmation that the transcript was cleared
func (u *terminalChatUI) NewChatStarted() {
	if u.personality == PersonalityMachine {
		u.writeln("CHAT_RESET")
		return
	}
	u.write("%s %s\n", IconSuccess.Render(), Styles.Success.Render("Started a new conversation"))
}

// SessionEnd displays session end information.
func (u *terminalChatUI) SessionEnd(sessionID string) {
	if u.personality == PersonalityMachine {
		u.write("CHAT_END: session=%s\n", sessionID)
		return
	}
	if sessionID != "" {
		u.writeln(Styles.Muted.Render(fmt.Sprintf("Session: %s", sessionID)))
	}
	u.writeln("Goodbye!")
}

// SessionEndRich displays a session summary with statistics.
//
// # Description
//
// Displays the session ID, exchange counts, and timing for the finished
// session. This is shown when an interactive chat ends with at least one
// completed exchange.
//
// # Inputs
//
//   - sessionID: The session identifier. May be empty.
//   - stats: Session statistics. If nil, falls back to SessionEnd.
func (u *terminalChatUI) SessionEndRich(sessionID string, stats *SessionStats) {
	if stats == nil {
		u.SessionEnd(sessionID)
		return
	}

	if u.personality == PersonalityMachine {
		u.write("CHAT_END: session=%s messages=%d sources=%d duration=%s\n",
			sessionID, stats.MessageCount, stats.SourcesSeen, stats.Duration.Round(time.Millisecond))
		return
	}

	if u.personality == PersonalityMinimal {
		u.writeln()
		if sessionID != "" {
			u.write("Session: %s\n", sessionID)
		}
		u.write("Messages: %d | Sources: %d | Duration: %s\n",
			stats.MessageCount, stats.SourcesSeen, formatDuration(stats.Duration))
		u.writeln("Goodbye!")
		return
	}

	u.writeln()

	var content strings.Builder
	content.WriteString(Styles.Subtitle.Render("Session Summary"))
	content.WriteString("\n\n")

	if sessionID != "" {
		content.WriteString(fmt.Sprintf("  %s  %s\n",
			Styles.Muted.Render("ID:"),
			Styles.Highlight.Render(sessionID)))
		content.WriteString("\n")
	}

	content.WriteString(fmt.Sprintf("  %s  %d messages exchanged\n",
		IconChat.Render(), stats.MessageCount))
	if stats.SourcesSeen > 0 {
		content.WriteString(fmt.Sprintf("  %s  %d sources referenced\n",
			IconDocument.Render(), stats.SourcesSeen))
	}
	content.WriteString(fmt.Sprintf("  %s  %s session duration\n",
		IconTime.Render(), formatDuration(stats.Duration)))
	if stats.FirstResponseLatency > 0 {
		content.WriteString(fmt.Sprintf("  %s  %s time to first response\n",
			Styles.Muted.Render("⚡"), formatDuration(stats.FirstResponseLatency)))
	}

	boxStyle := Styles.Box.Width(60)
	u.writeln(boxStyle.Render(content.String()))
	u.writeln()
	u.writeln(Styles.Highlight.Render("Goodbye!"))
}

// formatDuration formats a duration for human-readable display.
//
//	formatDuration(500*time.Millisecond) // "500ms"
//	formatDuration(5*time.Second)        // "5.0s"
//	formatDuration(90*time.Second)       // "1m 30s"
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		if secs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, mins)
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ ChatUI = (*terminalChatUI)(nil)
