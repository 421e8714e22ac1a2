// Copyright (C) 2025 DocQuay Contributors (maintainers@docquay.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/docquay/docquay/pkg/stream"
)

func TestHeader_Machine(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMachine)

	ui.Header(HeaderConfig{
		Mode:      "document-qa",
		SessionID: "sess-1",
		WebSearch: true,
	})

	out := buf.String()
	if !strings.Contains(out, "CHAT_START:") {
		t.Errorf("missing CHAT_START marker: %q", out)
	}
	if !strings.Contains(out, "mode=document-qa") {
		t.Errorf("missing mode: %q", out)
	}
	if !strings.Contains(out, "session=sess-1") {
		t.Errorf("missing session: %q", out)
	}
	if !strings.Contains(out, "web_search=on") {
		t.Errorf("missing web_search flag: %q", out)
	}
}

func TestHeader_Minimal(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMinimal)

	ui.Header(HeaderConfig{Mode: "tour-guide"})

	out := buf.String()
	if !strings.Contains(out, "Chat (tour-guide)") {
		t.Errorf("missing mode line: %q", out)
	}
	if !strings.Contains(out, "exit") {
		t.Errorf("missing exit hint: %q", out)
	}
}

func TestDelta_NoNewline(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMachine)

	ui.Delta("Hel")
	ui.Delta("lo")

	if buf.String() != "Hello" {
		t.Errorf("Delta output = %q, want %q", buf.String(), "Hello")
	}
}

func TestSources_Machine(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMachine)

	ui.Sources([]stream.Source{
		{URL: "https://example.com", Title: "Example"},
		{URL: "report.pdf"},
	})

	out := buf.String()
	if !strings.Contains(out, "SOURCE: https://example.com") {
		t.Errorf("missing web source: %q", out)
	}
	if !strings.Contains(out, "SOURCE: report.pdf") {
		t.Errorf("missing document source: %q", out)
	}
}

func TestSources_MinimalUsesDisplayTitle(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMinimal)

	ui.Sources([]stream.Source{
		{URL: "https://example.com", Title: "Example"},
		{URL: "report.pdf"},
	})

	out := buf.String()
	if !strings.Contains(out, "1. Example") {
		t.Errorf("titled source should render the title: %q", out)
	}
	if !strings.Contains(out, "2. report.pdf") {
		t.Errorf("untitled source should fall back to the URL: %q", out)
	}
}

func TestSources_EmptyWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMachine)

	ui.Sources(nil)

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestError_Machine(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMachine)

	ui.Error(errors.New("backend unreachable"))

	if !strings.Contains(buf.String(), "CHAT_ERROR: backend unreachable") {
		t.Errorf("unexpected error output: %q", buf.String())
	}
}

func TestSessionEndRich_Machine(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMachine)

	ui.SessionEndRich("sess-9", &SessionStats{
		MessageCount: 3,
		SourcesSeen:  5,
		Duration:     90 * time.Second,
	})

	out := buf.String()
	if !strings.Contains(out, "session=sess-9") {
		t.Errorf("missing session id: %q", out)
	}
	if !strings.Contains(out, "messages=3") {
		t.Errorf("missing message count: %q", out)
	}
}

func TestSessionEndRich_NilStatsFallsBack(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMachine)

	ui.SessionEndRich("sess-9", nil)

	if !strings.Contains(buf.String(), "CHAT_END: session=sess-9") {
		t.Errorf("expected plain session end: %q", buf.String())
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "500ms"},
		{5 * time.Second, "5.0s"},
		{90 * time.Second, "1m 30s"},
		{2 * time.Minute, "2m"},
		{2*time.Hour + 5*time.Minute, "2h 5m"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
