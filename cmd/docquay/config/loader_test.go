// Copyright (C) 2025 DocQuay Contributors (maintainers@docquay.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_FirstRunCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docquay.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected config file to be created: %v", err)
	}
	if cfg.Backend.BaseURL != "http://localhost:8000/api" {
		t.Errorf("unexpected default base URL: %q", cfg.Backend.BaseURL)
	}
	if cfg.Chat.Mode != "document-qa" {
		t.Errorf("unexpected default mode: %q", cfg.Chat.Mode)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("unexpected default log level: %q", cfg.Logging.Level)
	}
}

func TestLoad_ReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docquay.yaml")
	content := `backend:
  base_url: http://backend.internal:9000/
chat:
  mode: tour-guide
  model: qwen2.5:32b
  web_search: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Trailing slash is trimmed
	if cfg.Backend.BaseURL != "http://backend.internal:9000" {
		t.Errorf("unexpected base URL: %q", cfg.Backend.BaseURL)
	}
	if cfg.Chat.Mode != "tour-guide" {
		t.Errorf("unexpected mode: %q", cfg.Chat.Mode)
	}
	if cfg.Chat.Model != "qwen2.5:32b" {
		t.Errorf("unexpected model: %q", cfg.Chat.Model)
	}
	if !cfg.Chat.UseWebSearch {
		t.Error("expected web search enabled")
	}
	// Unset keys keep their defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level, got %q", cfg.Logging.Level)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docquay.yaml")

	t.Setenv("DOCQUAY_BACKEND_URL", "http://override:8123")
	t.Setenv("DOCQUAY_PERSONALITY", "machine")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Backend.BaseURL != "http://override:8123" {
		t.Errorf("env override not applied: %q", cfg.Backend.BaseURL)
	}
	if cfg.UX.Personality != "machine" {
		t.Errorf("personality override not applied: %q", cfg.UX.Personality)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docquay.yaml")
	if err := os.WriteFile(path, []byte("backend: [not: valid"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected parse error for invalid yaml")
	}
}
