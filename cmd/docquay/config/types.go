// Copyright (C) 2025 DocQuay Contributors (maintainers@docquay.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the docquay CLI configuration file.
package config

// Config is the full docquay configuration.
type Config struct {
	// Backend: the document-QA backend location
	Backend BackendConfig `yaml:"backend"`

	// Chat: defaults for interactive and one-shot questions
	Chat ChatConfig `yaml:"chat"`

	// UX: terminal output preferences
	UX UXConfig `yaml:"ux"`

	// Logging: log level and file destination
	Logging LoggingConfig `yaml:"logging"`
}

type BackendConfig struct {
	BaseURL string `yaml:"base_url"` // e.g. http://localhost:8000/api
}

type ChatConfig struct {
	Mode         string   `yaml:"mode"`                  // document-qa or tour-guide
	Model        string   `yaml:"model,omitempty"`       // backend model override
	Temperature  *float64 `yaml:"temperature,omitempty"` // sampling temperature override
	UseWebSearch bool     `yaml:"web_search"`            // augment answers with web results
}

type UXConfig struct {
	// Personality can be full, standard, minimal, or machine.
	// Empty defers to the DOCQUAY_PERSONALITY env var and TTY detection.
	Personality string `yaml:"personality,omitempty"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Dir   string `yaml:"dir"`   // log file directory, empty disables file logging
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000/api",
		},
		Chat: ChatConfig{
			Mode:         "document-qa",
			UseWebSearch: false,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "~/.docquay/logs",
		},
	}
}
