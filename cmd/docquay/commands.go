// Copyright (C) 2025 DocQuay Contributors (maintainers@docquay.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/docquay/docquay/cmd/docquay/config"
	"github.com/docquay/docquay/pkg/ux"
)

// version is set at build time via -ldflags.
var version = "dev"

// --- Global Command Variables ---
var (
	cfg config.Config

	configPath       string
	backendURL       string
	modeName         string
	modelName        string
	temperature      float64
	useWebSearch     bool
	resumeSessionID  string
	personalityLevel string // UX personality level (full/standard/minimal/machine)

	rootCmd = &cobra.Command{
		Use:   "docquay",
		Short: "A cli for chatting with your document-QA backend",
		Long: `DocQuay is a terminal client for a streaming document
				question-answer backend. It manages chat sessions, streams
				answers token by token, and shows the sources each answer
				cites.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				log.Fatalf("Error loading configuration: %v", err)
			}

			// CLI flags win over the config file
			if backendURL != "" {
				cfg.Backend.BaseURL = backendURL
			}
			if modeName != "" {
				cfg.Chat.Mode = modeName
			}
			if personalityLevel != "" {
				cfg.UX.Personality = personalityLevel
			}

			// Initialize UX personality from flag, config, or environment
			if cfg.UX.Personality != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(cfg.UX.Personality))
			} else {
				ux.InitPersonality()
			}
		},
	}

	// --- Chat ---
	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Starts an interactive chat session",
		Long: `Starts an interactive chat loop against the backend. Type your
				questions at the prompt; answers stream in as they are
				generated. Type "new" to start a fresh conversation, "exit"
				or "quit" to leave.`,
		Run: runChatCommand, // Defined in cmd_chat.go
	}

	// --- Ask ---
	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Asks a single question and prints the complete answer",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskCommand, // Defined in cmd_chat.go
	}

	// --- Status ---
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show backend health and configuration",
		Run:   runStatusCommand, // Defined in cmd_chat.go
	}

	// --- Version ---
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the docquay version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("docquay", version)
		},
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to the config file (default ~/.docquay/docquay.yaml)")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "",
		"Backend base URL (overrides the config file)")
	rootCmd.PersistentFlags().StringVar(&modeName, "mode", "",
		"Query mode: document-qa (default) or tour-guide")
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full (default, rich nautical), standard, minimal, or machine (scripting)")

	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&resumeSessionID, "resume", "",
		"Resume a conversation using a specific session ID.")
	chatCmd.Flags().StringVar(&modelName, "model", "", "Backend model override")
	chatCmd.Flags().Float64Var(&temperature, "temperature", 0, "Sampling temperature override")
	chatCmd.Flags().BoolVar(&useWebSearch, "web-search", false, "Augment answers with web search results")

	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVar(&modelName, "model", "", "Backend model override")
	askCmd.Flags().Float64Var(&temperature, "temperature", 0, "Sampling temperature override")
	askCmd.Flags().BoolVar(&useWebSearch, "web-search", false, "Augment answers with web search results")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}
