// Copyright (C) 2025 DocQuay Contributors (maintainers@docquay.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docquay/docquay/pkg/chat"
	"github.com/docquay/docquay/pkg/logging"
	"github.com/docquay/docquay/pkg/ux"
)

// buildLogger creates the CLI logger from the loaded configuration.
func buildLogger() *logging.Logger {
	return logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "docquay",
		Quiet:   true, // Chat output owns the terminal; logs go to file only
	})
}

// resolveTemperature returns the effective temperature override, or
// nil when neither the flag nor the config set one.
func resolveTemperature(cmd *cobra.Command) *float64 {
	if cmd.Flags().Changed("temperature") {
		t := temperature
		return &t
	}
	return cfg.Chat.Temperature
}

// resolveWebSearch returns the effective web search setting.
func resolveWebSearch(cmd *cobra.Command) bool {
	if cmd.Flags().Changed("web-search") {
		return useWebSearch
	}
	return cfg.Chat.UseWebSearch
}

// resolveModel returns the effective model override.
func resolveModel() string {
	if modelName != "" {
		return modelName
	}
	return cfg.Chat.Model
}

func runChatCommand(cmd *cobra.Command, args []string) {
	logger := buildLogger()
	defer logger.Close()

	runner := NewQAChatRunner(QAChatRunnerConfig{
		BaseURL:      cfg.Backend.BaseURL,
		Mode:         chat.QueryMode(cfg.Chat.Mode),
		SessionID:    resumeSessionID,
		Model:        resolveModel(),
		Temperature:  resolveTemperature(cmd),
		UseWebSearch: resolveWebSearch(cmd),
		Logger:       logger,
	})
	defer runner.Close()

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("Chat error: %v", err)
	}
}

func runAskCommand(cmd *cobra.Command, args []string) {
	logger := buildLogger()
	defer logger.Close()

	question := strings.Join(args, " ")

	sessions := chat.NewSessionManager(chat.SessionManagerConfig{
		BaseURL: cfg.Backend.BaseURL,
		Logger:  logger,
	})
	service := chat.NewQAService(chat.QAServiceConfig{
		BaseURL:      cfg.Backend.BaseURL,
		Mode:         chat.QueryMode(cfg.Chat.Mode),
		Sessions:     sessions,
		Model:        resolveModel(),
		Temperature:  resolveTemperature(cmd),
		UseWebSearch: resolveWebSearch(cmd),
		Logger:       logger,
	})
	defer service.Close()

	var answer *chat.AnswerResponse
	err := ux.WithSpinner("Thinking", func() error {
		var askErr error
		answer, askErr = service.Ask(context.Background(), question)
		return askErr
	})
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	ui := ux.NewChatUI()
	ui.Response(answer.Answer)

	sources := answer.AllSources()
	if len(sources) > 0 {
		ui.Sources(sources)
	} else {
		ui.NoSources()
	}
}

func runStatusCommand(cmd *cobra.Command, args []string) {
	logger := buildLogger()
	defer logger.Close()

	sessions := chat.NewSessionManager(chat.SessionManagerConfig{
		BaseURL: cfg.Backend.BaseURL,
		Logger:  logger,
	})
	service := chat.NewQAService(chat.QAServiceConfig{
		BaseURL:  cfg.Backend.BaseURL,
		Mode:     chat.QueryMode(cfg.Chat.Mode),
		Sessions: sessions,
		Logger:   logger,
	})
	defer service.Close()

	status, err := service.Status(context.Background())
	if err != nil {
		ux.Error(fmt.Sprintf("Backend unreachable at %s: %v", cfg.Backend.BaseURL, err))
		os.Exit(1)
	}

	if ux.GetPersonality().Level == ux.PersonalityMachine {
		fmt.Printf("STATUS:%s\n", status.Status)
		fmt.Printf("MODEL:%s\n", status.LLMModel)
		fmt.Printf("WEB_SEARCH:%t\n", status.WebSearchEnabled)
		fmt.Printf("ACTIVE_SESSIONS:%d\n", status.ActiveSessions)
		return
	}

	ux.Success(fmt.Sprintf("Backend status: %s", status.Status))
	ux.Info(fmt.Sprintf("Model: %s", status.LLMModel))
	ux.Info(fmt.Sprintf("Web search: %t", status.WebSearchEnabled))
	ux.Info(fmt.Sprintf("Active sessions: %d", status.ActiveSessions))
	if status.Message != "" {
		ux.Muted(status.Message)
	}
}
