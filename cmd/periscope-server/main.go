// Package main provides the periscope API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nvoronin/periscope/internal/auth"
	"github.com/nvoronin/periscope/internal/config"
	"github.com/nvoronin/periscope/internal/db"
	"github.com/nvoronin/periscope/internal/llm"
	"github.com/nvoronin/periscope/internal/metrics"
	"github.com/nvoronin/periscope/internal/modes"
	"github.com/nvoronin/periscope/internal/server"
)

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load config: %v\n", err)
		os.Exit(1)
	}

	logger, closeLogs := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() {
		if err := closeLogs(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
	}()

	logger.Info("starting periscope-server", "addr", cfg.ListenAddr)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	dbClient, err := db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
	}, logger)
	if err != nil {
		cancel()
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := dbClient.InitSchema(ctx); err != nil {
		cancel()
		logger.Error("schema initialization failed", "error", err)
		os.Exit(1)
	}
	if *wipeDB || os.Getenv("PERISCOPE_WIPE_DB") == "true" {
		if err := dbClient.WipeData(ctx); err != nil {
			cancel()
			logger.Error("database wipe failed", "error", err)
			os.Exit(1)
		}
		logger.Warn("database wiped")
	}
	cancel()
	defer func() {
		if err := dbClient.Close(context.Background()); err != nil {
			logger.Error("database close failed", "error", err)
		}
	}()

	if cfg.JWTSecret == "" {
		logger.Error("PERISCOPE_JWT_SECRET must be set")
		os.Exit(1)
	}
	authService := auth.NewService(dbClient, cfg.JWTSecret, cfg.JWTExpiry)

	// A missing model provider disables streaming but leaves the REST API
	// fully functional.
	var streamer llm.ChatStreamer
	var suggester *llm.Suggester
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if model, err := llm.NewModel(initCtx, cfg); err != nil {
		logger.Warn("model unavailable, streaming disabled", "provider", cfg.Provider, "error", err)
	} else {
		streamer = model
		if suggestModel, err := llm.NewSuggestModel(initCtx, cfg); err != nil {
			logger.Warn("suggestion model unavailable", "error", err)
		} else {
			suggester = llm.NewSuggester(suggestModel)
		}
	}
	initCancel()

	srv := server.New(server.Options{
		Store:     dbClient,
		Auth:      authService,
		Modes:     modes.NewRegistry(),
		Streamer:  streamer,
		Suggester: suggester,
		Collector: metrics.NewCollector(),
		Logger:    logger,
	})

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(runCtx, cfg.ListenAddr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shut down cleanly")
}
