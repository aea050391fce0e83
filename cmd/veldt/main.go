// Package main is the entrypoint for the Veldt content proxy.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/veldt-cms/veldt/caas"
	"github.com/veldt-cms/veldt/internal/config"
	"github.com/veldt-cms/veldt/internal/server"
	"github.com/veldt-cms/veldt/navigation"
)

func main() {
	root := &cobra.Command{
		Use:           "veldt",
		Short:         "Veldt translates headless-CMS content into locale-resolved, reference-flattened document trees",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var envFile string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the thin HTTP proxy in front of the content store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(envFile)
		},
	}
	serve.Flags().StringVar(&envFile, "env-file", ".env", "environment file to load before reading configuration")
	root.AddCommand(serve)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runServe(envFile string) error {
	// Load the env file when present; a missing file is not an error so the
	// proxy also runs from plain environment variables.
	if err := godotenv.Load(envFile); err == nil {
		slog.Debug("loaded environment file", "file", envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	// --- Set up structured logging ---
	logLevel := slog.LevelInfo
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting Veldt proxy",
		"port", cfg.Port,
		"project", cfg.ProjectID,
		"content_mode", cfg.ContentMode,
		"locale", cfg.Locale,
		"max_reference_depth", cfg.MaxReferenceDepth,
		"remote_projects", len(cfg.Remotes),
		"dev_mode", cfg.DevMode,
	)

	if cfg.CaaSURL == "" {
		return fmt.Errorf("VELDT_CAAS_URL is required")
	}
	if cfg.ProjectID == "" {
		return fmt.Errorf("VELDT_PROJECT_ID is required")
	}

	// --- Build upstream clients ---
	remotesByID := make(map[string]caas.RemoteProject, len(cfg.Remotes))
	for _, remote := range cfg.Remotes {
		remotesByID[remote.ID] = remote
	}

	api := caas.NewClient(caas.ClientConfig{
		BaseURL:     cfg.CaaSURL,
		APIKey:      cfg.APIKey,
		ProjectID:   cfg.ProjectID,
		ContentMode: cfg.ContentMode,
		Remotes:     remotesByID,
		Logger:      logger,
	})

	var nav server.NavigationFetcher
	if cfg.NavigationURL != "" {
		nav = navigation.NewClient(navigation.ClientConfig{
			BaseURL:   cfg.NavigationURL,
			ProjectID: cfg.ProjectID,
			APIKey:    cfg.APIKey,
			Logger:    logger,
		})
	}

	// --- Build router and start server ---
	handler := server.NewHandler(api, nav, cfg)
	router := server.NewRouter(server.Dependencies{
		Handler:   handler,
		JWTSecret: cfg.JWTSecret,
		DevMode:   cfg.DevMode,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := server.New(addr, router)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		errCh <- srv.Start()
	}()

	// --- Graceful shutdown on SIGINT/SIGTERM ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	slog.Info("shutting down server (30s timeout)...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("Veldt proxy stopped")
	return nil
}
