// ABOUTME: The serve command: HTTP API with graceful shutdown
// ABOUTME: Runs the server and the shutdown watcher in one errgroup

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/2389/mediflow/internal/api"
	"github.com/2389/mediflow/internal/auth"
)

func newServeCmd(configPath func() (string, bool)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, explicit := configPath()
			return runServe(cmd.Context(), path, explicit)
		},
	}
}

func runServe(ctx context.Context, configPath string, explicit bool) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := loadConfig(configPath, explicit)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging, os.Stdout)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close", "error", err)
		}
	}()

	var verifier auth.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		v, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			return fmt.Errorf("creating verifier: %w", err)
		}
		verifier = v
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Responder: %s\n", cfg.Responder.Kind)
	if verifier == nil {
		yellow.Print("    ! ")
		fmt.Println("auth.jwt_secret not set, API is unauthenticated")
	}
	fmt.Println()

	server := api.New(api.Options{
		Session:    a.session,
		Dispatcher: a.dispatcher,
		Renderer:   a.renderer,
		Exporter:   a.exporter,
		Verifier:   verifier,
		Logger:     logger,
	})

	// No WriteTimeout: the event stream and synchronous submissions are long-lived.
	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		logger.Info("starting mediflow", "http_addr", cfg.Server.HTTPAddr, "responder", cfg.Responder.Kind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		// Close event streams first so Shutdown is not held open by them.
		a.session.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("server stopped")
		return nil
	})

	return eg.Wait()
}
