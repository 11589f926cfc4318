// ABOUTME: Builds the mediflow object graph from configuration
// ABOUTME: Store, session, responder, dispatcher, renderer, and exporter share one lifecycle

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/2389/mediflow/internal/config"
	"github.com/2389/mediflow/internal/dedupe"
	"github.com/2389/mediflow/internal/diagram"
	"github.com/2389/mediflow/internal/dispatch"
	"github.com/2389/mediflow/internal/responder"
	"github.com/2389/mediflow/internal/session"
	"github.com/2389/mediflow/internal/store"
	"github.com/2389/mediflow/internal/transcript"
)

// loadConfig reads the config file. When no file exists at the default
// location, defaults are used with the encryption key taken from
// MEDIFLOW_ENCRYPTION_KEY.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if explicit || !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cfg = config.Default(getDataPath())
	cfg.Credentials.EncryptionKey = os.Getenv("MEDIFLOW_ENCRYPTION_KEY")
	cfg.Auth.JWTSecret = os.Getenv("MEDIFLOW_JWT_SECRET")
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("no config at %s and defaults are incomplete: %w", path, err)
	}
	return cfg, nil
}

func newResponder(cfg config.ResponderConfig, logger *slog.Logger) responder.Responder {
	switch cfg.Kind {
	case config.ResponderOpenAI:
		return responder.NewOpenAI(responder.OpenAIOptions{
			Model:        cfg.Model,
			BaseURL:      cfg.BaseURL,
			SystemPrompt: cfg.SystemPrompt,
			Timeout:      cfg.Timeout,
			Logger:       logger,
		})
	default:
		return responder.NewStub(responder.StubOptions{
			Latency: cfg.Latency,
			Jitter:  cfg.Jitter,
			Logger:  logger,
		})
	}
}

// app is the wired engine shared by every command.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      store.Store
	session    *session.Store
	dispatcher *dispatch.Dispatcher
	renderer   *diagram.Renderer
	exporter   *transcript.Exporter
	dedupe     *dedupe.Cache
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	sealer, err := store.NewSealer(cfg.Credentials.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("creating sealer: %w", err)
	}
	st, err := store.NewSQLiteStore(cfg.Database.Path, sealer)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return wireApp(ctx, cfg, st, newResponder(cfg.Responder, logger), logger), nil
}

// wireApp assembles the engine around an already open store.
func wireApp(ctx context.Context, cfg *config.Config, st store.Store, resp responder.Responder, logger *slog.Logger) *app {
	sess := session.New(session.Options{KV: st, Logger: logger})
	if err := sess.Load(ctx); err != nil {
		logger.Warn("failed to restore session settings, using defaults", "error", err)
	}

	cache := dedupe.New(cfg.Idempotency.TTL, cfg.Idempotency.MaxKeys)
	catalog := diagram.NewCatalog()

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		session: sess,
		dispatcher: dispatch.New(sess, dispatch.Options{
			Responder:  resp,
			Usage:      st,
			DailyLimit: cfg.Plans.DailyLimit(),
			Dedupe:     cache,
			Diagrams:   catalog,
			Logger:     logger,
		}),
		renderer: diagram.NewRenderer(catalog, diagram.Options{Delay: cfg.Diagram.RenderDelay, Logger: logger}),
		exporter: transcript.NewExporter(catalog, nil),
		dedupe:   cache,
	}
}

// Close stops in-flight work and releases the store.
func (a *app) Close() error {
	a.dispatcher.Close()
	a.session.Close()
	a.dedupe.Close()
	return a.store.Close()
}
