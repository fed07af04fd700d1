package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"

	"github.com/ahrav/go-vidrank/infrastructure/analyzers"
	"github.com/ahrav/go-vidrank/infrastructure/llm"
	"github.com/ahrav/go-vidrank/infrastructure/middleware"
	"github.com/ahrav/go-vidrank/infrastructure/store"
	"github.com/ahrav/go-vidrank/infrastructure/youtube"
	"github.com/ahrav/go-vidrank/internal/application"
	"github.com/ahrav/go-vidrank/internal/ports"
)

const tracerName = "github.com/ahrav/go-vidrank"

// app is the wired object graph shared by both subcommands.
type app struct {
	engine  *application.Engine
	store   *store.Store
	metrics *middleware.PrometheusMetrics
	logger  *slog.Logger
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store", "err", err)
	}
}

func wire(ctx context.Context, cfg application.Config, logger *slog.Logger) (*app, error) {
	metrics := middleware.NewPrometheusMetrics(nil)
	tracer := otel.Tracer(tracerName)

	temperature := cfg.LLM.Temperature
	client, err := llm.New(llm.Config{
		Provider:          cfg.LLM.Provider,
		APIKey:            cfg.LLM.APIKey,
		Model:             cfg.LLM.Model,
		BaseURL:           cfg.LLM.BaseURL,
		Timeout:           cfg.LLM.Timeout,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Burst:             cfg.LLM.Burst,
		Temperature:       &temperature,
		Metrics:           metrics,
		Tracer:            tracer,
	})
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}

	aopts := analyzers.Options{Temperature: temperature, Logger: logger}
	density, err := analyzers.NewDensity(client, aopts)
	if err != nil {
		return nil, err
	}
	redundancy, err := analyzers.NewRedundancy(client, aopts)
	if err != nil {
		return nil, err
	}
	title, err := analyzers.NewTitleRelevance(client, aopts)
	if err != nil {
		return nil, err
	}
	comparator, err := analyzers.NewComparator(client, aopts)
	if err != nil {
		return nil, err
	}

	a := &app{metrics: metrics, logger: logger}
	ytCfg := youtube.Config{
		BaseURL:      cfg.YouTube.BaseURL,
		OEmbedURL:    cfg.YouTube.OEmbedURL,
		TimedTextURL: cfg.YouTube.TimedTextURL,
		Language:     cfg.YouTube.Language,
		HTTPClient:   &http.Client{Timeout: cfg.YouTube.HTTPTimeout},
		CacheTTL:     cfg.Store.TranscriptTTL,
		Logger:       logger,
	}
	deps := application.EngineDeps{
		Analyzers:  []ports.Analyzer{density, redundancy, title},
		Comparator: comparator,
		Metrics:    metrics,
		Observer:   middleware.NewOTelRunObserver(tracer, logger),
		Logger:     logger,
	}

	if cfg.Store.DSN != "" {
		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN, logger)
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		a.store = st
		ytCfg.Cache = st
		deps.Store = st
	}
	deps.Fetcher = youtube.New(ytCfg)

	engine, err := application.NewEngine(application.EngineOptions{
		Retry:          cfg.Engine.RetryPolicy(),
		MaxConcurrency: cfg.Engine.MaxConcurrency,
		MinItems:       cfg.Engine.MinItems,
		MaxItems:       cfg.Engine.MaxItems,
	}, deps)
	if err != nil {
		a.close()
		return nil, err
	}
	a.engine = engine
	return a, nil
}
