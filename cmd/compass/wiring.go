package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/compass/internal/archive"
	"github.com/hyperengineering/compass/internal/chat"
	"github.com/hyperengineering/compass/internal/config"
	"github.com/hyperengineering/compass/internal/fetch"
	"github.com/hyperengineering/compass/internal/generation"
	"github.com/hyperengineering/compass/internal/render"
	"github.com/hyperengineering/compass/internal/report"
	"github.com/hyperengineering/compass/internal/store"
)

// newGenerator builds the configured generation provider. Replaced in tests.
var newGenerator = generation.New

// pipeline holds the components shared by the server and the CLI.
type pipeline struct {
	cfg      *config.Config
	store    *store.SQLiteStore
	fetcher  *fetch.Fetcher
	renderer *render.Renderer
}

// openPipeline opens the store and builds the fetch and render stages.
func openPipeline(cfg *config.Config) (*pipeline, error) {
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &pipeline{
		cfg:      cfg,
		store:    db,
		fetcher:  fetch.NewFetcher(db, fetch.Limits(cfg.Context.Limits)),
		renderer: render.New(render.Budgets(cfg.Context.Budgets)),
	}, nil
}

// Close releases the store.
func (p *pipeline) Close() error {
	return p.store.Close()
}

// generator builds the generation provider from config.
func (p *pipeline) generator(ctx context.Context) (generation.Generator, error) {
	g, err := newGenerator(ctx, p.cfg.Generation)
	if err != nil {
		return nil, fmt.Errorf("create generator: %w", err)
	}
	return g, nil
}

// reportService wires the batch report pipeline, including the archive when configured.
func (p *pipeline) reportService(g generation.Generator) (*report.Service, error) {
	archiver, err := archive.New(p.cfg.Archive)
	if err != nil {
		return nil, err
	}
	if p.cfg.Archive.Bucket != "" {
		slog.Info("report archive enabled", "bucket", p.cfg.Archive.Bucket, "endpoint", p.cfg.Archive.Endpoint)
	}
	return report.NewService(p.fetcher, p.renderer, g, p.store,
		report.WithWindow(time.Duration(p.cfg.Context.ReportWindow)),
		report.WithArchiver(archiver),
	), nil
}

// orchestrator wires the chat path.
func (p *pipeline) orchestrator(g generation.Generator) *chat.Orchestrator {
	return chat.NewOrchestrator(p.fetcher, p.renderer, g, time.Duration(p.cfg.Context.ChatWindow))
}
