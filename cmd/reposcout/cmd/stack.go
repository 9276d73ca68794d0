package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/reposcout/internal/cache"
	"github.com/Aman-CERP/reposcout/internal/config"
	"github.com/Aman-CERP/reposcout/internal/gitlab"
	"github.com/Aman-CERP/reposcout/internal/indexer"
	"github.com/Aman-CERP/reposcout/internal/search"
	"github.com/Aman-CERP/reposcout/internal/telemetry"
	"github.com/Aman-CERP/reposcout/internal/tools"
)

// stack is the fully wired set of components behind every command.
type stack struct {
	client  *gitlab.Client
	cache   *cache.Manager
	indexer *indexer.Indexer
	engine  *search.Engine
	metrics *telemetry.QueryMetrics
	tools   *tools.Service
}

type stackOptions struct {
	// telemetry records tool calls into the metrics database.
	telemetry bool
	// progressEvery overrides the indexer progress interval when positive.
	progressEvery int
}

func newStack(cfg *config.Config, logger *slog.Logger, opts stackOptions) (*stack, error) {
	if logger == nil {
		logger = slog.Default()
	}

	clientOpts := gitlab.OptionsFromConfig(cfg.GitLab)
	clientOpts.Logger = logger
	client := gitlab.New(clientOpts)

	cacheOpts := cache.OptionsFromConfig(cfg.Cache)
	cacheOpts.Logger = logger
	mgr, err := cache.New(cacheOpts)
	if err != nil {
		client.Close()
		return nil, err
	}

	ixOpts := indexer.OptionsFromConfig(cfg.Indexer)
	ixOpts.Logger = logger
	if opts.progressEvery > 0 {
		ixOpts.ProgressEvery = opts.progressEvery
	}
	ix, err := indexer.New(client, mgr, ixOpts)
	if err != nil {
		client.Close()
		return nil, err
	}

	var warmer search.Warmer
	if cfg.Search.WarmCache {
		warmer = ix
	}
	engOpts := search.OptionsFromConfig(cfg.Search)
	engOpts.Logger = logger
	engine := search.New(client, mgr, warmer, engOpts)

	var metrics *telemetry.QueryMetrics
	if opts.telemetry && cfg.Telemetry.Enabled {
		store, err := telemetry.OpenStore(cfg.TelemetryPath())
		if err != nil {
			// Usage metrics are optional; the server runs without them.
			logger.Warn("telemetry disabled", slog.String("error", err.Error()))
		} else {
			metrics = telemetry.New(store, telemetry.DefaultConfig())
		}
	}

	svc := tools.New(client, mgr, engine, ix, tools.Options{Metrics: metrics, Logger: logger})

	return &stack{
		client:  client,
		cache:   mgr,
		indexer: ix,
		engine:  engine,
		metrics: metrics,
		tools:   svc,
	}, nil
}

// Close flushes telemetry and releases idle connections.
func (s *stack) Close() error {
	var errs []error
	if s.metrics != nil {
		if err := s.metrics.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close telemetry: %w", err))
		}
	}
	s.client.Close()
	return errors.Join(errs...)
}
