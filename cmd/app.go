package cmd

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"market-briefer/internal/ai"
	"market-briefer/internal/config"
	"market-briefer/internal/history"
	"market-briefer/internal/opportunity"
	"market-briefer/internal/pipeline"
	"market-briefer/internal/redisclient"
	"market-briefer/internal/search"
	"market-briefer/internal/sourcequality"
	"market-briefer/internal/urlcheck"
)

// app bundles the wired dependency graph shared by run and serve.
type app struct {
	rdb      *redis.Client
	store    *history.RedisStore
	pipeline *pipeline.Pipeline
}

func (a *app) Close() error {
	return a.rdb.Close()
}

// buildApp wires the full pipeline from configuration.
func buildApp(cfg config.Config) (*app, error) {
	if cfg.Search.APIKey == "" || cfg.Search.EngineID == "" {
		return nil, fmt.Errorf("search provider not configured (search.api_key, search.engine_id)")
	}
	if cfg.OpenAI.APIKey == "" || cfg.OpenAI.Model == "" {
		return nil, fmt.Errorf("openai not configured (openai.api_key, openai.model)")
	}

	if cfg.Briefs.OverridesFile != "" {
		ov, err := sourcequality.LoadOverridesFile(cfg.Briefs.OverridesFile)
		if err != nil {
			return nil, fmt.Errorf("load source-quality overrides: %w", err)
		}
		sourcequality.Merge(ov)
	}

	log := slog.Default()
	rdb := redisclient.New(cfg.Redis)
	store := history.NewRedisStore(rdb, cfg.Briefs.LookbackWeeks)

	searcher := search.NewGoogleClient(cfg.Search.BaseURL, cfg.Search.APIKey, cfg.Search.EngineID, cfg.Search.Geo)
	synth := ai.NewOpenAI(ai.Config{
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.Model,
		BaseURL: cfg.OpenAI.BaseURL,
	})
	validator := urlcheck.NewValidator(log)

	p := pipeline.New(pipeline.Deps{
		Fetcher:     search.NewFetcher(searcher, log),
		Synthesizer: synth,
		Aggregator:  opportunity.NewAggregator(validator, log),
		History:     store,
		Logger:      log,
	})

	return &app{rdb: rdb, store: store, pipeline: p}, nil
}
