package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/claim-auditor/internal/cache"
	"github.com/sells-group/claim-auditor/internal/extract"
	"github.com/sells-group/claim-auditor/internal/metrics"
	"github.com/sells-group/claim-auditor/internal/pipeline"
	"github.com/sells-group/claim-auditor/internal/resilience"
	"github.com/sells-group/claim-auditor/internal/store"
	"github.com/sells-group/claim-auditor/pkg/anthropic"
	"github.com/sells-group/claim-auditor/pkg/fmp"
)

// env bundles everything a command needs: the store, the wired pipeline, and
// a close hook.
type env struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initRegistry() (*metrics.Registry, error) {
	registry := metrics.NewRegistry()
	if cfg.Metrics.AliasesPath != "" {
		if err := registry.LoadAliases(cfg.Metrics.AliasesPath); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func retryConfig() resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	if cfg.Retry.MaxAttempts > 0 {
		rc.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.BaseDelayMS > 0 {
		rc.BaseDelay = time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond
	}
	return rc
}

func initFMP() (fmp.Client, error) {
	if cfg.FMP.APIKey == "" {
		return nil, nil
	}

	opts := []fmp.Option{
		fmp.WithRetryConfig(retryConfig()),
	}
	if cfg.FMP.BaseURL != "" {
		opts = append(opts, fmp.WithBaseURL(cfg.FMP.BaseURL))
	}
	if cfg.FMP.RateLimit > 0 {
		opts = append(opts, fmp.WithRateLimit(cfg.FMP.RateLimit, cfg.FMP.Burst))
	}
	if cfg.Cache.Dir != "" {
		disk, err := cache.NewDisk(cfg.Cache.Dir)
		if err != nil {
			return nil, eris.Wrap(err, "init response cache")
		}
		opts = append(opts, fmp.WithCache(disk))
	}

	return fmp.NewClient(cfg.FMP.APIKey, opts...), nil
}

func initExtractor(registry *metrics.Registry) (pipeline.ClaimExtractor, error) {
	if cfg.Anthropic.Key == "" {
		return nil, nil
	}

	client := anthropic.NewClient(cfg.Anthropic.Key)
	return extract.NewExtractor(client, registry,
		extract.WithModel(cfg.Anthropic.Model),
		extract.WithMaxClaims(cfg.Pipeline.MaxClaimsPerTranscript),
		extract.WithPromptVersion(cfg.Anthropic.PromptVersion),
	)
}

// initPipeline validates the configuration for the given mode and wires up
// the full pipeline. Clients whose API keys are absent stay nil; stages that
// need them fail with a clear error if invoked anyway.
func initPipeline(ctx context.Context, mode string) (*env, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	registry, err := initRegistry()
	if err != nil {
		st.Close()
		return nil, err
	}

	fmpClient, err := initFMP()
	if err != nil {
		st.Close()
		return nil, err
	}

	extractor, err := initExtractor(registry)
	if err != nil {
		st.Close()
		return nil, err
	}

	zap.L().Debug("pipeline initialized",
		zap.String("mode", mode),
		zap.String("store", cfg.Store.Driver),
		zap.Bool("fmp", fmpClient != nil),
		zap.Bool("extractor", extractor != nil),
	)

	return &env{
		Store:    st,
		Pipeline: pipeline.New(cfg, st, fmpClient, extractor, registry),
	}, nil
}

// printJSON writes a result object to stdout, indented.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// targetQuarters parses the --quarters flag, falling back to the configured
// targets and then the most recent four completed quarters.
func targetQuarters(labels []string) ([]pipeline.Quarter, error) {
	if len(labels) == 0 {
		labels = cfg.Pipeline.TargetQuarters
	}
	if len(labels) == 0 {
		return pipeline.RecentQuarters(4, time.Now()), nil
	}
	return pipeline.ParseQuarters(labels)
}
