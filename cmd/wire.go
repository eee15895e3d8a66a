package main

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/AntoineDubuc/theodore/internal/aggregator"
	"github.com/AntoineDubuc/theodore/internal/cache"
	"github.com/AntoineDubuc/theodore/internal/discovery"
	"github.com/AntoineDubuc/theodore/internal/embedding"
	"github.com/AntoineDubuc/theodore/internal/errs"
	"github.com/AntoineDubuc/theodore/internal/extractor"
	"github.com/AntoineDubuc/theodore/internal/fetcher"
	"github.com/AntoineDubuc/theodore/internal/llm"
	"github.com/AntoineDubuc/theodore/internal/progress"
	"github.com/AntoineDubuc/theodore/internal/research"
	"github.com/AntoineDubuc/theodore/internal/selector"
	"github.com/AntoineDubuc/theodore/internal/store"
	"github.com/AntoineDubuc/theodore/pkg/anthropic"
	"github.com/AntoineDubuc/theodore/pkg/gemini"
)

// openHybrid opens the document store for the configured driver, runs
// migrations, and pairs it with the vector index.
func openHybrid(ctx context.Context) (*store.Hybrid, error) {
	var docs store.DocumentStore
	var err error

	switch cfg.Store.Driver {
	case "postgres":
		docs, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		docs, err = store.NewSQLite(cfg.Store.Path)
	}
	if err != nil {
		return nil, err
	}
	if err := docs.Migrate(ctx); err != nil {
		docs.Close()
		return nil, err
	}

	vectors, err := store.NewVectorIndex(cfg.Vector.Path, cfg.Vector.Collection)
	if err != nil {
		docs.Close()
		return nil, err
	}

	return store.NewHybrid(docs, vectors, store.MetadataOptions{
		BudgetBytes:            cfg.Vector.MetadataBudgetBytes,
		SummaryPrefixChars:     cfg.Vector.SummaryPrefixChars,
		DescriptionPrefixChars: cfg.Vector.DescriptionPrefixChars,
	}), nil
}

// openBus opens the progress bus over the configured state file.
func openBus() (*progress.Bus, error) {
	return progress.NewBus(cfg.Progress.Path, progress.Options{
		MaxJobs:     cfg.Progress.MaxJobs,
		MaxLogLines: cfg.Progress.MaxLogLines,
		StaleAfter:  time.Duration(cfg.Progress.StaleAfterMinutes) * time.Minute,
	})
}

// buildCoordinator assembles the full research pipeline from config.
// The returned cleanup closes everything the pipeline opened.
func buildCoordinator(ctx context.Context, hybrid *store.Hybrid, bus *progress.Bus) (*research.Coordinator, func(), error) {
	var providers []llm.Provider
	var geminiClient gemini.Client

	if cfg.Anthropic.Key != "" {
		client := anthropic.NewClient(cfg.Anthropic.Key)
		providers = append(providers, llm.NewClaudeProvider(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens))
	}
	if cfg.Gemini.Key != "" {
		var err error
		geminiClient, err = gemini.NewClient(ctx, cfg.Gemini.Key, cfg.Gemini.EmbedModel)
		if err != nil {
			return nil, nil, eris.Wrap(errs.ErrConfig, "gemini client: "+err.Error())
		}
		providers = append(providers, llm.NewGeminiProvider(geminiClient, cfg.Gemini.Model))
	}

	gateway, err := llm.NewGateway(cfg.LLM.RequestsPerMinute, cfg.LLM.Burst, providers...)
	if err != nil {
		return nil, nil, err
	}

	static := fetcher.NewStatic(fetcher.StaticOptions{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		SSLVerify:    cfg.Fetch.SSLVerify,
		PerHostRPS:   cfg.Fetch.PerHostRPS,
		PerHostBurst: cfg.Fetch.PerHostBurst,
	})

	var siteCache research.SiteCache
	cleanup := func() {}
	if cfg.Cache.Enabled {
		c, err := cache.Open(cfg.Cache.Path, time.Duration(cfg.Cache.TTLHours)*time.Hour)
		if err != nil {
			zap.L().Warn("crawl cache unavailable, continuing without it", zap.Error(err))
		} else {
			siteCache = c
			cleanup = func() { _ = c.Close() }
			if n, serr := c.Sweep(); serr == nil && n > 0 {
				zap.L().Info("crawl cache swept", zap.Int("expired", n))
			}
		}
	}

	var embedder research.RecordEmbedder
	if geminiClient != nil {
		embedder = embedding.NewService(geminiClient, cfg.Embedding.Dimension)
	}

	coord, err := research.New(research.Config{
		Discovery: discovery.Limits{
			MaxDepth:        cfg.Discovery.MaxDepth,
			MaxLinksPerPage: cfg.Discovery.MaxLinksPerPage,
			MaxVisited:      cfg.Discovery.MaxVisited,
			WallTime:        time.Duration(cfg.Discovery.WallTimeSecs) * time.Second,
			MaxURLs:         cfg.Discovery.MaxURLs,
		},
		Selection: selector.Options{
			MaxCandidates: cfg.Selection.MaxCandidates,
			MaxTargets:    cfg.Selection.MaxTargets,
			Timeout:       time.Duration(cfg.Selection.TimeoutSecs) * time.Second,
		},
		MaxPages: cfg.Selection.MaxTargets,
	}, research.Deps{
		OpenSession: func(ctx context.Context) (research.Session, error) {
			b, err := fetcher.NewBrowser(ctx, fetcher.BrowserOptions{
				UserAgent:   cfg.Fetch.UserAgent,
				SSLVerify:   cfg.Fetch.SSLVerify,
				PageTimeout: time.Duration(cfg.Fetch.PageTimeoutSecs) * time.Second,
			})
			if err != nil {
				return nil, err
			}
			return b, nil
		},
		Discoverer: func(s research.Session) research.Discoverer {
			return discovery.New(static, s)
		},
		Extractor: func(s research.Session) research.PageExtractor {
			return extractor.New(s, extractor.Options{
				Concurrency:  cfg.Extraction.Concurrency,
				BodyMaxChars: cfg.Extraction.BodyMaxChars,
				MinWords:     cfg.Extraction.MinWords,
			})
		},
		Selector: selector.New(gateway),
		Aggregator: aggregator.New(gateway, aggregator.Options{
			CorpusBudgetChars: cfg.Aggregation.CorpusBudgetChars,
			Timeout:           time.Duration(cfg.Aggregation.TimeoutSecs) * time.Second,
			MaxTokens:         cfg.Anthropic.MaxTokens,
		}),
		Embedder: embedder,
		Store:    hybrid,
		Cache:    siteCache,
		Gateway:  gateway,
		Bus:      bus,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return coord, cleanup, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
