// Package app assembles the query engine from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/internal/types"
	"github.com/xhad/docqa/pkg/cache"
	"github.com/xhad/docqa/pkg/config"
	"github.com/xhad/docqa/pkg/index"
	"github.com/xhad/docqa/pkg/llm"
	"github.com/xhad/docqa/pkg/loader"
	"github.com/xhad/docqa/pkg/processor"
	"github.com/xhad/docqa/pkg/query"
	"github.com/xhad/docqa/pkg/scraper"
	"github.com/xhad/docqa/pkg/store"
	"go.uber.org/zap"
)

type Options struct {
	// OnProgress receives embedding progress while the index is built.
	OnProgress func(done, total int)
	// OnScrape is called for every page fetched from scraper.urls.
	OnScrape func(url string)

	// Chat and Embedder replace the configured providers when set.
	Chat     query.LLM
	Embedder embeddings.Embedder
}

type App struct {
	engine  *query.Engine
	index   *index.VectorStoreIndex
	closers []func() error
	log     *zap.SugaredLogger
}

// New runs the startup sequence: LLM, embedder, documents, vector index and
// query engine, in that order.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{log: logger.Sugar()}

	chat := opts.Chat
	if chat == nil {
		engine, err := llm.NewWithConfig(chatConfig(cfg))
		if err != nil {
			return nil, err
		}
		chat = engine
	}

	embedder := opts.Embedder
	if embedder == nil {
		var err error
		embedder, err = llm.NewEmbedder(embedderConfig(cfg))
		if err != nil {
			return nil, err
		}
	}

	vectorStore, populated, err := a.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, vectorStore.Close)

	idx := index.NewVectorStoreIndex(vectorStore, embedder)
	if !populated {
		idx, err = a.ingest(ctx, cfg, logger, embedder, vectorStore, opts)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	a.index = idx

	answers, err := a.openCache(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	// Cached answers belong to the index they were produced from.
	if answers != nil && !populated {
		if err := answers.Clear(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to clear answer cache: %w", err)
		}
		a.log.Infow("Cleared answer cache after ingestion")
	}

	a.engine = query.NewEngine(idx.AsRetriever(cfg.Query.SimilarityTopK), chat, query.Options{
		ResponseMode:   cfg.Query.ResponseMode,
		ContextWindow:  cfg.LLM.ContextWindow,
		NumOutput:      cfg.LLM.ReservedOutput(),
		TokenizerModel: cfg.LLM.Model,
		Cache:          answers,
		QATemplate:     cfg.Query.QATemplate,
		RefineTemplate: cfg.Query.RefineTemplate,
		Logger:         logger,
	})

	return a, nil
}

// Engine is the query engine the UI layers answer through.
func (a *App) Engine() *query.Engine {
	return a.engine
}

// Count reports how many nodes the vector store holds.
func (a *App) Count(ctx context.Context) (int, error) {
	return a.index.Store().Count(ctx)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openStore returns the configured vector store and whether it already holds
// an index that should be reused.
func (a *App) openStore(ctx context.Context, cfg *config.Config) (types.VectorStore, bool, error) {
	if cfg.Index.Store != "pgvector" {
		return index.NewMemoryStore(), false, nil
	}

	pg, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
		ConnString: cfg.Database.URL,
		TableName:  cfg.Database.TableName,
		VectorDim:  cfg.Database.VectorDim,
		BatchSize:  cfg.Database.BatchSize,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	if cfg.Index.Rebuild {
		if err := pg.Truncate(ctx); err != nil {
			pg.Close()
			return nil, false, err
		}
		return pg, false, nil
	}

	count, err := pg.Count(ctx)
	if err != nil {
		pg.Close()
		return nil, false, err
	}
	if count > 0 {
		a.log.Infow("Reusing existing vector index", "table", cfg.Database.TableName, "nodes", count)
	}
	return pg, count > 0, nil
}

func (a *App) ingest(ctx context.Context, cfg *config.Config, logger *zap.Logger, embedder embeddings.Embedder, vectorStore types.VectorStore, opts Options) (*index.VectorStoreIndex, error) {
	docs, err := a.loadDocuments(ctx, cfg, logger, opts)
	if err != nil {
		return nil, err
	}

	parser, err := processor.NewWithConfig(processor.ProcessorConfig{
		Splitter:        cfg.Processor.Splitter,
		ChunkSize:       cfg.Processor.ChunkSize,
		ChunkOverlap:    cfg.Processor.ChunkOverlap,
		MinChunkLength:  cfg.Processor.MinChunkLength,
		RemoveStopwords: cfg.Processor.RemoveStopwords,
		CustomStopwords: cfg.Processor.CustomStopwords,
		TokenizerModel:  cfg.LLM.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize processor: %w", err)
	}

	builder := index.NewBuilder(parser, embedder, vectorStore, index.BuilderConfig{
		BatchSize:  cfg.Embedder.BatchSize,
		Workers:    cfg.Embedder.Workers,
		OnProgress: opts.OnProgress,
		Logger:     logger,
	})
	return builder.FromDocuments(ctx, docs)
}

// loadDocuments reads the data directory and crawls scraper.urls. A missing
// or empty directory is only an error when no URLs are configured.
func (a *App) loadDocuments(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) ([]models.Document, error) {
	reader := loader.NewDirectoryReader(loader.Config{
		Dir:           cfg.Data.Dir,
		Recursive:     cfg.Data.Recursive,
		Extensions:    cfg.Data.Extensions,
		Exclude:       cfg.Data.Exclude,
		ExcludeHidden: cfg.Data.ExcludeHidden,
		NumFilesLimit: cfg.Data.NumFilesLimit,
	})

	docs, err := reader.Load(ctx)
	switch {
	case err == nil:
		a.log.Infow("Loaded documents", "dir", cfg.Data.Dir, "documents", len(docs))
	case len(cfg.Scraper.URLs) > 0 && (errors.Is(err, loader.ErrNoFiles) || errors.Is(err, loader.ErrDirNotFound)):
		a.log.Warnw("No local documents", "dir", cfg.Data.Dir, "error", err)
	default:
		return nil, err
	}

	for _, u := range cfg.Scraper.URLs {
		s, err := scraper.NewWithConfig(scraper.ScraperConfig{
			BaseURL:           u,
			MaxDepth:          cfg.Scraper.MaxDepth,
			RateLimit:         cfg.Scraper.RateLimit,
			IgnorePatterns:    cfg.Scraper.IgnorePatterns,
			AllowedExtensions: cfg.Scraper.AllowedExtensions,
			OnProgress:        opts.OnScrape,
			Logger:            logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize scraper: %w", err)
		}
		pages, err := s.Scrape(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("failed to scrape %s: %w", u, err)
		}
		a.log.Infow("Scraped pages", "url", u, "documents", len(pages))
		docs = append(docs, pages...)
	}

	return docs, nil
}

func (a *App) openCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cache.Cache, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	settings := cache.Config{TTL: cfg.Cache.TTL, KeyPrefix: cfg.Cache.KeyPrefix}
	if cfg.Cache.RedisURL == "" {
		return cache.NewMemory(settings), nil
	}

	r, err := cache.NewRedis(ctx, cfg.Cache.RedisURL, settings, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.closers = append(a.closers, r.Close)
	return r, nil
}

func chatConfig(cfg *config.Config) llm.ChatConfig {
	return llm.ChatConfig{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		Deployment:  cfg.LLM.Deployment,
		APIKey:      cfg.LLM.APIKey,
		Endpoint:    cfg.LLM.Endpoint,
		APIVersion:  cfg.LLM.APIVersion,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}
}

// embedderConfig shares the Azure credentials of the LLM and the Ollama
// server URL when the embedder does not set its own.
func embedderConfig(cfg *config.Config) llm.EmbedderConfig {
	ec := llm.EmbedderConfig{
		Provider:   cfg.Embedder.Provider,
		Model:      cfg.Embedder.Model,
		Task:       cfg.Embedder.Task,
		Token:      cfg.Embedder.Token,
		URL:        cfg.Embedder.URL,
		Deployment: cfg.Embedder.Deployment,
		BatchSize:  cfg.Embedder.BatchSize,
	}
	switch ec.Provider {
	case llm.ProviderAzure, llm.ProviderOpenAI:
		ec.APIKey = cfg.LLM.APIKey
		ec.Endpoint = cfg.LLM.Endpoint
		ec.APIVersion = cfg.LLM.APIVersion
		if ec.URL == "" && ec.Provider == llm.ProviderOpenAI {
			ec.URL = cfg.LLM.BaseURL
		}
	case llm.ProviderOllama:
		if ec.URL == "" {
			ec.URL = cfg.LLM.BaseURL
		}
	}
	return ec
}
