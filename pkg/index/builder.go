package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/internal/types"
	"go.uber.org/zap"
)

type BuilderConfig struct {
	BatchSize  int
	Workers    int
	OnProgress func(done, total int)
	Logger     *zap.Logger
}

// Builder parses documents into nodes, embeds them concurrently and loads
// them into a vector store.
type Builder struct {
	parser   types.NodeParser
	embedder embeddings.Embedder
	store    types.VectorStore
	config   BuilderConfig
	log      *zap.SugaredLogger
}

func NewBuilder(parser types.NodeParser, embedder embeddings.Embedder, store types.VectorStore, config BuilderConfig) *Builder {
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Builder{
		parser:   parser,
		embedder: embedder,
		store:    store,
		config:   config,
		log:      config.Logger.Sugar(),
	}
}

// FromDocuments embeds every node parsed from docs and adds them to the
// store in document order. The first embedding failure stops the build.
func (b *Builder) FromDocuments(ctx context.Context, docs []models.Document) (*VectorStoreIndex, error) {
	nodes, err := b.parser.Process(docs)
	if err != nil {
		return nil, fmt.Errorf("failed to parse documents: %w", err)
	}

	b.log.Infow("Building vector index", "documents", len(docs), "nodes", len(nodes), "workers", b.config.Workers)

	if len(nodes) > 0 {
		if err := b.embed(ctx, nodes); err != nil {
			return nil, err
		}
		if err := b.store.Add(ctx, nodes); err != nil {
			return nil, fmt.Errorf("failed to store nodes: %w", err)
		}
	}

	return NewVectorStoreIndex(b.store, b.embedder), nil
}

func (b *Builder) embed(ctx context.Context, nodes []models.Node) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool, err := ants.NewPool(b.config.Workers, ants.WithPanicHandler(func(p interface{}) {
		b.log.Errorw("Embedding worker panic recovered", "panic", p)
	}))
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		done     int
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	total := len(nodes)
	for start := 0; start < total; start += b.config.BatchSize {
		if ctx.Err() != nil {
			break
		}

		end := start + b.config.BatchSize
		if end > total {
			end = total
		}
		batch := nodes[start:end]

		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}

			texts := make([]string, len(batch))
			for i, n := range batch {
				texts[i] = n.Text
			}

			vectors, err := b.embedder.EmbedDocuments(ctx, texts)
			if err != nil {
				fail(fmt.Errorf("failed to embed nodes %d-%d: %w", start, end-1, err))
				return
			}
			if len(vectors) != len(batch) {
				fail(fmt.Errorf("embedder returned %d vectors for %d nodes", len(vectors), len(batch)))
				return
			}
			for i := range batch {
				batch[i].Embedding = vectors[i]
			}

			mu.Lock()
			done += len(batch)
			if b.config.OnProgress != nil {
				b.config.OnProgress(done, total)
			}
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("failed to submit embedding task: %w", err))
		}
	}

	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}
