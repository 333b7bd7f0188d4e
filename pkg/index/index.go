// Package index embeds document nodes into a vector store and retrieves the
// nodes closest to a query.
package index

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/internal/types"
)

type VectorStoreIndex struct {
	store    types.VectorStore
	embedder embeddings.Embedder
}

// NewVectorStoreIndex wraps an already populated store.
func NewVectorStoreIndex(store types.VectorStore, embedder embeddings.Embedder) *VectorStoreIndex {
	return &VectorStoreIndex{store: store, embedder: embedder}
}

func (idx *VectorStoreIndex) Store() types.VectorStore {
	return idx.store
}

// AsRetriever returns a retriever yielding the k most similar nodes.
func (idx *VectorStoreIndex) AsRetriever(k int) *Retriever {
	if k <= 0 {
		k = DefaultTopK
	}
	return &Retriever{index: idx, topK: k}
}

type Retriever struct {
	index *VectorStoreIndex
	topK  int
}

var _ types.Retriever = (*Retriever)(nil)

func (r *Retriever) Retrieve(ctx context.Context, query string) ([]models.ScoredNode, error) {
	embedding, err := r.index.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	nodes, err := r.index.store.Query(ctx, embedding, r.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector store: %w", err)
	}
	return nodes, nil
}
