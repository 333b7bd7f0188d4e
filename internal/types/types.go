package types

import (
	"context"

	"github.com/xhad/docqa/internal/models"
)

// Core interfaces
type VectorStore interface {
	Add(ctx context.Context, nodes []models.Node) error
	Query(ctx context.Context, embedding []float32, k int) ([]models.ScoredNode, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

type NodeParser interface {
	Process(docs []models.Document) ([]models.Node, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]models.ScoredNode, error)
}

// Answerer is what the UI layers talk to.
type Answerer interface {
	Query(ctx context.Context, question string) (*models.Response, error)
	Stream(ctx context.Context, question string, onChunk func(chunk string) error) (*models.Response, error)
}
