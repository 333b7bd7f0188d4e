package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/xhad/docqa/internal/models"
)

// DefaultTopK is the number of nodes returned when a caller passes k <= 0.
const DefaultTopK = 2

var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// MemoryStore is an in-memory vector store using brute-force cosine
// similarity. Nothing is persisted.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	nodes     []models.Node
	positions map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{positions: make(map[string]int)}
}

// Add stores nodes in order. A node whose ID is already present replaces the
// stored one in place.
func (s *MemoryStore) Add(_ context.Context, nodes []models.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dimension
	for _, n := range nodes {
		if len(n.Embedding) == 0 {
			return fmt.Errorf("node %s has no embedding", n.ID)
		}
		if dim == 0 {
			dim = len(n.Embedding)
		}
		if len(n.Embedding) != dim {
			return fmt.Errorf("%w: node %s has %d, want %d", ErrDimensionMismatch, n.ID, len(n.Embedding), dim)
		}
	}
	s.dimension = dim

	for _, n := range nodes {
		if pos, ok := s.positions[n.ID]; ok {
			s.nodes[pos] = n
			continue
		}
		s.positions[n.ID] = len(s.nodes)
		s.nodes = append(s.nodes, n)
	}
	return nil
}

// Query returns the k nodes most similar to embedding, best first. Equal
// scores keep insertion order.
func (s *MemoryStore) Query(_ context.Context, embedding []float32, k int) ([]models.ScoredNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 {
		k = DefaultTopK
	}
	if len(s.nodes) == 0 {
		return nil, nil
	}
	if len(embedding) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d, want %d", ErrDimensionMismatch, len(embedding), s.dimension)
	}

	scored := make([]models.ScoredNode, len(s.nodes))
	for i, n := range s.nodes {
		scored[i] = models.ScoredNode{Node: n, Score: cosine(n.Embedding, embedding)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes), nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = nil
	s.positions = make(map[string]int)
	s.dimension = 0
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
