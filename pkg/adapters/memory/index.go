package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/avhart/espalier/pkg/ports"
)

// Index implements ports.VectorStore with brute-force cosine similarity.
type Index struct {
	mu     sync.RWMutex
	chunks []ports.Chunk
}

// NewIndex creates an empty vector index.
func NewIndex() *Index {
	return &Index{}
}

// Add stores the chunks. Every chunk must carry an embedding.
func (ix *Index) Add(ctx context.Context, chunks []ports.Chunk) error {
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", c.ID)
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.chunks = append(ix.chunks, chunks...)
	return nil
}

// Search returns the k most similar chunks, best first. Chunks whose
// dimension does not match the query are skipped.
func (ix *Index) Search(ctx context.Context, embedding []float32, k int) ([]ports.ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	scored := make([]ports.ScoredChunk, 0, len(ix.chunks))
	for _, c := range ix.chunks {
		if len(c.Embedding) != len(embedding) {
			continue
		}
		scored = append(scored, ports.ScoredChunk{Chunk: c, Score: cosine(embedding, c.Embedding)})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Len returns the number of stored chunks.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

func cosine(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
