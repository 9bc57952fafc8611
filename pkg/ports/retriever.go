package ports

import "context"

// Chunk is a bounded-size slice of a source document, the unit of retrieval.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Ordinal    int       `json:"ordinal"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// ScoredChunk pairs a chunk with its similarity to a query.
type ScoredChunk struct {
	Chunk
	Score float32 `json:"score"`
}

// Embedder maps texts to fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore persists embedded chunks and answers nearest-neighbour
// queries. Implementations are opaque collaborators; failures surface as
// *domain.ExternalError.
type VectorStore interface {
	// Add stores the chunks. Chunks must carry embeddings.
	Add(ctx context.Context, chunks []Chunk) error

	// Search returns the k chunks most similar to the query embedding,
	// best first.
	Search(ctx context.Context, embedding []float32, k int) ([]ScoredChunk, error)
}
