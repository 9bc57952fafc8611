// Package retrieval implements the document side of the pipeline: splitting
// raw text into overlapping fixed-size chunks and ingesting documents
// (extract, split, embed, store) for similarity search.
package retrieval

import (
	"strings"

	"github.com/avhart/espalier/pkg/domain"
)

// Splitter cuts text into chunks of at most ChunkSize runes with Overlap
// runes shared between consecutive chunks. Splitting is rune-based so
// multi-byte text never gets cut mid-character.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

// NewSplitter validates the configuration.
func NewSplitter(chunkSize, overlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, &domain.ConfigError{Op: "splitter", Name: "chunk_size", Reason: "must be positive"}
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, &domain.ConfigError{Op: "splitter", Name: "overlap", Reason: "must be in [0, chunk_size)"}
	}
	return &Splitter{ChunkSize: chunkSize, Overlap: overlap}, nil
}

// Split returns the chunk texts for the given document. Empty and
// whitespace-only input yields no chunks.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= s.ChunkSize {
		return []string{text}
	}

	stride := s.ChunkSize - s.Overlap
	var out []string
	for start := 0; start < len(runes); start += stride {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			out = append(out, piece)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}
