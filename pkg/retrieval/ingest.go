package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/avhart/espalier/internal/logging"
	"github.com/avhart/espalier/pkg/ports"
)

// embedBatch bounds how many chunks go to the embedder per request.
const embedBatch = 32

// Ingestor runs the extract -> split -> embed -> store pipeline.
type Ingestor struct {
	Splitter *Splitter
	Embedder ports.Embedder
	Store    ports.VectorStore

	// Parallelism bounds concurrent embedding batches. Zero means 4.
	Parallelism int

	Logger *slog.Logger
}

// IngestFile extracts text from the file (PDF or plain text by extension)
// and ingests it under the file name as document ID. Returns the number of
// chunks stored.
func (in *Ingestor) IngestFile(ctx context.Context, path string) (int, error) {
	var text string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err = ExtractPDF(path)
	default:
		var raw []byte
		raw, err = os.ReadFile(path)
		text = string(raw)
	}
	if err != nil {
		return 0, fmt.Errorf("extract %s: %w", path, err)
	}
	return in.IngestText(ctx, filepath.Base(path), text)
}

// IngestText splits, embeds and stores one document.
func (in *Ingestor) IngestText(ctx context.Context, documentID, text string) (int, error) {
	logger := in.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	pieces := in.Splitter.Split(text)
	if len(pieces) == 0 {
		return 0, nil
	}

	chunks := make([]ports.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = ports.Chunk{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			Ordinal:    i,
			Text:       piece,
		}
	}

	parallelism := in.Parallelism
	if parallelism <= 0 {
		parallelism = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for start := 0; start < len(chunks); start += embedBatch {
		end := start + embedBatch
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Text
			}
			vectors, err := in.Embedder.Embed(gctx, texts)
			if err != nil {
				return err
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
			}
			for i := range batch {
				batch[i].Embedding = vectors[i]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if err := in.Store.Add(ctx, chunks); err != nil {
		return 0, err
	}

	logger.Info("document ingested", "document", documentID, "chunks", len(chunks))
	return len(chunks), nil
}
