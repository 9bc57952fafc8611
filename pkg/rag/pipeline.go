// Package rag wires retrieval and generation into a question-answering
// pipeline: embed the question, fetch the top-k chunks, render them into a
// grounded prompt and ask the chat model.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avhart/espalier/internal/logging"
	"github.com/avhart/espalier/pkg/ports"
	"github.com/avhart/espalier/pkg/prompt"
)

const defaultTopK = 4

var answerTemplate = prompt.MustTemplate("rag-answer", `Answer the question using only the context below. If the context does not contain the answer, say so.

Context:
{{.context}}

Question: {{.question}}`)

const systemPrompt = "You are a careful assistant that answers strictly from the provided context."

// Pipeline is a retrieval-augmented QA pipeline over a vector store.
type Pipeline struct {
	Embedder ports.Embedder
	Store    ports.VectorStore
	Model    ports.ChatModel

	// TopK bounds how many chunks are retrieved. Zero means 4.
	TopK int

	// Params are the sampling parameters for the answer call.
	Params ports.SamplingParams

	Logger *slog.Logger
}

// Answer is the pipeline result: the generated text, the chunks it was
// grounded on, and the usage counters of the model call.
type Answer struct {
	Text    string              `json:"text"`
	Sources []ports.ScoredChunk `json:"sources"`
	Usage   ports.Usage         `json:"usage"`
}

// Ask answers one question.
func (p *Pipeline) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("rag: question is empty")
	}
	logger := p.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	vectors, err := p.Embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, err
	}

	k := p.TopK
	if k <= 0 {
		k = defaultTopK
	}
	sources, err := p.Store.Search(ctx, vectors[0], k)
	if err != nil {
		return nil, err
	}
	logger.Debug("retrieved context", "question_len", len(question), "chunks", len(sources))

	chain := &prompt.Chain{
		Model:    p.Model,
		Template: answerTemplate,
		System:   systemPrompt,
		Params:   p.Params,
	}
	result, err := chain.Invoke(ctx, map[string]any{
		"question": question,
		"context":  renderContext(sources),
	})
	if err != nil {
		return nil, err
	}

	return &Answer{Text: result.Output, Sources: sources, Usage: result.Usage}, nil
}

func renderContext(sources []ports.ScoredChunk) string {
	if len(sources) == 0 {
		return "(no matching documents)"
	}
	var sb strings.Builder
	for i, s := range sources {
		fmt.Fprintf(&sb, "[%d] (%s #%d) %s\n", i+1, s.DocumentID, s.Ordinal, s.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}
