package ports

import (
	"context"

	"github.com/avhart/espalier/pkg/domain"
)

// Usage reports token accounting for one model round trip.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another usage record into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Completion is the result of one generation call.
type Completion struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
	Usage   Usage  `json:"usage"`
}

// SamplingParams carries the optional decoding knobs accepted by the model.
// Zero values mean "use the provider default".
type SamplingParams struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// ChatModel is the Model API boundary: an opaque synchronous generation
// call. Failures are surfaced as *domain.ExternalError without retry.
type ChatModel interface {
	Generate(ctx context.Context, messages []domain.Message, params SamplingParams) (*Completion, error)
}
