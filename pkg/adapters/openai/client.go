// Package openai implements the ChatModel and Embedder ports against any
// OpenAI-compatible HTTP API (hosted or local). The client carries its full
// configuration explicitly; nothing is read from the environment here.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/avhart/espalier/internal/logging"
	"github.com/avhart/espalier/pkg/domain"
	"github.com/avhart/espalier/pkg/ports"
)

// Config holds everything the client needs. Construct it once (typically
// from internal/config) and pass it down; there are no global lookups.
type Config struct {
	BaseURL    string // e.g. "https://api.openai.com/v1"
	APIKey     string
	Model      string // chat model name
	EmbedModel string // embeddings model name
	Timeout    time.Duration
}

// Client is a synchronous HTTP client for chat completions and embeddings.
type Client struct {
	cfg    Config
	http   *http.Client
	hooks  domain.LifecycleHooks
	logger *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithHooks registers model-call observability callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Client) { c.hooks = hooks }
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client from the given configuration.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("openai: base URL is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai: chat model name is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var (
	_ ports.ChatModel = (*Client)(nil)
	_ ports.Embedder  = (*Client)(nil)
)

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate performs one chat-completion round trip.
func (c *Client) Generate(ctx context.Context, messages []domain.Message, params ports.SamplingParams) (*ports.Completion, error) {
	body := chatRequest{
		Model:       c.cfg.Model,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		MaxTokens:   params.MaxTokens,
	}
	for _, m := range messages {
		body.Messages = append(body.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	c.emitModelCall(ctx)
	start := time.Now()

	var parsed chatResponse
	if err := c.post(ctx, "/chat/completions", body, &parsed); err != nil {
		c.emitModelReturn(ctx, start, nil, true)
		return nil, &domain.ExternalError{Service: "model", Err: err}
	}
	if len(parsed.Choices) == 0 {
		c.emitModelReturn(ctx, start, nil, true)
		return nil, &domain.ExternalError{Service: "model", Err: fmt.Errorf("response contained no choices")}
	}

	completion := &ports.Completion{
		Content: parsed.Choices[0].Message.Content,
		Model:   parsed.Model,
		Usage: ports.Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}
	c.emitModelReturn(ctx, start, completion, false)
	c.logger.Debug("chat completion",
		"model", c.cfg.Model,
		"prompt_tokens", completion.Usage.PromptTokens,
		"completion_tokens", completion.Usage.CompletionTokens,
		"took", time.Since(start))
	return completion, nil
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed maps texts to vectors using the configured embeddings model.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("openai: no texts to embed")
	}
	model := c.cfg.EmbedModel
	if model == "" {
		return nil, fmt.Errorf("openai: embeddings model name is required")
	}

	var parsed embeddingsResponse
	if err := c.post(ctx, "/embeddings", embeddingsRequest{Model: model, Input: texts}, &parsed); err != nil {
		return nil, &domain.ExternalError{Service: "embeddings", Err: err}
	}
	if len(parsed.Data) != len(texts) {
		return nil, &domain.ExternalError{
			Service: "embeddings",
			Err:     fmt.Errorf("expected %d embeddings, got %d", len(texts), len(parsed.Data)),
		}
	}

	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, &domain.ExternalError{Service: "embeddings", Err: fmt.Errorf("embedding index %d out of range", d.Index)}
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

func (c *Client) emitModelCall(ctx context.Context) {
	if c.hooks.OnModelCall == nil {
		return
	}
	c.hooks.OnModelCall(ctx, &domain.ModelEvent{
		Timestamp: time.Now(),
		Type:      domain.EventModelCall,
		Model:     c.cfg.Model,
	})
}

func (c *Client) emitModelReturn(ctx context.Context, start time.Time, completion *ports.Completion, isErr bool) {
	if c.hooks.OnModelReturn == nil {
		return
	}
	ev := &domain.ModelEvent{
		Timestamp: time.Now(),
		Type:      domain.EventModelReturn,
		Model:     c.cfg.Model,
		Duration:  time.Since(start),
		IsError:   isErr,
	}
	if completion != nil {
		ev.PromptTokens = completion.Usage.PromptTokens
		ev.CompletionTokens = completion.Usage.CompletionTokens
	}
	c.hooks.OnModelReturn(ctx, ev)
}
