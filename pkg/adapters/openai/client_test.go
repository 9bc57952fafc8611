package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avhart/espalier/pkg/adapters/openai"
	"github.com/avhart/espalier/pkg/domain"
	"github.com/avhart/espalier/pkg/ports"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *openai.Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := openai.New(openai.Config{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		Model:      "test-model",
		EmbedModel: "test-embed",
	})
	require.NoError(t, err)
	return srv, client
}

func TestGenerate(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]any{
			"model": "test-model",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Hello there"}},
			},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16},
		})
	})

	completion, err := client.Generate(context.Background(),
		[]domain.Message{{Role: domain.RoleUser, Content: "Hi"}},
		ports.SamplingParams{Temperature: 0.7, TopP: 0.95})
	require.NoError(t, err)

	assert.Equal(t, "Hello there", completion.Content)
	assert.Equal(t, 16, completion.Usage.TotalTokens)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, 0.7, gotBody["temperature"])
	assert.Equal(t, 0.95, gotBody["top_p"])
}

func TestGenerate_HTTPErrorIsExternal(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := client.Generate(context.Background(),
		[]domain.Message{{Role: domain.RoleUser, Content: "Hi"}},
		ports.SamplingParams{})
	require.Error(t, err)
	assert.True(t, domain.IsExternalError(err))
	assert.Contains(t, err.Error(), "429")
}

func TestGenerate_NoChoices(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := client.Generate(context.Background(),
		[]domain.Message{{Role: domain.RoleUser, Content: "Hi"}},
		ports.SamplingParams{})
	require.Error(t, err)
	assert.True(t, domain.IsExternalError(err))
}

func TestEmbed(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		// Return out of order to exercise index mapping.
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{0.3, 0.4}},
				{"index": 0, "embedding": []float32{0.1, 0.2}},
			},
		})
	})

	vectors, err := client.Embed(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vectors[0])
	assert.Equal(t, []float32{0.3, 0.4}, vectors[1])
}

func TestEmbed_CountMismatch(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"index": 0, "embedding": []float32{0.1}}},
		})
	})

	_, err := client.Embed(context.Background(), []string{"one", "two"})
	require.Error(t, err)
	assert.True(t, domain.IsExternalError(err))
}

func TestHooksFire(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "ok"}}},
			"usage":   map[string]int{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		})
	}))
	defer srv.Close()

	var calls, returns int
	client, err := openai.New(openai.Config{BaseURL: srv.URL, Model: "m"},
		openai.WithHooks(domain.LifecycleHooks{
			OnModelCall:   func(context.Context, *domain.ModelEvent) { calls++ },
			OnModelReturn: func(_ context.Context, ev *domain.ModelEvent) { returns++; assert.False(t, ev.IsError) },
		}))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "x"}}, ports.SamplingParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, returns)
}
