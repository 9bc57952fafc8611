package espalier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/avhart/espalier/internal/config"
	"github.com/avhart/espalier/internal/logging"
	"github.com/avhart/espalier/pkg/adapters/memory"
	"github.com/avhart/espalier/pkg/adapters/openai"
	"github.com/avhart/espalier/pkg/adapters/pgvector"
	"github.com/avhart/espalier/pkg/adapters/redis"
	"github.com/avhart/espalier/pkg/observability"
	"github.com/avhart/espalier/pkg/persistence/middleware"
	"github.com/avhart/espalier/pkg/ports"
	"github.com/avhart/espalier/pkg/rag"
	"github.com/avhart/espalier/pkg/retrieval"
	"github.com/avhart/espalier/pkg/session"
)

// Version is the release version of the module.
const Version = "0.1.0"

// Engine bundles the wired collaborators: the model client, session
// persistence, the vector store and metrics. It is the composition root the
// CLI and the servers build on; library users who want finer control can
// wire the packages directly.
type Engine struct {
	Model    *openai.Client
	Sessions *session.Manager
	Vectors  ports.VectorStore
	Metrics  *observability.Metrics
	Logger   *slog.Logger

	cfg     *config.Config
	closers []func() error
}

// Option configures the Engine.
type Option func(*engineOptions)

type engineOptions struct {
	logger   *slog.Logger
	registry prometheus.Registerer
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRegistry sets the Prometheus registerer for engine metrics.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(o *engineOptions) { o.registry = reg }
}

// New wires an Engine from configuration. Redis and Postgres are optional:
// without them sessions and vectors live in memory.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	o := engineOptions{
		logger:   logging.New(logging.ParseLevel(cfg.LogLevel)),
		registry: prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&o)
	}

	eng := &Engine{
		Logger:  o.logger,
		Metrics: observability.NewMetrics(o.registry),
		cfg:     cfg,
	}

	model, err := openai.New(openai.Config{
		BaseURL:    cfg.ModelBaseURL,
		APIKey:     cfg.ModelAPIKey,
		Model:      cfg.ChatModel,
		EmbedModel: cfg.EmbedModel,
		Timeout:    cfg.ModelTimeout,
	},
		openai.WithHooks(eng.Metrics.Hooks()),
		openai.WithLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}
	eng.Model = model

	if err := eng.wireSessions(); err != nil {
		return nil, err
	}
	if err := eng.wireVectors(ctx); err != nil {
		eng.Close()
		return nil, err
	}
	return eng, nil
}

func (e *Engine) wireSessions() error {
	var store ports.StateStore
	var sessionOpts []session.Option

	if e.cfg.RedisAddr != "" {
		redisStore := redis.New(e.cfg.RedisAddr, e.cfg.RedisPassword, 0, redis.WithTTL(e.cfg.SessionTTL))
		store = redisStore
		sessionOpts = append(sessionOpts,
			session.WithLocker(redis.NewLocker(redisStore.Client(), "espalier:")))
		e.closers = append(e.closers, redisStore.Client().Close)
		e.Logger.Info("session store: redis", "addr", e.cfg.RedisAddr)
	} else {
		store = memory.NewStore()
		e.Logger.Debug("session store: in-memory")
	}

	if e.cfg.EncryptionKey != "" {
		store = middleware.Chain(store, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey: []byte(e.cfg.EncryptionKey),
		}))
		e.Logger.Info("session state encryption enabled")
	}

	sessionOpts = append(sessionOpts, session.WithLogger(e.Logger))
	e.Sessions = session.NewManager(store, sessionOpts...)
	return nil
}

func (e *Engine) wireVectors(ctx context.Context) error {
	if e.cfg.PostgresDSN == "" {
		e.Vectors = memory.NewIndex()
		e.Logger.Debug("vector store: in-memory")
		return nil
	}

	store, err := pgvector.Open(e.cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}
	e.closers = append(e.closers, store.Close)
	e.Vectors = store
	e.Logger.Info("vector store: pgvector")
	return nil
}

// Ingestor builds a document ingestor over the engine's embedder and vector
// store.
func (e *Engine) Ingestor() (*retrieval.Ingestor, error) {
	splitter, err := retrieval.NewSplitter(e.cfg.ChunkSize, e.cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	return &retrieval.Ingestor{
		Splitter: splitter,
		Embedder: e.Model,
		Store:    e.Vectors,
		Logger:   e.Logger,
	}, nil
}

// Pipeline builds the question-answering pipeline.
func (e *Engine) Pipeline() *rag.Pipeline {
	return &rag.Pipeline{
		Embedder: e.Model,
		Store:    e.Vectors,
		Model:    e.Model,
		TopK:     e.cfg.TopK,
		Params:   e.SamplingParams(),
		Logger:   e.Logger,
	}
}

// SamplingParams returns the configured default sampling parameters.
func (e *Engine) SamplingParams() ports.SamplingParams {
	return ports.SamplingParams{
		Temperature: e.cfg.Temperature,
		TopP:        e.cfg.TopP,
		MaxTokens:   e.cfg.MaxTokens,
	}
}

// Close releases held resources.
func (e *Engine) Close() {
	for _, closer := range e.closers {
		if err := closer(); err != nil {
			e.Logger.Warn("close failed", "err", err)
		}
	}
}
