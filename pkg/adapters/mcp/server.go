// Package mcp exposes the engine to MCP clients: workflow sessions as tools
// (start, send input, inspect) plus retrieval-augmented question answering
// when a pipeline is configured.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/avhart/espalier/internal/logging"
	"github.com/avhart/espalier/pkg/domain"
	"github.com/avhart/espalier/pkg/graph"
	"github.com/avhart/espalier/pkg/rag"
	"github.com/avhart/espalier/pkg/session"
)

// SessionResult is the structured output of the session tools.
type SessionResult struct {
	SessionID string           `json:"session_id" jsonschema_description:"Identifier to use in subsequent send_input calls"`
	Status    string           `json:"status" jsonschema_description:"active, awaiting_input or terminated"`
	Messages  []domain.Message `json:"messages" jsonschema_description:"Full conversation transcript"`
}

// AskResult is the structured output of the ask tool.
type AskResult struct {
	Answer  string   `json:"answer" jsonschema_description:"Generated answer grounded in the retrieved documents"`
	Sources []string `json:"sources" jsonschema_description:"Document chunks the answer was grounded on"`
}

// Server exposes workflow sessions and retrieval over MCP.
type Server struct {
	workflow  *graph.Workflow
	sessions  *session.Manager
	pipeline  *rag.Pipeline
	logger    *slog.Logger
	maxSteps  int
	mcpServer *server.MCPServer
}

// Option configures the server.
type Option func(*Server)

// WithPipeline enables the ask tool.
func WithPipeline(p *rag.Pipeline) Option {
	return func(s *Server) { s.pipeline = p }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxSteps bounds how many nodes a single turn may execute.
func WithMaxSteps(n int) Option {
	return func(s *Server) { s.maxSteps = n }
}

// NewServer creates an MCP server over the given workflow and sessions.
func NewServer(version string, wf *graph.Workflow, sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		workflow:  wf,
		sessions:  sessions,
		logger:    logging.NewNop(),
		maxSteps:  graph.DefaultMaxSteps,
		mcpServer: server.NewMCPServer("espalier-mcp", version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE transport.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("mcp server listening (sse)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	startTool := mcp.NewTool("start_session",
		mcp.WithDescription("Start a new workflow session. The workflow runs until it needs input or finishes."),
		mcp.WithOutputSchema[SessionResult](),
	)
	s.mcpServer.AddTool(startTool, mcp.NewStructuredToolHandler(s.handleStartSession))

	inputTool := mcp.NewTool("send_input",
		mcp.WithDescription("Answer a session that is awaiting input and run it to the next pause."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier from start_session")),
		mcp.WithString("input", mcp.Required(), mcp.Description("The user's answer")),
		mcp.WithOutputSchema[SessionResult](),
	)
	s.mcpServer.AddTool(inputTool, mcp.NewStructuredToolHandler(s.handleSendInput))

	getTool := mcp.NewTool("get_session",
		mcp.WithDescription("Fetch the current transcript and status of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithOutputSchema[SessionResult](),
	)
	s.mcpServer.AddTool(getTool, mcp.NewStructuredToolHandler(s.handleGetSession))

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the workflow graph as a Mermaid flowchart."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(s.workflow.Mermaid(nil)), nil
	})

	if s.pipeline != nil {
		askTool := mcp.NewTool("ask",
			mcp.WithDescription("Answer a question using the ingested documents."),
			mcp.WithString("question", mcp.Required(), mcp.Description("Natural language question")),
			mcp.WithOutputSchema[AskResult](),
		)
		s.mcpServer.AddTool(askTool, mcp.NewStructuredToolHandler(s.handleAsk))
	}
}

func (s *Server) handleStartSession(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (SessionResult, error) {
	sessionID := uuid.NewString()
	if _, err := s.sessions.LoadOrStart(ctx, sessionID); err != nil {
		return SessionResult{}, fmt.Errorf("start session: %w", err)
	}
	state, err := s.sessions.Update(ctx, sessionID, func(ctx context.Context, st *domain.State) (*domain.State, error) {
		return s.workflow.Advance(ctx, st, s.maxSteps)
	})
	if err != nil {
		return SessionResult{}, fmt.Errorf("start session: %w", err)
	}
	return sessionResult(sessionID, state), nil
}

func (s *Server) handleSendInput(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (SessionResult, error) {
	sessionID, _ := args["session_id"].(string)
	input, _ := args["input"].(string)

	state, err := s.sessions.Update(ctx, sessionID, func(ctx context.Context, st *domain.State) (*domain.State, error) {
		if st.Status != domain.StatusAwaitingInput {
			return nil, fmt.Errorf("session %s is not awaiting input (status %s)", sessionID, st.Status)
		}
		st.Input = input
		st.Status = domain.StatusActive
		return s.workflow.Advance(ctx, st, s.maxSteps)
	})
	if err != nil {
		return SessionResult{}, fmt.Errorf("send input: %w", err)
	}
	return sessionResult(sessionID, state), nil
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (SessionResult, error) {
	sessionID, _ := args["session_id"].(string)
	state, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return SessionResult{}, fmt.Errorf("get session: %w", err)
	}
	return sessionResult(sessionID, state), nil
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (AskResult, error) {
	question, _ := args["question"].(string)
	answer, err := s.pipeline.Ask(ctx, question)
	if err != nil {
		s.logger.Error("ask failed", "err", err)
		return AskResult{}, fmt.Errorf("ask: %w", err)
	}
	sources := make([]string, len(answer.Sources))
	for i, src := range answer.Sources {
		sources[i] = fmt.Sprintf("%s #%d: %s", src.DocumentID, src.Ordinal, src.Text)
	}
	return AskResult{Answer: answer.Text, Sources: sources}, nil
}

func sessionResult(sessionID string, state *domain.State) SessionResult {
	return SessionResult{
		SessionID: sessionID,
		Status:    string(state.Status),
		Messages:  state.Messages,
	}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("espalier://graph", "Workflow Graph",
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "espalier://graph",
				MIMEType: "text/plain",
				Text:     s.workflow.Mermaid(nil),
			},
		}, nil
	})
}
