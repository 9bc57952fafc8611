package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avhart/espalier/pkg/adapters/memory"
	"github.com/avhart/espalier/pkg/domain"
	"github.com/avhart/espalier/pkg/graph"
	"github.com/avhart/espalier/pkg/session"
)

// greeterWorkflow asks for a name and replies with it.
func greeterWorkflow(t *testing.T) *graph.Workflow {
	t.Helper()
	wf := graph.New()
	require.NoError(t, wf.Register("greet", func(_ context.Context, s *domain.State) (*domain.State, error) {
		s.Append(domain.RoleAssistant, "What is your name?")
		s.Await("reply")
		return s, nil
	}))
	require.NoError(t, wf.Register("reply", func(_ context.Context, s *domain.State) (*domain.State, error) {
		s.Append(domain.RoleAssistant, "Hello, "+s.Input+"!")
		s.End()
		return s, nil
	}))
	require.NoError(t, wf.SetEntry("greet"))
	return wf
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	sessions := session.NewManager(memory.NewStore())
	return NewServer(greeterWorkflow(t), sessions, WithVersion("test"))
}

func createSession(t *testing.T, handler http.Handler) SessionResponse {
	t.Helper()
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/sessions", nil))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSessionLifecycle(t *testing.T) {
	handler := newTestServer(t).Handler()

	created := createSession(t, handler)
	assert.NotEmpty(t, created.SessionID)
	assert.Equal(t, domain.StatusAwaitingInput, created.State.Status)
	require.Len(t, created.State.Messages, 1)

	body, _ := json.Marshal(InputRequest{Input: "Rahul"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/sessions/"+created.SessionID+"/input", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.StatusTerminated, resp.State.Status)
	require.Len(t, resp.State.Messages, 2)
	assert.Contains(t, resp.State.Messages[1].Content, "Rahul")

	// Terminated sessions reject further input.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/sessions/"+created.SessionID+"/input", bytes.NewReader(body)))
	assert.Equal(t, http.StatusConflict, w.Code)

	// State survives between requests.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/sessions/"+created.SessionID+"/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("DELETE", "/sessions/"+created.SessionID+"/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/sessions/"+created.SessionID+"/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInput_UnknownSession(t *testing.T) {
	handler := newTestServer(t).Handler()

	body, _ := json.Marshal(InputRequest{Input: "x"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/sessions/nope/input", bytes.NewReader(body)))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInput_MalformedBody(t *testing.T) {
	handler := newTestServer(t).Handler()
	created := createSession(t, handler)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/sessions/"+created.SessionID+"/input", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListSessions(t *testing.T) {
	handler := newTestServer(t).Handler()
	created := createSession(t, handler)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/sessions", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string][]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["sessions"], created.SessionID)
}

func TestGraphEndpoint(t *testing.T) {
	handler := newTestServer(t).Handler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/graph", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "graph TD")
}

func TestHealthAndInfo(t *testing.T) {
	handler := newTestServer(t).Handler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/info", nil))
	assert.Contains(t, w.Body.String(), "test")
}

func TestEvents_BroadcastOnInput(t *testing.T) {
	handler := newTestServer(t).Handler()
	created := createSession(t, handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wSub := httptest.NewRecorder()
	reqSub := httptest.NewRequest("GET", "/sessions/"+created.SessionID+"/events", nil).WithContext(ctx)

	done := make(chan struct{})
	go func() {
		handler.ServeHTTP(wSub, reqSub)
		close(done)
	}()
	time.Sleep(100 * time.Millisecond) // wait for subscription to register

	body, _ := json.Marshal(InputRequest{Input: "Rahul"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/sessions/"+created.SessionID+"/input", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	cancel()
	<-done

	output := wSub.Body.String()
	assert.Contains(t, output, "event: ping")
	assert.Contains(t, output, "Rahul")
}
