package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeyrag/honeyrag/internal/agent"
	"github.com/honeyrag/honeyrag/internal/model"
)

func chatBody(sessionID, query string) *strings.Reader {
	b, _ := json.Marshal(map[string]string{"sessionId": sessionID, "query": query})
	return strings.NewReader(string(b))
}

func TestChatSend(t *testing.T) {
	fake := &fakeAgent{resp: &agent.Response{
		Text:       "Bees make honey.",
		References: []string{"HoneyRAG Knowledge"},
	}}
	handler := newTestServer(t, ServerConfig{Agent: fake})
	sessionID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", chatBody(sessionID.String(), "how is honey made?"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Bees make honey.", resp.Response)
	assert.Equal(t, sessionID.String(), resp.SessionID)
	assert.Equal(t, []string{"HoneyRAG Knowledge"}, resp.References)

	assert.Equal(t, sessionID, fake.lastSession)
	assert.Equal(t, "how is honey made?", fake.lastQuery)
}

func TestChatSendValidation(t *testing.T) {
	handler := newTestServer(t, ServerConfig{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", "{not json"},
		{"missing sessionId", `{"query":"q"}`},
		{"missing query", fmt.Sprintf(`{"sessionId":%q}`, uuid.New())},
		{"invalid sessionId", `{"sessionId":"not-a-uuid","query":"q"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "invalid_request")
		})
	}
}

func TestChatSendErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid session", agent.ErrInvalidSession, http.StatusNotFound, "invalid_session"},
		{"rate limited", agent.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"model unavailable", agent.ErrModelUnavailable, http.StatusServiceUnavailable, "model_unavailable"},
		{"execution failed", agent.ErrExecutionFailed, http.StatusInternalServerError, "execution_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestServer(t, ServerConfig{Agent: &fakeAgent{err: tt.err}})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", chatBody(uuid.New().String(), "q"))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
		})
	}
}

func TestChatStream(t *testing.T) {
	fake := &fakeAgent{
		resp:   &agent.Response{Text: "streamed answer"},
		chunks: []string{"streamed ", "answer"},
	}
	handler := newTestServer(t, ServerConfig{Agent: fake})
	sessionID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/stream", chatBody(sessionID.String(), "q"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	body := w.Body.String()
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, body, `event: chunk`)
	assert.Contains(t, body, `{"text":"streamed "}`)
	assert.Contains(t, body, `{"text":"answer"}`)
	assert.Contains(t, body, `event: done`)
	assert.Contains(t, body, `"response":"streamed answer"`)
}

func TestChatStreamError(t *testing.T) {
	handler := newTestServer(t, ServerConfig{Agent: &fakeAgent{err: agent.ErrModelUnavailable}})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/stream", chatBody(uuid.New().String(), "q"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	body := w.Body.String()
	assert.Contains(t, body, `event: error`)
	assert.Contains(t, body, `"code":"model_unavailable"`)
	assert.NotContains(t, body, `event: done`)
}

// disconnectingAgent simulates a client dropping mid-stream: it delivers one
// chunk, cancels the request context, then tries to deliver another.
type disconnectingAgent struct {
	fakeAgent
	cancel context.CancelFunc
}

func (a *disconnectingAgent) RunStream(ctx context.Context, _ uuid.UUID, _ string, cb model.StreamCallback) (*agent.Response, error) {
	if err := cb(ctx, "partial "); err != nil {
		return nil, err
	}
	a.cancel()
	if err := cb(ctx, "answer"); err != nil {
		return nil, err
	}
	return &agent.Response{Text: "partial answer"}, nil
}

func TestChatStreamClientDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake := &disconnectingAgent{cancel: cancel}
	handler := newTestServer(t, ServerConfig{Agent: fake})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/stream", chatBody(uuid.New().String(), "q"))
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	// The chunk written before the disconnect goes out; after cancellation the
	// stream ends silently with neither a done nor an error event.
	body := w.Body.String()
	assert.Contains(t, body, `event: chunk`)
	assert.Contains(t, body, `{"text":"partial "}`)
	assert.NotContains(t, body, `{"text":"answer"}`)
	assert.NotContains(t, body, `event: done`)
	assert.NotContains(t, body, `event: error`)
}

func TestChatStreamValidation(t *testing.T) {
	handler := newTestServer(t, ServerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/stream", strings.NewReader(`{"query":"q"}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	body := w.Body.String()
	assert.Contains(t, body, `event: error`)
	assert.Contains(t, body, `"code":"invalid_request"`)
}
