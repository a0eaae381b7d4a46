// Package testutil provides test helpers shared across packages.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

// ChatRequest is the subset of the OpenAI chat completions request the fake
// server records for assertions.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// ChatMessage is one message in a recorded chat request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FakeVLLM is an httptest server emulating vLLM's OpenAI-compatible
// chat completions endpoint. It records every request for assertions and
// returns a fixed response (optionally chunked for streaming requests).
//
// Thread-safe for concurrent use.
type FakeVLLM struct {
	mu       sync.Mutex
	server   *httptest.Server
	requests []ChatRequest

	// Response is the assistant text returned for every request.
	Response string
	// StatusCode, when non-zero, makes the server fail every request
	// with that status instead of answering.
	StatusCode int
}

// NewFakeVLLM starts a fake vLLM server returning the given response text.
// The caller must Close() it.
func NewFakeVLLM(response string) *FakeVLLM {
	f := &FakeVLLM{Response: response}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat/completions", f.handleChat)
	f.server = httptest.NewServer(mux)
	return f
}

// URL returns the base URL to use as the model client's BaseURL.
func (f *FakeVLLM) URL() string {
	return f.server.URL
}

// Close shuts the server down.
func (f *FakeVLLM) Close() {
	f.server.Close()
}

// Requests returns a copy of all recorded chat requests.
func (f *FakeVLLM) Requests() []ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]ChatRequest, len(f.requests))
	copy(cp, f.requests)
	return cp
}

// LastRequest returns the most recent chat request, or false if none.
func (f *FakeVLLM) LastRequest() (ChatRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return ChatRequest{}, false
	}
	return f.requests[len(f.requests)-1], true
}

// Fail makes the server reject every request with the given status code.
func (f *FakeVLLM) Fail(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StatusCode = status
}

func (f *FakeVLLM) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	status := f.StatusCode
	response := f.Response
	f.mu.Unlock()

	if status != 0 {
		http.Error(w, `{"error":{"message":"injected failure"}}`, status)
		return
	}

	if req.Stream {
		f.streamResponse(w, req.Model, response)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-fake",
		"object":  "chat.completion",
		"created": 1,
		"model":   req.Model,
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": response},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{
			"prompt_tokens":     7,
			"completion_tokens": 5,
			"total_tokens":      12,
		},
	})
}

// streamResponse emits the response split into two SSE chunks followed by a
// finish chunk and [DONE], matching vLLM's streaming format.
func (f *FakeVLLM) streamResponse(w http.ResponseWriter, model, response string) {
	w.Header().Set("Content-Type", "text/event-stream")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	half := len(response) / 2
	chunks := []string{response[:half], response[half:]}

	writeChunk := func(delta map[string]any, finish any) {
		payload, _ := json.Marshal(map[string]any{
			"id":      "chatcmpl-fake",
			"object":  "chat.completion.chunk",
			"created": 1,
			"model":   model,
			"choices": []map[string]any{{
				"index":         0,
				"delta":         delta,
				"finish_reason": finish,
			}},
		})
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	writeChunk(map[string]any{"role": "assistant"}, nil)
	for _, c := range chunks {
		if c == "" {
			continue
		}
		writeChunk(map[string]any{"content": c}, nil)
	}
	writeChunk(map[string]any{}, "stop")
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}
