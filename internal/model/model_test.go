package model

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/honeyrag/honeyrag/internal/log"
	"github.com/honeyrag/honeyrag/internal/testutil"
)

func newTestClient(t *testing.T, fake *testutil.FakeVLLM) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL: fake.URL(),
		APIKey:  "not-needed",
		Model:   "Qwen/Qwen3-8B",
		Logger:  log.NewNop(),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return c
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{BaseURL: "http://localhost:8000/v1"}); err == nil {
		t.Error("expected error for missing model name")
	}
	if _, err := New(Config{Model: "m"}); err == nil {
		t.Error("expected error for missing base URL")
	}
}

func TestGenerate(t *testing.T) {
	fake := testutil.NewFakeVLLM("Honey is made by bees.")
	defer fake.Close()

	c := newTestClient(t, fake)

	resp, err := c.Generate(context.Background(), Request{
		System:      "You are a helpful assistant.",
		Prompt:      "How is honey made?",
		Temperature: 0.7,
		MaxTokens:   256,
	})
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}

	if resp.Text != "Honey is made by bees." {
		t.Errorf("unexpected text: %q", resp.Text)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("unexpected finish reason: %q", resp.FinishReason)
	}

	req, ok := fake.LastRequest()
	if !ok {
		t.Fatal("no request recorded")
	}
	if req.Model != "Qwen/Qwen3-8B" {
		t.Errorf("unexpected model: %q", req.Model)
	}
	if len(req.Messages) != 2 {
		t.Fatalf("expected system + user message, got %d messages", len(req.Messages))
	}
	if req.Messages[0].Role != "system" {
		t.Errorf("first message should be system, got %q", req.Messages[0].Role)
	}
	if req.Messages[1].Role != "user" || req.Messages[1].Content != "How is honey made?" {
		t.Errorf("unexpected user message: %+v", req.Messages[1])
	}
}

func TestGenerateWithHistory(t *testing.T) {
	fake := testutil.NewFakeVLLM("About 60,000 bees.")
	defer fake.Close()

	c := newTestClient(t, fake)

	_, err := c.Generate(context.Background(), Request{
		System: "system prompt",
		History: []Message{
			{Role: RoleUser, Content: "Tell me about beehives."},
			{Role: RoleAssistant, Content: "A beehive houses a colony."},
		},
		Prompt: "How many bees live in one?",
	})
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}

	req, _ := fake.LastRequest()
	roles := make([]string, len(req.Messages))
	for i, m := range req.Messages {
		roles[i] = m.Role
	}
	want := "system,user,assistant,user"
	if got := strings.Join(roles, ","); got != want {
		t.Errorf("message roles = %s, want %s", got, want)
	}
}

func TestGenerateEmptyPrompt(t *testing.T) {
	fake := testutil.NewFakeVLLM("unused")
	defer fake.Close()

	c := newTestClient(t, fake)

	_, err := c.Generate(context.Background(), Request{})
	if !errors.Is(err, ErrEmptyPrompt) {
		t.Errorf("expected ErrEmptyPrompt, got %v", err)
	}
}

func TestGenerateServerError(t *testing.T) {
	fake := testutil.NewFakeVLLM("unused")
	defer fake.Close()
	fake.Fail(503)

	c := newTestClient(t, fake)

	_, err := c.Generate(context.Background(), Request{Prompt: "q"})
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestGenerateStream(t *testing.T) {
	fake := testutil.NewFakeVLLM("Honey never spoils.")
	defer fake.Close()

	c := newTestClient(t, fake)

	var chunks []string
	resp, err := c.GenerateStream(context.Background(), Request{Prompt: "Tell me a honey fact."},
		func(_ context.Context, chunk string) error {
			chunks = append(chunks, chunk)
			return nil
		})
	if err != nil {
		t.Fatalf("GenerateStream() failed: %v", err)
	}

	if resp.Text != "Honey never spoils." {
		t.Errorf("accumulated text = %q", resp.Text)
	}
	if len(chunks) < 2 {
		t.Errorf("expected at least 2 chunks, got %d", len(chunks))
	}
	if strings.Join(chunks, "") != "Honey never spoils." {
		t.Errorf("chunks do not reassemble the response: %q", strings.Join(chunks, ""))
	}
}

func TestGenerateStreamCallbackAbort(t *testing.T) {
	fake := testutil.NewFakeVLLM("long response text")
	defer fake.Close()

	c := newTestClient(t, fake)

	abort := errors.New("client gone")
	_, err := c.GenerateStream(context.Background(), Request{Prompt: "q"},
		func(context.Context, string) error { return abort })
	if !errors.Is(err, abort) {
		t.Errorf("expected callback error to propagate, got %v", err)
	}
}
