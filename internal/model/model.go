// Package model provides the language-model client for the agent.
//
// The model runtime is a vLLM server exposing the OpenAI-compatible chat
// completions API; this package wraps the openai-go SDK pointed at that
// server. The local vLLM deployment does not check API keys, but the SDK
// requires one, so a placeholder is passed through from configuration.
package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Sentinel errors for model operations.
var (
	// ErrEmptyPrompt indicates the prompt is empty.
	ErrEmptyPrompt = errors.New("empty prompt")

	// ErrEmptyResponse indicates the model returned no choices.
	ErrEmptyResponse = errors.New("model returned empty response")
)

// Message roles accepted in conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of conversation history handed to the model.
type Message struct {
	Role    string // RoleUser or RoleAssistant
	Content string
}

// Request describes a single generation call.
type Request struct {
	System      string    // System prompt (instructions + retrieved context)
	History     []Message // Prior conversation turns, oldest first
	Prompt      string    // Current user input
	Temperature float32
	MaxTokens   int
}

// Response is the model's answer.
type Response struct {
	Text         string
	FinishReason string
}

// StreamCallback receives each text chunk as it arrives.
// Returning an error aborts the stream.
type StreamCallback func(ctx context.Context, chunk string) error

// Client is a handle to the vLLM model endpoint.
type Client struct {
	api    openai.Client
	model  string
	logger *slog.Logger
}

// Config contains required parameters for the model client.
type Config struct {
	BaseURL string // OpenAI-compatible base URL (e.g. http://localhost:8000/v1)
	APIKey  string // Placeholder for local vLLM; real key for hosted endpoints
	Model   string // Model identifier as served by vLLM
	Logger  *slog.Logger
}

// New creates a model client.
func New(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, errors.New("model name is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := openai.NewClient(
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
		// Retries are owned by the agent's retry policy.
		option.WithMaxRetries(0),
	)

	return &Client{api: api, model: cfg.Model, logger: logger}, nil
}

// Name returns the model identifier this client generates with.
func (c *Client) Name() string {
	return c.model
}

// Generate performs a synchronous chat completion.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	completion, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := completion.Choices[0]
	c.logger.Debug("model generation completed",
		"model", c.model,
		"finish_reason", choice.FinishReason,
		"completion_tokens", completion.Usage.CompletionTokens,
	)

	return &Response{
		Text:         choice.Message.Content,
		FinishReason: choice.FinishReason,
	}, nil
}

// GenerateStream performs a streaming chat completion, delivering text chunks
// through cb as they arrive. Returns the accumulated final response.
func (c *Client) GenerateStream(ctx context.Context, req Request, cb StreamCallback) (*Response, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	stream := c.api.Chat.Completions.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" || cb == nil {
			continue
		}
		if err := cb(ctx, delta); err != nil {
			return nil, fmt.Errorf("stream callback: %w", err)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("chat completion stream: %w", err)
	}
	if len(acc.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := acc.Choices[0]
	return &Response{
		Text:         choice.Message.Content,
		FinishReason: choice.FinishReason,
	}, nil
}

// buildParams converts a Request into SDK parameters.
func (c *Client) buildParams(req Request) (openai.ChatCompletionNewParams, error) {
	if req.Prompt == "" {
		return openai.ChatCompletionNewParams{}, ErrEmptyPrompt
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.History {
		switch m.Role {
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(float64(req.Temperature))
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return params, nil
}
