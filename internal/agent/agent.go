// Package agent implements the conversational agent.
//
// An Agent pairs a language-model endpoint with a fixed instruction list and
// optional knowledge access. Each turn: load conversation history, search the
// knowledge base, compose the prompt, call the model, persist the exchange.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/honeyrag/honeyrag/internal/knowledge"
	"github.com/honeyrag/honeyrag/internal/model"
	"github.com/honeyrag/honeyrag/internal/session"
)

// Sentinel errors for agent operations.
var (
	// ErrInvalidSession indicates the session ID is unknown or malformed.
	ErrInvalidSession = errors.New("invalid session")

	// ErrExecutionFailed indicates agent execution failed.
	ErrExecutionFailed = errors.New("execution failed")

	// ErrModelUnavailable indicates the model endpoint kept failing after retries.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrRateLimited indicates the model endpoint is rejecting requests for rate reasons.
	ErrRateLimited = errors.New("rate limited")
)

const (
	// knowledgeSearchTimeout limits how long knowledge retrieval can take per
	// request. Retrieval is advisory: a slow or failing backend must not
	// block the conversation.
	knowledgeSearchTimeout = 15 * time.Second

	// fallbackResponseMessage is returned when the model produces an empty response.
	fallbackResponseMessage = "I apologize, but I couldn't generate a response. Please try rephrasing your question."
)

// Model is the generation backend consumed by the agent.
// *model.Client satisfies it; tests substitute fakes.
type Model interface {
	Name() string
	Generate(ctx context.Context, req model.Request) (*model.Response, error)
	GenerateStream(ctx context.Context, req model.Request, cb model.StreamCallback) (*model.Response, error)
}

// Knowledge is the retrieval surface consumed by the agent.
type Knowledge interface {
	Search(ctx context.Context, query string, topK int) ([]knowledge.Document, error)
}

// SessionStore is the persistence surface consumed by the agent.
type SessionStore interface {
	GetSession(ctx context.Context, sessionID uuid.UUID) (*session.Session, error)
	RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]*session.Message, error)
	AddMessages(ctx context.Context, sessionID uuid.UUID, messages []*session.Message) error
}

// Response represents the complete result of an agent turn.
type Response struct {
	Text       string   // Model's final text output
	References []string // Knowledge sources that informed the answer
}

// Config contains all parameters for building an Agent.
type Config struct {
	ID           string   // Stable agent identifier (e.g. "honeyrag-agent")
	Name         string   // Human-readable agent name
	Description  string   // Shown by the hosting runtime's agent listing
	Instructions []string // Fixed instruction list, prepended to every turn

	Model     Model        // Required
	Knowledge Knowledge    // Optional: nil disables retrieval
	Sessions  SessionStore // Required

	SearchKnowledge       bool // Query the knowledge base each turn
	AddKnowledgeToContext bool // Inject retrieved context into the prompt
	ReadChatHistory       bool // Replay prior session messages to the model
	Markdown              bool // Ask for Markdown-formatted answers

	MaxHistoryMessages int     // Messages replayed per turn (0 = default 100)
	TopK               int     // Knowledge results per turn (0 = backend default)
	Temperature        float32 // Sampling temperature passed to the model
	MaxTokens          int     // Completion budget passed to the model

	RateLimiter *rate.Limiter // Optional: proactive rate limiting (nil = disabled)
	Retry       RetryConfig   // Model retry settings (zero-value uses defaults)

	Logger *slog.Logger
}

// validate checks if all required parameters are present.
func (cfg Config) validate() error {
	if cfg.ID == "" {
		return errors.New("agent id is required")
	}
	if cfg.Model == nil {
		return errors.New("model is required")
	}
	if cfg.Sessions == nil {
		return errors.New("session store is required")
	}
	if cfg.SearchKnowledge && cfg.Knowledge == nil {
		return errors.New("knowledge base is required when search is enabled")
	}
	return nil
}

// Agent is the conversational agent.
//
// All configuration is captured immutably at construction time, so a single
// Agent is safe for concurrent use across requests.
type Agent struct {
	id           string
	name         string
	description  string
	instructions []string

	mdl       Model
	kb        Knowledge
	sessions  SessionStore
	rateLimit *rate.Limiter
	retry     RetryConfig

	searchKnowledge       bool
	addKnowledgeToContext bool
	readChatHistory       bool
	markdown              bool

	maxHistory  int
	topK        int
	temperature float32
	maxTokens   int

	logger *slog.Logger
}

// New creates an Agent from cfg.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxHistory := cfg.MaxHistoryMessages
	if maxHistory <= 0 {
		maxHistory = 100
	}

	retryCfg := cfg.Retry
	if retryCfg.MaxRetries == 0 {
		retryCfg = DefaultRetryConfig()
	}

	return &Agent{
		id:                    cfg.ID,
		name:                  cfg.Name,
		description:           cfg.Description,
		instructions:          append([]string(nil), cfg.Instructions...),
		mdl:                   cfg.Model,
		kb:                    cfg.Knowledge,
		sessions:              cfg.Sessions,
		rateLimit:             cfg.RateLimiter,
		retry:                 retryCfg,
		searchKnowledge:       cfg.SearchKnowledge,
		addKnowledgeToContext: cfg.AddKnowledgeToContext,
		readChatHistory:       cfg.ReadChatHistory,
		markdown:              cfg.Markdown,
		maxHistory:            maxHistory,
		topK:                  cfg.TopK,
		temperature:           cfg.Temperature,
		maxTokens:             cfg.MaxTokens,
		logger:                logger,
	}, nil
}

// ID returns the agent's stable identifier.
func (a *Agent) ID() string { return a.id }

// Name returns the agent's display name.
func (a *Agent) Name() string { return a.name }

// Description returns the agent's description.
func (a *Agent) Description() string { return a.description }

// ModelName returns the identifier of the model backing this agent.
func (a *Agent) ModelName() string { return a.mdl.Name() }

// Run executes one non-streaming conversation turn.
func (a *Agent) Run(ctx context.Context, sessionID uuid.UUID, query string) (*Response, error) {
	return a.run(ctx, sessionID, query, nil)
}

// RunStream executes one conversation turn, streaming text chunks through cb.
func (a *Agent) RunStream(ctx context.Context, sessionID uuid.UUID, query string, cb model.StreamCallback) (*Response, error) {
	return a.run(ctx, sessionID, query, cb)
}

func (a *Agent) run(ctx context.Context, sessionID uuid.UUID, query string, cb model.StreamCallback) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrExecutionFailed)
	}

	start := time.Now()

	if _, err := a.sessions.GetSession(ctx, sessionID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidSession, sessionID)
		}
		return nil, fmt.Errorf("%w: loading session: %w", ErrExecutionFailed, err)
	}

	docs := a.searchContext(ctx, query)

	history, err := a.loadHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	req := model.Request{
		System:      a.systemPrompt(docs),
		History:     history,
		Prompt:      query,
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	}

	resp, err := a.generateWithRetry(ctx, req, cb)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		text = fallbackResponseMessage
	}

	if err := a.sessions.AddMessages(ctx, sessionID, []*session.Message{
		session.NewUserMessage(sessionID, query),
		session.NewAssistantMessage(sessionID, text),
	}); err != nil {
		// The answer was generated; losing history is bad but not fatal.
		a.logger.Error("persisting conversation turn", "session", sessionID, "error", err)
	}

	references := make([]string, 0, len(docs))
	for _, d := range docs {
		references = append(references, d.Source)
	}

	a.logger.Info("agent turn completed",
		"agent", a.id,
		"session", sessionID,
		"knowledge_docs", len(docs),
		"history_messages", len(history),
		"duration", time.Since(start),
	)

	return &Response{Text: text, References: references}, nil
}

// searchContext queries the knowledge base for the current turn.
// Failures degrade to an empty result: retrieval is advisory and must not
// fail the conversation.
func (a *Agent) searchContext(ctx context.Context, query string) []knowledge.Document {
	if !a.searchKnowledge || a.kb == nil {
		return nil
	}

	searchCtx, cancel := context.WithTimeout(ctx, knowledgeSearchTimeout)
	defer cancel()

	docs, err := a.kb.Search(searchCtx, query, a.topK)
	if err != nil {
		a.logger.Warn("knowledge search failed, answering without context", "error", err)
		return nil
	}
	return docs
}

// loadHistory loads the replay window of prior messages.
func (a *Agent) loadHistory(ctx context.Context, sessionID uuid.UUID) ([]model.Message, error) {
	if !a.readChatHistory {
		return nil, nil
	}

	stored, err := a.sessions.RecentMessages(ctx, sessionID, a.maxHistory)
	if err != nil {
		return nil, fmt.Errorf("%w: loading history: %w", ErrExecutionFailed, err)
	}

	history := make([]model.Message, 0, len(stored))
	for _, m := range stored {
		role := model.RoleUser
		if m.Role == session.RoleAssistant {
			role = model.RoleAssistant
		}
		history = append(history, model.Message{Role: role, Content: m.Content})
	}
	return history, nil
}

// systemPrompt composes the system prompt from instructions, the Markdown
// directive and retrieved knowledge context.
func (a *Agent) systemPrompt(docs []knowledge.Document) string {
	var b strings.Builder

	for _, inst := range a.instructions {
		b.WriteString(inst)
		b.WriteString("\n")
	}
	if a.markdown {
		b.WriteString("Format your responses in Markdown.\n")
	}

	if a.addKnowledgeToContext && len(docs) > 0 {
		b.WriteString("\nKnowledge base context:\n")
		for _, d := range docs {
			b.WriteString("---\n")
			b.WriteString(d.Content)
			b.WriteString("\n")
		}
		b.WriteString("---\n")
		b.WriteString("Answer using the context above when it is relevant.\n")
	}

	return strings.TrimSpace(b.String())
}
