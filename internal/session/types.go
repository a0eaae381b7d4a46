// Package session provides conversation history persistence.
//
// Sessions and their messages are stored in a local sqlite database. The
// agent replays stored messages to the model on each turn, which is what
// makes conversations stateful across requests.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role constants define valid message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Sentinel errors for session operations.
// Check with errors.Is().
var (
	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidRole indicates a message role outside user/assistant.
	ErrInvalidRole = errors.New("invalid message role")
)

// Session represents a conversation session.
type Session struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	ModelName    string    `json:"modelName"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
}

// Message represents a single conversation message.
type Message struct {
	ID             uuid.UUID `json:"id"`
	SessionID      uuid.UUID `json:"sessionId"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	SequenceNumber int       `json:"sequenceNumber"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NewUserMessage builds an unsaved user message for a session.
func NewUserMessage(sessionID uuid.UUID, content string) *Message {
	return &Message{ID: uuid.New(), SessionID: sessionID, Role: RoleUser, Content: content}
}

// NewAssistantMessage builds an unsaved assistant message for a session.
func NewAssistantMessage(sessionID uuid.UUID, content string) *Message {
	return &Message{ID: uuid.New(), SessionID: sessionID, Role: RoleAssistant, Content: content}
}
