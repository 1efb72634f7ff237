package ai

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role string
	Text string
	At   time.Time
}

// Conversation is the transcript for one user context. It is passed
// explicitly by reference into the engine's entry points so state is isolated
// between users rather than living in a process wide store.
type Conversation struct {
	ID       uuid.UUID
	Messages []Message
}

func NewConversation() *Conversation {
	return &Conversation{ID: uuid.New()}
}

func (c *Conversation) Append(role string, text string) {
	c.Messages = append(c.Messages, Message{Role: role, Text: text, At: time.Now()})
}
