package core

import (
	"time"

	"github.com/google/uuid"
)

// AuthorDecision is the history author of the decision step's reply. The
// synthesized answer is authored by RoleSynthesizer.AgentName().
const AuthorDecision = "UserInterfaceAgent"

// Message roles stored in the history.
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// Message is a single immutable entry of the conversation history.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Author    string    `json:"author,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewUserMessage creates a message authored by the end user.
func NewUserMessage(content string) Message {
	return Message{ID: uuid.NewString(), Role: MessageRoleUser, Author: "user", Content: content, Timestamp: time.Now()}
}

// NewAgentMessage creates an assistant message attributed to author
// (e.g. "NewsAgent" or "FinalResponseAgent").
func NewAgentMessage(author, content string) Message {
	return Message{ID: uuid.NewString(), Role: MessageRoleAssistant, Author: author, Content: content, Timestamp: time.Now()}
}
