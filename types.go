// Package sonara implements the conversation core of a single-screen
// voice chat client: a bounded message history with durable persistence,
// a chat-completion client, and the session state machine around a single
// in-flight exchange. Presentation and text-to-speech layers attach as
// passive observers; the core only emits events and consumes submitted
// text.
package sonara

import (
	"github.com/google/uuid"
)

// Role identifies the author of a conversation message.
type Role string

// Conversation roles understood by the completion endpoint.
const (
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
)

// Message is a single conversation entry. Messages are owned by the
// HistoryStore; observers and callers only ever receive copies. Empty
// text is legal — an assistant reply may trim down to nothing and is
// kept as-is.
type Message struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// NewMessage creates a Message with a fresh unique identifier.
func NewMessage(role Role, text string) Message {
	return Message{
		ID:   uuid.New().String(),
		Role: role,
		Text: text,
	}
}

// cloneMessages returns a defensive copy of a message slice.
func cloneMessages(messages []Message) []Message {
	copied := make([]Message, len(messages))
	copy(copied, messages)
	return copied
}
