package sonara

import "encoding/json"

// ChatMessage is one role/content pair in the outbound wire payload.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the wire payload for the chat-completion endpoint:
// a fixed model identifier plus the full retained window in
// chronological order. There is no system role and no summarization.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

// BuildChatRequest maps the retained history onto the wire payload,
// preserving chronological order. Pure function with no failure modes:
// the history store invariant makes malformed input impossible.
func BuildChatRequest(model string, history []Message) ChatRequest {
	messages := make([]ChatMessage, 0, len(history))
	for _, msg := range history {
		messages = append(messages, ChatMessage{
			Role:    string(msg.Role),
			Content: msg.Text,
		})
	}

	return ChatRequest{
		Model:    model,
		Messages: messages,
	}
}

// Marshal converts the request to JSON bytes.
func (r ChatRequest) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
