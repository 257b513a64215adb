// Package llm defines the chat types exchanged with the upstream model
// provider and the streamed chunk sequence decoded from its responses.
package llm

// Message roles. A conversation is an ordered message sequence; when a
// system message is present it must come first.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single message in a conversation. Immutable once built.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a message with the given role and content.
func NewMessage(role, content string) Message {
	return Message{Role: role, Content: content}
}
