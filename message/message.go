package message

// Role represents the role of the message sender
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether the role is one of the accepted conversation roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message represents a single message in a conversation
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// New creates a new message with the given role and content
func New(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// System is shorthand for a system message.
func System(content string) Message { return New(RoleSystem, content) }

// User is shorthand for a user message.
func User(content string) Message { return New(RoleUser, content) }

// Assistant is shorthand for an assistant message.
func Assistant(content string) Message { return New(RoleAssistant, content) }

// Tail returns the last n messages of the conversation.
func Tail(msgs []Message, n int) []Message {
	if n <= 0 || len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
