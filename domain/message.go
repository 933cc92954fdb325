package domain

import "time"

// MessageRole distinguishes who authored a chat message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// MessageStatus tracks the lifecycle of a message in the local list.
type MessageStatus string

const (
	MessageStatusSent    MessageStatus = "sent"
	MessageStatusLoading MessageStatus = "loading"
	MessageStatusError   MessageStatus = "error"
)

// Message is one entry in the conversation list. Loading placeholders are
// transient: every send path replaces them with a real reply or an error reply.
type Message struct {
	ID        string        `json:"id"`
	Role      MessageRole   `json:"role"`
	Content   string        `json:"content"`
	Status    MessageStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

func (m Message) IsPlaceholder() bool {
	return m.Status == MessageStatusLoading
}
