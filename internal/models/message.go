// Package models defines the data types shared across the client.
package models

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single entry in a conversation transcript.
//
// IsStreaming marks a transient placeholder that is awaiting the backend
// reply. It only ever exists in memory and is never sent or received on
// the wire.
type Message struct {
	Role        Role   `json:"role"`
	Content     string `json:"content"`
	IsStreaming bool   `json:"-"`
}

// Placeholder returns the transient assistant entry shown while a reply
// is in flight.
func Placeholder() Message {
	return Message{Role: RoleAssistant, IsStreaming: true}
}

// VisibleMessages filters out system-role entries. System prompts may be
// present in canonical history but are never rendered.
func VisibleMessages(msgs []Message) []Message {
	visible := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			continue
		}
		visible = append(visible, m)
	}
	return visible
}
