package models

import "time"

// ConversationSummary is a sidebar entry for one conversation.
type ConversationSummary struct {
	ChatID           string    `json:"chat_id"`
	Summary          string    `json:"summary"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
	UpdatedAt        time.Time `json:"updated_at,omitempty"`
	IsAssignmentChat bool      `json:"is_assignment_chat,omitempty"`
}

// ChatResult is the canonical outcome of a chat call. The backend answers
// in one of two shapes (a bare reply string or a full history array); the
// API client resolves both into this struct so callers only ever see one.
type ChatResult struct {
	ChatID  string
	Reply   string
	History []Message
}

// LastExchange returns the trailing user+assistant pair from the canonical
// history, or a synthesized pair when the backend only sent a reply string.
// The second return is false when the result carries no usable exchange.
func (r ChatResult) LastExchange(sentText string) ([]Message, bool) {
	if len(r.History) >= 2 {
		pair := r.History[len(r.History)-2:]
		if pair[0].Role == RoleUser && pair[1].Role == RoleAssistant {
			return []Message{pair[0], pair[1]}, true
		}
	}
	if r.Reply != "" {
		return []Message{
			{Role: RoleUser, Content: sentText},
			{Role: RoleAssistant, Content: r.Reply},
		}, true
	}
	return nil, false
}

// AssistantReply returns the assistant text of this result, preferring the
// canonical history over the bare reply field.
func (r ChatResult) AssistantReply() string {
	for i := len(r.History) - 1; i >= 0; i-- {
		if r.History[i].Role == RoleAssistant {
			return r.History[i].Content
		}
	}
	return r.Reply
}
