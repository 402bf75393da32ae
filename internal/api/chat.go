package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	apierrors "github.com/lmarques/tutorchat/internal/errors"
	"github.com/lmarques/tutorchat/internal/models"
)

// ListConversations fetches the sidebar entries for the current user,
// most recently updated first.
func (c *Client) ListConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	body, err := c.do(ctx, http.MethodGet, "/conversations", nil, "")
	if err != nil {
		return nil, err
	}

	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		return nil, apierrors.NewParseError("expected conversation array", "")
	}

	var summaries []models.ConversationSummary
	parsed.ForEach(func(_, v gjson.Result) bool {
		summaries = append(summaries, models.ConversationSummary{
			ChatID:           v.Get("chat_id").String(),
			Summary:          v.Get("summary").String(),
			CreatedAt:        parseTime(v.Get("created_at").String()),
			UpdatedAt:        parseTime(v.Get("updated_at").String()),
			IsAssignmentChat: v.Get("is_assignment_chat").Bool(),
		})
		return true
	})

	return summaries, nil
}

// StartChat creates a new conversation. The backend assigns the chat id and
// seeds the history with its greeting.
func (c *Client) StartChat(ctx context.Context) (models.ChatResult, error) {
	body, err := c.do(ctx, http.MethodPost, "/chat/start", strings.NewReader("{}"), "application/json")
	if err != nil {
		return models.ChatResult{}, err
	}

	result := decodeChatResult(body)
	if result.ChatID == "" {
		return models.ChatResult{}, apierrors.NewParseError("no chat_id in start response", "chat_id")
	}

	return result, nil
}

// SendMessage posts one user turn. chatID may be empty for an implicit new
// conversation; the backend assigns an id and returns it.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) (models.ChatResult, error) {
	if strings.TrimSpace(text) == "" {
		return models.ChatResult{}, apierrors.ErrEmptyMessage
	}

	payload := struct {
		Message string  `json:"message"`
		ChatID  *string `json:"chat_id"`
	}{Message: text}
	if chatID != "" {
		payload.ChatID = &chatID
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return models.ChatResult{}, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/chat", strings.NewReader(string(data)), "application/json")
	if err != nil {
		return models.ChatResult{}, err
	}

	result := decodeChatResult(body)
	if result.ChatID == "" && result.Reply == "" && result.History == nil {
		return models.ChatResult{}, apierrors.NewParseError("unrecognized chat response", "")
	}

	return result, nil
}

// Conversation fetches the canonical history for one conversation. The
// backend answers either with a bare message array or with a wrapper
// object carrying a messages field; both are accepted.
func (c *Client) Conversation(ctx context.Context, id string) ([]models.Message, error) {
	if id == "" {
		return nil, apierrors.ErrConversationNotFound
	}

	body, err := c.do(ctx, http.MethodGet, "/conversation/"+url.PathEscape(id), nil, "")
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, apierrors.ErrConversationNotFound
		}
		return nil, err
	}

	parsed := gjson.ParseBytes(body)
	list := parsed
	if !parsed.IsArray() {
		list = parsed.Get("messages")
		if !list.IsArray() {
			return nil, apierrors.NewParseError("expected message array", "messages")
		}
	}

	return decodeMessages(list), nil
}

// DeleteConversation soft-deletes a conversation on the backend.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	if id == "" {
		return apierrors.ErrConversationNotFound
	}

	_, err := c.do(ctx, http.MethodPut, "/conversation/"+url.PathEscape(id)+"/delete", nil, "")
	if apierrors.IsNotFound(err) {
		return apierrors.ErrConversationNotFound
	}
	return err
}

// decodeChatResult resolves the backend's two chat response shapes into the
// canonical ChatResult. A history array wins over a bare reply string; when
// both are present the reply is kept as a convenience copy.
func decodeChatResult(body []byte) models.ChatResult {
	parsed := gjson.ParseBytes(body)

	result := models.ChatResult{
		ChatID: parsed.Get("chat_id").String(),
		Reply:  parsed.Get("response").String(),
	}

	if history := parsed.Get("history"); history.IsArray() {
		result.History = decodeMessages(history)
	}

	return result
}

func decodeMessages(list gjson.Result) []models.Message {
	var msgs []models.Message
	list.ForEach(func(_, v gjson.Result) bool {
		role := models.Role(v.Get("role").String())
		switch role {
		case models.RoleUser, models.RoleAssistant, models.RoleSystem:
		default:
			return true // Skip unknown roles
		}
		msgs = append(msgs, models.Message{
			Role:    role,
			Content: v.Get("content").String(),
		})
		return true
	})
	return msgs
}

// detailField pulls the "detail" string FastAPI-style backends put in
// error bodies.
func detailField(body []byte) string {
	return gjson.GetBytes(body, "detail").String()
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
