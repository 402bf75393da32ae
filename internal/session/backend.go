package session

import (
	"context"

	"github.com/lmarques/tutorchat/internal/models"
)

// Backend is the slice of the API client the session layer depends on.
// *api.Client satisfies it; tests substitute a mock.
type Backend interface {
	ListConversations(ctx context.Context) ([]models.ConversationSummary, error)
	StartChat(ctx context.Context) (models.ChatResult, error)
	SendMessage(ctx context.Context, chatID, text string) (models.ChatResult, error)
	Conversation(ctx context.Context, id string) ([]models.Message, error)
	DeleteConversation(ctx context.Context, id string) error
}
