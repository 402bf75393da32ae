package api

import (
	"context"

	"github.com/lmarques/tutorchat/internal/models"
)

// MockBackend is a hand-rolled fake of the backend client for tests.
type MockBackend struct {
	// Mock return values
	ConversationsVal []models.ConversationSummary
	ConversationsErr error
	StartChatVal     models.ChatResult
	StartChatErr     error
	SendMessageVal   models.ChatResult
	SendMessageErr   error
	ConversationVal  []models.Message
	ConversationErr  error
	DeleteErr        error

	// Call recorders
	SendMessageCalled bool
	LastChatID        string
	LastText          string
	DeletedIDs        []string
	LoadedIDs         []string
}

func (m *MockBackend) ListConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	return m.ConversationsVal, m.ConversationsErr
}

func (m *MockBackend) StartChat(ctx context.Context) (models.ChatResult, error) {
	return m.StartChatVal, m.StartChatErr
}

func (m *MockBackend) SendMessage(ctx context.Context, chatID, text string) (models.ChatResult, error) {
	m.SendMessageCalled = true
	m.LastChatID = chatID
	m.LastText = text
	return m.SendMessageVal, m.SendMessageErr
}

func (m *MockBackend) Conversation(ctx context.Context, id string) ([]models.Message, error) {
	m.LoadedIDs = append(m.LoadedIDs, id)
	return m.ConversationVal, m.ConversationErr
}

func (m *MockBackend) DeleteConversation(ctx context.Context, id string) error {
	if m.DeleteErr == nil {
		m.DeletedIDs = append(m.DeletedIDs, id)
	}
	return m.DeleteErr
}
