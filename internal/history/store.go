// Package history keeps a local mirror of backend conversations so
// transcripts stay readable and exportable without a network connection.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	apierrors "github.com/lmarques/tutorchat/internal/errors"
	"github.com/lmarques/tutorchat/internal/models"
)

// Archive is one locally mirrored conversation. The backend remains the
// source of truth; SyncedAt records when this copy was taken.
type Archive struct {
	ChatID    string           `json:"chat_id"`
	Summary   string           `json:"summary"`
	CreatedAt time.Time        `json:"created_at,omitempty"`
	UpdatedAt time.Time        `json:"updated_at,omitempty"`
	SyncedAt  time.Time        `json:"synced_at"`
	Messages  []models.Message `json:"messages"`
}

// Store manages archived conversations on disk, one JSON file per chat id.
type Store struct {
	baseDir string
	mu      sync.RWMutex
}

// NewStore creates a store rooted at baseDir/history.
func NewStore(baseDir string) (*Store, error) {
	historyDir := filepath.Join(baseDir, "history")
	if err := os.MkdirAll(historyDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	return &Store{baseDir: historyDir}, nil
}

// DefaultStore creates a store under ~/.tutorchat.
func DefaultStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return NewStore(filepath.Join(home, ".tutorchat"))
}

// Save writes or replaces the archive for one conversation. System
// messages are kept; filtering is a display concern.
func (s *Store) Save(summary models.ConversationSummary, msgs []models.Message) (*Archive, error) {
	if summary.ChatID == "" {
		return nil, fmt.Errorf("chat id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	arc := &Archive{
		ChatID:    summary.ChatID,
		Summary:   summary.Summary,
		CreatedAt: summary.CreatedAt,
		UpdatedAt: summary.UpdatedAt,
		SyncedAt:  time.Now(),
		Messages:  msgs,
	}

	if err := s.write(arc); err != nil {
		return nil, err
	}

	return arc, nil
}

// Get retrieves an archived conversation by chat id.
func (s *Store) Get(chatID string) (*Archive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.read(chatID)
}

// List returns all archived conversations, most recently updated first.
func (s *Store) List() ([]*Archive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	var archives []*Archive
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		id := entry.Name()[:len(entry.Name())-5] // Remove .json
		arc, err := s.read(id)
		if err != nil {
			continue // Skip corrupted files
		}
		archives = append(archives, arc)
	}

	sort.Slice(archives, func(i, j int) bool {
		ti, tj := archives[i].UpdatedAt, archives[j].UpdatedAt
		if ti.IsZero() {
			ti = archives[i].SyncedAt
		}
		if tj.IsZero() {
			tj = archives[j].SyncedAt
		}
		return ti.After(tj)
	})

	return archives, nil
}

// Delete removes an archived conversation.
func (s *Store) Delete(chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.archivePath(chatID)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return apierrors.ErrConversationNotFound
		}
		return fmt.Errorf("failed to delete archive: %w", err)
	}

	return nil
}

// ClearAll deletes every archived conversation.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to read history directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if err := os.Remove(filepath.Join(s.baseDir, entry.Name())); err != nil {
			return fmt.Errorf("failed to delete %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// Internal methods

func (s *Store) archivePath(chatID string) string {
	return filepath.Join(s.baseDir, chatID+".json")
}

func (s *Store) read(chatID string) (*Archive, error) {
	data, err := os.ReadFile(s.archivePath(chatID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apierrors.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	var arc Archive
	if err := json.Unmarshal(data, &arc); err != nil {
		return nil, fmt.Errorf("failed to parse archive: %w", err)
	}

	return &arc, nil
}

func (s *Store) write(arc *Archive) error {
	data, err := json.MarshalIndent(arc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal archive: %w", err)
	}

	if err := os.WriteFile(s.archivePath(arc.ChatID), data, 0o600); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}

	return nil
}
