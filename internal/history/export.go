package history

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lmarques/tutorchat/internal/models"
)

// ExportFormat represents the format for exporting archived conversations
type ExportFormat string

const (
	ExportFormatMarkdown ExportFormat = "markdown"
	ExportFormatJSON     ExportFormat = "json"
)

// ExportOptions configures how conversations are exported
type ExportOptions struct {
	Format        ExportFormat
	IncludeSystem bool // Include system-role messages
}

// DefaultExportOptions returns sensible defaults for export
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Format:        ExportFormatMarkdown,
		IncludeSystem: false,
	}
}

// ExportToMarkdown exports an archived conversation to Markdown format
func (s *Store) ExportToMarkdown(chatID string) (string, error) {
	return s.ExportToMarkdownWithOptions(chatID, DefaultExportOptions())
}

// ExportToMarkdownWithOptions exports to Markdown with options
func (s *Store) ExportToMarkdownWithOptions(chatID string, opts ExportOptions) (string, error) {
	arc, err := s.Get(chatID)
	if err != nil {
		return "", err
	}

	msgs := arc.Messages
	if !opts.IncludeSystem {
		msgs = models.VisibleMessages(msgs)
	}

	var sb strings.Builder

	sb.WriteString("# ")
	sb.WriteString(arc.Summary)
	sb.WriteString("\n\n")

	sb.WriteString("**Chat ID:** ")
	sb.WriteString(arc.ChatID)
	sb.WriteString("\n")
	if !arc.UpdatedAt.IsZero() {
		sb.WriteString("**Updated:** ")
		sb.WriteString(arc.UpdatedAt.Format("2006-01-02 15:04:05"))
		sb.WriteString("\n")
	}
	sb.WriteString("**Synced:** ")
	sb.WriteString(arc.SyncedAt.Format("2006-01-02 15:04:05"))
	sb.WriteString("\n")
	sb.WriteString("**Messages:** ")
	sb.WriteString(fmt.Sprintf("%d", len(msgs)))
	sb.WriteString("\n\n---\n\n")

	for i, msg := range msgs {
		role := "User"
		switch msg.Role {
		case models.RoleAssistant:
			role = "Assistant"
		case models.RoleSystem:
			role = "System"
		}

		sb.WriteString("## ")
		sb.WriteString(role)
		sb.WriteString("\n\n")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")

		if i < len(msgs)-1 {
			sb.WriteString("\n---\n\n")
		}
	}

	return sb.String(), nil
}

// ExportToJSON exports an archived conversation to JSON format
func (s *Store) ExportToJSON(chatID string) ([]byte, error) {
	return s.ExportToJSONWithOptions(chatID, DefaultExportOptions())
}

// ExportToJSONWithOptions exports to JSON with options
func (s *Store) ExportToJSONWithOptions(chatID string, opts ExportOptions) ([]byte, error) {
	arc, err := s.Get(chatID)
	if err != nil {
		return nil, err
	}

	msgs := arc.Messages
	if !opts.IncludeSystem {
		msgs = models.VisibleMessages(msgs)
	}

	export := struct {
		ChatID   string           `json:"chat_id"`
		Summary  string           `json:"summary"`
		SyncedAt time.Time        `json:"synced_at"`
		Messages []models.Message `json:"messages"`
	}{
		ChatID:   arc.ChatID,
		Summary:  arc.Summary,
		SyncedAt: arc.SyncedAt,
		Messages: msgs,
	}

	return json.MarshalIndent(export, "", "  ")
}

// SearchResult represents a search match in archived conversations
type SearchResult struct {
	Archive      *Archive
	MatchSnippet string // Snippet where the term was found
	MatchField   string // "summary" or "content"
	MatchIndex   int    // Message index if MatchField is "content", -1 for summary
}

// Search looks for a query in conversation summaries and optionally content.
func (s *Store) Search(query string, searchContent bool) ([]*SearchResult, error) {
	archives, err := s.List()
	if err != nil {
		return nil, err
	}

	queryLower := strings.ToLower(query)
	var results []*SearchResult

	for _, arc := range archives {
		if strings.Contains(strings.ToLower(arc.Summary), queryLower) {
			results = append(results, &SearchResult{
				Archive:      arc,
				MatchSnippet: arc.Summary,
				MatchField:   "summary",
				MatchIndex:   -1,
			})
			continue // Don't search content if the summary matched
		}

		if searchContent {
			for i, msg := range arc.Messages {
				if msg.Role == models.RoleSystem {
					continue
				}
				if strings.Contains(strings.ToLower(msg.Content), queryLower) {
					results = append(results, &SearchResult{
						Archive:      arc,
						MatchSnippet: extractSnippet(msg.Content, query, 100),
						MatchField:   "content",
						MatchIndex:   i,
					})
					break // Only one match per conversation
				}
			}
		}
	}

	return results, nil
}

// extractSnippet extracts a snippet around the first occurrence of query
func extractSnippet(content, query string, maxLen int) string {
	contentLower := strings.ToLower(content)
	queryLower := strings.ToLower(query)

	idx := strings.Index(contentLower, queryLower)
	if idx == -1 {
		if len(content) > maxLen {
			return content[:maxLen] + "..."
		}
		return content
	}

	half := maxLen / 2
	start := idx - half
	end := idx + len(query) + half

	if start < 0 {
		start = 0
		end = maxLen
	}
	if end > len(content) {
		end = len(content)
		start = end - maxLen
		if start < 0 {
			start = 0
		}
	}

	snippet := content[start:end]

	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet = snippet + "..."
	}

	return snippet
}

// FormatRelativeTime formats a time as a short relative string.
func FormatRelativeTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 48*time.Hour:
		return "yesterday"
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	case diff < 30*24*time.Hour:
		return fmt.Sprintf("%dw ago", int(diff.Hours()/24/7))
	default:
		return t.Format("2006-01-02")
	}
}
