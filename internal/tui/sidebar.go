package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lmarques/tutorchat/internal/history"
	"github.com/lmarques/tutorchat/internal/session"
)

// sidebarState is the conversation overlay. It lists the cached sidebar
// entries and owns the delete confirmation step.
type sidebarState struct {
	open       bool
	cursor     int
	confirming bool // a delete is awaiting y/n
}

func (s *sidebarState) clampCursor(n int) {
	if s.cursor >= n {
		s.cursor = n - 1
	}
	if s.cursor < 0 {
		s.cursor = 0
	}
}

func (s *sidebarState) close() {
	s.open = false
	s.confirming = false
}

// updateSidebar handles events while the conversation overlay is open.
func (m Model) updateSidebar(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case conversationsMsg:
		if msg.err != nil {
			m.sidebar.close()
			return m, m.pushFailure(msg.err)
		}
		m.ctrl.SetConversations(msg.list)
		m.sidebar.clampCursor(len(msg.list))
		return m, nil

	case sendResultMsg:
		// A reply can land while the overlay is open; resolve it so the
		// placeholder is reconciled and the loading guard drops.
		return m.handleSendResult(msg)

	case typeTickMsg:
		if !m.ctrl.PlaybackActive() {
			return m, nil
		}
		done := m.ctrl.TickPlayback()
		m.updateViewport()
		m.viewport.GotoBottom()
		if !done {
			return m, m.typeTick()
		}
		return m, m.copyReplyIfEnabled()

	case spinner.TickMsg:
		if m.ctrl.Loading() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case loadResultMsg:
		outcome, err := m.ctrl.ResolveLoad(msg.ticket, msg.msgs, msg.err)
		switch outcome {
		case session.OutcomeFailed:
			return m, m.pushFailure(err)
		case session.OutcomeDone:
			m.sidebar.close()
			m.updateViewport()
			m.viewport.GotoBottom()
		}
		return m, nil

	case deleteResultMsg:
		m.sidebar.confirming = false
		if msg.err != nil {
			return m, m.pushFailure(msg.err)
		}
		m.ctrl.ApplyDeleted(msg.id)
		m.sidebar.clampCursor(len(m.ctrl.Conversations()))
		m.updateViewport()
		return m, m.pushNotice("Conversation deleted", false)

	case startResultMsg:
		outcome, err := m.ctrl.ResolveStartChat(msg.ticket, msg.result, msg.err)
		switch outcome {
		case session.OutcomeFailed:
			return m, m.pushFailure(err)
		case session.OutcomeDone:
			m.sidebar.close()
			m.updateViewport()
			m.viewport.GotoBottom()
		}
		return m, nil

	case noticeGoneMsg:
		m.dropNotice(msg.id)
		return m, nil

	case tea.KeyMsg:
		if m.sidebar.confirming {
			return m.updateDeleteConfirm(msg)
		}

		convs := m.ctrl.Conversations()
		switch msg.String() {
		case "ctrl+c":
			m.ctrl.Shutdown()
			return m, tea.Quit

		case "esc", "tab", "ctrl+o":
			m.sidebar.close()

		case "up", "k":
			if len(convs) > 0 {
				m.sidebar.cursor--
				if m.sidebar.cursor < 0 {
					m.sidebar.cursor = len(convs) - 1
				}
			}

		case "down", "j":
			if len(convs) > 0 {
				m.sidebar.cursor++
				if m.sidebar.cursor >= len(convs) {
					m.sidebar.cursor = 0
				}
			}

		case "enter":
			if m.sidebar.cursor < len(convs) {
				ticket, err := m.ctrl.BeginLoad(convs[m.sidebar.cursor].ChatID)
				if err != nil {
					return m, m.pushFailure(err)
				}
				return m, m.loadConversation(ticket)
			}

		case "n":
			ticket, err := m.ctrl.BeginStartChat()
			if err != nil {
				return m, m.pushFailure(err)
			}
			return m, m.startChat(ticket)

		case "d", "x":
			if m.sidebar.cursor < len(convs) {
				m.sidebar.confirming = true
			}

		case "r":
			return m, m.loadConversations()
		}
	}

	return m, nil
}

// updateDeleteConfirm handles the y/n prompt for a pending delete.
func (m Model) updateDeleteConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	convs := m.ctrl.Conversations()

	switch msg.String() {
	case "y", "Y":
		if m.sidebar.cursor < len(convs) {
			id := convs[m.sidebar.cursor].ChatID
			return m, m.deleteConversation(id)
		}
		m.sidebar.confirming = false

	case "n", "N", "esc":
		m.sidebar.confirming = false

	case "ctrl+c":
		m.ctrl.Shutdown()
		return m, tea.Quit
	}

	return m, nil
}

// renderSidebar renders the conversation overlay.
func (m Model) renderSidebar() string {
	width := m.width - 8
	if width < 40 {
		width = 40
	}

	var content strings.Builder

	content.WriteString(sidebarTitleStyle.Render("Conversations"))
	content.WriteString("\n\n")

	convs := m.ctrl.Conversations()
	if len(convs) == 0 {
		content.WriteString(hintStyle.Render("  No conversations yet. Press n to start one."))
		content.WriteString("\n")
	} else {
		maxItems := 10
		startIdx := 0
		if m.sidebar.cursor >= maxItems {
			startIdx = m.sidebar.cursor - maxItems + 1
		}
		endIdx := startIdx + maxItems
		if endIdx > len(convs) {
			endIdx = len(convs)
		}

		if startIdx > 0 {
			content.WriteString(hintStyle.Render("  ↑ more above"))
			content.WriteString("\n")
		}

		activeID := m.ctrl.ActiveChatID()
		for i := startIdx; i < endIdx; i++ {
			conv := convs[i]
			cursor := "  "
			nameStyle := sidebarItemStyle
			if i == m.sidebar.cursor {
				cursor = sidebarCursorStyle.Render("▸ ")
				nameStyle = sidebarSelectedStyle
			}

			name := nameStyle.Render(truncate(conv.Summary, width-30))
			line := cursor + name

			if conv.ChatID == activeID {
				line += sidebarActiveStyle.Render("  [open]")
			}
			if conv.IsAssignmentChat {
				line += sidebarMetaStyle.Render("  [assignment]")
			}
			if !conv.UpdatedAt.IsZero() {
				line += sidebarMetaStyle.Render("  " + history.FormatRelativeTime(conv.UpdatedAt))
			}

			content.WriteString(line)
			content.WriteString("\n")
		}

		if endIdx < len(convs) {
			content.WriteString(hintStyle.Render("  ↓ more below"))
			content.WriteString("\n")
		}
	}

	content.WriteString("\n")

	if m.sidebar.confirming && m.sidebar.cursor < len(convs) {
		name := truncate(convs[m.sidebar.cursor].Summary, 30)
		content.WriteString(confirmStyle.Render(fmt.Sprintf("Delete %q? (y/n)", name)))
		content.WriteString("\n\n")
	}

	shortcuts := []string{
		statusKeyStyle.Render("↑↓") + statusDescStyle.Render(" Navigate"),
		statusKeyStyle.Render("Enter") + statusDescStyle.Render(" Open"),
		statusKeyStyle.Render("n") + statusDescStyle.Render(" New"),
		statusKeyStyle.Render("d") + statusDescStyle.Render(" Delete"),
		statusKeyStyle.Render("Esc") + statusDescStyle.Render(" Back"),
	}
	content.WriteString(strings.Join(shortcuts, "  │  "))

	for _, n := range m.notices {
		style := noticeStyle
		if n.isErr {
			style = errorStyle
		}
		content.WriteString("\n" + style.Render(n.text))
	}

	box := sidebarPanelStyle.Width(width).Render(content.String())

	if m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}
	return box
}
