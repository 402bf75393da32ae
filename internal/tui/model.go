package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lmarques/tutorchat/internal/config"
	apierrors "github.com/lmarques/tutorchat/internal/errors"
	"github.com/lmarques/tutorchat/internal/models"
	"github.com/lmarques/tutorchat/internal/render"
	"github.com/lmarques/tutorchat/internal/session"
)

// noticeDuration is how long a transient notice stays on screen.
const noticeDuration = 4 * time.Second

// Animation tick message
type animationTickMsg time.Time

// Message types for the TUI. Each backend result carries the ticket it was
// begun with so the controller can detect stale arrivals.
type (
	sendResultMsg struct {
		ticket session.SendTicket
		result models.ChatResult
		err    error
	}
	startResultMsg struct {
		ticket session.StartTicket
		result models.ChatResult
		err    error
	}
	loadResultMsg struct {
		ticket session.LoadTicket
		msgs   []models.Message
		err    error
	}
	deleteResultMsg struct {
		id  string
		err error
	}
	conversationsMsg struct {
		list []models.ConversationSummary
		err  error
	}
	typeTickMsg   time.Time
	noticeGoneMsg struct {
		id int
	}
)

// notice is a transient status line shown under the input panel.
type notice struct {
	id    int
	text  string
	isErr bool
}

// Model represents the chat TUI state. All session mutations go through the
// controller; the model only translates bubbletea events into controller
// operations and renders the result.
type Model struct {
	ctrl    *session.Controller
	backend session.Backend
	cfg     config.Config

	// UI components
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	ready          bool
	width          int
	height         int
	animationFrame int

	sidebar sidebarState

	notices  []notice
	noticeID int
}

// NewModel creates the chat TUI model.
func NewModel(ctrl *session.Controller, backend session.Backend, cfg config.Config) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask your tutor anything..."
	ta.CharLimit = 4000
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.Focus()

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(colorText)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(colorTextDim)
	ta.BlurredStyle = ta.FocusedStyle

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = loadingStyle

	return Model{
		ctrl:     ctrl,
		backend:  backend,
		cfg:      cfg,
		textarea: ta,
		spinner:  s,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.loadConversations(),
	)
}

func animationTick() tea.Cmd {
	return tea.Tick(time.Millisecond*80, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

func (m Model) typeTick() tea.Cmd {
	interval := time.Duration(m.cfg.TypewriterIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 8 * time.Millisecond
	}
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return typeTickMsg(t)
	})
}

func (m Model) requestTimeout() time.Duration {
	secs := m.cfg.RequestTimeoutSecs
	if secs <= 0 {
		secs = 30
	}
	return time.Duration(secs) * time.Second
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	if m.sidebar.open {
		return m.updateSidebar(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.ctrl.Shutdown()
			return m, tea.Quit

		case "esc":
			if m.ctrl.PlaybackActive() {
				// Skip the reveal and show the full reply at once.
				m.ctrl.FinishPlayback()
				m.updateViewport()
				m.viewport.GotoBottom()
				return m, m.copyReplyIfEnabled()
			}
			m.ctrl.Shutdown()
			return m, tea.Quit

		case "ctrl+n":
			return m.startNewChat()

		case "ctrl+o", "tab":
			m.sidebar.open = true
			m.sidebar.confirming = false
			m.sidebar.clampCursor(len(m.ctrl.Conversations()))
			return m, m.loadConversations()

		case "ctrl+y":
			if reply := lastAssistantReply(m.ctrl.Messages()); reply != "" {
				if err := clipboard.WriteAll(reply); err == nil {
					return m, m.pushNotice("Copied reply to clipboard", false)
				}
			}

		case "enter":
			return m.submitInput()
		}

	case sendResultMsg:
		return m.handleSendResult(msg)

	case startResultMsg:
		outcome, err := m.ctrl.ResolveStartChat(msg.ticket, msg.result, msg.err)
		if outcome == session.OutcomeFailed {
			return m, m.pushFailure(err)
		}
		if outcome == session.OutcomeDone {
			m.updateViewport()
			m.viewport.GotoBottom()
		}

	case loadResultMsg:
		outcome, err := m.ctrl.ResolveLoad(msg.ticket, msg.msgs, msg.err)
		if outcome == session.OutcomeFailed {
			return m, m.pushFailure(err)
		}
		if outcome == session.OutcomeDone {
			m.updateViewport()
			m.viewport.GotoBottom()
		}

	case deleteResultMsg:
		if msg.err != nil {
			return m, m.pushFailure(msg.err)
		}
		m.ctrl.ApplyDeleted(msg.id)
		m.updateViewport()
		return m, m.pushNotice("Conversation deleted", false)

	case conversationsMsg:
		if msg.err != nil {
			return m, m.pushFailure(msg.err)
		}
		m.ctrl.SetConversations(msg.list)
		m.sidebar.clampCursor(len(msg.list))

	case typeTickMsg:
		if !m.ctrl.PlaybackActive() {
			break
		}
		done := m.ctrl.TickPlayback()
		m.updateViewport()
		m.viewport.GotoBottom()
		if !done {
			cmds = append(cmds, m.typeTick())
		} else {
			cmds = append(cmds, m.copyReplyIfEnabled())
		}

	case noticeGoneMsg:
		m.dropNotice(msg.id)

	case spinner.TickMsg:
		if m.ctrl.Loading() {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case animationTickMsg:
		if m.ctrl.Loading() {
			m.animationFrame++
			cmds = append(cmds, animationTick())
		}
	}

	// Only pass KeyMsg to the textarea to prevent escape sequence leaks.
	if !m.ctrl.Loading() {
		if _, ok := msg.(tea.KeyMsg); ok {
			m.textarea, cmd = m.textarea.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	headerHeight := 4
	inputHeight := 6
	statusHeight := 1
	padding := 2

	vpHeight := height - headerHeight - inputHeight - statusHeight - padding
	if vpHeight < 5 {
		vpHeight = 5
	}

	contentWidth := width - 4

	if !m.ready {
		m.viewport = viewport.New(contentWidth, vpHeight)
		m.textarea.SetWidth(contentWidth - 4)
		m.ready = true
	} else {
		m.viewport.Width = contentWidth
		m.viewport.Height = vpHeight
		m.textarea.SetWidth(contentWidth - 4)
	}
	m.updateViewport()
}

// submitInput stages the typed message and fires the send.
func (m Model) submitInput() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textarea.Value())
	if input == "" {
		return m, nil
	}
	if input == "exit" || input == "quit" || input == "/exit" || input == "/quit" {
		m.ctrl.Shutdown()
		return m, tea.Quit
	}

	ticket, err := m.ctrl.BeginSend(input)
	if err != nil {
		switch {
		case err == session.ErrBusy:
			return m, m.pushNotice("Still waiting for the previous reply", true)
		case apierrors.IsAuthError(err):
			return m, m.pushNotice("Not logged in. Run 'tutorchat login' first", true)
		default:
			return m, nil
		}
	}

	m.textarea.Reset()
	m.animationFrame = 0
	m.updateViewport()
	m.viewport.GotoBottom()

	return m, tea.Batch(
		m.sendMessage(ticket),
		m.spinner.Tick,
		animationTick(),
	)
}

func (m Model) handleSendResult(msg sendResultMsg) (tea.Model, tea.Cmd) {
	outcome, err := m.ctrl.ResolveSend(msg.ticket, msg.result, msg.err)

	switch outcome {
	case session.OutcomeStale:
		return m, nil

	case session.OutcomeFailed:
		// Put the text back so the user can retry without retyping.
		m.textarea.SetValue(msg.ticket.Text)
		m.updateViewport()
		return m, m.pushFailure(err)

	case session.OutcomePlayback:
		m.updateViewport()
		m.viewport.GotoBottom()
		return m, m.typeTick()

	default:
		m.updateViewport()
		m.viewport.GotoBottom()
		return m, m.copyReplyIfEnabled()
	}
}

func (m Model) startNewChat() (tea.Model, tea.Cmd) {
	ticket, err := m.ctrl.BeginStartChat()
	if err != nil {
		if apierrors.IsAuthError(err) {
			return m, m.pushNotice("Not logged in. Run 'tutorchat login' first", true)
		}
		return m, nil
	}
	return m, m.startChat(ticket)
}

// Backend commands. Each runs outside the event loop and reports back with
// the ticket attached.

func (m Model) sendMessage(t session.SendTicket) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.requestTimeout())
		defer cancel()

		result, err := m.backend.SendMessage(ctx, t.ChatID, t.Text)
		return sendResultMsg{ticket: t, result: result, err: err}
	}
}

func (m Model) startChat(t session.StartTicket) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.requestTimeout())
		defer cancel()

		result, err := m.backend.StartChat(ctx)
		return startResultMsg{ticket: t, result: result, err: err}
	}
}

func (m Model) loadConversation(t session.LoadTicket) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.requestTimeout())
		defer cancel()

		msgs, err := m.backend.Conversation(ctx, t.ID)
		return loadResultMsg{ticket: t, msgs: msgs, err: err}
	}
}

func (m Model) deleteConversation(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.requestTimeout())
		defer cancel()

		err := m.backend.DeleteConversation(ctx, id)
		return deleteResultMsg{id: id, err: err}
	}
}

func (m Model) loadConversations() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.requestTimeout())
		defer cancel()

		list, err := m.backend.ListConversations(ctx)
		return conversationsMsg{list: list, err: err}
	}
}

// Notices

func (m *Model) pushNotice(text string, isErr bool) tea.Cmd {
	m.noticeID++
	id := m.noticeID
	m.notices = append(m.notices, notice{id: id, text: text, isErr: isErr})
	return tea.Tick(noticeDuration, func(time.Time) tea.Msg {
		return noticeGoneMsg{id: id}
	})
}

// pushFailure maps an operation error onto user-facing copy. Auth expiry
// gets its own wording so the user knows to log in again rather than retry.
func (m *Model) pushFailure(err error) tea.Cmd {
	if err == nil {
		return nil
	}
	switch {
	case apierrors.IsAuthError(err):
		return m.pushNotice("Session expired. Run 'tutorchat login' to sign in again", true)
	case apierrors.IsTimeout(err):
		return m.pushNotice("Request timed out. Try again", true)
	case apierrors.IsNotFound(err):
		return m.pushNotice("That conversation no longer exists", true)
	default:
		return m.pushNotice(fmt.Sprintf("Request failed: %v", err), true)
	}
}

func (m *Model) dropNotice(id int) {
	kept := m.notices[:0]
	for _, n := range m.notices {
		if n.id != id {
			kept = append(kept, n)
		}
	}
	m.notices = kept
}

func (m Model) copyReplyIfEnabled() tea.Cmd {
	if !m.cfg.CopyToClipboard {
		return nil
	}
	reply := lastAssistantReply(m.ctrl.Messages())
	if reply == "" {
		return nil
	}
	// Best effort; a headless terminal has no clipboard.
	_ = clipboard.WriteAll(reply)
	return nil
}

func lastAssistantReply(msgs []models.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleAssistant && !msgs[i].IsStreaming {
			return msgs[i].Content
		}
	}
	return ""
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}

	if m.sidebar.open {
		return m.renderSidebar()
	}

	var sections []string
	contentWidth := m.width - 4

	headerParts := []string{
		titleStyle.Render("✦ ALAASKA Tutor"),
		hintStyle.Render("  •  "),
		subtitleStyle.Render(m.headerSubtitle()),
	}
	headerContent := lipgloss.JoinHorizontal(lipgloss.Center, headerParts...)
	sections = append(sections, headerStyle.Width(contentWidth).Render(headerContent))

	var messagesContent string
	if len(m.ctrl.Messages()) == 0 && !m.ctrl.PlaybackActive() {
		messagesContent = m.renderWelcome()
	} else {
		messagesContent = m.viewport.View()
	}
	sections = append(sections, messagesAreaStyle.
		Width(contentWidth).
		Height(m.viewport.Height).
		Render(messagesContent))

	var inputContent string
	if m.ctrl.Loading() {
		inputContent = m.renderLoadingAnimation()
	} else {
		inputContent = lipgloss.JoinVertical(
			lipgloss.Left,
			inputLabelStyle.Render("You"),
			m.textarea.View(),
		)
	}
	sections = append(sections, inputPanelStyle.Width(contentWidth).Render(inputContent))

	sections = append(sections, m.renderStatusBar(contentWidth))

	for _, n := range m.notices {
		style := noticeStyle
		if n.isErr {
			style = errorStyle
		}
		sections = append(sections, style.Render("  "+n.text))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) headerSubtitle() string {
	active := m.ctrl.ActiveChatID()
	if active == "" {
		return "new chat"
	}
	for _, conv := range m.ctrl.Conversations() {
		if conv.ChatID == active {
			return truncate(conv.Summary, 40)
		}
	}
	return truncate(active, 40)
}

// renderWelcome renders the empty-transcript screen.
func (m Model) renderWelcome() string {
	width := m.viewport.Width - 4
	height := m.viewport.Height

	icon := welcomeIconStyle.Width(width).Render("✦")
	title := welcomeTitleStyle.Width(width).Render(session.DefaultGreeting)
	subtitle := hintStyle.Width(width).Align(lipgloss.Center).
		Render("Type a message below to start, or press Tab to browse conversations")

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		"",
		icon,
		"",
		title,
		"",
		subtitle,
		"",
	)

	contentHeight := lipgloss.Height(content)
	topPadding := (height - contentHeight) / 2
	if topPadding < 0 {
		topPadding = 0
	}

	return strings.Repeat("\n", topPadding) + content
}

// renderLoadingAnimation renders the animated thinking indicator.
func (m Model) renderLoadingAnimation() string {
	chars := []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

	frame := m.animationFrame
	spinIdx := frame % len(chars)
	spinColor := gradientColors[frame%len(gradientColors)]
	spin := lipgloss.NewStyle().Foreground(spinColor).Bold(true).Render(chars[spinIdx])

	barWidth := 20
	var bar strings.Builder
	for i := 0; i < barWidth; i++ {
		colorIdx := (i + frame) % len(gradientColors)
		style := lipgloss.NewStyle().Foreground(gradientColors[colorIdx])
		bar.WriteString(style.Render("█"))
	}

	text := lipgloss.NewStyle().Foreground(colorText).Render(" Tutor is thinking ")

	return fmt.Sprintf("%s %s%s", spin, bar.String(), text)
}

// renderStatusBar renders the bottom status bar with shortcuts
func (m Model) renderStatusBar(width int) string {
	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Enter", "Send"},
		{"Ctrl+N", "New chat"},
		{"Tab", "Conversations"},
		{"Esc", "Quit"},
	}

	var items []string
	for _, s := range shortcuts {
		item := lipgloss.JoinHorizontal(
			lipgloss.Center,
			statusKeyStyle.Render(s.key),
			statusDescStyle.Render(" "+s.desc),
		)
		items = append(items, item)
	}

	bar := lipgloss.JoinHorizontal(lipgloss.Center, strings.Join(items, "  │  "))
	return statusBarStyle.Width(width).Align(lipgloss.Center).Render(bar)
}

// updateViewport refreshes the viewport with the transcript. The reply under
// typewriter playback is rendered after the permanent list; it joins the
// transcript only when playback commits.
func (m *Model) updateViewport() {
	var content strings.Builder
	bubbleWidth := m.viewport.Width - 6
	if bubbleWidth < 20 {
		bubbleWidth = 20
	}

	msgs := m.ctrl.Messages()
	for i, msg := range msgs {
		if i > 0 {
			content.WriteString("\n")
		}

		if msg.Role == models.RoleUser {
			label := userLabelStyle.Render("⬤ You")
			bubble := userBubbleStyle.Width(bubbleWidth).Render(msg.Content)
			content.WriteString(label + "\n" + bubble)
		} else {
			label := assistantLabelStyle.Render("✦ Tutor")
			body := msg.Content
			if msg.IsStreaming {
				body = hintStyle.Render("…")
			} else {
				body = m.renderMarkdown(body, bubbleWidth-4)
			}
			bubble := assistantBubbleStyle.Width(bubbleWidth).Render(body)
			content.WriteString(label + "\n" + bubble)
		}
		content.WriteString("\n")
	}

	if m.ctrl.PlaybackActive() {
		if len(msgs) > 0 {
			content.WriteString("\n")
		}
		label := assistantLabelStyle.Render("✦ Tutor")
		// Plain text during the reveal; markdown is applied once committed.
		bubble := assistantBubbleStyle.Width(bubbleWidth).Render(m.ctrl.TypingText())
		content.WriteString(label + "\n" + bubble + "\n")
	}

	m.viewport.SetContent(content.String())
}

func (m Model) renderMarkdown(content string, width int) string {
	opts := render.FromConfig(m.cfg.Markdown, width)
	rendered, err := render.Markdown(content, opts)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

// Run starts the chat TUI against the given backend.
func Run(backend session.Backend, cfg config.Config, authenticated bool) error {
	ApplyTheme(cfg.TUITheme)

	ctrl := session.New(session.WithTypewriter(cfg.Typewriter))
	ctrl.SetAuthenticated(authenticated)

	m := NewModel(ctrl, backend, cfg)

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
	)

	_, err := p.Run()
	return err
}
