// Package session implements the chat session controller: the in-memory
// transcript for the active conversation and the optimistic-append,
// placeholder, reconcile protocol around the backend chat endpoint.
//
// The controller is a plain state machine. All I/O is performed by the
// caller (the TUI event loop or a command), which begins an operation to
// capture a ticket, runs the backend call, and resolves the ticket with
// the outcome. Tickets carry the epoch current at begin time; an epoch
// mismatch at resolve time means the session moved on (conversation
// switched, chat restarted, teardown) and the result is discarded.
//
// The controller is not safe for concurrent use; it is confined to the
// single event loop that owns it.
package session

import (
	"errors"
	"strings"

	apierrors "github.com/lmarques/tutorchat/internal/errors"
	"github.com/lmarques/tutorchat/internal/models"
)

// DefaultGreeting seeds a brand-new conversation when the backend does not
// return its own greeting history.
const DefaultGreeting = "Hi! Welcome to ALAASKA. How can I help you today?"

// ErrBusy is returned when a send is begun while a prior send is still in
// flight. The loading guard serializes user-initiated sends.
var ErrBusy = errors.New("a message is already in flight")

// Outcome classifies the result of resolving a ticket.
type Outcome int

const (
	// OutcomeDone means state was updated and no follow-up is needed.
	OutcomeDone Outcome = iota
	// OutcomePlayback means the reply was accepted and typewriter playback
	// started; the caller must drive TickPlayback until it completes.
	OutcomePlayback
	// OutcomeStale means the result arrived for a session that no longer
	// exists and was discarded without touching state.
	OutcomeStale
	// OutcomeFailed means the operation failed; transient state was rolled
	// back per the operation's failure policy.
	OutcomeFailed
)

// Controller owns the transcript of the active conversation.
type Controller struct {
	messages      []models.Message
	conversations []models.ConversationSummary
	activeChatID  string
	loading       bool
	authed        bool
	epoch         uint64

	typewriter bool
	playback   *typewriter
}

// Option configures a Controller.
type Option func(*Controller)

// WithTypewriter toggles animated reveal of replies. When disabled,
// replies are committed to the transcript immediately.
func WithTypewriter(enabled bool) Option {
	return func(c *Controller) {
		c.typewriter = enabled
	}
}

// New creates a controller with an empty transcript.
func New(opts ...Option) *Controller {
	c := &Controller{typewriter: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAuthenticated flips the auth gate. Every backend-touching operation
// is rejected with ErrNotLoggedIn while false.
func (c *Controller) SetAuthenticated(authed bool) {
	c.authed = authed
}

// Authenticated returns whether the session is logged in.
func (c *Controller) Authenticated() bool { return c.authed }

// ActiveChatID returns the backend id of the open conversation, or ""
// when no conversation has been started.
func (c *Controller) ActiveChatID() string { return c.activeChatID }

// Loading reports whether a send is in flight.
func (c *Controller) Loading() bool { return c.loading }

// Messages returns a copy of the current transcript.
func (c *Controller) Messages() []models.Message {
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Conversations returns the cached sidebar entries.
func (c *Controller) Conversations() []models.ConversationSummary {
	out := make([]models.ConversationSummary, len(c.conversations))
	copy(out, c.conversations)
	return out
}

// SetConversations replaces the cached sidebar entries.
func (c *Controller) SetConversations(list []models.ConversationSummary) {
	c.conversations = make([]models.ConversationSummary, len(list))
	copy(c.conversations, list)
}

// SendTicket identifies one in-flight send.
type SendTicket struct {
	ChatID string
	Text   string
	epoch  uint64
}

// BeginSend validates and stages a user message: the trimmed text is
// appended optimistically, a streaming placeholder follows it, and the
// loading guard is raised. The caller posts ticket.Text to the backend
// against ticket.ChatID and resolves with the result.
func (c *Controller) BeginSend(text string) (SendTicket, error) {
	if !c.authed {
		return SendTicket{}, apierrors.ErrNotLoggedIn
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return SendTicket{}, apierrors.ErrEmptyMessage
	}
	if c.loading {
		return SendTicket{}, ErrBusy
	}

	// A still-running playback belongs to the previous exchange; commit it
	// so two reveals can never interleave.
	c.FinishPlayback()

	c.messages = append(c.messages,
		models.Message{Role: models.RoleUser, Content: trimmed},
		models.Placeholder(),
	)
	c.loading = true

	return SendTicket{ChatID: c.activeChatID, Text: trimmed, epoch: c.epoch}, nil
}

// ResolveSend reconciles the backend's answer with the optimistic state.
//
// On success the optimistic entry and placeholder are replaced by the
// canonical trailing user+assistant pair; earlier history is never
// rewritten (append-only growth). On failure both optimistic entries are
// removed so the transcript equals its pre-send state.
func (c *Controller) ResolveSend(t SendTicket, result models.ChatResult, sendErr error) (Outcome, error) {
	if t.epoch != c.epoch {
		return OutcomeStale, nil
	}

	c.loading = false
	c.removeOptimistic(t.Text)

	if sendErr != nil {
		return OutcomeFailed, sendErr
	}

	pair, ok := result.LastExchange(t.Text)
	if !ok {
		return OutcomeFailed, apierrors.NewParseError("chat response carried no exchange", "")
	}

	if result.ChatID != "" {
		c.activeChatID = result.ChatID
	}

	c.messages = append(c.messages, pair[0])

	reply := pair[1]
	if c.typewriter && reply.Content != "" {
		c.playback = newTypewriter(reply.Content)
		return OutcomePlayback, nil
	}

	c.messages = append(c.messages, reply)
	return OutcomeDone, nil
}

// removeOptimistic strips the trailing placeholder and the optimistic user
// entry staged by BeginSend.
func (c *Controller) removeOptimistic(sentText string) {
	if n := len(c.messages); n > 0 && c.messages[n-1].IsStreaming {
		c.messages = c.messages[:n-1]
	}
	if n := len(c.messages); n > 0 &&
		c.messages[n-1].Role == models.RoleUser && c.messages[n-1].Content == sentText {
		c.messages = c.messages[:n-1]
	}
}

// LoadTicket identifies one in-flight conversation load.
type LoadTicket struct {
	ID    string
	epoch uint64
}

// BeginLoad stages a conversation switch. Current state is left untouched
// until the load succeeds; load is all-or-nothing.
func (c *Controller) BeginLoad(id string) (LoadTicket, error) {
	if !c.authed {
		return LoadTicket{}, apierrors.ErrNotLoggedIn
	}
	if id == "" {
		return LoadTicket{}, apierrors.ErrConversationNotFound
	}
	return LoadTicket{ID: id, epoch: c.epoch}, nil
}

// ResolveLoad installs the fetched canonical history. System messages are
// filtered, transient state (placeholder, loading flag, playback) is
// abandoned, and the epoch advances so responses still in flight against
// the previous conversation are discarded on arrival.
func (c *Controller) ResolveLoad(t LoadTicket, msgs []models.Message, loadErr error) (Outcome, error) {
	if t.epoch != c.epoch {
		return OutcomeStale, nil
	}
	if loadErr != nil {
		return OutcomeFailed, loadErr
	}

	c.cancelPlayback()
	c.messages = models.VisibleMessages(msgs)
	c.activeChatID = t.ID
	c.loading = false
	c.epoch++

	return OutcomeDone, nil
}

// StartTicket identifies one in-flight new-chat request.
type StartTicket struct {
	epoch uint64
}

// BeginStartChat stages a new-chat request.
func (c *Controller) BeginStartChat() (StartTicket, error) {
	if !c.authed {
		return StartTicket{}, apierrors.ErrNotLoggedIn
	}
	return StartTicket{epoch: c.epoch}, nil
}

// ResolveStartChat resets the transcript to the backend's greeting and
// prepends the new conversation to the sidebar, deduplicating by chat id.
// On failure prior state is left untouched.
func (c *Controller) ResolveStartChat(t StartTicket, result models.ChatResult, startErr error) (Outcome, error) {
	if t.epoch != c.epoch {
		return OutcomeStale, nil
	}
	if startErr != nil {
		return OutcomeFailed, startErr
	}
	if result.ChatID == "" {
		return OutcomeFailed, apierrors.NewParseError("start response carried no chat_id", "chat_id")
	}

	greeting := models.VisibleMessages(result.History)
	if len(greeting) == 0 {
		content := result.Reply
		if content == "" {
			content = DefaultGreeting
		}
		greeting = []models.Message{{Role: models.RoleAssistant, Content: content}}
	}

	c.cancelPlayback()
	c.messages = greeting
	c.activeChatID = result.ChatID
	c.loading = false
	c.epoch++

	entries := []models.ConversationSummary{{ChatID: result.ChatID, Summary: "New Chat"}}
	for _, conv := range c.conversations {
		if conv.ChatID == result.ChatID {
			continue
		}
		entries = append(entries, conv)
	}
	c.conversations = entries

	return OutcomeDone, nil
}

// ApplyDeleted removes a confirmed-deleted conversation from the sidebar
// and, when it was the active one, clears the transcript.
func (c *Controller) ApplyDeleted(id string) {
	kept := c.conversations[:0]
	for _, conv := range c.conversations {
		if conv.ChatID != id {
			kept = append(kept, conv)
		}
	}
	c.conversations = kept

	if id == c.activeChatID {
		c.cancelPlayback()
		c.messages = nil
		c.activeChatID = ""
		c.loading = false
		c.epoch++
	}
}

// Shutdown abandons all transient state. Any results still in flight are
// discarded when they arrive.
func (c *Controller) Shutdown() {
	c.cancelPlayback()
	c.loading = false
	c.epoch++
}
