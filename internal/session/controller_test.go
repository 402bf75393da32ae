package session

import (
	"errors"
	"testing"

	apierrors "github.com/lmarques/tutorchat/internal/errors"
	"github.com/lmarques/tutorchat/internal/models"
)

func newAuthedController(opts ...Option) *Controller {
	c := New(opts...)
	c.SetAuthenticated(true)
	return c
}

func roles(msgs []models.Message) []models.Role {
	out := make([]models.Role, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

func TestBeginSendValidation(t *testing.T) {
	tests := []struct {
		name    string
		authed  bool
		text    string
		loading bool
		wantErr error
	}{
		{"not logged in", false, "hello", false, apierrors.ErrNotLoggedIn},
		{"empty", true, "", false, apierrors.ErrEmptyMessage},
		{"whitespace only", true, "   \n\t ", false, apierrors.ErrEmptyMessage},
		{"busy", true, "hello", true, ErrBusy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(WithTypewriter(false))
			c.SetAuthenticated(tt.authed)
			if tt.loading {
				if _, err := c.BeginSend("first"); err != nil {
					t.Fatalf("setup send failed: %v", err)
				}
			}

			_, err := c.BeginSend(tt.text)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("BeginSend(%q) error = %v, want %v", tt.text, err, tt.wantErr)
			}
		})
	}
}

func TestBeginSendStagesOptimisticState(t *testing.T) {
	c := newAuthedController(WithTypewriter(false))

	ticket, err := c.BeginSend("  what is recursion?  ")
	if err != nil {
		t.Fatalf("BeginSend failed: %v", err)
	}

	if ticket.Text != "what is recursion?" {
		t.Errorf("ticket text = %q, want trimmed text", ticket.Text)
	}
	if !c.Loading() {
		t.Error("Loading() = false after BeginSend")
	}

	msgs := c.Messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2 (optimistic user + placeholder)", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[0].Content != "what is recursion?" {
		t.Errorf("first message = %+v, want optimistic user entry", msgs[0])
	}
	if !msgs[1].IsStreaming || msgs[1].Role != models.RoleAssistant {
		t.Errorf("second message = %+v, want streaming placeholder", msgs[1])
	}
}

func TestResolveSendSuccessAppendsCanonicalPair(t *testing.T) {
	c := newAuthedController(WithTypewriter(false))

	// Pre-existing history must never be rewritten by a send.
	seed := []models.Message{
		{Role: models.RoleUser, Content: "earlier question"},
		{Role: models.RoleAssistant, Content: "earlier answer"},
	}
	tLoad, _ := c.BeginLoad("chat-1")
	if _, err := c.ResolveLoad(tLoad, seed, nil); err != nil {
		t.Fatalf("seed load failed: %v", err)
	}

	ticket, _ := c.BeginSend("next question")
	result := models.ChatResult{
		ChatID: "chat-1",
		History: []models.Message{
			{Role: models.RoleUser, Content: "earlier question"},
			{Role: models.RoleAssistant, Content: "earlier answer"},
			{Role: models.RoleUser, Content: "next question"},
			{Role: models.RoleAssistant, Content: "next answer"},
		},
	}

	outcome, err := c.ResolveSend(ticket, result, nil)
	if err != nil || outcome != OutcomeDone {
		t.Fatalf("ResolveSend = (%v, %v), want (OutcomeDone, nil)", outcome, err)
	}

	msgs := c.Messages()
	want := []string{"earlier question", "earlier answer", "next question", "next answer"}
	if len(msgs) != len(want) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(want))
	}
	for i, content := range want {
		if msgs[i].Content != content {
			t.Errorf("messages[%d] = %q, want %q", i, msgs[i].Content, content)
		}
	}
	if c.Loading() {
		t.Error("Loading() = true after resolve")
	}
}

func TestResolveSendReplyOnlyShape(t *testing.T) {
	c := newAuthedController(WithTypewriter(false))

	ticket, _ := c.BeginSend("hello")
	result := models.ChatResult{ChatID: "chat-9", Reply: "hi there"}

	outcome, err := c.ResolveSend(ticket, result, nil)
	if err != nil || outcome != OutcomeDone {
		t.Fatalf("ResolveSend = (%v, %v)", outcome, err)
	}

	if c.ActiveChatID() != "chat-9" {
		t.Errorf("ActiveChatID() = %q, want chat-9 (adopted from result)", c.ActiveChatID())
	}

	msgs := c.Messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want synthesized pair", len(msgs))
	}
	if msgs[1].Content != "hi there" {
		t.Errorf("assistant content = %q", msgs[1].Content)
	}
}

func TestResolveSendFailureRollsBack(t *testing.T) {
	c := newAuthedController(WithTypewriter(false))

	// Establish some history first.
	ticket, _ := c.BeginSend("first")
	if _, err := c.ResolveSend(ticket, models.ChatResult{ChatID: "c1", Reply: "ok"}, nil); err != nil {
		t.Fatalf("setup send failed: %v", err)
	}
	before := c.Messages()

	ticket, _ = c.BeginSend("doomed")
	sendErr := apierrors.NewTimeoutError("/chat")
	outcome, err := c.ResolveSend(ticket, models.ChatResult{}, sendErr)
	if outcome != OutcomeFailed {
		t.Fatalf("outcome = %v, want OutcomeFailed", outcome)
	}
	if !errors.As(err, new(*apierrors.TimeoutError)) {
		t.Errorf("err = %v, want the original send error", err)
	}

	after := c.Messages()
	if len(after) != len(before) {
		t.Fatalf("transcript length %d after failure, want %d (rollback)", len(after), len(before))
	}
	for i := range before {
		if after[i] != before[i] {
			t.Errorf("messages[%d] changed across failed send: %+v != %+v", i, after[i], before[i])
		}
	}
	if c.Loading() {
		t.Error("Loading() still true after failed send")
	}
}

func TestResolveSendNoExchangeFails(t *testing.T) {
	c := newAuthedController(WithTypewriter(false))

	ticket, _ := c.BeginSend("hello")
	outcome, err := c.ResolveSend(ticket, models.ChatResult{ChatID: "c1"}, nil)
	if outcome != OutcomeFailed || err == nil {
		t.Fatalf("ResolveSend on empty result = (%v, %v), want failure", outcome, err)
	}
	if len(c.Messages()) != 0 {
		t.Errorf("transcript not rolled back: %v", c.Messages())
	}
}

func TestStaleSendDiscardedAfterLoad(t *testing.T) {
	c := newAuthedController(WithTypewriter(false))

	sendTicket, _ := c.BeginSend("question for chat A")

	// The user switches conversation while the send is in flight.
	loadTicket, _ := c.BeginLoad("chat-B")
	loaded := []models.Message{
		{Role: models.RoleUser, Content: "b question"},
		{Role: models.RoleAssistant, Content: "b answer"},
	}
	if _, err := c.ResolveLoad(loadTicket, loaded, nil); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	outcome, err := c.ResolveSend(sendTicket, models.ChatResult{ChatID: "chat-A", Reply: "late"}, nil)
	if outcome != OutcomeStale || err != nil {
		t.Fatalf("late resolve = (%v, %v), want (OutcomeStale, nil)", outcome, err)
	}

	msgs := c.Messages()
	if len(msgs) != 2 || msgs[1].Content != "b answer" {
		t.Errorf("stale send touched state: %v", msgs)
	}
	if c.ActiveChatID() != "chat-B" {
		t.Errorf("ActiveChatID() = %q, want chat-B", c.ActiveChatID())
	}
}

func TestStaleSendDiscardedAfterNewChat(t *testing.T) {
	c := newAuthedController(WithTypewriter(false))

	sendTicket, _ := c.BeginSend("orphaned question")

	startTicket, _ := c.BeginStartChat()
	if _, err := c.ResolveStartChat(startTicket, models.ChatResult{ChatID: "fresh"}, nil); err != nil {
		t.Fatalf("start chat failed: %v", err)
	}

	outcome, _ := c.ResolveSend(sendTicket, models.ChatResult{Reply: "late"}, nil)
	if outcome != OutcomeStale {
		t.Fatalf("outcome = %v, want OutcomeStale", outcome)
	}
	if got := c.Messages(); len(got) != 1 || got[0].Content != DefaultGreeting {
		t.Errorf("new chat transcript disturbed: %v", got)
	}
}

func TestStaleSendDiscardedAfterShutdown(t *testing.T) {
	c := newAuthedController(WithTypewriter(false))

	ticket, _ := c.BeginSend("question")
	c.Shutdown()

	outcome, _ := c.ResolveSend(ticket, models.ChatResult{Reply: "late"}, nil)
	if outcome != OutcomeStale {
		t.Errorf("outcome = %v, want OutcomeStale", outcome)
	}
}

func TestResolveLoadIsAllOrNothing(t *testing.T) {
	c := newAuthedController(WithTypewriter(false))

	ticket, _ := c.BeginSend("pending")
	loadTicket, _ := c.BeginLoad("chat-X")

	outcome, err := c.ResolveLoad(loadTicket, nil, apierrors.ErrConversationNotFound)
	if outcome != OutcomeFailed || err == nil {
		t.Fatalf("failed load = (%v, %v)", outcome, err)
	}

	// Prior state survives a failed load, including the in-flight send.
	if !c.Loading() {
		t.Error("failed load cleared the loading flag")
	}
	if len(c.Messages()) != 2 {
		t.Errorf("failed load touched the transcript: %v", c.Messages())
	}

	// The original send can still land.
	outcome, err = c.ResolveSend(ticket, models.ChatResult{ChatID: "c", Reply: "answer"}, nil)
	if outcome != OutcomeDone || err != nil {
		t.Errorf("send after failed load = (%v, %v)", outcome, err)
	}
}

func TestResolveLoadFiltersSystemMessages(t *testing.T) {
	c := newAuthedController(WithTypewriter(false))

	ticket, _ := c.BeginLoad("chat-1")
	msgs := []models.Message{
		{Role: models.RoleSystem, Content: "system prompt"},
		{Role: models.RoleUser, Content: "q"},
		{Role: models.RoleAssistant, Content: "a"},
	}
	if _, err := c.ResolveLoad(ticket, msgs, nil); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	got := roles(c.Messages())
	if len(got) != 2 || got[0] != models.RoleUser || got[1] != models.RoleAssistant {
		t.Errorf("roles = %v, want system filtered out", got)
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	c := newAuthedController(WithTypewriter(false))
	msgs := []models.Message{
		{Role: models.RoleUser, Content: "q"},
		{Role: models.RoleAssistant, Content: "a"},
	}

	for i := 0; i < 3; i++ {
		ticket, err := c.BeginLoad("same-chat")
		if err != nil {
			t.Fatalf("BeginLoad #%d failed: %v", i, err)
		}
		if _, err := c.ResolveLoad(ticket, msgs, nil); err != nil {
			t.Fatalf("ResolveLoad #%d failed: %v", i, err)
		}
	}

	if len(c.Messages()) != 2 {
		t.Errorf("repeated loads grew the transcript: %d messages", len(c.Messages()))
	}
}

func TestBeginLoadValidation(t *testing.T) {
	c := New()
	if _, err := c.BeginLoad("x"); !errors.Is(err, apierrors.ErrNotLoggedIn) {
		t.Errorf("unauthenticated BeginLoad error = %v", err)
	}

	c.SetAuthenticated(true)
	if _, err := c.BeginLoad(""); !errors.Is(err, apierrors.ErrConversationNotFound) {
		t.Errorf("empty id BeginLoad error = %v", err)
	}
}

func TestStartChatGreetings(t *testing.T) {
	tests := []struct {
		name   string
		result models.ChatResult
		want   string
	}{
		{
			"greeting from history",
			models.ChatResult{ChatID: "c1", History: []models.Message{
				{Role: models.RoleAssistant, Content: "Hello from the server"},
			}},
			"Hello from the server",
		},
		{
			"greeting from reply",
			models.ChatResult{ChatID: "c1", Reply: "Reply greeting"},
			"Reply greeting",
		},
		{
			"default greeting",
			models.ChatResult{ChatID: "c1"},
			DefaultGreeting,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newAuthedController(WithTypewriter(false))
			ticket, _ := c.BeginStartChat()
			outcome, err := c.ResolveStartChat(ticket, tt.result, nil)
			if outcome != OutcomeDone || err != nil {
				t.Fatalf("ResolveStartChat = (%v, %v)", outcome, err)
			}

			msgs := c.Messages()
			if len(msgs) != 1 || msgs[0].Content != tt.want {
				t.Errorf("transcript = %v, want single greeting %q", msgs, tt.want)
			}
			if c.ActiveChatID() != "c1" {
				t.Errorf("ActiveChatID() = %q", c.ActiveChatID())
			}
		})
	}
}

func TestStartChatUpdatesSidebar(t *testing.T) {
	c := newAuthedController(WithTypewriter(false))
	c.SetConversations([]models.ConversationSummary{
		{ChatID: "old-1", Summary: "Old one"},
		{ChatID: "fresh", Summary: "Stale duplicate"},
	})

	ticket, _ := c.BeginStartChat()
	if _, err := c.ResolveStartChat(ticket, models.ChatResult{ChatID: "fresh"}, nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	convs := c.Conversations()
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want duplicate collapsed", len(convs))
	}
	if convs[0].ChatID != "fresh" || convs[0].Summary != "New Chat" {
		t.Errorf("head entry = %+v, want prepended New Chat", convs[0])
	}
	if convs[1].ChatID != "old-1" {
		t.Errorf("tail entry = %+v", convs[1])
	}
}

func TestStartChatWithoutChatIDFails(t *testing.T) {
	c := newAuthedController(WithTypewriter(false))
	ticket, _ := c.BeginStartChat()

	outcome, err := c.ResolveStartChat(ticket, models.ChatResult{}, nil)
	if outcome != OutcomeFailed || err == nil {
		t.Errorf("ResolveStartChat = (%v, %v), want failure", outcome, err)
	}
}

func TestApplyDeleted(t *testing.T) {
	t.Run("inactive conversation", func(t *testing.T) {
		c := newAuthedController(WithTypewriter(false))
		loadTicket, _ := c.BeginLoad("keep")
		_, _ = c.ResolveLoad(loadTicket, []models.Message{{Role: models.RoleUser, Content: "q"}}, nil)
		c.SetConversations([]models.ConversationSummary{
			{ChatID: "keep"}, {ChatID: "gone"},
		})

		c.ApplyDeleted("gone")

		if len(c.Conversations()) != 1 {
			t.Errorf("conversations = %v", c.Conversations())
		}
		if c.ActiveChatID() != "keep" || len(c.Messages()) != 1 {
			t.Error("deleting an inactive conversation touched the transcript")
		}
	})

	t.Run("active conversation", func(t *testing.T) {
		c := newAuthedController(WithTypewriter(false))
		loadTicket, _ := c.BeginLoad("gone")
		_, _ = c.ResolveLoad(loadTicket, []models.Message{{Role: models.RoleUser, Content: "q"}}, nil)
		c.SetConversations([]models.ConversationSummary{{ChatID: "gone"}})

		sendTicket, _ := c.BeginSend("in flight")
		c.ApplyDeleted("gone")

		if c.ActiveChatID() != "" || len(c.Messages()) != 0 {
			t.Error("active delete did not clear the session")
		}
		if outcome, _ := c.ResolveSend(sendTicket, models.ChatResult{Reply: "late"}, nil); outcome != OutcomeStale {
			t.Errorf("send into deleted session = %v, want OutcomeStale", outcome)
		}
	})
}

func TestAtMostOnePlaceholder(t *testing.T) {
	c := newAuthedController(WithTypewriter(false))

	_, _ = c.BeginSend("one")
	if _, err := c.BeginSend("two"); !errors.Is(err, ErrBusy) {
		t.Fatalf("second send error = %v, want ErrBusy", err)
	}

	streaming := 0
	for _, m := range c.Messages() {
		if m.IsStreaming {
			streaming++
		}
	}
	if streaming != 1 {
		t.Errorf("streaming placeholders = %d, want exactly 1", streaming)
	}
}
