package session

import (
	"testing"

	"github.com/lmarques/tutorchat/internal/models"
)

func resolveWithReply(t *testing.T, c *Controller, reply string) {
	t.Helper()
	ticket, err := c.BeginSend("question")
	if err != nil {
		t.Fatalf("BeginSend failed: %v", err)
	}
	outcome, err := c.ResolveSend(ticket, models.ChatResult{ChatID: "c1", Reply: reply}, nil)
	if err != nil {
		t.Fatalf("ResolveSend failed: %v", err)
	}
	if outcome != OutcomePlayback {
		t.Fatalf("outcome = %v, want OutcomePlayback", outcome)
	}
}

func TestPlaybackCompletesAfterRuneCountTicks(t *testing.T) {
	c := newAuthedController(WithTypewriter(true))

	reply := "héllo ✦" // multibyte on purpose
	resolveWithReply(t, c, reply)

	if !c.PlaybackActive() {
		t.Fatal("PlaybackActive() = false after OutcomePlayback")
	}

	// The reply stays out of the permanent transcript during playback.
	if msgs := c.Messages(); len(msgs) != 1 || msgs[0].Role != models.RoleUser {
		t.Fatalf("transcript during playback = %v, want only the user entry", msgs)
	}

	runes := []rune(reply)
	for i := 1; i <= len(runes); i++ {
		done := c.TickPlayback()
		if got := c.TypingText(); i < len(runes) && got != string(runes[:i]) {
			t.Fatalf("after %d ticks TypingText() = %q, want %q", i, got, string(runes[:i]))
		}
		if i < len(runes) && done {
			t.Fatalf("playback reported done after %d of %d ticks", i, len(runes))
		}
		if i == len(runes) && !done {
			t.Fatal("playback not done after revealing every rune")
		}
	}

	if c.PlaybackActive() {
		t.Error("PlaybackActive() = true after completion")
	}
	msgs := c.Messages()
	if len(msgs) != 2 || msgs[1].Content != reply {
		t.Errorf("transcript after playback = %v, want committed reply", msgs)
	}
}

func TestFinishPlaybackCommitsImmediately(t *testing.T) {
	c := newAuthedController(WithTypewriter(true))
	resolveWithReply(t, c, "a long reply that would take many ticks")

	c.TickPlayback()
	c.FinishPlayback()

	if c.PlaybackActive() {
		t.Error("playback still active after FinishPlayback")
	}
	msgs := c.Messages()
	if msgs[len(msgs)-1].Content != "a long reply that would take many ticks" {
		t.Errorf("committed content = %q, want the full reply", msgs[len(msgs)-1].Content)
	}
}

func TestBeginSendCommitsActivePlayback(t *testing.T) {
	c := newAuthedController(WithTypewriter(true))
	resolveWithReply(t, c, "previous reply")
	c.TickPlayback()

	if _, err := c.BeginSend("next question"); err != nil {
		t.Fatalf("BeginSend during playback failed: %v", err)
	}

	msgs := c.Messages()
	// user, committed previous reply, next user, placeholder
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4: %v", len(msgs), msgs)
	}
	if msgs[1].Content != "previous reply" {
		t.Errorf("messages[1] = %q, want the committed previous reply", msgs[1].Content)
	}
	if c.PlaybackActive() {
		t.Error("old playback survived a new send")
	}
}

func TestLoadCancelsPlaybackWithoutCommit(t *testing.T) {
	c := newAuthedController(WithTypewriter(true))
	resolveWithReply(t, c, "reply that must not leak")
	c.TickPlayback()

	ticket, _ := c.BeginLoad("other-chat")
	loaded := []models.Message{
		{Role: models.RoleUser, Content: "other q"},
		{Role: models.RoleAssistant, Content: "other a"},
	}
	if _, err := c.ResolveLoad(ticket, loaded, nil); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	for _, m := range c.Messages() {
		if m.Content == "reply that must not leak" {
			t.Fatal("cancelled playback leaked into the loaded transcript")
		}
	}
	if c.PlaybackActive() {
		t.Error("playback survived a conversation switch")
	}
}

func TestTickWithoutPlaybackIsNoOp(t *testing.T) {
	c := newAuthedController(WithTypewriter(true))
	if done := c.TickPlayback(); !done {
		t.Error("TickPlayback() without playback = false, want true")
	}
	if c.TypingText() != "" {
		t.Errorf("TypingText() = %q, want empty", c.TypingText())
	}
}

func TestTypewriterDisabledCommitsAtOnce(t *testing.T) {
	c := newAuthedController(WithTypewriter(false))

	ticket, _ := c.BeginSend("question")
	outcome, err := c.ResolveSend(ticket, models.ChatResult{ChatID: "c1", Reply: "instant"}, nil)
	if err != nil || outcome != OutcomeDone {
		t.Fatalf("ResolveSend = (%v, %v), want immediate commit", outcome, err)
	}
	if c.PlaybackActive() {
		t.Error("playback started with typewriter disabled")
	}
}

func TestEmptyReplyCommitsWithoutPlayback(t *testing.T) {
	c := newAuthedController(WithTypewriter(true))

	ticket, _ := c.BeginSend("question")
	result := models.ChatResult{ChatID: "c1", History: []models.Message{
		{Role: models.RoleUser, Content: "question"},
		{Role: models.RoleAssistant, Content: ""},
	}}
	outcome, err := c.ResolveSend(ticket, result, nil)
	if err != nil || outcome != OutcomeDone {
		t.Fatalf("ResolveSend = (%v, %v), want OutcomeDone for empty reply", outcome, err)
	}
}
