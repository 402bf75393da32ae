package session

import "github.com/lmarques/tutorchat/internal/models"

// typewriter is the playback state machine for one fully-received reply.
// The reply stays out of the permanent transcript until every character
// has been revealed; the partial text is rendered as an ephemeral overlay
// after the permanent list.
type typewriter struct {
	full []rune
	i    int
}

func newTypewriter(reply string) *typewriter {
	return &typewriter{full: []rune(reply)}
}

func (t *typewriter) tick() {
	if t.i < len(t.full) {
		t.i++
	}
}

func (t *typewriter) text() string {
	return string(t.full[:t.i])
}

func (t *typewriter) done() bool {
	return t.i >= len(t.full)
}

// PlaybackActive reports whether a reply is currently being revealed.
func (c *Controller) PlaybackActive() bool {
	return c.playback != nil
}

// TypingText returns the revealed portion of the reply under playback.
func (c *Controller) TypingText() string {
	if c.playback == nil {
		return ""
	}
	return c.playback.text()
}

// TickPlayback reveals the next character. When the reply is fully
// revealed it is committed to the permanent transcript and playback ends;
// the return value reports completion. Ticking without an active playback
// is a no-op that reports done.
func (c *Controller) TickPlayback() bool {
	if c.playback == nil {
		return true
	}

	c.playback.tick()
	if !c.playback.done() {
		return false
	}

	c.commitPlayback()
	return true
}

// FinishPlayback commits an in-flight playback immediately, skipping the
// remaining reveal.
func (c *Controller) FinishPlayback() {
	if c.playback == nil {
		return
	}
	c.commitPlayback()
}

// commitPlayback appends the full reply to the permanent transcript and
// clears the playback state.
func (c *Controller) commitPlayback() {
	c.messages = append(c.messages, models.Message{
		Role:    models.RoleAssistant,
		Content: string(c.playback.full),
	})
	c.playback = nil
}

// cancelPlayback drops an in-flight playback without committing. Used on
// conversation switch and teardown, where the reply belongs to a session
// that no longer exists.
func (c *Controller) cancelPlayback() {
	c.playback = nil
}
