package syncer

import (
	"testing"

	"github.com/huddle-im/huddle/internal/event"
)

func msg(chatID, senderID string) event.Message {
	return event.Message{ChatID: chatID, SenderID: senderID}
}

func TestUnreadIncrements(t *testing.T) {
	u := NewUnreadTracker("me")

	u.HandleMessage(msg("c1", "alice"))
	u.HandleMessage(msg("c1", "alice"))
	u.HandleMessage(msg("c2", "bob"))

	if n, ok := u.Count("c1"); !ok || n != 2 {
		t.Errorf("c1 = %d,%v, want 2,true", n, ok)
	}
	if n, ok := u.Count("c2"); !ok || n != 1 {
		t.Errorf("c2 = %d,%v, want 1,true", n, ok)
	}
}

func TestUnreadIgnoresOwnMessages(t *testing.T) {
	u := NewUnreadTracker("me")
	u.HandleMessage(msg("c1", "me"))

	if _, ok := u.Count("c1"); ok {
		t.Error("own messages must not count")
	}
}

func TestUnreadIgnoresSelectedChat(t *testing.T) {
	u := NewUnreadTracker("me")
	u.Select("c1")
	u.HandleMessage(msg("c1", "alice"))

	if _, ok := u.Count("c1"); ok {
		t.Error("messages in the open chat must not count")
	}

	// Messages elsewhere still count.
	u.HandleMessage(msg("c2", "alice"))
	if n, _ := u.Count("c2"); n != 1 {
		t.Errorf("c2 = %d, want 1", n)
	}
}

func TestSelectClearsToAbsent(t *testing.T) {
	u := NewUnreadTracker("me")
	u.HandleMessage(msg("c1", "alice"))
	u.Select("c1")

	// Entry removed, not zeroed.
	if _, ok := u.Count("c1"); ok {
		t.Error("selecting should remove the entry")
	}
	if len(u.Counts()) != 0 {
		t.Errorf("counts = %v, want empty", u.Counts())
	}
}

func TestDeselect(t *testing.T) {
	u := NewUnreadTracker("me")
	u.Select("c1")
	u.Deselect()
	u.HandleMessage(msg("c1", "alice"))

	if n, _ := u.Count("c1"); n != 1 {
		t.Errorf("c1 = %d, want 1 after deselect", n)
	}
}
