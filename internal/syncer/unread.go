package syncer

import (
	"sync"

	"github.com/huddle-im/huddle/internal/event"
)

// UnreadTracker counts unread messages per chat. A message counts when
// its chat is not the selected one and someone else sent it; selecting
// a chat removes its entry entirely rather than zeroing it, so "no
// entry" and "read up to date" are the same state.
type UnreadTracker struct {
	mu       sync.Mutex
	localID  string
	selected string
	counts   map[string]int
}

// NewUnreadTracker creates a tracker for the given local user.
func NewUnreadTracker(localID string) *UnreadTracker {
	return &UnreadTracker{
		localID: localID,
		counts:  make(map[string]int),
	}
}

// HandleMessage updates counts for one pushed message.
func (u *UnreadTracker) HandleMessage(m event.Message) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if m.ChatID == u.selected || m.SenderID == u.localID {
		return
	}
	u.counts[m.ChatID]++
}

// Select marks a chat as the one on screen and clears its count.
func (u *UnreadTracker) Select(chatID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.selected = chatID
	delete(u.counts, chatID)
}

// Deselect clears the selection; subsequent messages count again.
func (u *UnreadTracker) Deselect() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.selected = ""
}

// Count returns a chat's unread count and whether an entry exists.
func (u *UnreadTracker) Count(chatID string) (int, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	n, ok := u.counts[chatID]
	return n, ok
}

// Counts returns a snapshot of all chats with unread messages.
func (u *UnreadTracker) Counts() map[string]int {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make(map[string]int, len(u.counts))
	for k, v := range u.counts {
		out[k] = v
	}
	return out
}
