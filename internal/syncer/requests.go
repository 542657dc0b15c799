package syncer

import (
	"sync"

	"github.com/huddle-im/huddle/internal/store"
)

// RequestWatcher diffs successive pending-request snapshots by id and
// fires once per request it has not seen before. The first snapshot
// counts too: requests that arrived while the client was away are as
// new to the user as live ones.
type RequestWatcher struct {
	mu    sync.Mutex
	seen  map[string]bool
	onNew func(store.RequestWithPeer)
}

// NewRequestWatcher creates a watcher calling onNew for each new
// request. Attach it to a collection with Observe.
func NewRequestWatcher(onNew func(store.RequestWithPeer)) *RequestWatcher {
	return &RequestWatcher{
		seen:  make(map[string]bool),
		onNew: onNew,
	}
}

// Observe processes one snapshot. Requests that left the snapshot are
// forgotten, so a declined-then-resent request notifies again.
func (w *RequestWatcher) Observe(requests []store.RequestWithPeer) {
	w.mu.Lock()
	defer w.mu.Unlock()

	current := make(map[string]bool, len(requests))
	var fresh []store.RequestWithPeer
	for _, r := range requests {
		current[r.ID] = true
		if !w.seen[r.ID] {
			fresh = append(fresh, r)
		}
	}
	w.seen = current

	for _, r := range fresh {
		w.onNew(r)
	}
}
