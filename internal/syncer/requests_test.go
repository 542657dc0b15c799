package syncer

import (
	"testing"

	"github.com/huddle-im/huddle/internal/store"
)

func req(id string) store.RequestWithPeer {
	return store.RequestWithPeer{ChatRequest: store.ChatRequest{ID: id}}
}

func TestWatcherFiresOnFirstLoad(t *testing.T) {
	var fired []string
	w := NewRequestWatcher(func(r store.RequestWithPeer) {
		fired = append(fired, r.ID)
	})

	// Requests waiting before the client started are new to the user.
	w.Observe([]store.RequestWithPeer{req("r1"), req("r2")})
	if len(fired) != 2 {
		t.Fatalf("fired = %v, want r1 and r2", fired)
	}
}

func TestWatcherFiresOncePerRequest(t *testing.T) {
	var fired []string
	w := NewRequestWatcher(func(r store.RequestWithPeer) {
		fired = append(fired, r.ID)
	})

	w.Observe([]store.RequestWithPeer{req("r1")})
	w.Observe([]store.RequestWithPeer{req("r1")})
	w.Observe([]store.RequestWithPeer{req("r1"), req("r2")})

	if len(fired) != 2 || fired[0] != "r1" || fired[1] != "r2" {
		t.Errorf("fired = %v, want [r1 r2]", fired)
	}
}

func TestWatcherForgetsDepartedRequests(t *testing.T) {
	var fired []string
	w := NewRequestWatcher(func(r store.RequestWithPeer) {
		fired = append(fired, r.ID)
	})

	w.Observe([]store.RequestWithPeer{req("r1")})
	w.Observe(nil) // declined or accepted elsewhere
	w.Observe([]store.RequestWithPeer{req("r1")}) // re-sent

	if len(fired) != 2 {
		t.Errorf("fired = %v, want the re-sent request to notify again", fired)
	}
}
