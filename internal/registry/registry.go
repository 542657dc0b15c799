// Package registry tracks live websocket connections per user. A user
// may be connected from several devices at once, so the mapping is
// user id -> set of connections. The registry is an injectable value,
// not a package singleton, so tests can drive it with fake connections.
package registry

import "sync"

// Conn is the transport handle the registry and dispatcher need. The
// websocket layer wraps its real connection in this interface; tests
// substitute fakes.
type Conn interface {
	// WriteText writes one text frame. Returns an error once the
	// underlying transport is closed.
	WriteText(data []byte) error
	// IsOpen reports whether the connection can still accept writes.
	IsOpen() bool
}

// Registry is the shared mutable map of user id to connection set. All
// access goes through the mutex; callbacks from different connection
// goroutines mutate it concurrently.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[Conn]struct{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{conns: make(map[string]map[Conn]struct{})}
}

// Register adds a connection to the user's set. Registering the same
// connection twice is a no-op, which keeps rapid reconnects harmless.
func (r *Registry) Register(userID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[userID]
	if !ok {
		set = make(map[Conn]struct{})
		r.conns[userID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes a connection from the user's set and drops the
// user's entry entirely when the set becomes empty. Unregistering an
// unknown user or connection is a silent no-op.
func (r *Registry) Unregister(userID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[userID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, userID)
	}
}

// ConnectionsFor returns a snapshot of the user's live connections.
// The returned slice is safe to iterate without holding any lock.
func (r *Registry) ConnectionsFor(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.conns[userID]
	if !ok {
		return nil
	}
	out := make([]Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// ConnectedUsers returns the ids of all users with at least one live
// connection.
func (r *Registry) ConnectedUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.conns))
	for id := range r.conns {
		out = append(out, id)
	}
	return out
}

// Len returns the number of users with live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
