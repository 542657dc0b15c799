// Package syncer keeps the CLI's view of the server fresh. Each
// collection controller serves cached data immediately, refetches in
// the background, polls on its own interval and refreshes early when a
// pushed event says its data changed. The same machinery backs
// requests, contacts, chats and presence; only the fetch function and
// the intervals differ.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/huddle-im/huddle/internal/bus"
	"github.com/huddle-im/huddle/internal/cache"
	"go.uber.org/zap"
)

// Options configures a collection controller.
type Options[T any] struct {
	// Name is the cache collection name.
	Name string

	// Owner scopes cache entries to the signed-in user.
	Owner string

	// Cache is optional; without it every start begins empty.
	Cache *cache.Store

	// Fetch loads the authoritative server state.
	Fetch func(ctx context.Context) ([]T, error)

	// Interval is the poll period.
	Interval time.Duration

	// Bus and TriggerKinds name the pushed events that force an early
	// refresh. Both optional.
	Bus          *bus.Bus
	TriggerKinds []string

	Logger *zap.Logger
}

// Collection is a self-refreshing view of one server-side list. Reads
// never block on the network: Items returns whatever is known now, and
// OnUpdate callbacks fire as fresher data lands.
type Collection[T any] struct {
	opts     Options[T]
	triggers map[string]bool

	mu       sync.RWMutex
	items    []T
	loaded   bool
	onUpdate []func([]T)

	force  chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCollection creates a controller; call Start to begin refreshing.
func NewCollection[T any](opts Options[T]) *Collection[T] {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	triggers := make(map[string]bool, len(opts.TriggerKinds))
	for _, k := range opts.TriggerKinds {
		triggers[k] = true
	}
	return &Collection[T]{
		opts:     opts,
		triggers: triggers,
		force:    make(chan struct{}, 1),
	}
}

// Start serves the cached snapshot (if any), then refreshes immediately
// and keeps refreshing on the poll interval and on trigger events.
func (c *Collection[T]) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})

	if c.opts.Cache != nil {
		if cached, ok := cache.Get[[]T](c.opts.Cache, c.opts.Name, c.opts.Owner); ok {
			c.set(cached, false)
		}
	}

	var events <-chan bus.Event
	unsub := func() {}
	if c.opts.Bus != nil && len(c.triggers) > 0 {
		events, unsub = c.opts.Bus.Subscribe("", 64)
	}

	go func() {
		defer close(c.done)
		defer unsub()

		// The cached snapshot may be stale; fetch regardless.
		c.refresh(ctx)

		ticker := time.NewTicker(c.opts.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.refresh(ctx)
			case <-c.force:
				c.refresh(ctx)
			case evt := <-events:
				if c.triggers[evt.Kind] {
					c.refresh(ctx)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts refreshing and waits for the loop to exit.
func (c *Collection[T]) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.done != nil {
		<-c.done
	}
}

// ForceRefresh asks for a refresh outside the schedule. Non-blocking;
// overlapping asks coalesce.
func (c *Collection[T]) ForceRefresh() {
	select {
	case c.force <- struct{}{}:
	default:
	}
}

// Items returns the current snapshot.
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items
}

// Loaded reports whether at least one successful fetch has completed.
func (c *Collection[T]) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// OnUpdate registers a callback invoked with each new snapshot,
// including the initial cached one. Callbacks run on the refresh
// goroutine and must not block.
func (c *Collection[T]) OnUpdate(fn func([]T)) {
	c.mu.Lock()
	c.onUpdate = append(c.onUpdate, fn)
	c.mu.Unlock()
}

func (c *Collection[T]) refresh(ctx context.Context) {
	fresh, err := c.opts.Fetch(ctx)
	if err != nil {
		// Transient failure: keep serving the current snapshot.
		c.opts.Logger.Warn("collection refresh failed",
			zap.String("collection", c.opts.Name),
			zap.Error(err))
		return
	}

	c.set(fresh, true)
	if c.opts.Cache != nil {
		if err := c.opts.Cache.PutRaw(c.opts.Name, c.opts.Owner, fresh); err != nil {
			c.opts.Logger.Warn("collection cache write failed",
				zap.String("collection", c.opts.Name),
				zap.Error(err))
		}
	}
}

func (c *Collection[T]) set(items []T, fetched bool) {
	c.mu.Lock()
	c.items = items
	if fetched {
		c.loaded = true
	}
	callbacks := make([]func([]T), len(c.onUpdate))
	copy(callbacks, c.onUpdate)
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn(items)
	}
}
