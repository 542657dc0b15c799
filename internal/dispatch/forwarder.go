package dispatch

import (
	"context"

	"github.com/huddle-im/huddle/internal/bus"
	"github.com/huddle-im/huddle/internal/event"
	"go.uber.org/zap"
)

// Forwarder bridges the in-process bus to the dispatcher. Store-side
// services publish event.Notice values under the push namespace; the
// forwarder turns each one into a websocket fan-out.
type Forwarder struct {
	bus        *bus.Bus
	dispatcher *Dispatcher
	logger     *zap.Logger
	cancel     context.CancelFunc
}

// NewForwarder creates a forwarder; call Start to begin consuming.
func NewForwarder(b *bus.Bus, d *Dispatcher, logger *zap.Logger) *Forwarder {
	return &Forwarder{bus: b, dispatcher: d, logger: logger}
}

// Start subscribes to push notices on the bus and forwards them until
// Stop is called or the context is cancelled.
func (f *Forwarder) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	ch, unsub := f.bus.Subscribe(event.PushNamespace, 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				f.handle(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the forwarder.
func (f *Forwarder) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
}

func (f *Forwarder) handle(evt bus.Event) {
	notice, ok := evt.Payload.(event.Notice)
	if !ok {
		f.logger.Warn("push event with non-notice payload", zap.String("kind", evt.Kind))
		return
	}
	f.dispatcher.NotifyMany(notice.Recipients, notice.Type, notice.Payload)
}
