// Package dispatch pushes typed events to every live connection of the
// target users. Delivery is best-effort: no acknowledgment, no retry,
// no persistence. A user with zero open connections simply misses the
// push and recovers on their next poll against the store.
package dispatch

import (
	"github.com/huddle-im/huddle/internal/event"
	"github.com/huddle-im/huddle/internal/registry"
	"go.uber.org/zap"
)

// Dispatcher fans one serialized envelope out to all of a user's open
// connections.
type Dispatcher struct {
	reg    *registry.Registry
	logger *zap.Logger
}

// New creates a dispatcher backed by the given registry.
func New(reg *registry.Registry, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{reg: reg, logger: logger}
}

// Notify sends one event to every open connection of a single user.
func (d *Dispatcher) Notify(userID string, t event.Type, payload any) {
	d.NotifyMany([]string{userID}, t, payload)
}

// NotifyMany sends the identical envelope to every open connection of
// every target user. Closed connections are skipped; write failures are
// swallowed, since the connection's own read loop will unregister it.
func (d *Dispatcher) NotifyMany(userIDs []string, t event.Type, payload any) {
	data, err := event.Marshal(t, payload)
	if err != nil {
		d.logger.Error("marshal push event", zap.String("type", string(t)), zap.Error(err))
		return
	}

	for _, userID := range userIDs {
		for _, conn := range d.reg.ConnectionsFor(userID) {
			if !conn.IsOpen() {
				continue
			}
			if err := conn.WriteText(data); err != nil {
				d.logger.Debug("push write failed",
					zap.String("user_id", userID),
					zap.String("type", string(t)),
					zap.Error(err))
			}
		}
	}
}
