package syncer

import (
	"context"
	"time"

	"github.com/huddle-im/huddle/internal/bus"
	"github.com/huddle-im/huddle/internal/cache"
	"github.com/huddle-im/huddle/internal/client"
	"github.com/huddle-im/huddle/internal/event"
	"github.com/huddle-im/huddle/internal/store"
	"go.uber.org/zap"
)

// Poll intervals. Requests poll fastest since a waiting requester sees
// nothing until the requestee's client notices; presence is cheapest to
// be wrong about.
const (
	RequestsInterval = 5 * time.Second
	ChatsInterval    = 10 * time.Second
	ContactsInterval = 15 * time.Second
	PresenceInterval = 30 * time.Second
)

// SweepInterval is how often expired cache entries are pruned.
const SweepInterval = 10 * time.Minute

// Syncer composes the collection controllers for one signed-in user:
// pending requests, contacts, chats and contact presence, plus the
// request watcher and the unread tracker fed by pushed events.
type Syncer struct {
	Requests *Collection[store.RequestWithPeer]
	Contacts *Collection[store.Contact]
	Chats    *Collection[store.ChatSummary]
	Presence *Collection[store.Presence]
	Unread   *UnreadTracker

	bus    *bus.Bus
	cache  *cache.Store
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a syncer on top of a REST client and the local bus the
// stream republishes events on. onNewRequest fires once per pending
// request the user has not seen, the first load included.
func New(
	rest *client.REST,
	b *bus.Bus,
	cacheStore *cache.Store,
	userID string,
	onNewRequest func(store.RequestWithPeer),
	logger *zap.Logger,
) *Syncer {
	s := &Syncer{
		bus:    b,
		cache:  cacheStore,
		logger: logger,
		Unread: NewUnreadTracker(userID),
	}

	s.Requests = NewCollection(Options[store.RequestWithPeer]{
		Name:     "requests",
		Owner:    userID,
		Cache:    cacheStore,
		Interval: RequestsInterval,
		Fetch:    rest.PendingRequests,
		Bus:      b,
		TriggerKinds: []string{
			client.EventKind(event.TypeNewChatRequest),
			client.EventKind(event.TypeRequestAccepted),
			client.EventKind(event.TypeRequestDeclined),
		},
		Logger: logger,
	})
	if onNewRequest != nil {
		watcher := NewRequestWatcher(onNewRequest)
		s.Requests.OnUpdate(watcher.Observe)
	}

	s.Contacts = NewCollection(Options[store.Contact]{
		Name:     "contacts",
		Owner:    userID,
		Cache:    cacheStore,
		Interval: ContactsInterval,
		Fetch:    rest.Contacts,
		Bus:      b,
		TriggerKinds: []string{
			client.EventKind(event.TypeRequestAccepted),
		},
		Logger: logger,
	})

	s.Chats = NewCollection(Options[store.ChatSummary]{
		Name:     "chats",
		Owner:    userID,
		Cache:    cacheStore,
		Interval: ChatsInterval,
		Fetch:    rest.ListChats,
		Bus:      b,
		TriggerKinds: []string{
			client.EventKind(event.TypeChatCreated),
			client.EventKind(event.TypeNewMessage),
		},
		Logger: logger,
	})

	s.Presence = NewCollection(Options[store.Presence]{
		Name:     "presence",
		Owner:    userID,
		Interval: PresenceInterval,
		Fetch: func(ctx context.Context) ([]store.Presence, error) {
			contacts := s.Contacts.Items()
			if len(contacts) == 0 {
				return nil, nil
			}
			ids := make([]string, len(contacts))
			for i, c := range contacts {
				ids[i] = c.UserID
			}
			return rest.BatchPresence(ctx, ids)
		},
		Bus: b,
		TriggerKinds: []string{
			client.EventKind(event.TypePresenceChanged),
		},
		Logger: logger,
	})

	return s
}

// Start begins all controllers and the unread feed.
func (s *Syncer) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	s.Requests.Start(ctx)
	s.Contacts.Start(ctx)
	s.Chats.Start(ctx)
	s.Presence.Start(ctx)

	ch, unsub := s.bus.Subscribe(client.EventKind(event.TypeNewMessage), 64)
	go func() {
		defer close(s.done)
		defer unsub()
		sweep := time.NewTicker(SweepInterval)
		defer sweep.Stop()
		for {
			select {
			case evt := <-ch:
				if m, ok := evt.Payload.(*event.Message); ok {
					s.Unread.HandleMessage(*m)
				}
			case <-sweep.C:
				if s.cache != nil {
					if n := s.cache.Sweep(); n > 0 {
						s.logger.Debug("cache sweep", zap.Int("removed", n))
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts every controller.
func (s *Syncer) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.Requests.Stop()
	s.Contacts.Stop()
	s.Chats.Stop()
	s.Presence.Stop()
	if s.done != nil {
		<-s.done
	}
}

// PresenceOf returns the latest known presence for a user, defaulting
// to offline.
func (s *Syncer) PresenceOf(userID string) store.Presence {
	for _, p := range s.Presence.Items() {
		if p.UserID == userID {
			return p
		}
	}
	return store.Presence{UserID: userID, Status: "offline"}
}
