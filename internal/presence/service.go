// Package presence tracks self-reported user status. Status is
// advisory: clients report, the server stores the latest word and
// pushes changes to the reporter's contacts. Users who never reported
// read as offline.
package presence

import (
	"context"
	"fmt"

	"github.com/huddle-im/huddle/internal/apperr"
	"github.com/huddle-im/huddle/internal/bus"
	"github.com/huddle-im/huddle/internal/event"
	"github.com/huddle-im/huddle/internal/store"
	"go.uber.org/zap"
)

// Recognized status values.
const (
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusBusy    = "busy"
	StatusDND     = "dnd"
	StatusOffline = "offline"
)

func validStatus(s string) bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusDND, StatusOffline:
		return true
	}
	return false
}

// Service stores presence reports and fans changes out to contacts.
type Service struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
}

// NewService creates the presence service.
func NewService(db *store.DB, b *bus.Bus, logger *zap.Logger) *Service {
	return &Service{db: db, bus: b, logger: logger}
}

// Report stores a user's status and pushes the change to every contact.
// Reporting the same status again is harmless; the push still goes out
// so reconnecting contacts converge.
func (s *Service) Report(ctx context.Context, userID, status string) (*store.Presence, error) {
	if !validStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", apperr.ErrInvalid, status)
	}

	if err := s.db.UpsertPresence(userID, status); err != nil {
		return nil, fmt.Errorf("store presence: %w", err)
	}
	p, err := s.db.GetPresence(userID)
	if err != nil {
		return nil, fmt.Errorf("load presence: %w", err)
	}

	contacts, err := s.db.ContactsOf(userID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	if len(contacts) > 0 {
		recipients := make([]string, len(contacts))
		for i, c := range contacts {
			recipients[i] = c.UserID
		}
		s.bus.Publish(bus.Now(event.PushKind(event.TypePresenceChanged), event.Notice{
			Recipients: recipients,
			Type:       event.TypePresenceChanged,
			Payload: event.PresenceChanged{
				UserID:   userID,
				Status:   p.Status,
				LastSeen: p.LastSeen,
			},
		}))
	}
	return p, nil
}

// Get returns one user's presence. Unknown or silent users read as
// offline rather than absent.
func (s *Service) Get(ctx context.Context, userID string) (*store.Presence, error) {
	p, err := s.db.GetPresence(userID)
	if err != nil {
		return nil, fmt.Errorf("load presence: %w", err)
	}
	if p == nil {
		return &store.Presence{UserID: userID, Status: StatusOffline}, nil
	}
	return p, nil
}

// Batch returns presence for a set of users, offline-filled so every
// requested id appears exactly once in the result.
func (s *Service) Batch(ctx context.Context, userIDs []string) ([]store.Presence, error) {
	rows, err := s.db.BatchPresence(userIDs)
	if err != nil {
		return nil, fmt.Errorf("load presence batch: %w", err)
	}

	byID := make(map[string]store.Presence, len(rows))
	for _, p := range rows {
		byID[p.UserID] = p
	}

	out := make([]store.Presence, 0, len(userIDs))
	seen := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := byID[id]; ok {
			out = append(out, p)
		} else {
			out = append(out, store.Presence{UserID: id, Status: StatusOffline})
		}
	}
	return out, nil
}
