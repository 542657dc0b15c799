// Package social implements the chat-request and contact state machine.
// A request is a proposed edge between two users: the requestee accepts
// or declines it, and acceptance atomically establishes the contact
// relation plus the pair's direct chat.
package social

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/huddle-im/huddle/internal/apperr"
	"github.com/huddle-im/huddle/internal/bus"
	"github.com/huddle-im/huddle/internal/event"
	"github.com/huddle-im/huddle/internal/store"
	"go.uber.org/zap"
)

// MeetingConfirmer confirms event attendance for a user. Accepting a
// chat request that carries a meeting reference also confirms the
// requestee's attendance through this interface; the scheduling system
// itself lives elsewhere.
type MeetingConfirmer interface {
	ConfirmAttendance(ctx context.Context, meetingID, userID string) error
}

// Service owns request and contact mutations. It never touches the
// websocket layer: side effects go out as notices on the bus.
type Service struct {
	db       *store.DB
	bus      *bus.Bus
	meetings MeetingConfirmer
	logger   *zap.Logger
}

// NewService creates the social service. meetings may be nil when no
// scheduling backend is configured.
func NewService(db *store.DB, b *bus.Bus, meetings MeetingConfirmer, logger *zap.Logger) *Service {
	return &Service{db: db, bus: b, meetings: meetings, logger: logger}
}

// SendRequestInput is the payload for SendRequest.
type SendRequestInput struct {
	RequesteeID  string `json:"requestee_id"`
	MeetingID    string `json:"meeting_id,omitempty"`
	MeetingTitle string `json:"meeting_title,omitempty"`
}

// SendRequest creates a pending request from requester to requestee.
// There is at most one pending request per pair in either direction; a
// previously declined request is replaced by the fresh one. Requests
// toward an existing contact are a conflict.
func (s *Service) SendRequest(ctx context.Context, requesterID string, in SendRequestInput) (*store.ChatRequest, error) {
	if in.RequesteeID == "" || in.RequesteeID == requesterID {
		return nil, fmt.Errorf("%w: bad requestee", apperr.ErrInvalid)
	}

	requestee, err := s.db.GetUser(in.RequesteeID)
	if err != nil {
		return nil, fmt.Errorf("lookup requestee: %w", err)
	}
	if requestee == nil {
		return nil, fmt.Errorf("%w: user %s", apperr.ErrNotFound, in.RequesteeID)
	}

	isContact, err := s.db.IsContact(requesterID, in.RequesteeID)
	if err != nil {
		return nil, fmt.Errorf("check contact: %w", err)
	}
	if isContact {
		return nil, fmt.Errorf("%w: already contacts", apperr.ErrConflict)
	}

	prev, err := s.db.LatestRequestForPair(requesterID, in.RequesteeID)
	if err != nil {
		return nil, fmt.Errorf("check existing request: %w", err)
	}
	if prev != nil {
		switch prev.Status {
		case store.StatusPending:
			return nil, fmt.Errorf("%w: request already pending", apperr.ErrConflict)
		case store.StatusAccepted:
			return nil, fmt.Errorf("%w: already accepted", apperr.ErrConflict)
		case store.StatusDeclined:
			// A declined request does not block forever; the fresh send
			// replaces it.
			if err := s.db.DeleteRequest(prev.ID); err != nil {
				return nil, fmt.Errorf("replace declined request: %w", err)
			}
		}
	}

	r := &store.ChatRequest{
		ID:           uuid.NewString(),
		RequesterID:  requesterID,
		RequesteeID:  in.RequesteeID,
		Status:       store.StatusPending,
		MeetingID:    in.MeetingID,
		MeetingTitle: in.MeetingTitle,
	}
	if err := s.db.CreateRequest(r); err != nil {
		if store.IsConstraint(err) {
			// Lost a race against a concurrent send for the same pair.
			return nil, fmt.Errorf("%w: request already pending", apperr.ErrConflict)
		}
		return nil, fmt.Errorf("create request: %w", err)
	}

	requester, err := s.db.GetUser(requesterID)
	if err != nil {
		s.logger.Warn("lookup requester for notification", zap.Error(err))
	}
	payload := event.ChatRequest{
		ID:           r.ID,
		RequesterID:  r.RequesterID,
		RequesteeID:  r.RequesteeID,
		Status:       r.Status,
		MeetingID:    r.MeetingID,
		MeetingTitle: r.MeetingTitle,
		CreatedAt:    r.CreatedAt,
	}
	if requester != nil {
		payload.RequesterName = requester.Name
	}
	s.push([]string{r.RequesteeID}, event.TypeNewChatRequest, payload)

	s.logger.Info("chat request sent",
		zap.String("request_id", r.ID),
		zap.String("requester", r.RequesterID),
		zap.String("requestee", r.RequesteeID))
	return r, nil
}

// Accept moves a pending request to accepted. Only the requestee may
// accept. On success the contact relation and the pair's direct chat
// exist, the requester is notified, and a linked meeting (if any) has
// its attendance confirmed.
func (s *Service) Accept(ctx context.Context, callerID, requestID string) (string, error) {
	r, err := s.db.GetRequest(requestID)
	if err != nil {
		return "", fmt.Errorf("lookup request: %w", err)
	}
	if r == nil {
		return "", fmt.Errorf("%w: request %s", apperr.ErrNotFound, requestID)
	}
	if r.RequesteeID != callerID {
		return "", fmt.Errorf("%w: only the requestee can accept", apperr.ErrForbidden)
	}

	ok, err := s.db.SetRequestStatus(requestID, store.StatusAccepted)
	if err != nil {
		return "", fmt.Errorf("accept request: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: request already resolved", apperr.ErrConflict)
	}

	if err := s.db.AddContact(r.RequesterID, r.RequesteeID); err != nil {
		return "", fmt.Errorf("add contact: %w", err)
	}

	chatID, created, err := s.db.GetOrCreateDirectChat(r.RequesterID, r.RequesteeID, uuid.NewString())
	if err != nil {
		return "", fmt.Errorf("create direct chat: %w", err)
	}

	if r.MeetingID != "" && s.meetings != nil {
		// Attendance confirmation rides along with the accept but must
		// not undo it: failures are logged and the accept stands.
		if err := s.meetings.ConfirmAttendance(ctx, r.MeetingID, callerID); err != nil {
			s.logger.Warn("meeting attendance confirmation failed",
				zap.String("meeting_id", r.MeetingID),
				zap.Error(err))
		}
	}

	s.push([]string{r.RequesterID}, event.TypeRequestAccepted, event.RequestResolved{
		RequestID:   r.ID,
		RequesterID: r.RequesterID,
		RequesteeID: r.RequesteeID,
		Status:      store.StatusAccepted,
		ChatID:      chatID,
	})
	if created {
		s.push([]string{r.RequesterID, r.RequesteeID}, event.TypeChatCreated, event.ChatCreated{
			ChatID:    chatID,
			ChatType:  store.ChatDirect,
			CreatedBy: r.RequesteeID,
		})
	}

	s.logger.Info("chat request accepted",
		zap.String("request_id", r.ID),
		zap.String("chat_id", chatID))
	return chatID, nil
}

// Decline moves a pending request to declined. The requestee declines;
// the requester may call it too, which acts as a cancellation. The
// other party is notified either way.
func (s *Service) Decline(ctx context.Context, callerID, requestID string) error {
	r, err := s.db.GetRequest(requestID)
	if err != nil {
		return fmt.Errorf("lookup request: %w", err)
	}
	if r == nil {
		return fmt.Errorf("%w: request %s", apperr.ErrNotFound, requestID)
	}
	if callerID != r.RequesteeID && callerID != r.RequesterID {
		return fmt.Errorf("%w: not a party to this request", apperr.ErrForbidden)
	}

	ok, err := s.db.SetRequestStatus(requestID, store.StatusDeclined)
	if err != nil {
		return fmt.Errorf("decline request: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: request already resolved", apperr.ErrConflict)
	}

	other := r.RequesterID
	if callerID == r.RequesterID {
		other = r.RequesteeID
	}
	s.push([]string{other}, event.TypeRequestDeclined, event.RequestResolved{
		RequestID:   r.ID,
		RequesterID: r.RequesterID,
		RequesteeID: r.RequesteeID,
		Status:      store.StatusDeclined,
	})

	s.logger.Info("chat request declined", zap.String("request_id", r.ID))
	return nil
}

// PendingRequests returns the pending requests received by a user.
func (s *Service) PendingRequests(ctx context.Context, userID string) ([]store.RequestWithPeer, error) {
	return s.db.PendingRequestsFor(userID)
}

// SentRequests returns the pending requests a user has sent.
func (s *Service) SentRequests(ctx context.Context, userID string) ([]store.RequestWithPeer, error) {
	return s.db.SentRequestsBy(userID)
}

// Contacts returns a user's contact list.
func (s *Service) Contacts(ctx context.Context, userID string) ([]store.Contact, error) {
	return s.db.ContactsOf(userID)
}

// Relation states between two users, as reported by RelationStatus.
const (
	RelationNone            = "none"
	RelationContact         = "contact"
	RelationPendingSent     = "pending_sent"
	RelationPendingReceived = "pending_received"
)

// RelationStatus describes the edge between caller and other: contact,
// pending in either direction, or none. Declined history reads as none
// so a fresh request is possible.
func (s *Service) RelationStatus(ctx context.Context, callerID, otherID string) (string, error) {
	isContact, err := s.db.IsContact(callerID, otherID)
	if err != nil {
		return "", fmt.Errorf("check contact: %w", err)
	}
	if isContact {
		return RelationContact, nil
	}

	r, err := s.db.LatestRequestForPair(callerID, otherID)
	if err != nil {
		return "", fmt.Errorf("check request: %w", err)
	}
	if r == nil || r.Status != store.StatusPending {
		return RelationNone, nil
	}
	if r.RequesterID == callerID {
		return RelationPendingSent, nil
	}
	return RelationPendingReceived, nil
}

func (s *Service) push(recipients []string, t event.Type, payload any) {
	s.bus.Publish(bus.Now(event.PushKind(t), event.Notice{
		Recipients: recipients,
		Type:       t,
		Payload:    payload,
	}))
}
