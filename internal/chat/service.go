// Package chat implements conversation resolution and messaging. Direct
// chats are resolved, never created twice: one chat exists per contact
// pair regardless of who opens it first. Group chats are created
// explicitly from the creator's contacts.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huddle-im/huddle/internal/apperr"
	"github.com/huddle-im/huddle/internal/bus"
	"github.com/huddle-im/huddle/internal/event"
	"github.com/huddle-im/huddle/internal/store"
	"go.uber.org/zap"
)

// Service owns chats and messages. Like the social service it is
// transport-free: pushes leave as notices on the bus.
type Service struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
}

// NewService creates the chat service.
func NewService(db *store.DB, b *bus.Bus, logger *zap.Logger) *Service {
	return &Service{db: db, bus: b, logger: logger}
}

// ResolveDirect returns the direct chat between caller and other,
// creating it if it does not exist yet. The two must be contacts;
// messaging outside the contact relation is refused. Both (caller,
// other) and (other, caller) resolve to the same chat.
func (s *Service) ResolveDirect(ctx context.Context, callerID, otherID string) (*store.Chat, error) {
	if otherID == "" || otherID == callerID {
		return nil, fmt.Errorf("%w: bad counterpart", apperr.ErrInvalid)
	}

	isContact, err := s.db.IsContact(callerID, otherID)
	if err != nil {
		return nil, fmt.Errorf("check contact: %w", err)
	}
	if !isContact {
		return nil, fmt.Errorf("%w: not a contact", apperr.ErrForbidden)
	}

	chatID, created, err := s.db.GetOrCreateDirectChat(callerID, otherID, uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("resolve direct chat: %w", err)
	}
	if created {
		s.push([]string{callerID, otherID}, event.TypeChatCreated, event.ChatCreated{
			ChatID:    chatID,
			ChatType:  store.ChatDirect,
			CreatedBy: callerID,
		})
		s.logger.Info("direct chat created", zap.String("chat_id", chatID))
	}

	c, err := s.db.GetChat(chatID)
	if err != nil {
		return nil, fmt.Errorf("load chat: %w", err)
	}
	return c, nil
}

// CreateGroup creates a group chat from the caller's contacts. Every
// member must be a contact of the creator; a single stranger in the
// list rejects the whole creation.
func (s *Service) CreateGroup(ctx context.Context, callerID, name string, memberIDs []string) (*store.Chat, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: missing group name", apperr.ErrInvalid)
	}
	if len(memberIDs) == 0 {
		return nil, fmt.Errorf("%w: empty member list", apperr.ErrInvalid)
	}

	members := make([]string, 0, len(memberIDs)+1)
	seen := map[string]bool{callerID: true}
	members = append(members, callerID)
	for _, id := range memberIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		isContact, err := s.db.IsContact(callerID, id)
		if err != nil {
			return nil, fmt.Errorf("check contact: %w", err)
		}
		if !isContact {
			return nil, fmt.Errorf("%w: %s is not a contact", apperr.ErrForbidden, id)
		}
		members = append(members, id)
	}

	c := &store.Chat{
		ID:        uuid.NewString(),
		Type:      store.ChatGroup,
		Name:      name,
		CreatedBy: callerID,
	}
	if err := s.db.CreateGroupChat(c, members); err != nil {
		return nil, fmt.Errorf("create group chat: %w", err)
	}

	s.push(members, event.TypeChatCreated, event.ChatCreated{
		ChatID:    c.ID,
		ChatType:  store.ChatGroup,
		Name:      name,
		CreatedBy: callerID,
	})

	s.logger.Info("group chat created",
		zap.String("chat_id", c.ID),
		zap.Int("members", len(members)))
	return c, nil
}

// ListChats returns the caller's chats, most recent activity first.
func (s *Service) ListChats(ctx context.Context, userID string) ([]store.ChatSummary, error) {
	return s.db.ListChats(userID)
}

// GetChat returns one chat the caller participates in.
func (s *Service) GetChat(ctx context.Context, callerID, chatID string) (*store.Chat, error) {
	if err := s.requireParticipant(chatID, callerID); err != nil {
		return nil, err
	}
	c, err := s.db.GetChat(chatID)
	if err != nil {
		return nil, fmt.Errorf("load chat: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: chat %s", apperr.ErrNotFound, chatID)
	}
	return c, nil
}

// SaveMessageInput is the payload for SaveMessage. ID is chosen by the
// sender so that retries after a dropped response stay idempotent.
type SaveMessageInput struct {
	ID      string `json:"id"`
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
}

// SaveMessage persists a message and pushes it to every participant,
// the sender's other devices included. Re-sending an id the chat
// already has returns the stored message without a second push.
func (s *Service) SaveMessage(ctx context.Context, senderID string, in SaveMessageInput) (*store.Message, error) {
	if in.Content == "" {
		return nil, fmt.Errorf("%w: empty message", apperr.ErrInvalid)
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if err := s.requireParticipant(in.ChatID, senderID); err != nil {
		return nil, err
	}

	m := &store.Message{
		ID:       in.ID,
		ChatID:   in.ChatID,
		SenderID: senderID,
		Content:  in.Content,
	}
	inserted, err := s.db.InsertMessage(m)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if !inserted {
		return m, nil
	}

	participants, err := s.db.ParticipantIDs(in.ChatID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	sender, err := s.db.GetUser(senderID)
	if err != nil {
		s.logger.Warn("lookup sender for notification", zap.Error(err))
	}
	payload := event.Message{
		ID:       m.ID,
		ChatID:   m.ChatID,
		SenderID: m.SenderID,
		Content:  m.Content,
		SentAt:   m.CreatedAt,
	}
	if sender != nil {
		payload.SenderName = sender.Name
	}
	s.push(participants, event.TypeNewMessage, payload)

	return m, nil
}

// ListMessages returns a page of a chat's messages in ascending time
// order. before is an exclusive unix-ms cursor; zero means latest page.
func (s *Service) ListMessages(ctx context.Context, callerID, chatID string, limit int, before int64) ([]store.Message, error) {
	if err := s.requireParticipant(chatID, callerID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.db.ListMessages(chatID, limit, before)
}

// UpdateLastMessage overwrites a chat's denormalized preview fields.
// Clients that import history out of band use it to keep the chat list
// consistent without replaying messages.
func (s *Service) UpdateLastMessage(ctx context.Context, callerID, chatID, text string) error {
	if err := s.requireParticipant(chatID, callerID); err != nil {
		return err
	}
	if err := s.db.SetLastMessage(chatID, text, callerID, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("update last message: %w", err)
	}
	return nil
}

// MarkRead marks every unread message addressed to the reader in a
// chat. Each affected sender gets one MESSAGES_READ push listing their
// own messages only.
func (s *Service) MarkRead(ctx context.Context, readerID, chatID string) error {
	if err := s.requireParticipant(chatID, readerID); err != nil {
		return err
	}

	bySender, err := s.db.MarkMessagesRead(chatID, readerID)
	if err != nil {
		return fmt.Errorf("mark messages read: %w", err)
	}
	for senderID, messageIDs := range bySender {
		s.push([]string{senderID}, event.TypeMessagesRead, event.MessagesRead{
			ChatID:     chatID,
			ReaderID:   readerID,
			MessageIDs: messageIDs,
		})
	}
	return nil
}

// Typing pushes a transient typing indicator to the other participants.
// Nothing is persisted and the sender's own devices are excluded.
func (s *Service) Typing(ctx context.Context, userID, chatID string) error {
	if err := s.requireParticipant(chatID, userID); err != nil {
		return err
	}

	participants, err := s.db.ParticipantIDs(chatID)
	if err != nil {
		return fmt.Errorf("list participants: %w", err)
	}
	others := participants[:0]
	for _, id := range participants {
		if id != userID {
			others = append(others, id)
		}
	}
	if len(others) == 0 {
		return nil
	}
	s.push(others, event.TypeTyping, event.Typing{ChatID: chatID, UserID: userID})
	return nil
}

func (s *Service) requireParticipant(chatID, userID string) error {
	ok, err := s.db.IsParticipant(chatID, userID)
	if err != nil {
		return fmt.Errorf("check participant: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: not a participant of chat %s", apperr.ErrForbidden, chatID)
	}
	return nil
}

func (s *Service) push(recipients []string, t event.Type, payload any) {
	s.bus.Publish(bus.Now(event.PushKind(t), event.Notice{
		Recipients: recipients,
		Type:       t,
		Payload:    payload,
	}))
}
