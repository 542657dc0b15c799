package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/huddle-im/huddle/internal/apperr"
	"github.com/huddle-im/huddle/internal/auth"
	"github.com/huddle-im/huddle/internal/chat"
	"github.com/huddle-im/huddle/internal/social"
	"github.com/huddle-im/huddle/internal/store"
)

func (s *Server) handleSendRequest(c *fiber.Ctx) error {
	user := auth.UserFrom(c)
	var in social.SendRequestInput
	if err := c.BodyParser(&in); err != nil {
		return writeError(c, apperr.ErrInvalid)
	}
	r, err := s.social.SendRequest(c.Context(), user.ID, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(r)
}

func (s *Server) handleAcceptRequest(c *fiber.Ctx) error {
	user := auth.UserFrom(c)
	chatID, err := s.social.Accept(c.Context(), user.ID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"status":  store.StatusAccepted,
		"chat_id": chatID,
	})
}

func (s *Server) handleDeclineRequest(c *fiber.Ctx) error {
	user := auth.UserFrom(c)
	if err := s.social.Decline(c.Context(), user.ID, c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"status": store.StatusDeclined})
}

func (s *Server) handlePendingRequests(c *fiber.Ctx) error {
	user := auth.UserFrom(c)
	requests, err := s.social.PendingRequests(c.Context(), user.ID)
	if err != nil {
		return writeError(c, err)
	}
	if requests == nil {
		requests = []store.RequestWithPeer{}
	}
	return c.JSON(requests)
}

func (s *Server) handleSentRequests(c *fiber.Ctx) error {
	user := auth.UserFrom(c)
	requests, err := s.social.SentRequests(c.Context(), user.ID)
	if err != nil {
		return writeError(c, err)
	}
	if requests == nil {
		requests = []store.RequestWithPeer{}
	}
	return c.JSON(requests)
}

func (s *Server) handleRelationStatus(c *fiber.Ctx) error {
	user := auth.UserFrom(c)
	otherID := c.Query("otherUserId")
	if otherID == "" {
		return writeError(c, apperr.ErrInvalid)
	}
	status, err := s.social.RelationStatus(c.Context(), user.ID, otherID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"status": status})
}

func (s *Server) handleContacts(c *fiber.Ctx) error {
	user := auth.UserFrom(c)
	contacts, err := s.social.Contacts(c.Context(), user.ID)
	if err != nil {
		return writeError(c, err)
	}
	if contacts == nil {
		contacts = []store.Contact{}
	}
	return c.JSON(contacts)
}

func (s *Server) handleContactCheck(c *fiber.Ctx) error {
	user := auth.UserFrom(c)
	status, err := s.social.RelationStatus(c.Context(), user.ID, c.Params("userId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"is_contact": status == social.RelationContact})
}

func (s *Server) handleListChats(c *fiber.Ctx) error {
	user := auth.UserFrom(c)
	chats, err := s.chat.ListChats(c.Context(), user.ID)
	if err != nil {
		return writeError(c, err)
	}
	if chats == nil {
		chats = []store.ChatSummary{}
	}
	return c.JSON(chats)
}

func (s *Server) handleResolveDirect(c *fiber.Ctx) error {
	user := auth.UserFrom(c)
	var in struct {
		OtherUserID string `json:"other_user_id"`
	}
	if err := c.BodyParser(&in); err != nil {
		return writeError(c, apperr.ErrInvalid)
	}
	chat, err := s.chat.ResolveDirect(c.Context(), user.ID, in.OtherUserID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(chat)
}

func (s *Server) handleCreateGroup(c *fiber.Ctx) error {
	user := auth.UserFrom(c)
	var in struct {
		Name      string   `json:"name"`
		MemberIDs []string `json:"member_ids"`
	}
	if err := c.BodyParser(&in); err != nil {
		return writeError(c, apperr.ErrInvalid)
	}
	chat, err := s.chat.CreateGroup(c.Context(), user.ID, in.Name, in.MemberIDs)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(chat)
}

func (s *Server) handleGetChat(c *fiber.Ctx) error {
	user := auth.UserFrom(c)
	chat, err := s.chat.GetChat(c.Context(), user.ID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(chat)
}

func (s *Server) handleUpdateLastMessage(c *fiber.Ctx) error {
	user := auth.UserFrom(c)
	var in struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&in); err != nil {
		return writeError(c, apperr.ErrInvalid)
	}
	if err := s.chat.UpdateLastMessage(c.Context(), user.ID, c.Params("id"), in.Text); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleListMessages(c *fiber.Ctx) error {
	user := auth.UserFrom(c)
	limit := c.QueryInt("limit", 50)
	before := int64(c.QueryInt("before", 0))
	msgs, err := s.chat.ListMessages(c.Context(), user.ID, c.Params("chatId"), limit, before)
	if err != nil {
		return writeError(c, err)
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	return c.JSON(msgs)
}

func (s *Server) handleSendMessage(c *fiber.Ctx) error {
	user := auth.UserFrom(c)
	var in chat.SaveMessageInput
	if err := c.BodyParser(&in); err != nil {
		return writeError(c, apperr.ErrInvalid)
	}
	m, err := s.chat.SaveMessage(c.Context(), user.ID, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

func (s *Server) handleMarkRead(c *fiber.Ctx) error {
	user := auth.UserFrom(c)
	if err := s.chat.MarkRead(c.Context(), user.ID, c.Params("chatId")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleTyping(c *fiber.Ctx) error {
	user := auth.UserFrom(c)
	if err := s.chat.Typing(c.Context(), user.ID, c.Params("chatId")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleReportPresence(c *fiber.Ctx) error {
	user := auth.UserFrom(c)
	var in struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&in); err != nil {
		return writeError(c, apperr.ErrInvalid)
	}
	p, err := s.presence.Report(c.Context(), user.ID, in.Status)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(p)
}

func (s *Server) handleGetPresence(c *fiber.Ctx) error {
	p, err := s.presence.Get(c.Context(), c.Params("userId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(p)
}

func (s *Server) handleBatchPresence(c *fiber.Ctx) error {
	var in struct {
		UserIDs []string `json:"user_ids"`
	}
	if err := c.BodyParser(&in); err != nil {
		return writeError(c, apperr.ErrInvalid)
	}
	rows, err := s.presence.Batch(c.Context(), in.UserIDs)
	if err != nil {
		return writeError(c, err)
	}
	if rows == nil {
		rows = []store.Presence{}
	}
	return c.JSON(rows)
}
