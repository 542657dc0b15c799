// Package client talks to a huddle daemon: a REST client for the API
// routes and a websocket stream that republished pushed events on a
// local bus. The CLI builds its controllers on top of both.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/huddle-im/huddle/internal/apperr"
	"github.com/huddle-im/huddle/internal/store"
)

// REST is an authenticated HTTP client for the daemon's API.
type REST struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewREST creates a client for the daemon at baseURL using the given
// bearer token.
func NewREST(baseURL, token string) *REST {
	return &REST{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *REST) do(ctx context.Context, method, path string, body, out any) error {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		buf = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		// Network failures are transient: callers may retry or serve
		// cached data.
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return apiError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func apiError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	msg := body.Error
	if msg == "" {
		msg = resp.Status
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusBadRequest:
		sentinel = apperr.ErrInvalid
	case http.StatusUnauthorized:
		sentinel = apperr.ErrUnauthorized
	case http.StatusForbidden:
		sentinel = apperr.ErrForbidden
	case http.StatusNotFound:
		sentinel = apperr.ErrNotFound
	case http.StatusConflict:
		sentinel = apperr.ErrConflict
	default:
		return fmt.Errorf("server error: %s", msg)
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}

// SendChatRequest sends a new chat request.
func (c *REST) SendChatRequest(ctx context.Context, requesteeID, meetingID, meetingTitle string) (*store.ChatRequest, error) {
	var out store.ChatRequest
	err := c.do(ctx, http.MethodPost, "/api/chat-requests", map[string]string{
		"requestee_id":  requesteeID,
		"meeting_id":    meetingID,
		"meeting_title": meetingTitle,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AcceptRequest accepts a pending chat request and returns the direct
// chat's id.
func (c *REST) AcceptRequest(ctx context.Context, requestID string) (string, error) {
	var out struct {
		ChatID string `json:"chat_id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/chat-requests/"+requestID+"/accept", nil, &out)
	return out.ChatID, err
}

// DeclineRequest declines (or, as the requester, cancels) a request.
func (c *REST) DeclineRequest(ctx context.Context, requestID string) error {
	return c.do(ctx, http.MethodPost, "/api/chat-requests/"+requestID+"/decline", nil, nil)
}

// PendingRequests returns the requests waiting on the caller.
func (c *REST) PendingRequests(ctx context.Context) ([]store.RequestWithPeer, error) {
	var out []store.RequestWithPeer
	err := c.do(ctx, http.MethodGet, "/api/chat-requests/pending", nil, &out)
	return out, err
}

// SentRequests returns the caller's pending sent requests.
func (c *REST) SentRequests(ctx context.Context) ([]store.RequestWithPeer, error) {
	var out []store.RequestWithPeer
	err := c.do(ctx, http.MethodGet, "/api/chat-requests/sent", nil, &out)
	return out, err
}

// RelationStatus describes the edge between the caller and otherID.
func (c *REST) RelationStatus(ctx context.Context, otherID string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	err := c.do(ctx, http.MethodGet, "/api/chat-requests/status?otherUserId="+otherID, nil, &out)
	return out.Status, err
}

// Contacts returns the caller's contact list.
func (c *REST) Contacts(ctx context.Context) ([]store.Contact, error) {
	var out []store.Contact
	err := c.do(ctx, http.MethodGet, "/api/contacts", nil, &out)
	return out, err
}

// ListChats returns the caller's annotated chat list.
func (c *REST) ListChats(ctx context.Context) ([]store.ChatSummary, error) {
	var out []store.ChatSummary
	err := c.do(ctx, http.MethodGet, "/api/chats", nil, &out)
	return out, err
}

// ResolveDirect returns the direct chat with otherID, creating it on
// first use.
func (c *REST) ResolveDirect(ctx context.Context, otherID string) (*store.Chat, error) {
	var out store.Chat
	err := c.do(ctx, http.MethodPost, "/api/chats/direct", map[string]string{
		"other_user_id": otherID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateGroup creates a group chat from the caller's contacts.
func (c *REST) CreateGroup(ctx context.Context, name string, memberIDs []string) (*store.Chat, error) {
	var out store.Chat
	err := c.do(ctx, http.MethodPost, "/api/chats/group", map[string]any{
		"name":       name,
		"member_ids": memberIDs,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMessages returns a page of chat history in ascending order.
func (c *REST) ListMessages(ctx context.Context, chatID string, limit int, before int64) ([]store.Message, error) {
	path := "/api/messages/" + chatID + "?limit=" + strconv.Itoa(limit)
	if before > 0 {
		path += "&before=" + strconv.FormatInt(before, 10)
	}
	var out []store.Message
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// SendMessage persists a message. id may be empty; passing the same id
// again is a safe retry.
func (c *REST) SendMessage(ctx context.Context, id, chatID, content string) (*store.Message, error) {
	var out store.Message
	err := c.do(ctx, http.MethodPost, "/api/messages", map[string]string{
		"id":      id,
		"chat_id": chatID,
		"content": content,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead marks a chat's messages to the caller as read.
func (c *REST) MarkRead(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodPost, "/api/messages/"+chatID+"/read", nil, nil)
}

// Typing sends a transient typing indicator.
func (c *REST) Typing(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodPost, "/api/messages/"+chatID+"/typing", nil, nil)
}

// ReportPresence sets the caller's status.
func (c *REST) ReportPresence(ctx context.Context, status string) (*store.Presence, error) {
	var out store.Presence
	err := c.do(ctx, http.MethodPut, "/api/presence", map[string]string{
		"status": status,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// BatchPresence returns presence rows for a set of users.
func (c *REST) BatchPresence(ctx context.Context, userIDs []string) ([]store.Presence, error) {
	var out []store.Presence
	err := c.do(ctx, http.MethodPost, "/api/presence/batch", map[string]any{
		"user_ids": userIDs,
	}, &out)
	return out, err
}
