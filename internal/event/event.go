// Package event defines the wire-level event set pushed from the server
// to connected clients. The set is closed: every type has exactly one
// payload struct and Decode rejects anything it does not know, so
// producer and consumer cannot drift apart silently.
package event

import (
	"encoding/json"
	"fmt"
)

// Type names a server-to-client push event.
type Type string

const (
	TypeConnected       Type = "CONNECTED"
	TypeNewChatRequest  Type = "NEW_CHAT_REQUEST"
	TypeRequestAccepted Type = "REQUEST_ACCEPTED"
	TypeRequestDeclined Type = "REQUEST_DECLINED"
	TypeChatCreated     Type = "CHAT_CREATED"
	TypeNewMessage      Type = "NEW_MESSAGE"
	TypeMessagesRead    Type = "MESSAGES_READ"
	TypeTyping          Type = "TYPING"
	TypePresenceChanged Type = "PRESENCE_CHANGED"
)

// Envelope is the JSON frame written to every websocket connection.
type Envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Connected acknowledges a successful authenticated handshake.
type Connected struct {
	UserID string `json:"user_id"`
}

// ChatRequest describes a chat request visible to one of its parties.
type ChatRequest struct {
	ID            string `json:"id"`
	RequesterID   string `json:"requester_id"`
	RequesteeID   string `json:"requestee_id"`
	Status        string `json:"status"`
	RequesterName string `json:"requester_name,omitempty"`
	MeetingID     string `json:"meeting_id,omitempty"`
	MeetingTitle  string `json:"meeting_title,omitempty"`
	CreatedAt     int64  `json:"created_at"`
}

// RequestResolved reports a request leaving the pending state. ChatID is
// set on accept, when the direct chat has been created alongside the
// contact relation.
type RequestResolved struct {
	RequestID   string `json:"request_id"`
	RequesterID string `json:"requester_id"`
	RequesteeID string `json:"requestee_id"`
	Status      string `json:"status"`
	ChatID      string `json:"chat_id,omitempty"`
}

// ChatCreated announces a chat the recipient now participates in.
type ChatCreated struct {
	ChatID    string `json:"chat_id"`
	ChatType  string `json:"chat_type"`
	Name      string `json:"name,omitempty"`
	CreatedBy string `json:"created_by"`
}

// Message carries a newly persisted chat message.
type Message struct {
	ID         string `json:"id"`
	ChatID     string `json:"chat_id"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name,omitempty"`
	Content    string `json:"content"`
	SentAt     int64  `json:"sent_at"`
}

// MessagesRead tells a sender that their messages in a chat were read.
type MessagesRead struct {
	ChatID     string   `json:"chat_id"`
	ReaderID   string   `json:"reader_id"`
	MessageIDs []string `json:"message_ids,omitempty"`
}

// Typing is a transient typing indicator; nothing is persisted.
type Typing struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
}

// PresenceChanged reports another user's presence transition.
type PresenceChanged struct {
	UserID   string `json:"user_id"`
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen,omitempty"`
}

// Marshal serializes one envelope. The same bytes are written to every
// connection of every target user; there is no per-device customization.
func Marshal(t Type, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, Data: data})
}

// Decode parses an envelope and returns the concrete payload for its
// type. Unknown types are an error, never silently ignored.
func Decode(raw []byte) (Type, any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, fmt.Errorf("decode envelope: %w", err)
	}

	var payload any
	switch env.Type {
	case TypeConnected:
		payload = &Connected{}
	case TypeNewChatRequest:
		payload = &ChatRequest{}
	case TypeRequestAccepted, TypeRequestDeclined:
		payload = &RequestResolved{}
	case TypeChatCreated:
		payload = &ChatCreated{}
	case TypeNewMessage:
		payload = &Message{}
	case TypeMessagesRead:
		payload = &MessagesRead{}
	case TypeTyping:
		payload = &Typing{}
	case TypePresenceChanged:
		payload = &PresenceChanged{}
	default:
		return env.Type, nil, fmt.Errorf("unknown event type %q", env.Type)
	}

	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, payload); err != nil {
			return env.Type, nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
	}
	return env.Type, payload, nil
}
