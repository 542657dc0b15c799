package store

// Chat request lifecycle states. Pending is the only state that admits
// a transition; accepted and declined are terminal.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
)

// Chat kinds.
const (
	ChatDirect = "direct"
	ChatGroup  = "group"
)

// User is a registered identity. Identity issuance happens elsewhere;
// rows here are replicas of token claims plus profile fields.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Company   string `json:"company,omitempty"`
	JobTitle  string `json:"job_title,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// ChatRequest is a proposed social edge awaiting decision.
type ChatRequest struct {
	ID           string `json:"id"`
	RequesterID  string `json:"requester_id"`
	RequesteeID  string `json:"requestee_id"`
	Status       string `json:"status"`
	MeetingID    string `json:"meeting_id,omitempty"`
	MeetingTitle string `json:"meeting_title,omitempty"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

// RequestWithPeer is a chat request annotated with the other party's
// profile: the requester for received requests, the requestee for sent.
type RequestWithPeer struct {
	ChatRequest
	Peer User `json:"peer"`
}

// Contact is one row of the symmetric contact relation, presented from
// the perspective of the querying user.
type Contact struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	Company       string `json:"company,omitempty"`
	JobTitle      string `json:"job_title,omitempty"`
	EstablishedAt int64  `json:"established_at"`
}

// Chat is a direct or group conversation with denormalized last-message
// fields, updated on every new message independently of message rows.
type Chat struct {
	ID                  string `json:"id"`
	Type                string `json:"type"`
	Name                string `json:"name,omitempty"`
	CreatedBy           string `json:"created_by"`
	LastMessage         string `json:"last_message,omitempty"`
	LastMessageAt       int64  `json:"last_message_at,omitempty"`
	LastMessageSenderID string `json:"last_message_sender_id,omitempty"`
	CreatedAt           int64  `json:"created_at"`
	UpdatedAt           int64  `json:"updated_at"`
}

// ChatSummary is one entry of a user's chat list. Counterpart is set
// for direct chats only.
type ChatSummary struct {
	Chat
	Counterpart *User `json:"counterpart,omitempty"`
	SortDate    int64 `json:"sort_date"`
}

// Message is a persisted chat message.
type Message struct {
	ID         string `json:"id"`
	ChatID     string `json:"chat_id"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name,omitempty"`
	Content    string `json:"content"`
	ReadAt     int64  `json:"read_at,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

// Presence is a user's latest self-reported status.
type Presence struct {
	UserID    string `json:"user_id"`
	Status    string `json:"status"`
	LastSeen  int64  `json:"last_seen,omitempty"`
	UpdatedAt int64  `json:"updated_at"`
}

// PairKey returns the order-independent key for a pair of user ids.
// Both (a,b) and (b,a) map to the same key.
func PairKey(a, b string) (lo, hi string) {
	if a < b {
		return a, b
	}
	return b, a
}
