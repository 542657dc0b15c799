package store

import (
	"database/sql"
	"fmt"
	"time"
)

// GetOrCreateDirectChat returns the direct chat for the unordered pair
// (a, b), creating it if needed. The unique pair_key index guarantees a
// single row under concurrent calls from both participants: the losing
// insert is a no-op and the subsequent select returns the winner's id.
func (db *DB) GetOrCreateDirectChat(a, b, newID string) (chatID string, created bool, err error) {
	lo, hi := PairKey(a, b)
	pairKey := lo + ":" + hi
	now := time.Now().UnixMilli()

	tx, err := db.Begin()
	if err != nil {
		return "", false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`
		INSERT INTO chats (id, type, created_by, pair_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(pair_key) WHERE pair_key IS NOT NULL DO NOTHING`,
		newID, ChatDirect, a, pairKey, now, now)
	if err != nil {
		return "", false, fmt.Errorf("insert chat: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", false, err
	}
	created = n == 1

	if err := tx.QueryRow(`SELECT id FROM chats WHERE pair_key = ?`, pairKey).Scan(&chatID); err != nil {
		return "", false, fmt.Errorf("select chat by pair: %w", err)
	}

	for _, userID := range []string{a, b} {
		if _, err := tx.Exec(`
			INSERT INTO chat_participants (chat_id, user_id, joined_at)
			VALUES (?, ?, ?)
			ON CONFLICT(chat_id, user_id) DO NOTHING`,
			chatID, userID, now); err != nil {
			return "", false, fmt.Errorf("insert participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("commit: %w", err)
	}
	return chatID, created, nil
}

// CreateGroupChat creates a group chat with the given members in one
// transaction. The creator must be part of memberIDs.
func (db *DB) CreateGroupChat(c *Chat, memberIDs []string) error {
	now := time.Now().UnixMilli()
	c.Type = ChatGroup
	c.CreatedAt = now
	c.UpdatedAt = now

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		INSERT INTO chats (id, type, name, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, ChatGroup, c.Name, c.CreatedBy, now, now); err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}

	for _, userID := range memberIDs {
		if _, err := tx.Exec(`
			INSERT INTO chat_participants (chat_id, user_id, joined_at)
			VALUES (?, ?, ?)
			ON CONFLICT(chat_id, user_id) DO NOTHING`,
			c.ID, userID, now); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}

	return tx.Commit()
}

// GetChat returns a chat by id, or nil if unknown.
func (db *DB) GetChat(id string) (*Chat, error) {
	var c Chat
	var lastAt sql.NullInt64
	err := db.QueryRow(`
		SELECT id, type, name, created_by, last_message, last_message_at, last_message_sender_id, created_at, updated_at
		FROM chats WHERE id = ?`, id).
		Scan(&c.ID, &c.Type, &c.Name, &c.CreatedBy, &c.LastMessage, &lastAt, &c.LastMessageSenderID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.LastMessageAt = lastAt.Int64
	return &c, nil
}

// ListChats returns every chat the user participates in, annotated with
// the counterpart profile for direct chats, ordered by most recent
// activity (last message, then update, then creation) descending.
func (db *DB) ListChats(userID string) ([]ChatSummary, error) {
	rows, err := db.Query(`
		SELECT c.id, c.type, c.name, c.created_by, c.last_message, c.last_message_at, c.last_message_sender_id,
			c.created_at, c.updated_at,
			COALESCE(c.last_message_at, c.updated_at, c.created_at) AS sort_date,
			u.id, u.email, u.name, u.avatar_url, u.company, u.job_title, u.created_at
		FROM chats c
		JOIN chat_participants cp ON cp.chat_id = c.id AND cp.user_id = ?
		LEFT JOIN chat_participants ocp ON ocp.chat_id = c.id AND ocp.user_id != ? AND c.type = ?
		LEFT JOIN users u ON u.id = ocp.user_id
		ORDER BY sort_date DESC`,
		userID, userID, ChatDirect)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []ChatSummary
	for rows.Next() {
		var s ChatSummary
		var lastAt sql.NullInt64
		var peerID, peerEmail, peerName, peerAvatar, peerCompany, peerJob sql.NullString
		var peerCreated sql.NullInt64
		if err := rows.Scan(
			&s.ID, &s.Type, &s.Name, &s.CreatedBy, &s.LastMessage, &lastAt, &s.LastMessageSenderID,
			&s.CreatedAt, &s.UpdatedAt, &s.SortDate,
			&peerID, &peerEmail, &peerName, &peerAvatar, &peerCompany, &peerJob, &peerCreated,
		); err != nil {
			return nil, err
		}
		s.LastMessageAt = lastAt.Int64
		if peerID.Valid {
			s.Counterpart = &User{
				ID:        peerID.String,
				Email:     peerEmail.String,
				Name:      peerName.String,
				AvatarURL: peerAvatar.String,
				Company:   peerCompany.String,
				JobTitle:  peerJob.String,
				CreatedAt: peerCreated.Int64,
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// IsParticipant reports whether the user belongs to the chat.
func (db *DB) IsParticipant(chatID, userID string) (bool, error) {
	var n int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM chat_participants WHERE chat_id = ? AND user_id = ?`,
		chatID, userID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ParticipantIDs returns the ids of every participant of a chat.
func (db *DB) ParticipantIDs(chatID string) ([]string, error) {
	rows, err := db.Query(`SELECT user_id FROM chat_participants WHERE chat_id = ?`, chatID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// SetLastMessage updates a chat's denormalized last-message fields.
func (db *DB) SetLastMessage(chatID, text, senderID string, at int64) error {
	_, err := db.Exec(`
		UPDATE chats
		SET last_message = ?, last_message_at = ?, last_message_sender_id = ?, updated_at = ?
		WHERE id = ?`,
		text, at, senderID, time.Now().UnixMilli(), chatID)
	return err
}
