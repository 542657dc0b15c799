package store

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// InsertMessage persists a message and updates the chat's denormalized
// last-message fields in one transaction. Idempotent by message id:
// re-sending an id the store already has is a no-op returning false.
func (db *DB) InsertMessage(m *Message) (bool, error) {
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().UnixMilli()
	}

	tx, err := db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`
		INSERT INTO messages (id, chat_id, sender_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		m.ID, m.ChatID, m.SenderID, m.Content, m.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.Exec(`
		UPDATE chats
		SET last_message = ?, last_message_at = ?, last_message_sender_id = ?, updated_at = ?
		WHERE id = ?`,
		truncate(m.Content, 100), m.CreatedAt, m.SenderID, time.Now().UnixMilli(), m.ChatID); err != nil {
		return false, fmt.Errorf("update chat: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// ListMessages returns up to limit messages of a chat in ascending
// creation order, annotated with the sender's display name. A non-zero
// before bound restricts results to messages created strictly earlier,
// for backwards pagination.
func (db *DB) ListMessages(chatID string, limit int, before int64) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT m.id, m.chat_id, m.sender_id, COALESCE(NULLIF(u.name, ''), u.email, ''), m.content,
			COALESCE(m.read_at, 0), m.created_at
		FROM messages m
		LEFT JOIN users u ON u.id = m.sender_id
		WHERE m.chat_id = ? AND m.deleted_at IS NULL`
	args := []any{chatID}
	if before > 0 {
		query += ` AND m.created_at < ?`
		args = append(args, before)
	}
	query += ` ORDER BY m.created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.SenderName, &m.Content, &m.ReadAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query newest-first for the limit, present oldest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// MarkMessagesRead flags every unread message in the chat not sent by
// the reader. Returns the affected message ids grouped by sender, so
// the caller can notify each sender their messages were read.
func (db *DB) MarkMessagesRead(chatID, readerID string) (map[string][]string, error) {
	rows, err := db.Query(`
		SELECT id, sender_id FROM messages
		WHERE chat_id = ? AND sender_id != ? AND read_at IS NULL AND deleted_at IS NULL`,
		chatID, readerID)
	if err != nil {
		return nil, err
	}
	bySender := make(map[string][]string)
	for rows.Next() {
		var id, sender string
		if err := rows.Scan(&id, &sender); err != nil {
			_ = rows.Close()
			return nil, err
		}
		bySender[sender] = append(bySender[sender], id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	if len(bySender) == 0 {
		return bySender, nil
	}

	_, err = db.Exec(`
		UPDATE messages SET read_at = ?
		WHERE chat_id = ? AND sender_id != ? AND read_at IS NULL AND deleted_at IS NULL`,
		time.Now().UnixMilli(), chatID, readerID)
	if err != nil {
		return nil, err
	}
	return bySender, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	// Back off to a rune boundary so the cut never splits a character.
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
