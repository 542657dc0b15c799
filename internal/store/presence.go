package store

import (
	"database/sql"
	"time"
)

// UpsertPresence stores a user's latest self-reported status. last_seen
// is refreshed only while online, so it reads as "last time online".
func (db *DB) UpsertPresence(userID, status string) error {
	now := time.Now().UnixMilli()
	var lastSeen any
	if status == "online" {
		lastSeen = now
	}
	_, err := db.Exec(`
		INSERT INTO presence (user_id, status, last_seen, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			status = excluded.status,
			last_seen = COALESCE(excluded.last_seen, presence.last_seen),
			updated_at = excluded.updated_at`,
		userID, status, lastSeen, now)
	return err
}

// GetPresence returns a user's presence, or nil if never reported.
func (db *DB) GetPresence(userID string) (*Presence, error) {
	var p Presence
	var lastSeen sql.NullInt64
	err := db.QueryRow(`
		SELECT user_id, status, last_seen, updated_at FROM presence WHERE user_id = ?`,
		userID).Scan(&p.UserID, &p.Status, &lastSeen, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.LastSeen = lastSeen.Int64
	return &p, nil
}

// BatchPresence returns presence rows for the given users. Users with
// no row are simply absent from the result.
func (db *DB) BatchPresence(userIDs []string) ([]Presence, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query := `SELECT user_id, status, last_seen, updated_at FROM presence WHERE user_id IN (?`
	args := []any{userIDs[0]}
	for _, id := range userIDs[1:] {
		query += ",?"
		args = append(args, id)
	}
	query += ")"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Presence
	for rows.Next() {
		var p Presence
		var lastSeen sql.NullInt64
		if err := rows.Scan(&p.UserID, &p.Status, &lastSeen, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.LastSeen = lastSeen.Int64
		out = append(out, p)
	}
	return out, rows.Err()
}
