package store

import (
	"database/sql"
	"time"
)

// UpsertUser inserts a user row or refreshes its email/profile fields.
// Called from the auth layer so that token-bearing identities always
// have a row to join against.
func (db *DB) UpsertUser(u *User) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO users (id, email, name, avatar_url, company, job_title, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE users.name END,
			avatar_url = CASE WHEN excluded.avatar_url != '' THEN excluded.avatar_url ELSE users.avatar_url END`,
		u.ID, u.Email, u.Name, u.AvatarURL, u.Company, u.JobTitle, now)
	return err
}

// GetUser returns a user by id, or nil if unknown.
func (db *DB) GetUser(id string) (*User, error) {
	var u User
	err := db.QueryRow(`
		SELECT id, email, name, avatar_url, company, job_title, created_at
		FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Email, &u.Name, &u.AvatarURL, &u.Company, &u.JobTitle, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
