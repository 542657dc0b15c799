package store

import "time"

// AddContact materializes the symmetric contact relation for a pair.
// Inserting an existing pair is a no-op; the relation is monotonic,
// there is no removal operation.
func (db *DB) AddContact(a, b string) error {
	lo, hi := PairKey(a, b)
	_, err := db.Exec(`
		INSERT INTO contacts (user_lo, user_hi, established_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_lo, user_hi) DO NOTHING`,
		lo, hi, time.Now().UnixMilli())
	return err
}

// IsContact reports whether the pair has an established contact
// relation, regardless of argument order.
func (db *DB) IsContact(a, b string) (bool, error) {
	lo, hi := PairKey(a, b)
	var n int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM contacts WHERE user_lo = ? AND user_hi = ?`,
		lo, hi).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ContactsOf returns a user's contacts with profile fields, sorted by
// display name then email.
func (db *DB) ContactsOf(userID string) ([]Contact, error) {
	rows, err := db.Query(`
		SELECT u.id, u.email, u.name, u.avatar_url, u.company, u.job_title, c.established_at
		FROM contacts c
		JOIN users u ON u.id = CASE WHEN c.user_lo = ? THEN c.user_hi ELSE c.user_lo END
		WHERE c.user_lo = ? OR c.user_hi = ?
		ORDER BY LOWER(COALESCE(NULLIF(u.name, ''), u.email))`,
		userID, userID, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.UserID, &c.Email, &c.Name, &c.AvatarURL, &c.Company, &c.JobTitle, &c.EstablishedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
