package store

import (
	"database/sql"
	"errors"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// CreateRequest inserts a new chat request. The partial unique index on
// the pending pair is the concurrency backstop: two racing sends for
// the same pair leave exactly one pending row, the loser gets a
// constraint error (see IsConstraint).
func (db *DB) CreateRequest(r *ChatRequest) error {
	lo, hi := PairKey(r.RequesterID, r.RequesteeID)
	now := time.Now().UnixMilli()
	r.CreatedAt = now
	r.UpdatedAt = now
	_, err := db.Exec(`
		INSERT INTO chat_requests (id, requester_id, requestee_id, pair_lo, pair_hi, status, meeting_id, meeting_title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RequesterID, r.RequesteeID, lo, hi, r.Status, r.MeetingID, r.MeetingTitle, now, now)
	return err
}

// IsConstraint reports whether err is a SQLite constraint violation.
func IsConstraint(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint
}

// GetRequest returns a request by id, or nil if unknown.
func (db *DB) GetRequest(id string) (*ChatRequest, error) {
	var r ChatRequest
	err := db.QueryRow(`
		SELECT id, requester_id, requestee_id, status, meeting_id, meeting_title, created_at, updated_at
		FROM chat_requests WHERE id = ?`, id).
		Scan(&r.ID, &r.RequesterID, &r.RequesteeID, &r.Status, &r.MeetingID, &r.MeetingTitle, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// LatestRequestForPair returns the most recent request between the two
// users in either direction, or nil if none exists.
func (db *DB) LatestRequestForPair(a, b string) (*ChatRequest, error) {
	lo, hi := PairKey(a, b)
	var r ChatRequest
	err := db.QueryRow(`
		SELECT id, requester_id, requestee_id, status, meeting_id, meeting_title, created_at, updated_at
		FROM chat_requests
		WHERE pair_lo = ? AND pair_hi = ?
		ORDER BY created_at DESC LIMIT 1`, lo, hi).
		Scan(&r.ID, &r.RequesterID, &r.RequesteeID, &r.Status, &r.MeetingID, &r.MeetingTitle, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteRequest removes a request row. Used when a declined request is
// replaced by a fresh send.
func (db *DB) DeleteRequest(id string) error {
	_, err := db.Exec(`DELETE FROM chat_requests WHERE id = ?`, id)
	return err
}

// SetRequestStatus updates a request's status if it is still pending.
// Returns false when the row was not pending anymore (or unknown), so
// pending is the only state that admits a transition.
func (db *DB) SetRequestStatus(id, status string) (bool, error) {
	res, err := db.Exec(`
		UPDATE chat_requests SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		status, time.Now().UnixMilli(), id, StatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// PendingRequestsFor returns the pending requests received by a user,
// newest first, annotated with the requester's profile.
func (db *DB) PendingRequestsFor(requesteeID string) ([]RequestWithPeer, error) {
	return db.queryRequestsWithPeer(`
		SELECT cr.id, cr.requester_id, cr.requestee_id, cr.status, cr.meeting_id, cr.meeting_title, cr.created_at, cr.updated_at,
			u.id, u.email, u.name, u.avatar_url, u.company, u.job_title, u.created_at
		FROM chat_requests cr
		JOIN users u ON cr.requester_id = u.id
		WHERE cr.requestee_id = ? AND cr.status = ?
		ORDER BY cr.created_at DESC`, requesteeID)
}

// SentRequestsBy returns the pending requests sent by a user, newest
// first, annotated with the requestee's profile.
func (db *DB) SentRequestsBy(requesterID string) ([]RequestWithPeer, error) {
	return db.queryRequestsWithPeer(`
		SELECT cr.id, cr.requester_id, cr.requestee_id, cr.status, cr.meeting_id, cr.meeting_title, cr.created_at, cr.updated_at,
			u.id, u.email, u.name, u.avatar_url, u.company, u.job_title, u.created_at
		FROM chat_requests cr
		JOIN users u ON cr.requestee_id = u.id
		WHERE cr.requester_id = ? AND cr.status = ?
		ORDER BY cr.created_at DESC`, requesterID)
}

func (db *DB) queryRequestsWithPeer(query, userID string) ([]RequestWithPeer, error) {
	rows, err := db.Query(query, userID, StatusPending)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []RequestWithPeer
	for rows.Next() {
		var r RequestWithPeer
		if err := rows.Scan(
			&r.ID, &r.RequesterID, &r.RequesteeID, &r.Status, &r.MeetingID, &r.MeetingTitle, &r.CreatedAt, &r.UpdatedAt,
			&r.Peer.ID, &r.Peer.Email, &r.Peer.Name, &r.Peer.AvatarURL, &r.Peer.Company, &r.Peer.JobTitle, &r.Peer.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
