// Package cache is a directory-backed response cache for the CLI.
// Entries are JSON files carrying the payload and a write timestamp;
// reads within the TTL are hits, anything older or unreadable is a miss
// and gets evicted. Readers show cached data immediately and refresh in
// the background, so staleness is bounded by the TTL.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultTTL bounds how stale a served entry may be.
const DefaultTTL = 5 * time.Minute

// keyVersion is bumped when the entry format changes; old files then
// read as misses and are swept.
const keyVersion = "v1"

const keyPrefix = "huddle_cache"

type envelope struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Store reads and writes cache entries under one directory. Keys are
// (collection, owner) pairs: the collection names what is cached, the
// owner scopes it to a user so switching accounts never leaks data.
type Store struct {
	dir string
	ttl time.Duration

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a store rooted at dir. A non-positive ttl falls back to
// DefaultTTL.
func New(dir string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{dir: dir, ttl: ttl, now: time.Now}
}

func (s *Store) path(collection, owner string) string {
	name := fmt.Sprintf("%s_%s_%s_%s.json", keyPrefix, keyVersion, collection, owner)
	return filepath.Join(s.dir, name)
}

// GetRaw returns the cached payload for a key, or a miss when the entry
// is absent, expired or unreadable. Expired and corrupt entries are
// evicted on the spot.
func (s *Store) GetRaw(collection, owner string) (json.RawMessage, bool) {
	path := s.path(collection, owner)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		_ = os.Remove(path)
		return nil, false
	}
	if s.expired(env.Timestamp) {
		_ = os.Remove(path)
		return nil, false
	}
	return env.Data, true
}

// PutRaw stores a payload under a key, stamped now.
func (s *Store) PutRaw(collection, owner string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal cache payload: %w", err)
	}
	env, err := json.Marshal(envelope{Data: data, Timestamp: s.now().UnixMilli()})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}
	return os.WriteFile(s.path(collection, owner), env, 0600)
}

// Evict removes one entry. Missing entries are fine.
func (s *Store) Evict(collection, owner string) {
	_ = os.Remove(s.path(collection, owner))
}

// Sweep removes every expired or unreadable entry in the directory and
// reports how many were removed. Files that are not cache entries are
// left alone.
func (s *Store) Sweep() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}

	removed := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, keyPrefix+"_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		path := filepath.Join(s.dir, name)

		// Entries from older key versions never get read again.
		if !strings.HasPrefix(name, keyPrefix+"_"+keyVersion+"_") {
			_ = os.Remove(path)
			removed++
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil || s.expired(env.Timestamp) {
			_ = os.Remove(path)
			removed++
		}
	}
	return removed
}

func (s *Store) expired(timestamp int64) bool {
	age := s.now().Sub(time.UnixMilli(timestamp))
	return age > s.ttl
}

// Get decodes the cached payload for a key into T.
func Get[T any](s *Store, collection, owner string) (T, bool) {
	var out T
	raw, ok := s.GetRaw(collection, owner)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		s.Evict(collection, owner)
		return out, false
	}
	return out, true
}

// MergeByID combines a fresh server response with cached items. Fresh
// items are authoritative and keep their order; cached items whose id
// the fresh response no longer contains are appended, so local state
// survives a partial response until the next full one.
func MergeByID[T any](fresh, cached []T, id func(T) string) []T {
	seen := make(map[string]bool, len(fresh))
	out := make([]T, 0, len(fresh)+len(cached))
	for _, item := range fresh {
		seen[id(item)] = true
		out = append(out, item)
	}
	for _, item := range cached {
		if !seen[id(item)] {
			out = append(out, item)
		}
	}
	return out
}
