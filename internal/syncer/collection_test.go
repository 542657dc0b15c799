package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/huddle-im/huddle/internal/bus"
	"github.com/huddle-im/huddle/internal/cache"
)

type row struct {
	ID string `json:"id"`
}

type fakeFetch struct {
	mu    sync.Mutex
	rows  []row
	err   error
	calls int
}

func (f *fakeFetch) fetch(_ context.Context) ([]row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]row, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

func (f *fakeFetch) set(rows []row, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows, f.err = rows, err
}

func (f *fakeFetch) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestCollectionServesCacheThenFetches(t *testing.T) {
	dir := t.TempDir()
	cs := cache.New(dir, cache.DefaultTTL)
	if err := cs.PutRaw("rows", "alice", []row{{ID: "cached"}}); err != nil {
		t.Fatal(err)
	}

	fetcher := &fakeFetch{rows: []row{{ID: "fresh"}}}

	var mu sync.Mutex
	var snapshots [][]row
	c := NewCollection(Options[row]{
		Name:     "rows",
		Owner:    "alice",
		Cache:    cs,
		Interval: time.Hour,
		Fetch:    fetcher.fetch,
	})
	c.OnUpdate(func(items []row) {
		mu.Lock()
		snapshots = append(snapshots, items)
		mu.Unlock()
	})

	c.Start(context.Background())
	defer c.Stop()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(snapshots) >= 2
	})

	mu.Lock()
	defer mu.Unlock()
	// Cached snapshot first, then the fetch result even though the
	// cache was a hit.
	if snapshots[0][0].ID != "cached" {
		t.Errorf("first snapshot = %+v, want cached", snapshots[0])
	}
	if snapshots[1][0].ID != "fresh" {
		t.Errorf("second snapshot = %+v, want fresh", snapshots[1])
	}
}

func TestCollectionWritesBackToCache(t *testing.T) {
	cs := cache.New(t.TempDir(), cache.DefaultTTL)
	fetcher := &fakeFetch{rows: []row{{ID: "a"}}}

	c := NewCollection(Options[row]{
		Name:     "rows",
		Owner:    "alice",
		Cache:    cs,
		Interval: time.Hour,
		Fetch:    fetcher.fetch,
	})
	c.Start(context.Background())
	waitFor(t, c.Loaded)
	c.Stop()

	got, ok := cache.Get[[]row](cs, "rows", "alice")
	if !ok || len(got) != 1 || got[0].ID != "a" {
		t.Errorf("cache after fetch = %+v ok=%v", got, ok)
	}
}

func TestCollectionKeepsSnapshotOnFetchError(t *testing.T) {
	fetcher := &fakeFetch{rows: []row{{ID: "a"}}}
	c := NewCollection(Options[row]{
		Name:     "rows",
		Owner:    "alice",
		Interval: time.Hour,
		Fetch:    fetcher.fetch,
	})
	c.Start(context.Background())
	defer c.Stop()
	waitFor(t, c.Loaded)

	fetcher.set(nil, errors.New("network down"))
	c.ForceRefresh()
	waitFor(t, func() bool { return fetcher.callCount() >= 2 })

	items := c.Items()
	if len(items) != 1 || items[0].ID != "a" {
		t.Errorf("items after failed refresh = %+v, want previous snapshot", items)
	}
}

func TestCollectionTriggerEventForcesRefresh(t *testing.T) {
	b := bus.New()
	fetcher := &fakeFetch{rows: []row{{ID: "a"}}}

	c := NewCollection(Options[row]{
		Name:         "rows",
		Owner:        "alice",
		Interval:     time.Hour,
		Fetch:        fetcher.fetch,
		Bus:          b,
		TriggerKinds: []string{"stream.event.PING"},
	})
	c.Start(context.Background())
	defer c.Stop()
	waitFor(t, c.Loaded)
	before := fetcher.callCount()

	// Unrelated kinds are ignored.
	b.Publish(bus.Now("stream.event.OTHER", nil))
	time.Sleep(50 * time.Millisecond)
	if fetcher.callCount() != before {
		t.Error("unrelated event must not refresh")
	}

	fetcher.set([]row{{ID: "b"}}, nil)
	b.Publish(bus.Now("stream.event.PING", nil))
	waitFor(t, func() bool {
		items := c.Items()
		return len(items) == 1 && items[0].ID == "b"
	})
}

func TestCollectionPolls(t *testing.T) {
	fetcher := &fakeFetch{rows: []row{{ID: "a"}}}
	c := NewCollection(Options[row]{
		Name:     "rows",
		Owner:    "alice",
		Interval: 20 * time.Millisecond,
		Fetch:    fetcher.fetch,
	})
	c.Start(context.Background())
	defer c.Stop()

	waitFor(t, func() bool { return fetcher.callCount() >= 3 })
}
