package chat

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/huddle-im/huddle/internal/apperr"
	"github.com/huddle-im/huddle/internal/bus"
	"github.com/huddle-im/huddle/internal/event"
	"github.com/huddle-im/huddle/internal/store"
	"go.uber.org/zap"
)

func testService(t *testing.T) (*Service, *store.DB, *bus.Bus) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	b := bus.New()
	return NewService(db, b, zap.NewNop()), db, b
}

func seedContacts(t *testing.T, db *store.DB, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := db.UpsertUser(&store.User{ID: id, Email: id + "@x.com", Name: id}); err != nil {
			t.Fatal(err)
		}
	}
	for i := 1; i < len(ids); i++ {
		if err := db.AddContact(ids[0], ids[i]); err != nil {
			t.Fatal(err)
		}
	}
}

func waitNotice(t *testing.T, ch <-chan bus.Event) event.Notice {
	t.Helper()
	select {
	case evt := <-ch:
		return evt.Payload.(event.Notice)
	case <-time.After(time.Second):
		t.Fatal("no notice published")
		return event.Notice{}
	}
}

func TestResolveDirectIsStable(t *testing.T) {
	svc, db, _ := testService(t)
	seedContacts(t, db, "alice", "bob")

	ctx := context.Background()
	c1, err := svc.ResolveDirect(ctx, "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}
	c2, err := svc.ResolveDirect(ctx, "bob", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if c1.ID != c2.ID {
		t.Errorf("resolved %q and %q, want the same chat", c1.ID, c2.ID)
	}
}

func TestResolveDirectRequiresContact(t *testing.T) {
	svc, db, _ := testService(t)
	seedContacts(t, db, "alice")
	seedContacts(t, db, "mallory")

	_, err := svc.ResolveDirect(context.Background(), "alice", "mallory")
	if !apperr.IsForbidden(err) {
		t.Errorf("err = %v, want forbidden", err)
	}
}

func TestResolveDirectNotifiesOnceOnCreate(t *testing.T) {
	svc, db, b := testService(t)
	seedContacts(t, db, "alice", "bob")

	ch, unsub := b.Subscribe(event.PushNamespace, 8)
	defer unsub()

	ctx := context.Background()
	if _, err := svc.ResolveDirect(ctx, "alice", "bob"); err != nil {
		t.Fatal(err)
	}
	notice := waitNotice(t, ch)
	if notice.Type != event.TypeChatCreated {
		t.Errorf("type = %q, want CHAT_CREATED", notice.Type)
	}

	// Re-resolving must not announce again.
	if _, err := svc.ResolveDirect(ctx, "bob", "alice"); err != nil {
		t.Fatal(err)
	}
	select {
	case notice := <-ch:
		t.Errorf("unexpected second notice %v", notice)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCreateGroupGatesOnContacts(t *testing.T) {
	svc, db, _ := testService(t)
	seedContacts(t, db, "alice", "bob", "carol")
	seedContacts(t, db, "mallory")

	ctx := context.Background()

	// One stranger rejects the whole group.
	_, err := svc.CreateGroup(ctx, "alice", "team", []string{"bob", "mallory"})
	if !apperr.IsForbidden(err) {
		t.Fatalf("err = %v, want forbidden", err)
	}

	c, err := svc.CreateGroup(ctx, "alice", "team", []string{"bob", "carol"})
	if err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"alice", "bob", "carol"} {
		ok, err := db.IsParticipant(c.ID, id)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Errorf("%s is not a participant", id)
		}
	}
}

func TestCreateGroupValidation(t *testing.T) {
	svc, db, _ := testService(t)
	seedContacts(t, db, "alice", "bob")

	ctx := context.Background()
	if _, err := svc.CreateGroup(ctx, "alice", "", []string{"bob"}); !apperr.IsInvalid(err) {
		t.Errorf("missing name err = %v, want invalid", err)
	}
	if _, err := svc.CreateGroup(ctx, "alice", "team", nil); !apperr.IsInvalid(err) {
		t.Errorf("empty members err = %v, want invalid", err)
	}
}

func TestSaveMessageNotifiesAllParticipants(t *testing.T) {
	svc, db, b := testService(t)
	seedContacts(t, db, "alice", "bob")

	ctx := context.Background()
	c, err := svc.ResolveDirect(ctx, "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}

	ch, unsub := b.Subscribe(event.PushKind(event.TypeNewMessage), 8)
	defer unsub()

	m, err := svc.SaveMessage(ctx, "alice", SaveMessageInput{ChatID: c.ID, Content: "hello"})
	if err != nil {
		t.Fatal(err)
	}

	notice := waitNotice(t, ch)
	if len(notice.Recipients) != 2 {
		t.Errorf("recipients = %v, want both participants", notice.Recipients)
	}
	payload := notice.Payload.(event.Message)
	if payload.ID != m.ID || payload.SenderName != "alice" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestSaveMessageIdempotent(t *testing.T) {
	svc, db, b := testService(t)
	seedContacts(t, db, "alice", "bob")

	ctx := context.Background()
	c, err := svc.ResolveDirect(ctx, "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}

	ch, unsub := b.Subscribe(event.PushKind(event.TypeNewMessage), 8)
	defer unsub()

	in := SaveMessageInput{ID: "m1", ChatID: c.ID, Content: "hello"}
	if _, err := svc.SaveMessage(ctx, "alice", in); err != nil {
		t.Fatal(err)
	}
	waitNotice(t, ch)

	// Retry with the same id: stored once, pushed once.
	if _, err := svc.SaveMessage(ctx, "alice", in); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ch:
		t.Error("duplicate send must not push again")
	case <-time.After(50 * time.Millisecond):
	}

	msgs, err := svc.ListMessages(ctx, "bob", c.ID, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Errorf("messages = %d, want 1", len(msgs))
	}
}

func TestSaveMessageRequiresParticipant(t *testing.T) {
	svc, db, _ := testService(t)
	seedContacts(t, db, "alice", "bob")
	seedContacts(t, db, "mallory")

	ctx := context.Background()
	c, err := svc.ResolveDirect(ctx, "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.SaveMessage(ctx, "mallory", SaveMessageInput{ChatID: c.ID, Content: "hi"})
	if !apperr.IsForbidden(err) {
		t.Errorf("err = %v, want forbidden", err)
	}
}

func TestMarkReadNotifiesSenders(t *testing.T) {
	svc, db, b := testService(t)
	seedContacts(t, db, "alice", "bob")

	ctx := context.Background()
	c, err := svc.ResolveDirect(ctx, "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SaveMessage(ctx, "bob", SaveMessageInput{ChatID: c.ID, Content: "one"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SaveMessage(ctx, "bob", SaveMessageInput{ChatID: c.ID, Content: "two"}); err != nil {
		t.Fatal(err)
	}

	ch, unsub := b.Subscribe(event.PushKind(event.TypeMessagesRead), 8)
	defer unsub()

	if err := svc.MarkRead(ctx, "alice", c.ID); err != nil {
		t.Fatal(err)
	}

	notice := waitNotice(t, ch)
	if len(notice.Recipients) != 1 || notice.Recipients[0] != "bob" {
		t.Errorf("recipients = %v, want [bob]", notice.Recipients)
	}
	payload := notice.Payload.(event.MessagesRead)
	if payload.ReaderID != "alice" || len(payload.MessageIDs) != 2 {
		t.Errorf("payload = %+v, want reader alice with 2 messages", payload)
	}

	// Everything already read: no further pushes.
	if err := svc.MarkRead(ctx, "alice", c.ID); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ch:
		t.Error("second mark-read must not push")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTypingExcludesSender(t *testing.T) {
	svc, db, b := testService(t)
	seedContacts(t, db, "alice", "bob")

	ctx := context.Background()
	c, err := svc.ResolveDirect(ctx, "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}

	ch, unsub := b.Subscribe(event.PushKind(event.TypeTyping), 8)
	defer unsub()

	if err := svc.Typing(ctx, "alice", c.ID); err != nil {
		t.Fatal(err)
	}
	notice := waitNotice(t, ch)
	if len(notice.Recipients) != 1 || notice.Recipients[0] != "bob" {
		t.Errorf("recipients = %v, want [bob] only", notice.Recipients)
	}
}
