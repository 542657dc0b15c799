package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/huddle-im/huddle/internal/auth"
	"github.com/huddle-im/huddle/internal/bus"
	"github.com/huddle-im/huddle/internal/chat"
	"github.com/huddle-im/huddle/internal/presence"
	"github.com/huddle-im/huddle/internal/registry"
	"github.com/huddle-im/huddle/internal/social"
	"github.com/huddle-im/huddle/internal/store"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func testServer(t *testing.T) *Server {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := zap.NewNop()
	b := bus.New()
	return New(
		auth.NewVerifier(testSecret, db, logger),
		social.NewService(db, b, nil, logger),
		chat.NewService(db, b, logger),
		presence.NewService(db, b, logger),
		registry.New(),
		logger,
	)
}

func token(t *testing.T, sub string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Email: sub + "@x.com",
		Name:  "User " + sub,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func do(t *testing.T, s *Server, method, path, sub string, body any) *http.Response {
	t.Helper()
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		buf = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sub != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, sub))
	}
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatal(err)
	}
}

// register makes a user row exist by hitting any authenticated route.
func register(t *testing.T, s *Server, sub string) {
	t.Helper()
	resp := do(t, s, "GET", "/api/contacts", sub, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("register %s: status %d", sub, resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	s := testServer(t)
	resp := do(t, s, "GET", "/health", "", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestAPIRequiresAuth(t *testing.T) {
	s := testServer(t)
	resp := do(t, s, "GET", "/api/contacts", "", nil)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestRequestLifecycleOverREST(t *testing.T) {
	s := testServer(t)
	register(t, s, "alice")
	register(t, s, "bob")

	// Send.
	resp := do(t, s, "POST", "/api/chat-requests", "alice",
		fiber.Map{"requestee_id": "bob"})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("send status = %d, want 201", resp.StatusCode)
	}
	var r store.ChatRequest
	decode(t, resp, &r)

	// Duplicate send conflicts.
	resp = do(t, s, "POST", "/api/chat-requests", "alice",
		fiber.Map{"requestee_id": "bob"})
	if resp.StatusCode != fiber.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", resp.StatusCode)
	}

	// Bob sees it pending.
	resp = do(t, s, "GET", "/api/chat-requests/pending", "bob", nil)
	var pending []store.RequestWithPeer
	decode(t, resp, &pending)
	if len(pending) != 1 || pending[0].ID != r.ID {
		t.Fatalf("pending = %+v, want the sent request", pending)
	}

	// A third party cannot accept.
	register(t, s, "eve")
	resp = do(t, s, "POST", "/api/chat-requests/"+r.ID+"/accept", "eve", nil)
	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("third-party accept status = %d, want 403", resp.StatusCode)
	}

	// Bob accepts; a chat id comes back.
	resp = do(t, s, "POST", "/api/chat-requests/"+r.ID+"/accept", "bob", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("accept status = %d, want 200", resp.StatusCode)
	}
	var accepted struct {
		ChatID string `json:"chat_id"`
	}
	decode(t, resp, &accepted)
	if accepted.ChatID == "" {
		t.Fatal("accept returned no chat id")
	}

	// Accepting twice conflicts.
	resp = do(t, s, "POST", "/api/chat-requests/"+r.ID+"/accept", "bob", nil)
	if resp.StatusCode != fiber.StatusConflict {
		t.Errorf("double accept status = %d, want 409", resp.StatusCode)
	}

	// They are contacts now.
	resp = do(t, s, "GET", "/api/contacts/check/bob", "alice", nil)
	var check struct {
		IsContact bool `json:"is_contact"`
	}
	decode(t, resp, &check)
	if !check.IsContact {
		t.Error("contact check = false after accept")
	}
}

func TestDeclineUnknownRequestIs404(t *testing.T) {
	s := testServer(t)
	register(t, s, "alice")

	resp := do(t, s, "POST", "/api/chat-requests/nope/decline", "alice", nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRelationStatusQuery(t *testing.T) {
	s := testServer(t)
	register(t, s, "alice")
	register(t, s, "bob")

	resp := do(t, s, "GET", "/api/chat-requests/status?otherUserId=bob", "alice", nil)
	var out struct {
		Status string `json:"status"`
	}
	decode(t, resp, &out)
	if out.Status != social.RelationNone {
		t.Errorf("status = %q, want none", out.Status)
	}

	do(t, s, "POST", "/api/chat-requests", "alice", fiber.Map{"requestee_id": "bob"})

	resp = do(t, s, "GET", "/api/chat-requests/status?otherUserId=alice", "bob", nil)
	decode(t, resp, &out)
	if out.Status != social.RelationPendingReceived {
		t.Errorf("status = %q, want pending_received", out.Status)
	}
}

func acceptedPair(t *testing.T, s *Server, a, b string) string {
	t.Helper()
	register(t, s, a)
	register(t, s, b)
	resp := do(t, s, "POST", "/api/chat-requests", a, fiber.Map{"requestee_id": b})
	var r store.ChatRequest
	decode(t, resp, &r)
	resp = do(t, s, "POST", "/api/chat-requests/"+r.ID+"/accept", b, nil)
	var out struct {
		ChatID string `json:"chat_id"`
	}
	decode(t, resp, &out)
	return out.ChatID
}

func TestDirectChatResolution(t *testing.T) {
	s := testServer(t)
	chatID := acceptedPair(t, s, "alice", "bob")

	resp := do(t, s, "POST", "/api/chats/direct", "alice", fiber.Map{"other_user_id": "bob"})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var c store.Chat
	decode(t, resp, &c)
	if c.ID != chatID {
		t.Errorf("resolved chat %q, want the accept-time chat %q", c.ID, chatID)
	}

	// Strangers cannot resolve a chat.
	register(t, s, "mallory")
	resp = do(t, s, "POST", "/api/chats/direct", "mallory", fiber.Map{"other_user_id": "alice"})
	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("stranger status = %d, want 403", resp.StatusCode)
	}
}

func TestGroupChatGating(t *testing.T) {
	s := testServer(t)
	acceptedPair(t, s, "alice", "bob")
	register(t, s, "mallory")

	resp := do(t, s, "POST", "/api/chats/group", "alice",
		fiber.Map{"name": "team", "member_ids": []string{"bob", "mallory"}})
	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("stranger member status = %d, want 403", resp.StatusCode)
	}

	resp = do(t, s, "POST", "/api/chats/group", "alice",
		fiber.Map{"name": "team", "member_ids": []string{"bob"}})
	if resp.StatusCode != fiber.StatusCreated {
		t.Errorf("status = %d, want 201", resp.StatusCode)
	}
}

func TestMessageFlow(t *testing.T) {
	s := testServer(t)
	chatID := acceptedPair(t, s, "alice", "bob")

	resp := do(t, s, "POST", "/api/messages", "alice",
		fiber.Map{"id": "m1", "chat_id": chatID, "content": "hello"})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("send status = %d, want 201", resp.StatusCode)
	}

	// Retry with the same id is accepted, not duplicated.
	resp = do(t, s, "POST", "/api/messages", "alice",
		fiber.Map{"id": "m1", "chat_id": chatID, "content": "hello"})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("retry status = %d, want 201", resp.StatusCode)
	}

	resp = do(t, s, "GET", "/api/messages/"+chatID, "bob", nil)
	var msgs []store.Message
	decode(t, resp, &msgs)
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}

	// Non-participants get 403 on history.
	register(t, s, "mallory")
	resp = do(t, s, "GET", "/api/messages/"+chatID, "mallory", nil)
	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("outsider status = %d, want 403", resp.StatusCode)
	}

	resp = do(t, s, "POST", "/api/messages/"+chatID+"/read", "bob", nil)
	if resp.StatusCode != fiber.StatusNoContent {
		t.Errorf("mark-read status = %d, want 204", resp.StatusCode)
	}
	resp = do(t, s, "POST", "/api/messages/"+chatID+"/typing", "bob", nil)
	if resp.StatusCode != fiber.StatusNoContent {
		t.Errorf("typing status = %d, want 204", resp.StatusCode)
	}
}

func TestPresenceRoutes(t *testing.T) {
	s := testServer(t)
	register(t, s, "alice")

	resp := do(t, s, "PUT", "/api/presence", "alice", fiber.Map{"status": "busy"})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("report status = %d, want 200", resp.StatusCode)
	}

	resp = do(t, s, "PUT", "/api/presence", "alice", fiber.Map{"status": "sleeping"})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("bad status code = %d, want 400", resp.StatusCode)
	}

	resp = do(t, s, "GET", "/api/presence/alice", "alice", nil)
	var p store.Presence
	decode(t, resp, &p)
	if p.Status != "busy" {
		t.Errorf("status = %q, want busy", p.Status)
	}

	resp = do(t, s, "POST", "/api/presence/batch", "alice",
		fiber.Map{"user_ids": []string{"alice", "ghost"}})
	var rows []store.Presence
	decode(t, resp, &rows)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[1].Status != "offline" {
		t.Errorf("ghost status = %q, want offline", rows[1].Status)
	}
}
