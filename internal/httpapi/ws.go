package httpapi

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/huddle-im/huddle/internal/event"
	"github.com/huddle-im/huddle/internal/presence"
	"go.uber.org/zap"
)

// wsConn adapts a websocket connection to the registry. Writes are
// serialized: the dispatcher may fan out from a different goroutine
// than the read loop that eventually closes the connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
	open atomic.Bool
}

func newWSConn(conn *websocket.Conn) *wsConn {
	c := &wsConn{conn: conn}
	c.open.Store(true)
	return c
}

func (c *wsConn) WriteText(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) IsOpen() bool {
	return c.open.Load()
}

func (c *wsConn) markClosed() {
	c.open.Store(false)
}

func (s *Server) wsUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// wsHandler authenticates the ?token= query parameter and registers the
// connection. Browsers cannot set headers on websocket dials, hence the
// query parameter. A bad token is closed with a policy-violation close
// frame before the connection ever reaches the registry.
func (s *Server) wsHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		user, err := s.verifier.Verify(conn.Query("token"))
		if err != nil {
			s.logger.Debug("websocket auth rejected", zap.Error(err))
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token"),
				time.Now().Add(time.Second))
			_ = conn.Close()
			return
		}

		wc := newWSConn(conn)
		s.registry.Register(user.ID, wc)
		s.logger.Info("websocket connected", zap.String("user_id", user.ID))

		defer func() {
			wc.markClosed()
			s.registry.Unregister(user.ID, wc)
			_ = conn.Close()

			// Last device gone: the user reads as offline to contacts.
			if len(s.registry.ConnectionsFor(user.ID)) == 0 {
				if _, err := s.presence.Report(context.Background(), user.ID, presence.StatusOffline); err != nil {
					s.logger.Warn("offline presence report", zap.Error(err))
				}
			}
			s.logger.Info("websocket disconnected", zap.String("user_id", user.ID))
		}()

		ack, err := event.Marshal(event.TypeConnected, event.Connected{UserID: user.ID})
		if err == nil {
			_ = wc.WriteText(ack)
		}
		if _, err := s.presence.Report(context.Background(), user.ID, presence.StatusOnline); err != nil {
			s.logger.Warn("online presence report", zap.Error(err))
		}

		// Server-push only: inbound frames are drained so pings and
		// close frames get processed, payloads are ignored.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}
