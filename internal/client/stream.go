package client

import (
	"context"
	"strings"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/huddle-im/huddle/internal/bus"
	"github.com/huddle-im/huddle/internal/event"
	"go.uber.org/zap"
)

// EventNamespace is the bus namespace the stream republishes server
// events under; the kind is EventNamespace plus the event type.
const EventNamespace = "stream.event."

// EventKind builds the bus kind for a server event type.
func EventKind(t event.Type) string {
	return EventNamespace + string(t)
}

// maxReconnectAttempts bounds consecutive failed dials before the
// stream gives up and reports Failed.
const maxReconnectAttempts = 5

// Stream maintains the websocket connection to the daemon. Every frame
// is decoded and republished on the local bus, so controllers subscribe
// to bus kinds instead of touching the socket.
type Stream struct {
	url     string
	bus     *bus.Bus
	machine *Machine
	logger  *zap.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewStream creates a stream for the daemon at serverURL authenticated
// by token. Browsers and CLIs alike pass the token as a query
// parameter; the server closes unauthenticated sockets before
// registering them.
func NewStream(serverURL, token string, b *bus.Bus, m *Machine, logger *zap.Logger) *Stream {
	wsURL := strings.Replace(serverURL, "http", "ws", 1) + "/ws?token=" + token
	return &Stream{
		url:     wsURL,
		bus:     b,
		machine: m,
		logger:  logger,
	}
}

// Start connects in the background, reconnecting with exponential
// backoff on failures. It returns immediately; watch the state machine
// for progress.
func (s *Stream) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx)
}

// Stop closes the stream and waits for the run loop to exit.
func (s *Stream) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

func (s *Stream) run(ctx context.Context) {
	defer close(s.done)

	attempts := 0
	for {
		if ctx.Err() != nil {
			s.toState(Disconnected)
			return
		}

		s.toState(Connecting)
		conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
		if err != nil {
			attempts++
			s.logger.Warn("stream dial failed",
				zap.Int("attempt", attempts),
				zap.Error(err))
			if attempts >= maxReconnectAttempts {
				s.toState(Failed)
				return
			}
			s.toState(Reconnecting)
			if !s.sleep(ctx, backoff(attempts)) {
				s.toState(Disconnected)
				return
			}
			continue
		}

		s.toState(Connected)
		attempts = 0
		fatal := s.readLoop(ctx, conn)
		_ = conn.Close()

		if fatal {
			// The server refused the token with a policy-violation
			// close. Redialing with the same token cannot help.
			s.toState(Failed)
			return
		}
		if ctx.Err() != nil {
			s.toState(Disconnected)
			return
		}
		attempts++
		s.toState(Reconnecting)
		if !s.sleep(ctx, backoff(attempts)) {
			s.toState(Disconnected)
			return
		}
	}
}

// readLoop consumes frames until the connection drops. It reports true
// when the server rejected the token, which is not worth retrying.
func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn) bool {
	// Unblock the read when the context is cancelled. The watcher must
	// not outlive this connection or every reconnect parks one more
	// goroutine for the life of the stream.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
				s.logger.Warn("stream rejected by server", zap.Error(err))
				return true
			}
			if ctx.Err() == nil {
				s.logger.Warn("stream read failed", zap.Error(err))
			}
			return false
		}

		typ, payload, err := event.Decode(data)
		if err != nil {
			// An unknown type means server and client drifted; drop the
			// frame rather than guessing.
			s.logger.Warn("stream frame rejected", zap.Error(err))
			continue
		}
		s.bus.Publish(bus.Now(EventKind(typ), payload))
	}
}

func (s *Stream) toState(to State) {
	if err := s.machine.Transition(to); err != nil {
		s.logger.Debug("stream state transition skipped", zap.Error(err))
	}
}

func (s *Stream) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// backoffBase is a variable so tests can shrink the reconnect waits.
var backoffBase = time.Second

// backoff returns the wait before reconnect attempt n: 1s, 2s, 4s...
// capped at 30s.
func backoff(n int) time.Duration {
	d := backoffBase << (n - 1)
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}
