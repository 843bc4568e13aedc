// Package transport owns the client's single persistent realtime
// connection: the authenticated websocket dial, bounded exponential-backoff
// reconnection, and a typed publish/subscribe bus for inbound events. It
// knows nothing about chat semantics.
package transport

import (
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultBaseDelay     = time.Second
	maxReconnectAttempts = 5
	handshakeTimeout     = 10 * time.Second
	writeWait            = 10 * time.Second
)

// ConnState is the socket's connection state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

// SendResult is the outcome of a TrySend attempt. NotConnected means the
// caller should use its fallback path; it is never an error.
type SendResult int

const (
	Sent SendResult = iota
	NotConnected
)

// Handler receives dispatched events. Handlers run on the socket's read
// goroutine and must not block.
type Handler func(Event)

// Socket is the client's realtime connection. One instance exists per
// running client; all lifecycle transitions are announced on the bus via the
// reserved EventConnect/EventDisconnect/EventError kinds.
type Socket struct {
	url       string
	logger    *slog.Logger
	dialer    *websocket.Dialer
	baseDelay time.Duration

	mu          sync.Mutex
	conn        *websocket.Conn
	state       ConnState
	token       string
	intentional bool
	attempts    int
	reconnect   *time.Timer

	writeMu sync.Mutex

	subsMu sync.RWMutex
	subs   map[EventKind]map[string]Handler
}

// Option configures a Socket.
type Option func(*Socket)

// WithBackoff overrides the base reconnect delay. Tests use this to keep
// the exponential schedule in the millisecond range.
func WithBackoff(base time.Duration) Option {
	return func(s *Socket) { s.baseDelay = base }
}

// NewSocket creates a socket for the given ws:// or wss:// URL. The socket
// starts disconnected; call Connect to open it.
func NewSocket(wsURL string, logger *slog.Logger, opts ...Option) *Socket {
	s := &Socket{
		url:    wsURL,
		logger: logger,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
		baseDelay: defaultBaseDelay,
		subs:      make(map[EventKind]map[string]Handler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current connection state.
func (s *Socket) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect opens the connection, authenticating with token. It is a no-op if
// the socket is already connected or connecting. An empty token falls back
// to the token from a previous Connect; with no token at all the call logs
// and aborts without dialing.
func (s *Socket) Connect(token string) {
	s.mu.Lock()
	if token == "" {
		token = s.token
	}
	if token == "" {
		s.mu.Unlock()
		s.logger.Warn("socket connect skipped: no auth token")
		return
	}
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return
	}
	s.token = token
	s.intentional = false
	s.state = StateConnecting
	s.mu.Unlock()

	go s.dial(token)
}

// Disconnect closes the connection intentionally: the pending reconnect
// timer (if any) is cancelled, the peer gets a normal-closure frame, and no
// auto-reconnect fires afterwards.
func (s *Socket) Disconnect() {
	s.mu.Lock()
	s.intentional = true
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
	conn := s.conn
	s.conn = nil
	wasOpen := s.state == StateConnected
	s.state = StateDisconnected
	s.attempts = 0
	s.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(writeWait)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
		conn.Close()
	}
	if wasOpen {
		s.dispatch(Event{Kind: EventDisconnect})
	}
	s.logger.Info("socket disconnected")
}

// TrySend serializes {event, data} onto the open connection. When no
// connection is open it logs a warning and reports NotConnected so the
// caller can take its fallback path.
func (s *Socket) TrySend(kind EventKind, payload any) SendResult {
	s.mu.Lock()
	conn := s.conn
	connected := s.state == StateConnected
	s.mu.Unlock()

	if !connected || conn == nil {
		s.logger.Warn("socket send skipped: not connected", "event", kind)
		return NotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(frame{Event: kind, Data: marshalData(payload)}); err != nil {
		s.logger.Warn("socket write failed", "event", kind, "error", err)
		return NotConnected
	}
	return Sent
}

// On subscribes h to events of the given kind and returns an unsubscribe
// closure, the only way to detach that one subscription. Multiple
// subscribers per kind fan out; a panicking subscriber does not prevent its
// peers from running.
func (s *Socket) On(kind EventKind, h Handler) func() {
	id := uuid.New().String()

	s.subsMu.Lock()
	if s.subs[kind] == nil {
		s.subs[kind] = make(map[string]Handler)
	}
	s.subs[kind][id] = h
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs[kind], id)
		s.subsMu.Unlock()
	}
}

// dial runs off the caller's goroutine: Connect never blocks.
func (s *Socket) dial(token string) {
	conn, _, err := s.dialer.Dial(s.url+"?token="+url.QueryEscape(token), nil)

	s.mu.Lock()
	if s.intentional {
		// Disconnect raced the dial; drop whatever we got.
		s.state = StateDisconnected
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		s.state = StateDisconnected
		s.scheduleReconnectLocked()
		s.mu.Unlock()
		s.logger.Warn("socket dial failed", "error", err)
		s.dispatch(Event{Kind: EventError, Payload: err})
		return
	}
	s.conn = conn
	s.state = StateConnected
	s.attempts = 0
	s.mu.Unlock()

	s.logger.Info("socket connected")
	s.dispatch(Event{Kind: EventConnect})
	go s.readLoop(conn)
}

// readLoop pumps inbound frames until the connection dies. Malformed frames
// are logged and dropped; the loop keeps going.
func (s *Socket) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.handleClose(conn, err)
			return
		}

		ev, derr := decodeFrame(data)
		if derr != nil {
			s.logger.Warn("dropping malformed frame", "error", derr)
			continue
		}
		s.dispatch(ev)
	}
}

func (s *Socket) handleClose(conn *websocket.Conn, err error) {
	s.mu.Lock()
	if s.conn != conn {
		// A stale read loop from a connection already replaced or torn down.
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.state = StateDisconnected
	intentional := s.intentional
	normal := websocket.IsCloseError(err, websocket.CloseNormalClosure)
	if !intentional && !normal {
		s.scheduleReconnectLocked()
	}
	s.mu.Unlock()

	if !intentional {
		s.logger.Warn("socket closed", "error", err)
		s.dispatch(Event{Kind: EventError, Payload: err})
	}
	s.dispatch(Event{Kind: EventDisconnect})
}

// scheduleReconnectLocked arms the backoff timer: base * 2^attempt, giving
// 1s, 2s, 4s, 8s, 16s at the default base. After maxReconnectAttempts the
// socket stays down until the next explicit Connect. Caller holds s.mu.
func (s *Socket) scheduleReconnectLocked() {
	if s.attempts >= maxReconnectAttempts {
		s.logger.Warn("reconnect attempts exhausted", "attempts", s.attempts)
		return
	}
	delay := s.baseDelay << s.attempts
	s.attempts++
	s.logger.Info("scheduling reconnect", "attempt", s.attempts, "delay", delay)
	s.reconnect = time.AfterFunc(delay, func() {
		s.Connect("")
	})
}

// dispatch fans an event out to its subscribers.
func (s *Socket) dispatch(ev Event) {
	s.subsMu.RLock()
	handlers := make([]Handler, 0, len(s.subs[ev.Kind]))
	for _, h := range s.subs[ev.Kind] {
		handlers = append(handlers, h)
	}
	s.subsMu.RUnlock()

	for _, h := range handlers {
		s.safeCall(h, ev)
	}
}

func (s *Socket) safeCall(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("event handler panicked", "event", ev.Kind, "panic", r)
		}
	}()
	h(ev)
}
