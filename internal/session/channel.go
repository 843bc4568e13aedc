package session

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tutorlink/chatkit/internal/models"
)

// channel is the delivery mechanism running while a room is active.
// Exactly one channel runs at a time; Evaluate starts it on activation and
// stops it on deactivation so no timer or connection outlives the room.
type channel interface {
	start()
	stop()

	// send delivers text. When settled is true, confirmed carries the
	// persisted message; otherwise the confirmation arrives asynchronously
	// through the room's ingest path.
	send(ctx context.Context, text string) (confirmed models.Message, settled bool, err error)
}

// newChannelLocked picks the channel for the room's configuration: a
// dedicated socket when an endpoint is configured, else polling. Caller
// holds r.mu.
func (r *Room) newChannelLocked() channel {
	if r.cfg.SocketURL != "" {
		return &socketChannel{
			room: r,
			url:  r.cfg.SocketURL + "/" + r.session.ID + "?token=" + url.QueryEscape(r.cfg.Token),
		}
	}
	return &pollingChannel{
		room:     r,
		interval: r.cfg.PollInterval,
		done:     make(chan struct{}),
	}
}

// pollingChannel fetches the room history on a fixed interval. Fetch
// failures keep the last known good state visible and surface a dismissible
// notice instead of clearing anything.
//
// done is allocated at construction so stop is safe no matter how start and
// stop interleave once the room's lock is released.
type pollingChannel struct {
	room     *Room
	interval time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

func (p *pollingChannel) start() {
	go p.loop()
}

func (p *pollingChannel) stop() {
	p.stopOnce.Do(func() { close(p.done) })
}

func (p *pollingChannel) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// The room may have torn down before this goroutine was scheduled.
	select {
	case <-p.done:
		return
	default:
	}

	p.poll()
	for {
		select {
		case <-ticker.C:
			p.poll()
		case <-p.done:
			return
		}
	}
}

func (p *pollingChannel) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()

	msgs, err := p.room.backend.SessionHistory(ctx, p.room.sessionID())
	if err != nil {
		p.room.logger.Warn("session history poll failed", "error", err)
		p.room.setNotice("Connection problem, messages may be delayed.")
		return
	}
	p.room.ingestHistory(msgs)
}

func (p *pollingChannel) send(ctx context.Context, text string) (models.Message, bool, error) {
	msg, err := p.room.backend.PostSessionMessage(ctx, p.room.sessionID(), text)
	return msg, true, err
}

// sessionSend is the outbound frame on the dedicated session socket; the
// server echoes the persisted message back to every participant.
type sessionSend struct {
	Text string `json:"text"`
}

// socketChannel runs a dedicated per-session websocket. Send falls back to
// an HTTP POST whenever the socket is not open.
type socketChannel struct {
	room *Room
	url  string

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func (c *socketChannel) start() {
	go c.run()
}

// stop closes the socket exactly once; the read loop exits on the next
// read error.
func (c *socketChannel) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.conn != nil {
		deadline := time.Now().Add(5 * time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		c.conn.Close()
		c.conn = nil
	}
}

func (c *socketChannel) run() {
	dialer := &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(c.url, nil)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		c.mu.Unlock()
		c.room.logger.Warn("session socket dial failed", "error", err)
		c.room.setNotice("Live chat connection failed.")
		return
	}
	c.conn = conn
	c.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			lost := !c.closed
			c.conn = nil
			c.mu.Unlock()
			if lost {
				c.room.logger.Warn("session socket closed", "error", err)
				c.room.setNotice("Live chat connection lost.")
			}
			return
		}

		var msg models.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.room.logger.Warn("dropping malformed session frame", "error", err)
			continue
		}
		c.room.ingest(msg)
	}
}

func (c *socketChannel) send(ctx context.Context, text string) (models.Message, bool, error) {
	c.mu.Lock()
	if c.conn != nil {
		// Holding the lock serializes writers; the read loop never writes.
		err := c.conn.WriteJSON(sessionSend{Text: text})
		c.mu.Unlock()
		if err == nil {
			return models.Message{}, false, nil
		}
		c.room.logger.Warn("session socket write failed, falling back to POST")
	} else {
		c.mu.Unlock()
	}

	msg, err := c.room.backend.PostSessionMessage(ctx, c.room.sessionID(), text)
	return msg, true, err
}
