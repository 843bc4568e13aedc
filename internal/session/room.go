// Package session implements the session-room chat channel: a chat surface
// scoped to one scheduled session's time window, independent of the general
// conversation list. While the room is active it runs exactly one delivery
// channel, a dedicated websocket or a fixed-interval poll, chosen by
// configuration.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tutorlink/chatkit/internal/models"
)

// DefaultPollInterval is the history poll cadence when no dedicated
// realtime endpoint is configured.
const DefaultPollInterval = 4 * time.Second

// Backend is the slice of the REST client the room depends on.
type Backend interface {
	SessionHistory(ctx context.Context, sessionID string) ([]models.Message, error)
	PostSessionMessage(ctx context.Context, sessionID, text string) (models.Message, error)
}

// Config selects and parameterizes the room's delivery channel.
type Config struct {
	// SocketURL is the session realtime endpoint. Empty selects the
	// polling fallback.
	SocketURL string

	// Token authenticates the dedicated socket connection.
	Token string

	// PollInterval overrides DefaultPollInterval when positive.
	PollInterval time.Duration
}

// Room is the chat state for one session. It activates only while the
// local user is an authorized participant and the session is live; leaving
// the active state tears down the running channel and clears all locally
// held messages and pending input.
type Room struct {
	backend Backend
	logger  *slog.Logger
	selfID  string
	cfg     Config
	now     func() time.Time

	mu       sync.Mutex
	session  models.Session
	active   bool
	channel  channel
	messages []models.Message
	input    string
	notice   string
}

// Option configures a Room.
type Option func(*Room)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Room) { r.now = now }
}

// NewRoom creates a room for the given session. The room starts inactive;
// call Evaluate (and again whenever session data or time moves) to let it
// transition.
func NewRoom(backend Backend, sess models.Session, selfID string, cfg Config, logger *slog.Logger, opts ...Option) *Room {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	r := &Room{
		backend: backend,
		logger:  logger,
		selfID:  selfID,
		cfg:     cfg,
		now:     time.Now,
		session: sess,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Evaluate recomputes the room state from session metadata and the clock,
// starting or stopping the delivery channel on transitions. Deactivation
// clears messages and pending input: room chat does not outlive its session.
func (r *Room) Evaluate() {
	r.mu.Lock()
	shouldRun := r.session.HasParticipant(r.selfID) && r.session.Live(r.now())
	if shouldRun == r.active {
		r.mu.Unlock()
		return
	}

	if shouldRun {
		r.active = true
		ch := r.newChannelLocked()
		r.channel = ch
		r.mu.Unlock()
		r.logger.Info("session room activated", "session", r.session.ID)
		ch.start()
		return
	}

	r.active = false
	ch := r.channel
	r.channel = nil
	r.messages = nil
	r.input = ""
	r.mu.Unlock()
	r.logger.Info("session room deactivated", "session", r.session.ID)
	if ch != nil {
		ch.stop()
	}
}

// UpdateSession replaces the session metadata and re-evaluates the state.
func (r *Room) UpdateSession(sess models.Session) {
	r.mu.Lock()
	r.session = sess
	r.mu.Unlock()
	r.Evaluate()
}

// Close deactivates the room regardless of session state, tearing down the
// running channel. The underlying socket, if any, is closed exactly once.
func (r *Room) Close() {
	r.mu.Lock()
	r.active = false
	ch := r.channel
	r.channel = nil
	r.messages = nil
	r.input = ""
	r.mu.Unlock()
	if ch != nil {
		ch.stop()
	}
}

// Send appends an optimistic pending message and delivers it over the
// running channel: through the socket when one is open, otherwise an HTTP
// POST. A no-op while the room is inactive or for empty text.
func (r *Room) Send(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	r.mu.Lock()
	if !r.active || r.channel == nil {
		r.mu.Unlock()
		return
	}
	placeholder := models.Message{
		ID:        models.NewTempID(),
		SenderID:  r.selfID,
		Text:      text,
		CreatedAt: r.now(),
		Delivery:  models.DeliveryPending,
	}
	r.messages = append(r.messages, placeholder)
	r.input = ""
	ch := r.channel
	r.mu.Unlock()

	confirmed, settled, err := ch.send(ctx, text)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.logger.Warn("session message delivery failed", "session", r.session.ID, "error", err)
		if i := indexOf(r.messages, placeholder.ID); i >= 0 {
			r.messages[i].Delivery = models.DeliveryFailed
		}
		r.notice = "Message could not be sent."
		return
	}
	if settled {
		r.settleLocked(placeholder.ID, confirmed)
	}
	// Otherwise the socket echo settles it via ingest.
}

// Active reports whether the room is currently live for the local user.
func (r *Room) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Messages returns a snapshot of the room's messages.
func (r *Room) Messages() []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Message(nil), r.messages...)
}

// Session returns the current session metadata.
func (r *Room) Session() models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Input returns the pending compose-box content.
func (r *Room) Input() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.input
}

// SetInput stores compose-box content so deactivation can clear it.
func (r *Room) SetInput(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		r.input = text
	}
}

// Notice returns the current inline notice, empty when there is none.
func (r *Room) Notice() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notice
}

// DismissNotice clears the inline notice.
func (r *Room) DismissNotice() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notice = ""
}

// ingest merges one confirmed message arriving from the channel. Our own
// echoes settle the oldest pending placeholder with matching text; the
// session wire carries no temp IDs, so this narrower heuristic is the only
// reconciliation key available here.
func (r *Room) ingest(msg models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	r.ingestLocked(msg)
}

// ingestHistory merges a polled history snapshot without dropping anything
// already displayed.
func (r *Room) ingestHistory(msgs []models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	for _, msg := range msgs {
		r.ingestLocked(msg)
	}
}

func (r *Room) ingestLocked(msg models.Message) {
	if indexOf(r.messages, msg.ID) >= 0 {
		return
	}
	if msg.SenderID == r.selfID {
		for _, m := range r.messages {
			if m.Delivery == models.DeliveryPending && m.Text == msg.Text {
				r.settleLocked(m.ID, msg)
				return
			}
		}
	}
	msg.Delivery = models.DeliveryConfirmed
	r.messages = append(r.messages, msg)
}

func (r *Room) settleLocked(tempID string, confirmed models.Message) {
	i := indexOf(r.messages, tempID)
	if i < 0 {
		return
	}
	if indexOf(r.messages, confirmed.ID) >= 0 {
		r.messages = append(r.messages[:i], r.messages[i+1:]...)
		return
	}
	confirmed.Delivery = models.DeliveryConfirmed
	r.messages[i] = confirmed
}

func (r *Room) setNotice(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notice = text
}

func (r *Room) sessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.ID
}

func indexOf(msgs []models.Message, id string) int {
	for i, m := range msgs {
		if m.ID == id {
			return i
		}
	}
	return -1
}
