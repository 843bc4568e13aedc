// Package chat holds the client's single source of truth for conversations,
// messages and presence. It reconciles three independent input streams --
// local optimistic mutations, delivery confirmations, and inbound realtime
// events -- into one consistent view.
package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tutorlink/chatkit/internal/api"
	"github.com/tutorlink/chatkit/internal/models"
	"github.com/tutorlink/chatkit/internal/transport"
)

// Transport is the slice of the socket the store depends on.
type Transport interface {
	TrySend(kind transport.EventKind, payload any) transport.SendResult
	On(kind transport.EventKind, h transport.Handler) func()
}

// Backend is the slice of the REST client the store depends on.
type Backend interface {
	Conversations(ctx context.Context) ([]models.Conversation, error)
	Messages(ctx context.Context, conversationID string, page int) (api.MessagesPage, error)
	OpenConversation(ctx context.Context, recipientID string) (models.Conversation, error)
	SendMessage(ctx context.Context, conversationID, text string) (models.Message, error)
	MarkRead(ctx context.Context, conversationID string) error
}

// Store is the in-memory conversation state for one authenticated user.
// State is mutated only by the exported operations and by the transport
// event handlers registered in New; everything handed out is a copy.
type Store struct {
	backend Backend
	sock    Transport
	logger  *slog.Logger
	selfID  string

	mu            sync.Mutex
	conversations []*models.Conversation
	online        map[string]struct{}
	inflight      map[string]struct{}

	unsubs []func()
}

// New creates a store for the given user and wires it to the transport's
// event bus. The subscriptions stay live until Close.
func New(backend Backend, sock Transport, selfID string, logger *slog.Logger) *Store {
	s := &Store{
		backend:  backend,
		sock:     sock,
		logger:   logger,
		selfID:   selfID,
		online:   make(map[string]struct{}),
		inflight: make(map[string]struct{}),
	}

	s.unsubs = []func(){
		sock.On(transport.EventMessageNew, s.onMessageNew),
		sock.On(transport.EventMessageSent, s.onMessageSent),
		sock.On(transport.EventMessageRead, s.onMessageRead),
		sock.On(transport.EventConversationNew, s.onConversationNew),
		sock.On(transport.EventUserOnline, s.onPresence(true)),
		sock.On(transport.EventUserOffline, s.onPresence(false)),
		sock.On(transport.EventDisconnect, s.onDisconnect),
	}

	return s
}

// Close unsubscribes from the transport and clears all state. Use on
// logout; the store is not reusable afterwards.
func (s *Store) Close() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
	s.Reset()
}

// Reset clears conversations, presence and in-flight sends.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = nil
	s.online = make(map[string]struct{})
	s.inflight = make(map[string]struct{})
}

// LoadConversations fetches the full conversation list and replaces local
// state wholesale. It runs once per login, before any optimistic state
// exists, so no merge is needed.
func (s *Store) LoadConversations(ctx context.Context) error {
	convs, err := s.backend.Conversations(ctx)
	if err != nil {
		s.logger.Warn("loading conversations failed", "error", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = make([]*models.Conversation, len(convs))
	for i := range convs {
		c := convs[i]
		s.conversations[i] = &c
	}
	return nil
}

// LoadMessages fetches one page of history for a conversation. Page 1
// replaces the message sequence; later pages prepend only messages whose IDs
// are not already present, preserving chronological order.
func (s *Store) LoadMessages(ctx context.Context, conversationID string, page int) error {
	if page < 1 {
		page = 1
	}

	result, err := s.backend.Messages(ctx, conversationID, page)
	if err != nil {
		s.logger.Warn("loading messages failed", "conversation", conversationID, "page", page, "error", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.findLocked(conversationID)
	if conv == nil {
		return nil
	}

	if page == 1 {
		conv.Messages = result.Messages
	} else {
		seen := make(map[string]struct{}, len(conv.Messages))
		for _, m := range conv.Messages {
			seen[m.ID] = struct{}{}
		}
		fresh := make([]models.Message, 0, len(result.Messages))
		for _, m := range result.Messages {
			if _, dup := seen[m.ID]; !dup {
				fresh = append(fresh, m)
			}
		}
		conv.Messages = append(fresh, conv.Messages...)
	}
	conv.HasMore = result.HasMore
	return nil
}

// OpenConversation returns the conversation with recipientID, creating it
// on the backend only when no cached conversation has that counterpart.
// Calling it twice for the same recipient never yields two conversations.
func (s *Store) OpenConversation(ctx context.Context, recipientID string) (models.Conversation, error) {
	s.mu.Lock()
	for _, c := range s.conversations {
		if recipientID != s.selfID && c.HasParticipant(recipientID) {
			snap := snapshotConversation(c)
			s.mu.Unlock()
			return snap, nil
		}
	}
	s.mu.Unlock()

	conv, err := s.backend.OpenConversation(ctx, recipientID)
	if err != nil {
		return models.Conversation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A conversation:new event may have raced the request.
	if existing := s.findLocked(conv.ID); existing != nil {
		return snapshotConversation(existing), nil
	}
	c := conv
	s.conversations = append([]*models.Conversation{&c}, s.conversations...)
	return snapshotConversation(&c), nil
}

// MarkRead zeroes the conversation's unread counter immediately, then
// persists the receipt and notifies peers best-effort. Neither failure
// undoes the local zeroing.
func (s *Store) MarkRead(ctx context.Context, conversationID string) {
	s.mu.Lock()
	conv := s.findLocked(conversationID)
	if conv == nil {
		s.mu.Unlock()
		return
	}
	conv.Unread = 0
	s.mu.Unlock()

	go func(ctx context.Context) {
		if err := s.backend.MarkRead(ctx, conversationID); err != nil {
			s.logger.Warn("persisting read receipt failed", "conversation", conversationID, "error", err)
		}
	}(context.WithoutCancel(ctx))

	s.sock.TrySend(transport.EventMessageRead, transport.MessageRead{ConversationID: conversationID})
}

// Conversations returns a snapshot of the conversation list.
func (s *Store) Conversations() []models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Conversation, len(s.conversations))
	for i, c := range s.conversations {
		out[i] = snapshotConversation(c)
	}
	return out
}

// Conversation returns a snapshot of one conversation.
func (s *Store) Conversation(conversationID string) (models.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.findLocked(conversationID)
	if conv == nil {
		return models.Conversation{}, false
	}
	return snapshotConversation(conv), true
}

// TotalUnread recomputes the unread total across all conversations on every
// call; caching it would go stale under event ingestion.
func (s *Store) TotalUnread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, c := range s.conversations {
		total += c.Unread
	}
	return total
}

// IsOnline reports whether userID is currently known to be connected.
func (s *Store) IsOnline(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.online[userID]
	return ok
}

// ----- transport event ingestion -----

func (s *Store) onMessageNew(ev transport.Event) {
	p, ok := ev.Payload.(transport.MessageNew)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.findLocked(p.ConversationID)
	if conv == nil {
		s.logger.Debug("message for unknown conversation dropped", "conversation", p.ConversationID)
		return
	}
	if indexOfMessage(conv, p.Message.ID) >= 0 {
		return
	}

	msg := p.Message
	msg.ConversationID = conv.ID
	conv.Messages = append(conv.Messages, msg)
	conv.LastMessage = msg.Text
	conv.LastMessageAt = msg.CreatedAt
	if msg.SenderID != s.selfID {
		conv.Unread++
	}
}

func (s *Store) onMessageRead(ev transport.Event) {
	p, ok := ev.Payload.(transport.MessageRead)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.findLocked(p.ConversationID)
	if conv == nil {
		return
	}
	for i := range conv.Messages {
		conv.Messages[i].Read = true
	}
}

func (s *Store) onConversationNew(ev transport.Event) {
	incoming, ok := ev.Payload.(models.Conversation)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.findLocked(incoming.ID); existing != nil {
		// Shallow merge: the event's denormalized fields win, the locally
		// held message sequence stays.
		if len(incoming.Participants) > 0 {
			existing.Participants = incoming.Participants
		}
		if incoming.LastMessage != "" {
			existing.LastMessage = incoming.LastMessage
			existing.LastMessageAt = incoming.LastMessageAt
		}
		if incoming.Unread > 0 {
			existing.Unread = incoming.Unread
		}
		return
	}
	c := incoming
	s.conversations = append([]*models.Conversation{&c}, s.conversations...)
}

func (s *Store) onPresence(online bool) transport.Handler {
	return func(ev transport.Event) {
		p, ok := ev.Payload.(transport.Presence)
		if !ok {
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if online {
			s.online[p.UserID] = struct{}{}
		} else {
			delete(s.online, p.UserID)
		}
	}
}

// onDisconnect clears presence (nobody is known-online over a dead
// connection) and releases in-flight guards whose confirmations can no
// longer arrive.
func (s *Store) onDisconnect(transport.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = make(map[string]struct{})
	s.inflight = make(map[string]struct{})
}

// ----- internals -----

func (s *Store) findLocked(conversationID string) *models.Conversation {
	for _, c := range s.conversations {
		if c.ID == conversationID {
			return c
		}
	}
	return nil
}

func indexOfMessage(conv *models.Conversation, id string) int {
	for i, m := range conv.Messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func snapshotConversation(c *models.Conversation) models.Conversation {
	out := *c
	out.Participants = append([]models.User(nil), c.Participants...)
	out.Messages = append([]models.Message(nil), c.Messages...)
	return out
}
