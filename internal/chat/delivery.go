package chat

import (
	"context"
	"strings"
	"time"

	"github.com/tutorlink/chatkit/internal/models"
	"github.com/tutorlink/chatkit/internal/transport"
)

// SendMessage delivers text to a conversation with an optimistic local
// append: the pending message and the conversation preview are visible
// before any network activity. Delivery then goes websocket-first with an
// HTTP fallback; a send that fails both ways stays visible, flagged failed,
// with no automatic retry.
//
// The call is a silent no-op when the trimmed text is empty, the
// conversation is unknown, or a send for that conversation is already in
// flight.
func (s *Store) SendMessage(ctx context.Context, conversationID, text string) {
	text = strings.TrimSpace(text)
	if text == "" || conversationID == "" {
		return
	}

	s.mu.Lock()
	conv := s.findLocked(conversationID)
	if conv == nil {
		s.mu.Unlock()
		return
	}
	if _, busy := s.inflight[conversationID]; busy {
		s.mu.Unlock()
		return
	}
	s.inflight[conversationID] = struct{}{}

	placeholder := models.Message{
		ID:             models.NewTempID(),
		ConversationID: conversationID,
		SenderID:       s.selfID,
		Text:           text,
		CreatedAt:      time.Now(),
		Delivery:       models.DeliveryPending,
	}
	conv.Messages = append(conv.Messages, placeholder)
	conv.LastMessage = text
	conv.LastMessageAt = placeholder.CreatedAt
	s.mu.Unlock()

	send := transport.MessageSend{
		ConversationID: conversationID,
		Text:           text,
		TempID:         placeholder.ID,
	}
	if s.sock.TrySend(transport.EventMessageSend, send) == transport.Sent {
		// Tentatively delivered. The message:sent confirmation settles the
		// placeholder and releases the in-flight guard.
		return
	}

	confirmed, err := s.backend.SendMessage(ctx, conversationID, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, conversationID)
	conv = s.findLocked(conversationID)
	if conv == nil {
		return
	}
	if err != nil {
		s.logger.Warn("message delivery failed", "conversation", conversationID, "error", err)
		if i := indexOfMessage(conv, placeholder.ID); i >= 0 {
			conv.Messages[i].Delivery = models.DeliveryFailed
		}
		return
	}
	s.settleLocked(conv, placeholder.ID, confirmed)
}

// onMessageSent ingests a delivery confirmation from the socket.
func (s *Store) onMessageSent(ev transport.Event) {
	p, ok := ev.Payload.(transport.MessageSent)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, p.ConversationID)
	conv := s.findLocked(p.ConversationID)
	if conv == nil {
		return
	}
	s.settleLocked(conv, p.TempID, p.Message)
}

// settleLocked replaces the placeholder identified by tempID with its
// confirmed counterpart, in place, so send-time order survives. The temp ID
// is the only reconciliation key: a confirmation with no matching
// placeholder is logged and dropped rather than matched by text, which
// would misfire on two identical sends in quick succession. Whatever
// happens, at most one message with the confirmed ID remains. Caller holds
// s.mu.
func (s *Store) settleLocked(conv *models.Conversation, tempID string, confirmed models.Message) {
	i := indexOfMessage(conv, tempID)
	if i < 0 {
		if indexOfMessage(conv, confirmed.ID) < 0 {
			s.logger.Debug("unmatched delivery confirmation dropped",
				"conversation", conv.ID, "tempId", tempID, "messageId", confirmed.ID)
		}
		return
	}

	// Both the socket confirmation and the HTTP fallback may settle the
	// same logical send; whichever arrives second finds the confirmed ID
	// already present and just removes the placeholder.
	if indexOfMessage(conv, confirmed.ID) >= 0 {
		conv.Messages = append(conv.Messages[:i], conv.Messages[i+1:]...)
		return
	}

	confirmed.ConversationID = conv.ID
	confirmed.Delivery = models.DeliveryConfirmed
	conv.Messages[i] = confirmed
	if i == len(conv.Messages)-1 {
		conv.LastMessage = confirmed.Text
		conv.LastMessageAt = confirmed.CreatedAt
	}
}
