package transport

import (
	"encoding/json"
	"fmt"

	"github.com/tutorlink/chatkit/internal/models"
)

// EventKind names one kind of event crossing the socket. The set is closed:
// frames carrying an unknown kind are dropped at decode time, and each kind has
// exactly one payload type, so subscribers can type-assert safely.
type EventKind string

const (
	// Lifecycle kinds, emitted locally by the socket itself.
	EventConnect    EventKind = "connect"
	EventDisconnect EventKind = "disconnect"
	EventError      EventKind = "error"

	// Outbound kinds.
	EventMessageSend EventKind = "message:send"

	// Inbound kinds. EventMessageRead travels both directions.
	EventMessageNew      EventKind = "message:new"
	EventMessageSent     EventKind = "message:sent"
	EventMessageRead     EventKind = "message:read"
	EventConversationNew EventKind = "conversation:new"
	EventUserOnline      EventKind = "user:online"
	EventUserOffline     EventKind = "user:offline"
)

// Event pairs a kind with its decoded payload. Payload holds the concrete
// type listed below for the kind:
//
//	EventMessageNew       MessageNew
//	EventMessageSent      MessageSent
//	EventMessageRead      MessageRead
//	EventConversationNew  models.Conversation
//	EventUserOnline       Presence
//	EventUserOffline      Presence
//	EventError            error
//	EventConnect          nil
//	EventDisconnect       nil
type Event struct {
	Kind    EventKind
	Payload any
}

// MessageSend is the outbound payload asking the server to deliver a
// message to a conversation. TempID is echoed back in the message:sent
// confirmation so the sender can settle its optimistic placeholder.
type MessageSend struct {
	ConversationID string `json:"conversationId"`
	Text           string `json:"text"`
	TempID         string `json:"tempId,omitempty"`
}

// MessageNew announces a message some other participant sent us.
type MessageNew struct {
	ConversationID string         `json:"conversationId"`
	Message        models.Message `json:"message"`
}

// MessageSent confirms one of our own sends; TempID links it back to the
// optimistic placeholder it settles.
type MessageSent struct {
	ConversationID string         `json:"conversationId"`
	Message        models.Message `json:"message"`
	TempID         string         `json:"tempId"`
}

// MessageRead is a read receipt for a whole conversation.
type MessageRead struct {
	ConversationID string `json:"conversationId"`
}

// Presence carries an online/offline transition for one user.
type Presence struct {
	UserID string `json:"userId"`
}

// frame is the wire envelope for every socket message, both directions.
type frame struct {
	Event EventKind       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// marshalData encodes an outbound payload for the frame envelope. All
// payload types here marshal cleanly, so a failure just yields an empty
// data field.
func marshalData(payload any) json.RawMessage {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// decodeFrame parses a raw inbound frame into a typed Event. Unknown kinds
// and payloads that do not match their kind's shape are errors; the read
// loop logs and drops them.
func decodeFrame(raw []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Event{}, fmt.Errorf("decode frame: %w", err)
	}

	decode := func(v any) error {
		if len(f.Data) == 0 {
			return fmt.Errorf("event %q: missing payload", f.Event)
		}
		if err := json.Unmarshal(f.Data, v); err != nil {
			return fmt.Errorf("event %q: %w", f.Event, err)
		}
		return nil
	}

	switch f.Event {
	case EventMessageNew:
		var p MessageNew
		if err := decode(&p); err != nil {
			return Event{}, err
		}
		return Event{Kind: f.Event, Payload: p}, nil
	case EventMessageSent:
		var p MessageSent
		if err := decode(&p); err != nil {
			return Event{}, err
		}
		return Event{Kind: f.Event, Payload: p}, nil
	case EventMessageRead:
		var p MessageRead
		if err := decode(&p); err != nil {
			return Event{}, err
		}
		return Event{Kind: f.Event, Payload: p}, nil
	case EventConversationNew:
		var c models.Conversation
		if err := decode(&c); err != nil {
			return Event{}, err
		}
		return Event{Kind: f.Event, Payload: c}, nil
	case EventUserOnline, EventUserOffline:
		var p Presence
		if err := decode(&p); err != nil {
			return Event{}, err
		}
		return Event{Kind: f.Event, Payload: p}, nil
	default:
		return Event{}, fmt.Errorf("unknown event %q", f.Event)
	}
}
