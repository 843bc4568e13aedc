package models

import "time"

// DeliveryState tracks a message's position in the optimistic-send
// lifecycle. Confirmed is the zero value so that messages arriving from the
// server (history fetches, inbound events) are confirmed by construction;
// Pending and Failed only ever apply to locally created placeholders.
type DeliveryState int

const (
	DeliveryConfirmed DeliveryState = iota
	DeliveryPending
	DeliveryFailed
)

// String returns a short label for logging and UI markers.
func (d DeliveryState) String() string {
	switch d {
	case DeliveryPending:
		return "pending"
	case DeliveryFailed:
		return "failed"
	default:
		return "confirmed"
	}
}

// Message is a single chat message. Before server confirmation a message
// carries a temporary ID (see NewTempID) and a non-Confirmed DeliveryState;
// reconciliation swaps the placeholder for its confirmed counterpart in
// place, so a logical send never appears twice.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId,omitempty"`
	SenderID       string    `json:"senderId"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
	Read           bool      `json:"read"`

	// Delivery is client-local state and never crosses the wire.
	Delivery DeliveryState `json:"-"`
}
