package models

import "time"

// Conversation is a message thread between the local user and one or more
// counterparts. Messages may be partially loaded; HasMore signals that older
// pages exist on the server.
type Conversation struct {
	ID            string    `json:"id"`
	Participants  []User    `json:"participants"`
	Messages      []Message `json:"messages,omitempty"`
	LastMessage   string    `json:"lastMessage,omitempty"`
	LastMessageAt time.Time `json:"lastMessageAt,omitempty"`
	Unread        int       `json:"unread"`
	HasMore       bool      `json:"hasMore,omitempty"`
}

// Counterpart returns the first participant that is not the local user.
// For direct conversations this is the other party.
func (c *Conversation) Counterpart(selfID string) (User, bool) {
	for _, p := range c.Participants {
		if p.ID != selfID {
			return p, true
		}
	}
	return User{}, false
}

// HasParticipant reports whether userID is part of the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}
