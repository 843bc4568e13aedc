// Package models defines the chat domain types shared across the client:
// conversations, messages, presence and session metadata.
package models

// User is a lightweight reference to a platform user, as embedded in
// conversation participant lists and contact listings.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Role   string `json:"role,omitempty"`
}
