package models

import "time"

// SessionStatus is the lifecycle state of a scheduled tutoring session.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

// Session is the metadata of one scheduled tutoring session. The session
// room chat is only usable while the session is live, see InWindow.
type Session struct {
	ID        string        `json:"id"`
	TutorID   string        `json:"tutorId"`
	StudentID string        `json:"studentId"`
	Subject   string        `json:"subject,omitempty"`
	StartsAt  time.Time     `json:"startsAt"`
	EndsAt    time.Time     `json:"endsAt"`
	Status    SessionStatus `json:"status"`
}

// InWindow reports whether now falls within the session's scheduled
// [start, end] time window.
func (s Session) InWindow(now time.Time) bool {
	return !now.Before(s.StartsAt) && !now.After(s.EndsAt)
}

// HasParticipant reports whether userID is the session's tutor or student.
func (s Session) HasParticipant(userID string) bool {
	return userID != "" && (userID == s.TutorID || userID == s.StudentID)
}

// Live reports whether the session chat should be usable: the session is
// neither completed nor cancelled and now is inside its time window.
func (s Session) Live(now time.Time) bool {
	if s.Status == SessionCompleted || s.Status == SessionCancelled {
		return false
	}
	return s.InWindow(now)
}
