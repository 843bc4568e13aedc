package models

import (
	"testing"
	"time"
)

func TestIsTempID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"temp id", "temp-1712345678901234567", true},
		{"bare prefix", "temp-", true},
		{"server id", "m-42", false},
		{"uuid-ish", "9b2d8c1e", false},
		{"empty", "", false},
		{"prefix mid-string", "x-temp-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTempID(tt.in); got != tt.want {
				t.Errorf("IsTempID(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewTempID(t *testing.T) {
	a := NewTempID()
	b := NewTempID()

	if !IsTempID(a) {
		t.Errorf("NewTempID() = %q, want temp- prefix", a)
	}
	if a == b {
		t.Errorf("two NewTempID() calls returned the same id %q", a)
	}
}

func TestCounterpart(t *testing.T) {
	conv := Conversation{
		Participants: []User{
			{ID: "u1", Name: "Me"},
			{ID: "u2", Name: "Tutor"},
		},
	}

	other, ok := conv.Counterpart("u1")
	if !ok || other.ID != "u2" {
		t.Errorf("Counterpart(u1) = %v, %v, want u2", other, ok)
	}

	other, ok = conv.Counterpart("u2")
	if !ok || other.ID != "u1" {
		t.Errorf("Counterpart(u2) = %v, %v, want u1", other, ok)
	}

	empty := Conversation{Participants: []User{{ID: "u1"}}}
	if _, ok := empty.Counterpart("u1"); ok {
		t.Error("Counterpart with only self should report no counterpart")
	}
}

func TestSessionLive(t *testing.T) {
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	base := Session{ID: "s1", TutorID: "t1", StudentID: "u1", StartsAt: start, EndsAt: end, Status: SessionScheduled}

	tests := []struct {
		name   string
		status SessionStatus
		now    time.Time
		want   bool
	}{
		{"mid window", SessionScheduled, start.Add(30 * time.Minute), true},
		{"at start", SessionScheduled, start, true},
		{"at end", SessionScheduled, end, true},
		{"before start", SessionScheduled, start.Add(-time.Minute), false},
		{"after end", SessionScheduled, end.Add(time.Minute), false},
		{"completed", SessionCompleted, start.Add(30 * time.Minute), false},
		{"cancelled", SessionCancelled, start.Add(30 * time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			s.Status = tt.status
			if got := s.Live(tt.now); got != tt.want {
				t.Errorf("Live(%v) with status %s = %v, want %v", tt.now, tt.status, got, tt.want)
			}
		})
	}
}
