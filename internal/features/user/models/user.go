package models

import "time"

// State tracks the user's relationship with the bot. It is a flag, not a
// lifecycle: records are never deleted, a stopped user keeps their history.
type State string

const (
	StateActive    State = "active"
	StateRestarted State = "restarted"
	StateStopped   State = "stopped"
)

// User is the durable per-user record. TopicID is bound at most once; once
// set it never changes without explicit operator intervention.
type User struct {
	ID           int64     `json:"id"`
	FullName     string    `json:"full_name"`
	Username     string    `json:"username,omitempty"`
	LanguageCode string    `json:"language_code,omitempty"`
	IsBanned     bool      `json:"is_banned"`
	IsSilent     bool      `json:"is_silent"`
	TopicID      int       `json:"topic_id,omitempty"`
	State        State     `json:"state"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
