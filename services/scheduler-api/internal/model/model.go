package model

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Event is a fixed calendar commitment. Immutable events are external
// (synced from a provider calendar) and cannot be edited or deleted here.
type Event struct {
	ID        string
	UserID    string
	Title     string
	StartTime time.Time
	EndTime   time.Time
	Immutable bool
	Source    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Task is unscheduled work waiting for a slot suggestion.
type Task struct {
	ID          string
	UserID      string
	Title       string
	DurationMin int
	Category    string
	Notes       string
	CreatedAt   time.Time
}

// Availability is a user's weekly template: local HH:MM windows per
// weekday plus the IANA zone they are anchored in.
type Availability struct {
	UserID    string
	Timezone  string
	Windows   map[string][]Window
	UpdatedAt time.Time
}

type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}
