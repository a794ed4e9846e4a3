package models

import "time"

// Entry represents a vocabulary item to be learned. Cards reference
// entries; one card exists per (learner, entry).
type Entry struct {
	ID        int64     `json:"id" db:"id"`
	Front     string    `json:"front" db:"front"` // The word or phrase shown to the learner
	Back      string    `json:"back" db:"back"`   // The translation or answer
	Deck      string    `json:"deck" db:"deck"`   // Grouping label, e.g. a topic name
	Notes     string    `json:"notes" db:"notes"` // Optional usage example or hint
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
