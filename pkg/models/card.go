package models

import "time"

// Card tracks one learner's memory state for a single vocabulary entry,
// scheduled with the SM-2 algorithm.
type Card struct {
	ID             int64      `json:"id" db:"id"`
	LearnerID      int64      `json:"learner_id" db:"learner_id"`
	EntryID        int64      `json:"entry_id" db:"entry_id"`
	EaseFactor     float64    `json:"ease_factor" db:"ease_factor"`           // SM-2 EF parameter, never below 1.3
	IntervalDays   int        `json:"interval_days" db:"interval_days"`       // Days until next review after the last one
	Repetitions    int        `json:"repetitions" db:"repetitions"`           // Consecutive successful reviews since last lapse
	Lapses         int        `json:"lapses" db:"lapses"`                     // Total failed reviews (diagnostic)
	DueAt          time.Time  `json:"due_at" db:"due_at"`                     // Eligible for review once now >= DueAt
	LastReviewedAt *time.Time `json:"last_reviewed_at" db:"last_reviewed_at"` // nil until first review
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// NewCard creates an unseen card for a learner: default ease factor,
// zero interval, due immediately.
func NewCard(learnerID, entryID int64, now time.Time) Card {
	return Card{
		LearnerID:  learnerID,
		EntryID:    entryID,
		EaseFactor: DefaultEaseFactor,
		DueAt:      now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// DefaultEaseFactor is the SM-2 starting ease factor for a new card.
const DefaultEaseFactor = 2.5

// MinEaseFactor is the SM-2 floor; the ease factor is clamped here to
// prevent runaway interval collapse.
const MinEaseFactor = 1.3

// IsDue reports whether the card is eligible for review at the given time.
// The boundary is inclusive: a card due exactly at now is due.
func (c Card) IsDue(now time.Time) bool {
	return !c.DueAt.After(now)
}
