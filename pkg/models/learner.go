package models

import "time"

// Learner represents a person reviewing cards. The ID doubles as the
// Telegram chat id when the bot surface is in use.
type Learner struct {
	ID               int64     `json:"id" db:"id"`
	Username         string    `json:"username" db:"username"`
	FirstName        string    `json:"first_name" db:"first_name"`
	RemindersEnabled bool      `json:"reminders_enabled" db:"reminders_enabled"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// LearnerStats summarizes a learner's card state, as shown by /stats
// and used by the reminder job.
type LearnerStats struct {
	TotalCards    int     `json:"total_cards" db:"total_cards"`
	DueCards      int     `json:"due_cards" db:"due_cards"`
	MasteredCards int     `json:"mastered_cards" db:"mastered_cards"`
	TotalLapses   int     `json:"total_lapses" db:"total_lapses"`
	AvgEaseFactor float64 `json:"avg_ease_factor" db:"avg_ease_factor"`
}
