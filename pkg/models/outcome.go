package models

import "time"

// ReviewOutcome is the ephemeral input of one review: the grade the learner
// reported for a card, when it was recorded, and how long the answer took.
// Latency is diagnostic only and never feeds the scheduling algorithm.
type ReviewOutcome struct {
	CardID     int64     `json:"card_id" db:"card_id"`
	Grade      Grade     `json:"grade" db:"grade"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
	LatencyMs  int64     `json:"latency_ms" db:"latency_ms"`
}
