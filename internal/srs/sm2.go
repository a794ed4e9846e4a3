// Package srs implements the SM-2 memory model: a pure transform from a
// card's current state and a review grade to its next state. It performs
// no I/O and holds no shared state, so it is safe to call concurrently
// for different cards without synchronization.
package srs

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/example/lexibot/pkg/models"
)

// ErrInvalidGrade is returned when a grade outside the 0..5 scale is
// submitted. The card is left unchanged.
var ErrInvalidGrade = errors.New("srs: invalid grade")

// DefaultMaxIntervalDays caps interval growth at one year.
const DefaultMaxIntervalDays = 365

// LapsePenalty is subtracted from the ease factor on a failed review.
const LapsePenalty = 0.2

// Engine computes SM-2 state transitions. The zero value is not usable;
// construct with New.
type Engine struct {
	// MaxIntervalDays is the longest interval the engine will schedule.
	MaxIntervalDays int
}

// New returns an Engine with default settings.
func New() *Engine {
	return &Engine{MaxIntervalDays: DefaultMaxIntervalDays}
}

// Review applies one review outcome to a card and returns the updated
// card. The input card is not mutated. A grade outside 0..5 returns
// ErrInvalidGrade and the card unchanged.
//
// On failure (grade < 3) the repetition streak resets, the interval
// drops to one day, the lapse counter increments, and the ease factor
// takes a fixed penalty. On success the ease factor follows the SM-2
// formula and the interval grows: 1 day after the first success, 6 days
// after the second, interval*EF thereafter.
func (e *Engine) Review(card models.Card, grade models.Grade, now time.Time) (models.Card, error) {
	if !grade.IsValid() {
		return card, fmt.Errorf("%w: %d", ErrInvalidGrade, int(grade))
	}

	next := card

	if grade.IsSuccess() {
		next.Repetitions = card.Repetitions + 1
		next.EaseFactor = clampEase(card.EaseFactor + easeDelta(grade))
		next.IntervalDays = e.nextInterval(card.IntervalDays, next.Repetitions, next.EaseFactor)
	} else {
		next.Repetitions = 0
		next.IntervalDays = 1
		next.Lapses = card.Lapses + 1
		next.EaseFactor = clampEase(card.EaseFactor - LapsePenalty)
	}

	reviewed := now
	next.LastReviewedAt = &reviewed
	next.DueAt = now.AddDate(0, 0, next.IntervalDays)
	next.UpdatedAt = now

	return next, nil
}

// easeDelta is the SM-2 ease-factor adjustment for a successful grade.
func easeDelta(grade models.Grade) float64 {
	q := float64(grade)
	return 0.1 - (5.0-q)*(0.08+(5.0-q)*0.02)
}

func clampEase(ef float64) float64 {
	if ef < models.MinEaseFactor {
		return models.MinEaseFactor
	}
	return ef
}

// nextInterval grows the interval for a successful review. repetitions
// is the count after the current success.
func (e *Engine) nextInterval(currentDays, repetitions int, ease float64) int {
	var days int
	switch {
	case repetitions <= 1:
		days = 1
	case repetitions == 2:
		days = 6
	default:
		days = int(math.Round(float64(currentDays) * ease))
	}
	if e.MaxIntervalDays > 0 && days > e.MaxIntervalDays {
		days = e.MaxIntervalDays
	}
	return days
}

// Mastered reports whether a card is considered learned: at least five
// consecutive successful reviews and an interval of a month or more.
func Mastered(card models.Card) bool {
	return card.Repetitions >= 5 && card.IntervalDays >= 30
}
