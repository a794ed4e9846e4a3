// Package scheduler builds ordered review queues from a learner's card
// set. It is pure: it never mutates card state and produces the same
// queue for the same input.
package scheduler

import (
	"sort"
	"time"

	"github.com/example/lexibot/pkg/models"
)

// Queue is a fixed, ordered snapshot of cards due for review. Cards that
// become due after the snapshot was taken are not inserted into it; they
// show up on the next BuildQueue call.
type Queue struct {
	Cards   []models.Card
	TakenAt time.Time
}

// Len returns the number of cards in the queue.
func (q Queue) Len() int { return len(q.Cards) }

// BuildQueue filters the given cards down to those due at now (the
// boundary is inclusive) and orders them for review:
//
//  1. most overdue first (DueAt ascending),
//  2. struggling cards first among equally due (Lapses descending),
//  3. ID ascending as the final, deterministic tie-break.
//
// The input slice is not modified.
func BuildQueue(cards []models.Card, now time.Time) Queue {
	due := make([]models.Card, 0, len(cards))
	for _, c := range cards {
		if c.IsDue(now) {
			due = append(due, c)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if !due[i].DueAt.Equal(due[j].DueAt) {
			return due[i].DueAt.Before(due[j].DueAt)
		}
		if due[i].Lapses != due[j].Lapses {
			return due[i].Lapses > due[j].Lapses
		}
		return due[i].ID < due[j].ID
	})

	return Queue{Cards: due, TakenAt: now}
}

// DueCount returns how many of the given cards are due at now without
// building a full queue. Used by the reminder job.
func DueCount(cards []models.Card, now time.Time) int {
	n := 0
	for _, c := range cards {
		if c.IsDue(now) {
			n++
		}
	}
	return n
}
