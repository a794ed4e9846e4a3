// Package session coordinates review sessions: one per learner at a
// time, pulling cards from a scheduler snapshot, applying the SM-2
// engine to submitted outcomes, and writing results through the card
// store.
package session

import (
	"sync"
	"time"

	"github.com/example/lexibot/internal/scheduler"
	"github.com/example/lexibot/pkg/models"
)

// State is the lifecycle state of a session. A learner with no session
// is implicitly idle.
type State string

const (
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateExpired   State = "expired"
)

// Session holds one learner's in-progress review: the queue snapshot
// taken at start, the cursor, and the outcomes submitted so far. All
// access goes through its mutex; the coordinator locks it around every
// operation, which is what makes idle expiry safe against an in-flight
// submit.
type Session struct {
	mu sync.Mutex

	id           string
	learnerID    int64
	state        State
	queue        scheduler.Queue
	cursor       int
	startedAt    time.Time
	lastActivity time.Time
	outcomes     []models.ReviewOutcome
}

// Progress is a read-only view of a session for surface layers.
type Progress struct {
	SessionID string
	LearnerID int64
	State     State
	Total     int
	Position  int
	StartedAt time.Time
}

// Remaining returns how many cards are left to review.
func (p Progress) Remaining() int {
	return p.Total - p.Position
}

func (s *Session) progressLocked() Progress {
	return Progress{
		SessionID: s.id,
		LearnerID: s.learnerID,
		State:     s.state,
		Total:     s.queue.Len(),
		Position:  s.cursor,
		StartedAt: s.startedAt,
	}
}
