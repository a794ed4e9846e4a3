package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/lexibot/internal/database"
	"github.com/example/lexibot/internal/scheduler"
	"github.com/example/lexibot/internal/srs"
	"github.com/example/lexibot/pkg/models"
)

// DefaultIdleTimeout is how long a session may sit without activity
// before the expiry sweep releases its lock.
const DefaultIdleTimeout = 30 * time.Minute

// Config tunes a Coordinator. Zero values take defaults.
type Config struct {
	IdleTimeout time.Duration    // zero → DefaultIdleTimeout
	MaxQueue    int              // cap on cards per session snapshot; zero → unlimited
	Sink        models.EventSink // nil → events discarded
}

// Coordinator enforces at-most-one-active-session-per-learner and runs
// the review loop: next card, outcome in, SM-2 update, write-through.
// It holds no learner state beyond the active-session map; everything
// durable lives in the card store.
type Coordinator struct {
	store  database.CardStore
	engine *srs.Engine
	sink   models.EventSink

	idleTimeout time.Duration
	maxQueue    int

	mu     sync.Mutex
	active map[int64]*Session
}

// New creates a Coordinator over the given store and engine.
func New(store database.CardStore, engine *srs.Engine, cfg Config) *Coordinator {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	sink := cfg.Sink
	if sink == nil {
		sink = models.NopSink{}
	}
	return &Coordinator{
		store:       store,
		engine:      engine,
		sink:        sink,
		idleTimeout: cfg.IdleTimeout,
		maxQueue:    cfg.MaxQueue,
		active:      make(map[int64]*Session),
	}
}

// Start begins a review session for the learner: loads their cards,
// snapshots the due queue, and takes the per-learner session lock.
// Returns ErrSessionActive when a session already exists; a second
// device is rejected immediately, never queued.
func (c *Coordinator) Start(ctx context.Context, learnerID int64) (Progress, error) {
	now := c.store.Now()

	// Reserve the learner slot before touching the store so a slow load
	// for one learner never blocks another's Start.
	s := &Session{
		id:           uuid.NewString(),
		learnerID:    learnerID,
		state:        StateActive,
		startedAt:    now,
		lastActivity: now,
	}
	c.mu.Lock()
	if _, exists := c.active[learnerID]; exists {
		c.mu.Unlock()
		return Progress{}, ErrSessionActive
	}
	c.active[learnerID] = s
	c.mu.Unlock()

	cards, err := c.store.LoadCards(ctx, learnerID)
	if err != nil {
		c.remove(learnerID, s)
		return Progress{}, err
	}

	queue := scheduler.BuildQueue(cards, now)
	if c.maxQueue > 0 && queue.Len() > c.maxQueue {
		queue.Cards = queue.Cards[:c.maxQueue]
	}

	s.mu.Lock()
	s.queue = queue
	progress := s.progressLocked()
	s.mu.Unlock()

	c.sink.Emit(models.Event{
		Type:       models.EventSessionStarted,
		LearnerID:  learnerID,
		SessionID:  s.id,
		OccurredAt: now,
	})
	return progress, nil
}

// NextCard returns the card at the session cursor, or ErrQueueExhausted
// once the snapshot has been fully served.
func (c *Coordinator) NextCard(learnerID int64) (models.Card, error) {
	s, err := c.session(learnerID)
	if err != nil {
		return models.Card{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return models.Card{}, ErrNoSession
	}
	if s.cursor >= s.queue.Len() {
		return models.Card{}, ErrQueueExhausted
	}
	s.lastActivity = c.store.Now()
	return s.queue.Cards[s.cursor], nil
}

// SubmitOutcome grades the card at the cursor, applies the memory model,
// and writes the updated card through the store. The cursor advances
// only after a successful write: a persistence failure is surfaced
// retryable and the same grade may be resubmitted. The updated card is
// returned so the surface can show the next due date.
func (c *Coordinator) SubmitOutcome(ctx context.Context, learnerID, cardID int64, grade models.Grade) (models.Card, error) {
	s, err := c.session(learnerID)
	if err != nil {
		return models.Card{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return models.Card{}, ErrNoSession
	}
	if s.cursor >= s.queue.Len() {
		return models.Card{}, ErrQueueExhausted
	}
	current := s.queue.Cards[s.cursor]
	if current.ID != cardID {
		return models.Card{}, ErrOutOfOrder
	}

	now := c.store.Now()
	updated, err := c.engine.Review(current, grade, now)
	if err != nil {
		return models.Card{}, err
	}
	if err := c.store.SaveCard(ctx, &updated); err != nil {
		return models.Card{}, err
	}

	outcome := models.ReviewOutcome{CardID: cardID, Grade: grade, RecordedAt: now}
	// The review log is diagnostic history; a failed append must not
	// fail a submit whose card write already landed.
	_ = c.store.LogOutcome(ctx, learnerID, outcome)

	s.outcomes = append(s.outcomes, outcome)
	s.cursor++
	s.lastActivity = now

	if !grade.IsSuccess() {
		c.sink.Emit(models.Event{
			Type: models.EventCardLapsed, LearnerID: learnerID,
			CardID: cardID, SessionID: s.id, OccurredAt: now,
		})
	}
	if srs.Mastered(updated) {
		c.sink.Emit(models.Event{
			Type: models.EventCardMastered, LearnerID: learnerID,
			CardID: cardID, SessionID: s.id, OccurredAt: now,
		})
	}
	return updated, nil
}

// End completes the session and releases the learner's lock. Outcomes
// already written stay persisted; any cards left in the queue are
// skipped.
func (c *Coordinator) End(learnerID int64) (Progress, error) {
	return c.finish(learnerID, StateCompleted, models.EventSessionCompleted)
}

// Cancel aborts the session. Like End it releases the lock; outcomes
// already written are durable and are not rolled back.
func (c *Coordinator) Cancel(learnerID int64) (Progress, error) {
	return c.finish(learnerID, StateCancelled, models.EventSessionCancelled)
}

func (c *Coordinator) finish(learnerID int64, state State, event models.EventType) (Progress, error) {
	s, err := c.session(learnerID)
	if err != nil {
		return Progress{}, err
	}

	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return Progress{}, ErrNoSession
	}
	s.state = state
	progress := s.progressLocked()
	s.mu.Unlock()

	c.remove(learnerID, s)
	c.sink.Emit(models.Event{
		Type:       event,
		LearnerID:  learnerID,
		SessionID:  s.id,
		OccurredAt: c.store.Now(),
	})
	return progress, nil
}

// ExpireIdle releases sessions idle past the configured window and
// returns how many were expired. Locking each session first means an
// in-flight SubmitOutcome always finishes its write before the session
// can expire under it.
func (c *Coordinator) ExpireIdle(now time.Time) int {
	c.mu.Lock()
	candidates := make([]*Session, 0, len(c.active))
	for _, s := range c.active {
		candidates = append(candidates, s)
	}
	c.mu.Unlock()

	expired := 0
	for _, s := range candidates {
		s.mu.Lock()
		if s.state != StateActive || now.Sub(s.lastActivity) < c.idleTimeout {
			s.mu.Unlock()
			continue
		}
		s.state = StateExpired
		s.mu.Unlock()

		c.remove(s.learnerID, s)
		c.sink.Emit(models.Event{
			Type:       models.EventSessionExpired,
			LearnerID:  s.learnerID,
			SessionID:  s.id,
			OccurredAt: now,
		})
		expired++
	}
	return expired
}

// Snapshot returns the current progress of a learner's active session.
func (c *Coordinator) Snapshot(learnerID int64) (Progress, error) {
	s, err := c.session(learnerID)
	if err != nil {
		return Progress{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked(), nil
}

func (c *Coordinator) session(learnerID int64) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.active[learnerID]
	if !ok {
		return nil, ErrNoSession
	}
	return s, nil
}

// remove deletes the learner's slot only if it still holds this session,
// so a finished session can't evict a newer one started since.
func (c *Coordinator) remove(learnerID int64, s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active[learnerID] == s {
		delete(c.active, learnerID)
	}
}
