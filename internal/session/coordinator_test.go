package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lexibot/internal/database"
	"github.com/example/lexibot/internal/srs"
	"github.com/example/lexibot/pkg/models"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// fakeClock is a settable clock for driving idle expiry.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type recordingSink struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recordingSink) Emit(e models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) types() []models.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func seedCards(t *testing.T, store *database.MemoryStore, learnerID int64, n int) []models.Card {
	t.Helper()
	cards := make([]models.Card, 0, n)
	for i := 0; i < n; i++ {
		card := models.NewCard(learnerID, int64(i+1), testNow.Add(-time.Duration(n-i)*time.Hour))
		require.NoError(t, store.SaveCard(context.Background(), &card))
		cards = append(cards, card)
	}
	return cards
}

func newTestCoordinator(t *testing.T, cfg Config) (*Coordinator, *database.MemoryStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: testNow}
	store := database.NewMemoryStore(clock.Now)
	return New(store, srs.New(), cfg), store, clock
}

func TestStartAndReviewFlow(t *testing.T) {
	c, store, _ := newTestCoordinator(t, Config{})
	ctx := context.Background()
	seedCards(t, store, 1, 3)

	progress, err := c.Start(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StateActive, progress.State)
	assert.Equal(t, 3, progress.Total)

	for i := 0; i < 3; i++ {
		card, err := c.NextCard(1)
		require.NoError(t, err)

		updated, err := c.SubmitOutcome(ctx, 1, card.ID, models.GradeCorrectHesitation)
		require.NoError(t, err)
		assert.Equal(t, 1, updated.Repetitions)
		assert.False(t, updated.IsDue(testNow))
	}

	_, err = c.NextCard(1)
	require.ErrorIs(t, err, ErrQueueExhausted)

	end, err := c.End(1)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, end.State)
	assert.Equal(t, 0, end.Remaining())

	// Lock is released: a new session can start.
	_, err = c.Start(ctx, 1)
	require.NoError(t, err)
}

func TestStartExclusive(t *testing.T) {
	c, store, _ := newTestCoordinator(t, Config{})
	ctx := context.Background()
	seedCards(t, store, 1, 1)

	_, err := c.Start(ctx, 1)
	require.NoError(t, err)

	_, err = c.Start(ctx, 1)
	require.ErrorIs(t, err, ErrSessionActive)

	// A different learner is unaffected.
	seedCards(t, store, 2, 1)
	_, err = c.Start(ctx, 2)
	require.NoError(t, err)
}

func TestEmptyQueueExhaustedImmediately(t *testing.T) {
	c, _, _ := newTestCoordinator(t, Config{})

	_, err := c.Start(context.Background(), 1)
	require.NoError(t, err)

	_, err = c.NextCard(1)
	require.ErrorIs(t, err, ErrQueueExhausted)
}

func TestSubmitOutOfOrder(t *testing.T) {
	c, store, _ := newTestCoordinator(t, Config{})
	ctx := context.Background()
	seedCards(t, store, 1, 2)

	_, err := c.Start(ctx, 1)
	require.NoError(t, err)

	card, err := c.NextCard(1)
	require.NoError(t, err)

	_, err = c.SubmitOutcome(ctx, 1, card.ID+999, models.GradePerfect)
	require.ErrorIs(t, err, ErrOutOfOrder)

	// Cursor did not move; the same card is still current.
	again, err := c.NextCard(1)
	require.NoError(t, err)
	assert.Equal(t, card.ID, again.ID)
}

func TestSubmitInvalidGrade(t *testing.T) {
	c, store, _ := newTestCoordinator(t, Config{})
	ctx := context.Background()
	seedCards(t, store, 1, 1)

	_, err := c.Start(ctx, 1)
	require.NoError(t, err)
	card, err := c.NextCard(1)
	require.NoError(t, err)

	_, err = c.SubmitOutcome(ctx, 1, card.ID, models.Grade(7))
	require.ErrorIs(t, err, srs.ErrInvalidGrade)

	// No state change: card still current and unmodified in the store.
	stored, err := store.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, card, stored)
}

func TestSubmitPersistenceFailureRetryable(t *testing.T) {
	c, store, _ := newTestCoordinator(t, Config{})
	ctx := context.Background()
	seedCards(t, store, 1, 1)

	_, err := c.Start(ctx, 1)
	require.NoError(t, err)
	card, err := c.NextCard(1)
	require.NoError(t, err)

	store.FailSaves(errors.New("connection reset"))
	_, err = c.SubmitOutcome(ctx, 1, card.ID, models.GradeCorrectHesitation)
	require.ErrorIs(t, err, database.ErrPersistence)

	// Cursor did not advance; the learner resubmits the same grade.
	store.FailSaves(nil)
	updated, err := c.SubmitOutcome(ctx, 1, card.ID, models.GradeCorrectHesitation)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Repetitions)
}

func TestCancelKeepsPersistedOutcomes(t *testing.T) {
	c, store, _ := newTestCoordinator(t, Config{})
	ctx := context.Background()
	seedCards(t, store, 1, 2)

	_, err := c.Start(ctx, 1)
	require.NoError(t, err)

	card, err := c.NextCard(1)
	require.NoError(t, err)
	updated, err := c.SubmitOutcome(ctx, 1, card.ID, models.GradePerfect)
	require.NoError(t, err)

	progress, err := c.Cancel(1)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, progress.State)

	// The write that happened before the cancel is still durable.
	stored, err := store.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, stored)

	_, err = c.NextCard(1)
	require.ErrorIs(t, err, ErrNoSession)
}

func TestIdleExpiry(t *testing.T) {
	sink := &recordingSink{}
	c, store, clock := newTestCoordinator(t, Config{IdleTimeout: 10 * time.Minute, Sink: sink})
	ctx := context.Background()
	seedCards(t, store, 1, 2)

	_, err := c.Start(ctx, 1)
	require.NoError(t, err)

	// Not idle long enough: nothing expires.
	clock.Advance(5 * time.Minute)
	assert.Equal(t, 0, c.ExpireIdle(clock.Now()))

	clock.Advance(6 * time.Minute)
	assert.Equal(t, 1, c.ExpireIdle(clock.Now()))
	assert.Contains(t, sink.types(), models.EventSessionExpired)

	// Expiry is re-entrant safe: a second sweep finds nothing.
	assert.Equal(t, 0, c.ExpireIdle(clock.Now()))

	// The lock is released; a new session can start.
	_, err = c.Start(ctx, 1)
	require.NoError(t, err)
}

func TestActivityResetsIdleWindow(t *testing.T) {
	c, store, clock := newTestCoordinator(t, Config{IdleTimeout: 10 * time.Minute})
	ctx := context.Background()
	seedCards(t, store, 1, 5)

	_, err := c.Start(ctx, 1)
	require.NoError(t, err)

	clock.Advance(8 * time.Minute)
	card, err := c.NextCard(1)
	require.NoError(t, err)
	_, err = c.SubmitOutcome(ctx, 1, card.ID, models.GradePerfect)
	require.NoError(t, err)

	// 8 minutes since the submit, 16 since start: still active.
	clock.Advance(8 * time.Minute)
	assert.Equal(t, 0, c.ExpireIdle(clock.Now()))
}

func TestMaxQueueCapsSnapshot(t *testing.T) {
	c, store, _ := newTestCoordinator(t, Config{MaxQueue: 2})
	seedCards(t, store, 1, 5)

	progress, err := c.Start(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, progress.Total)
}

func TestSnapshotSemantics(t *testing.T) {
	c, store, _ := newTestCoordinator(t, Config{})
	ctx := context.Background()
	seedCards(t, store, 1, 1)

	progress, err := c.Start(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, progress.Total)

	// A card becoming due mid-session does not join the snapshot.
	late := models.NewCard(1, 99, testNow.Add(-time.Minute))
	require.NoError(t, store.SaveCard(ctx, &late))

	snap, err := c.Snapshot(1)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Total)

	card, err := c.NextCard(1)
	require.NoError(t, err)
	_, err = c.SubmitOutcome(ctx, 1, card.ID, models.GradePerfect)
	require.NoError(t, err)
	_, err = c.NextCard(1)
	require.ErrorIs(t, err, ErrQueueExhausted)

	// The next session picks it up.
	_, err = c.End(1)
	require.NoError(t, err)
	progress, err = c.Start(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, progress.Total)
}

func TestEventsEmitted(t *testing.T) {
	sink := &recordingSink{}
	c, store, _ := newTestCoordinator(t, Config{Sink: sink})
	ctx := context.Background()

	// One card ready to lapse, one card one success away from mastered.
	lapser := models.NewCard(1, 1, testNow.Add(-2*time.Hour))
	require.NoError(t, store.SaveCard(ctx, &lapser))
	almost := models.Card{
		LearnerID: 1, EntryID: 2, EaseFactor: 2.5,
		IntervalDays: 30, Repetitions: 4, DueAt: testNow.Add(-time.Hour),
		CreatedAt: testNow, UpdatedAt: testNow,
	}
	require.NoError(t, store.SaveCard(ctx, &almost))

	_, err := c.Start(ctx, 1)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		card, err := c.NextCard(1)
		require.NoError(t, err)
		grade := models.GradePerfect
		if card.ID == lapser.ID {
			grade = models.GradeBlackout
		}
		_, err = c.SubmitOutcome(ctx, 1, card.ID, grade)
		require.NoError(t, err)
	}
	_, err = c.End(1)
	require.NoError(t, err)

	types := sink.types()
	assert.Contains(t, types, models.EventSessionStarted)
	assert.Contains(t, types, models.EventCardLapsed)
	assert.Contains(t, types, models.EventCardMastered)
	assert.Contains(t, types, models.EventSessionCompleted)
}

func TestConcurrentLearners(t *testing.T) {
	c, store, _ := newTestCoordinator(t, Config{})
	ctx := context.Background()

	const learners = 8
	const cardsEach = 20
	for l := int64(1); l <= learners; l++ {
		seedCards(t, store, l, cardsEach)
	}

	var wg sync.WaitGroup
	errs := make(chan error, learners)
	for l := int64(1); l <= learners; l++ {
		wg.Add(1)
		go func(learnerID int64) {
			defer wg.Done()
			if _, err := c.Start(ctx, learnerID); err != nil {
				errs <- err
				return
			}
			for {
				card, err := c.NextCard(learnerID)
				if errors.Is(err, ErrQueueExhausted) {
					break
				}
				if err != nil {
					errs <- err
					return
				}
				if _, err := c.SubmitOutcome(ctx, learnerID, card.ID, models.GradeCorrectHesitation); err != nil {
					errs <- err
					return
				}
			}
			if _, err := c.End(learnerID); err != nil {
				errs <- err
			}
		}(l)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent session error: %v", err)
	}

	for l := int64(1); l <= learners; l++ {
		cards, err := store.LoadCards(ctx, l)
		require.NoError(t, err)
		for _, card := range cards {
			assert.Equal(t, 1, card.Repetitions)
		}
	}
}

func TestOperationsWithoutSession(t *testing.T) {
	c, _, _ := newTestCoordinator(t, Config{})

	_, err := c.NextCard(1)
	require.ErrorIs(t, err, ErrNoSession)
	_, err = c.SubmitOutcome(context.Background(), 1, 1, models.GradePerfect)
	require.ErrorIs(t, err, ErrNoSession)
	_, err = c.End(1)
	require.ErrorIs(t, err, ErrNoSession)
	_, err = c.Cancel(1)
	require.ErrorIs(t, err, ErrNoSession)
	_, err = c.Snapshot(1)
	require.ErrorIs(t, err, ErrNoSession)
}
