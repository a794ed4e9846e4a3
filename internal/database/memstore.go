package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/lexibot/pkg/models"
)

// MemoryStore is an in-memory CardStore for tests and the stress
// harness. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	cards    map[int64]models.Card
	byOwner  map[int64][]int64
	log      map[int64][]models.ReviewOutcome
	nextID   int64
	clock    Clock
	failSave error // when set, SaveCard fails with it
}

var _ CardStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store. A nil clock defaults
// to time.Now.
func NewMemoryStore(clock Clock) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{
		cards:   make(map[int64]models.Card),
		byOwner: make(map[int64][]int64),
		log:     make(map[int64][]models.ReviewOutcome),
		nextID:  1,
		clock:   clock,
	}
}

// Now returns the store's current time.
func (m *MemoryStore) Now() time.Time {
	return m.clock()
}

// LoadCards returns copies of every card belonging to a learner.
func (m *MemoryStore) LoadCards(_ context.Context, learnerID int64) ([]models.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.byOwner[learnerID]
	cards := make([]models.Card, 0, len(ids))
	for _, id := range ids {
		cards = append(cards, m.cards[id])
	}
	return cards, nil
}

// GetCard returns one card by id.
func (m *MemoryStore) GetCard(_ context.Context, id int64) (models.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	card, ok := m.cards[id]
	if !ok {
		return models.Card{}, fmt.Errorf("%w: card %d", ErrNotFound, id)
	}
	return card, nil
}

// SaveCard stores the card, assigning an id on first save.
func (m *MemoryStore) SaveCard(_ context.Context, card *models.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failSave != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, m.failSave)
	}

	if card.ID == 0 {
		card.ID = m.nextID
		m.nextID++
		m.byOwner[card.LearnerID] = append(m.byOwner[card.LearnerID], card.ID)
	} else if _, ok := m.cards[card.ID]; !ok {
		return fmt.Errorf("%w: card %d", ErrNotFound, card.ID)
	}
	m.cards[card.ID] = *card
	return nil
}

// LogOutcome appends a review outcome to the learner's log.
func (m *MemoryStore) LogOutcome(_ context.Context, learnerID int64, outcome models.ReviewOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log[learnerID] = append(m.log[learnerID], outcome)
	return nil
}

// Outcomes returns the logged outcomes for a learner, oldest first.
func (m *MemoryStore) Outcomes(learnerID int64) []models.ReviewOutcome {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ReviewOutcome, len(m.log[learnerID]))
	copy(out, m.log[learnerID])
	return out
}

// FailSaves makes subsequent SaveCard calls fail with ErrPersistence
// wrapping cause; a nil cause restores normal behavior.
func (m *MemoryStore) FailSaves(cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSave = cause
}
