// Package database owns durable card, entry, and learner state. It
// contains no scheduling logic; the review core talks to it through the
// CardStore interface.
package database

import (
	"context"
	"errors"
	"time"

	"github.com/example/lexibot/pkg/models"
)

var (
	// ErrPersistence wraps driver failures. Writes that fail with it are
	// retryable by the caller.
	ErrPersistence = errors.New("database: persistence failure")
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("database: not found")
)

// Clock supplies the current time. Injectable for deterministic tests.
type Clock func() time.Time

// CardStore is the persistence boundary the review core depends on.
// SaveCard must be atomic per card.
type CardStore interface {
	LoadCards(ctx context.Context, learnerID int64) ([]models.Card, error)
	GetCard(ctx context.Context, id int64) (models.Card, error)
	SaveCard(ctx context.Context, card *models.Card) error
	LogOutcome(ctx context.Context, learnerID int64, outcome models.ReviewOutcome) error
	Now() time.Time
}

// EntryStore manages the vocabulary entries cards are built from.
type EntryStore interface {
	CreateEntry(ctx context.Context, entry *models.Entry) error
	UpdateEntry(ctx context.Context, entry *models.Entry) error
	GetEntry(ctx context.Context, id int64) (models.Entry, error)
	FindEntry(ctx context.Context, front, deck string) (models.Entry, error)
}

// LearnerStore manages learner records and aggregates.
type LearnerStore interface {
	UpsertLearner(ctx context.Context, learner *models.Learner) error
	Learners(ctx context.Context) ([]models.Learner, error)
	LearnerStats(ctx context.Context, learnerID int64) (models.LearnerStats, error)
}
