package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/example/lexibot/pkg/models"
)

// Supported SQL dialects.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// SQLStore is a sqlx-backed store supporting sqlite and postgres.
type SQLStore struct {
	db      *sqlx.DB
	dialect string
	clock   Clock
}

var (
	_ CardStore    = (*SQLStore)(nil)
	_ EntryStore   = (*SQLStore)(nil)
	_ LearnerStore = (*SQLStore)(nil)
)

// Open connects to the database, bootstraps the schema, and returns a
// ready store. A nil clock defaults to time.Now.
func Open(dialect, dsn string, clock Clock) (*SQLStore, error) {
	driver := "sqlite3"
	if dialect == DialectPostgres {
		driver = "postgres"
	} else if dialect != DialectSQLite {
		return nil, fmt.Errorf("database: unknown dialect %q", dialect)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("database: connect: %w", err)
	}

	if dialect == DialectSQLite {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return nil, fmt.Errorf("database: enable foreign keys: %w", err)
		}
		// SQLite doesn't support multiple writers.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if clock == nil {
		clock = time.Now
	}
	s := &SQLStore{db: db, dialect: dialect, clock: clock}
	if err := s.initializeSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Now returns the store's current time.
func (s *SQLStore) Now() time.Time {
	return s.clock()
}

// initializeSchema creates tables if they don't exist.
func (s *SQLStore) initializeSchema() error {
	idCol := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == DialectPostgres {
		idCol = "BIGSERIAL PRIMARY KEY"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS learners (
			id BIGINT PRIMARY KEY,
			username TEXT,
			first_name TEXT,
			reminders_enabled BOOLEAN DEFAULT true,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS entries (
			id %s,
			front TEXT NOT NULL,
			back TEXT NOT NULL,
			deck TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE(front, deck)
		)`, idCol),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS cards (
			id %s,
			learner_id BIGINT NOT NULL,
			entry_id BIGINT NOT NULL,
			ease_factor REAL NOT NULL DEFAULT 2.5,
			interval_days INTEGER NOT NULL DEFAULT 0,
			repetitions INTEGER NOT NULL DEFAULT 0,
			lapses INTEGER NOT NULL DEFAULT 0,
			due_at TIMESTAMP NOT NULL,
			last_reviewed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE(learner_id, entry_id)
		)`, idCol),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS review_log (
			id %s,
			learner_id BIGINT NOT NULL,
			card_id BIGINT NOT NULL,
			grade INTEGER NOT NULL,
			recorded_at TIMESTAMP NOT NULL,
			latency_ms BIGINT NOT NULL DEFAULT 0
		)`, idCol),
		`CREATE INDEX IF NOT EXISTS idx_cards_learner_due ON cards(learner_id, due_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("database: create schema: %w", err)
		}
	}
	return nil
}

// LoadCards returns every card belonging to a learner.
func (s *SQLStore) LoadCards(ctx context.Context, learnerID int64) ([]models.Card, error) {
	var cards []models.Card
	err := s.db.SelectContext(ctx, &cards,
		"SELECT * FROM cards WHERE learner_id = $1 ORDER BY id", learnerID)
	if err != nil {
		return nil, fmt.Errorf("%w: load cards: %v", ErrPersistence, err)
	}
	return cards, nil
}

// GetCard returns one card by id.
func (s *SQLStore) GetCard(ctx context.Context, id int64) (models.Card, error) {
	var card models.Card
	err := s.db.GetContext(ctx, &card, "SELECT * FROM cards WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Card{}, fmt.Errorf("%w: card %d", ErrNotFound, id)
	}
	if err != nil {
		return models.Card{}, fmt.Errorf("%w: get card: %v", ErrPersistence, err)
	}
	return card, nil
}

// SaveCard inserts the card when it has no id yet, otherwise updates it.
// Each call is a single statement, so the write is atomic per card.
func (s *SQLStore) SaveCard(ctx context.Context, card *models.Card) error {
	if card.ID == 0 {
		return s.insertCard(ctx, card)
	}
	return s.updateCard(ctx, card)
}

func (s *SQLStore) insertCard(ctx context.Context, card *models.Card) error {
	query := `
		INSERT INTO cards (
			learner_id, entry_id, ease_factor, interval_days, repetitions,
			lapses, due_at, last_reviewed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	args := []interface{}{
		card.LearnerID, card.EntryID, card.EaseFactor, card.IntervalDays,
		card.Repetitions, card.Lapses, card.DueAt, card.LastReviewedAt,
		card.CreatedAt, card.UpdatedAt,
	}

	if s.dialect == DialectPostgres {
		err := s.db.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&card.ID)
		if err != nil {
			return fmt.Errorf("%w: insert card: %v", ErrPersistence, err)
		}
		return nil
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: insert card: %v", ErrPersistence, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: insert card id: %v", ErrPersistence, err)
	}
	card.ID = id
	return nil
}

func (s *SQLStore) updateCard(ctx context.Context, card *models.Card) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE cards SET
			ease_factor = $1,
			interval_days = $2,
			repetitions = $3,
			lapses = $4,
			due_at = $5,
			last_reviewed_at = $6,
			updated_at = $7
		WHERE id = $8`,
		card.EaseFactor, card.IntervalDays, card.Repetitions, card.Lapses,
		card.DueAt, card.LastReviewedAt, card.UpdatedAt, card.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: update card: %v", ErrPersistence, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update card rows: %v", ErrPersistence, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: card %d", ErrNotFound, card.ID)
	}
	return nil
}

// LogOutcome appends a submitted review outcome to the review log.
func (s *SQLStore) LogOutcome(ctx context.Context, learnerID int64, outcome models.ReviewOutcome) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_log (learner_id, card_id, grade, recorded_at, latency_ms)
		VALUES ($1, $2, $3, $4, $5)`,
		learnerID, outcome.CardID, int(outcome.Grade), outcome.RecordedAt, outcome.LatencyMs,
	)
	if err != nil {
		return fmt.Errorf("%w: log outcome: %v", ErrPersistence, err)
	}
	return nil
}

// CreateEntry inserts a vocabulary entry and backfills its id.
func (s *SQLStore) CreateEntry(ctx context.Context, entry *models.Entry) error {
	now := s.clock()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	query := `
		INSERT INTO entries (front, back, deck, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	args := []interface{}{entry.Front, entry.Back, entry.Deck, entry.Notes, entry.CreatedAt, entry.UpdatedAt}

	if s.dialect == DialectPostgres {
		err := s.db.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&entry.ID)
		if err != nil {
			return fmt.Errorf("%w: create entry: %v", ErrPersistence, err)
		}
		return nil
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: create entry: %v", ErrPersistence, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: create entry id: %v", ErrPersistence, err)
	}
	entry.ID = id
	return nil
}

// UpdateEntry modifies an existing entry.
func (s *SQLStore) UpdateEntry(ctx context.Context, entry *models.Entry) error {
	entry.UpdatedAt = s.clock()
	_, err := s.db.ExecContext(ctx, `
		UPDATE entries SET back = $1, notes = $2, updated_at = $3 WHERE id = $4`,
		entry.Back, entry.Notes, entry.UpdatedAt, entry.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: update entry: %v", ErrPersistence, err)
	}
	return nil
}

// GetEntry returns one entry by id.
func (s *SQLStore) GetEntry(ctx context.Context, id int64) (models.Entry, error) {
	var entry models.Entry
	err := s.db.GetContext(ctx, &entry, "SELECT * FROM entries WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Entry{}, fmt.Errorf("%w: entry %d", ErrNotFound, id)
	}
	if err != nil {
		return models.Entry{}, fmt.Errorf("%w: get entry: %v", ErrPersistence, err)
	}
	return entry, nil
}

// FindEntry looks an entry up by its front text and deck.
func (s *SQLStore) FindEntry(ctx context.Context, front, deck string) (models.Entry, error) {
	var entry models.Entry
	err := s.db.GetContext(ctx, &entry,
		"SELECT * FROM entries WHERE front = $1 AND deck = $2", front, deck)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Entry{}, fmt.Errorf("%w: entry %q in deck %q", ErrNotFound, front, deck)
	}
	if err != nil {
		return models.Entry{}, fmt.Errorf("%w: find entry: %v", ErrPersistence, err)
	}
	return entry, nil
}

// UpsertLearner creates or refreshes a learner record.
func (s *SQLStore) UpsertLearner(ctx context.Context, learner *models.Learner) error {
	now := s.clock()
	learner.UpdatedAt = now
	if learner.CreatedAt.IsZero() {
		learner.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO learners (id, username, first_name, reminders_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			reminders_enabled = EXCLUDED.reminders_enabled,
			updated_at = EXCLUDED.updated_at`,
		learner.ID, learner.Username, learner.FirstName,
		learner.RemindersEnabled, learner.CreatedAt, learner.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: upsert learner: %v", ErrPersistence, err)
	}
	return nil
}

// Learners returns all registered learners.
func (s *SQLStore) Learners(ctx context.Context) ([]models.Learner, error) {
	var learners []models.Learner
	err := s.db.SelectContext(ctx, &learners, "SELECT * FROM learners ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("%w: list learners: %v", ErrPersistence, err)
	}
	return learners, nil
}

// LearnerStats aggregates a learner's card state.
func (s *SQLStore) LearnerStats(ctx context.Context, learnerID int64) (models.LearnerStats, error) {
	var stats models.LearnerStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) AS total_cards,
			COALESCE(SUM(CASE WHEN due_at <= $2 THEN 1 ELSE 0 END), 0) AS due_cards,
			COALESCE(SUM(CASE WHEN repetitions >= 5 AND interval_days >= 30 THEN 1 ELSE 0 END), 0) AS mastered_cards,
			COALESCE(SUM(lapses), 0) AS total_lapses,
			COALESCE(AVG(ease_factor), 2.5) AS avg_ease_factor
		FROM cards WHERE learner_id = $1`,
		learnerID, s.clock(),
	)
	if err != nil {
		return models.LearnerStats{}, fmt.Errorf("%w: learner stats: %v", ErrPersistence, err)
	}
	return stats, nil
}
