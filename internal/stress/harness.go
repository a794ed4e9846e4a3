// Package stress drives synthetic review load against the scheduling
// core and reports timing, memory, and stability metrics. It is a
// diagnostic tool for validating scale targets, never part of the
// production request path.
package stress

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/lexibot/internal/database"
	"github.com/example/lexibot/internal/session"
	"github.com/example/lexibot/internal/srs"
	"github.com/example/lexibot/pkg/models"
)

// Config sets the synthetic load shape.
type Config struct {
	Cards    int           // cards per learner; zero → 2000
	Sessions int           // concurrent sessions; zero → 8
	Duration time.Duration // how long to run; zero → 5s
}

// Metrics are the measurements collected during a run.
type Metrics struct {
	Reviews          int           `json:"reviews"`
	SessionsStarted  int           `json:"sessions_started"`
	ReviewsPerSecond float64       `json:"reviews_per_second"`
	AvgReviewCompute time.Duration `json:"avg_review_compute"` // SM-2 transform alone
	AvgQueueBuild    time.Duration `json:"avg_queue_build"`    // session start incl. snapshot
	AvgSubmit        time.Duration `json:"avg_submit"`
	P95Submit        time.Duration `json:"p95_submit"`
	HeapBefore       uint64        `json:"heap_before"`
	HeapAfter        uint64        `json:"heap_after"`
	StabilityScore   float64       `json:"stability_score"` // 1.0 = no operation failed
}

// Result is the outcome of a stress run.
type Result struct {
	Success         bool     `json:"success"`
	Metrics         Metrics  `json:"metrics"`
	Errors          []string `json:"errors"`
	Recommendations []string `json:"recommendations"`
}

// virtualClock is a shared clock workers advance by a day whenever a
// queue empties, so freshly rescheduled cards become due again without
// waiting out real intervals.
type virtualClock struct {
	base   time.Time
	offset atomic.Int64 // nanoseconds added to base
}

func (v *virtualClock) Now() time.Time {
	return v.base.Add(time.Duration(v.offset.Load()))
}

func (v *virtualClock) AdvanceDay() {
	v.offset.Add(int64(24 * time.Hour))
}

// worker accumulates its own samples; they are merged when the run ends.
type worker struct {
	reviews  int
	sessions int
	starts   []time.Duration
	submits  []time.Duration
	errs     []string
	failed   int
}

// Run executes a stress run with the given config and reports the
// collected metrics. The context cancels the run early.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Cards <= 0 {
		cfg.Cards = 2000
	}
	if cfg.Sessions <= 0 {
		cfg.Sessions = 8
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 5 * time.Second
	}

	clock := &virtualClock{base: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := database.NewMemoryStore(clock.Now)
	engine := srs.New()
	coord := session.New(store, engine, session.Config{})

	if err := seed(ctx, store, clock.Now(), cfg); err != nil {
		return nil, err
	}

	avgCompute := calibrateEngine(engine, clock.Now())

	runtime.GC()
	var before runtime.MemStats
	runtime.ReadMemStats(&before)

	deadline := time.Now().Add(cfg.Duration)
	runCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	workers := make([]*worker, cfg.Sessions)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Sessions; i++ {
		workers[i] = &worker{}
		wg.Add(1)
		go func(learnerID int64, w *worker) {
			defer wg.Done()
			drive(runCtx, coord, clock, learnerID, w)
		}(int64(i+1), workers[i])
	}
	wg.Wait()

	var after runtime.MemStats
	runtime.ReadMemStats(&after)

	return summarize(cfg, workers, avgCompute, before.HeapAlloc, after.HeapAlloc), nil
}

// seed creates cfg.Cards cards for each learner, all due at start.
func seed(ctx context.Context, store *database.MemoryStore, now time.Time, cfg Config) error {
	for l := 1; l <= cfg.Sessions; l++ {
		for e := 1; e <= cfg.Cards; e++ {
			card := models.NewCard(int64(l), int64(e), now.Add(-time.Duration(e)*time.Minute))
			if err := store.SaveCard(ctx, &card); err != nil {
				return fmt.Errorf("stress: seed cards: %w", err)
			}
		}
	}
	return nil
}

// calibrateEngine times the bare SM-2 transform, isolated from session
// and store overhead.
func calibrateEngine(engine *srs.Engine, now time.Time) time.Duration {
	const iterations = 10000
	card := models.Card{ID: 1, EaseFactor: 2.5, IntervalDays: 6, Repetitions: 2}
	start := time.Now()
	for i := 0; i < iterations; i++ {
		card, _ = engine.Review(card, models.GradeCorrectHesitation, now)
		now = now.AddDate(0, 0, 1)
	}
	return time.Since(start) / iterations
}

// drive runs one learner's session loop until the context expires.
func drive(ctx context.Context, coord *session.Coordinator, clock *virtualClock, learnerID int64, w *worker) {
	grades := []models.Grade{
		models.GradeCorrectHesitation, models.GradePerfect,
		models.GradeCorrectDifficult, models.GradeIncorrect,
	}

	for ctx.Err() == nil {
		startAt := time.Now()
		_, err := coord.Start(ctx, learnerID)
		w.starts = append(w.starts, time.Since(startAt))
		if err != nil {
			w.fail(fmt.Sprintf("start learner %d: %v", learnerID, err))
			return
		}
		w.sessions++

		for ctx.Err() == nil {
			card, err := coord.NextCard(learnerID)
			if errors.Is(err, session.ErrQueueExhausted) {
				break
			}
			if err != nil {
				w.fail(fmt.Sprintf("next learner %d: %v", learnerID, err))
				break
			}

			grade := grades[w.reviews%len(grades)]
			submitAt := time.Now()
			_, err = coord.SubmitOutcome(ctx, learnerID, card.ID, grade)
			w.submits = append(w.submits, time.Since(submitAt))
			if err != nil {
				w.fail(fmt.Sprintf("submit learner %d card %d: %v", learnerID, card.ID, err))
				break
			}
			w.reviews++
		}

		if _, err := coord.End(learnerID); err != nil {
			w.fail(fmt.Sprintf("end learner %d: %v", learnerID, err))
			return
		}
		// Everything rescheduled into the future; jump the clock so the
		// next session has due cards again.
		clock.AdvanceDay()
	}
}

func (w *worker) fail(msg string) {
	w.failed++
	if len(w.errs) < 20 {
		w.errs = append(w.errs, msg)
	}
}
