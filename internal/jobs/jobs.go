// Package jobs runs the background tasks around the review core:
// idle-session expiry and due-card reminders.
package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/example/lexibot/internal/database"
	"github.com/example/lexibot/internal/session"
)

// Notifier delivers due-card reminders to learners. Implemented by the
// bot surface.
type Notifier interface {
	SendReminder(learnerID int64, dueCount int) error
}

// Config tunes the background jobs.
type Config struct {
	ReminderStartHour int // quiet hours: no reminders before this hour
	ReminderEndHour   int // or after this hour
	SweepInterval     time.Duration // zero → 1 minute
}

// Runner owns the gocron scheduler and the jobs it drives.
type Runner struct {
	scheduler *gocron.Scheduler
	coord     *session.Coordinator
	store     *database.SQLStore
	notifier  Notifier
	cfg       Config
	log       zerolog.Logger
}

// New creates a Runner. The notifier may be nil, which disables
// reminders and keeps only the expiry sweep.
func New(coord *session.Coordinator, store *database.SQLStore, notifier Notifier, cfg Config, log zerolog.Logger) *Runner {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	return &Runner{
		scheduler: gocron.NewScheduler(time.UTC),
		coord:     coord,
		store:     store,
		notifier:  notifier,
		cfg:       cfg,
		log:       log,
	}
}

// Start schedules the jobs and runs them in the background.
func (r *Runner) Start() {
	r.scheduler.Every(r.cfg.SweepInterval).Do(r.sweepExpiredSessions)
	if r.notifier != nil {
		r.scheduler.Every(1).Hour().Do(r.checkAndSendReminders)
	}
	r.scheduler.StartAsync()
}

// Stop terminates all scheduled jobs.
func (r *Runner) Stop() {
	r.scheduler.Stop()
}

// sweepExpiredSessions releases sessions idle past the coordinator's
// window so stalled learners can start fresh.
func (r *Runner) sweepExpiredSessions() {
	if n := r.coord.ExpireIdle(r.store.Now()); n > 0 {
		r.log.Info().Int("expired", n).Msg("expired idle sessions")
	}
}

// checkAndSendReminders notifies learners with due cards, skipping the
// configured quiet hours.
func (r *Runner) checkAndSendReminders() {
	now := r.store.Now()
	hour := now.Hour()
	if hour < r.cfg.ReminderStartHour || hour > r.cfg.ReminderEndHour {
		r.log.Debug().Int("hour", hour).Msg("outside reminder hours, skipping")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	learners, err := r.store.Learners(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("list learners for reminders")
		return
	}

	for _, learner := range learners {
		if !learner.RemindersEnabled {
			continue
		}
		stats, err := r.store.LearnerStats(ctx, learner.ID)
		if err != nil {
			r.log.Error().Err(err).Int64("learner_id", learner.ID).Msg("learner stats")
			continue
		}
		if stats.DueCards == 0 {
			continue
		}
		if err := r.notifier.SendReminder(learner.ID, stats.DueCards); err != nil {
			r.log.Error().Err(err).Int64("learner_id", learner.ID).Msg("send reminder")
		}
	}
}
