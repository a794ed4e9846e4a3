package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/lexibot/internal/bot"
	"github.com/example/lexibot/internal/config"
	"github.com/example/lexibot/internal/database"
	"github.com/example/lexibot/internal/excel"
	"github.com/example/lexibot/internal/jobs"
	"github.com/example/lexibot/internal/session"
	"github.com/example/lexibot/internal/srs"
	"github.com/example/lexibot/internal/stress"
	"github.com/example/lexibot/pkg/models"
)

func main() {
	var (
		stressFlag    = flag.Bool("stress", false, "run the stress harness instead of the bot")
		stressCards   = flag.Int("stress-cards", 2000, "cards per learner for the stress run")
		stressConc    = flag.Int("stress-sessions", 8, "concurrent sessions for the stress run")
		stressFor     = flag.Duration("stress-duration", 5*time.Second, "stress run duration")
		importFile    = flag.String("import", "", "import a deck file (xlsx or csv) and exit")
		importLearner = flag.Int64("import-learner", 0, "learner id to create cards for on import")
	)
	flag.Parse()

	cfg := config.Load()
	log := newLogger(cfg.LogLevel)

	if *stressFlag {
		runStress(log, *stressCards, *stressConc, *stressFor)
		return
	}

	store, err := database.Open(cfg.DBType, cfg.DBDSN, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to database")
	}
	defer store.Close()

	if *importFile != "" {
		runImport(log, store, *importFile, *importLearner)
		return
	}

	if cfg.TelegramToken == "" {
		log.Fatal().Msg("TELEGRAM_BOT_TOKEN environment variable is not set")
	}

	engine := srs.New()
	if cfg.MaxIntervalDays > 0 {
		engine.MaxIntervalDays = cfg.MaxIntervalDays
	}

	events := &eventLogger{log: log}
	coord := session.New(store, engine, session.Config{
		IdleTimeout: cfg.SessionIdleTimeout,
		MaxQueue:    cfg.SessionMaxQueue,
		Sink:        events,
	})

	b, err := bot.New(cfg.TelegramToken, coord, store, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create bot")
	}

	runner := jobs.New(coord, store, b, jobs.Config{
		ReminderStartHour: cfg.ReminderStartHour,
		ReminderEndHour:   cfg.ReminderEndHour,
	}, log)
	runner.Start()
	defer runner.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	if err := b.Start(ctx); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("bot stopped")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := b.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("bot shutdown")
	}
	log.Info().Msg("stopped")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func runStress(log zerolog.Logger, cards, sessions int, duration time.Duration) {
	log.Info().Int("cards", cards).Int("sessions", sessions).Dur("duration", duration).Msg("starting stress run")

	result, err := stress.Run(context.Background(), stress.Config{
		Cards:    cards,
		Sessions: sessions,
		Duration: duration,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("stress run failed")
	}

	m := result.Metrics
	log.Info().
		Bool("success", result.Success).
		Int("reviews", m.Reviews).
		Int("sessions", m.SessionsStarted).
		Float64("reviews_per_sec", m.ReviewsPerSecond).
		Dur("avg_review_compute", m.AvgReviewCompute).
		Dur("avg_queue_build", m.AvgQueueBuild).
		Dur("p95_submit", m.P95Submit).
		Float64("stability", m.StabilityScore).
		Msg("stress run complete")
	for _, e := range result.Errors {
		log.Warn().Msg(e)
	}
	for _, r := range result.Recommendations {
		fmt.Println("recommendation:", r)
	}
	if !result.Success {
		os.Exit(1)
	}
}

func runImport(log zerolog.Logger, store *database.SQLStore, path string, learnerID int64) {
	imp := excel.New(store)
	cfg := excel.DefaultImportConfig()
	cfg.FilePath = path
	cfg.LearnerID = learnerID

	result, err := imp.Import(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("import failed")
	}
	log.Info().
		Int("processed", result.TotalProcessed).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Int("cards_created", result.CardsCreated).
		Msg("import complete")
	for _, e := range result.Errors {
		log.Warn().Msg(e)
	}
}

// eventLogger feeds domain events into the structured log; it stands in
// for a real telemetry pipeline.
type eventLogger struct {
	log zerolog.Logger
}

func (e *eventLogger) Emit(ev models.Event) {
	e.log.Info().
		Str("event", string(ev.Type)).
		Int64("learner_id", ev.LearnerID).
		Int64("card_id", ev.CardID).
		Str("session_id", ev.SessionID).
		Msg("domain event")
}
