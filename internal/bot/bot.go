// Package bot is the Telegram surface over the review core. It maps
// chat commands onto the four session operations and holds no
// scheduling logic of its own.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/example/lexibot/internal/database"
	"github.com/example/lexibot/internal/session"
	"github.com/example/lexibot/pkg/models"
)

// MenuButton represents a button in an inline keyboard row.
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates an inline keyboard from menu buttons.
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// Bot wires Telegram updates to the session coordinator.
type Bot struct {
	api   *tgbotapi.BotAPI
	coord *session.Coordinator
	store *database.SQLStore
	log   zerolog.Logger
}

// New creates the bot. The learner id is the Telegram chat id.
func New(token string, coord *session.Coordinator, store *database.SQLStore, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("bot: create api: %w", err)
	}
	return &Bot{api: api, coord: coord, store: store, log: log}, nil
}

// Start consumes Telegram updates until the context is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	b.log.Info().Str("username", b.api.Self.UserName).Msg("bot started")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	learnerID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		b.registerLearner(ctx, msg)
	case "review":
		b.startReview(ctx, learnerID)
	case "done":
		b.endReview(learnerID)
	case "cancel":
		b.cancelReview(learnerID)
	case "stats":
		b.sendStats(ctx, learnerID)
	default:
		b.send(learnerID, "Commands: /review, /done, /cancel, /stats")
	}
}

func (b *Bot) registerLearner(ctx context.Context, msg *tgbotapi.Message) {
	learner := models.Learner{
		ID:               msg.Chat.ID,
		Username:         msg.From.UserName,
		FirstName:        msg.From.FirstName,
		RemindersEnabled: true,
	}
	if err := b.store.UpsertLearner(ctx, &learner); err != nil {
		b.log.Error().Err(err).Int64("learner_id", learner.ID).Msg("register learner")
		b.send(learner.ID, "Something went wrong, try again later.")
		return
	}
	b.send(learner.ID, "Welcome! Use /review to start reviewing your due cards.")
}

func (b *Bot) startReview(ctx context.Context, learnerID int64) {
	progress, err := b.coord.Start(ctx, learnerID)
	if errors.Is(err, session.ErrSessionActive) {
		b.send(learnerID, "You already have a review in progress. Use /done to finish it or /cancel to abort.")
		return
	}
	if err != nil {
		b.log.Error().Err(err).Int64("learner_id", learnerID).Msg("start session")
		b.send(learnerID, "Could not start a review, try again later.")
		return
	}
	if progress.Total == 0 {
		// Nothing due; release the empty session right away.
		if _, err := b.coord.End(learnerID); err != nil {
			b.log.Error().Err(err).Int64("learner_id", learnerID).Msg("end empty session")
		}
		b.send(learnerID, "No cards due right now. Come back later!")
		return
	}
	b.send(learnerID, fmt.Sprintf("%d cards due. Let's go!", progress.Total))
	b.serveNextCard(ctx, learnerID)
}

// serveNextCard shows the front of the current card with a reveal
// button, or wraps the session up when the queue is exhausted.
func (b *Bot) serveNextCard(ctx context.Context, learnerID int64) {
	card, err := b.coord.NextCard(learnerID)
	if errors.Is(err, session.ErrQueueExhausted) {
		progress, endErr := b.coord.End(learnerID)
		if endErr != nil {
			b.log.Error().Err(endErr).Int64("learner_id", learnerID).Msg("end session")
			return
		}
		b.send(learnerID, fmt.Sprintf("Session complete: %d cards reviewed.", progress.Position))
		return
	}
	if err != nil {
		b.log.Error().Err(err).Int64("learner_id", learnerID).Msg("next card")
		return
	}

	entry, err := b.store.GetEntry(ctx, card.EntryID)
	if err != nil {
		b.log.Error().Err(err).Int64("entry_id", card.EntryID).Msg("load entry")
		b.send(learnerID, "Could not load the card, try /review again.")
		return
	}

	keyboard := createKeyboard([][]MenuButton{{
		{Text: "Show answer", CallbackData: fmt.Sprintf("reveal:%d", card.ID)},
	}})
	b.sendWithKeyboard(learnerID, "❓ "+entry.Front, keyboard)
}

func (b *Bot) endReview(learnerID int64) {
	progress, err := b.coord.End(learnerID)
	if errors.Is(err, session.ErrNoSession) {
		b.send(learnerID, "No review in progress. Use /review to start one.")
		return
	}
	if err != nil {
		b.log.Error().Err(err).Int64("learner_id", learnerID).Msg("end session")
		return
	}
	b.send(learnerID, fmt.Sprintf("Session ended: %d reviewed, %d skipped.", progress.Position, progress.Remaining()))
}

func (b *Bot) cancelReview(learnerID int64) {
	_, err := b.coord.Cancel(learnerID)
	if errors.Is(err, session.ErrNoSession) {
		b.send(learnerID, "No review in progress.")
		return
	}
	if err != nil {
		b.log.Error().Err(err).Int64("learner_id", learnerID).Msg("cancel session")
		return
	}
	b.send(learnerID, "Review cancelled. Graded cards stay saved.")
}

func (b *Bot) sendStats(ctx context.Context, learnerID int64) {
	stats, err := b.store.LearnerStats(ctx, learnerID)
	if err != nil {
		b.log.Error().Err(err).Int64("learner_id", learnerID).Msg("learner stats")
		b.send(learnerID, "Could not load your statistics.")
		return
	}
	b.send(learnerID, fmt.Sprintf(
		"Your cards\nTotal: %d\nDue now: %d\nMastered: %d\nAvg ease: %.2f",
		stats.TotalCards, stats.DueCards, stats.MasteredCards, stats.AvgEaseFactor))
}

// SendReminder implements jobs.Notifier.
func (b *Bot) SendReminder(learnerID int64, dueCount int) error {
	msg := tgbotapi.NewMessage(learnerID,
		fmt.Sprintf("You have %d cards due for review. Use /review when ready.", dueCount))
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("send message")
	}
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("send message")
	}
}

// Stop shuts the bot down.
func (b *Bot) Stop(ctx context.Context) error {
	b.api.StopReceivingUpdates()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}
