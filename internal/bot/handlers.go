package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/lexibot/internal/database"
	"github.com/example/lexibot/internal/session"
	"github.com/example/lexibot/internal/srs"
	"github.com/example/lexibot/pkg/models"
)

// handleCallback routes inline-keyboard presses: "reveal:<cardID>" shows
// the answer with the grade row, "grade:<cardID>:<g>" submits the
// outcome.
func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// Acknowledge so the client stops the spinner.
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Error().Err(err).Msg("ack callback")
	}

	learnerID := cb.Message.Chat.ID
	parts := strings.Split(cb.Data, ":")
	switch parts[0] {
	case "reveal":
		if len(parts) != 2 {
			return
		}
		cardID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return
		}
		b.revealAnswer(ctx, learnerID, cardID)
	case "grade":
		if len(parts) != 3 {
			return
		}
		cardID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return
		}
		grade, err := strconv.Atoi(parts[2])
		if err != nil {
			return
		}
		b.submitGrade(ctx, learnerID, cardID, models.Grade(grade))
	}
}

// revealAnswer shows the back of the card together with the grade row.
func (b *Bot) revealAnswer(ctx context.Context, learnerID, cardID int64) {
	card, err := b.coord.NextCard(learnerID)
	if err != nil {
		b.send(learnerID, "That card's session is over. Use /review to start again.")
		return
	}
	if card.ID != cardID {
		// Stale button from an earlier card; show the current one instead.
		b.serveNextCard(ctx, learnerID)
		return
	}

	entry, err := b.store.GetEntry(ctx, card.EntryID)
	if err != nil {
		b.log.Error().Err(err).Int64("entry_id", card.EntryID).Msg("load entry")
		return
	}

	text := fmt.Sprintf("%s: %s", entry.Front, entry.Back)
	if entry.Notes != "" {
		text += "\n" + entry.Notes
	}
	text += "\n\nHow well did you recall it?"
	b.sendWithKeyboard(learnerID, text, gradeKeyboard(cardID))
}

func gradeKeyboard(cardID int64) tgbotapi.InlineKeyboardMarkup {
	row := make([]MenuButton, 0, 6)
	for g := models.GradeBlackout; g <= models.GradePerfect; g++ {
		row = append(row, MenuButton{
			Text:         g.String(),
			CallbackData: fmt.Sprintf("grade:%d:%d", cardID, int(g)),
		})
	}
	return createKeyboard([][]MenuButton{row})
}

// submitGrade submits the outcome and serves the next card.
func (b *Bot) submitGrade(ctx context.Context, learnerID, cardID int64, grade models.Grade) {
	updated, err := b.coord.SubmitOutcome(ctx, learnerID, cardID, grade)
	switch {
	case errors.Is(err, session.ErrNoSession):
		b.send(learnerID, "That session is over. Use /review to start again.")
		return
	case errors.Is(err, session.ErrOutOfOrder):
		// Stale grade button; show the actual current card.
		b.serveNextCard(ctx, learnerID)
		return
	case errors.Is(err, srs.ErrInvalidGrade):
		b.send(learnerID, "Please use the grade buttons.")
		return
	case errors.Is(err, database.ErrPersistence):
		b.send(learnerID, "Saving failed, press the grade again.")
		return
	case err != nil:
		b.log.Error().Err(err).Int64("learner_id", learnerID).Msg("submit outcome")
		return
	}

	if grade.IsSuccess() {
		b.send(learnerID, fmt.Sprintf("Next review in %d day(s).", updated.IntervalDays))
	} else {
		b.send(learnerID, "No worries, you'll see this one again tomorrow.")
	}
	b.serveNextCard(ctx, learnerID)
}
