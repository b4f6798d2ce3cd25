package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/studybot/studybot/internal/access"
	"github.com/studybot/studybot/internal/logger"
)

// Inline button payloads
const (
	CallbackCheckSubscription = "check_subscription"
	CallbackSolveMath         = "solve_math"
	CallbackExplainLesson     = "explain_lesson"
	CallbackAnalyzeImage      = "analyze_image"
	CallbackHelp              = "help"
)

// handleCallbackQuery answers the button press, re-runs admission and edits
// the originating message with the result.
func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	logger.Debug("Handling callback query", requestFields(ctx, map[string]interface{}{
		"callback_data": callback.Data,
		"chat_id":       chatID,
		"callback_id":   callback.ID,
	}))

	if _, err := b.rateLimitedRequest(ctx, chatID, tgbotapi.NewCallback(callback.ID, "")); err != nil {
		logger.Error("Failed to answer callback query", requestFields(ctx, map[string]interface{}{
			"error":       err.Error(),
			"callback_id": callback.ID,
		}))
	}

	decision, err := b.checkAdmission(ctx, callback.From.ID)
	if err != nil {
		return err
	}

	if callback.Data == CallbackCheckSubscription {
		b.editMessage(ctx, chatID, messageID, subscriptionCheckText(decision))
		return nil
	}

	if !decision.Allowed {
		b.editMessage(ctx, chatID, messageID, b.denialText(decision))
		return nil
	}

	switch callback.Data {
	case CallbackSolveMath:
		b.editMessage(ctx, chatID, messageID, SolveMathPrompt)
	case CallbackExplainLesson:
		b.editMessage(ctx, chatID, messageID, ExplainLessonPrompt)
	case CallbackAnalyzeImage:
		b.editMessage(ctx, chatID, messageID, AnalyzeImagePrompt)
	case CallbackHelp:
		b.editMessage(ctx, chatID, messageID, b.helpText())
	default:
		logger.Debug("Unknown callback data", requestFields(ctx, map[string]interface{}{
			"callback_data": callback.Data,
		}))
	}
	return nil
}

func subscriptionCheckText(decision access.Decision) string {
	switch {
	case decision.Allowed:
		return SubscriptionConfirmed
	case decision.Reason == access.ReasonBanned:
		return BannedMessage
	default:
		return SubscriptionStillMissing
	}
}
