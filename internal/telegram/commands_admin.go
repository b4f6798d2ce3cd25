package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/studybot/studybot/internal/logger"
)

// Admin console. These commands bypass the access gate and check only the
// configured admin id.

// BroadcastResult counts deliveries of one broadcast.
type BroadcastResult struct {
	Success int
	Failed  int
}

func (b *Bot) requireAdmin(ctx context.Context, message *tgbotapi.Message) bool {
	if b.config.IsAdmin(message.From.ID) {
		return true
	}

	logger.Info("Non-admin tried an admin command", requestFields(ctx, map[string]interface{}{
		"user_id": message.From.ID,
		"command": message.Command(),
	}))
	b.sendResponse(ctx, message.Chat.ID, AdminOnlyMessage)
	return false
}

func (b *Bot) handleBroadcastCommand(ctx context.Context, message *tgbotapi.Message) error {
	if !b.requireAdmin(ctx, message) {
		return nil
	}

	text := strings.TrimSpace(message.CommandArguments())
	if text == "" {
		b.sendResponse(ctx, message.Chat.ID, BroadcastUsage)
		return nil
	}

	recipients, err := b.store.ListActiveUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list broadcast recipients: %w", err)
	}

	result := b.broadcast(ctx, recipients, fmt.Sprintf(BroadcastHeaderTemplate, text))
	b.metrics.RecordBroadcast(result.Success, result.Failed)

	logger.Info("Broadcast finished", requestFields(ctx, map[string]interface{}{
		"recipients": len(recipients),
		"success":    result.Success,
		"failed":     result.Failed,
	}))

	b.sendResponse(ctx, message.Chat.ID, fmt.Sprintf(BroadcastReportTemplate, result.Success, result.Failed))
	return nil
}

// broadcast delivers text to each recipient in turn. A failed delivery is
// counted and does not stop the rest.
func (b *Bot) broadcast(ctx context.Context, recipients []int64, text string) BroadcastResult {
	var result BroadcastResult
	for _, chatID := range recipients {
		if err := b.sendPlain(ctx, chatID, text); err != nil {
			result.Failed++
			logger.Warn("Broadcast delivery failed", requestFields(ctx, map[string]interface{}{
				"chat_id": chatID,
				"error":   err.Error(),
			}))
			continue
		}
		result.Success++
	}
	return result
}

// handleBanCommand handles /ban and /unban.
func (b *Bot) handleBanCommand(ctx context.Context, message *tgbotapi.Message, ban bool) error {
	if !b.requireAdmin(ctx, message) {
		return nil
	}

	usage, doneTemplate := UnbanUsage, UserUnbannedTemplate
	if ban {
		usage, doneTemplate = BanUsage, UserBannedTemplate
	}

	args := strings.Fields(message.CommandArguments())
	if len(args) == 0 {
		b.sendResponse(ctx, message.Chat.ID, usage)
		return nil
	}

	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.sendResponse(ctx, message.Chat.ID, InvalidUserIDMessage)
		return nil
	}

	if err := b.store.SetBanned(ctx, targetID, ban); err != nil {
		return fmt.Errorf("failed to update ban state: %w", err)
	}

	logger.Info("Ban state changed", requestFields(ctx, map[string]interface{}{
		"target_id": targetID,
		"banned":    ban,
	}))

	b.sendResponse(ctx, message.Chat.ID, fmt.Sprintf(doneTemplate, targetID))
	return nil
}

func (b *Bot) handleStatsCommand(ctx context.Context, message *tgbotapi.Message) error {
	if !b.requireAdmin(ctx, message) {
		return nil
	}

	total, err := b.store.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}

	b.sendResponse(ctx, message.Chat.ID, fmt.Sprintf(StatsTemplate, total, b.now().Format(StatsDateLayout)))
	return nil
}
