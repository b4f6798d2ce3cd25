package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/studybot/studybot/internal/access"
	"github.com/studybot/studybot/internal/database"
	"github.com/studybot/studybot/internal/llm"
	"github.com/studybot/studybot/internal/logger"
)

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	if message.IsCommand() {
		b.metrics.RecordUpdate("command")
		return b.handleCommand(ctx, message)
	}

	if fileID, ok := imageFileID(message); ok {
		b.metrics.RecordUpdate("image")
		return b.handleImageMessage(ctx, message, fileID)
	}

	if strings.TrimSpace(message.Text) != "" {
		b.metrics.RecordUpdate("text")
		return b.handleTextMessage(ctx, message)
	}

	logger.Debug("Ignoring message without text or image", requestFields(ctx, map[string]interface{}{
		"chat_id": message.Chat.ID,
	}))
	return nil
}

// Main command router

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) error {
	switch message.Command() {
	case "start":
		return b.handleStartCommand(ctx, message)
	case "help":
		return b.handleHelpCommand(ctx, message)

	// Admin console (commands_admin.go)
	case "broadcast":
		return b.handleBroadcastCommand(ctx, message)
	case "ban":
		return b.handleBanCommand(ctx, message, true)
	case "unban":
		return b.handleBanCommand(ctx, message, false)
	case "stats":
		return b.handleStatsCommand(ctx, message)

	default:
		return b.handleUnknownCommand(ctx, message)
	}
}

// handleStartCommand admits the user, records them on first contact and shows the menu.
func (b *Bot) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	name := displayName(message.From)

	decision, err := b.checkAdmission(ctx, message.From.ID)
	if err != nil {
		return err
	}

	switch decision.Reason {
	case access.ReasonBanned:
		b.sendResponse(ctx, chatID, BannedMessage)
		return nil
	case access.ReasonNotSubscribed:
		b.sendWithKeyboard(ctx, chatID, fmt.Sprintf(SubscribeRequiredTemplate, name), subscribeKeyboard(b.config.ChannelURL))
		return nil
	}

	user := &database.User{
		ID:        message.From.ID,
		Username:  message.From.UserName,
		FirstName: name,
		JoinedAt:  b.now(),
	}
	created, err := b.store.EnsureUser(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to record user: %w", err)
	}
	if created {
		b.metrics.RecordNewUser()
		b.notifier.NotifyNewUser(user)
	}

	b.sendWithKeyboard(ctx, chatID, fmt.Sprintf(WelcomeTemplate, name), mainMenuKeyboard())
	return nil
}

func (b *Bot) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	decision, err := b.checkAdmission(ctx, message.From.ID)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		b.sendResponse(ctx, message.Chat.ID, b.denialText(decision))
		return nil
	}

	b.sendResponse(ctx, message.Chat.ID, b.helpText())
	return nil
}

func (b *Bot) handleUnknownCommand(ctx context.Context, message *tgbotapi.Message) error {
	decision, err := b.checkAdmission(ctx, message.From.ID)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		b.sendResponse(ctx, message.Chat.ID, b.denialText(decision))
		return nil
	}

	b.sendResponse(ctx, message.Chat.ID, UnknownCommandMessage)
	return nil
}

func (b *Bot) helpText() string {
	return fmt.Sprintf(HelpTemplate, b.config.ChannelID)
}

// handleTextMessage forwards free text to the assistant.
func (b *Bot) handleTextMessage(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID

	decision, err := b.checkAdmission(ctx, message.From.ID)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		b.sendResponse(ctx, chatID, b.denialText(decision))
		return nil
	}

	b.sendResponse(ctx, chatID, SearchingMessage)
	b.sendChatAction(ctx, chatID, tgbotapi.ChatTyping)

	start := time.Now()
	answer := b.assistant.AskText(ctx, message.Text)
	b.metrics.RecordCompletion("text", string(answer.Outcome), time.Since(start).Seconds())

	b.sendLongResponse(ctx, chatID, answer.Text)
	return nil
}

// handleImageMessage downloads the image to a temp file, which is removed
// before returning, and sends it to the vision model.
func (b *Bot) handleImageMessage(ctx context.Context, message *tgbotapi.Message, fileID string) error {
	chatID := message.Chat.ID

	decision, err := b.checkAdmission(ctx, message.From.ID)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		b.sendResponse(ctx, chatID, b.denialText(decision))
		return nil
	}

	b.sendResponse(ctx, chatID, AnalyzingImageMessage)
	b.sendChatAction(ctx, chatID, tgbotapi.ChatTyping)

	path, err := b.downloadImage(ctx, fileID)
	if err != nil {
		logger.Error("Failed to download image", requestFields(ctx, map[string]interface{}{
			"error":   err.Error(),
			"chat_id": chatID,
			"file_id": fileID,
		}))
		b.metrics.RecordCompletion("image", string(llm.OutcomeFailed), 0)
		b.sendResponse(ctx, chatID, fmt.Sprintf(llm.ApologyTemplate, "download"))
		return nil
	}
	defer b.removeTempFile(ctx, path)

	start := time.Now()
	answer := b.assistant.AskImage(ctx, path, message.Caption)
	b.metrics.RecordCompletion("image", string(answer.Outcome), time.Since(start).Seconds())

	b.sendLongResponse(ctx, chatID, answer.Text)
	return nil
}
