package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/studybot/studybot/internal/access"
	"github.com/studybot/studybot/internal/config"
	"github.com/studybot/studybot/internal/database"
	"github.com/studybot/studybot/internal/llm"
	"github.com/studybot/studybot/internal/logger"
	"github.com/studybot/studybot/internal/metrics"
)

// BotAPI is the part of the Telegram Bot API the handlers use.
// *tgbotapi.BotAPI satisfies it.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetFileDirectURL(fileID string) (string, error)
}

var _ BotAPI = (*tgbotapi.BotAPI)(nil)

type Bot struct {
	api    BotAPI
	client *tgbotapi.BotAPI // long polling; nil when built around a fake API
	config *config.Config

	store     database.Store
	gate      *access.Gate
	assistant *llm.Assistant
	notifier  *Notifier
	metrics   *metrics.Collector
	limiter   *sendLimiter

	httpClient *http.Client // image downloads
	tempDir    string       // "" means os.TempDir()
	now        func() time.Time

	workerPool *WorkerPool
}

func NewBot(cfg *config.Config, store database.Store, assistant *llm.Assistant, collector *metrics.Collector) (*Bot, error) {
	client, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	b := newBot(client, cfg, store, assistant, collector)
	b.client = client
	return b, nil
}

// newBot wires the handlers around api without contacting Telegram.
func newBot(api BotAPI, cfg *config.Config, store database.Store, assistant *llm.Assistant, collector *metrics.Collector) *Bot {
	b := &Bot{
		api:        api,
		config:     cfg,
		store:      store,
		assistant:  assistant,
		metrics:    collector,
		limiter:    newSendLimiter(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
	b.gate = access.NewGate(store, NewChannelMembership(api, cfg.ChannelID))
	b.notifier = NewNotifier(cfg.AdminID, b.sendPlain)

	if !cfg.HasAdmin() {
		logger.InfoMsg("ADMIN_ID not set, admin commands and notifications are disabled")
	}
	return b
}

// Start polls Telegram for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	if b.client == nil {
		return fmt.Errorf("bot has no Telegram client")
	}

	logger.Info("Bot authorized and starting", map[string]interface{}{
		"username": b.client.Self.UserName,
		"channel":  b.config.ChannelID,
		"workers":  b.config.WorkerCount,
	})

	b.workerPool = NewWorkerPool(b, WorkerPoolConfig{
		Workers:   b.config.WorkerCount,
		QueueSize: b.config.WorkerQueueSize,
	})
	if err := b.workerPool.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := b.client.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.client.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(update)
		}
	}
}

func (b *Bot) dispatch(update tgbotapi.Update) {
	logger.Debug("Received update", map[string]interface{}{
		"update_id":    update.UpdateID,
		"has_message":  update.Message != nil,
		"has_callback": update.CallbackQuery != nil,
	})

	if err := b.workerPool.Submit(update); err != nil {
		b.metrics.RecordDroppedUpdate()
		logger.Error("Failed to submit update to worker pool", map[string]interface{}{
			"error":     err.Error(),
			"update_id": update.UpdateID,
		})
	}
}

// Stop drains the worker pool and pending admin notifications.
func (b *Bot) Stop() error {
	logger.InfoMsg("Stopping bot...")

	var err error
	if b.workerPool != nil {
		if err = b.workerPool.Stop(); err != nil {
			logger.Error("Error stopping worker pool", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	b.notifier.Close()

	logger.InfoMsg("Bot stopped")
	return err
}

func (b *Bot) GetWorkerPoolStats() map[string]interface{} {
	if b.workerPool == nil {
		return map[string]interface{}{
			"worker_pool": "not initialized",
		}
	}
	return b.workerPool.GetStats()
}

// HandleUpdate routes one update. Anything outside a private chat is ignored.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	switch {
	case update.CallbackQuery != nil:
		callback := update.CallbackQuery
		if callback.Message == nil || callback.Message.Chat == nil || !callback.Message.Chat.IsPrivate() || callback.From == nil {
			logger.Debug("Ignoring callback outside a private chat", requestFields(ctx, map[string]interface{}{
				"callback_id": callback.ID,
			}))
			return nil
		}
		b.metrics.RecordUpdate("callback")
		return b.handleCallbackQuery(ctx, callback)

	case update.Message != nil:
		message := update.Message
		if message.Chat == nil || !message.Chat.IsPrivate() || message.From == nil {
			logger.Debug("Ignoring message outside a private chat", requestFields(ctx, map[string]interface{}{
				"message_id": message.MessageID,
			}))
			return nil
		}
		return b.handleMessage(ctx, message)
	}

	return nil
}

// HandleFailure logs err and sends a generic apology to the chat behind update.
func (b *Bot) HandleFailure(ctx context.Context, update tgbotapi.Update, err error) {
	chatID := updateChatID(update)
	logger.Error("Error processing update", requestFields(ctx, map[string]interface{}{
		"error":     err.Error(),
		"update_id": update.UpdateID,
		"chat_id":   chatID,
	}))

	if chatID == 0 {
		return
	}
	b.sendResponse(context.WithoutCancel(ctx), chatID, GenericErrorMessage)
}

func updateChatID(update tgbotapi.Update) int64 {
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		if !update.CallbackQuery.Message.Chat.IsPrivate() {
			return 0
		}
		return update.CallbackQuery.Message.Chat.ID
	case update.Message != nil && update.Message.Chat != nil:
		if !update.Message.Chat.IsPrivate() {
			return 0
		}
		return update.Message.Chat.ID
	}
	return 0
}

// checkAdmission runs the access gate for userID and records the result.
func (b *Bot) checkAdmission(ctx context.Context, userID int64) (access.Decision, error) {
	decision, err := b.gate.Admit(ctx, userID)
	if err != nil {
		b.metrics.RecordAdmission("error")
		return decision, fmt.Errorf("admission failed for user %d: %w", userID, err)
	}

	if decision.Allowed {
		b.metrics.RecordAdmission("allowed")
	} else {
		b.metrics.RecordAdmission(decision.Reason.String())
		logger.Info("Access denied", requestFields(ctx, map[string]interface{}{
			"user_id": userID,
			"reason":  decision.Reason.String(),
		}))
	}
	return decision, nil
}

// denialText is the reply for a denied decision.
func (b *Bot) denialText(decision access.Decision) string {
	if decision.Reason == access.ReasonBanned {
		return BannedMessage
	}
	return notSubscribedMessage(b.config.ChannelID)
}

// rateLimitedSend sends a message with rate limiting
func (b *Bot) rateLimitedSend(ctx context.Context, chatID int64, msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := b.limiter.Wait(ctx, chatID); err != nil {
		return tgbotapi.Message{}, err
	}
	return b.api.Send(msg)
}

// rateLimitedRequest sends a request with rate limiting
func (b *Bot) rateLimitedRequest(ctx context.Context, chatID int64, req tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if err := b.limiter.Wait(ctx, chatID); err != nil {
		return nil, err
	}
	return b.api.Request(req)
}

// sendPlain sends text and reports the error to the caller.
func (b *Bot) sendPlain(ctx context.Context, chatID int64, text string) error {
	_, err := b.rateLimitedSend(ctx, chatID, tgbotapi.NewMessage(chatID, text))
	return err
}

func (b *Bot) sendResponse(ctx context.Context, chatID int64, text string) {
	if err := b.sendPlain(ctx, chatID, text); err != nil {
		logger.Error("Failed to send message", requestFields(ctx, map[string]interface{}{
			"error":   err.Error(),
			"chat_id": chatID,
		}))
	}
}

func (b *Bot) sendWithKeyboard(ctx context.Context, chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	if _, err := b.rateLimitedSend(ctx, chatID, msg); err != nil {
		logger.Error("Failed to send message with keyboard", requestFields(ctx, map[string]interface{}{
			"error":   err.Error(),
			"chat_id": chatID,
		}))
	}
}

func (b *Bot) editMessage(ctx context.Context, chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := b.rateLimitedSend(ctx, chatID, edit); err != nil {
		logger.Error("Failed to edit message", requestFields(ctx, map[string]interface{}{
			"error":      err.Error(),
			"chat_id":    chatID,
			"message_id": messageID,
		}))
	}
}

func (b *Bot) sendChatAction(ctx context.Context, chatID int64, action string) {
	if _, err := b.rateLimitedRequest(ctx, chatID, tgbotapi.NewChatAction(chatID, action)); err != nil {
		logger.Debug("Failed to send chat action", requestFields(ctx, map[string]interface{}{
			"error":   err.Error(),
			"chat_id": chatID,
			"action":  action,
		}))
	}
}
