package telegram

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/studybot/studybot/internal/logger"
)

// Telegram allows about 30 messages per second overall and roughly one per
// second inside a single chat, with short bursts tolerated.
const (
	globalSendRate   = 30
	globalSendBurst  = 30
	perChatSendRate  = 1
	perChatSendBurst = 10

	maxChatLimiters = 1000
)

// sendLimiter throttles outbound requests globally and per chat.
type sendLimiter struct {
	global *rate.Limiter

	chatRate  rate.Limit
	chatBurst int

	mu    sync.Mutex
	chats map[int64]*rate.Limiter
}

func newSendLimiter() *sendLimiter {
	return newSendLimiterWithRates(rate.Limit(globalSendRate), globalSendBurst, rate.Limit(perChatSendRate), perChatSendBurst)
}

func newSendLimiterWithRates(global rate.Limit, globalBurst int, perChat rate.Limit, perChatBurst int) *sendLimiter {
	return &sendLimiter{
		global:    rate.NewLimiter(global, globalBurst),
		chatRate:  perChat,
		chatBurst: perChatBurst,
		chats:     make(map[int64]*rate.Limiter),
	}
}

// Wait blocks until both the global and the chat limiter allow one request.
func (l *sendLimiter) Wait(ctx context.Context, chatID int64) error {
	if err := l.global.Wait(ctx); err != nil {
		return fmt.Errorf("global rate limiter error: %w", err)
	}
	if err := l.chatLimiter(chatID).Wait(ctx); err != nil {
		return fmt.Errorf("chat rate limiter error: %w", err)
	}
	return nil
}

func (l *sendLimiter) chatLimiter(chatID int64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, ok := l.chats[chatID]; ok {
		return limiter
	}

	if len(l.chats) >= maxChatLimiters {
		l.pruneIdleLocked()
	}

	limiter := rate.NewLimiter(l.chatRate, l.chatBurst)
	l.chats[chatID] = limiter
	return limiter
}

// pruneIdleLocked drops limiters whose bucket has refilled, i.e. chats that
// have been quiet long enough that a fresh limiter behaves the same.
func (l *sendLimiter) pruneIdleLocked() {
	before := len(l.chats)
	for chatID, limiter := range l.chats {
		if limiter.Tokens() >= float64(l.chatBurst) {
			delete(l.chats, chatID)
		}
	}
	logger.Debug("Pruned idle chat rate limiters", map[string]interface{}{
		"before": before,
		"after":  len(l.chats),
	})
}

func (l *sendLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.chats)
}
