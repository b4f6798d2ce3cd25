package telegram

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestSendLimiter_BurstIsImmediate(t *testing.T) {
	limiter := newSendLimiter()

	start := time.Now()
	for i := 0; i < perChatSendBurst; i++ {
		require.NoError(t, limiter.Wait(context.Background(), 42))
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestSendLimiter_PerChatIsolation(t *testing.T) {
	limiter := newSendLimiterWithRates(rate.Inf, 0, rate.Every(time.Hour), 1)

	require.NoError(t, limiter.Wait(context.Background(), 1))
	require.NoError(t, limiter.Wait(context.Background(), 2), "another chat has its own bucket")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, limiter.Wait(ctx, 1), "second send to the same chat must wait an hour")
}

func TestSendLimiter_CanceledContext(t *testing.T) {
	limiter := newSendLimiter()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, limiter.Wait(ctx, 1))
}

func TestSendLimiter_PrunesIdleChats(t *testing.T) {
	limiter := newSendLimiterWithRates(rate.Inf, 0, rate.Inf, 1)

	for i := 0; i < maxChatLimiters; i++ {
		limiter.chatLimiter(int64(i))
	}
	require.Equal(t, maxChatLimiters, limiter.size())

	limiter.chatLimiter(-1)
	assert.Equal(t, 1, limiter.size(), "untouched limiters are full and get pruned")
}
