package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ChannelMembership checks subscription to one channel via getChatMember.
type ChannelMembership struct {
	api       BotAPI
	channelID string
}

// NewChannelMembership accepts either "@channelname" or a numeric chat id.
func NewChannelMembership(api BotAPI, channelID string) *ChannelMembership {
	return &ChannelMembership{api: api, channelID: strings.TrimSpace(channelID)}
}

func (m *ChannelMembership) IsMember(ctx context.Context, userID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	member, err := m.api.GetChatMember(m.memberConfig(userID))
	if err != nil {
		return false, fmt.Errorf("failed to get chat member: %w", err)
	}
	return isSubscribed(member), nil
}

func (m *ChannelMembership) memberConfig(userID int64) tgbotapi.GetChatMemberConfig {
	cfg := tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{UserID: userID},
	}
	if id, err := strconv.ParseInt(m.channelID, 10, 64); err == nil {
		cfg.ChatID = id
	} else {
		cfg.SuperGroupUsername = m.channelID
	}
	return cfg
}

// isSubscribed maps a chat member status to subscription. Restricted users
// count only while they are still in the chat.
func isSubscribed(member tgbotapi.ChatMember) bool {
	switch member.Status {
	case "creator", "administrator", "member":
		return true
	case "restricted":
		return member.IsMember
	default:
		return false
	}
}
