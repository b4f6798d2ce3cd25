package telegram

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/studybot/studybot/internal/config"
	"github.com/studybot/studybot/internal/database"
	"github.com/studybot/studybot/internal/llm"
	"github.com/studybot/studybot/internal/metrics"
)

const (
	testAdminID = int64(1000)
	testUserID  = int64(555)
)

var testNow = time.Date(2024, 9, 1, 8, 30, 0, 0, time.UTC)

// fakeAPI records every outbound call instead of talking to Telegram.
type fakeAPI struct {
	mu sync.Mutex

	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable

	memberStatus  map[int64]string // default "member"
	memberErr     error
	memberQueries int

	failSendTo map[int64]bool

	fileURL string
	fileErr error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		memberStatus: make(map[int64]string),
		failSendTo:   make(map[int64]bool),
	}
}

func chattableChatID(c tgbotapi.Chattable) int64 {
	switch v := c.(type) {
	case tgbotapi.MessageConfig:
		return v.ChatID
	case tgbotapi.EditMessageTextConfig:
		return v.ChatID
	case tgbotapi.ChatActionConfig:
		return v.ChatID
	}
	return 0
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, c)
	chatID := chattableChatID(c)
	if f.failSendTo[chatID] {
		return tgbotapi.Message{}, fmt.Errorf("Forbidden: bot was blocked by the user %d", chatID)
	}
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetChatMember(cfg tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.memberQueries++
	if f.memberErr != nil {
		return tgbotapi.ChatMember{}, f.memberErr
	}
	status, ok := f.memberStatus[cfg.UserID]
	if !ok {
		status = "member"
	}
	return tgbotapi.ChatMember{Status: status}, nil
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	if f.fileErr != nil {
		return "", f.fileErr
	}
	return f.fileURL, nil
}

// messagesTo returns the new messages sent to chatID, in order.
func (f *fakeAPI) messagesTo(chatID int64) []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok && msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	return out
}

func (f *fakeAPI) textsTo(chatID int64) []string {
	var texts []string
	for _, msg := range f.messagesTo(chatID) {
		texts = append(texts, msg.Text)
	}
	return texts
}

func (f *fakeAPI) edits() []tgbotapi.EditMessageTextConfig {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []tgbotapi.EditMessageTextConfig
	for _, c := range f.sent {
		if edit, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			out = append(out, edit)
		}
	}
	return out
}

func (f *fakeAPI) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeAPI) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeAPI) queriedMembership() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.memberQueries
}

// fakeStore is an in-memory database.Store that counts writes.
type fakeStore struct {
	mu sync.Mutex

	users  map[int64]*database.User
	banned map[int64]bool

	ensureCalls    int
	inserts        int
	setBannedCalls int

	err error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:  make(map[int64]*database.User),
		banned: make(map[int64]bool),
	}
}

var _ database.Store = (*fakeStore)(nil)

func (s *fakeStore) EnsureUser(ctx context.Context, user *database.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureCalls++
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.users[user.ID]; ok {
		return false, nil
	}
	copied := *user
	s.users[user.ID] = &copied
	s.inserts++
	return true, nil
}

func (s *fakeStore) CountUsers(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return 0, s.err
	}
	return int64(len(s.users)), nil
}

func (s *fakeStore) SetBanned(ctx context.Context, userID int64, banned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setBannedCalls++
	if s.err != nil {
		return s.err
	}
	s.banned[userID] = banned
	return nil
}

func (s *fakeStore) IsBanned(ctx context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return false, s.err
	}
	return s.banned[userID], nil
}

func (s *fakeStore) ListActiveUserIDs(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	var ids []int64
	for id := range s.users {
		if !s.banned[id] {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *fakeStore) addUser(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = &database.User{ID: id, FirstName: fmt.Sprintf("user%d", id), JoinedAt: testNow}
}

// stubCompleter answers every completion with a fixed reply.
type stubCompleter struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []llm.Request
}

func (c *stubCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	return c.reply, c.err
}

func (c *stubCompleter) calls() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Request(nil), c.requests...)
}

func testConfig() *config.Config {
	return &config.Config{
		TelegramBotToken: "123456:TEST",
		AdminID:          testAdminID,
		ChannelID:        "@TepthonHelp",
		ChannelURL:       "https://t.me/TepthonHelp",
		WorkerCount:      2,
		WorkerQueueSize:  10,
	}
}

func newTestBot(t testing.TB, api *fakeAPI, store *fakeStore, completer llm.Completer) *Bot {
	t.Helper()

	assistant := llm.NewAssistantWithCompleter(completer, "Arabic", 30*time.Second, 60*time.Second)
	b := newBot(api, testConfig(), store, assistant, metrics.NewCollector())
	b.limiter = newSendLimiterWithRates(rate.Inf, 0, rate.Inf, 0)
	b.tempDir = t.TempDir()
	b.now = func() time.Time { return testNow }
	return b
}

func privateMessage(userID int64, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		MessageID: 10,
		From:      &tgbotapi.User{ID: userID, FirstName: "Sara", UserName: "sara"},
		Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		length := strings.IndexByte(text, ' ')
		if length == -1 {
			length = len(text)
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}}
	}
	return msg
}

func messageUpdate(msg *tgbotapi.Message) tgbotapi.Update {
	return tgbotapi.Update{UpdateID: 1, Message: msg}
}

func callbackUpdate(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 2,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb-1",
			From: &tgbotapi.User{ID: userID, FirstName: "Sara"},
			Message: &tgbotapi.Message{
				MessageID: 77,
				Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
			},
			Data: data,
		},
	}
}

var errStoreDown = errors.New("database is locked")
