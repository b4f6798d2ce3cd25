package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		limit    int
		expected []int // rune count per chunk
	}{
		{name: "empty", text: "", limit: 4000, expected: []int{0}},
		{name: "short", text: "hello", limit: 4000, expected: []int{5}},
		{name: "exactly at limit", text: strings.Repeat("a", 4000), limit: 4000, expected: []int{4000}},
		{name: "one over limit", text: strings.Repeat("a", 4001), limit: 4000, expected: []int{4000, 1}},
		{name: "long reply", text: strings.Repeat("x", 8001), limit: 4000, expected: []int{4000, 4000, 1}},
		{name: "arabic counted by rune", text: strings.Repeat("م", 4500), limit: 4000, expected: []int{4000, 500}},
		{name: "small limit", text: "abcdefg", limit: 3, expected: []int{3, 3, 1}},
		{name: "non-positive limit", text: "abc", limit: 0, expected: []int{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := splitMessage(tt.text, tt.limit)

			require.Len(t, chunks, len(tt.expected))
			for i, chunk := range chunks {
				assert.Equal(t, tt.expected[i], utf8.RuneCountInString(chunk), "chunk %d", i)
				assert.True(t, utf8.ValidString(chunk), "chunk %d must not split a rune", i)
			}
			assert.Equal(t, tt.text, strings.Join(chunks, ""))
		})
	}
}

func TestSplitMessage_InvalidUTF8RoundTrips(t *testing.T) {
	text := strings.Repeat("a", 4000) + "\xff\xfe" + "b"

	chunks := splitMessage(text, MaxMessageLength)

	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("a", 4000), chunks[0])
	assert.Equal(t, "\xff\xfeb", chunks[1])
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestSplitMessage_MixedScripts(t *testing.T) {
	text := strings.Repeat("حل x² = 4 🖤 ", 700)

	chunks := splitMessage(text, MaxMessageLength)

	assert.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), MaxMessageLength)
	}
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestImageFileID(t *testing.T) {
	tests := []struct {
		name    string
		message *tgbotapi.Message
		fileID  string
		ok      bool
	}{
		{
			name: "largest photo size wins",
			message: &tgbotapi.Message{Photo: []tgbotapi.PhotoSize{
				{FileID: "small", Width: 90}, {FileID: "medium", Width: 320}, {FileID: "large", Width: 1280},
			}},
			fileID: "large",
			ok:     true,
		},
		{
			name:    "image document",
			message: &tgbotapi.Message{Document: &tgbotapi.Document{FileID: "doc", MimeType: "image/png"}},
			fileID:  "doc",
			ok:      true,
		},
		{
			name:    "non-image document",
			message: &tgbotapi.Message{Document: &tgbotapi.Document{FileID: "doc", MimeType: "application/pdf"}},
		},
		{
			name:    "text only",
			message: &tgbotapi.Message{Text: "hello"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fileID, ok := imageFileID(tt.message)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.fileID, fileID)
		})
	}
}

func TestImageExtension(t *testing.T) {
	assert.Equal(t, ".png", imageExtension("https://api.telegram.org/file/bot1/photos/file_1.PNG"))
	assert.Equal(t, ".webp", imageExtension("https://api.telegram.org/file/bot1/documents/sticker.webp"))
	assert.Equal(t, ".jpg", imageExtension("https://api.telegram.org/file/bot1/photos/file_2"))
	assert.Equal(t, ".jpg", imageExtension("https://api.telegram.org/file/bot1/documents/notes.pdf"))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Sara", displayName(&tgbotapi.User{FirstName: "Sara"}))
	assert.Equal(t, DefaultFirstName, displayName(&tgbotapi.User{FirstName: "  "}))
	assert.Equal(t, DefaultFirstName, displayName(nil))
}

func TestMainMenuKeyboard(t *testing.T) {
	keyboard := mainMenuKeyboard()

	require.Len(t, keyboard.InlineKeyboard, 4)
	var data []string
	for _, row := range keyboard.InlineKeyboard {
		require.Len(t, row, 1)
		require.NotNil(t, row[0].CallbackData)
		data = append(data, *row[0].CallbackData)
	}
	assert.Equal(t, []string{CallbackSolveMath, CallbackExplainLesson, CallbackAnalyzeImage, CallbackHelp}, data)
}

func TestSubscribeKeyboard(t *testing.T) {
	withURL := subscribeKeyboard("https://t.me/TepthonHelp")
	require.Len(t, withURL.InlineKeyboard, 2)
	require.NotNil(t, withURL.InlineKeyboard[0][0].URL)
	assert.Equal(t, "https://t.me/TepthonHelp", *withURL.InlineKeyboard[0][0].URL)
	require.NotNil(t, withURL.InlineKeyboard[1][0].CallbackData)
	assert.Equal(t, CallbackCheckSubscription, *withURL.InlineKeyboard[1][0].CallbackData)

	withoutURL := subscribeKeyboard("")
	require.Len(t, withoutURL.InlineKeyboard, 1)
	assert.Equal(t, CallbackCheckSubscription, *withoutURL.InlineKeyboard[0][0].CallbackData)
}
