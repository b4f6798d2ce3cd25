package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/studybot/studybot/internal/logger"
)

// MaxMessageLength is the largest chunk sent in one Telegram message, in characters.
const MaxMessageLength = 4000

const maxImageBytes = 20 << 20

// splitMessage cuts text into consecutive chunks of at most limit runes.
// Joining the chunks gives back text unchanged, invalid bytes included.
func splitMessage(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	start, count := 0, 0
	for i := 0; i < len(text); {
		_, size := utf8.DecodeRuneInString(text[i:])
		if count == limit {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		i += size
		count++
	}
	return append(chunks, text[start:])
}

// sendLongResponse sends text in order, one message per chunk.
func (b *Bot) sendLongResponse(ctx context.Context, chatID int64, text string) {
	chunks := splitMessage(text, MaxMessageLength)
	for i, chunk := range chunks {
		if err := b.sendPlain(ctx, chatID, chunk); err != nil {
			logger.Error("Failed to send reply chunk", requestFields(ctx, map[string]interface{}{
				"error":   err.Error(),
				"chat_id": chatID,
				"chunk":   i + 1,
				"chunks":  len(chunks),
			}))
			return
		}
	}
}

// imageFileID returns the file id of the image in message, preferring the
// largest photo size. Documents count when their MIME type is an image.
func imageFileID(message *tgbotapi.Message) (string, bool) {
	if len(message.Photo) > 0 {
		return message.Photo[len(message.Photo)-1].FileID, true
	}
	if message.Document != nil && strings.HasPrefix(message.Document.MimeType, "image/") {
		return message.Document.FileID, true
	}
	return "", false
}

// downloadImage stores the Telegram file in a new temp file and returns its
// path. The caller owns the file and must remove it.
func (b *Bot) downloadImage(ctx context.Context, fileID string) (string, error) {
	fileURL, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("failed to get file info: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download file: HTTP %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(b.tempDir, "studybot-image-*"+imageExtension(fileURL))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	written, copyErr := io.Copy(tmp, io.LimitReader(resp.Body, maxImageBytes))
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		b.removeTempFile(ctx, tmp.Name())
		return "", fmt.Errorf("failed to write temp file: %w", errors.Join(copyErr, closeErr))
	}

	logger.Debug("Image downloaded", requestFields(ctx, map[string]interface{}{
		"file_id": fileID,
		"size":    written,
	}))
	return tmp.Name(), nil
}

func imageExtension(fileURL string) string {
	ext := strings.ToLower(filepath.Ext(fileURL))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
		return ext
	default:
		return ".jpg"
	}
}

// removeTempFile deletes path. Failures are logged and otherwise ignored.
func (b *Bot) removeTempFile(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Failed to remove temp file", requestFields(ctx, map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		}))
	}
}

func displayName(user *tgbotapi.User) string {
	if user == nil || strings.TrimSpace(user.FirstName) == "" {
		return DefaultFirstName
	}
	return user.FirstName
}

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(SolveMathButtonText, CallbackSolveMath)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(ExplainLessonButtonText, CallbackExplainLesson)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(AnalyzeImageButtonText, CallbackAnalyzeImage)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(HelpButtonText, CallbackHelp)),
	)
}

// subscribeKeyboard offers the channel link, when there is a public one, and a re-check button.
func subscribeKeyboard(channelURL string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	if channelURL != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(SubscribeButtonText, channelURL)))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(CheckSubscriptionButtonText, CallbackCheckSubscription)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
