package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/studybot/studybot/internal/database"
	"github.com/studybot/studybot/internal/logger"
)

const notifyTimeout = 15 * time.Second

// sendFunc delivers one plain-text message to a chat.
type sendFunc func(ctx context.Context, chatID int64, text string) error

// Notifier tells the administrator about new users. Sends run in the
// background and never affect the request that triggered them.
type Notifier struct {
	adminID int64
	send    sendFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewNotifier returns a notifier for adminID. With adminID 0 every call is a no-op.
func NewNotifier(adminID int64, send sendFunc) *Notifier {
	return &Notifier{adminID: adminID, send: send}
}

func (n *Notifier) Enabled() bool {
	return n != nil && n.adminID != 0 && n.send != nil
}

// NotifyNewUser queues a notice about user and returns immediately. After
// Close it does nothing.
func (n *Notifier) NotifyNewUser(user *database.User) {
	if !n.Enabled() || user == nil {
		return
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		logger.Debug("Notifier closed, dropping new user notice", map[string]interface{}{
			"user_id": user.ID,
		})
		return
	}
	n.wg.Add(1)
	n.mu.Unlock()

	text := formatNewUserNotice(user)
	go func() {
		defer n.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Warn("Admin notification panicked", map[string]interface{}{
					"user_id": user.ID,
					"panic":   r,
				})
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := n.send(ctx, n.adminID, text); err != nil {
			logger.Warn("Failed to notify admin about new user", map[string]interface{}{
				"user_id": user.ID,
				"error":   err.Error(),
			})
			return
		}

		logger.Debug("Admin notified about new user", map[string]interface{}{
			"user_id": user.ID,
		})
	}()
}

// Wait blocks until every queued notice has finished.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

// Close stops accepting notices and waits for the queued ones.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	n.wg.Wait()
}

func formatNewUserNotice(user *database.User) string {
	name := user.FirstName
	if name == "" {
		name = DefaultFirstName
	}
	handle := NoUsernameText
	if user.HasUsername() {
		handle = "@" + user.Username
	}
	return fmt.Sprintf(NewUserNoticeTemplate, name, handle, user.JoinedAt.Format(NoticeTimeLayout), user.ID)
}
