package database

import (
	"context"
	"time"
)

// User is one Telegram user who passed admission at least once
type User struct {
	ID        int64     `db:"user_id" json:"user_id"`
	Username  string    `db:"username" json:"username"` // empty when the account has no @handle
	FirstName string    `db:"first_name" json:"first_name"`
	JoinedAt  time.Time `db:"join_date" json:"join_date"`
	Banned    bool      `db:"is_banned" json:"is_banned"`
}

// HasUsername reports whether the user has a public @handle
func (u *User) HasUsername() bool {
	return u.Username != ""
}

// Store is the user-record persistence used by the bot. Every method is a
// single statement against the backing database.
type Store interface {
	EnsureUser(ctx context.Context, user *User) (created bool, err error)
	CountUsers(ctx context.Context) (int64, error)
	SetBanned(ctx context.Context, userID int64, banned bool) error
	IsBanned(ctx context.Context, userID int64) (bool, error)
	ListActiveUserIDs(ctx context.Context) ([]int64, error)
}

var _ Store = (*DB)(nil)
