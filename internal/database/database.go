package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/studybot/studybot/internal/logger"
)

// ErrNoDatabase is returned by every method of a nil *DB.
var ErrNoDatabase = errors.New("database not configured")

var placeholderPattern = regexp.MustCompile(`\$\d+`)

type DB struct {
	conn   *sql.DB
	driver string
}

// NewDB opens the user store for driver ("postgres" or "sqlite"), checks the
// connection and creates the schema if needed.
func NewDB(driver, dsn string) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty %s dsn", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if driver == "sqlite" {
		// One connection keeps ":memory:" databases shared and avoids SQLITE_BUSY on writes
		conn.SetMaxOpenConns(1)
		if _, err := conn.Exec("PRAGMA busy_timeout=5000;"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set database pragmas: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, driver: driver}

	if err := db.Migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	logger.Info("Database connection established successfully", map[string]interface{}{
		"driver": driver,
	})
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db == nil || db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Driver returns the sql driver name the store was opened with
func (db *DB) Driver() string {
	return db.driver
}

// Migrate creates the users table if it does not exist
func (db *DB) Migrate(ctx context.Context) error {
	if db == nil {
		return ErrNoDatabase
	}

	query := `
	CREATE TABLE IF NOT EXISTS users (
		user_id BIGINT PRIMARY KEY,
		username VARCHAR(255),
		first_name VARCHAR(255) NOT NULL DEFAULT '',
		join_date TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		is_banned BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_users_is_banned ON users(is_banned);
	`
	if db.driver == "sqlite" {
		query = `
		CREATE TABLE IF NOT EXISTS users (
			user_id INTEGER PRIMARY KEY,
			username TEXT,
			first_name TEXT NOT NULL DEFAULT '',
			join_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			is_banned BOOLEAN NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_users_is_banned ON users(is_banned);
		`
	}

	if _, err := db.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// rebind converts $N placeholders to the driver's syntax
func (db *DB) rebind(query string) string {
	if db.driver == "sqlite" {
		return placeholderPattern.ReplaceAllString(query, "?")
	}
	return query
}

// EnsureUser inserts the user unless a row with the same id exists.
// created is true only for the call that actually inserted the row.
func (db *DB) EnsureUser(ctx context.Context, user *User) (bool, error) {
	if db == nil {
		return false, ErrNoDatabase
	}
	if user.JoinedAt.IsZero() {
		user.JoinedAt = time.Now()
	}

	query := db.rebind(`
	INSERT INTO users (user_id, username, first_name, join_date)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (user_id) DO NOTHING
	`)

	username := sql.NullString{String: user.Username, Valid: user.Username != ""}
	result, err := db.conn.ExecContext(ctx, query, user.ID, username, user.FirstName, user.JoinedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return false, nil
	}

	logger.Info("Created new user", map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
	})
	return true, nil
}

// GetUser returns the stored user or nil when the id is unknown
func (db *DB) GetUser(ctx context.Context, userID int64) (*User, error) {
	if db == nil {
		return nil, ErrNoDatabase
	}

	query := db.rebind(`
	SELECT user_id, username, first_name, join_date, is_banned
	FROM users
	WHERE user_id = $1
	`)

	user := &User{}
	var username sql.NullString

	err := db.conn.QueryRowContext(ctx, query, userID).Scan(
		&user.ID, &username, &user.FirstName, &user.JoinedAt, &user.Banned,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.Username = username.String

	return user, nil
}

// CountUsers returns the number of stored users, banned ones included
func (db *DB) CountUsers(ctx context.Context) (int64, error) {
	if db == nil {
		return 0, ErrNoDatabase
	}

	var count int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// SetBanned sets the ban flag. Unknown ids are not an error.
func (db *DB) SetBanned(ctx context.Context, userID int64, banned bool) error {
	if db == nil {
		return ErrNoDatabase
	}

	query := db.rebind(`UPDATE users SET is_banned = $1 WHERE user_id = $2`)

	result, err := db.conn.ExecContext(ctx, query, banned, userID)
	if err != nil {
		return fmt.Errorf("failed to update ban flag: %w", err)
	}

	if rowsAffected, err := result.RowsAffected(); err == nil && rowsAffected == 0 {
		logger.Debug("Ban flag update matched no user", map[string]interface{}{
			"user_id": userID,
			"banned":  banned,
		})
	}
	return nil
}

// IsBanned reports the ban flag; unknown ids are not banned
func (db *DB) IsBanned(ctx context.Context, userID int64) (bool, error) {
	if db == nil {
		return false, ErrNoDatabase
	}

	query := db.rebind(`SELECT is_banned FROM users WHERE user_id = $1`)

	var banned bool
	err := db.conn.QueryRowContext(ctx, query, userID).Scan(&banned)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check ban flag: %w", err)
	}
	return banned, nil
}

// ListActiveUserIDs returns ids of all users that are not banned, ascending
func (db *DB) ListActiveUserIDs(ctx context.Context) ([]int64, error) {
	if db == nil {
		return nil, ErrNoDatabase
	}

	query := db.rebind(`SELECT user_id FROM users WHERE is_banned = $1 ORDER BY user_id`)

	rows, err := db.conn.QueryContext(ctx, query, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return ids, nil
}
