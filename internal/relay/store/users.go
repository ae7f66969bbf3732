package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/seawatch-io/seawatch/internal/relay/core"
)

// UpsertUser creates a user or replaces its password hash.
func (db *DB) UpsertUser(ctx context.Context, username string, passwordHash []byte) error {
	_, err := db.ExecContext(ctx, db.Q(`INSERT INTO users (username, password_hash) VALUES (?, ?)
		ON CONFLICT (username) DO UPDATE SET password_hash = excluded.password_hash`),
		username, passwordHash)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", username, err)
	}
	return nil
}

// GetUser returns core.ErrUnauthorized for an unknown username.
func (db *DB) GetUser(ctx context.Context, username string) (*core.User, error) {
	u := &core.User{}
	err := db.QueryRowContext(ctx, db.Q(`SELECT username, password_hash FROM users WHERE username = ?`), username).
		Scan(&u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", username, core.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", username, err)
	}
	return u, nil
}
