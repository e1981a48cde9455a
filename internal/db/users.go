package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/abysfin/webmail/backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserNotFound is returned when a user lookup finds no row.
var ErrUserNotFound = errors.New("user not found")

// GetOrCreateUser returns the user ID for the given email, creating the user
// on first sight. Account provisioning creates the six system folders in the
// same transaction, so the transition engine can rely on them existing.
func GetOrCreateUser(ctx context.Context, pool *pgxpool.Pool, email string) (string, error) {
	var userID string

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&userID)
	if err == nil {
		return userID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// ON CONFLICT covers the race where two requests create the same user.
	err = tx.QueryRow(ctx, `
		INSERT INTO users (email)
		VALUES ($1)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id
	`, email).Scan(&userID)
	if err != nil {
		return "", fmt.Errorf("failed to create user: %w", err)
	}

	for _, folderType := range models.SystemFolderTypes {
		_, err := tx.Exec(ctx, `
			INSERT INTO folders (user_id, name, type)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, name) DO NOTHING
		`, userID, folderType.DisplayName(), folderType)
		if err != nil {
			return "", fmt.Errorf("failed to provision %s folder: %w", folderType, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit user creation: %w", err)
	}

	return userID, nil
}

// GetUserIDByEmail returns the user ID for an existing user, without creating
// one. Used by the IMAP watcher to route incoming mail.
func GetUserIDByEmail(ctx context.Context, pool *pgxpool.Pool, email string) (string, error) {
	var userID string

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	return userID, nil
}
