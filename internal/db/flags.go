package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FlagResult reports a read/starred flag mutation. Unchanged means the target
// exists but already carried the requested value; that is a no-op, not an
// error.
type FlagResult struct {
	Updated   int64 `json:"updated"`
	Unchanged bool  `json:"unchanged"`
}

// SetThreadRead sets the read flag on the caller's copies of a thread. Read
// state is mailbox-perspective-specific, so only rows addressed to or from
// the caller are touched.
func SetThreadRead(ctx context.Context, pool *pgxpool.Pool, userID, userEmail, threadID string, isRead bool) (*FlagResult, error) {
	tag, err := pool.Exec(ctx, `
		UPDATE mailboxes
		SET is_read = $1
		WHERE user_id = $2 AND thread_id = $3
		  AND (to_email = $4 OR from_email = $4)
		  AND is_read <> $1
	`, isRead, userID, threadID, userEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to set thread read: %w", err)
	}

	if tag.RowsAffected() > 0 {
		return &FlagResult{Updated: tag.RowsAffected()}, nil
	}

	var exists bool
	err = pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM mailboxes
			WHERE user_id = $1 AND thread_id = $2
			  AND (to_email = $3 OR from_email = $3)
		)
	`, userID, threadID, userEmail).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check thread existence: %w", err)
	}
	if !exists {
		return nil, ErrThreadNotFound
	}

	return &FlagResult{Unchanged: true}, nil
}

// SetThreadsRead sets the read flag on the caller's copies of the listed
// threads, all-or-nothing. Threads that exist but already carry the value
// count as found; only truly missing threads fail the batch.
func SetThreadsRead(ctx context.Context, pool *pgxpool.Pool, userID, userEmail string, threadIDs []string, isRead bool) (*FlagResult, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		UPDATE mailboxes
		SET is_read = $1
		WHERE user_id = $2 AND thread_id = ANY($3)
		  AND (to_email = $4 OR from_email = $4)
		  AND is_read <> $1
		RETURNING thread_id
	`, isRead, userID, threadIDs, userEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to set threads read: %w", err)
	}

	seen := make(map[string]bool, len(threadIDs))
	var updated int64
	for rows.Next() {
		var threadID string
		if err := rows.Scan(&threadID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan updated row: %w", err)
		}
		seen[threadID] = true
		updated++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating updated rows: %w", err)
	}

	var unverified []string
	for _, id := range threadIDs {
		if !seen[id] {
			unverified = append(unverified, id)
		}
	}

	if len(unverified) > 0 {
		existing, err := existingThreadIDs(ctx, tx, userID, userEmail, unverified)
		if err != nil {
			return nil, err
		}
		var missing []string
		for _, id := range unverified {
			if !existing[id] {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return nil, &MissingIDsError{Kind: "thread", IDs: missing}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &FlagResult{Updated: updated, Unchanged: updated == 0}, nil
}

// SetMessageStarred sets the starred flag on one message.
func SetMessageStarred(ctx context.Context, pool *pgxpool.Pool, userID, messageID string, starred bool) (*FlagResult, error) {
	tag, err := pool.Exec(ctx, `
		UPDATE mailboxes
		SET is_starred = $1
		WHERE user_id = $2 AND (message_id = $3 OR id::text = $3)
		  AND is_starred <> $1
	`, starred, userID, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to set message starred: %w", err)
	}

	if tag.RowsAffected() > 0 {
		return &FlagResult{Updated: tag.RowsAffected()}, nil
	}

	var exists bool
	err = pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM mailboxes
			WHERE user_id = $1 AND (message_id = $2 OR id::text = $2)
		)
	`, userID, messageID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check message existence: %w", err)
	}
	if !exists {
		return nil, ErrMessageNotFound
	}

	return &FlagResult{Unchanged: true}, nil
}

// ToggleMessageStarred flips the starred flag on one message and returns the
// new value.
func ToggleMessageStarred(ctx context.Context, pool *pgxpool.Pool, userID, messageID string) (bool, error) {
	var starred bool
	err := pool.QueryRow(ctx, `
		UPDATE mailboxes
		SET is_starred = NOT is_starred
		WHERE user_id = $1 AND (message_id = $2 OR id::text = $2)
		RETURNING is_starred
	`, userID, messageID).Scan(&starred)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrMessageNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to toggle message starred: %w", err)
	}

	return starred, nil
}

func existingThreadIDs(ctx context.Context, q Querier, userID, userEmail string, threadIDs []string) (map[string]bool, error) {
	rows, err := q.Query(ctx, `
		SELECT DISTINCT thread_id
		FROM mailboxes
		WHERE user_id = $1 AND thread_id = ANY($2)
		  AND (to_email = $3 OR from_email = $3)
	`, userID, threadIDs, userEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to check thread existence: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool, len(threadIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan thread id: %w", err)
		}
		existing[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating thread ids: %w", err)
	}

	return existing, nil
}
