package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abysfin/webmail/backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrMessageNotFound is returned when a message id does not resolve under the
// caller's ownership.
var ErrMessageNotFound = errors.New("message not found")

// ErrThreadNotFound is returned when a thread id does not resolve under the
// caller's ownership.
var ErrThreadNotFound = errors.New("thread not found")

// MissingIDsError reports a batch operation rejected because some of the
// requested ids did not resolve. The whole batch is rolled back; no row is
// mutated.
type MissingIDsError struct {
	Kind string // "thread" or "message"
	IDs  []string
}

func (e *MissingIDsError) Error() string {
	return fmt.Sprintf("%d %s(s) not found: %s", len(e.IDs), e.Kind, strings.Join(e.IDs, ", "))
}

// BatchMoveResult reports the rows a batch move touched, grouped by thread.
type BatchMoveResult struct {
	Moved    int                 `json:"moved"`
	ByThread map[string][]string `json:"byThread"`
}

// RestoreResult reports where a restore sent its rows. Destinations are
// inferred per message, so a single thread restore can fan out.
type RestoreResult struct {
	Restored int `json:"restored"`
	ToInbox  int `json:"toInbox"`
	ToSent   int `json:"toSent"`
	ToDrafts int `json:"toDrafts"`
}

// MoveMessage moves one message into the destination folder. The message may
// be identified by its protocol message id or its row id.
func MoveMessage(ctx context.Context, pool *pgxpool.Pool, userID, messageID string, dest FolderRef) (*models.Folder, error) {
	folder, err := ResolveFolder(ctx, pool, userID, dest)
	if err != nil {
		return nil, err
	}

	tag, err := pool.Exec(ctx, `
		UPDATE mailboxes
		SET folder_id = $1
		WHERE user_id = $2 AND (message_id = $3 OR id::text = $3)
	`, folder.ID, userID, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to move message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrMessageNotFound
	}

	return folder, nil
}

// MoveThread moves every message in the thread into the destination folder
// and returns the number of rows affected.
func MoveThread(ctx context.Context, pool *pgxpool.Pool, userID, threadID string, dest FolderRef) (int64, error) {
	folder, err := ResolveFolder(ctx, pool, userID, dest)
	if err != nil {
		return 0, err
	}

	tag, err := pool.Exec(ctx, `
		UPDATE mailboxes
		SET folder_id = $1
		WHERE user_id = $2 AND thread_id = $3
	`, folder.ID, userID, threadID)
	if err != nil {
		return 0, fmt.Errorf("failed to move thread: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrThreadNotFound
	}

	return tag.RowsAffected(), nil
}

// MoveThreads moves every message of every listed thread into the destination
// folder, all-or-nothing. The update runs once and the returned thread ids
// are diffed against the request; any miss rolls the whole batch back with a
// MissingIDsError naming exactly the missing threads.
func MoveThreads(ctx context.Context, pool *pgxpool.Pool, userID string, threadIDs []string, dest FolderRef) (*BatchMoveResult, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	folder, err := ResolveFolder(ctx, tx, userID, dest)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		UPDATE mailboxes
		SET folder_id = $1
		WHERE user_id = $2 AND thread_id = ANY($3)
		RETURNING id, thread_id
	`, folder.ID, userID, threadIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to move threads: %w", err)
	}

	result := &BatchMoveResult{ByThread: make(map[string][]string)}
	for rows.Next() {
		var id, threadID string
		if err := rows.Scan(&id, &threadID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan moved row: %w", err)
		}
		result.ByThread[threadID] = append(result.ByThread[threadID], id)
		result.Moved++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating moved rows: %w", err)
	}

	if missing := missingFrom(threadIDs, result.ByThread); len(missing) > 0 {
		return nil, &MissingIDsError{Kind: "thread", IDs: missing}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}

// MoveMessages moves the listed messages (by protocol message id) into the
// destination folder with the same all-or-nothing policy as MoveThreads.
func MoveMessages(ctx context.Context, pool *pgxpool.Pool, userID string, messageIDs []string, dest FolderRef) (*BatchMoveResult, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	folder, err := ResolveFolder(ctx, tx, userID, dest)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		UPDATE mailboxes
		SET folder_id = $1
		WHERE user_id = $2 AND message_id = ANY($3)
		RETURNING id, thread_id, message_id
	`, folder.ID, userID, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to move messages: %w", err)
	}

	result := &BatchMoveResult{ByThread: make(map[string][]string)}
	seen := make(map[string]bool, len(messageIDs))
	for rows.Next() {
		var id, threadID, messageID string
		if err := rows.Scan(&id, &threadID, &messageID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan moved row: %w", err)
		}
		result.ByThread[threadID] = append(result.ByThread[threadID], id)
		result.Moved++
		seen[messageID] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating moved rows: %w", err)
	}

	var missing []string
	for _, id := range messageIDs {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingIDsError{Kind: "message", IDs: missing}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}

// Restore destination inference, applied per row: the sent copy goes back to
// Sent, drafts go back to Drafts, everything else goes to Inbox. The update
// is scoped to rows currently in the source folder so rows that already moved
// elsewhere are left alone.
const restoreSetClause = `
	folder_id = CASE
		WHEN LOWER(COALESCE(message_type, '')) = 'sent' OR from_email = $1 THEN $2::bigint
		WHEN LOWER(COALESCE(message_type, '')) = 'draft' THEN $3::bigint
		ELSE $4::bigint
	END`

// RestoreMessage restores one message out of the source folder to its
// inferred origin and reports where it landed.
func RestoreMessage(ctx context.Context, pool *pgxpool.Pool, userID, userEmail, messageID string, source FolderRef) (*RestoreResult, error) {
	sourceFolder, err := ResolveFolder(ctx, pool, userID, source)
	if err != nil {
		return nil, err
	}
	dest, err := getRestoreDestinations(ctx, pool, userID)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `
		UPDATE mailboxes
		SET `+restoreSetClause+`
		WHERE user_id = $5 AND (message_id = $6 OR id::text = $6) AND folder_id = $7
		RETURNING folder_id
	`, userEmail, dest.sent, dest.drafts, dest.inbox, userID, messageID, sourceFolder.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to restore message: %w", err)
	}

	result, err := collectRestoreResult(rows, dest)
	if err != nil {
		return nil, err
	}
	if result.Restored == 0 {
		return nil, ErrMessageNotFound
	}

	return result, nil
}

// RestoreThread restores every message of the thread still in the source
// folder to its inferred origin.
func RestoreThread(ctx context.Context, pool *pgxpool.Pool, userID, userEmail, threadID string, source FolderRef) (*RestoreResult, error) {
	sourceFolder, err := ResolveFolder(ctx, pool, userID, source)
	if err != nil {
		return nil, err
	}
	dest, err := getRestoreDestinations(ctx, pool, userID)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `
		UPDATE mailboxes
		SET `+restoreSetClause+`
		WHERE user_id = $5 AND thread_id = $6 AND folder_id = $7
		RETURNING folder_id
	`, userEmail, dest.sent, dest.drafts, dest.inbox, userID, threadID, sourceFolder.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to restore thread: %w", err)
	}

	result, err := collectRestoreResult(rows, dest)
	if err != nil {
		return nil, err
	}
	if result.Restored == 0 {
		return nil, ErrThreadNotFound
	}

	return result, nil
}

// RestoreThreads restores the listed threads out of the source folder,
// all-or-nothing. A thread counts as found when at least one of its rows is
// still in the source folder.
func RestoreThreads(ctx context.Context, pool *pgxpool.Pool, userID, userEmail string, threadIDs []string, source FolderRef) (*RestoreResult, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sourceFolder, err := ResolveFolder(ctx, tx, userID, source)
	if err != nil {
		return nil, err
	}
	dest, err := getRestoreDestinations(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		UPDATE mailboxes
		SET `+restoreSetClause+`
		WHERE user_id = $5 AND thread_id = ANY($6) AND folder_id = $7
		RETURNING folder_id, thread_id
	`, userEmail, dest.sent, dest.drafts, dest.inbox, userID, threadIDs, sourceFolder.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to restore threads: %w", err)
	}

	result := &RestoreResult{}
	seen := make(map[string]bool, len(threadIDs))
	for rows.Next() {
		var folderID int64
		var threadID string
		if err := rows.Scan(&folderID, &threadID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan restored row: %w", err)
		}
		tallyRestore(result, folderID, dest)
		seen[threadID] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating restored rows: %w", err)
	}

	var missing []string
	for _, id := range threadIDs {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingIDsError{Kind: "thread", IDs: missing}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}

// RestoreMessages restores the listed messages (by protocol message id) out
// of the source folder, all-or-nothing.
func RestoreMessages(ctx context.Context, pool *pgxpool.Pool, userID, userEmail string, messageIDs []string, source FolderRef) (*RestoreResult, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sourceFolder, err := ResolveFolder(ctx, tx, userID, source)
	if err != nil {
		return nil, err
	}
	dest, err := getRestoreDestinations(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		UPDATE mailboxes
		SET `+restoreSetClause+`
		WHERE user_id = $5 AND message_id = ANY($6) AND folder_id = $7
		RETURNING folder_id, message_id
	`, userEmail, dest.sent, dest.drafts, dest.inbox, userID, messageIDs, sourceFolder.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to restore messages: %w", err)
	}

	result := &RestoreResult{}
	seen := make(map[string]bool, len(messageIDs))
	for rows.Next() {
		var folderID int64
		var messageID string
		if err := rows.Scan(&folderID, &messageID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan restored row: %w", err)
		}
		tallyRestore(result, folderID, dest)
		seen[messageID] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating restored rows: %w", err)
	}

	var missing []string
	for _, id := range messageIDs {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingIDsError{Kind: "message", IDs: missing}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}

// DeleteThread permanently removes every message of the thread and returns
// the number of rows deleted. This is irreversible; trash is the soft delete.
func DeleteThread(ctx context.Context, pool *pgxpool.Pool, userID, threadID string) (int64, error) {
	tag, err := pool.Exec(ctx, `
		DELETE FROM mailboxes WHERE user_id = $1 AND thread_id = $2
	`, userID, threadID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete thread: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrThreadNotFound
	}

	return tag.RowsAffected(), nil
}

// DeleteThreads permanently removes the listed threads, all-or-nothing, and
// reports the rows deleted per thread.
func DeleteThreads(ctx context.Context, pool *pgxpool.Pool, userID string, threadIDs []string) (map[string]int64, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		DELETE FROM mailboxes
		WHERE user_id = $1 AND thread_id = ANY($2)
		RETURNING thread_id
	`, userID, threadIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to delete threads: %w", err)
	}

	counts := make(map[string]int64, len(threadIDs))
	for rows.Next() {
		var threadID string
		if err := rows.Scan(&threadID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan deleted row: %w", err)
		}
		counts[threadID]++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deleted rows: %w", err)
	}

	var missing []string
	for _, id := range threadIDs {
		if counts[id] == 0 {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingIDsError{Kind: "thread", IDs: missing}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return counts, nil
}

// DeleteMessages permanently removes the listed messages (by protocol message
// id), all-or-nothing.
func DeleteMessages(ctx context.Context, pool *pgxpool.Pool, userID string, messageIDs []string) (int64, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		DELETE FROM mailboxes
		WHERE user_id = $1 AND message_id = ANY($2)
		RETURNING message_id
	`, userID, messageIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}

	seen := make(map[string]bool, len(messageIDs))
	var deleted int64
	for rows.Next() {
		var messageID string
		if err := rows.Scan(&messageID); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan deleted row: %w", err)
		}
		seen[messageID] = true
		deleted++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating deleted rows: %w", err)
	}

	var missing []string
	for _, id := range messageIDs {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return 0, &MissingIDsError{Kind: "message", IDs: missing}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return deleted, nil
}

func tallyRestore(result *RestoreResult, folderID int64, dest *restoreDestinations) {
	result.Restored++
	switch {
	case folderID == dest.sent:
		result.ToSent++
	case folderID == dest.drafts && dest.drafts != dest.inbox:
		result.ToDrafts++
	default:
		result.ToInbox++
	}
}

func collectRestoreResult(rows pgx.Rows, dest *restoreDestinations) (*RestoreResult, error) {
	defer rows.Close()

	result := &RestoreResult{}
	for rows.Next() {
		var folderID int64
		if err := rows.Scan(&folderID); err != nil {
			return nil, fmt.Errorf("failed to scan restored row: %w", err)
		}
		tallyRestore(result, folderID, dest)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating restored rows: %w", err)
	}

	return result, nil
}

func missingFrom(requested []string, found map[string][]string) []string {
	var missing []string
	for _, id := range requested {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
