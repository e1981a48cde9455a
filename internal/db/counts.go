package db

import (
	"context"
	"fmt"

	"github.com/abysfin/webmail/backend/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GetMailboxCounts derives the per-folder and per-thread totals for a user.
// Nothing is materialized; two grouped queries compute everything on demand.
func GetMailboxCounts(ctx context.Context, pool *pgxpool.Pool, userID string) (*models.MailboxCounts, error) {
	counts := &models.MailboxCounts{
		Folders: make(map[int64]models.FolderCounts),
	}

	rows, err := pool.Query(ctx, `
		SELECT f.folder_id, f.name, f.type,
		       COUNT(m.id),
		       COUNT(m.id) FILTER (WHERE m.is_starred),
		       COUNT(m.id) FILTER (WHERE m.is_read),
		       COUNT(m.id) FILTER (WHERE NOT m.is_read)
		FROM folders f
		LEFT JOIN mailboxes m ON m.folder_id = f.folder_id
		WHERE f.user_id = $1
		GROUP BY f.folder_id, f.name, f.type
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get folder counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var folderID int64
		var fc models.FolderCounts
		if err := rows.Scan(&folderID, &fc.Name, &fc.Type,
			&fc.Total, &fc.Starred, &fc.Read, &fc.Unread); err != nil {
			return nil, fmt.Errorf("failed to scan folder counts: %w", err)
		}
		counts.Folders[folderID] = fc
		counts.Total += fc.Total
		counts.Starred += fc.Starred
		counts.Unread += fc.Unread
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating folder counts: %w", err)
	}

	err = pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT thread_id),
		       COUNT(DISTINCT thread_id) FILTER (WHERE is_starred),
		       COUNT(DISTINCT thread_id) FILTER (WHERE NOT is_read)
		FROM mailboxes
		WHERE user_id = $1
	`, userID).Scan(
		&counts.ThreadCounts.Total,
		&counts.ThreadCounts.Starred,
		&counts.ThreadCounts.Unread,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get thread counts: %w", err)
	}

	return counts, nil
}
