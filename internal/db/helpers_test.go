package db

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abysfin/webmail/backend/internal/models"
)

// seedUser creates a user with provisioned system folders.
func seedUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool, email string) string {
	t.Helper()

	userID, err := GetOrCreateUser(ctx, pool, email)
	if err != nil {
		t.Fatalf("Failed to seed user %s: %v", email, err)
	}
	return userID
}

// folderID resolves a system folder id for a seeded user.
func folderID(t *testing.T, ctx context.Context, pool *pgxpool.Pool, userID string, folderType models.FolderType) int64 {
	t.Helper()

	folder, err := ResolveFolder(ctx, pool, userID, FolderBySystemType(folderType))
	if err != nil {
		t.Fatalf("Failed to resolve %s folder: %v", folderType, err)
	}
	return folder.ID
}

// testMessage describes a message row to seed. Zero values get defaults.
type testMessage struct {
	ThreadID    string
	MessageID   string
	Subject     string
	Body        string
	FromEmail   string
	ToEmail     string
	MessageType string
	IsRead      bool
	IsStarred   bool
	IsDraft     bool
}

// seedMessage inserts a message row into the given folder and returns its
// row id.
func seedMessage(t *testing.T, ctx context.Context, pool *pgxpool.Pool, userID string, folder int64, m testMessage) string {
	t.Helper()

	if m.ThreadID == "" {
		m.ThreadID = uuid.NewString()
	}
	if m.MessageID == "" {
		m.MessageID = "<" + uuid.NewString() + "@test.example>"
	}
	if m.FromEmail == "" {
		m.FromEmail = "sender@test.example"
	}

	var messageType *string
	if m.MessageType != "" {
		messageType = &m.MessageType
	}
	var toEmail *string
	if m.ToEmail != "" {
		toEmail = &m.ToEmail
	}

	var id string
	err := pool.QueryRow(ctx, `
		INSERT INTO mailboxes
			(user_id, folder_id, thread_id, message_id, subject, body,
			 from_email, to_email, message_type, is_read, is_starred, is_draft)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, userID, folder, m.ThreadID, m.MessageID, m.Subject, m.Body,
		m.FromEmail, toEmail, messageType, m.IsRead, m.IsStarred, m.IsDraft).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to seed message %s: %v", m.MessageID, err)
	}

	return id
}

// countInFolder returns the number of the user's messages in a folder.
func countInFolder(t *testing.T, ctx context.Context, pool *pgxpool.Pool, userID string, folder int64) int {
	t.Helper()

	var count int
	err := pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM mailboxes WHERE user_id = $1 AND folder_id = $2
	`, userID, folder).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to count messages in folder: %v", err)
	}
	return count
}
