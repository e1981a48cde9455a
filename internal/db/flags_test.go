package db

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/abysfin/webmail/backend/internal/models"
	"github.com/abysfin/webmail/backend/internal/testutil"
)

func TestSetThreadRead(t *testing.T) {
	pool := testutil.NewTestDB(t)
	ctx := context.Background()

	const email = "reader@test.example"
	userID := seedUser(t, ctx, pool, email)
	inbox := folderID(t, ctx, pool, userID, models.FolderInbox)

	t.Run("marks the caller's copies read", func(t *testing.T) {
		threadID := uuid.NewString()
		seedMessage(t, ctx, pool, userID, inbox, testMessage{ThreadID: threadID, ToEmail: email})
		seedMessage(t, ctx, pool, userID, inbox, testMessage{ThreadID: threadID, ToEmail: email})

		result, err := SetThreadRead(ctx, pool, userID, email, threadID, true)
		if err != nil {
			t.Fatalf("SetThreadRead failed: %v", err)
		}
		if result.Updated != 2 || result.Unchanged {
			t.Errorf("Expected 2 rows updated, got %+v", result)
		}
	})

	t.Run("already-set value is a no-op, not an error", func(t *testing.T) {
		threadID := uuid.NewString()
		seedMessage(t, ctx, pool, userID, inbox, testMessage{ThreadID: threadID, ToEmail: email, IsRead: true})

		result, err := SetThreadRead(ctx, pool, userID, email, threadID, true)
		if err != nil {
			t.Fatalf("SetThreadRead failed: %v", err)
		}
		if !result.Unchanged || result.Updated != 0 {
			t.Errorf("Expected unchanged no-op, got %+v", result)
		}
	})

	t.Run("read state only covers the caller's perspective", func(t *testing.T) {
		threadID := uuid.NewString()
		// A copy addressed to someone else entirely.
		seedMessage(t, ctx, pool, userID, inbox, testMessage{ThreadID: threadID, ToEmail: "bystander@test.example"})

		_, err := SetThreadRead(ctx, pool, userID, email, threadID, true)
		if !errors.Is(err, ErrThreadNotFound) {
			t.Errorf("Expected ErrThreadNotFound outside the caller's perspective, got %v", err)
		}
	})

	t.Run("unknown thread is not found", func(t *testing.T) {
		_, err := SetThreadRead(ctx, pool, userID, email, uuid.NewString(), true)
		if !errors.Is(err, ErrThreadNotFound) {
			t.Errorf("Expected ErrThreadNotFound, got %v", err)
		}
	})
}

func TestSetThreadsRead(t *testing.T) {
	pool := testutil.NewTestDB(t)
	ctx := context.Background()

	const email = "batch-reader@test.example"
	userID := seedUser(t, ctx, pool, email)
	inbox := folderID(t, ctx, pool, userID, models.FolderInbox)

	t.Run("updates a batch, tolerating already-set threads", func(t *testing.T) {
		unread := uuid.NewString()
		alreadyRead := uuid.NewString()
		seedMessage(t, ctx, pool, userID, inbox, testMessage{ThreadID: unread, ToEmail: email})
		seedMessage(t, ctx, pool, userID, inbox, testMessage{ThreadID: alreadyRead, ToEmail: email, IsRead: true})

		result, err := SetThreadsRead(ctx, pool, userID, email, []string{unread, alreadyRead}, true)
		if err != nil {
			t.Fatalf("SetThreadsRead failed: %v", err)
		}
		if result.Updated != 1 {
			t.Errorf("Expected 1 row updated, got %+v", result)
		}
	})

	t.Run("missing thread fails the whole batch", func(t *testing.T) {
		good := uuid.NewString()
		seedMessage(t, ctx, pool, userID, inbox, testMessage{ThreadID: good, ToEmail: email})

		_, err := SetThreadsRead(ctx, pool, userID, email, []string{good, uuid.NewString()}, true)
		var missing *MissingIDsError
		if !errors.As(err, &missing) {
			t.Fatalf("Expected MissingIDsError, got %v", err)
		}

		// The good thread was rolled back.
		var isRead bool
		if err := pool.QueryRow(ctx, `
			SELECT is_read FROM mailboxes WHERE user_id = $1 AND thread_id = $2
		`, userID, good).Scan(&isRead); err != nil {
			t.Fatalf("Failed to read flag back: %v", err)
		}
		if isRead {
			t.Error("Expected rollback to leave the thread unread")
		}
	})
}

func TestSetMessageStarred(t *testing.T) {
	pool := testutil.NewTestDB(t)
	ctx := context.Background()

	userID := seedUser(t, ctx, pool, "star@test.example")
	inbox := folderID(t, ctx, pool, userID, models.FolderInbox)

	seedMessage(t, ctx, pool, userID, inbox, testMessage{MessageID: "<star@test.example>"})

	t.Run("sets the flag", func(t *testing.T) {
		result, err := SetMessageStarred(ctx, pool, userID, "<star@test.example>", true)
		if err != nil {
			t.Fatalf("SetMessageStarred failed: %v", err)
		}
		if result.Updated != 1 {
			t.Errorf("Expected 1 row updated, got %+v", result)
		}
	})

	t.Run("setting the same value again is a safe no-op", func(t *testing.T) {
		result, err := SetMessageStarred(ctx, pool, userID, "<star@test.example>", true)
		if err != nil {
			t.Fatalf("SetMessageStarred failed: %v", err)
		}
		if !result.Unchanged {
			t.Errorf("Expected unchanged no-op, got %+v", result)
		}
	})

	t.Run("unknown message is not found", func(t *testing.T) {
		_, err := SetMessageStarred(ctx, pool, userID, "<ghost@test.example>", true)
		if !errors.Is(err, ErrMessageNotFound) {
			t.Errorf("Expected ErrMessageNotFound, got %v", err)
		}
	})
}

func TestToggleMessageStarred(t *testing.T) {
	pool := testutil.NewTestDB(t)
	ctx := context.Background()

	userID := seedUser(t, ctx, pool, "toggle@test.example")
	inbox := folderID(t, ctx, pool, userID, models.FolderInbox)

	seedMessage(t, ctx, pool, userID, inbox, testMessage{MessageID: "<toggle@test.example>", Subject: "keep me"})

	first, err := ToggleMessageStarred(ctx, pool, userID, "<toggle@test.example>")
	if err != nil {
		t.Fatalf("First toggle failed: %v", err)
	}
	if !first {
		t.Error("Expected first toggle to star the message")
	}

	second, err := ToggleMessageStarred(ctx, pool, userID, "<toggle@test.example>")
	if err != nil {
		t.Fatalf("Second toggle failed: %v", err)
	}
	if second {
		t.Error("Expected second toggle to unstar the message")
	}

	// No drift in unrelated fields.
	msg, err := GetMessageByID(ctx, pool, userID, "<toggle@test.example>")
	if err != nil {
		t.Fatalf("GetMessageByID failed: %v", err)
	}
	if msg.Subject != "keep me" || msg.IsRead || msg.IsDraft {
		t.Errorf("Unrelated fields drifted: %+v", msg)
	}

	if _, err := ToggleMessageStarred(ctx, pool, userID, "<ghost@test.example>"); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("Expected ErrMessageNotFound, got %v", err)
	}
}
