package db

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/abysfin/webmail/backend/internal/models"
	"github.com/abysfin/webmail/backend/internal/testutil"
)

func TestGetMailboxCounts(t *testing.T) {
	pool := testutil.NewTestDB(t)
	ctx := context.Background()

	userID := seedUser(t, ctx, pool, "counter@test.example")
	inbox := folderID(t, ctx, pool, userID, models.FolderInbox)
	sent := folderID(t, ctx, pool, userID, models.FolderSent)

	threadID := uuid.NewString()
	seedMessage(t, ctx, pool, userID, inbox, testMessage{ThreadID: threadID, IsStarred: true})
	seedMessage(t, ctx, pool, userID, inbox, testMessage{ThreadID: threadID, IsRead: true})
	seedMessage(t, ctx, pool, userID, sent, testMessage{IsRead: true})

	counts, err := GetMailboxCounts(ctx, pool, userID)
	if err != nil {
		t.Fatalf("GetMailboxCounts failed: %v", err)
	}

	inboxCounts := counts.Folders[inbox]
	if inboxCounts.Total != 2 || inboxCounts.Starred != 1 || inboxCounts.Read != 1 || inboxCounts.Unread != 1 {
		t.Errorf("Unexpected inbox counts: %+v", inboxCounts)
	}

	sentCounts := counts.Folders[sent]
	if sentCounts.Total != 1 || sentCounts.Unread != 0 {
		t.Errorf("Unexpected sent counts: %+v", sentCounts)
	}

	// Empty system folders still show up with zero counts.
	drafts := folderID(t, ctx, pool, userID, models.FolderDrafts)
	if draftCounts, ok := counts.Folders[drafts]; !ok || draftCounts.Total != 0 {
		t.Errorf("Expected empty drafts folder with zero counts, got %+v", counts.Folders[drafts])
	}

	if counts.Total != 3 || counts.Starred != 1 || counts.Unread != 1 {
		t.Errorf("Unexpected aggregate counts: total=%d starred=%d unread=%d", counts.Total, counts.Starred, counts.Unread)
	}

	if counts.ThreadCounts.Total != 2 || counts.ThreadCounts.Starred != 1 || counts.ThreadCounts.Unread != 1 {
		t.Errorf("Unexpected thread counts: %+v", counts.ThreadCounts)
	}
}
