package db

import (
	"context"
	"errors"
	"testing"

	"github.com/abysfin/webmail/backend/internal/models"
	"github.com/abysfin/webmail/backend/internal/testutil"
)

func TestResolveFolder(t *testing.T) {
	pool := testutil.NewTestDB(t)
	ctx := context.Background()

	userID := seedUser(t, ctx, pool, "resolve@test.example")

	t.Run("by system type", func(t *testing.T) {
		folder, err := ResolveFolder(ctx, pool, userID, FolderBySystemType(models.FolderTrash))
		if err != nil {
			t.Fatalf("ResolveFolder failed: %v", err)
		}
		if folder.Name != "Trash" || folder.Type != models.FolderTrash {
			t.Errorf("Expected Trash folder, got %s/%s", folder.Name, folder.Type)
		}
	})

	t.Run("by display name", func(t *testing.T) {
		folder, err := ResolveFolder(ctx, pool, userID, FolderByName("Archive"))
		if err != nil {
			t.Fatalf("ResolveFolder failed: %v", err)
		}
		if folder.Type != models.FolderArchive {
			t.Errorf("Expected archive folder, got %s", folder.Type)
		}
	})

	t.Run("name lookup also matches the type tag", func(t *testing.T) {
		folder, err := ResolveFolder(ctx, pool, userID, FolderByName("spam"))
		if err != nil {
			t.Fatalf("ResolveFolder failed: %v", err)
		}
		if folder.Type != models.FolderSpam {
			t.Errorf("Expected spam folder, got %s", folder.Type)
		}
	})

	t.Run("by id", func(t *testing.T) {
		inboxID := folderID(t, ctx, pool, userID, models.FolderInbox)
		folder, err := ResolveFolder(ctx, pool, userID, FolderByID(inboxID))
		if err != nil {
			t.Fatalf("ResolveFolder failed: %v", err)
		}
		if folder.ID != inboxID {
			t.Errorf("Expected folder id %d, got %d", inboxID, folder.ID)
		}
	})

	t.Run("unknown name is a caller error", func(t *testing.T) {
		_, err := ResolveFolder(ctx, pool, userID, FolderByName("Nonexistent"))
		if !errors.Is(err, ErrFolderNotFound) {
			t.Errorf("Expected ErrFolderNotFound, got %v", err)
		}
	})

	t.Run("name lookup is exact", func(t *testing.T) {
		if _, err := ResolveFolder(ctx, pool, userID, FolderByName("aRcHiVe")); !errors.Is(err, ErrFolderNotFound) {
			t.Errorf("Expected ErrFolderNotFound for a case mismatch, got %v", err)
		}
	})

	t.Run("name lookup does not treat pattern characters as wildcards", func(t *testing.T) {
		for _, name := range []string{"%", "_rash", "A%"} {
			if _, err := ResolveFolder(ctx, pool, userID, FolderByName(name)); !errors.Is(err, ErrFolderNotFound) {
				t.Errorf("Expected ErrFolderNotFound for %q, got %v", name, err)
			}
		}
	})

	t.Run("folded lookup matches names case-insensitively but never patterns", func(t *testing.T) {
		folder, err := ResolveFolder(ctx, pool, userID, FolderByNameFold("aRcHiVe"))
		if err != nil {
			t.Fatalf("ResolveFolder failed: %v", err)
		}
		if folder.Type != models.FolderArchive {
			t.Errorf("Expected archive folder, got %s", folder.Type)
		}

		if _, err := ResolveFolder(ctx, pool, userID, FolderByNameFold("%")); !errors.Is(err, ErrFolderNotFound) {
			t.Errorf("Expected ErrFolderNotFound for a pattern, got %v", err)
		}
	})

	t.Run("missing system folder is a configuration error", func(t *testing.T) {
		var bareUserID string
		err := pool.QueryRow(ctx, `
			INSERT INTO users (email) VALUES ('bare@test.example') RETURNING id
		`).Scan(&bareUserID)
		if err != nil {
			t.Fatalf("Failed to insert bare user: %v", err)
		}

		_, err = ResolveFolder(ctx, pool, bareUserID, FolderBySystemType(models.FolderInbox))
		if !errors.Is(err, ErrFolderNotConfigured) {
			t.Errorf("Expected ErrFolderNotConfigured, got %v", err)
		}
	})

	t.Run("does not resolve another user's folder", func(t *testing.T) {
		otherID := seedUser(t, ctx, pool, "other-resolve@test.example")
		otherInbox := folderID(t, ctx, pool, otherID, models.FolderInbox)

		_, err := ResolveFolder(ctx, pool, userID, FolderByID(otherInbox))
		if !errors.Is(err, ErrFolderNotFound) {
			t.Errorf("Expected ErrFolderNotFound for foreign folder, got %v", err)
		}
	})
}

func TestCreateFolder(t *testing.T) {
	pool := testutil.NewTestDB(t)
	ctx := context.Background()

	userID := seedUser(t, ctx, pool, "create@test.example")

	t.Run("creates a custom folder by default", func(t *testing.T) {
		folder, err := CreateFolder(ctx, pool, userID, CreateFolderInput{Name: "Receipts"})
		if err != nil {
			t.Fatalf("CreateFolder failed: %v", err)
		}
		if folder.Type != models.FolderCustom {
			t.Errorf("Expected custom type, got %s", folder.Type)
		}
		if folder.Name != "Receipts" {
			t.Errorf("Expected name Receipts, got %s", folder.Name)
		}
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := CreateFolder(ctx, pool, userID, CreateFolderInput{})
		if !errors.Is(err, ErrInvalidFolderInput) {
			t.Errorf("Expected ErrInvalidFolderInput, got %v", err)
		}
	})

	t.Run("rejects malformed color", func(t *testing.T) {
		color := "red"
		_, err := CreateFolder(ctx, pool, userID, CreateFolderInput{Name: "Colored", Color: &color})
		if !errors.Is(err, ErrInvalidFolderInput) {
			t.Errorf("Expected ErrInvalidFolderInput, got %v", err)
		}
	})

	t.Run("accepts hex color", func(t *testing.T) {
		color := "#3366FF"
		folder, err := CreateFolder(ctx, pool, userID, CreateFolderInput{Name: "Colored", Color: &color})
		if err != nil {
			t.Fatalf("CreateFolder failed: %v", err)
		}
		if folder.Color == nil || *folder.Color != color {
			t.Errorf("Expected color %s, got %v", color, folder.Color)
		}
	})

	t.Run("rejects duplicate name", func(t *testing.T) {
		_, err := CreateFolder(ctx, pool, userID, CreateFolderInput{Name: "Receipts"})
		if !errors.Is(err, ErrFolderNameTaken) {
			t.Errorf("Expected ErrFolderNameTaken, got %v", err)
		}
	})

	t.Run("rejects foreign parent", func(t *testing.T) {
		otherID := seedUser(t, ctx, pool, "other-create@test.example")
		otherInbox := folderID(t, ctx, pool, otherID, models.FolderInbox)

		_, err := CreateFolder(ctx, pool, userID, CreateFolderInput{Name: "Nested", ParentID: &otherInbox})
		if !errors.Is(err, ErrFolderNotFound) {
			t.Errorf("Expected ErrFolderNotFound for foreign parent, got %v", err)
		}
	})
}

func TestRenameAndDeleteFolder(t *testing.T) {
	pool := testutil.NewTestDB(t)
	ctx := context.Background()

	userID := seedUser(t, ctx, pool, "rename@test.example")

	custom, err := CreateFolder(ctx, pool, userID, CreateFolderInput{Name: "Projects"})
	if err != nil {
		t.Fatalf("CreateFolder failed: %v", err)
	}

	t.Run("renames a custom folder", func(t *testing.T) {
		if err := RenameFolder(ctx, pool, userID, custom.ID, "Projects 2026"); err != nil {
			t.Fatalf("RenameFolder failed: %v", err)
		}
		folder, err := ResolveFolder(ctx, pool, userID, FolderByID(custom.ID))
		if err != nil {
			t.Fatalf("ResolveFolder failed: %v", err)
		}
		if folder.Name != "Projects 2026" {
			t.Errorf("Expected renamed folder, got %s", folder.Name)
		}
	})

	t.Run("refuses to rename a system folder", func(t *testing.T) {
		inboxID := folderID(t, ctx, pool, userID, models.FolderInbox)
		err := RenameFolder(ctx, pool, userID, inboxID, "My Inbox")
		if !errors.Is(err, ErrFolderNotCustom) {
			t.Errorf("Expected ErrFolderNotCustom, got %v", err)
		}
	})

	t.Run("refuses to delete a system folder", func(t *testing.T) {
		trashID := folderID(t, ctx, pool, userID, models.FolderTrash)
		err := DeleteFolder(ctx, pool, userID, trashID)
		if !errors.Is(err, ErrFolderNotCustom) {
			t.Errorf("Expected ErrFolderNotCustom, got %v", err)
		}
	})

	t.Run("delete moves contents to inbox", func(t *testing.T) {
		inboxID := folderID(t, ctx, pool, userID, models.FolderInbox)
		seedMessage(t, ctx, pool, userID, custom.ID, testMessage{Subject: "kept"})

		if err := DeleteFolder(ctx, pool, userID, custom.ID); err != nil {
			t.Fatalf("DeleteFolder failed: %v", err)
		}

		if _, err := ResolveFolder(ctx, pool, userID, FolderByID(custom.ID)); !errors.Is(err, ErrFolderNotFound) {
			t.Errorf("Expected folder gone, got %v", err)
		}
		if got := countInFolder(t, ctx, pool, userID, inboxID); got != 1 {
			t.Errorf("Expected 1 message moved to inbox, got %d", got)
		}
	})
}

func TestSuggestFolders(t *testing.T) {
	pool := testutil.NewTestDB(t)
	ctx := context.Background()

	userID := seedUser(t, ctx, pool, "suggest@test.example")
	if _, err := CreateFolder(ctx, pool, userID, CreateFolderInput{Name: "Inbound leads"}); err != nil {
		t.Fatalf("CreateFolder failed: %v", err)
	}

	t.Run("system folders rank first", func(t *testing.T) {
		folders, err := SuggestFolders(ctx, pool, userID, "in")
		if err != nil {
			t.Fatalf("SuggestFolders failed: %v", err)
		}
		if len(folders) < 2 {
			t.Fatalf("Expected at least 2 suggestions, got %d", len(folders))
		}
		if folders[0].Type != models.FolderInbox {
			t.Errorf("Expected Inbox first, got %s", folders[0].Name)
		}
	})

	t.Run("no matches yields empty result", func(t *testing.T) {
		folders, err := SuggestFolders(ctx, pool, userID, "zzz")
		if err != nil {
			t.Fatalf("SuggestFolders failed: %v", err)
		}
		if len(folders) != 0 {
			t.Errorf("Expected no suggestions, got %d", len(folders))
		}
	})
}
