package db

import (
	"context"
	"errors"
	"testing"

	"github.com/abysfin/webmail/backend/internal/models"
	"github.com/abysfin/webmail/backend/internal/testutil"
)

func TestGetOrCreateUser(t *testing.T) {
	pool := testutil.NewTestDB(t)
	ctx := context.Background()

	t.Run("creates user with system folders", func(t *testing.T) {
		userID, err := GetOrCreateUser(ctx, pool, "new@test.example")
		if err != nil {
			t.Fatalf("GetOrCreateUser failed: %v", err)
		}
		if userID == "" {
			t.Fatal("Expected a user id")
		}

		folders, err := ListFolders(ctx, pool, userID, "")
		if err != nil {
			t.Fatalf("ListFolders failed: %v", err)
		}
		if len(folders) != len(models.SystemFolderTypes) {
			t.Errorf("Expected %d system folders, got %d", len(models.SystemFolderTypes), len(folders))
		}

		byType := make(map[models.FolderType]bool)
		for _, f := range folders {
			byType[f.Type] = true
		}
		for _, ft := range models.SystemFolderTypes {
			if !byType[ft] {
				t.Errorf("Missing system folder %s", ft)
			}
		}
	})

	t.Run("returns same id on second call", func(t *testing.T) {
		first, err := GetOrCreateUser(ctx, pool, "repeat@test.example")
		if err != nil {
			t.Fatalf("GetOrCreateUser failed: %v", err)
		}
		second, err := GetOrCreateUser(ctx, pool, "repeat@test.example")
		if err != nil {
			t.Fatalf("GetOrCreateUser failed on second call: %v", err)
		}
		if first != second {
			t.Errorf("Expected same user id, got %s and %s", first, second)
		}
	})
}

func TestGetUserIDByEmail(t *testing.T) {
	pool := testutil.NewTestDB(t)
	ctx := context.Background()

	userID := seedUser(t, ctx, pool, "known@test.example")

	t.Run("finds existing user", func(t *testing.T) {
		got, err := GetUserIDByEmail(ctx, pool, "known@test.example")
		if err != nil {
			t.Fatalf("GetUserIDByEmail failed: %v", err)
		}
		if got != userID {
			t.Errorf("Expected user id %s, got %s", userID, got)
		}
	})

	t.Run("does not create missing user", func(t *testing.T) {
		_, err := GetUserIDByEmail(ctx, pool, "stranger@test.example")
		if !errors.Is(err, ErrUserNotFound) {
			t.Errorf("Expected ErrUserNotFound, got %v", err)
		}
	})
}
