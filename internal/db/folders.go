package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/abysfin/webmail/backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrFolderNotConfigured is returned when a required system folder is missing
// for a user. This is a provisioning defect, not a caller error.
var ErrFolderNotConfigured = errors.New("system folder not configured")

// ErrFolderNotFound is returned when a caller-supplied folder reference does
// not resolve under their ownership.
var ErrFolderNotFound = errors.New("folder not found")

// ErrFolderNotCustom is returned when a rename/delete targets a system folder.
var ErrFolderNotCustom = errors.New("only custom folders can be modified")

// ErrFolderNameTaken is returned on a unique-name violation for a user.
var ErrFolderNameTaken = errors.New("folder name already exists for this user")

// ErrDestinationFoldersMissing is returned by restore operations when the
// inbox or sent folder is absent (drafts is optional and falls back to inbox).
var ErrDestinationFoldersMissing = errors.New("destination system folders missing")

// FolderRef identifies a folder by exactly one of: numeric id, display name,
// or system type. Name lookups also match the type tag, so callers can pass
// either "Spam" or "spam". Matching is exact; FolderByNameFold compares
// case-insensitively for the restore-source lookup.
type FolderRef struct {
	id   int64
	name string
	typ  models.FolderType
	fold bool
}

func FolderByID(id int64) FolderRef                    { return FolderRef{id: id} }
func FolderByName(name string) FolderRef               { return FolderRef{name: name} }
func FolderByNameFold(name string) FolderRef           { return FolderRef{name: name, fold: true} }
func FolderBySystemType(t models.FolderType) FolderRef { return FolderRef{typ: t} }

// ResolveFolder resolves a FolderRef to the user's folder row.
// System-type lookups that miss return ErrFolderNotConfigured (500-class);
// id/name lookups that miss return ErrFolderNotFound (caller error).
func ResolveFolder(ctx context.Context, q Querier, userID string, ref FolderRef) (*models.Folder, error) {
	var row pgx.Row

	switch {
	case ref.id != 0:
		row = q.QueryRow(ctx, `
			SELECT folder_id, user_id, name, type, parent_id, color, icon, sort_order, sync_enabled, created_at
			FROM folders
			WHERE folder_id = $1 AND user_id = $2
		`, ref.id, userID)
	case ref.typ != "":
		row = q.QueryRow(ctx, `
			SELECT folder_id, user_id, name, type, parent_id, color, icon, sort_order, sync_enabled, created_at
			FROM folders
			WHERE user_id = $1 AND type = $2
		`, userID, ref.typ)
	case ref.fold:
		row = q.QueryRow(ctx, `
			SELECT folder_id, user_id, name, type, parent_id, color, icon, sort_order, sync_enabled, created_at
			FROM folders
			WHERE user_id = $1 AND (LOWER(name) = LOWER($2) OR type = LOWER($2))
			ORDER BY (type <> 'custom') DESC
			LIMIT 1
		`, userID, ref.name)
	default:
		row = q.QueryRow(ctx, `
			SELECT folder_id, user_id, name, type, parent_id, color, icon, sort_order, sync_enabled, created_at
			FROM folders
			WHERE user_id = $1 AND (name = $2 OR type = $2)
			ORDER BY (type <> 'custom') DESC
			LIMIT 1
		`, userID, ref.name)
	}

	folder, err := scanFolder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if ref.typ != "" && ref.typ.IsSystem() {
			return nil, fmt.Errorf("%w: %s", ErrFolderNotConfigured, ref.typ)
		}
		return nil, ErrFolderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve folder: %w", err)
	}

	return folder, nil
}

// restoreDestinations holds the folder ids restores fan out to.
// Drafts falls back to inbox when the drafts folder is absent.
type restoreDestinations struct {
	inbox  int64
	sent   int64
	drafts int64
}

// getRestoreDestinations loads the inbox/sent/drafts folder ids for a user.
// Missing inbox or sent means the account is misconfigured and the whole
// restore fails; a missing drafts folder only redirects drafts to inbox.
func getRestoreDestinations(ctx context.Context, q Querier, userID string) (*restoreDestinations, error) {
	rows, err := q.Query(ctx, `
		SELECT folder_id, type
		FROM folders
		WHERE user_id = $1 AND type IN ('inbox', 'sent', 'drafts')
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get restore destinations: %w", err)
	}
	defer rows.Close()

	byType := make(map[models.FolderType]int64, 3)
	for rows.Next() {
		var id int64
		var t models.FolderType
		if err := rows.Scan(&id, &t); err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		byType[t] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating folders: %w", err)
	}

	dest := &restoreDestinations{
		inbox:  byType[models.FolderInbox],
		sent:   byType[models.FolderSent],
		drafts: byType[models.FolderDrafts],
	}
	if dest.inbox == 0 || dest.sent == 0 {
		return nil, ErrDestinationFoldersMissing
	}
	if dest.drafts == 0 {
		dest.drafts = dest.inbox
	}

	return dest, nil
}

// ListFolders returns the user's folders, optionally filtered by type,
// ordered by name.
func ListFolders(ctx context.Context, pool *pgxpool.Pool, userID string, folderType models.FolderType) ([]*models.Folder, error) {
	query := `
		SELECT folder_id, user_id, name, type, parent_id, color, icon, sort_order, sync_enabled, created_at
		FROM folders
		WHERE user_id = $1`
	args := []any{userID}

	if folderType != "" {
		query += ` AND type = $2`
		args = append(args, folderType)
	}
	query += ` ORDER BY name`

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	var folders []*models.Folder
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, folder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating folders: %w", err)
	}

	return folders, nil
}

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// CreateFolderInput carries the caller-supplied folder attributes.
type CreateFolderInput struct {
	Name        string
	Type        models.FolderType
	ParentID    *int64
	Color       *string
	Icon        *string
	SortOrder   int
	SyncEnabled bool
}

// ErrInvalidFolderInput is returned for malformed folder attributes.
var ErrInvalidFolderInput = errors.New("invalid folder input")

// CreateFolder creates a folder for the user. The parent, when given, must
// belong to the same user.
func CreateFolder(ctx context.Context, pool *pgxpool.Pool, userID string, in CreateFolderInput) (*models.Folder, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidFolderInput)
	}
	if in.Type == "" {
		in.Type = models.FolderCustom
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown folder type %q", ErrInvalidFolderInput, in.Type)
	}
	if in.Color != nil && !colorPattern.MatchString(*in.Color) {
		return nil, fmt.Errorf("%w: color must be #RRGGBB", ErrInvalidFolderInput)
	}

	if in.ParentID != nil {
		var exists bool
		err := pool.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM folders WHERE folder_id = $1 AND user_id = $2)
		`, *in.ParentID, userID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to check parent folder: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: parent folder", ErrFolderNotFound)
		}
	}

	row := pool.QueryRow(ctx, `
		INSERT INTO folders (user_id, name, type, parent_id, color, icon, sort_order, sync_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING folder_id, user_id, name, type, parent_id, color, icon, sort_order, sync_enabled, created_at
	`, userID, in.Name, in.Type, in.ParentID, in.Color, in.Icon, in.SortOrder, in.SyncEnabled)

	folder, err := scanFolder(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrFolderNameTaken
		}
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}

	return folder, nil
}

// RenameFolder renames a custom folder. System folders cannot be renamed.
func RenameFolder(ctx context.Context, pool *pgxpool.Pool, userID string, folderID int64, name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidFolderInput)
	}

	folder, err := ResolveFolder(ctx, pool, userID, FolderByID(folderID))
	if err != nil {
		return err
	}
	if folder.Type != models.FolderCustom {
		return ErrFolderNotCustom
	}

	_, err = pool.Exec(ctx, `
		UPDATE folders
		SET name = $1, updated_at = now()
		WHERE folder_id = $2 AND user_id = $3
	`, name, folderID, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrFolderNameTaken
		}
		return fmt.Errorf("failed to rename folder: %w", err)
	}

	return nil
}

// DeleteFolder permanently deletes a custom folder. Messages in the folder
// are moved back to the inbox so they are not orphaned. System folders cannot
// be deleted.
func DeleteFolder(ctx context.Context, pool *pgxpool.Pool, userID string, folderID int64) error {
	folder, err := ResolveFolder(ctx, pool, userID, FolderByID(folderID))
	if err != nil {
		return err
	}
	if folder.Type != models.FolderCustom {
		return ErrFolderNotCustom
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inbox, err := ResolveFolder(ctx, tx, userID, FolderBySystemType(models.FolderInbox))
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE mailboxes SET folder_id = $1
		WHERE folder_id = $2 AND user_id = $3
	`, inbox.ID, folderID, userID); err != nil {
		return fmt.Errorf("failed to move folder contents: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM folders WHERE folder_id = $1 AND user_id = $2
	`, folderID, userID); err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// SuggestFolders returns up to 10 folders whose name matches the query,
// system folders first.
func SuggestFolders(ctx context.Context, pool *pgxpool.Pool, userID, query string) ([]*models.Folder, error) {
	rows, err := pool.Query(ctx, `
		SELECT folder_id, user_id, name, type, parent_id, color, icon, sort_order, sync_enabled, created_at
		FROM folders
		WHERE user_id = $1 AND name ILIKE '%' || $2 || '%'
		ORDER BY
			CASE type
				WHEN 'inbox' THEN 1
				WHEN 'sent' THEN 2
				WHEN 'drafts' THEN 3
				ELSE 4
			END,
			name
		LIMIT 10
	`, userID, query)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest folders: %w", err)
	}
	defer rows.Close()

	var folders []*models.Folder
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, folder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating folders: %w", err)
	}

	return folders, nil
}

func scanFolder(row pgx.Row) (*models.Folder, error) {
	var folder models.Folder
	err := row.Scan(
		&folder.ID,
		&folder.UserID,
		&folder.Name,
		&folder.Type,
		&folder.ParentID,
		&folder.Color,
		&folder.Icon,
		&folder.SortOrder,
		&folder.SyncEnabled,
		&folder.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
