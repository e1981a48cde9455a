package api

import (
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abysfin/webmail/backend/internal/db"
	"github.com/abysfin/webmail/backend/internal/models"
)

// FoldersHandler serves the folder directory endpoints.
type FoldersHandler struct {
	pool        *pgxpool.Pool
	development bool
}

// NewFoldersHandler creates a new FoldersHandler instance.
func NewFoldersHandler(pool *pgxpool.Pool, development bool) *FoldersHandler {
	return &FoldersHandler{pool: pool, development: development}
}

// ListFolders returns the user's folders, optionally filtered by type.
func (h *FoldersHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	folders, err := db.ListFolders(ctx, h.pool, userID, models.FolderType(r.URL.Query().Get("type")))
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Folders fetched successfully", folders)
}

// CreateFolder creates a folder, custom by default.
func (h *FoldersHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	var req struct {
		Name        string  `json:"name"`
		Type        string  `json:"type"`
		ParentID    *int64  `json:"parent_id"`
		Color       *string `json:"color"`
		Icon        *string `json:"icon"`
		SortOrder   int     `json:"sort_order"`
		SyncEnabled bool    `json:"sync_enabled"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}

	folder, err := db.CreateFolder(ctx, h.pool, userID, db.CreateFolderInput{
		Name:        req.Name,
		Type:        models.FolderType(req.Type),
		ParentID:    req.ParentID,
		Color:       req.Color,
		Icon:        req.Icon,
		SortOrder:   req.SortOrder,
		SyncEnabled: req.SyncEnabled,
	})
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "Folder created successfully", folder)
}

// RenameFolder renames a custom folder.
func (h *FoldersHandler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	folderID, ok := parseFolderID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := db.RenameFolder(ctx, h.pool, userID, folderID, req.Name); err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Folder renamed successfully", nil)
}

// DeleteFolder deletes a custom folder, moving its contents to the inbox.
func (h *FoldersHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	folderID, ok := parseFolderID(w, r)
	if !ok {
		return
	}

	if err := db.DeleteFolder(ctx, h.pool, userID, folderID); err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Folder deleted successfully", nil)
}

// SuggestFolders returns up to 10 folders matching the query, system folders
// first.
func (h *FoldersHandler) SuggestFolders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	folders, err := db.SuggestFolders(ctx, h.pool, userID, r.URL.Query().Get("q"))
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Folder suggestions fetched successfully", folders)
}

func parseFolderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	folderID, err := strconv.ParseInt(r.PathValue("folderID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid folder id", nil)
		return 0, false
	}
	return folderID, true
}
