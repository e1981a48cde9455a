package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abysfin/webmail/backend/internal/db"
	"github.com/abysfin/webmail/backend/internal/models"
)

// MailHandler serves the mailbox read and transition endpoints.
type MailHandler struct {
	pool        *pgxpool.Pool
	development bool
}

// NewMailHandler creates a new MailHandler instance.
func NewMailHandler(pool *pgxpool.Pool, development bool) *MailHandler {
	return &MailHandler{pool: pool, development: development}
}

// ListEmails returns one page of threads, filtered by folder, starred flag
// and search query.
func (h *MailHandler) ListEmails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	page, limit := ParsePaginationParams(r, 20)
	opts := db.ListOptions{
		Folders: splitParam(r.URL.Query().Get("folder")),
		Starred: r.URL.Query().Get("starred") == "true",
		Search:  r.URL.Query().Get("search"),
		Page:    page,
		PerPage: limit,
	}

	messages, pagination, err := db.ListEmails(ctx, h.pool, userID, opts)
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Emails fetched successfully", map[string]any{
		"emails":     messages,
		"pagination": pagination,
	})
}

// GetCounts returns the derived per-folder and per-thread totals.
func (h *MailHandler) GetCounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	counts, err := db.GetMailboxCounts(ctx, h.pool, userID)
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Counts fetched successfully", counts)
}

// ListStarred returns one page of starred threads across inbox and sent.
func (h *MailHandler) ListStarred(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	page, limit := ParsePaginationParams(r, 20)
	messages, pagination, err := db.ListStarred(ctx, h.pool, userID, page, limit)
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Starred emails fetched successfully", map[string]any{
		"emails":     messages,
		"pagination": pagination,
	})
}

// GetThread returns the messages of one thread, oldest first. The folder
// query parameter narrows the view; the default is inbox and sent.
func (h *MailHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	threadID := r.PathValue("threadID")
	messages, err := db.GetThreadMessages(ctx, h.pool, userID, threadID, splitParam(r.URL.Query().Get("folder")))
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Thread fetched successfully", map[string]any{
		"thread_id": threadID,
		"messages":  messages,
	})
}

// GetMessage returns one message by protocol message id or row id.
func (h *MailHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	message, err := db.GetMessageByID(ctx, h.pool, userID, r.PathValue("messageID"))
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Message fetched successfully", message)
}

// MoveMessageTo returns a handler moving one message into the given system
// folder. Used for the trash/spam/archive routes.
func (h *MailHandler) MoveMessageTo(target models.FolderType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, _, ok := GetUserFromContext(ctx, w, h.pool)
		if !ok {
			return
		}

		folder, err := db.MoveMessage(ctx, h.pool, userID, r.PathValue("messageID"), db.FolderBySystemType(target))
		if err != nil {
			respondDBError(w, h.development, err)
			return
		}

		writeSuccess(w, http.StatusOK, fmt.Sprintf("Message moved to %s", folder.Name), map[string]any{
			"folder": folder.Name,
		})
	}
}

// MoveThreadTo returns a handler moving a whole thread into the given system
// folder.
func (h *MailHandler) MoveThreadTo(target models.FolderType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, _, ok := GetUserFromContext(ctx, w, h.pool)
		if !ok {
			return
		}

		affected, err := db.MoveThread(ctx, h.pool, userID, r.PathValue("threadID"), db.FolderBySystemType(target))
		if err != nil {
			respondDBError(w, h.development, err)
			return
		}

		writeSuccess(w, http.StatusOK, fmt.Sprintf("Thread moved to %s", target.DisplayName()), map[string]any{
			"movedCount": affected,
		})
	}
}

// batchIDsRequest carries either thread ids or message ids, never both.
type batchIDsRequest struct {
	ThreadIDs  []string `json:"threadIds"`
	MessageIDs []string `json:"messageIds"`
}

func (req *batchIDsRequest) validate(w http.ResponseWriter) bool {
	if len(req.ThreadIDs) > 0 && len(req.MessageIDs) > 0 {
		writeError(w, http.StatusBadRequest, "Provide either threadIds or messageIds, not both", nil)
		return false
	}
	if len(req.ThreadIDs) == 0 && len(req.MessageIDs) == 0 {
		writeError(w, http.StatusBadRequest, "threadIds or messageIds is required and must not be empty", nil)
		return false
	}
	return validThreadIDs(w, req.ThreadIDs)
}

// validThreadIDs rejects syntactically invalid thread ids before they reach
// the uuid column encoder.
func validThreadIDs(w http.ResponseWriter, ids []string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			writeError(w, http.StatusBadRequest, "threadIds must be valid UUIDs", nil)
			return false
		}
	}
	return true
}

// MoveBatch moves the listed threads or messages into the folder named by
// the toFolder query parameter, all-or-nothing.
func (h *MailHandler) MoveBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	toFolder := r.URL.Query().Get("toFolder")
	if toFolder == "" {
		writeError(w, http.StatusBadRequest, "toFolder query parameter is required", nil)
		return
	}

	var req batchIDsRequest
	if !decodeJSONBody(w, r, &req) || !req.validate(w) {
		return
	}

	var result *db.BatchMoveResult
	var err error
	if len(req.ThreadIDs) > 0 {
		result, err = db.MoveThreads(ctx, h.pool, userID, req.ThreadIDs, db.FolderByName(toFolder))
	} else {
		result, err = db.MoveMessages(ctx, h.pool, userID, req.MessageIDs, db.FolderByName(toFolder))
	}
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, fmt.Sprintf("Moved %d messages to %s", result.Moved, toFolder), result)
}

// RestoreMessage restores one message out of the source folder (restoreFrom
// query parameter, default archive) to its inferred origin.
func (h *MailHandler) RestoreMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, email, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	result, err := db.RestoreMessage(ctx, h.pool, userID, email, r.PathValue("messageID"), restoreSource(r))
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Message restored successfully", result)
}

// RestoreThread restores a whole thread out of the source folder to the
// per-message inferred origins.
func (h *MailHandler) RestoreThread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, email, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	result, err := db.RestoreThread(ctx, h.pool, userID, email, r.PathValue("threadID"), restoreSource(r))
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Thread restored successfully", result)
}

// RestoreBatch restores the listed threads or messages out of the source
// folder, all-or-nothing.
func (h *MailHandler) RestoreBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, email, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	var req batchIDsRequest
	if !decodeJSONBody(w, r, &req) || !req.validate(w) {
		return
	}

	source := restoreSource(r)
	var result *db.RestoreResult
	var err error
	if len(req.ThreadIDs) > 0 {
		result, err = db.RestoreThreads(ctx, h.pool, userID, email, req.ThreadIDs, source)
	} else {
		result, err = db.RestoreMessages(ctx, h.pool, userID, email, req.MessageIDs, source)
	}
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, fmt.Sprintf("Restored %d messages", result.Restored), result)
}

// SetThreadRead sets the read flag on one thread for the caller's copies.
func (h *MailHandler) SetThreadRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, email, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	var req struct {
		IsRead *bool `json:"is_read"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.IsRead == nil {
		writeError(w, http.StatusBadRequest, "is_read is required and must be a boolean", nil)
		return
	}

	result, err := db.SetThreadRead(ctx, h.pool, userID, email, r.PathValue("threadID"), *req.IsRead)
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Read status updated", result)
}

// SetThreadsRead sets the read flag on a batch of threads, all-or-nothing.
func (h *MailHandler) SetThreadsRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, email, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	var req struct {
		IsRead    *bool    `json:"is_read"`
		ThreadIDs []string `json:"threadIds"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.IsRead == nil {
		writeError(w, http.StatusBadRequest, "is_read is required and must be a boolean", nil)
		return
	}
	if len(req.ThreadIDs) == 0 {
		writeError(w, http.StatusBadRequest, "threadIds is required and must not be empty", nil)
		return
	}
	if !validThreadIDs(w, req.ThreadIDs) {
		return
	}

	result, err := db.SetThreadsRead(ctx, h.pool, userID, email, req.ThreadIDs, *req.IsRead)
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Read status updated", result)
}

// SetMessageStarred explicitly sets the starred flag on one message.
func (h *MailHandler) SetMessageStarred(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	var req struct {
		IsStarred *bool `json:"is_starred"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.IsStarred == nil {
		writeError(w, http.StatusBadRequest, "is_starred is required and must be a boolean", nil)
		return
	}

	result, err := db.SetMessageStarred(ctx, h.pool, userID, r.PathValue("messageID"), *req.IsStarred)
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Starred status updated", result)
}

// ToggleMessageStarred flips the starred flag on one message and reports the
// new value.
func (h *MailHandler) ToggleMessageStarred(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	starred, err := db.ToggleMessageStarred(ctx, h.pool, userID, r.PathValue("messageID"))
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Starred status toggled", map[string]any{
		"is_starred": starred,
	})
}

// DeleteThread permanently removes one thread.
func (h *MailHandler) DeleteThread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	deleted, err := db.DeleteThread(ctx, h.pool, userID, r.PathValue("threadID"))
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Thread deleted permanently", map[string]any{
		"deletedCount": deleted,
	})
}

// DeleteBatch permanently removes the listed threads or messages,
// all-or-nothing.
func (h *MailHandler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	var req batchIDsRequest
	if !decodeJSONBody(w, r, &req) || !req.validate(w) {
		return
	}

	if len(req.ThreadIDs) > 0 {
		counts, err := db.DeleteThreads(ctx, h.pool, userID, req.ThreadIDs)
		if err != nil {
			respondDBError(w, h.development, err)
			return
		}
		writeSuccess(w, http.StatusOK, "Threads deleted permanently", map[string]any{
			"deletedByThread": counts,
		})
		return
	}

	deleted, err := db.DeleteMessages(ctx, h.pool, userID, req.MessageIDs)
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Messages deleted permanently", map[string]any{
		"deletedCount": deleted,
	})
}

// restoreSource resolves the restoreFrom query parameter, defaulting to the
// archive folder. The lookup folds case so clients can send "trash" or
// "Trash".
func restoreSource(r *http.Request) db.FolderRef {
	if from := r.URL.Query().Get("restoreFrom"); from != "" {
		return db.FolderByNameFold(from)
	}
	return db.FolderBySystemType(models.FolderArchive)
}

// splitParam splits a comma-separated query parameter, dropping blanks.
func splitParam(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
