package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abysfin/webmail/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDraftNotFound is returned when a draft id does not resolve to a draft
// row under the caller's ownership.
var ErrDraftNotFound = errors.New("draft not found")

const messageColumns = `
	m.id, m.user_id, m.thread_id, m.message_id, m.in_reply_to,
	m.subject, m.body, m.plain_text,
	m.from_email, m.to_email, m.cc, m.bcc, m.message_type,
	m.is_read, m.is_starred, m.is_draft, m.has_attachments, m.created_at,
	f.folder_id, f.name, f.type, f.color, f.icon`

// IncomingMessage carries the fields the watcher extracts from a fetched
// message.
type IncomingMessage struct {
	MessageID      string
	InReplyTo      *string
	Subject        string
	Body           string
	PlainText      string
	FromEmail      string
	ToEmail        string
	CC             *string
	HasAttachments bool
}

// InsertIncoming stores a newly received message in the recipient's inbox.
// Threading is by the In-Reply-To protocol id when it matches an existing
// message, otherwise a new thread is started. Redelivery of an already stored
// message id is a silent no-op returning the existing row.
func InsertIncoming(ctx context.Context, pool *pgxpool.Pool, userID string, in IncomingMessage) (*models.Message, error) {
	inbox, err := ResolveFolder(ctx, pool, userID, FolderBySystemType(models.FolderInbox))
	if err != nil {
		return nil, err
	}

	threadID, err := resolveThreadID(ctx, pool, userID, in.InReplyTo)
	if err != nil {
		return nil, err
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO mailboxes
			(user_id, folder_id, thread_id, message_id, in_reply_to,
			 subject, body, plain_text, from_email, to_email, cc, has_attachments)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id, message_id) DO NOTHING
	`, userID, inbox.ID, threadID, in.MessageID, in.InReplyTo,
		in.Subject, in.Body, in.PlainText, in.FromEmail, in.ToEmail, in.CC, in.HasAttachments)
	if err != nil {
		return nil, fmt.Errorf("failed to insert incoming message: %w", err)
	}

	return GetMessageByID(ctx, pool, userID, in.MessageID)
}

// DraftInput carries a draft's caller-editable fields.
type DraftInput struct {
	MessageID string
	InReplyTo *string
	Subject   string
	Body      string
	PlainText string
	FromEmail string
	ToEmail   *string
	CC        *string
	BCC       *string
}

// SaveDraft creates or updates a draft keyed by its protocol message id. The
// drafts folder is created on demand when absent, the one place a missing
// system folder is auto-healed.
func SaveDraft(ctx context.Context, pool *pgxpool.Pool, userID string, in DraftInput) (*models.Message, error) {
	if in.MessageID == "" {
		return nil, fmt.Errorf("draft message id is required")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	drafts, err := ResolveFolder(ctx, tx, userID, FolderBySystemType(models.FolderDrafts))
	if errors.Is(err, ErrFolderNotConfigured) {
		drafts, err = createDraftsFolder(ctx, tx, userID)
	}
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE mailboxes
		SET subject = $1, body = $2, plain_text = $3,
		    to_email = $4, cc = $5, bcc = $6, in_reply_to = $7
		WHERE user_id = $8 AND message_id = $9 AND is_draft = TRUE
	`, in.Subject, in.Body, in.PlainText, in.ToEmail, in.CC, in.BCC, in.InReplyTo,
		userID, in.MessageID)
	if err != nil {
		return nil, fmt.Errorf("failed to update draft: %w", err)
	}

	if tag.RowsAffected() == 0 {
		threadID, err := resolveThreadID(ctx, tx, userID, in.InReplyTo)
		if err != nil {
			return nil, err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO mailboxes
				(user_id, folder_id, thread_id, message_id, in_reply_to,
				 subject, body, plain_text, from_email, to_email, cc, bcc,
				 message_type, is_read, is_draft)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'draft', TRUE, TRUE)
		`, userID, drafts.ID, threadID, in.MessageID, in.InReplyTo,
			in.Subject, in.Body, in.PlainText, in.FromEmail, in.ToEmail, in.CC, in.BCC)
		if err != nil {
			return nil, fmt.Errorf("failed to insert draft: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return GetMessageByID(ctx, pool, userID, in.MessageID)
}

// StoreSent stores the sent copy of an outbound message. When the message id
// matches an existing draft the draft converts to sent in place (same row,
// flag and folder flipped together); otherwise a fresh row is inserted.
func StoreSent(ctx context.Context, pool *pgxpool.Pool, userID string, in DraftInput) (*models.Message, error) {
	if in.MessageID == "" {
		return nil, fmt.Errorf("message id is required")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sent, err := ResolveFolder(ctx, tx, userID, FolderBySystemType(models.FolderSent))
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE mailboxes
		SET subject = $1, body = $2, plain_text = $3,
		    to_email = $4, cc = $5, bcc = $6, in_reply_to = $7,
		    folder_id = $8, message_type = 'sent', is_draft = FALSE, is_read = TRUE
		WHERE user_id = $9 AND message_id = $10 AND is_draft = TRUE
	`, in.Subject, in.Body, in.PlainText, in.ToEmail, in.CC, in.BCC, in.InReplyTo,
		sent.ID, userID, in.MessageID)
	if err != nil {
		return nil, fmt.Errorf("failed to convert draft to sent: %w", err)
	}

	if tag.RowsAffected() == 0 {
		threadID, err := resolveThreadID(ctx, tx, userID, in.InReplyTo)
		if err != nil {
			return nil, err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO mailboxes
				(user_id, folder_id, thread_id, message_id, in_reply_to,
				 subject, body, plain_text, from_email, to_email, cc, bcc,
				 message_type, is_read)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'sent', TRUE)
		`, userID, sent.ID, threadID, in.MessageID, in.InReplyTo,
			in.Subject, in.Body, in.PlainText, in.FromEmail, in.ToEmail, in.CC, in.BCC)
		if err != nil {
			return nil, fmt.Errorf("failed to insert sent message: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return GetMessageByID(ctx, pool, userID, in.MessageID)
}

// DeleteDraft permanently removes one draft by protocol message id.
func DeleteDraft(ctx context.Context, pool *pgxpool.Pool, userID, messageID string) error {
	tag, err := pool.Exec(ctx, `
		DELETE FROM mailboxes
		WHERE user_id = $1 AND message_id = $2 AND is_draft = TRUE
	`, userID, messageID)
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDraftNotFound
	}

	return nil
}

// DeleteDrafts permanently removes the listed drafts, all-or-nothing.
func DeleteDrafts(ctx context.Context, pool *pgxpool.Pool, userID string, messageIDs []string) (int64, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		DELETE FROM mailboxes
		WHERE user_id = $1 AND message_id = ANY($2) AND is_draft = TRUE
		RETURNING message_id
	`, userID, messageIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to delete drafts: %w", err)
	}

	seen := make(map[string]bool, len(messageIDs))
	var deleted int64
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan deleted draft: %w", err)
		}
		seen[id] = true
		deleted++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating deleted drafts: %w", err)
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

// GetMessageByID returns one message by protocol message id or row id, with
// its folder joined in.
func GetMessageByID(ctx context.Context, pool *pgxpool.Pool, userID, messageID string) (*models.Message, error) {
	row := pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM mailboxes m
		JOIN folders f ON f.folder_id = m.folder_id
		WHERE m.user_id = $1 AND (m.message_id = $2 OR m.id::text = $2)
	`, userID, messageID)

	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return msg, nil
}

// ListOptions narrows and pages a mailbox listing. Folders are display names
// or type tags; an empty slice lists the inbox.
type ListOptions struct {
	Folders []string
	Starred bool
	Search  string
	Page    int
	PerPage int
}

// ListEmails returns one page of the user's threads, collapsed to the newest
// message per thread, newest thread first.
func ListEmails(ctx context.Context, pool *pgxpool.Pool, userID string, opts ListOptions) ([]*models.Message, *models.Pagination, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PerPage < 1 || opts.PerPage > 100 {
		opts.PerPage = 20
	}
	if len(opts.Folders) == 0 {
		// Trash, spam and drafts never leak into the default view.
		opts.Folders = []string{"inbox"}
	}

	where := []string{"m.user_id = $1"}
	args := []any{userID}

	args = append(args, opts.Folders)
	where = append(where, fmt.Sprintf(
		"(f.name = ANY($%d) OR f.type = ANY($%d))", len(args), len(args)))
	if opts.Starred {
		where = append(where, "m.is_starred = TRUE")
	}
	if opts.Search != "" {
		args = append(args, "%"+opts.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(m.subject ILIKE $%d OR m.from_email ILIKE $%d OR m.to_email ILIKE $%d OR m.body ILIKE $%d OR m.plain_text ILIKE $%d)",
			n, n, n, n, n))
	}
	predicate := strings.Join(where, " AND ")

	var totalCount int
	err := pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT m.thread_id)
		FROM mailboxes m
		JOIN folders f ON f.folder_id = m.folder_id
		WHERE `+predicate, args...).Scan(&totalCount)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count emails: %w", err)
	}

	offset := (opts.Page - 1) * opts.PerPage
	args = append(args, opts.PerPage, offset)
	query := fmt.Sprintf(`
		SELECT * FROM (
			SELECT DISTINCT ON (m.thread_id) `+messageColumns+`
			FROM mailboxes m
			JOIN folders f ON f.folder_id = m.folder_id
			WHERE %s
			ORDER BY m.thread_id, m.created_at DESC
		) latest
		ORDER BY latest.created_at DESC
		LIMIT $%d OFFSET $%d`, predicate, len(args)-1, len(args))

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list emails: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, nil, err
	}

	return messages, newPagination(opts.Page, opts.PerPage, totalCount), nil
}

// GetThreadMessages returns every message of a thread visible in the given
// folders, oldest first. With no folder filter the view defaults to
// inbox+sent, the conversation as the user saw it.
func GetThreadMessages(ctx context.Context, pool *pgxpool.Pool, userID, threadID string, folders []string) ([]*models.Message, error) {
	if len(folders) == 0 {
		folders = []string{string(models.FolderInbox), string(models.FolderSent)}
	}

	rows, err := pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM mailboxes m
		JOIN folders f ON f.folder_id = m.folder_id
		WHERE m.user_id = $1 AND m.thread_id = $2
		  AND (f.name = ANY($3) OR f.type = ANY($3))
		ORDER BY m.created_at
	`, userID, threadID, folders)
	if err != nil {
		return nil, fmt.Errorf("failed to get thread messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, ErrThreadNotFound
	}

	return messages, nil
}

// ListStarred returns one page of starred threads across inbox and sent.
func ListStarred(ctx context.Context, pool *pgxpool.Pool, userID string, page, perPage int) ([]*models.Message, *models.Pagination, error) {
	return ListEmails(ctx, pool, userID, ListOptions{
		Folders: []string{string(models.FolderInbox), string(models.FolderSent)},
		Starred: true,
		Page:    page,
		PerPage: perPage,
	})
}

func resolveThreadID(ctx context.Context, q Querier, userID string, inReplyTo *string) (string, error) {
	if inReplyTo == nil || *inReplyTo == "" {
		return uuid.NewString(), nil
	}

	var threadID string
	err := q.QueryRow(ctx, `
		SELECT thread_id FROM mailboxes
		WHERE user_id = $1 AND message_id = $2
	`, userID, *inReplyTo).Scan(&threadID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.NewString(), nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve thread: %w", err)
	}

	return threadID, nil
}

func createDraftsFolder(ctx context.Context, q Querier, userID string) (*models.Folder, error) {
	row := q.QueryRow(ctx, `
		INSERT INTO folders (user_id, name, type)
		VALUES ($1, $2, 'drafts')
		ON CONFLICT (user_id, type) WHERE type <> 'custom'
		DO UPDATE SET name = EXCLUDED.name
		RETURNING folder_id, user_id, name, type, parent_id, color, icon, sort_order, sync_enabled, created_at
	`, userID, models.FolderDrafts.DisplayName())

	folder, err := scanFolder(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create drafts folder: %w", err)
	}

	return folder, nil
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	err := row.Scan(
		&m.ID, &m.UserID, &m.ThreadID, &m.MessageID, &m.InReplyTo,
		&m.Subject, &m.Body, &m.PlainText,
		&m.FromEmail, &m.ToEmail, &m.CC, &m.BCC, &m.MessageType,
		&m.IsRead, &m.IsStarred, &m.IsDraft, &m.HasAttachments, &m.CreatedAt,
		&m.Folder.ID, &m.Folder.Name, &m.Folder.Type, &m.Folder.Color, &m.Folder.Icon,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMessages(rows pgx.Rows) ([]*models.Message, error) {
	var messages []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

func newPagination(page, perPage, totalCount int) *models.Pagination {
	totalPages := (totalCount + perPage - 1) / perPage
	return &models.Pagination{
		CurrentPage: page,
		PerPage:     perPage,
		TotalCount:  totalCount,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}
