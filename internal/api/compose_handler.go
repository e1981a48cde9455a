package api

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abysfin/webmail/backend/internal/db"
	"github.com/abysfin/webmail/backend/internal/mailer"
)

// ComposeHandler serves the outbound-mail and draft endpoints.
type ComposeHandler struct {
	pool        *pgxpool.Pool
	mailer      *mailer.Mailer
	development bool
}

// NewComposeHandler creates a new ComposeHandler instance.
func NewComposeHandler(pool *pgxpool.Pool, m *mailer.Mailer, development bool) *ComposeHandler {
	return &ComposeHandler{pool: pool, mailer: m, development: development}
}

// composeRequest is the shared body for send, store and draft endpoints.
type composeRequest struct {
	To        string `json:"to"`
	CC        string `json:"cc"`
	BCC       string `json:"bcc"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	PlainText string `json:"plain_text"`
	MessageID string `json:"message_id"`
	InReplyTo string `json:"in_reply_to"`
}

func (req *composeRequest) draftInput(fromEmail string) db.DraftInput {
	return db.DraftInput{
		MessageID: req.MessageID,
		InReplyTo: optional(req.InReplyTo),
		Subject:   req.Subject,
		Body:      req.Body,
		PlainText: req.PlainText,
		FromEmail: fromEmail,
		ToEmail:   optional(req.To),
		CC:        optional(req.CC),
		BCC:       optional(req.BCC),
	}
}

// Send submits the message to the SMTP relay and stores the sent copy. A
// message id matching an existing draft converts that draft in place.
func (h *ComposeHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, email, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	var req composeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.To == "" {
		writeError(w, http.StatusBadRequest, "to is required", nil)
		return
	}
	if req.MessageID == "" {
		req.MessageID = h.mailer.NewMessageID()
	}

	err := h.mailer.Send(mailer.Outbound{
		From:      email,
		To:        mailer.SplitAddressList(req.To),
		CC:        mailer.SplitAddressList(req.CC),
		BCC:       mailer.SplitAddressList(req.BCC),
		Subject:   req.Subject,
		HTML:      req.Body,
		Text:      req.PlainText,
		MessageID: req.MessageID,
		InReplyTo: req.InReplyTo,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to send message", detailsFor(h.development, err))
		return
	}

	stored, err := db.StoreSent(ctx, h.pool, userID, req.draftInput(email))
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Message sent successfully", stored)
}

// Store stores a sent copy without submitting anything to the relay. Used
// when delivery happened out of band.
func (h *ComposeHandler) Store(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, email, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	var req composeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.MessageID == "" {
		req.MessageID = h.mailer.NewMessageID()
	}

	stored, err := db.StoreSent(ctx, h.pool, userID, req.draftInput(email))
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Message stored successfully", stored)
}

// SaveDraft creates or updates a draft keyed by its message id.
func (h *ComposeHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, email, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	var req composeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.MessageID == "" {
		req.MessageID = h.mailer.NewMessageID()
	}

	draft, err := db.SaveDraft(ctx, h.pool, userID, req.draftInput(email))
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Draft saved successfully", draft)
}

// DeleteDraft permanently removes one draft.
func (h *ComposeHandler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	if err := db.DeleteDraft(ctx, h.pool, userID, r.PathValue("messageID")); err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Draft deleted successfully", nil)
}

// DeleteDrafts permanently removes a batch of drafts, all-or-nothing.
func (h *ComposeHandler) DeleteDrafts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _, ok := GetUserFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	var req struct {
		MessageIDs []string `json:"messageIds"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if len(req.MessageIDs) == 0 {
		writeError(w, http.StatusBadRequest, "messageIds is required and must not be empty", nil)
		return
	}

	deleted, err := db.DeleteDrafts(ctx, h.pool, userID, req.MessageIDs)
	if err != nil {
		respondDBError(w, h.development, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Drafts deleted successfully", map[string]any{
		"deletedCount": deleted,
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func detailsFor(development bool, err error) any {
	if development {
		return err.Error()
	}
	return nil
}
