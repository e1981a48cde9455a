package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abysfin/webmail/backend/internal/auth"
	"github.com/abysfin/webmail/backend/internal/db"
	"github.com/abysfin/webmail/backend/internal/mailer"
	"github.com/abysfin/webmail/backend/internal/testutil"
)

// newTestMux builds the API routes against a containerized database, with
// test-mode tokens enabled ("email:user@example.com" resolves to that email).
func newTestMux(t *testing.T) (*http.ServeMux, *pgxpool.Pool) {
	t.Helper()
	t.Setenv("WEBMAIL_TEST_MODE", "true")

	pool := testutil.NewTestDB(t)

	smtpAddr, _ := testutil.NewTestSMTPServer(t)

	mailHandler := NewMailHandler(pool, true)
	composeHandler := NewComposeHandler(pool, mailer.New(smtpAddr, "test.example", "", ""), true)
	foldersHandler := NewFoldersHandler(pool, true)
	labelsHandler := NewLabelsHandler(pool, true)

	mux := http.NewServeMux()
	handle := func(pattern string, handler http.HandlerFunc) {
		mux.Handle(pattern, auth.RequireAuth(handler))
	}

	handle("GET /api/v1/mail", mailHandler.ListEmails)
	handle("GET /api/v1/mail/counts", mailHandler.GetCounts)
	handle("GET /api/v1/mail/starred", mailHandler.ListStarred)
	handle("GET /api/v1/mail/thread/{threadID}", mailHandler.GetThread)
	handle("GET /api/v1/mail/message/{messageID}", mailHandler.GetMessage)
	handle("POST /api/v1/mail/send", composeHandler.Send)
	handle("POST /api/v1/mail/store", composeHandler.Store)
	handle("POST /api/v1/mail/draft", composeHandler.SaveDraft)
	handle("DELETE /api/v1/mail/draft/{messageID}", composeHandler.DeleteDraft)
	handle("POST /api/v1/mail/draft/delete", composeHandler.DeleteDrafts)
	handle("PUT /api/v1/mail/message/{messageID}/trash", mailHandler.MoveMessageTo("trash"))
	handle("PUT /api/v1/mail/message/{messageID}/spam", mailHandler.MoveMessageTo("spam"))
	handle("PUT /api/v1/mail/message/{messageID}/archive", mailHandler.MoveMessageTo("archive"))
	handle("PUT /api/v1/mail/thread/{threadID}/trash", mailHandler.MoveThreadTo("trash"))
	handle("PUT /api/v1/mail/thread/{threadID}/spam", mailHandler.MoveThreadTo("spam"))
	handle("PUT /api/v1/mail/thread/{threadID}/archive", mailHandler.MoveThreadTo("archive"))
	handle("PUT /api/v1/mail/move", mailHandler.MoveBatch)
	handle("PUT /api/v1/mail/message/{messageID}/restore", mailHandler.RestoreMessage)
	handle("PUT /api/v1/mail/thread/{threadID}/restore", mailHandler.RestoreThread)
	handle("PUT /api/v1/mail/restore", mailHandler.RestoreBatch)
	handle("POST /api/v1/mail/thread/{threadID}/read", mailHandler.SetThreadRead)
	handle("POST /api/v1/mail/read", mailHandler.SetThreadsRead)
	handle("POST /api/v1/mail/message/{messageID}/starred", mailHandler.SetMessageStarred)
	handle("POST /api/v1/mail/message/{messageID}/starred/toggle", mailHandler.ToggleMessageStarred)
	handle("DELETE /api/v1/mail/thread/{threadID}", mailHandler.DeleteThread)
	handle("POST /api/v1/mail/delete", mailHandler.DeleteBatch)
	handle("GET /api/v1/folders", foldersHandler.ListFolders)
	handle("POST /api/v1/folders", foldersHandler.CreateFolder)
	handle("PUT /api/v1/folders/{folderID}", foldersHandler.RenameFolder)
	handle("DELETE /api/v1/folders/{folderID}", foldersHandler.DeleteFolder)
	handle("GET /api/v1/folders/suggest", foldersHandler.SuggestFolders)
	handle("GET /api/v1/labels", labelsHandler.ListLabels)
	handle("POST /api/v1/labels", labelsHandler.CreateLabel)
	handle("GET /api/v1/labels/{labelID}", labelsHandler.GetLabel)
	handle("PUT /api/v1/labels/{labelID}", labelsHandler.UpdateLabel)
	handle("DELETE /api/v1/labels/{labelID}", labelsHandler.DeleteLabel)

	return mux, pool
}

// doRequest performs a request against the mux with a test-mode token for the
// given email and an optional JSON body.
func doRequest(t *testing.T, mux *http.ServeMux, method, path, email string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer email:"+email)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

// decodeResponse unmarshals the recorded JSON body into a generic map.
func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return decoded
}

// seedThread provisions the user and inserts n messages into their inbox,
// returning the thread id and the protocol message ids.
func seedThread(t *testing.T, pool *pgxpool.Pool, email string, n int) (string, []string) {
	t.Helper()
	ctx := context.Background()

	userID, err := db.GetOrCreateUser(ctx, pool, email)
	if err != nil {
		t.Fatalf("Failed to provision user: %v", err)
	}

	threadID := uuid.NewString()
	messageIDs := make([]string, 0, n)
	for i := 0; i < n; i++ {
		messageID := "<" + uuid.NewString() + "@test.example>"
		msg, err := db.InsertIncoming(ctx, pool, userID, db.IncomingMessage{
			MessageID: messageID,
			Subject:   "seeded",
			FromEmail: "peer@test.example",
			ToEmail:   email,
		})
		if err != nil {
			t.Fatalf("Failed to seed message: %v", err)
		}
		messageIDs = append(messageIDs, messageID)

		// Collapse seeded messages into one thread.
		if _, err := pool.Exec(ctx, `UPDATE mailboxes SET thread_id = $1 WHERE id = $2`, threadID, msg.ID); err != nil {
			t.Fatalf("Failed to set thread id: %v", err)
		}
	}

	return threadID, messageIDs
}
