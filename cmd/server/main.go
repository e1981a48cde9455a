package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abysfin/webmail/backend/internal/api"
	"github.com/abysfin/webmail/backend/internal/auth"
	"github.com/abysfin/webmail/backend/internal/config"
	"github.com/abysfin/webmail/backend/internal/db"
	"github.com/abysfin/webmail/backend/internal/imapwatch"
	"github.com/abysfin/webmail/backend/internal/mailer"
	ws "github.com/abysfin/webmail/backend/internal/websocket"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewConnection(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.CloseConnection(pool)

	log.Printf("Successfully connected to database")

	wsHub := ws.NewHub(10)

	if cfg.IMAPWatch {
		watcher := imapwatch.New(pool, wsHub, cfg.IMAPAddr, cfg.IMAPUser, cfg.IMAPPass)
		go watcher.Run(ctx)
		log.Printf("IMAP watcher started for %s", cfg.IMAPAddr)
	}

	server := NewServer(cfg, pool, wsHub)

	address := ":" + cfg.Port
	log.Printf("Webmail backend server starting on %s (environment: %s)", address, cfg.Environment)

	if err := http.ListenAndServe(address, server); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

// NewServer creates the HTTP handler for the webmail API.
func NewServer(cfg *config.Config, dbPool *pgxpool.Pool, wsHub *ws.Hub) http.Handler {
	development := cfg.Environment != "production"

	mailHandler := api.NewMailHandler(dbPool, development)
	composeHandler := api.NewComposeHandler(dbPool, mailer.New(cfg.GetSMTPAddress(), cfg.MailDomain, cfg.SMTPUsername, cfg.SMTPPassword), development)
	foldersHandler := api.NewFoldersHandler(dbPool, development)
	labelsHandler := api.NewLabelsHandler(dbPool, development)
	wsHandler := api.NewWebSocketHandler(dbPool, wsHub)

	mux := http.NewServeMux()

	mux.HandleFunc("/", handleRoot)

	// Reads.
	handle(mux, "GET /api/v1/mail", mailHandler.ListEmails)
	handle(mux, "GET /api/v1/mail/counts", mailHandler.GetCounts)
	handle(mux, "GET /api/v1/mail/starred", mailHandler.ListStarred)
	handle(mux, "GET /api/v1/mail/thread/{threadID}", mailHandler.GetThread)
	handle(mux, "GET /api/v1/mail/message/{messageID}", mailHandler.GetMessage)

	// Compose and drafts.
	handle(mux, "POST /api/v1/mail/send", composeHandler.Send)
	handle(mux, "POST /api/v1/mail/store", composeHandler.Store)
	handle(mux, "POST /api/v1/mail/draft", composeHandler.SaveDraft)
	handle(mux, "DELETE /api/v1/mail/draft/{messageID}", composeHandler.DeleteDraft)
	handle(mux, "POST /api/v1/mail/draft/delete", composeHandler.DeleteDrafts)

	// Single and thread transitions.
	handle(mux, "PUT /api/v1/mail/message/{messageID}/trash", mailHandler.MoveMessageTo("trash"))
	handle(mux, "PUT /api/v1/mail/message/{messageID}/spam", mailHandler.MoveMessageTo("spam"))
	handle(mux, "PUT /api/v1/mail/message/{messageID}/archive", mailHandler.MoveMessageTo("archive"))
	handle(mux, "PUT /api/v1/mail/thread/{threadID}/trash", mailHandler.MoveThreadTo("trash"))
	handle(mux, "PUT /api/v1/mail/thread/{threadID}/spam", mailHandler.MoveThreadTo("spam"))
	handle(mux, "PUT /api/v1/mail/thread/{threadID}/archive", mailHandler.MoveThreadTo("archive"))

	// Batch moves and restores.
	handle(mux, "PUT /api/v1/mail/move", mailHandler.MoveBatch)
	handle(mux, "PUT /api/v1/mail/message/{messageID}/restore", mailHandler.RestoreMessage)
	handle(mux, "PUT /api/v1/mail/thread/{threadID}/restore", mailHandler.RestoreThread)
	handle(mux, "PUT /api/v1/mail/restore", mailHandler.RestoreBatch)

	// Flags.
	handle(mux, "POST /api/v1/mail/thread/{threadID}/read", mailHandler.SetThreadRead)
	handle(mux, "POST /api/v1/mail/read", mailHandler.SetThreadsRead)
	handle(mux, "POST /api/v1/mail/message/{messageID}/starred", mailHandler.SetMessageStarred)
	handle(mux, "POST /api/v1/mail/message/{messageID}/starred/toggle", mailHandler.ToggleMessageStarred)

	// Hard deletes.
	handle(mux, "DELETE /api/v1/mail/thread/{threadID}", mailHandler.DeleteThread)
	handle(mux, "POST /api/v1/mail/delete", mailHandler.DeleteBatch)

	// Folder directory.
	handle(mux, "GET /api/v1/folders", foldersHandler.ListFolders)
	handle(mux, "POST /api/v1/folders", foldersHandler.CreateFolder)
	handle(mux, "PUT /api/v1/folders/{folderID}", foldersHandler.RenameFolder)
	handle(mux, "DELETE /api/v1/folders/{folderID}", foldersHandler.DeleteFolder)
	handle(mux, "GET /api/v1/folders/suggest", foldersHandler.SuggestFolders)

	// Labels.
	handle(mux, "GET /api/v1/labels", labelsHandler.ListLabels)
	handle(mux, "POST /api/v1/labels", labelsHandler.CreateLabel)
	handle(mux, "GET /api/v1/labels/{labelID}", labelsHandler.GetLabel)
	handle(mux, "PUT /api/v1/labels/{labelID}", labelsHandler.UpdateLabel)
	handle(mux, "DELETE /api/v1/labels/{labelID}", labelsHandler.DeleteLabel)

	// The WebSocket handler does its own authentication via query parameter
	// (browsers can't set headers on WebSocket connections).
	mux.Handle("/api/v1/ws", http.HandlerFunc(wsHandler.Handle))

	return mux
}

func handle(mux *http.ServeMux, pattern string, handler http.HandlerFunc) {
	mux.Handle(pattern, auth.RequireAuth(handler))
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Webmail API is running")
}
