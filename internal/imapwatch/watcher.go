package imapwatch

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/emersion/go-imap"
	idle "github.com/emersion/go-imap-idle"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abysfin/webmail/backend/internal/db"
	ws "github.com/abysfin/webmail/backend/internal/websocket"
)

// reconnectSleep is the backoff after a session error before reconnecting.
const reconnectSleep = 10 * time.Second

// Watcher keeps an IMAP IDLE session on the relay INBOX and delivers new
// messages into local mailboxes, notifying connected websocket clients.
type Watcher struct {
	pool     *pgxpool.Pool
	hub      *ws.Hub
	addr     string
	username string
	password string
}

// New creates a Watcher. addr is host:port of the IMAP server (TLS).
func New(pool *pgxpool.Pool, hub *ws.Hub, addr, username, password string) *Watcher {
	return &Watcher{
		pool:     pool,
		hub:      hub,
		addr:     addr,
		username: username,
		password: password,
	}
}

// Run blocks until the context is canceled, reconnecting with backoff after
// every session failure.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.runSession(ctx); err != nil {
			log.Printf("IMAP watcher: session ended: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectSleep):
		}
	}
}

// runSession dials, logs in, and alternates between IDLE and fetching. The
// fetch runs on the same connection, so IDLE is stopped around it and
// restarted after.
func (w *Watcher) runSession(ctx context.Context) error {
	c, err := imapclient.DialTLS(w.addr, nil)
	if err != nil {
		return err
	}
	defer c.Logout()

	if err := c.Login(w.username, w.password); err != nil {
		return err
	}
	if _, err := c.Select("INBOX", false); err != nil {
		return err
	}

	// Catch up on anything that arrived while we were away.
	if err := w.fetchUnseen(ctx, c); err != nil {
		return err
	}

	idleClient := idle.NewClient(c)
	updates := make(chan imapclient.Update, 10)
	c.Updates = updates

	for {
		stop := make(chan struct{})
		done := make(chan error, 1)
		go func() {
			done <- idleClient.IdleWithFallback(stop, 5*time.Second)
		}()

		pending, err := w.waitForUpdate(ctx, updates, stop, done)
		if err != nil {
			return err
		}
		if !pending {
			return nil // context canceled
		}

		if err := w.fetchUnseen(ctx, c); err != nil {
			return err
		}
	}
}

// waitForUpdate blocks until a relevant mailbox update arrives, then stops
// the IDLE goroutine and reports pending work. Returns pending=false on
// context cancellation.
func (w *Watcher) waitForUpdate(ctx context.Context, updates chan imapclient.Update, stop chan struct{}, done chan error) (bool, error) {
	for {
		select {
		case <-ctx.Done():
			close(stop)
			<-done
			return false, nil
		case err := <-done:
			if err != nil {
				return false, err
			}
			return false, errors.New("idle ended unexpectedly")
		case update := <-updates:
			mboxUpdate, ok := update.(*imapclient.MailboxUpdate)
			if !ok || mboxUpdate.Mailbox == nil {
				continue
			}
			if mboxUpdate.Mailbox.Name != "INBOX" || mboxUpdate.Mailbox.Messages == 0 {
				continue
			}
			close(stop)
			if err := <-done; err != nil {
				return false, err
			}
			return true, nil
		}
	}
}

// fetchUnseen fetches every unseen message, stores it for each local
// recipient, and marks it seen so it is not delivered twice.
func (w *Watcher) fetchUnseen(ctx context.Context, c *imapclient.Client) error {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return err
	}
	if len(uids) == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	fetchDone := make(chan error, 1)
	go func() {
		fetchDone <- c.UidFetch(seqset, items, messages)
	}()

	for imapMsg := range messages {
		w.deliver(ctx, imapMsg)
	}
	if err := <-fetchDone; err != nil {
		return err
	}

	// Mark delivered messages seen on the relay.
	flags := []any{imap.SeenFlag}
	if err := c.UidStore(seqset, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
		log.Printf("IMAP watcher: failed to mark messages seen: %v", err)
	}

	return nil
}

// deliver stores one fetched message for every local recipient and pushes a
// new_mail event to each. Unknown recipients are skipped; duplicate message
// ids are absorbed by the store.
func (w *Watcher) deliver(ctx context.Context, imapMsg *imap.Message) {
	parsed, err := ParseMessage(imapMsg)
	if err != nil {
		log.Printf("IMAP watcher: skipping unparseable message: %v", err)
		return
	}

	for _, recipient := range parsed.Recipients {
		userID, err := db.GetUserIDByEmail(ctx, w.pool, recipient)
		if errors.Is(err, db.ErrUserNotFound) {
			continue
		}
		if err != nil {
			log.Printf("IMAP watcher: failed to look up recipient %s: %v", recipient, err)
			continue
		}

		stored, err := db.InsertIncoming(ctx, w.pool, userID, db.IncomingMessage{
			MessageID:      parsed.MessageID,
			InReplyTo:      parsed.InReplyTo,
			Subject:        parsed.Subject,
			Body:           parsed.Body,
			PlainText:      parsed.PlainText,
			FromEmail:      parsed.FromEmail,
			ToEmail:        parsed.ToEmail,
			CC:             nullable(parsed.CC),
			HasAttachments: parsed.HasAttachments,
		})
		if err != nil {
			log.Printf("IMAP watcher: failed to store message %s for user %s: %v", parsed.MessageID, userID, err)
			continue
		}

		w.hub.NotifyNewMail(userID, stored)
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
