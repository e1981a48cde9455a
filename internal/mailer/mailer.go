package mailer

import (
	"bytes"
	"fmt"
	"net/mail"
	"strings"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/jhillyerd/enmime"
)

// Mailer submits outbound mail to the configured SMTP relay.
type Mailer struct {
	addr     string // host:port of the relay
	domain   string // sender domain, used for generated message ids
	username string
	password string
}

// New creates a Mailer for the given relay address and sender domain. An
// empty username disables SMTP authentication.
func New(addr, domain, username, password string) *Mailer {
	return &Mailer{addr: addr, domain: domain, username: username, password: password}
}

// Outbound is one message to submit. HTML and Text are alternative bodies;
// either may be empty. MessageID must be set (use NewMessageID).
type Outbound struct {
	From      string
	To        []string
	CC        []string
	BCC       []string
	Subject   string
	HTML      string
	Text      string
	MessageID string
	InReplyTo string
}

// NewMessageID generates a protocol message id under the sender domain.
func (m *Mailer) NewMessageID() string {
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), m.domain)
}

// Send builds the MIME message and submits it to the relay. BCC recipients
// go on the envelope only, never in the headers.
func (m *Mailer) Send(out Outbound) error {
	if out.From == "" {
		return fmt.Errorf("sender address is required")
	}
	if len(out.To) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	if out.MessageID == "" {
		return fmt.Errorf("message id is required")
	}

	builder := enmime.Builder().
		From("", out.From).
		ToAddrs(toAddresses(out.To)).
		Subject(out.Subject).
		Header("Message-Id", out.MessageID)

	if len(out.CC) > 0 {
		builder = builder.CCAddrs(toAddresses(out.CC))
	}
	if out.Text != "" {
		builder = builder.Text([]byte(out.Text))
	}
	if out.HTML != "" {
		builder = builder.HTML([]byte(out.HTML))
	}
	if out.InReplyTo != "" {
		builder = builder.
			Header("In-Reply-To", out.InReplyTo).
			Header("References", out.InReplyTo)
	}

	part, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	recipients := make([]string, 0, len(out.To)+len(out.CC)+len(out.BCC))
	recipients = append(recipients, out.To...)
	recipients = append(recipients, out.CC...)
	recipients = append(recipients, out.BCC...)

	var auth sasl.Client
	if m.username != "" {
		auth = sasl.NewPlainClient("", m.username, m.password)
	}

	if err := smtp.SendMail(m.addr, auth, out.From, recipients, &buf); err != nil {
		return fmt.Errorf("failed to send via %s: %w", m.addr, err)
	}

	return nil
}

// SplitAddressList splits a comma-separated address list, trimming blanks.
func SplitAddressList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func toAddresses(addrs []string) []mail.Address {
	out := make([]mail.Address, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, mail.Address{Address: a})
	}
	return out
}
