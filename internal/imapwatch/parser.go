package imapwatch

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"
)

// ParsedMessage is the extract of one fetched message: the fields the store
// needs plus the bare recipient addresses used to route it to local users.
type ParsedMessage struct {
	MessageID      string
	InReplyTo      *string
	Subject        string
	Body           string
	PlainText      string
	FromEmail      string
	ToEmail        string
	CC             string
	HasAttachments bool
	Recipients     []string // bare addresses, To + Cc
}

// ParseMessage extracts the stored fields from a fetched IMAP message.
// Body parse failures are tolerated; the envelope headers are enough to
// store the message.
func ParseMessage(imapMsg *imap.Message) (*ParsedMessage, error) {
	if imapMsg == nil || imapMsg.Envelope == nil {
		return nil, fmt.Errorf("imap message has no envelope")
	}

	env := imapMsg.Envelope
	if env.MessageId == "" {
		return nil, fmt.Errorf("imap message has no message id")
	}

	parsed := &ParsedMessage{
		MessageID: env.MessageId,
		Subject:   env.Subject,
		ToEmail:   strings.Join(formatAddressList(env.To), ", "),
		CC:        strings.Join(formatAddressList(env.Cc), ", "),
	}
	if len(env.From) > 0 {
		parsed.FromEmail = bareAddress(env.From[0])
	}
	if len(env.InReplyTo) > 0 {
		inReplyTo := env.InReplyTo
		parsed.InReplyTo = &inReplyTo
	}

	for _, addr := range append(append([]*imap.Address{}, env.To...), env.Cc...) {
		if bare := bareAddress(addr); bare != "" {
			parsed.Recipients = append(parsed.Recipients, bare)
		}
	}

	if bodyReader := imapMsg.GetBody(&imap.BodySectionName{}); bodyReader != nil {
		if err := parseBody(bodyReader, parsed); err != nil {
			// Headers alone are enough to store the message.
			parsed.Body = ""
		}
	}

	return parsed, nil
}

// parseBody fills in the HTML and plain bodies using enmime.
func parseBody(bodyReader io.Reader, parsed *ParsedMessage) error {
	envelope, err := enmime.ReadEnvelope(bodyReader)
	if err != nil {
		return fmt.Errorf("failed to parse message body: %w", err)
	}

	htmlBody := envelope.HTML
	if htmlBody == "" {
		htmlBody = strings.ReplaceAll(envelope.Text, "\n", "<br>")
	}
	parsed.Body = htmlBody
	parsed.PlainText = envelope.Text
	parsed.HasAttachments = len(envelope.Attachments) > 0

	return nil
}

// bareAddress returns mailbox@host with no display name.
func bareAddress(address *imap.Address) string {
	if address == nil || address.MailboxName == "" || address.HostName == "" {
		return ""
	}
	return fmt.Sprintf("%s@%s", address.MailboxName, address.HostName)
}

// formatAddress renders an address with its display name when present.
func formatAddress(address *imap.Address) string {
	bare := bareAddress(address)
	if bare == "" {
		return ""
	}
	if address.PersonalName != "" {
		return fmt.Sprintf("%s <%s>", address.PersonalName, bare)
	}
	return bare
}

func formatAddressList(addresses []*imap.Address) []string {
	result := make([]string, 0, len(addresses))
	for _, address := range addresses {
		if formatted := formatAddress(address); formatted != "" {
			result = append(result, formatted)
		}
	}
	return result
}
