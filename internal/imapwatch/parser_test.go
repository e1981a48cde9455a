package imapwatch

import (
	"bytes"
	"strings"
	"testing"

	"github.com/emersion/go-imap"
)

const rawTestBody = "Subject: lunch?\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Noon works.\r\nSee you there.\r\n"

func testEnvelope() *imap.Envelope {
	return &imap.Envelope{
		MessageId: "<abc123@remote.example>",
		Subject:   "lunch?",
		From: []*imap.Address{
			{PersonalName: "Pat Sender", MailboxName: "pat", HostName: "remote.example"},
		},
		To: []*imap.Address{
			{MailboxName: "alice", HostName: "test.example"},
		},
		Cc: []*imap.Address{
			{PersonalName: "Bob", MailboxName: "bob", HostName: "test.example"},
		},
	}
}

func TestParseMessage(t *testing.T) {
	section := &imap.BodySectionName{}
	msg := &imap.Message{
		Envelope: testEnvelope(),
		Body: map[*imap.BodySectionName]imap.Literal{
			section: bytes.NewBufferString(rawTestBody),
		},
	}

	parsed, err := ParseMessage(msg)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	if parsed.MessageID != "<abc123@remote.example>" {
		t.Errorf("Expected message id to survive, got %s", parsed.MessageID)
	}
	if parsed.Subject != "lunch?" {
		t.Errorf("Expected subject lunch?, got %q", parsed.Subject)
	}
	if parsed.FromEmail != "pat@remote.example" {
		t.Errorf("Expected bare sender address, got %s", parsed.FromEmail)
	}
	if parsed.ToEmail != "alice@test.example" {
		t.Errorf("Unexpected To header: %q", parsed.ToEmail)
	}
	if parsed.CC != "Bob <bob@test.example>" {
		t.Errorf("Expected display name in Cc, got %q", parsed.CC)
	}
	if len(parsed.Recipients) != 2 || parsed.Recipients[0] != "alice@test.example" || parsed.Recipients[1] != "bob@test.example" {
		t.Errorf("Expected bare To and Cc recipients, got %v", parsed.Recipients)
	}
	if parsed.InReplyTo != nil {
		t.Errorf("Expected no In-Reply-To, got %v", *parsed.InReplyTo)
	}

	// Text-only messages get a line-broken HTML fallback.
	if !strings.Contains(parsed.PlainText, "Noon works.") || !strings.Contains(parsed.PlainText, "See you there.") {
		t.Errorf("Unexpected plain text: %q", parsed.PlainText)
	}
	if !strings.Contains(parsed.Body, "<br>") || !strings.Contains(parsed.Body, "See you there.") {
		t.Errorf("Expected HTML fallback with line breaks, got %q", parsed.Body)
	}
	if parsed.HasAttachments {
		t.Error("Expected no attachments")
	}
}

func TestParseMessageReply(t *testing.T) {
	env := testEnvelope()
	env.InReplyTo = "<parent@remote.example>"

	parsed, err := ParseMessage(&imap.Message{Envelope: env})
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if parsed.InReplyTo == nil || *parsed.InReplyTo != "<parent@remote.example>" {
		t.Errorf("Expected In-Reply-To to survive, got %v", parsed.InReplyTo)
	}
	if parsed.Body != "" {
		t.Errorf("Expected empty body without a body section, got %q", parsed.Body)
	}
}

func TestParseMessageRejectsIncomplete(t *testing.T) {
	if _, err := ParseMessage(nil); err == nil {
		t.Error("Expected an error for a nil message")
	}
	if _, err := ParseMessage(&imap.Message{}); err == nil {
		t.Error("Expected an error for a message without an envelope")
	}

	env := testEnvelope()
	env.MessageId = ""
	if _, err := ParseMessage(&imap.Message{Envelope: env}); err == nil {
		t.Error("Expected an error for a message without a message id")
	}
}
