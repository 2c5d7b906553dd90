package email

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/supportdesk/triage/internal/config"
	"github.com/supportdesk/triage/internal/inbox"
	"github.com/supportdesk/triage/internal/source"
)

type Message struct {
	ID        string // Message-ID header value
	To        string
	From      string
	FromName  string
	Subject   string
	Body      string
	InReplyTo string
}

type Result struct {
	Success   bool
	MessageID string
	Error     error
}

type Sender interface {
	Send(ctx context.Context, msg Message) Result
	Name() string
}

func NewSender(cfg config.EmailConfig) (Sender, error) {
	switch cfg.Provider {
	case "", "smtp":
		return NewSMTPSender(cfg.SMTP, cfg.From), nil
	case "resend":
		return NewResendSender(cfg.APIKey), nil
	case "sendgrid":
		return NewSendGridSender(cfg.APIKey), nil
	}
	return nil, fmt.Errorf("unknown email provider: %s (smtp, resend or sendgrid)", cfg.Provider)
}

// NewReply addresses a reply to e's sender. An empty body sends the drafted
// response.
func NewReply(e *inbox.Email, body, from, fromName string) Message {
	if strings.TrimSpace(body) == "" {
		body = e.AIResponse
	}
	subject := e.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}
	return Message{
		ID:        NewMessageID(from),
		To:        e.Sender,
		From:      from,
		FromName:  fromName,
		Subject:   subject,
		Body:      body,
		InReplyTo: e.ExtractedInfo.Metadata.Extra[source.FieldMessageID],
	}
}

// NewMessageID returns a unique Message-ID in the sender's domain.
func NewMessageID(from string) string {
	domain := "localhost"
	if i := strings.LastIndex(from, "@"); i >= 0 && i < len(from)-1 {
		domain = from[i+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// ValidateEmail checks for injection characters and RFC 5322 compliance
func ValidateEmail(email string) error {
	if strings.ContainsAny(email, "\r\n,;") {
		return fmt.Errorf("email contains invalid characters")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	return nil
}

func validateMessage(msg Message) error {
	if err := ValidateEmail(msg.From); err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if err := ValidateEmail(msg.To); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	// Reject headers with CRLF to prevent injection
	if strings.ContainsAny(msg.Subject, "\r\n") {
		return fmt.Errorf("subject contains invalid characters")
	}
	if strings.ContainsAny(msg.FromName+msg.InReplyTo+msg.ID, "\r\n") {
		return fmt.Errorf("header contains invalid characters")
	}
	return nil
}

func fromHeader(msg Message) string {
	if msg.FromName == "" {
		return msg.From
	}
	return (&mail.Address{Name: msg.FromName, Address: msg.From}).String()
}
