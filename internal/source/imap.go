package source

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/supportdesk/triage/internal/config"
	"github.com/supportdesk/triage/internal/logger"
)

// FieldMessageID carries the mailbox Message-ID for records read over IMAP.
const FieldMessageID = "message_id"

// IMAPSource reads recent messages from a mailbox folder.
type IMAPSource struct {
	config config.InboxConfig
	days   int
	log    logger.Logger
}

// NewIMAPSource creates a source over the messages received in the last days.
func NewIMAPSource(cfg config.InboxConfig, days int, log logger.Logger) *IMAPSource {
	if days <= 0 {
		days = 7
	}
	return &IMAPSource{config: cfg, days: days, log: logger.OrNop(log)}
}

func (s *IMAPSource) Name() string { return "imap:" + s.config.Folder }

// Records logs in, fetches the folder's messages since the cutoff and logs out.
func (s *IMAPSource) Records(ctx context.Context) ([]RawRecord, error) {
	addr := fmt.Sprintf("%s:%d", s.config.Server, s.config.Port)
	s.log.Info("connecting to IMAP server", logger.String("addr", addr))

	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to IMAP server: %w", ErrUnavailable, err)
	}
	defer c.Logout()

	if err := c.Login(s.config.Email, s.config.Password); err != nil {
		return nil, fmt.Errorf("%w: failed to login: %w", ErrUnavailable, err)
	}

	messages, err := s.fetch(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	records := make([]RawRecord, 0, len(messages))
	for _, m := range messages {
		records = append(records, m.record(len(records)+1))
	}
	return records, nil
}

func (s *IMAPSource) fetch(ctx context.Context, c *client.Client) ([]mailMessage, error) {
	mbox, err := c.Select(s.config.Folder, true)
	if err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", s.config.Folder, err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = time.Now().AddDate(0, 0, -s.days)
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search emails: %w", err)
	}
	s.log.Info("mailbox search complete",
		logger.String("folder", s.config.Folder),
		logger.Int("matches", len(uids)))
	if len(uids) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	ch := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, items, ch)
	}()

	var out []mailMessage
	for msg := range ch {
		if ctx.Err() != nil {
			continue
		}
		m, ok := readMessage(msg, section)
		if !ok {
			continue
		}
		out = append(out, m)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type mailMessage struct {
	MessageID string
	From      string
	Subject   string
	Date      time.Time
	Body      string
	HTMLBody  string
}

func readMessage(msg *imap.Message, section *imap.BodySectionName) (mailMessage, bool) {
	if msg == nil || msg.Envelope == nil {
		return mailMessage{}, false
	}
	m := mailMessage{
		MessageID: msg.Envelope.MessageId,
		Subject:   msg.Envelope.Subject,
		Date:      msg.Envelope.Date,
	}
	if len(msg.Envelope.From) > 0 {
		m.From = msg.Envelope.From[0].Address()
	}
	if r := msg.GetBody(section); r != nil {
		// A body that fails MIME parsing still yields its envelope.
		m.Body, m.HTMLBody, _ = parseMIME(r)
	}
	return m, true
}

// parseMIME returns the first text/plain and text/html inline parts.
func parseMIME(r io.Reader) (plain, html string, err error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", "", fmt.Errorf("failed to read message: %w", err)
	}
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return plain, html, err
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		body, _ := io.ReadAll(p.Body)
		switch {
		case strings.HasPrefix(ct, "text/plain") && plain == "":
			plain = string(body)
		case strings.HasPrefix(ct, "text/html") && html == "":
			html = string(body)
		}
	}
	return plain, html, nil
}

// htmlToText flattens an HTML body to whitespace-collapsed text.
func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, head").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func (m mailMessage) record(n int) RawRecord {
	body := strings.TrimSpace(m.Body)
	if body == "" && m.HTMLBody != "" {
		body = htmlToText(m.HTMLBody)
	}
	sent := ""
	if !m.Date.IsZero() {
		sent = m.Date.UTC().Format(time.RFC3339)
	}
	return RawRecord{
		ID: RecordID(n),
		Fields: map[string]string{
			FieldSender:    strings.TrimSpace(m.From),
			FieldSubject:   strings.TrimSpace(m.Subject),
			FieldBody:      body,
			FieldSentDate:  sent,
			FieldMessageID: m.MessageID,
		},
	}
}
