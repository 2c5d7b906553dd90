package source

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const multipartMessage = "From: Jane <jane@example.com>\r\n" +
	"Subject: Login issue\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=XYZ\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"I cannot access my account.\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>I <b>cannot</b> access my account.</p>\r\n" +
	"--XYZ--\r\n"

func TestParseMIME(t *testing.T) {
	plain, html, err := parseMIME(strings.NewReader(multipartMessage))
	require.NoError(t, err)
	assert.Contains(t, plain, "I cannot access my account.")
	assert.Contains(t, html, "<b>cannot</b>")
}

func TestHTMLToText(t *testing.T) {
	html := "<html><head><style>p{}</style></head><body><p>Need   help</p>\n<script>x()</script>\n<div>with billing</div></body></html>"
	assert.Equal(t, "Need help with billing", htmlToText(html))
}

func TestMailMessageRecord(t *testing.T) {
	date := time.Date(2024, 3, 1, 9, 30, 0, 0, time.FixedZone("X", 3600))

	rec := mailMessage{
		MessageID: "<abc@example.com>",
		From:      "jane@example.com",
		Subject:   " Login issue ",
		Date:      date,
		HTMLBody:  "<p>Please help</p>",
	}.record(3)

	assert.Equal(t, "email_3", rec.ID)
	assert.Equal(t, "jane@example.com", rec.Get(FieldSender))
	assert.Equal(t, "Login issue", rec.Get(FieldSubject))
	assert.Equal(t, "Please help", rec.Get(FieldBody))
	assert.Equal(t, "2024-03-01T08:30:00Z", rec.Get(FieldSentDate))
	assert.Equal(t, "<abc@example.com>", rec.Get(FieldMessageID))
}

func TestMailMessageRecordPrefersPlainBody(t *testing.T) {
	rec := mailMessage{Body: "plain text\n", HTMLBody: "<p>html</p>"}.record(1)
	assert.Equal(t, "plain text", rec.Get(FieldBody))
	assert.Equal(t, "", rec.Get(FieldSentDate))
}
