package inbox

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportdesk/triage/internal/source"
)

var fixedNow = time.Date(2024, 1, 4, 12, 0, 0, 0, time.UTC)

func newTestProcessor(t *testing.T) *Processor {
	t.Helper()
	p, err := NewProcessor(nil, nil, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return p
}

func raw(id, sender, subject, body, sent string) source.RawRecord {
	return source.RawRecord{ID: id, Fields: map[string]string{
		source.FieldSender:   sender,
		source.FieldSubject:  subject,
		source.FieldBody:     body,
		source.FieldSentDate: sent,
	}}
}

func TestSentiment(t *testing.T) {
	p := newTestProcessor(t)

	tests := []struct {
		name     string
		text     string
		expected Sentiment
	}{
		{"balanced one each", "thank you but frustrated", SentimentNeutral},
		{"no words", "Please reset my password", SentimentNeutral},
		{"empty text", "", SentimentNeutral},
		{"positive", "Thanks, great service so far", SentimentPositive},
		{"negative", "This is terrible and awful, thank you", SentimentNegative},
		{"case insensitive", "I am FRUSTRATED", SentimentNegative},
		{"distinct words not repeats", "thank thank thank, frustrated and angry", SentimentNegative},
		{"substring containment", "I'm unhappy", SentimentPositive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.Sentiment(tt.text))
		})
	}
}

func TestPriority(t *testing.T) {
	p := newTestProcessor(t)

	tests := []struct {
		text     string
		expected Priority
	}{
		{"This is urgent, please help immediately", PriorityUrgent},
		{"Please help with my question", PriorityNormal},
		{"I CANNOT ACCESS my account", PriorityUrgent},
		{"Service is down", PriorityUrgent},
		{"", PriorityNormal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, p.Priority(tt.text), tt.text)
	}
}

func TestIsSupport(t *testing.T) {
	p := newTestProcessor(t)

	assert.False(t, p.IsSupport("Hello", "Just saying hi"))
	assert.True(t, p.IsSupport("Hello", "I need support with login"))
	assert.True(t, p.IsSupport("QUERY about invoices", ""))
	assert.False(t, p.IsSupport("", ""))
}

func TestCategory(t *testing.T) {
	p := newTestProcessor(t)

	tests := []struct {
		subject  string
		expected string
	}{
		{"Billing API question", "Billing"},
		{"Payment failed", "Billing"},
		{"Login problem", "Account Access"},
		{"API integration help", "Technical"},
		{"Pricing for enterprise", "Sales"},
		{"Refund please", "Refund"},
		{"Hello there", "General Support"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, p.Category(tt.subject), tt.subject)
	}
}

func TestExtractContacts(t *testing.T) {
	p := newTestProcessor(t)

	text := "Support request Call me at 555-123-4567 or mail jane.doe@example.org, not jane@example.com"
	info := p.Extract(text, "jane@example.com")

	assert.Equal(t, []string{"555-123-4567", "jane.doe@example.org"}, info.ContactDetails)
}

func TestExtractRequirements(t *testing.T) {
	p := newTestProcessor(t)

	info := p.Extract("Support request I need a refund for my order please", "a@x.com")
	require.Len(t, info.Requirements, 1)
	assert.Equal(t, "need a refund for my order please", info.Requirements[0])

	long := "Help I Want " + strings.Repeat("x", 200) + " and I need more"
	info = p.Extract(long, "a@x.com")
	require.Len(t, info.Requirements, 2)
	assert.Equal(t, "need more", info.Requirements[0])
	assert.True(t, strings.HasPrefix(info.Requirements[1], "Want xxx"))
	assert.Len(t, []rune(info.Requirements[1]), 100)

	// First occurrence only, original casing kept.
	info = p.Extract("NEED one thing. need another", "a@x.com")
	require.Len(t, info.Requirements, 1)
	assert.True(t, strings.HasPrefix(info.Requirements[0], "NEED one thing."))
}

func TestExtractMetadataAndIndicators(t *testing.T) {
	p := newTestProcessor(t)

	info := p.Extract("  Thanks, but the  worst and terrible  ", "a@x.com")
	assert.Equal(t, []string{"thank", "terrible", "worst"}, info.SentimentIndicators)
	assert.Equal(t, 6, info.Metadata.WordCount)
	assert.False(t, info.Metadata.HasAttachments)
	assert.Equal(t, fixedNow, info.Metadata.ResponseTime)

	empty := p.Extract("", "")
	assert.Empty(t, empty.ContactDetails)
	assert.Empty(t, empty.Requirements)
	assert.Empty(t, empty.SentimentIndicators)
	assert.Equal(t, 0, empty.Metadata.WordCount)
}

func TestProcess(t *testing.T) {
	p := newTestProcessor(t)

	r := raw("email_1", "jane@example.com", "Urgent: billing problem", "I was charged twice, this is unacceptable", "2024-01-03 10:00:00")
	r.Fields["customer_tier"] = "gold"

	e, ok := p.Process(r)
	require.True(t, ok)
	assert.Equal(t, "email_1", e.ID)
	assert.Equal(t, PriorityUrgent, e.Priority)
	assert.Equal(t, SentimentNegative, e.Sentiment)
	assert.Equal(t, "Billing", e.Category)
	assert.Equal(t, StatusPending, e.Status)
	assert.True(t, e.ResponseGenerated)
	assert.True(t, strings.HasPrefix(e.AIResponse, "Thank you for reaching out, and I sincerely apologize"))
	assert.Contains(t, e.AIResponse, "I understand this is urgent")
	assert.Contains(t, e.AIResponse, "I'll review your billing concern right away.")
	assert.Equal(t, map[string]string{"customer_tier": "gold"}, e.ExtractedInfo.Metadata.Extra)

	again, _ := p.Process(r)
	assert.Equal(t, e.AIResponse, again.AIResponse)
}

func TestProcessDrops(t *testing.T) {
	p := newTestProcessor(t)

	_, ok := p.Process(raw("email_1", "a@x.com", "Hello", "Just saying hi", ""))
	assert.False(t, ok)

	_, ok = p.Process(raw("email_2", "", "Help", "Need support", ""))
	assert.False(t, ok)

	_, ok = p.Process(raw("email_3", "a@x.com", "Help", "", ""))
	assert.False(t, ok)
}

func TestRun(t *testing.T) {
	p := newTestProcessor(t)

	res := p.Run([]source.RawRecord{
		raw("A", "a@x.com", "Support question", "Please help me understand reports", "2024-01-02"),
		raw("B", "b@x.com", "Support question", "This is urgent", "2024-01-01"),
		raw("C", "c@x.com", "Support question", "Please help me export data", "2024-01-03"),
		raw("D", "d@x.com", "Hello", "Just saying hi", "2024-01-03"),
		raw("E", "", "Help", "Missing sender", "2024-01-03"),
		raw("C", "c@x.com", "Support question", "Duplicate id", "2024-01-03"),
	})

	assert.Equal(t, 6, res.Fetched)
	assert.Equal(t, 1, res.Filtered)
	assert.Equal(t, 2, res.Invalid)

	var ids []string
	for _, e := range res.Emails {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"B", "C", "A"}, ids)
}

func TestSortEmails(t *testing.T) {
	emails := []*Email{
		{ID: "bad-date", Priority: PriorityNormal, SentDate: "yesterday"},
		{ID: "old", Priority: PriorityNormal, SentDate: "2024-01-01T00:00:00Z"},
		{ID: "urgent-old", Priority: PriorityUrgent, SentDate: "2023-12-01"},
		{ID: "new", Priority: PriorityNormal, SentDate: "2024-01-05 08:00:00"},
		{ID: "urgent-new", Priority: PriorityUrgent, SentDate: "2024-01-02T09:00:00"},
		{ID: "bad-date-2", Priority: PriorityNormal, SentDate: ""},
	}

	SortEmails(emails)

	var ids []string
	for _, e := range emails {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"urgent-new", "urgent-old", "new", "old", "bad-date", "bad-date-2"}, ids)
}
