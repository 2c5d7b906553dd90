package inbox

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, Stats{}, Summarize(nil, fixedNow))
}

func TestSummarizeBreakdownsSumToTotal(t *testing.T) {
	sentiments := []Sentiment{SentimentPositive, SentimentNegative, SentimentNeutral}
	priorities := []Priority{PriorityUrgent, PriorityNormal}

	for n := 0; n < 20; n++ {
		var emails []*Email
		for i := 0; i < n; i++ {
			emails = append(emails, &Email{
				ID:        fmt.Sprintf("email_%d", i),
				Sentiment: sentiments[(i*7+n)%3],
				Priority:  priorities[(i+n)%2],
				Status:    StatusPending,
			})
		}

		s := Summarize(emails, fixedNow)
		b := s.SentimentBreakdown
		assert.Equal(t, s.TotalEmails, b.Positive+b.Negative+b.Neutral)
		assert.Equal(t, s.TotalEmails, s.PriorityBreakdown.Urgent+s.PriorityBreakdown.Normal)
		assert.Equal(t, s.TotalEmails, s.EmailsPending+s.EmailsResolved)
	}
}

func TestSummarizeLast24h(t *testing.T) {
	now := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	emails := []*Email{
		{SentDate: "2024-01-01T12:00:00Z"}, // exactly 24h, inclusive
		{SentDate: "2024-01-01T11:59:59Z"},
		{SentDate: "2024-01-02 11:00:00"},
		{SentDate: "2024-01-02"},
		{SentDate: "not a date"},
		{SentDate: ""},
	}

	s := Summarize(emails, now)
	assert.Equal(t, 6, s.TotalEmails)
	assert.Equal(t, 3, s.EmailsLast24h)
}

func TestFilter(t *testing.T) {
	emails := []*Email{
		{ID: "1", Sender: "jane@example.com", Subject: "Login", Body: "cannot sign in", Priority: PriorityUrgent, Sentiment: SentimentNegative, Status: StatusPending},
		{ID: "2", Sender: "bob@example.com", Subject: "Pricing", Body: "Thanks for the demo", Priority: PriorityNormal, Sentiment: SentimentPositive, Status: StatusResolved},
		{ID: "3", Sender: "amy@corp.io", Subject: "Question", Body: "How do exports work", Priority: PriorityNormal, Sentiment: SentimentNeutral, Status: StatusPending},
	}

	tests := []struct {
		name     string
		criteria Criteria
		expected []string
	}{
		{"no criteria", Criteria{}, []string{"1", "2", "3"}},
		{"all everywhere", Criteria{Priority: "all", Sentiment: "all", Status: "all"}, []string{"1", "2", "3"}},
		{"search subject case-insensitive", Criteria{Search: "LOGIN"}, []string{"1"}},
		{"search sender", Criteria{Search: "corp.io"}, []string{"3"}},
		{"search body", Criteria{Search: "demo"}, []string{"2"}},
		{"priority", Criteria{Priority: "normal"}, []string{"2", "3"}},
		{"sentiment", Criteria{Sentiment: "negative"}, []string{"1"}},
		{"status", Criteria{Status: "pending"}, []string{"1", "3"}},
		{"combined", Criteria{Search: "example.com", Status: "resolved"}, []string{"2"}},
		{"no match", Criteria{Search: "refund"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, e := range Filter(emails, tt.criteria) {
				got = append(got, e.ID)
			}
			assert.Equal(t, tt.expected, got)
		})
	}

	assert.Equal(t, "1", emails[0].ID)
	assert.Len(t, emails, 3)
}
