package inbox

import (
	"strings"
	"time"
)

type SentimentBreakdown struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

type PriorityBreakdown struct {
	Urgent int `json:"urgent"`
	Normal int `json:"normal"`
}

// Stats is recomputed from the collection on every call and never stored.
type Stats struct {
	TotalEmails        int                `json:"totalEmails"`
	EmailsLast24h      int                `json:"emailsLast24h"`
	EmailsResolved     int                `json:"emailsResolved"`
	EmailsPending      int                `json:"emailsPending"`
	SentimentBreakdown SentimentBreakdown `json:"sentimentBreakdown"`
	PriorityBreakdown  PriorityBreakdown  `json:"priorityBreakdown"`
}

// Summarize counts emails relative to now. A sent date counts toward the
// last 24 hours when it is no earlier than now minus 24h; dates that do not
// parse never count.
func Summarize(emails []*Email, now time.Time) Stats {
	cutoff := now.Add(-24 * time.Hour)
	s := Stats{TotalEmails: len(emails)}

	for _, e := range emails {
		if t, ok := ParseSentDate(e.SentDate); ok && !t.Before(cutoff) {
			s.EmailsLast24h++
		}

		if e.Status == StatusResolved {
			s.EmailsResolved++
		} else {
			s.EmailsPending++
		}

		switch e.Sentiment {
		case SentimentPositive:
			s.SentimentBreakdown.Positive++
		case SentimentNegative:
			s.SentimentBreakdown.Negative++
		default:
			s.SentimentBreakdown.Neutral++
		}

		if e.Priority == PriorityUrgent {
			s.PriorityBreakdown.Urgent++
		} else {
			s.PriorityBreakdown.Normal++
		}
	}
	return s
}

// FilterAll matches any value of a criterion.
const FilterAll = "all"

// Criteria narrows a listing. Empty or "all" fields do not constrain.
type Criteria struct {
	Search    string `json:"search,omitempty"`
	Priority  string `json:"priority,omitempty"`
	Sentiment string `json:"sentiment,omitempty"`
	Status    string `json:"status,omitempty"`
}

func matchesLabel(want, got string) bool {
	return want == "" || want == FilterAll || want == got
}

// Matches reports whether e satisfies every criterion.
func (c Criteria) Matches(e *Email) bool {
	if c.Search != "" {
		term := strings.ToLower(c.Search)
		if !strings.Contains(strings.ToLower(e.Subject), term) &&
			!strings.Contains(strings.ToLower(e.Sender), term) &&
			!strings.Contains(strings.ToLower(e.Body), term) {
			return false
		}
	}
	return matchesLabel(c.Priority, string(e.Priority)) &&
		matchesLabel(c.Sentiment, string(e.Sentiment)) &&
		matchesLabel(c.Status, string(e.Status))
}

// Filter returns the emails matching c in collection order. emails is not
// modified.
func Filter(emails []*Email, c Criteria) []*Email {
	out := make([]*Email, 0, len(emails))
	for _, e := range emails {
		if c.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}
