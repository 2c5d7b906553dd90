// Package inbox turns raw support emails into classified, enriched records
// with a drafted reply, and owns the in-memory collection they live in.
package inbox

import (
	"errors"
	"fmt"
	"time"
)

// Priority of a support email
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityNormal Priority = "normal"
)

// Sentiment of a support email
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Status is the workflow state, changed only from outside the pipeline.
type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
)

// ErrInvalidStatus is returned for a status outside {pending, resolved}.
var ErrInvalidStatus = errors.New("invalid status")

// ParseStatus validates s.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusResolved:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Metadata is the open metadata map of an extraction.
type Metadata struct {
	WordCount      int               `json:"wordCount"`
	HasAttachments bool              `json:"hasAttachments"`
	ResponseTime   time.Time         `json:"responseTime"`
	Extra          map[string]string `json:"extra,omitempty"`
}

// ExtractedInfo holds the signals pulled from an email's text.
type ExtractedInfo struct {
	ContactDetails      []string `json:"contactDetails"`
	Requirements        []string `json:"requirements"`
	SentimentIndicators []string `json:"sentimentIndicators"`
	Metadata            Metadata `json:"metadata"`
}

// Email is one processed support email.
type Email struct {
	ID                string        `json:"id"`
	Sender            string        `json:"sender"`
	Subject           string        `json:"subject"`
	Body              string        `json:"body"`
	SentDate          string        `json:"sentDate"`
	Priority          Priority      `json:"priority"`
	Sentiment         Sentiment     `json:"sentiment"`
	Category          string        `json:"category"`
	Status            Status        `json:"status"`
	ExtractedInfo     ExtractedInfo `json:"extractedInfo"`
	AIResponse        string        `json:"aiResponse"`
	ResponseGenerated bool          `json:"responseGenerated"`
}

// Text is the combined text the classifier and extractor read.
func (e *Email) Text() string {
	return e.Subject + " " + e.Body
}

// clone returns a deep copy so callers never alias collection state.
func (e *Email) clone() *Email {
	c := *e
	c.ExtractedInfo.ContactDetails = append([]string(nil), e.ExtractedInfo.ContactDetails...)
	c.ExtractedInfo.Requirements = append([]string(nil), e.ExtractedInfo.Requirements...)
	c.ExtractedInfo.SentimentIndicators = append([]string(nil), e.ExtractedInfo.SentimentIndicators...)
	if e.ExtractedInfo.Metadata.Extra != nil {
		extra := make(map[string]string, len(e.ExtractedInfo.Metadata.Extra))
		for k, v := range e.ExtractedInfo.Metadata.Extra {
			extra[k] = v
		}
		c.ExtractedInfo.Metadata.Extra = extra
	}
	return &c
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseSentDate parses the sent date text. Zone-less values are read as UTC.
func ParseSentDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
