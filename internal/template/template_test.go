package template

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stockSignoff = "I'll follow up within 24 hours with a detailed resolution. If you need immediate assistance, please don't hesitate to reach out.\n\nBest regards,\nCustomer Support Team"

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(nil, "")
	require.NoError(t, err)
	return e
}

func TestReplyExactText(t *testing.T) {
	e := newTestEngine(t)

	got := e.Reply(Request{Sentiment: "negative", Priority: "urgent", Subject: "Cannot LOGIN to dashboard"})
	want := "Thank you for reaching out, and I sincerely apologize for any inconvenience you've experienced. " +
		"I understand this is urgent, and I'm prioritizing your request. " +
		"Regarding your login/access issue, I'll help you resolve this immediately. Please verify your email address and try resetting your password using the 'Forgot Password' link. " +
		"I truly appreciate your patience, and we're committed to making this right. " +
		stockSignoff
	assert.Equal(t, want, got)
}

func TestReplySegments(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name     string
		req      Request
		prefix   string
		contains string
		urgent   bool
		empathy  bool
	}{
		{
			name:     "positive normal pricing",
			req:      Request{Sentiment: "positive", Priority: "normal", Subject: "Pricing for teams"},
			prefix:   "Thank you for your message! I'm delighted to assist you. ",
			contains: "I'd be happy to explain our pricing structure",
		},
		{
			name:     "neutral billing before api",
			req:      Request{Sentiment: "neutral", Priority: "normal", Subject: "Billing API question"},
			prefix:   "Thank you for contacting our support team. I'm here to help you. ",
			contains: "I'll review your billing concern right away.",
		},
		{
			name:     "login beats billing",
			req:      Request{Sentiment: "neutral", Priority: "normal", Subject: "login and payment"},
			prefix:   "Thank you for contacting our support team.",
			contains: "Regarding your login/access issue",
		},
		{
			name:     "integration",
			req:      Request{Sentiment: "neutral", Priority: "urgent", Subject: "Integration failing"},
			prefix:   "Thank you for contacting our support team.",
			contains: "For API integration questions",
			urgent:   true,
		},
		{
			name:     "generic",
			req:      Request{Sentiment: "negative", Priority: "normal", Subject: "Something else"},
			prefix:   "Thank you for reaching out, and I sincerely apologize",
			contains: "I've reviewed your request and will ensure you receive the appropriate assistance. ",
			empathy:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Reply(tt.req)
			assert.True(t, strings.HasPrefix(got, tt.prefix), got)
			assert.Contains(t, got, tt.contains)
			assert.Equal(t, tt.urgent, strings.Contains(got, "I understand this is urgent"))
			assert.Equal(t, tt.empathy, strings.Contains(got, "I truly appreciate your patience"))
			assert.True(t, strings.HasSuffix(got, stockSignoff))
		})
	}
}

func TestReplyIsDeterministic(t *testing.T) {
	e := newTestEngine(t)
	req := Request{Sentiment: "positive", Priority: "urgent", Subject: "API down"}
	assert.Equal(t, e.Reply(req), e.Reply(req))
}

func TestReplyUnknownSentimentUsesNeutralGreeting(t *testing.T) {
	e := newTestEngine(t)
	got := e.Reply(Request{Sentiment: "", Priority: "normal", Subject: ""})
	assert.True(t, strings.HasPrefix(got, "Thank you for contacting our support team."))
}

func TestCustomTeamName(t *testing.T) {
	e, err := NewEngine(nil, "Acme Helpdesk")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(e.Signature(), "Best regards,\nAcme Helpdesk"))
	assert.False(t, strings.HasSuffix(e.Signature(), "\n"))
}

func TestCustomPhrasebook(t *testing.T) {
	p := DefaultPhrasebook()
	p.Generic = "Looking into it. "
	e, err := NewEngineWithPhrases(nil, "", p)
	require.NoError(t, err)
	assert.Contains(t, e.Reply(Request{Sentiment: "neutral", Subject: "hello"}), "Looking into it. ")
}
