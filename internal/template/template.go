// Package template drafts support replies from fixed phrase tables.
package template

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/supportdesk/triage/internal/rules"
)

//go:embed templates/*.tmpl
var embeddedTemplates embed.FS

// DefaultTeamName signs replies when no team is configured.
const DefaultTeamName = "Customer Support Team"

// Phrasebook holds every fixed sentence a reply can contain.
type Phrasebook struct {
	Greetings map[string]string // keyed by sentiment
	Urgent    string
	Topics    map[string]string // keyed by rules topic name
	Generic   string
	Empathy   string
	SignOff   string
}

// DefaultPhrasebook returns the stock reply sentences.
func DefaultPhrasebook() Phrasebook {
	return Phrasebook{
		Greetings: map[string]string{
			"negative": "Thank you for reaching out, and I sincerely apologize for any inconvenience you've experienced. ",
			"positive": "Thank you for your message! I'm delighted to assist you. ",
			"neutral":  "Thank you for contacting our support team. I'm here to help you. ",
		},
		Urgent: "I understand this is urgent, and I'm prioritizing your request. ",
		Topics: map[string]string{
			rules.TopicAccess:      "Regarding your login/access issue, I'll help you resolve this immediately. Please verify your email address and try resetting your password using the 'Forgot Password' link. ",
			rules.TopicBilling:     "I'll review your billing concern right away. Our billing team will investigate any discrepancies and ensure accurate charges. ",
			rules.TopicIntegration: "For API integration questions, I'll connect you with our technical team who can provide detailed documentation and implementation guidance. ",
			rules.TopicPricing:     "I'd be happy to explain our pricing structure and help you find the plan that best fits your needs. ",
		},
		Generic: "I've reviewed your request and will ensure you receive the appropriate assistance. ",
		Empathy: "I truly appreciate your patience, and we're committed to making this right. ",
		SignOff: "I'll follow up within 24 hours with a detailed resolution. If you need immediate assistance, please don't hesitate to reach out.",
	}
}

// Request carries the classified fields a reply depends on.
type Request struct {
	Sentiment string
	Priority  string
	Subject   string
}

// signoffData is passed to the signature template.
type signoffData struct {
	SignOff  string
	TeamName string
}

// Engine assembles reply drafts.
type Engine struct {
	phrases Phrasebook
	rules   *rules.Compiled
	signoff string
}

// NewEngine renders the signature block once for teamName. A nil rule set
// uses the built-in topic tables.
func NewEngine(rs *rules.Compiled, teamName string) (*Engine, error) {
	return NewEngineWithPhrases(rs, teamName, DefaultPhrasebook())
}

// NewEngineWithPhrases is NewEngine with a custom phrasebook.
func NewEngineWithPhrases(rs *rules.Compiled, teamName string, phrases Phrasebook) (*Engine, error) {
	if rs == nil {
		rs = rules.Compile(rules.Default())
	}
	if strings.TrimSpace(teamName) == "" {
		teamName = DefaultTeamName
	}

	content, err := embeddedTemplates.ReadFile("templates/signoff.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded template signoff: %w", err)
	}
	tmpl, err := template.New("signoff").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template signoff: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, signoffData{SignOff: phrases.SignOff, TeamName: teamName}); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	return &Engine{
		phrases: phrases,
		rules:   rs,
		signoff: strings.TrimRight(buf.String(), "\n"),
	}, nil
}

// Reply builds the draft for req. Identical requests yield identical output.
func (e *Engine) Reply(req Request) string {
	var b strings.Builder

	greeting, ok := e.phrases.Greetings[req.Sentiment]
	if !ok {
		greeting = e.phrases.Greetings["neutral"]
	}
	b.WriteString(greeting)

	if req.Priority == "urgent" {
		b.WriteString(e.phrases.Urgent)
	}

	b.WriteString(e.topicSentence(req.Subject))

	if req.Sentiment == "negative" {
		b.WriteString(e.phrases.Empathy)
	}

	b.WriteString(e.signoff)
	return b.String()
}

func (e *Engine) topicSentence(subject string) string {
	if topic := e.rules.Topic(subject); topic != "" {
		if s, ok := e.phrases.Topics[topic]; ok {
			return s
		}
	}
	return e.phrases.Generic
}

// Signature returns the rendered sign-off block.
func (e *Engine) Signature() string {
	return e.signoff
}
