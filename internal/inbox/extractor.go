package inbox

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/supportdesk/triage/internal/source"
)

// requirementWindow is the snippet length, in characters, kept per indicator.
const requirementWindow = 100

var (
	phoneRegex = regexp.MustCompile(`(\+?\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
)

// coreFields are copied onto Email directly and kept out of metadata.
var coreFields = map[string]bool{
	source.FieldSender:   true,
	source.FieldSubject:  true,
	source.FieldBody:     true,
	source.FieldSentDate: true,
	"id":                 true,
}

// Extract pulls contacts, requirement snippets, sentiment evidence and
// metadata out of text. Email addresses equal to sender are left out.
func (p *Processor) Extract(text, sender string) ExtractedInfo {
	return ExtractedInfo{
		ContactDetails:      extractContacts(text, sender),
		Requirements:        p.extractRequirements(text),
		SentimentIndicators: p.sentimentIndicators(text),
		Metadata: Metadata{
			WordCount:      len(strings.Fields(text)),
			HasAttachments: false,
			ResponseTime:   p.now(),
		},
	}
}

func extractContacts(text, sender string) []string {
	contacts := []string{}
	contacts = append(contacts, phoneRegex.FindAllString(text, -1)...)
	for _, addr := range emailRegex.FindAllString(text, -1) {
		if addr == sender {
			continue
		}
		contacts = append(contacts, addr)
	}
	return contacts
}

// extractRequirements keeps, for each indicator present, the window starting
// at its first case-insensitive occurrence in the original casing.
func (p *Processor) extractRequirements(text string) []string {
	out := []string{}
	if text == "" {
		return out
	}

	runes := []rune(text)
	lower := make([]rune, len(runes))
	for i, r := range runes {
		lower[i] = unicode.ToLower(r)
	}

	for _, indicator := range p.rules.Rules.Requirements {
		needle := []rune(strings.TrimSpace(indicator))
		if len(needle) == 0 {
			continue
		}
		for i, r := range needle {
			needle[i] = unicode.ToLower(r)
		}

		idx := indexRunes(lower, needle)
		if idx < 0 {
			continue
		}
		end := min(idx+requirementWindow, len(runes))
		out = append(out, strings.TrimSpace(string(runes[idx:end])))
	}
	return out
}

func indexRunes(haystack, needle []rune) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j, r := range needle {
			if haystack[i+j] != r {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// sentimentIndicators lists positive words present followed by negative
// words present, each in table order.
func (p *Processor) sentimentIndicators(text string) []string {
	out := []string{}
	out = append(out, p.rules.Positive.Present(text)...)
	out = append(out, p.rules.Negative.Present(text)...)
	return out
}

// extraFields returns input columns that have no dedicated Email field.
func extraFields(raw source.RawRecord) map[string]string {
	var extra map[string]string
	for k, v := range raw.Fields {
		if coreFields[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]string)
		}
		extra[k] = v
	}
	return extra
}
