package inbox

// IsSupport reports whether subject or body mentions a support keyword.
// Records failing this gate never enter the collection.
func (p *Processor) IsSupport(subject, body string) bool {
	return p.rules.Support.Any(subject) || p.rules.Support.Any(body)
}

// Sentiment compares how many positive and negative words occur in text.
// Equal counts, including zero, are neutral.
func (p *Processor) Sentiment(text string) Sentiment {
	pos := p.rules.Positive.Count(text)
	neg := p.rules.Negative.Count(text)
	switch {
	case neg > pos:
		return SentimentNegative
	case pos > neg:
		return SentimentPositive
	default:
		return SentimentNeutral
	}
}

// Priority is urgent when any urgency keyword occurs in text.
func (p *Processor) Priority(text string) Priority {
	if p.rules.Urgent.Any(text) {
		return PriorityUrgent
	}
	return PriorityNormal
}

// Category picks the first category whose keywords occur in the subject.
func (p *Processor) Category(subject string) string {
	return p.rules.Category(subject)
}
