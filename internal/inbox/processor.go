package inbox

import (
	"sort"
	"time"

	"github.com/supportdesk/triage/internal/logger"
	"github.com/supportdesk/triage/internal/metrics"
	"github.com/supportdesk/triage/internal/rules"
	"github.com/supportdesk/triage/internal/source"
	"github.com/supportdesk/triage/internal/template"
)

type options struct {
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Processor or Store.
type Option func(*options)

// WithLogger sets the logger. Nil means no logging.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics records pipeline metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock replaces time.Now for extraction timestamps and the 24h window.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	o.log = logger.OrNop(o.log)
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Processor runs filter, extraction, classification and drafting over raw
// records. It holds no collection state and is safe for concurrent use.
type Processor struct {
	rules     *rules.Compiled
	responder *template.Engine
	now       func() time.Time
	log       logger.Logger
}

// NewProcessor builds a processor. A nil rule set uses the built-in tables;
// a nil responder drafts with the default phrasebook.
func NewProcessor(rs *rules.Compiled, responder *template.Engine, opts ...Option) (*Processor, error) {
	if rs == nil {
		rs = rules.Compile(rules.Default())
	}
	if responder == nil {
		var err error
		responder, err = template.NewEngine(rs, "")
		if err != nil {
			return nil, err
		}
	}
	o := buildOptions(opts)
	return &Processor{
		rules:     rs,
		responder: responder,
		now:       o.now,
		log:       o.log,
	}, nil
}

// RulesVersion identifies the keyword tables in use.
func (p *Processor) RulesVersion() string {
	return p.rules.Rules.Version
}

// Process enriches one raw record. It returns false when the record is not
// support traffic or lacks a sender, subject or body.
func (p *Processor) Process(raw source.RawRecord) (*Email, bool) {
	e, reason := p.process(raw)
	return e, reason == ""
}

const (
	dropFiltered = "filtered"
	dropInvalid  = "invalid"
)

func (p *Processor) process(raw source.RawRecord) (*Email, string) {
	subject := raw.Get(source.FieldSubject)
	body := raw.Get(source.FieldBody)
	if !p.IsSupport(subject, body) {
		return nil, dropFiltered
	}

	sender := raw.Get(source.FieldSender)
	if sender == "" || subject == "" || body == "" {
		return nil, dropInvalid
	}

	e := &Email{
		ID:       raw.ID,
		Sender:   sender,
		Subject:  subject,
		Body:     body,
		SentDate: raw.Get(source.FieldSentDate),
		Status:   StatusPending,
	}

	text := e.Text()
	e.ExtractedInfo = p.Extract(text, sender)
	e.ExtractedInfo.Metadata.Extra = extraFields(raw)

	e.Sentiment = p.Sentiment(text)
	e.Priority = p.Priority(text)
	e.Category = p.Category(subject)

	e.AIResponse = p.responder.Reply(template.Request{
		Sentiment: string(e.Sentiment),
		Priority:  string(e.Priority),
		Subject:   subject,
	})
	e.ResponseGenerated = true
	return e, ""
}

// RunResult is the outcome of one pipeline pass.
type RunResult struct {
	Emails   []*Email
	Fetched  int
	Filtered int // not support traffic
	Invalid  int // missing required fields or duplicate id
}

// Run filters and enriches raws and returns them sorted.
func (p *Processor) Run(raws []source.RawRecord) RunResult {
	res := RunResult{Fetched: len(raws), Emails: make([]*Email, 0, len(raws))}
	seen := make(map[string]bool, len(raws))

	for _, raw := range raws {
		e, reason := p.process(raw)
		switch reason {
		case dropFiltered:
			res.Filtered++
			continue
		case dropInvalid:
			res.Invalid++
			p.log.Debug("Skipping record with missing fields", logger.String("id", raw.ID))
			continue
		}
		if seen[e.ID] {
			res.Invalid++
			p.log.Warn("Skipping record with duplicate id", logger.String("id", e.ID))
			continue
		}
		seen[e.ID] = true
		res.Emails = append(res.Emails, e)
	}

	SortEmails(res.Emails)
	return res
}

// SortEmails orders urgent records first, then by sent date, newest first.
// Unparseable dates sort after parseable ones. The sort is stable.
func SortEmails(emails []*Email) {
	dates := make(map[*Email]time.Time, len(emails))
	valid := make(map[*Email]bool, len(emails))
	for _, e := range emails {
		dates[e], valid[e] = ParseSentDate(e.SentDate)
	}

	sort.SliceStable(emails, func(i, j int) bool {
		a, b := emails[i], emails[j]
		if ua, ub := a.Priority == PriorityUrgent, b.Priority == PriorityUrgent; ua != ub {
			return ua
		}
		if valid[a] != valid[b] {
			return valid[a]
		}
		return dates[a].After(dates[b])
	})
}
