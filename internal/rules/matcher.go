package rules

import (
	"sort"
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// Matcher answers case-insensitive substring questions against one keyword
// list in a single pass over the text.
type Matcher struct {
	keywords []string
	ac       *ahocorasick.Matcher
}

// NewMatcher builds the automaton. Keywords are lowercased and trimmed;
// duplicates keep their first position.
func NewMatcher(keywords []string) *Matcher {
	m := &Matcher{keywords: make([]string, 0, len(keywords))}
	seen := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		kw = normalizeKeyword(kw)
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		m.keywords = append(m.keywords, kw)
	}
	if len(m.keywords) > 0 {
		m.ac = ahocorasick.NewStringMatcher(m.keywords)
	}
	return m
}

func normalizeKeyword(kw string) string {
	return strings.ToLower(strings.TrimSpace(kw))
}

func (m *Matcher) hits(text string) []int {
	if m.ac == nil || text == "" {
		return nil
	}
	return m.ac.MatchThreadSafe([]byte(strings.ToLower(text)))
}

// Any reports whether at least one keyword occurs in text.
func (m *Matcher) Any(text string) bool {
	return len(m.hits(text)) > 0
}

// Present returns the keywords that occur in text, in table order, each once.
func (m *Matcher) Present(text string) []string {
	hits := m.hits(text)
	if len(hits) == 0 {
		return nil
	}
	sort.Ints(hits)
	out := make([]string, 0, len(hits))
	prev := -1
	for _, h := range hits {
		if h == prev || h >= len(m.keywords) {
			continue
		}
		prev = h
		out = append(out, m.keywords[h])
	}
	return out
}

// Count is the number of distinct keywords present in text.
func (m *Matcher) Count(text string) int {
	return len(m.Present(text))
}

// Keywords returns the normalized table.
func (m *Matcher) Keywords() []string {
	return append([]string(nil), m.keywords...)
}

type namedMatcher struct {
	name    string
	matcher *Matcher
}

// Compiled is a Ruleset with its matchers built once.
type Compiled struct {
	Rules    *Ruleset
	Support  *Matcher
	Urgent   *Matcher
	Positive *Matcher
	Negative *Matcher

	categories []namedMatcher
	topics     []namedMatcher
}

// Compile builds matchers for every table in rs.
func Compile(rs *Ruleset) *Compiled {
	c := &Compiled{
		Rules:    rs,
		Support:  NewMatcher(rs.Support),
		Urgent:   NewMatcher(rs.Urgent),
		Positive: NewMatcher(rs.Positive),
		Negative: NewMatcher(rs.Negative),
	}
	for _, cat := range rs.Categories {
		c.categories = append(c.categories, namedMatcher{name: cat.Name, matcher: NewMatcher(cat.Keywords)})
	}
	for _, t := range rs.Topics {
		c.topics = append(c.topics, namedMatcher{name: t.Name, matcher: NewMatcher(t.Keywords)})
	}
	return c
}

func firstMatch(rules []namedMatcher, text string) (string, bool) {
	for _, r := range rules {
		if r.matcher.Any(text) {
			return r.name, true
		}
	}
	return "", false
}

// Category returns the first category whose keywords occur in subject, or the
// fallback category.
func (c *Compiled) Category(subject string) string {
	if name, ok := firstMatch(c.categories, subject); ok {
		return name
	}
	return c.Rules.FallbackCategory
}

// Topic returns the first reply topic whose keywords occur in subject, or "".
func (c *Compiled) Topic(subject string) string {
	name, _ := firstMatch(c.topics, subject)
	return name
}
