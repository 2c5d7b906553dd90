// Package rules holds the keyword tables that drive support filtering,
// classification, requirement extraction and reply topic selection.
package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultVersion identifies the built-in tables.
const DefaultVersion = "1"

// CategoryRule assigns Name when any keyword occurs in the subject.
type CategoryRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// TopicRule selects a reply body sentence by subject keyword.
type TopicRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Ruleset is one versioned set of keyword tables. Order matters for
// Requirements, Categories and Topics: the first matching entry wins.
type Ruleset struct {
	Version          string         `yaml:"version"`
	Support          []string       `yaml:"support,omitempty"`
	Urgent           []string       `yaml:"urgent,omitempty"`
	Positive         []string       `yaml:"positive,omitempty"`
	Negative         []string       `yaml:"negative,omitempty"`
	Requirements     []string       `yaml:"requirements,omitempty"`
	Categories       []CategoryRule `yaml:"categories,omitempty"`
	FallbackCategory string         `yaml:"fallback_category,omitempty"`
	Topics           []TopicRule    `yaml:"topics,omitempty"`
}

// Topic names understood by the responder phrasebook.
const (
	TopicAccess      = "access"
	TopicBilling     = "billing"
	TopicIntegration = "integration"
	TopicPricing     = "pricing"
)

// Default returns the built-in tables. Each call returns a fresh copy.
func Default() *Ruleset {
	return &Ruleset{
		Version:  DefaultVersion,
		Support:  []string{"support", "query", "request", "help", "issue", "problem", "assistance"},
		Urgent:   []string{"urgent", "immediately", "critical", "cannot access", "down", "emergency", "asap", "blocked"},
		Positive: []string{"thank", "appreciate", "great", "excellent", "satisfied", "happy", "pleased"},
		Negative: []string{"frustrated", "angry", "disappointed", "terrible", "awful", "hate", "worst", "unacceptable"},
		Requirements: []string{
			"need", "want", "require", "looking for", "help with", "issue with",
		},
		Categories: []CategoryRule{
			{Name: "Billing", Keywords: []string{"billing", "payment"}},
			{Name: "Account Access", Keywords: []string{"login", "access"}},
			{Name: "Technical", Keywords: []string{"integration", "api"}},
			{Name: "Sales", Keywords: []string{"pricing"}},
			{Name: "Refund", Keywords: []string{"refund"}},
		},
		FallbackCategory: "General Support",
		Topics: []TopicRule{
			{Name: TopicAccess, Keywords: []string{"login", "access"}},
			{Name: TopicBilling, Keywords: []string{"billing", "payment"}},
			{Name: TopicIntegration, Keywords: []string{"integration", "api"}},
			{Name: TopicPricing, Keywords: []string{"pricing"}},
		},
	}
}

// Validate rejects blank keywords and empty rule entries.
func (r *Ruleset) Validate() error {
	lists := map[string][]string{
		"support":      r.Support,
		"urgent":       r.Urgent,
		"positive":     r.Positive,
		"negative":     r.Negative,
		"requirements": r.Requirements,
	}
	names := make([]string, 0, len(lists))
	for name := range lists {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := checkKeywords(name, lists[name]); err != nil {
			return err
		}
	}
	if len(r.Support) == 0 {
		return fmt.Errorf("rules: support keyword list is empty")
	}
	for i, c := range r.Categories {
		if c.Name == "" {
			return fmt.Errorf("rules: category %d has no name", i)
		}
		if len(c.Keywords) == 0 {
			return fmt.Errorf("rules: category %q has no keywords", c.Name)
		}
		if err := checkKeywords("category "+c.Name, c.Keywords); err != nil {
			return err
		}
	}
	if r.FallbackCategory == "" {
		return fmt.Errorf("rules: fallback_category is required")
	}
	for i, t := range r.Topics {
		if t.Name == "" {
			return fmt.Errorf("rules: topic %d has no name", i)
		}
		if err := checkKeywords("topic "+t.Name, t.Keywords); err != nil {
			return err
		}
	}
	return nil
}

func checkKeywords(list string, keywords []string) error {
	for i, kw := range keywords {
		if strings.TrimSpace(kw) == "" {
			return fmt.Errorf("rules: %s keyword %d is blank", list, i)
		}
	}
	return nil
}

// Merge overlays every non-empty field of o onto a copy of r.
func (r *Ruleset) Merge(o *Ruleset) *Ruleset {
	out := *r
	if o == nil {
		return &out
	}
	if o.Version != "" {
		out.Version = o.Version
	}
	if len(o.Support) > 0 {
		out.Support = o.Support
	}
	if len(o.Urgent) > 0 {
		out.Urgent = o.Urgent
	}
	if len(o.Positive) > 0 {
		out.Positive = o.Positive
	}
	if len(o.Negative) > 0 {
		out.Negative = o.Negative
	}
	if len(o.Requirements) > 0 {
		out.Requirements = o.Requirements
	}
	if len(o.Categories) > 0 {
		out.Categories = o.Categories
	}
	if o.FallbackCategory != "" {
		out.FallbackCategory = o.FallbackCategory
	}
	if len(o.Topics) > 0 {
		out.Topics = o.Topics
	}
	return &out
}

// LoadFromFile reads a YAML overlay and merges it onto the defaults.
func LoadFromFile(path string) (*Ruleset, error) {
	overlay, err := readOverlay(path)
	if err != nil {
		return nil, err
	}
	rs := Default().Merge(overlay)
	if err := rs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules in %s: %w", path, err)
	}
	return rs, nil
}

// LoadFromDir merges every .yaml/.yml file in dir, in name order, onto the defaults.
func LoadFromDir(dir string) (*Ruleset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules directory: %w", err)
	}

	rs := Default()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), ".yaml") && !strings.HasSuffix(entry.Name(), ".yml") {
			continue
		}
		overlay, err := readOverlay(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", entry.Name(), err)
		}
		rs = rs.Merge(overlay)
	}

	if err := rs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules in %s: %w", dir, err)
	}
	return rs, nil
}

// Load picks LoadFromDir or LoadFromFile based on what path is. An empty path
// yields the defaults.
func Load(path string) (*Ruleset, error) {
	if path == "" {
		return Default(), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat rules path: %w", err)
	}
	if info.IsDir() {
		return LoadFromDir(path)
	}
	return LoadFromFile(path)
}

func readOverlay(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	var overlay Ruleset
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	return &overlay, nil
}

// Marshal renders the tables as YAML.
func (r *Ruleset) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize rules: %w", err)
	}
	return data, nil
}
