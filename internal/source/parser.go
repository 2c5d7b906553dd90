// Package source turns delimited text and mailboxes into raw records for the
// triage pipeline.
package source

import (
	"fmt"
	"strings"
)

// DefaultSeparator is the field separator used when none is configured.
const DefaultSeparator = ','

// Well-known field names read by the pipeline.
const (
	FieldSender   = "sender"
	FieldSubject  = "subject"
	FieldBody     = "body"
	FieldSentDate = "sent_date"
)

// RawRecord is one input row keyed by header name, plus the synthetic id
// assigned at parse time.
type RawRecord struct {
	ID     string
	Fields map[string]string
}

// Get returns the named field or "" when the column is absent.
func (r RawRecord) Get(key string) string {
	return r.Fields[key]
}

// RecordID formats the synthetic id for the n-th (1-based) data row.
func RecordID(n int) string {
	return fmt.Sprintf("email_%d", n)
}

// Parse splits text into records using the first line as the header. Blank
// lines are skipped and do not consume an id. Rows shorter than the header
// get empty strings for the missing columns.
func Parse(text string, sep rune) []RawRecord {
	if sep == 0 {
		sep = DefaultSeparator
	}

	lines := strings.Split(text, "\n")
	headerTokens := splitLine(lines[0], sep)
	headers := make([]string, len(headerTokens))
	for i, h := range headerTokens {
		headers[i] = strings.TrimSpace(h)
	}

	var records []RawRecord
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		values := splitLine(line, sep)
		fields := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(values) {
				fields[h] = strings.TrimSpace(values[i])
			} else {
				fields[h] = ""
			}
		}
		records = append(records, RawRecord{
			ID:     RecordID(len(records) + 1),
			Fields: fields,
		})
	}
	return records
}

// splitLine splits on sep outside double quotes. Quote characters toggle the
// quoted state and are not kept.
func splitLine(line string, sep rune) []string {
	var (
		result   []string
		current  strings.Builder
		inQuotes bool
	)
	for _, ch := range line {
		switch {
		case ch == '"':
			inQuotes = !inQuotes
		case ch == sep && !inQuotes:
			result = append(result, current.String())
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}
	return append(result, current.String())
}
