package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/supportdesk/triage/internal/history"
	"github.com/supportdesk/triage/internal/inbox"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	urgentStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	draftStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncateString(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

// pad left-aligns s to width before styling so ANSI codes do not skew columns.
func pad(s string, width int) string {
	if n := len([]rune(s)); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func priorityLabel(p inbox.Priority) string {
	label := pad(string(p), 6)
	if p == inbox.PriorityUrgent {
		return urgentStyle.Render(label)
	}
	return label
}

func sentimentLabel(s inbox.Sentiment) string {
	label := pad(string(s), 8)
	switch s {
	case inbox.SentimentPositive:
		return successStyle.Render(label)
	case inbox.SentimentNegative:
		return errorStyle.Render(label)
	}
	return label
}

func statusLabel(s inbox.Status) string {
	label := pad(string(s), 8)
	if s == inbox.StatusResolved {
		return successStyle.Render(label)
	}
	return warningStyle.Render(label)
}

func printLoad(w io.Writer, res inbox.LoadResult, err error) {
	if err != nil {
		fmt.Fprintf(w, "%s %v\n", warningStyle.Render("⚠️  Load failed, collection is empty:"), err)
		return
	}
	fmt.Fprintf(w, "%s %s: %d fetched, %d support, %d filtered, %d invalid (%s)\n",
		successStyle.Render("✅ Loaded"),
		res.Source,
		res.Fetched,
		res.Retained,
		res.Filtered,
		res.Invalid,
		res.Duration.Round(time.Millisecond),
	)
}

func printEmails(w io.Writer, emails []*inbox.Email) {
	if len(emails) == 0 {
		fmt.Fprintln(w, labelStyle.Render("No emails match."))
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, titleStyle.Render("ID")+"\tPRIORITY\tSENTIMENT\tSTATUS\tCATEGORY\tSENDER\tSUBJECT")
	for _, e := range emails {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID,
			priorityLabel(e.Priority),
			sentimentLabel(e.Sentiment),
			statusLabel(e.Status),
			e.Category,
			truncateString(e.Sender, 30),
			truncateString(e.Subject, 50),
		)
	}
	tw.Flush()
}

func printStats(w io.Writer, s inbox.Stats) {
	fmt.Fprintln(w, titleStyle.Render("📊 Support Inbox"))
	fmt.Fprintln(w, strings.Repeat("=", 30))
	fmt.Fprintf(w, "Total emails:      %d\n", s.TotalEmails)
	fmt.Fprintf(w, "Last 24 hours:     %d\n", s.EmailsLast24h)
	fmt.Fprintf(w, "Resolved:          %s\n", successStyle.Render(fmt.Sprint(s.EmailsResolved)))
	fmt.Fprintf(w, "Pending:           %s\n", warningStyle.Render(fmt.Sprint(s.EmailsPending)))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Urgent / normal:   %s / %d\n", urgentStyle.Render(fmt.Sprint(s.PriorityBreakdown.Urgent)), s.PriorityBreakdown.Normal)
	fmt.Fprintf(w, "Sentiment:         %d positive, %d negative, %d neutral\n",
		s.SentimentBreakdown.Positive, s.SentimentBreakdown.Negative, s.SentimentBreakdown.Neutral)
}

func printEmail(w io.Writer, e *inbox.Email, last *history.Reply) {
	fmt.Fprintln(w, titleStyle.Render(e.Subject))
	field := func(name, value string) {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(pad(name+":", 11)), value)
	}
	field("ID", e.ID)
	field("From", e.Sender)
	field("Sent", e.SentDate)
	field("Priority", priorityLabel(e.Priority))
	field("Sentiment", sentimentLabel(e.Sentiment))
	field("Category", accentStyle.Render(e.Category))
	field("Status", statusLabel(e.Status))

	info := e.ExtractedInfo
	if len(info.ContactDetails) > 0 {
		field("Contacts", strings.Join(info.ContactDetails, ", "))
	}
	if len(info.SentimentIndicators) > 0 {
		field("Signals", strings.Join(info.SentimentIndicators, ", "))
	}
	field("Words", fmt.Sprint(info.Metadata.WordCount))
	for _, req := range info.Requirements {
		field("Requirement", req)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, e.Body)
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Draft reply"))
	fmt.Fprintln(w, draftStyle.Render(e.AIResponse))

	if last != nil {
		fmt.Fprintln(w)
		printReplyLine(w, *last)
	}
}

func printReplyLine(w io.Writer, r history.Reply) {
	status := successStyle.Render("✅ sent")
	if r.Status == history.StatusFailed {
		status = errorStyle.Render("❌ failed")
	}
	line := fmt.Sprintf("%s  %s  %s  %s via %s", r.SentAt.Format("2006-01-02 15:04"), status, r.EmailID, r.Recipient, r.Provider)
	if r.Edited {
		line += labelStyle.Render(" (edited)")
	}
	if r.Error != "" {
		line += "\n    " + errorStyle.Render(r.Error)
	}
	fmt.Fprintln(w, line)
}
