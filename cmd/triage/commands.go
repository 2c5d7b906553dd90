package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/supportdesk/triage/internal/email"
	"github.com/supportdesk/triage/internal/history"
	"github.com/supportdesk/triage/internal/inbox"
	"github.com/supportdesk/triage/internal/logger"
	"github.com/supportdesk/triage/internal/rules"
	"github.com/supportdesk/triage/internal/web"
)

// loaded is an app whose collection has been populated once.
type loaded struct {
	*app
	result  inbox.LoadResult
	loadErr error
}

func loadApp(ctx context.Context, opts *globalOptions, newSource sourceFunc) (*loaded, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := newApp(opts, cfg, newSource, false)
	if err != nil {
		return nil, err
	}
	res, loadErr := a.store.Load(ctx)
	return &loaded{app: a, result: res, loadErr: loadErr}, nil
}

type processOutput struct {
	Load   inbox.LoadResult `json:"load"`
	Error  string           `json:"error,omitempty"`
	Stats  inbox.Stats      `json:"stats"`
	Emails []*inbox.Email   `json:"emails"`
}

func renderProcess(w io.Writer, opts *globalOptions, l *loaded) error {
	emails := l.store.Records()
	stats := l.store.StatsNow()

	if opts.jsonOut {
		out := processOutput{Load: l.result, Stats: stats, Emails: emails}
		if l.loadErr != nil {
			out.Error = l.loadErr.Error()
		}
		return writeJSON(w, out)
	}

	printLoad(w, l.result, l.loadErr)
	fmt.Fprintln(w)
	printStats(w, stats)
	fmt.Fprintln(w)
	printEmails(w, emails)
	return nil
}

func processCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Load, classify and summarize support emails",
		Long: `Read the configured CSV source, keep support requests, classify and
enrich each one, draft replies, and print the summary and the sorted list.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadApp(cmd.Context(), opts, csvSource)
			if err != nil {
				return err
			}
			defer l.close()
			return renderProcess(cmd.OutOrStdout(), opts, l)
		},
	}
}

func inboxCmd(opts *globalOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Process support emails straight from an IMAP mailbox",
		Long: `Connect to the inbox configured in config.yaml over IMAP, fetch the
messages received in the last --days days, and run them through the same
pipeline as 'triage process'. Replies sent afterwards thread onto the
original Message-ID.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadApp(cmd.Context(), opts, imapSource(days))
			if err != nil {
				return err
			}
			defer l.close()
			return renderProcess(cmd.OutOrStdout(), opts, l)
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Number of days to look back (default from config)")
	return cmd
}

func listCmd(opts *globalOptions) *cobra.Command {
	var criteria inbox.Criteria

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processed emails, optionally filtered",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadApp(cmd.Context(), opts, csvSource)
			if err != nil {
				return err
			}
			defer l.close()

			emails := l.store.Filter(criteria)
			w := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(w, map[string]any{"emails": emails, "count": len(emails), "total": l.store.Len()})
			}
			if l.loadErr != nil {
				printLoad(w, l.result, l.loadErr)
			}
			printEmails(w, emails)
			fmt.Fprintf(w, "\n%s\n", labelStyle.Render(fmt.Sprintf("%d of %d emails", len(emails), l.store.Len())))
			return nil
		},
	}

	cmd.Flags().StringVar(&criteria.Search, "search", "", "Case-insensitive text to find in subject, body or sender")
	cmd.Flags().StringVar(&criteria.Priority, "priority", "", "Filter by priority (urgent, normal or all)")
	cmd.Flags().StringVar(&criteria.Sentiment, "sentiment", "", "Filter by sentiment (positive, negative, neutral or all)")
	cmd.Flags().StringVar(&criteria.Status, "status", "", "Filter by status (pending, resolved or all)")
	return cmd
}

func statsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show collection statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadApp(cmd.Context(), opts, csvSource)
			if err != nil {
				return err
			}
			defer l.close()

			stats := l.store.StatsNow()
			w := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(w, stats)
			}
			if l.loadErr != nil {
				printLoad(w, l.result, l.loadErr)
			}
			printStats(w, stats)
			return nil
		},
	}
}

func showCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one email with its extracted details and draft reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadApp(cmd.Context(), opts, csvSource)
			if err != nil {
				return err
			}
			defer l.close()

			e, ok := l.store.Get(args[0])
			if !ok {
				if l.loadErr != nil {
					return fmt.Errorf("email %s not found: %w", args[0], l.loadErr)
				}
				return fmt.Errorf("email %s not found", args[0])
			}

			var last *history.Reply
			if h, err := l.openHistory(); err == nil {
				last, err = h.LastForEmail(e.ID)
				if err != nil {
					l.log.Warn("Failed to read reply history", logger.Error(err))
				}
				h.Close()
			}

			w := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(w, map[string]any{"email": e, "lastReply": last})
			}
			printEmail(w, e, last)
			return nil
		},
	}
}

func sendCmd(opts *globalOptions) *cobra.Command {
	var dryRun bool
	var body string
	var bodyFile string

	cmd := &cobra.Command{
		Use:   "send <id>",
		Short: "Send the reply for one email",
		Long: `Send the drafted reply (or a custom body) to the email's sender through the
configured provider. A successful send marks the email resolved and is
recorded in the reply history.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if bodyFile != "" {
				data, err := os.ReadFile(bodyFile)
				if err != nil {
					return fmt.Errorf("failed to read body file: %w", err)
				}
				body = string(data)
			}

			l, err := loadApp(cmd.Context(), opts, csvSource)
			if err != nil {
				return err
			}
			defer l.close()
			if l.loadErr != nil {
				return l.loadErr
			}

			return runSend(cmd.Context(), cmd.OutOrStdout(), opts, l, args[0], body, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the message without sending")
	cmd.Flags().StringVar(&body, "body", "", "Reply body to send instead of the draft")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "Read the reply body from a file")
	return cmd
}

func runSend(ctx context.Context, w io.Writer, opts *globalOptions, l *loaded, id, body string, dryRun bool) error {
	if dryRun {
		preview := &email.Outbox{Store: l.store, From: l.cfg.Email.From, FromName: l.cfg.Email.FromName}
		msg, err := preview.Preview(id, body)
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		if opts.jsonOut {
			return writeJSON(w, map[string]string{"to": msg.To, "subject": msg.Subject, "body": msg.Body})
		}
		fmt.Fprintln(w, titleStyle.Render("🔍 DRY RUN - no email sent"))
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("To:     "), msg.To)
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Subject:"), msg.Subject)
		fmt.Fprintln(w)
		fmt.Fprintln(w, draftStyle.Render(msg.Body))
		return nil
	}

	h, err := l.openHistory()
	if err != nil {
		return err
	}
	defer h.Close()

	outbox, err := l.newOutbox(h)
	if err != nil {
		return fmt.Errorf("email not configured: %w (run 'triage init')", err)
	}

	result, err := outbox.Send(ctx, id, body)
	if err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	if !result.Success {
		if result.Error == nil {
			return fmt.Errorf("delivery failed for %s", id)
		}
		return fmt.Errorf("delivery failed for %s: %w", id, result.Error)
	}

	if opts.jsonOut {
		return writeJSON(w, map[string]string{"id": id, "messageId": result.MessageID, "status": string(inbox.StatusResolved)})
	}
	fmt.Fprintf(w, "%s %s (message id %s)\n", successStyle.Render("✅ Reply sent for"), id, result.MessageID)
	return nil
}

func historyCmd(opts *globalOptions) *cobra.Command {
	var limit int
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show sent replies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			h, err := history.NewStore(cfg.HistoryPath)
			if err != nil {
				return fmt.Errorf("failed to open reply history: %w", err)
			}
			defer h.Close()

			w := cmd.OutOrStdout()
			if clearFailed {
				n, err := h.DeleteByStatus(history.StatusFailed)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return writeJSON(w, map[string]int64{"deleted": n})
				}
				fmt.Fprintf(w, "Deleted %d failed records\n", n)
				return nil
			}

			replies, err := h.GetRecent(limit)
			if err != nil {
				return err
			}
			stats, err := h.GetStats()
			if err != nil {
				return err
			}

			if opts.jsonOut {
				if replies == nil {
					replies = []history.Reply{}
				}
				return writeJSON(w, map[string]any{"replies": replies, "stats": stats})
			}

			fmt.Fprintln(w, titleStyle.Render("📬 Reply History"))
			fmt.Fprintf(w, "Total: %d   Sent: %s   Failed: %s\n\n",
				stats.Total,
				successStyle.Render(fmt.Sprint(stats.Sent)),
				errorStyle.Render(fmt.Sprint(stats.Failed)),
			)
			if len(replies) == 0 {
				fmt.Fprintln(w, labelStyle.Render("No replies sent yet."))
				return nil
			}
			for _, r := range replies {
				printReplyLine(w, r)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of recent replies to show")
	cmd.Flags().BoolVar(&clearFailed, "clear-failed", false, "Delete failed delivery records")
	return cmd
}

func rulesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the effective keyword rules",
		Long: `Print the keyword tables in effect: the built-in defaults merged with the
rules file or directory from --rules or the config. Use the output as a
starting point for a custom rules file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			rs, err := rules.Load(cfg.RulesFile)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(w, rs)
			}
			data, err := rs.Marshal()
			if err != nil {
				return err
			}
			_, err = w.Write(data)
			return err
		},
	}
}

func serveCmd(opts *globalOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the processed collection over an HTTP API",
		Long: `Load the collection and serve it on localhost as a JSON API. Clients can
list and filter emails, change their status, send replies, reload the
source, and read statistics. Prometheus metrics are served at /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, port)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from config, 8080)")
	return cmd
}

func runServe(opts *globalOptions, port int) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Web.Port
	}

	a, err := newApp(opts, cfg, csvSource, true)
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := a.store.Load(context.Background()); err != nil {
		a.log.Warn("Initial load failed, serving an empty collection", logger.Error(err))
	}

	// Initialize history store
	h, err := a.openHistory()
	if err != nil {
		a.log.Warn("Reply history unavailable", logger.Error(err))
	} else {
		defer h.Close()
	}

	outbox, err := a.newOutbox(h)
	if err != nil {
		a.log.Warn("Sending disabled", logger.Error(err))
		outbox = nil
	}

	server, err := web.NewServer(port, web.Deps{
		Store:          a.store,
		Outbox:         outbox,
		History:        h,
		Metrics:        a.metrics,
		Logger:         a.log,
		RulesVersion:   a.rules.Rules.Version,
		SendRatePerMin: cfg.Web.SendRatePerMin,
	})
	if err != nil {
		return fmt.Errorf("failed to create web server: %w", err)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	fmt.Printf("🚀 Triage API on http://127.0.0.1:%d (%d emails)\n", port, a.store.Len())
	return server.Start()
}
