package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "triage",
		Short: "Triage - Support inbox classification and reply drafting",
		Long: `Triage reads support emails from a CSV file or URL (or an IMAP inbox),
keeps the ones that look like support requests, and classifies each by
priority, sentiment and category. It extracts contact details and
requirements, drafts a reply, and can send it through SMTP, Resend or
SendGrid.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is $HOME/.triage/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.location, "source", "", "CSV file path or http(s) URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&opts.separator, "separator", "", "CSV field separator (overrides config)")
	rootCmd.PersistentFlags().StringVar(&opts.rulesPath, "rules", "", "keyword rules file or directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline activity to stderr")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print machine-readable JSON")

	// Add commands
	rootCmd.AddCommand(initCmd(opts))
	rootCmd.AddCommand(processCmd(opts))
	rootCmd.AddCommand(listCmd(opts))
	rootCmd.AddCommand(statsCmd(opts))
	rootCmd.AddCommand(showCmd(opts))
	rootCmd.AddCommand(sendCmd(opts))
	rootCmd.AddCommand(historyCmd(opts))
	rootCmd.AddCommand(inboxCmd(opts))
	rootCmd.AddCommand(rulesCmd(opts))
	rootCmd.AddCommand(serveCmd(opts))

	return rootCmd
}
