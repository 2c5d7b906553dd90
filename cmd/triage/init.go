package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/supportdesk/triage/internal/config"
	"github.com/supportdesk/triage/internal/email"
)

func initCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration",
		Long:  "Interactive setup for the email source, reply signature and outbound email provider.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.InOrStdin(), cmd.OutOrStdout(), opts.resolveConfigPath())
		},
	}
}

func runInit(in io.Reader, out io.Writer, configPath string) error {
	reader := bufio.NewReader(in)
	ask := func(msg string) string { return prompt(reader, out, msg) }

	fmt.Fprintln(out, titleStyle.Render("📨 Triage Configuration Setup"))
	fmt.Fprintln(out, "==============================")
	fmt.Fprintln(out)

	cfg := config.Default()

	// Source
	fmt.Fprintln(out, "📄 Email Source")
	fmt.Fprintln(out)
	cfg.Source.Location = ask("CSV file path or URL: ")
	if sep := ask("Field separator [,]: "); sep != "" {
		cfg.Source.Separator = sep
	}
	if err := cfg.ValidateSource(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "✍️  Reply Signature")
	fmt.Fprintln(out)
	if team := ask(fmt.Sprintf("Team name [%s]: ", cfg.Responder.TeamName)); team != "" {
		cfg.Responder.TeamName = team
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "📧 Email Settings")
	fmt.Fprintln(out)
	if provider := strings.ToLower(ask("Provider (smtp, resend, sendgrid) [smtp]: ")); provider != "" {
		cfg.Email.Provider = provider
	}
	cfg.Email.From = ask("From address: ")
	if cfg.Email.From != "" {
		if err := email.ValidateEmail(cfg.Email.From); err != nil {
			return err
		}
	}
	cfg.Email.FromName = ask("From name (optional): ")

	switch cfg.Email.Provider {
	case "smtp":
		fmt.Fprintln(out)
		fmt.Fprintln(out, "SMTP Configuration:")
		fmt.Fprintln(out, "  (Gmail needs an app password: https://support.google.com/accounts/answer/185833)")
		fmt.Fprintln(out)
		cfg.Email.SMTP.Host = ask("  Host [smtp.gmail.com]: ")
		if cfg.Email.SMTP.Host == "" {
			cfg.Email.SMTP.Host = "smtp.gmail.com"
		}
		cfg.Email.SMTP.Port = 465
		if p := ask("  Port [465]: "); p != "" {
			port, err := strconv.Atoi(p)
			if err != nil {
				return fmt.Errorf("invalid SMTP port %q", p)
			}
			cfg.Email.SMTP.Port = port
		}
		cfg.Email.SMTP.UseTLS = true
		cfg.Email.SMTP.Username = ask("  Username: ")
		cfg.Email.SMTP.Password = ask(fmt.Sprintf("  Password (or set %s): ", config.EnvSMTPPassword))
	case "resend", "sendgrid":
		cfg.Email.APIKey = ask(fmt.Sprintf("API key (or set %s): ", config.EnvEmailAPIKey))
	default:
		return fmt.Errorf("unknown provider %q", cfg.Email.Provider)
	}

	if err := config.Save(configPath, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s %s\n", successStyle.Render("✅ Configuration saved to"), configPath)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  triage process     # classify the source and draft replies")
	fmt.Fprintln(out, "  triage serve       # serve the collection over HTTP")
	return nil
}

func prompt(reader *bufio.Reader, out io.Writer, message string) string {
	fmt.Fprint(out, message)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return ""
	}
	return strings.TrimSpace(input)
}
