package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = 8080
	defaultTeamName       = "Customer Support Team"
	defaultSourceTimeout  = 30
	defaultInboxDays      = 7
	defaultSendRatePerMin = 30
)

// Environment variables that override secrets from the config file.
const (
	EnvSMTPPassword = "TRIAGE_SMTP_PASSWORD"
	EnvEmailAPIKey  = "TRIAGE_EMAIL_API_KEY"
	EnvIMAPPassword = "TRIAGE_IMAP_PASSWORD"
)

func checkFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %04o; should be 0600", path, perm)
	}
	return nil
}

type Config struct {
	Source      SourceConfig    `yaml:"source"`
	RulesFile   string          `yaml:"rules_file,omitempty"`
	Responder   ResponderConfig `yaml:"responder"`
	Email       EmailConfig     `yaml:"email"`
	Inbox       InboxConfig     `yaml:"inbox,omitempty"`
	Web         WebConfig       `yaml:"web"`
	Log         LogConfig       `yaml:"log"`
	HistoryPath string          `yaml:"history_path,omitempty"`
}

// SourceConfig points at the delimited-text export of support emails.
type SourceConfig struct {
	Location   string `yaml:"location"`              // file path or http(s) URL
	Separator  string `yaml:"separator,omitempty"`   // single character, default ","
	TimeoutSec int    `yaml:"timeout_sec,omitempty"` // HTTP fetch timeout
}

// ResponderConfig customizes reply drafts.
type ResponderConfig struct {
	TeamName string `yaml:"team_name"`
}

// InboxConfig holds IMAP settings for reading support mail directly
type InboxConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider"` // "gmail", "outlook", "imap"
	Server   string `yaml:"server"`   // e.g., "imap.gmail.com"
	Port     int    `yaml:"port"`     // e.g., 993
	Email    string `yaml:"email"`    // Email address to read
	Password string `yaml:"password"` // App password (not main password)
	Folder   string `yaml:"folder"`   // Folder to read (default: "INBOX")
	Days     int    `yaml:"days"`     // How far back to look
}

type EmailConfig struct {
	Provider string     `yaml:"provider"` // "smtp", "resend", "sendgrid"
	From     string     `yaml:"from"`
	FromName string     `yaml:"from_name,omitempty"`
	APIKey   string     `yaml:"api_key,omitempty"`
	SMTP     SMTPConfig `yaml:"smtp,omitempty"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	UseTLS   bool   `yaml:"use_tls"`
}

type WebConfig struct {
	Port           int `yaml:"port"`
	SendRatePerMin int `yaml:"send_rate_per_min,omitempty"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development,omitempty"`
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".triage", "config.yaml")
}

func DefaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "triage_history.db"
	}
	return filepath.Join(home, ".triage", "history.db")
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func Load(path string) (*Config, error) {
	if err := checkFilePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: %v\n", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to Default otherwise.
// Secrets from the environment (and a .env file in the working directory) are
// applied in both cases.
func LoadOrDefault(path string) (*Config, error) {
	var cfg *Config
	if _, err := os.Stat(path); err == nil {
		cfg, err = Load(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = Default()
	}
	cfg.ApplyEnv(".env")
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Source.Separator == "" {
		c.Source.Separator = ","
	}
	if c.Source.TimeoutSec == 0 {
		c.Source.TimeoutSec = defaultSourceTimeout
	}
	if c.Responder.TeamName == "" {
		c.Responder.TeamName = defaultTeamName
	}
	if c.Email.Provider == "" {
		c.Email.Provider = "smtp"
	}
	if c.Web.Port == 0 {
		c.Web.Port = defaultPort
	}
	if c.Web.SendRatePerMin == 0 {
		c.Web.SendRatePerMin = defaultSendRatePerMin
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.HistoryPath == "" {
		c.HistoryPath = DefaultHistoryPath()
	}

	// Set inbox defaults
	if c.Inbox.Folder == "" {
		c.Inbox.Folder = "INBOX"
	}
	if c.Inbox.Days == 0 {
		c.Inbox.Days = defaultInboxDays
	}
	if c.Inbox.Provider == "gmail" && c.Inbox.Server == "" {
		c.Inbox.Server = "imap.gmail.com"
		c.Inbox.Port = 993
	}
	if c.Inbox.Provider == "outlook" && c.Inbox.Server == "" {
		c.Inbox.Server = "outlook.office365.com"
		c.Inbox.Port = 993
	}
}

// ApplyEnv loads dotenvPath if present and lets environment variables
// override the secrets in c.
func (c *Config) ApplyEnv(dotenvPath string) {
	if dotenvPath != "" {
		// A missing .env file is the common case.
		_ = godotenv.Load(dotenvPath)
	}
	if v := os.Getenv(EnvSMTPPassword); v != "" {
		c.Email.SMTP.Password = v
	}
	if v := os.Getenv(EnvEmailAPIKey); v != "" {
		c.Email.APIKey = v
	}
	if v := os.Getenv(EnvIMAPPassword); v != "" {
		c.Inbox.Password = v
	}
}

// SeparatorRune returns the configured separator as a rune.
func (c *Config) SeparatorRune() rune {
	for _, r := range c.Source.Separator {
		return r
	}
	return ','
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// ValidateSource checks the record source settings.
func (c *Config) ValidateSource() error {
	if c.Source.Location == "" {
		return fmt.Errorf("source: location is required")
	}
	if len([]rune(c.Source.Separator)) != 1 {
		return fmt.Errorf("source: separator must be a single character, got %q", c.Source.Separator)
	}
	return nil
}

// Validate checks the outbound email settings used to send replies.
func (c *Config) Validate() error {
	if c.Email.From == "" {
		return fmt.Errorf("email: from address is required")
	}

	switch c.Email.Provider {
	case "smtp":
		if c.Email.SMTP.Host == "" {
			return fmt.Errorf("email.smtp: host is required")
		}
		if c.Email.SMTP.Port == 0 {
			return fmt.Errorf("email.smtp: port is required")
		}
	case "resend", "sendgrid":
		if c.Email.APIKey == "" {
			return fmt.Errorf("email: api_key is required for provider %q", c.Email.Provider)
		}
	default:
		return fmt.Errorf("email: unknown provider %q (smtp, resend or sendgrid)", c.Email.Provider)
	}

	return nil
}

// ValidateInbox validates inbox configuration (only called when the IMAP source is used)
func (c *Config) ValidateInbox() error {
	if !c.Inbox.Enabled {
		return fmt.Errorf("inbox: IMAP source is not enabled in config")
	}
	if c.Inbox.Email == "" {
		return fmt.Errorf("inbox: email address is required")
	}
	if c.Inbox.Password == "" {
		return fmt.Errorf("inbox: password (app password) is required")
	}
	if c.Inbox.Server == "" {
		return fmt.Errorf("inbox: IMAP server is required")
	}
	if c.Inbox.Port == 0 {
		return fmt.Errorf("inbox: IMAP port is required")
	}
	return nil
}
