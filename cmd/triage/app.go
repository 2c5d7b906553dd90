package main

import (
	"fmt"
	"time"

	"github.com/supportdesk/triage/internal/config"
	"github.com/supportdesk/triage/internal/email"
	"github.com/supportdesk/triage/internal/history"
	"github.com/supportdesk/triage/internal/inbox"
	"github.com/supportdesk/triage/internal/logger"
	"github.com/supportdesk/triage/internal/metrics"
	"github.com/supportdesk/triage/internal/rules"
	"github.com/supportdesk/triage/internal/source"
	"github.com/supportdesk/triage/internal/template"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	location   string
	separator  string
	rulesPath  string
	verbose    bool
	jsonOut    bool
}

func (o *globalOptions) resolveConfigPath() string {
	if o.configPath != "" {
		return o.configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig reads the config file and applies command-line overrides.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(o.resolveConfigPath())
	if err != nil {
		return nil, err
	}
	if o.location != "" {
		cfg.Source.Location = o.location
	}
	if o.separator != "" {
		cfg.Source.Separator = o.separator
	}
	if o.rulesPath != "" {
		cfg.RulesFile = o.rulesPath
	}
	return cfg, nil
}

// app is the wired pipeline a command runs against.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	metrics *metrics.Metrics
	rules   *rules.Compiled
	store   *inbox.Store
}

// sourceFunc builds the record source once the logger exists.
type sourceFunc func(cfg *config.Config, log logger.Logger) (source.Source, error)

func csvSource(cfg *config.Config, _ logger.Logger) (source.Source, error) {
	if err := cfg.ValidateSource(); err != nil {
		return nil, fmt.Errorf("%w (set it in the config file or pass --source)", err)
	}
	timeout := time.Duration(cfg.Source.TimeoutSec) * time.Second
	return source.NewCSVSource(cfg.Source.Location, cfg.SeparatorRune(), timeout), nil
}

func imapSource(days int) sourceFunc {
	return func(cfg *config.Config, log logger.Logger) (source.Source, error) {
		if err := cfg.ValidateInbox(); err != nil {
			return nil, fmt.Errorf("%w (run 'triage init' to configure the inbox)", err)
		}
		if days <= 0 {
			days = cfg.Inbox.Days
		}
		return source.NewIMAPSource(cfg.Inbox, days, log), nil
	}
}

// newApp builds the logger, rules, responder, processor and store. Verbose
// logging is on for serve and when --verbose is set.
func newApp(opts *globalOptions, cfg *config.Config, newSource sourceFunc, serving bool) (*app, error) {
	logCfg := logger.Config{Level: cfg.Log.Level, Development: cfg.Log.Development}
	if !serving && !opts.verbose {
		logCfg.Level = "warn"
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, err
	}

	rs, err := rules.Load(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	compiled := rules.Compile(rs)

	responder, err := template.NewEngine(compiled, cfg.Responder.TeamName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize responder: %w", err)
	}

	m := metrics.New()
	proc, err := inbox.NewProcessor(compiled, responder, inbox.WithLogger(log), inbox.WithMetrics(m))
	if err != nil {
		return nil, err
	}

	src, err := newSource(cfg, log)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		log:     log,
		metrics: m,
		rules:   compiled,
		store:   inbox.NewStore(src, proc, inbox.WithLogger(log), inbox.WithMetrics(m)),
	}, nil
}

func (a *app) openHistory() (*history.Store, error) {
	h, err := history.NewStore(a.cfg.HistoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open reply history: %w", err)
	}
	return h, nil
}

// newOutbox wires the configured email provider. It fails when the email
// settings are incomplete.
func (a *app) newOutbox(h *history.Store) (*email.Outbox, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	sender, err := email.NewSender(a.cfg.Email)
	if err != nil {
		return nil, err
	}
	return &email.Outbox{
		Sender:   sender,
		Store:    a.store,
		History:  h,
		From:     a.cfg.Email.From,
		FromName: a.cfg.Email.FromName,
		Metrics:  a.metrics,
		Log:      a.log,
	}, nil
}

func (a *app) close() {
	a.log.Sync()
}
