// backend/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stockvaluatorpro/taxdata/backend/models"
)

// Config is the resolved, immutable application configuration. It is built
// once by Load (or Resolve) and threaded into every component constructor;
// nothing reads configuration ambiently.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Source   SourceConfig   `yaml:"source"`
	Update   UpdateConfig   `yaml:"update"`
	Notify   NotifyConfig   `yaml:"notify"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	// Path is the SQLite database file holding both the reference tables
	// and the update history.
	Path string `yaml:"path"`
	// BackupDir receives timestamped snapshot files after imports.
	BackupDir string `yaml:"backup_dir"`
}

// SourceConfig describes the authoritative publisher. The per-dataset
// descriptors (page path, document extension, anchor-text hints) are data,
// not code: a page redesign is a config change, not a rebuild.
type SourceConfig struct {
	BaseURL     string                                         `yaml:"base_url"`
	UserAgent   string                                         `yaml:"user_agent"`
	Descriptors map[models.DatasetType]models.SourceDescriptor `yaml:"descriptors"`
	// RequestsPerMinute caps outbound requests to the source host.
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

type UpdateConfig struct {
	ProbeTimeoutStr    string `yaml:"probe_timeout"`
	DownloadTimeoutStr string `yaml:"download_timeout"`
	MaxRetries         int    `yaml:"max_retries"`
	RetryBaseDelayStr  string `yaml:"retry_base_delay"`
	ForceRecheckDays   int    `yaml:"force_recheck_days"`
	CheckIntervalHours int    `yaml:"check_interval_hours"`
	DownloadDir        string `yaml:"download_dir"`
	// AutoApply makes the scheduler approve detected updates itself using
	// SystemApprover. Off by default: a human approves every write.
	AutoApply      bool   `yaml:"auto_apply"`
	SystemApprover string `yaml:"system_approver"`

	ProbeTimeout    time.Duration `yaml:"-"` // parsed from ProbeTimeoutStr
	DownloadTimeout time.Duration `yaml:"-"`
	RetryBaseDelay  time.Duration `yaml:"-"`
}

type NotifyConfig struct {
	// Disabled suppresses all update notifications. Notifications are on
	// by default, so the override flag is the negative form.
	Disabled        bool   `yaml:"disabled"`
	SlackWebhookURL string `yaml:"slack_webhook_url"`
	AdminPanelURL   string `yaml:"admin_panel_url"`
}

// Defaults returns the baseline configuration: the published NTA locations
// for the three datasets and conservative polling behavior.
func Defaults() Config {
	return Config{
		Server: ServerConfig{Port: "8080"},
		Database: DatabaseConfig{
			Path:      "data/tax_data.db",
			BackupDir: "backups",
		},
		Source: SourceConfig{
			BaseURL:   "https://www.nta.go.jp",
			UserAgent: "StockValuatorPro/1.0 (https://stock-valuator-pro.com)",
			Descriptors: map[models.DatasetType]models.SourceDescriptor{
				models.DatasetComparableIndustry: {
					Type:        models.DatasetComparableIndustry,
					PagePath:    "/taxanswer/sozoku/4608.htm",
					DocumentExt: ".pdf",
					LinkHints:   []string{"類似業種"},
				},
				models.DatasetDividendReduction: {
					Type:        models.DatasetDividendReduction,
					PagePath:    "/taxanswer/sozoku/4609.htm",
					DocumentExt: ".pdf",
					LinkHints:   []string{"配当還元"},
				},
				models.DatasetCompanySize: {
					Type:        models.DatasetCompanySize,
					PagePath:    "/taxanswer/sozoku/4610.htm",
					DocumentExt: ".pdf",
					LinkHints:   []string{"会社規模"},
				},
			},
			RequestsPerMinute: 30,
		},
		Update: UpdateConfig{
			ProbeTimeoutStr:    "10s",
			DownloadTimeoutStr: "30s",
			MaxRetries:         3,
			RetryBaseDelayStr:  "2s",
			ForceRecheckDays:   30,
			CheckIntervalHours: 168, // weekly
			DownloadDir:        "downloads",
			AutoApply:          false,
			SystemApprover:     "scheduler",
		},
		Notify: NotifyConfig{
			AdminPanelURL: "https://admin.stock-valuator-pro.com/updates",
		},
	}
}

// Resolve merges overrides onto Defaults and validates the result. Every
// recognized option and its effect:
//
//	server.port                 HTTP listen port.
//	database.path               SQLite file for reference data + history.
//	database.backup_dir         directory for post-import snapshots.
//	source.base_url             publisher origin; joined with page paths.
//	source.user_agent           identifying User-Agent on every request.
//	source.descriptors          per-dataset page path, document extension
//	                            and anchor-text hints for link discovery.
//	source.requests_per_minute  outbound request cap toward the publisher.
//	update.probe_timeout        HEAD probe deadline (freshness check).
//	update.download_timeout     page/document GET deadline.
//	update.max_retries          document download attempts before giving up.
//	update.retry_base_delay     first retry delay; doubles per attempt.
//	update.force_recheck_days   treat source as changed after this many days
//	                            without validator movement.
//	update.check_interval_hours scheduler tick interval.
//	update.download_dir         scratch directory for fetched documents.
//	update.auto_apply           scheduler approves updates itself (unattended).
//	update.system_approver      approver identity recorded for auto_apply.
//	notify.disabled             suppresses update notifications entirely.
//	notify.slack_webhook_url    Slack incoming-webhook target, if any.
//	notify.admin_panel_url      approval URL included in notifications.
//
// Zero-valued override fields keep their defaults; there is no nested
// partial-structure merging beyond the explicit per-field checks below.
func Resolve(overrides Config) (*Config, error) {
	cfg := Defaults()

	if overrides.Server.Port != "" {
		cfg.Server.Port = overrides.Server.Port
	}
	if overrides.Database.Path != "" {
		cfg.Database.Path = overrides.Database.Path
	}
	if overrides.Database.BackupDir != "" {
		cfg.Database.BackupDir = overrides.Database.BackupDir
	}
	if overrides.Source.BaseURL != "" {
		cfg.Source.BaseURL = overrides.Source.BaseURL
	}
	if overrides.Source.UserAgent != "" {
		cfg.Source.UserAgent = overrides.Source.UserAgent
	}
	if overrides.Source.RequestsPerMinute > 0 {
		cfg.Source.RequestsPerMinute = overrides.Source.RequestsPerMinute
	}
	for t, d := range overrides.Source.Descriptors {
		if _, err := models.ParseDatasetType(string(t)); err != nil {
			return nil, fmt.Errorf("config: source descriptor: %w", err)
		}
		base := cfg.Source.Descriptors[t]
		if d.PagePath != "" {
			base.PagePath = d.PagePath
		}
		if d.DocumentExt != "" {
			base.DocumentExt = d.DocumentExt
		}
		if len(d.LinkHints) > 0 {
			base.LinkHints = d.LinkHints
		}
		base.Type = t
		cfg.Source.Descriptors[t] = base
	}
	if overrides.Update.ProbeTimeoutStr != "" {
		cfg.Update.ProbeTimeoutStr = overrides.Update.ProbeTimeoutStr
	}
	if overrides.Update.DownloadTimeoutStr != "" {
		cfg.Update.DownloadTimeoutStr = overrides.Update.DownloadTimeoutStr
	}
	if overrides.Update.MaxRetries > 0 {
		cfg.Update.MaxRetries = overrides.Update.MaxRetries
	}
	if overrides.Update.RetryBaseDelayStr != "" {
		cfg.Update.RetryBaseDelayStr = overrides.Update.RetryBaseDelayStr
	}
	if overrides.Update.ForceRecheckDays > 0 {
		cfg.Update.ForceRecheckDays = overrides.Update.ForceRecheckDays
	}
	if overrides.Update.CheckIntervalHours > 0 {
		cfg.Update.CheckIntervalHours = overrides.Update.CheckIntervalHours
	}
	if overrides.Update.DownloadDir != "" {
		cfg.Update.DownloadDir = overrides.Update.DownloadDir
	}
	if overrides.Update.AutoApply {
		cfg.Update.AutoApply = true
	}
	if overrides.Update.SystemApprover != "" {
		cfg.Update.SystemApprover = overrides.Update.SystemApprover
	}
	if overrides.Notify.Disabled {
		cfg.Notify.Disabled = true
	}
	if overrides.Notify.SlackWebhookURL != "" {
		cfg.Notify.SlackWebhookURL = overrides.Notify.SlackWebhookURL
	}
	if overrides.Notify.AdminPanelURL != "" {
		cfg.Notify.AdminPanelURL = overrides.Notify.AdminPanelURL
	}

	var err error
	if cfg.Update.ProbeTimeout, err = time.ParseDuration(cfg.Update.ProbeTimeoutStr); err != nil {
		return nil, fmt.Errorf("config: invalid probe_timeout: %w", err)
	}
	if cfg.Update.DownloadTimeout, err = time.ParseDuration(cfg.Update.DownloadTimeoutStr); err != nil {
		return nil, fmt.Errorf("config: invalid download_timeout: %w", err)
	}
	if cfg.Update.RetryBaseDelay, err = time.ParseDuration(cfg.Update.RetryBaseDelayStr); err != nil {
		return nil, fmt.Errorf("config: invalid retry_base_delay: %w", err)
	}
	return &cfg, nil
}

// Load reads a YAML config file and resolves it over the defaults. An empty
// path resolves the defaults alone.
func Load(configPath string) (*Config, error) {
	var overrides Config
	if configPath != "" {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(file, &overrides); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}
	return Resolve(overrides)
}

// DescriptorFor returns the source descriptor for a dataset type.
func (c *Config) DescriptorFor(t models.DatasetType) (models.SourceDescriptor, error) {
	d, ok := c.Source.Descriptors[t]
	if !ok {
		return models.SourceDescriptor{}, fmt.Errorf("no source descriptor configured for dataset type %s", t)
	}
	return d, nil
}
