package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Database   DatabaseConfig
	GitHub     GitHubConfig
	Mercury    MercuryConfig
	QuickBooks QuickBooksConfig
	Slack      SlackConfig
	Sync       SyncConfig
	Scheduler  SchedulerConfig
	Telemetry  TelemetryConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type GitHubConfig struct {
	Token string
	Org   string
	// Repo scopes extraction to a single repository. The value "ALL"
	// fans out across every repository in the org.
	Repo string
}

// AllRepos reports whether extraction should cover the whole organization.
func (g GitHubConfig) AllRepos() bool {
	return g.Repo == "" || strings.EqualFold(g.Repo, "ALL")
}

type MercuryConfig struct {
	APIKey  string
	BaseURL string
}

type QuickBooksConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	RealmID      string
	Sandbox      bool
}

type SlackConfig struct {
	// Up to three webhook destinations; empty entries are skipped.
	WebhookURLs []string
}

type SyncConfig struct {
	LookbackDays int
}

type SchedulerConfig struct {
	ScheduleTimes []string
	WorkerCount   int
	JobDelay      time.Duration
	QueueSize     int
	RunOnStartup  bool
	ReportWeekday time.Weekday
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string
	MetricsPort  string
}

func Load() (*Config, error) {
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	lookback, err := strconv.Atoi(getEnv("SYNC_LOOKBACK_DAYS", "90"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_LOOKBACK_DAYS: %w", err)
	}

	schedulerWorkers, err := strconv.Atoi(getEnv("SCHEDULER_WORKERS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_WORKERS: %w", err)
	}
	schedulerJobDelay, err := time.ParseDuration(getEnv("SCHEDULER_JOB_DELAY", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_JOB_DELAY: %w", err)
	}
	schedulerQueueSize, err := strconv.Atoi(getEnv("SCHEDULER_QUEUE_SIZE", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_QUEUE_SIZE: %w", err)
	}
	reportWeekday, err := parseWeekday(getEnv("REPORT_WEEKDAY", "Monday"))
	if err != nil {
		return nil, fmt.Errorf("invalid REPORT_WEEKDAY: %w", err)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "pulse"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   getEnv("DB_NAME", "pulse"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		GitHub: GitHubConfig{
			Token: os.Getenv("GITHUB_TOKEN"),
			Org:   os.Getenv("GITHUB_ORG"),
			Repo:  getEnv("GITHUB_REPO", "ALL"),
		},
		Mercury: MercuryConfig{
			APIKey:  os.Getenv("MERCURY_API_KEY"),
			BaseURL: getEnv("MERCURY_BASE_URL", "https://api.mercury.com/api/v1"),
		},
		QuickBooks: QuickBooksConfig{
			ClientID:     os.Getenv("QUICKBOOKS_CLIENT_ID"),
			ClientSecret: os.Getenv("QUICKBOOKS_CLIENT_SECRET"),
			RefreshToken: os.Getenv("QUICKBOOKS_REFRESH_TOKEN"),
			RealmID:      os.Getenv("QUICKBOOKS_REALM_ID"),
			Sandbox:      getBoolEnv("QUICKBOOKS_SANDBOX", false),
		},
		Slack: SlackConfig{
			WebhookURLs: []string{
				os.Getenv("SLACK_WEBHOOK_URL"),
				os.Getenv("SLACK_WEBHOOK_URL_2"),
				os.Getenv("SLACK_WEBHOOK_URL_3"),
			},
		},
		Sync: SyncConfig{
			LookbackDays: lookback,
		},
		Scheduler: SchedulerConfig{
			ScheduleTimes: strings.Split(getEnv("SCHEDULER_TIMES", "06:00"), ","),
			WorkerCount:   schedulerWorkers,
			JobDelay:      schedulerJobDelay,
			QueueSize:     schedulerQueueSize,
			RunOnStartup:  getBoolEnv("SCHEDULER_RUN_ON_STARTUP", false),
			ReportWeekday: reportWeekday,
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("TELEMETRY_ENABLED", false),
			ServiceName:  getEnv("TELEMETRY_SERVICE_NAME", "pulse"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			OTLPEndpoint: getEnv("OTLP_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9091"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.Database.Host == "" {
		missing = append(missing, "DB_HOST")
	}
	if c.Database.User == "" {
		missing = append(missing, "DB_USER")
	}
	if c.Database.DBName == "" {
		missing = append(missing, "DB_NAME")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.Sync.LookbackDays <= 0 {
		return fmt.Errorf("SYNC_LOOKBACK_DAYS must be positive, got %d", c.Sync.LookbackDays)
	}
	return nil
}

func parseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
