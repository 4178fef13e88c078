package config

import (
	"net"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	StoreDriver       string        `envconfig:"STORE_DRIVER" default:"postgres"`
	DatabaseURI       string        `envconfig:"DATABASE_URI"`
	SQLitePath        string        `envconfig:"SQLITE_PATH" default:"data/gabay.db"`
	SQLiteBusyTimeout time.Duration `envconfig:"SQLITE_BUSY_TIMEOUT" default:"5s"`

	TelegramToken       string  `envconfig:"TELEGRAM_TOKEN"`
	TelegramRatePerSec  float64 `envconfig:"TELEGRAM_RATE_PER_SEC" default:"20"`
	AIAPIKey            string  `envconfig:"AI_API_KEY"`
	AIBaseURL           string  `envconfig:"AI_BASE_URL" default:"https://openrouter.ai/api/v1"`
	AIModel             string  `envconfig:"AI_MODEL" default:"openai/gpt-4o-mini"`
	DisplayTimezoneName string  `envconfig:"DISPLAY_TIMEZONE" default:"UTC"`

	PollInterval    time.Duration `envconfig:"POLL_INTERVAL" default:"60s"`
	HeartbeatSpec   string        `envconfig:"HEARTBEAT_SPEC" default:"@every 15m"`
	DispatchWorkers int           `envconfig:"DISPATCH_WORKERS" default:"4"`
	DispatchQueue   int           `envconfig:"DISPATCH_QUEUE" default:"256"`
	DispatchTimeout time.Duration `envconfig:"DISPATCH_TIMEOUT" default:"30s"`

	HTTPAddr  string `envconfig:"HTTP_ADDR" default:"127.0.0.1:8080"`
	APIToken  string `envconfig:"API_TOKEN"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`

	SMTPHost string `envconfig:"SMTP_HOST"`
	SMTPPort int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser string `envconfig:"SMTP_USER"`
	SMTPPass string `envconfig:"SMTP_PASS"`
	SMTPFrom string `envconfig:"SMTP_FROM"`

	TriageHookURL   string        `envconfig:"TRIAGE_HOOK_URL"`
	BriefingHookURL string        `envconfig:"BRIEFING_HOOK_URL"`
	HookTimeout     time.Duration `envconfig:"HOOK_TIMEOUT" default:"30s"`
}

// Load reads an optional env file, then the environment.
func Load(envFiles ...string) (*Config, error) {
	// .env file is optional in production
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env")
	}
	return &cfg, nil
}

// Validate checks the settings every command needs: a usable store.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURI == "" {
			return errors.New("DATABASE_URI is required for the postgres store")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite store")
		}
	default:
		return errors.Newf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if _, err := c.DisplayLocation(); err != nil {
		return err
	}
	if c.HTTPAddr != "" && c.APIToken == "" && !isLoopback(c.HTTPAddr) {
		return errors.Newf("API_TOKEN is required when HTTP_ADDR %q is not a loopback address", c.HTTPAddr)
	}
	return nil
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (c *Config) DisplayLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.DisplayTimezoneName)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid DISPLAY_TIMEZONE %q", c.DisplayTimezoneName)
	}
	return loc, nil
}

func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}
