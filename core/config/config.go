package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// DatabaseConfig holds durable store connection settings.
type DatabaseConfig struct {
	// Driver is "postgres" (default) or "memory" for local runs without a database.
	Driver         string `yaml:"driver" envconfig:"DB_DRIVER"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	MigrationsDir  string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// RedisConfig holds ephemeral cache settings.
type RedisConfig struct {
	Enabled           bool   `yaml:"enabled" envconfig:"REDIS_ENABLED"`
	Addr              string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password          string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB                int    `yaml:"db" envconfig:"REDIS_DB"`
	Prefix            string `yaml:"prefix" envconfig:"REDIS_PREFIX"`
	TTLCeilingSeconds int    `yaml:"ttl_ceiling_seconds" envconfig:"REDIS_TTL_CEILING_SECONDS"`
	DialTimeoutMS     int    `yaml:"dial_timeout_ms" envconfig:"REDIS_DIAL_TIMEOUT_MS"`
}

// StateConfig tunes the state store facade.
type StateConfig struct {
	DurableTimeoutMS     int `yaml:"durable_timeout_ms" envconfig:"STATE_DURABLE_TIMEOUT_MS"`
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds" envconfig:"STATE_SWEEP_INTERVAL_SECONDS"`
	SweepGraceSeconds    int `yaml:"sweep_grace_seconds" envconfig:"STATE_SWEEP_GRACE_SECONDS"`
}

// ScenarioOverride adjusts a built-in scenario without redefining it.
type ScenarioOverride struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

// RecordsConfig tunes how completed scenarios are persisted.
type RecordsConfig struct {
	// TimeZone interprets event dates and times entered by users. Defaults to UTC.
	TimeZone string `yaml:"timezone" envconfig:"RECORDS_TIMEZONE"`
}

// MetricsConfig controls the Prometheus exporter.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// Config aggregates the application configuration.
type Config struct {
	Telegram  TelegramConfig              `yaml:"telegram"`
	Webhook   WebhookConfig               `yaml:"webhook"`
	Logging   LoggingConfig               `yaml:"logging"`
	RateLimit RateLimitConfig             `yaml:"rate_limit"`
	Database  DatabaseConfig              `yaml:"database"`
	Redis     RedisConfig                 `yaml:"redis"`
	State     StateConfig                 `yaml:"state"`
	Scenarios map[string]ScenarioOverride `yaml:"scenarios" ignored:"true"`
	Records   RecordsConfig               `yaml:"records"`
	Metrics   MetricsConfig               `yaml:"metrics"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

const (
	// DriverPostgres selects the PostgreSQL durable store.
	DriverPostgres = "postgres"
	// DriverMemory selects the in-process durable store.
	DriverMemory = "memory"
)

const (
	defaultRedisPrefix       = "swingbot:"
	defaultTTLCeilingSeconds = 3600
	defaultDialTimeoutMS     = 2000
	defaultDurableTimeoutMS  = 5000
	defaultSweepInterval     = 600
	defaultSweepGrace        = 3600
	defaultMaxConnections    = 10
)

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if err := normalizeRunMode(cfg); err != nil {
		return err
	}
	if err := normalizeRateLimit(cfg); err != nil {
		return err
	}
	if err := normalizeDatabase(&cfg.Database); err != nil {
		return err
	}
	if err := normalizeRedis(&cfg.Redis); err != nil {
		return err
	}
	normalizeState(&cfg.State)
	if err := normalizeRecords(&cfg.Records); err != nil {
		return err
	}

	for name, ov := range cfg.Scenarios {
		if ov.TTLSeconds < 0 {
			return fmt.Errorf("scenarios.%s.ttl_seconds must be >= 0", name)
		}
	}
	return nil
}

func normalizeRunMode(cfg *Config) error {
	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" || rm == "polling" {
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm
	return nil
}

func normalizeRateLimit(cfg *Config) error {
	allowed := map[string]struct{}{
		UpdateCallback: {},
		UpdateMessage:  {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}

func normalizeDatabase(db *DatabaseConfig) error {
	driver := strings.ToLower(strings.TrimSpace(db.Driver))
	if driver == "" {
		driver = DriverPostgres
	}
	switch driver {
	case DriverMemory:
	case DriverPostgres:
		if strings.TrimSpace(db.Host) == "" || strings.TrimSpace(db.Name) == "" {
			return fmt.Errorf("database.host and database.name are required for the postgres driver")
		}
		if db.SSLMode == "" {
			db.SSLMode = "disable"
		}
		if db.Port == "" {
			db.Port = "5432"
		}
		if db.MaxConnections <= 0 {
			db.MaxConnections = defaultMaxConnections
		}
		if db.MigrationsDir == "" {
			db.MigrationsDir = "migrations"
		}
	default:
		return fmt.Errorf("invalid database.driver %q; allowed: postgres, memory", db.Driver)
	}
	db.Driver = driver
	return nil
}

func normalizeRedis(r *RedisConfig) error {
	if !r.Enabled {
		return nil
	}
	if strings.TrimSpace(r.Addr) == "" {
		return fmt.Errorf("redis.addr is required when redis.enabled is true")
	}
	if r.Prefix == "" {
		r.Prefix = defaultRedisPrefix
	}
	if r.TTLCeilingSeconds < 0 {
		return fmt.Errorf("redis.ttl_ceiling_seconds must be >= 0")
	}
	if r.TTLCeilingSeconds == 0 {
		r.TTLCeilingSeconds = defaultTTLCeilingSeconds
	}
	if r.DialTimeoutMS <= 0 {
		r.DialTimeoutMS = defaultDialTimeoutMS
	}
	return nil
}

func normalizeState(s *StateConfig) {
	if s.DurableTimeoutMS <= 0 {
		s.DurableTimeoutMS = defaultDurableTimeoutMS
	}
	if s.SweepIntervalSeconds < 0 {
		s.SweepIntervalSeconds = 0
	} else if s.SweepIntervalSeconds == 0 {
		s.SweepIntervalSeconds = defaultSweepInterval
	}
	if s.SweepGraceSeconds <= 0 {
		s.SweepGraceSeconds = defaultSweepGrace
	}
}

func normalizeRecords(r *RecordsConfig) error {
	r.TimeZone = strings.TrimSpace(r.TimeZone)
	if r.TimeZone == "" {
		r.TimeZone = "UTC"
	}
	if _, err := time.LoadLocation(r.TimeZone); err != nil {
		return fmt.Errorf("invalid records.timezone %q: %w", r.TimeZone, err)
	}
	return nil
}

// Location returns the configured time zone, falling back to UTC.
func (r RecordsConfig) Location() *time.Location {
	loc, err := time.LoadLocation(r.TimeZone)
	if err != nil || r.TimeZone == "" {
		return time.UTC
	}
	return loc
}

// DurableTimeout returns the per-call durable store timeout.
func (s StateConfig) DurableTimeout() time.Duration {
	return time.Duration(s.DurableTimeoutMS) * time.Millisecond
}

// SweepInterval returns the sweep period; zero disables sweeping.
func (s StateConfig) SweepInterval() time.Duration {
	return time.Duration(s.SweepIntervalSeconds) * time.Second
}

// SweepGrace returns how long past expiry a row is kept before sweeping.
func (s StateConfig) SweepGrace() time.Duration {
	return time.Duration(s.SweepGraceSeconds) * time.Second
}

// TTLCeiling returns the upper bound for cache entry lifetimes.
func (r RedisConfig) TTLCeiling() time.Duration {
	return time.Duration(r.TTLCeilingSeconds) * time.Second
}

// DialTimeout returns the Redis dial timeout.
func (r RedisConfig) DialTimeout() time.Duration {
	return time.Duration(r.DialTimeoutMS) * time.Millisecond
}

// ScenarioTTL returns the configured TTL override for a scenario, if any.
func (c *Config) ScenarioTTL(name string) (time.Duration, bool) {
	if c == nil {
		return 0, false
	}
	ov, ok := c.Scenarios[name]
	if !ok || ov.TTLSeconds == 0 {
		return 0, false
	}
	return time.Duration(ov.TTLSeconds) * time.Second, true
}
