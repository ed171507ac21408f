// Package config holds the typed runtime configuration of the api and worker
// binaries. Values come from the environment; see Load.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"golang.org/x/text/language"

	pkgconfig "perfumery-notify/internal/pkg/config"
)

// Config is the root configuration.
type Config struct {
	Telegram TelegramConfig
	Notify   NotifyConfig
	Database DatabaseConfig
	Feed     FeedConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Server   ServerConfig
	Tracing  TracingConfig

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	Version   string `env:"VERSION" envDefault:"dev"`

	fallbacks []Fallback
}

// Fallback records a setting whose value was rejected and replaced by its
// default during Load.
type Fallback struct {
	Env     string
	Value   string
	Default string
	Err     error
}

func (f Fallback) String() string {
	return fmt.Sprintf("invalid %s='%s': %v, falling back to default '%s'", f.Env, f.Value, f.Err, f.Default)
}

// TelegramConfig configures the Bot API client.
type TelegramConfig struct {
	// Enabled=false swaps the client for a no-op.
	Enabled bool `env:"TELEGRAM_ENABLED" envDefault:"true"`

	// BotToken and ChatID seed the settings when no store holds them.
	BotToken string `env:"TELEGRAM_BOT_TOKEN"`
	ChatID   string `env:"TELEGRAM_CHAT_ID"`

	BaseURL           string        `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
	Timeout           time.Duration `env:"TELEGRAM_TIMEOUT" envDefault:"10s"`
	RequestsPerSecond float64       `env:"TELEGRAM_RPS" envDefault:"25"`
	Burst             int           `env:"TELEGRAM_BURST" envDefault:"5"`

	// CheckCron schedules the periodic getMe credential check.
	CheckCron string `env:"TELEGRAM_CHECK_CRON" envDefault:"*/30 * * * *"`
}

// NotifyConfig configures rendering and delivery of notifications.
type NotifyConfig struct {
	Timezone     string `env:"NOTIFY_TIMEZONE" envDefault:"UTC"`
	Language     string `env:"NOTIFY_LANGUAGE" envDefault:"en"`
	ItemLanguage string `env:"NOTIFY_ITEM_LANGUAGE"`
	Currency     string `env:"NOTIFY_CURRENCY"`
	PickupMarker string `env:"NOTIFY_PICKUP_MARKER" envDefault:"Pickup from store"`

	// MaxRetries is the number of guaranteed-send cycles, the first included.
	MaxRetries  int `env:"NOTIFY_MAX_RETRIES" envDefault:"5"`
	Concurrency int `env:"NOTIFY_CONCURRENCY" envDefault:"10"`

	// RecipientTimeout bounds one recipient's send. Zero derives it from the
	// Telegram client's worst case.
	RecipientTimeout time.Duration `env:"NOTIFY_RECIPIENT_TIMEOUT"`
	ResolverTTL      time.Duration `env:"NOTIFY_RESOLVER_TTL" envDefault:"30s"`

	// SettingsFile, when set, replaces the database as the recipients source.
	SettingsFile string `env:"NOTIFY_SETTINGS_FILE"`
}

// DatabaseConfig configures the Postgres pool.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	ConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"15m"`
	MigrateOnStart  bool          `env:"DB_MIGRATE" envDefault:"true"`
}

// FeedConfig selects and configures the order change feed.
type FeedConfig struct {
	Driver  string `env:"FEED_DRIVER" envDefault:"postgres"`
	Channel string `env:"FEED_CHANNEL" envDefault:"order_created"`

	KafkaBrokers string `env:"FEED_KAFKA_BROKERS"`
	KafkaTopic   string `env:"FEED_KAFKA_TOPIC" envDefault:"orders"`
	KafkaGroupID string `env:"FEED_KAFKA_GROUP" envDefault:"perfumery-notify"`

	RabbitURL      string `env:"FEED_RABBITMQ_URL"`
	RabbitQueue    string `env:"FEED_RABBITMQ_QUEUE" envDefault:"orders.created"`
	RabbitPrefetch int    `env:"FEED_RABBITMQ_PREFETCH" envDefault:"10"`

	Freshness time.Duration `env:"FEED_FRESHNESS" envDefault:"60s"`
	DedupeTTL time.Duration `env:"FEED_DEDUPE_TTL" envDefault:"10m"`
}

// RedisConfig enables the shared dedupe store when Addr is set.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// AuthConfig configures operator login and the worker's service identity.
type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"JWT_TTL" envDefault:"1h"`

	AdminUser      string `env:"ADMIN_USER"`
	AdminPassword  string `env:"ADMIN_USER_PASSWORD"`
	ViewerUser     string `env:"DEMO_USER"`
	ViewerPassword string `env:"DEMO_USER_PASSWORD"`

	WorkerSubject string `env:"WORKER_SUBJECT" envDefault:"order-worker"`

	// SecurityFile optionally points at a YAML security policy.
	SecurityFile string `env:"SECURITY_CONFIG"`
}

// ServerConfig holds listen addresses.
type ServerConfig struct {
	APIAddr         string        `env:"API_ADDR" envDefault:":8080"`
	HealthPort      int           `env:"WORKER_HEALTH_PORT" envDefault:"9091"`
	MetricsPort     int           `env:"WORKER_METRICS_PORT" envDefault:"9090"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`

	// CORSAllowedOrigins lists storefront origins allowed to post the
	// contact form. Empty disables CORS headers.
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	CSPReportOnly bool `env:"CSP_REPORT_ONLY" envDefault:"false"`

	ContactRateLimit  int           `env:"CONTACT_RATE_LIMIT" envDefault:"5"`
	ContactRateWindow time.Duration `env:"CONTACT_RATE_WINDOW" envDefault:"1m"`
}

// TracingConfig enables OTLP span export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLE_RATIO" envDefault:"1"`
}

var errMissingSecret = errors.New("JWT_SECRET must be set")

const (
	defaultTimezone  = "UTC"
	defaultLanguage  = "en"
	defaultCheckCron = "*/30 * * * *"
)

// Load parses the environment into a Config and validates it.
//
// Presentation settings (time zone, language, check schedule) degrade to
// their defaults instead of failing; see Fallbacks. Everything else is
// validated strictly.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.applyFallbacks()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Fallbacks returns the settings Load replaced with defaults.
func (c *Config) Fallbacks() []Fallback {
	return c.fallbacks
}

func (c *Config) applyFallbacks() {
	fallback := func(envKey string, value *string, def string, validate func(string) error) {
		if err := validate(*value); err != nil {
			c.fallbacks = append(c.fallbacks, Fallback{Env: envKey, Value: *value, Default: def, Err: err})
			*value = def
		}
	}
	fallback("NOTIFY_TIMEZONE", &c.Notify.Timezone, defaultTimezone, pkgconfig.ValidateTimezone)
	fallback("NOTIFY_LANGUAGE", &c.Notify.Language, defaultLanguage, func(s string) error {
		_, err := language.Parse(s)
		return err
	})
	if c.Telegram.Enabled {
		fallback("TELEGRAM_CHECK_CRON", &c.Telegram.CheckCron, defaultCheckCron, pkgconfig.ValidateCronSchedule)
	}
}

// Validate checks cross-field constraints. All problems are reported at once.
func (c *Config) Validate() error {
	var errs []error

	if err := pkgconfig.ValidateTimezone(c.Notify.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("NOTIFY_TIMEZONE: %w", err))
	}
	if _, err := language.Parse(c.Notify.Language); err != nil {
		errs = append(errs, fmt.Errorf("NOTIFY_LANGUAGE: %w", err))
	}
	if err := pkgconfig.ValidateIntRange(c.Notify.MaxRetries, 1, 10); err != nil {
		errs = append(errs, fmt.Errorf("NOTIFY_MAX_RETRIES: %w", err))
	}
	if err := pkgconfig.ValidateIntRange(c.Notify.Concurrency, 1, 100); err != nil {
		errs = append(errs, fmt.Errorf("NOTIFY_CONCURRENCY: %w", err))
	}
	if c.Notify.RecipientTimeout != 0 {
		if err := pkgconfig.ValidatePositiveDuration(c.Notify.RecipientTimeout); err != nil {
			errs = append(errs, fmt.Errorf("NOTIFY_RECIPIENT_TIMEOUT: %w", err))
		}
	}
	if c.Telegram.Enabled {
		if err := pkgconfig.ValidateCronSchedule(c.Telegram.CheckCron); err != nil {
			errs = append(errs, fmt.Errorf("TELEGRAM_CHECK_CRON: %w", err))
		}
	}
	if err := pkgconfig.ValidateDuration(c.Feed.Freshness, time.Second, time.Hour); err != nil {
		errs = append(errs, fmt.Errorf("FEED_FRESHNESS: %w", err))
	}
	if err := pkgconfig.ValidatePositiveDuration(c.Feed.DedupeTTL); err != nil {
		errs = append(errs, fmt.Errorf("FEED_DEDUPE_TTL: %w", err))
	}
	switch strings.ToLower(c.Feed.Driver) {
	case "", "postgres", "kafka", "rabbitmq":
	default:
		errs = append(errs, fmt.Errorf("FEED_DRIVER: unsupported driver %q", c.Feed.Driver))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errMissingSecret)
	}
	if err := pkgconfig.ValidateIntRange(c.Server.HealthPort, 1, 65535); err != nil {
		errs = append(errs, fmt.Errorf("WORKER_HEALTH_PORT: %w", err))
	}
	if err := pkgconfig.ValidateIntRange(c.Server.MetricsPort, 1, 65535); err != nil {
		errs = append(errs, fmt.Errorf("WORKER_METRICS_PORT: %w", err))
	}
	if err := pkgconfig.ValidateIntRange(c.Server.ContactRateLimit, 1, 1000); err != nil {
		errs = append(errs, fmt.Errorf("CONTACT_RATE_LIMIT: %w", err))
	}
	if err := pkgconfig.ValidatePositiveDuration(c.Server.ContactRateWindow); err != nil {
		errs = append(errs, fmt.Errorf("CONTACT_RATE_WINDOW: %w", err))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("OTEL_TRACES_SAMPLE_RATIO: must be between 0 and 1, got %v", c.Tracing.SampleRatio))
	}
	for _, origin := range c.Server.CORSAllowedOrigins {
		if err := pkgconfig.ValidateOrigin(origin); err != nil {
			errs = append(errs, fmt.Errorf("CORS_ALLOWED_ORIGINS: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Location returns the notification time zone. Validate has already
// checked the name, so a failure here falls back to UTC.
func (c NotifyConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LanguageTag returns the parsed rendering language, English when invalid.
func (c NotifyConfig) LanguageTag() language.Tag {
	tag, err := language.Parse(c.Language)
	if err != nil {
		return language.English
	}
	return tag
}
