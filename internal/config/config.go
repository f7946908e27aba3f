package config

import (
	"fmt"
	"time"

	"github.com/utafrali/contactbook/pkg/database"
	pkgconfig "github.com/utafrali/contactbook/pkg/config"
	"github.com/utafrali/contactbook/pkg/pagination"
	"github.com/utafrali/contactbook/pkg/ratelimit"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Mail dispatch modes.
const (
	MailDispatchAsync = "async"
	MailDispatchKafka = "kafka"
)

// Config holds all configuration for the contactbook service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort  int    `env:"HTTP_PORT" envDefault:"8000"`
	APIPrefix string `env:"API_PREFIX" envDefault:"/api"`
	PublicURL string `env:"PUBLIC_URL" envDefault:"http://localhost:8000"`

	// PostgreSQL. DB_URL takes precedence over the discrete fields.
	DatabaseURL           string `env:"DB_URL"`
	PostgresHost          string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort          int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser          string `env:"POSTGRES_USER" envDefault:"postgres"`
	PostgresPass          string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	PostgresDB            string `env:"POSTGRES_DB" envDefault:"contactbook"`
	PostgresSSL           string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns            int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns            int32  `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int    `env:"DB_MAX_CONN_LIFETIME_MINS" envDefault:"60"`
	DBMaxConnIdleTimeMins int    `env:"DB_MAX_CONN_IDLE_TIME_MINS" envDefault:"30"`
	SlowQueryThresholdMs  int    `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`

	// JWT
	JWTSecret        string        `env:"SECRET_KEY_JWT" envDefault:"change-this-to-a-secure-secret"`
	JWTAlgorithm     string        `env:"ALGORITHM" envDefault:"HS256"`
	JWTAccessExpiry  time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	JWTRefreshExpiry time.Duration `env:"JWT_REFRESH_TOKEN_EXPIRY" envDefault:"168h"`
	JWTEmailExpiry   time.Duration `env:"JWT_EMAIL_TOKEN_EXPIRY" envDefault:"24h"`

	// Mail
	MailUsername string `env:"MAIL_USERNAME"`
	MailPassword string `env:"MAIL_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM" envDefault:"noreply@contactbook.local"`
	MailFromName string `env:"MAIL_FROM_NAME" envDefault:"TODO Systems"`
	MailPort     int    `env:"MAIL_PORT" envDefault:"465"`
	MailServer   string `env:"MAIL_SERVER" envDefault:"localhost"`
	MailSSLTLS   bool   `env:"MAIL_SSL_TLS" envDefault:"true"`
	MailDispatch string `env:"MAIL_DISPATCH" envDefault:"async"`

	// Redis
	RedisHost     string `env:"REDIS_DOMAIN" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Rate limiting
	RateLimitBackend string        `env:"RATE_LIMIT_BACKEND" envDefault:"redis"`
	RateLimitTimes   int           `env:"RATE_LIMIT_TIMES" envDefault:"2"`
	RateLimitWindow  time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"10s"`

	AccountCacheTTL time.Duration `env:"ACCOUNT_CACHE_TTL" envDefault:"5m"`

	// Avatar object storage
	S3Endpoint   string `env:"S3_ENDPOINT"`
	S3Region     string `env:"S3_REGION" envDefault:"us-east-1"`
	S3AccessKey  string `env:"S3_ACCESS_KEY"`
	S3SecretKey  string `env:"S3_SECRET_KEY"`
	S3Bucket     string `env:"S3_BUCKET" envDefault:"avatars"`
	S3PublicURL  string `env:"S3_PUBLIC_URL"`
	AvatarPrefix string `env:"AVATAR_PREFIX" envDefault:"Web16"`

	// Kafka
	KafkaBrokers   []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaMailTopic string   `env:"KAFKA_MAIL_TOPIC" envDefault:"contactbook.mail.requested"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Access control
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	BannedUserAgents   []string `env:"BANNED_USER_AGENTS" envDefault:"Python-urllib" envSeparator:","`
	BannedIPs          []string `env:"BANNED_IPS" envSeparator:","`
	TrustedProxies     []string `env:"TRUSTED_PROXIES" envSeparator:","`
	PprofAllowedCIDRs  []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32" envSeparator:","`

	// Query bounds
	ContactsLimitMin     int `env:"CONTACTS_LIMIT_MIN" envDefault:"10"`
	ContactsLimitMax     int `env:"CONTACTS_LIMIT_MAX" envDefault:"500"`
	ContactsLimitDefault int `env:"CONTACTS_LIMIT_DEFAULT" envDefault:"10"`
	BirthdayDaysMin      int `env:"BIRTHDAY_DAYS_MIN" envDefault:"7"`
	BirthdayDaysMax      int `env:"BIRTHDAY_DAYS_MAX" envDefault:"100"`
	BirthdayDaysDefault  int `env:"BIRTHDAY_DAYS_DEFAULT" envDefault:"7"`
}

// Load reads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg, ".env"); err != nil {
		return nil, fmt.Errorf("load contactbook config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	switch c.JWTAlgorithm {
	case "HS256", "HS512":
	default:
		return fmt.Errorf("ALGORITHM must be HS256 or HS512, got %q", c.JWTAlgorithm)
	}

	// In non-development environments, require an explicitly set, strong JWT secret.
	if c.Environment != "development" {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("SECRET_KEY_JWT must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("SECRET_KEY_JWT must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
	}

	if c.JWTAccessExpiry <= 0 || c.JWTRefreshExpiry <= 0 || c.JWTEmailExpiry <= 0 {
		return fmt.Errorf("JWT token expiries must be positive")
	}

	switch c.MailDispatch {
	case MailDispatchAsync, MailDispatchKafka:
	default:
		return fmt.Errorf("MAIL_DISPATCH must be %q or %q, got %q", MailDispatchAsync, MailDispatchKafka, c.MailDispatch)
	}

	switch c.RateLimitBackend {
	case ratelimit.BackendRedis, ratelimit.BackendMemory:
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be %q or %q, got %q", ratelimit.BackendRedis, ratelimit.BackendMemory, c.RateLimitBackend)
	}

	if err := validateBounds("CONTACTS_LIMIT", c.ContactsLimits()); err != nil {
		return err
	}
	return validateBounds("BIRTHDAY_DAYS", c.BirthdayDays())
}

func validateBounds(name string, b pagination.Bounds) error {
	if b.Min < 0 || b.Min > b.Max || b.Default < b.Min || b.Default > b.Max {
		return fmt.Errorf("%s bounds are inconsistent: min=%d default=%d max=%d", name, b.Min, b.Default, b.Max)
	}
	return nil
}

// Postgres returns the pool configuration for the service database.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		URL:             c.DatabaseURL,
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the Redis client configuration.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// ContactsLimits returns the bounds applied to contact list limits.
func (c *Config) ContactsLimits() pagination.Bounds {
	return pagination.Bounds{Min: c.ContactsLimitMin, Max: c.ContactsLimitMax, Default: c.ContactsLimitDefault}
}

// BirthdayDays returns the bounds applied to the upcoming-birthday window.
func (c *Config) BirthdayDays() pagination.Bounds {
	return pagination.Bounds{Min: c.BirthdayDaysMin, Max: c.BirthdayDaysMax, Default: c.BirthdayDaysDefault}
}
