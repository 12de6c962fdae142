package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"TENANTGATE_ADDR" envDefault:":8080"`
	Environment     string        `env:"TENANTGATE_ENV" envDefault:"development"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// AdminToken guards /admin. Empty rejects every admin request.
	AdminToken  string `env:"ADMIN_TOKEN"`
	OTelEnabled bool   `env:"OTEL_ENABLED" envDefault:"false"`

	Properties Properties
	Resolver   Resolver
	Bootstrap  Bootstrap
	Cleanup    Cleanup
	Bus        Bus
	Redis      Redis
}

// Properties locates the tenant property file and how often it is polled for changes.
type Properties struct {
	File         string        `env:"TENANT_PROPERTIES_FILE" envDefault:"config/tenants.yaml"`
	PollInterval time.Duration `env:"TENANT_PROPERTIES_POLL_INTERVAL" envDefault:"30s"`
}

// Resolver configures the tenant resolution filter.
type Resolver struct {
	HeaderName     string   `env:"TENANT_HEADER" envDefault:"tenantId"`
	ParamName      string   `env:"TENANT_PARAM" envDefault:"tenant"`
	StaticPrefixes []string `env:"TENANT_STATIC_PREFIXES" envSeparator:"," envDefault:"/css/,/js/,/images/,/webjars/,/static/,/assets/"`
	StaticPaths    []string `env:"TENANT_STATIC_PATHS" envSeparator:"," envDefault:"/favicon.ico,/robots.txt"`
	// NotFoundStatus and InvalidStatus override the 400 default per failure key.
	NotFoundStatus int `env:"TENANT_NOT_FOUND_STATUS" envDefault:"400"`
	InvalidStatus  int `env:"TENANT_INVALID_STATUS" envDefault:"400"`
}

// Bootstrap configures per-tenant schema bootstrap.
type Bootstrap struct {
	Changelog   string `env:"TENANT_CHANGELOG" envDefault:"tenant"`
	Concurrency int    `env:"TENANT_BOOTSTRAP_CONCURRENCY" envDefault:"4"`
}

// Cleanup configures the scheduled expired-record sweep.
type Cleanup struct {
	Enabled             bool          `env:"CLEANUP_ENABLED" envDefault:"true"`
	Schedule            string        `env:"CLEANUP_CRON" envDefault:"0 0 2 * * *"`
	BatchSize           int           `env:"CLEANUP_BATCH_SIZE" envDefault:"500"`
	RetentionDays       int           `env:"CLEANUP_RETENTION_DAYS" envDefault:"30"`
	EnumerationAttempts int           `env:"CLEANUP_ENUMERATION_ATTEMPTS" envDefault:"3"`
	EnumerationBackoff  time.Duration `env:"CLEANUP_ENUMERATION_BACKOFF" envDefault:"5s"`
	TableName           string        `env:"CLEANUP_TABLE" envDefault:"oauth_tokens"`
}

// Redis configures the client used by the refresh bus. An empty URL disables Redis.
type Redis struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"1"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// Bus configures cross-node refresh broadcasting. An empty Kafka broker list
// disables the Kafka transport; Redis follows Redis.URL.
type Bus struct {
	RedisChannel string `env:"REFRESH_REDIS_CHANNEL" envDefault:"tenantgate:refresh"`
	KafkaBrokers string `env:"KAFKA_BROKERS"`
	KafkaTopic   string `env:"REFRESH_KAFKA_TOPIC" envDefault:"tenantgate.refresh"`
	KafkaGroupID string `env:"REFRESH_KAFKA_GROUP"`
	NodeID       string `env:"TENANTGATE_NODE_ID"`
}

// FromEnv builds a Server config from environment variables, loading a .env file
// first when one is present for local development.
func FromEnv() (*Server, error) {
	_ = godotenv.Load()

	cfg := &Server{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Cleanup.BatchSize <= 0 {
		return nil, fmt.Errorf("CLEANUP_BATCH_SIZE must be positive")
	}
	if cfg.Cleanup.EnumerationAttempts <= 0 {
		return nil, fmt.Errorf("CLEANUP_ENUMERATION_ATTEMPTS must be positive")
	}
	return cfg, nil
}
