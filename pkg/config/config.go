package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "PAYSWITCH_DB_DSN"
	EnvDBHost = "PAYSWITCH_DB_HOST"
	EnvDBUser = "PAYSWITCH_DB_USER"
	EnvDBName = "PAYSWITCH_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Connector    ConnectorConfig
	Retry        RetryConfig
	Idempotency  IdempotencyConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PAYSWITCH_APP_ENV" required:"true"`
	Port         string `envconfig:"PAYSWITCH_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PAYSWITCH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PAYSWITCH_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PAYSWITCH_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PAYSWITCH_DB_DSN"`
	Driver string `envconfig:"PAYSWITCH_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PAYSWITCH_DB_HOST"`
	LegacyPort     int    `envconfig:"PAYSWITCH_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PAYSWITCH_DB_USER"`
	LegacyPassword string `envconfig:"PAYSWITCH_DB_PASSWORD"`
	LegacyName     string `envconfig:"PAYSWITCH_DB_NAME"`
	LegacySSLMode  string `envconfig:"PAYSWITCH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PAYSWITCH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PAYSWITCH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PAYSWITCH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PAYSWITCH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PAYSWITCH_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PAYSWITCH_REDIS_ADDR"`
	Password     string        `envconfig:"PAYSWITCH_REDIS_PASSWORD"`
	DB           int           `envconfig:"PAYSWITCH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PAYSWITCH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PAYSWITCH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PAYSWITCH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PAYSWITCH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PAYSWITCH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// ConnectorConfig bounds outbound connector I/O. Every authentication or
// processor call runs under CallTimeout; a call that exceeds it is treated as
// a connector error, never left outstanding.
type ConnectorConfig struct {
	CallTimeout       time.Duration `envconfig:"PAYSWITCH_CONNECTOR_CALL_TIMEOUT" default:"10s"`
	BreakerMaxFails   uint32        `envconfig:"PAYSWITCH_CONNECTOR_BREAKER_MAX_FAILS" default:"5"`
	BreakerOpenWindow time.Duration `envconfig:"PAYSWITCH_CONNECTOR_BREAKER_OPEN_WINDOW" default:"30s"`
}

// RetryConfig parameterizes the automatic retry loop for transient connector
// failures. The bounds are deliberately configuration, not constants: real
// 3DS processors publish no canonical retry policy.
type RetryConfig struct {
	MaxAttempts uint64        `envconfig:"PAYSWITCH_RETRY_MAX_ATTEMPTS" default:"3"`
	BaseBackoff time.Duration `envconfig:"PAYSWITCH_RETRY_BASE_BACKOFF" default:"250ms"`
	MaxBackoff  time.Duration `envconfig:"PAYSWITCH_RETRY_MAX_BACKOFF" default:"5s"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"PAYSWITCH_IDEMPOTENCY_TTL" default:"168h"`
}

// RateLimitConfig throttles confirmation traffic per merchant account. A
// window or limit of zero disables the check.
type RateLimitConfig struct {
	ConfirmWindow time.Duration `envconfig:"PAYSWITCH_RATELIMIT_CONFIRM_WINDOW" default:"1m"`
	ConfirmLimit  int64         `envconfig:"PAYSWITCH_RATELIMIT_CONFIRM_LIMIT" default:"120"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PAYSWITCH_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PAYSWITCH_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PAYSWITCH_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"PAYSWITCH_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PAYSWITCH_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	PaymentEventsTopic        string `envconfig:"PAYSWITCH_PUBSUB_PAYMENT_EVENTS_TOPIC" default:"ps-payment-events"`
	PaymentEventsSubscription string `envconfig:"PAYSWITCH_PUBSUB_PAYMENT_EVENTS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PAYSWITCH_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PAYSWITCH_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PAYSWITCH_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
