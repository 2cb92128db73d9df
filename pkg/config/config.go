package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Supplier     SupplierConfig
	Notify       NotifyConfig
	Export       ExportConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"CARDVAULT_APP_ENV" required:"true"`
	Port         string `envconfig:"CARDVAULT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CARDVAULT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CARDVAULT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CARDVAULT_DB_DSN"`
	Driver string `envconfig:"CARDVAULT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CARDVAULT_DB_HOST"`
	LegacyPort     int    `envconfig:"CARDVAULT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CARDVAULT_DB_USER"`
	LegacyPassword string `envconfig:"CARDVAULT_DB_PASSWORD"`
	LegacyName     string `envconfig:"CARDVAULT_DB_NAME"`
	LegacySSLMode  string `envconfig:"CARDVAULT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CARDVAULT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CARDVAULT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CARDVAULT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CARDVAULT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CARDVAULT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CARDVAULT_REDIS_ADDR"`
	Password     string        `envconfig:"CARDVAULT_REDIS_PASSWORD"`
	DB           int           `envconfig:"CARDVAULT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CARDVAULT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CARDVAULT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CARDVAULT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CARDVAULT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CARDVAULT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// SupplierConfig bounds outbound fulfillment calls.
type SupplierConfig struct {
	HTTPTimeout        time.Duration `envconfig:"CARDVAULT_SUPPLIER_HTTP_TIMEOUT" default:"10s"`
	MaxConcurrent      int           `envconfig:"CARDVAULT_SUPPLIER_MAX_CONCURRENT_PER_TENANT" default:"8"`
	ConcurrencyWindow  time.Duration `envconfig:"CARDVAULT_SUPPLIER_CONCURRENCY_WINDOW" default:"30s"`
	SelfHealThreshold  float64       `envconfig:"CARDVAULT_SUPPLIER_SELF_HEAL_THRESHOLD" default:"0.6"`
	FollowUpMaxRetries int           `envconfig:"CARDVAULT_SUPPLIER_FOLLOW_UP_MAX_RETRIES" default:"1"`
}

type NotifyConfig struct {
	EmailEndpoint    string        `envconfig:"CARDVAULT_NOTIFY_EMAIL_ENDPOINT"`
	WhatsAppEndpoint string        `envconfig:"CARDVAULT_NOTIFY_WHATSAPP_ENDPOINT"`
	APIKey           string        `envconfig:"CARDVAULT_NOTIFY_API_KEY"`
	Timeout          time.Duration `envconfig:"CARDVAULT_NOTIFY_TIMEOUT" default:"5s"`
	DefaultFrom      string        `envconfig:"CARDVAULT_NOTIFY_FROM_EMAIL"`
}

type ExportConfig struct {
	BaseDir string `envconfig:"CARDVAULT_EXPORT_BASE_DIR" default:"/var/lib/cardvault/exports"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CARDVAULT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CARDVAULT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CARDVAULT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"CARDVAULT_PUBSUB_DOMAIN_TOPIC" default:"cv-domain-events"`
	DomainSubscription string `envconfig:"CARDVAULT_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CARDVAULT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CARDVAULT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CARDVAULT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CARDVAULT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CARDVAULT_AUTO_MIGRATE" default:"false"`
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
