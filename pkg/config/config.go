package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "taskpay"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Webhooks WebhooksConfig
	Payouts  PayoutsConfig
	Report   ReportConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Payouts.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TASKPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"TASKPAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TASKPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TASKPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TASKPAY_DB_DSN"`
	Driver string `envconfig:"TASKPAY_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"TASKPAY_DB_HOST"`
	Port     int    `envconfig:"TASKPAY_DB_PORT" default:"5432"`
	User     string `envconfig:"TASKPAY_DB_USER"`
	Password string `envconfig:"TASKPAY_DB_PASSWORD"`
	Name     string `envconfig:"TASKPAY_DB_NAME"`
	SSLMode  string `envconfig:"TASKPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TASKPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TASKPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TASKPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TASKPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"TASKPAY_DB_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TASKPAY_REDIS_URL"`
	Address      string        `envconfig:"TASKPAY_REDIS_ADDR"`
	Password     string        `envconfig:"TASKPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"TASKPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TASKPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TASKPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TASKPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TASKPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TASKPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// WebhooksConfig tunes the ingestion queue and reconciler.
type WebhooksConfig struct {
	MaxAttempts   int           `envconfig:"TASKPAY_WEBHOOK_MAX_ATTEMPTS" default:"8"`
	PollInterval  time.Duration `envconfig:"TASKPAY_WEBHOOK_POLL_INTERVAL" default:"15s"`
	BatchSize     int           `envconfig:"TASKPAY_WEBHOOK_BATCH_SIZE" default:"25"`
	GatewaySecret string        `envconfig:"TASKPAY_WEBHOOK_GATEWAY_SECRET"`
	EscrowSecret  string        `envconfig:"TASKPAY_WEBHOOK_ESCROW_SECRET"`
}

// PayoutsConfig controls payout scheduling. The delay is mandatory: a missing
// value must fail startup rather than silently scheduling immediate payouts.
type PayoutsConfig struct {
	DelayDays int `envconfig:"TASKPAY_PAYOUT_DELAY_DAYS" required:"true"`
}

func (p PayoutsConfig) validate() error {
	if p.DelayDays <= 0 {
		return fmt.Errorf("TASKPAY_PAYOUT_DELAY_DAYS must be a positive number of days, got %d", p.DelayDays)
	}
	return nil
}

// Delay returns the payout settlement delay as a duration.
func (p PayoutsConfig) Delay() time.Duration {
	return time.Duration(p.DelayDays) * 24 * time.Hour
}

type ReportConfig struct {
	ExportRowLimit   int `envconfig:"TASKPAY_REPORT_EXPORT_ROW_LIMIT" default:"90"`
	TopServicesLimit int `envconfig:"TASKPAY_REPORT_TOP_SERVICES_LIMIT" default:"5"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"TASKPAY_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	AlertsTopic string `envconfig:"TASKPAY_PUBSUB_ALERTS_TOPIC" default:"taskpay-finance-alerts"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		"TASKPAY_DB_HOST": db.Host,
		"TASKPAY_DB_USER": db.User,
		"TASKPAY_DB_NAME": db.Name,
	}
	for _, key := range []string{"TASKPAY_DB_HOST", "TASKPAY_DB_USER", "TASKPAY_DB_NAME"} {
		if values[key] == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either TASKPAY_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
