package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Checkout     CheckoutConfig
	Pricing      PricingConfig
	Payments     PaymentsConfig
	Settlement   SettlementConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	Retry        RetryConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if !cfg.FeatureFlags.UseSQLite {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BAZAAR_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"BAZAAR_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BAZAAR_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"BAZAAR_LOG_FORMAT" default:"json"`
	MetricsPort  string `envconfig:"BAZAAR_METRICS_PORT" default:"9090"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BAZAAR_SERVICE_KIND" default:"worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"BAZAAR_DB_DSN"`
	Driver string `envconfig:"BAZAAR_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BAZAAR_DB_HOST"`
	LegacyPort     int    `envconfig:"BAZAAR_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BAZAAR_DB_USER"`
	LegacyPassword string `envconfig:"BAZAAR_DB_PASSWORD"`
	LegacyName     string `envconfig:"BAZAAR_DB_NAME"`
	LegacySSLMode  string `envconfig:"BAZAAR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BAZAAR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BAZAAR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BAZAAR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BAZAAR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BAZAAR_REDIS_URL" default:"redis://localhost:6379/0"`
	Address      string        `envconfig:"BAZAAR_REDIS_ADDR"`
	Password     string        `envconfig:"BAZAAR_REDIS_PASSWORD"`
	DB           int           `envconfig:"BAZAAR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BAZAAR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BAZAAR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BAZAAR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BAZAAR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BAZAAR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BAZAAR_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BAZAAR_AUTO_MIGRATE" default:"false"`
}

type CheckoutConfig struct {
	OrderNumberAttempts int `envconfig:"BAZAAR_CHECKOUT_ORDER_NUMBER_ATTEMPTS" default:"5"`
}

// PricingConfig feeds the flat pricing policy. Amounts are decimal strings;
// TaxRate and coupon values are percentages.
type PricingConfig struct {
	Currency              string            `envconfig:"BAZAAR_PRICING_CURRENCY" default:"TRY"`
	ShippingPerSeller     string            `envconfig:"BAZAAR_PRICING_SHIPPING_PER_SELLER" default:"0"`
	FreeShippingThreshold string            `envconfig:"BAZAAR_PRICING_FREE_SHIPPING_THRESHOLD"`
	TaxRate               string            `envconfig:"BAZAAR_PRICING_TAX_RATE" default:"0"`
	Coupons               map[string]string `envconfig:"BAZAAR_PRICING_COUPONS"`
}

func (p PricingConfig) validate() error {
	if _, err := decimal.NewFromString(p.ShippingPerSeller); err != nil {
		return fmt.Errorf("%s: %w", EnvShipping, err)
	}
	if strings.TrimSpace(p.FreeShippingThreshold) != "" {
		if _, err := decimal.NewFromString(p.FreeShippingThreshold); err != nil {
			return fmt.Errorf("%s: %w", EnvFreeShipping, err)
		}
	}
	if _, err := decimal.NewFromString(p.TaxRate); err != nil {
		return fmt.Errorf("%s: %w", EnvTaxRate, err)
	}
	for code, pct := range p.Coupons {
		if _, err := decimal.NewFromString(pct); err != nil {
			return fmt.Errorf("%s: coupon %s: %w", EnvCoupons, code, err)
		}
	}
	return nil
}

type PaymentsConfig struct {
	Provider  string        `envconfig:"BAZAAR_PAYMENTS_PROVIDER" default:"simulated"`
	IntentTTL time.Duration `envconfig:"BAZAAR_PAYMENTS_INTENT_TTL" default:"30m"`
}

type SettlementConfig struct {
	Delay time.Duration `envconfig:"BAZAAR_SETTLEMENT_DELAY" default:"72h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"BAZAAR_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"BAZAAR_PUBSUB_NOTIFICATION_TOPIC" default:"bazaar-notification-events"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"BAZAAR_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"BAZAAR_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"BAZAAR_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"BAZAAR_OUTBOX_RETENTION" default:"168h"`
	DedupeTTL      time.Duration `envconfig:"BAZAAR_OUTBOX_DEDUPE_TTL" default:"24h"`
}

type CronConfig struct {
	IntentExpirySchedule    string        `envconfig:"BAZAAR_CRON_INTENT_EXPIRY_SCHEDULE" default:"@every 5m"`
	SettlementSchedule      string        `envconfig:"BAZAAR_CRON_SETTLEMENT_SCHEDULE" default:"@every 1h"`
	OutboxRetentionSchedule string        `envconfig:"BAZAAR_CRON_OUTBOX_RETENTION_SCHEDULE" default:"@daily"`
	LockTTL                 time.Duration `envconfig:"BAZAAR_CRON_LOCK_TTL" default:"10m"`
}

type RetryConfig struct {
	MaxAttempts int           `envconfig:"BAZAAR_RETRY_MAX_ATTEMPTS" default:"3"`
	BaseDelay   time.Duration `envconfig:"BAZAAR_RETRY_BASE_DELAY" default:"100ms"`
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
