package config

// EnvPrefix is handed to envconfig; every variable is spelled out in full in the struct tags.
const EnvPrefix = "BAZAAR"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "BAZAAR_APP_ENV"
	EnvLogLevel     = "BAZAAR_LOG_LEVEL"
	EnvMetricsPort  = "BAZAAR_METRICS_PORT"
	EnvDBDSN        = "BAZAAR_DB_DSN"
	EnvDBHost       = "BAZAAR_DB_HOST"
	EnvDBUser       = "BAZAAR_DB_USER"
	EnvDBName       = "BAZAAR_DB_NAME"
	EnvRedisURL     = "BAZAAR_REDIS_URL"
	EnvUseSQLite    = "BAZAAR_USE_SQLITE"
	EnvCurrency     = "BAZAAR_PRICING_CURRENCY"
	EnvShipping     = "BAZAAR_PRICING_SHIPPING_PER_SELLER"
	EnvFreeShipping = "BAZAAR_PRICING_FREE_SHIPPING_THRESHOLD"
	EnvTaxRate      = "BAZAAR_PRICING_TAX_RATE"
	EnvCoupons      = "BAZAAR_PRICING_COUPONS"
	EnvIntentTTL    = "BAZAAR_PAYMENTS_INTENT_TTL"
	EnvSettleDelay  = "BAZAAR_SETTLEMENT_DELAY"
	EnvPubSubTopic  = "BAZAAR_PUBSUB_NOTIFICATION_TOPIC"
	EnvGCPProjectID = "BAZAAR_GCP_PROJECT_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
