package config

const (
	EnvPrefix = "PROMOENGINE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	DefaultSQLiteDSN = "file:promoengine.db?cache=shared&_fk=1"
)

const (
	EnvAppEnv       = "PROMOENGINE_APP_ENV"
	EnvPort         = "PROMOENGINE_APP_PORT"
	EnvLogLevel     = "PROMOENGINE_LOG_LEVEL"
	EnvLogWarnStack = "PROMOENGINE_LOG_WARN_STACK"
	EnvCORSOrigins  = "PROMOENGINE_CORS_ALLOWED_ORIGINS"

	EnvDBDSN    = "PROMOENGINE_DB_DSN"
	EnvDBDriver = "PROMOENGINE_DB_DRIVER"
	EnvDBHost   = "PROMOENGINE_DB_HOST"
	EnvDBPort   = "PROMOENGINE_DB_PORT"
	EnvDBUser   = "PROMOENGINE_DB_USER"
	EnvDBPass   = "PROMOENGINE_DB_PASSWORD"
	EnvDBName   = "PROMOENGINE_DB_NAME"
	EnvDBSSL    = "PROMOENGINE_DB_SSLMODE"

	EnvRedisURL  = "PROMOENGINE_REDIS_URL"
	EnvRedisAddr = "PROMOENGINE_REDIS_ADDR"

	EnvUseSQLite      = "PROMOENGINE_USE_SQLITE"
	EnvAutoMigrate    = "PROMOENGINE_AUTO_MIGRATE"
	EnvPromotionCache = "PROMOENGINE_FEATURE_PROMOTION_CACHE"
	EnvAuditEvents    = "PROMOENGINE_FEATURE_AUDIT_EVENTS"

	EnvPromotionsCacheTTL           = "PROMOENGINE_PROMOTIONS_CACHE_TTL"
	EnvPromotionsRefreshInterval    = "PROMOENGINE_PROMOTIONS_CACHE_REFRESH_INTERVAL"
	EnvPromotionsCalculationTimeout = "PROMOENGINE_PROMOTIONS_CALCULATION_TIMEOUT"
	EnvPromotionsMaxCandidates      = "PROMOENGINE_PROMOTIONS_MAX_COMBINATION_CANDIDATES"

	EnvGCPProjectID       = "PROMOENGINE_GCP_PROJECT_ID"
	EnvGCPCredentialsJSON = "PROMOENGINE_GCP_CREDENTIALS_JSON"

	EnvPubSubPricingTopic = "PROMOENGINE_PUBSUB_PRICING_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
