package config

import (
	"errors"
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
	FeatureFlags FeatureFlagsConfig
	Promotions   PromotionsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.useSQLite()
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.FeatureFlags.PromotionCache && c.Redis.URL == "" && c.Redis.Address == "" {
		return fmt.Errorf("%s or %s is required when %s is enabled", EnvRedisURL, EnvRedisAddr, EnvPromotionCache)
	}
	if c.FeatureFlags.AuditEvents {
		if strings.TrimSpace(c.GCP.ProjectID) == "" {
			return fmt.Errorf("%s is required when %s is enabled", EnvGCPProjectID, EnvAuditEvents)
		}
		if strings.TrimSpace(c.PubSub.PricingTopic) == "" {
			return fmt.Errorf("%s is required when %s is enabled", EnvPubSubPricingTopic, EnvAuditEvents)
		}
	}
	if c.Promotions.CalculationTimeout <= 0 {
		return errors.New("calculation timeout must be positive")
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"PROMOENGINE_APP_ENV" required:"true"`
	Port         string `envconfig:"PROMOENGINE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PROMOENGINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PROMOENGINE_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string `envconfig:"PROMOENGINE_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PROMOENGINE_DB_DSN"`
	Driver string `envconfig:"PROMOENGINE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PROMOENGINE_DB_HOST"`
	LegacyPort     int    `envconfig:"PROMOENGINE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PROMOENGINE_DB_USER"`
	LegacyPassword string `envconfig:"PROMOENGINE_DB_PASSWORD"`
	LegacyName     string `envconfig:"PROMOENGINE_DB_NAME"`
	LegacySSLMode  string `envconfig:"PROMOENGINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PROMOENGINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PROMOENGINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PROMOENGINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PROMOENGINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the sqlite driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"PROMOENGINE_REDIS_URL"`
	Address      string        `envconfig:"PROMOENGINE_REDIS_ADDR"`
	Password     string        `envconfig:"PROMOENGINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"PROMOENGINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PROMOENGINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PROMOENGINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PROMOENGINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PROMOENGINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PROMOENGINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite      bool `envconfig:"PROMOENGINE_USE_SQLITE" default:"false"`
	AutoMigrate    bool `envconfig:"PROMOENGINE_AUTO_MIGRATE" default:"false"`
	PromotionCache bool `envconfig:"PROMOENGINE_FEATURE_PROMOTION_CACHE" default:"true"`
	AuditEvents    bool `envconfig:"PROMOENGINE_FEATURE_AUDIT_EVENTS" default:"false"`
}

type PromotionsConfig struct {
	CacheTTL                 time.Duration `envconfig:"PROMOENGINE_PROMOTIONS_CACHE_TTL" default:"5m"`
	CacheRefreshInterval     time.Duration `envconfig:"PROMOENGINE_PROMOTIONS_CACHE_REFRESH_INTERVAL" default:"1m"`
	CalculationTimeout       time.Duration `envconfig:"PROMOENGINE_PROMOTIONS_CALCULATION_TIMEOUT" default:"2s"`
	MaxCombinationCandidates int           `envconfig:"PROMOENGINE_PROMOTIONS_MAX_COMBINATION_CANDIDATES" default:"12"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"PROMOENGINE_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"PROMOENGINE_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	PricingTopic string `envconfig:"PROMOENGINE_PUBSUB_PRICING_TOPIC" default:"pricing-events"`
}

// useSQLite switches to the local sqlite driver, defaulting to a file in the
// working directory when no DSN is set.
func (db *DBConfig) useSQLite() {
	db.Driver = DBDriverSQLite
	if db.DSN == "" {
		db.DSN = DefaultSQLiteDSN
	}
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
