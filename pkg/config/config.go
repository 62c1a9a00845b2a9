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
	Checkout     CheckoutConfig
	Reservations ReservationConfig
	Square       SquareConfig
	Swish        SwishConfig
	BNPL         BNPLConfig
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
	Env          string `envconfig:"NORTHCART_APP_ENV" required:"true"`
	Port         string `envconfig:"NORTHCART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"NORTHCART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"NORTHCART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"NORTHCART_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"NORTHCART_DB_DSN"`
	Driver string `envconfig:"NORTHCART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"NORTHCART_DB_HOST"`
	LegacyPort     int    `envconfig:"NORTHCART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"NORTHCART_DB_USER"`
	LegacyPassword string `envconfig:"NORTHCART_DB_PASSWORD"`
	LegacyName     string `envconfig:"NORTHCART_DB_NAME"`
	LegacySSLMode  string `envconfig:"NORTHCART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"NORTHCART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"NORTHCART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"NORTHCART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"NORTHCART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"NORTHCART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"NORTHCART_REDIS_ADDR"`
	Password     string        `envconfig:"NORTHCART_REDIS_PASSWORD"`
	DB           int           `envconfig:"NORTHCART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"NORTHCART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"NORTHCART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"NORTHCART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"NORTHCART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"NORTHCART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CheckoutConfig carries the money rules applied when an order is created.
type CheckoutConfig struct {
	Currency       string             `envconfig:"NORTHCART_CHECKOUT_CURRENCY" default:"SEK"`
	VATRates       map[string]float64 `envconfig:"NORTHCART_CHECKOUT_VAT_RATES" default:"SE:0.25,NO:0.25,DK:0.25,FI:0.255,DE:0.19"`
	DefaultVATRate float64            `envconfig:"NORTHCART_CHECKOUT_DEFAULT_VAT_RATE" default:"0.25"`
}

// VATRateFor resolves the VAT rate for a destination country code.
func (c CheckoutConfig) VATRateFor(country string) decimal.Decimal {
	key := strings.ToUpper(strings.TrimSpace(country))
	if rate, ok := c.VATRates[key]; ok {
		return decimal.NewFromFloat(rate)
	}
	return decimal.NewFromFloat(c.DefaultVATRate)
}

// ReservationConfig governs the time-boxed stock holds taken during checkout.
type ReservationConfig struct {
	TTL             time.Duration `envconfig:"NORTHCART_RESERVATION_TTL" default:"30m"`
	CleanupInterval time.Duration `envconfig:"NORTHCART_RESERVATION_CLEANUP_INTERVAL" default:"5m"`
	CleanupToken    string        `envconfig:"NORTHCART_RESERVATION_CLEANUP_TOKEN" required:"true"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"NORTHCART_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"NORTHCART_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"NORTHCART_SQUARE_LOCATION_ID"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type SwishConfig struct {
	BaseURL     string        `envconfig:"NORTHCART_SWISH_BASE_URL" default:"https://mss.cpc.getswish.net/swish-cpcapi"`
	MerchantID  string        `envconfig:"NORTHCART_SWISH_MERCHANT_ID"`
	CallbackURL string        `envconfig:"NORTHCART_SWISH_CALLBACK_URL"`
	Timeout     time.Duration `envconfig:"NORTHCART_SWISH_TIMEOUT" default:"10s"`
}

type BNPLConfig struct {
	BaseURL string        `envconfig:"NORTHCART_BNPL_BASE_URL" default:"https://api.playground.klarna.com"`
	APIKey  string        `envconfig:"NORTHCART_BNPL_API_KEY"`
	Timeout time.Duration `envconfig:"NORTHCART_BNPL_TIMEOUT" default:"10s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"NORTHCART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"NORTHCART_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"NORTHCART_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"NORTHCART_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"NORTHCART_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"NORTHCART_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription       string `envconfig:"NORTHCART_PUBSUB_ORDERS_SUBSCRIPTION" required:"true"`
	NotificationTopic        string `envconfig:"NORTHCART_PUBSUB_NOTIFICATION_TOPIC" default:"nc-notification-events"`
	NotificationSubscription string `envconfig:"NORTHCART_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"NORTHCART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"NORTHCART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"NORTHCART_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"NORTHCART_OUTBOX_RETENTION_DAYS" default:"30"`
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
