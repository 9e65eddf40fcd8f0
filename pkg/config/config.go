package config

import (
	"fmt"
	"net/url"
	"sort"
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
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Stock        StockConfig
	Checkout     CheckoutConfig
	Cron         CronConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Stripe       StripeConfig
	Outbox       OutboxConfig
	HTTP         HTTPConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TERRA_APP_ENV" required:"true"`
	Port         string `envconfig:"TERRA_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"TERRA_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"TERRA_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"TERRA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"TERRA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TERRA_DB_DSN"`
	Driver string `envconfig:"TERRA_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"TERRA_DB_HOST"`
	Port     int    `envconfig:"TERRA_DB_PORT" default:"5432"`
	User     string `envconfig:"TERRA_DB_USER"`
	Password string `envconfig:"TERRA_DB_PASSWORD"`
	Name     string `envconfig:"TERRA_DB_NAME"`
	SSLMode  string `envconfig:"TERRA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TERRA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TERRA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TERRA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TERRA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TERRA_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"TERRA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TERRA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TERRA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TERRA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TERRA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies admin bearer tokens issued by the back office.
type JWTConfig struct {
	Secret            string `envconfig:"TERRA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TERRA_JWT_ISSUER" default:"terra"`
	ExpirationMinutes int    `envconfig:"TERRA_JWT_EXPIRATION_MINUTES" default:"60"`
}

// HTTPConfig holds edge settings of the public API.
type HTTPConfig struct {
	AllowedOrigins     []string      `envconfig:"TERRA_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	CheckoutRateWindow time.Duration `envconfig:"TERRA_CHECKOUT_RATE_WINDOW" default:"1m"`
	CheckoutIPLimit    int           `envconfig:"TERRA_CHECKOUT_RATE_IP_LIMIT" default:"20"`
	CheckoutEmailLimit int           `envconfig:"TERRA_CHECKOUT_RATE_EMAIL_LIMIT" default:"10"`
	ShutdownTimeout    time.Duration `envconfig:"TERRA_HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TERRA_AUTO_MIGRATE" default:"false"`
}

type StockConfig struct {
	ReservationTTL           time.Duration `envconfig:"TERRA_STOCK_RESERVATION_TTL" default:"30m"`
	DefaultLowStockThreshold int           `envconfig:"TERRA_STOCK_LOW_THRESHOLD" default:"5"`
	StatsWindow              time.Duration `envconfig:"TERRA_STOCK_STATS_WINDOW" default:"168h"`
	MutationAttempts         int           `envconfig:"TERRA_STOCK_MUTATION_ATTEMPTS" default:"3"`
	SweepBatchSize           int           `envconfig:"TERRA_STOCK_SWEEP_BATCH_SIZE" default:"200"`
}

type CheckoutConfig struct {
	Currency              string        `envconfig:"TERRA_CHECKOUT_CURRENCY" default:"eur"`
	FreeShippingThreshold string        `envconfig:"TERRA_CHECKOUT_FREE_SHIPPING_THRESHOLD" default:"75.00"`
	ShippingFee           string        `envconfig:"TERRA_CHECKOUT_SHIPPING_FEE" default:"7.90"`
	StrictReservations    bool          `envconfig:"TERRA_CHECKOUT_STRICT_RESERVATIONS" default:"false"`
	AllowTestFixtures     bool          `envconfig:"TERRA_CHECKOUT_ALLOW_TEST_FIXTURES" default:"false"`
	IdempotencyTTL        time.Duration `envconfig:"TERRA_CHECKOUT_IDEMPOTENCY_TTL" default:"24h"`
}

func (c CheckoutConfig) validate() error {
	if _, err := c.FreeShippingThresholdAmount(); err != nil {
		return fmt.Errorf("invalid %s: %w", EnvFreeShippingThreshold, err)
	}
	if _, err := c.ShippingFeeAmount(); err != nil {
		return fmt.Errorf("invalid %s: %w", EnvShippingFee, err)
	}
	return nil
}

func (c CheckoutConfig) FreeShippingThresholdAmount() (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(c.FreeShippingThreshold))
}

func (c CheckoutConfig) ShippingFeeAmount() (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(c.ShippingFee))
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"TERRA_CRON_INTERVAL" default:"1m"`
	OutboxRetention time.Duration `envconfig:"TERRA_OUTBOX_RETENTION" default:"168h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TERRA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"TERRA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
}

// BigQueryConfig enables the ledger export job when Dataset is set.
type BigQueryConfig struct {
	Dataset        string `envconfig:"TERRA_BIGQUERY_DATASET"`
	MovementsTable string `envconfig:"TERRA_BIGQUERY_MOVEMENTS_TABLE" default:"stock_movements"`
	ExportBatch    int    `envconfig:"TERRA_BIGQUERY_EXPORT_BATCH" default:"500"`
}

type PubSubConfig struct {
	StockTopic  string `envconfig:"TERRA_PUBSUB_STOCK_TOPIC" default:"terra-stock-events"`
	OrdersTopic string `envconfig:"TERRA_PUBSUB_ORDERS_TOPIC" default:"terra-order-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TERRA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TERRA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TERRA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	APIKey string `envconfig:"TERRA_STRIPE_API_KEY"`
	Secret string `envconfig:"TERRA_STRIPE_WEBHOOK_SECRET"`
	Env    string `envconfig:"TERRA_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.Driver == DriverSQLite {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	for env, value := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
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
