package config

const EnvPrefix = "TERRA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv                = "TERRA_APP_ENV"
	EnvPort                  = "TERRA_APP_PORT"
	EnvDBDSN                 = "TERRA_DB_DSN"
	EnvDBDriver              = "TERRA_DB_DRIVER"
	EnvDBHost                = "TERRA_DB_HOST"
	EnvDBUser                = "TERRA_DB_USER"
	EnvDBName                = "TERRA_DB_NAME"
	EnvDBPassword            = "TERRA_DB_PASSWORD"
	EnvRedisURL              = "TERRA_REDIS_URL"
	EnvJWTSecret             = "TERRA_JWT_SECRET"
	EnvReservationTTL        = "TERRA_STOCK_RESERVATION_TTL"
	EnvFreeShippingThreshold = "TERRA_CHECKOUT_FREE_SHIPPING_THRESHOLD"
	EnvShippingFee           = "TERRA_CHECKOUT_SHIPPING_FEE"
	EnvAllowTestFixtures     = "TERRA_CHECKOUT_ALLOW_TEST_FIXTURES"
)
