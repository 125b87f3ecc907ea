package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	OutboxSinkPubSub = "pubsub"
	OutboxSinkKafka  = "kafka"
)

const (
	EnvAppEnv    = "STOREFRONT_APP_ENV"
	EnvPort      = "STOREFRONT_APP_PORT"
	EnvClientURL = "STOREFRONT_CLIENT_URL"

	EnvDBDSN    = "STOREFRONT_DB_DSN"
	EnvDBDriver = "STOREFRONT_DB_DRIVER"
	EnvDBHost   = "STOREFRONT_DB_HOST"
	EnvDBUser   = "STOREFRONT_DB_USER"
	EnvDBName   = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvJWTSecret = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer = "STOREFRONT_JWT_ISSUER"

	EnvGCPProjectID = "STOREFRONT_GCP_PROJECT_ID"
	EnvGCSBucket    = "STOREFRONT_GCS_BUCKET_NAME"

	EnvStripeCurrency = "STOREFRONT_STRIPE_CURRENCY"
	EnvStripeTimeout  = "STOREFRONT_STRIPE_TIMEOUT"

	EnvKafkaBrokers = "STOREFRONT_KAFKA_BROKERS"
	EnvOutboxSink   = "STOREFRONT_OUTBOX_SINK"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
