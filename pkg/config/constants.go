package config

// EnvPrefix is the envconfig prefix; individual fields carry full names.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names shared with tests and tooling.
const (
	EnvAppEnv   = "CARDVAULT_APP_ENV"
	EnvPort     = "CARDVAULT_APP_PORT"
	EnvDBDSN    = "CARDVAULT_DB_DSN"
	EnvDBHost   = "CARDVAULT_DB_HOST"
	EnvDBUser   = "CARDVAULT_DB_USER"
	EnvDBName   = "CARDVAULT_DB_NAME"
	EnvRedisURL = "CARDVAULT_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
