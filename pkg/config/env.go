package config

// EnvPrefix is passed to envconfig; individual fields carry explicit
// FIELDLEDGER_ names so the prefix stays informational.
const EnvPrefix = "FIELDLEDGER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv  = "FIELDLEDGER_APP_ENV"
	EnvAppPort = "FIELDLEDGER_APP_PORT"

	EnvDBDSN  = "FIELDLEDGER_DB_DSN"
	EnvDBHost = "FIELDLEDGER_DB_HOST"
	EnvDBUser = "FIELDLEDGER_DB_USER"
	EnvDBName = "FIELDLEDGER_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
