package config

const (
	EnvPrefix = "pearl"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "PEARL_DB_DSN"
	EnvDBHost = "PEARL_DB_HOST"
	EnvDBUser = "PEARL_DB_USER"
	EnvDBName = "PEARL_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
