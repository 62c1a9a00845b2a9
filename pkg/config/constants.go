package config

// EnvPrefix namespaces every environment variable consumed by the service.
const EnvPrefix = "northcart"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "NORTHCART_DB_DSN"
	EnvDBHost = "NORTHCART_DB_HOST"
	EnvDBUser = "NORTHCART_DB_USER"
	EnvDBName = "NORTHCART_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
