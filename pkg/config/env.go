package config

// EnvPrefix is empty because every tag spells out the full variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	StorageDriverLocal = "local"
	StorageDriverGCS   = "gcs"
)

const (
	EnvAppEnv          = "RADAR_APP_ENV"
	EnvAppPort         = "RADAR_APP_PORT"
	EnvDBDSN           = "RADAR_DB_DSN"
	EnvDBHost          = "RADAR_DB_HOST"
	EnvDBUser          = "RADAR_DB_USER"
	EnvDBName          = "RADAR_DB_NAME"
	EnvJWTSecret       = "RADAR_JWT_SECRET"
	EnvStorageDriver   = "RADAR_STORAGE_DRIVER"
	EnvStorageLocalDir = "RADAR_STORAGE_LOCAL_DIR"
	EnvGCSBucketName   = "RADAR_GCS_BUCKET_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
