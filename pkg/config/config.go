package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Ledger        LedgerConfig
	Storage       StorageConfig
	GCP           GCPConfig
	GCS           GCSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.validate(cfg.GCS); err != nil {
		return nil, err
	}
	if _, err := cfg.App.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"RADAR_APP_ENV" required:"true"`
	Port         string   `envconfig:"RADAR_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"RADAR_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"RADAR_LOG_WARN_STACK" default:"false"`
	TimeZone     string   `envconfig:"RADAR_APP_TIMEZONE" default:"UTC"`
	CORSOrigins  []string `envconfig:"RADAR_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// Location resolves the zone used to decide what "today" means for agendas.
func (a AppConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(a.TimeZone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", name, err)
	}
	return loc, nil
}

type DBConfig struct {
	DSN    string `envconfig:"RADAR_DB_DSN"`
	Driver string `envconfig:"RADAR_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RADAR_DB_HOST"`
	LegacyPort     int    `envconfig:"RADAR_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RADAR_DB_USER"`
	LegacyPassword string `envconfig:"RADAR_DB_PASSWORD"`
	LegacyName     string `envconfig:"RADAR_DB_NAME"`
	LegacySSLMode  string `envconfig:"RADAR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RADAR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RADAR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RADAR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RADAR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery logs statements slower than this at warn level; 0 disables.
	SlowQuery time.Duration `envconfig:"RADAR_DB_SLOW_QUERY" default:"500ms"`
}

// RedisConfig is optional: without a URL or address the API runs without
// idempotency replay and login rate limiting.
type RedisConfig struct {
	URL          string        `envconfig:"RADAR_REDIS_URL"`
	Address      string        `envconfig:"RADAR_REDIS_ADDR"`
	Password     string        `envconfig:"RADAR_REDIS_PASSWORD"`
	DB           int           `envconfig:"RADAR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RADAR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RADAR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RADAR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RADAR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RADAR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"RADAR_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"RADAR_JWT_ISSUER" default:"radarprecios"`
	ExpirationMinutes int    `envconfig:"RADAR_JWT_EXPIRATION_MINUTES" default:"720"`
}

func (j JWTConfig) TTL() time.Duration {
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"RADAR_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"RADAR_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"RADAR_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"RADAR_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"RADAR_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"RADAR_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"RADAR_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"RADAR_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"RADAR_AUTO_MIGRATE" default:"false"`
}

type LedgerConfig struct {
	DefaultCurrencyID    int64 `envconfig:"RADAR_DEFAULT_CURRENCY_ID" default:"1"`
	CheckInConflictRetry int   `envconfig:"RADAR_CHECKIN_CONFLICT_RETRIES" default:"2"`
}

type StorageConfig struct {
	Driver       string `envconfig:"RADAR_STORAGE_DRIVER" default:"local"`
	LocalDir     string `envconfig:"RADAR_STORAGE_LOCAL_DIR" default:"uploads"`
	PublicPrefix string `envconfig:"RADAR_STORAGE_PUBLIC_PREFIX" default:"/uploads"`
	MaxUploadMB  int    `envconfig:"RADAR_MAX_UPLOAD_MB" default:"10"`
}

// MaxUploadBytes converts the configured upload limit to bytes.
func (s StorageConfig) MaxUploadBytes() int64 {
	if s.MaxUploadMB <= 0 {
		return 10 << 20
	}
	return int64(s.MaxUploadMB) << 20
}

func (s StorageConfig) validate(gcs GCSConfig) error {
	switch strings.ToLower(strings.TrimSpace(s.Driver)) {
	case StorageDriverLocal:
		if strings.TrimSpace(s.LocalDir) == "" {
			return fmt.Errorf("%s is required for the local storage driver", EnvStorageLocalDir)
		}
		return nil
	case StorageDriverGCS:
		if strings.TrimSpace(gcs.BucketName) == "" {
			return fmt.Errorf("%s is required for the gcs storage driver", EnvGCSBucketName)
		}
		return nil
	default:
		return fmt.Errorf("unsupported storage driver %q", s.Driver)
	}
}

type GCPConfig struct {
	ProjectID              string `envconfig:"RADAR_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"RADAR_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"RADAR_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName    string `envconfig:"RADAR_GCS_BUCKET_NAME"`
	PublicBaseURL string `envconfig:"RADAR_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com"`
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
