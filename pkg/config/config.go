package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable read by Load.
	EnvPrefix = "PRINTBRIDGE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	Storage       StorageConfig
	Station       StationConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
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
	Env          string   `envconfig:"PRINTBRIDGE_APP_ENV" required:"true"`
	Port         string   `envconfig:"PRINTBRIDGE_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"PRINTBRIDGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"PRINTBRIDGE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"PRINTBRIDGE_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PRINTBRIDGE_DB_DSN"`
	Driver string `envconfig:"PRINTBRIDGE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"PRINTBRIDGE_DB_HOST"`
	Port     int    `envconfig:"PRINTBRIDGE_DB_PORT" default:"5432"`
	User     string `envconfig:"PRINTBRIDGE_DB_USER"`
	Password string `envconfig:"PRINTBRIDGE_DB_PASSWORD"`
	Name     string `envconfig:"PRINTBRIDGE_DB_NAME"`
	SSLMode  string `envconfig:"PRINTBRIDGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PRINTBRIDGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PRINTBRIDGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PRINTBRIDGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PRINTBRIDGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// ensureDSN derives a postgres DSN from the discrete parts when one was not provided.
func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("database DSN or host/user/name settings are required")
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.Name,
	}
	q := dsn.Query()
	q.Set("sslmode", d.SSLMode)
	dsn.RawQuery = q.Encode()
	d.DSN = dsn.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"PRINTBRIDGE_REDIS_URL"`
	Address      string        `envconfig:"PRINTBRIDGE_REDIS_ADDR"`
	Password     string        `envconfig:"PRINTBRIDGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"PRINTBRIDGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PRINTBRIDGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PRINTBRIDGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PRINTBRIDGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PRINTBRIDGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PRINTBRIDGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PRINTBRIDGE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PRINTBRIDGE_JWT_ISSUER" default:"printbridge"`
	ExpirationMinutes int    `envconfig:"PRINTBRIDGE_JWT_EXPIRATION_MINUTES" default:"1440"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"PRINTBRIDGE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"PRINTBRIDGE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"PRINTBRIDGE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"PRINTBRIDGE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"PRINTBRIDGE_ARGON_KEY_LEN" default:"32"`
}

type StorageConfig struct {
	UploadRoot         string `envconfig:"PRINTBRIDGE_UPLOAD_ROOT" default:"/var/lib/printbridge/uploads"`
	DefaultMaxUploadMB int    `envconfig:"PRINTBRIDGE_DEFAULT_MAX_UPLOAD_MB" default:"10"`
}

type StationConfig struct {
	// HeartbeatStaleAfter is how old a heartbeat may be before list/status reads
	// report the station offline.
	HeartbeatStaleAfter time.Duration `envconfig:"PRINTBRIDGE_STATION_HEARTBEAT_STALE_AFTER" default:"60s"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"PRINTBRIDGE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginUserLimit     int           `envconfig:"PRINTBRIDGE_AUTH_RATE_LIMIT_LOGIN_USER_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"PRINTBRIDGE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"PRINTBRIDGE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterUserLimit  int           `envconfig:"PRINTBRIDGE_AUTH_RATE_LIMIT_REGISTER_USER_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"PRINTBRIDGE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PRINTBRIDGE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PRINTBRIDGE_AUTO_MIGRATE" default:"false"`
}
