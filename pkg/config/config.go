package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "maison"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Assets       AssetConfig
	Passport     PassportConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Seed         SeedConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.App.validateBaseURL(); err != nil {
		return nil, err
	}
	if err := cfg.DB.validate(); err != nil {
		return nil, err
	}
	if cfg.Assets.Root == "" {
		return nil, fmt.Errorf("MAISON_ASSET_ROOT is required")
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MAISON_APP_ENV" required:"true"`
	Port         string `envconfig:"MAISON_APP_PORT" default:"8080"`
	BaseURL      string `envconfig:"MAISON_APP_BASE_URL" required:"true"`
	LogLevel     string `envconfig:"MAISON_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MAISON_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

func (a AppConfig) validateBaseURL() error {
	parsed, err := url.Parse(a.BaseURL)
	if err != nil {
		return fmt.Errorf("parsing MAISON_APP_BASE_URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("MAISON_APP_BASE_URL must be an absolute URL, got %q", a.BaseURL)
	}
	return nil
}

// PassportBaseURL returns the base URL without a trailing slash so QR
// payloads are built as <base>/passport/<uid> exactly.
func (a AppConfig) PassportBaseURL() string {
	return strings.TrimRight(a.BaseURL, "/")
}

type DBConfig struct {
	// Path points at the sqlite database file. When empty, DSN selects a
	// Postgres instance instead.
	Path string `envconfig:"MAISON_DATABASE_PATH"`
	DSN  string `envconfig:"MAISON_DB_DSN"`

	MaxOpenConns    int           `envconfig:"MAISON_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MAISON_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MAISON_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MAISON_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d DBConfig) validate() error {
	if d.Path == "" && d.DSN == "" {
		return fmt.Errorf("one of MAISON_DATABASE_PATH or MAISON_DB_DSN is required")
	}
	return nil
}

// UseSQLite reports whether the sqlite file store is selected.
func (d DBConfig) UseSQLite() bool {
	return d.Path != ""
}

type AssetConfig struct {
	// Root is the filesystem root for all generated artifacts. It is never
	// derived from request data.
	Root            string `envconfig:"MAISON_ASSET_ROOT"`
	LabelLogoPath   string `envconfig:"MAISON_LABEL_LOGO_PATH"`
	PassportLogo    string `envconfig:"MAISON_PASSPORT_LOGO_PATH"`
	DefaultFontPath string `envconfig:"MAISON_DEFAULT_FONT_PATH"`
	Currency        string `envconfig:"MAISON_CURRENCY" default:"EUR"`
}

type PassportConfig struct {
	// GoneStatuses lists serialized-item statuses that make the public
	// passport respond 410 instead of serving the document.
	GoneStatuses []string `envconfig:"MAISON_PASSPORT_GONE_STATUSES" default:"recalled,missing"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MAISON_REDIS_URL"`
	Address      string        `envconfig:"MAISON_REDIS_ADDR"`
	Password     string        `envconfig:"MAISON_REDIS_PASSWORD"`
	DB           int           `envconfig:"MAISON_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MAISON_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MAISON_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MAISON_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MAISON_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MAISON_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured at all.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"MAISON_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MAISON_JWT_ISSUER" default:"maisonnoire"`
	ExpirationMinutes int    `envconfig:"MAISON_JWT_EXPIRATION_MINUTES" default:"60"`
}

type SeedConfig struct {
	AdminEmail    string `envconfig:"MAISON_ADMIN_EMAIL"`
	AdminPassword string `envconfig:"MAISON_ADMIN_PASSWORD"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MAISON_AUTO_MIGRATE" default:"false"`
}
