package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Storage drivers accepted by STORE_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverFile     = "file"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:"127.0.0.1:8081"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	StoreDriver string `envconfig:"STORE_DRIVER" default:"sqlite"`

	PGDSN      string `envconfig:"PG_DSN"`
	PGMigrate  bool   `envconfig:"PG_MIGRATE" default:"true"`
	PGMaxConns int32  `envconfig:"PG_MAX_CONNS" default:"8"`

	SQLitePath string `envconfig:"SQLITE_PATH" default:"data/chat.db"`

	RedisAddr   string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPrefix string `envconfig:"REDIS_PREFIX" default:"mutextalk"`

	FileStoreDir string `envconfig:"FILE_STORE_DIR" default:"data"`

	AuditFile string `envconfig:"AUDIT_FILE" default:"data/transactions.log"`

	AdminUsers []string `envconfig:"ADMIN_USERS" default:"admin,administrator,root,sysadmin"`

	RateLimitPerMinute int    `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
	CORSOrigin         string `envconfig:"CORS_ORIGIN" default:"*"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite, DriverRedis, DriverFile:
	case DriverPostgres:
		if c.PGDSN == "" {
			return errors.New("PG_DSN must be provided for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	admins := c.AdminUsers[:0]
	for _, name := range c.AdminUsers {
		if name = strings.TrimSpace(name); name != "" {
			admins = append(admins, name)
		}
	}
	c.AdminUsers = admins
	if len(c.AdminUsers) == 0 {
		return errors.New("ADMIN_USERS must name at least one user")
	}
	if c.RateLimitPerMinute <= 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must be positive")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
