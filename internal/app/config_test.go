package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8081", cfg.AppAddr)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "data/chat.db", cfg.SQLitePath)
	assert.Equal(t, "data/transactions.log", cfg.AuditFile)
	assert.Equal(t, []string{"admin", "administrator", "root", "sysadmin"}, cfg.AdminUsers)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.Equal(t, 30*time.Second, cfg.AppRequestTimeout)
	assert.True(t, cfg.PGMigrate)
	assert.Equal(t, int32(8), cfg.PGMaxConns)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "redis")
	t.Setenv("REDIS_PREFIX", "chat")
	t.Setenv("ADMIN_USERS", "ops, ,lead")
	t.Setenv("APP_ENV", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DriverRedis, cfg.StoreDriver)
	assert.Equal(t, "chat", cfg.RedisPrefix)
	assert.Equal(t, []string{"ops", "lead"}, cfg.AdminUsers)
	assert.True(t, cfg.IsProduction())
}

func TestLoadConfigRejects(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown driver":       {"STORE_DRIVER": "mysql"},
		"postgres without dsn": {"STORE_DRIVER": "postgres", "PG_DSN": ""},
		"blank admins":         {"ADMIN_USERS": " , "},
		"zero rate":            {"RATE_LIMIT_PER_MINUTE": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestInTestMode(t *testing.T) {
	t.Setenv(TestModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(TestModeEnv, "true")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(TestModeEnv, "0")
	RefreshTestMode()
	assert.False(t, InTestMode())

	t.Setenv(TestModeEnv, "yes please")
	RefreshTestMode()
	assert.False(t, InTestMode())
}
