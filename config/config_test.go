package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "secret", cfg.JWTSecret)
	assert.Equal(t, 60*time.Minute, cfg.JWTTTL)
	assert.Equal(t, StoreMongo, cfg.StoreBackend)
	assert.Equal(t, "event_manager_db", cfg.Mongo.Database)
	assert.Equal(t, MediaCloudinary, cfg.Media.Backend)
	assert.Empty(t, cfg.MQ.Backend)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_TTL", "15m")
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("DB_USE_SSL", "true")
	t.Setenv("MQ_BACKEND", "rabbitmq")
	t.Setenv("LOGIN_RATE_LIMIT", "0.5")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "", cfg.JWTSecret)
	assert.Equal(t, 15*time.Minute, cfg.JWTTTL)
	assert.Equal(t, StorePostgres, cfg.StoreBackend)
	assert.True(t, cfg.Database.UseSSL)
	assert.Equal(t, MQRabbitMQ, cfg.MQ.Backend)
	assert.InDelta(t, 0.5, cfg.LoginRateLimit, 1e-9)
}

func TestLoadConfig_LegacySecretKey(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))
	t.Setenv("JWT_SECRET_KEY", " legacy ")

	cfg := LoadConfig()

	assert.Equal(t, "legacy", cfg.JWTSecret)
}

func TestGetEnvHelpers_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_DUR", "soon")

	assert.Equal(t, 7, getEnvInt("X_INT", 7))
	assert.True(t, getEnvBool("X_BOOL", true))
	assert.Equal(t, time.Second, getEnvDuration("X_DUR", time.Second))
}
