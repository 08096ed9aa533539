package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123"

func TestDefaults(t *testing.T) {
	cfg, err := parse(env.Options{Environment: map[string]string{"JWT_SECRET": secret}})
	require.NoError(t, err)

	assert.Equal(t, uint16(8085), cfg.HttpServerPort)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, 12*time.Hour, cfg.JwtTTL)
	assert.Equal(t, 3, cfg.BidRetryAttempts)
	assert.Equal(t, 10*time.Second, cfg.LotSyncInterval)
	assert.Equal(t, "disable", cfg.Postgres().SSLMode)
}

func TestOverrides(t *testing.T) {
	cfg, err := parse(env.Options{Environment: map[string]string{
		"JWT_SECRET":         secret,
		"STORE_DRIVER":       "memory",
		"REDIS_ENABLED":      "false",
		"BID_LOCK_TIMEOUT":   "0s",
		"BID_RETRY_ATTEMPTS": "5",
		"POSTGRES_HOST":      "db",
		"LOG_FORMAT":         "json",
	}})
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.False(t, cfg.RedisEnabled)
	assert.Zero(t, cfg.BidLockTimeout)
	assert.Equal(t, 5, cfg.BidRetryAttempts)
	assert.Equal(t, "db", cfg.Postgres().Host)
}

func TestRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{}},
		{"short secret", map[string]string{"JWT_SECRET": "short"}},
		{"unknown driver", map[string]string{"JWT_SECRET": secret, "STORE_DRIVER": "sqlite"}},
		{"low port", map[string]string{"JWT_SECRET": secret, "HTTP_SERVER_PORT": "80"}},
		{"bad duration", map[string]string{"JWT_SECRET": secret, "BID_TX_TIMEOUT": "soon"}},
		{"no retries", map[string]string{"JWT_SECRET": secret, "BID_RETRY_ATTEMPTS": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(env.Options{Environment: tt.env})
			assert.Error(t, err)
		})
	}
}
