package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "FINDTIME_DB_DRIVER", "FINDTIME_DB_DSN", "JWT_TTL",
		"REDIS_ADDR", "RATE_LIMIT_MAX", "RATE_LIMIT_WINDOW", "CORS_ORIGINS", "LOG_FORMAT"} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 100, cfg.RateLimitMax)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.False(t, cfg.RateLimitEnabled())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("FINDTIME_DB_DRIVER", "mysql")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("RATE_LIMIT_MAX", "5")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 5, cfg.RateLimitMax)
	assert.True(t, cfg.RateLimitEnabled())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
}

func TestFromEnvRejectsMalformedValues(t *testing.T) {
	t.Setenv("FINDTIME_DB_DRIVER", "sqlite")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("JWT_TTL", "")

	t.Setenv("RATE_LIMIT_MAX", "lots")
	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("RATE_LIMIT_MAX", "10")
	t.Setenv("JWT_TTL", "forever")
	_, err = FromEnv()
	assert.Error(t, err)

	t.Setenv("JWT_TTL", "1h")
	t.Setenv("FINDTIME_DB_DRIVER", "oracle")
	_, err = FromEnv()
	assert.Error(t, err)
}
