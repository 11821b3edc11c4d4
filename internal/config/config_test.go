package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "wallet-ledger", cfg.JWTIssuer)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 5*time.Second, cfg.PersistenceTimeout)
	assert.Equal(t, 5*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, time.Hour, cfg.ReconciliationInterval)
	assert.Equal(t, 1, cfg.RateLimitRPS)
	assert.Equal(t, "https://api.paystack.co", cfg.PaystackBaseURL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadPrefixedOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("WALLET_PORT", "9090")
	t.Setenv("APP_ENV", "Production")
	t.Setenv("GATEWAY_TIMEOUT", "750ms")
	t.Setenv("RATE_LIMIT_RPS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 750*time.Millisecond, cfg.GatewayTimeout)
	assert.Equal(t, 1, cfg.RateLimitRPS)
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":   {"JWT_SECRET": ""},
		"short secret":     {"JWT_SECRET": "short"},
		"bad duration":     {"JWT_SECRET": testSecret, "IDEMPOTENCY_TTL": "soon"},
		"negative timeout": {"JWT_SECRET": testSecret, "PERSISTENCE_TIMEOUT": "-1s"},
		"empty issuer":     {"JWT_SECRET": testSecret, "JWT_ISSUER": " "},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}
