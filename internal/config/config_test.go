package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("JWT_ISSUER", "factorpool")
	t.Setenv("JWT_AUDIENCE", "factorpool-api")
	t.Setenv("OPERATOR_IDENTITY", "ops-1")
	t.Setenv("ADMIN_IDENTITY", "admin-1")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "ops-1", cfg.OperatorIdentity)
	assert.Equal(t, "admin-1", cfg.AdminIdentity)
	assert.Equal(t, 10*time.Second, cfg.SettlementInterval)
	assert.Equal(t, int32(50), cfg.SettlementBatch)
	assert.Equal(t, time.Hour, cfg.AuditInterval)
	assert.Equal(t, 10, cfg.FundMaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.FundBackoff)
	assert.Equal(t, 2*time.Second, cfg.FundMaxBackoff)
	assert.Equal(t, time.Hour, cfg.IntentCacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9999")
	t.Setenv("SETTLEMENT_INTERVAL", "2s")
	t.Setenv("FUND_MAX_ATTEMPTS", "3")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.HTTPPort)
	assert.Equal(t, 2*time.Second, cfg.SettlementInterval)
	assert.Equal(t, 3, cfg.FundMaxAttempts)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadValidation(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err)

	setRequiredEnv(t)
	t.Setenv("JWT_SECRET", "too-short")
	_, err = Load()
	assert.Error(t, err)

	setRequiredEnv(t)
	t.Setenv("OPERATOR_IDENTITY", "")
	_, err = Load()
	assert.Error(t, err)

	setRequiredEnv(t)
	t.Setenv("SETTLEMENT_INTERVAL", "bogus")
	_, err = Load()
	assert.Error(t, err)
}
