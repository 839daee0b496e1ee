package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Harshitk-cp/evotier/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	for _, key := range []string{
		"SERVER_PORT", "TIER1_THRESHOLD", "TIER2_THRESHOLD", "ALLOW_OVERRIDE", "ENABLE_ADAPTATION",
		"RISK_WEIGHT_STRATEGY", "RISK_WEIGHT_MARKET", "RISK_WEIGHT_MUTATION", "HISTORY_WINDOW",
		"LEARNING_RATE", "MIN_SAMPLES", "PERSIST_TIMEOUT", "SNAPSHOT_INTERVAL", "CLICKHOUSE_PRICE_TABLE",
		"LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	assert.Equal(t, ":8080", ServerAddr())
	assert.Equal(t, "price_bars", ClickHousePriceTable())
	assert.Equal(t, 15*time.Minute, SnapshotInterval())
	assert.Equal(t, "info", LogLevel())
	assert.Equal(t, service.DefaultManagerConfig(), ManagerConfig())
}

func TestManagerConfigFromEnv(t *testing.T) {
	t.Setenv("TIER1_THRESHOLD", "0.25")
	t.Setenv("TIER2_THRESHOLD", "0.8")
	t.Setenv("RISK_WEIGHT_STRATEGY", "0.5")
	t.Setenv("RISK_WEIGHT_MARKET", "0.2")
	t.Setenv("RISK_WEIGHT_MUTATION", "0.3")
	t.Setenv("ALLOW_OVERRIDE", "false")
	t.Setenv("ENABLE_ADAPTATION", "0")
	t.Setenv("HISTORY_WINDOW", "50")
	t.Setenv("LEARNING_RATE", "0.2")
	t.Setenv("MIN_SAMPLES", "0")
	t.Setenv("PERSIST_TIMEOUT", "500ms")

	cfg := ManagerConfig()
	assert.Equal(t, 0.25, cfg.Tier1Threshold)
	assert.Equal(t, 0.8, cfg.Tier2Threshold)
	assert.Equal(t, service.RiskWeights{Strategy: 0.5, Market: 0.2, Mutation: 0.3}, cfg.Weights)
	assert.False(t, cfg.AllowOverride)
	assert.False(t, cfg.EnableAdaptation)
	assert.Equal(t, service.LearnerConfig{
		HistoryWindow:  50,
		LearningRate:   0.2,
		MinSamples:     0,
		PersistTimeout: 500 * time.Millisecond,
	}, cfg.Learner)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "http")
	t.Setenv("RATE_LIMIT_RPS", "-1")
	t.Setenv("RATE_LIMIT_BURST", "0")
	t.Setenv("MIN_SAMPLES", "-3")
	t.Setenv("SNAPSHOT_INTERVAL", "soon")
	t.Setenv("ALLOW_OVERRIDE", "maybe")

	assert.Equal(t, 8080, ServerPort())
	assert.Equal(t, 100.0, RateLimitRPS())
	assert.Equal(t, 20, RateLimitBurst())
	assert.Equal(t, service.DefaultMinSamples, MinSamples())
	assert.Equal(t, 15*time.Minute, SnapshotInterval())
	assert.True(t, AllowOverride())
}

func TestSnapshotIntervalZeroDisables(t *testing.T) {
	t.Setenv("SNAPSHOT_INTERVAL", "0s")
	assert.Equal(t, time.Duration(0), SnapshotInterval())
}

func TestLoad_ReadsEnvAndSecret(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("CLICKHOUSE_PRICE_TABLE=bars_1m\n"), 0o600))
	require.NoError(t, os.WriteFile(envFile+".secret", []byte("API_KEY=from-secret\n"), 0o600))

	t.Setenv("EVOTIER_ENV", envFile)
	// godotenv never overrides variables that are already set; clear and
	// register cleanup through t.Setenv first.
	t.Setenv("CLICKHOUSE_PRICE_TABLE", "")
	t.Setenv("API_KEY", "")
	require.NoError(t, os.Unsetenv("CLICKHOUSE_PRICE_TABLE"))
	require.NoError(t, os.Unsetenv("API_KEY"))

	require.NoError(t, Load())
	assert.Equal(t, "bars_1m", ClickHousePriceTable())
	assert.Equal(t, "from-secret", APIKey())
}

func TestNewLogger(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	logger, err := NewLogger()
	require.NoError(t, err)
	assert.NotNil(t, logger)

	t.Setenv("LOG_LEVEL", "loud")
	_, err = NewLogger()
	assert.Error(t, err)
}
