package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Harshitk-cp/evotier/internal/service"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Load reads the .env file specified by EVOTIER_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("EVOTIER_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	return intEnv("SERVER_PORT", 8080)
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// DatabaseURL enables the Postgres stores when set.
func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// ClickHouseURL enables the ClickHouse price source when set.
func ClickHouseURL() string {
	return os.Getenv("CLICKHOUSE_URL")
}

func ClickHousePriceTable() string {
	return stringEnv("CLICKHOUSE_PRICE_TABLE", "price_bars")
}

// StateFile is where learner state is kept when no database is configured.
func StateFile() string {
	return os.Getenv("STATE_FILE")
}

func RiskWeights() service.RiskWeights {
	def := service.DefaultRiskWeights()
	return service.RiskWeights{
		Strategy: floatEnv("RISK_WEIGHT_STRATEGY", def.Strategy),
		Market:   floatEnv("RISK_WEIGHT_MARKET", def.Market),
		Mutation: floatEnv("RISK_WEIGHT_MUTATION", def.Mutation),
	}
}

func Tier1Threshold() float64 {
	return floatEnv("TIER1_THRESHOLD", service.DefaultTier1Threshold)
}

func Tier2Threshold() float64 {
	return floatEnv("TIER2_THRESHOLD", service.DefaultTier2Threshold)
}

func AllowOverride() bool {
	return boolEnv("ALLOW_OVERRIDE", true)
}

func EnableAdaptation() bool {
	return boolEnv("ENABLE_ADAPTATION", true)
}

func HistoryWindow() int {
	return intEnv("HISTORY_WINDOW", service.DefaultHistoryWindow)
}

func LearningRate() float64 {
	return floatEnv("LEARNING_RATE", service.DefaultLearningRate)
}

// MinSamples allows 0, which adapts on every recorded outcome.
func MinSamples() int {
	n, err := strconv.Atoi(os.Getenv("MIN_SAMPLES"))
	if err != nil || n < 0 {
		return service.DefaultMinSamples
	}
	return n
}

func PersistTimeout() time.Duration {
	return durationEnv("PERSIST_TIMEOUT", service.DefaultPersistTimeout)
}

// SnapshotInterval returns the state snapshot period. 0 disables snapshots.
func SnapshotInterval() time.Duration {
	raw := os.Getenv("SNAPSHOT_INTERVAL")
	if raw == "" {
		return 15 * time.Minute
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 15 * time.Minute
	}
	return d
}

// ManagerConfig assembles the selection engine configuration. Validation
// happens in service.NewTierSelectionManager.
func ManagerConfig() service.ManagerConfig {
	return service.ManagerConfig{
		Weights:          RiskWeights(),
		Tier1Threshold:   Tier1Threshold(),
		Tier2Threshold:   Tier2Threshold(),
		AllowOverride:    AllowOverride(),
		EnableAdaptation: EnableAdaptation(),
		Learner: service.LearnerConfig{
			HistoryWindow:  HistoryWindow(),
			LearningRate:   LearningRate(),
			MinSamples:     MinSamples(),
			PersistTimeout: PersistTimeout(),
		},
	}
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	return intEnv("RATE_LIMIT_BURST", 20)
}

// APIKey is the bearer key required on /v1 routes. Empty disables auth.
func APIKey() string {
	return os.Getenv("API_KEY")
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	return stringEnv("LOG_LEVEL", "info")
}

// NewLogger builds a production zap logger at LogLevel.
func NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(LogLevel())
	if err != nil {
		return nil, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func floatEnv(key string, def float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || f < 0 {
		return def
	}
	return f
}

func boolEnv(key string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return b
}

func durationEnv(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
