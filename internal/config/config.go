package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by CONCORD_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("CONCORD_ENV")
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
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// DatabaseURL is optional; without it ledger entries and cycle results are kept in
// memory only.
func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

// APIKey is the bearer key required on /v1 and /agent routes. Empty disables auth.
func APIKey() string {
	return os.Getenv("API_KEY")
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
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

func AgentsFile() string {
	p := os.Getenv("AGENTS_FILE")
	if p == "" {
		return "agents.yaml"
	}
	return p
}

// AgentID names this process when it serves the /agent routes.
// Defaults to "local".
func AgentID() string {
	id := os.Getenv("AGENT_ID")
	if id == "" {
		return "local"
	}
	return id
}

func SyncTimeout() time.Duration {
	return durationOr("SYNC_TIMEOUT", 5*time.Second)
}

func AnalyzeTimeout() time.Duration {
	return durationOr("ANALYZE_TIMEOUT", 10*time.Second)
}

func ExecuteTimeout() time.Duration {
	return durationOr("EXECUTE_TIMEOUT", 30*time.Second)
}

func ReconcileInterval() time.Duration {
	return durationOr("RECONCILE_INTERVAL", time.Minute)
}

// MaxCycleIterations bounds the driver loop. Defaults to 5.
func MaxCycleIterations() int {
	n, err := strconv.Atoi(os.Getenv("MAX_CYCLE_ITERATIONS"))
	if err != nil || n <= 0 {
		return 5
	}
	return n
}

// LedgerGenesisSeed fixes the genesis hash so ledgers are reproducible across runs.
// Empty means the construction time is used.
func LedgerGenesisSeed() string {
	return os.Getenv("LEDGER_GENESIS_SEED")
}

func durationOr(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
