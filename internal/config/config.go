package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/mini-rodalies-3d/railsim/internal/control"
	"github.com/mini-rodalies-3d/railsim/internal/dispatch"
)

// Config holds all configuration for a simulation run
type Config struct {
	// Inputs
	NetworkPath  string
	SchedulePath string

	// Run
	Ticks int
	Seed  uint64

	// Failure injection
	PlatformDelayProbability float64
	SignalFailureProbability float64
	SwitchFailureProbability float64
	MaxDelay                 int

	// Recording
	DatabasePath string
	DatabaseURL  string

	// Logging
	LogLevel  string
	LogFormat string

	// HTTP (simserver only)
	Port         string
	CORSOrigins  string // comma-separated
	TickInterval int    // milliseconds between ticks when serving
}

// LoadDotEnv reads .env then lets .env.local override it. Missing files are
// not an error.
func LoadDotEnv(dir string) {
	_ = godotenv.Load(dir + "/.env")
	_ = godotenv.Overload(dir + "/.env.local")
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		// Inputs
		NetworkPath:  getEnv("NETWORK_FILE", "data/network.json"),
		SchedulePath: getEnv("SCHEDULE_FILE", "data/schedule.json"),

		// Run
		Ticks: getEnvInt("SIM_TICKS", 1440),
		Seed:  uint64(getEnvInt("SIM_SEED", 1)),

		// Failure injection
		PlatformDelayProbability: getEnvFloat("PLATFORM_DELAY_PROBABILITY", dispatch.PlatformDelayProbability),
		SignalFailureProbability: getEnvFloat("SIGNAL_FAILURE_PROBABILITY", dispatch.SignalFailureProbability),
		SwitchFailureProbability: getEnvFloat("SWITCH_FAILURE_PROBABILITY", dispatch.SwitchFailureProbability),
		MaxDelay:                 getEnvInt("MAX_DELAY", dispatch.MaxDelay),

		// Recording
		DatabasePath: getEnv("SQLITE_DATABASE", "data/railsim.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		// HTTP
		Port:         getEnv("PORT", "8081"),
		CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:5173"),
		TickInterval: getEnvInt("TICK_INTERVAL_MS", 1000),
	}
}

// Params converts the injection settings for the control package
func (c *Config) Params() control.Params {
	return control.Params{
		Dispatch: dispatch.Params{
			PlatformDelayProbability: c.PlatformDelayProbability,
			SignalFailureProbability: c.SignalFailureProbability,
			MaxDelay:                 c.MaxDelay,
		},
		SwitchFailureProbability: c.SwitchFailureProbability,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 && f <= 1 {
			return f
		}
	}
	return defaultValue
}
