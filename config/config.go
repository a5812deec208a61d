package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

const (
	BackendOpenAI = "openai"
	BackendGemini = "gemini"

	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
)

var ErrMissingToken = errors.New("BOT_TOKEN is not set")

var Module = fx.Provide(Provide)

type Config struct {
	Token          string
	StatsChannelID string
	Debug          bool
	LogLevel       string
	LogFormat      string

	TrialDuration     time.Duration
	SchedulerInterval time.Duration

	Database Database
	AI       AI

	RedisAddr     string
	RedisPassword string
	MetricsAddr   string
}

type Database struct {
	Type     string
	Path     string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type AI struct {
	Backend     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	BaseURL string
	Model   string
	APIKey  string

	GeminiBaseURL    string
	GeminiAPIVersion string
	GeminiModel      string
	GeminiAPIKey     string
}

// Provide loads the configuration and refuses to start without a bot token.
func Provide() (Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads configuration from the environment and an optional .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Token:          strings.TrimSpace(getEnv("BOT_TOKEN", "")),
		StatsChannelID: strings.TrimSpace(getEnv("STATS_CHANNEL_ID", "")),
		Debug:          getBoolEnv("DEBUG_MODE", false),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),

		TrialDuration:     getDurationEnv("TRIAL_DURATION_HOURS", 24, time.Hour),
		SchedulerInterval: getDurationEnv("SCHEDULER_INTERVAL_SECONDS", 60, time.Second),

		Database: Database{
			Type:     strings.ToLower(getEnv("DATABASE_TYPE", DatabaseSQLite)),
			Path:     getEnv("DATABASE_PATH", "bot_database.db"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "dcorpbot"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},

		AI: AI{
			Backend:     strings.ToLower(getEnv("AI_BACKEND", BackendOpenAI)),
			Temperature: getFloatEnv("AI_TEMPERATURE", 0.7),
			MaxTokens:   getIntEnv("AI_MAX_TOKENS", 1024),
			Timeout:     getDurationEnv("AI_TIMEOUT_SECONDS", 60, time.Second),

			BaseURL: strings.TrimSpace(getEnv("NEURO_API_BASE_URL", "")),
			Model:   strings.TrimSpace(getEnv("NEURO_MODEL_NAME", "")),
			APIKey:  strings.TrimSpace(getEnv("NEURO_API_KEY", "")),

			GeminiBaseURL:    strings.TrimSpace(getEnv("GEMINI_API_BASE_URL", "https://generativelanguage.googleapis.com/")),
			GeminiAPIVersion: strings.TrimSpace(getEnv("GEMINI_API_VERSION", "v1beta")),
			GeminiModel:      strings.TrimSpace(getEnv("GEMINI_MODEL_NAME", "gemini-1.5-flash")),
			GeminiAPIKey:     strings.TrimSpace(getEnv("GEMINI_API_KEY", "")),
		},

		RedisAddr:     strings.TrimSpace(getEnv("REDIS_ADDR", "")),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		MetricsAddr:   strings.TrimSpace(getEnv("METRICS_ADDR", "")),
	}
}

func (c Config) Validate() error {
	if c.Token == "" {
		return ErrMissingToken
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return defaultValue
	}
}

// getDurationEnv reads a positive integer count of unit.
func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n > 0 {
			return time.Duration(n) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}
