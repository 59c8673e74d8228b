package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPPort        string
	ShutdownTimeout time.Duration

	DataDir string

	AuthUsername     string
	AuthPasswordHash string
	SessionTTL       time.Duration

	Provider        string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	ProviderTimeout time.Duration

	ScriptMaxBytes int
}

func Load() Config {
	return Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ShutdownTimeout: getDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),

		DataDir: getEnv("DATA_DIR", "data"),

		AuthUsername:     os.Getenv("AGENT_USERNAME"),
		AuthPasswordHash: os.Getenv("AGENT_PASSWORD_HASH"),
		SessionTTL:       getDuration("SESSION_TTL", 8*time.Hour),

		Provider:        getEnv("LLM_PROVIDER", "openai"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		ProviderTimeout: getDuration("PROVIDER_TIMEOUT", 60*time.Second),

		ScriptMaxBytes: getInt("SCRIPT_MAX_BYTES", 256*1024),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// getDuration reads a duration either as a plain number of seconds or as a
// time.ParseDuration string ("8h", "90s").
func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return fallback
}
