package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	QueueWorkers  int

	StorageBasePath string
	StorageBaseURL  string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string
	GeminiBaseURL string
	ProxyAPIKey   string
	ProxyBaseURL  string

	DefaultModel       string
	DefaultAspectRatio string
	TextModel          string
	VideoModel         string

	TextTimeout  time.Duration
	MediaTimeout time.Duration

	PollInterval      time.Duration
	RetryBaseInterval time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	CORSAllowedOrigins  []string
	SubmitRatePerMinute int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		QueueWorkers:  getEnvInt("QUEUE_WORKERS", 2),

		StorageBasePath: getEnv("STORAGE_BASE_PATH", "./data/assets"),
		StorageBaseURL:  getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		ProxyAPIKey:   os.Getenv("PROXY_API_KEY"),
		ProxyBaseURL:  os.Getenv("PROXY_BASE_URL"),

		DefaultModel:       getEnv("DEFAULT_IMAGE_MODEL", "gemini-2.5-flash-image-preview"),
		DefaultAspectRatio: getEnv("DEFAULT_ASPECT_RATIO", "16:9"),
		TextModel:          getEnv("TEXT_MODEL", "gpt-4o-mini"),
		VideoModel:         getEnv("VIDEO_MODEL", "sora-2"),

		TextTimeout:  time.Second * time.Duration(getEnvInt("TEXT_TIMEOUT_SECONDS", 60)),
		MediaTimeout: time.Second * time.Duration(getEnvInt("MEDIA_TIMEOUT_SECONDS", 300)),

		PollInterval:      time.Second * time.Duration(getEnvInt("VIDEO_POLL_INTERVAL_SECONDS", 5)),
		RetryBaseInterval: time.Second * time.Duration(getEnvInt("RETRY_BASE_INTERVAL_SECONDS", 2)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),

		CORSAllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS"),
		SubmitRatePerMinute: getEnvInt("SUBMIT_RATE_PER_MINUTE", 60),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
