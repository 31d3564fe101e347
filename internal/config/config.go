package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendREST  = "rest"
	BackendGenAI = "genai"
)

type Config struct {
	TelegramToken string
	GeminiAPIKey  string

	LogLevel string
	Debug    bool

	PreferIPv4 bool
	WebAddr    string

	MediaGroupDebounce time.Duration
	MaxConcurrent      int
	RequestTimeout     time.Duration
	HTTPTimeout        time.Duration

	GeminiBaseURL      string
	GeminiAPIVersion   string
	GeminiBackend      string
	GeminiImageModel   string
	GeminiRateInterval time.Duration
	GeminiRateBurst    int

	// HistoryLimit caps versions kept per node; 0 keeps everything.
	HistoryLimit int
	SessionTTL   time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		LogLevel:           strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		Debug:              getEnvBool("DEBUG", false),
		PreferIPv4:         getEnvBool("PREFER_IPV4", true),
		WebAddr:            getEnv("WEB_ADDR", ":8080"),
		MediaGroupDebounce: time.Duration(getEnvInt("MEDIA_GROUP_DEBOUNCE_MS", 1200)) * time.Millisecond,
		MaxConcurrent:      getEnvInt("MAX_CONCURRENT", 4),
		RequestTimeout:     time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 240)) * time.Second,
		HTTPTimeout:        time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second,
		GeminiBaseURL:      getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiAPIVersion:   getEnv("GEMINI_API_VERSION", "v1beta"),
		GeminiBackend:      strings.ToLower(getEnv("GEMINI_BACKEND", BackendREST)),
		GeminiImageModel:   getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		GeminiRateInterval: time.Duration(getEnvInt("GEMINI_RATE_INTERVAL_MS", 0)) * time.Millisecond,
		GeminiRateBurst:    getEnvInt("GEMINI_RATE_BURST", 6),
		HistoryLimit:       getEnvInt("HISTORY_LIMIT", 0),
		SessionTTL:         time.Duration(getEnvInt("SESSION_TTL_MINUTES", 60)) * time.Minute,
	}

	cfg.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))

	if cfg.GeminiAPIKey == "" {
		return Config{}, errors.New("GEMINI_API_KEY is required")
	}

	switch cfg.GeminiBackend {
	case BackendREST, BackendGenAI:
	default:
		return Config{}, errors.New("GEMINI_BACKEND must be \"rest\" or \"genai\"")
	}

	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 240 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}
	if cfg.GeminiRateInterval < 0 {
		cfg.GeminiRateInterval = 0
	}
	if cfg.GeminiRateBurst < 1 {
		cfg.GeminiRateBurst = 1
	}
	if cfg.HistoryLimit < 0 {
		cfg.HistoryLimit = 0
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}

	return cfg, nil
}

// RequireTelegram is checked by the bot only; the web server runs without a token.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
