package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv string
	Port   string

	// DatabaseEnv selects the backend: "production" uses MySQL via DBDSN,
	// anything else uses the SQLite file at SQLitePath.
	DatabaseEnv string
	DBDSN       string
	SQLitePath  string

	JWTSecret    string
	SessionTTL   time.Duration
	CookieSecure bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ChatContextWindowSize int
	ChatEncoding          string

	GenerateDailyLimit int
	GlobalDailyLimit   int
	GlobalHourlyLimit  int

	// AI provider
	AIProvider        string
	GoogleAPIKey      string
	GeminiModel       string
	OllamaBaseURL     string
	OllamaModel       string
	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterSiteURL string
	OpenRouterAppName string

	// rabbitMQ
	RabbitURL         string
	RabbitQueue       string
	WorkerConcurrency int

	ChromeBin string
}

func (c Config) Production() bool { return c.DatabaseEnv == "production" }

// Load reads the environment, after merging a .env file when one exists.
// Variables already set in the environment win over the file.
func Load() Config {
	_ = godotenv.Load()

	aiProvider := strings.ToLower(getenv("AI_PROVIDER", "gemini"))

	return Config{
		AppEnv: getenv("APP_ENV", "production"),
		Port:   getenv("PORT", "5000"),

		DatabaseEnv: strings.ToLower(getenv("DATABASE_ENV", "development")),
		// DSN demo:
		// app:apppass@tcp(127.0.0.1:3306)/yieldwise?charset=utf8mb4&parseTime=true&loc=Local
		DBDSN:      getenv("DB_DSN", "app:apppass@tcp(127.0.0.1:3306)/yieldwise?charset=utf8mb4&parseTime=true&loc=Local"),
		SQLitePath: getenv("SQLITE_PATH", "yieldwise.db"),

		JWTSecret:    getenv("JWT_SECRET", "dev-secret-change-me"),
		SessionTTL:   time.Duration(getint("SESSION_TTL_HOURS", 24*7)) * time.Hour,
		CookieSecure: getbool("COOKIE_SECURE", false),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getint("REDIS_DB", 0),

		ChatContextWindowSize: getint("CHAT_CONTEXT_WINDOW_SIZE", 0),
		ChatEncoding:          getenv("CHAT_ENCODING", "linear"),

		GenerateDailyLimit: getint("GENERATE_DAILY_LIMIT", 3),
		GlobalDailyLimit:   getint("GLOBAL_DAILY_LIMIT", 200),
		GlobalHourlyLimit:  getint("GLOBAL_HOURLY_LIMIT", 50),

		AIProvider:        aiProvider,
		GoogleAPIKey:      os.Getenv("GOOGLE_API_KEY"),
		GeminiModel:       getenv("GEMINI_MODEL", "gemini-2.0-flash"),
		OllamaBaseURL:     getenv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:       getenv("OLLAMA_MODEL", "llava:latest"),
		OpenRouterBaseURL: getenv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:   getenv("OPENROUTER_MODEL", "openrouter/auto"),
		OpenRouterSiteURL: os.Getenv("OPENROUTER_SITE_URL"),
		OpenRouterAppName: getenv("OPENROUTER_APP_NAME", "YieldWise"),

		RabbitURL:         os.Getenv("RABBIT_URL"),
		RabbitQueue:       getenv("RABBIT_QUEUE", "chat_jobs"),
		WorkerConcurrency: clamp(getint("WORKER_CONCURRENCY", 2), 1, 50),

		ChromeBin: os.Getenv("CHROME_BIN"),
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getbool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
