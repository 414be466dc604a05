package config

import (
	"time"

	"github.com/joho/godotenv"
)

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment     string
	Addr            string
	DatabaseURL     string
	MigrationsDir   string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	FrontendBaseURL string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromEmail    string

	AIProviderURL    string
	AIAPIKey         string
	AIModel          string
	AIRequestTimeout time.Duration

	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int

	NotificationBuffer int
}

// LoadAPIConfig constructs an APIConfig from environment variables. A .env
// file in the working directory is merged in first when present.
func LoadAPIConfig() APIConfig {
	_ = godotenv.Load()

	return APIConfig{
		Environment:     GetString("APP_ENV", "development"),
		Addr:            GetString("API_ADDR", ":4000"),
		DatabaseURL:     GetString("DATABASE_URL", "postgres://jiralite:jiralite@db:5432/jiralite?sslmode=disable"),
		MigrationsDir:   GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		JWTSecret:       GetString("JWT_SECRET", "supersecuresecret"),
		AccessTokenTTL:  time.Duration(GetInt("ACCESS_TOKEN_TTL_MIN", 15)) * time.Minute,
		RefreshTokenTTL: time.Duration(GetInt("REFRESH_TOKEN_TTL_HOURS", 24)) * time.Hour,

		FrontendBaseURL: GetString("FRONTEND_BASE_URL", "http://localhost:3000"),

		SMTPHost:     GetString("SMTP_HOST", ""),
		SMTPPort:     GetInt("SMTP_PORT", 587),
		SMTPUsername: GetString("SMTP_USERNAME", ""),
		SMTPPassword: GetString("SMTP_PASSWORD", ""),
		FromEmail:    GetString("FROM_EMAIL", "noreply@jiralite.dev"),

		AIProviderURL:    GetString("AI_PROVIDER_URL", "https://api.openai.com/v1/chat/completions"),
		AIAPIKey:         GetString("AI_API_KEY", ""),
		AIModel:          GetString("AI_MODEL", "gpt-3.5-turbo"),
		AIRequestTimeout: time.Duration(GetInt("AI_REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,

		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),

		NotificationBuffer: GetInt("WS_NOTIFICATION_BUFFER", 100),
	}
}
