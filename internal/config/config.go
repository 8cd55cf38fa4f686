// Package config loads application configuration from environment variables.
// The resulting Config is immutable and passed explicitly into every
// component that needs it — nothing else in the service reads the
// environment directly.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/docker/go-units"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Port      string
	AppEnv    string
	JWTSecret string

	// Session/quota key-value store (Redis)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Upload sessions
	ChunkSize   int64 // fixed per deployment
	MaxFileSize int64
	SessionTTL  time.Duration

	// Guest (unauthenticated) uploads
	GuestUploadsEnabled bool
	GuestMaxFileSize    int64
	GuestDailyLimit     int64

	// Default backend when a session's storage mode is unrecognized
	PrimaryStorageMode string

	// S3-compatible object storage (MinIO locally, any S3-compatible
	// provider in production)
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string

	// Discord message-attachment storage. Webhook takes precedence over
	// bot token + channel when both are set.
	DiscordWebhookURL string
	DiscordBotToken   string
	DiscordChannelID  string

	// HuggingFace dataset-repository storage
	HFEndpoint string
	HFToken    string
	HFRepo     string
	HFBranch   string
}

// Load reads configuration from a .env file (if present) and environment
// variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment")
	}

	return &Config{
		Port:      getEnv("PORT", "8080"),
		AppEnv:    getEnv("APP_ENV", "development"),
		JWTSecret: getEnv("JWT_SECRET", "change_me_in_production"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       int(getEnvInt("REDIS_DB", 0)),

		ChunkSize:   getEnvSize("UPLOAD_CHUNK_SIZE", "5MiB"),
		MaxFileSize: getEnvSize("UPLOAD_MAX_FILE_SIZE", "2GiB"),
		SessionTTL:  time.Duration(getEnvInt("UPLOAD_SESSION_TTL_SECONDS", 3600)) * time.Second,

		GuestUploadsEnabled: getEnv("GUEST_UPLOADS_ENABLED", "true") == "true",
		GuestMaxFileSize:    getEnvSize("GUEST_MAX_FILE_SIZE", "100MiB"),
		GuestDailyLimit:     getEnvInt("GUEST_DAILY_LIMIT", 10),

		PrimaryStorageMode: getEnv("PRIMARY_STORAGE_MODE", "s3"),

		S3Endpoint:  getEnv("S3_ENDPOINT", "http://localhost:9000"),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3AccessKey: getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey: getEnv("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:    getEnv("S3_BUCKET", "uploads"),

		DiscordWebhookURL: getEnv("DISCORD_WEBHOOK_URL", ""),
		DiscordBotToken:   getEnv("DISCORD_BOT_TOKEN", ""),
		DiscordChannelID:  getEnv("DISCORD_CHANNEL_ID", ""),

		HFEndpoint: getEnv("HF_ENDPOINT", "https://huggingface.co"),
		HFToken:    getEnv("HF_TOKEN", ""),
		HFRepo:     getEnv("HF_REPO", ""),
		HFBranch:   getEnv("HF_BRANCH", "main"),
	}
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("config: invalid integer for %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

// getEnvSize parses human-readable byte sizes ("5MiB", "100MB", "1073741824").
func getEnvSize(key, fallback string) int64 {
	v := os.Getenv(key)
	if v == "" {
		v = fallback
	}
	n, err := units.RAMInBytes(v)
	if err != nil {
		log.Printf("config: invalid size for %s=%q, using %s", key, v, fallback)
		n, _ = units.RAMInBytes(fallback)
	}
	return n
}
