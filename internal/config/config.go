package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all runtime configuration for the server, worker and CLI
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	DatabaseURL string
	RedisURL    string

	JWTSecret string
	TokenTTL  time.Duration

	AWS    AWSConfig
	Daraja DarajaConfig

	FirebaseCredentialsPath string

	NotifyWorkers   int
	NotifyQueueSize int

	LoginRateLimit   float64
	WebhookRateLimit float64

	WorkerInterval time.Duration
}

// AWSConfig holds S3 settings for photo uploads
type AWSConfig struct {
	Region         string
	AccessKey      string
	SecretKey      string
	Bucket         string
	Endpoint       string // custom endpoint for S3-compatible stores
	UsePathStyle   bool
	PublicBaseURL  string
	MaxPhotoSizeMB int
}

// DarajaConfig holds Safaricom M-Pesa Daraja credentials and endpoints
type DarajaConfig struct {
	CredentialsURL string
	ConsumerKey    string
	ConsumerSecret string
	STKPushURL     string
	ShortCode      string
	Passkey        string
	CallbackURL    string
	Timezone       string
}

// MaxPhotoBytes returns the upload ceiling in bytes
func (c AWSConfig) MaxPhotoBytes() int64 {
	return int64(c.MaxPhotoSizeMB) * 1024 * 1024
}

// Load reads .env (if present) and the process environment
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using system environment")
	}

	return &Config{
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		JWTSecret: getEnv("SECRET_KEY", "your-secret-key-here-change-in-production"),
		TokenTTL:  time.Duration(getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,

		AWS: AWSConfig{
			Region:         getEnv("AWS_REGION", "us-east-1"),
			AccessKey:      os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretKey:      os.Getenv("AWS_SECRET_ACCESS_KEY"),
			Bucket:         os.Getenv("S3_BUCKET_NAME"),
			Endpoint:       os.Getenv("S3_ENDPOINT"),
			UsePathStyle:   getEnvBool("S3_USE_PATH_STYLE", false),
			PublicBaseURL:  os.Getenv("S3_PUBLIC_BASE_URL"),
			MaxPhotoSizeMB: getEnvInt("MAX_PHOTO_SIZE_MB", 10),
		},

		Daraja: DarajaConfig{
			CredentialsURL: os.Getenv("DARAJA_CREDENTIALS_URL"),
			ConsumerKey:    os.Getenv("CONSUMER_KEY"),
			ConsumerSecret: os.Getenv("CONSUMER_SECRET"),
			STKPushURL:     os.Getenv("DARAJA_STK_PUSH_URL"),
			ShortCode:      os.Getenv("SHORT_CODE"),
			Passkey:        os.Getenv("DARAJA_PASSKEY"),
			CallbackURL:    os.Getenv("DARAJA_CALLBACK_URL"),
			Timezone:       getEnv("DARAJA_TIMEZONE", "Africa/Nairobi"),
		},

		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", "./firebase-service-account.json"),

		NotifyWorkers:   getEnvInt("NOTIFY_WORKERS", 4),
		NotifyQueueSize: getEnvInt("NOTIFY_QUEUE_SIZE", 256),

		LoginRateLimit:   getEnvFloat("LOGIN_RATE_LIMIT", 5),
		WebhookRateLimit: getEnvFloat("WEBHOOK_RATE_LIMIT", 50),

		WorkerInterval: getEnvDuration("WORKER_INTERVAL", 5*time.Minute),
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
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid integer in environment, using default")
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid number in environment, using default")
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid duration in environment, using default")
	}
	return defaultValue
}
