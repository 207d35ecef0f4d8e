package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every tunable the rest of the service needs at startup.
type Config struct {
	ServerPort string

	DatabaseURL string // Postgres DSN backing the durable queue (C4)
	RedisURL    string // go-redis URL backing the KV tier (C2)

	JWTSecret     string
	JWTExpiryHour int

	MaxPostLength    int
	FeedPageSize     int
	MaxPaginationCap int

	SnowflakeIssuerID int64

	InitialAdminHandle string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string

	DefaultAvatarURL string
	DefaultAvatarKey string

	RankingInterval   int // minutes between explore-cache rebuilds
	RankWeightLike    float64
	RankWeightReply   float64
	RankWeightRepost  float64
	SignupsPerIPHour  int
	LoginsPerIPMinute int
	LoginFailMax      int
}

// LoadConfig reads .env (if present) then the process environment, applying
// defaults in-line the way the teacher applies its token-age defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	cfg := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTExpiryHour: getEnvInt("JWT_EXPIRY_HOURS", 24),

		MaxPostLength:    getEnvInt("MAX_POST_LENGTH", 280),
		FeedPageSize:     getEnvInt("FEED_PAGE_SIZE", 20),
		MaxPaginationCap: getEnvInt("MAX_PAGINATION_LIMIT", 50),

		SnowflakeIssuerID: int64(getEnvInt("SNOWFLAKE_ISSUER_ID", 1)),

		InitialAdminHandle: os.Getenv("INITIAL_ADMIN_HANDLE"),

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicURL:       os.Getenv("R2_PUBLIC_URL"),

		DefaultAvatarURL: os.Getenv("DEFAULT_AVATAR_URL"),
		DefaultAvatarKey: os.Getenv("DEFAULT_AVATAR_KEY"),

		RankingInterval:   getEnvInt("RANKING_INTERVAL_MINUTES", 15),
		RankWeightLike:    getEnvFloat("RANK_WEIGHT_LIKE", 1.0),
		RankWeightReply:   getEnvFloat("RANK_WEIGHT_REPLY", 2.0),
		RankWeightRepost:  getEnvFloat("RANK_WEIGHT_REPOST", 1.5),
		SignupsPerIPHour:  getEnvInt("SIGNUPS_PER_IP_HOUR", 10),
		LoginsPerIPMinute: getEnvInt("LOGINS_PER_IP_MINUTE", 5),
		LoginFailMax:      getEnvInt("LOGIN_FAIL_MAX", 5),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
