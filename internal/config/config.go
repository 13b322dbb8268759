package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type DB struct {
	Driver     string
	DbHOST     string
	DbPORT     string
	DbUSER     string
	DbPASSWORD string
	DbNAME     string
	DbSSLMODE  string
	Migrate    bool
}

// URL returns a postgres:// connection string accepted by lib/pq, pgx and golang-migrate.
func (d DB) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.DbUSER, d.DbPASSWORD),
		Host:     fmt.Sprintf("%s:%s", d.DbHOST, d.DbPORT),
		Path:     "/" + d.DbNAME,
		RawQuery: url.Values{"sslmode": []string{d.DbSSLMODE}}.Encode(),
	}
	return u.String()
}

type MinIO struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	BucketName string
	UseSSL     bool
	Region     string
	PublicURL  string
}

type Session struct {
	Lifetime     time.Duration
	CookieSecure bool
}

type RateLimit struct {
	AuthPerMinute int
	AuthBurst     int
}

type Config struct {
	ServerPort           int
	PageSize             int
	ClientCacheSize      int
	LogLevel             slog.Level
	DB                   DB
	MinIO                MinIO
	Session              Session
	RateLimit            RateLimit
	JWTSecretKey         string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
	MaxUploadSize        int64
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(value)
	if err != nil || duration <= 0 {
		return fallback
	}
	return duration
}

func parseLevel(value string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func LoadDB() DB {
	return DB{
		Driver:     getEnv("DB_DRIVER", "postgres"),
		DbHOST:     getEnv("DB_HOST", "localhost"),
		DbPORT:     getEnv("DB_PORT", "5432"),
		DbUSER:     getEnv("DB_USER", "postgres"),
		DbPASSWORD: getEnv("DB_PASSWORD", "password"),
		DbNAME:     getEnv("DB_NAME", "cacoblog"),
		DbSSLMODE:  getEnv("DB_SSLMODE", "disable"),
		Migrate:    getEnvBool("DB_MIGRATE", true),
	}
}

func LoadMinIO() MinIO {
	endpoint := getEnv("MINIO_ENDPOINT", "localhost:9000")
	useSSL := getEnvBool("MINIO_USE_SSL", false)

	scheme := "http"
	if useSSL {
		scheme = "https"
	}

	return MinIO{
		Endpoint:   endpoint,
		AccessKey:  getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		SecretKey:  getEnv("MINIO_SECRET_KEY", "minioadmin"),
		BucketName: getEnv("MINIO_BUCKET_NAME", "blog-images"),
		UseSSL:     useSSL,
		Region:     getEnv("MINIO_REGION", "us-east-1"),
		PublicURL:  getEnv("MINIO_PUBLIC_URL", scheme+"://"+endpoint),
	}
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		slog.Warn(".env файл не найден, используются переменные окружения")
	}

	return &Config{
		ServerPort:      getEnvAsInt("SERVER_PORT", 8080),
		PageSize:        getEnvAsInt("PAGE_SIZE", 5),
		ClientCacheSize: getEnvAsInt("CLIENT_CACHE_SIZE", 1024),
		LogLevel:        parseLevel(getEnv("LOG_LEVEL", "info")),
		DB:              LoadDB(),
		MinIO:           LoadMinIO(),
		Session: Session{
			Lifetime:     parseDuration(getEnv("SESSION_LIFETIME", "168h"), 168*time.Hour),
			CookieSecure: getEnvBool("SESSION_COOKIE_SECURE", false),
		},
		RateLimit: RateLimit{
			AuthPerMinute: getEnvAsInt("AUTH_RATE_PER_MINUTE", 10),
			AuthBurst:     getEnvAsInt("AUTH_RATE_BURST", 5),
		},
		JWTSecretKey:         getEnv("JWT_SECRET_KEY", ""),
		AccessTokenDuration:  parseDuration(getEnv("ACCESS_TOKEN_DURATION", "2h"), 2*time.Hour),
		RefreshTokenDuration: parseDuration(getEnv("REFRESH_TOKEN_DURATION", "168h"), 168*time.Hour),
		MaxUploadSize:        parseMaxUploadSize(getEnv("MAX_UPLOAD_SIZE", "10485760")),
	}
}

func parseMaxUploadSize(value string) int64 {
	size, err := strconv.ParseInt(value, 10, 64)
	if err != nil || size <= 0 {
		return 10 * 1024 * 1024
	}
	return size
}
