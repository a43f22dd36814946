package config

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	Endpoint        string
}

type NotifyConfig struct {
	EmailAPIKey   string
	EmailAPIURL   string
	EmailFrom     string
	SMSAccessKey  string
	SMSSecretKey  string
	SMSAPIURL     string
	SMSSenderNo   string
	SMSServiceID  string
	MaxRetries    uint64
	RetryInterval time.Duration
}

type CleanupConfig struct {
	// TempRetention is how long an unconfirmed submission is kept
	// before the expiry job removes it.
	TempRetention time.Duration
	// UploadGrace protects just-uploaded blobs and uncommitted File
	// rows from the orphan jobs.
	UploadGrace time.Duration
}

type Config struct {
	DB_URL      string
	Port        string
	JWTSecret   string
	Environment string
	CorsConfig  cors.Options
	S3          S3Config
	Notify      NotifyConfig
	Cleanup     CleanupConfig
}

var Envs = initConfig()

func initConfig() Config {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("No", envFile, "file found")
	}

	return Config{
		DB_URL:      getEnv("DB_URL", ""),
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", "not-so-secret-now-is-it?"),
		Environment: getEnv("ENV", "development"),
		CorsConfig:  CorsConfig(),
		S3: S3Config{
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			BucketName:      getEnv("AWS_STORAGE_BUCKET_NAME", ""),
			Region:          getEnv("AWS_S3_REGION_NAME", "ap-northeast-2"),
			Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
		},
		Notify: NotifyConfig{
			EmailAPIKey:   getEnv("EMAIL_API_KEY", ""),
			EmailAPIURL:   getEnv("EMAIL_API_URL", "https://api.resend.com/emails"),
			EmailFrom:     getEnv("EMAIL_FROM", "procendp@gmail.com"),
			SMSAccessKey:  getEnv("SMS_ACCESS_KEY", ""),
			SMSSecretKey:  getEnv("SMS_SECRET_KEY", ""),
			SMSAPIURL:     getEnv("SMS_API_URL", "https://sens.apigw.ntruss.com"),
			SMSSenderNo:   getEnv("SMS_SENDER_NO", ""),
			SMSServiceID:  getEnv("SMS_SERVICE_ID", ""),
			MaxRetries:    uint64(getEnvInt("NOTIFY_MAX_RETRIES", 3)),
			RetryInterval: time.Duration(getEnvInt("NOTIFY_RETRY_INTERVAL_MS", 500)) * time.Millisecond,
		},
		Cleanup: CleanupConfig{
			TempRetention: time.Duration(getEnvInt("TEMP_RETENTION_HOURS", 24)) * time.Hour,
			UploadGrace:   time.Duration(getEnvInt("UPLOAD_GRACE_HOURS", 6)) * time.Hour,
		},
	}
}

// Gets the env by key or fallbacks
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func CorsConfig() cors.Options {
	return cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "https://sokgijung.com"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}
}
