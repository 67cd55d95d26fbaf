package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const maxSyncPageSize = 500

// DefaultSyncQuery is the keyword search used against the user's mailbox.
const DefaultSyncQuery = `("trade confirmation" OR "order filled" OR "position opened" OR "position closed" OR 約定 OR 決済 OR 注文)`

type Config struct {
	Port            string
	JWTSecret       string
	JWTAccessExpiry time.Duration

	DatabaseDriver string
	DatabaseURL    string

	GoogleClientID      string
	GoogleClientSecret  string
	GoogleProjectID     string
	GooglePubSubTopic   string
	GoogleCredentials   string
	FirebaseCredentials string

	WebhookSecret      string
	WebhookAliasPrefix string
	WebhookRateLimit   float64
	WebhookRateBurst   int

	DefaultTimezone string
	SyncPageSize    int
	SyncQuery       string
	FetchTimeout    time.Duration
	DemoMode        bool

	SecretKey string
	LogDir    string
	Debug     bool
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	accessExpiry := 24 * time.Hour
	if exp := os.Getenv("JWT_ACCESS_EXPIRY"); exp != "" {
		if parsed, err := time.ParseDuration(exp); err == nil {
			accessExpiry = parsed
		}
	}

	fetchTimeout := 15 * time.Second
	if t := os.Getenv("FETCH_TIMEOUT"); t != "" {
		if parsed, err := time.ParseDuration(t); err == nil && parsed > 0 {
			fetchTimeout = parsed
		}
	}

	pageSize := getEnvInt("SYNC_PAGE_SIZE", 50)
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > maxSyncPageSize {
		pageSize = maxSyncPageSize
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		JWTSecret:       getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTAccessExpiry: accessExpiry,

		DatabaseDriver: strings.ToLower(getEnv("DATABASE_DRIVER", "postgres")),
		DatabaseURL:    getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=fxjournal port=5432 sslmode=disable"),

		GoogleClientID:      getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:  getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleProjectID:     getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic:   getEnv("GOOGLE_PUBSUB_TOPIC", ""),
		GoogleCredentials:   getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),

		WebhookSecret:      getEnv("WEBHOOK_SECRET", ""),
		WebhookAliasPrefix: getEnv("WEBHOOK_ALIAS_PREFIX", "import"),
		WebhookRateLimit:   getEnvFloat("WEBHOOK_RATE_LIMIT", 5),
		WebhookRateBurst:   getEnvInt("WEBHOOK_RATE_BURST", 10),

		DefaultTimezone: getEnv("DEFAULT_TIMEZONE", "Asia/Tokyo"),
		SyncPageSize:    pageSize,
		SyncQuery:       getEnv("SYNC_QUERY", DefaultSyncQuery),
		FetchTimeout:    fetchTimeout,
		DemoMode:        getEnvBool("DEMO_MODE", false),

		SecretKey: getEnv("SECRET_KEY", ""),
		LogDir:    getEnv("LOG_DIR", "logs"),
		Debug:     getEnvBool("DEBUG", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}
