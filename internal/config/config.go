package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	StoreBackend   string // "dynamo" | "memory"

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	TriggerSecret         string
	TriggerAudience       string // enables Google OIDC checks on trigger routes
	TriggerServiceAccount string

	PushProvider            string // "fcm" | "sns" | "log"
	PushTimeout             time.Duration
	FirebaseCredentialsPath string
	SNSRegion               string
	PushBreakerFailures     int // 0 disables the push circuit breaker
	PushBreakerDelay        time.Duration
	DeepLinkBaseURL         string

	PubSubProjectID       string
	PubSubSubscription    string // empty disables the pull-mode trigger source
	PubSubCredentialsPath string

	NotificationRetention int
	FanoutConcurrency     int

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users    string
	Contents string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:    getEnv("DYNAMO_TABLE_USERS", "users"),
			Contents: getEnv("DYNAMO_TABLE_CONTENTS", "contents"),
		},
		StoreBackend: getEnv("STORE_BACKEND", "dynamo"),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24*7)) * time.Hour,

		TriggerSecret:         getEnv("TRIGGER_SECRET", ""),
		TriggerAudience:       getEnv("TRIGGER_OIDC_AUDIENCE", ""),
		TriggerServiceAccount: getEnv("TRIGGER_OIDC_SERVICE_ACCOUNT", ""),

		PushProvider:            getEnv("PUSH_PROVIDER", "log"),
		PushTimeout:             getEnvDuration("PUSH_TIMEOUT", 5*time.Second),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		SNSRegion:               getEnv("SNS_REGION", "us-east-1"),
		PushBreakerFailures:     getEnvInt("PUSH_BREAKER_FAILURES", 5),
		PushBreakerDelay:        getEnvDuration("PUSH_BREAKER_DELAY", 30*time.Second),
		DeepLinkBaseURL:         strings.TrimRight(getEnv("DEEP_LINK_BASE_URL", ""), "/"),

		PubSubProjectID:       getEnv("PUBSUB_PROJECT_ID", ""),
		PubSubSubscription:    getEnv("PUBSUB_SUBSCRIPTION", ""),
		PubSubCredentialsPath: getEnv("PUBSUB_CREDENTIALS_PATH", ""),

		NotificationRetention: getEnvInt("NOTIFICATION_RETENTION", 200),
		FanoutConcurrency:     getEnvInt("FANOUT_CONCURRENCY", 8),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("5s", "1500ms").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
