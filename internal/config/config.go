package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	Verification VerificationConfig
	SendGrid     SendGridConfig
	Resend       ResendConfig
	Redis        RedisConfig

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion     string
	RelayTopicARN string // relay-b: topic the backend email function subscribes to

	EmailTemplateS3Key string // optional override for the compiled-in email template
	AllowedOrigins     []string // CORS allowed origins
	TrustedProxies     []string // peers allowed to set X-Forwarded-For / X-Real-Ip
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Verifications string
}

// VerificationConfig controls code lifetime, storage and delivery.
type VerificationConfig struct {
	Channel         string   // simulation | relay-a | relay-b | external | smtp | resend
	Fallbacks       []string // intermediate channels tried before simulation
	StrictDelivery  bool     // surface primary channel failures instead of falling back
	AttemptTimeout  time.Duration
	CodeTTL         time.Duration
	Retention       time.Duration // how long an expired record stays readable as "expired"
	Store           string        // memory | redis | dynamo
	MaxRecords      int
	SweepInterval   time.Duration
	ProductName     string
	RateLimitPerSec float64
	RateLimitBurst  int
}

// SendGridConfig configures the relay-a channel.
type SendGridConfig struct {
	APIKey     string
	TemplateID string
	FromEmail  string
	FromName   string
	Sandbox    bool
}

// ResendConfig configures the resend channel.
type ResendConfig struct {
	APIKey string
	From   string
}

// RedisConfig configures the redis verification store.
type RedisConfig struct {
	Addrs      []string
	Password   string
	DB         int
	MasterName string
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Load reads all configuration from environment variables.
func Load() *Config {
	codeTTL := getEnvDuration("VERIFICATION_CODE_TTL", 5*time.Minute)
	return &Config{
		AppPort:  getEnv("APP_PORT", "3000"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Verifications: getEnv("DYNAMO_TABLE_VERIFICATIONS", "email_verifications"),
		},
		S3BucketName: getEnv("S3_BUCKET_NAME", "go-api-templates"),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         getEnvDuration("VERIFICATION_TOKEN_TTL", 30*time.Minute),

		Verification: VerificationConfig{
			Channel:         strings.ToLower(getEnv("VERIFICATION_CHANNEL", "simulation")),
			Fallbacks:       lower(getEnvList("VERIFICATION_FALLBACKS", "")),
			StrictDelivery:  getEnvBool("VERIFICATION_STRICT_DELIVERY", false),
			AttemptTimeout:  getEnvDurationOrZero("CHANNEL_ATTEMPT_TIMEOUT", 10*time.Second),
			CodeTTL:         codeTTL,
			Retention:       getEnvDurationOrZero("VERIFICATION_RETENTION", codeTTL),
			Store:           strings.ToLower(getEnv("VERIFICATION_STORE", "memory")),
			MaxRecords:      getEnvInt("VERIFICATION_MAX_RECORDS", 10000),
			SweepInterval:   getEnvDurationOrZero("VERIFICATION_SWEEP_INTERVAL", time.Minute),
			ProductName:     getEnv("PRODUCT_NAME", "LMS Academy"),
			RateLimitPerSec: getEnvFloat("VERIFICATION_RATE_LIMIT", 5),
			RateLimitBurst:  getEnvInt("VERIFICATION_RATE_BURST", 10),
		},
		SendGrid: SendGridConfig{
			APIKey:     getEnv("SENDGRID_API_KEY", ""),
			TemplateID: getEnv("SENDGRID_TEMPLATE_ID", ""),
			FromEmail:  getEnv("SENDGRID_FROM_EMAIL", ""),
			FromName:   getEnv("SENDGRID_FROM_NAME", "LMS Academy"),
			Sandbox:    getEnvBool("SENDGRID_SANDBOX", false),
		},
		Resend: ResendConfig{
			APIKey: getEnv("RESEND_API_KEY", ""),
			From:   getEnv("RESEND_FROM", ""),
		},
		Redis: RedisConfig{
			Addrs:      getEnvList("REDIS_ADDRS", "localhost:6379"),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvInt("REDIS_DB", 0),
			MasterName: getEnv("REDIS_MASTER_NAME", ""),
		},

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SNSRegion:     getEnv("SNS_REGION", "us-east-1"),
		RelayTopicARN: getEnv("RELAY_TOPIC_ARN", ""),

		EmailTemplateS3Key: getEnv("EMAIL_TEMPLATE_S3_KEY", ""),
		AllowedOrigins:     getEnvList("ALLOWED_ORIGINS", "*"),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES", ""),
	}
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

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("5m", "90s").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

// getEnvDurationOrZero is getEnvDuration for settings where 0 disables the feature.
func getEnvDurationOrZero(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping blank entries.
func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func lower(list []string) []string {
	for i, v := range list {
		list[i] = strings.ToLower(v)
	}
	return list
}
