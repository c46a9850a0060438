package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Gateway backends.
const (
	BackendMemory   = "memory"
	BackendDynamo   = "dynamo"
	BackendPostgres = "postgres"
)

// Relay modes.
const (
	RelayForms = "forms"
	RelaySMTP  = "smtp"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	GatewayBackend string
	DatabaseURL    string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	// DynamoStreamPollInterval is how often shard iterators are polled.
	DynamoStreamPollInterval time.Duration

	S3BucketName string
	ResumeKey    string
	ResumeURLTTL time.Duration

	RelayMode     string
	FormsRelayURL string
	SMTPHost      string
	SMTPPort      string
	SMTPFrom      string
	SMTPUsername  string
	SMTPPassword  string

	OwnerEmail string
	OwnerPhone string
	OwnerName  string
	SNSRegion  string
	SMSEnabled bool

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration
	AdminPasswordHash string

	FeedReadAfter  time.Duration
	FeedCapacity   int
	FormTTL        time.Duration
	FormCapacity   int
	AllowedOrigins []string // CORS allowed origins
	// TrustedProxies lists the CIDRs whose X-Forwarded-For is believed.
	TrustedProxies []string
}

// DynamoTables holds the DynamoDB table name for each collection.
type DynamoTables struct {
	ContactSubmissions string
	HireMeClicks       string
	Analytics          string
	ResumeDownloads    string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:  getEnv("APP_PORT", "3000"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "INFO"),

		GatewayBackend: strings.ToLower(getEnv("GATEWAY_BACKEND", BackendMemory)),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			ContactSubmissions: getEnv("DYNAMO_TABLE_CONTACT_SUBMISSIONS", "contact_submissions"),
			HireMeClicks:       getEnv("DYNAMO_TABLE_HIRE_ME_CLICKS", "hire_me_clicks"),
			Analytics:          getEnv("DYNAMO_TABLE_ANALYTICS", "analytics"),
			ResumeDownloads:    getEnv("DYNAMO_TABLE_RESUME_DOWNLOADS", "resume_downloads"),
		},
		DynamoStreamPollInterval: getEnvDuration("DYNAMO_STREAM_POLL_INTERVAL", time.Second),

		S3BucketName: getEnv("S3_BUCKET_NAME", "portfolio-files"),
		ResumeKey:    getEnv("RESUME_KEY", "resume.pdf"),
		ResumeURLTTL: getEnvDuration("RESUME_URL_TTL", 15*time.Minute),

		RelayMode:     strings.ToLower(getEnv("RELAY_MODE", RelayForms)),
		FormsRelayURL: getEnv("FORMS_RELAY_URL", ""),
		SMTPHost:      getEnv("SMTP_HOST", "localhost"),
		SMTPPort:      getEnv("SMTP_PORT", "1025"),
		SMTPFrom:      getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),

		OwnerEmail: getEnv("OWNER_EMAIL", ""),
		OwnerPhone: getEnv("OWNER_PHONE", ""),
		OwnerName:  getEnv("OWNER_NAME", ""),
		SNSRegion:  getEnv("SNS_REGION", "us-east-1"),
		SMSEnabled: getEnvBool("SMS_ENABLED", false),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 12)) * time.Hour,
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),

		FeedReadAfter:  getEnvDuration("FEED_READ_AFTER", 10*time.Second),
		FeedCapacity:   getEnvInt("FEED_CAPACITY", 10),
		FormTTL:        getEnvDuration("FORM_TTL", 30*time.Minute),
		FormCapacity:   getEnvInt("FORM_CAPACITY", 1000),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
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

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("10s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
