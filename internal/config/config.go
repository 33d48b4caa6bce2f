package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Auth modes.
const (
	AuthModeFirebase = "firebase"
	AuthModeJWT      = "jwt"
)

// Config holds all configuration for the application.
type Config struct {
	Port    string `mapstructure:"PORT"`
	GinMode string `mapstructure:"GIN_MODE"`

	MongoURI      string `mapstructure:"MONGODB_URI"`
	MongoDatabase string `mapstructure:"MONGODB_DATABASE"`

	AuthMode                         string `mapstructure:"AUTH_MODE"`
	JWTSecret                        string `mapstructure:"JWT_SECRET"`
	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`

	StripeSecretKey     string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	ClientURL           string `mapstructure:"CLIENT_URL"`
	PlansFile           string `mapstructure:"PLANS_FILE"`

	VoiceAPIURL string  `mapstructure:"VOICE_API_URL"`
	VoiceAPIKey string  `mapstructure:"VOICE_API_KEY"`
	VoiceAPIRPS float64 `mapstructure:"VOICE_API_RPS"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	AMQPURL            string `mapstructure:"AMQP_URL"`
	BillingEventsQueue string `mapstructure:"BILLING_EVENTS_QUEUE"`

	SMTPHost string `mapstructure:"SMTP_HOST"`
	SMTPPort string `mapstructure:"SMTP_PORT"`
	SMTPUser string `mapstructure:"SMTP_USER"`
	SMTPPass string `mapstructure:"SMTP_PASS"`
	MailFrom string `mapstructure:"MAIL_FROM"`

	// ReconcileEmailDomainFallback enables the last-resort match of legacy
	// client documents by e-mail domain.
	ReconcileEmailDomainFallback bool `mapstructure:"RECONCILE_EMAIL_DOMAIN_FALLBACK"`
}

var envKeys = []string{
	"PORT", "GIN_MODE",
	"MONGODB_URI", "MONGODB_DATABASE",
	"AUTH_MODE", "JWT_SECRET", "FIREBASE_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS", "FIREBASE_SERVICE_ACCOUNT_JSON_BASE64",
	"STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "CLIENT_URL", "PLANS_FILE",
	"VOICE_API_URL", "VOICE_API_KEY", "VOICE_API_RPS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"AMQP_URL", "BILLING_EVENTS_QUEUE",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS", "MAIL_FROM",
	"RECONCILE_EMAIL_DOMAIN_FALLBACK",
}

// LoadConfig loads configuration from environment variables using Viper.
// Outside release mode a local .env file is read first when present.
func LoadConfig() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadToolConfig loads the same settings for offline tooling, which only
// needs the database to be configured.
func LoadToolConfig() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if cfg.MongoURI == "" {
		return nil, errors.New("MONGODB_URI is required")
	}
	return cfg, nil
}

func load() (*Config, error) {
	if !strings.EqualFold(os.Getenv("GIN_MODE"), "release") {
		_ = godotenv.Load()
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("MONGODB_DATABASE", "voicedesk")
	v.SetDefault("AUTH_MODE", AuthModeJWT)
	v.SetDefault("VOICE_API_URL", "https://api.vapi.ai")
	v.SetDefault("VOICE_API_RPS", 5)
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("BILLING_EVENTS_QUEUE", "billing-events")
	v.SetDefault("SMTP_PORT", "587")
	v.SetDefault("RECONCILE_EMAIL_DOMAIN_FALLBACK", false)

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}
	cfg.AuthMode = strings.ToLower(strings.TrimSpace(cfg.AuthMode))
	return &cfg, nil
}

// Validate checks the required fields.
func (c *Config) Validate() error {
	if c.MongoURI == "" {
		return errors.New("MONGODB_URI is required")
	}
	if c.StripeSecretKey == "" {
		return errors.New("STRIPE_SECRET_KEY is required")
	}
	if c.StripeWebhookSecret == "" {
		return errors.New("STRIPE_WEBHOOK_SECRET is required")
	}
	if c.ClientURL == "" {
		return errors.New("CLIENT_URL is required")
	}
	switch c.AuthMode {
	case AuthModeJWT:
		if c.JWTSecret == "" {
			return errors.New("JWT_SECRET is required when AUTH_MODE=jwt")
		}
	case AuthModeFirebase:
		if c.FirebaseProjectID == "" {
			return errors.New("FIREBASE_PROJECT_ID is required when AUTH_MODE=firebase")
		}
	default:
		return errors.New("AUTH_MODE must be 'jwt' or 'firebase'")
	}
	return nil
}

// FirebaseConfigured reports whether enough is set to initialize the Admin SDK.
func (c *Config) FirebaseConfigured() bool {
	return c.FirebaseProjectID != "" || c.GoogleApplicationCredentials != "" || c.FirebaseServiceAccountJSONBase64 != ""
}

// IsRelease reports whether gin runs in release mode.
func (c *Config) IsRelease() bool {
	return strings.EqualFold(c.GinMode, "release")
}
