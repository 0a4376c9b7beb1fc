package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultDBHost  = "simplecrudserver.fyfvvbn.mongodb.net"
	defaultAppName = "simpleCRUDserver"

	SecretStripeKey     = "zapshift/STRIPE_SECRET"
	SecretDBCredentials = "zapshift/DB_CREDENTIALS"
)

type Config struct {
	Port          string
	Env           string
	DBUser        string
	DBPass        string
	DBHost        string
	DBName        string
	MongoURL      string // overrides the Atlas URI built from DB_* when set
	SiteDomain    string
	AllowedOrigin []string

	StripeSecretKey  string
	StripeWebhookKey string

	RedisURL           string
	LockTTL            time.Duration
	PaymentSNSTopicARN string
	UseAWSSecrets      bool

	RateLimitPerMinute int
	RequestTimeout     time.Duration
}

// SecretSource resolves named secrets, e.g. from AWS Secrets Manager.
type SecretSource interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "5000"),
		Env:                getEnv("ENV", "development"),
		DBUser:             os.Getenv("DB_USER"),
		DBPass:             os.Getenv("DB_PASS"),
		DBHost:             getEnv("DB_HOST", defaultDBHost),
		DBName:             getEnv("DB_NAME", "zapShiftDB"),
		MongoURL:           os.Getenv("MONGO_URI"),
		SiteDomain:         strings.TrimRight(getEnv("SITE_DOMAIN", "http://localhost:5173"), "/"),
		AllowedOrigin:      splitList(getEnv("ALLOWED_ORIGINS", "*")),
		StripeSecretKey:    os.Getenv("STRIPE_SECRET"),
		StripeWebhookKey:   os.Getenv("STRIPE_WEBHOOK_SECRET"),
		RedisURL:           os.Getenv("REDIS_URL"),
		PaymentSNSTopicARN: os.Getenv("PAYMENT_SNS_TOPIC_ARN"),
	}

	var err error
	if cfg.UseAWSSecrets, err = getBool("AWS_USE_SECRETS", false); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = getInt("RATE_LIMIT_PER_MINUTE", 100); err != nil {
		return nil, err
	}
	if cfg.LockTTL, err = getDuration("CONFIRM_LOCK_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplySecrets fills the Stripe key and database credentials from src.
// Values already present in the environment win.
func (c *Config) ApplySecrets(ctx context.Context, src SecretSource) error {
	if c.StripeSecretKey == "" {
		key, err := src.GetSecret(ctx, SecretStripeKey)
		if err != nil {
			return err
		}
		c.StripeSecretKey = key
	}

	if c.MongoURL == "" && (c.DBUser == "" || c.DBPass == "") {
		raw, err := src.GetSecret(ctx, SecretDBCredentials)
		if err != nil {
			return err
		}
		var creds struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.Unmarshal([]byte(raw), &creds); err != nil {
			return fmt.Errorf("decode %s: %w", SecretDBCredentials, err)
		}
		c.DBUser, c.DBPass = creds.Username, creds.Password
	}
	return nil
}

// Validate reports missing required settings.
func (c *Config) Validate() error {
	var missing []string
	if c.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_SECRET")
	}
	if c.MongoURL == "" && (c.DBUser == "" || c.DBPass == "") {
		missing = append(missing, "DB_USER/DB_PASS or MONGO_URI")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	for _, o := range c.AllowedOrigin {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("invalid ALLOWED_ORIGINS entry %q: must be * or start with http:// or https://", o)
		}
	}
	return nil
}

// MongoURI returns MONGO_URI when set, otherwise the Atlas SRV URI.
func (c *Config) MongoURI() string {
	if c.MongoURL != "" {
		return c.MongoURL
	}
	return fmt.Sprintf("mongodb+srv://%s@%s/?appName=%s",
		url.UserPassword(c.DBUser, c.DBPass).String(), c.DBHost, defaultAppName)
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

// WebhookEnabled reports whether the signed webhook endpoint is served.
func (c *Config) WebhookEnabled() bool { return c.StripeWebhookKey != "" }

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
