package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName      string
	AppEnv       string
	Port         string
	SupportEmail string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Email
	EmailFrom    string
	ResendAPIKey string

	// Password reset
	PasswordResetCodeTTL         time.Duration
	PasswordResetCodeDigits      int
	PasswordResetResendCooldown  time.Duration
	PasswordResetMaxResends      int
	PasswordResetBlockDuration   time.Duration
	PasswordResetMaxCodeAttempts int
	PasswordResetThrottleDelays  []time.Duration
	PasswordResetBcryptCost      int
	PasswordResetSecretKey       string // hex AES key, secrets stored in plaintext when empty

	// Rate limiting for the public auth endpoints, per client IP
	RateLimitAuthRPS   float64
	RateLimitAuthBurst int

	// Observability (optional)
	SentryDSN string
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName:      envString("APP_NAME", "Balug"),
		AppEnv:       envRequired("APP_ENV"), // Required: 'development' or 'production'
		Port:         envString("PORT", "8090"),
		SupportEmail: envString("SUPPORT_EMAIL", "support@example.com"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/balug.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"),

		// Email (RESEND_API_KEY optional in development, required in production)
		EmailFrom:    envString("EMAIL_FROM", "noreply@example.com"),
		ResendAPIKey: envString("RESEND_API_KEY", ""),

		// Password reset
		PasswordResetCodeTTL:         envDuration("PASSWORD_RESET_CODE_TTL", 5*time.Minute),
		PasswordResetCodeDigits:      envInt("PASSWORD_RESET_CODE_DIGITS", 6),
		PasswordResetResendCooldown:  envDuration("PASSWORD_RESET_RESEND_COOLDOWN", 60*time.Second),
		PasswordResetMaxResends:      envInt("PASSWORD_RESET_MAX_RESENDS", 5),
		PasswordResetBlockDuration:   envDuration("PASSWORD_RESET_BLOCK_DURATION", 30*time.Minute),
		PasswordResetMaxCodeAttempts: envInt("PASSWORD_RESET_MAX_CODE_ATTEMPTS", 5),
		PasswordResetThrottleDelays: envDurations("PASSWORD_RESET_THROTTLE_DELAYS", []time.Duration{
			0, 5 * time.Second, 10 * time.Second, 15 * time.Second, 20 * time.Second,
		}),
		PasswordResetBcryptCost: envInt("PASSWORD_RESET_BCRYPT_COST", 0), // 0 = bcrypt default
		PasswordResetSecretKey:  envString("PASSWORD_RESET_SECRET_KEY", ""),

		// Rate limiting
		RateLimitAuthRPS:   envFloat("RATE_LIMIT_AUTH_RPS", 1),
		RateLimitAuthBurst: envInt("RATE_LIMIT_AUTH_BURST", 10),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),
	}

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures all required services are configured for production deployments.
// Development allows email to run in log mode for easier local testing.
func validateProduction(cfg *Config) {
	if cfg.ResendAPIKey == "" {
		slog.Error("production deployment requires RESEND_API_KEY",
			"hint", "set APP_ENV=development for local testing with email log mode")
		os.Exit(1)
	}
	if cfg.PasswordResetSecretKey == "" {
		slog.Error("production deployment requires PASSWORD_RESET_SECRET_KEY",
			"hint", "generate one with: openssl rand -hex 32")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return i
}

func envFloat(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("config invalid float, using default", "key", key, "value", v, "default", def)
		return def
	}
	return f
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

// envDurations parses a comma separated list such as "0s,5s,10s".
func envDurations(key string, def []time.Duration) []time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}

	parts := strings.Split(v, ",")
	out := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(part))
		if err != nil {
			slog.Warn("config invalid duration list, using default", "key", key, "value", v, "error", err)
			return def
		}
		out = append(out, d)
	}
	return out
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
