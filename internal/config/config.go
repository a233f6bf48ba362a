// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database. Empty means in-memory repositories (development only).
	DatabaseURL string `koanf:"database_url"`

	// Redis. Empty means in-process rate limiting.
	RedisURL string `koanf:"redis_url"`

	// JWT Authentication. The previous secret is accepted during rotation.
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"`

	// Stripe. Optional as a group; billing endpoints are disabled when unset.
	StripeAPIKey        string `koanf:"stripe_api_key"`
	StripeWebhookSecret string `koanf:"stripe_webhook_secret"`
	StripePriceID       string `koanf:"stripe_price_id"`
	StripeSuccessURL    string `koanf:"stripe_success_url"`
	StripeCancelURL     string `koanf:"stripe_cancel_url"`

	// OpenAI embeddings
	OpenAIAPIKey string `koanf:"openai_api_key"`
	OpenAIModel  string `koanf:"openai_model"`

	// CORS
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Ranking session tuning
	EloKFactor        float64 `koanf:"elo_k_factor"`
	SessionSampleSize int     `koanf:"session_sample_size"`
	SessionPoolLimit  int     `koanf:"session_pool_limit"`

	// Similarity thresholds
	SubmissionThreshold float64 `koanf:"submission_threshold"`
	RelatedThreshold    float64 `koanf:"related_threshold"`

	// Observability
	MetricsEnabled     bool    `koanf:"metrics_enabled"`
	TracingEnabled     bool    `koanf:"tracing_enabled"`
	TracingExporter    string  `koanf:"tracing_exporter"`
	TracingEndpoint    string  `koanf:"tracing_endpoint"`
	TracingSampleRatio float64 `koanf:"tracing_sample_ratio"`
}

// Configuration validation errors.
var (
	ErrMissingJWTSecret           = errors.New("JWT_SECRET is required")
	ErrMissingOpenAIAPIKey        = errors.New("OPENAI_API_KEY is required")
	ErrMissingStripeAPIKey        = errors.New("STRIPE_API_KEY is required")
	ErrMissingStripeWebhookSecret = errors.New("STRIPE_WEBHOOK_SECRET is required")
	ErrMissingStripePriceID       = errors.New("STRIPE_PRICE_ID is required")
	ErrMissingStripeSuccessURL    = errors.New("STRIPE_SUCCESS_URL is required")
	ErrMissingStripeCancelURL     = errors.New("STRIPE_CANCEL_URL is required")
	ErrInvalidPort                = errors.New("PORT must be a valid integer")
	ErrInvalidKFactor             = errors.New("ELO_K_FACTOR must be > 0")
	ErrInvalidSampleSize          = errors.New("SESSION_SAMPLE_SIZE must be >= 2")
	ErrInvalidThreshold           = errors.New("similarity thresholds must be in (0, 1]")
)

// Default values for non-secret configuration.
const (
	DefaultPort                = 8080
	DefaultEnv                 = "development"
	DefaultEloKFactor          = 32.0
	DefaultSessionSampleSize   = 3
	DefaultSessionPoolLimit    = 100
	DefaultSubmissionThreshold = 0.8
	DefaultRelatedThreshold    = 0.6
	DefaultTracingExporter     = "otlp-grpc"
	DefaultTracingSampleRatio  = 1.0
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Try QB_PORT first, then PORT for platform compatibility
	port, portErr := getEnvIntOrDefaultMulti([]string{"QB_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	kFactor, kErr := getEnvFloatOrDefault("ELO_K_FACTOR", k.Float64("elo_k_factor"), DefaultEloKFactor)
	if kErr != nil {
		loadErrs = append(loadErrs, kErr)
	}
	sampleSize, sampleErr := getEnvIntOrDefault("SESSION_SAMPLE_SIZE", k.Int("session_sample_size"), DefaultSessionSampleSize)
	if sampleErr != nil {
		loadErrs = append(loadErrs, sampleErr)
	}
	poolLimit, poolErr := getEnvIntOrDefault("SESSION_POOL_LIMIT", k.Int("session_pool_limit"), DefaultSessionPoolLimit)
	if poolErr != nil {
		loadErrs = append(loadErrs, poolErr)
	}
	submissionThreshold, subErr := getEnvFloatOrDefault("SUBMISSION_THRESHOLD", k.Float64("submission_threshold"), DefaultSubmissionThreshold)
	if subErr != nil {
		loadErrs = append(loadErrs, subErr)
	}
	relatedThreshold, relErr := getEnvFloatOrDefault("RELATED_THRESHOLD", k.Float64("related_threshold"), DefaultRelatedThreshold)
	if relErr != nil {
		loadErrs = append(loadErrs, relErr)
	}
	sampleRatio, ratioErr := getEnvFloatOrDefault("TRACING_SAMPLE_RATIO", k.Float64("tracing_sample_ratio"), DefaultTracingSampleRatio)
	if ratioErr != nil {
		loadErrs = append(loadErrs, ratioErr)
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                port,
		Env:                 getEnvOrDefaultMulti([]string{"QB_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:         getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:            getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		JWTSecret:           getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTPreviousSecret:   getEnvOrKoanf("JWT_PREVIOUS_SECRET", k, "jwt_previous_secret"),
		StripeAPIKey:        getEnvOrKoanf("STRIPE_API_KEY", k, "stripe_api_key"),
		StripeWebhookSecret: getEnvOrKoanf("STRIPE_WEBHOOK_SECRET", k, "stripe_webhook_secret"),
		StripePriceID:       getEnvOrKoanf("STRIPE_PRICE_ID", k, "stripe_price_id"),
		StripeSuccessURL:    getEnvOrKoanf("STRIPE_SUCCESS_URL", k, "stripe_success_url"),
		StripeCancelURL:     getEnvOrKoanf("STRIPE_CANCEL_URL", k, "stripe_cancel_url"),
		OpenAIAPIKey:        getEnvOrKoanf("OPENAI_API_KEY", k, "openai_api_key"),
		OpenAIModel:         getEnvOrKoanf("OPENAI_MODEL", k, "openai_model"),
		CORSAllowedOrigins:  getEnvListOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		EloKFactor:          kFactor,
		SessionSampleSize:   sampleSize,
		SessionPoolLimit:    poolLimit,
		SubmissionThreshold: submissionThreshold,
		RelatedThreshold:    relatedThreshold,
		MetricsEnabled:      getEnvBoolOrKoanf("METRICS_ENABLED", k, "metrics_enabled", true),
		TracingEnabled:      getEnvBoolOrKoanf("TRACING_ENABLED", k, "tracing_enabled", false),
		TracingExporter:     getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), DefaultTracingExporter),
		TracingEndpoint:     getEnvOrKoanf("TRACING_ENDPOINT", k, "tracing_endpoint"),
		TracingSampleRatio:  sampleRatio,
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvListOrKoanf returns a comma-separated environment variable as a slice,
// otherwise the koanf string slice.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	if val := os.Getenv(envKey); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
	return k.Strings(koanfKey)
}

// getEnvBoolOrKoanf returns the environment variable as bool if set, otherwise
// the koanf value if present, or default.
func getEnvBoolOrKoanf(envKey string, k *koanf.Koanf, koanfKey string, defaultVal bool) bool {
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	if k.Exists(koanfKey) {
		return k.Bool(koanfKey)
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// StripeEnabled reports whether any Stripe setting is present, which switches
// billing endpoints on and makes the whole group required.
func (c *Config) StripeEnabled() bool {
	return c.StripeAPIKey != "" || c.StripeWebhookSecret != "" || c.StripePriceID != "" ||
		c.StripeSuccessURL != "" || c.StripeCancelURL != ""
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.OpenAIAPIKey == "" {
		errs = append(errs, ErrMissingOpenAIAPIKey)
	}

	// Stripe configuration is optional. Only validate fields if any value is set.
	if c.StripeEnabled() {
		if c.StripeAPIKey == "" {
			errs = append(errs, ErrMissingStripeAPIKey)
		}
		if c.StripeWebhookSecret == "" {
			errs = append(errs, ErrMissingStripeWebhookSecret)
		}
		if c.StripePriceID == "" {
			errs = append(errs, ErrMissingStripePriceID)
		}
		if c.StripeSuccessURL == "" {
			errs = append(errs, ErrMissingStripeSuccessURL)
		}
		if c.StripeCancelURL == "" {
			errs = append(errs, ErrMissingStripeCancelURL)
		}
	}

	if c.EloKFactor <= 0 {
		errs = append(errs, ErrInvalidKFactor)
	}
	if c.SessionSampleSize < 2 {
		errs = append(errs, ErrInvalidSampleSize)
	}
	if c.SubmissionThreshold <= 0 || c.SubmissionThreshold > 1 {
		errs = append(errs, fmt.Errorf("%w: submission_threshold %g", ErrInvalidThreshold, c.SubmissionThreshold))
	}
	if c.RelatedThreshold <= 0 || c.RelatedThreshold > 1 {
		errs = append(errs, fmt.Errorf("%w: related_threshold %g", ErrInvalidThreshold, c.RelatedThreshold))
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                  fmt.Sprintf("%d", c.Port),
		"env":                   c.Env,
		"database_url":          maskDatabaseURL(c.DatabaseURL),
		"redis_url":             maskDatabaseURL(c.RedisURL),
		"jwt_secret":            maskSecret(c.JWTSecret),
		"jwt_previous_secret":   maskSecret(c.JWTPreviousSecret),
		"stripe_api_key":        maskStripeKey(c.StripeAPIKey),
		"stripe_webhook_secret": maskSecret(c.StripeWebhookSecret),
		"stripe_price_id":       c.StripePriceID,
		"stripe_success_url":    c.StripeSuccessURL,
		"stripe_cancel_url":     c.StripeCancelURL,
		"openai_api_key":        maskSecret(c.OpenAIAPIKey),
		"openai_model":          c.OpenAIModel,
		"cors_allowed_origins":  strings.Join(c.CORSAllowedOrigins, ","),
		"elo_k_factor":          fmt.Sprintf("%g", c.EloKFactor),
		"session_sample_size":   fmt.Sprintf("%d", c.SessionSampleSize),
		"session_pool_limit":    fmt.Sprintf("%d", c.SessionPoolLimit),
		"submission_threshold":  fmt.Sprintf("%g", c.SubmissionThreshold),
		"related_threshold":     fmt.Sprintf("%g", c.RelatedThreshold),
		"metrics_enabled":       fmt.Sprintf("%t", c.MetricsEnabled),
		"tracing_enabled":       fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_exporter":      c.TracingExporter,
		"tracing_endpoint":      c.TracingEndpoint,
		"tracing_sample_ratio":  fmt.Sprintf("%g", c.TracingSampleRatio),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskStripeKey masks a Stripe API key, preserving the prefix (sk_live_, sk_test_, etc.)
func maskStripeKey(s string) string {
	if s == "" {
		return "<not set>"
	}

	parts := strings.SplitN(s, "_", 3)
	if len(parts) == 3 {
		return parts[0] + "_" + parts[1] + "_****"
	}

	return maskSecret(s)
}

// maskDatabaseURL masks the password in a connection URL.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
