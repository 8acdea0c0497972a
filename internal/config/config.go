// Package config provides configuration management for the webhook
// gatekeeper. It handles loading configuration from environment variables
// with sensible defaults and validates the configuration to ensure the
// service starts safely.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//
// Redis Configuration (optional; enables shared replay/rate-limit state):
//   - REDIS_ADDRESS: Redis server address (empty = in-process state)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// Ingress Flood Guard:
//   - INGRESS_RPS: Server-wide requests per second per remote IP (default: 50)
//   - INGRESS_BURST: Burst size for the flood guard (default: 100)
//
// Provider Secrets (a provider is enabled when its secret is set):
//   - STRIPE_WEBHOOK_SECRET: Stripe signing secret
//   - RETELL_WEBHOOK_SECRET: Retell voice-agent signing secret
//   - TWILIO_AUTH_TOKEN: Twilio auth token
//   - WEBHOOK_SECRET: Generic integration signing secret
//
// Per-Provider Tuning (SECTION is STRIPE, RETELL, TWILIO or WEBHOOK):
//   - <SECTION>_TOLERANCE: Clock-skew tolerance in seconds (default: 300)
//   - <SECTION>_RATE_LIMIT: Max requests per client per minute (default: 60)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"webhook-gatekeeper/internal/webhook"
)

// ProviderSettings holds the env-derived tuning for one provider.
type ProviderSettings struct {
	Secret    string // Signing secret; empty disables the provider
	Tolerance int    // Clock-skew tolerance in seconds
	RateLimit int    // Max requests per client per minute
}

// Config holds all configuration values for the gatekeeper. All fields
// correspond to environment variables that can be set to override the
// default values.
type Config struct {
	// Application settings
	Port     string // Server port number
	LogLevel string // Logging level (debug, info, warn, error)

	// Redis configuration for shared replay/rate-limit state
	RedisAddress  string // Redis server address (host:port); empty = in-process
	RedisPassword string // Redis authentication password
	RedisDB       string // Redis database number (0-15)
	RedisPoolSize string // Redis connection pool size

	// Server-wide flood guard
	IngressRPS   int // Requests per second allowed per remote IP
	IngressBurst int // Burst size for the flood guard

	// Provider settings
	Stripe  ProviderSettings
	Retell  ProviderSettings
	Twilio  ProviderSettings
	Generic ProviderSettings
}

// Load creates a new Config instance with values loaded from environment
// variables. If an environment variable is not set, the corresponding
// default value is used.
//
// This function does not validate the configuration - call Validate() on
// the returned Config to ensure all required values are properly set.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		IngressRPS:   getIntEnv("INGRESS_RPS", 50),
		IngressBurst: getIntEnv("INGRESS_BURST", 100),

		Stripe:  loadProvider("STRIPE_WEBHOOK_SECRET", "STRIPE"),
		Retell:  loadProvider("RETELL_WEBHOOK_SECRET", "RETELL"),
		Twilio:  loadProvider("TWILIO_AUTH_TOKEN", "TWILIO"),
		Generic: loadProvider("WEBHOOK_SECRET", "WEBHOOK"),
	}
}

func loadProvider(secretVar, section string) ProviderSettings {
	return ProviderSettings{
		Secret:    getEnv(secretVar, ""),
		Tolerance: getIntEnv(section+"_TOLERANCE", 300),
		RateLimit: getIntEnv(section+"_RATE_LIMIT", 60),
	}
}

// getEnv retrieves an environment variable value or returns a default
// value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves an integer environment variable value or returns a
// default value if not set or unparsable.
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate performs validation on the configuration to ensure all required
// fields are present and all values are valid. The application should call
// this method after loading configuration and before starting.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if c.RedisAddress != "" {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	if c.IngressRPS < 1 {
		return fmt.Errorf("INGRESS_RPS must be a positive number")
	}
	if c.IngressBurst < 1 {
		return fmt.Errorf("INGRESS_BURST must be a positive number")
	}

	for _, p := range []struct {
		name     string
		settings ProviderSettings
	}{
		{"STRIPE", c.Stripe},
		{"RETELL", c.Retell},
		{"TWILIO", c.Twilio},
		{"WEBHOOK", c.Generic},
	} {
		if p.settings.Secret == "" {
			continue
		}
		if p.settings.Tolerance < 1 {
			return fmt.Errorf("%s_TOLERANCE must be a positive number of seconds", p.name)
		}
		if p.settings.RateLimit < 1 {
			return fmt.Errorf("%s_RATE_LIMIT must be a positive number", p.name)
		}
	}

	if len(c.Providers()) == 0 {
		return fmt.Errorf("at least one provider secret must be configured")
	}

	return nil
}

// Providers builds the webhook provider configurations for every provider
// whose secret is set. Header names and signature schemes are fixed per
// provider; only secrets, tolerances and rate limits come from the
// environment.
func (c *Config) Providers() []webhook.ProviderConfig {
	var providers []webhook.ProviderConfig

	if c.Stripe.Secret != "" {
		providers = append(providers, providerConfig("stripe", c.Stripe, webhook.ProviderConfig{
			Scheme:          webhook.SchemeStripeV1,
			SignatureHeader: "Stripe-Signature",
		}))
	}

	if c.Retell.Secret != "" {
		providers = append(providers, providerConfig("retell", c.Retell, webhook.ProviderConfig{
			Scheme:          webhook.SchemeHMACSHA256Hex,
			SignatureHeader: "X-Retell-Signature",
			TimestampHeader: "X-Retell-Timestamp",
		}))
	}

	if c.Twilio.Secret != "" {
		providers = append(providers, providerConfig("twilio", c.Twilio, webhook.ProviderConfig{
			Scheme:          webhook.SchemeHMACSHA1Base64,
			SignatureHeader: "X-Twilio-Signature",
		}))
	}

	if c.Generic.Secret != "" {
		providers = append(providers, providerConfig("generic", c.Generic, webhook.ProviderConfig{
			Scheme:          webhook.SchemeHMACSHA256Hex,
			SignatureHeader: "X-Webhook-Signature",
			TimestampHeader: "X-Webhook-Timestamp",
		}))
	}

	return providers
}

func providerConfig(id string, settings ProviderSettings, base webhook.ProviderConfig) webhook.ProviderConfig {
	base.ProviderID = id
	base.Secret = []byte(settings.Secret)
	base.Tolerance = time.Duration(settings.Tolerance) * time.Second
	base.MaxRequestsPerMinute = settings.RateLimit
	return base
}
