/**
 * @description
 * Configuration management for the collections service. Values come from
 * environment variables, optionally seeded from a .env file.
 *
 * @dependencies
 * - github.com/spf13/viper: environment binding and defaults.
 */
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	ServerPort       string `mapstructure:"SERVER_PORT"`
	DatabaseURL      string `mapstructure:"DATABASE_URL"`
	RabbitMQURL      string `mapstructure:"RABBITMQ_URL"`
	RedisURL         string `mapstructure:"REDIS_URL"`
	JWTSecret        string `mapstructure:"JWT_SECRET"`
	InternalAPIKey   string `mapstructure:"INTERNAL_API_KEY"`
	BusinessTimezone string `mapstructure:"BUSINESS_TIMEZONE"`
	LogLevel         string `mapstructure:"LOG_LEVEL"`

	EscalationThresholdDays int    `mapstructure:"ESCALATION_THRESHOLD_DAYS"`
	AutoEscalate            bool   `mapstructure:"AUTO_ESCALATE"`
	SweepSchedule           string `mapstructure:"SWEEP_SCHEDULE"`

	NotifyChannel string        `mapstructure:"NOTIFY_CHANNEL"`
	NotifyTimeout time.Duration `mapstructure:"NOTIFY_TIMEOUT"`
	SMTPHost      string        `mapstructure:"SMTP_HOST"`
	SMTPPort      int           `mapstructure:"SMTP_PORT"`
	SMTPUser      string        `mapstructure:"SMTP_USER"`
	SMTPPassword  string        `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom      string        `mapstructure:"SMTP_FROM"`

	PaymentGatewayURL    string `mapstructure:"PAYMENT_GATEWAY_URL"`
	PaymentGatewayAPIKey string `mapstructure:"PAYMENT_GATEWAY_API_KEY"`
	PaymentDocsDir       string `mapstructure:"PAYMENT_DOCS_DIR"`
	PaymentLinkBaseURL   string `mapstructure:"PAYMENT_LINK_BASE_URL"`

	StatsCacheTTL time.Duration `mapstructure:"STATS_CACHE_TTL"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (config Config, err error) {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("BUSINESS_TIMEZONE", "America/Sao_Paulo")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("ESCALATION_THRESHOLD_DAYS", 15)
	viper.SetDefault("AUTO_ESCALATE", true)
	viper.SetDefault("SWEEP_SCHEDULE", "@every 1h")
	viper.SetDefault("NOTIFY_CHANNEL", "both")
	viper.SetDefault("NOTIFY_TIMEOUT", "10s")
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("PAYMENT_DOCS_DIR", "./payment-docs")
	viper.SetDefault("STATS_CACHE_TTL", "5m")
	viper.AutomaticEnv()

	for _, key := range []string{
		"SERVER_PORT", "PORT", "DATABASE_URL", "RABBITMQ_URL", "REDIS_URL",
		"JWT_SECRET", "INTERNAL_API_KEY", "BUSINESS_TIMEZONE", "LOG_LEVEL",
		"ESCALATION_THRESHOLD_DAYS", "AUTO_ESCALATE", "SWEEP_SCHEDULE",
		"NOTIFY_CHANNEL", "NOTIFY_TIMEOUT",
		"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASSWORD", "SMTP_FROM",
		"PAYMENT_GATEWAY_URL", "PAYMENT_GATEWAY_API_KEY", "PAYMENT_DOCS_DIR", "PAYMENT_LINK_BASE_URL",
		"STATS_CACHE_TTL",
	} {
		_ = viper.BindEnv(key)
	}

	if err = viper.Unmarshal(&config); err != nil {
		return config, err
	}
	if port := os.Getenv("PORT"); port != "" {
		config.ServerPort = port
	}
	config.NotifyChannel = strings.ToLower(strings.TrimSpace(config.NotifyChannel))

	err = config.validate()
	return
}

func (c Config) validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.EscalationThresholdDays <= 0 {
		return fmt.Errorf("ESCALATION_THRESHOLD_DAYS must be positive, got %d", c.EscalationThresholdDays)
	}
	if _, err := time.LoadLocation(c.BusinessTimezone); err != nil {
		return fmt.Errorf("invalid BUSINESS_TIMEZONE %q: %w", c.BusinessTimezone, err)
	}
	switch c.NotifyChannel {
	case "system", "email", "both":
	default:
		return fmt.Errorf("NOTIFY_CHANNEL must be one of system, email, both; got %q", c.NotifyChannel)
	}
	return nil
}

// Location returns the business timezone. LoadConfig has already validated it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
