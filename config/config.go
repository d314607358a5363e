package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the hotspot advisor service
type Config struct {
	// Server configuration
	Port           string
	AllowedOrigins []string

	// Logging
	LogLevel string

	// Telemetry network configuration
	TelemetryBaseURL     string
	TelemetryTimeout     time.Duration
	TelemetryRateLimit   float64 // requests per second
	TelemetryUseFallback bool
	RewardWindowDays     int
	WitnessWindowDays    int

	// Price feed configuration
	PriceFeedURL  string
	PriceTimeout  time.Duration
	TokenSymbol   string
	QuoteCacheTTL time.Duration

	// Valuation
	HardwareCost float64

	// Ledger configuration
	Ledger LedgerConfig

	// Optional MySQL database for the price quote cache
	DB DBConfig

	// Optional RabbitMQ publisher for analysed device events
	RabbitMQ RabbitMQConfig
}

type LedgerConfig struct {
	RPCURL     string
	AccountID  string
	PrivateKey string
	MirrorURL  string // Etherscan compatible account API
	MirrorKey  string
	Timeout    time.Duration
}

type DBConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// DSN returns the go-sql-driver/mysql data source name.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", c.User, c.Password, c.Host, c.Port, c.Name)
}

type RabbitMQConfig struct {
	Host       string
	Port       string
	User       string
	Password   string
	Exchange   string
	RoutingKey string
}

// GetAMQPURL returns the AMQP connection URL, or an empty string when no
// broker host is configured.
func (c RabbitMQConfig) GetAMQPURL() string {
	if c.Host == "" {
		return ""
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", c.User, c.Password, c.Host, c.Port)
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getStringSliceEnv("ALLOWED_ORIGINS", "*"),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		TelemetryBaseURL:     getEnv("TELEMETRY_BASE_URL", "https://api.helium.io/v1"),
		TelemetryTimeout:     getDurationEnv("TELEMETRY_TIMEOUT", 10*time.Second),
		TelemetryRateLimit:   getFloatEnv("TELEMETRY_RATE_LIMIT", 5),
		TelemetryUseFallback: getBoolEnv("TELEMETRY_USE_FALLBACK", true),
		RewardWindowDays:     getIntEnv("REWARD_WINDOW_DAYS", 30),
		WitnessWindowDays:    getIntEnv("WITNESS_WINDOW_DAYS", 5),

		PriceFeedURL:  getEnv("PRICE_FEED_URL", "https://hermes.pyth.network"),
		PriceTimeout:  getDurationEnv("PRICE_TIMEOUT", 5*time.Second),
		TokenSymbol:   strings.ToUpper(getEnv("TOKEN_SYMBOL", "HNT")),
		QuoteCacheTTL: getDurationEnv("QUOTE_CACHE_TTL", 24*time.Hour),

		HardwareCost: getFloatEnv("HARDWARE_COST", 400),

		Ledger: LedgerConfig{
			RPCURL:     getEnv("LEDGER_RPC_URL", ""),
			AccountID:  getEnv("LEDGER_ACCOUNT_ID", ""),
			PrivateKey: getEnv("LEDGER_PRIVATE_KEY", ""),
			MirrorURL:  getEnv("LEDGER_MIRROR_URL", ""),
			MirrorKey:  getEnv("LEDGER_MIRROR_API_KEY", ""),
			Timeout:    getDurationEnv("LEDGER_TIMEOUT", 60*time.Second),
		},

		DB: DBConfig{
			Enabled:  getBoolEnv("DB_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "3306"),
			User:     getEnv("DB_USER", "server"),
			Password: getEnv("DB_PASSWORD", "secret_app"),
			Name:     getEnv("DB_NAME", "hotspot_advisor"),
		},

		RabbitMQ: RabbitMQConfig{
			Host:       getEnv("AMQP_HOST", ""),
			Port:       getEnv("AMQP_PORT", "5672"),
			User:       getEnv("AMQP_USER", "guest"),
			Password:   getEnv("AMQP_PASSWORD", "guest"),
			Exchange:   getEnv("RABBITMQ_EXCHANGE", "hotspot"),
			RoutingKey: getEnv("RABBITMQ_DEVICE_ANALYSED_ROUTING_KEY", "device.analysed"),
		},
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getStringSliceEnv gets a comma-separated environment variable as a slice
func getStringSliceEnv(key, defaultValue string) []string {
	value := getEnv(key, defaultValue)
	if value == "" {
		return []string{}
	}

	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
