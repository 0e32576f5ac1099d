package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	AuditBackendSQL  = "sql"
	AuditBackendAMQP = "amqp"
)

type Config struct {
	// HTTP server
	Port string

	// Database
	DatabaseURL string

	// Exchange rates
	RatesFile string

	// Audit trail
	AuditBackend    string
	AuditBufferSize int

	// AMQP, used when AuditBackend is "amqp"
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// Load reads configuration from the environment, with a .env file applied
// first if one exists.
func Load() *Config {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "5000"),
		DatabaseURL: getEnv("DATABASE_URL", "host=localhost port=5432 user=postgres password=postgres dbname=nsplit sslmode=disable"),
		RatesFile:   getEnv("RATES_FILE", "./rates.yaml"),

		AuditBackend:    getEnv("AUDIT_BACKEND", AuditBackendSQL),
		AuditBufferSize: getEnvInt("AUDIT_BUFFER_SIZE", 100),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "nsplit"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "audit_entries"),
	}
}

// Validate checks the configuration and returns an error listing everything
// wrong with it.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DatabaseURL == "" {
		problems = append(problems, "database URL cannot be empty")
	}

	if c.RatesFile == "" {
		problems = append(problems, "rates file path cannot be empty")
	}

	switch c.AuditBackend {
	case AuditBackendSQL:
	case AuditBackendAMQP:
		if c.AMQPURL == "" {
			problems = append(problems, "AMQP URL is required when the audit backend is amqp")
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty")
		}
		if c.AMQPQueue == "" {
			problems = append(problems, "AMQP queue name cannot be empty")
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid audit backend '%s': must be one of [sql amqp]", c.AuditBackend))
	}

	if c.AuditBufferSize < 1 {
		problems = append(problems, fmt.Sprintf("invalid audit buffer size %d: must be at least 1", c.AuditBufferSize))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
