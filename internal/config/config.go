package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Log levels accepted by LOG_LEVEL and --log-level, quietest first.
var LogLevels = []string{"critical", "error", "warning", "info", "debug"}

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port     string
	LogLevel string

	// Database configuration
	DBType            string // sqlite, sqlite3, mysql, postgres, sqlserver
	DBHost            string
	DBPort            string
	DBDatabase        string // file path for sqlite
	DBUser            string
	DBPassword        string
	DBConnectionLimit int

	// Allocation configuration
	PortFloor           int
	PortCeiling         int
	ReserveNextAttempts int

	// Reservation events, disabled when AMQPURL is empty
	AMQPURL   string
	AMQPQueue string
}

// Load loads configuration from environment variables. When envFile is set it is
// read first and must exist; otherwise a .env in the working directory is used if present.
// Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Port:                getEnv("PORT", "55000"),
		LogLevel:            getEnv("LOG_LEVEL", "critical"),
		DBType:              getEnv("DB_TYPE", "sqlite"),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getEnv("DB_PORT", ""),
		DBDatabase:          getEnv("DB_DATABASE", "portsmith.db"),
		DBUser:              getEnv("DB_USER", ""),
		DBPassword:          getEnv("DB_PASSWORD", ""),
		DBConnectionLimit:   getEnvAsInt("DB_CONNECTION_LIMIT", 5),
		PortFloor:           getEnvAsInt("PORT_FLOOR", 55001),
		PortCeiling:         getEnvAsInt("PORT_CEILING", 65535),
		ReserveNextAttempts: getEnvAsInt("RESERVE_NEXT_ATTEMPTS", 3),
		AMQPURL:             getEnv("AMQP_URL", ""),
		AMQPQueue:           getEnv("AMQP_QUEUE", "portsmith.reservations"),
	}

	return cfg, nil
}

// Validate checks the configuration after flags have been applied
func (c *Config) Validate() error {
	if c.DBDatabase == "" {
		return fmt.Errorf("DB_DATABASE is required")
	}
	switch c.DBType {
	case "sqlite", "sqlite3":
	case "mysql", "mariadb", "postgres", "postgresql", "sqlserver", "mssql":
		if c.DBUser == "" {
			return fmt.Errorf("DB_USER is required for %s", c.DBType)
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.DBType)
	}
	if !validLogLevel(c.LogLevel) {
		return fmt.Errorf("invalid log level %q, expected one of %v", c.LogLevel, LogLevels)
	}
	if c.PortCeiling < 1 || c.PortCeiling > 65535 {
		return fmt.Errorf("PORT_CEILING must be within 1-65535, got %d", c.PortCeiling)
	}
	if c.PortFloor < 1 || c.PortFloor > c.PortCeiling {
		return fmt.Errorf("PORT_FLOOR must be within 1-%d, got %d", c.PortCeiling, c.PortFloor)
	}
	if c.ReserveNextAttempts < 1 {
		return fmt.Errorf("RESERVE_NEXT_ATTEMPTS must be at least 1, got %d", c.ReserveNextAttempts)
	}
	if c.DBConnectionLimit < 1 {
		return fmt.Errorf("DB_CONNECTION_LIMIT must be at least 1, got %d", c.DBConnectionLimit)
	}
	return nil
}

// IsSQLite reports whether the configured database is a local SQLite file
func (c *Config) IsSQLite() bool {
	return c.DBType == "sqlite" || c.DBType == "sqlite3"
}

// Verbose reports whether request level logging is wanted
func (c *Config) Verbose() bool {
	return c.LogLevel == "info" || c.LogLevel == "debug"
}

func validLogLevel(level string) bool {
	for _, l := range LogLevels {
		if l == level {
			return true
		}
	}
	return false
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
