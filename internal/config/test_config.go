package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadTestConfig loads the database settings for integration tests from TEST_DB_* variables.
// When any of them is missing the returned Config has no database, DSN() is empty
// and the MySQL-backed integration tests are skipped.
func LoadTestConfig() (*Config, error) {
	// Both paths are optional
	_ = godotenv.Load("./../../.env")
	_ = godotenv.Load()

	values := make(map[string]string, 5)
	for _, key := range []string{"TEST_DB_HOST", "TEST_DB_PORT", "TEST_DB_USER", "TEST_DB_PASSWORD", "TEST_DB_NAME"} {
		value := os.Getenv(key)
		if value == "" {
			return &Config{}, nil
		}
		values[key] = value
	}

	dbPort, err := strconv.Atoi(values["TEST_DB_PORT"])
	if err != nil {
		return nil, fmt.Errorf("invalid TEST_DB_PORT: %w", err)
	}

	cfg := &Config{}
	cfg.Database = DatabaseConfig{
		Host:     values["TEST_DB_HOST"],
		Port:     dbPort,
		User:     values["TEST_DB_USER"],
		Password: values["TEST_DB_PASSWORD"],
		DBName:   values["TEST_DB_NAME"],
	}
	return cfg, nil
}
