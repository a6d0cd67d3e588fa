// Package config provides configuration for the application
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Storage backends for content metadata
const (
	BackendFile  = "file"
	BackendMySQL = "mysql"
)

// Config holds all configuration for the application
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Logging  LoggingConfig
	CORS     CORSConfig
	Storage  StorageConfig
	Schedule ScheduleConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port          int
	MaxUploadSize int64
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// StorageConfig holds settings for uploaded files and content metadata
type StorageConfig struct {
	// Backend is "file" (one JSON document per content kind) or "mysql"
	Backend string
	// DataDir holds the JSON documents of the file backend
	DataDir string
	// PublicDir is the root under which attachments are written
	PublicDir string
	// PublicURLPrefix is the URL prefix attachments are served under
	PublicURLPrefix string
}

// ScheduleConfig holds settings for scheduled publication dates
type ScheduleConfig struct {
	Location *time.Location
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// The .env file is optional, environment variables take precedence
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}

	// Server configuration
	serverPort, err := intFromEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	cfg.Server.Port = serverPort

	maxUploadMB, err := intFromEnv("MAX_UPLOAD_SIZE_MB", 50)
	if err != nil {
		return nil, err
	}
	if maxUploadMB <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_SIZE_MB must be positive, got %d", maxUploadMB)
	}
	cfg.Server.MaxUploadSize = int64(maxUploadMB) * 1024 * 1024

	// Logging configuration
	cfg.Logging.Level = stringFromEnv("LOG_LEVEL", "info")

	// CORS configuration
	cfg.CORS.AllowedOrigins = parseOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"))

	// Storage configuration
	cfg.Storage.Backend = strings.ToLower(stringFromEnv("STORAGE_BACKEND", BackendFile))
	cfg.Storage.DataDir = stringFromEnv("DATA_DIR", "data")
	cfg.Storage.PublicDir = stringFromEnv("PUBLIC_DIR", "public/uploads")
	cfg.Storage.PublicURLPrefix = stringFromEnv("PUBLIC_URL_PREFIX", "/uploads")

	switch cfg.Storage.Backend {
	case BackendFile:
	case BackendMySQL:
		if err := loadDatabase(cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q: expected %q or %q", cfg.Storage.Backend, BackendFile, BackendMySQL)
	}

	// Schedule configuration
	location, err := time.LoadLocation(stringFromEnv("SCHEDULE_TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULE_TIMEZONE: %w", err)
	}
	cfg.Schedule.Location = location

	return cfg, nil
}

// loadDatabase reads the connection settings required by the mysql backend
func loadDatabase(cfg *Config) error {
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	cfg.Database.Host = dbHost

	dbPortStr := os.Getenv("DB_PORT")
	if dbPortStr == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	dbPort, err := strconv.Atoi(dbPortStr)
	if err != nil {
		return fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.Database.Port = dbPort

	dbUser := os.Getenv("DB_USER")
	if dbUser == "" {
		return fmt.Errorf("DB_USER is required")
	}
	cfg.Database.User = dbUser

	dbPassword := os.Getenv("DB_PASSWORD")
	if dbPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	cfg.Database.Password = dbPassword

	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	cfg.Database.DBName = dbName

	return nil
}

// parseOrigins splits a comma-separated origin list, allowing all origins when it is empty
func parseOrigins(value string) []string {
	origins := make([]string, 0)
	for _, origin := range strings.Split(value, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func stringFromEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func intFromEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

// DSN returns the database connection string, or an empty string when no database is configured
func (c *Config) DSN() string {
	if c.Database.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
	)
}
