package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/christopher-kapic/solved-problems-mcp/internal/logger"
	"github.com/joho/godotenv"
)

var (
	customLog = logger.NewLogger()
)

// Config holds application configuration values
type Config struct {
	ServerPort    string
	JWTSecret     string
	JWTExpiration time.Duration
	DataDir       string
	DatabaseFile  string
	CORSOrigin    string
}

// LoadConfig loads configuration from environment variables.
// It uses a .env file for local development if present (ignores it for production).
func LoadConfig() (*Config, error) {
	customLog.Println("Loading configuration from environment variables...")

	// Attempt to load .env file if in development environment (skip in production)
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			customLog.Warnf("Warning: Error loading .env file: %v", err)
		}
	}

	// Read values from environment variables, providing defaults where appropriate
	port := getEnv("SERVER_PORT", "3000")
	jwtSecret := getEnv("JWT_SECRET", "") // No sensible default for secret!
	jwtExpHoursStr := getEnv("JWT_EXPIRATION_HOURS", "24")
	dataDir := getEnv("DATABASE_DIRECTORY", "data")
	dbFile := getEnv("DATABASE_DIRECTORY_FILE", "solved_problems.db")
	corsOrigin := getEnv("CORS_ORIGIN", "*")

	// --- Validation and Parsing ---
	// Critical: Ensure JWT Secret is set
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable must be set")
	}

	// Parse JWT Expiration (hours)
	jwtExpHours, err := strconv.Atoi(jwtExpHoursStr)
	if err != nil || jwtExpHours <= 0 {
		customLog.Warnf("Invalid JWT_EXPIRATION_HOURS '%s'. Using default 24h. Error: %v", jwtExpHoursStr, err)
		jwtExpHours = 24
	}
	jwtExpiration := time.Hour * time.Duration(jwtExpHours)

	cfg := &Config{
		ServerPort:    port,
		JWTSecret:     jwtSecret,
		JWTExpiration: jwtExpiration,
		DataDir:       dataDir,
		DatabaseFile:  dbFile,
		CORSOrigin:    corsOrigin,
	}

	customLog.Printf("Configuration loaded successfully. Port: %s, JWT Exp: %v", cfg.ServerPort, cfg.JWTExpiration)
	return cfg, nil
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
