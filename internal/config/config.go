package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv   string
	Port      string
	JWTSecret string
	EncKey    string
	Database  DatabaseConfig
	Supplier  SupplierConfig
	Market    MarketConfig
	AI        AIConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Alter    bool
}

// SupplierConfig holds upstream supplier API endpoints
type SupplierConfig struct {
	APIURL  string
	AuthURL string
}

// MarketConfig holds downstream marketplace API settings
type MarketConfig struct {
	BaseURL string
}

// AIConfig holds optional AI integration settings
type AIConfig struct {
	GeminiAPIKey string
	Model        string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &Config{
		NodeEnv:   getEnv("NODE_ENV", "development"),
		Port:      getEnv("PORT", "3100"),
		JWTSecret: jwtSecret,
		EncKey:    os.Getenv("ENC_KEY"),
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "sellerbridge"),
			Alter:    getEnv("DB_ALTER", "false") == "true",
		},
		Supplier: SupplierConfig{
			APIURL:  getEnv("SUPPLIER_API_URL", "https://api.ownerclan.com/v1/graphql"),
			AuthURL: getEnv("SUPPLIER_AUTH_URL", "https://auth.ownerclan.com/auth"),
		},
		Market: MarketConfig{
			BaseURL: getEnv("MARKET_BASE_URL", "https://api-gateway.coupang.com"),
		},
		AI: AIConfig{
			GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
			Model:        getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
