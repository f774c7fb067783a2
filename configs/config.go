package config

import (
	"os"
)

// Config holds the application configuration
type Config struct {
	Port         string
	Environment  string
	APIKey       string
	GroqEndpoint string
	GroqAPIKey   string
	GroqModel    string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		Environment:  getEnv("ENVIRONMENT", "development"),
		APIKey:       getEnv("API_KEY", "default_secret_key"),
		GroqEndpoint: getEnv("GROQ_ENDPOINT", "https://api.groq.com/openai/v1"),
		GroqAPIKey:   getEnv("GROQ_API_KEY", ""),
		GroqModel:    getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
