package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	KeyingCompound   = "compound"
	KeyingIngredient = "ingredient"

	LockingKeyed = "keyed"
	LockingNone  = "none"
)

type Config struct {
	DatabasePath      string
	OIDCIssuer        string
	OIDCClientID      string
	OIDCClientSecret  string
	OIDCRedirectURL   string
	SessionSecret     string
	LogLevel          string
	Port              string
	AllowedOrigins    []string
	ShoppingKeying    string
	GenerationLocking string
}

func Load() (Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	config := Config{
		DatabasePath:      envOrDefault("DATABASE_PATH", "./data/family-kitchen.db"),
		OIDCIssuer:        os.Getenv("OIDC_ISSUER"),
		OIDCClientID:      os.Getenv("OIDC_CLIENT_ID"),
		OIDCClientSecret:  os.Getenv("OIDC_CLIENT_SECRET"),
		OIDCRedirectURL:   os.Getenv("OIDC_REDIRECT_URL"),
		SessionSecret:     os.Getenv("SESSION_SECRET"),
		LogLevel:          envOrDefault("LOG_LEVEL", "info"),
		Port:              envOrDefault("PORT", "8080"),
		AllowedOrigins:    splitList(envOrDefault("ALLOWED_ORIGINS", "http://localhost:5173")),
		ShoppingKeying:    envOrDefault("SHOPPING_LIST_KEYING", KeyingCompound),
		GenerationLocking: envOrDefault("GENERATION_LOCKING", LockingKeyed),
	}

	if config.SessionSecret == "" {
		return Config{}, fmt.Errorf("SESSION_SECRET is required")
	}
	if config.ShoppingKeying != KeyingCompound && config.ShoppingKeying != KeyingIngredient {
		return Config{}, fmt.Errorf("SHOPPING_LIST_KEYING must be %q or %q, got %q", KeyingCompound, KeyingIngredient, config.ShoppingKeying)
	}
	if config.GenerationLocking != LockingKeyed && config.GenerationLocking != LockingNone {
		return Config{}, fmt.Errorf("GENERATION_LOCKING must be %q or %q, got %q", LockingKeyed, LockingNone, config.GenerationLocking)
	}

	return config, nil
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var items []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}
