// Package config provides environment-variable helpers with defaults.
package config

import (
	"os"
	"strconv"
)

// GetEnv returns the value of an environment variable or a default.
func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// GetEnvInt returns an integer environment variable or a default.
func GetEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
