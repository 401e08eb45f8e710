// Package helpers provides small utility functions shared across the project.
package helpers

import (
	"os"
	"strconv"
	"time"
)

// GetStringFromEnv returns the environment variable value or default if not set or empty.
//
// Example:
//
//	host := helpers.GetStringFromEnv("OPENSEARCH_HOST", "localhost")
//	model := helpers.GetStringFromEnv("EMBEDDING_MODEL", "all-mpnet-base-v2")
func GetStringFromEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetIntFromEnv returns the environment variable value as int or default if not set or invalid.
//
// Example:
//
//	port := helpers.GetIntFromEnv("OPENSEARCH_PORT", 9200)
//	dim := helpers.GetIntFromEnv("EMBEDDING_DIMENSION", 768)
func GetIntFromEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetBoolFromEnv returns the environment variable value as bool or default if not set or invalid.
//
// Example:
//
//	debug := helpers.GetBoolFromEnv("DEBUG", false)
func GetBoolFromEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetDurationFromEnv returns the environment variable value as duration or default if not set or invalid.
//
// Example:
//
//	timeout := helpers.GetDurationFromEnv("OPENSEARCH_TIMEOUT", 30*time.Second)
func GetDurationFromEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetFloatFromEnv returns the environment variable value as float64 or default if not set or invalid.
//
// Example:
//
//	temp := helpers.GetFloatFromEnv("CHAT_TEMPERATURE", 0.7)
func GetFloatFromEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
