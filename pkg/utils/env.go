package utils

import (
	"os"
	"time"
)

func ParseWithFallback(envName string, fallback string) string {
	result := os.Getenv(envName)
	if result == "" {
		result = fallback
	}

	return result
}

// DurationWithFallback parses envName as a time.Duration, returning fallback
// when the variable is unset or malformed.
func DurationWithFallback(envName string, fallback time.Duration) time.Duration {
	raw := os.Getenv(envName)
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
