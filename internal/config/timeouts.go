package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds the provider API settings shared by all cloud backends.
// These values can be customized via environment variables.
type Timeouts struct {
	API               time.Duration // Timeout for a single provider API call
	RetryMaxAttempts  int           // Maximum number of transport-level retries
	RetryInitialDelay time.Duration // Initial delay between retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - NODECHAOS_API_TIMEOUT (default: 60s)
//   - NODECHAOS_RETRY_MAX_ATTEMPTS (default: 5)
//   - NODECHAOS_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		API:               parseDuration("NODECHAOS_API_TIMEOUT", 60*time.Second),
		RetryMaxAttempts:  parseInt("NODECHAOS_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("NODECHAOS_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
