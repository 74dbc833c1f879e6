package config

import (
	"os"
	"strings"
)

// EnvPrefix is the prefix for all sshweaver environment variables.
const EnvPrefix = "SSHWEAVER_"

// getEnv retrieves an sshweaver environment variable value.
func getEnv(key string) string {
	return os.Getenv(EnvPrefix + key)
}

// getEnvOrFile retrieves a value supporting the _FILE suffix pattern
// (Docker secrets). Given a key like "ACCOUNT_PASSWORD", it checks:
//  1. SSHWEAVER_ACCOUNT_PASSWORD_FILE - reads file contents if set
//  2. SSHWEAVER_ACCOUNT_PASSWORD - returns direct value if set
//
// File contents are trimmed of leading/trailing whitespace. If the file
// read fails the direct value is used.
func getEnvOrFile(key string) string {
	if filePath := os.Getenv(EnvPrefix + key + "_FILE"); filePath != "" {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return os.Getenv(EnvPrefix + key)
}

// parseBool parses a boolean string, returning defaultValue on parse failure.
// Accepts: true/false, 1/0, yes/no, on/off (case-insensitive).
func parseBool(s string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}
