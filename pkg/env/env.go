package env

import (
	"os"
	"strings"
)

// Get reads an environment variable, returning fallback when unset or blank.
func Get(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}
