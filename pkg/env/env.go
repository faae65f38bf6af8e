// Package env reads the few settings needed before config.Load runs.
package env

import (
	"os"
	"strconv"
	"strings"
)

// Get returns the trimmed value of key, or fallback when it is unset or blank.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// Bool parses key as a boolean. Unparsable values fall back.
func Bool(key string, fallback bool) bool {
	parsed, err := strconv.ParseBool(Get(key, ""))
	if err != nil {
		return fallback
	}
	return parsed
}
