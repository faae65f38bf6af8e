// Package instance names the running process in logs.
package instance

import (
	"os"

	"github.com/radarprecios/radarprecios-backend/pkg/env"
)

// ID prefers an explicit RADAR_INSTANCE_ID, then the platform dyno name,
// then the hostname.
func ID() string {
	if id := env.Get("RADAR_INSTANCE_ID", env.Get("DYNO", "")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
