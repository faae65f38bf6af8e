// Package storage persists uploaded price photos outside the database.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/radarprecios/radarprecios-backend/pkg/config"
	"github.com/radarprecios/radarprecios-backend/pkg/logger"
	"github.com/radarprecios/radarprecios-backend/pkg/storage/gcs"
)

// Store saves photos and removes them again when the owning write fails.
type Store interface {
	Save(ctx context.Context, name, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}

// New picks the configured driver.
func New(ctx context.Context, cfg *config.Config, logg *logger.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case config.StorageDriverLocal:
		return NewDisk(cfg.Storage.LocalDir, cfg.Storage.PublicPrefix)
	case config.StorageDriverGCS:
		return gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

// ObjectName builds a unique, date-partitioned name for a new photo.
func ObjectName(prefix, extension string, now time.Time) string {
	ext := strings.TrimPrefix(strings.ToLower(extension), ".")
	name := uuid.NewString()
	if ext != "" {
		name += "." + ext
	}
	return path.Join(prefix, now.UTC().Format("2006/01/02"), name)
}
