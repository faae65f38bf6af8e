package migrate

import (
	"context"
	"fmt"

	"github.com/radarprecios/radarprecios-backend/pkg/config"
	"github.com/radarprecios/radarprecios-backend/pkg/db"
	"github.com/radarprecios/radarprecios-backend/pkg/logger"
)

// MaybeRunDev migrates up during API boot when running in dev with
// RADAR_AUTO_MIGRATE on. Other environments migrate at deploy via cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, DefaultDir, logg)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "dir", DefaultDir), "migrate.autorun")
	return runner.Apply(ctx, "up")
}
