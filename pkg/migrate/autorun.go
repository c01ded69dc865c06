package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/promoengine/pkg/config"
	"github.com/angelmondragon/promoengine/pkg/db"
	"github.com/angelmondragon/promoengine/pkg/db/models"
	"github.com/angelmondragon/promoengine/pkg/logger"
	"gorm.io/gorm"
)

// Models lists the persisted models in dependency order.
func Models() []any {
	return []any{
		&models.Promotion{},
		&models.PromotionRule{},
		&models.PromotionCondition{},
		&models.PromotionTier{},
		&models.CatalogProduct{},
		&models.GroupMembership{},
	}
}

// MaybeRunDev migrates the schema on startup when the app runs in dev mode
// with auto-migrate enabled. Postgres runs the goose migrations; sqlite gets
// the schema from the models.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})
	if cfg.DB.IsSQLite() {
		logg.Info(ctx, "running gorm auto-migrate (dev sqlite)")
		if err := AutoMigrate(ctx, client.DB()); err != nil {
			return err
		}
		logg.Info(ctx, "auto-migrate completed")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	ctx = logg.WithField(ctx, "dir", DefaultDir)
	logg.Info(ctx, "running Goose migrations (dev auto-run)")
	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}
	logg.Info(ctx, "Goose migrations completed")
	return nil
}

// AutoMigrate creates or updates the tables of every model.
func AutoMigrate(ctx context.Context, conn *gorm.DB) error {
	if err := conn.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
