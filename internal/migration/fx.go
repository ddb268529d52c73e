package migration

import (
	metricdomain "github.com/arabot777/idea2product-metering/internal/metric/domain"
	quotadomain "github.com/arabot777/idea2product-metering/internal/quota/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module creates the metering schema on startup so the service is usable out
// of the box on any supported dialect.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, log *zap.Logger) error {
		if err := conn.AutoMigrate(
			&metricdomain.BillableMetric{},
			&quotadomain.UserMetricLimit{},
		); err != nil {
			return err
		}
		log.Named("migration").Info("database schema up to date")
		return nil
	}),
)
