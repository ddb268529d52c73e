package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var ErrLimitNotFound = errors.New("user_metric_limit_not_found")

// Repository persists per-user usage counters. IncreaseUsedValue and
// DecreaseUsedValue are single-statement conditional updates so concurrent
// requests for the same (user, code) never lose increments.
type Repository interface {
	FindByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]UserMetricLimit, error)
	FindByUserAndCode(ctx context.Context, db *gorm.DB, userID snowflake.ID, code string) (*UserMetricLimit, error)

	// IncreaseUsedValue consumes quota: current_used_value += amount.
	IncreaseUsedValue(ctx context.Context, db *gorm.DB, userID snowflake.ID, code string, amount float64) error
	// DecreaseUsedValue reverses consumption, clamped at a zero floor.
	DecreaseUsedValue(ctx context.Context, db *gorm.DB, userID snowflake.ID, code string, amount float64) error

	BatchCreate(ctx context.Context, db *gorm.DB, limits []*UserMetricLimit) error
	BatchUpdate(ctx context.Context, db *gorm.DB, limits []*UserMetricLimit) error
	BatchDelete(ctx context.Context, db *gorm.DB, ids []snowflake.ID) error
}
