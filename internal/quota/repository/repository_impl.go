package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	quotadomain "github.com/arabot777/idea2product-metering/internal/quota/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() quotadomain.Repository {
	return &repo{}
}

func (r *repo) FindByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]quotadomain.UserMetricLimit, error) {
	var limits []quotadomain.UserMetricLimit
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, code, metric_name, total_limit, current_used_value, created_at, updated_at
		 FROM user_metric_limits WHERE user_id = ? ORDER BY code ASC`,
		userID,
	).Scan(&limits).Error
	if err != nil {
		return nil, err
	}
	return limits, nil
}

func (r *repo) FindByUserAndCode(ctx context.Context, db *gorm.DB, userID snowflake.ID, code string) (*quotadomain.UserMetricLimit, error) {
	var limit quotadomain.UserMetricLimit
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, code, metric_name, total_limit, current_used_value, created_at, updated_at
		 FROM user_metric_limits WHERE user_id = ? AND code = ?`,
		userID,
		code,
	).Scan(&limit).Error
	if err != nil {
		return nil, err
	}
	if limit.ID == 0 {
		return nil, nil
	}
	return &limit, nil
}

// The counter moves inside the database, never through a read-modify-write in
// Go, so interleaved requests for the same (user, code) cannot lose updates.
func (r *repo) IncreaseUsedValue(ctx context.Context, db *gorm.DB, userID snowflake.ID, code string, amount float64) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE user_metric_limits
		 SET current_used_value = COALESCE(current_used_value, 0) + ?, updated_at = ?
		 WHERE user_id = ? AND code = ?`,
		amount,
		time.Now().UTC(),
		userID,
		code,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return quotadomain.ErrLimitNotFound
	}
	return nil
}

func (r *repo) DecreaseUsedValue(ctx context.Context, db *gorm.DB, userID snowflake.ID, code string, amount float64) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE user_metric_limits
		 SET current_used_value = `+clampFn(db)+`(COALESCE(current_used_value, 0) - ?, 0), updated_at = ?
		 WHERE user_id = ? AND code = ?`,
		amount,
		time.Now().UTC(),
		userID,
		code,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return quotadomain.ErrLimitNotFound
	}
	return nil
}

func (r *repo) BatchCreate(ctx context.Context, db *gorm.DB, limits []*quotadomain.UserMetricLimit) error {
	if len(limits) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(limits).Error
}

func (r *repo) BatchUpdate(ctx context.Context, db *gorm.DB, limits []*quotadomain.UserMetricLimit) error {
	for _, limit := range limits {
		if err := db.WithContext(ctx).Save(limit).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) BatchDelete(ctx context.Context, db *gorm.DB, ids []snowflake.ID) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`DELETE FROM user_metric_limits WHERE id IN ?`,
		ids,
	).Error
}

// sqlite spells two-argument GREATEST as MAX.
func clampFn(db *gorm.DB) string {
	if db != nil && strings.EqualFold(db.Dialector.Name(), "sqlite") {
		return "MAX"
	}
	return "GREATEST"
}
