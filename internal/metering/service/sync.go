package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	quotadomain "github.com/arabot777/idea2product-metering/internal/quota/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// syncUserLimits reconciles the user's local limit rows against the billing
// provider. The remote response is authoritative: rows missing locally are
// created, rows present on both sides are overwritten with remote values, and
// local rows the provider no longer reports are removed. All three legs run
// in a single transaction so readers never observe a half-applied sync.
func (s *Service) syncUserLimits(
	ctx context.Context,
	userID snowflake.ID,
	local []quotadomain.UserMetricLimit,
) ([]quotadomain.UserMetricLimit, error) {
	remote, err := s.billing.GetUserMetric(ctx, userID.String())
	if err != nil {
		return nil, err
	}

	localByCode := make(map[string]quotadomain.UserMetricLimit, len(local))
	for _, row := range local {
		localByCode[row.Code] = row
	}

	now := s.clock.Now()
	var (
		creates []*quotadomain.UserMetricLimit
		updates []*quotadomain.UserMetricLimit
		next    []quotadomain.UserMetricLimit
	)
	seen := make(map[string]struct{}, len(remote.LimitStats))

	for _, stat := range remote.LimitStats {
		code := stat.MetricLimit.Code
		if code == "" {
			continue
		}
		seen[code] = struct{}{}
		total := stat.MetricLimit.TotalLimit
		used := stat.CurrentUsedValue

		if existing, ok := localByCode[code]; ok {
			existing.MetricName = stat.MetricLimit.MetricName
			existing.TotalLimit = &total
			existing.CurrentUsedValue = &used
			existing.UpdatedAt = now
			updates = append(updates, &existing)
			next = append(next, existing)
			continue
		}

		row := quotadomain.UserMetricLimit{
			ID:               s.genID.Generate(),
			UserID:           userID,
			Code:             code,
			MetricName:       stat.MetricLimit.MetricName,
			TotalLimit:       &total,
			CurrentUsedValue: &used,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		creates = append(creates, &row)
		next = append(next, row)
	}

	var deletes []snowflake.ID
	for _, row := range local {
		if _, ok := seen[row.Code]; !ok {
			deletes = append(deletes, row.ID)
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(creates) > 0 {
			if err := s.quotarepo.BatchCreate(ctx, tx, creates); err != nil {
				return err
			}
		}
		if len(updates) > 0 {
			if err := s.quotarepo.BatchUpdate(ctx, tx, updates); err != nil {
				return err
			}
		}
		if len(deletes) > 0 {
			if err := s.quotarepo.BatchDelete(ctx, tx, deletes); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("user quota limits reconciled",
		zap.String("user_id", userID.String()),
		zap.Int("created", len(creates)),
		zap.Int("updated", len(updates)),
		zap.Int("deleted", len(deletes)),
	)
	return next, nil
}
