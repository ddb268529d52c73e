package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	metricdomain "github.com/arabot777/idea2product-metering/internal/metric/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() metricdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, m *metricdomain.BillableMetric) error {
	return db.WithContext(ctx).Create(m).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, m *metricdomain.BillableMetric) error {
	return db.WithContext(ctx).Exec(
		`UPDATE billable_metrics
		 SET metric_name = ?, description = ?, aggregation_property = ?, feature_calculator = ?, updated_at = ?
		 WHERE id = ?`,
		m.MetricName,
		m.Description,
		m.AggregationProperty,
		m.FeatureCalculator,
		m.UpdatedAt,
		m.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM billable_metrics WHERE id = ?`,
		id,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*metricdomain.BillableMetric, error) {
	var metric metricdomain.BillableMetric
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, metric_name, description, aggregation_property, feature_calculator, metadata, created_at, updated_at
		 FROM billable_metrics WHERE id = ?`,
		id,
	).Scan(&metric).Error
	if err != nil {
		return nil, err
	}
	if metric.ID == 0 {
		return nil, nil
	}
	return &metric, nil
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*metricdomain.BillableMetric, error) {
	var metric metricdomain.BillableMetric
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, metric_name, description, aggregation_property, feature_calculator, metadata, created_at, updated_at
		 FROM billable_metrics WHERE code = ?`,
		code,
	).Scan(&metric).Error
	if err != nil {
		return nil, err
	}
	if metric.ID == 0 {
		return nil, nil
	}
	return &metric, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]metricdomain.BillableMetric, error) {
	var metrics []metricdomain.BillableMetric
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, metric_name, description, aggregation_property, feature_calculator, metadata, created_at, updated_at
		 FROM billable_metrics ORDER BY created_at ASC`,
	).Scan(&metrics).Error
	if err != nil {
		return nil, err
	}
	return metrics, nil
}
