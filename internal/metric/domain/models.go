package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// BillableMetric defines a meterable action. Rows are written by admin CRUD
// or a catalog sync job and are read-only on the metering path.
type BillableMetric struct {
	ID                  snowflake.ID      `json:"id" gorm:"primaryKey"`
	Code                string            `json:"code" gorm:"type:text;not null;uniqueIndex:ux_billable_metrics_code"`
	MetricName          string            `json:"metric_name" gorm:"type:text;not null"`
	Description         string            `json:"description" gorm:"type:text"`
	AggregationProperty string            `json:"aggregation_property" gorm:"type:text;not null"`
	FeatureCalculator   string            `json:"feature_calculator" gorm:"type:text;not null"`
	Metadata            datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	CreatedAt           time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (BillableMetric) TableName() string { return "billable_metrics" }
