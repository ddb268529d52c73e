package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context) ([]Response, error)
	GetByID(ctx context.Context, id string) (*Response, error)
	GetByCode(ctx context.Context, code string) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, id string) error
}

type CreateRequest struct {
	Code                string         `json:"code"`
	MetricName          string         `json:"metric_name"`
	Description         string         `json:"description"`
	AggregationProperty string         `json:"aggregation_property"`
	FeatureCalculator   string         `json:"feature_calculator"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

type UpdateRequest struct {
	ID                  string  `json:"id"`
	MetricName          *string `json:"metric_name,omitempty"`
	Description         *string `json:"description,omitempty"`
	AggregationProperty *string `json:"aggregation_property,omitempty"`
	FeatureCalculator   *string `json:"feature_calculator,omitempty"`
}

type Response struct {
	ID                  string    `json:"id"`
	Code                string    `json:"code"`
	MetricName          string    `json:"metric_name"`
	Description         string    `json:"description"`
	AggregationProperty string    `json:"aggregation_property"`
	FeatureCalculator   string    `json:"feature_calculator"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

var (
	ErrInvalidCode        = errors.New("invalid_code")
	ErrInvalidName        = errors.New("invalid_metric_name")
	ErrInvalidAggregation = errors.New("invalid_aggregation_property")
	ErrInvalidCalculator  = errors.New("invalid_feature_calculator")
	ErrInvalidID          = errors.New("invalid_id")
	ErrMetricNotFound     = errors.New("billable_metric_not_found")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
