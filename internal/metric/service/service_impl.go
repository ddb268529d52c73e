package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/arabot777/idea2product-metering/internal/formula"
	metricdomain "github.com/arabot777/idea2product-metering/internal/metric/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  metricdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  metricdomain.Repository
	genID *snowflake.Node
}

func New(p Params) metricdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("metric.service"),
		repo:  p.Repo,
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req metricdomain.CreateRequest) (*metricdomain.Response, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, metricdomain.ErrInvalidCode
	}

	name := strings.TrimSpace(req.MetricName)
	if name == "" {
		return nil, metricdomain.ErrInvalidName
	}

	aggregation := strings.TrimSpace(req.AggregationProperty)
	if aggregation == "" {
		return nil, metricdomain.ErrInvalidAggregation
	}

	calculator := strings.TrimSpace(req.FeatureCalculator)
	if err := formula.Validate(calculator); err != nil {
		return nil, metricdomain.ErrInvalidCalculator
	}

	now := time.Now().UTC()
	m := &metricdomain.BillableMetric{
		ID:                  s.genID.Generate(),
		Code:                code,
		MetricName:          name,
		Description:         strings.TrimSpace(req.Description),
		AggregationProperty: aggregation,
		FeatureCalculator:   calculator,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if req.Metadata != nil {
		m.Metadata = datatypes.JSONMap(req.Metadata)
	}

	if err := s.repo.Insert(ctx, s.db, m); err != nil {
		return nil, err
	}

	return s.toResponse(m), nil
}

func (s *Service) List(ctx context.Context) ([]metricdomain.Response, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}

	resp := make([]metricdomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, *s.toResponse(&items[i]))
	}

	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*metricdomain.Response, error) {
	metricID, err := metricdomain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, metricdomain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, metricID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, metricdomain.ErrMetricNotFound
	}

	return s.toResponse(item), nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (*metricdomain.Response, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, metricdomain.ErrInvalidCode
	}

	item, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, metricdomain.ErrMetricNotFound
	}

	return s.toResponse(item), nil
}

func (s *Service) Update(ctx context.Context, req metricdomain.UpdateRequest) (*metricdomain.Response, error) {
	metricID, err := metricdomain.ParseID(strings.TrimSpace(req.ID))
	if err != nil {
		return nil, metricdomain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, metricID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, metricdomain.ErrMetricNotFound
	}

	if req.MetricName != nil {
		name := strings.TrimSpace(*req.MetricName)
		if name == "" {
			return nil, metricdomain.ErrInvalidName
		}
		item.MetricName = name
	}

	if req.Description != nil {
		item.Description = strings.TrimSpace(*req.Description)
	}

	if req.AggregationProperty != nil {
		aggregation := strings.TrimSpace(*req.AggregationProperty)
		if aggregation == "" {
			return nil, metricdomain.ErrInvalidAggregation
		}
		item.AggregationProperty = aggregation
	}

	if req.FeatureCalculator != nil {
		calculator := strings.TrimSpace(*req.FeatureCalculator)
		if err := formula.Validate(calculator); err != nil {
			return nil, metricdomain.ErrInvalidCalculator
		}
		item.FeatureCalculator = calculator
	}

	item.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return nil, err
	}

	return s.toResponse(item), nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	metricID, err := metricdomain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return metricdomain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, metricID)
	if err != nil {
		return err
	}
	if item == nil {
		return metricdomain.ErrMetricNotFound
	}

	return s.repo.Delete(ctx, s.db, metricID)
}

func (s *Service) toResponse(m *metricdomain.BillableMetric) *metricdomain.Response {
	return &metricdomain.Response{
		ID:                  m.ID.String(),
		Code:                m.Code,
		MetricName:          m.MetricName,
		Description:         m.Description,
		AggregationProperty: m.AggregationProperty,
		FeatureCalculator:   m.FeatureCalculator,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}
