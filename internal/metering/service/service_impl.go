package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/arabot777/idea2product-metering/internal/cache"
	"github.com/arabot777/idea2product-metering/internal/clock"
	"github.com/arabot777/idea2product-metering/internal/config"
	"github.com/arabot777/idea2product-metering/internal/formula"
	meteringdomain "github.com/arabot777/idea2product-metering/internal/metering/domain"
	metricdomain "github.com/arabot777/idea2product-metering/internal/metric/domain"
	obsmetrics "github.com/arabot777/idea2product-metering/internal/observability/metrics"
	"github.com/arabot777/idea2product-metering/internal/providers/unibee"
	quotadomain "github.com/arabot777/idea2product-metering/internal/quota/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	MetricSvc     metricdomain.Service
	QuotaRepo     quotadomain.Repository
	Billing       unibee.Client
	SnapshotCache cache.QuotaSnapshotCache
	Metering      *config.MeteringConfigHolder
	ObsMetrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	metricsvc  metricdomain.Service
	quotarepo  quotadomain.Repository
	billing    unibee.Client
	snapshots  cache.QuotaSnapshotCache
	metering   *config.MeteringConfigHolder
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) meteringdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("metering.service"),
		genID: p.GenID,
		clock: p.Clock,

		metricsvc:  p.MetricSvc,
		quotarepo:  p.QuotaRepo,
		billing:    p.Billing,
		snapshots:  p.SnapshotCache,
		metering:   p.Metering,
		obsMetrics: p.ObsMetrics,
	}
}

// Check decides whether a metered request may proceed. Quota resolves from
// the snapshot cache, then the local repository, then a remote sync when the
// local row is older than the freshness window. Quota exceeded is a normal
// Allow=false result, never an error.
func (s *Service) Check(ctx context.Context, req meteringdomain.CheckRequest) (*meteringdomain.CheckResult, error) {
	userID, err := parseUserID(req.UserID)
	if err != nil {
		return nil, err
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, meteringdomain.ErrInvalidCode
	}

	cfg := s.metering.Get()

	limit, metric, err := s.resolveQuota(ctx, userID, code, cfg)
	if err != nil {
		return nil, err
	}

	remaining, ok := limit.Remaining()
	if !ok {
		return nil, meteringdomain.ErrInvalidQuotaState
	}

	cost, err := formula.Evaluate(metric.FeatureCalculator, req.CallParams, req.DefaultParams)
	if err != nil {
		return nil, err
	}

	if cost > remaining {
		s.obsMetrics.RecordCheck(ctx, code, false)
		return &meteringdomain.CheckResult{
			Allow:          false,
			MetricLimit:    limit,
			BillableMetric: metric,
		}, nil
	}

	if !cfg.CacheOnResolve {
		s.snapshots.Set(req.UserID, code, cache.QuotaSnapshot{
			MetricLimit:    *limit,
			BillableMetric: metric,
		}, cfg.SnapshotTTL())
	}

	s.obsMetrics.RecordCheck(ctx, code, true)
	return &meteringdomain.CheckResult{
		Allow:                true,
		CurrentRequestAmount: cost,
		MetricLimit:          limit,
		BillableMetric:       metric,
	}, nil
}

// Record reports consumed usage to the billing provider, then mirrors it
// locally. Remote first: if the provider did not accept the event there is
// nothing to mirror, and the caller must not run the paid action.
func (s *Service) Record(ctx context.Context, req meteringdomain.RecordRequest) (*meteringdomain.RecordResult, error) {
	userID, err := parseUserID(req.UserID)
	if err != nil {
		return nil, err
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, meteringdomain.ErrInvalidCode
	}
	if req.Cost < 0 {
		return nil, meteringdomain.ErrInvalidAmount
	}

	metric, err := s.resolveMetric(ctx, code, req.Metric)
	if err != nil {
		return nil, err
	}

	event, err := s.billing.CreateNewMetricEvent(ctx, unibee.NewMetricEventRequest{
		ExternalEventID: uuid.NewString(),
		MetricCode:      code,
		ExternalUserID:  req.UserID,
		MetricProperties: map[string]float64{
			metric.AggregationProperty: req.Cost,
		},
	})
	if err != nil {
		s.log.Error("usage event rejected by billing provider",
			zap.String("user_id", req.UserID),
			zap.String("code", code),
			zap.Float64("cost", req.Cost),
			zap.Error(err),
		)
		return nil, meteringdomain.ErrRecordFailed
	}

	if err := s.quotarepo.IncreaseUsedValue(ctx, s.db, userID, code, req.Cost); err != nil {
		// The ledger already holds the event; a missing local row is repaired
		// by the next reconciliation sync.
		s.log.Warn("local quota counter not updated after record",
			zap.String("user_id", req.UserID),
			zap.String("code", code),
			zap.Error(err),
		)
	}

	s.snapshots.ApplyDelta(req.UserID, code, req.Cost, s.metering.Get().SnapshotTTL())
	s.obsMetrics.RecordUsage(ctx, code)

	return &meteringdomain.RecordResult{
		UsedAmount:    req.Cost,
		MetricEventID: event.ID,
	}, nil
}

// Revoke is the compensating transaction for Record. The remote ledger is
// reversed first; when that fails, local state is deliberately left alone so
// it cannot drift ahead of the source of truth.
func (s *Service) Revoke(ctx context.Context, req meteringdomain.RevokeRequest) error {
	userID, err := parseUserID(req.UserID)
	if err != nil {
		return err
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return meteringdomain.ErrInvalidCode
	}
	if strings.TrimSpace(req.MetricEventID) == "" {
		return meteringdomain.ErrInvalidEventID
	}
	if req.Cost < 0 {
		return meteringdomain.ErrInvalidAmount
	}

	if err := s.billing.DeleteMetricEvent(ctx, req.MetricEventID); err != nil {
		s.log.Error("usage event not reversed by billing provider",
			zap.String("user_id", req.UserID),
			zap.String("code", code),
			zap.String("metric_event_id", req.MetricEventID),
			zap.Error(err),
		)
		return meteringdomain.ErrRevokeFailed
	}

	if err := s.quotarepo.DecreaseUsedValue(ctx, s.db, userID, code, req.Cost); err != nil {
		s.log.Warn("local quota counter not updated after revoke",
			zap.String("user_id", req.UserID),
			zap.String("code", code),
			zap.Error(err),
		)
	}

	s.snapshots.ApplyDelta(req.UserID, code, -req.Cost, s.metering.Get().SnapshotTTL())
	s.obsMetrics.RecordRevoke(ctx, code)

	return nil
}

// resolveQuota returns the limit row and metric definition for (user, code),
// consulting the snapshot cache, then local rows, then a remote sync when
// local data is older than the freshness window. Stale local data is served
// when the remote provider is unreachable; with no fallback at all the
// request cannot be verified and fails.
func (s *Service) resolveQuota(
	ctx context.Context,
	userID snowflake.ID,
	code string,
	cfg config.MeteringConfig,
) (*quotadomain.UserMetricLimit, *metricdomain.Response, error) {
	if snapshot, ok := s.snapshots.Get(userID.String(), code); ok && snapshot.BillableMetric != nil {
		limit := snapshot.MetricLimit
		return &limit, snapshot.BillableMetric, nil
	}

	metric, err := s.metricsvc.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, metricdomain.ErrMetricNotFound) {
			return nil, nil, metricdomain.ErrMetricNotFound
		}
		return nil, nil, err
	}

	limits, err := s.quotarepo.FindByUser(ctx, s.db, userID)
	if err != nil {
		return nil, nil, err
	}
	local := findByCode(limits, code)

	if local == nil || s.clock.Now().Sub(local.UpdatedAt) > cfg.FreshnessWindow() {
		synced, syncErr := s.syncUserLimits(ctx, userID, limits)
		s.obsMetrics.RecordSync(ctx, syncErr == nil)
		if syncErr != nil {
			if local == nil {
				s.log.Error("quota sync failed with no local fallback",
					zap.String("user_id", userID.String()),
					zap.String("code", code),
					zap.Error(syncErr),
				)
				return nil, nil, meteringdomain.ErrQuotaUnavailable
			}
			s.log.Warn("quota sync failed, serving stale local data",
				zap.String("user_id", userID.String()),
				zap.String("code", code),
				zap.Error(syncErr),
			)
		} else {
			local = findByCode(synced, code)
			if local == nil {
				return nil, nil, meteringdomain.ErrInvalidQuotaState
			}
		}
	}

	if cfg.CacheOnResolve {
		s.snapshots.Set(userID.String(), code, cache.QuotaSnapshot{
			MetricLimit:    *local,
			BillableMetric: metric,
		}, cfg.SnapshotTTL())
	}

	return local, metric, nil
}

func (s *Service) resolveMetric(ctx context.Context, code string, provided *metricdomain.Response) (*metricdomain.Response, error) {
	if provided != nil && provided.AggregationProperty != "" {
		return provided, nil
	}
	return s.metricsvc.GetByCode(ctx, code)
}

func parseUserID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, meteringdomain.ErrInvalidUser
	}
	return id, nil
}

func findByCode(limits []quotadomain.UserMetricLimit, code string) *quotadomain.UserMetricLimit {
	for i := range limits {
		if limits[i].Code == code {
			return &limits[i]
		}
	}
	return nil
}
