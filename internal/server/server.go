package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/arabot777/idea2product-metering/internal/cache"
	"github.com/arabot777/idea2product-metering/internal/clock"
	"github.com/arabot777/idea2product-metering/internal/config"
	"github.com/arabot777/idea2product-metering/internal/metering"
	meteringdomain "github.com/arabot777/idea2product-metering/internal/metering/domain"
	"github.com/arabot777/idea2product-metering/internal/metric"
	metricdomain "github.com/arabot777/idea2product-metering/internal/metric/domain"
	"github.com/arabot777/idea2product-metering/internal/migration"
	"github.com/arabot777/idea2product-metering/internal/observability"
	obsmetrics "github.com/arabot777/idea2product-metering/internal/observability/metrics"
	"github.com/arabot777/idea2product-metering/internal/providers/unibee"
	"github.com/arabot777/idea2product-metering/internal/quota"
	"github.com/arabot777/idea2product-metering/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	config.Module,
	clock.Module,
	cache.Module,
	observability.Module,
	unibee.Module,
	metric.Module,
	quota.Module,
	metering.Module,
	ratelimit.Module,
	migration.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin() *gin.Engine {
	return NewEngine()
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	meteringSvc meteringdomain.Service
	metricSvc   metricdomain.Service
	limiter     *ratelimit.MeteringLimiter
	obsMetrics  *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	MeteringSvc meteringdomain.Service
	MetricSvc   metricdomain.Service
	Limiter     *ratelimit.MeteringLimiter `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics        `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http"),
		meteringSvc: p.MeteringSvc,
		metricSvc:   p.MetricSvc,
		limiter:     p.Limiter,
		obsMetrics:  p.ObsMetrics,
	}

	svc.registerMeteringRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerMeteringRoutes() {
	v1 := s.engine.Group("/v1/metering")

	v1.POST("/check", s.CheckRateLimit(), s.CheckQuota)
	v1.POST("/record", s.RecordRateLimit(), s.RecordUsage)
	v1.POST("/revoke", s.RecordRateLimit(), s.RevokeUsage)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/v1/admin")

	admin.POST("/metrics", s.CreateMetric)
	admin.GET("/metrics", s.ListMetrics)
	admin.GET("/metrics/:id", s.GetMetric)
	admin.PATCH("/metrics/:id", s.UpdateMetric)
	admin.DELETE("/metrics/:id", s.DeleteMetric)
}
