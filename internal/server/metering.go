package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	meteringdomain "github.com/arabot777/idea2product-metering/internal/metering/domain"
	"go.uber.org/zap"
)

func (s *Server) CheckQuota(c *gin.Context) {
	var req meteringdomain.CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.meteringSvc.Check(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) RecordUsage(c *gin.Context) {
	var req meteringdomain.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ctx := c.Request.Context()
	token, locked, err := s.limiter.TryLockUserMetric(ctx, req.UserID, req.Code)
	if err != nil {
		s.log.Warn("record concurrency lock failed", zap.Error(err))
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	if !locked {
		AbortWithError(c, ErrTooManyRequests)
		return
	}
	defer func() {
		if err := s.limiter.ReleaseUserMetric(ctx, req.UserID, req.Code, token); err != nil {
			s.log.Warn("record concurrency lock release failed", zap.Error(err))
		}
	}()

	result, err := s.meteringSvc.Record(ctx, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) RevokeUsage(c *gin.Context) {
	var req meteringdomain.RevokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.meteringSvc.Revoke(c.Request.Context(), req); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"revoked": true}})
}

// CheckRateLimit throttles quota checks per user. A limiter failure denies
// with 503 rather than letting unmetered traffic through.
func (s *Server) CheckRateLimit() gin.HandlerFunc {
	return s.rateLimitMiddleware(func(c *gin.Context, userID string) (bool, error) {
		return s.limiter.AllowCheck(c.Request.Context(), userID)
	})
}

func (s *Server) RecordRateLimit() gin.HandlerFunc {
	return s.rateLimitMiddleware(func(c *gin.Context, userID string) (bool, error) {
		return s.limiter.AllowRecord(c.Request.Context(), userID)
	})
}

func (s *Server) rateLimitMiddleware(allow func(*gin.Context, string) (bool, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		userID := strings.TrimSpace(c.GetHeader("X-User-ID"))
		if userID == "" {
			// The body is decoded later by the handler; without a user header
			// the bucket falls back to the client address.
			userID = c.ClientIP()
		}

		allowed, err := allow(c, userID)
		if err != nil {
			s.log.Warn("rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !allowed {
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
