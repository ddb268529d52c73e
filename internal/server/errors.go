package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/arabot777/idea2product-metering/internal/formula"
	meteringdomain "github.com/arabot777/idea2product-metering/internal/metering/domain"
	metricdomain "github.com/arabot777/idea2product-metering/internal/metric/domain"
	"github.com/arabot777/idea2product-metering/internal/providers/unibee"
	quotadomain "github.com/arabot777/idea2product-metering/internal/quota/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrTooManyRequests    = errors.New("too_many_requests")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: err.Error(),
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "too_many_requests",
			Message: "too many requests",
		}
	case errors.Is(err, meteringdomain.ErrQuotaUnavailable),
		errors.Is(err, unibee.ErrNotConfigured),
		errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: err.Error(),
		}
	case errors.Is(err, meteringdomain.ErrRecordFailed),
		errors.Is(err, meteringdomain.ErrRevokeFailed),
		errors.Is(err, unibee.ErrProviderFailure):
		return http.StatusBadGateway, errorPayload{
			Type:    "provider_error",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, meteringdomain.ErrInvalidUser),
		errors.Is(err, meteringdomain.ErrInvalidCode),
		errors.Is(err, meteringdomain.ErrInvalidAmount),
		errors.Is(err, meteringdomain.ErrInvalidEventID),
		errors.Is(err, metricdomain.ErrInvalidCode),
		errors.Is(err, metricdomain.ErrInvalidName),
		errors.Is(err, metricdomain.ErrInvalidAggregation),
		errors.Is(err, metricdomain.ErrInvalidCalculator),
		errors.Is(err, metricdomain.ErrInvalidID),
		errors.Is(err, formula.ErrInvalidFormula),
		errors.Is(err, formula.ErrMissingVariable),
		errors.Is(err, formula.ErrInvalidVariableType),
		errors.Is(err, formula.ErrCalculationError):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, metricdomain.ErrMetricNotFound),
		errors.Is(err, quotadomain.ErrLimitNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}
