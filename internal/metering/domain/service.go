package domain

import (
	"context"
	"errors"

	metricdomain "github.com/arabot777/idea2product-metering/internal/metric/domain"
	quotadomain "github.com/arabot777/idea2product-metering/internal/quota/domain"
)

// Service is the quota enforcement pipeline. Check gates a metered request,
// Record reports consumed usage after the request ran, and Revoke compensates
// a recorded usage when the downstream action failed.
type Service interface {
	Check(ctx context.Context, req CheckRequest) (*CheckResult, error)
	Record(ctx context.Context, req RecordRequest) (*RecordResult, error)
	Revoke(ctx context.Context, req RevokeRequest) error
}

type CheckRequest struct {
	UserID        string         `json:"user_id"`
	Code          string         `json:"code"`
	CallParams    map[string]any `json:"call_params"`
	DefaultParams map[string]any `json:"default_params"`
}

// CheckResult carries the allow/deny decision. Allow=false with no error is
// the everyday "quota exceeded" business outcome, not a failure.
type CheckResult struct {
	Allow                bool                         `json:"allow"`
	CurrentRequestAmount float64                      `json:"current_request_amount"`
	MetricLimit          *quotadomain.UserMetricLimit `json:"metric_limit,omitempty"`
	BillableMetric       *metricdomain.Response       `json:"billable_metric,omitempty"`
}

type RecordRequest struct {
	UserID string                 `json:"user_id"`
	Code   string                 `json:"code"`
	Cost   float64                `json:"cost"`
	Metric *metricdomain.Response `json:"metric,omitempty"`
}

type RecordResult struct {
	UsedAmount    float64 `json:"used_amount"`
	MetricEventID string  `json:"metric_event_id"`
}

type RevokeRequest struct {
	UserID        string                 `json:"user_id"`
	Code          string                 `json:"code"`
	Cost          float64                `json:"cost"`
	MetricEventID string                 `json:"metric_event_id"`
	Metric        *metricdomain.Response `json:"metric,omitempty"`
}

var (
	ErrInvalidUser    = errors.New("invalid_user")
	ErrInvalidCode    = errors.New("invalid_code")
	ErrInvalidAmount  = errors.New("invalid_amount")
	ErrInvalidEventID = errors.New("invalid_event_id")

	// ErrQuotaUnavailable: remote sync failed and no local fallback exists.
	// The request must be denied, not silently allowed unmetered.
	ErrQuotaUnavailable = errors.New("quota_unavailable")
	// ErrInvalidQuotaState: a limit row exists but lacks the fields needed to
	// back an allow/deny decision.
	ErrInvalidQuotaState = errors.New("invalid_quota_state")
	// ErrRecordFailed: the provider rejected or dropped the usage event. The
	// caller must not run the paid action.
	ErrRecordFailed = errors.New("usage_record_failed")
	// ErrRevokeFailed: the provider did not reverse the event; local state is
	// left untouched so it cannot drift ahead of the ledger.
	ErrRevokeFailed = errors.New("usage_revoke_failed")
)
