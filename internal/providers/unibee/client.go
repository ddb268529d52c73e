// Package unibee talks to the remote billing provider's merchant metric API.
// The provider owns the authoritative usage ledger; everything local is a
// reconciled cache of what this API reports.
package unibee

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arabot777/idea2product-metering/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the billing provider client.
var Module = fx.Module("unibee",
	fx.Provide(NewClient),
)

var (
	ErrNotConfigured = errors.New("unibee_not_configured")
	// ErrProviderFailure marks a non-zero application code in a provider
	// response, as opposed to a transport failure.
	ErrProviderFailure = errors.New("unibee_provider_failure")
)

// Client is the surface the metering pipeline depends on.
type Client interface {
	GetUserMetric(ctx context.Context, externalUserID string) (*UserMetricResponse, error)
	CreateNewMetricEvent(ctx context.Context, req NewMetricEventRequest) (*MetricEvent, error)
	DeleteMetricEvent(ctx context.Context, externalEventID string) error
}

// MetricLimit is the plan-level ceiling for one metric code.
type MetricLimit struct {
	Code       string  `json:"code"`
	MetricName string  `json:"metricName"`
	TotalLimit float64 `json:"TotalLimit"`
}

// LimitStat pairs a metric limit with the amount already consumed.
type LimitStat struct {
	MetricLimit      MetricLimit `json:"metricLimit"`
	CurrentUsedValue float64     `json:"CurrentUsedValue"`
}

// UserMetricResponse is the authoritative set of per-metric limits for a user.
type UserMetricResponse struct {
	LimitStats []LimitStat `json:"limitStats"`
}

// NewMetricEventRequest reports one unit of consumed usage.
type NewMetricEventRequest struct {
	ExternalEventID  string             `json:"externalEventId"`
	MetricCode       string             `json:"metricCode"`
	ExternalUserID   string             `json:"externalUserId"`
	MetricProperties map[string]float64 `json:"metricProperties"`
}

// MetricEvent is the provider's handle for a recorded usage event, needed
// later for revocation.
type MetricEvent struct {
	ID string `json:"id"`
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type httpClient struct {
	baseURL string
	apiKey  string
	log     *zap.Logger
	http    *http.Client
}

func NewClient(cfg config.Config, log *zap.Logger) Client {
	timeout := time.Duration(cfg.Unibee.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &httpClient{
		baseURL: cfg.Unibee.BaseURL,
		apiKey:  cfg.Unibee.APIKey,
		log:     log.Named("unibee.client"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *httpClient) GetUserMetric(ctx context.Context, externalUserID string) (*UserMetricResponse, error) {
	payload := map[string]string{"externalUserId": externalUserID}
	var resp UserMetricResponse
	if err := c.post(ctx, "/merchant/metric/user/metric", payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) CreateNewMetricEvent(ctx context.Context, req NewMetricEventRequest) (*MetricEvent, error) {
	var resp struct {
		MerchantMetricEvent MetricEvent `json:"merchantMetricEvent"`
	}
	if err := c.post(ctx, "/merchant/metric/event/new", req, &resp); err != nil {
		return nil, err
	}
	if resp.MerchantMetricEvent.ID == "" {
		return nil, fmt.Errorf("%w: event accepted without an identifier", ErrProviderFailure)
	}
	return &resp.MerchantMetricEvent, nil
}

func (c *httpClient) DeleteMetricEvent(ctx context.Context, externalEventID string) error {
	payload := map[string]string{"externalEventId": externalEventID}
	return c.post(ctx, "/merchant/metric/event/delete", payload, nil)
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: http status %d", ErrProviderFailure, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: malformed response: %v", ErrProviderFailure, err)
	}
	if env.Code != 0 {
		c.log.Warn("provider returned application error",
			zap.String("path", path),
			zap.Int("code", env.Code),
			zap.String("message", env.Message),
		)
		return fmt.Errorf("%w: code %d: %s", ErrProviderFailure, env.Code, env.Message)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%w: malformed response data: %v", ErrProviderFailure, err)
		}
	}
	return nil
}
