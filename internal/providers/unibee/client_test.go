package unibee

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/arabot777/idea2product-metering/internal/config"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) (Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(config.Config{
		Unibee: config.UnibeeConfig{
			BaseURL:        srv.URL,
			APIKey:         "test-key",
			TimeoutSeconds: 5,
		},
	}, zap.NewNop())
	return client, srv
}

func TestGetUserMetric(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/merchant/metric/user/metric" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header %q", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["externalUserId"] != "1234" {
			t.Fatalf("unexpected user id %q", body["externalUserId"])
		}
		_, _ = w.Write([]byte(`{
			"code": 0,
			"data": {
				"limitStats": [
					{"metricLimit": {"code": "api_calls", "metricName": "API Calls", "TotalLimit": 100}, "CurrentUsedValue": 7}
				]
			}
		}`))
	}))

	resp, err := client.GetUserMetric(context.Background(), "1234")
	if err != nil {
		t.Fatalf("get user metric: %v", err)
	}
	if len(resp.LimitStats) != 1 {
		t.Fatalf("expected 1 limit stat, got %d", len(resp.LimitStats))
	}
	stat := resp.LimitStats[0]
	if stat.MetricLimit.Code != "api_calls" || stat.MetricLimit.TotalLimit != 100 || stat.CurrentUsedValue != 7 {
		t.Fatalf("unexpected stat %+v", stat)
	}
}

func TestCreateNewMetricEvent(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req NewMetricEventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.MetricCode != "api_calls" || req.MetricProperties["count"] != 3 {
			t.Fatalf("unexpected event request %+v", req)
		}
		_, _ = w.Write([]byte(`{"code": 0, "data": {"merchantMetricEvent": {"id": "evt-99"}}}`))
	}))

	event, err := client.CreateNewMetricEvent(context.Background(), NewMetricEventRequest{
		ExternalEventID:  "ext-1",
		MetricCode:       "api_calls",
		ExternalUserID:   "1234",
		MetricProperties: map[string]float64{"count": 3},
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if event.ID != "evt-99" {
		t.Fatalf("expected evt-99, got %s", event.ID)
	}
}

func TestCreateNewMetricEventMissingID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code": 0, "data": {"merchantMetricEvent": {}}}`))
	}))

	_, err := client.CreateNewMetricEvent(context.Background(), NewMetricEventRequest{
		ExternalEventID: "ext-1",
		MetricCode:      "api_calls",
	})
	if !errors.Is(err, ErrProviderFailure) {
		t.Fatalf("expected provider failure without an event id, got %v", err)
	}
}

func TestProviderErrorEnvelope(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code": 61, "message": "metric not active"}`))
	}))

	err := client.DeleteMetricEvent(context.Background(), "evt-1")
	if !errors.Is(err, ErrProviderFailure) {
		t.Fatalf("expected provider failure from non-zero code, got %v", err)
	}
	if !strings.Contains(err.Error(), "metric not active") {
		t.Fatalf("expected provider message in error, got %v", err)
	}
}

func TestProviderHTTPError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.GetUserMetric(context.Background(), "1234")
	if !errors.Is(err, ErrProviderFailure) {
		t.Fatalf("expected provider failure on 500, got %v", err)
	}
}

func TestNotConfigured(t *testing.T) {
	client := NewClient(config.Config{}, zap.NewNop())

	_, err := client.GetUserMetric(context.Background(), "1234")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}
