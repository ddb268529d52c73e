package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/arabot777/idea2product-metering/internal/config"
	meteringdomain "github.com/arabot777/idea2product-metering/internal/metering/domain"
	metricdomain "github.com/arabot777/idea2product-metering/internal/metric/domain"
	"go.uber.org/zap"
)

type fakeMeteringService struct {
	checkResult  *meteringdomain.CheckResult
	checkErr     error
	recordResult *meteringdomain.RecordResult
	recordErr    error
	revokeErr    error

	checkCalls  int
	recordCalls int
	revokeCalls int
}

func (f *fakeMeteringService) Check(ctx context.Context, req meteringdomain.CheckRequest) (*meteringdomain.CheckResult, error) {
	f.checkCalls++
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	return f.checkResult, nil
}

func (f *fakeMeteringService) Record(ctx context.Context, req meteringdomain.RecordRequest) (*meteringdomain.RecordResult, error) {
	f.recordCalls++
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	return f.recordResult, nil
}

func (f *fakeMeteringService) Revoke(ctx context.Context, req meteringdomain.RevokeRequest) error {
	f.revokeCalls++
	return f.revokeErr
}

type fakeMetricService struct {
	metricdomain.Service
}

func newTestServer(t *testing.T, metering meteringdomain.Service) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	return NewServer(ServerParams{
		Gin:         NewEngine(),
		Cfg:         config.Config{},
		Log:         zap.NewNop(),
		MeteringSvc: metering,
		MetricSvc:   &fakeMetricService{},
	})
}

func postJSON(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func TestCheckQuotaEndpoint(t *testing.T) {
	fake := &fakeMeteringService{
		checkResult: &meteringdomain.CheckResult{
			Allow:                true,
			CurrentRequestAmount: 2,
		},
	}
	s := newTestServer(t, fake)

	w := postJSON(t, s, "/v1/metering/check", meteringdomain.CheckRequest{
		UserID:     "1234",
		Code:       "api_calls",
		CallParams: map[string]any{"count": 2},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if fake.checkCalls != 1 {
		t.Fatalf("expected 1 check call, got %d", fake.checkCalls)
	}

	var resp struct {
		Data meteringdomain.CheckResult `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Data.Allow || resp.Data.CurrentRequestAmount != 2 {
		t.Fatalf("unexpected payload: %+v", resp.Data)
	}
}

func TestCheckQuotaErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid user", meteringdomain.ErrInvalidUser, http.StatusBadRequest},
		{"metric not found", metricdomain.ErrMetricNotFound, http.StatusNotFound},
		{"quota unavailable", meteringdomain.ErrQuotaUnavailable, http.StatusServiceUnavailable},
		{"record failed", meteringdomain.ErrRecordFailed, http.StatusBadGateway},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, &fakeMeteringService{checkErr: tc.err})

			w := postJSON(t, s, "/v1/metering/check", meteringdomain.CheckRequest{
				UserID: "1234",
				Code:   "api_calls",
			})
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
		})
	}
}

func TestRecordUsageEndpoint(t *testing.T) {
	fake := &fakeMeteringService{
		recordResult: &meteringdomain.RecordResult{
			UsedAmount:    3,
			MetricEventID: "evt-1",
		},
	}
	s := newTestServer(t, fake)

	w := postJSON(t, s, "/v1/metering/record", meteringdomain.RecordRequest{
		UserID: "1234",
		Code:   "api_calls",
		Cost:   3,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if fake.recordCalls != 1 {
		t.Fatalf("expected 1 record call, got %d", fake.recordCalls)
	}
}

func TestRevokeUsageEndpoint(t *testing.T) {
	fake := &fakeMeteringService{}
	s := newTestServer(t, fake)

	w := postJSON(t, s, "/v1/metering/revoke", meteringdomain.RevokeRequest{
		UserID:        "1234",
		Code:          "api_calls",
		Cost:          3,
		MetricEventID: "evt-1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if fake.revokeCalls != 1 {
		t.Fatalf("expected 1 revoke call, got %d", fake.revokeCalls)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeMeteringService{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
