package cache

import (
	"testing"
	"time"

	metricdomain "github.com/arabot777/idea2product-metering/internal/metric/domain"
	quotadomain "github.com/arabot777/idea2product-metering/internal/quota/domain"
)

func snapshotFixture(total, used float64) QuotaSnapshot {
	return QuotaSnapshot{
		MetricLimit: quotadomain.UserMetricLimit{
			Code:             "api_calls",
			TotalLimit:       &total,
			CurrentUsedValue: &used,
		},
		BillableMetric: &metricdomain.Response{
			Code:                "api_calls",
			AggregationProperty: "count",
		},
	}
}

func TestSnapshotCacheRoundTrip(t *testing.T) {
	c := NewQuotaSnapshotCache()
	c.Set("42", "api_calls", snapshotFixture(100, 10), time.Minute)

	got, ok := c.Get("42", "api_calls")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if *got.MetricLimit.CurrentUsedValue != 10 {
		t.Fatalf("expected used 10, got %v", *got.MetricLimit.CurrentUsedValue)
	}

	if _, ok := c.Get("42", "other"); ok {
		t.Fatal("expected miss for different code")
	}
	if _, ok := c.Get("43", "api_calls"); ok {
		t.Fatal("expected miss for different user")
	}
}

func TestSnapshotCacheExpires(t *testing.T) {
	c := NewQuotaSnapshotCache()
	c.Set("42", "api_calls", snapshotFixture(100, 10), 10*time.Millisecond)

	time.Sleep(25 * time.Millisecond)
	if _, ok := c.Get("42", "api_calls"); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestSnapshotCacheRejectsIncompleteEntry(t *testing.T) {
	c := NewQuotaSnapshotCache()
	c.Set("42", "api_calls", QuotaSnapshot{}, time.Minute)

	if _, ok := c.Get("42", "api_calls"); ok {
		t.Fatal("a snapshot without a metric definition must not be cached")
	}
}

func TestSnapshotCacheApplyDelta(t *testing.T) {
	c := NewQuotaSnapshotCache()
	c.Set("42", "api_calls", snapshotFixture(100, 10), time.Minute)

	c.ApplyDelta("42", "api_calls", 3, time.Minute)
	got, ok := c.Get("42", "api_calls")
	if !ok {
		t.Fatal("expected hit after delta")
	}
	if *got.MetricLimit.CurrentUsedValue != 13 {
		t.Fatalf("expected 13 after +3, got %v", *got.MetricLimit.CurrentUsedValue)
	}

	c.ApplyDelta("42", "api_calls", -20, time.Minute)
	got, _ = c.Get("42", "api_calls")
	if *got.MetricLimit.CurrentUsedValue != 0 {
		t.Fatalf("expected clamp at 0, got %v", *got.MetricLimit.CurrentUsedValue)
	}

	// A delta against a missing entry is a no-op, not an insert.
	c.ApplyDelta("99", "api_calls", 5, time.Minute)
	if _, ok := c.Get("99", "api_calls"); ok {
		t.Fatal("delta must not create entries")
	}
}

func TestSnapshotCacheInvalidate(t *testing.T) {
	c := NewQuotaSnapshotCache()
	c.Set("42", "api_calls", snapshotFixture(100, 10), time.Minute)
	c.Invalidate("42", "api_calls")

	if _, ok := c.Get("42", "api_calls"); ok {
		t.Fatal("expected miss after invalidate")
	}
}
