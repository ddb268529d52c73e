package cache

import (
	"strings"
	"time"

	metricdomain "github.com/arabot777/idea2product-metering/internal/metric/domain"
	quotadomain "github.com/arabot777/idea2product-metering/internal/quota/domain"
	"go.uber.org/fx"
)

// Module provides the quota snapshot cache.
var Module = fx.Provide(NewQuotaSnapshotCache)

// QuotaSnapshot is a transient pairing of a user's limit row and the metric
// definition it belongs to. Always subordinate to the repository and, beyond
// that, the remote provider.
type QuotaSnapshot struct {
	MetricLimit    quotadomain.UserMetricLimit
	BillableMetric *metricdomain.Response
}

// QuotaSnapshotCache stores hot-path quota lookups for the metering pipeline.
type QuotaSnapshotCache interface {
	Get(userID, code string) (QuotaSnapshot, bool)
	Set(userID, code string, snapshot QuotaSnapshot, ttl time.Duration)
	// ApplyDelta shifts the cached used value after a record or revoke and
	// refreshes the entry TTL. A miss is a no-op.
	ApplyDelta(userID, code string, delta float64, ttl time.Duration)
	Invalidate(userID, code string)
}

type quotaSnapshotCache struct {
	snapshots Cache[string, QuotaSnapshot]
}

// NewQuotaSnapshotCache returns an in-memory cache tuned for quota checks.
func NewQuotaSnapshotCache() QuotaSnapshotCache {
	return &quotaSnapshotCache{
		snapshots: NewTTLCache[string, QuotaSnapshot](),
	}
}

func (c *quotaSnapshotCache) Get(userID, code string) (QuotaSnapshot, bool) {
	return c.snapshots.Get(cacheKey(userID, code))
}

func (c *quotaSnapshotCache) Set(userID, code string, snapshot QuotaSnapshot, ttl time.Duration) {
	if snapshot.BillableMetric == nil {
		return
	}
	c.snapshots.Set(cacheKey(userID, code), snapshot, ttl)
}

func (c *quotaSnapshotCache) ApplyDelta(userID, code string, delta float64, ttl time.Duration) {
	key := cacheKey(userID, code)
	snapshot, ok := c.snapshots.Get(key)
	if !ok {
		return
	}
	if snapshot.MetricLimit.CurrentUsedValue == nil {
		return
	}
	used := *snapshot.MetricLimit.CurrentUsedValue + delta
	if used < 0 {
		used = 0
	}
	snapshot.MetricLimit.CurrentUsedValue = &used
	c.snapshots.Set(key, snapshot, ttl)
}

func (c *quotaSnapshotCache) Invalidate(userID, code string) {
	c.snapshots.Delete(cacheKey(userID, code))
}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}
