package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arabot777/idea2product-metering/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyMeteringCheck  = "metering:check:user:%s"
	keyMeteringRecord = "metering:record:user:%s"
	keyMeteringLock   = "metering:lock:%s:%s"
)

// MeteringLimiter throttles the metering endpoints per user and serializes
// record/revoke pairs for the same (user, code). Disabled configuration
// yields a nil limiter whose methods allow everything.
type MeteringLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	checkRate   float64
	checkBurst  int
	recordRate  float64
	recordBurst int
	lockTTL     time.Duration
}

func NewMeteringLimiter(cfg config.Config) (*MeteringLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.CheckRate <= 0 || limitCfg.CheckBurst <= 0 {
		return nil, errors.New("check rate limit must be positive")
	}
	if limitCfg.RecordRate <= 0 || limitCfg.RecordBurst <= 0 {
		return nil, errors.New("record rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &MeteringLimiter{
		enabled:     true,
		bucket:      NewTokenBucket(client),
		locker:      NewLocker(client),
		checkRate:   limitCfg.CheckRate,
		checkBurst:  limitCfg.CheckBurst,
		recordRate:  limitCfg.RecordRate,
		recordBurst: limitCfg.RecordBurst,
		lockTTL:     time.Duration(limitCfg.LockTTLSec) * time.Second,
	}, nil
}

func (l *MeteringLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *MeteringLimiter) AllowCheck(ctx context.Context, userID string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyMeteringCheck, strings.TrimSpace(userID)), l.checkRate, l.checkBurst)
}

func (l *MeteringLimiter) AllowRecord(ctx context.Context, userID string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyMeteringRecord, strings.TrimSpace(userID)), l.recordRate, l.recordBurst)
}

func (l *MeteringLimiter) TryLockUserMetric(ctx context.Context, userID, code string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	key := fmt.Sprintf(keyMeteringLock, strings.TrimSpace(userID), strings.TrimSpace(code))
	return l.locker.TryLock(ctx, key, l.lockTTL)
}

func (l *MeteringLimiter) ReleaseUserMetric(ctx context.Context, userID, code, token string) error {
	if !l.Enabled() {
		return nil
	}
	key := fmt.Sprintf(keyMeteringLock, strings.TrimSpace(userID), strings.TrimSpace(code))
	return l.locker.Release(ctx, key, token)
}
