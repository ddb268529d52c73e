package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// UserMetricLimit mirrors one user's quota for one metric code. It is a cache
// of remote truth: the billing provider owns the authoritative ledger, and
// rows here are periodically overwritten by reconciliation.
//
// CurrentUsedValue grows toward TotalLimit; remaining quota is always
// TotalLimit - CurrentUsedValue.
type UserMetricLimit struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID           snowflake.ID `json:"user_id" gorm:"not null;uniqueIndex:ux_user_metric_limits_user_code,priority:1"`
	Code             string       `json:"code" gorm:"type:text;not null;uniqueIndex:ux_user_metric_limits_user_code,priority:2"`
	MetricName       string       `json:"metric_name" gorm:"type:text;not null"`
	TotalLimit       *float64     `json:"total_limit" gorm:"column:total_limit"`
	CurrentUsedValue *float64     `json:"current_used_value" gorm:"column:current_used_value"`
	CreatedAt        time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UserMetricLimit) TableName() string { return "user_metric_limits" }

// Remaining returns the quota still available, or false when the row is
// incomplete and cannot back an allow/deny decision.
func (l *UserMetricLimit) Remaining() (float64, bool) {
	if l == nil || l.TotalLimit == nil || l.CurrentUsedValue == nil {
		return 0, false
	}
	return *l.TotalLimit - *l.CurrentUsedValue, true
}
