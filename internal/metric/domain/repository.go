package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, metric *BillableMetric) error
	Update(ctx context.Context, db *gorm.DB, metric *BillableMetric) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*BillableMetric, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*BillableMetric, error)
	List(ctx context.Context, db *gorm.DB) ([]BillableMetric, error)
}
