package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	quotadomain "github.com/arabot777/idea2product-metering/internal/quota/domain"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error
	if err := db.AutoMigrate(&quotadomain.UserMetricLimit{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

func seedRow(t *testing.T, db *gorm.DB, node *snowflake.Node, userID snowflake.ID, code string, total, used float64) quotadomain.UserMetricLimit {
	t.Helper()
	now := time.Now().UTC()
	row := quotadomain.UserMetricLimit{
		ID:               node.Generate(),
		UserID:           userID,
		Code:             code,
		MetricName:       code,
		TotalLimit:       &total,
		CurrentUsedValue: &used,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed row: %v", err)
	}
	return row
}

func usedValue(t *testing.T, db *gorm.DB, userID snowflake.ID, code string) float64 {
	t.Helper()
	var row quotadomain.UserMetricLimit
	if err := db.Where("user_id = ? AND code = ?", userID, code).First(&row).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.CurrentUsedValue == nil {
		t.Fatal("current_used_value is nil")
	}
	return *row.CurrentUsedValue
}

func TestIncreaseUsedValue(t *testing.T) {
	db := setupDB(t)
	node := mustNode(t)
	r := Provide()
	userID := node.Generate()
	seedRow(t, db, node, userID, "api_calls", 100, 10)

	if err := r.IncreaseUsedValue(context.Background(), db, userID, "api_calls", 2.5); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if got := usedValue(t, db, userID, "api_calls"); got != 12.5 {
		t.Fatalf("expected 12.5, got %v", got)
	}
}

func TestIncreaseUsedValueMissingRow(t *testing.T) {
	db := setupDB(t)
	node := mustNode(t)
	r := Provide()

	err := r.IncreaseUsedValue(context.Background(), db, node.Generate(), "nope", 1)
	if !errors.Is(err, quotadomain.ErrLimitNotFound) {
		t.Fatalf("expected limit not found, got %v", err)
	}
}

func TestDecreaseUsedValueClampsAtZero(t *testing.T) {
	db := setupDB(t)
	node := mustNode(t)
	r := Provide()
	userID := node.Generate()
	seedRow(t, db, node, userID, "api_calls", 100, 3)

	if err := r.DecreaseUsedValue(context.Background(), db, userID, "api_calls", 10); err != nil {
		t.Fatalf("decrease: %v", err)
	}
	if got := usedValue(t, db, userID, "api_calls"); got != 0 {
		t.Fatalf("expected clamp at 0, got %v", got)
	}
}

func TestIncreaseFromNullCounter(t *testing.T) {
	db := setupDB(t)
	node := mustNode(t)
	r := Provide()
	userID := node.Generate()
	total := 100.0
	now := time.Now().UTC()
	row := quotadomain.UserMetricLimit{
		ID:         node.Generate(),
		UserID:     userID,
		Code:       "api_calls",
		MetricName: "api_calls",
		TotalLimit: &total,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed row: %v", err)
	}

	if err := r.IncreaseUsedValue(context.Background(), db, userID, "api_calls", 4); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if got := usedValue(t, db, userID, "api_calls"); got != 4 {
		t.Fatalf("expected null counter to start at 0, got %v", got)
	}
}

func TestIncreaseUsedValueConcurrent(t *testing.T) {
	db := setupDB(t)
	node := mustNode(t)
	r := Provide()
	userID := node.Generate()
	seedRow(t, db, node, userID, "api_calls", 1000, 0)

	const workers = 25
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.IncreaseUsedValue(context.Background(), db, userID, "api_calls", 1)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent increase: %v", err)
		}
	}

	if got := usedValue(t, db, userID, "api_calls"); got != workers {
		t.Fatalf("expected %d after %d concurrent increments, got %v", workers, workers, got)
	}
}

func TestFindByUserAndCode(t *testing.T) {
	db := setupDB(t)
	node := mustNode(t)
	r := Provide()
	userID := node.Generate()
	seeded := seedRow(t, db, node, userID, "api_calls", 100, 10)

	row, err := r.FindByUserAndCode(context.Background(), db, userID, "api_calls")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if row == nil || row.ID != seeded.ID {
		t.Fatalf("expected seeded row, got %+v", row)
	}

	missing, err := r.FindByUserAndCode(context.Background(), db, userID, "absent")
	if err != nil {
		t.Fatalf("find absent: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for absent code, got %+v", missing)
	}
}

func TestBatchOperations(t *testing.T) {
	db := setupDB(t)
	node := mustNode(t)
	r := Provide()
	userID := node.Generate()
	ctx := context.Background()

	total := 50.0
	used := 0.0
	now := time.Now().UTC()
	rows := []*quotadomain.UserMetricLimit{
		{ID: node.Generate(), UserID: userID, Code: "a", MetricName: "a", TotalLimit: &total, CurrentUsedValue: &used, CreatedAt: now, UpdatedAt: now},
		{ID: node.Generate(), UserID: userID, Code: "b", MetricName: "b", TotalLimit: &total, CurrentUsedValue: &used, CreatedAt: now, UpdatedAt: now},
	}
	if err := r.BatchCreate(ctx, db, rows); err != nil {
		t.Fatalf("batch create: %v", err)
	}

	newTotal := 75.0
	rows[0].TotalLimit = &newTotal
	if err := r.BatchUpdate(ctx, db, rows[:1]); err != nil {
		t.Fatalf("batch update: %v", err)
	}

	if err := r.BatchDelete(ctx, db, []snowflake.ID{rows[1].ID}); err != nil {
		t.Fatalf("batch delete: %v", err)
	}

	limits, err := r.FindByUser(ctx, db, userID)
	if err != nil {
		t.Fatalf("find by user: %v", err)
	}
	if len(limits) != 1 {
		t.Fatalf("expected 1 row after delete, got %d", len(limits))
	}
	if limits[0].Code != "a" || *limits[0].TotalLimit != 75 {
		t.Fatalf("expected updated row a/75, got %s/%v", limits[0].Code, *limits[0].TotalLimit)
	}
}
