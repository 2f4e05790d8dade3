//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"academic-info/internal/model"
	"academic-info/internal/repository"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "未设置 TEST_DATABASE_DSN，跳过集成测试")
		os.Exit(0)
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	if err := testDB.AutoMigrate(&model.BatchRecord{}); err != nil {
		fmt.Fprintf(os.Stderr, "AutoMigrate 失败: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.Exit(code)
}

func sampleBatch(id string) model.BatchTimetable {
	return model.BatchTimetable{
		Batch: id,
		Days: []model.DaySchedule{
			{Day: "Tuesday", Sessions: []model.Session{{Time: "9:00 - 10:00", Subject: "DBMS", Room: "LT-3", Teacher: "RK"}}},
			{Day: "Monday", Sessions: []model.Session{}},
		},
	}
}

func cleanBatches(t *testing.T) {
	t.Helper()
	testDB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.BatchRecord{})
}

// ═══════════════════════════════════════════════════════════
// Test: ReplaceAll / List
// ═══════════════════════════════════════════════════════════

func TestBatchRepo_ReplaceAllKeepsOrder(t *testing.T) {
	cleanBatches(t)
	defer cleanBatches(t)

	repo := repository.NewRepository(testDB, nil, zap.NewNop())
	ctx := context.Background()

	var records []model.BatchRecord
	for i, id := range []string{"E17", "E1", "E16"} {
		rec, err := model.NewBatchRecord(sampleBatch(id), i, "admin")
		if err != nil {
			t.Fatalf("NewBatchRecord 失败: %v", err)
		}
		records = append(records, rec)
	}
	if err := repo.Batch.ReplaceAll(ctx, records); err != nil {
		t.Fatalf("ReplaceAll 失败: %v", err)
	}

	got, err := repo.Batch.List(ctx)
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if len(got) != 3 || got[0].BatchID != "E17" || got[2].BatchID != "E16" {
		t.Fatalf("期望按 position 排序 E17,E1,E16，实际 %+v", got)
	}

	b, err := got[0].ToBatch()
	if err != nil {
		t.Fatalf("ToBatch 失败: %v", err)
	}
	if names := b.DayNames(); len(names) != 2 || names[0] != "Tuesday" {
		t.Errorf("星期顺序应保留，实际 %v", names)
	}

	// 第二次覆盖应移除旧班级
	rec, _ := model.NewBatchRecord(sampleBatch("E2"), 0, "admin")
	if err := repo.Batch.ReplaceAll(ctx, []model.BatchRecord{rec}); err != nil {
		t.Fatalf("第二次 ReplaceAll 失败: %v", err)
	}
	got, _ = repo.Batch.List(ctx)
	if len(got) != 1 || got[0].BatchID != "E2" {
		t.Errorf("期望仅剩 E2，实际 %+v", got)
	}
}

func TestBatchRepo_Upsert(t *testing.T) {
	cleanBatches(t)
	defer cleanBatches(t)

	repo := repository.NewRepository(testDB, nil, zap.NewNop())
	ctx := context.Background()

	rec, _ := model.NewBatchRecord(sampleBatch("E5"), 0, "")
	if err := repo.Batch.Upsert(ctx, &rec); err != nil {
		t.Fatalf("首次 Upsert 失败: %v", err)
	}

	changed := sampleBatch("E5")
	changed.Days[0].Sessions[0].Subject = "OS"
	rec2, _ := model.NewBatchRecord(changed, 4, "admin")
	if err := repo.Batch.Upsert(ctx, &rec2); err != nil {
		t.Fatalf("覆盖 Upsert 失败: %v", err)
	}

	found, err := repo.Batch.GetByID(ctx, "E5")
	if err != nil {
		t.Fatalf("GetByID 失败: %v", err)
	}
	if found.Position != 4 {
		t.Errorf("期望 position=4，实际 %d", found.Position)
	}
	b, _ := found.ToBatch()
	if b.Days[0].Sessions[0].Subject != "OS" {
		t.Errorf("期望课程被覆盖为 OS，实际 %s", b.Days[0].Sessions[0].Subject)
	}

	if _, err := repo.Batch.GetByID(ctx, "NOPE"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("期望 ErrRecordNotFound，实际 %v", err)
	}
}
