package store

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"jobvault/internal/database"
	"jobvault/internal/kv"
)

func newTestSet(t *testing.T, partition kv.Partition) *Set {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.KVEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSet(context.Background(), kv.NewGormStore(db), partition, nil)
}

func newTestApplication(id string) JobApplication {
	return JobApplication{
		ID:           id,
		Title:        "Backend Engineer",
		Company:      "Acme",
		URL:          "https://jobs.example/" + id,
		Requirements: []string{"Go", "PostgreSQL"},
		Location:     "Remote",
		WorkType:     WorkRemote,
		Status:       StatusSaved,
	}
}

func TestApplicationSaveAndGet(t *testing.T) {
	set := newTestSet(t, kv.PartitionZH)
	ctx := context.Background()

	if got := set.Applications.GetAll(ctx); len(got) != 0 {
		t.Fatalf("fresh partition should be empty, got %d", len(got))
	}

	app := newTestApplication("app-1")
	if err := set.Applications.Save(ctx, app); err != nil {
		t.Fatalf("save: %v", err)
	}

	saved := set.Applications.GetByID(ctx, "app-1")
	if saved == nil {
		t.Fatal("saved application not found")
	}
	if saved.Company != "Acme" {
		t.Errorf("company = %q", saved.Company)
	}
	if saved.CreatedAt == "" || saved.UpdatedAt == "" {
		t.Errorf("timestamps not set: created=%q updated=%q", saved.CreatedAt, saved.UpdatedAt)
	}

	// 二次保存是替换而不是追加
	saved.Notes = "phone screen scheduled"
	if err := set.Applications.Save(ctx, *saved); err != nil {
		t.Fatalf("save again: %v", err)
	}
	all := set.Applications.GetAll(ctx)
	if len(all) != 1 {
		t.Fatalf("expected 1 application, got %d", len(all))
	}
	if all[0].Notes != "phone screen scheduled" {
		t.Errorf("notes = %q", all[0].Notes)
	}
	if all[0].CreatedAt != saved.CreatedAt {
		t.Errorf("createdAt changed on update: %q -> %q", saved.CreatedAt, all[0].CreatedAt)
	}
}

func TestApplicationUpdateStatus(t *testing.T) {
	set := newTestSet(t, kv.PartitionZH)
	ctx := context.Background()

	if err := set.Applications.Save(ctx, newTestApplication("app-1")); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := set.Applications.UpdateStatus(ctx, "app-1", StatusInterviewing); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if got := set.Applications.GetByID(ctx, "app-1"); got.Status != StatusInterviewing {
		t.Errorf("status = %q", got.Status)
	}

	err := set.Applications.UpdateStatus(ctx, "no-such-id", StatusApplied)
	if err == nil {
		t.Fatal("expected error for unknown id")
	}
}

func TestApplicationDelete(t *testing.T) {
	set := newTestSet(t, kv.PartitionZH)
	ctx := context.Background()

	if err := set.Applications.Save(ctx, newTestApplication("app-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := set.Applications.Delete(ctx, "app-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := set.Applications.GetByID(ctx, "app-1"); got != nil {
		t.Error("application still present after delete")
	}

	// 删除不存在的 id 不算错误
	if err := set.Applications.Delete(ctx, "app-1"); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestConfigMergeWrite(t *testing.T) {
	set := newTestSet(t, kv.PartitionZH)
	ctx := context.Background()

	if err := set.Applications.SaveConfig(ctx, Config{OpenAIAPIKey: "sk-first"}); err != nil {
		t.Fatalf("save config: %v", err)
	}
	if got := set.Applications.GetConfig(ctx); got.OpenAIAPIKey != "sk-first" {
		t.Errorf("key = %q", got.OpenAIAPIKey)
	}

	// 零值不覆盖已有设置
	if err := set.Applications.SaveConfig(ctx, Config{}); err != nil {
		t.Fatalf("save empty config: %v", err)
	}
	if got := set.Applications.GetConfig(ctx); got.OpenAIAPIKey != "sk-first" {
		t.Errorf("key after empty save = %q", got.OpenAIAPIKey)
	}
}

func TestPartitionsAreIsolated(t *testing.T) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.KVEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	backing := kv.NewGormStore(db)
	ctx := context.Background()

	zh := NewSet(ctx, backing, kv.PartitionZH, nil)
	en := NewSet(ctx, backing, kv.PartitionEN, nil)

	if err := zh.Applications.Save(ctx, newTestApplication("zh-only")); err != nil {
		t.Fatalf("save: %v", err)
	}

	if got := en.Applications.GetAll(ctx); len(got) != 0 {
		t.Errorf("en partition sees zh data: %v", got)
	}
	if got := zh.Applications.GetAll(ctx); len(got) != 1 {
		t.Errorf("zh partition lost its data: %v", got)
	}
}
