package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"jobvault/internal/database"
	"jobvault/internal/kv"
	"jobvault/internal/store"
)

type testEnv struct {
	backing kv.Store
	zh      *store.Set
	en      *store.Set
	engine  *Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.KVEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	backing := kv.NewGormStore(db)
	zh := store.NewSet(ctx, backing, kv.PartitionZH, nil)
	en := store.NewSet(ctx, backing, kv.PartitionEN, nil)
	return &testEnv{
		backing: backing,
		zh:      zh,
		en:      en,
		engine:  NewEngine(backing, zh, en, nil),
	}
}

func (env *testEnv) seedZH(t *testing.T, appCount, versionCount, sectionCount int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < appCount; i++ {
		app := store.JobApplication{
			ID:      fmt.Sprintf("app-%d", i),
			Title:   "Engineer",
			Company: "Acme",
			Status:  store.StatusSaved,
		}
		if err := env.zh.Applications.Save(ctx, app); err != nil {
			t.Fatalf("seed application: %v", err)
		}
	}
	for i := 0; i < versionCount; i++ {
		version := store.CVVersion{
			ID:            fmt.Sprintf("v-%d", i),
			Title:         "简历",
			Content:       fmt.Sprintf("content %d", i),
			VersionNumber: i + 1,
		}
		if err := env.zh.Versions.Save(ctx, version); err != nil {
			t.Fatalf("seed version: %v", err)
		}
	}
	for i := 0; i < sectionCount; i++ {
		section := store.ResumeSection{
			ID:            fmt.Sprintf("s-%d", i),
			Type:          store.SectionSkills,
			Title:         "技能",
			VersionNumber: i + 1,
		}
		if err := env.zh.Sections.Save(ctx, section); err != nil {
			t.Fatalf("seed section: %v", err)
		}
	}
}

func TestCreateFullPartitionBackup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedZH(t, 3, 2, 1)

	id, err := env.engine.CreateFullPartitionBackup(ctx, "before interview prep", false)
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}
	if !strings.HasPrefix(id, "backup-") {
		t.Errorf("backup id = %q", id)
	}

	backups := env.engine.GetAllBackups(ctx)
	if len(backups) != 1 {
		t.Fatalf("expected 1 backup, got %d", len(backups))
	}
	b := backups[0]
	if b.Metadata.Version != FormatDual {
		t.Errorf("version = %q", b.Metadata.Version)
	}
	if !b.IsDualPartition() {
		t.Error("backup should be dual partition")
	}
	if len(b.ZH.Applications) != 3 || len(b.ZH.CVVersions) != 2 || len(b.ZH.Sections) != 1 {
		t.Errorf("zh counts = %d/%d/%d", len(b.ZH.Applications), len(b.ZH.CVVersions), len(b.ZH.Sections))
	}
	if len(b.EN.Applications) != 0 || len(b.EN.CVVersions) != 0 || len(b.EN.Sections) != 0 {
		t.Errorf("en partition should be empty")
	}
	if b.Metadata.Description != "before interview prep" {
		t.Errorf("description = %q", b.Metadata.Description)
	}
}

func TestSmartBackupSkipsWhenUnchanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedZH(t, 1, 1, 0)

	id, skipped, err := env.engine.CreateSmartBackup(ctx, "", true, false)
	if err != nil {
		t.Fatalf("first smart backup: %v", err)
	}
	if skipped || id == "" {
		t.Fatalf("first run: id=%q skipped=%v", id, skipped)
	}

	// 无变化，第二次跳过
	id, skipped, err = env.engine.CreateSmartBackup(ctx, "", true, false)
	if err != nil {
		t.Fatalf("second smart backup: %v", err)
	}
	if !skipped || id != "" {
		t.Fatalf("second run should skip: id=%q skipped=%v", id, skipped)
	}
	if got := env.engine.GetAllBackups(ctx); len(got) != 1 {
		t.Fatalf("backup count = %d, want 1", len(got))
	}

	// 数据变化后恢复备份
	if err := env.zh.Applications.UpdateStatus(ctx, "app-0", store.StatusApplied); err != nil {
		t.Fatalf("update status: %v", err)
	}
	_, skipped, err = env.engine.CreateSmartBackup(ctx, "", true, false)
	if err != nil {
		t.Fatalf("third smart backup: %v", err)
	}
	if skipped {
		t.Error("changed data should not be skipped")
	}

	// force 绕过检测
	_, skipped, err = env.engine.CreateSmartBackup(ctx, "", true, true)
	if err != nil {
		t.Fatalf("forced smart backup: %v", err)
	}
	if skipped {
		t.Error("forced backup should never skip")
	}
	if got := env.engine.GetAllBackups(ctx); len(got) != 3 {
		t.Errorf("backup count = %d, want 3", len(got))
	}
}

func TestRetentionCapsAtTwenty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedZH(t, 1, 0, 0)

	var lastID string
	for i := 0; i < 23; i++ {
		id, err := env.engine.CreateFullPartitionBackup(ctx, fmt.Sprintf("run %d", i), true)
		if err != nil {
			t.Fatalf("create backup %d: %v", i, err)
		}
		lastID = id
	}

	backups := env.engine.GetAllBackups(ctx)
	if len(backups) != maxBackups {
		t.Fatalf("backup count = %d, want %d", len(backups), maxBackups)
	}
	// 最新在前
	if backups[0].ID != lastID {
		t.Errorf("newest backup first: got %q, want %q", backups[0].ID, lastID)
	}
	if backups[0].Metadata.Description != "run 22" {
		t.Errorf("newest description = %q", backups[0].Metadata.Description)
	}
	if backups[len(backups)-1].Metadata.Description != "run 3" {
		t.Errorf("oldest retained = %q", backups[len(backups)-1].Metadata.Description)
	}
}

func TestOversizedListDegradesRetention(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 单个版本 600KB，九条备份的序列化尺寸超过安全阈值
	bulk := strings.Repeat("x", 600*1024)
	version := store.CVVersion{ID: "v-big", Title: "简历", Content: bulk, VersionNumber: 1}
	if err := env.zh.Versions.Save(ctx, version); err != nil {
		t.Fatalf("seed version: %v", err)
	}

	for i := 0; i <= reducedBackups; i++ {
		if _, err := env.engine.CreateFullPartitionBackup(ctx, fmt.Sprintf("run %d", i), true); err != nil {
			t.Fatalf("create backup %d: %v", i, err)
		}
	}

	backups := env.engine.GetAllBackups(ctx)
	if len(backups) != reducedBackups {
		t.Fatalf("backup count = %d, want %d", len(backups), reducedBackups)
	}
	if backups[0].Metadata.Description != fmt.Sprintf("run %d", reducedBackups) {
		t.Errorf("newest description = %q", backups[0].Metadata.Description)
	}
}

// flakyStore 包装真实存储，按预设次数拒绝对备份列表键的写入。
type flakyStore struct {
	kv.Store
	failures int
	attempts int
}

func (s *flakyStore) Set(ctx context.Context, values map[string]json.RawMessage) error {
	if _, ok := values[StorageKey]; ok {
		s.attempts++
		if s.failures > 0 {
			s.failures--
			return errors.New("storage rejected write")
		}
	}
	return s.Store.Set(ctx, values)
}

func TestDegradedRetryAfterWriteFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedZH(t, 1, 0, 0)

	flaky := &flakyStore{Store: env.backing}
	engine := NewEngine(flaky, env.zh, env.en, nil)

	// 先积累超过降级保留量的备份
	for i := 0; i <= reducedBackups; i++ {
		if _, err := engine.CreateFullPartitionBackup(ctx, fmt.Sprintf("run %d", i), true); err != nil {
			t.Fatalf("create backup %d: %v", i, err)
		}
	}

	// 第一次写失败，降级到 8 条重试成功
	flaky.failures = 1
	flaky.attempts = 0
	if _, err := engine.CreateFullPartitionBackup(ctx, "after outage", false); err != nil {
		t.Fatalf("degraded retry should succeed: %v", err)
	}
	if flaky.attempts != 2 {
		t.Errorf("write attempts = %d, want 2", flaky.attempts)
	}
	backups := engine.GetAllBackups(ctx)
	if len(backups) != reducedBackups {
		t.Fatalf("backup count = %d, want %d", len(backups), reducedBackups)
	}
	if backups[0].Metadata.Description != "after outage" {
		t.Errorf("newest description = %q", backups[0].Metadata.Description)
	}

	// 两次都失败则上抛，且只重试一次
	flaky.failures = 2
	flaky.attempts = 0
	if _, err := engine.CreateFullPartitionBackup(ctx, "still down", false); err == nil {
		t.Fatal("write failure should propagate")
	}
	if flaky.attempts != 2 {
		t.Errorf("write attempts = %d, want exactly one retry", flaky.attempts)
	}
}

func TestGetAndDeleteBackup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.engine.CreateFullPartitionBackup(ctx, "", false)
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}

	if _, err := env.engine.GetBackup(ctx, id); err != nil {
		t.Fatalf("get backup: %v", err)
	}
	if _, err := env.engine.GetBackup(ctx, "backup-missing"); err == nil {
		t.Error("missing backup should error")
	}

	if err := env.engine.DeleteBackup(ctx, id); err != nil {
		t.Fatalf("delete backup: %v", err)
	}
	if got := env.engine.GetAllBackups(ctx); len(got) != 0 {
		t.Errorf("backup count after delete = %d", len(got))
	}
	// 重复删除静默成功
	if err := env.engine.DeleteBackup(ctx, id); err != nil {
		t.Errorf("second delete: %v", err)
	}
}
