package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"jobvault/internal/kv"
	"jobvault/internal/store"
)

const (
	// maxBackups 是保留的备份上限，超出后最旧的先被丢弃。
	maxBackups = 20
	// reducedBackups 是序列化尺寸超限时的降级保留量。
	reducedBackups = 8
	// maxSerializedBytes 是备份列表写入前的安全尺寸阈值。
	maxSerializedBytes = 4 * 1024 * 1024
)

// Engine 负责对两个分区的全部集合做一致性快照、去重检测与保留策略。
// 备份记录一经写入不再修改，恢复只读取。
type Engine struct {
	backing kv.Store
	zh      *store.Set
	en      *store.Set
	logger  *slog.Logger
}

// NewEngine 构造备份引擎。zh/en 两套集合必须基于同一个底层存储。
func NewEngine(backing kv.Store, zh, en *store.Set, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{backing: backing, zh: zh, en: en, logger: logger}
}

// CreateFullPartitionBackup 读取两个分区的三个集合（六路并行读），
// 组装一条 2.0 格式的备份并持久化。返回新备份的 id。
func (e *Engine) CreateFullPartitionBackup(ctx context.Context, description string, isAutoBackup bool) (string, error) {
	zhSnap, enSnap := e.snapshot(ctx)
	return e.persistBackup(ctx, zhSnap, enSnap, description, isAutoBackup)
}

// CreateSmartBackup 先做变更检测：与最新一条备份逐分区逐集合比较数量
// 和排序后的实体摘要集（片段集合剔除模板）。两个分区都无变化时跳过
// 写入并返回 skipped=true，这是"无事发生"信号而不是错误。
// force 为 true 时跳过检测直接写入。
func (e *Engine) CreateSmartBackup(ctx context.Context, description string, isAutoBackup, force bool) (id string, skipped bool, err error) {
	zhSnap, enSnap := e.snapshot(ctx)

	if !force {
		if latest := e.latestBackup(ctx); latest != nil && !e.hasChanged(latest, zhSnap, enSnap) {
			e.logger.Info("no changes since latest backup, skipping")
			return "", true, nil
		}
	}

	id, err = e.persistBackup(ctx, zhSnap, enSnap, description, isAutoBackup)
	if err != nil {
		return "", false, err
	}
	return id, false, nil
}

// GetAllBackups 返回全部备份，最新在前。读取失败时返回空列表并记日志。
func (e *Engine) GetAllBackups(ctx context.Context) []Data {
	backups := []Data{}
	values, err := e.backing.Get(ctx, StorageKey)
	if err != nil {
		e.logger.Error("load backups failed", slog.Any("error", err))
		return []Data{}
	}
	raw, ok := values[StorageKey]
	if !ok {
		return []Data{}
	}
	if err := json.Unmarshal(raw, &backups); err != nil {
		e.logger.Error("decode backups failed", slog.Any("error", err))
		return []Data{}
	}
	return backups
}

// GetBackup 按 id 查找备份，不存在时报 ErrBackupNotFound。
func (e *Engine) GetBackup(ctx context.Context, id string) (*Data, error) {
	for _, b := range e.GetAllBackups(ctx) {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, fmt.Errorf("backup %s: %w", id, ErrBackupNotFound)
}

// DeleteBackup 按 id 删除，id 不存在时静默成功。引擎层不区分自动与
// 手动备份，按 isAutoBackup 的保留策略由调用方先过滤再删除。
func (e *Engine) DeleteBackup(ctx context.Context, id string) error {
	backups := e.GetAllBackups(ctx)
	filtered := backups[:0]
	for _, b := range backups {
		if b.ID != id {
			filtered = append(filtered, b)
		}
	}
	if err := e.writeBackups(ctx, filtered); err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}
	return nil
}

// snapshot 并行读取两个分区的三个集合。读路径自带空默认值，
// 六路读取不会失败，只可能读到空集合。
func (e *Engine) snapshot(ctx context.Context) (zh, en *PartitionSnapshot) {
	zh, en = emptySnapshot(), emptySnapshot()

	var wg sync.WaitGroup
	reads := []func(){
		func() { zh.Applications = e.zh.Applications.GetAll(ctx) },
		func() { zh.CVVersions = e.zh.Versions.GetAll(ctx) },
		func() { zh.Sections = e.zh.Sections.GetAll(ctx) },
		func() { en.Applications = e.en.Applications.GetAll(ctx) },
		func() { en.CVVersions = e.en.Versions.GetAll(ctx) },
		func() { en.Sections = e.en.Sections.GetAll(ctx) },
	}
	wg.Add(len(reads))
	for _, read := range reads {
		go func(read func()) {
			defer wg.Done()
			read()
		}(read)
	}
	wg.Wait()

	return zh, en
}

func (e *Engine) persistBackup(ctx context.Context, zh, en *PartitionSnapshot, description string, isAutoBackup bool) (string, error) {
	backup := Data{
		ID: fmt.Sprintf("backup-%s", uuid.NewString()),
		Metadata: Metadata{
			ExportDate:   time.Now().UTC().Format(time.RFC3339),
			Version:      FormatDual,
			Description:  description,
			IsAutoBackup: isAutoBackup,
		},
		ZH: zh,
		EN: en,
	}

	if err := e.appendBackup(ctx, backup); err != nil {
		return "", err
	}

	e.logger.Info("backup created",
		slog.String("backup_id", backup.ID),
		slog.Int("zh_applications", len(zh.Applications)),
		slog.Int("zh_cv_versions", len(zh.CVVersions)),
		slog.Int("zh_sections", len(zh.Sections)),
		slog.Int("en_applications", len(en.Applications)),
		slog.Int("en_cv_versions", len(en.CVVersions)),
		slog.Int("en_sections", len(en.Sections)),
	)
	return backup.ID, nil
}

// appendBackup 把新备份插到列表头部并执行保留策略：固定上限 20 条，
// 序列化尺寸超过阈值时降级到 8 条再写。降级是兜底手段，不是常规的
// 尺寸管理；超大备份不会被拆分成多个存储条目。
func (e *Engine) appendBackup(ctx context.Context, backup Data) error {
	backups := append([]Data{backup}, e.GetAllBackups(ctx)...)
	if len(backups) > maxBackups {
		backups = backups[:maxBackups]
	}

	raw, err := json.Marshal(backups)
	if err != nil {
		return fmt.Errorf("encode backups: %w", err)
	}
	if len(raw) > maxSerializedBytes && len(backups) > reducedBackups {
		e.logger.Warn("backup list exceeds safe size, reducing retention",
			slog.Int("serialized_bytes", len(raw)),
			slog.Int("kept", reducedBackups),
		)
		backups = backups[:reducedBackups]
	}

	if err := e.writeBackups(ctx, backups); err != nil {
		// 写失败再降级重试一次，仍失败则上抛。
		if len(backups) <= reducedBackups {
			return fmt.Errorf("persist backups: %w", err)
		}
		e.logger.Warn("backup write failed, retrying with reduced retention",
			slog.Any("error", err),
		)
		if retryErr := e.writeBackups(ctx, backups[:reducedBackups]); retryErr != nil {
			return fmt.Errorf("persist backups after degradation: %w", retryErr)
		}
	}
	return nil
}

func (e *Engine) writeBackups(ctx context.Context, backups []Data) error {
	raw, err := json.Marshal(backups)
	if err != nil {
		return fmt.Errorf("encode backups: %w", err)
	}
	return e.backing.Set(ctx, map[string]json.RawMessage{StorageKey: raw})
}

func (e *Engine) latestBackup(ctx context.Context) *Data {
	backups := e.GetAllBackups(ctx)
	if len(backups) == 0 {
		return nil
	}
	return &backups[0]
}

// hasChanged 比较最新备份与候选快照。旧格式备份与双分区快照形态不同，
// 一律视为有变化。
func (e *Engine) hasChanged(latest *Data, zh, en *PartitionSnapshot) bool {
	if !latest.IsDualPartition() {
		return true
	}
	return e.snapshotChanged(latest.ZH, zh) || e.snapshotChanged(latest.EN, en)
}

func (e *Engine) snapshotChanged(old, candidate *PartitionSnapshot) bool {
	if old == nil {
		return true
	}
	if len(old.Applications) != len(candidate.Applications) ||
		len(old.CVVersions) != len(candidate.CVVersions) ||
		len(old.Sections) != len(candidate.Sections) {
		return true
	}

	if !e.digestsEqual(applicationDigests(old.Applications), applicationDigests(candidate.Applications)) {
		return true
	}
	if !e.digestsEqual(versionDigests(old.CVVersions), versionDigests(candidate.CVVersions)) {
		return true
	}
	if !e.digestsEqual(sectionDigests(old.Sections), sectionDigests(candidate.Sections)) {
		return true
	}
	return false
}

// digestsEqual 比较两个摘要集，先排序再逐项比对，对数组顺序不敏感。
func (e *Engine) digestsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func applicationDigests(apps []store.JobApplication) []string {
	digests := make([]string, 0, len(apps))
	for _, app := range apps {
		digests = append(digests, mustDigest(app))
	}
	return digests
}

func versionDigests(versions []store.CVVersion) []string {
	digests := make([]string, 0, len(versions))
	for _, v := range versions {
		digests = append(digests, mustDigest(v))
	}
	return digests
}

// sectionDigests 跳过模板：种子模板只读，参与比较只会制造噪音。
func sectionDigests(sections []store.ResumeSection) []string {
	digests := make([]string, 0, len(sections))
	for _, s := range sections {
		if s.IsTemplate {
			continue
		}
		digests = append(digests, mustDigest(s))
	}
	return digests
}

// mustDigest 对纯数据结构序列化不会失败，失败时用空摘要让比较结果
// 偏向"有变化"，宁可多备份一次。
func mustDigest(entity any) string {
	digest, err := store.EntityDigest(entity)
	if err != nil {
		return ""
	}
	return digest
}
