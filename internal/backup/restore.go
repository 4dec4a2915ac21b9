package backup

import (
	"context"
	"fmt"
	"log/slog"

	"jobvault/internal/kv"
	"jobvault/internal/store"
)

// partitionBaseKeys 列出属于单个分区的全部集合键。
var partitionBaseKeys = []string{
	store.BaseKeyApplications,
	store.BaseKeyCVVersions,
	store.BaseKeySections,
	store.BaseKeyCompositions,
}

// RestoreToPartition 用指定备份重建目标分区：清空该分区的四个集合键，
// 然后逐实体走常规 Save 路径回填，保证版本化与迁移不变量依旧生效。
// 旧格式备份只对 zh 分区有意义，恢复到 en 是安全的 no-op。
//
// 多实体回填不是事务：单个实体保存失败只记日志并继续（尽力而为），
// 中途失败会留下部分恢复的分区，这是文档化接受的限制。
func (e *Engine) RestoreToPartition(ctx context.Context, backupID string, target kv.Partition) error {
	backup, err := e.GetBackup(ctx, backupID)
	if err != nil {
		return err
	}

	targetSet := e.setFor(target)
	if targetSet == nil {
		return fmt.Errorf("unknown partition %q", target)
	}

	var snapshot *PartitionSnapshot
	if backup.IsDualPartition() {
		snapshot = backup.Snapshot(string(target))
		if snapshot == nil {
			snapshot = emptySnapshot()
		}
	} else {
		// 旧的单分区备份是历史上的默认（中文）数据。
		if target != kv.DefaultPartition {
			e.logger.Info("legacy backup ignored for non-default partition",
				slog.String("backup_id", backupID),
				slog.String("partition", string(target)),
			)
			return nil
		}
		snapshot = &PartitionSnapshot{
			Applications: backup.Applications,
			CVVersions:   backup.CVVersions,
			Sections:     backup.Sections,
		}
	}

	scoped := kv.NewPartitioned(e.backing, target, e.logger)
	if err := scoped.Remove(ctx, partitionBaseKeys...); err != nil {
		return fmt.Errorf("clear partition %s: %w", target, err)
	}

	e.logger.Info("restoring backup",
		slog.String("backup_id", backupID),
		slog.String("partition", string(target)),
		slog.Int("applications", len(snapshot.Applications)),
		slog.Int("cv_versions", len(snapshot.CVVersions)),
		slog.Int("sections", len(snapshot.Sections)),
	)

	for _, app := range snapshot.Applications {
		if err := targetSet.Applications.Save(ctx, app); err != nil {
			e.logger.Error("restore application failed",
				slog.String("application_id", app.ID),
				slog.Any("error", err),
			)
		}
	}
	for _, version := range snapshot.CVVersions {
		if err := targetSet.Versions.Save(ctx, version); err != nil {
			e.logger.Error("restore cv version failed",
				slog.String("version_id", version.ID),
				slog.Any("error", err),
			)
		}
	}
	for _, section := range snapshot.Sections {
		if err := targetSet.Sections.Save(ctx, section); err != nil {
			e.logger.Error("restore section failed",
				slog.String("section_id", section.ID),
				slog.Any("error", err),
			)
		}
	}

	return nil
}

func (e *Engine) setFor(partition kv.Partition) *store.Set {
	switch partition {
	case kv.PartitionZH:
		return e.zh
	case kv.PartitionEN:
		return e.en
	default:
		return nil
	}
}
